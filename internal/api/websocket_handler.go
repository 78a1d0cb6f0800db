package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/banquiz-board/internal/config"
	"github.com/wfunc/banquiz-board/internal/game"
	"github.com/wfunc/banquiz-board/internal/middleware"
	ws "github.com/wfunc/banquiz-board/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	board    *ws.BoardHandler
	sessions *game.BoardService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, board *ws.BoardHandler, sessions *game.BoardService, cfg *config.WebSocketConfig, allowedOrigin string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		board:    board,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
			CheckOrigin: func(r *http.Request) bool {
				// 未配置来源时不限制（本地看板）
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		logger: logger,
	}
}

// SessionWebSocket 看板会话的推送连接
// @Summary 看板推送
// @Description 推送 view 消息，接收 event / hover / refresh 消息
// @Tags Sessions
// @Param id path string true "会话ID"
// @Param token query string false "访问令牌"
// @Failure 404 {object} errors.ErrorResponse
// @Router /ws/sessions/{id} [get]
func (h *WebSocketHandler) SessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	token, _ := middleware.GetToken(c)

	// 握手前确认会话归属，别人的会话按不存在处理
	if err := h.sessions.Authorize(sessionID, middleware.GetCaller(c)); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, sessionID, token)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	if err := h.board.Attach(client); err != nil {
		h.logger.Warn("WebSocket会话不存在",
			zap.String("client_id", client.ID),
			zap.String("session_id", sessionID),
			zap.Error(err))
		client.SendError("", err)
		client.Close()
		return
	}

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.String("session_id", sessionID))
}

// Online 在线连接数
// @Summary 在线连接数
// @Tags Sessions
// @Produce json
// @Param session_id query string false "只统计该会话"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/ws/online [get]
func (h *WebSocketHandler) Online(c *gin.Context) {
	if sessionID := c.Query("session_id"); sessionID != "" {
		if err := h.sessions.Authorize(sessionID, middleware.GetCaller(c)); err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, gin.H{"session_id": sessionID, "online_count": h.hub.SessionCount(sessionID)})
		return
	}
	respondOK(c, gin.H{"online_count": h.hub.GetOnlineCount()})
}
