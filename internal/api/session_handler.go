package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/banquiz-board/internal/game"
	"github.com/wfunc/banquiz-board/internal/middleware"
	ws "github.com/wfunc/banquiz-board/internal/websocket"
	"go.uber.org/zap"
)

// SessionHandler 看板会话处理器
type SessionHandler struct {
	board  *game.BoardService
	hub    *ws.Hub
	logger *zap.Logger
}

// NewSessionHandler 创建会话处理器
func NewSessionHandler(board *game.BoardService, hub *ws.Hub, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{board: board, hub: hub, logger: logger}
}

// OpenSessionRequest 打开看板请求
type OpenSessionRequest struct {
	GameURL   string `json:"game_url" binding:"required"`
	SessionID string `json:"session_id,omitempty"` // 刷新页面时带上，恢复之前的选择
}

// OpenSessionResponse 打开看板响应
type OpenSessionResponse struct {
	SessionID string    `json:"session_id"`
	View      game.View `json:"view"`
}

// HoverRequest 悬停请求
type HoverRequest struct {
	GridID   *int64 `json:"grid_id,omitempty"`
	PlayerID *int64 `json:"player_id,omitempty"`
}

// Open 打开看板
// @Summary 打开看板
// @Description 为对局创建会话（或恢复已有会话），返回会话ID与当前视图
// @Tags Sessions
// @Security Bearer
// @Accept json
// @Produce json
// @Param request body OpenSessionRequest true "打开看板请求"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /api/v1/sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误: "+err.Error())
		return
	}

	session, view, err := h.board.OpenSession(c.Request.Context(), middleware.GetCaller(c), req.SessionID, req.GameURL)
	if err != nil {
		if session != nil {
			// 会话已建立但快照拉取失败，页面无法渲染
			h.logger.Warn("看板快照加载失败",
				zap.String("session_id", session.ID),
				zap.String("game_url", req.GameURL),
				zap.Error(err))
		}
		respondError(c, err)
		return
	}

	respondOK(c, OpenSessionResponse{SessionID: session.ID, View: view})
}

// List 列出调用方的活跃会话
// @Summary 会话列表
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	respondOK(c, h.board.ListSessions(middleware.GetCaller(c)))
}

// owned 会话不属于调用方时回 404，与会话不存在一致
func (h *SessionHandler) owned(c *gin.Context) (string, bool) {
	sessionID := c.Param("id")
	if err := h.board.Authorize(sessionID, middleware.GetCaller(c)); err != nil {
		respondError(c, err)
		return "", false
	}
	return sessionID, true
}

// Get 获取会话视图
// @Summary 会话视图
// @Description 重新拉取快照并返回派生视图
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID, ok := h.owned(c)
	if !ok {
		return
	}
	view, err := h.board.GetView(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

// Info 会话概要
// @Summary 会话概要
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id}/info [get]
func (h *SessionHandler) Info(c *gin.Context) {
	sessionID, ok := h.owned(c)
	if !ok {
		return
	}
	info, err := h.board.GetSessionInfo(sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, info)
}

// Event 指针输入
// @Summary 指针输入
// @Description 点击格子、玩家、道具，取消，提交答案或关闭题目
// @Tags Sessions
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body game.Event true "输入事件"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 502 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id}/events [post]
func (h *SessionHandler) Event(c *gin.Context) {
	sessionID, ok := h.owned(c)
	if !ok {
		return
	}
	var ev game.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, "参数错误: "+err.Error())
		return
	}

	view, err := h.board.HandleEvent(c.Request.Context(), sessionID, ev)
	if err != nil {
		h.logger.Debug("事件处理失败",
			zap.String("session_id", sessionID),
			zap.String("event", string(ev.Type)),
			zap.Error(err))
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

// Hover 悬停
// @Summary 悬停目标
// @Tags Sessions
// @Security Bearer
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param request body HoverRequest true "悬停目标"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id}/hover [post]
func (h *SessionHandler) Hover(c *gin.Context) {
	sessionID, ok := h.owned(c)
	if !ok {
		return
	}
	var req HoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "参数错误: "+err.Error())
		return
	}

	view, err := h.board.Hover(sessionID, req.GridID, req.PlayerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

// Actions 会话的操作日志
// @Summary 操作日志
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param id path string true "会话ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id}/actions [get]
func (h *SessionHandler) Actions(c *gin.Context) {
	sessionID, ok := h.owned(c)
	if !ok {
		return
	}
	p := parsePagination(c)
	records, err := h.board.GetHistory(c.Request.Context(), sessionID, p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, pageOf(records, p))
}

// Close 结束会话
// @Summary 结束会话
// @Tags Sessions
// @Security Bearer
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /api/v1/sessions/{id} [delete]
func (h *SessionHandler) Close(c *gin.Context) {
	sessionID, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.board.EndSession(c.Request.Context(), sessionID); err != nil {
		respondError(c, err)
		return
	}

	// 通知仍然连着的看板页面
	if h.hub != nil {
		msg := &ws.Message{Type: ws.MessageTypeClosed, SessionID: sessionID, Timestamp: time.Now().Unix()}
		if err := h.hub.SendToSession(sessionID, msg); err != nil && err != ws.ErrSessionNotFound {
			h.logger.Warn("会话结束通知失败", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	respondOK(c, gin.H{"session_id": sessionID})
}
