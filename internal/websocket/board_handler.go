package websocket

import (
	"context"
	"encoding/json"

	apperrors "github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/game"
	"go.uber.org/zap"
)

// Board 看板服务
type Board interface {
	HandleEvent(ctx context.Context, sessionID string, ev game.Event) (game.View, error)
	Hover(sessionID string, gridID, playerID *int64) (game.View, error)
	GetView(ctx context.Context, sessionID string) (game.View, error)
	Subscribe(sessionID string, fn func(game.View)) (func(), error)
}

// HoverRequest 悬停消息
type HoverRequest struct {
	GridID   *int64 `json:"grid_id,omitempty"`
	PlayerID *int64 `json:"player_id,omitempty"`
}

// BoardHandler 将客户端消息转给看板服务，并推送视图
type BoardHandler struct {
	hub    *Hub
	board  Board
	logger *zap.Logger
}

// NewBoardHandler 创建看板消息处理器并挂到 Hub 上
func NewBoardHandler(hub *Hub, board Board, logger *zap.Logger) *BoardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &BoardHandler{hub: hub, board: board, logger: logger}
	hub.SetMessageHandler(h)
	return h
}

// Attach 订阅客户端所在会话的视图，并推送当前视图
func (h *BoardHandler) Attach(c *Client) error {
	unsubscribe, err := h.board.Subscribe(c.SessionID, func(view game.View) {
		h.push(c, "", view)
	})
	if err != nil {
		return err
	}
	c.OnClose(unsubscribe)

	view, err := h.board.GetView(c.Context(), c.SessionID)
	if err != nil {
		// 快照暂时拉不到时视图里带着错误，照样推送
		h.logger.Warn("获取初始视图失败",
			zap.String("session_id", c.SessionID),
			zap.Error(err))
	}
	h.push(c, "", view)
	return nil
}

// HandleClientMessage 处理客户端消息
func (h *BoardHandler) HandleClientMessage(c *Client, msg *Message) {
	switch msg.Type {
	case MessageTypeEvent:
		var ev game.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil || ev.Type == "" {
			c.SendError(msg.RequestID, apperrors.New(apperrors.ErrMessageFormat, "无效的事件"))
			return
		}
		// 同一连接的输入按到达顺序处理；变更请求较慢时悬停和刷新照常走读循环
		requestID := msg.RequestID
		if !c.Enqueue(func() { h.handleEvent(c, requestID, ev) }) {
			c.SendError(requestID, apperrors.New(apperrors.ErrBusy, "输入过于频繁"))
		}

	case MessageTypeHover:
		var req HoverRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				c.SendError(msg.RequestID, apperrors.New(apperrors.ErrMessageFormat, "无效的悬停消息"))
				return
			}
		}
		view, err := h.board.Hover(c.SessionID, req.GridID, req.PlayerID)
		h.reply(c, msg.RequestID, view, err)

	case MessageTypeRefresh:
		view, err := h.board.GetView(c.Context(), c.SessionID)
		if err != nil {
			c.SendError(msg.RequestID, err)
			return
		}
		h.push(c, msg.RequestID, view)

	default:
		h.logger.Warn("收到不支持的消息类型",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
		c.SendError(msg.RequestID, apperrors.Newf(apperrors.ErrMessageFormat, "不支持的消息类型: %s", msg.Type))
	}
}

func (h *BoardHandler) handleEvent(c *Client, requestID string, ev game.Event) {
	view, err := h.board.HandleEvent(c.Context(), c.SessionID, ev)
	if err != nil {
		h.logger.Debug("事件处理失败",
			zap.String("session_id", c.SessionID),
			zap.String("event", string(ev.Type)),
			zap.Error(err))
	}
	h.reply(c, requestID, view, err)
}

// reply 出错时回错误；成功且带请求ID时回视图（订阅已推送过的不重复）
func (h *BoardHandler) reply(c *Client, requestID string, view game.View, err error) {
	if err != nil {
		c.SendError(requestID, err)
		return
	}
	if requestID != "" {
		h.push(c, requestID, view)
	}
}

func (h *BoardHandler) push(c *Client, requestID string, view game.View) {
	if err := c.Reply(requestID, MessageTypeView, view); err != nil {
		h.logger.Debug("推送视图失败",
			zap.String("client_id", c.ID),
			zap.Error(err))
	}
}
