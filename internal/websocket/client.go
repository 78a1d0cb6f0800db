package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/config"
	apperrors "github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/logger"
	"go.uber.org/zap"
)

// 错误定义
var (
	ErrClientNotFound  = errors.New("客户端未找到")
	ErrSessionNotFound = errors.New("会话未找到")
	ErrSendBufferFull  = errors.New("发送缓冲区已满")
)

// ClientConfig 连接参数
type ClientConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration // 必须小于 PongWait
	MaxMessageSize int64
	SendBuffer     int
	EventQueue     int // 每个连接排队等待处理的输入事件上限
}

// ClientConfigFrom 由配置文件生成连接参数
func ClientConfigFrom(cfg *config.WebSocketConfig) ClientConfig {
	return ClientConfig{
		WriteWait:      cfg.WriteTimeout,
		PongWait:       cfg.PongTimeout,
		PingPeriod:     cfg.PingInterval,
		MaxMessageSize: cfg.MaxMessageSize,
	}.withDefaults()
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 8192
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.EventQueue <= 0 {
		c.EventQueue = 16
	}
	return c
}

// Client WebSocket客户端（绑定一个看板会话）
type Client struct {
	ID        string
	SessionID string
	token     string

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	registered chan struct{}
	closed     chan struct{}
	closeOnce  sync.Once
	hooksMu    sync.Mutex
	closeHooks []func()

	events     chan func()
	eventsOnce sync.Once
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, sessionID, token string) *Client {
	return &Client{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		token:     token,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, hub.config.SendBuffer),

		registered: make(chan struct{}),
		closed:     make(chan struct{}),
		events:     make(chan func(), hub.config.EventQueue),
	}
}

// Context 携带访问令牌的上下文
func (c *Client) Context() context.Context {
	return backend.WithToken(context.Background(), c.token)
}

// OnClose 注册断开时的回调；已断开时立即执行
func (c *Client) OnClose(fn func()) {
	c.hooksMu.Lock()
	select {
	case <-c.closed:
		c.hooksMu.Unlock()
		fn()
		return
	default:
	}
	c.closeHooks = append(c.closeHooks, fn)
	c.hooksMu.Unlock()
}

// Enqueue 把任务交给连接的事件协程，按到达顺序逐个执行
// 队列已满或连接已断开时返回 false
func (c *Client) Enqueue(job func()) bool {
	c.eventsOnce.Do(func() { go c.drainEvents() })

	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.events <- job:
		return true
	default:
		return false
	}
}

func (c *Client) drainEvents() {
	for {
		select {
		case <-c.closed:
			return
		case job := <-c.events:
			job()
		}
	}
}

func (c *Client) runCloseHooks() {
	c.closeOnce.Do(func() {
		c.hooksMu.Lock()
		close(c.closed)
		hooks := c.closeHooks
		c.closeHooks = nil
		c.hooksMu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	})
}

// ReadPump 读取消息
func (c *Client) ReadPump() {
	cfg := c.hub.config
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump 写入消息
func (c *Client) WritePump() {
	cfg := c.hub.config
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				// Hub关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 每条消息单独一帧，客户端按帧解析 JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Warn("解析WebSocket消息失败",
			zap.String("client_id", c.ID),
			zap.Error(err))
		c.SendError("", apperrors.New(apperrors.ErrMessageFormat, err.Error()))
		return
	}

	if msg.Type == "" {
		c.SendError(msg.RequestID, apperrors.New(apperrors.ErrMessageFormat, "消息类型不能为空"))
		return
	}
	logger.LogWebSocketMessage(c.SessionID, "receive", msg.Type)

	switch msg.Type {
	case MessageTypePong:
		return
	case MessageTypePing:
		c.Reply(msg.RequestID, MessageTypePong, nil)
		return
	}

	if c.hub.handler == nil {
		c.SendError(msg.RequestID, apperrors.New(apperrors.ErrNotImplemented, msg.Type))
		return
	}
	c.hub.handler.HandleClientMessage(c, &msg)
}

// Reply 发送消息给客户端
func (c *Client) Reply(requestID, msgType string, data interface{}) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		raw = encoded
	}

	return c.hub.SendToClient(c.ID, &Message{
		Type:      msgType,
		SessionID: c.SessionID,
		RequestID: requestID,
		Data:      raw,
		Timestamp: time.Now().Unix(),
	})
}

// SendError 发送错误消息
func (c *Client) SendError(requestID string, err error) {
	appErr := apperrors.As(err).Public()
	if sendErr := c.Reply(requestID, MessageTypeError, appErr); sendErr != nil {
		c.hub.logger.Debug("发送错误消息失败",
			zap.String("client_id", c.ID),
			zap.Error(sendErr))
	}
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.hub.Unregister(c)
}
