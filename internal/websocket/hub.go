package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"` // 消息类型
	SessionID string          `json:"session_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"` // 客户端请求ID，回复时原样带回
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 看板消息
	MessageTypeView    = "view"    // 服务端推送视图
	MessageTypeEvent   = "event"   // 客户端指针输入
	MessageTypeHover   = "hover"   // 客户端悬停
	MessageTypeRefresh = "refresh" // 客户端请求重新拉取
	MessageTypeClosed  = "closed"  // 会话已结束
)

// MessageHandler 客户端消息处理器
type MessageHandler interface {
	HandleClientMessage(c *Client, msg *Message)
}

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 会话ID到客户端的映射
	sessionClients map[string]map[string]*Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	handler MessageHandler
	config  ClientConfig
	logger  *zap.Logger
}

// NewHub 创建Hub
func NewHub(config ClientConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:        make(map[string]*Client),
		sessionClients: make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client, 16),
		done:           make(chan struct{}),
		config:         config.withDefaults(),
		logger:         logger,
	}
}

// SetMessageHandler 设置消息处理器
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.handler = handler
}

// Config 连接参数
func (h *Hub) Config() ClientConfig {
	return h.config
}

// Run 运行Hub，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			h.logger.Info("WebSocket Hub已停止")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	if client.SessionID != "" {
		if h.sessionClients[client.SessionID] == nil {
			h.sessionClients[client.SessionID] = make(map[string]*Client)
		}
		h.sessionClients[client.SessionID][client.ID] = client
	}
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID))

	// 发送连接成功消息
	data, _ := json.Marshal(map[string]string{"client_id": client.ID})
	h.SendToClient(client.ID, &Message{
		Type:      MessageTypeConnected,
		SessionID: client.SessionID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	})
	close(client.registered)
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		delete(h.clients, client.ID)
		if peers := h.sessionClients[client.SessionID]; peers != nil {
			delete(peers, client.ID)
			if len(peers) == 0 {
				delete(h.sessionClients, client.SessionID)
			}
		}
		close(client.send)
	}
	h.clientsMu.Unlock()

	if !ok {
		return
	}
	client.runCloseHooks()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, id)
		close(client.send)
	}
	h.sessionClients = make(map[string]map[string]*Client)
	h.clientsMu.Unlock()

	for _, client := range clients {
		client.runCloseHooks()
	}
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendToSession 发送消息给指定会话的所有客户端
func (h *Hub) SendToSession(sessionID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	peers := h.sessionClients[sessionID]
	if len(peers) == 0 {
		return ErrSessionNotFound
	}

	for _, client := range peers {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("会话客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.String("session_id", sessionID))
		}
	}
	return nil
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// SessionCount 会话的在线连接数
func (h *Hub) SessionCount(sessionID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.sessionClients[sessionID])
}

// Register 注册客户端，返回时客户端已可收消息（Hub 停止后返回 false）
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		<-client.registered
		return true
	case <-h.done:
		return false
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
