package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/banquiz-board/internal/config"
	"github.com/wfunc/banquiz-board/internal/database"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/game"
	"github.com/wfunc/banquiz-board/internal/middleware"
	ws "github.com/wfunc/banquiz-board/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RouterConfig 路由依赖
type RouterConfig struct {
	Config *config.Config
	Board  *game.BoardService
	Hub    *ws.Hub
	DB     *gorm.DB // 可为 nil（未启用数据库）
	Logger *zap.Logger
}

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	board          *game.BoardService
	sessionHandler *SessionHandler
	gameHandler    *GameHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	cfg            *config.Config
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(rc RouterConfig) *Router {
	log := rc.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := rc.Config

	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.AccessLog())
	engine.Use(middleware.CORS(cfg.Server.CORSOrigin))

	boardHandler := ws.NewBoardHandler(rc.Hub, rc.Board, log.Named("websocket"))

	router := &Router{
		engine:         engine,
		db:             rc.DB,
		board:          rc.Board,
		sessionHandler: NewSessionHandler(rc.Board, rc.Hub, log),
		gameHandler:    NewGameHandler(rc.Board, cfg.Backend.FrontURL, log),
		wsHandler:      NewWebSocketHandler(rc.Hub, boardHandler, rc.Board, &cfg.WebSocket, cfg.Server.CORSOrigin, log),
		authMiddleware: middleware.NewAuthMiddleware(cfg.Security.ExpiryLeeway, log),
		cfg:            cfg,
		log:            log,
	}

	// 设置路由
	router.setupRoutes()

	return router
}

// tokenMiddleware 按配置决定是否强制令牌
func (r *Router) tokenMiddleware() gin.HandlerFunc {
	if r.cfg.Security.RequireToken {
		return r.authMiddleware.RequireToken()
	}
	return r.authMiddleware.OptionalToken()
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// 文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	v1 := r.engine.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		sessions.Use(r.tokenMiddleware())
		{
			sessions.POST("", r.sessionHandler.Open)
			sessions.GET("", r.sessionHandler.List)
			sessions.GET("/:id", r.sessionHandler.Get)
			sessions.GET("/:id/info", r.sessionHandler.Info)
			sessions.DELETE("/:id", r.sessionHandler.Close)
			sessions.POST("/:id/events", r.sessionHandler.Event)
			sessions.POST("/:id/hover", r.sessionHandler.Hover)
			sessions.GET("/:id/actions", r.sessionHandler.Actions)
		}

		// 二维码只包含前端地址，不需要令牌
		v1.GET("/games/:url/qrcode", r.gameHandler.QRCode)

		games := v1.Group("/games")
		games.Use(r.tokenMiddleware())
		{
			games.GET("/:url/state", r.gameHandler.State)
			games.GET("/:url/moves", r.gameHandler.Moves)
			games.GET("/:url/results", r.gameHandler.Results)
			games.GET("/:url/stats", r.gameHandler.Stats)
			games.GET("/:url/actions", r.gameHandler.Actions)
		}

		authed := v1.Group("")
		authed.Use(r.tokenMiddleware())
		{
			authed.GET("/questions/:id", r.gameHandler.Question)
			authed.GET("/colors", r.gameHandler.Colors)
			authed.GET("/ws/online", r.wsHandler.Online)
		}
	}

	// WebSocket路由（浏览器握手只能通过 query 带令牌）
	wsPath := r.cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	wsGroup := r.engine.Group(wsPath)
	wsGroup.Use(r.tokenMiddleware())
	{
		wsGroup.GET("/sessions/:id", r.wsHandler.SessionWebSocket)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		respondError(c, errors.New(errors.ErrNotFound, "接口不存在"))
	})
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Sessions int    `json:"sessions"`
	Database string `json:"database"`
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Message:  "服务运行正常",
		Sessions: r.board.Sessions().GetActiveSessions(),
		Database: "disabled",
	}

	if r.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx, r.db); err != nil {
			r.log.Warn("健康检查数据库ping失败", zap.Error(err))
			resp.Status = "unhealthy"
			resp.Message = "数据库ping失败"
			resp.Database = "down"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "up"
	}

	c.JSON(http.StatusOK, resp)
}

// Handler HTTP处理器
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
