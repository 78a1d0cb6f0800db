package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
	"github.com/wfunc/banquiz-board/internal/api"
	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/cache"
	"github.com/wfunc/banquiz-board/internal/config"
	"github.com/wfunc/banquiz-board/internal/database"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/game"
	"github.com/wfunc/banquiz-board/internal/logger"
	"github.com/wfunc/banquiz-board/internal/repository"
	ws "github.com/wfunc/banquiz-board/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db         *gorm.DB
	board      *game.BoardService
	hub        *ws.Hub
	httpServer *http.Server

	// 关闭控制
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.StringP("config", "c", "", "配置文件路径")
		showVersion = flag.BoolP("version", "v", false, "显示版本信息")
		showHelp    = flag.BoolP("help", "h", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	printStartInfo(cfg)

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动看板服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
		zap.String("backend", s.cfg.Backend.BaseURL),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	s.startServices()

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.httpServer.Addr),
	)

	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	if err := s.initDatabase(); err != nil {
		return err
	}

	s.initBoard()
	s.initHTTPServer()

	s.logger.Info("所有组件初始化完成")
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...",
		zap.String("driver", s.cfg.Database.Driver))

	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	s.db = database.GetDB()

	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(s.db, logger.WithModule("database")); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx, s.db); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// initBoard 初始化后端客户端、查询缓存与看板服务
func (s *Server) initBoard() {
	client := backend.NewClient(&s.cfg.Backend,
		backend.WithExpiryLeeway(s.cfg.Security.ExpiryLeeway),
		backend.WithLogger(logger.WithModule("backend")),
	)

	queryCache := cache.New(s.cfg.Backend.StaleTime, s.cfg.Backend.Retry,
		cache.WithLogger(logger.WithModule("cache")))

	// 未启用持久化时刷新页面只能在进程内恢复
	var persister game.SelectionPersister = game.NewMemorySelectionPersister()
	if s.cfg.Session.Persist {
		persister = game.NewLayeredSelectionPersister(persister, game.NewDatabaseSelectionPersister(s.db))
	}

	s.board = game.NewBoardService(&game.BoardServiceConfig{
		API:            client,
		Cache:          queryCache,
		Actions:        repository.NewActionRecordRepository(s.db),
		Persister:      persister,
		Logger:         logger.WithModule("board"),
		SessionTimeout: s.cfg.Session.Timeout,
		MaxSessions:    s.cfg.Session.MaxSessions,
	})

	s.hub = ws.NewHub(ws.ClientConfigFrom(&s.cfg.WebSocket), logger.WithModule("websocket"))
}

// initHTTPServer 初始化路由与HTTP服务器
func (s *Server) initHTTPServer() {
	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.NewRouter(api.RouterConfig{
		Config: s.cfg,
		Board:  s.board,
		Hub:    s.hub,
		DB:     s.db,
		Logger: logger.WithModule("api"),
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
}

// startServices 启动服务
func (s *Server) startServices() {
	s.logger.Info("启动服务...")

	s.board.Start(s.ctx, s.cfg.Session.CleanupInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("HTTP服务器异常退出", zap.Error(err))
		}
	}()

	s.logger.Info("所有服务启动完成")
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务器关闭失败", zap.Error(err))
	}

	// 保存所有会话的选择状态，之后再断开推送
	s.board.Stop(shutdownCtx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}

// reloadConfig 重新加载配置，只有日志级别可以热更新
func (s *Server) reloadConfig(newCfg *config.Config) {
	if newCfg.Log.Level != s.cfg.Log.Level {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("日志级别已更新", zap.String("level", newCfg.Log.Level))
	}
	s.cfg.Log = newCfg.Log

	s.logger.Info("配置重新加载完成")
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("Banquiz 看板服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("Banquiz 看板服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  banquiz-board [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  BANQUIZ_BACKEND_BASE_URL   Banquiz 后端地址")
	fmt.Println("  BANQUIZ_DATABASE_DSN       数据库连接串")
	fmt.Println("  BANQUIZ_LOG_LEVEL          日志级别")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  banquiz-board -c /path/to/config.yaml")
	fmt.Println("  banquiz-board --version")
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("                    Banquiz 看板服务器")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("版本: %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())
	fmt.Printf("后端: %s\n", cfg.Backend.BaseURL)
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
