package game

import (
	"context"
	"time"

	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/cache"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
	"github.com/wfunc/banquiz-board/internal/repository"
	"go.uber.org/zap"
)

// BoardService 看板服务（业务逻辑层）
type BoardService struct {
	sessionManager *SessionManager
	queries        *cache.Queries
	actions        repository.ActionRecordRepository
	logger         *zap.Logger
}

// BoardServiceConfig 看板服务配置
type BoardServiceConfig struct {
	API            backend.API
	Cache          *cache.QueryCache
	Actions        repository.ActionRecordRepository // 可为 nil，不记录操作日志
	Persister      SelectionPersister
	Logger         *zap.Logger
	SessionTimeout time.Duration
	MaxSessions    int
}

// NewBoardService 创建看板服务
func NewBoardService(config *BoardServiceConfig) *BoardService {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	queries := cache.NewQueries(config.Cache, config.API)

	var journal Journal
	if config.Actions != nil {
		journal = config.Actions
	}
	dispatcher := NewDispatcher(config.API, config.Cache, journal, logger)

	return &BoardService{
		sessionManager: NewSessionManager(&SessionManagerConfig{
			Logger:         logger,
			Queries:        queries,
			Dispatcher:     dispatcher,
			Persister:      config.Persister,
			SessionTimeout: config.SessionTimeout,
			MaxSessions:    config.MaxSessions,
		}),
		queries: queries,
		actions: config.Actions,
		logger:  logger,
	}
}

// Sessions 会话管理器
func (s *BoardService) Sessions() *SessionManager {
	return s.sessionManager
}

// OpenSession 打开看板：恢复或创建会话并加载快照，会话归 owner 所有
func (s *BoardService) OpenSession(ctx context.Context, owner, sessionID, gameURL string) (*Session, View, error) {
	session, err := s.sessionManager.RecoverOrCreateSession(ctx, owner, sessionID, gameURL)
	if err != nil {
		return nil, View{}, err
	}

	view, err := session.Controller.Load(ctx)
	if err != nil {
		return session, view, err
	}

	s.logger.Info("看板已打开",
		zap.String("session_id", session.ID),
		zap.String("game_url", gameURL),
		zap.String("state", string(view.State)))

	return session, view, nil
}

// Authorize 会话必须属于 owner，否则按不存在处理
func (s *BoardService) Authorize(sessionID, owner string) error {
	_, err := s.sessionManager.GetOwnedSession(sessionID, owner)
	return err
}

// ListSessions owner 的活跃会话
func (s *BoardService) ListSessions(owner string) []SessionInfo {
	return s.sessionManager.ListSessions(owner)
}

// HandleEvent 转发指针输入
func (s *BoardService) HandleEvent(ctx context.Context, sessionID string, ev Event) (View, error) {
	session, err := s.sessionManager.GetSession(sessionID)
	if err != nil {
		return View{}, err
	}
	return session.Controller.Handle(ctx, ev)
}

// Hover 更新悬停目标
func (s *BoardService) Hover(sessionID string, gridID, playerID *int64) (View, error) {
	session, err := s.sessionManager.GetSession(sessionID)
	if err != nil {
		return View{}, err
	}
	return session.Controller.Hover(gridID, playerID), nil
}

// Subscribe 订阅会话的视图更新
func (s *BoardService) Subscribe(sessionID string, fn func(View)) (func(), error) {
	session, err := s.sessionManager.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Controller.Subscribe(fn), nil
}

// GetView 获取会话当前视图
func (s *BoardService) GetView(ctx context.Context, sessionID string) (View, error) {
	session, err := s.sessionManager.GetSession(sessionID)
	if err != nil {
		return View{}, err
	}
	return session.Controller.View(ctx)
}

// GetState 获取对局快照
func (s *BoardService) GetState(ctx context.Context, gameURL string) (*models.GameSnapshot, error) {
	return s.queries.State(ctx, gameURL)
}

// LegalMoves 玩家的可走格子（playerID 为 nil 时取当前回合玩家）
func (s *BoardService) LegalMoves(ctx context.Context, gameURL string, playerID *int64) ([]Position, error) {
	snap, err := s.queries.State(ctx, gameURL)
	if err != nil {
		return nil, err
	}

	if playerID == nil {
		return SortedPositions(CurrentLegalMoves(snap)), nil
	}
	if _, ok := snap.PlayerByID(*playerID); !ok {
		return nil, errors.Newf(errors.ErrInvalidTarget, "玩家不存在: %d", *playerID)
	}
	return SortedPositions(LegalMoves(snap, *playerID)), nil
}

// GetResults 获取对局结算
func (s *BoardService) GetResults(ctx context.Context, gameURL string) (*models.GameResults, error) {
	return s.queries.Results(ctx, gameURL)
}

// GetQuestion 获取题目内容
func (s *BoardService) GetQuestion(ctx context.Context, questionID int64) (*models.Question, error) {
	return s.queries.Question(ctx, questionID)
}

// GetColors 获取颜色列表
func (s *BoardService) GetColors(ctx context.Context) ([]models.Color, error) {
	return s.queries.Colors(ctx)
}

// GetHistory 会话的变更操作日志
func (s *BoardService) GetHistory(ctx context.Context, sessionID string, p *repository.Pagination) ([]*models.ActionRecord, error) {
	if s.actions == nil {
		return nil, errors.New(errors.ErrNotImplemented, "未启用操作日志")
	}
	records, err := s.actions.ListBySession(ctx, sessionID, p)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return records, nil
}

// GetGameHistory 对局的变更操作日志（跨会话）
func (s *BoardService) GetGameHistory(ctx context.Context, gameURL string, p *repository.Pagination) ([]*models.ActionRecord, error) {
	if s.actions == nil {
		return nil, errors.New(errors.ErrNotImplemented, "未启用操作日志")
	}
	records, err := s.actions.ListByGame(ctx, gameURL, p)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return records, nil
}

// GetStatistics 对局的变更操作统计
func (s *BoardService) GetStatistics(ctx context.Context, gameURL string) (*repository.ActionStatistics, error) {
	if s.actions == nil {
		return nil, errors.New(errors.ErrNotImplemented, "未启用操作日志")
	}
	stats, err := s.actions.GetStatistics(ctx, gameURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return stats, nil
}

// GetSessionInfo 获取会话信息
func (s *BoardService) GetSessionInfo(sessionID string) (*SessionInfo, error) {
	session, err := s.sessionManager.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	info := session.Info()
	return &info, nil
}

// EndSession 结束会话
func (s *BoardService) EndSession(ctx context.Context, sessionID string) error {
	return s.sessionManager.RemoveSession(ctx, sessionID)
}

// Start 启动看板服务
func (s *BoardService) Start(ctx context.Context, cleanupInterval time.Duration) {
	s.sessionManager.StartCleanupTask(ctx, cleanupInterval)
	s.logger.Info("看板服务已启动")
}

// Stop 停止看板服务（保存所有活跃会话）
func (s *BoardService) Stop(ctx context.Context) {
	s.sessionManager.SaveAll(ctx)
	s.logger.Info("看板服务已停止")
}
