package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/banquiz-board/internal/cache"
	"github.com/wfunc/banquiz-board/internal/errors"
	"go.uber.org/zap"
)

// SessionManager 看板会话管理器
type SessionManager struct {
	mu              sync.RWMutex
	sessions        map[string]*Session
	logger          *zap.Logger
	queries         *cache.Queries
	dispatcher      *Dispatcher
	persister       SelectionPersister
	recoveryManager *RecoveryManager
	sessionTimeout  time.Duration
	maxSessions     int
}

// Session 看板会话（一个对局地址 + 一个控制器）
// Owner 为打开会话的调用方，其他调用方看不到这个会话
type Session struct {
	ID         string
	GameURL    string
	Owner      string
	Controller *Controller
	StartTime  time.Time
}

// SessionInfo 会话概要
type SessionInfo struct {
	SessionID    string        `json:"session_id"`
	GameURL      string        `json:"game_url"`
	Owner        string        `json:"owner,omitempty"`
	State        SelectionKind `json:"state"`
	Busy         bool          `json:"busy"`
	StartTime    time.Time     `json:"start_time"`
	LastActivity time.Time     `json:"last_activity"`
}

// SessionManagerConfig 会话管理器配置
type SessionManagerConfig struct {
	Logger         *zap.Logger
	Queries        *cache.Queries
	Dispatcher     *Dispatcher
	Persister      SelectionPersister
	SessionTimeout time.Duration
	MaxSessions    int
}

// NewSessionManager 创建会话管理器
func NewSessionManager(config *SessionManagerConfig) *SessionManager {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	persister := config.Persister
	if persister == nil {
		persister = NewMemorySelectionPersister()
	}

	return &SessionManager{
		sessions:        make(map[string]*Session),
		logger:          logger,
		queries:         config.Queries,
		dispatcher:      config.Dispatcher,
		persister:       persister,
		recoveryManager: NewRecoveryManager(logger, persister, config.SessionTimeout),
		sessionTimeout:  config.SessionTimeout,
		maxSessions:     config.MaxSessions,
	}
}

// Recovery 恢复管理器
func (sm *SessionManager) Recovery() *RecoveryManager {
	return sm.recoveryManager
}

// CreateSession 为对局创建新会话
func (sm *SessionManager) CreateSession(ctx context.Context, owner, gameURL string) (*Session, error) {
	return sm.createSession(ctx, uuid.NewString(), owner, gameURL)
}

func (sm *SessionManager) createSession(ctx context.Context, sessionID, owner, gameURL string) (*Session, error) {
	if gameURL == "" {
		return nil, errors.New(errors.ErrInvalidParam, "game_url 不能为空")
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		return nil, errors.New(errors.ErrSessionLimit)
	}
	if _, exists := sm.sessions[sessionID]; exists {
		return nil, errors.Newf(errors.ErrAlreadyExists, "会话已存在: %s", sessionID)
	}

	session := sm.newSession(sessionID, owner, gameURL)
	sm.sessions[sessionID] = session

	sm.logger.Info("创建看板会话",
		zap.String("session_id", sessionID),
		zap.String("game_url", gameURL))

	return session, nil
}

func (sm *SessionManager) newSession(sessionID, owner, gameURL string) *Session {
	controller := NewController(ControllerConfig{
		SessionID:  sessionID,
		GameURL:    gameURL,
		Owner:      owner,
		Queries:    sm.queries,
		Dispatcher: sm.dispatcher,
		Persister:  sm.persister,
		Logger:     sm.logger,
	})

	controller.StateMachine().OnStateChange(func(from, to Selection) {
		sm.logger.Debug("选择状态变更",
			zap.String("session_id", sessionID),
			zap.String("from", string(from.Kind)),
			zap.String("to", string(to.Kind)))
	})

	return &Session{
		ID:         sessionID,
		GameURL:    gameURL,
		Owner:      owner,
		Controller: controller,
		StartTime:  time.Now(),
	}
}

// GetSession 获取会话
func (sm *SessionManager) GetSession(sessionID string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, errors.Newf(errors.ErrSessionNotFound, "会话不存在: %s", sessionID)
	}
	return session, nil
}

// GetOwnedSession 获取属于 owner 的会话；属于别人的会话按不存在处理
func (sm *SessionManager) GetOwnedSession(sessionID, owner string) (*Session, error) {
	session, err := sm.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session.Owner != owner {
		sm.logger.Warn("拒绝访问他人会话",
			zap.String("session_id", sessionID),
			zap.String("caller", owner))
		return nil, errors.Newf(errors.ErrSessionNotFound, "会话不存在: %s", sessionID)
	}
	return session, nil
}

// RecoverOrCreateSession 恢复或创建会话
func (sm *SessionManager) RecoverOrCreateSession(ctx context.Context, owner, sessionID, gameURL string) (*Session, error) {
	if sessionID == "" {
		return sm.CreateSession(ctx, owner, gameURL)
	}

	// 先尝试从内存获取
	if session, err := sm.GetSession(sessionID); err == nil {
		if session.Owner != owner {
			return nil, errors.Newf(errors.ErrSessionNotFound, "会话不存在: %s", sessionID)
		}
		if session.GameURL != gameURL {
			return nil, errors.Newf(errors.ErrInvalidParam, "会话属于其他对局: %s", session.GameURL)
		}
		return session, nil
	}

	// 持久化的选择属于别人时不能顶替
	if data, err := sm.recoveryManager.LoadSelection(ctx, sessionID); err == nil && data.Owner != "" && data.Owner != owner {
		return nil, errors.Newf(errors.ErrSessionNotFound, "会话不存在: %s", sessionID)
	}

	session, err := sm.createSession(ctx, sessionID, owner, gameURL)
	if err != nil {
		return nil, err
	}

	snap, err := sm.queries.State(ctx, gameURL)
	if err != nil {
		sm.logger.Warn("恢复会话时拉取快照失败，从空闲开始",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return session, nil
	}

	if err := sm.recoveryManager.Recover(ctx, session.Controller, snap); err != nil {
		sm.logger.Debug("没有可恢复的选择",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	return session, nil
}

// RemoveSession 移除会话（保存最终选择）
func (sm *SessionManager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return errors.Newf(errors.ErrSessionNotFound, "会话不存在: %s", sessionID)
	}

	sm.saveLocked(ctx, session)
	delete(sm.sessions, sessionID)

	sm.logger.Info("移除看板会话",
		zap.String("session_id", sessionID),
		zap.Duration("duration", time.Since(session.StartTime)))
	return nil
}

// CleanupInactiveSessions 清理不活跃的会话，在途请求的会话保留
func (sm *SessionManager) CleanupInactiveSessions(ctx context.Context) int {
	if sm.sessionTimeout <= 0 {
		return 0
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	removed := 0
	for sessionID, session := range sm.sessions {
		idle := now.Sub(session.Controller.LastActivity())
		if idle <= sm.sessionTimeout || session.Controller.Busy() {
			continue
		}

		sm.saveLocked(ctx, session)
		delete(sm.sessions, sessionID)
		removed++

		sm.logger.Info("清理超时会话",
			zap.String("session_id", sessionID),
			zap.Duration("inactive", idle))
	}
	return removed
}

// StartCleanupTask 启动清理任务
func (sm *SessionManager) StartCleanupTask(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				sm.logger.Info("停止会话清理任务")
				return
			case <-ticker.C:
				sm.CleanupInactiveSessions(ctx)
				if _, err := sm.recoveryManager.CleanupExpiredSessions(ctx); err != nil {
					sm.logger.Error("清理过期会话失败", zap.Error(err))
				}
			}
		}
	}()
}

// SaveAll 保存所有活跃会话
func (sm *SessionManager) SaveAll(ctx context.Context) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, session := range sm.sessions {
		sm.saveLocked(ctx, session)
	}
}

func (sm *SessionManager) saveLocked(ctx context.Context, session *Session) {
	if err := sm.persister.Save(ctx, session.ID, session.Controller.StateMachine().Snapshot()); err != nil {
		sm.logger.Error("保存会话状态失败",
			zap.String("session_id", session.ID),
			zap.Error(err))
	}
}

// GetActiveSessions 获取活跃会话数
func (sm *SessionManager) GetActiveSessions() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ListSessions 按创建时间列出 owner 的会话
func (sm *SessionManager) ListSessions(owner string) []SessionInfo {
	sm.mu.RLock()
	out := make([]SessionInfo, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		if s.Owner != owner {
			continue
		}
		out = append(out, s.Info())
	}
	sm.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Info 会话概要
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		SessionID:    s.ID,
		GameURL:      s.GameURL,
		Owner:        s.Owner,
		State:        s.Controller.StateMachine().GetSelection().Kind,
		Busy:         s.Controller.Busy(),
		StartTime:    s.StartTime,
		LastActivity: s.Controller.LastActivity(),
	}
}
