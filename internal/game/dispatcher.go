package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/cache"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
	"github.com/wfunc/banquiz-board/internal/utils"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Mutation 变更操作，声明结算后需要失效的查询
type Mutation interface {
	Kind() string
	GameURL() string
	RoundID() int64
	Invalidates() []cache.QueryKey
}

// AnswerMutation 提交答案
type AnswerMutation struct {
	URL     string
	Request models.AnswerRequest
}

func (m AnswerMutation) Kind() string    { return models.ActionKindAnswer }
func (m AnswerMutation) GameURL() string { return m.URL }
func (m AnswerMutation) RoundID() int64  { return m.Request.RoundID }

// Invalidates 答题会改变快照和结算
func (m AnswerMutation) Invalidates() []cache.QueryKey {
	return []cache.QueryKey{cache.StateKey(m.URL), cache.ResultsKey(m.URL)}
}

// JokerMutation 使用道具
type JokerMutation struct {
	URL     string
	Request models.JokerUseRequest
}

func (m JokerMutation) Kind() string    { return models.ActionKindJoker }
func (m JokerMutation) GameURL() string { return m.URL }
func (m JokerMutation) RoundID() int64  { return m.Request.RoundID }

// Invalidates 道具会改变快照和结算
func (m JokerMutation) Invalidates() []cache.QueryKey {
	return []cache.QueryKey{cache.StateKey(m.URL), cache.ResultsKey(m.URL)}
}

// Journal 变更操作日志
type Journal interface {
	Create(ctx context.Context, record *models.ActionRecord) error
}

// Dispatcher 每次完整选择只发送一次变更请求，结算后失效相关缓存
type Dispatcher struct {
	api     backend.API
	cache   *cache.QueryCache
	journal Journal
	logger  *zap.Logger
}

// NewDispatcher 创建派发器（journal 可为 nil）
func NewDispatcher(api backend.API, queryCache *cache.QueryCache, journal Journal, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		api:     api,
		cache:   queryCache,
		journal: journal,
		logger:  logger,
	}
}

// SubmitAnswer 提交答案
func (d *Dispatcher) SubmitAnswer(ctx context.Context, sessionID, gameURL string, req models.AnswerRequest) (*models.AnswerResponse, error) {
	if req.RoundID == 0 {
		return nil, errors.New(errors.ErrNoActiveTurn)
	}
	if req.GridID == 0 {
		return nil, errors.New(errors.ErrNoSelectedCell)
	}

	m := AnswerMutation{URL: gameURL, Request: req}
	start := time.Now()
	resp, err := d.api.SubmitAnswer(ctx, gameURL, req)
	d.settle(ctx, sessionID, m, req, start, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// UseJoker 使用道具
func (d *Dispatcher) UseJoker(ctx context.Context, sessionID, gameURL string, req models.JokerUseRequest) (*models.JokerUseResponse, error) {
	if req.RoundID == 0 {
		return nil, errors.New(errors.ErrNoActiveTurn)
	}

	m := JokerMutation{URL: gameURL, Request: req}
	start := time.Now()
	resp, err := d.api.UseJoker(ctx, gameURL, req)
	d.settle(ctx, sessionID, m, req, start, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// settle 无论成功失败，都失效声明的查询并记录日志
func (d *Dispatcher) settle(ctx context.Context, sessionID string, m Mutation, payload interface{}, start time.Time, err error) {
	duration := time.Since(start)
	d.cache.Invalidate(m.Invalidates()...)

	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("game_url", m.GameURL()),
		zap.String("kind", m.Kind()),
		zap.Int64("round_id", m.RoundID()),
		zap.Duration("duration", duration),
	}
	if err != nil {
		d.logger.Warn("变更操作失败", append(fields, zap.Error(err))...)
	} else {
		d.logger.Info("变更操作完成", fields...)
	}

	if d.journal == nil {
		return
	}

	body, _ := json.Marshal(payload)
	record := &models.ActionRecord{
		SessionID:  sessionID,
		GameURL:    m.GameURL(),
		Kind:       m.Kind(),
		RoundID:    m.RoundID(),
		Payload:    datatypes.JSON(body),
		Success:    err == nil,
		DurationMs: duration.Milliseconds(),
	}
	if err != nil {
		appErr := errors.As(err)
		record.ErrorCode = int(appErr.Code)
		record.ErrorMessage = utils.Truncate(appErr.Error(), 500)
	}

	// 请求上下文可能已取消，日志仍需落库
	if jerr := d.journal.Create(context.WithoutCancel(ctx), record); jerr != nil {
		d.logger.Error("记录操作日志失败", zap.Error(jerr), zap.String("session_id", sessionID))
	}
}
