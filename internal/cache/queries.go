package cache

import (
	"context"

	"github.com/wfunc/banquiz-board/internal/backend"
	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/models"
)

// Queries 经过缓存的后端只读查询
// 需要令牌的查询按调用方分别缓存，颜色列表是公开接口，全局共享
type Queries struct {
	cache *QueryCache
	api   backend.API
}

// NewQueries 创建查询集合
func NewQueries(cache *QueryCache, api backend.API) *Queries {
	return &Queries{cache: cache, api: api}
}

// Cache 返回底层缓存
func (q *Queries) Cache() *QueryCache {
	return q.cache
}

// State 读取对局快照
func (q *Queries) State(ctx context.Context, gameURL string) (*models.GameSnapshot, error) {
	v, err := q.cache.Get(ctx, StateKey(gameURL).Scoped(backend.TokenFingerprint(ctx)), func(ctx context.Context) (interface{}, error) {
		return q.api.GetGameState(ctx, gameURL)
	})
	if err != nil {
		return nil, err
	}
	return asType[*models.GameSnapshot](v)
}

// Results 读取对局结算
func (q *Queries) Results(ctx context.Context, gameURL string) (*models.GameResults, error) {
	v, err := q.cache.Get(ctx, ResultsKey(gameURL).Scoped(backend.TokenFingerprint(ctx)), func(ctx context.Context) (interface{}, error) {
		return q.api.GetResults(ctx, gameURL)
	})
	if err != nil {
		return nil, err
	}
	return asType[*models.GameResults](v)
}

// Question 读取题目内容
func (q *Queries) Question(ctx context.Context, questionID int64) (*models.Question, error) {
	v, err := q.cache.Get(ctx, QuestionKey(questionID).Scoped(backend.TokenFingerprint(ctx)), func(ctx context.Context) (interface{}, error) {
		return q.api.GetQuestion(ctx, questionID)
	})
	if err != nil {
		return nil, err
	}
	return asType[*models.Question](v)
}

// Colors 读取颜色列表
func (q *Queries) Colors(ctx context.Context) ([]models.Color, error) {
	v, err := q.cache.Get(ctx, ColorsKey(), func(ctx context.Context) (interface{}, error) {
		return q.api.ListColors(ctx)
	})
	if err != nil {
		return nil, err
	}
	return asType[[]models.Color](v)
}

func asType[T any](v interface{}) (T, error) {
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, errors.Newf(errors.ErrUnknown, "缓存值类型不匹配: %T", v)
	}
	return typed, nil
}
