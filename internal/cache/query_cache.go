package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/banquiz-board/internal/errors"
	"github.com/wfunc/banquiz-board/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Kind 查询类型
type Kind string

const (
	KindState    Kind = "state"
	KindResults  Kind = "results"
	KindQuestion Kind = "question"
	KindColors   Kind = "colors"
)

// QueryKey 缓存键
// Scope 区分调用方：后端按令牌鉴权，不同令牌的结果互不共享
type QueryKey struct {
	Kind    Kind
	GameURL string
	ID      int64
	Scope   string
}

// StateKey 对局快照键
func StateKey(gameURL string) QueryKey {
	return QueryKey{Kind: KindState, GameURL: gameURL}
}

// ResultsKey 对局结算键
func ResultsKey(gameURL string) QueryKey {
	return QueryKey{Kind: KindResults, GameURL: gameURL}
}

// QuestionKey 题目内容键
func QuestionKey(questionID int64) QueryKey {
	return QueryKey{Kind: KindQuestion, ID: questionID}
}

// ColorsKey 颜色列表键
func ColorsKey() QueryKey {
	return QueryKey{Kind: KindColors}
}

// Scoped 限定到某个调用方
func (k QueryKey) Scoped(scope string) QueryKey {
	k.Scope = scope
	return k
}

func (k QueryKey) unscoped() QueryKey {
	k.Scope = ""
	return k
}

func (k QueryKey) String() string {
	var s string
	switch {
	case k.ID != 0:
		s = fmt.Sprintf("%s/%d", k.Kind, k.ID)
	case k.GameURL != "":
		s = fmt.Sprintf("%s/%s", k.Kind, k.GameURL)
	default:
		s = string(k.Kind)
	}
	if k.Scope != "" {
		s += "@" + k.Scope
	}
	return s
}

// FetchFunc 拉取函数
type FetchFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	value     interface{}
	fetchedAt time.Time
	stale     bool
	gen       uint64
}

// QueryCache 查询缓存：新鲜期内直接返回，过期或失效后重新拉取
// 失效代数按不带调用方的键计，一次失效作用于所有调用方的条目
type QueryCache struct {
	mu        sync.RWMutex
	entries   map[QueryKey]*entry
	gens      map[QueryKey]uint64
	group     singleflight.Group
	staleTime time.Duration
	retry     int
	now       func() time.Time
	logger    *zap.Logger
}

// Option 缓存选项
type Option func(*QueryCache)

// WithClock 指定时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(c *QueryCache) {
		c.now = now
	}
}

// WithLogger 指定日志器
func WithLogger(l *zap.Logger) Option {
	return func(c *QueryCache) {
		c.logger = l
	}
}

// New 创建查询缓存
func New(staleTime time.Duration, retry int, opts ...Option) *QueryCache {
	if retry < 0 {
		retry = 0
	}
	c := &QueryCache{
		entries:   make(map[QueryKey]*entry),
		gens:      make(map[QueryKey]uint64),
		staleTime: staleTime,
		retry:     retry,
		now:       time.Now,
		logger:    logger.WithModule("cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 读取缓存，不新鲜时拉取（同一键、同一调用方的并发拉取合并为一次）
func (c *QueryCache) Get(ctx context.Context, key QueryKey, fetch FetchFunc) (interface{}, error) {
	if v, ok := c.fresh(key); ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key.String(), func() (interface{}, error) {
		// 等待期间可能已被其他调用刷新
		if v, ok := c.fresh(key); ok {
			return v, nil
		}
		gen := c.generation(key)
		value, err := c.fetchWithRetry(ctx, key, fetch)
		if err != nil {
			return nil, err
		}
		c.store(key, value, gen)
		return value, nil
	})
	if shared {
		c.logger.Debug("query_shared", zap.String("key", key.String()))
	}
	return v, err
}

// Peek 读取缓存值，不触发拉取
func (c *QueryCache) Peek(key QueryKey) (value interface{}, fetchedAt time.Time, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return e.value, e.fetchedAt, c.isFresh(e)
}

// Set 整体替换缓存值
func (c *QueryCache) Set(key QueryKey, value interface{}) {
	c.store(key, value, c.generation(key))
}

// Invalidate 将指定键标记为失效（不区分调用方），下次读取时重新拉取
func (c *QueryCache) Invalidate(keys ...QueryKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := make(map[QueryKey]struct{}, len(keys))
	for _, key := range keys {
		base := key.unscoped()
		c.gens[base]++
		targets[base] = struct{}{}
	}
	for key, e := range c.entries {
		if _, ok := targets[key.unscoped()]; ok {
			e.stale = true
		}
	}
	c.logger.Debug("query_invalidated", zap.Int("count", len(keys)))
}

// Remove 删除指定对局的所有缓存
func (c *QueryCache) Remove(gameURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.GameURL == gameURL {
			delete(c.entries, key)
			c.gens[key.unscoped()]++
		}
	}
}

// Len 缓存条目数
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) fresh(key QueryKey) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.isFresh(e) {
		return nil, false
	}
	return e.value, true
}

func (c *QueryCache) isFresh(e *entry) bool {
	if e.stale {
		return false
	}
	return c.now().Sub(e.fetchedAt) < c.staleTime
}

func (c *QueryCache) generation(key QueryKey) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[key.unscoped()]
}

// store 写入缓存；拉取期间发生过失效则写入后仍视为失效
func (c *QueryCache) store(key QueryKey, value interface{}, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:     value,
		fetchedAt: c.now(),
		stale:     c.gens[key.unscoped()] != gen,
		gen:       gen,
	}
}

func (c *QueryCache) fetchWithRetry(ctx context.Context, key QueryKey, fetch FetchFunc) (interface{}, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry; attempt++ {
		value, err := fetch(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		c.logger.Warn("query_retry",
			zap.String("key", key.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, lastErr
}
