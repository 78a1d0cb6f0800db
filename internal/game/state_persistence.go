package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/banquiz-board/internal/models"
	"github.com/wfunc/banquiz-board/internal/repository"
	"gorm.io/gorm"
)

// MemorySelectionPersister 内存状态持久化（用于测试和缓存层）
type MemorySelectionPersister struct {
	mu     sync.RWMutex
	states map[string]*SelectionData
}

// NewMemorySelectionPersister 创建内存持久化器
func NewMemorySelectionPersister() *MemorySelectionPersister {
	return &MemorySelectionPersister{
		states: make(map[string]*SelectionData),
	}
}

// Save 保存状态
func (p *MemorySelectionPersister) Save(ctx context.Context, sessionID string, state *SelectionData) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states[sessionID] = cloneSelectionData(state)
	return nil
}

// Load 加载状态
func (p *MemorySelectionPersister) Load(ctx context.Context, sessionID string) (*SelectionData, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, exists := p.states[sessionID]
	if !exists {
		return nil, fmt.Errorf("状态不存在: %s", sessionID)
	}

	return cloneSelectionData(state), nil
}

// Delete 删除状态
func (p *MemorySelectionPersister) Delete(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.states, sessionID)
	return nil
}

// cloneSelectionData 深拷贝（通过JSON往返）
func cloneSelectionData(state *SelectionData) *SelectionData {
	data, err := json.Marshal(state)
	if err != nil {
		stateCopy := *state
		return &stateCopy
	}
	var out SelectionData
	if err := json.Unmarshal(data, &out); err != nil {
		stateCopy := *state
		return &stateCopy
	}
	return &out
}

// DatabaseSelectionPersister 数据库状态持久化
type DatabaseSelectionPersister struct {
	repo repository.SelectionStateRepository
}

// NewDatabaseSelectionPersister 创建数据库持久化器
func NewDatabaseSelectionPersister(db *gorm.DB) *DatabaseSelectionPersister {
	return &DatabaseSelectionPersister{
		repo: repository.NewSelectionStateRepository(db),
	}
}

// Save 保存状态到数据库
func (p *DatabaseSelectionPersister) Save(ctx context.Context, sessionID string, state *SelectionData) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化状态失败: %w", err)
	}

	updatedAt := state.LastUpdate
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	record := &models.SelectionState{
		SessionID: sessionID,
		GameURL:   state.GameURL,
		Kind:      string(state.Selection.Kind),
		StateData: string(stateJSON),
		UpdatedAt: updatedAt,
	}
	if err := p.repo.Upsert(ctx, record); err != nil {
		return fmt.Errorf("保存状态失败: %w", err)
	}
	return nil
}

// Load 从数据库加载状态
func (p *DatabaseSelectionPersister) Load(ctx context.Context, sessionID string) (*SelectionData, error) {
	record, err := p.repo.FindBySession(ctx, sessionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("选择状态不存在: %s", sessionID)
		}
		return nil, fmt.Errorf("查询状态失败: %w", err)
	}

	var state SelectionData
	if err := json.Unmarshal([]byte(record.StateData), &state); err != nil {
		return nil, fmt.Errorf("反序列化状态失败: %w", err)
	}
	return &state, nil
}

// Delete 从数据库删除状态
func (p *DatabaseSelectionPersister) Delete(ctx context.Context, sessionID string) error {
	n, err := p.repo.DeleteBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("删除状态失败: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("状态不存在: %s", sessionID)
	}
	return nil
}

// DeleteBefore 删除指定时间之前更新的状态，返回删除条数
func (p *DatabaseSelectionPersister) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	n, err := p.repo.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("清理过期状态失败: %w", err)
	}
	return n, nil
}

// LayeredSelectionPersister 带缓存的持久化器（装饰器模式）
type LayeredSelectionPersister struct {
	cache   SelectionPersister // 缓存层（内存）
	storage SelectionPersister // 存储层（数据库）
}

// NewLayeredSelectionPersister 创建带缓存的持久化器
func NewLayeredSelectionPersister(cache, storage SelectionPersister) *LayeredSelectionPersister {
	return &LayeredSelectionPersister{
		cache:   cache,
		storage: storage,
	}
}

// Save 保存状态（同时保存到缓存和存储）
func (p *LayeredSelectionPersister) Save(ctx context.Context, sessionID string, state *SelectionData) error {
	// 先保存到存储层
	if err := p.storage.Save(ctx, sessionID, state); err != nil {
		return err
	}

	// 再保存到缓存层（缓存失败不影响主流程）
	_ = p.cache.Save(ctx, sessionID, state)

	return nil
}

// Load 加载状态（优先从缓存加载）
func (p *LayeredSelectionPersister) Load(ctx context.Context, sessionID string) (*SelectionData, error) {
	if state, err := p.cache.Load(ctx, sessionID); err == nil {
		return state, nil
	}

	// 缓存未命中，从存储层加载
	state, err := p.storage.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	_ = p.cache.Save(ctx, sessionID, state)

	return state, nil
}

// Delete 删除状态（同时删除缓存和存储）
func (p *LayeredSelectionPersister) Delete(ctx context.Context, sessionID string) error {
	_ = p.cache.Delete(ctx, sessionID)
	return p.storage.Delete(ctx, sessionID)
}

// ExpiredSessionCleaner 支持按时间清理的持久化器
type ExpiredSessionCleaner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// DeleteBefore 清理存储层的过期状态
func (p *LayeredSelectionPersister) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	cleaner, ok := p.storage.(ExpiredSessionCleaner)
	if !ok {
		return 0, nil
	}
	return cleaner.DeleteBefore(ctx, before)
}
