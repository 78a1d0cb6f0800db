package repository

import (
	"context"
	"time"

	"github.com/wfunc/banquiz-board/internal/models"
	"gorm.io/gorm"
)

// SelectionStateRepository 看板选择状态仓储接口
type SelectionStateRepository interface {
	BaseRepository
	Upsert(ctx context.Context, state *models.SelectionState) error
	FindBySession(ctx context.Context, sessionID string) (*models.SelectionState, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type selectionStateRepo struct {
	*BaseRepo
}

// NewSelectionStateRepository 创建选择状态仓储
func NewSelectionStateRepository(db *gorm.DB) SelectionStateRepository {
	return &selectionStateRepo{BaseRepo: NewBaseRepo(db)}
}

// Upsert 按 session_id 插入或覆盖
func (r *selectionStateRepo) Upsert(ctx context.Context, state *models.SelectionState) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		var existing models.SelectionState
		err := tx.Where("session_id = ?", state.SessionID).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			return tx.Create(state).Error
		}
		if err != nil {
			return err
		}

		state.ID = existing.ID
		state.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Updates(map[string]interface{}{
			"game_url":   state.GameURL,
			"kind":       state.Kind,
			"state_data": state.StateData,
			"updated_at": state.UpdatedAt,
		}).Error
	})
}

// FindBySession 按会话查找，不存在时返回 gorm.ErrRecordNotFound
func (r *selectionStateRepo) FindBySession(ctx context.Context, sessionID string) (*models.SelectionState, error) {
	var state models.SelectionState
	if err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// DeleteBySession 删除会话的选择
func (r *selectionStateRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.SelectionState{})
	return result.RowsAffected, result.Error
}

// DeleteBefore 删除指定时间之前更新的选择
func (r *selectionStateRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("updated_at < ?", before).
		Delete(&models.SelectionState{})
	return result.RowsAffected, result.Error
}
