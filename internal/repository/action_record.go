package repository

import (
	"context"
	"time"

	"github.com/wfunc/banquiz-board/internal/models"
	"gorm.io/gorm"
)

// ActionRecordRepository 变更操作日志仓储接口
type ActionRecordRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.ActionRecord) error
	FindByID(ctx context.Context, id uint) (*models.ActionRecord, error)
	ListBySession(ctx context.Context, sessionID string, p *Pagination) ([]*models.ActionRecord, error)
	ListByGame(ctx context.Context, gameURL string, p *Pagination) ([]*models.ActionRecord, error)
	GetStatistics(ctx context.Context, gameURL string) (*ActionStatistics, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ActionStatistics 操作统计
type ActionStatistics struct {
	Total         int64   `json:"total"`
	Answers       int64   `json:"answers"`
	Jokers        int64   `json:"jokers"`
	Failed        int64   `json:"failed"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// actionRecordRepo 操作日志仓储实现
type actionRecordRepo struct {
	*BaseRepo
}

// NewActionRecordRepository 创建操作日志仓储
func NewActionRecordRepository(db *gorm.DB) ActionRecordRepository {
	return &actionRecordRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 写入一条操作日志
func (r *actionRecordRepo) Create(ctx context.Context, record *models.ActionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByID 根据ID查找
func (r *actionRecordRepo) FindByID(ctx context.Context, id uint) (*models.ActionRecord, error) {
	var record models.ActionRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBySession 按会话查询（分页，最新在前）
func (r *actionRecordRepo) ListBySession(ctx context.Context, sessionID string, p *Pagination) ([]*models.ActionRecord, error) {
	return r.list(ctx, "session_id = ?", sessionID, p)
}

// ListByGame 按对局查询（分页，最新在前）
func (r *actionRecordRepo) ListByGame(ctx context.Context, gameURL string, p *Pagination) ([]*models.ActionRecord, error) {
	return r.list(ctx, "game_url = ?", gameURL, p)
}

func (r *actionRecordRepo) list(ctx context.Context, where string, arg interface{}, p *Pagination) ([]*models.ActionRecord, error) {
	var records []*models.ActionRecord

	// 查询总数
	if err := r.db.WithContext(ctx).
		Model(&models.ActionRecord{}).
		Where(where, arg).
		Count(&p.Total).Error; err != nil {
		return nil, err
	}

	err := r.db.WithContext(ctx).
		Where(where, arg).
		Order("created_at desc").
		Order("id desc").
		Scopes(Paginate(p)).
		Find(&records).Error

	return records, err
}

// GetStatistics 对局操作统计
func (r *actionRecordRepo) GetStatistics(ctx context.Context, gameURL string) (*ActionStatistics, error) {
	var stats ActionStatistics

	err := r.db.WithContext(ctx).
		Model(&models.ActionRecord{}).
		Select(`COUNT(*) as total,
			COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0) as answers,
			COALESCE(SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END), 0) as jokers,
			COALESCE(SUM(CASE WHEN success = ? THEN 1 ELSE 0 END), 0) as failed,
			COALESCE(AVG(duration_ms), 0) as avg_duration_ms`,
			models.ActionKindAnswer, models.ActionKindJoker, false).
		Where("game_url = ?", gameURL).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// DeleteBefore 清理指定时间之前的日志
func (r *actionRecordRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.ActionRecord{})
	return result.RowsAffected, result.Error
}
