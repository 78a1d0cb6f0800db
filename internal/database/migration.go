package database

import (
	"fmt"

	"github.com/wfunc/banquiz-board/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// migrationModels 需要迁移的模型
func migrationModels() []interface{} {
	return []interface{}{
		&models.SelectionState{},
		&models.ActionRecord{},
	}
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB, zl *zap.Logger) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}
	if zl == nil {
		zl = zap.NewNop()
	}

	// 多个进程共用一个 SQLite 文件时串行迁移
	if path := dbFilePath(db); path != "" {
		CleanupStaleLocks(path, zl)
		lockFile, err := acquireMigrationLock(path, zl)
		if err != nil {
			zl.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile, zl)
	}

	zl.Info("开始数据库迁移...")
	for _, model := range migrationModels() {
		if err := db.AutoMigrate(model); err != nil {
			zl.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		zl.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	createIndexes(db, zl)

	zl.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建组合索引（失败只记录警告）
func createIndexes(db *gorm.DB, zl *zap.Logger) {
	indexes := map[string]string{
		"idx_action_records_session_created": "CREATE INDEX IF NOT EXISTS idx_action_records_session_created ON action_records(session_id, created_at)",
		"idx_action_records_game_kind":       "CREATE INDEX IF NOT EXISTS idx_action_records_game_kind ON action_records(game_url, kind)",
		"idx_selection_states_updated_at":    "CREATE INDEX IF NOT EXISTS idx_selection_states_updated_at ON selection_states(updated_at)",
	}
	for name, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			zl.Warn("创建索引失败", zap.String("index", name), zap.Error(err))
		}
	}
}
