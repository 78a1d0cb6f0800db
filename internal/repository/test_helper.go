package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/banquiz-board/internal/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 创建内存测试数据库（每个测试独立）
func TestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.SelectionState{},
		&models.ActionRecord{},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		CleanupTestDB(db)
	})
	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// CreateTestActionRecord 创建测试操作日志
func CreateTestActionRecord(sessionID, gameURL, kind string, success bool) *models.ActionRecord {
	record := &models.ActionRecord{
		SessionID:  sessionID,
		GameURL:    gameURL,
		Kind:       kind,
		RoundID:    42,
		Payload:    datatypes.JSON(`{"round_id":42}`),
		Success:    success,
		DurationMs: 120,
		CreatedAt:  time.Now(),
	}
	if !success {
		record.ErrorCode = 4000
		record.ErrorMessage = "后端服务不可用"
	}
	return record
}
