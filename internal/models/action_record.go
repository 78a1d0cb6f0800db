package models

import (
	"time"

	"gorm.io/datatypes"
)

// 操作类型
const (
	ActionKindAnswer = "answer"
	ActionKindJoker  = "joker"
)

// ActionRecord 已派发的变更操作日志
type ActionRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SessionID    string         `gorm:"index;size:64;not null" json:"session_id"`
	GameURL      string         `gorm:"index;size:128;not null" json:"game_url"`
	Kind         string         `gorm:"size:20;not null" json:"kind"` // answer, joker
	RoundID      int64          `json:"round_id"`
	Payload      datatypes.JSON `json:"payload"` // 发给后端的请求体
	Success      bool           `gorm:"default:false" json:"success"`
	ErrorCode    int            `json:"error_code,omitempty"`
	ErrorMessage string         `gorm:"size:500" json:"error_message,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (ActionRecord) TableName() string {
	return "action_records"
}
