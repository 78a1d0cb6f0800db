package models

import (
	"time"
)

// SelectionState 看板选择状态（用于持久化选择状态机）
type SelectionState struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	GameURL   string    `gorm:"index;size:128;not null" json:"game_url"`
	Kind      string    `gorm:"size:20;not null" json:"kind"`
	StateData string    `gorm:"type:text" json:"state_data"` // JSON格式的选择数据
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SelectionState) TableName() string {
	return "selection_states"
}
