package model

import (
	"errors"
	"time"
)

// StateHistoryModel 状态变更历史数据模型
// 步骤级事件带 StepID,记录关闭事件的 StepID 为触发关闭的最终步骤
type StateHistoryModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	RecordID  string    `gorm:"type:varchar(64);not null;index"`
	StepID    string    `gorm:"type:varchar(64);index"`
	Event     string    `gorm:"type:varchar(32);not null"`
	FromState string    `gorm:"type:varchar(32)"`
	ToState   string    `gorm:"type:varchar(32)"`
	Reason    string    `gorm:"type:text"`
	Operator  string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (StateHistoryModel) TableName() string {
	return "state_history"
}

// Validate 验证状态历史模型
func (shm *StateHistoryModel) Validate() error {
	if shm.ID == "" {
		return errors.New("history ID is required")
	}
	if shm.RecordID == "" {
		return errors.New("record ID is required")
	}
	if shm.Event == "" {
		return errors.New("event is required")
	}
	if shm.Operator == "" {
		return errors.New("operator is required")
	}
	return nil
}
