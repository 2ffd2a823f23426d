package model

import (
	"errors"
	"time"
)

// HandoffEventModel 责任人交接记录数据模型,只追加
type HandoffEventModel struct {
	ID              string    `gorm:"primaryKey;type:varchar(64)"`
	RecordID        string    `gorm:"type:varchar(64);not null;index"`
	StepID          string    `gorm:"type:varchar(64);not null;index"`
	FromContactID   string    `gorm:"type:varchar(64)"`
	FromContactName string    `gorm:"type:varchar(255)"`
	ToContactID     string    `gorm:"type:varchar(64);not null"`
	ToContactName   string    `gorm:"type:varchar(255)"`
	Reason          string    `gorm:"type:text"`
	Operator        string    `gorm:"type:varchar(64);not null"`
	CreatedAt       time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (HandoffEventModel) TableName() string {
	return "handoff_events"
}

// Validate 验证交接记录模型
func (m *HandoffEventModel) Validate() error {
	if m.ID == "" {
		return errors.New("handoff ID is required")
	}
	if m.StepID == "" {
		return errors.New("step ID is required")
	}
	if m.ToContactID == "" {
		return errors.New("to contact is required")
	}
	if m.Operator == "" {
		return errors.New("operator is required")
	}
	return nil
}
