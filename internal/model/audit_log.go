package model

import (
	"errors"
	"time"
)

// AuditLogModel 维修操作审计日志
// 步骤操作同时记录所属记录 ID,记录或步骤删除后日志仍保留
type AuditLogModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	RecordID  string    `gorm:"type:varchar(64);not null"`
	StepID    string    `gorm:"type:varchar(64)"`                // 记录级操作为空
	Action    string    `gorm:"type:varchar(32);not null;index"` // create/update/handoff/delete/complete/mark_final/unmark_final
	Operator  string    `gorm:"type:varchar(64);not null;index"`
	RequestID string    `gorm:"type:varchar(64)"`
	IP        string    `gorm:"type:varchar(45)"`
	UserAgent string    `gorm:"type:text"`
	Details   string    `gorm:"type:text"` // JSON
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "maintenance_audit_logs"
}

// IsStepAction 是否为步骤级操作
func (m *AuditLogModel) IsStepAction() bool {
	return m.StepID != ""
}

// Validate 验证审计日志模型
func (m *AuditLogModel) Validate() error {
	if m.ID == "" {
		return errors.New("audit log ID is required")
	}
	if m.RecordID == "" {
		return errors.New("record ID is required")
	}
	if m.Action == "" {
		return errors.New("action is required")
	}
	if m.Operator == "" {
		return errors.New("operator is required")
	}
	return nil
}
