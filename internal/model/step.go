package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MaintenanceStepModel 维修步骤数据模型
type MaintenanceStepModel struct {
	ID                   string          `gorm:"primaryKey;type:varchar(64)"`
	RecordID             string          `gorm:"type:varchar(64);not null;index"`
	Sequence             int             `gorm:"type:int;not null"` // 记录内的插入顺序
	StepType             string          `gorm:"type:varchar(32);not null"`
	Description          string          `gorm:"type:text;not null"`
	ResponsibleContactID string          `gorm:"type:varchar(64);not null;index"`
	ResponsibleName      string          `gorm:"type:varchar(255)"`
	ResponsiblePhone     string          `gorm:"type:varchar(64)"`
	ResponsibleEmail     string          `gorm:"type:varchar(255)"`
	FromLocation         string          `gorm:"type:varchar(255);not null"`
	ToLocation           string          `gorm:"type:varchar(255);not null"`
	StartDate            time.Time       `gorm:"not null"`
	ExpectedEndDate      time.Time       `gorm:"not null;index"`
	ActualEndDate        *time.Time
	Cost                 decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Notes                string          `gorm:"type:text"`
	IsCompleted          bool            `gorm:"not null;index"`
	IsFinalStep          bool            `gorm:"not null"`
	CreatedAt            time.Time       `gorm:"not null;autoCreateTime:false"` // 时间戳由引擎时钟写入
	UpdatedAt            time.Time       `gorm:"not null;autoUpdateTime:false"`
}

// TableName 指定表名
func (MaintenanceStepModel) TableName() string {
	return "maintenance_steps"
}

// Validate 验证维修步骤模型
func (m *MaintenanceStepModel) Validate() error {
	if m.ID == "" {
		return errors.New("step ID is required")
	}
	if m.RecordID == "" {
		return errors.New("record ID is required")
	}
	if m.StepType == "" {
		return errors.New("step type is required")
	}
	if m.ResponsibleContactID == "" {
		return errors.New("responsible contact is required")
	}
	if m.Cost.IsNegative() {
		return errors.New("cost must not be negative")
	}
	return nil
}
