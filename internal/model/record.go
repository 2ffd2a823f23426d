package model

import (
	"errors"
	"time"
)

// MaintenanceRecordModel 维修记录数据模型
// 记录状态不落库,只保存关闭时间; Version 用于乐观锁
type MaintenanceRecordModel struct {
	ID                      string     `gorm:"primaryKey;type:varchar(64)"`
	EquipmentID             string     `gorm:"type:varchar(64);not null;index"` // 设备 ID(外部目录,不校验)
	InitialIssueDescription string     `gorm:"type:text;not null"`
	FinalDescription        string     `gorm:"type:text"`
	ExpectedCompletionDate  time.Time  `gorm:"not null"`
	ActualCompletionDate    *time.Time `gorm:"index"` // 非空即已关闭
	Version                 int        `gorm:"type:int;not null"`
	CreatedAt               time.Time  `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt               time.Time  `gorm:"not null;autoUpdateTime:false"`
	CreatedBy               string     `gorm:"type:varchar(64);index"`
}

// TableName 指定表名
func (MaintenanceRecordModel) TableName() string {
	return "maintenance_records"
}

// Validate 验证维修记录模型
func (m *MaintenanceRecordModel) Validate() error {
	if m.ID == "" {
		return errors.New("record ID is required")
	}
	if m.EquipmentID == "" {
		return errors.New("equipment ID is required")
	}
	if m.InitialIssueDescription == "" {
		return errors.New("initial issue description is required")
	}
	return nil
}
