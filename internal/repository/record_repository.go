package repository

import (
	"github.com/mautops/maintenance-gin/internal/model"
	"gorm.io/gorm"
)

// RecordRepository 维修记录仓储接口
type RecordRepository interface {
	Create(record *model.MaintenanceRecordModel) error
	FindByID(id string) (*model.MaintenanceRecordModel, error)
	FindByFilter(filter *RecordFilter) ([]*model.MaintenanceRecordModel, error)
	UpdateWithVersion(record *model.MaintenanceRecordModel, expectedVersion int) (bool, error)
	Delete(id string) error
}

// RecordFilter 维修记录查询过滤器
type RecordFilter struct {
	EquipmentID *string
	Closed      *bool
}

// recordRepository 维修记录仓储实现
type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository 创建维修记录仓储
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

// Create 新建记录
func (r *recordRepository) Create(record *model.MaintenanceRecordModel) error {
	return r.db.Create(record).Error
}

// FindByID 根据 ID 查找记录
func (r *recordRepository) FindByID(id string) (*model.MaintenanceRecordModel, error) {
	var record model.MaintenanceRecordModel
	if err := r.db.Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByFilter 根据过滤器查找记录
func (r *recordRepository) FindByFilter(filter *RecordFilter) ([]*model.MaintenanceRecordModel, error) {
	var records []*model.MaintenanceRecordModel
	query := r.db.Model(&model.MaintenanceRecordModel{})

	if filter != nil {
		if filter.EquipmentID != nil {
			query = query.Where("equipment_id = ?", *filter.EquipmentID)
		}
		if filter.Closed != nil {
			if *filter.Closed {
				query = query.Where("actual_completion_date IS NOT NULL")
			} else {
				query = query.Where("actual_completion_date IS NULL")
			}
		}
	}

	err := query.Order("created_at DESC").Order("id").Find(&records).Error
	return records, err
}

// UpdateWithVersion 按版本号更新记录
// 版本号不匹配时返回 false,由调用方决定是否重试
func (r *recordRepository) UpdateWithVersion(record *model.MaintenanceRecordModel, expectedVersion int) (bool, error) {
	result := r.db.Model(&model.MaintenanceRecordModel{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]interface{}{
			"initial_issue_description": record.InitialIssueDescription,
			"final_description":         record.FinalDescription,
			"expected_completion_date":  record.ExpectedCompletionDate,
			"actual_completion_date":    record.ActualCompletionDate,
			"version":                   record.Version,
			"updated_at":                record.UpdatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Delete 删除记录
func (r *recordRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.MaintenanceRecordModel{}).Error
}
