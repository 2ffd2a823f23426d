package repository

import (
	"github.com/mautops/maintenance-gin/internal/model"
	"gorm.io/gorm"
)

// StepRepository 维修步骤仓储接口
type StepRepository interface {
	Save(step *model.MaintenanceStepModel) error
	FindByID(id string) (*model.MaintenanceStepModel, error)
	FindByRecordID(recordID string) ([]*model.MaintenanceStepModel, error)
	FindByRecordIDs(recordIDs []string) ([]*model.MaintenanceStepModel, error)
	CountByRecordID(recordID string) (int64, error)
	Delete(id string) error
}

// stepRepository 维修步骤仓储实现
type stepRepository struct {
	db *gorm.DB
}

// NewStepRepository 创建维修步骤仓储
func NewStepRepository(db *gorm.DB) StepRepository {
	return &stepRepository{db: db}
}

// Save 保存步骤(不存在则插入)
func (r *stepRepository) Save(step *model.MaintenanceStepModel) error {
	return r.db.Save(step).Error
}

// FindByID 根据 ID 查找步骤
func (r *stepRepository) FindByID(id string) (*model.MaintenanceStepModel, error) {
	var step model.MaintenanceStepModel
	if err := r.db.Where("id = ?", id).First(&step).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

// FindByRecordID 按插入顺序查找记录下的步骤
func (r *stepRepository) FindByRecordID(recordID string) ([]*model.MaintenanceStepModel, error) {
	var steps []*model.MaintenanceStepModel
	err := r.db.Where("record_id = ?", recordID).Order("sequence ASC").Find(&steps).Error
	return steps, err
}

// FindByRecordIDs 批量查找多个记录的步骤
func (r *stepRepository) FindByRecordIDs(recordIDs []string) ([]*model.MaintenanceStepModel, error) {
	var steps []*model.MaintenanceStepModel
	if len(recordIDs) == 0 {
		return steps, nil
	}
	err := r.db.Where("record_id IN ?", recordIDs).Order("record_id").Order("sequence ASC").Find(&steps).Error
	return steps, err
}

// CountByRecordID 统计记录下的步骤数
func (r *stepRepository) CountByRecordID(recordID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.MaintenanceStepModel{}).Where("record_id = ?", recordID).Count(&count).Error
	return count, err
}

// Delete 删除步骤
func (r *stepRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.MaintenanceStepModel{}).Error
}
