package repository

import (
	"github.com/mautops/maintenance-gin/internal/model"
	"gorm.io/gorm"
)

// HandoffRepository 交接记录仓储接口
type HandoffRepository interface {
	Save(event *model.HandoffEventModel) error
	FindByStepID(stepID string) ([]*model.HandoffEventModel, error)
}

// handoffRepository 交接记录仓储实现
type handoffRepository struct {
	db *gorm.DB
}

// NewHandoffRepository 创建交接记录仓储
func NewHandoffRepository(db *gorm.DB) HandoffRepository {
	return &handoffRepository{db: db}
}

// Save 保存交接记录
func (r *handoffRepository) Save(event *model.HandoffEventModel) error {
	return r.db.Create(event).Error
}

// FindByStepID 根据步骤 ID 查找交接记录
func (r *handoffRepository) FindByStepID(stepID string) ([]*model.HandoffEventModel, error) {
	var events []*model.HandoffEventModel
	err := r.db.Where("step_id = ?", stepID).Order("created_at ASC").Find(&events).Error
	return events, err
}
