package repository

import (
	"github.com/mautops/maintenance-gin/internal/model"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓储接口
type AuditLogRepository interface {
	Save(log *model.AuditLogModel) error
	ListByRecord(recordID string, offset, limit int) ([]*model.AuditLogModel, int64, error)
	ListByStep(stepID string, offset, limit int) ([]*model.AuditLogModel, int64, error)
}

// auditLogRepository 审计日志仓储实现
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Save 保存审计日志
func (r *auditLogRepository) Save(log *model.AuditLogModel) error {
	if err := log.Validate(); err != nil {
		return err
	}
	return r.db.Create(log).Error
}

// ListByRecord 分页查询记录及其步骤的审计日志,按发生时间升序
func (r *auditLogRepository) ListByRecord(recordID string, offset, limit int) ([]*model.AuditLogModel, int64, error) {
	return r.page(r.db.Where("record_id = ?", recordID), offset, limit)
}

// ListByStep 分页查询单个步骤的审计日志
func (r *auditLogRepository) ListByStep(stepID string, offset, limit int) ([]*model.AuditLogModel, int64, error) {
	return r.page(r.db.Where("step_id = ?", stepID), offset, limit)
}

func (r *auditLogRepository) page(query *gorm.DB, offset, limit int) ([]*model.AuditLogModel, int64, error) {
	query = query.Model(&model.AuditLogModel{}).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []*model.AuditLogModel
	if total == 0 || int64(offset) >= total {
		return logs, total, nil
	}
	err := query.Order("created_at ASC").Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&logs).Error
	return logs, total, err
}
