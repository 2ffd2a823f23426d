package service

import (
	"context"
	"time"

	"github.com/mautops/maintenance-gin/internal/integration"
	"github.com/mautops/maintenance-gin/internal/maintenance"
	"github.com/sirupsen/logrus"
)

// RecordService 维修记录服务接口
type RecordService interface {
	Create(ctx context.Context, req *CreateRecordRequest) (*maintenance.RecordView, error)
	Get(ctx context.Context, id string) (*maintenance.RecordView, error)
	Update(ctx context.Context, id string, req *UpdateRecordRequest) (*maintenance.RecordView, error)
	Delete(ctx context.Context, id string) error
}

// CreateRecordRequest 创建维修记录请求
type CreateRecordRequest struct {
	EquipmentID             string    `json:"equipmentId" binding:"required"`             // 设备 ID
	InitialIssueDescription string    `json:"initialIssueDescription" binding:"required"` // 问题描述
	ExpectedCompletionDate  time.Time `json:"expectedCompletionDate" binding:"required"`  // 预计完成时间
}

// UpdateRecordRequest 修改维修记录请求,未提供的字段保持不变
type UpdateRecordRequest struct {
	InitialIssueDescription *string    `json:"initialIssueDescription"`
	ExpectedCompletionDate  *time.Time `json:"expectedCompletionDate"`
}

// ServiceOptions 服务公共配置
type ServiceOptions struct {
	FollowUpAfter time.Duration
	Logger        *logrus.Logger
}

func (o ServiceOptions) withDefaults() ServiceOptions {
	if o.FollowUpAfter <= 0 {
		o.FollowUpAfter = maintenance.DefaultFollowUpAfter
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// recordService 维修记录服务实现
type recordService struct {
	engine      *integration.WorkflowEngine
	auditLogSvc AuditLogService
	opts        ServiceOptions
}

// NewRecordService 创建维修记录服务
func NewRecordService(engine *integration.WorkflowEngine, auditLogSvc AuditLogService, opts ServiceOptions) RecordService {
	return &recordService{
		engine:      engine,
		auditLogSvc: auditLogSvc,
		opts:        opts.withDefaults(),
	}
}

// Create 创建维修记录
func (s *recordService) Create(ctx context.Context, req *CreateRecordRequest) (*maintenance.RecordView, error) {
	rec, err := s.engine.CreateRecord(ctx, req.EquipmentID, req.InitialIssueDescription, req.ExpectedCompletionDate, operatorFromContext(ctx))
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, &AuditEntry{
		Action:   "create",
		RecordID: rec.ID,
		Details:  map[string]interface{}{"equipment_id": rec.EquipmentID},
	})
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// Get 获取维修记录
func (s *recordService) Get(ctx context.Context, id string) (*maintenance.RecordView, error) {
	rec, err := s.engine.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// Update 修改维修记录
func (s *recordService) Update(ctx context.Context, id string, req *UpdateRecordRequest) (*maintenance.RecordView, error) {
	rec, err := s.engine.UpdateRecord(ctx, id, req.InitialIssueDescription, req.ExpectedCompletionDate, operatorFromContext(ctx))
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, &AuditEntry{
		Action:   "update",
		RecordID: rec.ID,
		Details:  map[string]interface{}{"version": rec.Version},
	})
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// Delete 删除没有步骤的维修记录
func (s *recordService) Delete(ctx context.Context, id string) error {
	if err := s.engine.DeleteRecord(ctx, id, operatorFromContext(ctx)); err != nil {
		return err
	}
	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, &AuditEntry{Action: "delete", RecordID: id})
	return nil
}

func viewOf(rec *maintenance.Record, now time.Time, followUpAfter time.Duration) *maintenance.RecordView {
	v := rec.View(now, followUpAfter)
	return &v
}

// recordAudit 写审计日志,失败只记录告警,不影响业务结果
func recordAudit(ctx context.Context, svc AuditLogService, logger *logrus.Logger, entry *AuditEntry) {
	if svc == nil {
		return
	}
	if err := svc.RecordAction(ctx, entry); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"action":    entry.Action,
			"record_id": entry.RecordID,
			"step_id":   entry.StepID,
		}).Warn("failed to record audit log")
	}
}
