package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/maintenance-gin/internal/integration"
	"github.com/mautops/maintenance-gin/internal/model"
	"github.com/mautops/maintenance-gin/internal/repository"
)

// AuditEntry 一次维修操作的审计内容
type AuditEntry struct {
	Action   string
	RecordID string
	StepID   string // 记录级操作为空
	Details  map[string]interface{}
}

// AuditLogView 审计日志对外视图
type AuditLogView struct {
	ID        string          `json:"id"`
	RecordID  string          `json:"recordId"`
	StepID    string          `json:"stepId,omitempty"`
	Action    string          `json:"action"`
	Operator  string          `json:"operator"`
	RequestID string          `json:"requestId,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// PageRequest 分页参数
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize 填充分页默认值
func (p *PageRequest) Normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

func (p *PageRequest) offset() int {
	return (p.Page - 1) * p.PageSize
}

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, entry *AuditEntry) error
	ListByRecord(ctx context.Context, recordID string, page *PageRequest) ([]AuditLogView, int64, error)
	ListByStep(ctx context.Context, stepID string, page *PageRequest) ([]AuditLogView, int64, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
	engine    *integration.WorkflowEngine
}

// NewAuditLogService 创建审计日志服务
// 日志时间取自引擎时钟,与状态历史保持一致
func NewAuditLogService(auditRepo repository.AuditLogRepository, engine *integration.WorkflowEngine) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
		engine:    engine,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(ctx context.Context, entry *AuditEntry) error {
	var details string
	if len(entry.Details) > 0 {
		raw, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		details = string(raw)
	}

	// 同一时刻的日志按 ID 排序,使用时间有序的 v7
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate audit log id: %w", err)
	}

	return s.auditRepo.Save(&model.AuditLogModel{
		ID:        id.String(),
		RecordID:  entry.RecordID,
		StepID:    entry.StepID,
		Action:    entry.Action,
		Operator:  operatorFromContext(ctx),
		RequestID: GetRequestID(ctx),
		IP:        GetClientIP(ctx),
		UserAgent: GetUserAgent(ctx),
		Details:   details,
		CreatedAt: s.engine.Now(),
	})
}

// ListByRecord 分页查询记录及其步骤的审计日志
// 记录删除后日志仍可查询; 既无日志也无记录时返回 NotFound
func (s *auditLogService) ListByRecord(ctx context.Context, recordID string, page *PageRequest) ([]AuditLogView, int64, error) {
	if page == nil {
		page = &PageRequest{}
	}
	page.Normalize()
	logs, total, err := s.auditRepo.ListByRecord(recordID, page.offset(), page.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	if total == 0 {
		if _, err := s.engine.GetRecord(ctx, recordID); err != nil {
			return nil, 0, err
		}
	}
	return auditViews(logs), total, nil
}

// ListByStep 分页查询步骤的审计日志
func (s *auditLogService) ListByStep(ctx context.Context, stepID string, page *PageRequest) ([]AuditLogView, int64, error) {
	if page == nil {
		page = &PageRequest{}
	}
	page.Normalize()
	logs, total, err := s.auditRepo.ListByStep(stepID, page.offset(), page.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	if total == 0 {
		if _, err := s.engine.GetStep(ctx, stepID); err != nil {
			return nil, 0, err
		}
	}
	return auditViews(logs), total, nil
}

func auditViews(logs []*model.AuditLogModel) []AuditLogView {
	views := make([]AuditLogView, 0, len(logs))
	for _, l := range logs {
		v := AuditLogView{
			ID:        l.ID,
			RecordID:  l.RecordID,
			StepID:    l.StepID,
			Action:    l.Action,
			Operator:  l.Operator,
			RequestID: l.RequestID,
			CreatedAt: l.CreatedAt,
		}
		if l.Details != "" {
			v.Details = json.RawMessage(l.Details)
		}
		views = append(views, v)
	}
	return views
}
