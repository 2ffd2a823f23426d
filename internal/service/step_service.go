package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/maintenance-gin/internal/contact"
	"github.com/mautops/maintenance-gin/internal/integration"
	"github.com/mautops/maintenance-gin/internal/maintenance"
	"github.com/mautops/maintenance-gin/internal/metrics"
	"github.com/shopspring/decimal"
)

// StepService 维修步骤服务接口
type StepService interface {
	Add(ctx context.Context, recordID string, req *StepRequest) (*maintenance.RecordView, error)
	Get(ctx context.Context, stepID string) (*maintenance.StepView, error)
	ListByRecord(ctx context.Context, recordID string) ([]maintenance.StepView, error)
	Update(ctx context.Context, stepID string, req *StepRequest) (*maintenance.RecordView, error)
	MarkFinal(ctx context.Context, stepID string) (*maintenance.RecordView, error)
	UnmarkFinal(ctx context.Context, stepID string) (*maintenance.RecordView, error)
	Complete(ctx context.Context, stepID string, req *CompleteStepRequest) (*maintenance.RecordView, error)
	Delete(ctx context.Context, stepID string) (*maintenance.RecordView, error)
	Handoffs(ctx context.Context, stepID string) ([]*maintenance.HandoffEvent, error)
}

// StepRequest 创建/修改步骤请求
type StepRequest struct {
	StepType             string           `json:"stepType" binding:"required"`             // 步骤类型
	Description          string           `json:"description" binding:"required"`          // 步骤描述
	ResponsibleContactID string           `json:"responsibleContactId" binding:"required"` // 责任人联系人 ID
	FromLocation         string           `json:"fromLocation" binding:"required"`
	ToLocation           string           `json:"toLocation" binding:"required"`
	StartDate            time.Time        `json:"startDate"`
	ExpectedEndDate      time.Time        `json:"expectedEndDate"`
	StepCost             *decimal.Decimal `json:"stepCost"` // 缺省为 0
	Notes                string           `json:"notes"`
	HandoffReason        string           `json:"handoffReason"` // 更换责任人时的原因
}

// CompleteStepRequest 完成步骤请求
type CompleteStepRequest struct {
	FinalDescription string `json:"finalDescription"` // 完成最终步骤时写入记录
}

// stepService 维修步骤服务实现
type stepService struct {
	engine      *integration.WorkflowEngine
	contacts    contact.Directory
	auditLogSvc AuditLogService
	opts        ServiceOptions
}

// NewStepService 创建维修步骤服务
func NewStepService(engine *integration.WorkflowEngine, contacts contact.Directory, auditLogSvc AuditLogService, opts ServiceOptions) StepService {
	return &stepService{
		engine:      engine,
		contacts:    contacts,
		auditLogSvc: auditLogSvc,
		opts:        opts.withDefaults(),
	}
}

// Add 添加步骤
func (s *stepService) Add(ctx context.Context, recordID string, req *StepRequest) (*maintenance.RecordView, error) {
	responsible, err := s.resolveResponsible(ctx, req.ResponsibleContactID)
	if err != nil {
		return nil, err
	}
	in, err := req.toInput(responsible)
	if err != nil {
		return nil, err
	}

	rec, step, err := s.engine.AddStep(ctx, recordID, in, operatorFromContext(ctx))
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, &AuditEntry{
		Action:   "create",
		RecordID: rec.ID,
		StepID:   step.ID,
		Details: map[string]interface{}{
			"step_type":   step.Type,
			"responsible": step.Responsible.ContactID,
		},
	})
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// Get 获取步骤
func (s *stepService) Get(ctx context.Context, stepID string) (*maintenance.StepView, error) {
	step, err := s.engine.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	v := step.View(s.engine.Now(), s.opts.FollowUpAfter)
	return &v, nil
}

// ListByRecord 按插入顺序列出记录的步骤
func (s *stepService) ListByRecord(ctx context.Context, recordID string) ([]maintenance.StepView, error) {
	steps, err := s.engine.ListSteps(ctx, recordID)
	if err != nil {
		return nil, err
	}
	now := s.engine.Now()
	views := make([]maintenance.StepView, 0, len(steps))
	for _, step := range steps {
		views = append(views, step.View(now, s.opts.FollowUpAfter))
	}
	return views, nil
}

// Update 修改步骤
// 责任人未变化时沿用分配时解析的联系人信息,不再重新解析
func (s *stepService) Update(ctx context.Context, stepID string, req *StepRequest) (*maintenance.RecordView, error) {
	current, err := s.engine.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if current.IsCompleted {
		return nil, maintenance.Conflictf("step %s is already completed", stepID)
	}

	responsible := current.Responsible
	handoff := strings.TrimSpace(req.ResponsibleContactID) != current.Responsible.ContactID
	if handoff {
		responsible, err = s.resolveResponsible(ctx, req.ResponsibleContactID)
		if err != nil {
			return nil, err
		}
	}
	in, err := req.toInput(responsible)
	if err != nil {
		return nil, err
	}

	rec, step, err := s.engine.UpdateStep(ctx, stepID, in, operatorFromContext(ctx))
	if err != nil {
		return nil, err
	}

	entry := &AuditEntry{Action: "update", RecordID: rec.ID, StepID: step.ID}
	if handoff {
		entry.Action = "handoff"
		entry.Details = map[string]interface{}{
			"from":   current.Responsible.ContactID,
			"to":     step.Responsible.ContactID,
			"reason": req.HandoffReason,
		}
	}
	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, entry)
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// MarkFinal 标记最终步骤
func (s *stepService) MarkFinal(ctx context.Context, stepID string) (*maintenance.RecordView, error) {
	rec, _, err := s.engine.MarkFinal(ctx, stepID, operatorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, &AuditEntry{Action: "mark_final", RecordID: rec.ID, StepID: stepID})
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// UnmarkFinal 取消最终步骤标记
func (s *stepService) UnmarkFinal(ctx context.Context, stepID string) (*maintenance.RecordView, error) {
	rec, _, err := s.engine.UnmarkFinal(ctx, stepID, operatorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, &AuditEntry{Action: "unmark_final", RecordID: rec.ID, StepID: stepID})
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// Complete 完成步骤
func (s *stepService) Complete(ctx context.Context, stepID string, req *CompleteStepRequest) (*maintenance.RecordView, error) {
	finalDescription := ""
	if req != nil {
		finalDescription = req.FinalDescription
	}
	rec, step, err := s.engine.CompleteStep(ctx, stepID, finalDescription, operatorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, &AuditEntry{
		Action:   "complete",
		RecordID: rec.ID,
		StepID:   stepID,
		Details: map[string]interface{}{
			"final_step":    step.IsFinalStep,
			"record_closed": rec.IsClosed(),
		},
	})
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// Delete 删除步骤
func (s *stepService) Delete(ctx context.Context, stepID string) (*maintenance.RecordView, error) {
	rec, err := s.engine.DeleteStep(ctx, stepID, operatorFromContext(ctx))
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.auditLogSvc, s.opts.Logger, &AuditEntry{Action: "delete", RecordID: rec.ID, StepID: stepID})
	return viewOf(rec, s.engine.Now(), s.opts.FollowUpAfter), nil
}

// Handoffs 列出步骤的交接记录
func (s *stepService) Handoffs(ctx context.Context, stepID string) ([]*maintenance.HandoffEvent, error) {
	return s.engine.ListHandoffs(ctx, stepID)
}

// resolveResponsible 在分配时从通讯录解析责任人
func (s *stepService) resolveResponsible(ctx context.Context, contactID string) (maintenance.Responsible, error) {
	id := strings.TrimSpace(contactID)
	if id == "" {
		return maintenance.Responsible{}, maintenance.Validationf("responsible contact is required")
	}

	c, err := s.contacts.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			metrics.RecordContactResolution("not_found")
			return maintenance.Responsible{}, maintenance.Validationf("responsible contact %s not found", id)
		}
		metrics.RecordContactResolution("error")
		return maintenance.Responsible{}, fmt.Errorf("failed to resolve contact %s: %w", id, err)
	}

	metrics.RecordContactResolution("ok")
	return maintenance.Responsible{
		ContactID:   id,
		DisplayName: c.DisplayName,
		Phone:       c.Phone,
		Email:       c.Email,
	}, nil
}

func (req *StepRequest) toInput(responsible maintenance.Responsible) (*maintenance.StepInput, error) {
	stepType, err := maintenance.ParseStepType(req.StepType)
	if err != nil {
		return nil, err
	}
	cost := decimal.Zero
	if req.StepCost != nil {
		cost = *req.StepCost
	}
	return &maintenance.StepInput{
		Type:            stepType,
		Description:     req.Description,
		Responsible:     responsible,
		FromLocation:    req.FromLocation,
		ToLocation:      req.ToLocation,
		StartDate:       req.StartDate,
		ExpectedEndDate: req.ExpectedEndDate,
		Cost:            cost,
		Notes:           req.Notes,
		HandoffReason:   req.HandoffReason,
	}, nil
}
