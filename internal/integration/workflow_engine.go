package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/maintenance-gin/internal/maintenance"
	"github.com/mautops/maintenance-gin/internal/metrics"
	"github.com/mautops/maintenance-gin/internal/model"
	"github.com/mautops/maintenance-gin/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultMaxRetries 版本冲突时的默认重试次数
const DefaultMaxRetries = 3

var errVersionConflict = errors.New("record version conflict")

// Clock 时间来源,测试中注入固定时间
type Clock func() time.Time

// EngineOptions 工作流引擎配置
type EngineOptions struct {
	MaxRetries int
	Clock      Clock
	Logger     *logrus.Logger
}

// RecordQuery 记录查询条件
type RecordQuery struct {
	Status      *maintenance.RecordStatus
	EquipmentID *string
}

// WorkflowEngine 维修工作流引擎
// 记录与步骤状态的唯一写入方。同一记录的变更在进程内串行,
// 跨进程依靠记录版本号做乐观锁,冲突时整体重试。
type WorkflowEngine struct {
	db         *gorm.DB
	locks      *recordLocks
	maxRetries int
	clock      Clock
	logger     *logrus.Logger

	// beforeWrite 在写回记录前调用,仅用于测试并发冲突
	beforeWrite func(tx *gorm.DB, recordID string)
}

// NewWorkflowEngine 创建工作流引擎
func NewWorkflowEngine(db *gorm.DB, opts EngineOptions) *WorkflowEngine {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &WorkflowEngine{
		db:         db,
		locks:      newRecordLocks(),
		maxRetries: opts.MaxRetries,
		clock:      opts.Clock,
		logger:     opts.Logger,
	}
}

// Now 当前时间
func (e *WorkflowEngine) Now() time.Time {
	return e.clock()
}

// session 绑定请求上下文,gorm 自动填充的时间戳同样取自引擎时钟
func (e *WorkflowEngine) session(ctx context.Context) *gorm.DB {
	return e.db.WithContext(ctx).Session(&gorm.Session{NowFunc: e.clock})
}

// CreateRecord 创建维修记录
func (e *WorkflowEngine) CreateRecord(ctx context.Context, equipmentID, issue string, expectedCompletion time.Time, operator string) (*maintenance.Record, error) {
	now := e.clock()
	rec, err := maintenance.NewRecord(uuid.NewString(), equipmentID, issue, expectedCompletion, now)
	if err != nil {
		return nil, err
	}
	rec.Version = 1

	m := toRecordModel(rec)
	m.CreatedBy = operator
	if err := repository.NewRecordRepository(e.session(ctx)).Create(m); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	metrics.RecordRecordCreated()
	e.logger.WithFields(logrus.Fields{
		"record_id":    rec.ID,
		"equipment_id": rec.EquipmentID,
		"operator":     operator,
	}).Info("maintenance record created")
	return rec, nil
}

// UpdateRecord 修改记录的问题描述或预计完成时间
func (e *WorkflowEngine) UpdateRecord(ctx context.Context, recordID string, issue *string, expectedCompletion *time.Time, operator string) (*maintenance.Record, error) {
	return e.mutate(ctx, recordID, operator, func(r *maintenance.Record, now time.Time) error {
		return r.UpdateDetails(issue, expectedCompletion, now)
	})
}

// DeleteRecord 删除没有任何步骤的记录
func (e *WorkflowEngine) DeleteRecord(ctx context.Context, recordID string, operator string) error {
	unlock := e.locks.Lock(recordID)
	defer unlock()

	return e.session(ctx).Transaction(func(tx *gorm.DB) error {
		records := repository.NewRecordRepository(tx)
		if _, err := records.FindByID(recordID); err != nil {
			return recordLookupError(recordID, err)
		}
		count, err := repository.NewStepRepository(tx).CountByRecordID(recordID)
		if err != nil {
			return fmt.Errorf("failed to count steps: %w", err)
		}
		if count > 0 {
			return maintenance.Conflictf("record %s has %d steps and cannot be deleted", recordID, count)
		}
		if err := records.Delete(recordID); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		e.logger.WithFields(logrus.Fields{"record_id": recordID, "operator": operator}).Info("maintenance record deleted")
		return nil
	})
}

// AddStep 向记录追加步骤
func (e *WorkflowEngine) AddStep(ctx context.Context, recordID string, in *maintenance.StepInput, operator string) (*maintenance.Record, *maintenance.Step, error) {
	var step *maintenance.Step
	rec, err := e.mutate(ctx, recordID, operator, func(r *maintenance.Record, now time.Time) error {
		var err error
		step, err = r.AddStep(uuid.NewString(), in, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, step, nil
}

// UpdateStep 修改步骤,更换责任人即交接
func (e *WorkflowEngine) UpdateStep(ctx context.Context, stepID string, in *maintenance.StepInput, operator string) (*maintenance.Record, *maintenance.Step, error) {
	return e.mutateStep(ctx, stepID, operator, func(r *maintenance.Record, now time.Time) (*maintenance.Step, error) {
		return r.UpdateStep(stepID, in, now)
	})
}

// MarkFinal 标记最终步骤
func (e *WorkflowEngine) MarkFinal(ctx context.Context, stepID string, operator string) (*maintenance.Record, *maintenance.Step, error) {
	return e.mutateStep(ctx, stepID, operator, func(r *maintenance.Record, now time.Time) (*maintenance.Step, error) {
		return r.MarkFinal(stepID, now)
	})
}

// UnmarkFinal 取消最终步骤标记
func (e *WorkflowEngine) UnmarkFinal(ctx context.Context, stepID string, operator string) (*maintenance.Record, *maintenance.Step, error) {
	return e.mutateStep(ctx, stepID, operator, func(r *maintenance.Record, now time.Time) (*maintenance.Step, error) {
		return r.UnmarkFinal(stepID, now)
	})
}

// CompleteStep 完成步骤,最终步骤完成时关闭记录
func (e *WorkflowEngine) CompleteStep(ctx context.Context, stepID string, finalDescription string, operator string) (*maintenance.Record, *maintenance.Step, error) {
	return e.mutateStep(ctx, stepID, operator, func(r *maintenance.Record, now time.Time) (*maintenance.Step, error) {
		return r.CompleteStep(stepID, finalDescription, now)
	})
}

// DeleteStep 删除未完成的步骤
func (e *WorkflowEngine) DeleteStep(ctx context.Context, stepID string, operator string) (*maintenance.Record, error) {
	recordID, err := e.recordIDForStep(ctx, stepID)
	if err != nil {
		return nil, err
	}
	return e.mutate(ctx, recordID, operator, func(r *maintenance.Record, now time.Time) error {
		return r.RemoveStep(stepID, now)
	})
}

// GetRecord 获取记录及其步骤
func (e *WorkflowEngine) GetRecord(ctx context.Context, recordID string) (*maintenance.Record, error) {
	return e.loadRecord(e.session(ctx), recordID)
}

// ListSteps 按插入顺序列出记录的步骤
func (e *WorkflowEngine) ListSteps(ctx context.Context, recordID string) ([]*maintenance.Step, error) {
	rec, err := e.loadRecord(e.session(ctx), recordID)
	if err != nil {
		return nil, err
	}
	return rec.Steps, nil
}

// GetStep 获取步骤
func (e *WorkflowEngine) GetStep(ctx context.Context, stepID string) (*maintenance.Step, error) {
	m, err := repository.NewStepRepository(e.session(ctx)).FindByID(stepID)
	if err != nil {
		return nil, stepLookupError(stepID, err)
	}
	return toStep(m), nil
}

// ListRecords 按条件列出记录
// 状态在查询时推导,已关闭状态可以直接在数据库过滤
func (e *WorkflowEngine) ListRecords(ctx context.Context, query *RecordQuery) ([]*maintenance.Record, error) {
	db := e.session(ctx)
	filter := &repository.RecordFilter{}
	if query != nil {
		filter.EquipmentID = query.EquipmentID
		if query.Status != nil {
			closed := *query.Status == maintenance.RecordStatusCompleted
			filter.Closed = &closed
		}
	}

	models, err := repository.NewRecordRepository(db).FindByFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	if len(models) == 0 {
		return []*maintenance.Record{}, nil
	}

	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	stepModels, err := repository.NewStepRepository(db).FindByRecordIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	byRecord := make(map[string][]*model.MaintenanceStepModel, len(models))
	for _, s := range stepModels {
		byRecord[s.RecordID] = append(byRecord[s.RecordID], s)
	}

	now := e.clock()
	records := make([]*maintenance.Record, 0, len(models))
	for _, m := range models {
		rec := toRecord(m, byRecord[m.ID])
		if query != nil && query.Status != nil && rec.Status(now) != *query.Status {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// CountByStatus 统计各状态的记录数
func (e *WorkflowEngine) CountByStatus(ctx context.Context) (map[string]int, error) {
	records, err := e.ListRecords(ctx, nil)
	if err != nil {
		return nil, err
	}
	now := e.clock()
	counts := make(map[string]int)
	for _, r := range records {
		counts[string(r.Status(now))]++
	}
	return counts, nil
}

// ListHandoffs 列出步骤的交接记录
func (e *WorkflowEngine) ListHandoffs(ctx context.Context, stepID string) ([]*maintenance.HandoffEvent, error) {
	db := e.session(ctx)
	if _, err := repository.NewStepRepository(db).FindByID(stepID); err != nil {
		return nil, stepLookupError(stepID, err)
	}
	models, err := repository.NewHandoffRepository(db).FindByStepID(stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query handoffs: %w", err)
	}
	events := make([]*maintenance.HandoffEvent, 0, len(models))
	for _, m := range models {
		events = append(events, toHandoff(m))
	}
	return events, nil
}

// History 列出记录的状态历史
func (e *WorkflowEngine) History(ctx context.Context, recordID string) ([]*maintenance.Transition, error) {
	db := e.session(ctx)
	if _, err := repository.NewRecordRepository(db).FindByID(recordID); err != nil {
		return nil, recordLookupError(recordID, err)
	}
	models, err := repository.NewStateHistoryRepository(db).FindByRecordID(recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query state history: %w", err)
	}
	transitions := make([]*maintenance.Transition, 0, len(models))
	for _, m := range models {
		transitions = append(transitions, toTransition(m))
	}
	return transitions, nil
}

func (e *WorkflowEngine) mutateStep(
	ctx context.Context,
	stepID string,
	operator string,
	apply func(r *maintenance.Record, now time.Time) (*maintenance.Step, error),
) (*maintenance.Record, *maintenance.Step, error) {
	recordID, err := e.recordIDForStep(ctx, stepID)
	if err != nil {
		return nil, nil, err
	}
	var step *maintenance.Step
	rec, err := e.mutate(ctx, recordID, operator, func(r *maintenance.Record, now time.Time) error {
		var err error
		step, err = apply(r, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return rec, step, nil
}

// mutate 在记录锁与事务内执行一次聚合变更
func (e *WorkflowEngine) mutate(ctx context.Context, recordID, operator string, apply func(r *maintenance.Record, now time.Time) error) (*maintenance.Record, error) {
	unlock := e.locks.Lock(recordID)
	defer unlock()

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			metrics.RecordVersionRetry()
			e.logger.WithFields(logrus.Fields{
				"record_id": recordID,
				"attempt":   attempt,
			}).Warn("record version conflict, retrying")
		}

		rec, events, err := e.mutateOnce(ctx, recordID, operator, apply)
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		e.observe(rec, events, operator)
		return rec, nil
	}
	return nil, maintenance.Conflictf("record %s was modified concurrently, retry later", recordID)
}

func (e *WorkflowEngine) mutateOnce(ctx context.Context, recordID, operator string, apply func(r *maintenance.Record, now time.Time) error) (*maintenance.Record, []maintenance.Event, error) {
	var (
		result *maintenance.Record
		events []maintenance.Event
	)
	err := e.session(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := e.loadRecord(tx, recordID)
		if err != nil {
			return err
		}
		original := make(map[string]bool, len(rec.Steps))
		for _, s := range rec.Steps {
			original[s.ID] = true
		}

		now := e.clock()
		expected := rec.Version
		if err := apply(rec, now); err != nil {
			return err
		}

		if e.beforeWrite != nil {
			e.beforeWrite(tx, recordID)
		}

		rec.Version = expected + 1
		ok, err := repository.NewRecordRepository(tx).UpdateWithVersion(toRecordModel(rec), expected)
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
		if !ok {
			return errVersionConflict
		}

		events = rec.PullEvents()
		if err := e.persist(tx, rec, original, events, operator, now); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// persist 写回变更的步骤、删除移除的步骤,并追加状态历史与交接记录
func (e *WorkflowEngine) persist(tx *gorm.DB, rec *maintenance.Record, original map[string]bool, events []maintenance.Event, operator string, now time.Time) error {
	steps := repository.NewStepRepository(tx)
	current := make(map[string]bool, len(rec.Steps))
	for _, s := range rec.Steps {
		current[s.ID] = true
		if original[s.ID] && !s.UpdatedAt.Equal(now) {
			continue
		}
		if err := steps.Save(toStepModel(s)); err != nil {
			return fmt.Errorf("failed to save step: %w", err)
		}
	}
	for id := range original {
		if current[id] {
			continue
		}
		if err := steps.Delete(id); err != nil {
			return fmt.Errorf("failed to delete step: %w", err)
		}
	}

	histories := repository.NewStateHistoryRepository(tx)
	handoffs := repository.NewHandoffRepository(tx)
	for _, evt := range events {
		err := histories.Save(&model.StateHistoryModel{
			ID:        newOrderedID(),
			RecordID:  rec.ID,
			StepID:    evt.StepID,
			Event:     string(evt.Kind),
			FromState: evt.FromState,
			ToState:   evt.ToState,
			Reason:    evt.Reason,
			Operator:  operator,
			CreatedAt: evt.At,
		})
		if err != nil {
			return fmt.Errorf("failed to save state history: %w", err)
		}

		if evt.Handoff == nil {
			continue
		}
		h := evt.Handoff
		err = handoffs.Save(&model.HandoffEventModel{
			ID:              newOrderedID(),
			RecordID:        h.RecordID,
			StepID:          h.StepID,
			FromContactID:   h.From.ContactID,
			FromContactName: h.From.DisplayName,
			ToContactID:     h.To.ContactID,
			ToContactName:   h.To.DisplayName,
			Reason:          h.Reason,
			Operator:        operator,
			CreatedAt:       h.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to save handoff: %w", err)
		}
	}
	return nil
}

// observe 事务提交后记录指标与日志
func (e *WorkflowEngine) observe(rec *maintenance.Record, events []maintenance.Event, operator string) {
	for _, evt := range events {
		metrics.RecordStepEvent(string(evt.Kind))
		if evt.Kind == maintenance.EventRecordClosed {
			metrics.RecordRecordClosed()
		}
		e.logger.WithFields(logrus.Fields{
			"record_id":  rec.ID,
			"step_id":    evt.StepID,
			"event":      evt.Kind,
			"from_state": evt.FromState,
			"to_state":   evt.ToState,
			"operator":   operator,
			"version":    rec.Version,
		}).Info("maintenance transition")
	}
}

func (e *WorkflowEngine) loadRecord(db *gorm.DB, recordID string) (*maintenance.Record, error) {
	m, err := repository.NewRecordRepository(db).FindByID(recordID)
	if err != nil {
		return nil, recordLookupError(recordID, err)
	}
	steps, err := repository.NewStepRepository(db).FindByRecordID(recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}
	return toRecord(m, steps), nil
}

func (e *WorkflowEngine) recordIDForStep(ctx context.Context, stepID string) (string, error) {
	m, err := repository.NewStepRepository(e.session(ctx)).FindByID(stepID)
	if err != nil {
		return "", stepLookupError(stepID, err)
	}
	return m.RecordID, nil
}

func recordLookupError(recordID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return maintenance.NotFoundf("record %s not found", recordID)
	}
	return fmt.Errorf("failed to load record: %w", err)
}

func stepLookupError(stepID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return maintenance.NotFoundf("step %s not found", stepID)
	}
	return fmt.Errorf("failed to load step: %w", err)
}

// newOrderedID 生成按时间递增的 ID,同一时刻写入的历史仍保持顺序
func newOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
