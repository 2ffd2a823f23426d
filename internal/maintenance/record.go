package maintenance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const openState = "OPEN"

// Record 维修记录聚合根
// 状态只有两种形态: 未关闭(子状态由步骤推导) 与 已关闭(记录关闭时间)。
// closedAt 只能被最终步骤完成时写入一次,之后任何步骤变更都不会清除它。
type Record struct {
	ID                      string
	EquipmentID             string
	InitialIssueDescription string
	FinalDescription        string
	ExpectedCompletionDate  time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
	Version                 int
	Steps                   []*Step

	closedAt *time.Time
	events   []Event
}

// NewRecord 创建维修记录
func NewRecord(id, equipmentID, issue string, expectedCompletion time.Time, now time.Time) (*Record, error) {
	if strings.TrimSpace(equipmentID) == "" {
		return nil, Validationf("equipment id is required")
	}
	if strings.TrimSpace(issue) == "" {
		return nil, Validationf("initial issue description is required")
	}
	if expectedCompletion.IsZero() {
		return nil, Validationf("expected completion date is required")
	}
	return &Record{
		ID:                      id,
		EquipmentID:             strings.TrimSpace(equipmentID),
		InitialIssueDescription: strings.TrimSpace(issue),
		ExpectedCompletionDate:  expectedCompletion,
		CreatedAt:               now,
		UpdatedAt:               now,
		Steps:                   []*Step{},
	}, nil
}

// RestoreClosure 从持久化数据恢复关闭状态
// 只在记录尚未关闭时生效,不能用来清除已关闭状态
func (r *Record) RestoreClosure(at *time.Time) {
	if r.closedAt != nil || at == nil {
		return
	}
	t := *at
	r.closedAt = &t
}

// ActualCompletionDate 实际完成时间,未关闭时为 nil
func (r *Record) ActualCompletionDate() *time.Time {
	if r.closedAt == nil {
		return nil
	}
	t := *r.closedAt
	return &t
}

// IsClosed 记录是否已完成
func (r *Record) IsClosed() bool {
	return r.closedAt != nil
}

// Status 计算记录状态
func (r *Record) Status(now time.Time) RecordStatus {
	if r.closedAt != nil {
		return RecordStatusCompleted
	}
	active := false
	for _, s := range r.Steps {
		if s.IsOverdue(now) {
			return RecordStatusOverdue
		}
		if !s.IsCompleted {
			active = true
		}
	}
	if active {
		return RecordStatusActive
	}
	return RecordStatusScheduled
}

// TotalCost 所有现存步骤费用之和
func (r *Record) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Steps {
		total = total.Add(s.Cost)
	}
	return total
}

// DurationInDays 创建到 (实际完成 或 当前) 的整天数
func (r *Record) DurationInDays(now time.Time) int {
	end := now
	if r.closedAt != nil {
		end = *r.closedAt
	}
	if end.Before(r.CreatedAt) {
		return 0
	}
	return int(end.Sub(r.CreatedAt).Hours() / 24)
}

// StepCounts 返回 (已完成, 进行中, 总数)
func (r *Record) StepCounts() (completed, active, total int) {
	for _, s := range r.Steps {
		if s.IsCompleted {
			completed++
		} else {
			active++
		}
	}
	return completed, active, len(r.Steps)
}

// FinalStep 当前被标记为最终步骤的步骤
func (r *Record) FinalStep() *Step {
	for _, s := range r.Steps {
		if s.IsFinalStep {
			return s
		}
	}
	return nil
}

// Step 根据 ID 查找步骤
func (r *Record) Step(id string) *Step {
	for _, s := range r.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// PullEvents 取出并清空待持久化的领域事件
func (r *Record) PullEvents() []Event {
	events := r.events
	r.events = nil
	return events
}

func (r *Record) emit(e Event) {
	r.events = append(r.events, e)
}

func (r *Record) touch(now time.Time) {
	r.UpdatedAt = now
}

func (r *Record) nextSequence() int {
	highest := 0
	for _, s := range r.Steps {
		if s.Sequence > highest {
			highest = s.Sequence
		}
	}
	return highest + 1
}

func (r *Record) mustStep(id string) (*Step, error) {
	s := r.Step(id)
	if s == nil {
		return nil, NotFoundf("step %s not found in record %s", id, r.ID)
	}
	return s, nil
}

// UpdateDetails 修改记录的问题描述或预计完成时间,仅限未关闭的记录
func (r *Record) UpdateDetails(issue *string, expectedCompletion *time.Time, now time.Time) error {
	if r.IsClosed() {
		return Invariantf("record %s is already completed", r.ID)
	}
	if issue != nil {
		if strings.TrimSpace(*issue) == "" {
			return Validationf("initial issue description is required")
		}
		r.InitialIssueDescription = strings.TrimSpace(*issue)
	}
	if expectedCompletion != nil {
		if expectedCompletion.IsZero() {
			return Validationf("expected completion date is required")
		}
		r.ExpectedCompletionDate = *expectedCompletion
	}
	r.touch(now)
	return nil
}

// AddStep 追加步骤
func (r *Record) AddStep(id string, in *StepInput, now time.Time) (*Step, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if r.IsClosed() {
		return nil, Invariantf("record %s is already completed", r.ID)
	}
	s := &Step{
		ID:        id,
		RecordID:  r.ID,
		Sequence:  r.nextSequence(),
		CreatedAt: now,
	}
	s.apply(in, now)
	r.Steps = append(r.Steps, s)
	r.touch(now)
	r.emit(Event{Kind: EventStepCreated, StepID: s.ID, ToState: string(StepStateActive), At: now})
	return s, nil
}

// UpdateStep 修改未完成的步骤
// 责任人变化即为交接,会产生一条交接记录
func (r *Record) UpdateStep(id string, in *StepInput, now time.Time) (*Step, error) {
	s, err := r.mustStep(id)
	if err != nil {
		return nil, err
	}
	if s.IsCompleted {
		return nil, Conflictf("step %s is already completed", id)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	previous := s.Responsible
	s.apply(in, now)
	r.touch(now)
	r.emit(Event{Kind: EventStepUpdated, StepID: s.ID, FromState: string(StepStateActive), ToState: string(StepStateActive), At: now})

	if previous.ContactID != in.Responsible.ContactID {
		r.emit(Event{
			Kind:   EventHandoff,
			StepID: s.ID,
			Reason: in.HandoffReason,
			At:     now,
			Handoff: &HandoffEvent{
				RecordID:  r.ID,
				StepID:    s.ID,
				From:      previous,
				To:        in.Responsible,
				Reason:    in.HandoffReason,
				CreatedAt: now,
			},
		})
	}
	return s, nil
}

// MarkFinal 将步骤标记为最终步骤
// 同一记录最多一个最终步骤; 已是最终步骤时为空操作
func (r *Record) MarkFinal(id string, now time.Time) (*Step, error) {
	s, err := r.mustStep(id)
	if err != nil {
		return nil, err
	}
	if s.IsCompleted {
		return nil, Conflictf("step %s is already completed", id)
	}
	if s.IsFinalStep {
		return s, nil
	}
	if holder := r.FinalStep(); holder != nil {
		return nil, Conflictf("step %s is already the final step of record %s", holder.ID, r.ID)
	}
	s.IsFinalStep = true
	s.UpdatedAt = now
	r.touch(now)
	r.emit(Event{Kind: EventFinalMarked, StepID: s.ID, FromState: string(StepStateActive), ToState: string(StepStateActive), At: now})
	return s, nil
}

// UnmarkFinal 取消最终步骤标记,未标记时为空操作
func (r *Record) UnmarkFinal(id string, now time.Time) (*Step, error) {
	s, err := r.mustStep(id)
	if err != nil {
		return nil, err
	}
	if s.IsCompleted {
		return nil, Conflictf("step %s is already completed", id)
	}
	if !s.IsFinalStep {
		return s, nil
	}
	s.IsFinalStep = false
	s.UpdatedAt = now
	r.touch(now)
	r.emit(Event{Kind: EventFinalUnmarked, StepID: s.ID, FromState: string(StepStateActive), ToState: string(StepStateActive), At: now})
	return s, nil
}

// CompleteStep 完成步骤
// 完成最终步骤会关闭记录; finalDescription 仅在关闭记录时写入
func (r *Record) CompleteStep(id string, finalDescription string, now time.Time) (*Step, error) {
	s, err := r.mustStep(id)
	if err != nil {
		return nil, err
	}
	if s.IsCompleted {
		return nil, Conflictf("step %s is already completed", id)
	}
	end := now
	s.IsCompleted = true
	s.ActualEndDate = &end
	s.UpdatedAt = now
	r.touch(now)
	r.emit(Event{Kind: EventStepCompleted, StepID: s.ID, FromState: string(StepStateActive), ToState: string(StepStateCompleted), At: now})

	if s.IsFinalStep && !r.IsClosed() {
		closed := now
		r.closedAt = &closed
		if d := strings.TrimSpace(finalDescription); d != "" {
			r.FinalDescription = d
		}
		r.emit(Event{Kind: EventRecordClosed, StepID: s.ID, FromState: openState, ToState: string(RecordStatusCompleted), Reason: "final step completed", At: now})
	}
	return s, nil
}

// RemoveStep 删除未完成的步骤
func (r *Record) RemoveStep(id string, now time.Time) error {
	s, err := r.mustStep(id)
	if err != nil {
		return err
	}
	if s.IsCompleted {
		return Conflictf("step %s is completed and cannot be deleted", id)
	}
	steps := make([]*Step, 0, len(r.Steps)-1)
	for _, other := range r.Steps {
		if other.ID != id {
			steps = append(steps, other)
		}
	}
	r.Steps = steps
	r.touch(now)
	reason := ""
	if s.IsFinalStep {
		reason = "final step removed"
	}
	r.emit(Event{Kind: EventStepDeleted, StepID: id, FromState: string(StepStateActive), Reason: reason, At: now})
	return nil
}

// RecordView 记录的对外视图,所有汇总字段在读取时重新计算
type RecordView struct {
	ID                      string          `json:"id"`
	EquipmentID             string          `json:"equipmentId"`
	InitialIssueDescription string          `json:"initialIssueDescription"`
	FinalDescription        string          `json:"finalDescription,omitempty"`
	ExpectedCompletionDate  time.Time       `json:"expectedCompletionDate"`
	ActualCompletionDate    *time.Time      `json:"actualCompletionDate"`
	Status                  RecordStatus    `json:"status"`
	TotalCost               decimal.Decimal `json:"totalCost"`
	DurationInDays          int             `json:"durationInDays"`
	CompletedSteps          int             `json:"completedSteps"`
	ActiveSteps             int             `json:"activeSteps"`
	TotalSteps              int             `json:"totalSteps"`
	FinalStepID             string          `json:"finalStepId,omitempty"`
	Version                 int             `json:"version"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
	Steps                   []StepView      `json:"steps"`
}

// View 生成记录视图
func (r *Record) View(now time.Time, followUpAfter time.Duration) RecordView {
	completed, active, total := r.StepCounts()
	v := RecordView{
		ID:                      r.ID,
		EquipmentID:             r.EquipmentID,
		InitialIssueDescription: r.InitialIssueDescription,
		FinalDescription:        r.FinalDescription,
		ExpectedCompletionDate:  r.ExpectedCompletionDate,
		ActualCompletionDate:    r.ActualCompletionDate(),
		Status:                  r.Status(now),
		TotalCost:               r.TotalCost(),
		DurationInDays:          r.DurationInDays(now),
		CompletedSteps:          completed,
		ActiveSteps:             active,
		TotalSteps:              total,
		Version:                 r.Version,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
		Steps:                   make([]StepView, 0, len(r.Steps)),
	}
	if fs := r.FinalStep(); fs != nil {
		v.FinalStepID = fs.ID
	}
	for _, s := range r.Steps {
		v.Steps = append(v.Steps, s.View(now, followUpAfter))
	}
	return v
}
