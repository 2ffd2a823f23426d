package maintenance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultFollowUpAfter 步骤逾期且超过该时长无任何更新时视为需要跟进
const DefaultFollowUpAfter = 24 * time.Hour

// 费用与 decimal(14,2) 列保持一致
const costScale = 2

var maxStepCost = decimal.New(1, 12)

// Responsible 步骤责任人
// 在分配时从通讯录解析并冗余到步骤上,之后不再持续校验
type Responsible struct {
	ContactID   string `json:"responsibleContactId"`
	DisplayName string `json:"responsibleName"`
	Phone       string `json:"responsiblePhone,omitempty"`
	Email       string `json:"responsibleEmail,omitempty"`
}

// Step 维修步骤
type Step struct {
	ID              string
	RecordID        string
	Sequence        int
	Type            StepType
	Description     string
	Responsible     Responsible
	FromLocation    string
	ToLocation      string
	StartDate       time.Time
	ExpectedEndDate time.Time
	ActualEndDate   *time.Time
	Cost            decimal.Decimal
	Notes           string
	IsCompleted     bool
	IsFinalStep     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// State 返回步骤状态
func (s *Step) State() StepState {
	if s.IsCompleted {
		return StepStateCompleted
	}
	return StepStateActive
}

// IsOverdue 未完成且当前时间晚于预计结束时间
func (s *Step) IsOverdue(now time.Time) bool {
	return !s.IsCompleted && now.After(s.ExpectedEndDate)
}

// DurationInHours 开始到 (实际结束 或 当前) 的小时数
func (s *Step) DurationInHours(now time.Time) float64 {
	end := now
	if s.ActualEndDate != nil {
		end = *s.ActualEndDate
	}
	if end.Before(s.StartDate) {
		return 0
	}
	return end.Sub(s.StartDate).Hours()
}

// NeedsFollowUp 跟进提示(非权威)
// 步骤已逾期,且在 window 时长内没有任何更新(视为责任人无响应)
func (s *Step) NeedsFollowUp(now time.Time, window time.Duration) bool {
	if !s.IsOverdue(now) {
		return false
	}
	if window <= 0 {
		window = DefaultFollowUpAfter
	}
	return now.Sub(s.UpdatedAt) >= window
}

// StepInput 创建/更新步骤的输入
type StepInput struct {
	Type            StepType
	Description     string
	Responsible     Responsible
	FromLocation    string
	ToLocation      string
	StartDate       time.Time
	ExpectedEndDate time.Time
	Cost            decimal.Decimal
	Notes           string
	// HandoffReason 更换责任人时写入交接记录
	HandoffReason string
}

// Validate 校验步骤输入
func (in *StepInput) Validate() error {
	if !in.Type.Valid() {
		return Validationf("unknown step type %q", in.Type)
	}
	if strings.TrimSpace(in.Description) == "" {
		return Validationf("description is required")
	}
	if strings.TrimSpace(in.Responsible.ContactID) == "" {
		return Validationf("responsible contact is required")
	}
	if strings.TrimSpace(in.FromLocation) == "" {
		return Validationf("from location is required")
	}
	if strings.TrimSpace(in.ToLocation) == "" {
		return Validationf("to location is required")
	}
	if in.StartDate.IsZero() {
		return Validationf("start date is required")
	}
	if in.ExpectedEndDate.IsZero() {
		return Validationf("expected end date is required")
	}
	if !in.ExpectedEndDate.After(in.StartDate) {
		return Validationf("expected end date must be after start date")
	}
	if in.Cost.IsNegative() {
		return Validationf("cost must not be negative")
	}
	if !in.Cost.Equal(in.Cost.Round(costScale)) {
		return Validationf("cost must have at most %d decimal places", costScale)
	}
	if in.Cost.GreaterThanOrEqual(maxStepCost) {
		return Validationf("cost must be less than %s", maxStepCost.String())
	}
	return nil
}

func (s *Step) apply(in *StepInput, now time.Time) {
	s.Type = in.Type
	s.Description = strings.TrimSpace(in.Description)
	s.Responsible = in.Responsible
	s.FromLocation = strings.TrimSpace(in.FromLocation)
	s.ToLocation = strings.TrimSpace(in.ToLocation)
	s.StartDate = in.StartDate
	s.ExpectedEndDate = in.ExpectedEndDate
	s.Cost = in.Cost
	s.Notes = in.Notes
	s.UpdatedAt = now
}

// StepView 步骤的对外视图,派生字段在读取时计算
type StepView struct {
	ID              string          `json:"id"`
	RecordID        string          `json:"recordId"`
	Sequence        int             `json:"sequence"`
	Type            StepType        `json:"stepType"`
	Description     string          `json:"description"`
	Responsible
	FromLocation    string          `json:"fromLocation"`
	ToLocation      string          `json:"toLocation"`
	StartDate       time.Time       `json:"startDate"`
	ExpectedEndDate time.Time       `json:"expectedEndDate"`
	ActualEndDate   *time.Time      `json:"actualEndDate"`
	Cost            decimal.Decimal `json:"stepCost"`
	Notes           string          `json:"notes,omitempty"`
	State           StepState       `json:"state"`
	IsCompleted     bool            `json:"isCompleted"`
	IsFinalStep     bool            `json:"isFinalStep"`
	IsOverdue       bool            `json:"isOverdue"`
	DurationInHours float64         `json:"durationInHours"`
	NeedsFollowUp   bool            `json:"needsFollowUp"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// View 生成步骤视图
func (s *Step) View(now time.Time, followUpAfter time.Duration) StepView {
	return StepView{
		ID:              s.ID,
		RecordID:        s.RecordID,
		Sequence:        s.Sequence,
		Type:            s.Type,
		Description:     s.Description,
		Responsible:     s.Responsible,
		FromLocation:    s.FromLocation,
		ToLocation:      s.ToLocation,
		StartDate:       s.StartDate,
		ExpectedEndDate: s.ExpectedEndDate,
		ActualEndDate:   s.ActualEndDate,
		Cost:            s.Cost,
		Notes:           s.Notes,
		State:           s.State(),
		IsCompleted:     s.IsCompleted,
		IsFinalStep:     s.IsFinalStep,
		IsOverdue:       s.IsOverdue(now),
		DurationInHours: s.DurationInHours(now),
		NeedsFollowUp:   s.NeedsFollowUp(now, followUpAfter),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
