package maintenance

import "strings"

// StepType 步骤类型
type StepType string

const (
	StepTypeTransport       StepType = "TRANSPORT"
	StepTypeInspection      StepType = "INSPECTION"
	StepTypeRepair          StepType = "REPAIR"
	StepTypeTesting         StepType = "TESTING"
	StepTypeDiagnosis       StepType = "DIAGNOSIS"
	StepTypeEscalation      StepType = "ESCALATION"
	StepTypeReturnToService StepType = "RETURN_TO_SERVICE"
)

var stepTypes = map[StepType]struct{}{
	StepTypeTransport:       {},
	StepTypeInspection:      {},
	StepTypeRepair:          {},
	StepTypeTesting:         {},
	StepTypeDiagnosis:       {},
	StepTypeEscalation:      {},
	StepTypeReturnToService: {},
}

// Valid 判断步骤类型是否合法
func (t StepType) Valid() bool {
	_, ok := stepTypes[t]
	return ok
}

// ParseStepType 解析步骤类型(大小写不敏感)
func ParseStepType(s string) (StepType, error) {
	t := StepType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", Validationf("unknown step type %q", s)
	}
	return t, nil
}

// StepState 步骤状态
type StepState string

const (
	StepStateActive    StepState = "ACTIVE"
	StepStateCompleted StepState = "COMPLETED"
)

// RecordStatus 记录状态
// SCHEDULED/ACTIVE/OVERDUE 在记录未关闭时由步骤推导,COMPLETED 为锁定的终态
type RecordStatus string

const (
	RecordStatusScheduled RecordStatus = "SCHEDULED"
	RecordStatusActive    RecordStatus = "ACTIVE"
	RecordStatusOverdue   RecordStatus = "OVERDUE"
	RecordStatusCompleted RecordStatus = "COMPLETED"
)

// ParseRecordStatus 解析记录状态(大小写不敏感)
func ParseRecordStatus(s string) (RecordStatus, error) {
	st := RecordStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case RecordStatusScheduled, RecordStatusActive, RecordStatusOverdue, RecordStatusCompleted:
		return st, nil
	}
	return "", Validationf("unknown record status %q", s)
}
