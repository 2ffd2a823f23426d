package maintenance

import "time"

// EventKind 领域事件类型
type EventKind string

const (
	EventStepCreated   EventKind = "step_created"
	EventStepUpdated   EventKind = "step_updated"
	EventStepCompleted EventKind = "step_completed"
	EventStepDeleted   EventKind = "step_deleted"
	EventFinalMarked   EventKind = "final_marked"
	EventFinalUnmarked EventKind = "final_unmarked"
	EventHandoff       EventKind = "handoff"
	EventRecordClosed  EventKind = "record_closed"
)

// Event 聚合变更产生的领域事件
// 由引擎在同一事务内持久化为状态历史/交接记录
type Event struct {
	Kind      EventKind
	StepID    string
	FromState string
	ToState   string
	Reason    string
	At        time.Time
	Handoff   *HandoffEvent
}

// HandoffEvent 责任人交接记录,只追加不修改
type HandoffEvent struct {
	ID        string      `json:"id"`
	RecordID  string      `json:"recordId"`
	StepID    string      `json:"stepId"`
	From      Responsible `json:"from"`
	To        Responsible `json:"to"`
	Reason    string      `json:"reason,omitempty"`
	Operator  string      `json:"operator"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Transition 状态历史条目
type Transition struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	StepID    string    `json:"stepId,omitempty"`
	Event     EventKind `json:"event"`
	FromState string    `json:"fromState,omitempty"`
	ToState   string    `json:"toState,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"createdAt"`
}
