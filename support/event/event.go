package event

import (
	"time"
)

type Status string

const (
	CREATED   Status = "Created"
	STARTED   Status = "Started"
	ENABLED   Status = "Enabled"
	EXECUTING Status = "Executing"
	SUSPENDED Status = "Suspended"
	RESUMED   Status = "Resumed"
	COMPLETED Status = "Completed"
	CANCELLED Status = "Cancelled"
	FAILED    Status = "Failed"
	UNKNOWN   Status = "Unknown"
)

const CaseEventType = "petriflow-case"
const WorkItemEventType = "petriflow-workitem"
const FireEventType = "petriflow-fire"

// Listener receives the events of the cases of an engine: *CaseEvent,
// *WorkItemEvent and *FireResult
type Listener func(evt interface{})

// CaseEvent is a Case status change notification
type CaseEvent struct {
	CaseID string                 `json:"caseId"`
	SpecID string                 `json:"specId"`
	Status Status                 `json:"status"`
	Time   time.Time              `json:"time"`
	Data   map[string]interface{} `json:"data,omitempty"`
	Err    error                  `json:"-"`

	// ParentCaseID and ParentItemID identify the work item a sub-net case
	// executes
	ParentCaseID string `json:"parentCaseId,omitempty"`
	ParentItemID string `json:"parentItemId,omitempty"`
}

// WorkItemEvent is a WorkItem lifecycle notification
type WorkItemEvent struct {
	CaseID      string                 `json:"caseId"`
	WorkItemID  string                 `json:"workItemId"`
	TaskID      string                 `json:"taskId"`
	Status      Status                 `json:"status"`
	Participant string                 `json:"participant,omitempty"`
	Time        time.Time              `json:"time"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Forced      bool                   `json:"forced,omitempty"`
}

// TokenRef references a token and the element it was on
type TokenRef struct {
	ID       string `json:"id"`
	Location string `json:"location"`
}

// FireResult is the audit record of one task firing
type FireResult struct {
	CaseID    string     `json:"caseId"`
	TaskID    string     `json:"taskId"`
	Consumed  []TokenRef `json:"consumed"`
	Produced  []TokenRef `json:"produced"`
	Cancelled []TokenRef `json:"cancelled,omitempty"`
	Warnings  []error    `json:"-"`
	Timestamp time.Time  `json:"timestamp"`
}

// EventType returns the type under which the event is posted
func EventType(evt interface{}) string {
	switch evt.(type) {
	case *CaseEvent:
		return CaseEventType
	case *WorkItemEvent:
		return WorkItemEventType
	case *FireResult:
		return FireEventType
	default:
		return ""
	}
}
