package state

import (
	"time"
)

// Snapshot is the persisted state of a Case
type Snapshot struct {
	ID     string                 `json:"id"`
	SpecID string                 `json:"specId"`
	Status int                    `json:"status"`
	Data   map[string]interface{} `json:"data,omitempty"`

	// Tokens holds the lineage of the case, parents before children
	Tokens []*Token `json:"tokens"`

	// Marking holds the token ids per element in arrival order
	Marking map[string][]string `json:"marking,omitempty"`

	WorkItems []*WorkItem `json:"workItems,omitempty"`
	TaskInsts []*TaskInst `json:"taskInsts,omitempty"`
	ItemSeq   int         `json:"itemSeq"`
	StepSeq   int         `json:"stepSeq"`

	ParentCaseID string `json:"parentCaseId,omitempty"`
	ParentItemID string `json:"parentItemId,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

type Token struct {
	ID       string                 `json:"id"`
	ParentID string                 `json:"parentId,omitempty"`
	Location string                 `json:"location,omitempty"`
	Live     bool                   `json:"live"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

type WorkItem struct {
	ID          string                 `json:"id"`
	TaskID      string                 `json:"taskId"`
	Status      int                    `json:"status"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	TokenID     string                 `json:"tokenId,omitempty"`
	Participant string                 `json:"participant,omitempty"`
	TaskInstID  string                 `json:"taskInstId,omitempty"`
	Instance    int                    `json:"instance,omitempty"`
}

// TaskInst is a running activation of a task
type TaskInst struct {
	ID        string        `json:"id"`
	TaskID    string        `json:"taskId"`
	Status    int           `json:"status"`
	TokenID   string        `json:"tokenId"`
	Consumed  []*Token      `json:"consumed,omitempty"`
	Items     []string      `json:"items,omitempty"`
	Instances int           `json:"instances"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Outputs   []interface{} `json:"outputs,omitempty"`
}
