package worklist

import (
	"errors"
	"fmt"
	"time"

	"github.com/project-flogo/core/support/log"

	"github.com/project-flogo/petriflow"
	"github.com/project-flogo/petriflow/instance"
	"github.com/project-flogo/petriflow/support/event"
)

var errMissingSpecID = errors.New("specId is required")

// LaunchRequest describes a request for launching a case
type LaunchRequest struct {
	SpecID string                 `json:"specId"`
	Data   map[string]interface{} `json:"data,omitempty"`

	// NoStart creates the case without starting it
	NoStart bool `json:"noStart,omitempty"`
}

// CaseRequest describes a case level action
type CaseRequest struct {
	TaskID string `json:"taskId,omitempty"`
}

// WorkItemRequest describes a work item transition
type WorkItemRequest struct {
	Output      map[string]interface{} `json:"output,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Participant string                 `json:"participant,omitempty"`
	Data        interface{}            `json:"data,omitempty"`
}

// IDResponse is the response to a request creating a resource
type IDResponse struct {
	ID string `json:"id"`
}

// CaseView is the external representation of a case
type CaseView struct {
	ID           string                 `json:"id"`
	SpecID       string                 `json:"specId"`
	Status       string                 `json:"status"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Marking      map[string][]string    `json:"marking,omitempty"`
	Enabled      []string               `json:"enabled,omitempty"`
	Busy         []string               `json:"busy,omitempty"`
	ParentCaseID string                 `json:"parentCaseId,omitempty"`
	ParentItemID string                 `json:"parentItemId,omitempty"`
}

// WorkItemView is the external representation of a work item
type WorkItemView struct {
	ID          string                 `json:"id"`
	CaseID      string                 `json:"caseId"`
	TaskID      string                 `json:"taskId"`
	Status      string                 `json:"status"`
	Participant string                 `json:"participant,omitempty"`
	Instance    int                    `json:"instance,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Output      map[string]interface{} `json:"output,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Updated     time.Time              `json:"updated"`
}

func newCaseView(c *instance.Case) *CaseView {
	return &CaseView{
		ID:           c.ID(),
		SpecID:       c.SpecID(),
		Status:       c.Status().String(),
		Data:         c.Data(),
		Marking:      c.MarkingSnapshot(),
		Enabled:      c.Enabled(),
		Busy:         c.Busy(),
		ParentCaseID: c.ParentCaseID(),
		ParentItemID: c.ParentItemID(),
	}
}

func newWorkItemView(wi *instance.WorkItem) *WorkItemView {
	return &WorkItemView{
		ID:          wi.ID(),
		CaseID:      wi.CaseID(),
		TaskID:      wi.TaskID(),
		Status:      wi.Status().String(),
		Participant: wi.Participant(),
		Instance:    wi.Instance(),
		Data:        wi.Data(),
		Output:      wi.Output(),
		Reason:      wi.Reason(),
		Updated:     wi.Updated(),
	}
}

// RequestProcessor maps requests to the operations of the engine
type RequestProcessor struct {
	engine *petriflow.Engine
	logger log.Logger
}

func NewRequestProcessor(engine *petriflow.Engine, logger log.Logger) *RequestProcessor {
	return &RequestProcessor{engine: engine, logger: logger}
}

// LaunchCase creates a case and, unless asked otherwise, starts it
func (rp *RequestProcessor) LaunchCase(req *LaunchRequest) (*IDResponse, error) {

	if req.SpecID == "" {
		return nil, errMissingSpecID
	}

	c, err := rp.engine.CreateCase(req.SpecID, req.Data)
	if err != nil {
		return nil, err
	}

	if !req.NoStart {
		if err := c.Start(); err != nil {
			return nil, err
		}
	}

	if rp.logger.DebugEnabled() {
		rp.logger.Debugf("Launched case '%s' of '%s'", c.ID(), req.SpecID)
	}
	return &IDResponse{ID: c.ID()}, nil
}

// CaseAction applies start, cancel, suspend, resume or fire to a case
func (rp *RequestProcessor) CaseAction(caseID, action string, req *CaseRequest) (interface{}, error) {

	var err error
	switch action {
	case "start":
		err = rp.engine.StartCase(caseID)
	case "cancel":
		err = rp.engine.CancelCase(caseID)
	case "suspend":
		err = rp.engine.SuspendCase(caseID)
	case "resume":
		err = rp.engine.ResumeCase(caseID)
	case "fire":
		var fr *event.FireResult
		if fr, err = rp.engine.Fire(caseID, req.TaskID); err == nil {
			return fr, nil
		}
	default:
		return nil, &unknownActionError{action: action}
	}
	if err != nil {
		return nil, err
	}

	c, err := rp.engine.Case(caseID)
	if err != nil {
		return nil, err
	}
	return newCaseView(c), nil
}

// WorkItemAction applies a transition to a work item
func (rp *RequestProcessor) WorkItemAction(itemID, action string, req *WorkItemRequest) (*WorkItemView, error) {

	var wi *instance.WorkItem
	var err error

	switch action {
	case "start":
		wi, err = rp.engine.StartWorkItem(itemID)
	case "complete":
		wi, err = rp.engine.CompleteWorkItem(itemID, req.Output)
	case "fail":
		wi, err = rp.engine.FailWorkItem(itemID, req.Reason)
	case "suspend":
		wi, err = rp.engine.SuspendWorkItem(itemID)
	case "resume":
		wi, err = rp.engine.ResumeWorkItem(itemID)
	case "allocate":
		wi, err = rp.engine.AllocateWorkItem(itemID, req.Participant)
	case "instance":
		wi, err = rp.engine.AddInstance(itemID, req.Data)
	default:
		return nil, &unknownActionError{action: action}
	}

	if err != nil {
		return nil, err
	}
	return newWorkItemView(wi), nil
}

type unknownActionError struct {
	action string
}

func (e *unknownActionError) Error() string {
	return fmt.Sprintf("unknown action '%s'", e.action)
}
