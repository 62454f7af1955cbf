package model

import (
	"errors"
	"fmt"
)

var (
	ErrCaseNotFound          = errors.New("case not found")
	ErrSpecificationNotFound = errors.New("specification not found")
	ErrWorkItemNotFound      = errors.New("work item not found")
	ErrCaseNotRunning        = errors.New("case not running")
	ErrSpecificationInUse    = errors.New("specification in use")
)

// EnablementError is returned when a task is fired while it is not enabled
type EnablementError struct {
	TaskID string
	Reason string
}

func (e *EnablementError) Error() string {
	return fmt.Sprintf("task '%s' is not enabled: %s", e.TaskID, e.Reason)
}

// SplitEvaluationError is returned when no outgoing flow of a task qualifies
type SplitEvaluationError struct {
	TaskID string
	Err    error
}

func (e *SplitEvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("split of task '%s' failed: %v", e.TaskID, e.Err)
	}
	return fmt.Sprintf("split of task '%s' failed: no flow qualifies and there is no default flow", e.TaskID)
}

func (e *SplitEvaluationError) Unwrap() error {
	return e.Err
}

// WorkItemStateError is returned on an illegal work item transition, or on
// an operation the status of the item does not allow when Op is set
type WorkItemStateError struct {
	WorkItemID string
	From       WorkItemStatus
	To         WorkItemStatus
	Op         string
}

func (e *WorkItemStateError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("work item '%s' cannot be %s while %s", e.WorkItemID, e.Op, e.From)
	}
	return fmt.Sprintf("work item '%s' cannot move from %s to %s", e.WorkItemID, e.From, e.To)
}

// CancellationError is reported when an element of a cancellation set
// holds nothing to cancel
type CancellationError struct {
	TaskID    string
	ElementID string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancellation set of task '%s': element '%s' holds nothing to cancel", e.TaskID, e.ElementID)
}
