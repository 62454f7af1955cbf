package model

type CaseStatus int
type WorkItemStatus int
type ActivationStatus int

const (
	// CaseStatusNotStarted indicates that the Case has not started
	CaseStatusNotStarted CaseStatus = 0

	// CaseStatusRunning indicates that the Case is running
	CaseStatusRunning CaseStatus = 100

	// CaseStatusSuspended indicates that the Case has been suspended
	CaseStatusSuspended CaseStatus = 200

	// CaseStatusCompleted indicates that the Case has been completed
	CaseStatusCompleted CaseStatus = 500

	// CaseStatusCancelled indicates that the Case has been cancelled
	CaseStatusCancelled CaseStatus = 600

	// CaseStatusFailed indicates that the Case has failed
	CaseStatusFailed CaseStatus = 700

	// WorkItemStatusEnabled indicates that the WorkItem is offered
	WorkItemStatusEnabled WorkItemStatus = 10

	// WorkItemStatusExecuting indicates that the WorkItem has been started
	WorkItemStatusExecuting WorkItemStatus = 20

	// WorkItemStatusSuspended indicates that the WorkItem is suspended
	WorkItemStatusSuspended WorkItemStatus = 30

	// WorkItemStatusComplete indicates that the WorkItem is complete
	WorkItemStatusComplete WorkItemStatus = 40

	// WorkItemStatusCancelled indicates that the WorkItem was cancelled
	WorkItemStatusCancelled WorkItemStatus = 50

	// WorkItemStatusFailed indicates that the WorkItem failed
	WorkItemStatusFailed WorkItemStatus = 100

	ActivationInstantiating ActivationStatus = 0
	ActivationRunning       ActivationStatus = 10
	ActivationCompleting    ActivationStatus = 20
	ActivationDone          ActivationStatus = 30
	ActivationFailed        ActivationStatus = 100
)

func (s CaseStatus) String() string {
	switch s {
	case CaseStatusNotStarted:
		return "NotStarted"
	case CaseStatusRunning:
		return "Running"
	case CaseStatusSuspended:
		return "Suspended"
	case CaseStatusCompleted:
		return "Completed"
	case CaseStatusCancelled:
		return "Cancelled"
	case CaseStatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsFinal indicates if the case can no longer progress
func (s CaseStatus) IsFinal() bool {
	return s == CaseStatusCompleted || s == CaseStatusCancelled || s == CaseStatusFailed
}

func (s WorkItemStatus) String() string {
	switch s {
	case WorkItemStatusEnabled:
		return "Enabled"
	case WorkItemStatusExecuting:
		return "Executing"
	case WorkItemStatusSuspended:
		return "Suspended"
	case WorkItemStatusComplete:
		return "Complete"
	case WorkItemStatusCancelled:
		return "Cancelled"
	case WorkItemStatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsFinal indicates if the work item reached a terminal status
func (s WorkItemStatus) IsFinal() bool {
	return s == WorkItemStatusComplete || s == WorkItemStatusCancelled || s == WorkItemStatusFailed
}

// CanTransition indicates if a work item may move from s to the specified
// status by a regular transition
func (s WorkItemStatus) CanTransition(to WorkItemStatus) bool {
	switch s {
	case WorkItemStatusEnabled:
		return to == WorkItemStatusExecuting || to == WorkItemStatusCancelled
	case WorkItemStatusExecuting:
		return to == WorkItemStatusComplete || to == WorkItemStatusFailed ||
			to == WorkItemStatusCancelled || to == WorkItemStatusSuspended
	case WorkItemStatusSuspended:
		return to == WorkItemStatusExecuting
	}
	return false
}

func (s ActivationStatus) String() string {
	switch s {
	case ActivationInstantiating:
		return "Instantiating"
	case ActivationRunning:
		return "Running"
	case ActivationCompleting:
		return "Completing"
	case ActivationDone:
		return "Done"
	case ActivationFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
