package state

import (
	"time"
)

// Step is the record of one task firing of a Case
type Step struct {
	ID        int       `json:"id"`
	CaseID    string    `json:"caseId"`
	TaskID    string    `json:"taskId"`
	Consumed  []string  `json:"consumed"`
	Produced  []string  `json:"produced"`
	Cancelled []string  `json:"cancelled,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	StartTime time.Time `json:"starttime"`
	EndTime   time.Time `json:"endtime"`
}

// CaseState is the record of the start or end of a Case
type CaseState struct {
	UserId    string    `json:"user_id"`
	HostId    string    `json:"host_id"`
	SpecID    string    `json:"spec_id"`
	CaseID    string    `json:"case_id"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
}
