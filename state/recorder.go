package state

import (
	"errors"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Repository is the interface that describes a service that persists the
// snapshots of Cases
type Repository interface {
	// Save stores the snapshot, replacing the previous snapshot of the case
	Save(snapshot *Snapshot) error

	// Load returns the last snapshot of the case, ErrSnapshotNotFound if there is none
	Load(caseID string) (*Snapshot, error)
}

// Recorder is the interface that describes a service that can record
// the steps of a Case
type Recorder interface {
	RecordStart(state *CaseState) error

	// RecordStep records the changes of one firing of the Case
	RecordStep(step *Step) error

	RecordDone(state *CaseState) error
}
