package state

import (
	"sort"
	"sync"

	"github.com/project-flogo/petriflow/util"
)

// MemoryRepository is an in-process Repository and Recorder
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	steps     map[string][]*Step
	states    map[string][]*CaseState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		snapshots: make(map[string]*Snapshot),
		steps:     make(map[string][]*Step),
		states:    make(map[string][]*CaseState),
	}
}

func (r *MemoryRepository) Save(snapshot *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[snapshot.ID] = util.DeepCopy(snapshot).(*Snapshot)
	return nil
}

func (r *MemoryRepository) Load(caseID string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, ok := r.snapshots[caseID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return util.DeepCopy(snapshot).(*Snapshot), nil
}

// CaseIDs returns the ids of the cases with a snapshot, sorted
func (r *MemoryRepository) CaseIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.snapshots))
	for id := range r.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *MemoryRepository) RecordStart(state *CaseState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.CaseID] = append(r.states[state.CaseID], state)
	return nil
}

func (r *MemoryRepository) RecordStep(step *Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.steps[step.CaseID] = append(r.steps[step.CaseID], step)
	return nil
}

func (r *MemoryRepository) RecordDone(state *CaseState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[state.CaseID] = append(r.states[state.CaseID], state)
	return nil
}

// Steps returns the recorded steps of the case
func (r *MemoryRepository) Steps(caseID string) []*Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*Step(nil), r.steps[caseID]...)
}

// States returns the recorded start and done states of the case
func (r *MemoryRepository) States(caseID string) []*CaseState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*CaseState(nil), r.states[caseID]...)
}
