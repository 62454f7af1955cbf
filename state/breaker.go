package state

import (
	"errors"
	"time"

	"github.com/project-flogo/core/support/log"
	"github.com/sony/gobreaker/v2"
)

var breakerLogger = log.ChildLogger(log.RootLogger(), "petriflow-state")

// BreakerRepository guards a Repository with a circuit breaker so that an
// unavailable store fails fast instead of stalling every firing
type BreakerRepository struct {
	repo Repository
	cb   *gobreaker.CircuitBreaker[interface{}]
}

// NewBreakerRepository wraps the repository; the breaker opens after
// maxFailures consecutive failures and lets a trial call through after timeout
func NewBreakerRepository(repo Repository, maxFailures int, timeout time.Duration) *BreakerRepository {

	settings := gobreaker.Settings{
		Name:        "petriflow-repository",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSnapshotNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			breakerLogger.Warnf("Circuit breaker '%s' changed from %s to %s", name, from, to)
		},
	}

	return &BreakerRepository{repo: repo, cb: gobreaker.NewCircuitBreaker[interface{}](settings)}
}

func (r *BreakerRepository) Save(snapshot *Snapshot) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.repo.Save(snapshot)
	})
	return err
}

func (r *BreakerRepository) Load(caseID string) (*Snapshot, error) {
	result, err := r.cb.Execute(func() (interface{}, error) {
		return r.repo.Load(caseID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot), nil
}

func (r *BreakerRepository) RecordStart(state *CaseState) error {
	return r.record(func(rec Recorder) error { return rec.RecordStart(state) })
}

func (r *BreakerRepository) RecordStep(step *Step) error {
	return r.record(func(rec Recorder) error { return rec.RecordStep(step) })
}

func (r *BreakerRepository) RecordDone(state *CaseState) error {
	return r.record(func(rec Recorder) error { return rec.RecordDone(state) })
}

func (r *BreakerRepository) record(f func(rec Recorder) error) error {
	rec, ok := r.repo.(Recorder)
	if !ok {
		return nil
	}
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, f(rec)
	})
	return err
}

// State returns the current state of the breaker
func (r *BreakerRepository) State() gobreaker.State {
	return r.cb.State()
}
