package timer

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// Cancel stops a scheduled callback, it returns false if the callback
// already ran or was cancelled
type Cancel func() bool

// Service schedules deadline callbacks.  Callbacks run on their own
// goroutine and must re-enter the owner of the state they touch.
type Service interface {
	Now() time.Time
	Schedule(deadline time.Time, callback func()) Cancel
}

// ClockService is a Service backed by a clock.Clock
type ClockService struct {
	clock clock.Clock
}

// NewService creates a Service using the specified clock, the wall clock
// if it is nil
func NewService(clk clock.Clock) *ClockService {
	if clk == nil {
		clk = clock.New()
	}
	return &ClockService{clock: clk}
}

func (s *ClockService) Now() time.Time {
	return s.clock.Now()
}

func (s *ClockService) Schedule(deadline time.Time, callback func()) Cancel {
	d := deadline.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}

	var mu sync.Mutex
	done := false

	t := s.clock.AfterFunc(d, func() {
		mu.Lock()
		if done {
			mu.Unlock()
			return
		}
		done = true
		mu.Unlock()

		callback()
	})

	return func() bool {
		mu.Lock()
		defer mu.Unlock()

		if done {
			return false
		}
		done = true
		t.Stop()
		return true
	}
}
