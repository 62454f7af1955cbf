package instance

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/project-flogo/core/support/log"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/identifier"
	"github.com/project-flogo/petriflow/marking"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/state"
	"github.com/project-flogo/petriflow/support"
	"github.com/project-flogo/petriflow/support/event"
	"github.com/project-flogo/petriflow/timer"
	"github.com/project-flogo/petriflow/util"
)

var logger = log.ChildLogger(log.RootLogger(), "petriflow")

// Case is one running instance of a net.  Every operation touching the
// marking of a case is serialized by the case lock; events raised while the
// lock is held are dispatched once it is released.
type Case struct {
	mu sync.Mutex

	id       string
	def      *definition.Definition
	netModel *model.NetModel
	status   model.CaseStatus
	data     map[string]interface{}

	tree    *identifier.Tree
	marking *marking.Marking

	workItems map[string]*WorkItem
	itemOrder []string
	itemSeq   int
	taskInsts map[string]*TaskInst

	taskInstOrder []string
	timers        map[string]timer.Cancel
	stepID        int

	parentCaseID string
	parentItemID string

	maxSteps      int
	autoFire      bool
	recordingMode state.RecordingMode
	repo          state.Repository
	timerService  timer.Service
	onEvent       func(evt interface{})
	logger        log.Logger

	pending   []interface{}
	startTime time.Time
}

// Option configures a Case
type Option func(c *Case)

func WithLogger(logger log.Logger) Option {
	return func(c *Case) {
		c.logger = logger
	}
}

// WithRepository sets the repository the case records its state in
func WithRepository(repo state.Repository, mode state.RecordingMode) Option {
	return func(c *Case) {
		c.repo = repo
		c.recordingMode = mode
	}
}

func WithTimerService(service timer.Service) Option {
	return func(c *Case) {
		c.timerService = service
	}
}

// WithMaxStepCount bounds the number of automatic firings of one enablement scan
func WithMaxStepCount(maxSteps int) Option {
	return func(c *Case) {
		if maxSteps > 0 {
			c.maxSteps = maxSteps
		}
	}
}

// WithEventHandler sets the handler receiving the events of the case
func WithEventHandler(handler func(evt interface{})) Option {
	return func(c *Case) {
		c.onEvent = handler
	}
}

func WithModel(netModel *model.NetModel) Option {
	return func(c *Case) {
		c.netModel = netModel
	}
}

// WithAutoFire controls whether automatic tasks are fired by the enablement
// scan.  When disabled automatic tasks only fire through Fire.
func WithAutoFire(enabled bool) Option {
	return func(c *Case) {
		c.autoFire = enabled
	}
}

// WithParent marks the case as the execution of a work item of another case
func WithParent(caseID, itemID string) Option {
	return func(c *Case) {
		c.parentCaseID = caseID
		c.parentItemID = itemID
	}
}

// NewCase creates a new Case of the specified net
func NewCase(id string, def *definition.Definition, data map[string]interface{}, opts ...Option) (*Case, error) {
	c, err := newCase(id, def, data, opts...)
	if err != nil {
		return nil, err
	}

	_ = c.run(func() error {
		c.postCaseEvent(event.CREATED, nil)
		c.persist()
		return nil
	})

	return c, nil
}

func newCase(id string, def *definition.Definition, data map[string]interface{}, opts ...Option) (*Case, error) {

	if id == "" {
		return nil, errors.New("case id cannot be empty")
	}

	c := &Case{
		id:            id,
		def:           def,
		status:        model.CaseStatusNotStarted,
		data:          util.DeepCopyMap(data),
		marking:       marking.New(),
		workItems:     make(map[string]*WorkItem),
		taskInsts:     make(map[string]*TaskInst),
		timers:        make(map[string]timer.Cancel),
		maxSteps:      support.MaxStepCountDefault,
		autoFire:      true,
		recordingMode: state.RecordingModeOff,
		netModel:      model.Default(),
	}

	if c.data == nil {
		c.data = make(map[string]interface{})
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = log.ChildLoggerWithFields(logger, log.FieldString("caseId", id))
	}

	if c.netModel == nil {
		return nil, errors.New("no net model registered")
	}
	if err := c.netModel.Validate(def); err != nil {
		return nil, err
	}

	return c, nil
}

// ID returns the id of the case
func (c *Case) ID() string {
	return c.id
}

// SpecID returns the id of the net the case runs
func (c *Case) SpecID() string {
	return c.def.ID()
}

// Definition returns the net the case runs
func (c *Case) Definition() *definition.Definition {
	return c.def
}

// ParentCaseID returns the id of the case whose work item this case executes
func (c *Case) ParentCaseID() string {
	return c.parentCaseID
}

// ParentItemID returns the id of the work item this case executes
func (c *Case) ParentItemID() string {
	return c.parentItemID
}

// Status returns the status of the case
func (c *Case) Status() model.CaseStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Data returns a copy of the case data
func (c *Case) Data() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	return util.DeepCopyMap(c.data)
}

// Start places the root identifier of the case on the input condition and
// runs the initial enablement scan
func (c *Case) Start() error {
	return c.run(func() error {
		if c.status != model.CaseStatusNotStarted {
			return fmt.Errorf("case '%s' is %s and cannot be started", c.id, c.status)
		}

		c.tree = identifier.NewTree(c.id, c.data)
		c.marking.Add(c.def.InputCondition().ID(), c.tree.Root())

		c.status = model.CaseStatusRunning
		c.startTime = c.now()
		c.postCaseEvent(event.STARTED, nil)
		c.recordStart()

		if c.logger.DebugEnabled() {
			c.logger.Debugf("Case started on net '%s'", c.def.ID())
		}

		c.scan()
		c.persist()
		return nil
	})
}

// Cancel withdraws every active work item and clears the marking
func (c *Case) Cancel() error {
	return c.run(func() error {
		if c.status.IsFinal() {
			return fmt.Errorf("case '%s' is %s: %w", c.id, c.status, model.ErrCaseNotRunning)
		}

		c.cancelAll()
		for _, token := range c.marking.Clear() {
			c.tree.Release(token)
		}

		c.status = model.CaseStatusCancelled
		c.postCaseEvent(event.CANCELLED, nil)
		c.recordDone()
		c.persist()
		return nil
	})
}

// Suspend pauses the case, work items can no longer change state and the
// timers of the case are stopped until it resumes
func (c *Case) Suspend() error {
	return c.run(func() error {
		if c.status != model.CaseStatusRunning {
			return fmt.Errorf("case '%s' is %s: %w", c.id, c.status, model.ErrCaseNotRunning)
		}
		c.status = model.CaseStatusSuspended
		c.stopTimers()
		c.postCaseEvent(event.SUSPENDED, nil)
		c.persist()
		return nil
	})
}

// Resume continues a suspended case
func (c *Case) Resume() error {
	return c.run(func() error {
		if c.status != model.CaseStatusSuspended {
			return fmt.Errorf("case '%s' is %s and cannot be resumed", c.id, c.status)
		}
		c.status = model.CaseStatusRunning
		c.restartTimers()
		c.postCaseEvent(event.RESUMED, nil)
		c.scan()
		c.persist()
		return nil
	})
}

// run executes op holding the case lock, then dispatches the events op raised
func (c *Case) run(op func() error) error {
	c.mu.Lock()
	err := op()
	events := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.dispatch(events)
	return err
}

func (c *Case) checkRunning() error {
	if c.status != model.CaseStatusRunning {
		return fmt.Errorf("case '%s' is %s: %w", c.id, c.status, model.ErrCaseNotRunning)
	}
	return nil
}

func (c *Case) now() time.Time {
	if c.timerService != nil {
		return c.timerService.Now()
	}
	return time.Now()
}

// complete finishes the case once its output condition is marked
func (c *Case) complete() {
	output := c.def.OutputCondition().ID()

	c.cancelAll()
	for _, elementID := range c.marking.Marked() {
		if elementID == output {
			continue
		}
		for _, token := range c.marking.RemoveAll(elementID) {
			c.logger.Warnf("Token '%s' left on '%s' when case completed", token.ID(), elementID)
			c.tree.Release(token)
		}
	}

	c.status = model.CaseStatusCompleted
	c.postCaseEvent(event.COMPLETED, nil)
	c.recordDone()

	if c.logger.DebugEnabled() {
		c.logger.Debugf("Case completed")
	}
}

// fail moves the case to Failed, withdrawing its active work items
func (c *Case) fail(err error) {
	c.logger.Errorf("Case failed: %v", err)

	c.cancelAll()
	c.status = model.CaseStatusFailed
	c.postCaseEvent(event.FAILED, err)
	c.recordDone()
}

// cancelAll forces every active work item to Cancelled and discards the
// running activations
func (c *Case) cancelAll() {
	for _, id := range c.itemOrder {
		c.cancelItem(c.workItems[id])
	}
	for _, id := range c.taskInstOrder {
		ti := c.taskInsts[id]
		c.marking.Remove(ti.task.ID(), ti.working.ID())
		c.tree.Release(ti.working)
		delete(c.taskInsts, id)
	}
	c.taskInstOrder = nil
}
