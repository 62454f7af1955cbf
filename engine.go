package petriflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/project-flogo/core/support/log"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/instance"
	"github.com/project-flogo/petriflow/model"
	_ "github.com/project-flogo/petriflow/model/simple"
	"github.com/project-flogo/petriflow/state"
	"github.com/project-flogo/petriflow/support"
	"github.com/project-flogo/petriflow/support/event"
	"github.com/project-flogo/petriflow/timer"
)

// Settings configures an Engine
type Settings struct {
	MaxStepCount       int
	StateRecording     state.RecordingMode
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

// SettingsFromEnv reads the engine settings from the environment
func SettingsFromEnv() (*Settings, error) {
	mode, err := state.ToRecordingMode(support.GetStateRecording())
	if err != nil {
		return nil, err
	}

	return &Settings{
		MaxStepCount:       support.GetMaxStepCount(),
		StateRecording:     mode,
		BreakerMaxFailures: support.GetBreakerMaxFailures(),
		BreakerTimeout:     support.GetBreakerTimeout(),
	}, nil
}

// Option configures an Engine
type Option func(e *Engine)

// WithSettings sets the settings of the engine
func WithSettings(settings *Settings) Option {
	return func(e *Engine) {
		e.settings = settings
	}
}

// WithRepository sets the repository cases are recorded in; calls to the
// repository go through a circuit breaker
func WithRepository(repo state.Repository) Option {
	return func(e *Engine) {
		e.repo = repo
	}
}

func WithTimerService(service timer.Service) Option {
	return func(e *Engine) {
		e.timers = service
	}
}

func WithNetModel(netModel *model.NetModel) Option {
	return func(e *Engine) {
		e.netModel = netModel
	}
}

// Engine holds the loaded specifications and the cases running them.  It
// routes external requests to the owning case and never touches a marking.
type Engine struct {
	mu sync.RWMutex

	settings *Settings
	specs    map[string]*definition.Definition
	cases    map[string]*instance.Case

	// items executed by a sub-net case, keyed by item id
	subnets map[string]string

	// callbacks waiting for a case to reach a final status
	done map[string][]func(evt *event.CaseEvent)

	listeners []event.Listener

	repo     state.Repository
	timers   timer.Service
	netModel *model.NetModel
	logger   log.Logger
}

// New creates an Engine
func New(opts ...Option) *Engine {

	e := &Engine{
		specs:   make(map[string]*definition.Definition),
		cases:   make(map[string]*instance.Case),
		subnets: make(map[string]string),
		done:    make(map[string][]func(evt *event.CaseEvent)),
		logger:  log.ChildLogger(log.RootLogger(), "petriflow-engine"),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.settings == nil {
		e.settings = &Settings{
			MaxStepCount:       support.MaxStepCountDefault,
			StateRecording:     state.RecordingModeOff,
			BreakerMaxFailures: support.BreakerMaxFailuresDefault,
			BreakerTimeout:     support.BreakerTimeoutDefault,
		}
	}

	if e.repo != nil {
		if _, ok := e.repo.(*state.BreakerRepository); !ok {
			e.repo = state.NewBreakerRepository(e.repo, e.settings.BreakerMaxFailures, e.settings.BreakerTimeout)
		}
	}

	if e.timers == nil {
		e.timers = timer.NewService(nil)
	}

	if e.netModel == nil {
		e.netModel = model.Default()
	}

	return e
}

// AddListener registers a listener receiving the events of every case
func (e *Engine) AddListener(listener event.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = append(e.listeners, listener)
}

// OnCaseDone registers a callback called once with the event moving the case
// to Completed, Failed or Cancelled
func (e *Engine) OnCaseDone(caseID string, callback func(evt *event.CaseEvent)) error {
	c, err := e.Case(caseID)
	if err != nil {
		return err
	}
	if c.Status().IsFinal() {
		return fmt.Errorf("case '%s' is already %s", caseID, c.Status())
	}

	e.mu.Lock()
	e.done[caseID] = append(e.done[caseID], callback)
	e.mu.Unlock()
	return nil
}

// LoadSpecification builds, validates and registers a net
func (e *Engine) LoadSpecification(rep *definition.DefinitionRep) (*definition.Definition, error) {

	def, err := definition.NewDefinition(rep)
	if err != nil {
		return nil, err
	}

	if err := e.AddSpecification(def); err != nil {
		return nil, err
	}
	return def, nil
}

// AddSpecification registers an already built net
func (e *Engine) AddSpecification(def *definition.Definition) error {

	if err := e.netModel.Validate(def); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.specs[def.ID()]; exists {
		return fmt.Errorf("specification '%s' already loaded", def.ID())
	}
	e.specs[def.ID()] = def

	e.logger.Infof("Loaded specification '%s'", def.ID())
	return nil
}

// UnloadSpecification removes a net that no active case runs
func (e *Engine) UnloadSpecification(specID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.specs[specID]; !exists {
		return fmt.Errorf("specification '%s': %w", specID, model.ErrSpecificationNotFound)
	}

	for _, c := range e.cases {
		if c.SpecID() == specID && !c.Status().IsFinal() {
			return fmt.Errorf("specification '%s' is run by case '%s': %w", specID, c.ID(), model.ErrSpecificationInUse)
		}
	}

	delete(e.specs, specID)
	e.logger.Infof("Unloaded specification '%s'", specID)
	return nil
}

// Specification returns the net with the specified id
func (e *Engine) Specification(specID string) (*definition.Definition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	def, exists := e.specs[specID]
	if !exists {
		return nil, fmt.Errorf("specification '%s': %w", specID, model.ErrSpecificationNotFound)
	}
	return def, nil
}

// Specifications returns the ids of the loaded nets, sorted
func (e *Engine) Specifications() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.specs))
	for id := range e.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateCase creates a case of the specified net
func (e *Engine) CreateCase(specID string, data map[string]interface{}) (*instance.Case, error) {
	return e.createCase(specID, data)
}

// LaunchCase creates and starts a case of the specified net
func (e *Engine) LaunchCase(specID string, data map[string]interface{}) (*instance.Case, error) {
	c, err := e.createCase(specID, data)
	if err != nil {
		return nil, err
	}
	if err := c.Start(); err != nil {
		return nil, err
	}
	return c, nil
}

func (e *Engine) createCase(specID string, data map[string]interface{}, opts ...instance.Option) (*instance.Case, error) {

	def, err := e.Specification(specID)
	if err != nil {
		return nil, err
	}

	caseID := uuid.NewString()
	c, err := instance.NewCase(caseID, def, data, append(e.caseOptions(caseID), opts...)...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cases[caseID] = c
	e.mu.Unlock()

	if e.logger.DebugEnabled() {
		e.logger.Debugf("Created case '%s' of specification '%s'", caseID, specID)
	}

	return c, nil
}

func (e *Engine) caseOptions(caseID string) []instance.Option {
	opts := []instance.Option{
		instance.WithLogger(log.ChildLoggerWithFields(e.logger, log.FieldString("caseId", caseID))),
		instance.WithTimerService(e.timers),
		instance.WithMaxStepCount(e.settings.MaxStepCount),
		instance.WithModel(e.netModel),
		instance.WithEventHandler(e.handleEvent),
	}
	if e.repo != nil {
		opts = append(opts, instance.WithRepository(e.repo, e.settings.StateRecording))
	}
	return opts
}

// StartCase starts a created case
func (e *Engine) StartCase(caseID string) error {
	c, err := e.Case(caseID)
	if err != nil {
		return err
	}
	return c.Start()
}

// CancelCase cancels a case, a case is cancelled by its own runner
func (e *Engine) CancelCase(caseID string) error {
	c, err := e.Case(caseID)
	if err != nil {
		return err
	}
	return c.Cancel()
}

func (e *Engine) SuspendCase(caseID string) error {
	c, err := e.Case(caseID)
	if err != nil {
		return err
	}
	return c.Suspend()
}

func (e *Engine) ResumeCase(caseID string) error {
	c, err := e.Case(caseID)
	if err != nil {
		return err
	}
	return c.Resume()
}

// Case returns the case with the specified id
func (e *Engine) Case(caseID string) (*instance.Case, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, exists := e.cases[caseID]
	if !exists {
		return nil, fmt.Errorf("case '%s': %w", caseID, model.ErrCaseNotFound)
	}
	return c, nil
}

// Cases returns the cases of the engine sorted by id
func (e *Engine) Cases() []*instance.Case {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cases := make([]*instance.Case, 0, len(e.cases))
	for _, c := range e.cases {
		cases = append(cases, c)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].ID() < cases[j].ID() })
	return cases
}

// RemoveCase forgets a case that reached a final status
func (e *Engine) RemoveCase(caseID string) error {
	c, err := e.Case(caseID)
	if err != nil {
		return err
	}
	if !c.Status().IsFinal() {
		return fmt.Errorf("case '%s' is %s and cannot be removed", caseID, c.Status())
	}

	e.mu.Lock()
	delete(e.cases, caseID)
	e.mu.Unlock()
	return nil
}

// RestoreCase loads the last snapshot of a case from the repository and
// registers the restored case
func (e *Engine) RestoreCase(caseID string) (*instance.Case, error) {

	if e.repo == nil {
		return nil, errors.New("engine has no repository")
	}

	snapshot, err := e.repo.Load(caseID)
	if err != nil {
		return nil, err
	}

	def, err := e.Specification(snapshot.SpecID)
	if err != nil {
		return nil, err
	}

	c, err := instance.RestoreCase(def, snapshot, e.caseOptions(caseID)...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cases[caseID] = c
	if c.ParentItemID() != "" && !c.Status().IsFinal() {
		e.subnets[c.ParentItemID()] = caseID
	}
	e.mu.Unlock()

	e.logger.Infof("Restored case '%s' of specification '%s' [%s]", caseID, def.ID(), c.Status())
	return c, nil
}

// Fire fires an automatic task of a case
func (e *Engine) Fire(caseID, taskID string) (*event.FireResult, error) {
	c, err := e.Case(caseID)
	if err != nil {
		return nil, err
	}
	return c.Fire(taskID)
}

// WorkItems returns the work items of a case
func (e *Engine) WorkItems(caseID string) ([]*instance.WorkItem, error) {
	c, err := e.Case(caseID)
	if err != nil {
		return nil, err
	}
	return c.WorkItems(), nil
}

// WorkItem returns the specified work item
func (e *Engine) WorkItem(itemID string) (*instance.WorkItem, error) {
	c, err := e.caseOf(itemID)
	if err != nil {
		return nil, err
	}
	return c.WorkItem(itemID)
}

func (e *Engine) StartWorkItem(itemID string) (*instance.WorkItem, error) {
	c, err := e.caseOf(itemID)
	if err != nil {
		return nil, err
	}
	return c.StartWorkItem(itemID)
}

func (e *Engine) CompleteWorkItem(itemID string, output map[string]interface{}) (*instance.WorkItem, error) {
	c, err := e.caseOf(itemID)
	if err != nil {
		return nil, err
	}
	return c.CompleteWorkItem(itemID, output)
}

func (e *Engine) FailWorkItem(itemID string, reason string) (*instance.WorkItem, error) {
	c, err := e.caseOf(itemID)
	if err != nil {
		return nil, err
	}
	return c.FailWorkItem(itemID, reason)
}

func (e *Engine) SuspendWorkItem(itemID string) (*instance.WorkItem, error) {
	c, err := e.caseOf(itemID)
	if err != nil {
		return nil, err
	}
	return c.SuspendWorkItem(itemID)
}

func (e *Engine) ResumeWorkItem(itemID string) (*instance.WorkItem, error) {
	c, err := e.caseOf(itemID)
	if err != nil {
		return nil, err
	}
	return c.ResumeWorkItem(itemID)
}

func (e *Engine) AllocateWorkItem(itemID string, participant string) (*instance.WorkItem, error) {
	c, err := e.caseOf(itemID)
	if err != nil {
		return nil, err
	}
	return c.AllocateWorkItem(itemID, participant)
}

func (e *Engine) AddInstance(itemID string, data interface{}) (*instance.WorkItem, error) {
	c, err := e.caseOf(itemID)
	if err != nil {
		return nil, err
	}
	return c.AddInstance(itemID, data)
}

// caseOf resolves the case owning a work item, item ids are prefixed with
// the id of their case
func (e *Engine) caseOf(itemID string) (*instance.Case, error) {
	idx := strings.Index(itemID, ":")
	if idx <= 0 {
		return nil, fmt.Errorf("work item '%s': %w", itemID, model.ErrWorkItemNotFound)
	}
	return e.Case(itemID[:idx])
}

// handleEvent delivers the events of the cases to the listeners and drives
// the sub-net cases executing work items
func (e *Engine) handleEvent(evt interface{}) {

	e.mu.RLock()
	listeners := make([]event.Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, listener := range listeners {
		listener(evt)
	}

	switch t := evt.(type) {
	case *event.WorkItemEvent:
		e.handleWorkItemEvent(t)
	case *event.CaseEvent:
		e.handleCaseEvent(t)
	}
}

func (e *Engine) handleWorkItemEvent(evt *event.WorkItemEvent) {

	switch evt.Status {
	case event.ENABLED, event.EXECUTING:
		c, err := e.Case(evt.CaseID)
		if err != nil {
			return
		}
		decomp := c.Definition().GetTask(evt.TaskID).Decomposition()
		if decomp == nil || decomp.Type != definition.DecompositionNet {
			return
		}

		if evt.Status == event.ENABLED {
			// items of a sub-net task have no participant, they start as soon as offered
			if _, err := c.StartWorkItem(evt.WorkItemID); err != nil {
				e.logger.Warnf("Unable to start sub-net WorkItem '%s': %v", evt.WorkItemID, err)
			}
			return
		}
		e.launchSubnet(c, evt, decomp.ID)

	case event.CANCELLED:
		e.mu.Lock()
		childID, ok := e.subnets[evt.WorkItemID]
		delete(e.subnets, evt.WorkItemID)
		e.mu.Unlock()

		if !ok {
			return
		}
		if child, err := e.Case(childID); err == nil && !child.Status().IsFinal() {
			if err := child.Cancel(); err != nil {
				e.logger.Warnf("Unable to cancel sub-net case '%s': %v", childID, err)
			}
		}
	}
}

func (e *Engine) launchSubnet(parent *instance.Case, evt *event.WorkItemEvent, specID string) {

	child, err := e.createCase(specID, evt.Data, instance.WithParent(parent.ID(), evt.WorkItemID))
	if err == nil {
		e.mu.Lock()
		e.subnets[evt.WorkItemID] = child.ID()
		e.mu.Unlock()

		if e.logger.DebugEnabled() {
			e.logger.Debugf("WorkItem '%s' executed by sub-net case '%s' of '%s'", evt.WorkItemID, child.ID(), specID)
		}
		err = child.Start()
	}

	if err != nil {
		e.logger.Errorf("Unable to launch sub-net '%s' for WorkItem '%s': %v", specID, evt.WorkItemID, err)
		if _, failErr := parent.FailWorkItem(evt.WorkItemID, err.Error()); failErr != nil {
			e.logger.Warnf("Unable to fail WorkItem '%s': %v", evt.WorkItemID, failErr)
		}
	}
}

func (e *Engine) handleCaseEvent(evt *event.CaseEvent) {

	switch evt.Status {
	case event.COMPLETED, event.FAILED, event.CANCELLED:
	default:
		return
	}

	e.mu.Lock()
	callbacks := e.done[evt.CaseID]
	delete(e.done, evt.CaseID)
	e.mu.Unlock()

	for _, callback := range callbacks {
		callback(evt)
	}

	if evt.ParentItemID == "" {
		return
	}

	e.mu.Lock()
	childID, tracked := e.subnets[evt.ParentItemID]
	if tracked && childID == evt.CaseID {
		delete(e.subnets, evt.ParentItemID)
	}
	e.mu.Unlock()

	if !tracked || childID != evt.CaseID {
		return
	}

	parent, err := e.Case(evt.ParentCaseID)
	if err != nil {
		e.logger.Warnf("Parent case '%s' of sub-net case '%s' not found", evt.ParentCaseID, evt.CaseID)
		return
	}

	if evt.Status == event.COMPLETED {
		_, err = parent.CompleteWorkItem(evt.ParentItemID, evt.Data)
	} else {
		reason := fmt.Sprintf("sub-net case '%s' %s", evt.CaseID, strings.ToLower(string(evt.Status)))
		if evt.Err != nil {
			reason = fmt.Sprintf("%s: %v", reason, evt.Err)
		}
		_, err = parent.FailWorkItem(evt.ParentItemID, reason)
	}

	if err != nil {
		e.logger.Warnf("Unable to report sub-net case '%s' to WorkItem '%s': %v", evt.CaseID, evt.ParentItemID, err)
	}
}
