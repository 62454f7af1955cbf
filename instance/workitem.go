package instance

import (
	"fmt"
	"time"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/identifier"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/support/event"
	"github.com/project-flogo/petriflow/util"
)

// ItemDataKey is the key under which a work item of a multi-instance task
// receives the data of its instance
const ItemDataKey = "item"

// TimedOutKey is set in the output of a work item completed by its timer
const TimedOutKey = "timedOut"

// WorkItem is the externally visible unit of work of one task activation
// or one instance of a multi-instance activation
type WorkItem struct {
	id     string
	caseID string
	taskID string
	status model.WorkItemStatus

	data   map[string]interface{}
	output map[string]interface{}
	reason string

	token       *identifier.Identifier
	participant string
	taskInstID  string
	instance    int

	created time.Time
	updated time.Time
}

func (wi *WorkItem) ID() string {
	return wi.id
}

func (wi *WorkItem) CaseID() string {
	return wi.caseID
}

func (wi *WorkItem) TaskID() string {
	return wi.taskID
}

func (wi *WorkItem) Status() model.WorkItemStatus {
	return wi.status
}

// Data returns the snapshot of the case data taken when the item was offered
func (wi *WorkItem) Data() map[string]interface{} {
	return util.DeepCopyMap(wi.data)
}

// Output returns the data the item completed with
func (wi *WorkItem) Output() map[string]interface{} {
	return util.DeepCopyMap(wi.output)
}

// Reason returns why the item failed
func (wi *WorkItem) Reason() string {
	return wi.reason
}

// TokenID returns the id of the token bound to the item, empty while the
// item is only offered
func (wi *WorkItem) TokenID() string {
	if wi.token == nil {
		return ""
	}
	return wi.token.ID()
}

func (wi *WorkItem) Participant() string {
	return wi.participant
}

// Instance returns the instance number of the item within a multi-instance
// activation, 0 for single instance tasks
func (wi *WorkItem) Instance() int {
	return wi.instance
}

func (wi *WorkItem) Created() time.Time {
	return wi.created
}

func (wi *WorkItem) Updated() time.Time {
	return wi.updated
}

func (wi *WorkItem) clone() *WorkItem {
	cp := *wi
	cp.data = util.DeepCopyMap(wi.data)
	cp.output = util.DeepCopyMap(wi.output)
	return &cp
}

// WorkItems returns copies of the work items of the case in creation order
func (c *Case) WorkItems() []*WorkItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]*WorkItem, 0, len(c.itemOrder))
	for _, id := range c.itemOrder {
		items = append(items, c.workItems[id].clone())
	}
	return items
}

// WorkItem returns a copy of the specified work item
func (c *Case) WorkItem(id string) (*WorkItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wi, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return wi.clone(), nil
}

// StartWorkItem moves an Enabled work item to Executing.  Starting the
// offered item of a task fires the task: the join tokens are consumed and
// the instances of the activation are created.
func (c *Case) StartWorkItem(id string) (*WorkItem, error) {
	return c.itemOp(id, func(wi *WorkItem) error {
		if wi.status != model.WorkItemStatusEnabled {
			return &model.WorkItemStateError{WorkItemID: id, From: wi.status, To: model.WorkItemStatusExecuting}
		}
		return c.startItem(wi)
	})
}

// CompleteWorkItem moves an Executing work item to Complete with the
// specified output
func (c *Case) CompleteWorkItem(id string, output map[string]interface{}) (*WorkItem, error) {
	return c.itemOp(id, func(wi *WorkItem) error {
		if wi.status != model.WorkItemStatusExecuting {
			return &model.WorkItemStateError{WorkItemID: id, From: wi.status, To: model.WorkItemStatusComplete}
		}
		return c.completeItem(wi, output)
	})
}

// FailWorkItem moves an Executing work item to Failed
func (c *Case) FailWorkItem(id string, reason string) (*WorkItem, error) {
	return c.itemOp(id, func(wi *WorkItem) error {
		if wi.status != model.WorkItemStatusExecuting {
			return &model.WorkItemStateError{WorkItemID: id, From: wi.status, To: model.WorkItemStatusFailed}
		}
		return c.failItem(wi, reason)
	})
}

// SuspendWorkItem moves an Executing work item to Suspended
func (c *Case) SuspendWorkItem(id string) (*WorkItem, error) {
	return c.itemOp(id, func(wi *WorkItem) error {
		if wi.status != model.WorkItemStatusExecuting {
			return &model.WorkItemStateError{WorkItemID: id, From: wi.status, To: model.WorkItemStatusSuspended}
		}
		c.transition(wi, model.WorkItemStatusSuspended, event.SUSPENDED, false)
		return nil
	})
}

// ResumeWorkItem moves a Suspended work item back to Executing
func (c *Case) ResumeWorkItem(id string) (*WorkItem, error) {
	return c.itemOp(id, func(wi *WorkItem) error {
		if wi.status != model.WorkItemStatusSuspended {
			return &model.WorkItemStateError{WorkItemID: id, From: wi.status, To: model.WorkItemStatusExecuting}
		}
		c.transition(wi, model.WorkItemStatusExecuting, event.RESUMED, false)
		c.startTimer(wi, definition.TimerOnExecuting)
		return nil
	})
}

// AllocateWorkItem records the participant an Enabled work item is
// allocated to
func (c *Case) AllocateWorkItem(id string, participant string) (*WorkItem, error) {
	return c.itemOp(id, func(wi *WorkItem) error {
		if wi.status != model.WorkItemStatusEnabled {
			return &model.WorkItemStateError{WorkItemID: id, From: wi.status, To: wi.status, Op: "allocated"}
		}
		wi.participant = participant
		wi.updated = c.now()
		return nil
	})
}

// AddInstance adds an instance to the running multi-instance activation the
// specified work item belongs to.  It returns the work item of the new
// instance.
func (c *Case) AddInstance(id string, data interface{}) (*WorkItem, error) {

	var added *WorkItem

	_, err := c.itemOp(id, func(wi *WorkItem) error {
		ti := c.taskInsts[wi.taskInstID]
		if ti == nil {
			return fmt.Errorf("work item '%s' has no running activation", id)
		}

		mi := ti.task.MultiInstance()
		if mi == nil || !mi.CanAdd() {
			return fmt.Errorf("task '%s' does not allow adding instances", ti.task.ID())
		}
		if ti.status != model.ActivationRunning {
			return fmt.Errorf("activation '%s' of task '%s' is %s", ti.id, ti.task.ID(), ti.status)
		}
		if ti.progress.Instances >= mi.Max() {
			return fmt.Errorf("task '%s' already runs the maximum of %d instances", ti.task.ID(), mi.Max())
		}

		ti.progress.Instances++
		token := ti.working.CreateChild("")
		c.marking.Add(ti.task.ID(), token)
		instanceItem := c.newWorkItem(ti.task, token, ti.id, ti.progress.Instances, data)
		ti.items = append(ti.items, instanceItem.id)
		added = instanceItem.clone()

		if c.logger.DebugEnabled() {
			c.logger.Debugf("Added instance %d to Task '%s'", ti.progress.Instances, ti.task.ID())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return added, nil
}

// itemOp runs a work item operation of a running case, then rescans the net
// and persists the case
func (c *Case) itemOp(id string, op func(wi *WorkItem) error) (*WorkItem, error) {

	var result *WorkItem

	err := c.run(func() error {
		if err := c.checkRunning(); err != nil {
			return err
		}

		wi, err := c.lookup(id)
		if err != nil {
			return err
		}

		if err := op(wi); err != nil {
			if c.status.IsFinal() {
				c.persist()
			}
			return err
		}

		c.scan()
		c.persist()
		result = wi.clone()
		return nil
	})

	return result, err
}

func (c *Case) lookup(id string) (*WorkItem, error) {
	wi, ok := c.workItems[id]
	if !ok {
		return nil, fmt.Errorf("work item '%s' of case '%s': %w", id, c.id, model.ErrWorkItemNotFound)
	}
	return wi, nil
}

func (c *Case) newWorkItem(task *definition.Task, token *identifier.Identifier, taskInstID string, instance int, item interface{}) *WorkItem {

	c.itemSeq++
	now := c.now()

	wi := &WorkItem{
		id:         fmt.Sprintf("%s:%s:%d", c.id, task.ID(), c.itemSeq),
		caseID:     c.id,
		taskID:     task.ID(),
		status:     model.WorkItemStatusEnabled,
		data:       util.DeepCopyMap(c.data),
		token:      token,
		taskInstID: taskInstID,
		instance:   instance,
		created:    now,
		updated:    now,
	}
	if wi.data == nil {
		wi.data = make(map[string]interface{})
	}
	if item != nil {
		wi.data[ItemDataKey] = util.DeepCopy(item)
	}

	c.workItems[wi.id] = wi
	c.itemOrder = append(c.itemOrder, wi.id)

	c.postWorkItemEvent(wi, event.ENABLED, false)
	c.startTimer(wi, definition.TimerOnEnabled)

	return wi
}

// startItem starts an Enabled work item.  The offered item of a task fires
// the task; an instance item of a running activation just starts.
func (c *Case) startItem(wi *WorkItem) error {

	if wi.taskInstID == "" {
		task := c.def.GetTask(wi.taskID)
		ctx := c.newTaskContext(task)

		jr := c.behavior(task).Enter(ctx)
		if !jr.Enabled() {
			c.cancelItem(wi)
			err := &model.EnablementError{TaskID: task.ID(), Reason: jr.Reason}
			c.logger.Warnf("WorkItem '%s' withdrawn: %v", wi.id, err)
			c.persist()
			return err
		}

		ti := c.activate(task, jr.Tokens)

		n, items, err := c.behavior(task).Instances(ctx)
		if err != nil {
			c.fail(fmt.Errorf("unable to create the instances of task '%s': %w", task.ID(), err))
			c.persist()
			return err
		}

		ti.status = model.ActivationRunning
		ti.progress.Instances = n
		ti.items = append(ti.items, wi.id)
		wi.taskInstID = ti.id

		if !ti.isMultiInstance() {
			wi.token = ti.working
		} else {
			c.marking.Remove(task.ID(), ti.working.ID())
			for i := 0; i < n; i++ {
				token := ti.working.CreateChild("")
				c.marking.Add(task.ID(), token)

				var item interface{}
				if i < len(items) {
					item = items[i]
				}

				if i == 0 {
					wi.token = token
					wi.instance = 1
					if item != nil {
						wi.data[ItemDataKey] = util.DeepCopy(item)
					}
					continue
				}

				instanceItem := c.newWorkItem(task, token, ti.id, i+1, item)
				ti.items = append(ti.items, instanceItem.id)
			}
		}

		if c.logger.DebugEnabled() {
			c.logger.Debugf("Task '%s' activated with %d instance(s)", task.ID(), n)
		}
	}

	c.transition(wi, model.WorkItemStatusExecuting, event.EXECUTING, false)
	c.startTimer(wi, definition.TimerOnExecuting)

	return nil
}

func (c *Case) completeItem(wi *WorkItem, output map[string]interface{}) error {

	wi.output = util.DeepCopyMap(output)
	c.transition(wi, model.WorkItemStatusComplete, event.COMPLETED, false)

	ti := c.taskInsts[wi.taskInstID]
	if ti == nil {
		c.logger.Warnf("WorkItem '%s' completed without a running activation", wi.id)
		return nil
	}

	c.releaseItemToken(ti, wi)
	ti.progress.Completed++

	if mi := ti.task.MultiInstance(); mi != nil && mi.Accumulate() != "" {
		ti.outputs = append(ti.outputs, util.DeepCopyMap(output))
	} else {
		util.MergeMap(c.data, output)
	}

	return c.evalActivation(ti)
}

func (c *Case) failItem(wi *WorkItem, reason string) error {

	wi.reason = reason
	c.transition(wi, model.WorkItemStatusFailed, event.FAILED, false)

	ti := c.taskInsts[wi.taskInstID]
	if ti == nil {
		c.logger.Warnf("WorkItem '%s' failed without a running activation", wi.id)
		return nil
	}

	c.releaseItemToken(ti, wi)
	ti.progress.Failed++

	return c.evalActivation(ti)
}

// evalActivation lets the behavior of the task decide whether the activation
// is done.  A done activation cancels its remaining instances and exits in
// the same step.  A split that fails the case returns its error.
func (c *Case) evalActivation(ti *TaskInst) error {

	switch c.behavior(ti.task).Eval(c.newTaskContext(ti.task), ti.progress) {
	case model.EvalDone:
		for _, id := range ti.items {
			if c.cancelItem(c.workItems[id]) {
				ti.progress.Cancelled++
			}
		}

		if mi := ti.task.MultiInstance(); mi != nil && mi.Accumulate() != "" {
			c.data[mi.Accumulate()] = ti.outputs
		}

		if c.logger.DebugEnabled() {
			p := ti.progress
			c.logger.Debugf("Task '%s' done: %d of %d instances completed, %d cancelled", ti.task.ID(), p.Completed, p.Instances, p.Cancelled)
		}

		_, err := c.exit(ti)
		return err

	case model.EvalFail:
		ti.status = model.ActivationFailed
		p := ti.progress
		// the failed item is the requested outcome, the case failure is
		// reported through its event
		c.fail(fmt.Errorf("task '%s' failed: %d of %d instances completed, %d failed", ti.task.ID(), p.Completed, p.Instances, p.Failed))
	}
	return nil
}

// cancelItem forces an active work item to Cancelled, it returns false if
// the item is already in a terminal status
func (c *Case) cancelItem(wi *WorkItem) bool {
	if wi == nil || wi.status.IsFinal() {
		return false
	}

	c.transition(wi, model.WorkItemStatusCancelled, event.CANCELLED, true)

	if ti := c.taskInsts[wi.taskInstID]; ti != nil {
		c.releaseItemToken(ti, wi)
	}
	return true
}

// releaseItemToken releases the instance token of a multi-instance item, the
// working token of a single instance activation moves on at exit
func (c *Case) releaseItemToken(ti *TaskInst, wi *WorkItem) {
	if wi.token == nil || wi.token == ti.working {
		return
	}
	c.marking.Remove(ti.task.ID(), wi.token.ID())
	c.tree.Release(wi.token)
}

func (c *Case) transition(wi *WorkItem, to model.WorkItemStatus, status event.Status, forced bool) {

	if c.logger.DebugEnabled() {
		c.logger.Debugf("WorkItem '%s': %s -> %s", wi.id, wi.status, to)
	}

	wi.status = to
	wi.updated = c.now()
	c.stopTimer(wi.id)
	c.postWorkItemEvent(wi, status, forced)
}

func (c *Case) startTimer(wi *WorkItem, trigger definition.TimerTrigger) {
	if c.timerService == nil {
		return
	}

	t := c.def.GetTask(wi.taskID).Timer()
	if t == nil || t.Trigger != trigger {
		return
	}

	itemID := wi.id
	c.stopTimer(itemID)
	c.timers[itemID] = c.timerService.Schedule(c.now().Add(t.Duration), func() {
		c.onTimer(itemID)
	})
}

func (c *Case) stopTimer(itemID string) {
	if cancel, ok := c.timers[itemID]; ok {
		cancel()
		delete(c.timers, itemID)
	}
}

// restartTimers schedules the timers of the active work items with their
// full duration
func (c *Case) restartTimers() {
	for _, id := range c.itemOrder {
		wi := c.workItems[id]
		switch wi.status {
		case model.WorkItemStatusEnabled:
			c.startTimer(wi, definition.TimerOnEnabled)
		case model.WorkItemStatusExecuting:
			c.startTimer(wi, definition.TimerOnExecuting)
		}
	}
}

func (c *Case) stopTimers() {
	for itemID := range c.timers {
		c.stopTimer(itemID)
	}
}

// onTimer handles the expiry of the timer of a work item: an offered item is
// started, then the executing item completes as timed out
func (c *Case) onTimer(itemID string) {
	_ = c.run(func() error {
		delete(c.timers, itemID)

		if c.status != model.CaseStatusRunning {
			return nil
		}

		wi, ok := c.workItems[itemID]
		if !ok {
			return nil
		}

		if c.logger.DebugEnabled() {
			c.logger.Debugf("Timer of WorkItem '%s' expired", itemID)
		}

		if wi.status == model.WorkItemStatusEnabled {
			if err := c.startItem(wi); err != nil {
				c.persist()
				return err
			}
		}
		if wi.status == model.WorkItemStatusExecuting {
			if err := c.completeItem(wi, map[string]interface{}{TimedOutKey: true}); err != nil {
				c.persist()
				return err
			}
		}

		c.scan()
		c.persist()
		return nil
	})
}
