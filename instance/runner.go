package instance

import (
	"errors"
	"fmt"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/identifier"
	"github.com/project-flogo/petriflow/marking"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/support/event"
)

// Fire fires the specified automatic task.  Tasks executing through work
// items are fired by starting and completing their work items.
func (c *Case) Fire(taskID string) (*event.FireResult, error) {

	var fr *event.FireResult

	err := c.run(func() error {
		if err := c.checkRunning(); err != nil {
			return err
		}

		task := c.def.GetTask(taskID)
		if task == nil {
			return fmt.Errorf("task '%s' not found in net '%s'", taskID, c.def.ID())
		}

		if !task.IsAutomatic() {
			return &model.EnablementError{TaskID: taskID, Reason: "task executes through work items"}
		}

		jr := c.behavior(task).Enter(c.newTaskContext(task))
		if !jr.Enabled() {
			err := &model.EnablementError{TaskID: taskID, Reason: jr.Reason}
			c.logger.Warnf("Firing aborted: %v", err)
			return err
		}

		var err error
		fr, err = c.fireAutomatic(task, jr)
		if err != nil {
			c.persist()
			return err
		}

		c.scan()
		c.persist()
		return nil
	})

	return fr, err
}

// Enabled returns the ids of the tasks whose join is satisfied by the
// current marking, in declaration order
func (c *Case) Enabled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != model.CaseStatusRunning && c.status != model.CaseStatusSuspended {
		return nil
	}

	var enabled []string
	for _, task := range c.def.Tasks() {
		if c.behavior(task).Enter(c.newTaskContext(task)).Enabled() {
			enabled = append(enabled, task.ID())
		}
	}
	return enabled
}

// Busy returns the ids of the tasks with running activations
func (c *Case) Busy() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var busy []string
	for _, task := range c.def.Tasks() {
		if c.hasActivation(task.ID()) {
			busy = append(busy, task.ID())
		}
	}
	return busy
}

// Waiting returns the preset conditions of the task already holding tokens
func (c *Case) Waiting(taskID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	task := c.def.GetTask(taskID)
	if task == nil {
		return nil
	}
	return c.behavior(task).Enter(c.newTaskContext(task)).Waiting
}

// Marking returns a copy of the marking of the case
func (c *Case) Marking() *marking.Marking {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.marking.Clone()
}

// MarkingSnapshot returns the token ids per marked element
func (c *Case) MarkingSnapshot() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.marking.Snapshot()
}

// Lineage returns the ids of the live identifiers of the case
func (c *Case) Lineage() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tree == nil {
		return nil
	}

	var ids []string
	for _, ident := range c.tree.All() {
		if ident.IsLive() {
			ids = append(ids, ident.ID())
		}
	}
	return ids
}

// scan fires enabled automatic tasks until none is left, completes the case
// once its output condition is marked and keeps the offered work items in
// line with the enabled tasks
func (c *Case) scan() {

	steps := 0
	output := c.def.OutputCondition().ID()

	for c.status == model.CaseStatusRunning {

		if c.marking.IsMarked(output) {
			c.complete()
			return
		}

		task, jr := c.nextAutomatic()
		if task == nil {
			break
		}

		if steps >= c.maxSteps {
			c.fail(fmt.Errorf("exceeded the maximum of %d automatic firings", c.maxSteps))
			return
		}
		steps++

		if _, err := c.fireAutomatic(task, jr); err != nil {
			return
		}
	}

	if c.status == model.CaseStatusRunning {
		c.withdrawWorkItems()
		c.offerWorkItems()
	}
}

func (c *Case) nextAutomatic() (*definition.Task, *model.JoinResult) {
	if !c.autoFire {
		return nil, nil
	}

	for _, task := range c.def.Tasks() {
		if !task.IsAutomatic() {
			continue
		}
		jr := c.behavior(task).Enter(c.newTaskContext(task))
		if jr.Enabled() {
			return task, jr
		}
	}
	return nil, nil
}

func (c *Case) fireAutomatic(task *definition.Task, jr *model.JoinResult) (*event.FireResult, error) {

	if c.logger.DebugEnabled() {
		c.logger.Debugf("Firing Task '%s'", task.ID())
	}

	ti := c.activate(task, jr.Tokens)
	ti.status = model.ActivationRunning
	ti.progress = model.Progress{Instances: 1, Completed: 1}

	return c.exit(ti)
}

// activate consumes the tokens of a join and creates the activation of the
// task.  Several tokens are merged into one new child of their nearest
// common ancestor; a single token passes through.
func (c *Case) activate(task *definition.Task, tokens []*identifier.Identifier) *TaskInst {

	consumed := make([]event.TokenRef, len(tokens))
	for idx, token := range tokens {
		consumed[idx] = event.TokenRef{ID: token.ID(), Location: token.Location()}
		c.marking.Remove(token.Location(), token.ID())
	}

	working := tokens[0]
	if len(tokens) > 1 {
		nca := c.tree.NearestCommonAncestor(tokens...)
		working = nca.CreateChild("")
		for _, token := range tokens {
			for name, value := range token.Data() {
				working.SetValue(name, value)
			}
			c.tree.Release(token)
		}
	}

	c.marking.Add(task.ID(), working)

	ti := &TaskInst{
		id:       working.ID(),
		task:     task,
		status:   model.ActivationInstantiating,
		working:  working,
		consumed: consumed,
	}
	c.addTaskInst(ti)

	return ti
}

// exit completes an activation: the split of the task produces the tokens
// of its outgoing flows and its cancellation set is applied
func (c *Case) exit(ti *TaskInst) (*event.FireResult, error) {

	task := ti.task
	start := c.now()

	fr := &event.FireResult{
		CaseID:   c.id,
		TaskID:   task.ID(),
		Consumed: ti.consumed,
	}

	ti.status = model.ActivationCompleting
	flows, err := c.behavior(task).Done(c.newTaskContext(task))

	c.marking.Remove(task.ID(), ti.working.ID())
	c.removeTaskInst(ti)

	if err != nil {
		ti.status = model.ActivationFailed
		c.tree.Release(ti.working)

		var splitErr *model.SplitEvaluationError
		if !errors.As(err, &splitErr) {
			err = &model.SplitEvaluationError{TaskID: task.ID(), Err: err}
		}
		c.fail(err)
		return nil, err
	}

	if len(flows) == 1 {
		c.marking.Add(flows[0].Target(), ti.working)
		fr.Produced = append(fr.Produced, event.TokenRef{ID: ti.working.ID(), Location: flows[0].Target()})
	} else {
		for _, flow := range flows {
			child := ti.working.CreateChild("")
			c.marking.Add(flow.Target(), child)
			fr.Produced = append(fr.Produced, event.TokenRef{ID: child.ID(), Location: flow.Target()})
		}
		c.tree.Release(ti.working)
	}

	ti.status = model.ActivationDone

	c.cancelRegion(task, fr)

	fr.Timestamp = c.now()
	c.recordStep(fr, start)
	c.queue(fr)

	if c.logger.DebugEnabled() {
		c.logger.Debugf("Task '%s' fired: consumed=%v produced=%v cancelled=%v", task.ID(), fr.Consumed, fr.Produced, fr.Cancelled)
	}

	return fr, nil
}

func (c *Case) addTaskInst(ti *TaskInst) {
	c.taskInsts[ti.id] = ti
	c.taskInstOrder = append(c.taskInstOrder, ti.id)
}

func (c *Case) removeTaskInst(ti *TaskInst) {
	delete(c.taskInsts, ti.id)
	for idx, id := range c.taskInstOrder {
		if id == ti.id {
			c.taskInstOrder = append(c.taskInstOrder[:idx:idx], c.taskInstOrder[idx+1:]...)
			return
		}
	}
}

// withdrawWorkItems cancels the offered work items of tasks that are no
// longer enabled, such as the other branches of a deferred choice
func (c *Case) withdrawWorkItems() {
	for _, id := range c.itemOrder {
		wi := c.workItems[id]
		if wi.status != model.WorkItemStatusEnabled || wi.taskInstID != "" {
			continue
		}

		task := c.def.GetTask(wi.taskID)
		if !c.behavior(task).Enter(c.newTaskContext(task)).Enabled() {
			if c.logger.DebugEnabled() {
				c.logger.Debugf("Withdrawing WorkItem '%s', task '%s' is no longer enabled", wi.id, task.ID())
			}
			c.cancelItem(wi)
		}
	}
}

// offerWorkItems offers one work item for every enabled task executing
// through work items that has no offered item yet
func (c *Case) offerWorkItems() {
	for _, task := range c.def.Tasks() {
		if task.IsAutomatic() || c.hasOfferedItem(task.ID()) {
			continue
		}

		if c.behavior(task).Enter(c.newTaskContext(task)).Enabled() {
			c.newWorkItem(task, nil, "", 0, nil)
		}
	}
}

func (c *Case) hasOfferedItem(taskID string) bool {
	for _, id := range c.itemOrder {
		wi := c.workItems[id]
		if wi.taskID == taskID && wi.status == model.WorkItemStatusEnabled && wi.taskInstID == "" {
			return true
		}
	}
	return false
}
