package instance

import (
	"fmt"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/identifier"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/state"
	"github.com/project-flogo/petriflow/support/event"
	"github.com/project-flogo/petriflow/util"
)

// Snapshot captures the state of the case
func (c *Case) Snapshot() *state.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshot()
}

func (c *Case) snapshot() *state.Snapshot {

	s := &state.Snapshot{
		ID:           c.id,
		SpecID:       c.def.ID(),
		Status:       int(c.status),
		Data:         util.DeepCopyMap(c.data),
		Marking:      c.marking.Snapshot(),
		ItemSeq:      c.itemSeq,
		StepSeq:      c.stepID,
		ParentCaseID: c.parentCaseID,
		ParentItemID: c.parentItemID,
		Timestamp:    c.now(),
	}

	if c.tree != nil {
		for _, ident := range c.tree.All() {
			s.Tokens = append(s.Tokens, &state.Token{
				ID:       ident.ID(),
				ParentID: ident.ParentID(),
				Location: ident.Location(),
				Live:     ident.IsLive(),
				Data:     ident.Data(),
			})
		}
	}

	for _, id := range c.taskInstOrder {
		ti := c.taskInsts[id]
		sti := &state.TaskInst{
			ID:        ti.id,
			TaskID:    ti.task.ID(),
			Status:    int(ti.status),
			TokenID:   ti.working.ID(),
			Items:     append([]string(nil), ti.items...),
			Instances: ti.progress.Instances,
			Completed: ti.progress.Completed,
			Failed:    ti.progress.Failed,
			Cancelled: ti.progress.Cancelled,
		}
		for _, ref := range ti.consumed {
			sti.Consumed = append(sti.Consumed, &state.Token{ID: ref.ID, Location: ref.Location})
		}
		for _, out := range ti.outputs {
			sti.Outputs = append(sti.Outputs, util.DeepCopy(out))
		}
		s.TaskInsts = append(s.TaskInsts, sti)
	}

	for _, id := range c.itemOrder {
		wi := c.workItems[id]
		s.WorkItems = append(s.WorkItems, &state.WorkItem{
			ID:          wi.id,
			TaskID:      wi.taskID,
			Status:      int(wi.status),
			Data:        util.DeepCopyMap(wi.data),
			Output:      util.DeepCopyMap(wi.output),
			Reason:      wi.reason,
			TokenID:     wi.TokenID(),
			Participant: wi.participant,
			TaskInstID:  wi.taskInstID,
			Instance:    wi.instance,
		})
	}

	return s
}

// RestoreCase re-creates a case of the specified net from a snapshot.  The
// timers of active work items are restarted.
func RestoreCase(def *definition.Definition, s *state.Snapshot, opts ...Option) (*Case, error) {

	if s.SpecID != def.ID() {
		return nil, fmt.Errorf("snapshot of case '%s' belongs to net '%s', not '%s'", s.ID, s.SpecID, def.ID())
	}

	c, err := newCase(s.ID, def, s.Data, opts...)
	if err != nil {
		return nil, err
	}

	c.status = model.CaseStatus(s.Status)
	c.itemSeq = s.ItemSeq
	c.stepID = s.StepSeq
	c.startTime = s.Timestamp
	if s.ParentCaseID != "" {
		c.parentCaseID = s.ParentCaseID
		c.parentItemID = s.ParentItemID
	}

	if err := c.restoreTokens(s); err != nil {
		return nil, err
	}

	for _, sti := range s.TaskInsts {
		task := def.GetTask(sti.TaskID)
		if task == nil {
			return nil, fmt.Errorf("task '%s' of activation '%s' not found in net '%s'", sti.TaskID, sti.ID, def.ID())
		}
		working, err := c.token(sti.TokenID)
		if err != nil {
			return nil, err
		}

		ti := &TaskInst{
			id:      sti.ID,
			task:    task,
			status:  model.ActivationStatus(sti.Status),
			working: working,
			items:   append([]string(nil), sti.Items...),
			progress: model.Progress{
				Instances: sti.Instances,
				Completed: sti.Completed,
				Failed:    sti.Failed,
				Cancelled: sti.Cancelled,
			},
		}
		ti.outputs, _ = util.DeepCopy(sti.Outputs).([]interface{})
		for _, consumed := range sti.Consumed {
			ti.consumed = append(ti.consumed, event.TokenRef{ID: consumed.ID, Location: consumed.Location})
		}
		c.addTaskInst(ti)
	}

	now := c.now()
	for _, swi := range s.WorkItems {
		if def.GetTask(swi.TaskID) == nil {
			return nil, fmt.Errorf("task '%s' of work item '%s' not found in net '%s'", swi.TaskID, swi.ID, def.ID())
		}

		wi := &WorkItem{
			id:          swi.ID,
			caseID:      c.id,
			taskID:      swi.TaskID,
			status:      model.WorkItemStatus(swi.Status),
			data:        util.DeepCopyMap(swi.Data),
			output:      util.DeepCopyMap(swi.Output),
			reason:      swi.Reason,
			participant: swi.Participant,
			taskInstID:  swi.TaskInstID,
			instance:    swi.Instance,
			created:     now,
			updated:     now,
		}
		if swi.TokenID != "" && !wi.status.IsFinal() {
			if wi.token, err = c.token(swi.TokenID); err != nil {
				return nil, err
			}
		}

		c.workItems[wi.id] = wi
		c.itemOrder = append(c.itemOrder, wi.id)
	}

	if c.status == model.CaseStatusRunning {
		c.restartTimers()
	}

	if c.logger.DebugEnabled() {
		c.logger.Debugf("Case restored: status=%s tokens=%d workItems=%d", c.status, c.marking.Total(), len(c.itemOrder))
	}

	return c, nil
}

func (c *Case) restoreTokens(s *state.Snapshot) error {
	if len(s.Tokens) == 0 {
		return nil
	}

	root := s.Tokens[0]
	c.tree = identifier.NewTree(root.ID, root.Data)
	for _, t := range s.Tokens {
		if _, err := c.tree.Restore(t.ID, t.ParentID, t.Location, t.Live, t.Data); err != nil {
			return err
		}
	}

	for elementID, ids := range s.Marking {
		for _, id := range ids {
			token, err := c.token(id)
			if err != nil {
				return err
			}
			c.marking.Add(elementID, token)
		}
	}
	return nil
}

func (c *Case) token(id string) (*identifier.Identifier, error) {
	if c.tree == nil {
		return nil, fmt.Errorf("token '%s' not found, case '%s' has no lineage", id, c.id)
	}
	token, ok := c.tree.Get(id)
	if !ok {
		return nil, fmt.Errorf("token '%s' not found in the lineage of case '%s'", id, c.id)
	}
	return token, nil
}
