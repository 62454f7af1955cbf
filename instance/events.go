package instance

import (
	coreevent "github.com/project-flogo/core/engine/event"

	"github.com/project-flogo/petriflow/support/event"
	"github.com/project-flogo/petriflow/util"
)

func (c *Case) postCaseEvent(status event.Status, err error) {

	ce := &event.CaseEvent{
		CaseID:       c.id,
		SpecID:       c.def.ID(),
		Status:       status,
		Time:         c.now(),
		Err:          err,
		ParentCaseID: c.parentCaseID,
		ParentItemID: c.parentItemID,
	}

	switch status {
	case event.CREATED, event.STARTED, event.COMPLETED:
		ce.Data = util.DeepCopyMap(c.data)
	}

	c.queue(ce)
}

func (c *Case) postWorkItemEvent(wi *WorkItem, status event.Status, forced bool) {

	we := &event.WorkItemEvent{
		CaseID:      c.id,
		WorkItemID:  wi.id,
		TaskID:      wi.taskID,
		Status:      status,
		Participant: wi.participant,
		Time:        c.now(),
		Forced:      forced,
	}

	switch status {
	case event.ENABLED, event.EXECUTING:
		we.Data = util.DeepCopyMap(wi.data)
	case event.COMPLETED:
		we.Data = util.DeepCopyMap(wi.output)
	}

	c.queue(we)
}

// queue holds an event until the operation raising it releases the case
func (c *Case) queue(evt interface{}) {
	c.pending = append(c.pending, evt)
}

// dispatch delivers events to the case handler and the core event bus, it
// must be called without holding the case lock
func (c *Case) dispatch(events []interface{}) {
	for _, evt := range events {
		if c.onEvent != nil {
			c.onEvent(evt)
		}

		eventType := event.EventType(evt)
		if coreevent.HasListener(eventType) {
			coreevent.Post(eventType, evt)
		}
	}
}
