package instance

import (
	"time"

	"github.com/project-flogo/petriflow/state"
	"github.com/project-flogo/petriflow/support"
	"github.com/project-flogo/petriflow/support/event"
)

// persist saves the snapshot of the case when snapshot recording is enabled
func (c *Case) persist() {
	if c.repo == nil || !state.RecordSnapshot(c.recordingMode) {
		return
	}

	if err := c.repo.Save(c.snapshot()); err != nil {
		c.logger.Warnf("unable to record snapshot: %v", err)
	}
}

func (c *Case) recorder() state.Recorder {
	if c.repo == nil || !state.RecordSteps(c.recordingMode) {
		return nil
	}
	recorder, _ := c.repo.(state.Recorder)
	return recorder
}

func (c *Case) caseState() *state.CaseState {
	return &state.CaseState{
		UserId:    support.GetUserName(),
		HostId:    support.GetHostId(),
		SpecID:    c.def.ID(),
		CaseID:    c.id,
		Status:    c.status.String(),
		StartTime: c.startTime,
	}
}

func (c *Case) recordStart() {
	if recorder := c.recorder(); recorder != nil {
		if err := recorder.RecordStart(c.caseState()); err != nil {
			c.logger.Warnf("unable to record start: %v", err)
		}
	}
}

func (c *Case) recordStep(fr *event.FireResult, start time.Time) {
	c.stepID++

	recorder := c.recorder()
	if recorder == nil {
		return
	}

	step := &state.Step{
		ID:        c.stepID,
		CaseID:    c.id,
		TaskID:    fr.TaskID,
		Consumed:  tokenIDs(fr.Consumed),
		Produced:  tokenIDs(fr.Produced),
		Cancelled: tokenIDs(fr.Cancelled),
		StartTime: start,
		EndTime:   c.now(),
	}
	for _, warning := range fr.Warnings {
		step.Warnings = append(step.Warnings, warning.Error())
	}

	if err := recorder.RecordStep(step); err != nil {
		c.logger.Warnf("unable to record step: %v", err)
	}
}

func tokenIDs(refs []event.TokenRef) []string {
	if len(refs) == 0 {
		return nil
	}
	ids := make([]string, len(refs))
	for idx, ref := range refs {
		ids[idx] = ref.ID
	}
	return ids
}

func (c *Case) recordDone() {
	if recorder := c.recorder(); recorder != nil {
		cs := c.caseState()
		cs.EndTime = c.now()
		if err := recorder.RecordDone(cs); err != nil {
			c.logger.Warnf("unable to record end: %v", err)
		}
	}
}
