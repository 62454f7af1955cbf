package simple

import (
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/model"
)

// EvalSplit determines the flows activated when the task exits.  Flows are
// expected in evaluation order.
func EvalSplit(task *definition.Task, flows []*definition.Flow, data map[string]interface{}) ([]*definition.Flow, error) {

	if task.SplitType() == definition.ControlAND {
		return flows, nil
	}

	var activated []*definition.Flow
	var defaultFlow *definition.Flow

	for _, flow := range flows {
		if flow.IsDefault() {
			defaultFlow = flow
			continue
		}

		holds, err := flow.EvalGuard(data)
		if err != nil {
			return nil, &model.SplitEvaluationError{TaskID: task.ID(), Err: err}
		}
		if !holds {
			continue
		}

		activated = append(activated, flow)
		if task.SplitType() == definition.ControlXOR {
			return activated, nil
		}
	}

	if len(activated) > 0 {
		return activated, nil
	}

	if defaultFlow != nil {
		return []*definition.Flow{defaultFlow}, nil
	}

	return nil, &model.SplitEvaluationError{TaskID: task.ID()}
}
