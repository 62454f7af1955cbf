package simple

import (
	"fmt"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/identifier"
	"github.com/project-flogo/petriflow/model"
)

// EvalJoin evaluates the join of the context task against the marking and
// selects the tokens the task consumes if it fires
func EvalJoin(ctx model.TaskContext) *model.JoinResult {

	task := ctx.Task()
	presets := ctx.Definition().PresetConditions(task)

	result := &model.JoinResult{Result: model.ERNotReady}

	tokens := make([][]*identifier.Identifier, len(presets))
	for idx, cond := range presets {
		tokens[idx] = ctx.Tokens(cond.ID())
		if len(tokens[idx]) > 0 {
			result.Waiting = append(result.Waiting, cond.ID())
		}
	}

	if len(result.Waiting) == 0 {
		result.Reason = "no preset condition holds a token"
		return result
	}

	switch task.JoinType() {
	case definition.ControlAND:
		evalAndJoin(result, presets, tokens)
	case definition.ControlOR:
		evalOrJoin(ctx, result, presets, tokens)
	default:
		for _, condTokens := range tokens {
			if len(condTokens) > 0 {
				result.Result = model.EREnabled
				result.Tokens = []*identifier.Identifier{condTokens[0]}
				break
			}
		}
	}

	if ctx.Logger().DebugEnabled() {
		ctx.Logger().Debugf("Join of Task '%s' [%s]: enabled=%t waiting=%v", task.ID(), task.JoinType(), result.Enabled(), result.Waiting)
	}

	return result
}

func evalAndJoin(result *model.JoinResult, presets []*definition.Condition, tokens [][]*identifier.Identifier) {

	for idx, condTokens := range tokens {
		if len(condTokens) == 0 {
			result.Reason = fmt.Sprintf("preset condition '%s' holds no token", presets[idx].ID())
			return
		}
	}

	result.Result = model.EREnabled

	// prefer tokens that were forked by the same split
	for _, candidate := range tokens[0] {
		group := []*identifier.Identifier{candidate}
		for _, condTokens := range tokens[1:] {
			sibling := findSibling(condTokens, candidate.ParentID())
			if sibling == nil {
				break
			}
			group = append(group, sibling)
		}
		if len(group) == len(tokens) {
			result.Tokens = group
			return
		}
	}

	for _, condTokens := range tokens {
		result.Tokens = append(result.Tokens, condTokens[0])
	}
}

func findSibling(tokens []*identifier.Identifier, parentID string) *identifier.Identifier {
	for _, token := range tokens {
		if token.ParentID() == parentID {
			return token
		}
	}
	return nil
}

// evalOrJoin applies the local or-join rule: an unmarked preset condition
// can still receive a token when one of the tasks feeding it is running or
// has a marked preset condition
func evalOrJoin(ctx model.TaskContext, result *model.JoinResult, presets []*definition.Condition, tokens [][]*identifier.Identifier) {

	def := ctx.Definition()

	for idx, cond := range presets {
		if len(tokens[idx]) > 0 {
			continue
		}

		for _, pred := range def.PresetTasks(cond) {
			if pred.ID() == ctx.Task().ID() {
				continue
			}
			if ctx.IsBusy(pred.ID()) {
				result.Reason = fmt.Sprintf("preset condition '%s' can still be marked by running task '%s'", cond.ID(), pred.ID())
				return
			}
			for _, predCond := range def.PresetConditions(pred) {
				if len(ctx.Tokens(predCond.ID())) > 0 {
					result.Reason = fmt.Sprintf("preset condition '%s' can still be marked by task '%s'", cond.ID(), pred.ID())
					return
				}
			}
		}
	}

	result.Result = model.EREnabled
	for _, condTokens := range tokens {
		if len(condTokens) > 0 {
			result.Tokens = append(result.Tokens, condTokens[0])
		}
	}
}
