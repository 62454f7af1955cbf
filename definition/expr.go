package definition

import (
	"fmt"
	"reflect"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/project-flogo/core/data/coerce"
)

// GuardError thrown if error is encountered evaluating a flow guard or an
// instance query
type GuardError struct {
	FlowID string
	Expr   string
	Err    error
}

func (e *GuardError) Error() string {
	if e.FlowID == "" {
		return fmt.Sprintf("unable to evaluate expression '%s': %v", e.Expr, e.Err)
	}
	return fmt.Sprintf("unable to evaluate guard '%s' of flow '%s': %v", e.Expr, e.FlowID, e.Err)
}

func (e *GuardError) Unwrap() error {
	return e.Err
}

// compileGuard only checks the syntax, the case data is untyped so a guard
// is checked to yield a bool when it runs
func compileGuard(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.AllowUndefinedVariables())
}

func compileQuery(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.AllowUndefinedVariables())
}

func exprEnv(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return data
}

// EvalGuard evaluates the guard of the flow against the specified data.  A
// flow without a guard always holds.
func (f *Flow) EvalGuard(data map[string]interface{}) (bool, error) {
	if f.program == nil {
		return true, nil
	}

	out, err := expr.Run(f.program, exprEnv(data))
	if err != nil {
		return false, &GuardError{FlowID: f.id, Expr: f.guard, Err: err}
	}

	if out == nil {
		return false, nil
	}

	result, ok := out.(bool)
	if !ok {
		return false, &GuardError{FlowID: f.id, Expr: f.guard, Err: fmt.Errorf("expected bool, got %T", out)}
	}
	return result, nil
}

// evalQuery runs an instance query; the result is either a count or a
// collection whose items seed the instances
func evalQuery(program *vm.Program, src string, data map[string]interface{}) (int, []interface{}, error) {
	out, err := expr.Run(program, exprEnv(data))
	if err != nil {
		return 0, nil, &GuardError{Expr: src, Err: err}
	}

	if out == nil {
		return 0, nil, nil
	}

	rv := reflect.ValueOf(out)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]interface{}, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return len(items), items, nil
	}

	count, err := coerce.ToInt(out)
	if err != nil {
		return 0, nil, &GuardError{Expr: src, Err: err}
	}
	return count, nil, nil
}
