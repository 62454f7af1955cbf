package definition

import (
	"fmt"
	"sort"
	"time"

	"github.com/expr-lang/expr/vm"
)

// Definition is the object that describes the definition of a net.  It
// contains its structure (conditions, tasks & flows).  Elements and flows
// are kept in per-net collections keyed by id; relationships between them
// are id lookups.
type Definition struct {
	id   string
	name string

	input  string
	output string

	conditions map[string]*Condition
	tasks      map[string]*Task
	flows      map[string]*Flow

	conditionOrder []string
	taskOrder      []string
}

// ID returns the id of the definition
func (d *Definition) ID() string {
	return d.id
}

// Name returns the name of the definition
func (d *Definition) Name() string {
	return d.name
}

// InputCondition returns the input condition of the net
func (d *Definition) InputCondition() *Condition {
	return d.conditions[d.input]
}

// OutputCondition returns the output condition of the net
func (d *Definition) OutputCondition() *Condition {
	return d.conditions[d.output]
}

// GetCondition returns the condition with the specified ID
func (d *Definition) GetCondition(id string) *Condition {
	return d.conditions[id]
}

// GetTask returns the task with the specified ID
func (d *Definition) GetTask(id string) *Task {
	return d.tasks[id]
}

// GetFlow returns the flow with the specified ID
func (d *Definition) GetFlow(id string) *Flow {
	return d.flows[id]
}

// GetElement returns the condition or task with the specified ID
func (d *Definition) GetElement(id string) Element {
	if c, ok := d.conditions[id]; ok {
		return c
	}
	if t, ok := d.tasks[id]; ok {
		return t
	}
	return nil
}

// Tasks returns the tasks of the net in declaration order
func (d *Definition) Tasks() []*Task {
	tasks := make([]*Task, 0, len(d.taskOrder))
	for _, id := range d.taskOrder {
		tasks = append(tasks, d.tasks[id])
	}
	return tasks
}

// Conditions returns the conditions of the net in declaration order,
// implicit conditions last
func (d *Definition) Conditions() []*Condition {
	conditions := make([]*Condition, 0, len(d.conditionOrder))
	for _, id := range d.conditionOrder {
		conditions = append(conditions, d.conditions[id])
	}
	return conditions
}

// Flows returns the flows of the net sorted by id
func (d *Definition) Flows() []*Flow {
	flows := make([]*Flow, 0, len(d.flows))
	for _, flow := range d.flows {
		flows = append(flows, flow)
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].id < flows[j].id })
	return flows
}

// PresetConditions returns the conditions feeding the specified task
func (d *Definition) PresetConditions(task *Task) []*Condition {
	conditions := make([]*Condition, 0, len(task.preset))
	for _, flowID := range task.preset {
		conditions = append(conditions, d.conditions[d.flows[flowID].source])
	}
	return conditions
}

// PostsetFlows returns the outgoing flows of the specified task in the
// order they are evaluated by a split
func (d *Definition) PostsetFlows(task *Task) []*Flow {
	flows := make([]*Flow, 0, len(task.postset))
	for _, flowID := range task.postset {
		flows = append(flows, d.flows[flowID])
	}
	sort.SliceStable(flows, func(i, j int) bool { return flows[i].ordering < flows[j].ordering })
	return flows
}

// PresetTasks returns the tasks that put tokens on the specified condition
func (d *Definition) PresetTasks(condition *Condition) []*Task {
	tasks := make([]*Task, 0, len(condition.preset))
	for _, flowID := range condition.preset {
		tasks = append(tasks, d.tasks[d.flows[flowID].source])
	}
	return tasks
}

// PostsetTasks returns the tasks consuming tokens from the specified condition
func (d *Definition) PostsetTasks(condition *Condition) []*Task {
	tasks := make([]*Task, 0, len(condition.postset))
	for _, flowID := range condition.postset {
		tasks = append(tasks, d.tasks[d.flows[flowID].target])
	}
	return tasks
}

////////////////////////////////////////////////////////////////////////////
// Elements

// Element is a node of the net: either a *Condition or a *Task.
type Element interface {
	ID() string
	Name() string

	// Preset returns the ids of the incoming flows
	Preset() []string

	// Postset returns the ids of the outgoing flows
	Postset() []string

	isElement()
}

// ConditionKind is an enum for the possible kinds of Condition
type ConditionKind int

const (
	KindExplicit ConditionKind = iota
	KindInput
	KindOutput
	KindImplicit
)

func (k ConditionKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindImplicit:
		return "implicit"
	default:
		return "explicit"
	}
}

// Condition is a place of the net; it holds tokens.
type Condition struct {
	id   string
	name string
	kind ConditionKind

	preset  []string
	postset []string
}

func (c *Condition) isElement() {}

// ID gets the id of the condition
func (c *Condition) ID() string {
	return c.id
}

// Name gets the name of the condition
func (c *Condition) Name() string {
	return c.name
}

// Kind gets the kind of the condition
func (c *Condition) Kind() ConditionKind {
	return c.kind
}

// Preset returns the ids of the flows leading to the condition
func (c *Condition) Preset() []string {
	return c.preset
}

// Postset returns the ids of the flows leaving the condition
func (c *Condition) Postset() []string {
	return c.postset
}

func (c *Condition) String() string {
	return fmt.Sprintf("Condition[%s] '%s'", c.id, c.name)
}

// ControlType is the split or join behaviour of a task
type ControlType int

const (
	ControlXOR ControlType = iota
	ControlAND
	ControlOR
)

func (ct ControlType) String() string {
	switch ct {
	case ControlAND:
		return "and"
	case ControlOR:
		return "or"
	default:
		return "xor"
	}
}

// DecompositionType is an enum for the kinds of work behind a task
type DecompositionType int

const (
	// DecompositionNone denotes an automatic task, fired as soon as it is enabled
	DecompositionNone DecompositionType = iota

	// DecompositionManual denotes a unit of work executed through work items
	DecompositionManual

	// DecompositionNet denotes work delegated to a case of another net
	DecompositionNet
)

// Decomposition is the work definition behind a task
type Decomposition struct {
	ID   string
	Type DecompositionType
}

// TimerTrigger is an enum for the work item state that starts a task timer
type TimerTrigger int

const (
	TimerOnEnabled TimerTrigger = iota
	TimerOnExecuting
)

// Timer is the deadline configuration of a task
type Timer struct {
	Trigger  TimerTrigger
	Duration time.Duration
}

// Task is a transition of the net.
type Task struct {
	id     string
	name   string
	typeID string

	split ControlType
	join  ControlType

	multiInstance   *MultiInstance
	cancellationSet []string
	decomposition   *Decomposition
	timer           *Timer

	preset  []string
	postset []string
}

func (t *Task) isElement() {}

// ID gets the id of the task
func (t *Task) ID() string {
	return t.id
}

// Name gets the name of the task
func (t *Task) Name() string {
	return t.name
}

// TypeID gets the id of the task behavior type
func (t *Task) TypeID() string {
	return t.typeID
}

// SplitType returns the split behaviour of the task
func (t *Task) SplitType() ControlType {
	return t.split
}

// JoinType returns the join behaviour of the task
func (t *Task) JoinType() ControlType {
	return t.join
}

// MultiInstance returns the multi-instance attributes, nil for single instance tasks
func (t *Task) MultiInstance() *MultiInstance {
	return t.multiInstance
}

// IsMultiInstance indicates if the task spawns multiple instances per activation
func (t *Task) IsMultiInstance() bool {
	return t.multiInstance != nil
}

// CancellationSet returns the ids of the elements reset when the task completes
func (t *Task) CancellationSet() []string {
	return t.cancellationSet
}

// Decomposition returns the work definition of the task, nil for automatic tasks
func (t *Task) Decomposition() *Decomposition {
	return t.decomposition
}

// IsAutomatic indicates if the task completes as soon as it fires
func (t *Task) IsAutomatic() bool {
	return t.decomposition == nil && t.multiInstance == nil
}

// Timer returns the timer of the task, nil if there is none
func (t *Task) Timer() *Timer {
	return t.timer
}

// Preset returns the ids of the flows leading to the task
func (t *Task) Preset() []string {
	return t.preset
}

// Postset returns the ids of the flows leaving the task
func (t *Task) Postset() []string {
	return t.postset
}

func (t *Task) String() string {
	return fmt.Sprintf("Task[%s] '%s'", t.id, t.name)
}

////////////////////////////////////////////////////////////////////////////
// Flow

// Flow is a directed edge of the net.
type Flow struct {
	id     string
	source string
	target string

	guard     string
	program   *vm.Program
	isDefault bool
	ordering  int
}

// ID gets the id of the flow
func (f *Flow) ID() string {
	return f.id
}

// Source returns the id of the element the flow is coming from
func (f *Flow) Source() string {
	return f.source
}

// Target returns the id of the element the flow is going to
func (f *Flow) Target() string {
	return f.target
}

// Guard returns the guard expression of the flow, empty if there is none
func (f *Flow) Guard() string {
	return f.guard
}

// IsDefault indicates if the flow is taken when no guard of a split holds
func (f *Flow) IsDefault() bool {
	return f.isDefault
}

// Ordering returns the evaluation order of the flow within its split
func (f *Flow) Ordering() int {
	return f.ordering
}

func (f *Flow) String() string {
	return fmt.Sprintf("Flow[%s] - [from:%s, to:%s]", f.id, f.source, f.target)
}
