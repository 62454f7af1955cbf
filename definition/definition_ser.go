package definition

import (
	"fmt"
	"strings"
	"time"

	"github.com/project-flogo/core/support"
)

// DefinitionRep is a serializable representation of a net Definition
type DefinitionRep struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	Conditions []*ConditionRep `json:"conditions"`
	Tasks      []*TaskRep      `json:"tasks"`
	Flows      []*FlowRep      `json:"flows"`
}

// ConditionRep is a serializable representation of a net condition
type ConditionRep struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Kind is one of "input", "output" or empty for an explicit condition
	Kind string `json:"kind,omitempty"`
}

// TaskRep is a serializable representation of a net task
type TaskRep struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`

	Split string `json:"split,omitempty"`
	Join  string `json:"join,omitempty"`

	MultiInstance   *MultiInstanceRep `json:"multiInstance,omitempty"`
	CancellationSet []string          `json:"cancellationSet,omitempty"`

	// Decomposition is the id of the unit of work or sub-net behind the task,
	// empty for an automatic task
	Decomposition     string `json:"decomposition,omitempty"`
	DecompositionType string `json:"decompositionType,omitempty"`

	Timer *TimerRep `json:"timer,omitempty"`
}

// MultiInstanceRep is a serializable representation of multi-instance attributes
type MultiInstanceRep struct {
	Min        int    `json:"min"`
	Max        int    `json:"max"`
	Threshold  int    `json:"threshold"`
	Creation   string `json:"creation,omitempty"`
	Completion string `json:"completion,omitempty"`
	Query      string `json:"query,omitempty"`
	Accumulate string `json:"accumulate,omitempty"`
}

// TimerRep is a serializable representation of a task timer
type TimerRep struct {
	Trigger  string `json:"trigger"`
	Duration string `json:"duration"`
}

// FlowRep is a serializable representation of a net flow
type FlowRep struct {
	ID       string `json:"id,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	Guard    string `json:"guard,omitempty"`
	Default  bool   `json:"default,omitempty"`
	Ordering int    `json:"ordering,omitempty"`
}

// TopologyError is returned when a net representation describes an invalid net
type TopologyError struct {
	NetID    string
	Problems []string
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("invalid net '%s': %s", e.NetID, strings.Join(e.Problems, "; "))
}

type builder struct {
	def      *Definition
	problems []string

	splitTypes map[string]string
	joinTypes  map[string]string
}

func (b *builder) problem(format string, args ...interface{}) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

// NewDefinition creates a net Definition from a serializable
// definition representation
func NewDefinition(rep *DefinitionRep) (def *Definition, err error) {

	defer support.HandlePanic("NewDefinition", &err)

	b := &builder{
		def: &Definition{
			id:         rep.ID,
			name:       rep.Name,
			conditions: make(map[string]*Condition),
			tasks:      make(map[string]*Task),
			flows:      make(map[string]*Flow),
		},
		splitTypes: make(map[string]string),
		joinTypes:  make(map[string]string),
	}

	if b.def.name == "" {
		b.def.name = rep.ID
	}

	for _, condRep := range rep.Conditions {
		b.addCondition(condRep)
	}

	for _, taskRep := range rep.Tasks {
		b.addTask(taskRep)
	}

	for _, flowRep := range rep.Flows {
		b.addFlow(flowRep)
	}

	b.validateConditions()

	for _, task := range b.def.Tasks() {
		b.validateTask(task)
	}

	if len(b.problems) > 0 {
		return nil, &TopologyError{NetID: rep.ID, Problems: b.problems}
	}

	return b.def, nil
}

func (b *builder) exists(id string) bool {
	_, isCond := b.def.conditions[id]
	_, isTask := b.def.tasks[id]
	return isCond || isTask
}

func (b *builder) addCondition(rep *ConditionRep) {
	if rep.ID == "" {
		b.problem("condition without id")
		return
	}
	if b.exists(rep.ID) {
		b.problem("duplicate element id '%s'", rep.ID)
		return
	}

	cond := &Condition{id: rep.ID, name: rep.Name}

	switch strings.ToLower(rep.Kind) {
	case "input":
		if b.def.input != "" {
			b.problem("duplicate input condition '%s', already have '%s'", rep.ID, b.def.input)
		} else {
			b.def.input = rep.ID
		}
		cond.kind = KindInput
	case "output":
		if b.def.output != "" {
			b.problem("duplicate output condition '%s', already have '%s'", rep.ID, b.def.output)
		} else {
			b.def.output = rep.ID
		}
		cond.kind = KindOutput
	case "", "condition", "explicit":
		cond.kind = KindExplicit
	default:
		b.problem("condition '%s' has unknown kind '%s'", rep.ID, rep.Kind)
	}

	b.def.conditions[cond.id] = cond
	b.def.conditionOrder = append(b.def.conditionOrder, cond.id)
}

func (b *builder) addTask(rep *TaskRep) {
	if rep.ID == "" {
		b.problem("task without id")
		return
	}
	if b.exists(rep.ID) {
		b.problem("duplicate element id '%s'", rep.ID)
		return
	}

	task := &Task{id: rep.ID, name: rep.Name, typeID: rep.Type}
	b.splitTypes[task.id] = rep.Split
	b.joinTypes[task.id] = rep.Join

	if len(rep.CancellationSet) > 0 {
		task.cancellationSet = append([]string(nil), rep.CancellationSet...)
	}

	if rep.Decomposition != "" || rep.DecompositionType != "" {
		decomp := &Decomposition{ID: rep.Decomposition}
		switch strings.ToLower(rep.DecompositionType) {
		case "", "manual":
			decomp.Type = DecompositionManual
		case "net":
			decomp.Type = DecompositionNet
			if decomp.ID == "" {
				b.problem("task '%s' has a net decomposition without a net id", task.id)
			}
		default:
			b.problem("task '%s' has unknown decomposition type '%s'", task.id, rep.DecompositionType)
		}
		task.decomposition = decomp
	}

	if rep.MultiInstance != nil {
		mi, err := newMultiInstance(rep.MultiInstance)
		if err != nil {
			b.problem("task '%s' has invalid multi-instance attributes: %v", task.id, err)
		}
		task.multiInstance = mi
	}

	if rep.Timer != nil {
		timer, err := newTimer(rep.Timer)
		if err != nil {
			b.problem("task '%s' has an invalid timer: %v", task.id, err)
		}
		task.timer = timer
	}

	b.def.tasks[task.id] = task
	b.def.taskOrder = append(b.def.taskOrder, task.id)
}

func (b *builder) addFlow(rep *FlowRep) {

	id := rep.ID
	if id == "" {
		id = fmt.Sprintf("%s_%s", rep.From, rep.To)
	}
	if _, dup := b.def.flows[id]; dup {
		b.problem("duplicate flow id '%s'", id)
		return
	}

	source := b.def.GetElement(rep.From)
	target := b.def.GetElement(rep.To)
	if source == nil {
		b.problem("flow '%s' references unknown source '%s'", id, rep.From)
	}
	if target == nil {
		b.problem("flow '%s' references unknown target '%s'", id, rep.To)
	}
	if source == nil || target == nil {
		return
	}

	flow := &Flow{id: id, source: rep.From, target: rep.To, guard: rep.Guard, isDefault: rep.Default, ordering: rep.Ordering}

	switch src := source.(type) {
	case *Condition:
		if _, ok := target.(*Condition); ok {
			b.problem("flow '%s' connects condition '%s' to condition '%s'", id, rep.From, rep.To)
			return
		}
		if rep.Guard != "" || rep.Default {
			b.problem("flow '%s' leaves condition '%s' and cannot have a guard or default flag", id, rep.From)
		}
		b.link(flow)
	case *Task:
		if _, ok := target.(*Task); ok {
			// task to task flows go through an implicit condition
			implicit := &Condition{id: fmt.Sprintf("c{%s_%s}", src.id, rep.To), kind: KindImplicit}
			if b.exists(implicit.id) {
				b.problem("flow '%s' duplicates the connection from '%s' to '%s'", id, rep.From, rep.To)
				return
			}
			implicit.name = implicit.id
			b.def.conditions[implicit.id] = implicit
			b.def.conditionOrder = append(b.def.conditionOrder, implicit.id)

			flow.target = implicit.id
			b.link(flow)
			b.link(&Flow{id: id + ".2", source: implicit.id, target: rep.To})
		} else {
			b.link(flow)
		}
	}

	if flow.guard != "" {
		program, err := compileGuard(flow.guard)
		if err != nil {
			b.problem("flow '%s' has an invalid guard '%s': %v", id, flow.guard, err)
		}
		flow.program = program
	}
}

func (b *builder) link(flow *Flow) {
	b.def.flows[flow.id] = flow

	switch src := b.def.GetElement(flow.source).(type) {
	case *Condition:
		src.postset = append(src.postset, flow.id)
	case *Task:
		src.postset = append(src.postset, flow.id)
	}

	switch tgt := b.def.GetElement(flow.target).(type) {
	case *Condition:
		tgt.preset = append(tgt.preset, flow.id)
	case *Task:
		tgt.preset = append(tgt.preset, flow.id)
	}
}

func (b *builder) validateConditions() {
	if b.def.input == "" {
		b.problem("missing input condition")
	}
	if b.def.output == "" {
		b.problem("missing output condition")
	}

	for _, cond := range b.def.Conditions() {
		switch cond.kind {
		case KindInput:
			if len(cond.preset) > 0 {
				b.problem("input condition '%s' has incoming flows", cond.id)
			}
		case KindOutput:
			if len(cond.postset) > 0 {
				b.problem("output condition '%s' has outgoing flows", cond.id)
			}
		}

		if cond.kind != KindInput && len(cond.preset) == 0 {
			b.problem("condition '%s' has no incoming flow", cond.id)
		}
		if cond.kind != KindOutput && len(cond.postset) == 0 {
			b.problem("condition '%s' has no outgoing flow", cond.id)
		}
	}
}

func (b *builder) validateTask(task *Task) {

	if len(task.preset) == 0 {
		b.problem("task '%s' has no incoming flow", task.id)
	}
	if len(task.postset) == 0 {
		b.problem("task '%s' has no outgoing flow", task.id)
	}

	var err error
	if task.join, err = controlType(b.joinTypes[task.id], len(task.preset)); err != nil {
		b.problem("task '%s' join: %v", task.id, err)
	}
	if task.split, err = controlType(b.splitTypes[task.id], len(task.postset)); err != nil {
		b.problem("task '%s' split: %v", task.id, err)
	}

	defaults := 0
	for _, flowID := range task.postset {
		flow := b.def.flows[flowID]
		if flow.isDefault {
			defaults++
		}
		if task.split == ControlAND && (flow.isDefault || flow.guard != "") {
			b.problem("flow '%s' of and-split task '%s' cannot have a guard or default flag", flow.id, task.id)
		}
	}
	if defaults > 1 {
		b.problem("task '%s' has %d default flows", task.id, defaults)
	}

	for _, elementID := range task.cancellationSet {
		if !b.exists(elementID) {
			b.problem("cancellation set of task '%s' references unknown element '%s'", task.id, elementID)
		}
	}

	if task.timer != nil && task.IsAutomatic() {
		b.problem("automatic task '%s' cannot have a timer", task.id)
	}
}

// controlType parses a declared split or join type. A declared and/or type
// on a side with a single flow is normalized to xor.
func controlType(declared string, flows int) (ControlType, error) {

	var ct ControlType
	switch strings.ToLower(declared) {
	case "":
		if flows > 1 {
			return ControlXOR, fmt.Errorf("type must be declared for %d flows", flows)
		}
		return ControlXOR, nil
	case "xor":
		ct = ControlXOR
	case "and":
		ct = ControlAND
	case "or":
		ct = ControlOR
	default:
		return ControlXOR, fmt.Errorf("unknown type '%s'", declared)
	}

	if flows <= 1 {
		return ControlXOR, nil
	}
	return ct, nil
}

func newMultiInstance(rep *MultiInstanceRep) (*MultiInstance, error) {

	mi := &MultiInstance{
		min:        rep.Min,
		max:        rep.Max,
		threshold:  rep.Threshold,
		query:      rep.Query,
		accumulate: rep.Accumulate,
	}

	// zero values fall back to a single mandatory instance
	if mi.min == 0 {
		mi.min = 1
	}
	if mi.max == 0 {
		mi.max = mi.min
	}

	switch strings.ToLower(rep.Creation) {
	case "", "static":
		mi.creation = CreationStatic
	case "dynamic":
		mi.creation = CreationDynamic
	case "upondemand":
		mi.creation = CreationUponDemand
	default:
		return mi, fmt.Errorf("unknown creation mode '%s'", rep.Creation)
	}

	switch strings.ToLower(rep.Completion) {
	case "", "all", "allcomplete":
		mi.completion = CompletionAll
	case "threshold":
		mi.completion = CompletionThreshold
	case "any":
		mi.completion = CompletionAny
	default:
		return mi, fmt.Errorf("unknown completion mode '%s'", rep.Completion)
	}

	if err := mi.validate(); err != nil {
		return mi, err
	}

	if mi.query != "" {
		program, err := compileQuery(mi.query)
		if err != nil {
			return mi, fmt.Errorf("invalid instance query '%s': %v", mi.query, err)
		}
		mi.program = program
	}

	return mi, nil
}

func newTimer(rep *TimerRep) (*Timer, error) {
	timer := &Timer{}

	switch strings.ToLower(rep.Trigger) {
	case "", "onenabled":
		timer.Trigger = TimerOnEnabled
	case "onexecuting":
		timer.Trigger = TimerOnExecuting
	default:
		return nil, fmt.Errorf("unknown trigger '%s'", rep.Trigger)
	}

	d, err := time.ParseDuration(rep.Duration)
	if err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", rep.Duration)
	}
	timer.Duration = d

	return timer, nil
}
