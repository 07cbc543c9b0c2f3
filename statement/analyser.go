//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package statement

import (
	"slices"
	"strings"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/linked"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/util/orderedmap"
	"go.uber.org/immutaway/variable"
)

// EndIndex is the index of the exit at the end of a method body.
const EndIndex = "end"

// ReturnValue is what a return statement returns.
type ReturnValue struct {
	Index     string
	Value     delay.Value[Value]
	NotNull   property.DV
	Immutable property.DV
	Linked    linked.Variables
}

// FieldValue is a value a field holds: assigned by a statement, or held at the exit of a
// constructor.
type FieldValue struct {
	Field     int
	Index     string
	Value     delay.Value[Value]
	NotNull   property.DV
	Immutable property.DV
}

// Causes returns the causes of delay of the value.
func (f FieldValue) Causes() delay.Causes {
	return f.Value.Causes().Merge(f.NotNull.Causes()).Merge(f.Immutable.Causes())
}

// Exit is the state of the variables when the method returns, through a return statement or by
// reaching the end of its body.
type Exit struct {
	Index     string
	Reached   delay.Value[Execution]
	Variables *orderedmap.OrderedMap[variable.Variable, *VariableInfo]
	// Fields holds, for constructors, the value of every field of the type at this exit.
	Fields []FieldValue
}

// Graph returns the linking graph at the exit.
func (x Exit) Graph() *linked.Graph {
	return (&state{vars: x.Variables}).graph()
}

// Result is the outcome of analysing a method body in one iteration.
type Result struct {
	Status     delay.AnalysisStatus
	Statements *orderedmap.OrderedMap[string, *StatementAnalysis]
	Returns    []ReturnValue
	Exits      []Exit
	// Modified aggregates the context modification of this, the parameters and the fields of
	// this over all reachable statements.
	Modified *orderedmap.OrderedMap[variable.Variable, property.DV]
	// FieldAssignments holds the values assigned to fields of this, in statement order.
	FieldAssignments []FieldValue
	Precondition     delay.Value[Value]
	// Messages holds the messages of statements whose analysis is done.
	Messages []diagnostic.Message
}

// Statement returns the analysis of a statement.
func (r *Result) Statement(index string) (*StatementAnalysis, bool) {
	return r.Statements.Load(index)
}

// Analyser analyses the body of one method. It is run once per iteration; only the statements
// found unreachable carry over from one iteration to the next.
type Analyser struct {
	program *model.Program
	method  *model.Method
	never   map[string]bool
}

// NewAnalyser returns the analyser of a method with a body.
func NewAnalyser(program *model.Program, method *model.Method) *Analyser {
	return &Analyser{program: program, method: method, never: make(map[string]bool)}
}

// run is one iteration of the analysis of a method body.
type run struct {
	*Analyser
	ctx    Context
	owner  *model.Type
	result *Result
	// loops holds, per enclosing loop, the states at its break statements.
	loops    [][]*state
	decl     map[variable.Variable]string
	noUnused map[variable.Variable]bool
	retired  map[variable.Variable]*VariableInfo
}

// Analyse runs one iteration over the whole body.
func (a *Analyser) Analyse(ctx Context) *Result {
	r := &run{
		Analyser: a,
		ctx:      ctx,
		owner:    a.program.Type(a.method.Owner),
		result: &Result{
			Statements: orderedmap.New[string, *StatementAnalysis](),
			Modified:   orderedmap.New[variable.Variable, property.DV](),
		},
		decl:     make(map[variable.Variable]string),
		noUnused: make(map[variable.Variable]bool),
		retired:  make(map[variable.Variable]*VariableInfo),
	}
	in := &state{
		vars:    orderedmap.New[variable.Variable, *VariableInfo](),
		cm:      InitialConditions(),
		reached: delay.Done(Always),
	}
	if !a.method.Static {
		in.vars.Store(variable.NewThis(), r.initialInfo(variable.NewThis()))
	}
	for _, p := range a.method.Parameters {
		v := variable.NewParameter(p.Name, p.Index)
		in.vars.Store(v, r.initialInfo(v))
	}
	out, _ := r.block(a.method.Body, in)
	if !isNever(out.reached) {
		r.exit(EndIndex, out)
	}

	status := delay.DoneStatus
	r.result.Statements.OrderedRange(func(_ string, sa *StatementAnalysis) bool {
		status = status.Combine(sa.Status)
		return true
	})
	if status.IsDone() {
		r.result.Precondition = delay.Done(out.cm.Precondition)
	} else {
		r.result.Precondition = delay.Delayed[Value](status.Causes())
	}
	r.result.Status = status
	slices.SortFunc(r.result.Messages, diagnostic.Message.Compare)
	return r.result
}

func (r *run) location(index string) diagnostic.Location {
	return diagnostic.Location{Type: r.owner.Name, Method: r.method.Name, Statement: index}
}

// initialInfo is the info of a variable the first time it appears in the method.
func (r *run) initialInfo(v variable.Variable) *VariableInfo {
	vi := &VariableInfo{
		Variable: v,
		Value:    delay.Done[Value](VariableValue{Variable: v}),
		Linked:   linked.Empty(),
	}
	switch v.Kind {
	case variable.This:
		vi.Type = model.ProgramType(r.owner)
		vi.Properties = property.NewMap(property.NotNullExpression, _notNull, property.ContextNotNull, _notNull)
		return vi
	case variable.Parameter:
		vi.Type = r.method.Parameters[v.ID].Type
		nn := notNullIf(vi.Type.IsPrimitive())
		vi.Properties = property.NewMap(property.NotNullExpression, nn, property.ContextNotNull, nn)
		return vi
	case variable.Field:
		f := r.program.Field(v.ID)
		vi.Type = f.Type
		primitive := notNullIf(f.Type.IsPrimitive())
		if v.IsFieldOfThis() && r.method.Constructor && f.Owner == r.method.Owner {
			// Constructors see the initial value of the fields of their own type.
			value := initialFieldValue(f)
			vi.Value = delay.Done(value)
			vi.Properties = property.NewMap(
				property.NotNullExpression, notNullIf(f.Type.IsPrimitive() || NotNullByConstruction(value)),
				property.ContextNotNull, primitive)
			return vi
		}
		nn := primitive
		if !f.Type.IsPrimitive() {
			nn = r.ctx.FieldProperty(f.Index, property.ExternalNotNull)
		}
		vi.Properties = property.NewMap(property.NotNullExpression, nn, property.ContextNotNull, primitive)
		return vi
	}
	if retired, ok := r.retired[v]; ok {
		return retired
	}
	vi.Type = model.External("Object")
	vi.Properties = property.NewMap(property.NotNullExpression, _nullable, property.ContextNotNull, _nullable)
	return vi
}

// initialFieldValue is the value of a field before the constructor assigns it.
func initialFieldValue(f *model.Field) Value {
	if f.Initializer == nil {
		return DefaultValue(f.Type)
	}
	if v, ok := literal(f.Initializer); ok {
		return v
	}
	if n, ok := f.Initializer.(*model.New); ok {
		return Instance{Type: n.Type, Origin: "new", NotNull: true}
	}
	return Instance{Type: f.Type, Origin: "field"}
}

// contribute adds a modification of this, a parameter or a field of this to the aggregate of
// the method. The contribution of a statement whose reachability is delayed is delayed too.
func (r *run) contribute(v variable.Variable, dv property.DV, reached delay.Value[Execution]) {
	if v.Kind != variable.This && v.Kind != variable.Parameter && !v.IsFieldOfThis() {
		return
	}
	if reached.IsDelayed() && !dv.IsFalse() {
		dv = property.Delayed(reached.Causes().Merge(dv.Causes()))
	}
	if prev, ok := r.result.Modified.Load(v); ok {
		dv = property.ContextModified.Aggregate(prev, dv)
	}
	r.result.Modified.Store(v, dv)
}

func (r *run) fieldAssignment(e *evaluator, v variable.Variable, val evalResult) {
	fv := FieldValue{Field: v.ID, Index: e.index, Value: val.value, NotNull: val.notNull, Immutable: e.immutableOf(val)}
	if e.st.reached.IsDelayed() {
		fv.Value = delay.Delayed[Value](e.st.reached.Causes().Merge(fv.Value.Causes()))
	}
	if r.program.Field(v.ID).Type.IsPrimitive() {
		fv.NotNull = _notNull
	}
	r.result.FieldAssignments = append(r.result.FieldAssignments, fv)
}

// exit records the state at a return statement or at the end of the body.
func (r *run) exit(index string, st *state) {
	x := Exit{Index: index, Reached: st.reached, Variables: st.vars.Clone()}
	if r.method.Constructor {
		e := r.newEvaluator(index, st)
		for _, fi := range r.owner.Fields {
			f := r.program.Field(fi)
			vi := e.info(variable.NewField(f.Name, f.Index, ""))
			x.Variables.Store(vi.Variable, vi)
			fv := FieldValue{
				Field:   fi,
				Index:   index,
				Value:   vi.Value,
				NotNull: vi.Properties.GetOrDefault(property.NotNullExpression, _nullable),
			}
			if val, ok := vi.Value.Get(); ok {
				fv.Immutable = e.valueImmutable(val, vi.Type, 0)
			} else {
				fv.Immutable = property.Delayed(vi.Value.Causes().Merge(st.reached.Causes()))
			}
			x.Fields = append(x.Fields, fv)
		}
	}
	r.result.Exits = append(r.result.Exits, x)
}

// block analyses the statements of a block. Scoped variables (loop and catch variables) leave
// scope at the end of the block, as its locals do. The returned interrupt is relative to the
// entry of the block.
func (r *run) block(b *model.Block, in *state, scoped ...variable.Variable) (*state, delay.Value[Execution]) {
	st := in
	locals := slices.Clone(scoped)
	interrupt := delay.Done(Never)
	relative := delay.Done(Always)
	reported := false
	for _, s := range b.Statements {
		if r.never[s.Index()] || isNever(st.reached) {
			r.unreachable(s, !reported)
			reported = true
			continue
		}
		out, intr := r.statement(s, st, &locals)
		interrupt = delay.Combine(interrupt, minReached(relative, intr), maxExecution)
		relative = nextReached(relative, intr)
		out.reached = minReached(in.reached, relative)
		st = out
	}
	return r.exitScope(st, locals), interrupt
}

// unreachable records a statement, and everything nested in it, as never executed. Only the
// first statement of a run of unreachable statements is reported.
func (r *run) unreachable(s model.Statement, report bool) {
	model.WalkStatements(&model.Block{Statements: []model.Statement{s}}, func(t model.Statement) {
		r.never[t.Index()] = true
		r.result.Statements.Store(t.Index(), &StatementAnalysis{
			Index:     t.Index(),
			Statement: t,
			Flow:      FlowData{Reached: delay.Done(Never), Interrupt: delay.Done(Never)},
			Variables: orderedmap.New[variable.Variable, *VariableInfoContainer](),
			Status:    delay.DoneStatus,
		})
	})
	if report {
		r.result.Messages = append(r.result.Messages, diagnostic.Message{
			Kind:     diagnostic.UnreachableStatement,
			Location: r.location(s.Index()),
		})
	}
}

func (r *run) statement(s model.Statement, in *state, locals *[]variable.Variable) (*state, delay.Value[Execution]) {
	index := s.Index()
	sa := &StatementAnalysis{Index: index, Statement: s}
	r.result.Statements.Store(index, sa)
	e := r.newEvaluator(index, in)

	var evaluated, out *state
	interrupt := delay.Done(Never)
	switch s := s.(type) {
	case *model.ExpressionStatement:
		e.eval(s.Expression)
		if terminates(s.Expression) {
			interrupt = delay.Done(Always)
		}
		out = e.finish()
	case *model.LocalVariable:
		out = r.localVariable(s, e, locals)
	case *model.Return:
		out = r.returnStatement(s, e)
		interrupt = delay.Done(Always)
	case *model.Throw:
		e.deref(e.eval(s.Value), s.Value.String())
		out = e.finish()
		interrupt = delay.Done(Always)
	case *model.Break:
		out = e.finish()
		interrupt = delay.Done(Always)
		if n := len(r.loops); n > 0 {
			r.loops[n-1] = append(r.loops[n-1], out.clone())
		}
	case *model.Continue:
		out = e.finish()
		interrupt = delay.Done(Always)
	case *model.Assert:
		res := e.condition(s.Condition)
		out = e.finish()
		if v, ok := res.value.Get(); ok {
			out.cm = out.cm.AddState(v)
		}
	case *model.If:
		evaluated, out, interrupt = r.ifElse(s, e)
	case *model.While:
		evaluated, out, interrupt = r.while(s, e)
	case *model.ForEach:
		evaluated, out = r.forEach(s, e)
	case *model.Nested:
		evaluated = e.finish()
		out, interrupt = r.block(s.Body, evaluated.clone())
	case *model.Try:
		evaluated, out, interrupt = r.try(s, e)
	}
	if evaluated == nil {
		evaluated = out
	}

	sa.Flow = FlowData{Reached: in.reached, Interrupt: interrupt}
	sa.Status = delay.Delays(e.causes.Merge(in.reached.Causes()).Merge(interrupt.Causes()))
	sa.Conditions = out.cm
	sa.Variables = containers(in, evaluated, out)
	if sa.Status.IsDone() {
		r.result.Messages = append(r.result.Messages, e.messages...)
	}
	return out, interrupt
}

// containers builds the per-variable snapshots of a statement from the incoming state, the state
// after evaluation and the outgoing state.
func containers(in, evaluated, out *state) *orderedmap.OrderedMap[variable.Variable, *VariableInfoContainer] {
	m := orderedmap.New[variable.Variable, *VariableInfoContainer]()
	keys := out.vars.Keys()
	for _, k := range evaluated.vars.Keys() {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	for _, v := range keys {
		c := &VariableInfoContainer{}
		prev, _ := in.vars.Load(v)
		c.Previous = prev
		ev, _ := evaluated.vars.Load(v)
		if ev != nil && ev != prev {
			c.Evaluation = ev
		}
		if o, _ := out.vars.Load(v); o != nil && o != ev && o != prev {
			c.Merge = o
		}
		m.Store(v, c)
	}
	return m
}

func (r *run) localVariable(s *model.LocalVariable, e *evaluator, locals *[]variable.Variable) *state {
	v := variable.NewLocal(s.Name)
	*locals = append(*locals, v)
	r.decl[v] = s.Index()
	vi := &VariableInfo{
		Variable: v,
		Type:     s.Type,
		Value:    delay.Done[Value](VariableValue{Variable: v}),
		Linked:   linked.Empty(),
	}
	nn := notNullIf(s.Type.IsPrimitive())
	if s.Initializer != nil {
		res := e.eval(s.Initializer)
		vi.Value = res.value
		vi.AssignmentID = variable.At(s.Index(), variable.Evaluation)
		vi.Linked = linked.NewGraph().Assign(v, res.linked, linked.Assigned)
		if !s.Type.IsPrimitive() {
			nn = res.notNull
		}
	}
	vi.Properties = property.NewMap(
		property.NotNullExpression, nn,
		property.ContextNotNull, notNullIf(s.Type.IsPrimitive()))
	e.st.vars.Store(v, vi)
	e.changed[v] = true
	return e.finish()
}

func (r *run) returnStatement(s *model.Return, e *evaluator) *state {
	if s.Value != nil {
		res := e.eval(s.Value)
		nn := res.notNull
		if r.method.Return.IsPrimitive() {
			nn = _notNull
		}
		rv := ReturnValue{Index: s.Index(), Value: res.value, NotNull: nn, Immutable: e.immutableOf(res), Linked: res.linked}
		if e.st.reached.IsDelayed() {
			rv.Value = delay.Delayed[Value](e.st.reached.Causes().Merge(rv.Value.Causes()))
		}
		r.result.Returns = append(r.result.Returns, rv)

		ret := variable.NewReturn(r.method.Name, r.method.Index)
		e.st.vars.Store(ret, &VariableInfo{
			Variable:     ret,
			Type:         r.method.Return,
			Value:        res.value,
			Properties:   property.NewMap(property.NotNullExpression, nn),
			Linked:       linked.NewGraph().Assign(ret, res.linked, linked.Assigned),
			AssignmentID: variable.At(s.Index(), variable.Evaluation),
		})
		e.changed[ret] = true
	}
	out := e.finish()
	r.exit(s.Index(), out)
	return out
}

// branch is one of the alternative paths joined after a compound statement.
type branch struct {
	st        *state
	reached   delay.Value[Execution]
	interrupt delay.Value[Execution]
}

// branchReach returns the reachability of the blocks entered when a condition holds and when
// it does not.
func branchReach(reached delay.Value[Execution], cond delay.Value[Value]) (delay.Value[Execution], delay.Value[Execution]) {
	cv, ok := cond.Get()
	if !ok {
		d := delay.Delayed[Execution](cond.Causes().Merge(reached.Causes()))
		return d, d
	}
	if b, isConst := IsBoolConstant(cv); isConst {
		if b {
			return reached, delay.Done(Never)
		}
		return delay.Done(Never), reached
	}
	c := conditionally(reached)
	return c, c
}

// escapes computes how often a compound statement escapes: always when every reachable branch
// always escapes, never when none does.
func escapes(branches []branch) delay.Value[Execution] {
	var causes delay.Causes
	all, some, reachable := true, false, false
	for _, b := range branches {
		if isNever(b.reached) {
			continue
		}
		reached, ok1 := b.reached.Get()
		intr, ok2 := b.interrupt.Get()
		if !ok1 || !ok2 {
			causes = causes.Merge(b.reached.Causes()).Merge(b.interrupt.Causes())
			continue
		}
		if reached == Never {
			continue
		}
		reachable = true
		if intr != Always {
			all = false
		}
		if intr != Never {
			some = true
		}
	}
	switch {
	case !causes.IsEmpty():
		return delay.Delayed[Execution](causes)
	case reachable && all:
		return delay.Done(Always)
	case some:
		return delay.Done(Conditionally)
	default:
		return delay.Done(Never)
	}
}

func throwsOnly(b *model.Block) bool {
	if len(b.Statements) != 1 {
		return false
	}
	_, ok := b.Statements[0].(*model.Throw)
	return ok
}

func (r *run) ifElse(s *model.If, e *evaluator) (evaluated, out *state, interrupt delay.Value[Execution]) {
	res := e.condition(s.Condition)
	evaluated = e.finish()
	cond, known := res.value.Get()
	thenReach, elseReach := branchReach(evaluated.reached, res.value)

	thenIn, elseIn := evaluated.clone(), evaluated.clone()
	thenIn.reached, elseIn.reached = thenReach, elseReach
	if known {
		thenIn.cm = thenIn.cm.NewCondition(cond)
		elseIn.cm = elseIn.cm.NewCondition(Not(cond))
	}
	thenOut, thenInt := r.block(s.Then, thenIn)
	elseOut, elseInt := elseIn, delay.Done(Never)
	if s.Else != nil {
		elseOut, elseInt = r.block(s.Else, elseIn)
	}
	branches := []branch{{thenOut, thenReach, thenInt}, {elseOut, elseReach, elseInt}}
	var mergeCond Value
	if known {
		mergeCond = cond
	}
	out = r.merge(s.Index(), evaluated, branches, mergeCond)
	interrupt = escapes(branches)

	if known {
		thenEscapes := isAlways(thenInt) && !isNever(thenReach)
		elseEscapes := isAlways(elseInt) && !isNever(elseReach)
		switch {
		case thenEscapes && !elseEscapes:
			out.cm = out.cm.AddState(Not(cond))
			setContextNotNull(out, NotNullVariables(Not(cond)), _notNull)
		case elseEscapes && !thenEscapes:
			out.cm = out.cm.AddState(cond)
			setContextNotNull(out, NotNullVariables(cond), _notNull)
		}
		// While it is not known whether a branch escapes, neither is what holds after it.
		if thenInt.IsDelayed() {
			setContextNotNull(out, NotNullVariables(Not(cond)), property.Delayed(thenInt.Causes()))
		}
		if elseInt.IsDelayed() {
			setContextNotNull(out, NotNullVariables(cond), property.Delayed(elseInt.Causes()))
		}
		if s.Else == nil && !strings.Contains(s.Index(), ".") && throwsOnly(s.Then) {
			out.cm = out.cm.AddPrecondition(Not(cond))
		}
	}
	return evaluated, out, interrupt
}

func setContextNotNull(st *state, vars []variable.Variable, dv property.DV) {
	for _, v := range vars {
		if vi, ok := st.vars.Load(v); ok {
			c := vi.clone()
			c.Properties.Set(property.ContextNotNull, dv)
			st.vars.Store(v, c)
		}
	}
}

func (r *run) while(s *model.While, e *evaluator) (evaluated, out *state, interrupt delay.Value[Execution]) {
	e.widen(assignedIn(r.program, s.Body), s.Body)
	res := e.condition(s.Condition)
	evaluated = e.finish()
	cond, known := res.value.Get()
	bodyReach, _ := branchReach(evaluated.reached, res.value)
	forever := false
	if b, isConst := IsBoolConstant(cond); known && isConst && b {
		forever = true
	}

	bodyIn := evaluated.clone()
	bodyIn.reached = bodyReach
	if known {
		bodyIn.cm = bodyIn.cm.NewCondition(cond)
	}
	r.loops = append(r.loops, nil)
	bodyOut, bodyInt := r.block(s.Body, bodyIn)
	breaks := r.loops[len(r.loops)-1]
	r.loops = r.loops[:len(r.loops)-1]

	var branches []branch
	if !forever {
		branches = append(branches, branch{evaluated, evaluated.reached, delay.Done(Never)})
	}
	branches = append(branches, branch{bodyOut, bodyReach, bodyInt})
	for _, b := range breaks {
		branches = append(branches, branch{b, b.reached, delay.Done(Never)})
	}
	out = r.merge(s.Index(), evaluated, branches, nil)
	if known && !forever && len(breaks) == 0 {
		out.cm = out.cm.AddState(Not(cond))
	}
	interrupt = delay.Done(Never)
	if forever && len(breaks) == 0 {
		interrupt = delay.Done(Always)
	}
	return evaluated, out, interrupt
}

func (r *run) forEach(s *model.ForEach, e *evaluator) (evaluated, out *state) {
	iterable := e.eval(s.Iterable)
	e.deref(iterable, s.Iterable.String())
	e.widen(assignedIn(r.program, s.Body), s.Body)
	evaluated = e.finish()

	lv := variable.NewLocal(s.Variable)
	r.noUnused[lv] = true
	bodyIn := evaluated.clone()
	bodyIn.reached = conditionally(evaluated.reached)
	links := linked.Empty()
	if !s.Type.IsPrimitive() {
		links = iterable.linked.Minimum(linked.IsHCOf)
	}
	nn := notNullIf(s.Type.IsPrimitive())
	bodyIn.vars.Store(lv, &VariableInfo{
		Variable:     lv,
		Type:         s.Type,
		Value:        delay.Done[Value](Instance{Type: s.Type, Origin: "loop"}),
		Properties:   property.NewMap(property.NotNullExpression, nn, property.ContextNotNull, nn),
		Linked:       links,
		AssignmentID: variable.At(s.Index(), variable.Evaluation),
	})

	r.loops = append(r.loops, nil)
	bodyOut, bodyInt := r.block(s.Body, bodyIn, lv)
	breaks := r.loops[len(r.loops)-1]
	r.loops = r.loops[:len(r.loops)-1]

	branches := []branch{
		{evaluated, evaluated.reached, delay.Done(Never)},
		{bodyOut, bodyIn.reached, bodyInt},
	}
	for _, b := range breaks {
		branches = append(branches, branch{b, b.reached, delay.Done(Never)})
	}
	return evaluated, r.merge(s.Index(), evaluated, branches, nil)
}

func (r *run) try(s *model.Try, e *evaluator) (evaluated, out *state, interrupt delay.Value[Execution]) {
	evaluated = e.finish()
	tryOut, tryInt := r.block(s.Body, evaluated.clone())
	branches := []branch{{tryOut, evaluated.reached, tryInt}}

	assigned := assignedIn(r.program, s.Body)
	for _, c := range s.Catches {
		// A catch block starts from any point of the try block.
		ce := r.newEvaluator(s.Index(), evaluated)
		ce.widen(assigned, s.Body)
		catchIn := ce.finish()
		catchIn.reached = conditionally(evaluated.reached)
		cv := variable.NewLocal(c.Variable)
		r.noUnused[cv] = true
		catchIn.vars.Store(cv, &VariableInfo{
			Variable:     cv,
			Type:         c.Type,
			Value:        delay.Done[Value](Instance{Type: c.Type, Origin: "catch", NotNull: true}),
			Properties:   property.NewMap(property.NotNullExpression, _notNull, property.ContextNotNull, _notNull),
			Linked:       linked.Empty(),
			AssignmentID: variable.At(s.Index(), variable.Evaluation),
		})
		catchOut, catchInt := r.block(c.Body, catchIn, cv)
		branches = append(branches, branch{catchOut, catchIn.reached, catchInt})
	}
	out = r.merge(s.Index(), evaluated, branches, nil)
	interrupt = escapes(branches)

	if s.Finally != nil {
		finIn := out.clone()
		finIn.reached = evaluated.reached
		finOut, finInt := r.block(s.Finally, finIn)
		out = finOut
		interrupt = delay.Combine(interrupt, finInt, maxExecution)
	}
	return evaluated, out, interrupt
}

// merge joins the states of the branches of a compound statement that flow into the next
// statement: unreachable branches and branches that always escape are left out. With a
// condition, the two branches are the then and else blocks of an if statement.
func (r *run) merge(index string, base *state, branches []branch, cond Value) *state {
	var included []*state
	for _, b := range branches {
		if isNever(b.reached) || isAlways(b.interrupt) {
			continue
		}
		included = append(included, b.st)
	}
	out := base.clone()
	if len(included) == 0 {
		return out
	}
	if len(included) != 2 || len(branches) != 2 {
		cond = nil
	}

	keys := base.vars.Keys()
	for _, st := range included {
		for _, k := range st.vars.Keys() {
			// Locals of the sub-blocks reach here only through break statements.
			if k.Kind != variable.Local && !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	for _, v := range keys {
		baseInfo, inBase := base.vars.Load(v)
		infos := make([]*VariableInfo, len(included))
		same := inBase
		for i, st := range included {
			vi, ok := st.vars.Load(v)
			if !ok {
				if inBase {
					vi = baseInfo
				} else {
					vi = r.initialInfo(v)
				}
			}
			infos[i] = vi
			same = same && vi == baseInfo
		}
		switch {
		case same:
		case len(infos) == 1:
			out.vars.Store(v, infos[0])
		default:
			out.vars.Store(v, mergeInfos(index, baseInfo, infos, cond))
		}
	}
	return out
}

// mergeInfos joins the infos of a variable at the end of alternative branches.
func mergeInfos(index string, base *VariableInfo, infos []*VariableInfo, cond Value) *VariableInfo {
	m := infos[0].clone()
	v := m.Variable

	values := make([]delay.Value[Value], len(infos))
	for i, vi := range infos {
		values[i] = vi.Value
	}
	m.Value = delay.CombineAll(values, func(a, b Value) Value {
		if Equal(a, b) {
			return a
		}
		return VariableValue{Variable: v}
	})
	if cond != nil {
		m.Value = delay.Combine(infos[0].Value, infos[1].Value, func(a, b Value) Value {
			return NewConditional(cond, a, b)
		})
	}

	var kinds []property.Kind
	for _, vi := range infos {
		for _, k := range vi.Properties.Kinds() {
			if !slices.Contains(kinds, k) {
				kinds = append(kinds, k)
			}
		}
	}
	for _, k := range kinds {
		dvs := make([]property.DV, len(infos))
		for i, vi := range infos {
			dvs[i] = vi.Property(k)
		}
		m.Properties.Set(k, k.MergeAll(dvs...))
	}

	links := make([]linked.Variables, len(infos))
	for i, vi := range infos {
		links[i] = vi.Linked
		if m.ReadID.Before(vi.ReadID) {
			m.ReadID = vi.ReadID
		}
	}
	m.Linked = linked.MergeBranches(links...)

	m.AssignmentID = variable.NotAssigned
	if base != nil {
		m.AssignmentID = base.AssignmentID
	}
	for _, vi := range infos {
		if vi.AssignmentID != m.AssignmentID && (base == nil || vi.AssignmentID != base.AssignmentID) {
			m.AssignmentID = variable.At(index, variable.Merge)
			break
		}
	}
	return m
}

// exitScope removes the locals of a block from the state. Links through them are kept by
// linking their neighbours directly. Unused locals and trailing useless assignments are reported
// here.
func (r *run) exitScope(st *state, locals []variable.Variable) *state {
	if len(locals) == 0 {
		return st
	}
	out := st.clone()
	g := out.graph()
	for _, v := range locals {
		vi, ok := out.vars.Load(v)
		if !ok {
			continue
		}
		r.checkUnused(v, vi)
		r.retired[v] = vi
		g.ScopeExit(v)
		out.vars.Delete(v)
	}
	for _, k := range out.vars.Keys() {
		vi := out.vars.Value(k)
		if links := g.Links(k); !links.Equal(vi.Linked) {
			c := vi.clone()
			c.Linked = links
			out.vars.Store(k, c)
		}
	}
	return out
}

func (r *run) checkUnused(v variable.Variable, vi *VariableInfo) {
	if r.noUnused[v] {
		return
	}
	decl, ok := r.result.Statements.Load(r.decl[v])
	if !ok || !decl.Status.IsDone() || decl.Flow.IsUnreachable() {
		return
	}
	if !vi.ReadID.IsSet() {
		r.result.Messages = append(r.result.Messages, diagnostic.Message{
			Kind:     diagnostic.UnusedLocalVariable,
			Location: r.location(decl.Index),
			Subject:  v.Name,
		})
		return
	}
	assignment := string(vi.AssignmentID)
	if !strings.HasSuffix(assignment, "-E") || vi.AssignmentID.Before(vi.ReadID) {
		return
	}
	index := strings.TrimSuffix(assignment, "-E")
	if sa, ok := r.result.Statements.Load(index); ok && sa.Status.IsDone() {
		r.result.Messages = append(r.result.Messages, diagnostic.Message{
			Kind:     diagnostic.UselessAssignment,
			Location: r.location(index),
			Subject:  v.Name,
		})
	}
}

// InitialFieldValue is the value a field holds when no constructor assigns it: its initializer,
// or the default value of its type.
func InitialFieldValue(ctx Context, f *model.Field) FieldValue {
	v := initialFieldValue(f)
	fv := FieldValue{
		Field:     f.Index,
		Value:     delay.Done(v),
		NotNull:   notNullIf(f.Type.IsPrimitive() || NotNullByConstruction(v)),
		Immutable: property.Immutable.Highest(),
	}
	if i, ok := v.(Instance); ok {
		fv.Immutable = TypeImmutable(ctx, i.Type)
	}
	return fv
}
