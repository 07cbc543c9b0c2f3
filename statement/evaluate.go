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
	"fmt"
	"strings"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/linked"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/variable"
)

var (
	_notNull  = property.Of(property.EffectivelyNotNull)
	_nullable = property.Of(property.Nullable)
)

func notNullIf(b bool) property.DV {
	if b {
		return _notNull
	}
	return _nullable
}

// evalResult is the outcome of evaluating one expression.
type evalResult struct {
	value   delay.Value[Value]
	notNull property.DV
	linked  linked.Variables
	// variable is set when the expression is a plain variable access.
	variable variable.Variable
	isVar    bool
}

func constant(v Value) evalResult {
	return evalResult{value: delay.Done(v), notNull: notNullIf(!IsNull(v)), linked: linked.Empty()}
}

// evaluator evaluates the expressions of one statement on a copy of the incoming state. Infos it
// changes are copied on first write; the copies form the evaluation stage of the statement.
type evaluator struct {
	r     *run
	index string
	st    *state
	cm    ConditionManager
	// changed holds the variables that got a new info in this statement.
	changed   map[variable.Variable]bool
	forgotten []variable.Variable
	causes    delay.Causes
	messages  []diagnostic.Message
}

func (r *run) newEvaluator(index string, in *state) *evaluator {
	return &evaluator{
		r:       r,
		index:   index,
		st:      in.clone(),
		cm:      in.cm,
		changed: make(map[variable.Variable]bool),
	}
}

// finish closes the evaluation stage and returns the resulting state.
func (e *evaluator) finish() *state {
	cm := e.st.cm
	for _, v := range e.forgotten {
		cm = cm.Forget(v)
	}
	e.st.cm = cm
	for _, v := range e.st.vars.Keys() {
		if e.changed[v] {
			e.delay(e.st.vars.Value(v).Causes())
		}
	}
	return e.st
}

func (e *evaluator) delay(c delay.Causes) { e.causes = e.causes.Merge(c) }

// delayOn records the causes of a delayed value as causes of the statement.
func (e *evaluator) delayOn(dv property.DV) property.DV {
	if dv.IsDelayed() {
		e.delay(dv.Causes())
	}
	return dv
}

func (e *evaluator) message(kind diagnostic.Kind, subject string) {
	e.messages = append(e.messages, diagnostic.Message{Kind: kind, Location: e.r.location(e.index), Subject: subject})
}

func (e *evaluator) info(v variable.Variable) *VariableInfo {
	if vi, ok := e.st.vars.Load(v); ok {
		return vi
	}
	vi := e.r.initialInfo(v)
	e.st.vars.Store(v, vi)
	return vi
}

func (e *evaluator) writable(v variable.Variable) *VariableInfo {
	vi := e.info(v)
	if e.changed[v] {
		return vi
	}
	c := vi.clone()
	e.st.vars.Store(v, c)
	e.changed[v] = true
	return c
}

func (e *evaluator) eval(x model.Expression) evalResult {
	switch x := x.(type) {
	case *model.IntLit:
		return constant(IntConstant{V: x.Value})
	case *model.BoolLit:
		return constant(BoolConstant{V: x.Value})
	case *model.StringLit:
		return constant(StringConstant{V: x.Value})
	case *model.NullLit:
		return constant(Null{})
	case *model.Local:
		return e.readVariable(variable.NewLocal(x.Name))
	case *model.Param:
		return e.readVariable(variable.NewParameter(x.Name, x.Index))
	case *model.This:
		return e.readVariable(variable.NewThis())
	case *model.FieldAccess:
		return e.fieldAccess(x)
	case *model.Unary:
		return e.unary(x)
	case *model.Binary:
		return e.binary(x)
	case *model.Assign:
		return e.assign(x)
	case *model.Conditional:
		return e.conditional(x)
	case *model.Call:
		return e.call(x)
	case *model.New:
		return e.newObject(x)
	}
	panic(fmt.Sprintf("unknown expression type %T", x))
}

// condition evaluates the condition of a statement or conditional expression, simplified by the
// condition manager. A non-literal condition that turns out constant is reported.
func (e *evaluator) condition(x model.Expression) evalResult {
	res := e.eval(x)
	if v, ok := res.value.Get(); ok {
		v = e.cm.Evaluate(v)
		res.value = delay.Done(v)
		if _, isConst := IsBoolConstant(v); isConst {
			if _, lit := x.(*model.BoolLit); !lit {
				e.message(diagnostic.ConstantCondition, x.String())
			}
		}
	}
	return res
}

func (e *evaluator) readVariable(v variable.Variable) evalResult {
	vi := e.writable(v)
	vi.ReadID = variable.At(e.index, variable.Evaluation)
	return evalResult{
		value: delay.Map(vi.Value, func(val Value) Value {
			if IsConstant(val) || isNew(val) {
				return val
			}
			return VariableValue{Variable: v}
		}),
		notNull:  e.notNullOf(v, vi),
		linked:   linked.Of(v, linked.Done(linked.StaticallyAssigned)),
		variable: v,
		isVar:    true,
	}
}

func isNew(v Value) bool {
	i, ok := v.(Instance)
	return ok && i.Origin == "new"
}

// notNullOf is the nullability of a variable's value in the current context.
func (e *evaluator) notNullOf(v variable.Variable, vi *VariableInfo) property.DV {
	switch {
	case vi.Type.IsPrimitive(), v.Kind == variable.This, e.cm.IsNotNull(v):
		return _notNull
	case e.cm.IsNull(v):
		return _nullable
	}
	cnn := vi.Property(property.ContextNotNull)
	if cnn.Ge(property.EffectivelyNotNull) {
		return cnn
	}
	nne := vi.Properties.GetOrDefault(property.NotNullExpression, _nullable)
	return nne.Max(cnn)
}

func (e *evaluator) fieldAccess(x *model.FieldAccess) evalResult {
	f := e.r.program.Field(x.Field)
	if x.IsOfThis() {
		if x.Scope != nil {
			e.readVariable(variable.NewThis())
		}
		return e.readVariable(variable.NewField(f.Name, f.Index, ""))
	}
	scope := e.eval(x.Scope)
	e.deref(scope, x.Scope.String())
	if scope.isVar {
		res := e.readVariable(variable.NewField(f.Name, f.Index, scope.variable.String()))
		res.linked = res.linked.Union(linked.Of(scope.variable, linked.Done(linked.Dependent)))
		return res
	}
	nn := _notNull
	if !f.Type.IsPrimitive() {
		nn = e.r.ctx.FieldProperty(f.Index, property.ExternalNotNull)
	}
	return evalResult{
		value:   delay.Done[Value](Instance{Type: f.Type, Origin: "field"}),
		notNull: nn,
		linked:  scope.linked.Minimum(linked.Dependent),
	}
}

func (e *evaluator) unary(x *model.Unary) evalResult {
	op := e.eval(x.Operand)
	var value delay.Value[Value]
	if x.Op == model.OpNot {
		value = delay.Map(op.value, Not)
	} else {
		value = delay.Map(op.value, func(v Value) Value {
			if i, ok := v.(IntConstant); ok {
				return IntConstant{V: -i.V}
			}
			return NewArithmetic(model.OpSub, IntConstant{}, v)
		})
	}
	return evalResult{value: value, notNull: _notNull, linked: linked.Empty()}
}

func (e *evaluator) binary(x *model.Binary) evalResult {
	left := e.eval(x.Left)
	var right evalResult
	if x.Op == model.OpAnd || x.Op == model.OpOr {
		// The right operand is only evaluated when the left one allows it.
		saved := e.cm
		if l, ok := left.value.Get(); ok {
			if x.Op == model.OpOr {
				l = Not(l)
			}
			e.cm = e.cm.NewCondition(l)
		}
		right = e.eval(x.Right)
		e.cm = saved
	} else {
		right = e.eval(x.Right)
	}

	var join func(a, b Value) Value
	switch x.Op {
	case model.OpAnd:
		join = func(a, b Value) Value { return NewAnd(a, b) }
	case model.OpOr:
		join = func(a, b Value) Value { return NewOr(a, b) }
	case model.OpEq, model.OpNe, model.OpLt, model.OpLe, model.OpGt, model.OpGe:
		join = func(a, b Value) Value { return e.cm.Evaluate(NewComparison(x.Op, a, b)) }
	default:
		if x.Op == model.OpDiv || x.Op == model.OpRem {
			if r, ok := right.value.Get(); ok {
				if i, isInt := r.(IntConstant); isInt && i.V == 0 {
					e.message(diagnostic.DivisionByZero, x.String())
				}
			}
		}
		join = func(a, b Value) Value { return NewArithmetic(x.Op, a, b) }
	}
	return evalResult{value: delay.Combine(left.value, right.value, join), notNull: _notNull, linked: linked.Empty()}
}

// targetVariable returns the variable an assignment target denotes, for locals, parameters and
// fields of this.
func targetVariable(p *model.Program, x model.Expression) (variable.Variable, bool) {
	switch x := x.(type) {
	case *model.Local:
		return variable.NewLocal(x.Name), true
	case *model.Param:
		return variable.NewParameter(x.Name, x.Index), true
	case *model.FieldAccess:
		if x.IsOfThis() {
			return variable.NewField(p.Field(x.Field).Name, x.Field, ""), true
		}
	}
	return variable.Variable{}, false
}

// blockOf returns the index of the block a statement (or stage marker) belongs to.
func blockOf(index string) string {
	index = strings.TrimSuffix(strings.TrimSuffix(index, "-E"), ":M")
	if i := strings.LastIndexByte(index, '.'); i >= 0 {
		return index[:i]
	}
	return ""
}

func (e *evaluator) assign(x *model.Assign) evalResult {
	val := e.eval(x.Value)
	v, ok := targetVariable(e.r.program, x.Target)
	if !ok {
		fa, isField := x.Target.(*model.FieldAccess)
		if !isField {
			panic(fmt.Sprintf("cannot assign to %s", x.Target))
		}
		scope := e.eval(fa.Scope)
		e.deref(scope, fa.Scope.String())
		if !scope.isVar {
			return val
		}
		e.markModified(scope.variable, property.True)
		v = variable.NewField(fa.Name, fa.Field, scope.variable.String())
	}

	if val.isVar && val.variable == v {
		e.message(diagnostic.SelfAssignment, v.String())
	}
	prev := e.info(v)
	if v.Kind == variable.Local && strings.HasSuffix(string(prev.AssignmentID), "-E") &&
		!prev.AssignmentID.Before(prev.ReadID) && blockOf(string(prev.AssignmentID)) == blockOf(e.index) {
		e.message(diagnostic.UselessAssignment, v.Name)
	}

	vi := e.writable(v)
	vi.Value = val.value
	vi.AssignmentID = variable.At(e.index, variable.Evaluation)
	nn := val.notNull
	if vi.Type.IsPrimitive() {
		nn = _notNull
	}
	vi.Properties.Set(property.NotNullExpression, nn)
	vi.Properties.Set(property.ContextNotNull, notNullIf(vi.Type.IsPrimitive()))
	vi.Linked = linked.NewGraph().Assign(v, val.linked, linked.Assigned)
	e.cm = e.cm.Forget(v)
	e.forgotten = append(e.forgotten, v)

	if v.IsFieldOfThis() {
		if !e.r.method.Constructor {
			e.markModified(variable.NewThis(), property.True)
		}
		e.r.fieldAssignment(e, v, val)
	}
	return evalResult{value: val.value, notNull: nn, linked: val.linked}
}

func (e *evaluator) conditional(x *model.Conditional) evalResult {
	c := e.condition(x.Condition)
	saved := e.cm
	cv, known := c.value.Get()
	if known {
		e.cm = saved.NewCondition(cv)
	}
	then := e.eval(x.Then)
	if known {
		e.cm = saved.NewCondition(Not(cv))
	}
	els := e.eval(x.Else)
	e.cm = saved

	if b, isConst := IsBoolConstant(cv); known && isConst {
		if b {
			return evalResult{value: then.value, notNull: then.notNull, linked: then.linked}
		}
		return evalResult{value: els.value, notNull: els.notNull, linked: els.linked}
	}
	value := delay.Combine(then.value, els.value, func(a, b Value) Value { return NewConditional(cv, a, b) })
	if !known {
		value = delay.Delayed[Value](c.value.Causes().Merge(value.Causes()))
	}
	return evalResult{
		value:   value,
		notNull: property.NotNullExpression.Merge(then.notNull, els.notNull),
		linked:  linked.MergeBranches(then.linked, els.linked),
	}
}

// deref records that the value of an expression is dereferenced: a variable becomes not null in
// the context, and is required to be not null unless a condition guarantees it. Values that may
// be null are reported.
func (e *evaluator) deref(res evalResult, subject string) {
	if v, ok := res.value.Get(); ok && IsNull(v) {
		e.message(diagnostic.PotentialNullPointer, subject)
		return
	}
	if !res.isVar {
		if v, ok := res.value.Get(); ok && isCallResult(v) && e.delayOn(res.notNull).IsDone() &&
			res.notNull.Lt(property.EffectivelyNotNull) {
			e.message(diagnostic.PotentialNullPointer, subject)
		}
		return
	}
	v := res.variable
	vi := e.info(v)
	if vi.Type.IsPrimitive() || v.Kind == variable.This || e.cm.IsNotNull(v) {
		return
	}
	if e.cm.IsNull(v) {
		e.message(diagnostic.PotentialNullPointer, v.String())
		return
	}
	cnn := vi.Property(property.ContextNotNull)
	if cnn.Ge(property.EffectivelyNotNull) {
		return
	}
	if e.mayBeNull(v, vi) {
		e.message(diagnostic.PotentialNullPointer, v.String())
	}
	required := property.True
	if cnn.IsDelayed() {
		required = property.Delayed(cnn.Causes())
	}
	targets := []variable.Variable{v}
	for _, o := range vi.Linked.StaticallyAssigned() {
		if o.Kind == variable.Parameter {
			targets = append(targets, o)
		}
	}
	for _, t := range targets {
		w := e.writable(t)
		w.Properties.Set(property.NotNullRequired, required)
		w.Properties.Set(property.ContextNotNull, _notNull)
	}
}

func isCallResult(v Value) bool {
	i, ok := v.(Instance)
	return ok && (i.Origin == "call" || i.Origin == "field")
}

// mayBeNull decides whether dereferencing a variable deserves a warning: its value is a null
// constant or a conditional with a null alternative, or it is a field or the result of a call
// whose nullability is known to be nullable. Parameters and values derived from them are not
// reported; their nullability is what the analysis infers.
func (e *evaluator) mayBeNull(v variable.Variable, vi *VariableInfo) bool {
	val, ok := vi.Value.Get()
	if !ok {
		e.delay(vi.Value.Causes())
		return false
	}
	if c, isCond := val.(Conditional); isCond && (IsNull(c.Then) || IsNull(c.Else)) {
		return true
	}
	if v.Kind != variable.Field && !isCallResult(val) {
		return false
	}
	nne := e.delayOn(vi.Properties.GetOrDefault(property.NotNullExpression, _nullable))
	return nne.IsDone() && nne.Lt(property.EffectivelyNotNull)
}

// markModified applies a modification to a variable and to every variable it is linked to with
// a link of at least dependent strength, in either direction.
func (e *evaluator) markModified(v variable.Variable, modified property.DV) {
	e.delayOn(modified)
	if modified.IsFalse() {
		return
	}
	seen := make(map[variable.Variable]bool)
	var mark func(v variable.Variable, dv property.DV)
	mark = func(v variable.Variable, dv property.DV) {
		if seen[v] {
			return
		}
		seen[v] = true
		w := e.writable(v)
		w.Properties.Set(property.ContextModified, property.ContextModified.Aggregate(w.Property(property.ContextModified), dv))
		e.r.contribute(v, dv, e.st.reached)

		var next []variable.Variable
		var levels []linked.Level
		for _, o := range w.Linked.Sorted() {
			l, _ := w.Linked.Level(o)
			next, levels = append(next, o), append(levels, l)
		}
		for _, o := range e.st.vars.Keys() {
			if l, ok := e.st.vars.Value(o).Linked.Level(v); ok {
				next, levels = append(next, o), append(levels, l)
			}
		}
		for i, o := range next {
			switch l := levels[i]; {
			case !l.IsDone():
				mark(o, property.Delayed(l.Causes()))
			case l.Strength().IsAssignedOrDependent():
				mark(o, dv)
			}
		}
	}
	mark(v, modified)
}

// declaredType returns the type of the value of an expression.
func (e *evaluator) declaredType(res evalResult) model.TypeRef {
	if res.isVar {
		return e.info(res.variable).Type
	}
	if v, ok := res.value.Get(); ok {
		if i, isInstance := v.(Instance); isInstance {
			return i.Type
		}
		if _, isString := v.(StringConstant); isString {
			return model.External("String")
		}
	}
	return model.External("Object")
}

// immutableOf returns the immutability of the value of an expression.
func (e *evaluator) immutableOf(res evalResult) property.DV {
	v, ok := res.value.Get()
	if !ok {
		return property.Delayed(res.value.Causes())
	}
	return e.valueImmutable(v, e.declaredType(res), 0)
}

func (e *evaluator) valueImmutable(v Value, declared model.TypeRef, depth int) property.DV {
	switch v := v.(type) {
	case Instance:
		if v.Immutable > 0 {
			return property.Of(v.Immutable)
		}
		return TypeImmutable(e.r.ctx, v.Type)
	case VariableValue:
		vi := e.info(v.Variable)
		if val, ok := vi.Value.Get(); ok && !Equal(val, v) && depth < 8 {
			return e.valueImmutable(val, vi.Type, depth+1)
		}
		return TypeImmutable(e.r.ctx, vi.Type)
	case Conditional:
		return property.Immutable.Merge(
			e.valueImmutable(v.Then, declared, depth+1),
			e.valueImmutable(v.Else, declared, depth+1))
	}
	return property.Immutable.Highest()
}

func (e *evaluator) checkModifyingImmutable(object evalResult, subject string) {
	if object.isVar && object.variable.Kind == variable.This {
		return
	}
	if imm := e.delayOn(e.immutableOf(object)); imm.Ge(property.ImmutableHC) {
		e.message(diagnostic.ModifyingImmutable, subject)
	}
}
