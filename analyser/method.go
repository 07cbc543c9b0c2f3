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

package analyser

import (
	"fmt"
	"slices"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/linked"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/schedule"
	"go.uber.org/immutaway/statement"
	"go.uber.org/immutaway/variable"
)

var (
	_methodKinds    = []property.Kind{property.ModifiedMethod, property.NotNullExpression, property.Immutable, property.Independent, property.Fluent, property.Identity}
	_parameterKinds = []property.Kind{property.NotNullParameter, property.ModifiedVariable, property.Independent}
)

// ParameterAnalysis holds what is known about a parameter of a method.
type ParameterAnalysis struct {
	Parameter  *model.Parameter
	Properties property.Map
	// AssignedToField holds the fields of the method's type the parameter is assigned to.
	AssignedToField []int
}

// methodState is one published state of a method unit. A state is never modified once it has
// been committed, except by Force between rounds.
type methodState struct {
	executed        bool
	status          delay.AnalysisStatus
	properties      property.Map
	parameters      []property.Map
	assignedToField [][]int
	// fieldValues holds, per field of the type, the values the method assigns to it.
	fieldValues map[int][]statement.FieldValue
	// fieldModified holds, per field of the type, whether the method modifies it.
	fieldModified map[int]property.DV
	precondition  delay.Value[statement.Value]
	result        *statement.Result
}

// MethodAnalyser is the unit of a method and its parameters. Methods with a body are analysed
// statement by statement in every iteration; abstract methods take their properties from their
// unique implementation, if any.
type MethodAnalyser struct {
	a      *Analysis
	method *model.Method
	key    delay.UnitKey
	body   *statement.Analyser
	// buffer holds the messages of the latest iteration; they are committed once the unit is done.
	buffer    diagnostic.Buffer
	committed *methodState
	pending   *methodState
	forced    property.Map
	// forcedParameters holds the forced properties of every parameter.
	forcedParameters []property.Map
	messagesSent     bool
}

func newMethodAnalyser(a *Analysis, m *model.Method) *MethodAnalyser {
	ma := &MethodAnalyser{
		a:                a,
		method:           m,
		key:              methodKey(m.Index),
		forcedParameters: make([]property.Map, len(m.Parameters)),
	}
	if m.Body != nil {
		ma.body = statement.NewAnalyser(a.program, m)
	}
	initial := &methodState{
		status:     delay.NotYetExecutedStatus,
		parameters: make([]property.Map, len(m.Parameters)),
	}
	ma.committed, ma.pending = initial, initial
	return ma
}

// Key implements schedule.Unit.
func (m *MethodAnalyser) Key() delay.UnitKey { return m.key }

// Name implements schedule.Unit.
func (m *MethodAnalyser) Name() string { return m.a.program.Describe(m.method) }

// Method returns the analysed method.
func (m *MethodAnalyser) Method() *model.Method { return m.method }

// Status returns the committed status.
func (m *MethodAnalyser) Status() delay.AnalysisStatus { return m.committed.status }

// Causes implements schedule.Unit.
func (m *MethodAnalyser) Causes() delay.Causes { return m.committed.status.Causes() }

// Properties implements schedule.Unit.
func (m *MethodAnalyser) Properties() property.Map { return m.committed.properties.Clone() }

// Parameters returns the committed analysis of every parameter.
func (m *MethodAnalyser) Parameters() []ParameterAnalysis {
	params := make([]ParameterAnalysis, len(m.method.Parameters))
	for i, p := range m.method.Parameters {
		params[i] = ParameterAnalysis{Parameter: p, Properties: m.committed.parameters[i].Clone()}
		if m.committed.assignedToField != nil {
			params[i].AssignedToField = slices.Clone(m.committed.assignedToField[i])
		}
	}
	return params
}

// Precondition returns the committed precondition of the method.
func (m *MethodAnalyser) Precondition() delay.Value[statement.Value] { return m.committed.precondition }

// Result returns the committed statement-level result, nil for abstract methods.
func (m *MethodAnalyser) Result() *statement.Result { return m.committed.result }

// Analyse implements schedule.Unit.
func (m *MethodAnalyser) Analyse(schedule.SharedState) (delay.AnalysisStatus, error) {
	prev := m.pending
	next := &methodState{
		executed:      true,
		properties:    prev.properties.Clone(),
		parameters:    make([]property.Map, len(m.method.Parameters)),
		fieldValues:   make(map[int][]statement.FieldValue),
		fieldModified: make(map[int]property.DV),
	}
	for i := range next.parameters {
		next.parameters[i] = prev.parameters[i].Clone()
	}

	var (
		values map[property.Kind]property.DV
		params []map[property.Kind]property.DV
		causes delay.Causes
	)
	if m.body == nil {
		values, params = m.abstract()
		next.precondition = delay.Done[statement.Value](statement.True)
	} else {
		ctx := m.a.context(m.key)
		res := m.body.Analyse(ctx)
		next.result = res
		next.precondition = res.Precondition
		causes = res.Status.Causes()
		values = m.methodValues(ctx, res)
		params, next.assignedToField = m.parameterValues(ctx, res)
		m.publishFields(res, next)
		m.buffer.Reset()
		for _, msg := range res.Messages {
			m.buffer.Add(msg)
		}
	}

	if err := setAll(&next.properties, m.forced, values); err != nil {
		return delay.NotYetExecutedStatus, fmt.Errorf("method %s: %w", m.Name(), err)
	}
	causes = causes.Merge(next.properties.Causes())
	progress := !prev.executed || !next.properties.Equal(prev.properties)
	for i := range params {
		if err := setAll(&next.parameters[i], m.forcedParameters[i], params[i]); err != nil {
			return delay.NotYetExecutedStatus, fmt.Errorf("method %s, parameter %s: %w", m.Name(), m.method.Parameters[i].Name, err)
		}
		causes = causes.Merge(next.parameters[i].Causes())
		progress = progress || !next.parameters[i].Equal(prev.parameters[i])
	}
	status := delay.Delays(causes)
	progress = progress || !status.Causes().Equal(prev.status.Causes())
	next.status = status.WithProgress(progress)
	m.pending = next
	return next.status, nil
}

// Commit implements schedule.Unit.
func (m *MethodAnalyser) Commit() {
	m.committed = m.pending
	if m.committed.status.IsDone() && !m.messagesSent {
		m.messagesSent = true
		m.a.engine.Commit(m.buffer.Messages())
	}
}

// Force implements schedule.Unit.
func (m *MethodAnalyser) Force(location delay.Location) bool {
	if location.Unit != m.key {
		return false
	}
	if location.Detail == "" {
		k, ok := forceKind(location, _methodKinds)
		if !ok {
			return false
		}
		dv := k.BreakDefault()
		m.forced.Set(k, dv)
		m.pending.properties.Set(k, dv)
		m.committed.properties.Set(k, dv)
		return true
	}
	i := slices.IndexFunc(m.method.Parameters, func(p *model.Parameter) bool { return p.Name == location.Detail })
	if i < 0 {
		return false
	}
	k, ok := forceKind(location, _parameterKinds)
	if !ok {
		return false
	}
	dv := k.BreakDefault()
	m.forcedParameters[i].Set(k, dv)
	m.pending.parameters[i].Set(k, dv)
	m.committed.parameters[i].Set(k, dv)
	return true
}

// methodValues computes the method's own properties from the result of its body.
func (m *MethodAnalyser) methodValues(ctx statement.Context, res *statement.Result) map[property.Kind]property.DV {
	return map[property.Kind]property.DV{
		property.ModifiedMethod:    m.modified(res),
		property.NotNullExpression: m.returnNotNull(res),
		property.Immutable:         m.returnImmutable(ctx, res),
		property.Independent:       m.returnIndependent(res),
		property.Fluent:            m.returnsVariable(res, variable.NewThis(), m.isFluentCandidate()),
		property.Identity:          m.returnsFirstParameter(res),
	}
}

// modified aggregates the modification of this and of the fields of this over the body.
// Constructors and static methods never modify an object of their type.
func (m *MethodAnalyser) modified(res *statement.Result) property.DV {
	if m.method.Constructor || m.method.Static {
		return property.False
	}
	var dvs []property.DV
	res.Modified.OrderedRange(func(v variable.Variable, dv property.DV) bool {
		if v.Kind == variable.This || v.IsFieldOfThis() {
			dvs = append(dvs, dv)
		}
		return true
	})
	return property.ModifiedMethod.AggregateAll(dvs...)
}

// withValue delays a property of a returned value while the value itself is delayed.
func withValue(dv property.DV, v delay.Value[statement.Value]) property.DV {
	if v.IsDelayed() {
		return property.Delayed(v.Causes().Merge(dv.Causes()))
	}
	return dv
}

func (m *MethodAnalyser) returnNotNull(res *statement.Result) property.DV {
	ret := m.method.Return
	if ret.IsVoid() || ret.IsPrimitive() || len(res.Returns) == 0 {
		return property.Of(property.EffectivelyNotNull)
	}
	dvs := make([]property.DV, len(res.Returns))
	for i, rv := range res.Returns {
		dvs[i] = withValue(rv.NotNull, rv.Value)
	}
	return property.NotNullExpression.MergeAll(dvs...)
}

func (m *MethodAnalyser) returnImmutable(ctx statement.Context, res *statement.Result) property.DV {
	ret := m.method.Return
	switch {
	case ret.IsVoid() || ret.IsPrimitive():
		return property.Immutable.Highest()
	case len(res.Returns) == 0:
		return statement.TypeImmutable(ctx, ret)
	}
	dvs := make([]property.DV, len(res.Returns))
	for i, rv := range res.Returns {
		dvs[i] = withValue(rv.Immutable, rv.Value)
	}
	return property.Immutable.MergeAll(dvs...)
}

// returnIndependent computes how much the returned object is independent of the fields of this:
// immutable values are independent, otherwise the strongest link between the return value and
// this or its fields at the exits decides.
func (m *MethodAnalyser) returnIndependent(res *statement.Result) property.DV {
	ret := m.method.Return
	if ret.IsVoid() || ret.IsPrimitive() || m.method.Static || m.method.Constructor {
		return property.Of(property.FullyIndependent)
	}
	rv := variable.NewReturn(m.method.Name, m.method.Index)
	var dvs []property.DV
	for _, r := range res.Returns {
		if imm := r.Immutable; imm.IsDone() && imm.Ge(property.EffectivelyImmutable) {
			continue
		}
		x := slices.IndexFunc(res.Exits, func(x statement.Exit) bool { return x.Index == r.Index })
		if x < 0 {
			continue
		}
		dv := independentOf(res.Exits[x].Graph(), rv, true)
		if r.Immutable.IsDelayed() && !dv.Ge(property.FullyIndependent) {
			dv = property.Delayed(r.Immutable.Causes().Merge(dv.Causes()))
		}
		dvs = append(dvs, dv)
	}
	return property.Independent.MergeAll(dvs...)
}

// independentOf returns the independence of a variable from the fields of this (and this itself
// when withThis is set), given the linking graph at an exit.
func independentOf(g *linked.Graph, v variable.Variable, withThis bool) property.DV {
	closure := g.Closure(v)
	if closure.IsNotYetSet() {
		return property.Delayed(closure.Causes())
	}
	dv := property.Of(property.FullyIndependent)
	for _, o := range closure.Sorted() {
		if !o.IsFieldOfThis() && (!withThis || o.Kind != variable.This) {
			continue
		}
		l, _ := closure.Level(o)
		dv = property.Independent.Merge(dv, levelIndependence(l))
	}
	return dv
}

func levelIndependence(l linked.Level) property.DV {
	switch {
	case !l.IsDone():
		return property.Delayed(l.Causes())
	case l.Strength() <= linked.Dependent:
		return property.Of(property.Dependent)
	case l.Strength() < linked.Independent:
		return property.Of(property.IndependentHC)
	default:
		return property.Of(property.FullyIndependent)
	}
}

func (m *MethodAnalyser) isFluentCandidate() bool {
	ret := m.method.Return
	return !m.method.Static && ret.Kind == model.RefProgram && ret.Type == m.method.Owner
}

// returnsVariable decides whether every return statement returns the value of v.
func (m *MethodAnalyser) returnsVariable(res *statement.Result, v variable.Variable, candidate bool) property.DV {
	if !candidate || len(res.Returns) == 0 {
		return property.False
	}
	dvs := make([]property.DV, len(res.Returns))
	for i, rv := range res.Returns {
		value, ok := rv.Value.Get()
		if !ok {
			dvs[i] = property.Delayed(rv.Value.Causes())
			continue
		}
		vv, isVar := value.(statement.VariableValue)
		dvs[i] = property.Bool(isVar && vv.Variable == v)
	}
	return property.Fluent.AggregateAll(dvs...)
}

func (m *MethodAnalyser) returnsFirstParameter(res *statement.Result) property.DV {
	params := m.method.Parameters
	candidate := len(params) > 0 && params[0].Type == m.method.Return
	if !candidate {
		return property.False
	}
	return m.returnsVariable(res, variable.NewParameter(params[0].Name, 0), true)
}

// parameterValues computes the properties of the parameters from the exits of the body.
func (m *MethodAnalyser) parameterValues(ctx statement.Context, res *statement.Result) ([]map[property.Kind]property.DV, [][]int) {
	params := make([]map[property.Kind]property.DV, len(m.method.Parameters))
	assigned := make([][]int, len(m.method.Parameters))
	graphs := make([]*linked.Graph, len(res.Exits))
	for i, x := range res.Exits {
		graphs[i] = x.Graph()
	}
	for i, p := range m.method.Parameters {
		if p.Type.IsPrimitive() {
			params[i] = map[property.Kind]property.DV{
				property.NotNullParameter: property.Of(property.EffectivelyNotNull),
				property.ModifiedVariable: property.False,
				property.Independent:      property.Of(property.FullyIndependent),
			}
			continue
		}
		v := variable.NewParameter(p.Name, i)
		modified := property.False
		if dv, ok := res.Modified.Load(v); ok {
			modified = dv
		}
		params[i] = map[property.Kind]property.DV{
			property.NotNullParameter: notNullParameter(res, v),
			property.ModifiedVariable: modified,
			property.Independent:      m.parameterIndependent(ctx, p, v, graphs),
		}
		assigned[i] = m.assignedToField(v, graphs)
	}
	return params, assigned
}

// notNullParameter: a parameter is not null when it is required to be not null on every exit.
func notNullParameter(res *statement.Result, v variable.Variable) property.DV {
	if len(res.Exits) == 0 {
		return property.Of(property.Nullable)
	}
	dvs := make([]property.DV, len(res.Exits))
	for i, x := range res.Exits {
		dv := property.False
		if vi, ok := x.Variables.Load(v); ok {
			dv = vi.Property(property.NotNullRequired)
		}
		if x.Reached.IsDelayed() {
			dv = property.Delayed(x.Reached.Causes().Merge(dv.Causes()))
		}
		dvs[i] = dv
	}
	switch required := property.NotNullRequired.MergeAll(dvs...); {
	case required.IsDelayed():
		return property.Delayed(required.Causes())
	case required.IsTrue():
		return property.Of(property.EffectivelyNotNull)
	default:
		return property.Of(property.Nullable)
	}
}

func (m *MethodAnalyser) parameterIndependent(ctx statement.Context, p *model.Parameter, v variable.Variable, graphs []*linked.Graph) property.DV {
	imm := statement.TypeImmutable(ctx, p.Type)
	if imm.IsDone() && imm.Ge(property.EffectivelyImmutable) {
		return property.Of(property.FullyIndependent)
	}
	dvs := make([]property.DV, len(graphs))
	for i, g := range graphs {
		dvs[i] = independentOf(g, v, false)
	}
	dv := property.Independent.MergeAll(dvs...)
	if imm.IsDelayed() && !dv.Ge(property.FullyIndependent) {
		return property.Delayed(imm.Causes().Merge(dv.Causes()))
	}
	return dv
}

// assignedToField returns the fields of the type that hold the parameter's object at some exit.
func (m *MethodAnalyser) assignedToField(v variable.Variable, graphs []*linked.Graph) []int {
	var fields []int
	for _, fi := range m.a.program.Type(m.method.Owner).Fields {
		fv := variable.NewField(m.a.program.Field(fi).Name, fi, "")
		for _, g := range graphs {
			l, ok := g.Links(fv).Level(v)
			if ok && l.IsDone() && l.Strength() <= linked.Assigned {
				fields = append(fields, fi)
				break
			}
		}
	}
	return fields
}

// publishFields exposes what the method does to the fields of its type, per field.
func (m *MethodAnalyser) publishFields(res *statement.Result, next *methodState) {
	if m.method.Constructor {
		for _, x := range res.Exits {
			for _, fv := range x.Fields {
				next.fieldValues[fv.Field] = append(next.fieldValues[fv.Field], fv)
			}
		}
	} else {
		for _, fv := range res.FieldAssignments {
			next.fieldValues[fv.Field] = append(next.fieldValues[fv.Field], fv)
		}
	}
	res.Modified.OrderedRange(func(v variable.Variable, dv property.DV) bool {
		if v.IsFieldOfThis() {
			next.fieldModified[v.ID] = dv
		}
		return true
	})
}

// implementation returns the method implementing an abstract method, when the interface has
// exactly one implementation in the program.
func (m *MethodAnalyser) implementation() (*model.Method, bool) {
	owner := m.a.program.Type(m.method.Owner)
	impls := m.a.program.Implementations(owner.Index)
	if !owner.Interface || len(impls) != 1 {
		return nil, false
	}
	im, ok := m.a.program.MethodByName(impls[0], m.method.Name)
	if !ok || im.Body == nil || len(im.Parameters) != len(m.method.Parameters) {
		return nil, false
	}
	return im, true
}

// abstract computes the properties of a method without a body: those of its unique
// implementation, or conservative defaults.
func (m *MethodAnalyser) abstract() (map[property.Kind]property.DV, []map[property.Kind]property.DV) {
	values := make(map[property.Kind]property.DV, len(_methodKinds))
	params := make([]map[property.Kind]property.DV, len(m.method.Parameters))
	if im, ok := m.implementation(); ok {
		c := m.a.methods[im.Index].committed
		at := delay.Location{Unit: methodKey(im.Index)}
		for _, k := range _methodKinds {
			values[k] = m.a.lookup(m.key, c.executed, c.properties, at, k, delay.Implementation)
		}
		for i, p := range im.Parameters {
			params[i] = make(map[property.Kind]property.DV, len(_parameterKinds))
			pat := delay.Location{Unit: methodKey(im.Index), Detail: p.Name}
			for _, k := range _parameterKinds {
				var props property.Map
				if c.executed {
					props = c.parameters[i]
				}
				params[i][k] = m.a.lookup(m.key, c.executed, props, pat, k, delay.Implementation)
			}
		}
		return values, params
	}

	ret := m.method.Return
	simple := ret.IsVoid() || ret.IsPrimitive()
	values[property.ModifiedMethod] = property.Bool(!m.method.Static)
	values[property.NotNullExpression] = property.Of(property.Nullable)
	values[property.Independent] = property.Of(property.Dependent)
	values[property.Immutable] = property.Immutable.Lowest()
	if simple {
		values[property.NotNullExpression] = property.Of(property.EffectivelyNotNull)
		values[property.Independent] = property.Of(property.FullyIndependent)
		values[property.Immutable] = property.Immutable.Highest()
	}
	values[property.Fluent] = property.False
	values[property.Identity] = property.False
	for i, p := range m.method.Parameters {
		params[i] = map[property.Kind]property.DV{
			property.NotNullParameter: property.Of(property.Nullable),
			property.ModifiedVariable: property.False,
			property.Independent:      property.Of(property.Dependent),
		}
		if p.Type.IsPrimitive() {
			params[i][property.NotNullParameter] = property.Of(property.EffectivelyNotNull)
			params[i][property.Independent] = property.Of(property.FullyIndependent)
		}
	}
	return values, params
}
