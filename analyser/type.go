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

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/schedule"
)

var _typeKinds = []property.Kind{property.Immutable, property.Independent, property.Container, property.Eventual}

type typeState struct {
	executed   bool
	status     delay.AnalysisStatus
	properties property.Map
}

// TypeAnalyser is the unit of a type. Classes are computed from the properties of their fields,
// methods and parameters; an interface with exactly one implementation aggregates the
// properties of that implementation.
type TypeAnalyser struct {
	a         *Analysis
	typ       *model.Type
	key       delay.UnitKey
	forced    property.Map
	committed *typeState
	pending   *typeState
}

func newTypeAnalyser(a *Analysis, t *model.Type) *TypeAnalyser {
	initial := &typeState{status: delay.NotYetExecutedStatus}
	return &TypeAnalyser{a: a, typ: t, key: typeKey(t.Index), committed: initial, pending: initial}
}

// Key implements schedule.Unit.
func (t *TypeAnalyser) Key() delay.UnitKey { return t.key }

// Name implements schedule.Unit.
func (t *TypeAnalyser) Name() string { return t.typ.Name }

// Type returns the analysed type.
func (t *TypeAnalyser) Type() *model.Type { return t.typ }

// Status returns the committed status.
func (t *TypeAnalyser) Status() delay.AnalysisStatus { return t.committed.status }

// Causes implements schedule.Unit.
func (t *TypeAnalyser) Causes() delay.Causes { return t.committed.status.Causes() }

// Properties implements schedule.Unit.
func (t *TypeAnalyser) Properties() property.Map { return t.committed.properties.Clone() }

// Analyse implements schedule.Unit.
func (t *TypeAnalyser) Analyse(schedule.SharedState) (delay.AnalysisStatus, error) {
	prev := t.pending
	next := &typeState{executed: true, properties: prev.properties.Clone()}

	var computed map[property.Kind]property.DV
	if t.typ.Interface {
		computed = t.aggregate()
	} else {
		independent := t.independent()
		immutable, eventual := t.immutable(independent)
		computed = map[property.Kind]property.DV{
			property.Immutable:   immutable,
			property.Independent: independent,
			property.Container:   t.container(),
			property.Eventual:    eventual,
		}
	}
	if err := setAll(&next.properties, t.forced, computed); err != nil {
		return delay.NotYetExecutedStatus, fmt.Errorf("type %s: %w", t.Name(), err)
	}
	status := delay.Delays(next.properties.Causes())
	progress := !prev.executed || !next.properties.Equal(prev.properties) ||
		!status.Causes().Equal(prev.status.Causes())
	next.status = status.WithProgress(progress)
	t.pending = next
	return next.status, nil
}

// Commit implements schedule.Unit.
func (t *TypeAnalyser) Commit() { t.committed = t.pending }

// Force implements schedule.Unit.
func (t *TypeAnalyser) Force(location delay.Location) bool {
	if location.Unit != t.key || location.Detail != "" {
		return false
	}
	k, ok := forceKind(location, _typeKinds)
	if !ok {
		return false
	}
	dv := k.BreakDefault()
	t.forced.Set(k, dv)
	t.pending.properties.Set(k, dv)
	t.committed.properties.Set(k, dv)
	return true
}

// aggregate computes the properties of an interface: those of its only implementation, or the
// lowest values when there is none or more than one.
func (t *TypeAnalyser) aggregate() map[property.Kind]property.DV {
	computed := make(map[property.Kind]property.DV, len(_typeKinds))
	impls := t.a.program.Implementations(t.typ.Index)
	if len(impls) != 1 {
		for _, k := range _typeKinds {
			computed[k] = k.Lowest()
		}
		return computed
	}
	c := t.a.types[impls[0]].committed
	at := delay.Location{Unit: typeKey(impls[0])}
	for _, k := range _typeKinds {
		computed[k] = t.a.lookup(t.key, c.executed, c.properties, at, k, delay.Implementation)
	}
	return computed
}

// immutable decides the immutability of a class:
//
//   - a field that is not final makes it mutable;
//   - a modifying method leaves only final fields;
//   - immutable fields make it immutable;
//   - otherwise methods independent of the fields' content make it immutable with hidden
//     content.
//
// Fields assigned by mark methods, and the modifications of mark methods, are not held against
// the class; the result then only holds after marking, and eventual is true.
func (t *TypeAnalyser) immutable(independent property.DV) (property.DV, property.DV) {
	imm, marked := t.immutableAfterMark(independent)
	switch {
	case imm.IsDelayed():
		return imm, imm
	case marked && imm.Value() > property.Mutable:
		return imm, property.True
	default:
		return imm, property.False
	}
}

func (t *TypeAnalyser) immutableAfterMark(independent property.DV) (dv property.DV, marked bool) {
	causes := delay.NoCauses
	for _, fi := range t.typ.Fields {
		final := t.a.fieldProperty(t.key, fi, property.Final)
		switch {
		case final.IsDelayed():
			causes = causes.Merge(final.Causes())
		case !final.IsTrue():
			eventual := t.a.fieldProperty(t.key, fi, property.Eventual)
			switch {
			case eventual.IsDelayed():
				causes = causes.Merge(eventual.Causes())
			case eventual.IsTrue():
				marked = true
			default:
				return property.Of(property.Mutable), false
			}
		}
	}
	if !causes.IsEmpty() {
		return property.Delayed(causes), false
	}

	for _, mi := range t.typ.Methods {
		m := t.a.program.Method(mi)
		if m.Constructor || m.Static {
			continue
		}
		modified := t.a.methodProperty(t.key, mi, property.ModifiedMethod)
		switch {
		case modified.IsDelayed():
			causes = causes.Merge(modified.Causes())
		case modified.IsTrue() && m.Mark:
			marked = true
		case modified.IsTrue():
			return property.Of(property.FinalFields), marked
		}
	}
	if !causes.IsEmpty() {
		return property.Delayed(causes), false
	}

	fields := make([]property.DV, len(t.typ.Fields))
	for i, fi := range t.typ.Fields {
		fields[i] = t.a.fieldProperty(t.key, fi, property.Immutable)
	}
	switch all := property.Immutable.AggregateAll(fields...); {
	case all.IsDelayed():
		return all, false
	case all.Ge(property.EffectivelyImmutable):
		return all, marked
	}

	switch {
	case independent.IsDelayed():
		return independent, false
	case independent.Ge(property.IndependentHC):
		return property.Of(property.ImmutableHC), marked
	default:
		return property.Of(property.FinalFields), marked
	}
}

// independent aggregates the independence of the accessible methods and of their parameters.
func (t *TypeAnalyser) independent() property.DV {
	var dvs []property.DV
	for _, mi := range t.typ.Methods {
		m := t.a.program.Method(mi)
		if m.Private || m.Static {
			continue
		}
		if !m.Constructor {
			dvs = append(dvs, t.a.methodProperty(t.key, mi, property.Independent))
		}
		for pi, p := range m.Parameters {
			if !p.Type.IsPrimitive() {
				dvs = append(dvs, t.a.parameterProperty(t.key, mi, pi, property.Independent))
			}
		}
	}
	return property.Independent.AggregateAll(dvs...)
}

// container: no accessible method modifies its parameters.
func (t *TypeAnalyser) container() property.DV {
	causes := delay.NoCauses
	for _, mi := range t.typ.Methods {
		m := t.a.program.Method(mi)
		if m.Private || m.Static {
			continue
		}
		for pi, p := range m.Parameters {
			if p.Type.IsPrimitive() {
				continue
			}
			modified := t.a.parameterProperty(t.key, mi, pi, property.ModifiedVariable)
			switch {
			case modified.IsDelayed():
				causes = causes.Merge(modified.Causes())
			case modified.IsTrue():
				return property.False
			}
		}
	}
	if !causes.IsEmpty() {
		return property.Delayed(causes)
	}
	return property.True
}
