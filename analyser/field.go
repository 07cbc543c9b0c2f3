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
	"strings"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/schedule"
	"go.uber.org/immutaway/statement"
)

var _fieldKinds = []property.Kind{
	property.Final, property.ExternalNotNull, property.Immutable, property.ModifiedOutsideMethod, property.Eventual,
}

type fieldState struct {
	executed   bool
	status     delay.AnalysisStatus
	properties property.Map
	values     []statement.FieldValue
}

// FieldAnalyser is the unit of a field. It aggregates the values assigned to the field by the
// constructors (and, for fields that are not final, by the other methods of its type) and the
// modifications applied to it.
type FieldAnalyser struct {
	a         *Analysis
	field     *model.Field
	key       delay.UnitKey
	forced    property.Map
	committed *fieldState
	pending   *fieldState
}

func newFieldAnalyser(a *Analysis, f *model.Field) *FieldAnalyser {
	initial := &fieldState{status: delay.NotYetExecutedStatus}
	return &FieldAnalyser{a: a, field: f, key: fieldKey(f.Index), committed: initial, pending: initial}
}

// Key implements schedule.Unit.
func (f *FieldAnalyser) Key() delay.UnitKey { return f.key }

// Name implements schedule.Unit.
func (f *FieldAnalyser) Name() string { return f.a.program.DescribeField(f.field) }

// Field returns the analysed field.
func (f *FieldAnalyser) Field() *model.Field { return f.field }

// Status returns the committed status.
func (f *FieldAnalyser) Status() delay.AnalysisStatus { return f.committed.status }

// Causes implements schedule.Unit.
func (f *FieldAnalyser) Causes() delay.Causes { return f.committed.status.Causes() }

// Properties implements schedule.Unit.
func (f *FieldAnalyser) Properties() property.Map { return f.committed.properties.Clone() }

// Values returns the committed values of the field, sorted and without duplicates.
func (f *FieldAnalyser) Values() []statement.FieldValue { return slices.Clone(f.committed.values) }

// Analyse implements schedule.Unit.
func (f *FieldAnalyser) Analyse(schedule.SharedState) (delay.AnalysisStatus, error) {
	prev := f.pending
	next := &fieldState{executed: true, properties: prev.properties.Clone()}
	ctx := f.a.context(f.key)

	final, eventual := f.final()
	values, causes := f.values(ctx, final)
	next.values = values
	computed := map[property.Kind]property.DV{
		property.Final:                 property.Bool(final),
		property.Eventual:              property.Bool(eventual),
		property.ExternalNotNull:       f.notNull(values, causes),
		property.Immutable:             f.immutable(ctx, values, causes),
		property.ModifiedOutsideMethod: f.modifiedOutsideMethod(),
	}
	if err := setAll(&next.properties, f.forced, computed); err != nil {
		return delay.NotYetExecutedStatus, fmt.Errorf("field %s: %w", f.Name(), err)
	}
	status := delay.Delays(next.properties.Causes())
	progress := !prev.executed || !next.properties.Equal(prev.properties) ||
		!status.Causes().Equal(prev.status.Causes())
	next.status = status.WithProgress(progress)
	f.pending = next
	return next.status, nil
}

// Commit implements schedule.Unit.
func (f *FieldAnalyser) Commit() { f.committed = f.pending }

// Force implements schedule.Unit.
func (f *FieldAnalyser) Force(location delay.Location) bool {
	if location.Unit != f.key || location.Detail != "" {
		return false
	}
	k, ok := forceKind(location, _fieldKinds)
	if !ok {
		return false
	}
	dv := k.BreakDefault()
	f.forced.Set(k, dv)
	f.pending.properties.Set(k, dv)
	f.committed.properties.Set(k, dv)
	return true
}

// final: a field is final when declared so, or when only constructors assign it. A field that
// mark methods assign as well is eventually final.
func (f *FieldAnalyser) final() (final, eventual bool) {
	if f.field.Final {
		return true, false
	}
	for _, m := range f.assigningMethods() {
		switch {
		case m.Constructor:
		case m.Mark:
			eventual = true
		default:
			return false, false
		}
	}
	return !eventual, eventual
}

func (f *FieldAnalyser) assigningMethods() []*model.Method {
	var methods []*model.Method
	for _, mi := range f.a.program.Type(f.field.Owner).Methods {
		m := f.a.program.Method(mi)
		if slices.Contains(f.a.program.AssignedFields(m), f.field.Index) {
			methods = append(methods, m)
		}
	}
	return methods
}

// values collects the values the field can hold after construction.
func (f *FieldAnalyser) values(ctx statement.Context, final bool) ([]statement.FieldValue, delay.Causes) {
	var values []statement.FieldValue
	causes := delay.NoCauses
	ctors := f.a.program.Constructors(f.field.Owner)
	if len(ctors) == 0 {
		values = append(values, statement.InitialFieldValue(ctx, f.field))
	}
	for _, c := range ctors {
		vs, cs := f.a.fieldValues(c.Index, f.field.Index)
		values = append(values, vs...)
		causes = causes.Merge(cs)
	}
	if !final {
		for _, m := range f.assigningMethods() {
			if m.Constructor {
				continue
			}
			vs, cs := f.a.fieldValues(m.Index, f.field.Index)
			values = append(values, vs...)
			causes = causes.Merge(cs)
		}
	}
	slices.SortStableFunc(values, func(a, b statement.FieldValue) int {
		return strings.Compare(a.Value.String(), b.Value.String())
	})
	values = slices.CompactFunc(values, func(a, b statement.FieldValue) bool {
		return a.Value.IsDone() && b.Value.IsDone() && a.Value.String() == b.Value.String()
	})
	return values, causes
}

// delayUnlessLowest delays a Min-combined value while some values are still missing, unless it
// already sits at the bottom of its domain.
func delayUnlessLowest(k property.Kind, dv property.DV, causes delay.Causes) property.DV {
	if causes.IsEmpty() || dv.Equal(k.Lowest()) {
		return dv
	}
	return property.Delayed(causes.Merge(dv.Causes()))
}

func (f *FieldAnalyser) notNull(values []statement.FieldValue, causes delay.Causes) property.DV {
	if f.field.Type.IsPrimitive() {
		return property.Of(property.EffectivelyNotNull)
	}
	if len(values) == 0 && causes.IsEmpty() {
		return property.Of(property.Nullable)
	}
	dvs := make([]property.DV, len(values))
	for i, v := range values {
		dvs[i] = withValue(v.NotNull, v.Value)
	}
	return delayUnlessLowest(property.ExternalNotNull, property.ExternalNotNull.MergeAll(dvs...), causes)
}

func (f *FieldAnalyser) immutable(ctx statement.Context, values []statement.FieldValue, causes delay.Causes) property.DV {
	if f.field.Type.IsPrimitive() {
		return property.Immutable.Highest()
	}
	if len(values) == 0 && causes.IsEmpty() {
		return statement.TypeImmutable(ctx, f.field.Type)
	}
	dvs := make([]property.DV, len(values))
	for i, v := range values {
		dvs[i] = withValue(v.Immutable, v.Value)
	}
	return delayUnlessLowest(property.Immutable, property.Immutable.MergeAll(dvs...), causes)
}

// modifiedOutsideMethod: some method of the type, other than a constructor, modifies the field.
func (f *FieldAnalyser) modifiedOutsideMethod() property.DV {
	var dvs []property.DV
	for _, mi := range f.a.program.Type(f.field.Owner).Methods {
		m := f.a.program.Method(mi)
		if m.Constructor || m.Static {
			continue
		}
		dvs = append(dvs, f.a.fieldModified(mi, f.field.Index))
	}
	return property.ModifiedOutsideMethod.AggregateAll(dvs...)
}
