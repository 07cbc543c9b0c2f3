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

package property_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/property"
)

func delayedOn(r *delay.Registry, index int) property.DV {
	return property.Delayed(r.Of(delay.Location{
		Unit:     delay.UnitKey{Kind: delay.UnitMethod, Index: index},
		Property: property.ModifiedMethod.String(),
	}, delay.PropertyOf))
}

func TestDVOrder(t *testing.T) {
	t.Parallel()

	nullable := property.Of(property.Nullable)
	notNull := property.Of(property.EffectivelyNotNull)
	contentNotNull := property.Of(property.EffectivelyContentNotNull)

	require.Equal(t, nullable, nullable.Min(notNull))
	require.Equal(t, contentNotNull, notNull.Max(contentNotNull))
	require.True(t, contentNotNull.Ge(property.EffectivelyNotNull))
	require.True(t, nullable.Lt(property.EffectivelyNotNull))
	require.True(t, property.True.IsTrue())
	require.True(t, property.Bool(false).IsFalse())
}

func TestDelayPropagation(t *testing.T) {
	t.Parallel()

	r := delay.NewRegistry()
	d1, d2 := delayedOn(r, 1), delayedOn(r, 2)

	m := d1.Min(property.Of(property.Mutable))
	require.True(t, m.IsDelayed())
	require.True(t, m.Causes().Equal(d1.Causes()))

	both := d1.Max(d2)
	require.Equal(t, 2, both.Causes().Len())
	require.Panics(t, func() { _ = both.Value() })
}

func TestRuleShortCircuit(t *testing.T) {
	t.Parallel()

	r := delay.NewRegistry()
	d := delayedOn(r, 0)

	// Modification is "any statement modifies": a true contribution settles the question.
	require.True(t, property.ModifiedMethod.Aggregate(d, property.True).IsTrue())
	require.True(t, property.ModifiedMethod.Aggregate(d, property.False).IsDelayed())

	// Nullability of a value is the meet: one nullable value settles it.
	nullable := property.Of(property.Nullable)
	require.Equal(t, nullable, property.NotNullExpression.Aggregate(nullable, d))

	// A dereference in one branch only does not make the variable not-null after the join.
	notNull := property.Of(property.EffectivelyNotNull)
	require.Equal(t, nullable, property.ContextNotNull.Merge(notNull, nullable))
	require.Equal(t, notNull, property.ContextNotNull.Aggregate(notNull, nullable))

	require.Equal(t, property.Of(property.EffectivelyImmutable), property.Immutable.AggregateAll())
	require.Equal(t, property.False, property.ModifiedMethod.MergeAll())
}

func TestBreakDefaults(t *testing.T) {
	t.Parallel()

	require.Equal(t, property.False, property.ModifiedMethod.BreakDefault())
	require.Equal(t, property.Of(property.Mutable), property.Immutable.BreakDefault())
	require.Equal(t, property.Of(property.Nullable), property.NotNullExpression.BreakDefault())
	require.Equal(t, "immutable_hc", property.Immutable.Label(property.Of(property.ImmutableHC)))
	for _, k := range property.Kinds() {
		require.NotEmpty(t, k.String())
	}
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for _, k := range property.Kinds() {
		parsed, ok := property.ParseKind(k.String())
		require.True(t, ok, k.String())
		require.Equal(t, k, parsed)
	}
	_, ok := property.ParseKind("no_such_property")
	require.False(t, ok)
}

func TestMapSetMonotone(t *testing.T) {
	t.Parallel()

	r := delay.NewRegistry()
	var m property.Map
	require.NoError(t, m.SetMonotone(property.ModifiedMethod, delayedOn(r, 3)))
	require.False(t, m.IsDone())
	require.Equal(t, []property.Kind{property.ModifiedMethod}, m.Delayed())

	require.NoError(t, m.SetMonotone(property.ModifiedMethod, property.False))
	require.True(t, m.IsDone())

	// Delayed after done keeps the done value.
	require.NoError(t, m.SetMonotone(property.ModifiedMethod, delayedOn(r, 3)))
	require.Equal(t, property.False, m.GetOrDefault(property.ModifiedMethod, property.True))

	err := m.SetMonotone(property.ModifiedMethod, property.True)
	var monotonicityErr *property.MonotonicityError
	require.ErrorAs(t, err, &monotonicityErr)
	require.Equal(t, property.ModifiedMethod, monotonicityErr.Kind)
}

func TestMapProgressAndEquality(t *testing.T) {
	t.Parallel()

	r := delay.NewRegistry()
	prev := property.NewMap(property.Final, property.True, property.Immutable, delayedOn(r, 0))
	next := prev.Clone()
	require.True(t, next.Equal(prev))
	require.False(t, next.IsProgressOver(prev))

	next.Set(property.Immutable, property.Of(property.FinalFields))
	require.False(t, next.Equal(prev))
	require.True(t, next.IsProgressOver(prev))
	require.Equal(t, "{immutable=final_fields, final=true}", next.String())
	require.Equal(t, map[string]string{"final": "true", "immutable": "final_fields"}, next.Labels())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
