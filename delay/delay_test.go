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

package delay

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var (
	_methodA = UnitKey{Kind: UnitMethod, Index: 0}
	_methodB = UnitKey{Kind: UnitMethod, Index: 1}
	_fieldF  = UnitKey{Kind: UnitField, Index: 0}
)

func TestCausesMerge(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := r.Of(Location{Unit: _methodA, Property: "modified_method"}, PropertyOf)
	b := r.Of(Location{Unit: _methodB, Property: "modified_method"}, PropertyOf)

	merged := a.Merge(b)
	require.Equal(t, 2, merged.Len())
	require.Equal(t, []UnitKey{_methodA, _methodB}, merged.Units())
	// Receivers are never modified.
	require.Equal(t, 1, a.Len())
	require.Equal(t, 1, b.Len())

	require.True(t, a.Merge(NoCauses).Equal(a))
	require.True(t, NoCauses.Merge(b).Equal(b))
	require.True(t, merged.Merge(a).Equal(merged))
}

func TestNotYetStartedIsAbsorbing(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := r.Of(Location{Unit: _fieldF, Property: "final"}, PropertyOf)

	merged := a.Merge(r.NotYetStarted())
	require.True(t, merged.IsNotYetStarted())
	require.Equal(t, 1, merged.Len())

	merged = r.NotYetStarted().Merge(a)
	require.True(t, merged.IsNotYetStarted())
	require.Empty(t, merged.Units())
}

func TestCausesWithout(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	c := r.Of(Location{Unit: _methodA, Detail: "p"}, PropertyOf).Merge(r.Of(Location{Unit: _methodB}, ValueOf))
	require.Equal(t, []UnitKey{_methodB}, c.Without(_methodA).Units())
	require.True(t, c.Without(_methodA).Without(_methodB).IsEmpty())
}

func TestValueCombine(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	sum := func(a, b int) int { return a + b }

	v := Combine(Done(1), Done(2), sum)
	require.True(t, v.IsDone())
	require.Equal(t, 3, v.MustGet())

	causes := r.Of(Location{Unit: _methodA}, ValueOf)
	d := Combine(Done(1), Delayed[int](causes), sum)
	require.True(t, d.IsDelayed())
	require.True(t, d.Causes().Equal(causes))

	other := r.Of(Location{Unit: _methodB}, ValueOf)
	dd := CombineAll([]Value[int]{Delayed[int](causes), Done(4), Delayed[int](other)}, sum)
	require.Equal(t, 2, dd.Causes().Len())

	require.Panics(t, func() { Delayed[int](NoCauses) })
	require.Panics(t, func() { Value[int]{}.IsDone() })
}

func TestValueIsProgressOver(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	a := Delayed[string](r.Of(Location{Unit: _methodA}, ValueOf))
	b := Delayed[string](r.Of(Location{Unit: _methodB}, ValueOf))

	require.True(t, a.IsProgressOver(Value[string]{}))
	require.False(t, a.IsProgressOver(a))
	require.True(t, b.IsProgressOver(a))
	require.True(t, Done("x").IsProgressOver(a))
	require.False(t, Done("x").IsProgressOver(Done("x")))
	require.False(t, a.IsProgressOver(Done("x")))
}

func TestAnalysisStatusCombine(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	c1 := r.Of(Location{Unit: _methodA}, ValueOf)
	c2 := r.Of(Location{Unit: _methodB}, ValueOf)

	require.Equal(t, DoneStatus, DoneStatus.Combine(DoneStatus))
	require.Equal(t, DoneStatus, NotYetExecutedStatus.Combine(DoneStatus))
	require.Equal(t, DoneStatus, Delays(NoCauses))

	s := Delays(c1).Combine(DoneStatus)
	require.Equal(t, StatusRunAgain, s.Kind())

	s = Delays(c1).WithProgress(true).Combine(Delays(c2))
	require.Equal(t, StatusProgress, s.Kind())
	require.Equal(t, 2, s.Causes().Len())
	require.True(t, s.IsDelayed())
	require.False(t, DoneStatus.WithProgress(true).IsDelayed())
}

func TestStatusKinds(t *testing.T) {
	t.Parallel()

	require.Equal(t, StatusDone, DoneStatus.Kind())
	require.Equal(t, "DONE", DoneStatus.String())
	require.Equal(t, StatusNotYetExecuted, NotYetExecutedStatus.Kind())
	require.Equal(t, "NOT_YET_EXECUTED", NotYetExecutedStatus.String())
	require.True(t, Done(StatusDone).IsDone())
}

func TestDetectCycle(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	stack := []UnitKey{_fieldF, _methodA, _methodB}

	// B waits for A, which is on the stack: cycle A -> B -> A.
	causes := r.Of(Location{Unit: _methodA, Property: "modified_method"}, PropertyOf)
	cycle, ok := DetectCycle(causes, stack)
	require.True(t, ok)
	require.Equal(t, []UnitKey{_methodA, _methodB}, cycle.Members)
	require.Equal(t, _methodA, cycle.Lowest())
	require.Equal(t, _methodB, cycle.Predecessor(_methodA))
	require.Equal(t, "method#0 -> method#1 -> method#0", cycle.String())

	// Waiting on a unit outside the stack is not a cycle.
	_, ok = DetectCycle(r.Of(Location{Unit: UnitKey{Kind: UnitType, Index: 3}}, PropertyOf), stack)
	require.False(t, ok)

	// The "not yet started" marker never closes a cycle.
	_, ok = DetectCycle(r.NotYetStarted(), stack)
	require.False(t, ok)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
