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

package linked

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/variable"
)

var (
	_a    = variable.NewLocal("a")
	_b    = variable.NewLocal("b")
	_c    = variable.NewLocal("c")
	_p    = variable.NewParameter("p", 0)
	_list = variable.NewField("list", 0, "")
)

func TestUnionKeepsStrongest(t *testing.T) {
	t.Parallel()

	x := Of(_a, Done(Dependent)).Union(Of(_b, Done(CommonHC)))
	y := Of(_a, Done(Assigned)).Union(Of(_c, Done(IsHCOf)))
	u := x.Union(y)

	require.Equal(t, []variable.Variable{_a, _b, _c}, u.Sorted())
	l, ok := u.Level(_a)
	require.True(t, ok)
	require.Equal(t, Assigned, l.Strength())
	require.Equal(t, "a:assigned,b:common_hc,c:is_hc_of", u.String())
}

func TestMergeBranchesNeverStronger(t *testing.T) {
	t.Parallel()

	strengths := []Strength{StaticallyAssigned, Assigned, Dependent, IsHCOf, CommonHC}
	for _, s1 := range strengths {
		for _, s2 := range strengths {
			merged := MergeBranches(Of(_a, Done(s1)), Of(_a, Done(s2)))
			l, ok := merged.Level(_a)
			require.True(t, ok)
			require.GreaterOrEqual(t, l.Strength(), s1, "%s/%s", s1, s2)
			require.GreaterOrEqual(t, l.Strength(), s2, "%s/%s", s1, s2)
			require.Equal(t, max(s1, s2), l.Strength())
		}
	}
}

func TestMergeBranchesDelays(t *testing.T) {
	t.Parallel()

	r := delay.NewRegistry()
	causes := r.Of(delay.Location{Unit: delay.UnitKey{Kind: delay.UnitMethod}, Property: "independent"}, delay.Linking)

	merged := MergeBranches(Of(_a, Done(Assigned)), NotYetSet(causes))
	require.True(t, merged.IsNotYetSet())
	require.True(t, merged.Causes().Equal(causes))

	merged = MergeBranches(Of(_a, Done(Assigned)), Of(_a, DelayedLevel(causes)))
	require.False(t, merged.IsDone())
	l, _ := merged.Level(_a)
	require.False(t, l.IsDone())
}

func TestMinimumAttenuates(t *testing.T) {
	t.Parallel()

	lv := Of(_a, Done(StaticallyAssigned)).Union(Of(_b, Done(CommonHC)))
	attenuated := lv.Minimum(Dependent)

	la, _ := attenuated.Level(_a)
	lb, _ := attenuated.Level(_b)
	require.Equal(t, Dependent, la.Strength())
	require.Equal(t, CommonHC, lb.Strength())
	require.True(t, attenuated.Minimum(Independent).IsEmpty())
}

func TestChangeToDelayKeepsStatic(t *testing.T) {
	t.Parallel()

	r := delay.NewRegistry()
	causes := r.Of(delay.Location{Unit: delay.UnitKey{Kind: delay.UnitField}, Property: "immutable"}, delay.PropertyOf)
	lv := Of(_a, Done(StaticallyAssigned)).Union(Of(_b, Done(Dependent))).ChangeToDelay(causes)

	require.Equal(t, []variable.Variable{_a}, lv.StaticallyAssigned())
	lb, _ := lv.Level(_b)
	require.False(t, lb.IsDone())
	require.True(t, lv.Causes().Equal(causes))
}

func TestGraphAssign(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	// a = p
	g.Assign(_a, Of(_p, Done(StaticallyAssigned)), Assigned)
	// b = a.sub(), only dependent on a
	g.Assign(_b, Of(_a, Done(StaticallyAssigned)).Minimum(Dependent), Assigned)

	require.Equal(t, []variable.Variable{_p}, g.Links(_a).StaticallyAssigned())
	lb, ok := g.Links(_b).Level(_a)
	require.True(t, ok)
	require.Equal(t, Dependent, lb.Strength())
	require.True(t, g.Links(_c).IsEmpty())

	// Self links are never recorded.
	g.Assign(_c, Of(_c, Done(StaticallyAssigned)), Assigned)
	require.True(t, g.Links(_c).IsEmpty())
}

func TestGraphClosure(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.Set(_list, Of(_a, Done(Assigned)))
	g.Set(_a, Of(_b, Done(Dependent)))
	g.Set(_c, Of(_b, Done(CommonHC)))

	closure := g.Closure(_list)
	require.Equal(t, []variable.Variable{_a, _b, _c}, closure.Sorted())
	la, _ := closure.Level(_a)
	lb, _ := closure.Level(_b)
	lc, _ := closure.Level(_c)
	require.Equal(t, Assigned, la.Strength())
	require.Equal(t, Dependent, lb.Strength())
	require.Equal(t, CommonHC, lc.Strength())

	// A stronger path wins over a weaker one.
	g.Set(_c, Of(_list, Done(Assigned)).Union(Of(_b, Done(CommonHC))))
	lc, _ = g.Closure(_list).Level(_c)
	require.Equal(t, Assigned, lc.Strength())
}

func TestGraphScopeExit(t *testing.T) {
	t.Parallel()

	g := NewGraph()
	g.Set(_a, Of(_p, Done(Assigned)))
	g.Set(_list, Of(_a, Done(Dependent)))

	g.ScopeExit(_a)

	require.True(t, g.Links(_a).IsEmpty())
	lp, ok := g.Links(_list).Level(_p)
	require.True(t, ok)
	require.Equal(t, Dependent, lp.Strength())
	require.False(t, g.Links(_list).Contains(_a))

	retired, ok := g.Retired(_a)
	require.True(t, ok)
	require.True(t, retired.Contains(_p))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
