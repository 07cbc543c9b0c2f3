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
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/schedule"
	"go.uber.org/immutaway/statement"
	"go.uber.org/immutaway/variable"
	"go.uber.org/zap/zaptest"
)

// run analyses a program to its fixpoint.
func run(t *testing.T, program *model.Program, parallel bool) *Analysis {
	t.Helper()

	a := New(program, diagnostic.NewEngine(nil), zaptest.NewLogger(t))
	_, err := schedule.New(a.Units(), schedule.Options{Parallel: parallel, MaxIterations: 50}).Run(context.Background())
	require.NoError(t, err)
	return a
}

func load(t *testing.T, name string) *model.Program {
	t.Helper()

	p, err := model.Load(filepath.Join("..", "testdata", "programs", name))
	require.NoError(t, err)
	return p
}

func parse(t *testing.T, src string) *model.Program {
	t.Helper()

	p, err := model.Parse([]byte(src))
	require.NoError(t, err)
	return p
}

func requireProperty(t *testing.T, props property.Map, k property.Kind, want property.DV) {
	t.Helper()

	got, ok := props.Get(k)
	require.True(t, ok, "no %s in %s", k, props)
	require.True(t, got.Equal(want), "%s: got %s, want %s", k, k.Label(got), k.Label(want))
}

func TestUnitOrder(t *testing.T) {
	t.Parallel()

	a := New(load(t, "shapes.yaml"), diagnostic.NewEngine(nil), zaptest.NewLogger(t))
	var names []string
	for _, u := range a.Units() {
		names = append(names, u.Name())
	}
	require.Equal(t, []string{
		"Square.side",
		"Shape.area", "Square.<init>", "Square.area",
		"Shape", "Square",
	}, names)
}

func TestGuardedParameter(t *testing.T) {
	t.Parallel()

	for _, parallel := range []bool{false, true} {
		a := run(t, load(t, "guard.yaml"), parallel)
		m := a.Method(0)
		require.True(t, m.Status().IsDone())

		// After "if (x == null) return;" x is known not to be null.
		sa, ok := m.Result().Statement("0")
		require.True(t, ok)
		require.True(t, sa.Conditions.IsNotNull(variable.NewParameter("x", 0)))
		sa, ok = m.Result().Statement("1")
		require.True(t, ok)
		x, ok := sa.Variable(variable.NewParameter("x", 0))
		require.True(t, ok)
		requireProperty(t, x.Properties, property.ContextNotNull, property.Of(property.EffectivelyNotNull))

		params := m.Parameters()
		require.Len(t, params, 1)
		requireProperty(t, params[0].Properties, property.NotNullParameter, property.Of(property.Nullable))
		requireProperty(t, params[0].Properties, property.ModifiedVariable, property.False)
	}
}

func TestUnreachableStatementHasNoVariables(t *testing.T) {
	t.Parallel()

	a := run(t, load(t, "unreachable.yaml"), false)
	res := a.Method(0).Result()

	sa, ok := res.Statement("1")
	require.True(t, ok)
	require.True(t, sa.Flow.IsUnreachable())
	require.Equal(t, statement.Never, sa.Flow.Reached.MustGet())
	require.Zero(t, sa.Variables.Len())
}

func TestInterfaceTakesUniqueImplementation(t *testing.T) {
	t.Parallel()

	a := run(t, load(t, "shapes.yaml"), false)

	area := a.Method(0)
	require.Equal(t, "Shape.area", area.Name())
	require.True(t, area.Status().IsDone())
	requireProperty(t, area.Properties(), property.ModifiedMethod, property.False)
	requireProperty(t, area.Properties(), property.NotNullExpression, property.Of(property.EffectivelyNotNull))

	shape := a.Type(0)
	require.True(t, shape.Status().IsDone())
	requireProperty(t, shape.Properties(), property.Immutable, property.Of(property.EffectivelyImmutable))
}

func TestAbstractMethodWithoutImplementation(t *testing.T) {
	t.Parallel()

	a := run(t, parse(t, `
types:
  - name: Sink
    interface: true
    methods:
      - name: accept
        params: [{name: v, type: String}]
`), false)

	accept := a.Method(0)
	require.True(t, accept.Status().IsDone())
	requireProperty(t, accept.Properties(), property.ModifiedMethod, property.True)
	params := accept.Parameters()
	require.Len(t, params, 1)
	requireProperty(t, params[0].Properties, property.NotNullParameter, property.Of(property.Nullable))
	requireProperty(t, params[0].Properties, property.Independent, property.Of(property.Dependent))
}

func TestParameterAssignedToField(t *testing.T) {
	t.Parallel()

	a := run(t, parse(t, `
types:
  - name: Box
    fields:
      - {name: item, type: String, final: true}
    methods:
      - name: Box
        constructor: true
        params: [{name: item, type: String}]
        body:
          - expr: {assign: [this.item, item]}
`), false)

	ctor := a.Method(0)
	require.True(t, ctor.Status().IsDone())
	params := ctor.Parameters()
	require.Len(t, params, 1)
	require.Equal(t, []int{0}, params[0].AssignedToField)

	values := a.Field(0).Values()
	require.Len(t, values, 1)
	require.Equal(t, "item", values[0].Value.MustGet().String())
}

func TestFieldModifiedOutsideConstructor(t *testing.T) {
	t.Parallel()

	a := run(t, parse(t, `
types:
  - name: Counter
    fields:
      - {name: count, type: int}
    methods:
      - name: increment
        body:
          - expr: {assign: [this.count, {"+": [this.count, 1]}]}
`), false)

	requireProperty(t, a.Method(0).Properties(), property.ModifiedMethod, property.True)
	requireProperty(t, a.Field(0).Properties(), property.Final, property.False)
	requireProperty(t, a.Type(0).Properties(), property.Immutable, property.Of(property.Mutable))
}

func TestMarkMethodMakesTypeEventuallyImmutable(t *testing.T) {
	t.Parallel()

	for _, parallel := range []bool{false, true} {
		a := run(t, load(t, "eventual.yaml"), parallel)

		// Settings.name is assigned by the constructor and by the mark method freeze.
		name := a.Field(0).Properties()
		requireProperty(t, name, property.Final, property.False)
		requireProperty(t, name, property.Eventual, property.True)

		settings := a.Type(0).Properties()
		requireProperty(t, settings, property.Immutable, property.Of(property.EffectivelyImmutable))
		requireProperty(t, settings, property.Eventual, property.True)

		// A value of Settings may not have been marked yet.
		requireProperty(t, a.Field(1).Properties(), property.Immutable, property.Of(property.Mutable))
		requireProperty(t, a.Type(1).Properties(), property.Eventual, property.False)
	}
}

func TestModifyingMethodWithoutMarkIsNotEventual(t *testing.T) {
	t.Parallel()

	a := run(t, parse(t, `
types:
  - name: Counter
    fields:
      - {name: count, type: int}
    methods:
      - name: freeze
        mark: true
        body:
          - expr: {assign: [this.count, 0]}
      - name: increment
        body:
          - expr: {assign: [this.count, {"+": [this.count, 1]}]}
`), false)

	require.True(t, a.Method(0).Method().Mark)
	requireProperty(t, a.Field(0).Properties(), property.Final, property.False)
	requireProperty(t, a.Field(0).Properties(), property.Eventual, property.False)
	requireProperty(t, a.Type(0).Properties(), property.Immutable, property.Of(property.Mutable))
	requireProperty(t, a.Type(0).Properties(), property.Eventual, property.False)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
