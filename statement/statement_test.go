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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/variable"
)

// fakeContext answers every lookup with the lowest value of the kind, or with a delay on the
// looked-up unit when delayed is set.
type fakeContext struct {
	program  *model.Program
	registry *delay.Registry
	unit     delay.UnitKey
	delayed  bool
}

func (c *fakeContext) Program() *model.Program   { return c.program }
func (c *fakeContext) Registry() *delay.Registry { return c.registry }
func (c *fakeContext) Unit() delay.UnitKey       { return c.unit }

func (c *fakeContext) lookup(unit delay.UnitKey, kind property.Kind) property.DV {
	if c.delayed {
		return property.Delayed(c.registry.Of(delay.Location{Unit: unit, Property: kind.String()}, delay.PropertyOf))
	}
	return kind.Lowest()
}

func (c *fakeContext) MethodProperty(method int, kind property.Kind) property.DV {
	return c.lookup(delay.UnitKey{Kind: delay.UnitMethod, Index: method}, kind)
}

func (c *fakeContext) ParameterProperty(method, _ int, kind property.Kind) property.DV {
	return c.lookup(delay.UnitKey{Kind: delay.UnitMethod, Index: method}, kind)
}

func (c *fakeContext) FieldProperty(field int, kind property.Kind) property.DV {
	return c.lookup(delay.UnitKey{Kind: delay.UnitField, Index: field}, kind)
}

func (c *fakeContext) TypeProperty(typ int, kind property.Kind) property.DV {
	return c.lookup(delay.UnitKey{Kind: delay.UnitType, Index: typ}, kind)
}

// analyse parses a program with a single type and analyses one of its methods once; "<init>"
// names its first constructor.
func analyse(t *testing.T, src, method string, delayed bool) *Result {
	t.Helper()

	p, err := model.Parse([]byte(src))
	require.NoError(t, err)
	m, ok := p.MethodByName(0, method)
	if !ok && method == "<init>" {
		ctors := p.Constructors(0)
		require.NotEmpty(t, ctors)
		m, ok = ctors[0], true
	}
	require.True(t, ok, "method %s", method)
	ctx := &fakeContext{
		program:  p,
		registry: delay.NewRegistry(),
		unit:     delay.UnitKey{Kind: delay.UnitMethod, Index: m.Index},
		delayed:  delayed,
	}
	return NewAnalyser(p, m).Analyse(ctx)
}

func kinds(msgs []diagnostic.Message) []diagnostic.Kind {
	var ks []diagnostic.Kind
	for _, m := range msgs {
		ks = append(ks, m.Kind)
	}
	return ks
}

func TestSumIsDoneAtOnce(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Calc
    methods:
      - name: sum
        returns: int
        params: [{name: a, type: int}, {name: b, type: int}]
        body:
          - return: {"+": [a, b]}
`, "sum", false)

	require.True(t, res.Status.IsDone())
	require.Empty(t, res.Messages)
	require.Len(t, res.Returns, 1)
	require.IsType(t, Arithmetic{}, res.Returns[0].Value.MustGet())
	require.True(t, res.Returns[0].NotNull.Equal(property.Of(property.EffectivelyNotNull)))
	require.Len(t, res.Exits, 1)
	require.Equal(t, "0", res.Exits[0].Index)
}

func TestUnreachableStatement(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Dead
    methods:
      - name: m
        body:
          - return
          - local: {name: x, type: int, init: 1}
`, "m", false)

	require.True(t, res.Status.IsDone())
	require.Equal(t, []diagnostic.Kind{diagnostic.UnreachableStatement}, kinds(res.Messages))
	require.Equal(t, "1", res.Messages[0].Location.Statement)

	sa, ok := res.Statement("1")
	require.True(t, ok)
	require.True(t, sa.Flow.IsUnreachable())
	require.Equal(t, Never, sa.Flow.Reached.MustGet())
	require.Zero(t, sa.Variables.Len())
}

func TestGuardedDereference(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Text
    methods:
      - name: length
        returns: int
        params: [{name: s, type: String}]
        body:
          - if:
              cond: {"!=": [s, null]}
              then:
                - return: {call: {method: String.length, on: s, returns: int}}
          - return: 0
`, "length", false)

	require.True(t, res.Status.IsDone())
	require.Empty(t, res.Messages)
	require.Len(t, res.Returns, 2)

	sa, ok := res.Statement("0")
	require.True(t, ok)
	require.Equal(t, Conditionally, sa.Flow.Interrupt.MustGet())
	after, ok := res.Statement("1")
	require.True(t, ok)
	require.Equal(t, Conditionally, after.Flow.Reached.MustGet())
}

func TestNullDereference(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Text
    methods:
      - name: length
        returns: int
        body:
          - local: {name: x, type: String, init: null}
          - return: {call: {method: String.length, on: x, returns: int}}
`, "length", false)

	require.Equal(t, []diagnostic.Kind{diagnostic.PotentialNullPointer}, kinds(res.Messages))
	require.Equal(t, "1", res.Messages[0].Location.Statement)
}

func TestConstantCondition(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Constant
    methods:
      - name: one
        returns: int
        body:
          - if:
              cond: {"==": [1, 1]}
              then:
                - return: 1
          - return: 2
`, "one", false)

	require.Equal(t, []diagnostic.Kind{diagnostic.ConstantCondition, diagnostic.UnreachableStatement}, kinds(res.Messages))
	sa, ok := res.Statement("0")
	require.True(t, ok)
	require.Equal(t, Always, sa.Flow.Interrupt.MustGet())
	require.Len(t, res.Returns, 1)
}

func TestUnusedAndUselessLocals(t *testing.T) {
	t.Parallel()

	src := `
types:
  - name: Locals
    methods:
      - name: unused
        returns: int
        body:
          - local: {name: x, type: int, init: 1}
          - return: 0
      - name: useless
        returns: int
        body:
          - local: {name: x, type: int, init: 1}
          - expr: {assign: [x, 2]}
          - return: x
`
	res := analyse(t, src, "unused", false)
	require.Equal(t, []diagnostic.Kind{diagnostic.UnusedLocalVariable}, kinds(res.Messages))
	require.Equal(t, "0", res.Messages[0].Location.Statement)
	require.Equal(t, "x", res.Messages[0].Subject)

	res = analyse(t, src, "useless", false)
	require.Equal(t, []diagnostic.Kind{diagnostic.UselessAssignment}, kinds(res.Messages))
	require.Equal(t, "1", res.Messages[0].Location.Statement)
}

func TestMergeOfBranches(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Pick
    methods:
      - name: pick
        returns: String
        params: [{name: b, type: boolean}]
        body:
          - local: {name: s, type: String}
          - if:
              cond: b
              then:
                - expr: {assign: [s, {string: x}]}
              else:
                - expr: {assign: [s, {string: y}]}
          - return: s
`, "pick", false)

	require.True(t, res.Status.IsDone())
	require.Empty(t, res.Messages)

	sa, ok := res.Statement("1")
	require.True(t, ok)
	s, ok := sa.Variable(variable.NewLocal("s"))
	require.True(t, ok)
	require.IsType(t, Conditional{}, s.Value.MustGet())
	require.Equal(t, variable.At("1", variable.Merge), s.AssignmentID)

	require.Len(t, res.Returns, 1)
	require.True(t, res.Returns[0].NotNull.Equal(property.Of(property.EffectivelyNotNull)))
}

func TestModificationThroughLink(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Adder
    methods:
      - name: add
        params: [{name: list, type: List}]
        body:
          - local: {name: alias, type: List, init: list}
          - expr: {call: {method: List.add, on: alias, args: [1]}}
`, "add", false)

	require.True(t, res.Status.IsDone())
	modified, ok := res.Modified.Load(variable.NewParameter("list", 0))
	require.True(t, ok)
	require.True(t, modified.IsTrue())
	_, ok = res.Modified.Load(variable.NewThis())
	require.False(t, ok)
}

func TestDelayedCallDelaysStatement(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Caller
    methods:
      - name: m
        body:
          - expr: {call: {method: n}}
      - name: n
        body:
          - return
`, "m", true)

	require.True(t, res.Status.IsDelayed())
	require.True(t, res.Precondition.IsDelayed())
	modified, ok := res.Modified.Load(variable.NewThis())
	require.True(t, ok)
	require.True(t, modified.IsDelayed())
}

func TestEscapingBranchGuardsVariable(t *testing.T) {
	t.Parallel()

	res := analyse(t, `
types:
  - name: Printer
    methods:
      - name: print
        params: [{name: x, type: String}]
        body:
          - if:
              cond: {"==": [x, null]}
              then: [return]
          - expr: {call: {method: String.length, on: x, returns: int}}
`, "print", false)

	require.True(t, res.Status.IsDone())
	require.Empty(t, res.Messages)
	for _, index := range []string{"0", "1"} {
		sa, ok := res.Statement(index)
		require.True(t, ok)
		x, ok := sa.Variable(variable.NewParameter("x", 0))
		require.True(t, ok)
		require.True(t, x.Property(property.ContextNotNull).Equal(property.Of(property.EffectivelyNotNull)), index)
	}
}

func TestConstructorFieldLiteral(t *testing.T) {
	t.Parallel()

	src := `
types:
  - name: Holder
    fields:
      - {name: s, type: String}
    methods:
      - name: Holder
        constructor: true
        body:
          - expr: {assign: [this.s, {string: abc}]}
`
	for _, delayed := range []bool{false, true} {
		res := analyse(t, src, "<init>", delayed)
		require.Len(t, res.Exits, 1)
		require.Len(t, res.Exits[0].Fields, 1)
		fv := res.Exits[0].Fields[0]
		require.IsType(t, StringConstant{}, fv.Value.MustGet())
		require.True(t, fv.Immutable.IsDone(), "delayed=%v", delayed)
		require.True(t, fv.Immutable.Equal(property.Immutable.Highest()))
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
