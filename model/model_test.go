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

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const _parity = `
types:
  - name: Parity
    methods:
      - name: isEven
        returns: boolean
        params: [{name: n, type: int}]
        body:
          - if:
              cond: {"==": [n, 0]}
              then: [{return: true}]
          - return: {call: {method: isOdd, args: [{"-": [n, 1]}]}}
      - name: isOdd
        returns: boolean
        params: [{name: n, type: int}]
        body:
          - return: {"!": {call: {method: isEven, args: [n]}}}
      - name: zero
        returns: int
        body:
          - return: 0
`

func TestParse(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(_parity))
	require.NoError(t, err)
	require.Equal(t, 4, p.Size())

	even, ok := p.MethodByName(0, "isEven")
	require.True(t, ok)
	require.Equal(t, "Parity.isEven", p.Describe(even))
	require.Equal(t, Primitive("boolean"), even.Return)
	require.Len(t, even.Body.Statements, 2)

	var indices []string
	WalkStatements(even.Body, func(s Statement) { indices = append(indices, s.Index()) })
	require.Equal(t, []string{"0", "0.0.0", "1"}, indices)

	ret, ok := even.Body.Statements[1].(*Return)
	require.True(t, ok)
	call, ok := ret.Value.(*Call)
	require.True(t, ok)
	require.False(t, call.IsExternal())
	require.Equal(t, "isOdd(n - 1)", call.String())
}

func TestParseBodies(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(`
types:
  - name: A
    methods:
      - name: A
        constructor: true
      - name: abstract
        returns: int
      - name: m
        body:
          - return
`))
	require.NoError(t, err)

	ctors := p.Constructors(0)
	require.Len(t, ctors, 1)
	ctor := ctors[0]
	require.NotNil(t, ctor.Body)
	require.Empty(t, ctor.Body.Statements)

	abstract, ok := p.MethodByName(0, "abstract")
	require.True(t, ok)
	require.True(t, abstract.IsAbstract())

	m, ok := p.MethodByName(0, "m")
	require.True(t, ok)
	require.Len(t, m.Body.Statements, 1)
	require.IsType(t, &Return{}, m.Body.Statements[0])
}

func TestParseMark(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(`
types:
  - name: Settings
    methods:
      - name: freeze
        mark: true
        body: [return]
      - name: of
        static: true
        mark: true
        body: [return]
`))
	require.NoError(t, err)

	freeze, ok := p.MethodByName(0, "freeze")
	require.True(t, ok)
	require.True(t, freeze.Mark)
	of, ok := p.MethodByName(0, "of")
	require.True(t, ok)
	require.False(t, of.Mark, "static methods have no object to mark")
}

func TestCallCycles(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(_parity))
	require.NoError(t, err)

	calls := p.Calls()
	require.Equal(t, []int{1}, calls.Callees(0))
	require.True(t, calls.InCycle(0))
	require.True(t, calls.SameCycle(0, 1))
	require.False(t, calls.InCycle(2))
	require.False(t, calls.SameCycle(0, 2))
}

func TestConstructorsAndFields(t *testing.T) {
	t.Parallel()

	p, err := Parse([]byte(`
types:
  - name: Named
    interface: true
  - name: Person
    implements: [Named]
    fields:
      - {name: name, type: String, final: true}
      - {name: age, type: int}
    methods:
      - name: Person
        constructor: true
        params: [{name: name, type: String}]
        body:
          - expr: {assign: [this.name, name]}
      - name: birthday
        body:
          - expr: {assign: [this.age, {"+": [this.age, 1]}]}
      - name: tags
        returns: List
        body:
          - return: {new: {type: ArrayList}}
`))
	require.NoError(t, err)

	ctors := p.Constructors(1)
	require.Len(t, ctors, 1)
	require.Equal(t, "<init>", ctors[0].Name)
	require.True(t, ctors[0].Return.IsVoid())
	require.Equal(t, []int{0}, p.AssignedFields(ctors[0]))

	birthday, ok := p.MethodByName(1, "birthday")
	require.True(t, ok)
	require.Equal(t, []int{1}, p.AssignedFields(birthday))
	require.Equal(t, "Person.age", p.DescribeField(p.Field(1)))

	require.Equal(t, []int{1}, p.Implementations(0))
	require.Empty(t, p.Implementations(1))

	tags, ok := p.MethodByName(1, "tags")
	require.True(t, ok)
	require.Equal(t, External("List"), tags.Return)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		err  string
	}{
		{
			name: "duplicate type",
			src:  "types: [{name: A}, {name: A}]",
			err:  `duplicate type "A"`,
		},
		{
			name: "unknown interface",
			src:  "types: [{name: A, implements: [B]}]",
			err:  `implements "B"`,
		},
		{
			name: "unknown variable",
			src: `
types:
  - name: A
    methods:
      - name: m
        body:
          - return: x
`,
			err: `unknown variable "x"`,
		},
		{
			name: "interface body",
			src: `
types:
  - name: I
    interface: true
    methods:
      - name: m
        body: [return]
`,
			err: "interface methods cannot have a body",
		},
		{
			name: "argument count",
			src: `
types:
  - name: A
    methods:
      - name: m
        params: [{name: p, type: int}]
      - name: n
        body:
          - expr: {call: {method: m}}
`,
			err: "takes 1 arguments, got 0",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.src))
			require.ErrorContains(t, err, tt.err)
		})
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
