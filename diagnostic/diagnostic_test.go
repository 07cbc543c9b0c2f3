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

package diagnostic

import (
	"bytes"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func at(method, statement string) Location {
	return Location{Type: "Parity", Method: method, Statement: statement}
}

func TestBufferIsTentative(t *testing.T) {
	t.Parallel()

	var b Buffer
	b.Add(Message{Kind: UnusedLocalVariable, Location: at("isEven", "1"), Subject: "x"})
	b.Add(Message{Kind: UnusedLocalVariable, Location: at("isEven", "1"), Subject: "x"})
	b.Add(Message{Kind: ConstantCondition, Location: at("isEven", "0"), Subject: "true"})
	require.Equal(t, 3, b.Len())
	require.Len(t, b.Messages(), 2)
	require.Equal(t, ConstantCondition, b.Messages()[0].Kind)

	b.Reset()
	require.Empty(t, b.Messages())
}

func TestEngineOrderIsStable(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		{Kind: DivisionByZero, Location: at("isOdd", "2"), Subject: "n / 0"},
		{Kind: UnusedLocalVariable, Location: at("isEven", "1"), Subject: "x"},
		{Kind: UnreachableStatement, Location: at("isEven", "3")},
	}

	var wg sync.WaitGroup
	e := NewEngine(nil)
	for _, m := range msgs {
		m := m
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Commit([]Message{m})
		}()
	}
	wg.Wait()

	other := NewEngine(nil)
	for i := len(msgs) - 1; i >= 0; i-- {
		other.Commit(msgs[i : i+1])
	}

	if diff := cmp.Diff(e.Messages(), other.Messages()); diff != "" {
		t.Errorf("messages depend on commit order (-first +second):\n%s", diff)
	}
	require.Equal(t, "isEven", e.Messages()[0].Location.Method)
}

func TestNoLint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		directives []string
		kind       Kind
		want       bool
	}{
		{[]string{"all"}, DivisionByZero, true},
		{[]string{"nolint"}, UnusedLocalVariable, true},
		{[]string{"nolint:unused_local_variable // kept for debugging"}, UnusedLocalVariable, true},
		{[]string{"nolint:unused_local_variable"}, DivisionByZero, false},
		{[]string{"self_assignment, Division_By_Zero"}, DivisionByZero, true},
		{nil, DivisionByZero, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, noLintContains(tt.directives, tt.kind), "%v/%s", tt.directives, tt.kind)
	}

	e := NewEngine(map[string][]string{"Parity.isEven": {"unused_local_variable"}})
	e.Commit([]Message{
		{Kind: UnusedLocalVariable, Location: at("isEven", "1"), Subject: "x"},
		{Kind: UnusedLocalVariable, Location: at("isOdd", "1"), Subject: "y"},
	})
	require.Len(t, e.Messages(), 1)
	require.Equal(t, "y", e.Messages()[0].Subject)
}

func TestGroupAndPrint(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		{Kind: PotentialNullPointer, Location: at("isEven", "1"), Subject: "s"},
		{Kind: PotentialNullPointer, Location: at("isEven", "4"), Subject: "s"},
		{Kind: PotentialNullPointer, Location: at("isOdd", "1"), Subject: "s"},
	}
	groups := GroupMessages(msgs)
	require.Len(t, groups, 2)
	require.Equal(t, []Location{at("isEven", "4")}, groups[0].Similar)

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, msgs, false, true))
	require.Equal(t,
		"Parity.isEven @1: warning: potential null pointer exception: s may be null\n"+
			"\t(same finding at Parity.isEven @4)\n"+
			"Parity.isOdd @1: warning: potential null pointer exception: s may be null\n",
		buf.String())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
