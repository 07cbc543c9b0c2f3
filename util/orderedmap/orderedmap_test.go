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

package orderedmap_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/util/orderedmap"
)

func TestLoadStore(t *testing.T) {
	t.Parallel()

	pairs := [][2]int{{1, 2}, {2, 3}, {3, 4}}
	m := orderedmap.New[int, int]()
	for _, p := range pairs {
		k, v := p[0], p[1]
		m.Store(k, v)
		loadedV, ok := m.Load(k)
		require.True(t, ok)
		require.Equal(t, v, loadedV)
		require.Equal(t, v, m.Value(k))
	}

	v, ok := m.Load(-1)
	require.False(t, ok)
	require.Empty(t, v)
	require.Empty(t, m.Value(-1))
	require.Equal(t, len(pairs), m.Len())

	// Overwriting keeps the original position.
	m.Store(1, 10)
	require.Equal(t, []int{1, 2, 3}, m.Keys())
}

func TestDeleteKeepsOrder(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	for i, k := range []string{"this", "a", "b", "c"} {
		m.Store(k, i)
	}
	m.Delete("a")
	m.Delete("missing")
	require.Equal(t, []string{"this", "b", "c"}, m.Keys())

	m.Store("a", 5)
	require.Equal(t, []string{"this", "b", "c", "a"}, m.Keys())
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	m.Store("x", 1)
	c := m.Clone()
	c.Store("y", 2)
	c.Store("x", 3)

	require.Equal(t, 1, m.Len())
	require.Equal(t, 1, m.Value("x"))
	require.Equal(t, []string{"x", "y"}, c.Keys())
	require.Equal(t, 3, c.Value("x"))
}

func TestOrderedRange(t *testing.T) {
	t.Parallel()

	// Many keys, to have a better chance of catching map iteration order leaking through.
	m := orderedmap.New[int, int]()
	expectedKeys := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		m.Store(99-i, i)
		expectedKeys = append(expectedKeys, 99-i)
	}

	for i := 0; i < 5; i++ {
		t.Run(fmt.Sprintf("Run%d", i), func(t *testing.T) {
			t.Parallel()

			keys := make([]int, 0, m.Len())
			m.OrderedRange(func(key int, value int) bool {
				keys = append(keys, key)
				return true
			})
			require.Equal(t, expectedKeys, keys)
		})
	}

	var first []int
	m.OrderedRange(func(key int, _ int) bool {
		first = append(first, key)
		return len(first) < 3
	})
	require.Equal(t, []int{99, 98, 97}, first)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
