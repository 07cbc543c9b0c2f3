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

package variable_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/variable"
)

func TestIndexOrder(t *testing.T) {
	t.Parallel()

	ordered := []variable.Index{
		variable.NotRead,
		variable.At("0", variable.Evaluation),
		variable.At("1", variable.Initial),
		variable.At("1", variable.Evaluation),
		variable.At("1.0.0", variable.Evaluation),
		variable.At("1.0.1", variable.Merge),
		variable.At("1.1.0", variable.Evaluation),
		variable.At("1", variable.Merge),
		variable.At("2", variable.Evaluation),
	}
	for i := 1; i < len(ordered); i++ {
		require.Truef(t, ordered[i-1].Before(ordered[i]), "%q must come before %q", ordered[i-1], ordered[i])
	}
	require.False(t, variable.NotAssigned.IsSet())
}

func TestVariableIdentity(t *testing.T) {
	t.Parallel()

	f := variable.NewField("set", 3, "")
	require.True(t, f.IsFieldOfThis())
	require.Equal(t, "this.set", f.String())
	require.Equal(t, "other.set", variable.NewField("set", 3, "other").String())
	require.False(t, variable.NewField("set", 3, "other").IsFieldOfThis())
	require.Equal(t, "return get", variable.NewReturn("get", 7).String())

	vars := []variable.Variable{f, variable.NewLocal("x"), variable.NewThis(), variable.NewParameter("p", 0)}
	slices.SortFunc(vars, variable.Variable.Compare)
	require.Equal(t, []string{"x", "p", "this", "this.set"}, []string{
		vars[0].String(), vars[1].String(), vars[2].String(), vars[3].String(),
	})

	m := map[variable.Variable]int{variable.NewLocal("x"): 1}
	require.Equal(t, 1, m[variable.NewLocal("x")])
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
