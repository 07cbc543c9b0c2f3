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

package hook

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/property"
)

func TestSplitQualified(t *testing.T) {
	t.Parallel()

	tests := []struct {
		qualified, typeName, member string
	}{
		{"List.add", "List", "add"},
		{"java.util.List.add", "List", "add"},
		{"java.util.List", "List", ""},
		{"String", "String", ""},
	}
	for _, tt := range tests {
		typeName, member := splitQualified(tt.qualified)
		require.Equal(t, tt.typeName, typeName, tt.qualified)
		require.Equal(t, tt.member, member, tt.qualified)
	}
}

func TestType(t *testing.T) {
	t.Parallel()

	require.Equal(t, property.EffectivelyImmutable, Type("String").Immutable)
	require.Equal(t, property.EffectivelyImmutable, Type("java.lang.Integer").Immutable)
	require.Equal(t, property.Mutable, Type("ArrayList").Immutable)
	require.Equal(t, property.FinalFields, Type("IllegalArgumentException").Immutable)
	require.Equal(t, _unknownType, Type("com.example.Widget"))
}

func TestMethod(t *testing.T) {
	t.Parallel()

	require.True(t, Method("List.add").Modifying)
	require.True(t, Method("java.util.Map.put").Modifying)
	require.False(t, Method("List.size").Modifying)
	require.True(t, Method("String.toString").NotNullResult)
	require.False(t, Method("Map.get").NotNullResult)

	builder := Method("StringBuilder.append")
	require.True(t, builder.Fluent)
	require.True(t, builder.Modifying)

	of := Method("List.of")
	require.False(t, of.Modifying)
	require.Equal(t, property.ImmutableHC, of.ResultImmutable)

	require.Equal(t, _unknownMethod, Method("Widget.frobnicate"))
}

func TestTerminatingCall(t *testing.T) {
	t.Parallel()

	require.True(t, TerminatingCall("System.exit"))
	require.True(t, TerminatingCall("java.lang.System.exit"))
	require.False(t, TerminatingCall("System.currentTimeMillis"))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
