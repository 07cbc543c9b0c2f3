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

package annotation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
)

func TestTypeAnnotations(t *testing.T) {
	t.Parallel()

	typ := &model.Type{Name: "Point"}
	tests := []struct {
		name  string
		props property.Map
		want  []Annotation
	}{
		{
			name: "immutable container",
			props: property.NewMap(property.Immutable, property.Of(property.EffectivelyImmutable),
				property.Container, property.True, property.Independent, property.Of(property.FullyIndependent)),
			want: []Annotation{"@ImmutableContainer"},
		},
		{
			name:  "immutable with hidden content",
			props: property.NewMap(property.Immutable, property.Of(property.ImmutableHC), property.Container, property.False),
			want:  []Annotation{"@Immutable(hc=true)"},
		},
		{
			name: "final fields container",
			props: property.NewMap(property.Immutable, property.Of(property.FinalFields),
				property.Container, property.True, property.Independent, property.Of(property.IndependentHC)),
			want: []Annotation{"@FinalFields", "@Container", "@Independent(hc=true)"},
		},
		{
			name: "immutable container after marking",
			props: property.NewMap(property.Immutable, property.Of(property.EffectivelyImmutable),
				property.Container, property.True, property.Eventual, property.True),
			want: []Annotation{"@ImmutableContainer(after=mark)"},
		},
		{
			name: "final fields after marking",
			props: property.NewMap(property.Immutable, property.Of(property.FinalFields),
				property.Container, property.True, property.Eventual, property.True),
			want: []Annotation{"@FinalFields(after=mark)", "@Container"},
		},
		{
			name: "hidden content after marking",
			props: property.NewMap(property.Immutable, property.Of(property.ImmutableHC),
				property.Container, property.False, property.Eventual, property.True),
			want: []Annotation{"@Immutable(hc=true, after=mark)"},
		},
		{
			name:  "mutable and dependent",
			props: property.NewMap(property.Immutable, property.Of(property.Mutable), property.Container, property.False, property.Independent, property.Of(property.Dependent)),
			want:  nil,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := For(TypeKey{Type: typ}, tt.props)
			if diff := cmp.Diff(tt.want, got.Annotations); diff != "" {
				t.Errorf("annotations mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMethodAnnotations(t *testing.T) {
	t.Parallel()

	owner := &model.Type{Name: "Builder", Index: 0}
	m := &model.Method{Name: "add", Return: model.ProgramType(owner)}
	props := property.NewMap(
		property.ModifiedMethod, property.True,
		property.Fluent, property.True,
		property.Identity, property.False,
		property.NotNullExpression, property.Of(property.EffectivelyNotNull),
		property.Immutable, property.Of(property.Mutable),
		property.Independent, property.Of(property.Dependent),
	)
	e := For(MethodKey{Owner: "Builder", Method: m}, props)
	require.Equal(t, []Annotation{"@Modified", "@Fluent", "@NotNull", "@Dependent"}, e.Annotations)
	require.Equal(t, "Method Builder.add: @Modified @Fluent @NotNull @Dependent", e.String())

	sum := &model.Method{Name: "sum", Return: model.Primitive("int")}
	e = For(MethodKey{Owner: "Calc", Method: sum}, property.NewMap(property.ModifiedMethod, property.False))
	require.Equal(t, []Annotation{"@NotModified"}, e.Annotations)
}

func TestParameterAndFieldAnnotations(t *testing.T) {
	t.Parallel()

	m := &model.Method{Name: "addAll"}
	p := &model.Parameter{Name: "list", Type: model.External("List")}
	e := For(ParameterKey{Owner: "Bag", Method: m, Parameter: p}, property.NewMap(
		property.NotNullParameter, property.Of(property.EffectivelyNotNull),
		property.ModifiedVariable, property.False,
		property.Independent, property.Of(property.IndependentHC),
	))
	require.Equal(t, "Param Bag.addAll#list: @NotNull @NotModified @Independent(hc=true)", e.String())

	f := &model.Field{Name: "items", Type: model.External("List")}
	e = For(FieldKey{Owner: "Bag", Field: f}, property.NewMap(
		property.Final, property.True,
		property.ExternalNotNull, property.Of(property.Nullable),
		property.ModifiedOutsideMethod, property.True,
		property.Immutable, property.Of(property.Mutable),
	))
	require.Equal(t, []Annotation{"@Final", "@Nullable", "@Modified"}, e.Annotations)

	count := &model.Field{Name: "count", Type: model.Primitive("int")}
	e = For(FieldKey{Owner: "Bag", Field: count}, property.NewMap(property.Final, property.False))
	require.Equal(t, []Annotation{"@Variable"}, e.Annotations)

	e = For(FieldKey{Owner: "Bag", Field: count}, property.NewMap(property.Final, property.False, property.Eventual, property.True))
	require.Equal(t, []Annotation{"@Final(after=mark)"}, e.Annotations)
}

func TestMarkMethodAnnotations(t *testing.T) {
	t.Parallel()

	freeze := &model.Method{Name: "freeze", Mark: true, Return: model.Void()}
	e := For(MethodKey{Owner: "Settings", Method: freeze}, property.NewMap(property.ModifiedMethod, property.True))
	require.Equal(t, "Method Settings.freeze: @Modified @Mark", e.String())
}

func TestDelayedPropertiesRenderNothing(t *testing.T) {
	t.Parallel()

	r := delay.NewRegistry()
	delayed := property.Delayed(r.Of(delay.Location{Unit: delay.UnitKey{Kind: delay.UnitMethod}, Property: "immutable"}, delay.PropertyOf))
	e := For(TypeKey{Type: &model.Type{Name: "T", Interface: true}}, property.NewMap(property.Immutable, delayed))
	require.Empty(t, e.Annotations)
	require.Equal(t, "Interface T: ", e.String())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
