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

// Package annotation renders the final properties of types, fields, methods and parameters as
// the annotations a developer would write on them, e.g. "@NotModified" or "@ImmutableContainer".
// Properties that are still delayed render nothing.
package annotation

import (
	"fmt"
	"strings"

	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
)

// Annotation is a single rendered annotation, e.g. "@NotNull" or "@Independent(hc=true)".
type Annotation string

// A Key identifies the program element a set of annotations belongs to.
type Key interface {
	// String returns a compact description of the element, e.g. "Method Counter.increment".
	String() string

	// render turns the properties of the element into annotations.
	render(props property.Map) []Annotation
}

// TypeKey is the key of a type.
type TypeKey struct {
	Type *model.Type
}

func (k TypeKey) String() string {
	if k.Type.Interface {
		return fmt.Sprintf("Interface %s", k.Type.Name)
	}
	return fmt.Sprintf("Type %s", k.Type.Name)
}

// FieldKey is the key of a field; Owner is the name of its type.
type FieldKey struct {
	Owner string
	Field *model.Field
}

func (k FieldKey) String() string {
	return fmt.Sprintf("Field %s.%s", k.Owner, k.Field.Name)
}

// MethodKey is the key of a method; Owner is the name of its type.
type MethodKey struct {
	Owner  string
	Method *model.Method
}

func (k MethodKey) String() string {
	return fmt.Sprintf("Method %s.%s", k.Owner, k.Method.Name)
}

// ParameterKey is the key of a parameter of a method.
type ParameterKey struct {
	Owner     string
	Method    *model.Method
	Parameter *model.Parameter
}

func (k ParameterKey) String() string {
	return fmt.Sprintf("Param %s.%s#%s", k.Owner, k.Method.Name, k.Parameter.Name)
}

// Entry is the rendered annotations of one element.
type Entry struct {
	Key         Key
	Annotations []Annotation
}

func (e Entry) String() string {
	strs := make([]string, len(e.Annotations))
	for i, a := range e.Annotations {
		strs[i] = string(a)
	}
	return e.Key.String() + ": " + strings.Join(strs, " ")
}

// For renders the properties of the element identified by key.
func For(key Key, props property.Map) Entry {
	return Entry{Key: key, Annotations: key.render(props)}
}

// done returns the value of a done property.
func done(props property.Map, k property.Kind) (int, bool) {
	dv, ok := props.Get(k)
	if !ok || dv.IsDelayed() {
		return 0, false
	}
	return dv.Value(), true
}

func modification(props property.Map, k property.Kind) []Annotation {
	v, ok := done(props, k)
	switch {
	case !ok:
		return nil
	case v == property.True.Value():
		return []Annotation{"@Modified"}
	default:
		return []Annotation{"@NotModified"}
	}
}

func notNull(props property.Map, k property.Kind) []Annotation {
	v, ok := done(props, k)
	switch {
	case !ok:
		return nil
	case v >= property.EffectivelyContentNotNull:
		return []Annotation{"@NotNull(content=true)"}
	case v >= property.EffectivelyNotNull:
		return []Annotation{"@NotNull"}
	default:
		return []Annotation{"@Nullable"}
	}
}

func independence(props property.Map) []Annotation {
	v, ok := done(props, property.Independent)
	switch {
	case !ok:
		return nil
	case v == property.FullyIndependent:
		return []Annotation{"@Independent"}
	case v == property.IndependentHC:
		return []Annotation{"@Independent(hc=true)"}
	default:
		return []Annotation{"@Dependent"}
	}
}

// immutability renders the immutability of a value or a field; container is only known for types.
func immutability(v int, container bool) []Annotation {
	switch v {
	case property.EffectivelyImmutable:
		if container {
			return []Annotation{"@ImmutableContainer"}
		}
		return []Annotation{"@Immutable"}
	case property.ImmutableHC:
		if container {
			return []Annotation{"@ImmutableContainer(hc=true)"}
		}
		return []Annotation{"@Immutable(hc=true)"}
	case property.FinalFields:
		if container {
			return []Annotation{"@FinalFields", "@Container"}
		}
		return []Annotation{"@FinalFields"}
	default:
		if container {
			return []Annotation{"@Container"}
		}
		return nil
	}
}

// afterMark qualifies the immutability annotations of a type that only holds once marked.
func afterMark(annotations []Annotation) []Annotation {
	out := make([]Annotation, len(annotations))
	for i, a := range annotations {
		s := string(a)
		switch {
		case a == "@Container":
		case strings.HasSuffix(s, ")"):
			s = strings.TrimSuffix(s, ")") + ", after=mark)"
		default:
			s += "(after=mark)"
		}
		out[i] = Annotation(s)
	}
	return out
}

func flag(props property.Map, k property.Kind, a Annotation) []Annotation {
	if v, ok := done(props, k); ok && v == property.True.Value() {
		return []Annotation{a}
	}
	return nil
}

func (k TypeKey) render(props property.Map) []Annotation {
	imm, ok := done(props, property.Immutable)
	if !ok {
		return nil
	}
	container, _ := done(props, property.Container)
	annotations := immutability(imm, container == property.True.Value())
	if v, ok := done(props, property.Eventual); ok && v == property.True.Value() {
		annotations = afterMark(annotations)
	}
	// Immutable types are independent by definition.
	if imm < property.ImmutableHC {
		if v, ok := done(props, property.Independent); ok && v > property.Dependent {
			annotations = append(annotations, independence(props)...)
		}
	}
	return annotations
}

func (k FieldKey) render(props property.Map) []Annotation {
	var annotations []Annotation
	if v, ok := done(props, property.Final); ok {
		eventual, _ := done(props, property.Eventual)
		switch {
		case v == property.True.Value():
			annotations = append(annotations, "@Final")
		case eventual == property.True.Value():
			annotations = append(annotations, "@Final(after=mark)")
		default:
			annotations = append(annotations, "@Variable")
		}
	}
	if k.Field.Type.IsPrimitive() {
		return annotations
	}
	annotations = append(annotations, notNull(props, property.ExternalNotNull)...)
	annotations = append(annotations, modification(props, property.ModifiedOutsideMethod)...)
	if v, ok := done(props, property.Immutable); ok {
		annotations = append(annotations, immutability(v, false)...)
	}
	return annotations
}

func (k MethodKey) render(props property.Map) []Annotation {
	var annotations []Annotation
	if !k.Method.Constructor {
		annotations = append(annotations, modification(props, property.ModifiedMethod)...)
	}
	if k.Method.Mark {
		annotations = append(annotations, "@Mark")
	}
	annotations = append(annotations, flag(props, property.Fluent, "@Fluent")...)
	annotations = append(annotations, flag(props, property.Identity, "@Identity")...)
	ret := k.Method.Return
	if k.Method.Constructor || ret.IsVoid() || ret.IsPrimitive() {
		return annotations
	}
	annotations = append(annotations, notNull(props, property.NotNullExpression)...)
	imm, ok := done(props, property.Immutable)
	if ok {
		annotations = append(annotations, immutability(imm, false)...)
	}
	if !ok || imm < property.ImmutableHC {
		annotations = append(annotations, independence(props)...)
	}
	return annotations
}

func (k ParameterKey) render(props property.Map) []Annotation {
	if k.Parameter.Type.IsPrimitive() {
		return nil
	}
	var annotations []Annotation
	annotations = append(annotations, notNull(props, property.NotNullParameter)...)
	annotations = append(annotations, modification(props, property.ModifiedVariable)...)
	annotations = append(annotations, independence(props)...)
	return annotations
}
