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

// Package model holds the program the analyser works on: an arena of types, fields, methods and
// parameters, with method bodies made of statements and expressions. Elements refer to each other
// by arena index, never by pointer, so the model may contain any reference cycle. The model is
// built once (see Load) and never mutated by the analysis.
package model

import (
	"fmt"
	"slices"
)

// RefKind distinguishes the kinds of type references.
type RefKind uint8

const (
	// RefVoid is the return type of methods without a value.
	RefVoid RefKind = iota
	// RefPrimitive is a primitive type (int, boolean, ...).
	RefPrimitive
	// RefProgram is a type defined in the program.
	RefProgram
	// RefExternal is a type known only by name (e.g., String, List).
	RefExternal
)

// TypeRef is a reference to a type.
type TypeRef struct {
	Kind RefKind
	Name string
	// Type is the arena index of a program type, meaningless for other kinds.
	Type int
}

// Void returns the void type.
func Void() TypeRef { return TypeRef{Kind: RefVoid, Name: "void"} }

// Primitive returns a primitive type.
func Primitive(name string) TypeRef { return TypeRef{Kind: RefPrimitive, Name: name} }

// External returns a type that is not part of the program.
func External(name string) TypeRef { return TypeRef{Kind: RefExternal, Name: name} }

// ProgramType returns a reference to a program type.
func ProgramType(t *Type) TypeRef { return TypeRef{Kind: RefProgram, Name: t.Name, Type: t.Index} }

// IsPrimitive reports whether the type is primitive.
func (t TypeRef) IsPrimitive() bool { return t.Kind == RefPrimitive }

// IsVoid reports whether the type is void.
func (t TypeRef) IsVoid() bool { return t.Kind == RefVoid }

func (t TypeRef) String() string { return t.Name }

var _primitives = []string{"boolean", "byte", "char", "double", "float", "int", "long", "short"}

// IsPrimitiveName reports whether name is the name of a primitive type.
func IsPrimitiveName(name string) bool { return slices.Contains(_primitives, name) }

// Program is the arena holding every element of the analysed program.
type Program struct {
	Types   []*Type
	Fields  []*Field
	Methods []*Method

	calls *CallGraph
}

// Type is a class or interface of the program.
type Type struct {
	Index     int
	Name      string
	Interface bool
	// Implements lists the program interfaces this type implements.
	Implements []int
	Fields     []int
	Methods    []int
}

// Field is a field of a program type.
type Field struct {
	Index int
	Owner int
	Name  string
	Type  TypeRef
	// Final is true when the field is declared final.
	Final bool
	// Initializer is the expression the field is initialized with, or nil.
	Initializer Expression
}

// Method is a method or constructor of a program type.
type Method struct {
	Index       int
	Owner       int
	Name        string
	Constructor bool
	Private     bool
	Static      bool
	// Mark methods freeze their object: fields they assign are final once one of them has run.
	Mark       bool
	Parameters []*Parameter
	Return     TypeRef
	// Body is nil for abstract (and interface) methods.
	Body *Block
	// NoLint lists the message kinds (or "all") suppressed in this method.
	NoLint []string
}

// Parameter is a parameter of a method.
type Parameter struct {
	Index int
	Name  string
	Type  TypeRef
}

// IsAbstract reports whether the method has no body.
func (m *Method) IsAbstract() bool { return m.Body == nil }

// Type returns the type at an arena index.
func (p *Program) Type(i int) *Type { return p.Types[i] }

// Field returns the field at an arena index.
func (p *Program) Field(i int) *Field { return p.Fields[i] }

// Method returns the method at an arena index.
func (p *Program) Method(i int) *Method { return p.Methods[i] }

// Size is the structural size of the program: the number of analysis units it gives rise to.
func (p *Program) Size() int { return len(p.Types) + len(p.Fields) + len(p.Methods) }

// FieldByName looks up a field of a type.
func (p *Program) FieldByName(typ int, name string) (*Field, bool) {
	for _, f := range p.Types[typ].Fields {
		if p.Fields[f].Name == name {
			return p.Fields[f], true
		}
	}
	return nil, false
}

// MethodByName looks up the first method of a type with the given name.
func (p *Program) MethodByName(typ int, name string) (*Method, bool) {
	for _, m := range p.Types[typ].Methods {
		if p.Methods[m].Name == name && !p.Methods[m].Constructor {
			return p.Methods[m], true
		}
	}
	return nil, false
}

// TypeByName looks up a type.
func (p *Program) TypeByName(name string) (*Type, bool) {
	for _, t := range p.Types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Constructors returns the constructors of a type, in declaration order.
func (p *Program) Constructors(typ int) []*Method {
	var ctors []*Method
	for _, m := range p.Types[typ].Methods {
		if p.Methods[m].Constructor {
			ctors = append(ctors, p.Methods[m])
		}
	}
	return ctors
}

// Implementations returns the non-interface types implementing an interface.
func (p *Program) Implementations(iface int) []int {
	var impls []int
	for _, t := range p.Types {
		if !t.Interface && slices.Contains(t.Implements, iface) {
			impls = append(impls, t.Index)
		}
	}
	return impls
}

// Describe returns a human-readable name for a type, field or method.
func (p *Program) Describe(m *Method) string {
	return fmt.Sprintf("%s.%s", p.Types[m.Owner].Name, m.Name)
}

// DescribeField returns "Type.field".
func (p *Program) DescribeField(f *Field) string {
	return fmt.Sprintf("%s.%s", p.Types[f.Owner].Name, f.Name)
}

// AssignedFields returns, for a method, the fields of its own type it assigns to through this,
// in stable order. It is a structural property of the body.
func (p *Program) AssignedFields(m *Method) []int {
	var fields []int
	if m.Body == nil {
		return nil
	}
	WalkExpressions(m.Body, func(e Expression) {
		a, ok := e.(*Assign)
		if !ok {
			return
		}
		if fa, ok := a.Target.(*FieldAccess); ok && fa.IsOfThis() && !slices.Contains(fields, fa.Field) {
			if p.Fields[fa.Field].Owner == m.Owner {
				fields = append(fields, fa.Field)
			}
		}
	})
	slices.Sort(fields)
	return fields
}

// Calls returns the call graph of the program computed by Finalize.
func (p *Program) Calls() *CallGraph { return p.calls }
