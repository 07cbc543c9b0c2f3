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
	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/hook"
	"go.uber.org/immutaway/linked"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
)

// Context gives the statement analyser access to the rest of the analysis: the properties
// other units have committed so far, and the registry to express delays in.
type Context interface {
	Program() *model.Program
	Registry() *delay.Registry
	// Unit is the unit being analysed.
	Unit() delay.UnitKey
	// MethodProperty returns a property of a method; it is delayed while the method's unit has
	// not decided it.
	MethodProperty(method int, kind property.Kind) property.DV
	// ParameterProperty returns a property of a parameter of a method.
	ParameterProperty(method, parameter int, kind property.Kind) property.DV
	// FieldProperty returns a property of a field.
	FieldProperty(field int, kind property.Kind) property.DV
	// TypeProperty returns a property of a type.
	TypeProperty(typ int, kind property.Kind) property.DV
}

// TypeImmutable returns the immutability of values of a declared type. Whether a value of an
// eventually immutable type has been marked is not tracked, so such values count as mutable.
func TypeImmutable(ctx Context, ref model.TypeRef) property.DV {
	switch ref.Kind {
	case model.RefProgram:
		imm := ctx.TypeProperty(ref.Type, property.Immutable)
		if imm.Equal(property.Immutable.Lowest()) {
			return imm
		}
		switch eventual := ctx.TypeProperty(ref.Type, property.Eventual); {
		case eventual.IsTrue():
			return property.Of(property.Mutable)
		case eventual.IsDelayed():
			return property.Delayed(eventual.Causes().Merge(imm.Causes()))
		}
		return imm
	case model.RefExternal:
		return property.Of(hook.Type(ref.Name).Immutable)
	default:
		return property.Of(property.EffectivelyImmutable)
	}
}

// LinkStrength converts the independence of a value from its origin into the strength of the
// link between them; ok is false for independent values, which are not linked at all.
func LinkStrength(independent int) (s linked.Strength, ok bool) {
	switch independent {
	case property.FullyIndependent:
		return linked.Independent, false
	case property.IndependentHC:
		return linked.CommonHC, true
	default:
		return linked.Dependent, true
	}
}

// linkThrough links a result to the variables its origin is linked to, attenuated by the
// independence of the result.
func linkThrough(origin linked.Variables, independent property.DV) linked.Variables {
	if independent.IsDelayed() {
		return origin.ChangeToDelay(independent.Causes())
	}
	s, ok := LinkStrength(independent.Value())
	if !ok {
		return linked.Empty()
	}
	return origin.Minimum(s)
}

// ConstantResult returns the constant a method always returns, when its body is a single
// return of a literal.
func ConstantResult(m *model.Method) (Value, bool) {
	if m.Body == nil || len(m.Body.Statements) != 1 {
		return nil, false
	}
	ret, ok := m.Body.Statements[0].(*model.Return)
	if !ok || ret.Value == nil {
		return nil, false
	}
	return literal(ret.Value)
}

// literal returns the value of a literal expression.
func literal(e model.Expression) (Value, bool) {
	switch e := e.(type) {
	case *model.IntLit:
		return IntConstant{V: e.Value}, true
	case *model.BoolLit:
		return BoolConstant{V: e.Value}, true
	case *model.StringLit:
		return StringConstant{V: e.Value}, true
	case *model.NullLit:
		return Null{}, true
	}
	return nil, false
}

// DefaultValue is the value of a field that is never assigned.
func DefaultValue(ref model.TypeRef) Value {
	if !ref.IsPrimitive() {
		return Null{}
	}
	if ref.Name == "boolean" {
		return False
	}
	return IntConstant{}
}
