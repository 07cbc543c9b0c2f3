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

// Package statement implements the statement-level analyser: the abstract values expressions
// evaluate to, the condition manager, flow data, the per-statement variable information, and the
// analysis of a method body which, run once per iteration, brings every statement from its
// initial state through evaluation and, for compound statements, the merge of its sub-blocks.
package statement

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/variable"
)

// Value is the abstract value of an expression. Values are immutable and compared by their
// canonical string form.
type Value interface {
	String() string
	isValue()
}

// IntConstant is an integer constant.
type IntConstant struct{ V int64 }

// BoolConstant is a boolean constant.
type BoolConstant struct{ V bool }

// StringConstant is a string constant.
type StringConstant struct{ V string }

// Null is the null constant.
type Null struct{}

// VariableValue is the (unknown) value of a variable at a point of the method.
type VariableValue struct{ Variable variable.Variable }

// Instance is a new, unknown object of a type: the result of a constructor or method call, or
// the value of a variable at the start of a loop iteration.
type Instance struct {
	Type model.TypeRef
	// Origin is "new", "call", "loop" or "catch".
	Origin string
	// Immutable is the immutability of the object when known from its origin, 0 otherwise.
	Immutable int
	// NotNull is true when the object is known not to be null.
	NotNull bool
}

// Negation negates a boolean value that cannot be simplified further.
type Negation struct{ Operand Value }

// Comparison compares two values.
type Comparison struct {
	Op          string
	Left, Right Value
}

// Arithmetic is a numeric (or string concatenation) operation that could not be folded.
type Arithmetic struct {
	Op          string
	Left, Right Value
}

// And is a conjunction of at least two clauses, in canonical order.
type And struct{ Clauses []Value }

// Or is a disjunction of at least two clauses, in canonical order.
type Or struct{ Clauses []Value }

// Conditional is "Condition ? Then : Else".
type Conditional struct {
	Condition, Then, Else Value
}

func (IntConstant) isValue()    {}
func (BoolConstant) isValue()   {}
func (StringConstant) isValue() {}
func (Null) isValue()           {}
func (VariableValue) isValue()  {}
func (Instance) isValue()       {}
func (Negation) isValue()       {}
func (Comparison) isValue()     {}
func (Arithmetic) isValue()     {}
func (And) isValue()            {}
func (Or) isValue()             {}
func (Conditional) isValue()    {}

func (v IntConstant) String() string    { return strconv.FormatInt(v.V, 10) }
func (v BoolConstant) String() string   { return strconv.FormatBool(v.V) }
func (v StringConstant) String() string { return strconv.Quote(v.V) }
func (Null) String() string             { return "null" }
func (v VariableValue) String() string  { return v.Variable.String() }
func (v Instance) String() string       { return "instance " + v.Origin + " " + v.Type.Name }
func (v Negation) String() string       { return "!(" + v.Operand.String() + ")" }
func (v Comparison) String() string     { return v.Left.String() + " " + v.Op + " " + v.Right.String() }
func (v Arithmetic) String() string     { return "(" + v.Left.String() + " " + v.Op + " " + v.Right.String() + ")" }
func (v And) String() string            { return joinClauses(v.Clauses, " && ") }
func (v Or) String() string             { return joinClauses(v.Clauses, " || ") }
func (v Conditional) String() string {
	return v.Condition.String() + " ? " + v.Then.String() + " : " + v.Else.String()
}

func joinClauses(clauses []Value, sep string) string {
	strs := make([]string, len(clauses))
	for i, c := range clauses {
		strs[i] = c.String()
		if _, ok := c.(And); ok {
			strs[i] = "(" + strs[i] + ")"
		} else if _, ok := c.(Or); ok {
			strs[i] = "(" + strs[i] + ")"
		}
	}
	return strings.Join(strs, sep)
}

var (
	// True is the boolean constant true.
	True Value = BoolConstant{V: true}
	// False is the boolean constant false.
	False Value = BoolConstant{V: false}
)

// Equal compares two values by their canonical form.
func Equal(a, b Value) bool {
	return a.String() == b.String()
}

// IsConstant reports whether a value is a literal constant (including null).
func IsConstant(v Value) bool {
	switch v.(type) {
	case IntConstant, BoolConstant, StringConstant, Null:
		return true
	}
	return false
}

// IsBoolConstant returns the boolean a value is constant to, if any.
func IsBoolConstant(v Value) (bool, bool) {
	b, ok := v.(BoolConstant)
	return b.V, ok
}

// IsNull reports whether a value is the null constant.
func IsNull(v Value) bool {
	_, ok := v.(Null)
	return ok
}

// NotNullByConstruction reports whether a value can never be null, independently of any variable
// property: constants other than null, new objects, primitive results of operators.
func NotNullByConstruction(v Value) bool {
	switch v := v.(type) {
	case IntConstant, BoolConstant, StringConstant, Negation, Comparison, Arithmetic, And, Or:
		return true
	case Instance:
		return v.NotNull
	case Conditional:
		return NotNullByConstruction(v.Then) && NotNullByConstruction(v.Else)
	}
	return false
}

// References reports whether a value refers to a variable.
func References(v Value, x variable.Variable) bool {
	switch v := v.(type) {
	case VariableValue:
		return v.Variable == x
	case Negation:
		return References(v.Operand, x)
	case Comparison:
		return References(v.Left, x) || References(v.Right, x)
	case Arithmetic:
		return References(v.Left, x) || References(v.Right, x)
	case And:
		return slices.ContainsFunc(v.Clauses, func(c Value) bool { return References(c, x) })
	case Or:
		return slices.ContainsFunc(v.Clauses, func(c Value) bool { return References(c, x) })
	case Conditional:
		return References(v.Condition, x) || References(v.Then, x) || References(v.Else, x)
	}
	return false
}

var _negatedOps = map[string]string{
	model.OpEq: model.OpNe, model.OpNe: model.OpEq,
	model.OpLt: model.OpGe, model.OpGe: model.OpLt,
	model.OpGt: model.OpLe, model.OpLe: model.OpGt,
}

// Not negates a boolean value, simplifying where possible.
func Not(v Value) Value {
	switch v := v.(type) {
	case BoolConstant:
		return BoolConstant{V: !v.V}
	case Negation:
		return v.Operand
	case Comparison:
		return Comparison{Op: _negatedOps[v.Op], Left: v.Left, Right: v.Right}
	case And:
		negated := make([]Value, len(v.Clauses))
		for i, c := range v.Clauses {
			negated[i] = Not(c)
		}
		return NewOr(negated...)
	case Or:
		negated := make([]Value, len(v.Clauses))
		for i, c := range v.Clauses {
			negated[i] = Not(c)
		}
		return NewAnd(negated...)
	}
	return Negation{Operand: v}
}

// NewAnd builds a simplified conjunction.
func NewAnd(values ...Value) Value {
	return junction(values, true)
}

// NewOr builds a simplified disjunction.
func NewOr(values ...Value) Value {
	return junction(values, false)
}

// junction builds a conjunction (and = true) or disjunction: nested junctions of the same kind
// are flattened, the neutral constant is dropped, the absorbing constant or a clause together
// with its negation absorbs everything, and clauses are deduplicated and sorted.
func junction(values []Value, and bool) Value {
	neutral, absorbing := BoolConstant{V: and}, BoolConstant{V: !and}
	var clauses []Value
	var add func(v Value) bool
	add = func(v Value) bool {
		switch v := v.(type) {
		case BoolConstant:
			return v != absorbing
		case And:
			if and {
				for _, c := range v.Clauses {
					if !add(c) {
						return false
					}
				}
				return true
			}
		case Or:
			if !and {
				for _, c := range v.Clauses {
					if !add(c) {
						return false
					}
				}
				return true
			}
		}
		clauses = append(clauses, v)
		return true
	}
	for _, v := range values {
		if !add(v) {
			return absorbing
		}
	}
	slices.SortFunc(clauses, func(a, b Value) int { return cmp.Compare(a.String(), b.String()) })
	clauses = slices.CompactFunc(clauses, Equal)
	for _, c := range clauses {
		neg := Not(c)
		if slices.ContainsFunc(clauses, func(o Value) bool { return Equal(o, neg) }) {
			return absorbing
		}
	}
	switch len(clauses) {
	case 0:
		return neutral
	case 1:
		return clauses[0]
	}
	if and {
		return And{Clauses: clauses}
	}
	return Or{Clauses: clauses}
}

// NewComparison builds a comparison, folding it when both sides are known.
func NewComparison(op string, left, right Value) Value {
	// Keep null and constants on the right.
	if (IsConstant(left) && !IsConstant(right)) && (op == model.OpEq || op == model.OpNe) {
		left, right = right, left
	}
	if op == model.OpEq || op == model.OpNe {
		if eq, ok := knownEqual(left, right); ok {
			return BoolConstant{V: eq == (op == model.OpEq)}
		}
	}
	if l, ok := left.(IntConstant); ok {
		if r, ok := right.(IntConstant); ok {
			var res bool
			switch op {
			case model.OpLt:
				res = l.V < r.V
			case model.OpLe:
				res = l.V <= r.V
			case model.OpGt:
				res = l.V > r.V
			case model.OpGe:
				res = l.V >= r.V
			}
			return BoolConstant{V: res}
		}
	}
	return Comparison{Op: op, Left: left, Right: right}
}

// knownEqual decides equality when it does not depend on unknown values.
func knownEqual(left, right Value) (bool, bool) {
	if IsConstant(left) && IsConstant(right) {
		return Equal(left, right), true
	}
	if IsNull(right) && NotNullByConstruction(left) {
		return false, true
	}
	if IsNull(left) && NotNullByConstruction(right) {
		return false, true
	}
	return false, false
}

// NewArithmetic builds an arithmetic operation, folding integer constants and string
// concatenation. Division by a zero constant is never folded.
func NewArithmetic(op string, left, right Value) Value {
	if l, ok := left.(IntConstant); ok {
		if r, ok := right.(IntConstant); ok {
			switch op {
			case model.OpAdd:
				return IntConstant{V: l.V + r.V}
			case model.OpSub:
				return IntConstant{V: l.V - r.V}
			case model.OpMul:
				return IntConstant{V: l.V * r.V}
			case model.OpDiv:
				if r.V != 0 {
					return IntConstant{V: l.V / r.V}
				}
			case model.OpRem:
				if r.V != 0 {
					return IntConstant{V: l.V % r.V}
				}
			}
		}
	}
	if op == model.OpAdd {
		ls, lok := left.(StringConstant)
		rs, rok := right.(StringConstant)
		if lok && rok {
			return StringConstant{V: ls.V + rs.V}
		}
	}
	return Arithmetic{Op: op, Left: left, Right: right}
}

// NewConditional builds "c ? a : b", folding constant conditions and equal alternatives.
func NewConditional(c, a, b Value) Value {
	if bc, ok := IsBoolConstant(c); ok {
		if bc {
			return a
		}
		return b
	}
	if Equal(a, b) {
		return a
	}
	return Conditional{Condition: c, Then: a, Else: b}
}
