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
	"strconv"
	"strings"
)

// Expression is an expression of a method body.
type Expression interface {
	String() string
	children() []Expression
}

// Operators of unary and binary expressions.
const (
	OpNot = "!"
	OpNeg = "-"

	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	OpRem = "%"
	OpEq  = "=="
	OpNe  = "!="
	OpLt  = "<"
	OpLe  = "<="
	OpGt  = ">"
	OpGe  = ">="
	OpAnd = "&&"
	OpOr  = "||"
)

// IntLit is an integer literal.
type IntLit struct{ Value int64 }

// BoolLit is a boolean literal.
type BoolLit struct{ Value bool }

// StringLit is a string literal.
type StringLit struct{ Value string }

// NullLit is the null literal.
type NullLit struct{}

// Local refers to a local variable.
type Local struct{ Name string }

// Param refers to a parameter of the enclosing method.
type Param struct {
	Index int
	Name  string
}

// This refers to the receiver of the enclosing method.
type This struct{}

// FieldAccess reads (or, as an assignment target, writes) a field.
type FieldAccess struct {
	// Scope is the object the field is accessed on; nil means this.
	Scope Expression
	Field int
	Name  string
}

// IsOfThis reports whether the field is accessed through this.
func (f *FieldAccess) IsOfThis() bool {
	if f.Scope == nil {
		return true
	}
	_, ok := f.Scope.(*This)
	return ok
}

// Unary is a unary operation.
type Unary struct {
	Op      string
	Operand Expression
}

// Binary is a binary operation.
type Binary struct {
	Op          string
	Left, Right Expression
}

// Assign assigns a value to a local variable, a parameter or a field.
type Assign struct {
	Target Expression
	Value  Expression
}

// Conditional is the ternary operator.
type Conditional struct {
	Condition, Then, Else Expression
}

// Call is a method call. Calls to program methods carry the method's arena index; calls to
// external methods carry Method = -1 and a qualified name ("List.add").
type Call struct {
	// Object is the receiver; nil means this for instance methods, nothing for static methods.
	Object Expression
	Method int
	Name   string
	Args   []Expression
	// Type is the return type.
	Type TypeRef
}

// IsExternal reports whether the called method is not part of the program.
func (c *Call) IsExternal() bool { return c.Method < 0 }

// New creates an object. Constructor is -1 for external types and implicit constructors.
type New struct {
	Type        TypeRef
	Constructor int
	Args        []Expression
}

func (*IntLit) children() []Expression      { return nil }
func (*BoolLit) children() []Expression     { return nil }
func (*StringLit) children() []Expression   { return nil }
func (*NullLit) children() []Expression     { return nil }
func (*Local) children() []Expression       { return nil }
func (*Param) children() []Expression       { return nil }
func (*This) children() []Expression        { return nil }
func (e *Unary) children() []Expression     { return []Expression{e.Operand} }
func (e *Binary) children() []Expression    { return []Expression{e.Left, e.Right} }
func (e *Assign) children() []Expression    { return []Expression{e.Target, e.Value} }
func (e *Conditional) children() []Expression {
	return []Expression{e.Condition, e.Then, e.Else}
}

func (e *FieldAccess) children() []Expression {
	if e.Scope == nil {
		return nil
	}
	return []Expression{e.Scope}
}

func (e *Call) children() []Expression {
	var c []Expression
	if e.Object != nil {
		c = append(c, e.Object)
	}
	return append(c, e.Args...)
}

func (e *New) children() []Expression { return e.Args }

// Inspect traverses an expression depth first, calling f for every node; when f returns false
// the children of that node are skipped.
func Inspect(e Expression, f func(Expression) bool) {
	if e == nil || !f(e) {
		return
	}
	for _, c := range e.children() {
		Inspect(c, f)
	}
}

func (e *IntLit) String() string    { return strconv.FormatInt(e.Value, 10) }
func (e *BoolLit) String() string   { return strconv.FormatBool(e.Value) }
func (e *StringLit) String() string { return strconv.Quote(e.Value) }
func (*NullLit) String() string     { return "null" }
func (e *Local) String() string     { return e.Name }
func (e *Param) String() string     { return e.Name }
func (*This) String() string        { return "this" }

func (e *FieldAccess) String() string {
	if e.Scope == nil {
		return "this." + e.Name
	}
	return e.Scope.String() + "." + e.Name
}

func (e *Unary) String() string { return e.Op + e.Operand.String() }

func (e *Binary) String() string {
	return e.Left.String() + " " + e.Op + " " + e.Right.String()
}

func (e *Assign) String() string { return e.Target.String() + " = " + e.Value.String() }

func (e *Conditional) String() string {
	return e.Condition.String() + " ? " + e.Then.String() + " : " + e.Else.String()
}

func (e *Call) String() string {
	name := e.Name
	if i := strings.LastIndexByte(name, '.'); i >= 0 && e.Object != nil {
		name = name[i+1:]
	}
	var sb strings.Builder
	if e.Object != nil {
		sb.WriteString(e.Object.String())
		sb.WriteByte('.')
	}
	sb.WriteString(name)
	writeArgs(&sb, e.Args)
	return sb.String()
}

func (e *New) String() string {
	var sb strings.Builder
	sb.WriteString("new ")
	sb.WriteString(e.Type.Name)
	writeArgs(&sb, e.Args)
	return sb.String()
}

func writeArgs(sb *strings.Builder, args []Expression) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
}
