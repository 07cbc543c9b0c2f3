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

// Package variable defines the identity of the variables the statement analyser tracks, and the
// ordering markers used to relate reads and assignments to statement positions.
package variable

import (
	"cmp"
	"fmt"
)

// Kind is the kind of a variable.
type Kind uint8

const (
	// Local is a local variable (including loop and catch variables).
	Local Kind = iota
	// Parameter is a parameter of the method being analysed.
	Parameter
	// This is the receiver of the method being analysed.
	This
	// Field is a field, accessed through a scope (this, or a local variable or parameter).
	Field
	// Return is the pseudo-variable holding the return value of the method being analysed.
	Return
)

var _kindNames = [...]string{
	Local:     "local",
	Parameter: "parameter",
	This:      "this",
	Field:     "field",
	Return:    "return",
}

func (k Kind) String() string {
	if int(k) < len(_kindNames) {
		return _kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Variable identifies a variable. Variables are comparable values and are used as map keys.
type Variable struct {
	Kind Kind
	Name string
	// ID is the parameter index, the field's arena index, or the method's arena index for the
	// return variable; it is zero for locals and this.
	ID int
	// Scope is the name of the variable a field is accessed through; empty means this (or static).
	Scope string
}

// NewLocal returns a local variable.
func NewLocal(name string) Variable { return Variable{Kind: Local, Name: name} }

// NewParameter returns a parameter variable.
func NewParameter(name string, index int) Variable {
	return Variable{Kind: Parameter, Name: name, ID: index}
}

// NewThis returns the receiver variable.
func NewThis() Variable { return Variable{Kind: This, Name: "this"} }

// NewField returns a field of this (scope "") or of another variable.
func NewField(name string, field int, scope string) Variable {
	return Variable{Kind: Field, Name: name, ID: field, Scope: scope}
}

// NewReturn returns the return pseudo-variable of a method.
func NewReturn(methodName string, method int) Variable {
	return Variable{Kind: Return, Name: methodName, ID: method}
}

// IsFieldOfThis reports whether the variable is a field accessed through this.
func (v Variable) IsFieldOfThis() bool {
	return v.Kind == Field && (v.Scope == "" || v.Scope == "this")
}

func (v Variable) String() string {
	switch v.Kind {
	case Field:
		if v.Scope == "" {
			return "this." + v.Name
		}
		return v.Scope + "." + v.Name
	case Return:
		return "return " + v.Name
	default:
		return v.Name
	}
}

// Compare orders variables by kind, then by their printed form; it is the order in which
// variables are listed in any output.
func (v Variable) Compare(o Variable) int {
	if n := cmp.Compare(v.Kind, o.Kind); n != 0 {
		return n
	}
	if n := cmp.Compare(v.String(), o.String()); n != 0 {
		return n
	}
	return cmp.Compare(v.ID, o.ID)
}
