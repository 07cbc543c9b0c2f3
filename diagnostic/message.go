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

// Package diagnostic hosts the messages the analyser reports about the analysed program: the
// per-unit buffers holding tentative messages during an iteration, and the engine collecting
// the messages of units that are done, in a stable order, for reporting.
package diagnostic

import (
	"cmp"
	"fmt"
)

// Kind is the kind of a message.
type Kind uint8

const (
	// UnusedLocalVariable: a local variable is never read.
	UnusedLocalVariable Kind = iota
	// UselessAssignment: a value assigned to a local variable is never read.
	UselessAssignment
	// PotentialNullPointer: an expression that may be null is dereferenced.
	PotentialNullPointer
	// ConstantCondition: a condition always evaluates to the same value.
	ConstantCondition
	// DivisionByZero: the divisor of a division or remainder is zero.
	DivisionByZero
	// SelfAssignment: a variable is assigned to itself.
	SelfAssignment
	// UnreachableStatement: a statement can never be executed.
	UnreachableStatement
	// ModifyingImmutable: a modifying method is called on an immutable object.
	ModifyingImmutable
)

var _kindNames = [...]string{
	UnusedLocalVariable:  "unused_local_variable",
	UselessAssignment:    "useless_assignment",
	PotentialNullPointer: "potential_null_pointer",
	ConstantCondition:    "constant_condition",
	DivisionByZero:       "division_by_zero",
	SelfAssignment:       "self_assignment",
	UnreachableStatement: "unreachable_statement",
	ModifyingImmutable:   "modifying_immutable",
}

func (k Kind) String() string {
	if int(k) < len(_kindNames) {
		return _kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Severity returns the severity of messages of this kind.
func (k Kind) Severity() Severity {
	switch k {
	case DivisionByZero, ModifyingImmutable:
		return Error
	default:
		return Warning
	}
}

// Severity is the severity of a message.
type Severity uint8

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Location identifies the statement a message is about. Statement is empty for messages about a
// method as a whole.
type Location struct {
	Type      string
	Method    string
	Statement string
}

func (l Location) String() string {
	s := l.Type + "." + l.Method
	if l.Statement != "" {
		s += " @" + l.Statement
	}
	return s
}

// Compare orders locations by type, method and statement index.
func (l Location) Compare(o Location) int {
	if n := cmp.Compare(l.Type, o.Type); n != 0 {
		return n
	}
	if n := cmp.Compare(l.Method, o.Method); n != 0 {
		return n
	}
	return cmp.Compare(l.Statement, o.Statement)
}

// Message is a finding about the analysed program.
type Message struct {
	Kind     Kind
	Location Location
	// Subject is the variable or expression the message is about.
	Subject string
}

// Text returns the human-readable description of the message.
func (m Message) Text() string {
	switch m.Kind {
	case UnusedLocalVariable:
		return fmt.Sprintf("unused local variable %s", m.Subject)
	case UselessAssignment:
		return fmt.Sprintf("useless assignment to %s", m.Subject)
	case PotentialNullPointer:
		return fmt.Sprintf("potential null pointer exception: %s may be null", m.Subject)
	case ConstantCondition:
		return fmt.Sprintf("condition evaluates to constant: %s", m.Subject)
	case DivisionByZero:
		return fmt.Sprintf("division by zero: %s", m.Subject)
	case SelfAssignment:
		return fmt.Sprintf("assigning %s to itself", m.Subject)
	case UnreachableStatement:
		return "unreachable statement"
	case ModifyingImmutable:
		return fmt.Sprintf("modifying immutable object %s", m.Subject)
	}
	return m.Subject
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s: %s", m.Location, m.Kind.Severity(), m.Text())
}

// Compare orders messages by location, then kind, then subject.
func (m Message) Compare(o Message) int {
	if n := m.Location.Compare(o.Location); n != 0 {
		return n
	}
	if n := cmp.Compare(m.Kind, o.Kind); n != 0 {
		return n
	}
	return cmp.Compare(m.Subject, o.Subject)
}
