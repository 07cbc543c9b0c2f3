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
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/variable"
)

// ConditionManager holds what is known at a point of a method body: the conjunction of the
// conditions of the enclosing blocks, the state established by earlier statements (e.g. "!c"
// after "if (c) return;"), and the precondition gathered so far.
type ConditionManager struct {
	Condition    Value
	State        Value
	Precondition Value
}

// InitialConditions is the condition manager at the start of a method.
func InitialConditions() ConditionManager {
	return ConditionManager{Condition: True, State: True, Precondition: True}
}

// Absolute is the conjunction of condition and state.
func (cm ConditionManager) Absolute() Value {
	return NewAnd(cm.Condition, cm.State)
}

// NewCondition returns the condition manager of a sub-block entered when c holds.
func (cm ConditionManager) NewCondition(c Value) ConditionManager {
	cm.Condition = NewAnd(cm.Condition, c)
	return cm
}

// AddState records that s holds from now on.
func (cm ConditionManager) AddState(s Value) ConditionManager {
	cm.State = NewAnd(cm.State, s)
	return cm
}

// AddPrecondition records a precondition of the method.
func (cm ConditionManager) AddPrecondition(p Value) ConditionManager {
	cm.Precondition = NewAnd(cm.Precondition, p)
	return cm
}

// Forget drops every clause about a variable, after it has been assigned.
func (cm ConditionManager) Forget(v variable.Variable) ConditionManager {
	cm.Condition = forget(cm.Condition, v)
	cm.State = forget(cm.State, v)
	return cm
}

func forget(c Value, v variable.Variable) Value {
	if !References(c, v) {
		return c
	}
	and, ok := c.(And)
	if !ok {
		return True
	}
	var kept []Value
	for _, clause := range and.Clauses {
		if !References(clause, v) {
			kept = append(kept, clause)
		}
	}
	return NewAnd(kept...)
}

// Evaluate simplifies a boolean value using what is known: it is true if implied, false if its
// negation is implied.
func (cm ConditionManager) Evaluate(v Value) Value {
	if _, ok := IsBoolConstant(v); ok {
		return v
	}
	abs := cm.Absolute()
	if implies(abs, v) {
		return True
	}
	if implies(abs, Not(v)) {
		return False
	}
	return v
}

// IsNotNull reports whether the conditions guarantee that a variable is not null.
func (cm ConditionManager) IsNotNull(v variable.Variable) bool {
	return implies(cm.Absolute(), NewComparison(model.OpNe, VariableValue{Variable: v}, Null{}))
}

// IsNull reports whether the conditions guarantee that a variable is null.
func (cm ConditionManager) IsNull(v variable.Variable) bool {
	return implies(cm.Absolute(), NewComparison(model.OpEq, VariableValue{Variable: v}, Null{}))
}

// NotNullVariables returns the variables a value, when it holds, guarantees not to be null.
func NotNullVariables(c Value) []variable.Variable {
	var vars []variable.Variable
	for _, clause := range clauses(c) {
		if cmp, ok := clause.(Comparison); ok && cmp.Op == model.OpNe && IsNull(cmp.Right) {
			if vv, ok := cmp.Left.(VariableValue); ok {
				vars = append(vars, vv.Variable)
			}
		}
	}
	return vars
}

func clauses(v Value) []Value {
	if and, ok := v.(And); ok {
		return and.Clauses
	}
	return []Value{v}
}

// implies is a syntactic implication check: every clause of v must be a clause of facts.
func implies(facts, v Value) bool {
	if b, ok := IsBoolConstant(v); ok && b {
		return true
	}
	known := clauses(facts)
	for _, c := range clauses(v) {
		found := false
		for _, k := range known {
			if Equal(k, c) {
				found = true
				break
			}
			if or, ok := c.(Or); ok && impliesClause(k, or) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// impliesClause reports whether a known fact is one of the alternatives of a disjunction.
func impliesClause(fact Value, or Or) bool {
	for _, alt := range or.Clauses {
		if Equal(fact, alt) {
			return true
		}
	}
	return false
}
