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
	"go.uber.org/immutaway/linked"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/util/orderedmap"
	"go.uber.org/immutaway/variable"
)

// VariableInfo is what is known about a variable at one stage of one statement. Infos are never
// modified once stored in a state; a change produces a new info.
type VariableInfo struct {
	Variable variable.Variable
	// Type is the declared type of the variable.
	Type model.TypeRef
	// Value is the abstract value of the variable.
	Value delay.Value[Value]
	// Properties holds ContextNotNull, NotNullRequired, ContextModified and NotNullExpression.
	Properties property.Map
	// Linked holds the variables this one shares objects with.
	Linked linked.Variables
	// ReadID is the last stage at which the variable was read.
	ReadID variable.Index
	// AssignmentID is the last stage at which the variable was assigned.
	AssignmentID variable.Index
}

func (vi *VariableInfo) clone() *VariableInfo {
	c := *vi
	c.Properties = vi.Properties.Clone()
	return &c
}

// Property returns the value of a property, or the kind's lowest value when absent.
func (vi *VariableInfo) Property(k property.Kind) property.DV {
	return vi.Properties.GetOrDefault(k, k.Lowest())
}

// Causes returns every cause of delay held by the info.
func (vi *VariableInfo) Causes() delay.Causes {
	return vi.Value.Causes().Merge(vi.Properties.Causes()).Merge(vi.Linked.Causes())
}

// VariableInfoContainer holds the snapshots of a variable at one statement: the one inherited
// from the previous statement, the one after evaluating the statement's expressions, and the one
// after merging its sub-blocks. Evaluation and Merge are nil when the stage did not change the
// variable; Previous is nil when the variable appears at this statement.
type VariableInfoContainer struct {
	Previous   *VariableInfo
	Evaluation *VariableInfo
	Merge      *VariableInfo
}

// Current returns the latest snapshot.
func (c *VariableInfoContainer) Current() *VariableInfo {
	switch {
	case c.Merge != nil:
		return c.Merge
	case c.Evaluation != nil:
		return c.Evaluation
	default:
		return c.Previous
	}
}

// Best returns the latest snapshot not after the given stage.
func (c *VariableInfoContainer) Best(stage variable.Stage) *VariableInfo {
	if stage >= variable.Merge && c.Merge != nil {
		return c.Merge
	}
	if stage >= variable.Evaluation && c.Evaluation != nil {
		return c.Evaluation
	}
	if c.Previous != nil {
		return c.Previous
	}
	if c.Evaluation != nil {
		return c.Evaluation
	}
	return c.Merge
}

// StatementAnalysis is the result of analysing one statement in one iteration.
type StatementAnalysis struct {
	Index     string
	Statement model.Statement
	Flow      FlowData
	// Variables holds the containers of all variables known at the statement, in order of
	// appearance. It is empty for unreachable statements.
	Variables  *orderedmap.OrderedMap[variable.Variable, *VariableInfoContainer]
	Conditions ConditionManager
	Status     delay.AnalysisStatus
}

// Variable returns the latest snapshot of a variable at this statement.
func (s *StatementAnalysis) Variable(v variable.Variable) (*VariableInfo, bool) {
	c, ok := s.Variables.Load(v)
	if !ok {
		return nil, false
	}
	return c.Current(), true
}

// state is the evolving set of variable infos along the statements of a block.
type state struct {
	vars    *orderedmap.OrderedMap[variable.Variable, *VariableInfo]
	cm      ConditionManager
	reached delay.Value[Execution]
}

func (s *state) clone() *state {
	return &state{vars: s.vars.Clone(), cm: s.cm, reached: s.reached}
}

// graph builds the linking graph of all variables of the state.
func (s *state) graph() *linked.Graph {
	g := linked.NewGraph()
	s.vars.OrderedRange(func(v variable.Variable, vi *VariableInfo) bool {
		g.Set(v, vi.Linked)
		return true
	})
	return g
}
