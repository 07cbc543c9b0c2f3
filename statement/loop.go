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
	"slices"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/variable"
)

// assignedIn returns the variables assigned in a block that outlive it, in order of assignment.
func assignedIn(p *model.Program, b *model.Block) []variable.Variable {
	var declared, assigned []variable.Variable
	model.WalkStatements(b, func(s model.Statement) {
		if lv, ok := s.(*model.LocalVariable); ok {
			declared = append(declared, variable.NewLocal(lv.Name))
		}
	})
	model.WalkExpressions(b, func(x model.Expression) {
		a, ok := x.(*model.Assign)
		if !ok {
			return
		}
		if v, ok := targetVariable(p, a.Target); ok && !slices.Contains(declared, v) && !slices.Contains(assigned, v) {
			assigned = append(assigned, v)
		}
	})
	return assigned
}

// obviouslyNotNull reports whether every value assigned to a variable in a block is not null
// whatever the state: literals other than null, object creations and operators.
func obviouslyNotNull(p *model.Program, b *model.Block, v variable.Variable) bool {
	all := true
	model.WalkExpressions(b, func(x model.Expression) {
		a, ok := x.(*model.Assign)
		if !ok {
			return
		}
		if t, ok := targetVariable(p, a.Target); !ok || t != v {
			return
		}
		switch a.Value.(type) {
		case *model.IntLit, *model.BoolLit, *model.StringLit, *model.New, *model.Binary, *model.Unary:
		default:
			all = false
		}
	})
	return all
}

// widen prepares the entry state of a loop body (or catch block) for every possible iteration:
// the variables assigned in the body lose their value, their context nullability and the
// conditions on them.
func (e *evaluator) widen(vars []variable.Variable, body *model.Block) {
	for _, v := range vars {
		vi := e.writable(v)
		vi.Value = delay.Done[Value](VariableValue{Variable: v})
		if !vi.Type.IsPrimitive() {
			if !obviouslyNotNull(e.r.program, body, v) {
				vi.Properties.Set(property.NotNullExpression, _nullable)
			}
			vi.Properties.Set(property.ContextNotNull, _nullable)
		}
		e.cm = e.cm.Forget(v)
		e.forgotten = append(e.forgotten, v)
	}
}
