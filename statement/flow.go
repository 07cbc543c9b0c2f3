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
)

// Execution says whether a statement is executed when its block is.
type Execution uint8

const (
	// Never: the statement is unreachable.
	Never Execution = iota
	// Conditionally: the statement is executed on some paths.
	Conditionally
	// Always: the statement is executed whenever its block is.
	Always
)

var _executionNames = [...]string{Never: "NEVER", Conditionally: "CONDITIONALLY", Always: "ALWAYS"}

func (e Execution) String() string { return _executionNames[e] }

func minExecution(a, b Execution) Execution { return min(a, b) }

func maxExecution(a, b Execution) Execution { return max(a, b) }

// invert turns "how often does this statement escape" into "how often is the next one reached".
func invert(e Execution) Execution { return Always - e }

// FlowData describes the control flow at a statement.
type FlowData struct {
	// Reached says whether the statement is executed; delayed while a condition deciding it is.
	Reached delay.Value[Execution]
	// Interrupt says whether the statement escapes its block (return, throw, break, continue,
	// or a sub-block that always does).
	Interrupt delay.Value[Execution]
}

// IsUnreachable reports whether the statement is known never to be executed.
func (f FlowData) IsUnreachable() bool {
	r, ok := f.Reached.Get()
	return ok && r == Never
}

// Causes returns the causes of delay of the flow.
func (f FlowData) Causes() delay.Causes {
	c := f.Reached.Causes()
	if f.Interrupt.IsValid() {
		c = c.Merge(f.Interrupt.Causes())
	}
	return c
}

func isNever(e delay.Value[Execution]) bool {
	v, ok := e.Get()
	return ok && v == Never
}

func isAlways(e delay.Value[Execution]) bool {
	v, ok := e.Get()
	return ok && v == Always
}

// minReached combines two reachabilities; Never wins even against a delay.
func minReached(a, b delay.Value[Execution]) delay.Value[Execution] {
	if isNever(a) || isNever(b) {
		return delay.Done(Never)
	}
	return delay.Combine(a, b, minExecution)
}

// nextReached is the reachability of the statement following one with the given flow.
func nextReached(reached, interrupt delay.Value[Execution]) delay.Value[Execution] {
	return minReached(reached, delay.Map(interrupt, invert))
}

// conditionally lowers a reachability to at most Conditionally.
func conditionally(reached delay.Value[Execution]) delay.Value[Execution] {
	return delay.Map(reached, func(e Execution) Execution { return minExecution(e, Conditionally) })
}
