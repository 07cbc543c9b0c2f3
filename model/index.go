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
	"fmt"
	"slices"
	"strconv"
)

// Finalize assigns arena indices, statement indices and computes the call graph. It must be
// called once after the program has been built and before it is analysed.
func (p *Program) Finalize() {
	for i, t := range p.Types {
		t.Index = i
	}
	for i, f := range p.Fields {
		f.Index = i
	}
	for i, m := range p.Methods {
		m.Index = i
		for j, param := range m.Parameters {
			param.Index = j
		}
		indexBlock(m.Body, "")
	}
	p.calls = newCallGraph(p)
}

func indexBlock(b *Block, prefix string) {
	if b == nil {
		return
	}
	width := len(strconv.Itoa(len(b.Statements) - 1))
	for i, s := range b.Statements {
		index := prefix + fmt.Sprintf("%0*d", width, i)
		s.setIndex(index)
		for j, sub := range s.Blocks() {
			indexBlock(sub, index+"."+strconv.Itoa(j)+".")
		}
	}
}

// CallGraph records which program methods call which, and the strongly connected components
// of that relation (call cycles).
type CallGraph struct {
	callees   [][]int
	component []int
	size      []int
	self      []bool
}

func newCallGraph(p *Program) *CallGraph {
	g := &CallGraph{
		callees:   make([][]int, len(p.Methods)),
		component: make([]int, len(p.Methods)),
		self:      make([]bool, len(p.Methods)),
	}
	for _, m := range p.Methods {
		if m.Body == nil {
			continue
		}
		WalkExpressions(m.Body, func(e Expression) {
			callee := -1
			switch e := e.(type) {
			case *Call:
				callee = e.Method
			case *New:
				callee = e.Constructor
			}
			if callee < 0 || slices.Contains(g.callees[m.Index], callee) {
				return
			}
			g.callees[m.Index] = append(g.callees[m.Index], callee)
			if callee == m.Index {
				g.self[m.Index] = true
			}
		})
		slices.Sort(g.callees[m.Index])
	}
	g.tarjan()
	return g
}

// tarjan computes the strongly connected components; component ids are assigned in the order
// Tarjan's algorithm completes them, which is deterministic given the sorted callee lists.
func (g *CallGraph) tarjan() {
	n := len(g.callees)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	next := 0

	var strongConnect func(v int)
	strongConnect = func(v int) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.callees[v] {
			if index[w] < 0 {
				strongConnect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		id := len(g.size)
		count := 0
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			g.component[w] = id
			count++
			if w == v {
				break
			}
		}
		g.size = append(g.size, count)
	}
	for v := 0; v < n; v++ {
		if index[v] < 0 {
			strongConnect(v)
		}
	}
}

// Callees returns the program methods called by a method, sorted.
func (g *CallGraph) Callees(m int) []int { return g.callees[m] }

// InCycle reports whether a method is part of a call cycle (including calling itself).
func (g *CallGraph) InCycle(m int) bool {
	return g.self[m] || g.size[g.component[m]] > 1
}

// SameCycle reports whether two methods are part of the same call cycle.
func (g *CallGraph) SameCycle(a, b int) bool {
	if a == b {
		return g.self[a]
	}
	return g.component[a] == g.component[b]
}
