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

package linked

import (
	"slices"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/variable"
)

// Graph is the linking state of one analysis: for each variable, its outgoing links. Links are
// treated as symmetric when computing closures. A Graph is owned by a single method analysis
// and is not safe for concurrent use.
type Graph struct {
	out map[variable.Variable]Variables
	// retired holds the last links of variables that went out of scope, for diagnostics only.
	retired map[variable.Variable]Variables
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		out:     make(map[variable.Variable]Variables),
		retired: make(map[variable.Variable]Variables),
	}
}

// Set overwrites the outgoing links of v.
func (g *Graph) Set(v variable.Variable, links Variables) {
	g.out[v] = links.Remove(func(o variable.Variable) bool { return o == v })
}

// Assign records the assignment target = source, where source are the links of the assigned
// expression, attenuated by the strength of the assignment itself (Assigned for a plain
// assignment, weaker for e.g. a copy). Previous links of target are overwritten; variables
// statically assigned in the source stay statically assigned.
func (g *Graph) Assign(target variable.Variable, source Variables, strength Strength) Variables {
	var links Variables
	if source.IsNotYetSet() {
		links = source
	} else {
		static := Empty()
		for _, v := range source.StaticallyAssigned() {
			static = static.Union(Of(v, Done(StaticallyAssigned)))
		}
		rest := source.Remove(func(v variable.Variable) bool { return static.Contains(v) })
		links = static.Union(rest.Minimum(strength))
	}
	g.Set(target, links)
	return g.out[target]
}

// Links returns the outgoing links of v; a variable never assigned has no links.
func (g *Graph) Links(v variable.Variable) Variables {
	if links, ok := g.out[v]; ok {
		return links
	}
	return Empty()
}

// Variables returns the variables with outgoing links, in stable order.
func (g *Graph) Variables() []variable.Variable {
	vars := make([]variable.Variable, 0, len(g.out))
	for v := range g.out {
		vars = append(vars, v)
	}
	slices.SortFunc(vars, variable.Variable.Compare)
	return vars
}

// ScopeExit removes a variable leaving its block: its own links and every link to it are
// dropped. Variables linked through it are linked to each other (with the weaker of both links)
// so no dependency is lost. Its last links are kept as retired information.
func (g *Graph) ScopeExit(v variable.Variable) {
	own, ok := g.out[v]
	if ok {
		g.retired[v] = own
		delete(g.out, v)
	}
	for _, o := range g.Variables() {
		links := g.out[o]
		level, linked := links.Level(v)
		if !linked {
			continue
		}
		links = links.Remove(func(x variable.Variable) bool { return x == v })
		if ok && !own.IsNotYetSet() {
			for _, x := range own.Sorted() {
				if x == o {
					continue
				}
				xl, _ := own.Level(x)
				links = links.Union(Of(x, weaker(level, xl)))
			}
		}
		g.out[o] = links
	}
}

// Retired returns the last links of a variable that went out of scope.
func (g *Graph) Retired(v variable.Variable) (Variables, bool) {
	links, ok := g.retired[v]
	return links, ok
}

// Closure returns all variables reachable from v, treating links as symmetric. The strength of
// a path is its weakest link; the result holds, for each reachable variable, its strongest path.
// Paths never continue through a link at Independent strength. Any delayed link on a path delays
// the result for the variables reached through it; a not-yet-set source delays the closure.
func (g *Graph) Closure(v variable.Variable) Variables {
	adjacency := g.symmetric()
	notYetSet := delay.NoCauses
	for _, u := range g.Variables() {
		if links := g.out[u]; links.IsNotYetSet() {
			notYetSet = notYetSet.Merge(links.notYetSet)
		}
	}
	if !notYetSet.IsEmpty() {
		return NotYetSet(notYetSet)
	}

	best := map[variable.Variable]Level{v: Done(StaticallyAssigned)}
	queue := []variable.Variable{v}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, w := range sortedKeys(adjacency[u]) {
			edge := adjacency[u][w]
			path := weaker(best[u], edge)
			if prev, ok := best[w]; ok {
				next := stronger(prev, path)
				if next.Equal(prev) {
					continue
				}
				best[w] = next
			} else {
				best[w] = path
			}
			queue = append(queue, w)
		}
	}
	delete(best, v)
	return Variables{links: best}
}

func (g *Graph) symmetric() map[variable.Variable]map[variable.Variable]Level {
	adjacency := make(map[variable.Variable]map[variable.Variable]Level)
	add := func(a, b variable.Variable, l Level) {
		if adjacency[a] == nil {
			adjacency[a] = make(map[variable.Variable]Level)
		}
		if prev, ok := adjacency[a][b]; ok {
			l = stronger(prev, l)
		}
		adjacency[a][b] = l
	}
	for _, u := range g.Variables() {
		links := g.out[u]
		for _, w := range links.Sorted() {
			l := links.links[w]
			add(u, w, l)
			add(w, u, l)
		}
	}
	return adjacency
}

func sortedKeys(m map[variable.Variable]Level) []variable.Variable {
	keys := make([]variable.Variable, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, variable.Variable.Compare)
	return keys
}
