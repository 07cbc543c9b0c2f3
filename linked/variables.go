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
	"strings"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/variable"
)

// Variables maps variables to the level of their link. A Variables value is immutable: every
// operation returns a new value. The "not yet set" state is represented explicitly, with the
// causes explaining why the links have not been computed, and is distinct from the empty set.
type Variables struct {
	links     map[variable.Variable]Level
	notYetSet delay.Causes
}

// Empty returns the empty (and done) set of links.
func Empty() Variables { return Variables{} }

// NotYetSet returns the marker for links that have not been computed yet.
func NotYetSet(causes delay.Causes) Variables {
	if causes.IsEmpty() {
		panic("not-yet-set linked variables must carry at least one cause of delay")
	}
	return Variables{notYetSet: causes}
}

// Of returns a single link.
func Of(v variable.Variable, level Level) Variables {
	if level.IsDone() && level.strength == Independent {
		return Empty()
	}
	return Variables{links: map[variable.Variable]Level{v: level}}
}

// IsNotYetSet reports whether the links have not been computed yet.
func (lv Variables) IsNotYetSet() bool { return !lv.notYetSet.IsEmpty() }

// IsEmpty reports whether there are no links (a not-yet-set value is not empty).
func (lv Variables) IsEmpty() bool { return !lv.IsNotYetSet() && len(lv.links) == 0 }

// Len returns the number of linked variables.
func (lv Variables) Len() int { return len(lv.links) }

// Level returns the level of the link to v, if any.
func (lv Variables) Level(v variable.Variable) (Level, bool) {
	l, ok := lv.links[v]
	return l, ok
}

// Contains reports whether v is linked.
func (lv Variables) Contains(v variable.Variable) bool {
	_, ok := lv.links[v]
	return ok
}

// Sorted returns the linked variables in stable order.
func (lv Variables) Sorted() []variable.Variable {
	vars := make([]variable.Variable, 0, len(lv.links))
	for v := range lv.links {
		vars = append(vars, v)
	}
	slices.SortFunc(vars, variable.Variable.Compare)
	return vars
}

// Causes returns the causes of delay of the links: the not-yet-set causes, or the union of the
// causes of all delayed levels.
func (lv Variables) Causes() delay.Causes {
	if lv.IsNotYetSet() {
		return lv.notYetSet
	}
	causes := delay.NoCauses
	for _, v := range lv.Sorted() {
		causes = causes.Merge(lv.links[v].causes)
	}
	return causes
}

// IsDone reports whether the links and all of their levels are known.
func (lv Variables) IsDone() bool { return lv.Causes().IsEmpty() }

// Union combines links that hold simultaneously, e.g. the links of the operands of an
// expression: every variable of either side is kept, with the stronger of both levels.
func (lv Variables) Union(o Variables) Variables {
	switch {
	case lv.IsNotYetSet() && o.IsNotYetSet():
		return NotYetSet(lv.notYetSet.Merge(o.notYetSet))
	case lv.IsNotYetSet():
		return lv
	case o.IsNotYetSet():
		return o
	}
	links := make(map[variable.Variable]Level, len(lv.links)+len(o.links))
	for v, l := range lv.links {
		links[v] = l
	}
	for v, l := range o.links {
		if prev, ok := links[v]; ok {
			links[v] = stronger(prev, l)
		} else {
			links[v] = l
		}
	}
	return Variables{links: links}
}

// MergeBranches combines the links of alternative branches at a join point. The result holds
// every variable linked in any branch; a variable linked in several branches keeps the weakest
// of its levels, so that the merged link is never stronger than any branch's. A branch whose
// links are not yet set delays the whole result.
func MergeBranches(branches ...Variables) Variables {
	notYetSet := delay.NoCauses
	for _, b := range branches {
		notYetSet = notYetSet.Merge(b.notYetSet)
	}
	if !notYetSet.IsEmpty() {
		return NotYetSet(notYetSet)
	}
	links := make(map[variable.Variable]Level)
	for _, b := range branches {
		for v, l := range b.links {
			if prev, ok := links[v]; ok {
				links[v] = weaker(prev, l)
			} else {
				links[v] = l
			}
		}
	}
	return Variables{links: links}
}

// Minimum attenuates every link to be at most as strong as s: links travel through an
// operation whose own linking is s, e.g. an assignment (Assigned) or a call whose result is
// only dependent on its object (Dependent).
func (lv Variables) Minimum(s Strength) Variables {
	if lv.IsNotYetSet() || lv.IsEmpty() {
		return lv
	}
	links := make(map[variable.Variable]Level, len(lv.links))
	for v, l := range lv.links {
		if !l.IsDone() {
			links[v] = l
			continue
		}
		if l.strength < s {
			l = Done(s)
		}
		if l.strength == Independent {
			continue
		}
		links[v] = l
	}
	return Variables{links: links}
}

// Remove drops the links to the variables matching the predicate.
func (lv Variables) Remove(drop func(variable.Variable) bool) Variables {
	if lv.IsNotYetSet() || lv.IsEmpty() {
		return lv
	}
	links := make(map[variable.Variable]Level, len(lv.links))
	for v, l := range lv.links {
		if !drop(v) {
			links[v] = l
		}
	}
	return Variables{links: links}
}

// ChangeToDelay delays every link except static assignments, which are known structurally.
func (lv Variables) ChangeToDelay(causes delay.Causes) Variables {
	if lv.IsNotYetSet() || lv.IsEmpty() {
		return lv
	}
	links := make(map[variable.Variable]Level, len(lv.links))
	for v, l := range lv.links {
		if l.IsDone() && l.strength == StaticallyAssigned {
			links[v] = l
		} else {
			links[v] = DelayedLevel(causes.Merge(l.causes))
		}
	}
	return Variables{links: links}
}

// StaticallyAssigned returns the variables linked by static assignment, in stable order.
func (lv Variables) StaticallyAssigned() []variable.Variable {
	var vars []variable.Variable
	for _, v := range lv.Sorted() {
		if l := lv.links[v]; l.IsDone() && l.strength == StaticallyAssigned {
			vars = append(vars, v)
		}
	}
	return vars
}

// Equal compares two sets of links.
func (lv Variables) Equal(o Variables) bool {
	if lv.IsNotYetSet() || o.IsNotYetSet() {
		return lv.IsNotYetSet() == o.IsNotYetSet() && lv.notYetSet.Equal(o.notYetSet)
	}
	if len(lv.links) != len(o.links) {
		return false
	}
	for v, l := range lv.links {
		ol, ok := o.links[v]
		if !ok || !l.Equal(ol) {
			return false
		}
	}
	return true
}

func (lv Variables) String() string {
	if lv.IsNotYetSet() {
		return "NOT_YET_SET"
	}
	vars := lv.Sorted()
	strs := make([]string, len(vars))
	for i, v := range vars {
		strs[i] = v.String() + ":" + lv.links[v].String()
	}
	return strings.Join(strs, ",")
}
