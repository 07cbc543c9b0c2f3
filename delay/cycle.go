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

package delay

import (
	"slices"
	"strings"
)

// Cycle describes a dependency cycle among analysis units found on the cause graph.
type Cycle struct {
	// Members are the units on the cycle, in the order they were entered.
	Members []UnitKey
	// Closing is the cause that closed the cycle: it is located in Members[0] and was found in
	// the causes of the last member.
	Closing Cause
}

// Lowest returns the member with the lowest stable identifier.
func (c Cycle) Lowest() UnitKey {
	return slices.MinFunc(c.Members, UnitKey.Compare)
}

// Predecessor returns the member that precedes the given member on the cycle.
func (c Cycle) Predecessor(member UnitKey) UnitKey {
	i := slices.Index(c.Members, member)
	if i <= 0 {
		return c.Members[len(c.Members)-1]
	}
	return c.Members[i-1]
}

func (c Cycle) String() string {
	strs := make([]string, 0, len(c.Members)+1)
	for _, m := range c.Members {
		strs = append(strs, m.String())
	}
	strs = append(strs, c.Members[0].String())
	return strings.Join(strs, " -> ")
}

// DetectCycle checks whether any of the causes is located in a unit that is on the active stack,
// i.e. in a unit currently being computed further up the dependency chain. The active stack is
// ordered from the outermost unit to the innermost one; the returned cycle starts at the unit the
// closing cause points to. Causes are examined in their deterministic order, so the same causes
// and stack always yield the same cycle.
func DetectCycle(causes Causes, activeStack []UnitKey) (Cycle, bool) {
	for _, cause := range causes.Slice() {
		if cause.Kind == NotYetStarted {
			continue
		}
		if i := slices.Index(activeStack, cause.Location.Unit); i >= 0 {
			return Cycle{
				Members: slices.Clone(activeStack[i:]),
				Closing: cause,
			}, true
		}
	}
	return Cycle{}, false
}
