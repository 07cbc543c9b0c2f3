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

// Package linked implements linked variables: for every variable, the set of other variables it
// is linked to (by assignment, by sharing mutable content, or by sharing hidden content) with the
// strength of each link, as a delayable value.
package linked

import (
	"fmt"

	"go.uber.org/immutaway/delay"
)

// Strength is the strength of a link between two variables. Lower values are stronger links.
type Strength uint8

const (
	// StaticallyAssigned: the variables point to the same object by a direct assignment.
	StaticallyAssigned Strength = iota
	// Assigned: the variables may point to the same object.
	Assigned
	// Dependent: modifying one may modify the other's accessible content.
	Dependent
	// IsHCOf: one is part of the hidden content of the other.
	IsHCOf
	// CommonHC: the variables share hidden content.
	CommonHC
	// Independent: no link. It never appears in a Variables value.
	Independent
)

var _strengthNames = [...]string{
	StaticallyAssigned: "statically_assigned",
	Assigned:           "assigned",
	Dependent:          "dependent",
	IsHCOf:             "is_hc_of",
	CommonHC:           "common_hc",
	Independent:        "independent",
}

func (s Strength) String() string {
	if int(s) < len(_strengthNames) {
		return _strengthNames[s]
	}
	return fmt.Sprintf("Strength(%d)", s)
}

// IsAssignedOrDependent reports whether the link allows modifications to travel between the variables.
func (s Strength) IsAssignedOrDependent() bool { return s <= Dependent }

// Level is a delayable link strength.
type Level struct {
	strength Strength
	causes   delay.Causes
}

// Done returns a level of known strength.
func Done(s Strength) Level { return Level{strength: s} }

// DelayedLevel returns a level whose strength is not known yet.
func DelayedLevel(causes delay.Causes) Level {
	if causes.IsEmpty() {
		panic("a delayed link level must carry at least one cause of delay")
	}
	return Level{strength: Dependent, causes: causes}
}

// IsDone reports whether the strength is known.
func (l Level) IsDone() bool { return l.causes.IsEmpty() }

// Strength returns the strength of a done level; it panics on a delayed one.
func (l Level) Strength() Strength {
	if !l.IsDone() {
		panic("strength of delayed link level")
	}
	return l.strength
}

// Causes returns the causes of a delayed level.
func (l Level) Causes() delay.Causes { return l.causes }

// Equal compares two levels.
func (l Level) Equal(o Level) bool {
	if l.IsDone() != o.IsDone() {
		return false
	}
	if l.IsDone() {
		return l.strength == o.strength
	}
	return l.causes.Equal(o.causes)
}

// stronger returns the stronger of two levels. A static assignment is never weakened, not even
// by a delay: once statically assigned, always statically assigned.
func stronger(a, b Level) Level {
	if a.IsDone() && a.strength == StaticallyAssigned {
		return a
	}
	if b.IsDone() && b.strength == StaticallyAssigned {
		return b
	}
	if !a.IsDone() || !b.IsDone() {
		return DelayedLevel(a.causes.Merge(b.causes))
	}
	if b.strength < a.strength {
		return b
	}
	return a
}

// weaker returns the weaker of two levels; delays propagate.
func weaker(a, b Level) Level {
	if !a.IsDone() || !b.IsDone() {
		return DelayedLevel(a.causes.Merge(b.causes))
	}
	if b.strength > a.strength {
		return b
	}
	return a
}

func (l Level) String() string {
	if !l.IsDone() {
		return "<delayed>"
	}
	return l.strength.String()
}
