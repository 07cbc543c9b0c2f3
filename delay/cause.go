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

// Package delay implements the "not yet known" half of every derived value in the analyser: the
// causes of delay, the registry that interns them, cause sets, the generic delayable value and
// the analysis status of a unit of analysis.
package delay

import (
	"cmp"
	"fmt"
	"sync"
)

// UnitKind is the kind of analysis unit a location belongs to.
type UnitKind uint8

const (
	// UnitNone is used for the reserved "not yet started" location only.
	UnitNone UnitKind = iota
	// UnitField is a field analyser.
	UnitField
	// UnitMethod is a method analyser; parameters and statements of the method belong to it.
	UnitMethod
	// UnitType is a type analyser.
	UnitType
)

var _unitKindNames = [...]string{
	UnitNone:   "none",
	UnitField:  "field",
	UnitMethod: "method",
	UnitType:   "type",
}

func (k UnitKind) String() string {
	if int(k) < len(_unitKindNames) {
		return _unitKindNames[k]
	}
	return fmt.Sprintf("UnitKind(%d)", k)
}

// UnitKey identifies an analysis unit by kind and arena index in the program model. Keys are
// plain values so that cause sets never hold references to live analysers.
type UnitKey struct {
	Kind  UnitKind
	Index int
}

func (k UnitKey) String() string {
	return fmt.Sprintf("%s#%d", k.Kind, k.Index)
}

// Compare orders unit keys by kind (fields, then methods, then types), then by arena index. This
// is the stable identifier order used for every deterministic tie-break.
func (k UnitKey) Compare(o UnitKey) int {
	if n := cmp.Compare(k.Kind, o.Kind); n != 0 {
		return n
	}
	return cmp.Compare(k.Index, o.Index)
}

// Location is the program element and property a delay originates from.
type Location struct {
	Unit UnitKey
	// Detail narrows the location inside the unit, e.g. a parameter name or a statement index.
	Detail string
	// Property is the name of the property that is not yet known.
	Property string
}

func (l Location) String() string {
	s := l.Unit.String()
	if l.Detail != "" {
		s += ":" + l.Detail
	}
	if l.Property != "" {
		s += "@" + l.Property
	}
	return s
}

// Compare provides the total order used whenever causes must be listed deterministically.
func (l Location) Compare(o Location) int {
	if n := l.Unit.Compare(o.Unit); n != 0 {
		return n
	}
	if n := cmp.Compare(l.Detail, o.Detail); n != 0 {
		return n
	}
	return cmp.Compare(l.Property, o.Property)
}

// CauseKind classifies why something is delayed. It is used for diagnosis only.
type CauseKind uint8

const (
	// NotYetStarted marks a value that has not been computed even once.
	NotYetStarted CauseKind = iota
	// ValueOf waits for the value of a variable or expression.
	ValueOf
	// PropertyOf waits for a property of another program element.
	PropertyOf
	// Linking waits for the linked variables of a variable.
	Linking
	// CallCycle is attached when a method waits on a method that is part of a call cycle.
	CallCycle
	// Condition waits for the value of a condition.
	Condition
	// FieldValues waits for the values assigned to a field.
	FieldValues
	// Implementation waits for the analysis of an implementation of an interface.
	Implementation
)

var _causeKindNames = [...]string{
	NotYetStarted:  "not_yet_started",
	ValueOf:        "value",
	PropertyOf:     "property",
	Linking:        "linking",
	CallCycle:      "call_cycle",
	Condition:      "condition",
	FieldValues:    "field_values",
	Implementation: "implementation",
}

func (k CauseKind) String() string {
	if int(k) < len(_causeKindNames) {
		return _causeKindNames[k]
	}
	return fmt.Sprintf("CauseKind(%d)", k)
}

// Cause is a single cause of delay.
type Cause struct {
	Location Location
	Kind     CauseKind
}

func (c Cause) String() string {
	return c.Kind.String() + "[" + c.Location.String() + "]"
}

// Compare orders causes by location, then kind.
func (c Cause) Compare(o Cause) int {
	if n := c.Location.Compare(o.Location); n != 0 {
		return n
	}
	return cmp.Compare(c.Kind, o.Kind)
}

// _notYetStartedID is the identifier reserved for the "not yet started" cause in every registry.
const _notYetStartedID = 0

// Registry interns causes of delay into small integers so that cause sets can be represented as
// sparse bit sets. A registry belongs to exactly one analysis run; units of the same run may
// intern concurrently.
type Registry struct {
	mu     sync.RWMutex
	ids    map[Cause]int
	causes []Cause
}

// NewRegistry returns a registry that already holds the reserved "not yet started" cause.
func NewRegistry() *Registry {
	r := &Registry{ids: make(map[Cause]int)}
	r.intern(Cause{Kind: NotYetStarted})
	return r
}

// ID returns the identifier of the given cause, interning it if necessary.
func (r *Registry) ID(c Cause) int {
	r.mu.RLock()
	id, ok := r.ids[c]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intern(c)
}

// intern must be called with the write lock held (or before the registry is shared).
func (r *Registry) intern(c Cause) int {
	if id, ok := r.ids[c]; ok {
		return id
	}
	id := len(r.causes)
	r.ids[c] = id
	r.causes = append(r.causes, c)
	return id
}

// Cause returns the cause interned under the given identifier.
func (r *Registry) Cause(id int) Cause {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.causes) {
		panic(fmt.Sprintf("unknown cause of delay id %d", id))
	}
	return r.causes[id]
}

// Len returns the number of causes interned so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.causes)
}

// Of returns a cause set holding the single cause (location, kind).
func (r *Registry) Of(location Location, kind CauseKind) Causes {
	return r.single(r.ID(Cause{Location: location, Kind: kind}))
}

// NotYetStarted returns the cause set holding the reserved "not yet started" marker.
func (r *Registry) NotYetStarted() Causes {
	return r.single(_notYetStartedID)
}
