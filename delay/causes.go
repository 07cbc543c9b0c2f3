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

	"golang.org/x/tools/container/intsets"
)

// Causes is an immutable set of causes of delay. The zero value is the empty set, which means
// "no delay"; every delayed value carries a non-empty set. Operations never modify the receiver.
type Causes struct {
	registry *Registry
	set      *intsets.Sparse
}

// NoCauses is the empty cause set.
var NoCauses = Causes{}

func (r *Registry) single(id int) Causes {
	set := &intsets.Sparse{}
	set.Insert(id)
	return Causes{registry: r, set: set}
}

// IsEmpty reports whether the set holds no cause, i.e., whether the value it belongs to is done.
func (c Causes) IsEmpty() bool {
	return c.set == nil || c.set.IsEmpty()
}

// Len returns the number of causes in the set.
func (c Causes) Len() int {
	if c.set == nil {
		return 0
	}
	return c.set.Len()
}

// IsNotYetStarted reports whether the set holds the "not yet started" marker.
func (c Causes) IsNotYetStarted() bool {
	return c.set != nil && c.set.Has(_notYetStartedID)
}

// Merge returns the union of both sets. The "not yet started" marker is absorbing: merging with
// it yields the marker alone, because nothing meaningful can be said about a combination that
// involves a value that was never computed.
func (c Causes) Merge(o Causes) Causes {
	switch {
	case o.IsEmpty():
		return c
	case c.IsEmpty():
		return o
	case c.IsNotYetStarted():
		return c.registry.NotYetStarted()
	case o.IsNotYetStarted():
		return o.registry.NotYetStarted()
	}
	if c.registry != o.registry {
		panic("merging causes of delay from different registries")
	}
	if c.set.SubsetOf(o.set) {
		return o
	}
	if o.set.SubsetOf(c.set) {
		return c
	}
	set := &intsets.Sparse{}
	set.Union(c.set, o.set)
	return Causes{registry: c.registry, set: set}
}

// Without returns the set minus the causes located in the given unit.
func (c Causes) Without(unit UnitKey) Causes {
	if c.IsEmpty() {
		return c
	}
	set := &intsets.Sparse{}
	for _, id := range c.set.AppendTo(nil) {
		if c.registry.Cause(id).Location.Unit != unit {
			set.Insert(id)
		}
	}
	return Causes{registry: c.registry, set: set}
}

// Equal reports whether both sets hold exactly the same causes.
func (c Causes) Equal(o Causes) bool {
	if c.IsEmpty() || o.IsEmpty() {
		return c.IsEmpty() == o.IsEmpty()
	}
	return c.set.Equals(o.set)
}

// Contains reports whether the set holds a cause located at the given location.
func (c Causes) Contains(l Location) bool {
	return slices.ContainsFunc(c.Slice(), func(cause Cause) bool { return cause.Location == l })
}

// Slice returns the causes in deterministic order.
func (c Causes) Slice() []Cause {
	if c.IsEmpty() {
		return nil
	}
	ids := c.set.AppendTo(nil)
	causes := make([]Cause, len(ids))
	for i, id := range ids {
		causes[i] = c.registry.Cause(id)
	}
	slices.SortFunc(causes, Cause.Compare)
	return causes
}

// Units returns the distinct units the causes are located in, in deterministic order.
func (c Causes) Units() []UnitKey {
	var units []UnitKey
	for _, cause := range c.Slice() {
		if cause.Kind == NotYetStarted {
			continue
		}
		if !slices.Contains(units, cause.Location.Unit) {
			units = append(units, cause.Location.Unit)
		}
	}
	slices.SortFunc(units, UnitKey.Compare)
	return units
}

func (c Causes) String() string {
	if c.IsEmpty() {
		return "done"
	}
	causes := c.Slice()
	strs := make([]string, len(causes))
	for i, cause := range causes {
		strs[i] = cause.String()
	}
	return strings.Join(strs, ",")
}
