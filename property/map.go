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

package property

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/immutaway/delay"
)

// MonotonicityError is returned when a property that is already done is given another value.
// It signals a defect in the analyser, never a finding about the analysed program.
type MonotonicityError struct {
	Kind     Kind
	Previous DV
	Next     DV
}

func (e *MonotonicityError) Error() string {
	return fmt.Sprintf("property %s changed from %s to %s after being done",
		e.Kind, e.Kind.Label(e.Previous), e.Kind.Label(e.Next))
}

// Map holds the values of a number of property kinds. The zero Map is empty and ready to use.
type Map struct {
	values map[Kind]DV
}

// NewMap returns a map holding the given pairs; it panics on an odd number of arguments.
func NewMap(pairs ...any) Map {
	if len(pairs)%2 != 0 {
		panic("NewMap expects kind/value pairs")
	}
	var m Map
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(Kind), pairs[i+1].(DV))
	}
	return m
}

// Get returns the value for a kind and whether it is present.
func (m Map) Get(k Kind) (DV, bool) {
	v, ok := m.values[k]
	return v, ok
}

// GetOrDefault returns the value for a kind, or def when absent.
func (m Map) GetOrDefault(k Kind, def DV) DV {
	if v, ok := m.values[k]; ok {
		return v
	}
	return def
}

// Has reports whether the kind is present.
func (m Map) Has(k Kind) bool {
	_, ok := m.values[k]
	return ok
}

// Set stores a value, overwriting whatever was there.
func (m *Map) Set(k Kind, v DV) {
	v.check()
	if m.values == nil {
		m.values = make(map[Kind]DV)
	}
	m.values[k] = v
}

// SetMonotone stores a value unless this would change a done value: storing a delayed value
// over a done one keeps the done one, and storing a different done value is an error.
func (m *Map) SetMonotone(k Kind, v DV) error {
	prev, ok := m.Get(k)
	if ok && prev.IsDone() {
		if v.IsDone() && v.value != prev.value {
			return &MonotonicityError{Kind: k, Previous: prev, Next: v}
		}
		return nil
	}
	m.Set(k, v)
	return nil
}

// Delete removes a kind.
func (m *Map) Delete(k Kind) {
	delete(m.values, k)
}

// Len returns the number of kinds present.
func (m Map) Len() int { return len(m.values) }

// Kinds returns the kinds present, in stable order.
func (m Map) Kinds() []Kind {
	kinds := make([]Kind, 0, len(m.values))
	for k := range m.values {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Clone returns an independent copy.
func (m Map) Clone() Map {
	if m.values == nil {
		return Map{}
	}
	c := make(map[Kind]DV, len(m.values))
	for k, v := range m.values {
		c[k] = v
	}
	return Map{values: c}
}

// Causes returns the union of the causes of all delayed values.
func (m Map) Causes() delay.Causes {
	causes := delay.NoCauses
	for _, k := range m.Kinds() {
		causes = causes.Merge(m.values[k].Causes())
	}
	return causes
}

// Delayed returns the kinds whose value is delayed, in stable order.
func (m Map) Delayed() []Kind {
	var kinds []Kind
	for _, k := range m.Kinds() {
		if m.values[k].IsDelayed() {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// IsDone reports whether every value present is done.
func (m Map) IsDone() bool {
	for _, v := range m.values {
		if v.IsDelayed() {
			return false
		}
	}
	return true
}

// Equal reports whether both maps hold the same kinds with equal values.
func (m Map) Equal(o Map) bool {
	if len(m.values) != len(o.values) {
		return false
	}
	for k, v := range m.values {
		ov, ok := o.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// IsProgressOver reports whether any value of m is more known than the same kind in prev.
func (m Map) IsProgressOver(prev Map) bool {
	for k, v := range m.values {
		pv, ok := prev.Get(k)
		if !ok || v.IsProgressOver(pv) {
			return true
		}
	}
	return false
}

// Labels renders every value with its domain names, keyed by kind name.
func (m Map) Labels() map[string]string {
	labels := make(map[string]string, len(m.values))
	for k, v := range m.values {
		labels[k.String()] = k.Label(v)
	}
	return labels
}

func (m Map) String() string {
	kinds := m.Kinds()
	strs := make([]string, len(kinds))
	for i, k := range kinds {
		strs[i] = k.String() + "=" + k.Label(m.values[k])
	}
	return "{" + strings.Join(strs, ", ") + "}"
}
