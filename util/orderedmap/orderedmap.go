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

// Package orderedmap implements a map that remembers the insertion order of its keys, for every
// place where iteration order ends up in analysis results.
package orderedmap

import "slices"

// OrderedMap is a map whose iteration order is the insertion order of its keys.
type OrderedMap[K comparable, V any] struct {
	inner map[K]V
	keys  []K
}

// New returns an empty map.
func New[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{inner: make(map[K]V)}
}

// Load returns the value stored for key, and whether it was present.
func (m *OrderedMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.inner[key]
	return v, ok
}

// Value returns the value stored for key, or the zero value.
func (m *OrderedMap[K, V]) Value(key K) V {
	return m.inner[key]
}

// Store sets the value of key; a new key goes last.
func (m *OrderedMap[K, V]) Store(key K, value V) {
	if _, ok := m.inner[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.inner[key] = value
}

// Delete removes key, keeping the order of the other keys.
func (m *OrderedMap[K, V]) Delete(key K) {
	if _, ok := m.inner[key]; !ok {
		return
	}
	delete(m.inner, key)
	m.keys = slices.DeleteFunc(m.keys, func(k K) bool { return k == key })
}

// Len returns the number of keys.
func (m *OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *OrderedMap[K, V]) Keys() []K {
	return slices.Clone(m.keys)
}

// Clone returns a shallow copy: values are copied, not deep-cloned.
func (m *OrderedMap[K, V]) Clone() *OrderedMap[K, V] {
	c := &OrderedMap[K, V]{inner: make(map[K]V, len(m.inner)), keys: slices.Clone(m.keys)}
	for k, v := range m.inner {
		c.inner[k] = v
	}
	return c
}

// OrderedRange calls f for every key in insertion order until f returns false.
func (m *OrderedMap[K, V]) OrderedRange(f func(key K, value V) bool) {
	for _, k := range m.keys {
		if !f(k, m.inner[k]) {
			return
		}
	}
}
