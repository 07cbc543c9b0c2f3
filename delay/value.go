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

import "fmt"

// Value is a lattice cell that is either done, holding a concrete value, or delayed, holding a
// non-empty set of causes. The zero Value is invalid: it is neither done nor delayed, and any
// attempt to use it panics. There is no sentinel "unknown" value of T.
type Value[T any] struct {
	value  T
	causes Causes
	done   bool
}

// Done returns a done value.
func Done[T any](v T) Value[T] {
	return Value[T]{value: v, done: true}
}

// Delayed returns a delayed value. The cause set must not be empty.
func Delayed[T any](causes Causes) Value[T] {
	if causes.IsEmpty() {
		panic("a delayed value must carry at least one cause of delay")
	}
	return Value[T]{causes: causes}
}

// IsValid reports whether v was created through Done or Delayed.
func (v Value[T]) IsValid() bool {
	return v.done || !v.causes.IsEmpty()
}

// IsDone reports whether v holds a concrete value.
func (v Value[T]) IsDone() bool {
	v.check()
	return v.done
}

// IsDelayed reports whether v is delayed.
func (v Value[T]) IsDelayed() bool {
	return !v.IsDone()
}

// Get returns the value and whether it is done.
func (v Value[T]) Get() (T, bool) {
	v.check()
	return v.value, v.done
}

// MustGet returns the value of a done Value and panics otherwise.
func (v Value[T]) MustGet() T {
	if !v.IsDone() {
		panic(fmt.Sprintf("value is delayed: %s", v.causes))
	}
	return v.value
}

// Causes returns the causes of delay; it is empty iff the value is done.
func (v Value[T]) Causes() Causes {
	return v.causes
}

func (v Value[T]) check() {
	if !v.IsValid() {
		panic("use of an uninitialized delay.Value")
	}
}

func (v Value[T]) String() string {
	if !v.IsValid() {
		return "<invalid>"
	}
	if v.done {
		return fmt.Sprint(v.value)
	}
	return "<delayed:" + v.causes.String() + ">"
}

// Combine merges two cells. If either is delayed, the result is delayed with the union of both
// cause sets (see Causes.Merge for the "not yet started" rule); if both are done the join
// function decides.
func Combine[T any](a, b Value[T], join func(T, T) T) Value[T] {
	a.check()
	b.check()
	if a.done && b.done {
		return Done(join(a.value, b.value))
	}
	return Delayed[T](a.causes.Merge(b.causes))
}

// CombineAll folds Combine over a non-empty list of cells.
func CombineAll[T any](values []Value[T], join func(T, T) T) Value[T] {
	if len(values) == 0 {
		panic("CombineAll requires at least one value")
	}
	acc := values[0]
	for _, v := range values[1:] {
		acc = Combine(acc, v, join)
	}
	return acc
}

// Map applies f to a done value and carries the causes of a delayed one.
func Map[T, U any](v Value[T], f func(T) U) Value[U] {
	v.check()
	if v.done {
		return Done(f(v.value))
	}
	return Delayed[U](v.causes)
}

// IsProgressOver reports whether v is strictly more known than the previous iteration's value
// prev: either v is done where prev was delayed, or both are delayed but on a different set of
// causes. A done value compared to a done value is never progress.
func (v Value[T]) IsProgressOver(prev Value[T]) bool {
	v.check()
	if !prev.IsValid() {
		return true
	}
	if v.done {
		return !prev.done
	}
	if prev.done {
		return false
	}
	return !v.causes.Equal(prev.causes)
}
