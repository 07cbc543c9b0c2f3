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

// Package property defines the discrete values (DV) derived by the analyser, the closed set of
// property kinds with their combination rules, and the property maps attached to variables,
// methods, parameters, fields and types.
package property

import (
	"fmt"
	"strconv"

	"go.uber.org/immutaway/delay"
)

// DV is a discrete value: a small ordered integer when done, or a set of causes when delayed.
// The zero DV is invalid; use Of or Delayed.
type DV struct {
	value  int
	causes delay.Causes
	valid  bool
}

// Of returns a done DV.
func Of(value int) DV {
	return DV{value: value, valid: true}
}

// Delayed returns a delayed DV; the causes must not be empty.
func Delayed(causes delay.Causes) DV {
	if causes.IsEmpty() {
		panic("a delayed DV must carry at least one cause of delay")
	}
	return DV{causes: causes, valid: true}
}

// Bool returns True or False.
func Bool(b bool) DV {
	if b {
		return True
	}
	return False
}

// Boolean values.
var (
	False = Of(0)
	True  = Of(1)
)

// Nullability levels.
const (
	Nullable                  = 1
	EffectivelyNotNull        = 2
	EffectivelyContentNotNull = 3
)

// Immutability levels.
const (
	Mutable              = 1
	FinalFields          = 2
	ImmutableHC          = 3
	EffectivelyImmutable = 4
)

// Independence levels.
const (
	Dependent        = 1
	IndependentHC    = 2
	FullyIndependent = 3
)

// IsValid reports whether the DV was created through a constructor.
func (d DV) IsValid() bool { return d.valid }

// IsDone reports whether the DV holds a value.
func (d DV) IsDone() bool {
	d.check()
	return d.causes.IsEmpty()
}

// IsDelayed reports whether the DV is delayed.
func (d DV) IsDelayed() bool { return !d.IsDone() }

// Value returns the value of a done DV; it panics on a delayed one.
func (d DV) Value() int {
	if d.IsDelayed() {
		panic(fmt.Sprintf("value of delayed DV: %s", d.causes))
	}
	return d.value
}

// Causes returns the causes of a delayed DV.
func (d DV) Causes() delay.Causes { return d.causes }

// IsTrue reports whether the DV is done and True.
func (d DV) IsTrue() bool { return d.IsDone() && d.value == True.value }

// IsFalse reports whether the DV is done and False.
func (d DV) IsFalse() bool { return d.IsDone() && d.value == False.value }

// Ge reports whether d is done and at least v.
func (d DV) Ge(v int) bool { return d.IsDone() && d.value >= v }

// Lt reports whether d is done and below v.
func (d DV) Lt(v int) bool { return d.IsDone() && d.value < v }

// Equal compares two DVs: done values by value, delayed values by causes.
func (d DV) Equal(o DV) bool {
	if d.IsDone() != o.IsDone() {
		return false
	}
	if d.IsDone() {
		return d.value == o.value
	}
	return d.causes.Equal(o.causes)
}

// Min returns the smaller of two done values; a delay on either side delays the result.
func (d DV) Min(o DV) DV {
	if d.IsDelayed() || o.IsDelayed() {
		return Delayed(d.causes.Merge(o.causes))
	}
	if o.value < d.value {
		return o
	}
	return d
}

// Max returns the larger of two done values; a delay on either side delays the result.
func (d DV) Max(o DV) DV {
	if d.IsDelayed() || o.IsDelayed() {
		return Delayed(d.causes.Merge(o.causes))
	}
	if o.value > d.value {
		return o
	}
	return d
}

// IsProgressOver reports whether d is more known than prev: done where prev was delayed, or
// delayed on other causes.
func (d DV) IsProgressOver(prev DV) bool {
	if !prev.IsValid() {
		return true
	}
	if d.IsDone() {
		return prev.IsDelayed()
	}
	return prev.IsDelayed() && !d.causes.Equal(prev.causes)
}

func (d DV) check() {
	if !d.valid {
		panic("use of an uninitialized DV")
	}
}

func (d DV) String() string {
	if !d.valid {
		return "<invalid>"
	}
	if d.IsDelayed() {
		return "<delayed:" + d.causes.String() + ">"
	}
	return strconv.Itoa(d.value)
}
