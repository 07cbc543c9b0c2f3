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

package schedule

import (
	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/property"
)

// View is the read-only state of a unit after one of its iterations.
type View struct {
	Iteration  int
	Unit       delay.UnitKey
	Name       string
	Status     delay.AnalysisStatus
	Properties property.Map
}

// Observer is notified after every iteration of every unit. Observers are called from the
// scheduling goroutine, in stable unit order, and cannot influence the analysis.
type Observer interface {
	Observe(view View)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(view View)

// Observe implements Observer.
func (f ObserverFunc) Observe(view View) { f(view) }
