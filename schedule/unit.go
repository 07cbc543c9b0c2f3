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

// SharedState is what the scheduler shares with every unit during an iteration. Units must
// treat it as read-only.
type SharedState struct {
	// Iteration is the number of the current round, starting at 1.
	Iteration int
	// Parallel is true when the units of a round run concurrently.
	Parallel bool
}

// Unit is one analysis unit: a field, a method (with its parameters) or a type. A unit reads
// the committed state of other units and writes to its own pending state; Commit publishes the
// pending state. Analyse is never called concurrently on the same unit, but may be called
// concurrently on different units, which then only read committed state.
type Unit interface {
	// Key is the stable identifier of the unit.
	Key() delay.UnitKey
	// Name is the human-readable name of the unit, e.g. "Parity.isEven".
	Name() string
	// Analyse runs one iteration. The status is Done once the unit is finished, Progress when the
	// iteration learned something, RunAgain otherwise.
	Analyse(shared SharedState) (delay.AnalysisStatus, error)
	// Commit publishes the pending state to the other units.
	Commit()
	// Causes returns what the committed state of the unit is delayed on.
	Causes() delay.Causes
	// Force substitutes the conservative default of the property at location, which lies in this
	// unit, into both the pending and the committed state. It reports false when the location
	// cannot be forced.
	Force(location delay.Location) bool
	// Properties returns a copy of the committed properties of the unit itself.
	Properties() property.Map
}
