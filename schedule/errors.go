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
	"fmt"
)

// StallError is returned when a round makes no progress and no delay cycle can be broken.
type StallError struct {
	Iteration int
	// Cycle is the cycle that was found but could not be broken, if any.
	Cycle string
	Stuck []StuckUnit
}

func (e *StallError) Error() string {
	if e.Cycle != "" {
		return fmt.Sprintf("analysis stalled in iteration %d: cannot break cycle %s; %d units are not done:\n%s",
			e.Iteration, e.Cycle, len(e.Stuck), describeStuck(e.Stuck))
	}
	return fmt.Sprintf("analysis stalled in iteration %d without a delay cycle; %d units are not done:\n%s",
		e.Iteration, len(e.Stuck), describeStuck(e.Stuck))
}

// IterationLimitError is returned when the analysis does not converge within the iteration limit.
type IterationLimitError struct {
	Limit int
	Stuck []StuckUnit
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("analysis did not converge within %d iterations; %d units are not done:\n%s",
		e.Limit, len(e.Stuck), describeStuck(e.Stuck))
}
