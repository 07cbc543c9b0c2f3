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

// StatusKind enumerates the outcomes of one iteration of an analysis step.
type StatusKind uint8

const (
	// StatusNotYetExecuted is the status of a step that never ran.
	StatusNotYetExecuted StatusKind = iota
	// StatusDone is terminal: the step will produce no further information.
	StatusDone
	// StatusProgress means the step is still delayed but learned something in this iteration.
	StatusProgress
	// StatusRunAgain means the step is delayed and learned nothing new in this iteration.
	StatusRunAgain
)

var _statusNames = [...]string{
	StatusNotYetExecuted: "NOT_YET_EXECUTED",
	StatusDone:           "DONE",
	StatusProgress:       "PROGRESS",
	StatusRunAgain:       "RUN_AGAIN",
}

func (k StatusKind) String() string {
	if int(k) < len(_statusNames) {
		return _statusNames[k]
	}
	return fmt.Sprintf("StatusKind(%d)", k)
}

// AnalysisStatus is the outcome of one iteration of a statement, a unit or a whole round.
// Delayed statuses (Progress and RunAgain) carry the causes they are waiting for.
type AnalysisStatus struct {
	kind   StatusKind
	causes Causes
}

// DoneStatus is the terminal status.
var DoneStatus = AnalysisStatus{kind: StatusDone}

// NotYetExecutedStatus is the status of a step that never ran.
var NotYetExecutedStatus = AnalysisStatus{kind: StatusNotYetExecuted}

// Delays returns a RunAgain status waiting on the given causes; empty causes yield DoneStatus.
func Delays(causes Causes) AnalysisStatus {
	if causes.IsEmpty() {
		return DoneStatus
	}
	return AnalysisStatus{kind: StatusRunAgain, causes: causes}
}

// Kind returns the kind of the status.
func (s AnalysisStatus) Kind() StatusKind { return s.kind }

// Causes returns the causes of a delayed status.
func (s AnalysisStatus) Causes() Causes { return s.causes }

// IsDone reports whether the status is terminal.
func (s AnalysisStatus) IsDone() bool { return s.kind == StatusDone }

// IsDelayed reports whether the status is Progress or RunAgain.
func (s AnalysisStatus) IsDelayed() bool { return s.kind == StatusProgress || s.kind == StatusRunAgain }

// IsProgress reports whether a delayed status learned something in its iteration.
func (s AnalysisStatus) IsProgress() bool { return s.kind == StatusProgress }

// WithProgress marks a delayed status as having made progress. Done stays Done.
func (s AnalysisStatus) WithProgress(progress bool) AnalysisStatus {
	if !s.IsDelayed() {
		return s
	}
	if progress {
		s.kind = StatusProgress
	} else {
		s.kind = StatusRunAgain
	}
	return s
}

// Combine merges the statuses of two steps executed in the same iteration: the result is Done
// only if both are, delayed statuses merge their causes, and progress on either side is progress.
func (s AnalysisStatus) Combine(o AnalysisStatus) AnalysisStatus {
	switch {
	case s.kind == StatusNotYetExecuted:
		return o
	case o.kind == StatusNotYetExecuted:
		return s
	case s.IsDone() && o.IsDone():
		return DoneStatus
	case s.IsDone():
		return o
	case o.IsDone():
		return s
	}
	kind := StatusRunAgain
	if s.kind == StatusProgress || o.kind == StatusProgress {
		kind = StatusProgress
	}
	return AnalysisStatus{kind: kind, causes: s.causes.Merge(o.causes)}
}

func (s AnalysisStatus) String() string {
	if s.IsDelayed() {
		return s.kind.String() + "(" + s.causes.String() + ")"
	}
	return s.kind.String()
}
