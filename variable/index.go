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

package variable

// Stage is the stage of a statement's analysis a snapshot of a variable belongs to.
type Stage uint8

const (
	// Initial is the state inherited from the previous statement.
	Initial Stage = iota
	// Evaluation is the state after evaluating the statement's own expression(s).
	Evaluation
	// Merge is the state after merging the sub-blocks of a compound statement.
	Merge
)

var _stageSuffixes = [...]string{
	Initial:    "",
	Evaluation: "-E",
	Merge:      ":M",
}

func (s Stage) String() string {
	switch s {
	case Initial:
		return "initial"
	case Evaluation:
		return "evaluation"
	default:
		return "merge"
	}
}

// Index is an ordering marker: a statement index ("1.0.2", with every segment padded to the
// width of its block) followed by a stage suffix. Plain string comparison of two indices is the
// order of statement traversal: the evaluation of "1" ("1-E") precedes its first sub-block
// statement ("1.0.0"), which precedes the merge of "1" ("1:M").
type Index string

// NotRead is the read marker of a variable that has not been read yet.
const NotRead Index = ""

// NotAssigned is the assignment marker of a variable that has not been assigned yet.
const NotAssigned Index = ""

// At returns the marker of a stage of a statement.
func At(statement string, stage Stage) Index {
	return Index(statement + _stageSuffixes[stage])
}

// Before reports whether i comes strictly before j in traversal order. Unset markers come first.
func (i Index) Before(j Index) bool {
	return i < j
}

// IsSet reports whether the marker has been set.
func (i Index) IsSet() bool { return i != "" }
