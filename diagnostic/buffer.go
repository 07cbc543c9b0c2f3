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

package diagnostic

import "slices"

// Buffer holds the messages of one analysis unit. Messages are tentative: the unit resets its
// buffer at the start of every iteration and hands the messages to the Engine only once it is
// done, so that a message planned during an early iteration can be retracted by a later one.
// A Buffer is owned by its unit and is not safe for concurrent use.
type Buffer struct {
	messages []Message
}

// Reset drops every tentative message.
func (b *Buffer) Reset() {
	b.messages = b.messages[:0]
}

// Add records a tentative message.
func (b *Buffer) Add(m Message) {
	b.messages = append(b.messages, m)
}

// Len returns the number of tentative messages.
func (b *Buffer) Len() int { return len(b.messages) }

// Messages returns the tentative messages, sorted and without duplicates.
func (b *Buffer) Messages() []Message {
	return sortUnique(b.messages)
}

func sortUnique(messages []Message) []Message {
	sorted := slices.Clone(messages)
	slices.SortFunc(sorted, Message.Compare)
	return slices.Compact(sorted)
}
