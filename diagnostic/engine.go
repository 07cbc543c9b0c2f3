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

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Engine collects the committed messages of all units.
type Engine struct {
	mu       sync.Mutex
	messages []Message
	// noLint maps "Type.method" to the nolint directives of the method.
	noLint map[string][]string
}

// NewEngine creates an engine; noLint maps "Type.method" to the message kinds suppressed there.
func NewEngine(noLint map[string][]string) *Engine {
	return &Engine{noLint: noLint}
}

// Commit adds the final messages of a unit that is done. It may be called concurrently.
func (e *Engine) Commit(messages []Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range messages {
		if e.suppressed(m) {
			continue
		}
		e.messages = append(e.messages, m)
	}
}

func (e *Engine) suppressed(m Message) bool {
	directives, ok := e.noLint[m.Location.Type+"."+m.Location.Method]
	return ok && noLintContains(directives, m.Kind)
}

// Messages returns the committed messages, sorted by location, without duplicates. The order
// does not depend on the order in which units committed.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sortUnique(e.messages)
}

// Group is a message together with the other locations where the same finding (same kind and
// subject in the same method) was made.
type Group struct {
	Message
	Similar []Location
}

func (g Group) String() string {
	if len(g.Similar) == 0 {
		return g.Message.String()
	}
	strs := make([]string, len(g.Similar))
	for i, l := range g.Similar {
		strs[i] = fmt.Sprintf("%q", l.String())
	}
	return fmt.Sprintf("%s\n\t(same finding at %d other place(s): %s)", g.Message, len(g.Similar), strings.Join(strs, ", "))
}

// GroupMessages groups sorted messages with the same kind and subject in the same method under
// the first of them.
func GroupMessages(messages []Message) []Group {
	type key struct {
		kind                  Kind
		typeName, method, sub string
	}
	index := make(map[key]int)
	var groups []Group
	for _, m := range messages {
		k := key{kind: m.Kind, typeName: m.Location.Type, method: m.Location.Method, sub: m.Subject}
		if i, ok := index[k]; ok {
			groups[i].Similar = append(groups[i].Similar, m.Location)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, Group{Message: m})
	}
	return groups
}

// Fprint writes messages to w, one per line (or per group when grouping). With pretty set, the
// severity is coloured.
func Fprint(w io.Writer, messages []Message, pretty, grouping bool) error {
	var groups []Group
	if grouping {
		groups = GroupMessages(messages)
	} else {
		groups = make([]Group, len(messages))
		for i, m := range messages {
			groups[i] = Group{Message: m}
		}
	}

	warning, failure := color.New(color.FgYellow, color.Bold), color.New(color.FgRed, color.Bold)
	if pretty {
		warning.EnableColor()
		failure.EnableColor()
	} else {
		warning.DisableColor()
		failure.DisableColor()
	}
	for _, g := range groups {
		c := warning
		if g.Kind.Severity() == Error {
			c = failure
		}
		if _, err := fmt.Fprintf(w, "%s: %s: %s\n", g.Location, c.Sprint(g.Kind.Severity()), g.Text()); err != nil {
			return err
		}
		if len(g.Similar) > 0 {
			locs := make([]string, len(g.Similar))
			for i, l := range g.Similar {
				locs[i] = l.String()
			}
			slices.Sort(locs)
			if _, err := fmt.Fprintf(w, "\t(same finding at %s)\n", strings.Join(locs, ", ")); err != nil {
				return err
			}
		}
	}
	return nil
}
