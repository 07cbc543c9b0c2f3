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

// Package immutawaytest implements utility functions for tests.
package immutawaytest

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/immutaway"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/schedule"
)

// Comment prefixes of the expectations written in program fixtures.
const (
	// ExpectPrefix starts a comment listing expected values of an element:
	// "# expect: Holder.s final=true immutable=immutable @Final".
	ExpectPrefix = "# expect:"
	// WantPrefix starts a comment naming an expected message: "# want: Dead.m @1 unreachable_statement".
	WantPrefix = "# want:"
)

// Expectations are the expected values gathered from the comments of a fixture.
type Expectations struct {
	// Elements maps an element name to its expected "property=value" pairs and "@Annotation"s.
	Elements map[string][]string
	// Messages are the expected messages as "<location> <kind>", in file order.
	Messages []string
}

// FindExpectedValues inspects a fixture and gathers the expected values from its comments.
func FindExpectedValues(data []byte) Expectations {
	exp := Expectations{Elements: make(map[string][]string)}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if text, ok := strings.CutPrefix(line, ExpectPrefix); ok {
			fields := strings.Fields(text)
			if len(fields) == 0 {
				continue
			}
			// An element listed without values is still expected to exist.
			exp.Elements[fields[0]] = append(exp.Elements[fields[0]], fields[1:]...)
			continue
		}
		if text, ok := strings.CutPrefix(line, WantPrefix); ok {
			if text = strings.Join(strings.Fields(text), " "); text != "" {
				exp.Messages = append(exp.Messages, text)
			}
		}
	}
	return exp
}

// LoadFixture reads a program fixture and returns the program with its expectations.
func LoadFixture(t testing.TB, path string) (*model.Program, Expectations) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	program, err := model.Parse(data)
	require.NoError(t, err, "parse %s", path)
	return program, FindExpectedValues(data)
}

// CheckExpectedValues checks the result of an analysis against the expectations of a fixture.
// Messages must match exactly; elements only need to carry the listed values.
func CheckExpectedValues(t testing.TB, res *immutaway.Result, exp Expectations) {
	t.Helper()

	got := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		got = append(got, m.Location.String()+" "+m.Kind.String())
	}
	require.ElementsMatch(t, exp.Messages, got, "messages")

	for name, values := range exp.Elements {
		RequireValues(t, res, name, values...)
	}
}

// RequireValues requires an element of the result to carry the given "property=value" pairs and
// "@Annotation"s.
func RequireValues(t testing.TB, res *immutaway.Result, name string, values ...string) {
	t.Helper()

	e, ok := res.Element(name)
	require.True(t, ok, "no element %q in the result", name)
	for _, v := range values {
		if strings.HasPrefix(v, "@") {
			require.Contains(t, e.Annotations, v, "annotations of %s", name)
			continue
		}
		prop, want, ok := strings.Cut(v, "=")
		require.True(t, ok, "malformed expectation %q of %s", v, name)
		got, found := e.Property(prop)
		require.True(t, found, "%s has no property %s", name, prop)
		require.Equal(t, want, got, "%s of %s", prop, name)
	}
}

// Recorder is an observer keeping every view it is notified of.
type Recorder struct {
	mu    sync.Mutex
	views []schedule.View
	done  map[string]int
}

var _ schedule.Observer = (*Recorder)(nil)

// Observe implements schedule.Observer.
func (r *Recorder) Observe(view schedule.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.views = append(r.views, view)
	if !view.Status.IsDone() {
		return
	}
	if r.done == nil {
		r.done = make(map[string]int)
	}
	if _, ok := r.done[view.Name]; !ok {
		r.done[view.Name] = view.Iteration
	}
}

// Views returns the views recorded so far, in notification order.
func (r *Recorder) Views() []schedule.View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schedule.View(nil), r.views...)
}

// DoneAt returns the iteration in which the named unit first reported being done.
func (r *Recorder) DoneAt(name string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.done[name]
	return it, ok
}
