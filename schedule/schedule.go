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

// Package schedule drives the analysis units to a fixpoint. Units are run in rounds, in a
// stable order; a round in which no unit makes progress is a stall, which is resolved by
// breaking exactly one delay cycle on the cause graph.
package schedule

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/property"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures a Scheduler.
type Options struct {
	// Parallel runs the units of a round concurrently; their results are committed at the end of
	// the round. Otherwise every unit commits right after it ran.
	Parallel bool
	// MaxIterations is the number of rounds after which the analysis is aborted.
	MaxIterations int
	// Logger receives the progress of the analysis; nil means no logging.
	Logger *zap.Logger
	// Observers are notified after every iteration of every unit.
	Observers []Observer
}

// Break records the forced resolution of a delay cycle.
type Break struct {
	// Iteration is the round after which the cycle was broken.
	Iteration int
	// Cycle is the cycle that was broken, e.g. "method#0 -> method#1 -> method#0".
	Cycle string
	// Unit is the name of the unit whose property was forced.
	Unit string
	// Location is the forced property.
	Location delay.Location
	// Value is the label of the value that was substituted.
	Value string
}

func (b Break) String() string {
	return fmt.Sprintf("iteration %d: %s = %s (%s, cycle %s)", b.Iteration, b.Location, b.Value, b.Unit, b.Cycle)
}

// Result is the outcome of a successful run.
type Result struct {
	// Iterations is the number of rounds that were run.
	Iterations int
	// Breaks are the delay cycles that were broken, in order.
	Breaks []Break
}

// Scheduler runs units to a fixpoint.
type Scheduler struct {
	units  []Unit
	byKey  map[delay.UnitKey]Unit
	index  map[delay.UnitKey]int
	opts   Options
	logger *zap.Logger
	done   []bool
}

// New returns a scheduler for the units, which must be given in their stable order.
func New(units []Unit, opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	byKey := make(map[delay.UnitKey]Unit, len(units))
	index := make(map[delay.UnitKey]int, len(units))
	for i, u := range units {
		byKey[u.Key()] = u
		index[u.Key()] = i
	}
	return &Scheduler{
		units:  units,
		byKey:  byKey,
		index:  index,
		opts:   opts,
		logger: logger,
		done:   make([]bool, len(units)),
	}
}

// Run iterates until every unit is done. It fails with a *StallError when a stall cannot be
// resolved, with an *IterationLimitError when the iteration limit is exceeded, and with the
// error of a unit (including recovered panics) otherwise.
func (s *Scheduler) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.opts.MaxIterations > 0 && iteration > s.opts.MaxIterations {
			err := &IterationLimitError{Limit: s.opts.MaxIterations, Stuck: s.stuck()}
			s.logger.Error("iteration limit exceeded", zap.Int("limit", s.opts.MaxIterations), zap.Stringers("stuck", err.Stuck))
			return res, err
		}
		res.Iterations = iteration
		s.logger.Debug("iteration", zap.Int("iteration", iteration), zap.Int("remaining", s.remaining()))

		shared := SharedState{Iteration: iteration, Parallel: s.opts.Parallel}
		var (
			statuses []delay.AnalysisStatus
			err      error
		)
		if s.opts.Parallel {
			statuses, err = s.parallelRound(ctx, shared)
		} else {
			statuses, err = s.sequentialRound(shared)
		}
		if err != nil {
			return res, err
		}

		progress := false
		for i, st := range statuses {
			if s.done[i] {
				continue
			}
			if st.IsDone() {
				s.done[i] = true
				progress = true
			} else if st.IsProgress() {
				progress = true
			}
		}
		if s.remaining() == 0 {
			s.logger.Debug("analysis done", zap.Int("iterations", iteration), zap.Int("breaks", len(res.Breaks)))
			return res, nil
		}
		s.logger.Debug("delays", zap.Any("histogram", s.histogram()))
		if progress {
			continue
		}
		b, err := s.breakCycle(iteration)
		if err != nil {
			s.logger.Error("analysis stalled", zap.Error(err))
			return res, err
		}
		s.logger.Info("broke delay cycle",
			zap.Int("iteration", b.Iteration),
			zap.String("cycle", b.Cycle),
			zap.Stringer("location", b.Location),
			zap.String("value", b.Value))
		res.Breaks = append(res.Breaks, b)
	}
}

// sequentialRound runs the units that are not done one after the other; every unit sees the
// results of the units before it.
func (s *Scheduler) sequentialRound(shared SharedState) ([]delay.AnalysisStatus, error) {
	statuses := make([]delay.AnalysisStatus, len(s.units))
	for i, u := range s.units {
		if s.done[i] {
			continue
		}
		st, err := analyse(u, shared)
		if err != nil {
			return nil, err
		}
		u.Commit()
		statuses[i] = st
		s.notify(shared.Iteration, u, st)
	}
	return statuses, nil
}

// parallelRound runs the units that are not done concurrently. They only see the state
// committed in earlier rounds; all results are committed at the barrier, in stable order.
func (s *Scheduler) parallelRound(ctx context.Context, shared SharedState) ([]delay.AnalysisStatus, error) {
	statuses := make([]delay.AnalysisStatus, len(s.units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, u := range s.units {
		i, u := i, u
		if s.done[i] {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st, err := analyse(u, shared)
			if err != nil {
				return err
			}
			statuses[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, u := range s.units {
		if s.done[i] {
			continue
		}
		u.Commit()
		s.notify(shared.Iteration, u, statuses[i])
	}
	return statuses, nil
}

// analyse runs one iteration of a unit, converting a panic into an error.
func analyse(u Unit, shared SharedState) (status delay.AnalysisStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("INTERNAL PANIC from %q: %s\n%s", u.Name(), r, string(debug.Stack()))
		}
	}()
	return u.Analyse(shared)
}

func (s *Scheduler) notify(iteration int, u Unit, status delay.AnalysisStatus) {
	if len(s.opts.Observers) == 0 {
		return
	}
	view := View{Iteration: iteration, Unit: u.Key(), Name: u.Name(), Status: status, Properties: u.Properties()}
	for _, o := range s.opts.Observers {
		o.Observe(view)
	}
}

func (s *Scheduler) remaining() int {
	n := 0
	for _, d := range s.done {
		if !d {
			n++
		}
	}
	return n
}

// stuck returns the units that are not done, in stable order.
func (s *Scheduler) stuck() []StuckUnit {
	var stuck []StuckUnit
	for i, u := range s.units {
		if s.done[i] {
			continue
		}
		props := u.Properties()
		stuck = append(stuck, StuckUnit{Unit: u.Key(), Name: u.Name(), Delayed: props.Delayed(), Causes: u.Causes()})
	}
	return stuck
}

// histogram counts the causes of delay of the units that are not done, per kind of cause.
func (s *Scheduler) histogram() map[string]int {
	h := make(map[string]int)
	for i, u := range s.units {
		if s.done[i] {
			continue
		}
		for _, c := range u.Causes().Slice() {
			h[c.Kind.String()]++
		}
	}
	return h
}

// breakCycle finds a cycle on the cause graph, starting from the lowest unit that is not done,
// and forces one property of the cycle member with the lowest key.
func (s *Scheduler) breakCycle(iteration int) (Break, error) {
	cycle, ok := s.findCycle()
	if !ok {
		return Break{}, &StallError{Iteration: iteration, Stuck: s.stuck()}
	}
	lowest := cycle.Lowest()
	target := s.byKey[lowest]
	pred := s.byKey[cycle.Predecessor(lowest)]
	var tried []delay.Location
	for _, c := range pred.Causes().Slice() {
		loc := c.Location
		if loc.Unit != lowest || slices.Contains(tried, loc) {
			continue
		}
		tried = append(tried, loc)
		if !target.Force(loc) {
			continue
		}
		return Break{
			Iteration: iteration,
			Cycle:     cycle.String(),
			Unit:      target.Name(),
			Location:  loc,
			Value:     forcedLabel(target, loc),
		}, nil
	}
	return Break{}, &StallError{Iteration: iteration, Cycle: cycle.String(), Stuck: s.stuck()}
}

// findCycle runs a depth-first search over the cause graph of the units that are not done.
func (s *Scheduler) findCycle() (delay.Cycle, bool) {
	visited := make(map[delay.UnitKey]bool)
	var visit func(u Unit, stack []delay.UnitKey) (delay.Cycle, bool)
	visit = func(u Unit, stack []delay.UnitKey) (delay.Cycle, bool) {
		stack = append(stack, u.Key())
		causes := u.Causes().Without(u.Key())
		if c, ok := delay.DetectCycle(causes, stack); ok {
			return c, true
		}
		visited[u.Key()] = true
		for _, k := range causes.Units() {
			next, ok := s.byKey[k]
			if !ok || visited[k] || s.isDone(k) {
				continue
			}
			if c, ok := visit(next, stack); ok {
				return c, true
			}
		}
		return delay.Cycle{}, false
	}
	for i, u := range s.units {
		if s.done[i] || visited[u.Key()] {
			continue
		}
		if c, ok := visit(u, nil); ok {
			return c, true
		}
	}
	return delay.Cycle{}, false
}

func (s *Scheduler) isDone(k delay.UnitKey) bool {
	i, ok := s.index[k]
	return ok && s.done[i]
}

func forcedLabel(u Unit, loc delay.Location) string {
	k, ok := property.ParseKind(loc.Property)
	if !ok {
		return "?"
	}
	if loc.Detail != "" {
		return k.Label(k.BreakDefault())
	}
	props := u.Properties()
	return k.Label(props.GetOrDefault(k, k.BreakDefault()))
}

// StuckUnit describes a unit that is not done when the analysis is aborted.
type StuckUnit struct {
	Unit    delay.UnitKey
	Name    string
	Delayed []property.Kind
	Causes  delay.Causes
}

func (u StuckUnit) String() string {
	kinds := make([]string, len(u.Delayed))
	for i, k := range u.Delayed {
		kinds[i] = k.String()
	}
	return fmt.Sprintf("%s (%s) delayed on [%s] by %s", u.Name, u.Unit, strings.Join(kinds, ", "), u.Causes)
}

func describeStuck(stuck []StuckUnit) string {
	strs := make([]string, len(stuck))
	for i, u := range stuck {
		strs[i] = "\t" + u.String()
	}
	return strings.Join(strs, "\n")
}
