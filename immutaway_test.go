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

package immutaway_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/immutaway"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/immutawaytest"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/schedule"
)

const _programs = "testdata/programs"

type AnalyseTestSuite struct {
	suite.Suite
	parallel bool
}

func (s *AnalyseTestSuite) analyse(name string, observers ...schedule.Observer) (*immutaway.Result, immutawaytest.Expectations) {
	program, exp := immutawaytest.LoadFixture(s.T(), filepath.Join(_programs, name))
	conf := config.Default()
	conf.Parallel = s.parallel
	res, err := immutaway.Analyse(context.Background(), program, conf, observers...)
	s.Require().NoError(err)
	return res, exp
}

// iterations picks the expected number of rounds for the mode of the suite: in parallel mode a
// unit only sees what the others published in earlier rounds.
func (s *AnalyseTestSuite) iterations(sequential, parallel int) int {
	if s.parallel {
		return parallel
	}
	return sequential
}

func (s *AnalyseTestSuite) TestFixtures() {
	paths, err := filepath.Glob(filepath.Join(_programs, "*.yaml"))
	s.Require().NoError(err)
	s.Require().NotEmpty(paths)

	for _, path := range paths {
		s.Run(filepath.Base(path), func() {
			res, exp := s.analyse(filepath.Base(path))
			immutawaytest.CheckExpectedValues(s.T(), res, exp)
		})
	}
}

func (s *AnalyseTestSuite) TestSumIsDoneAtOnce() {
	rec := &immutawaytest.Recorder{}
	res, _ := s.analyse("sum.yaml", rec)

	it, ok := rec.DoneAt("Calc.sum")
	s.Require().True(ok)
	s.Equal(1, it)
	s.Equal(s.iterations(1, 2), res.Iterations)
	s.Empty(res.Breaks)
	s.Empty(res.Messages)
}

func (s *AnalyseTestSuite) TestFieldAssignedInTwoConstructors() {
	res, _ := s.analyse("constructors.yaml")

	s.Equal(s.iterations(2, 3), res.Iterations)
	s.Empty(res.Breaks)
	field, ok := res.Element("Holder.s")
	s.Require().True(ok)
	s.Equal([]string{`value="abc"`, `value="def"`}, field.Extra)
}

func (s *AnalyseTestSuite) TestMutualRecursionIsBroken() {
	res, _ := s.analyse("parity.yaml")

	s.Equal(5, res.Iterations)
	s.Require().Len(res.Breaks, 1)
	b := res.Breaks[0]
	s.Equal(3, b.Iteration)
	s.Equal("Parity.isEven", b.Unit)
	s.Equal("method#0 -> method#1 -> method#0", b.Cycle)
	s.Equal(delay.Location{
		Unit:     delay.UnitKey{Kind: delay.UnitMethod, Index: 0},
		Property: property.ModifiedMethod.String(),
	}, b.Location)
	s.Equal("false", b.Value)
}

func (s *AnalyseTestSuite) TestGuardedDereference() {
	res, _ := s.analyse("guard.yaml")
	s.Empty(res.Messages)
}

func (s *AnalyseTestSuite) TestUnreachableStatement() {
	res, _ := s.analyse("unreachable.yaml")

	s.Require().Len(res.Messages, 1)
	s.Equal(diagnostic.UnreachableStatement, res.Messages[0].Kind)
	s.Equal("Dead.m @1", res.Messages[0].Location.String())
}

func (s *AnalyseTestSuite) TestIdempotent() {
	for _, name := range []string{"constructors.yaml", "parity.yaml", "unreachable.yaml"} {
		first, _ := s.analyse(name)
		second, _ := s.analyse(name)
		s.Empty(cmp.Diff(first, second), name)
	}
}

func (s *AnalyseTestSuite) TestSnapshotRoundTrip() {
	res, _ := s.analyse("parity.yaml")

	path := filepath.Join(s.T().TempDir(), "parity"+config.SnapshotExtension)
	s.Require().NoError(immutaway.WriteSnapshot(path, res))
	loaded, err := immutaway.ReadSnapshot(path)
	s.Require().NoError(err)
	s.Empty(cmp.Diff(res, loaded, cmpopts.EquateEmpty()))
}

func TestAnalyseSequential(t *testing.T) {
	t.Parallel()
	suite.Run(t, &AnalyseTestSuite{})
}

func TestAnalyseParallel(t *testing.T) {
	t.Parallel()
	suite.Run(t, &AnalyseTestSuite{parallel: true})
}

// Both modes agree on everything but the number of rounds they need.
func TestModesAgree(t *testing.T) {
	t.Parallel()

	paths, err := filepath.Glob(filepath.Join(_programs, "*.yaml"))
	require.NoError(t, err)
	for _, path := range paths {
		program, _ := immutawaytest.LoadFixture(t, path)
		seq, err := immutaway.Analyse(context.Background(), program, config.Default())
		require.NoError(t, err)
		conf := config.Default()
		conf.Parallel = true
		par, err := immutaway.Analyse(context.Background(), program, conf)
		require.NoError(t, err)

		ignore := cmpopts.IgnoreFields(immutaway.Result{}, "Iterations")
		require.Empty(t, cmp.Diff(seq, par, ignore), path)
	}
}

func TestAnalyseCancelled(t *testing.T) {
	t.Parallel()

	program, _ := immutawaytest.LoadFixture(t, filepath.Join(_programs, "sum.yaml"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := immutaway.Analyse(ctx, program, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
