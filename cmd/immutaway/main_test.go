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

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func program(name string) string {
	return filepath.Join("..", "..", "testdata", "programs", name)
}

func TestAnalyseReportsFindings(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "analyse", "--pretty=false", program("unreachable.yaml"))
	require.ErrorIs(t, err, errFindings)
	require.Equal(t, "Dead.m @1: warning: unreachable statement\n", out)
}

func TestAnalyseCleanProgram(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "analyse", "--parallel", program("guard.yaml"))
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestSnapshotAndShow(t *testing.T) {
	t.Parallel()

	snapshot := filepath.Join(t.TempDir(), "sum.imsnap")
	out, err := execute(t, "analyse", "--annotations", "--snapshot", snapshot, program("sum.yaml"))
	require.NoError(t, err)
	require.Contains(t, out, "method Calc.sum: @NotModified\n")

	shown, err := execute(t, "show", snapshot)
	require.NoError(t, err)
	require.Equal(t, out, shown)
}

func TestAnalyseErrors(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "analyse", program("missing.yaml"))
	require.ErrorContains(t, err, "read program")

	_, err = execute(t, "analyse")
	require.Error(t, err)

	_, err = execute(t, "analyse", "--config", program("missing.yaml"), program("sum.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
