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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	conf := Default()
	require.NoError(t, conf.Validate())
	require.Equal(t, DefaultMaxIterationsFactor, conf.MaxIterationsFactor)
	require.False(t, conf.Parallel)
	require.NotNil(t, conf.ZapLogger())
}

func TestParseOverridesDefaults(t *testing.T) {
	t.Parallel()

	conf, err := Parse([]byte("parallel: true\nmax_iterations_factor: 3\nemit_annotations: true\n"))
	require.NoError(t, err)
	require.True(t, conf.Parallel)
	require.True(t, conf.EmitAnnotations)
	require.True(t, conf.PrettyPrint)
	require.Equal(t, 3, conf.MaxIterationsFactor)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("max_iterations_factor: 0\n"))
	require.ErrorContains(t, err, "max_iterations_factor")

	_, err = Parse([]byte("max_iterations: -1\n"))
	require.ErrorContains(t, err, "max_iterations")

	_, err = Parse([]byte("parallel: [\n"))
	require.ErrorContains(t, err, "parse config")
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "immutaway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: 7\n"), 0o600))
	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, conf.IterationLimit(1000))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestIterationLimit(t *testing.T) {
	t.Parallel()

	conf := Default()
	require.Equal(t, MinIterationLimit, conf.IterationLimit(1))
	require.Equal(t, 10*DefaultMaxIterationsFactor, conf.IterationLimit(10))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
