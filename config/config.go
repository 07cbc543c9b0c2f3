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

// Package config holds the user configuration of the analyser and its non-configurable constants.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of one analysis run.
type Config struct {
	// MaxIterationsFactor bounds the number of rounds to this multiple of the program size.
	MaxIterationsFactor int `yaml:"max_iterations_factor"`
	// MaxIterations, when positive, overrides the limit derived from MaxIterationsFactor.
	MaxIterations int `yaml:"max_iterations"`
	// Parallel runs the units of a round concurrently.
	Parallel bool `yaml:"parallel"`
	// PrettyPrint colours the messages printed by the CLI.
	PrettyPrint bool `yaml:"pretty_print"`
	// EmitAnnotations prints the annotations derived for every type, field and method.
	EmitAnnotations bool `yaml:"emit_annotations"`
	// Logger receives the progress of the analysis. It cannot be set from a file.
	Logger *zap.Logger `yaml:"-"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		MaxIterationsFactor: DefaultMaxIterationsFactor,
		PrettyPrint:         true,
		Logger:              zap.NewNop(),
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	conf := Default()
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the numeric settings.
func (c *Config) Validate() error {
	if c.MaxIterationsFactor <= 0 {
		return fmt.Errorf("max_iterations_factor must be positive, got %d", c.MaxIterationsFactor)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative, got %d", c.MaxIterations)
	}
	return nil
}

// IterationLimit returns the number of rounds after which the analysis of a program of the given
// size is aborted.
func (c *Config) IterationLimit(size int) int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return max(MinIterationLimit, c.MaxIterationsFactor*size)
}

// ZapLogger returns the configured logger, or a no-op logger.
func (c *Config) ZapLogger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
