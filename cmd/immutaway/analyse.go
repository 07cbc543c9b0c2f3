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
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/immutaway"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/model"
	"go.uber.org/zap"
)

type analyseOptions struct {
	configPath  string
	parallel    bool
	pretty      bool
	group       bool
	annotations bool
	snapshot    string
	verbose     bool
}

func (o *analyseOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&o.parallel, "parallel", false, "analyse the units of an iteration concurrently")
	fs.BoolVar(&o.pretty, "pretty", true, "colour the severity of messages")
	fs.BoolVar(&o.group, "group", false, "group identical findings of different statements")
	fs.BoolVar(&o.annotations, "annotations", false, "print the annotations of every type, field and method")
	fs.StringVar(&o.snapshot, "snapshot", "", "write the result to this file")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log the progress of the analysis")
}

// configure loads the configuration file, if any, and applies the flags that were set on top of it.
func (o *analyseOptions) configure(fs *pflag.FlagSet) (*config.Config, error) {
	conf := config.Default()
	if o.configPath != "" {
		var err error
		if conf, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	if fs.Changed("parallel") {
		conf.Parallel = o.parallel
	}
	if fs.Changed("pretty") {
		conf.PrettyPrint = o.pretty
	}
	if fs.Changed("annotations") {
		conf.EmitAnnotations = o.annotations
	}
	logger, err := newLogger(o.verbose)
	if err != nil {
		return nil, err
	}
	conf.Logger = logger
	return conf, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func newAnalyseCmd() *cobra.Command {
	opts := &analyseOptions{}
	cmd := &cobra.Command{
		Use:   "analyse PROGRAM.yaml",
		Short: "analyse a program model and report its findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := opts.configure(cmd.Flags())
			if err != nil {
				return err
			}
			defer conf.Logger.Sync() //nolint:errcheck

			program, err := model.Load(args[0])
			if err != nil {
				return err
			}
			res, err := immutaway.Analyse(cmd.Context(), program, conf)
			if err != nil {
				return err
			}
			conf.Logger.Info("analysis done",
				zap.String("program", args[0]),
				zap.Int("iterations", res.Iterations),
				zap.Int("breaks", len(res.Breaks)),
				zap.Int("messages", len(res.Messages)))

			if opts.snapshot != "" {
				if err := immutaway.WriteSnapshot(opts.snapshot, res); err != nil {
					return err
				}
			}
			return report(cmd.OutOrStdout(), res, conf.PrettyPrint, opts.group, conf.EmitAnnotations)
		},
	}
	opts.bind(cmd.Flags())
	return cmd
}

func newShowCmd() *cobra.Command {
	var pretty, annotations bool
	cmd := &cobra.Command{
		Use:   "show SNAPSHOT",
		Short: "print a result stored with analyse --snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := immutaway.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), res, pretty, false, annotations)
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "colour the severity of messages")
	cmd.Flags().BoolVar(&annotations, "annotations", true, "print the annotations of every type, field and method")
	return cmd
}

// report prints the annotations, when asked, then the messages. It returns errFindings when
// there is at least one message.
func report(w io.Writer, res *immutaway.Result, pretty, group, annotations bool) error {
	if annotations {
		for _, e := range res.Elements {
			if len(e.Annotations) == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "%s %s: %s\n", e.Kind, e.Name, strings.Join(e.Annotations, " ")); err != nil {
				return err
			}
		}
	}
	if err := diagnostic.Fprint(w, res.Messages, pretty, group); err != nil {
		return err
	}
	if len(res.Messages) > 0 {
		return errFindings
	}
	return nil
}
