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

// main package is the command line driver of the analyser: it loads a program model from a YAML
// file, analyses it and prints the messages and, optionally, the annotations it derived.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// _exitFindings is the exit code when the analysed program has findings, as for go vet style
// checkers.
const _exitFindings = 3

// errFindings is returned by the analyse command when it printed at least one message.
var errFindings = errors.New("findings reported")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "immutaway",
		Short:         "infer immutability, modification and nullability of a program model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyseCmd(), newShowCmd())
	return root
}

func main() {
	err := newRootCmd().Execute()
	switch {
	case err == nil:
	case errors.Is(err, errFindings):
		os.Exit(_exitFindings)
	default:
		fmt.Fprintln(os.Stderr, "immutaway:", err)
		os.Exit(1)
	}
}
