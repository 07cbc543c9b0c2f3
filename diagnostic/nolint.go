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
	"strings"

	"go.uber.org/immutaway/config"
)

// noLintContains reports whether the nolint directives of a method suppress messages of a kind.
// A directive is "all", a kind name ("unused_local_variable"), or a "nolint:<kinds>" comment in
// the style of golangci-lint with comma-separated kinds and an optional trailing explanation.
func noLintContains(directives []string, kind Kind) bool {
	for _, d := range directives {
		text := strings.TrimLeft(d, "/ ")
		text, _, _ = strings.Cut(text, "//")
		text = strings.TrimSpace(text)
		if rest, ok := strings.CutPrefix(text, "nolint"); ok {
			rest, found := strings.CutPrefix(rest, ":")
			if !found {
				// A bare "nolint" suppresses everything.
				return true
			}
			text = rest
		}
		for _, k := range strings.Split(text, ",") {
			k = strings.TrimSpace(k)
			if strings.EqualFold(k, config.NoLintAll) || strings.EqualFold(k, kind.String()) {
				return true
			}
		}
	}
	return false
}
