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

// Package hook encodes shallow knowledge about types and methods outside the analysed program
// (e.g., `String` is immutable, `List.add` modifies its receiver, `System.exit` never returns),
// which the analyser uses wherever it cannot look at a body.
package hook

import (
	"regexp"
	"strings"
)

// trustedSig matches a qualified external name "<type>.<method>" (or a type name alone when
// memberRegex is nil). Type names may carry a package prefix, which is ignored.
type trustedSig struct {
	enclosingRegex *regexp.Regexp
	memberRegex    *regexp.Regexp
}

// match checks a qualified name against the signature: strict matching of the member name and a
// regex match of the enclosing type.
func (t *trustedSig) match(qualified string) bool {
	typeName, member := splitQualified(qualified)
	if t.memberRegex == nil {
		return member == "" && t.enclosingRegex.MatchString(typeName)
	}
	return member != "" && t.memberRegex.MatchString(member) && t.enclosingRegex.MatchString(typeName)
}

// splitQualified splits "java.util.List.add" into ("List", "add"); a name without a dot that
// starts with an upper case letter is a type.
func splitQualified(qualified string) (typeName, member string) {
	i := strings.LastIndexByte(qualified, '.')
	if i < 0 {
		return qualified, ""
	}
	last := qualified[i+1:]
	if last != "" && last[0] >= 'A' && last[0] <= 'Z' {
		return last, ""
	}
	typeName = qualified[:i]
	if j := strings.LastIndexByte(typeName, '.'); j >= 0 {
		typeName = typeName[j+1:]
	}
	return typeName, last
}

// TypeName returns the simple name of the type part of a qualified method name.
func TypeName(qualified string) string {
	typeName, _ := splitQualified(qualified)
	return typeName
}
