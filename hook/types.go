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

package hook

import (
	"regexp"
	"slices"

	"go.uber.org/immutaway/property"
)

// TypeInfo is what is known about an external type.
type TypeInfo struct {
	// Immutable is the immutability level (property.Mutable ... property.EffectivelyImmutable).
	Immutable int
	// Independent is the independence level of the type's methods from its fields.
	Independent int
	// Container is true when the type never modifies the objects given to it.
	Container bool
}

type typeRule struct {
	sig  trustedSig
	info TypeInfo
}

var _types = []typeRule{
	{
		sig:  trustedSig{enclosingRegex: regexp.MustCompile(`^(String|Integer|Long|Short|Byte|Character|Boolean|Double|Float|Class|Enum)$`)},
		info: TypeInfo{Immutable: property.EffectivelyImmutable, Independent: property.FullyIndependent, Container: true},
	},
	{
		sig:  trustedSig{enclosingRegex: regexp.MustCompile(`^(Object|Comparable|Runnable|Iterable)$`)},
		info: TypeInfo{Immutable: property.ImmutableHC, Independent: property.IndependentHC, Container: true},
	},
	{
		sig: trustedSig{enclosingRegex: regexp.MustCompile(
			`^(Collection|List|ArrayList|LinkedList|Set|HashSet|TreeSet|LinkedHashSet|Map|HashMap|TreeMap|LinkedHashMap|Deque|ArrayDeque|Queue|Iterator)$`)},
		info: TypeInfo{Immutable: property.Mutable, Independent: property.Dependent, Container: true},
	},
	{
		sig:  trustedSig{enclosingRegex: regexp.MustCompile(`^(StringBuilder|StringBuffer)$`)},
		info: TypeInfo{Immutable: property.Mutable, Independent: property.FullyIndependent, Container: true},
	},
	{
		sig:  trustedSig{enclosingRegex: regexp.MustCompile(`^.*(Exception|Error)$`)},
		info: TypeInfo{Immutable: property.FinalFields, Independent: property.FullyIndependent, Container: true},
	},
}

// _unknownType is assumed for external types without a rule.
var _unknownType = TypeInfo{Immutable: property.Mutable, Independent: property.Dependent}

// Type returns what is known about an external type.
func Type(name string) TypeInfo {
	if i := slices.IndexFunc(_types, func(r typeRule) bool { return r.sig.match(name) }); i >= 0 {
		return _types[i].info
	}
	return _unknownType
}
