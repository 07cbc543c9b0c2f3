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

// MethodInfo is what is known about an external method.
type MethodInfo struct {
	// Modifying is true when the method modifies its receiver.
	Modifying bool
	// NotNullResult is true when the method never returns null.
	NotNullResult bool
	// ResultImmutable is the immutability of the result, or 0 to use that of the return type.
	ResultImmutable int
	// ResultIndependent is the independence of the result from the receiver.
	ResultIndependent int
	// Fluent is true when the method returns its receiver.
	Fluent bool
	// NotNullArgs is true when the method dereferences all of its arguments.
	NotNullArgs bool
}

type methodRule struct {
	sig  trustedSig
	info MethodInfo
}

var _anyType = regexp.MustCompile(`.*`)

var _methods = []methodRule{
	// Accessors, on any type.
	{
		sig: trustedSig{
			enclosingRegex: _anyType,
			memberRegex:    regexp.MustCompile(`^(toString|length|size|isEmpty|hashCode|equals|charAt|indexOf|trim|substring|toUpperCase|toLowerCase|startsWith|endsWith|compareTo|intValue)$`),
		},
		info: MethodInfo{NotNullResult: true, ResultIndependent: property.FullyIndependent},
	},
	{
		sig: trustedSig{
			enclosingRegex: _anyType,
			memberRegex:    regexp.MustCompile(`^(get|getFirst|getLast|peek|contains|containsKey|containsValue|getOrDefault)$`),
		},
		info: MethodInfo{ResultIndependent: property.IndependentHC},
	},
	{
		sig: trustedSig{
			enclosingRegex: _anyType,
			memberRegex:    regexp.MustCompile(`^(iterator|subList|keySet|values|entrySet|stream)$`),
		},
		info: MethodInfo{NotNullResult: true, ResultIndependent: property.Dependent},
	},
	// Builders return themselves.
	{
		sig: trustedSig{
			enclosingRegex: regexp.MustCompile(`^(StringBuilder|StringBuffer)$`),
			memberRegex:    regexp.MustCompile(`^(append|insert|reverse)$`),
		},
		info: MethodInfo{Modifying: true, NotNullResult: true, Fluent: true, ResultIndependent: property.Dependent},
	},
	// Modifiers of collections.
	{
		sig: trustedSig{
			enclosingRegex: _anyType,
			memberRegex:    regexp.MustCompile(`^(add|addAll|remove|removeAll|retainAll|put|putAll|clear|set|sort|push|pop|poll|offer|addFirst|addLast)$`),
		},
		info: MethodInfo{Modifying: true, ResultIndependent: property.IndependentHC},
	},
	// Immutable factories.
	{
		sig: trustedSig{
			enclosingRegex: regexp.MustCompile(`^(List|Set|Map|Collections)$`),
			memberRegex:    regexp.MustCompile(`^(of|copyOf|emptyList|emptySet|emptyMap|unmodifiableList|unmodifiableSet|unmodifiableMap)$`),
		},
		info: MethodInfo{NotNullResult: true, ResultImmutable: property.ImmutableHC, ResultIndependent: property.IndependentHC},
	},
	{
		sig: trustedSig{
			enclosingRegex: regexp.MustCompile(`^Objects$`),
			memberRegex:    regexp.MustCompile(`^requireNonNull$`),
		},
		info: MethodInfo{NotNullResult: true, NotNullArgs: true, ResultIndependent: property.FullyIndependent},
	},
	{
		sig: trustedSig{
			enclosingRegex: regexp.MustCompile(`^(String|Integer|Long|Boolean)$`),
			memberRegex:    regexp.MustCompile(`^(valueOf|format|join|parseInt|parseLong|parseBoolean)$`),
		},
		info: MethodInfo{NotNullResult: true, ResultIndependent: property.FullyIndependent},
	},
}

// _unknownMethod is assumed for external methods without a rule.
var _unknownMethod = MethodInfo{Modifying: true, ResultIndependent: property.Dependent}

// Method returns what is known about an external method, given its qualified name.
func Method(qualified string) MethodInfo {
	if i := slices.IndexFunc(_methods, func(r methodRule) bool { return r.sig.match(qualified) }); i >= 0 {
		return _methods[i].info
	}
	return _unknownMethod
}

var _terminatingCalls = []trustedSig{
	{
		enclosingRegex: regexp.MustCompile(`^System$`),
		memberRegex:    regexp.MustCompile(`^exit$`),
	},
	{
		enclosingRegex: regexp.MustCompile(`^Runtime$`),
		memberRegex:    regexp.MustCompile(`^halt$`),
	},
}

// TerminatingCall reports whether a call to the external method never returns.
func TerminatingCall(qualified string) bool {
	return slices.ContainsFunc(_terminatingCalls, func(sig trustedSig) bool { return sig.match(qualified) })
}
