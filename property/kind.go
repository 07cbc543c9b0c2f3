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

package property

import "fmt"

// Kind is the closed set of properties the analyser derives. Each kind has an entry in the rule
// table below; adding a property means adding a constant and a table entry.
type Kind uint8

const (
	// ContextNotNull: the variable is known not to be null in the current context, because it is
	// dereferenced or because the condition guarantees it.
	ContextNotNull Kind = iota
	// NotNullRequired: the variable is dereferenced (or passed to a not-null parameter) without a
	// guard; this is what makes a parameter not-null.
	NotNullRequired
	// ContextModified: a modifying operation is applied to the variable.
	ContextModified
	// NotNullExpression: the nullability of a value (of a variable, or the return value of a method).
	NotNullExpression
	// Immutable: the immutability of a value, a field or a type.
	Immutable
	// Independent: the independence of a method's return value, a parameter or a type.
	Independent
	// ModifiedMethod: the method modifies the fields of its object.
	ModifiedMethod
	// Fluent: the method always returns this.
	Fluent
	// Identity: the method always returns its first parameter.
	Identity
	// NotNullParameter: the parameter must not be null.
	NotNullParameter
	// ModifiedVariable: the parameter is modified by the method.
	ModifiedVariable
	// Final: the field is assigned only in constructors or its initializer.
	Final
	// ExternalNotNull: the nullability of a field, as the meet of all values assigned to it.
	ExternalNotNull
	// ModifiedOutsideMethod: the field is modified by some method of its type.
	ModifiedOutsideMethod
	// Container: no method of the type modifies its parameters.
	Container
	// Eventual: the field is final, or the type has its immutability, only once a mark method
	// of the type has been called.
	Eventual

	_numKinds
)

// Rule is the way two contributions to the same property are combined.
type Rule uint8

const (
	// RuleMin keeps the lowest value.
	RuleMin Rule = iota
	// RuleMax keeps the highest value.
	RuleMax
)

// Domain is the ordered range of values a property takes.
type Domain uint8

const (
	// DomainBool is {False, True}.
	DomainBool Domain = iota
	// DomainNotNull is {Nullable, EffectivelyNotNull, EffectivelyContentNotNull}.
	DomainNotNull
	// DomainImmutable is {Mutable, FinalFields, ImmutableHC, EffectivelyImmutable}.
	DomainImmutable
	// DomainIndependent is {Dependent, IndependentHC, FullyIndependent}.
	DomainIndependent
)

type domainInfo struct {
	lowest, highest int
	names           map[int]string
}

var _domains = [...]domainInfo{
	DomainBool: {lowest: 0, highest: 1, names: map[int]string{0: "false", 1: "true"}},
	DomainNotNull: {lowest: Nullable, highest: EffectivelyContentNotNull, names: map[int]string{
		Nullable:                  "nullable",
		EffectivelyNotNull:        "not_null",
		EffectivelyContentNotNull: "content_not_null",
	}},
	DomainImmutable: {lowest: Mutable, highest: EffectivelyImmutable, names: map[int]string{
		Mutable:              "mutable",
		FinalFields:          "final_fields",
		ImmutableHC:          "immutable_hc",
		EffectivelyImmutable: "immutable",
	}},
	DomainIndependent: {lowest: Dependent, highest: FullyIndependent, names: map[int]string{
		Dependent:        "dependent",
		IndependentHC:    "independent_hc",
		FullyIndependent: "independent",
	}},
}

// ruleEntry is the table entry of a kind.
type ruleEntry struct {
	name   string
	domain Domain
	// aggregate combines contributions of consecutive statements, of all values assigned to a
	// field, or of all members of a type.
	aggregate Rule
	// merge combines the states of alternative branches at a join point.
	merge Rule
	// breakDefault is the value substituted when the scheduler breaks a delay cycle on this kind.
	breakDefault int
}

var _table = [_numKinds]ruleEntry{
	ContextNotNull:        {"context_not_null", DomainNotNull, RuleMax, RuleMin, Nullable},
	NotNullRequired:       {"not_null_required", DomainBool, RuleMax, RuleMin, 0},
	ContextModified:       {"context_modified", DomainBool, RuleMax, RuleMax, 0},
	NotNullExpression:     {"not_null_expression", DomainNotNull, RuleMin, RuleMin, Nullable},
	Immutable:             {"immutable", DomainImmutable, RuleMin, RuleMin, Mutable},
	Independent:           {"independent", DomainIndependent, RuleMin, RuleMin, Dependent},
	ModifiedMethod:        {"modified_method", DomainBool, RuleMax, RuleMax, 0},
	Fluent:                {"fluent", DomainBool, RuleMin, RuleMin, 0},
	Identity:              {"identity", DomainBool, RuleMin, RuleMin, 0},
	NotNullParameter:      {"not_null_parameter", DomainNotNull, RuleMax, RuleMin, Nullable},
	ModifiedVariable:      {"modified_variable", DomainBool, RuleMax, RuleMax, 0},
	Final:                 {"final", DomainBool, RuleMin, RuleMin, 0},
	ExternalNotNull:       {"external_not_null", DomainNotNull, RuleMin, RuleMin, Nullable},
	ModifiedOutsideMethod: {"modified_outside_method", DomainBool, RuleMax, RuleMax, 0},
	Container:             {"container", DomainBool, RuleMin, RuleMin, 0},
	Eventual:              {"eventual", DomainBool, RuleMax, RuleMax, 0},
}

// Kinds returns all kinds in their stable order.
func Kinds() []Kind {
	kinds := make([]Kind, _numKinds)
	for i := range kinds {
		kinds[i] = Kind(i)
	}
	return kinds
}

func (k Kind) entry() ruleEntry {
	if k >= _numKinds {
		panic(fmt.Sprintf("unknown property kind %d", k))
	}
	return _table[k]
}

func (k Kind) String() string {
	if k >= _numKinds {
		return fmt.Sprintf("Kind(%d)", k)
	}
	return _table[k].name
}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, bool) {
	for i, e := range _table {
		if e.name == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Domain returns the value domain of the kind.
func (k Kind) Domain() Domain { return k.entry().domain }

// Lowest returns the lowest value of the kind's domain.
func (k Kind) Lowest() DV { return Of(_domains[k.entry().domain].lowest) }

// Highest returns the highest value of the kind's domain.
func (k Kind) Highest() DV { return Of(_domains[k.entry().domain].highest) }

// BreakDefault returns the conservative value substituted when a delay cycle is broken on this kind.
func (k Kind) BreakDefault() DV { return Of(k.entry().breakDefault) }

// Aggregate combines two sequential contributions according to the kind's aggregation rule.
func (k Kind) Aggregate(a, b DV) DV { return k.apply(k.entry().aggregate, a, b) }

// Merge combines two alternative contributions at a join point according to the kind's merge rule.
func (k Kind) Merge(a, b DV) DV { return k.apply(k.entry().merge, a, b) }

// AggregateAll folds Aggregate over the values; an empty list yields the neutral element of the rule.
func (k Kind) AggregateAll(values ...DV) DV { return k.fold(k.entry().aggregate, values) }

// MergeAll folds Merge over the values; an empty list yields the neutral element of the rule.
func (k Kind) MergeAll(values ...DV) DV { return k.fold(k.entry().merge, values) }

func (k Kind) fold(rule Rule, values []DV) DV {
	acc := k.neutral(rule)
	for _, v := range values {
		acc = k.apply(rule, acc, v)
	}
	return acc
}

func (k Kind) neutral(rule Rule) DV {
	if rule == RuleMin {
		return k.Highest()
	}
	return k.Lowest()
}

// apply implements the rule with short-circuiting: the absorbing element of the rule (the lowest
// value for Min, the highest for Max) wins even against a delay, since no further information
// can change the outcome.
func (k Kind) apply(rule Rule, a, b DV) DV {
	absorbing := k.Highest()
	if rule == RuleMin {
		absorbing = k.Lowest()
	}
	if (a.IsDone() && a.value == absorbing.value) || (b.IsDone() && b.value == absorbing.value) {
		return absorbing
	}
	if rule == RuleMin {
		return a.Min(b)
	}
	return a.Max(b)
}

// Label renders a value of this kind with its domain's name.
func (k Kind) Label(d DV) string {
	if !d.IsValid() {
		return "<invalid>"
	}
	if d.IsDelayed() {
		return d.String()
	}
	if name, ok := _domains[k.entry().domain].names[d.value]; ok {
		return name
	}
	return d.String()
}
