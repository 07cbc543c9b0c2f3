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

// Package analyser implements the aggregating units of the analysis: every method (with its
// parameters), field and type of the program has a unit that turns the results of the
// statement-level analysis into properties, and the Analysis ties them together so that units
// can look up each other's committed properties.
package analyser

import (
	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/schedule"
	"go.uber.org/immutaway/statement"
	"go.uber.org/zap"
)

// Analysis holds the units of one program. Lookups only ever see committed state.
type Analysis struct {
	program  *model.Program
	registry *delay.Registry
	engine   *diagnostic.Engine
	logger   *zap.Logger

	fields  []*FieldAnalyser
	methods []*MethodAnalyser
	types   []*TypeAnalyser
}

// New creates the units of a finalized program. Messages of units that are done are committed
// to engine.
func New(program *model.Program, engine *diagnostic.Engine, logger *zap.Logger) *Analysis {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analysis{program: program, registry: delay.NewRegistry(), engine: engine, logger: logger}
	for _, f := range program.Fields {
		a.fields = append(a.fields, newFieldAnalyser(a, f))
	}
	for _, m := range program.Methods {
		a.methods = append(a.methods, newMethodAnalyser(a, m))
	}
	for _, t := range program.Types {
		a.types = append(a.types, newTypeAnalyser(a, t))
	}
	return a
}

// Program returns the analysed program.
func (a *Analysis) Program() *model.Program { return a.program }

// Registry returns the registry all causes of delay of this analysis are interned in.
func (a *Analysis) Registry() *delay.Registry { return a.registry }

// Units returns all units in stable order: fields, then methods, then types, each in arena order.
func (a *Analysis) Units() []schedule.Unit {
	units := make([]schedule.Unit, 0, a.program.Size())
	for _, f := range a.fields {
		units = append(units, f)
	}
	for _, m := range a.methods {
		units = append(units, m)
	}
	for _, t := range a.types {
		units = append(units, t)
	}
	return units
}

// Field returns the unit of a field.
func (a *Analysis) Field(i int) *FieldAnalyser { return a.fields[i] }

// Method returns the unit of a method.
func (a *Analysis) Method(i int) *MethodAnalyser { return a.methods[i] }

// Type returns the unit of a type.
func (a *Analysis) Type(i int) *TypeAnalyser { return a.types[i] }

func fieldKey(i int) delay.UnitKey  { return delay.UnitKey{Kind: delay.UnitField, Index: i} }
func methodKey(i int) delay.UnitKey { return delay.UnitKey{Kind: delay.UnitMethod, Index: i} }
func typeKey(i int) delay.UnitKey   { return delay.UnitKey{Kind: delay.UnitType, Index: i} }

// causeKind classifies a delay of unit from on unit on.
func (a *Analysis) causeKind(from, on delay.UnitKey) delay.CauseKind {
	if from.Kind == delay.UnitMethod && on.Kind == delay.UnitMethod &&
		a.program.Calls().SameCycle(from.Index, on.Index) {
		return delay.CallCycle
	}
	return delay.PropertyOf
}

// lookup returns a committed property, or a delay on its location when it is not decided yet.
// A unit that never ran yields the "not yet started" marker.
func (a *Analysis) lookup(from delay.UnitKey, executed bool, props property.Map, at delay.Location, kind property.Kind, ck delay.CauseKind) property.DV {
	if !executed {
		return property.Delayed(a.registry.NotYetStarted())
	}
	if dv, ok := props.Get(kind); ok && dv.IsDone() {
		return dv
	}
	at.Property = kind.String()
	return property.Delayed(a.registry.Of(at, ck))
}

func (a *Analysis) methodProperty(from delay.UnitKey, method int, kind property.Kind) property.DV {
	c := a.methods[method].committed
	key := methodKey(method)
	return a.lookup(from, c.executed, c.properties, delay.Location{Unit: key}, kind, a.causeKind(from, key))
}

func (a *Analysis) parameterProperty(from delay.UnitKey, method, parameter int, kind property.Kind) property.DV {
	m := a.methods[method]
	c := m.committed
	key := methodKey(method)
	at := delay.Location{Unit: key, Detail: m.method.Parameters[parameter].Name}
	if !c.executed {
		return property.Delayed(a.registry.NotYetStarted())
	}
	return a.lookup(from, true, c.parameters[parameter], at, kind, a.causeKind(from, key))
}

func (a *Analysis) fieldProperty(from delay.UnitKey, field int, kind property.Kind) property.DV {
	c := a.fields[field].committed
	return a.lookup(from, c.executed, c.properties, delay.Location{Unit: fieldKey(field)}, kind, delay.PropertyOf)
}

func (a *Analysis) typeProperty(from delay.UnitKey, typ int, kind property.Kind) property.DV {
	c := a.types[typ].committed
	return a.lookup(from, c.executed, c.properties, delay.Location{Unit: typeKey(typ)}, kind, delay.PropertyOf)
}

// fieldValues returns the values a method assigns to a field of its type (for constructors, the
// values the field holds when the constructor returns).
func (a *Analysis) fieldValues(method, field int) ([]statement.FieldValue, delay.Causes) {
	c := a.methods[method].committed
	if !c.executed {
		return nil, a.registry.NotYetStarted()
	}
	values := c.fieldValues[field]
	causes := delay.NoCauses
	for _, v := range values {
		if v.Value.IsDelayed() {
			causes = causes.Merge(a.registry.Of(delay.Location{
				Unit:     methodKey(method),
				Detail:   a.program.Field(field).Name,
				Property: "field_values",
			}, delay.FieldValues))
			break
		}
	}
	return values, causes
}

// fieldModified returns whether a method modifies a field of its type.
func (a *Analysis) fieldModified(method, field int) property.DV {
	m := a.methods[method]
	c := m.committed
	if !c.executed {
		return property.Delayed(a.registry.NotYetStarted())
	}
	if dv, ok := c.fieldModified[field]; ok {
		if dv.IsDone() {
			return dv
		}
	} else if c.status.IsDone() {
		return property.False
	}
	return property.Delayed(a.registry.Of(delay.Location{
		Unit:     methodKey(method),
		Detail:   a.program.Field(field).Name,
		Property: property.ContextModified.String(),
	}, delay.PropertyOf))
}

// context returns the view of the analysis a unit's statements are analysed in.
func (a *Analysis) context(unit delay.UnitKey) statement.Context {
	return &unitContext{a: a, unit: unit}
}

type unitContext struct {
	a    *Analysis
	unit delay.UnitKey
}

func (c *unitContext) Program() *model.Program   { return c.a.program }
func (c *unitContext) Registry() *delay.Registry { return c.a.registry }
func (c *unitContext) Unit() delay.UnitKey       { return c.unit }

func (c *unitContext) MethodProperty(method int, kind property.Kind) property.DV {
	return c.a.methodProperty(c.unit, method, kind)
}

func (c *unitContext) ParameterProperty(method, parameter int, kind property.Kind) property.DV {
	return c.a.parameterProperty(c.unit, method, parameter, kind)
}

func (c *unitContext) FieldProperty(field int, kind property.Kind) property.DV {
	return c.a.fieldProperty(c.unit, field, kind)
}

func (c *unitContext) TypeProperty(typ int, kind property.Kind) property.DV {
	return c.a.typeProperty(c.unit, typ, kind)
}

// forceKind parses the property of a location and checks that it can be forced on a unit.
func forceKind(location delay.Location, kinds []property.Kind) (property.Kind, bool) {
	k, ok := property.ParseKind(location.Property)
	if !ok {
		return 0, false
	}
	for _, allowed := range kinds {
		if allowed == k {
			return k, true
		}
	}
	return 0, false
}

// setAll stores computed values unless they were forced; a change of a done value is an error.
func setAll(props *property.Map, forced property.Map, values map[property.Kind]property.DV) error {
	for _, k := range property.Kinds() {
		dv, ok := values[k]
		if !ok || forced.Has(k) {
			continue
		}
		if err := props.SetMonotone(k, dv); err != nil {
			return err
		}
	}
	return nil
}
