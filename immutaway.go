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

// Package immutaway is the entry point of the analyser: it builds the analysis units of a
// program, drives them to a fixpoint and collects the final properties, annotations and
// messages into a Result.
package immutaway

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/immutaway/analyser"
	"go.uber.org/immutaway/annotation"
	"go.uber.org/immutaway/config"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/schedule"
	"go.uber.org/zap"
)

// ElementKind is the kind of a program element in a Result.
type ElementKind string

// Element kinds.
const (
	TypeElement      ElementKind = "type"
	FieldElement     ElementKind = "field"
	MethodElement    ElementKind = "method"
	ParameterElement ElementKind = "parameter"
)

// Property is a final property value of an element, rendered with the names of its domain.
type Property struct {
	Name  string
	Value string
}

// Element is the final state of a type, field, method or parameter.
type Element struct {
	Kind ElementKind
	// Name is "Type", "Type.field", "Type.method" or "Type.method#parameter".
	Name string
	// Properties are sorted by name.
	Properties []Property
	// Annotations are the rendered annotations of the element.
	Annotations []string
	// Extra holds facts that are not properties: the values a field can hold, the fields a
	// parameter is assigned to.
	Extra []string
}

// Property returns the value of a property of the element.
func (e Element) Property(name string) (string, bool) {
	i := slices.IndexFunc(e.Properties, func(p Property) bool { return p.Name == name })
	if i < 0 {
		return "", false
	}
	return e.Properties[i].Value, true
}

// Result is the outcome of the analysis of a program.
type Result struct {
	// Iterations is the number of rounds the scheduler ran.
	Iterations int
	// Breaks are the delay cycles that were broken by forcing a conservative value.
	Breaks []schedule.Break
	// Messages are the findings about the program, in stable order.
	Messages []diagnostic.Message
	// Elements are all types, fields, methods and parameters in program order.
	Elements []Element
}

// Element returns the element with the given name.
func (r *Result) Element(name string) (Element, bool) {
	i := slices.IndexFunc(r.Elements, func(e Element) bool { return e.Name == name })
	if i < 0 {
		return Element{}, false
	}
	return r.Elements[i], true
}

// Analyse analyses a finalized program. The observers are notified after every iteration of
// every unit. A nil conf means the default configuration.
func Analyse(ctx context.Context, program *model.Program, conf *config.Config, observers ...schedule.Observer) (*Result, error) {
	if conf == nil {
		conf = config.Default()
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := conf.ZapLogger()

	engine := diagnostic.NewEngine(noLint(program))
	a := analyser.New(program, engine, logger)
	limit := conf.IterationLimit(program.Size())
	logger.Debug("starting analysis",
		zap.Int("types", len(program.Types)),
		zap.Int("fields", len(program.Fields)),
		zap.Int("methods", len(program.Methods)),
		zap.Int("iteration_limit", limit),
		zap.Bool("parallel", conf.Parallel))

	s := schedule.New(a.Units(), schedule.Options{
		Parallel:      conf.Parallel,
		MaxIterations: limit,
		Logger:        logger,
		Observers:     observers,
	})
	run, err := s.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyse program: %w", err)
	}
	return &Result{
		Iterations: run.Iterations,
		Breaks:     run.Breaks,
		Messages:   engine.Messages(),
		Elements:   elements(a),
	}, nil
}

// noLint collects the nolint directives of every method.
func noLint(program *model.Program) map[string][]string {
	directives := make(map[string][]string)
	for _, m := range program.Methods {
		if len(m.NoLint) > 0 {
			directives[program.Describe(m)] = m.NoLint
		}
	}
	return directives
}

func elements(a *analyser.Analysis) []Element {
	p := a.Program()
	var elements []Element
	for _, t := range p.Types {
		elements = append(elements, element(TypeElement, t.Name, a.Type(t.Index).Properties(), annotation.TypeKey{Type: t}))
		for _, fi := range t.Fields {
			f := p.Field(fi)
			fa := a.Field(fi)
			e := element(FieldElement, p.DescribeField(f), fa.Properties(), annotation.FieldKey{Owner: t.Name, Field: f})
			for _, v := range fa.Values() {
				e.Extra = append(e.Extra, "value="+v.Value.String())
			}
			elements = append(elements, e)
		}
		for _, mi := range t.Methods {
			m := p.Method(mi)
			ma := a.Method(mi)
			elements = append(elements, element(MethodElement, p.Describe(m), ma.Properties(),
				annotation.MethodKey{Owner: t.Name, Method: m}))
			for _, pa := range ma.Parameters() {
				e := element(ParameterElement, p.Describe(m)+"#"+pa.Parameter.Name, pa.Properties,
					annotation.ParameterKey{Owner: t.Name, Method: m, Parameter: pa.Parameter})
				for _, fi := range pa.AssignedToField {
					e.Extra = append(e.Extra, "assigned_to_field="+p.Field(fi).Name)
				}
				elements = append(elements, e)
			}
		}
	}
	return elements
}

func element(kind ElementKind, name string, props property.Map, key annotation.Key) Element {
	e := Element{Kind: kind, Name: name}
	for label, value := range props.Labels() {
		e.Properties = append(e.Properties, Property{Name: label, Value: value})
	}
	slices.SortFunc(e.Properties, func(a, b Property) int { return strings.Compare(a.Name, b.Name) })
	for _, an := range annotation.For(key, props).Annotations {
		e.Annotations = append(e.Annotations, string(an))
	}
	return e
}
