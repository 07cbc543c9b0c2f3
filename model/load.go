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

package model

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// The YAML form of a program. Bodies and expressions are kept as nodes and decoded by hand, once
// every type, field and method signature is known and names can be resolved.
type programYAML struct {
	Types []typeYAML `yaml:"types"`
}

type typeYAML struct {
	Name       string       `yaml:"name"`
	Interface  bool         `yaml:"interface"`
	Implements []string     `yaml:"implements"`
	Fields     []fieldYAML  `yaml:"fields"`
	Methods    []methodYAML `yaml:"methods"`
}

type fieldYAML struct {
	Name  string    `yaml:"name"`
	Type  string    `yaml:"type"`
	Final bool      `yaml:"final"`
	Init  yaml.Node `yaml:"init"`
}

type methodYAML struct {
	Name        string      `yaml:"name"`
	Constructor bool        `yaml:"constructor"`
	Private     bool        `yaml:"private"`
	Static      bool        `yaml:"static"`
	Mark        bool        `yaml:"mark"`
	Returns     string      `yaml:"returns"`
	Params      []paramYAML `yaml:"params"`
	Body        yaml.Node   `yaml:"body"`
	NoLint      []string    `yaml:"nolint"`
}

type paramYAML struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Load reads a program from a YAML file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return p, nil
}

// Parse builds a finalized program from its YAML form.
func Parse(data []byte) (*Program, error) {
	var doc programYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse program: %w", err)
	}
	l := &loader{p: &Program{}}
	if err := l.declare(doc); err != nil {
		return nil, err
	}
	if err := l.define(doc); err != nil {
		return nil, err
	}
	l.p.Finalize()
	return l.p, nil
}

type loader struct {
	p *Program
	// bodies and initializers to decode in the second pass, by arena index.
	bodies []*yaml.Node
	inits  []*yaml.Node
}

// declare creates every type, field, method and parameter, so that names can be resolved in
// bodies regardless of declaration order.
func (l *loader) declare(doc programYAML) error {
	for i, ty := range doc.Types {
		if ty.Name == "" {
			return fmt.Errorf("type #%d has no name", i)
		}
		if _, ok := l.p.TypeByName(ty.Name); ok {
			return fmt.Errorf("duplicate type %q", ty.Name)
		}
		l.p.Types = append(l.p.Types, &Type{Index: i, Name: ty.Name, Interface: ty.Interface})
	}
	for i, ty := range doc.Types {
		t := l.p.Types[i]
		for _, name := range ty.Implements {
			iface, ok := l.p.TypeByName(name)
			if !ok || !iface.Interface {
				return fmt.Errorf("type %s implements %q, which is not an interface of the program", ty.Name, name)
			}
			t.Implements = append(t.Implements, iface.Index)
		}
		for _, fy := range ty.Fields {
			if _, ok := l.p.FieldByName(t.Index, fy.Name); ok {
				return fmt.Errorf("duplicate field %s.%s", ty.Name, fy.Name)
			}
			f := &Field{
				Index: len(l.p.Fields),
				Owner: t.Index,
				Name:  fy.Name,
				Type:  l.typeRef(fy.Type),
				Final: fy.Final,
			}
			l.p.Fields = append(l.p.Fields, f)
			t.Fields = append(t.Fields, f.Index)
			init := fy.Init
			l.inits = append(l.inits, &init)
		}
		for _, my := range ty.Methods {
			m := &Method{
				Index:       len(l.p.Methods),
				Owner:       t.Index,
				Name:        my.Name,
				Constructor: my.Constructor,
				Private:     my.Private,
				Static:      my.Static,
				Mark:        my.Mark && !my.Constructor && !my.Static,
				Return:      l.typeRef(my.Returns),
				NoLint:      my.NoLint,
			}
			if m.Constructor {
				m.Name = "<init>"
				m.Return = Void()
			}
			for j, py := range my.Params {
				m.Parameters = append(m.Parameters, &Parameter{Index: j, Name: py.Name, Type: l.typeRef(py.Type)})
			}
			l.p.Methods = append(l.p.Methods, m)
			t.Methods = append(t.Methods, m.Index)
			body := my.Body
			if body.Kind == 0 && m.Constructor {
				body = yaml.Node{Kind: yaml.SequenceNode}
			}
			if body.Kind == 0 {
				l.bodies = append(l.bodies, nil)
			} else {
				l.bodies = append(l.bodies, &body)
			}
		}
	}
	return nil
}

func (l *loader) define(programYAML) error {
	var errs []error
	for i, f := range l.p.Fields {
		if l.inits[i].Kind == 0 {
			continue
		}
		sc := &scope{owner: f.Owner}
		init, err := l.expr(l.inits[i], sc)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", l.p.DescribeField(f), err))
			continue
		}
		f.Initializer = init
	}
	for i, m := range l.p.Methods {
		if l.bodies[i] == nil {
			continue
		}
		if l.p.Types[m.Owner].Interface {
			errs = append(errs, fmt.Errorf("method %s: interface methods cannot have a body", l.p.Describe(m)))
			continue
		}
		sc := &scope{owner: m.Owner, method: m}
		body, err := l.block(l.bodies[i], sc)
		if err != nil {
			errs = append(errs, fmt.Errorf("method %s: %w", l.p.Describe(m), err))
			continue
		}
		m.Body = body
	}
	return errors.Join(errs...)
}

func (l *loader) typeRef(name string) TypeRef {
	switch {
	case name == "" || name == "void":
		return Void()
	case IsPrimitiveName(name):
		return Primitive(name)
	}
	if t, ok := l.p.TypeByName(name); ok {
		return ProgramType(t)
	}
	return External(name)
}

// scope tracks the local variables visible at a point of a body.
type scope struct {
	owner  int
	method *Method
	parent *scope
	locals []string
}

func (s *scope) child() *scope { return &scope{owner: s.owner, method: s.method, parent: s} }

func (s *scope) isLocal(name string) bool {
	for c := s; c != nil; c = c.parent {
		if slices.Contains(c.locals, name) {
			return true
		}
	}
	return false
}

func (s *scope) param(name string) (*Parameter, bool) {
	if s.method == nil {
		return nil, false
	}
	for _, p := range s.method.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func (l *loader) block(n *yaml.Node, sc *scope) (*Block, error) {
	b := &Block{}
	if n == nil || n.Kind == 0 {
		return b, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: a block must be a sequence of statements", n.Line)
	}
	inner := sc.child()
	for _, c := range n.Content {
		s, err := l.statement(c, inner)
		if err != nil {
			return nil, err
		}
		b.Statements = append(b.Statements, s)
	}
	return b, nil
}

func (l *loader) statement(n *yaml.Node, sc *scope) (Statement, error) {
	if n.Kind == yaml.ScalarNode {
		switch n.Value {
		case "return":
			return &Return{}, nil
		case "break":
			return &Break{}, nil
		case "continue":
			return &Continue{}, nil
		}
		return nil, fmt.Errorf("line %d: unknown statement %q", n.Line, n.Value)
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, fmt.Errorf("line %d: a statement must be a mapping with a single key", n.Line)
	}
	key, v := n.Content[0].Value, n.Content[1]
	switch key {
	case "expr":
		e, err := l.expr(v, sc)
		return &ExpressionStatement{Expression: e}, err
	case "return":
		e, err := l.expr(v, sc)
		return &Return{Value: e}, err
	case "throw":
		e, err := l.expr(v, sc)
		return &Throw{Value: e}, err
	case "assert":
		e, err := l.expr(v, sc)
		return &Assert{Condition: e}, err
	case "block":
		b, err := l.block(v, sc)
		return &Nested{Body: b}, err
	case "local":
		var s struct {
			Name string    `yaml:"name"`
			Type string    `yaml:"type"`
			Init yaml.Node `yaml:"init"`
		}
		if err := v.Decode(&s); err != nil {
			return nil, err
		}
		lv := &LocalVariable{Name: s.Name, Type: l.typeRef(s.Type)}
		if s.Init.Kind != 0 {
			init, err := l.expr(&s.Init, sc)
			if err != nil {
				return nil, err
			}
			lv.Initializer = init
		}
		sc.locals = append(sc.locals, s.Name)
		return lv, nil
	case "if":
		var s struct {
			Cond yaml.Node `yaml:"cond"`
			Then yaml.Node `yaml:"then"`
			Else yaml.Node `yaml:"else"`
		}
		if err := v.Decode(&s); err != nil {
			return nil, err
		}
		cond, err := l.expr(&s.Cond, sc)
		if err != nil {
			return nil, err
		}
		then, err := l.block(&s.Then, sc)
		if err != nil {
			return nil, err
		}
		st := &If{Condition: cond, Then: then}
		if s.Else.Kind != 0 {
			if st.Else, err = l.block(&s.Else, sc); err != nil {
				return nil, err
			}
		}
		return st, nil
	case "while":
		var s struct {
			Cond yaml.Node `yaml:"cond"`
			Body yaml.Node `yaml:"body"`
		}
		if err := v.Decode(&s); err != nil {
			return nil, err
		}
		cond, err := l.expr(&s.Cond, sc)
		if err != nil {
			return nil, err
		}
		body, err := l.block(&s.Body, sc)
		return &While{Condition: cond, Body: body}, err
	case "for":
		var s struct {
			Var  string    `yaml:"var"`
			Type string    `yaml:"type"`
			In   yaml.Node `yaml:"in"`
			Body yaml.Node `yaml:"body"`
		}
		if err := v.Decode(&s); err != nil {
			return nil, err
		}
		iterable, err := l.expr(&s.In, sc)
		if err != nil {
			return nil, err
		}
		inner := sc.child()
		inner.locals = append(inner.locals, s.Var)
		body, err := l.block(&s.Body, inner)
		return &ForEach{Variable: s.Var, Type: l.typeRef(s.Type), Iterable: iterable, Body: body}, err
	case "try":
		return l.try(v, sc)
	}
	return nil, fmt.Errorf("line %d: unknown statement %q", n.Line, key)
}

func (l *loader) try(v *yaml.Node, sc *scope) (Statement, error) {
	var s struct {
		Body  yaml.Node `yaml:"body"`
		Catch []struct {
			Var  string    `yaml:"var"`
			Type string    `yaml:"type"`
			Body yaml.Node `yaml:"body"`
		} `yaml:"catch"`
		Finally yaml.Node `yaml:"finally"`
	}
	if err := v.Decode(&s); err != nil {
		return nil, err
	}
	body, err := l.block(&s.Body, sc)
	if err != nil {
		return nil, err
	}
	st := &Try{Body: body}
	for _, c := range s.Catch {
		inner := sc.child()
		inner.locals = append(inner.locals, c.Var)
		cb, err := l.block(&c.Body, inner)
		if err != nil {
			return nil, err
		}
		st.Catches = append(st.Catches, &Catch{Variable: c.Var, Type: l.typeRef(c.Type), Body: cb})
	}
	if s.Finally.Kind != 0 {
		if st.Finally, err = l.block(&s.Finally, sc); err != nil {
			return nil, err
		}
	}
	return st, nil
}

var _binaryOps = []string{OpAdd, OpSub, OpMul, OpDiv, OpRem, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr}

func (l *loader) expr(n *yaml.Node, sc *scope) (Expression, error) {
	if n == nil || n.Kind == 0 {
		return nil, errors.New("missing expression")
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return l.scalar(n, sc)
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("line %d: an expression must be a scalar or a mapping", n.Line)
	}
	if len(n.Content) != 2 {
		return nil, fmt.Errorf("line %d: an expression mapping must have a single key", n.Line)
	}
	key, v := n.Content[0].Value, n.Content[1]

	if slices.Contains(_binaryOps, key) && v.Kind == yaml.SequenceNode {
		if len(v.Content) != 2 {
			return nil, fmt.Errorf("line %d: operator %s takes two operands", v.Line, key)
		}
		operands, err := l.exprs(v.Content, sc)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: key, Left: operands[0], Right: operands[1]}, nil
	}

	switch key {
	case OpNot, OpNeg:
		operand, err := l.expr(v, sc)
		return &Unary{Op: key, Operand: operand}, err
	case "string":
		return &StringLit{Value: v.Value}, nil
	case "field":
		return l.field(v, sc)
	case "assign":
		if v.Kind != yaml.SequenceNode || len(v.Content) != 2 {
			return nil, fmt.Errorf("line %d: assign takes a target and a value", v.Line)
		}
		operands, err := l.exprs(v.Content, sc)
		if err != nil {
			return nil, err
		}
		switch operands[0].(type) {
		case *Local, *Param, *FieldAccess:
		default:
			return nil, fmt.Errorf("line %d: cannot assign to %s", v.Line, operands[0])
		}
		return &Assign{Target: operands[0], Value: operands[1]}, nil
	case "cond":
		if v.Kind != yaml.SequenceNode || len(v.Content) != 3 {
			return nil, fmt.Errorf("line %d: cond takes a condition and two alternatives", v.Line)
		}
		operands, err := l.exprs(v.Content, sc)
		if err != nil {
			return nil, err
		}
		return &Conditional{Condition: operands[0], Then: operands[1], Else: operands[2]}, nil
	case "call":
		return l.call(v, sc)
	case "new":
		return l.newObject(v, sc)
	}
	return nil, fmt.Errorf("line %d: unknown expression %q", n.Line, key)
}

func (l *loader) exprs(nodes []*yaml.Node, sc *scope) ([]Expression, error) {
	exprs := make([]Expression, 0, len(nodes))
	for _, c := range nodes {
		e, err := l.expr(c, sc)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func (l *loader) scalar(n *yaml.Node, sc *scope) (Expression, error) {
	switch n.Tag {
	case "!!null":
		return &NullLit{}, nil
	case "!!bool":
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return &BoolLit{Value: b}, nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return &IntLit{Value: i}, nil
	}
	name := n.Value
	if name == "this" {
		return &This{}, nil
	}
	if f, ok := strings.CutPrefix(name, "this."); ok {
		field, found := l.p.FieldByName(sc.owner, f)
		if !found {
			return nil, fmt.Errorf("line %d: unknown field %q", n.Line, f)
		}
		return &FieldAccess{Field: field.Index, Name: field.Name}, nil
	}
	if sc.isLocal(name) {
		return &Local{Name: name}, nil
	}
	if p, ok := sc.param(name); ok {
		return &Param{Index: p.Index, Name: p.Name}, nil
	}
	return nil, fmt.Errorf("line %d: unknown variable %q", n.Line, name)
}

func (l *loader) field(v *yaml.Node, sc *scope) (Expression, error) {
	var s struct {
		Name string    `yaml:"name"`
		Of   yaml.Node `yaml:"of"`
	}
	if v.Kind == yaml.ScalarNode {
		s.Name = v.Value
	} else if err := v.Decode(&s); err != nil {
		return nil, err
	}
	fa := &FieldAccess{Name: s.Name}
	if s.Of.Kind != 0 {
		scopeExpr, err := l.expr(&s.Of, sc)
		if err != nil {
			return nil, err
		}
		if _, isThis := scopeExpr.(*This); !isThis {
			fa.Scope = scopeExpr
		}
	}
	owner := sc.owner
	if fa.Scope != nil {
		owner = -1
	}
	f, ok := l.findField(owner, s.Name)
	if !ok {
		return nil, fmt.Errorf("line %d: unknown field %q", v.Line, s.Name)
	}
	fa.Field = f.Index
	return fa, nil
}

// findField looks a field up in the preferred type first, then in any type of the program.
func (l *loader) findField(preferred int, name string) (*Field, bool) {
	if preferred >= 0 {
		if f, ok := l.p.FieldByName(preferred, name); ok {
			return f, true
		}
	}
	for _, f := range l.p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

func (l *loader) call(v *yaml.Node, sc *scope) (Expression, error) {
	var s struct {
		Method  string      `yaml:"method"`
		On      yaml.Node   `yaml:"on"`
		Args    []yaml.Node `yaml:"args"`
		Returns string      `yaml:"returns"`
	}
	if err := v.Decode(&s); err != nil {
		return nil, err
	}
	c := &Call{Method: -1, Name: s.Method}
	if s.On.Kind != 0 {
		obj, err := l.expr(&s.On, sc)
		if err != nil {
			return nil, err
		}
		c.Object = obj
	}
	for i := range s.Args {
		arg, err := l.expr(&s.Args[i], sc)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, arg)
	}

	owner, name := sc.owner, s.Method
	if typeName, methodName, ok := strings.Cut(s.Method, "."); ok {
		t, found := l.p.TypeByName(typeName)
		if !found {
			c.Type = l.typeRef(s.Returns)
			return c, nil
		}
		owner, name = t.Index, methodName
	}
	m, ok := l.p.MethodByName(owner, name)
	if !ok {
		return nil, fmt.Errorf("line %d: unknown method %q", v.Line, s.Method)
	}
	if len(m.Parameters) != len(c.Args) {
		return nil, fmt.Errorf("line %d: %s takes %d arguments, got %d", v.Line, l.p.Describe(m), len(m.Parameters), len(c.Args))
	}
	c.Method, c.Name, c.Type = m.Index, m.Name, m.Return
	return c, nil
}

func (l *loader) newObject(v *yaml.Node, sc *scope) (Expression, error) {
	var s struct {
		Type string      `yaml:"type"`
		Args []yaml.Node `yaml:"args"`
	}
	if err := v.Decode(&s); err != nil {
		return nil, err
	}
	n := &New{Type: l.typeRef(s.Type), Constructor: -1}
	for i := range s.Args {
		arg, err := l.expr(&s.Args[i], sc)
		if err != nil {
			return nil, err
		}
		n.Args = append(n.Args, arg)
	}
	if n.Type.Kind == RefProgram {
		for _, ctor := range l.p.Constructors(n.Type.Type) {
			if len(ctor.Parameters) == len(n.Args) {
				n.Constructor = ctor.Index
				break
			}
		}
	}
	return n, nil
}
