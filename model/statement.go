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

// Statement is a statement of a method body. Every statement has an index, assigned by
// Program.Finalize, giving its position: "2" is the third statement of the body, "2.1.0" the
// first statement of the second sub-block of statement "2". Segments are zero-padded to the
// width of their block so that indices compare as plain strings in traversal order.
type Statement interface {
	Index() string
	// Blocks returns the sub-blocks of the statement, in order.
	Blocks() []*Block

	setIndex(index string)
}

// Block is a sequence of statements.
type Block struct {
	Statements []Statement
}

type stmt struct {
	index string
}

func (s *stmt) Index() string         { return s.index }
func (s *stmt) setIndex(index string) { s.index = index }
func (s *stmt) Blocks() []*Block      { return nil }

// ExpressionStatement evaluates an expression for its side effects.
type ExpressionStatement struct {
	stmt
	Expression Expression
}

// LocalVariable declares a local variable, with an optional initializer.
type LocalVariable struct {
	stmt
	Name        string
	Type        TypeRef
	Initializer Expression
}

// Return returns from the method, with a value unless the method is void.
type Return struct {
	stmt
	Value Expression
}

// Throw throws an exception.
type Throw struct {
	stmt
	Value Expression
}

// If is an if statement with an optional else block.
type If struct {
	stmt
	Condition Expression
	Then      *Block
	Else      *Block
}

func (s *If) Blocks() []*Block {
	if s.Else == nil {
		return []*Block{s.Then}
	}
	return []*Block{s.Then, s.Else}
}

// While is a while loop.
type While struct {
	stmt
	Condition Expression
	Body      *Block
}

func (s *While) Blocks() []*Block { return []*Block{s.Body} }

// ForEach iterates over the elements of an iterable expression.
type ForEach struct {
	stmt
	Variable string
	Type     TypeRef
	Iterable Expression
	Body     *Block
}

func (s *ForEach) Blocks() []*Block { return []*Block{s.Body} }

// Nested is a block statement.
type Nested struct {
	stmt
	Body *Block
}

func (s *Nested) Blocks() []*Block { return []*Block{s.Body} }

// Catch is a catch clause of a try statement.
type Catch struct {
	Variable string
	Type     TypeRef
	Body     *Block
}

// Try is a try statement with catch clauses and an optional finally block.
type Try struct {
	stmt
	Body    *Block
	Catches []*Catch
	Finally *Block
}

func (s *Try) Blocks() []*Block {
	blocks := []*Block{s.Body}
	for _, c := range s.Catches {
		blocks = append(blocks, c.Body)
	}
	if s.Finally != nil {
		blocks = append(blocks, s.Finally)
	}
	return blocks
}

// Break leaves the innermost loop.
type Break struct {
	stmt
}

// Continue starts the next iteration of the innermost loop.
type Continue struct {
	stmt
}

// Assert asserts a condition.
type Assert struct {
	stmt
	Condition Expression
}

// Expressions returns the expressions a statement evaluates itself, not those of its sub-blocks.
func Expressions(s Statement) []Expression {
	var exprs []Expression
	add := func(e Expression) {
		if e != nil {
			exprs = append(exprs, e)
		}
	}
	switch s := s.(type) {
	case *ExpressionStatement:
		add(s.Expression)
	case *LocalVariable:
		add(s.Initializer)
	case *Return:
		add(s.Value)
	case *Throw:
		add(s.Value)
	case *If:
		add(s.Condition)
	case *While:
		add(s.Condition)
	case *ForEach:
		add(s.Iterable)
	case *Assert:
		add(s.Condition)
	}
	return exprs
}

// WalkStatements calls f for every statement of a block, depth first, in traversal order.
func WalkStatements(b *Block, f func(Statement)) {
	if b == nil {
		return
	}
	for _, s := range b.Statements {
		f(s)
		for _, sub := range s.Blocks() {
			WalkStatements(sub, f)
		}
	}
}

// WalkExpressions calls f for every expression (and sub-expression) in a block.
func WalkExpressions(b *Block, f func(Expression)) {
	WalkStatements(b, func(s Statement) {
		for _, e := range Expressions(s) {
			Inspect(e, func(e Expression) bool {
				f(e)
				return true
			})
		}
	})
}
