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

package statement

import (
	"fmt"

	"go.uber.org/immutaway/delay"
	"go.uber.org/immutaway/diagnostic"
	"go.uber.org/immutaway/hook"
	"go.uber.org/immutaway/linked"
	"go.uber.org/immutaway/model"
	"go.uber.org/immutaway/property"
	"go.uber.org/immutaway/variable"
)

func (e *evaluator) call(x *model.Call) evalResult {
	var callee *model.Method
	if !x.IsExternal() {
		callee = e.r.program.Method(x.Method)
	}
	var object evalResult
	hasObject := false
	switch {
	case x.Object != nil:
		object, hasObject = e.eval(x.Object), true
		e.deref(object, x.Object.String())
	case callee != nil && !callee.Static:
		object, hasObject = e.readVariable(variable.NewThis()), true
	}
	args := make([]evalResult, len(x.Args))
	for i, a := range x.Args {
		args[i] = e.eval(a)
	}
	if callee == nil {
		return e.externalCall(x, object, hasObject, args)
	}
	return e.programCall(x, callee, object, hasObject, args)
}

// lookup reads a property of another method; the analysed method itself (a recursive call)
// contributes nothing and yields def.
func (e *evaluator) lookup(callee *model.Method, kind property.Kind, def property.DV) property.DV {
	if callee.Index == e.r.method.Index {
		return def
	}
	return e.delayOn(e.r.ctx.MethodProperty(callee.Index, kind))
}

func (e *evaluator) lookupParameter(callee *model.Method, i int, kind property.Kind, def property.DV) property.DV {
	if callee.Index == e.r.method.Index {
		return def
	}
	return e.delayOn(e.r.ctx.ParameterProperty(callee.Index, i, kind))
}

// arguments applies what a program method or constructor does to its arguments: null passed to
// a not-null parameter is reported, and modified parameters modify the variables passed.
func (e *evaluator) arguments(callee *model.Method, x []model.Expression, args []evalResult) {
	for i, a := range args {
		if i >= len(callee.Parameters) || callee.Parameters[i].Type.IsPrimitive() {
			continue
		}
		p := callee.Parameters[i]
		if v, ok := a.value.Get(); ok && IsNull(v) {
			if nn := e.lookupParameter(callee, i, property.NotNullParameter, _nullable); nn.Ge(property.EffectivelyNotNull) {
				e.message(diagnostic.PotentialNullPointer, fmt.Sprintf("argument %s of %s", p.Name, e.r.program.Describe(callee)))
			}
		}
		if a.isVar {
			e.markModified(a.variable, e.lookupParameter(callee, i, property.ModifiedVariable, property.False))
		}
	}
}

func (e *evaluator) programCall(x *model.Call, callee *model.Method, object evalResult, hasObject bool, args []evalResult) evalResult {
	if hasObject && object.isVar {
		modified := e.lookup(callee, property.ModifiedMethod, property.False)
		e.markModified(object.variable, modified)
		if modified.IsTrue() {
			e.checkModifyingImmutable(object, object.variable.String())
		}
	}
	e.arguments(callee, x.Args, args)

	if callee.Return.IsVoid() {
		return evalResult{value: delay.Done[Value](Instance{Type: callee.Return, Origin: "call"}), notNull: _notNull, linked: linked.Empty()}
	}
	if c, ok := ConstantResult(callee); ok {
		return constant(c)
	}
	res := evalResult{
		value:   delay.Done[Value](Instance{Type: callee.Return, Origin: "call", NotNull: callee.Return.IsPrimitive()}),
		notNull: _notNull,
		linked:  linked.Empty(),
	}
	if callee.Return.IsPrimitive() {
		return res
	}
	res.notNull = e.lookup(callee, property.NotNullExpression, _nullable)
	if hasObject {
		res.linked = linkThrough(object.linked, e.lookup(callee, property.Independent, property.Of(property.Dependent)))
		if callee.Return.Kind == model.RefProgram && callee.Return.Type == callee.Owner &&
			e.lookup(callee, property.Fluent, property.False).IsTrue() {
			return evalResult{value: object.value, notNull: _notNull, linked: object.linked}
		}
	}
	if len(args) > 0 && len(callee.Parameters) > 0 && callee.Parameters[0].Type == callee.Return &&
		e.lookup(callee, property.Identity, property.False).IsTrue() {
		return args[0]
	}
	return res
}

func (e *evaluator) externalCall(x *model.Call, object evalResult, hasObject bool, args []evalResult) evalResult {
	info := hook.Method(x.Name)
	if hasObject && object.isVar {
		e.markModified(object.variable, property.Bool(info.Modifying))
		if info.Modifying {
			e.checkModifyingImmutable(object, object.variable.String())
		}
	}
	if info.NotNullArgs {
		for i, a := range args {
			e.deref(a, x.Args[i].String())
		}
	}
	if hasObject && info.Fluent {
		return evalResult{value: object.value, notNull: _notNull, linked: object.linked}
	}
	res := evalResult{
		value: delay.Done[Value](Instance{
			Type:      x.Type,
			Origin:    "call",
			Immutable: info.ResultImmutable,
			NotNull:   info.NotNullResult || x.Type.IsPrimitive(),
		}),
		notNull: notNullIf(info.NotNullResult || x.Type.IsPrimitive() || x.Type.IsVoid()),
		linked:  linked.Empty(),
	}
	if hasObject && !x.Type.IsPrimitive() && !x.Type.IsVoid() {
		independent := info.ResultIndependent
		if independent == 0 {
			independent = property.Dependent
		}
		res.linked = linkThrough(object.linked, property.Of(independent))
	}
	return res
}

// terminates reports whether an expression statement never completes normally.
func terminates(x model.Expression) bool {
	c, ok := x.(*model.Call)
	return ok && c.IsExternal() && hook.TerminatingCall(c.Name)
}

func (e *evaluator) newObject(x *model.New) evalResult {
	args := make([]evalResult, len(x.Args))
	for i, a := range x.Args {
		args[i] = e.eval(a)
	}
	links := linked.Empty()
	if x.Constructor >= 0 {
		ctor := e.r.program.Method(x.Constructor)
		e.arguments(ctor, x.Args, args)
		for i, a := range args {
			if i < len(ctor.Parameters) && !ctor.Parameters[i].Type.IsPrimitive() {
				independent := e.lookupParameter(ctor, i, property.Independent, property.Of(property.Dependent))
				links = links.Union(linkThrough(a.linked, independent))
			}
		}
	} else {
		for _, a := range args {
			if !e.declaredType(a).IsPrimitive() {
				links = links.Union(a.linked.Minimum(linked.CommonHC))
			}
		}
	}
	return evalResult{
		value:   delay.Done[Value](Instance{Type: x.Type, Origin: "new", NotNull: true}),
		notNull: _notNull,
		linked:  links,
	}
}
