package engine

import (
	"github.com/asteria-lang/asteria/internal/acontext"
	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
	"github.com/asteria-lang/asteria/internal/variable"
)

// Closure is the engine's native value.Function implementation: a
// function body plus the lexical context it closed over at definition
// time. It also implements variable.ChildEnumerator so the
// collector can trace into whatever Variables the closure keeps alive.
type Closure struct {
	name   string
	params []air.FunctionParam
	body   *avmc.Queue
	env    *acontext.Context
	sloc   air.SourceLoc
}

func (c *Closure) Name() string {
	if c.name == "" {
		return "<anonymous>"
	}
	return c.name
}

func (c *Closure) IsCallable() {}

func (c *Closure) EnumerateChildren(fn func(*variable.Variable) bool) {
	enumerateContextVariables(c.env, fn)
}

// MakeFunction materializes a Closure over the current scope chain.
func (d *Driver) MakeFunction(name string, params []air.FunctionParam, body *avmc.Queue, sloc air.SourceLoc) avmc.Ref {
	cl := &Closure{name: name, params: params, body: body, env: d.currentCtx(), sloc: sloc}
	return ref.Temporary(value.Fn(cl))
}

// enumerateContextVariables walks ctx and its ancestor chain (stopping
// after the Global context) yielding every locally bound Variable,
// including ones reachable only through a captured closure or a
// temporary/constant value nested inside a local binding.
func enumerateContextVariables(ctx *acontext.Context, fn func(*variable.Variable) bool) bool {
	for cur := ctx; cur != nil; cur = cur.Parent() {
		for _, name := range cur.Names() {
			r, ok := cur.LookupLocal(name)
			if !ok {
				continue
			}
			if !enumerateRefVariables(r, fn) {
				return false
			}
		}
		if cur.Kind() == acontext.Global {
			break
		}
	}
	return true
}

// enumerateRefVariables yields the Variable(s) a single Reference
// reaches: itself for a plain variable root, or whatever
// variable.Enumerate finds nested in a temporary/constant/PTC payload.
func enumerateRefVariables(r ref.Reference, fn func(*variable.Variable) bool) bool {
	if vr, ok := r.UnphaseVariableOpt(); ok {
		return fn(vr)
	}
	switch r.Root() {
	case ref.RootVariable:
		return fn(r.Variable())
	case ref.RootTemporary, ref.RootConstant:
		v, err := r.DereferenceReadonly()
		if err != nil {
			return true
		}
		ok := true
		variable.Enumerate(v, func(child *variable.Variable) bool {
			ok = fn(child)
			return ok
		})
		return ok
	case ref.RootPTC:
		thunk := r.Thunk()
		if thunk == nil {
			return true
		}
		ok := true
		variable.Enumerate(thunk.Target, func(child *variable.Variable) bool {
			ok = fn(child)
			return ok
		})
		return ok
	default:
		return true
	}
}
