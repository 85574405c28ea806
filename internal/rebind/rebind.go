// Package rebind implements the rebinder: it walks an AIR tree against a
// mirrored chain of Analytic contexts and replaces every push_local_ref
// the walk can resolve with a push_bound_ref, resolving what it can at
// compile time and leaving the rest dynamic.
//
// Rebinding runs once in this engine, when pkg/asteria compiles a program
// or module (against the Global context). Closures and deferred
// expressions created at runtime run the queues compiled then and are not
// rebound. The package operates purely on trees and a Context chain
// rather than holding any queue state itself.
package rebind

import (
	"github.com/asteria-lang/asteria/internal/acontext"
	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/ref"
)

// Rebind returns a tree equivalent to nodes with every resolvable
// push_local_ref replaced by a push_bound_ref (push_global_ref is left
// as it is), walking
// ctx as the lexical scope nodes execute in. Nodes that introduce a new
// scope (blocks, loop bodies, function bodies) are walked against a
// freshly pushed Analytic context, mirroring the runtime's own
// EnterBlock/LeaveBlock nesting.
//
// Rebind never mutates its input: a node whose subtree is unchanged is
// returned as the same pointer (structural sharing), and only nodes on
// the path to an actual rewrite are copied.
func Rebind(nodes []air.Node, ctx *acontext.Context) []air.Node {
	var out []air.Node
	changed := false
	for _, n := range nodes {
		rn := rebindOne(n, ctx)
		if rn != n {
			changed = true
		}
		out = append(out, rn)
	}
	if !changed {
		return nodes
	}
	return out
}

func rebindList(nodes []air.Node, parent *acontext.Context, function bool) []air.Node {
	child := acontext.NewAnalytic(parent, function)
	declareLocals(nodes, child)
	return Rebind(nodes, child)
}

// declareLocals pre-populates child with placeholder bindings for every
// name the block declares directly, so a forward reference inside the
// same block resolves to "declared but not yet bound" instead of
// escaping to an outer scope — matching the AIR's own two-phase
// declare/initialize shape.
func declareLocals(nodes []air.Node, ctx *acontext.Context) {
	for _, n := range nodes {
		switch x := n.(type) {
		case *air.DeclareVariable:
			ctx.Declare(x.Name, ref.Void())
		case *air.DefineNullVariable:
			ctx.Declare(x.Name, ref.Void())
		case *air.DeclareReference:
			ctx.Declare(x.Name, ref.Void())
		}
	}
}

func rebindOne(n air.Node, ctx *acontext.Context) air.Node {
	switch x := n.(type) {
	case *air.PushLocalRef:
		if depth, ok := resolve(ctx, x.Name); ok {
			return &air.PushBoundRef{Target: x, Depth: depth, Name: x.Name}
		}
		return x
	case *air.ExecuteBlock:
		body := rebindList(x.Body, ctx, false)
		if sameSlice(body, x.Body) {
			return x
		}
		return &air.ExecuteBlock{Body: body}
	case *air.If:
		then := rebindList(x.Then, ctx, false)
		els := rebindList(x.Else, ctx, false)
		cond := rebindOne(x.Cond, ctx)
		if sameSlice(then, x.Then) && sameSlice(els, x.Else) && cond == x.Cond {
			return x
		}
		return &air.If{Negative: x.Negative, Cond: cond, Then: then, Else: els}
	case *air.Switch:
		cond := rebindOne(x.Cond, ctx)
		clauses := make([]air.SwitchClause, len(x.Clauses))
		changed := cond != x.Cond
		for i, c := range x.Clauses {
			var label air.Node
			if c.Label != nil {
				label = rebindOne(c.Label, ctx)
			}
			body := rebindList(c.Body, ctx, false)
			if label != c.Label || !sameSlice(body, c.Body) {
				changed = true
			}
			clauses[i] = air.SwitchClause{Label: label, Body: body, LocalNames: c.LocalNames}
		}
		if !changed {
			return x
		}
		return &air.Switch{Cond: cond, Clauses: clauses}
	case *air.DoWhile:
		body := rebindList(x.Body, ctx, false)
		cond := rebindOne(x.Cond, ctx)
		if sameSlice(body, x.Body) && cond == x.Cond {
			return x
		}
		return &air.DoWhile{Body: body, Cond: cond}
	case *air.While:
		cond := rebindOne(x.Cond, ctx)
		body := rebindList(x.Body, ctx, false)
		if cond == x.Cond && sameSlice(body, x.Body) {
			return x
		}
		return &air.While{Cond: cond, Body: body}
	case *air.For:
		loopCtx := acontext.NewAnalytic(ctx, false)
		declareLocals(x.Init, loopCtx)
		init := Rebind(x.Init, loopCtx)
		var cond air.Node
		if x.Cond != nil {
			cond = rebindOne(x.Cond, loopCtx)
		}
		step := Rebind(x.Step, loopCtx)
		body := rebindList(x.Body, loopCtx, false)
		if sameSlice(init, x.Init) && cond == x.Cond && sameSlice(step, x.Step) && sameSlice(body, x.Body) {
			return x
		}
		return &air.For{Init: init, Cond: cond, Step: step, Body: body}
	case *air.ForEach:
		rangeNode := rebindOne(x.Range, ctx)
		bodyCtx := acontext.NewAnalytic(ctx, false)
		bodyCtx.Declare(x.KeyName, ref.Void())
		bodyCtx.Declare(x.ValueName, ref.Void())
		declareLocals(x.Body, bodyCtx)
		body := Rebind(x.Body, bodyCtx)
		if rangeNode == x.Range && sameSlice(body, x.Body) {
			return x
		}
		return &air.ForEach{KeyName: x.KeyName, ValueName: x.ValueName, Range: rangeNode, Body: body}
	case *air.TryCatch:
		try := rebindList(x.Try, ctx, false)
		catchCtx := acontext.NewAnalytic(ctx, false)
		catchCtx.Declare(x.CatchName, ref.Void())
		catchCtx.Declare("__backtrace", ref.Void())
		declareLocals(x.Catch, catchCtx)
		catch := Rebind(x.Catch, catchCtx)
		if sameSlice(try, x.Try) && sameSlice(catch, x.Catch) {
			return x
		}
		return &air.TryCatch{Try: try, CatchName: x.CatchName, Catch: catch}
	case *air.Throw:
		v := rebindOne(x.Value, ctx)
		if v == x.Value {
			return x
		}
		return &air.Throw{Sloc: x.Sloc, Value: v}
	case *air.Assert:
		cond := rebindOne(x.Cond, ctx)
		if cond == x.Cond {
			return x
		}
		return &air.Assert{Sloc: x.Sloc, Cond: cond, Message: x.Message}
	case *air.Return:
		if x.Value == nil {
			return x
		}
		v := rebindOne(x.Value, ctx)
		if v == x.Value {
			return x
		}
		return &air.Return{Sloc: x.Sloc, ByRef: x.ByRef, Value: v}
	case *air.DefineFunction:
		fnCtx := acontext.NewAnalytic(ctx, true)
		for _, p := range x.Params {
			if p.Name != "" {
				fnCtx.Declare(p.Name, ref.Void())
			}
		}
		declareLocals(x.Body, fnCtx)
		body := Rebind(x.Body, fnCtx)
		if sameSlice(body, x.Body) {
			return x
		}
		return &air.DefineFunction{Sloc: x.Sloc, Name: x.Name, Params: x.Params, Body: body}
	case *air.DeferExpression:
		body := rebindList(x.Body, ctx, false)
		if sameSlice(body, x.Body) {
			return x
		}
		return &air.DeferExpression{Sloc: x.Sloc, Body: body}
	case *air.BranchExpression:
		then := rebindOne(x.Then, ctx)
		els := rebindOne(x.Else, ctx)
		if then == x.Then && els == x.Else {
			return x
		}
		return &air.BranchExpression{Assign: x.Assign, Coalesce: x.Coalesce, Then: then, Else: els}
	case *air.ImportCall:
		p := rebindOne(x.Path, ctx)
		if p == x.Path {
			return x
		}
		return &air.ImportCall{Sloc: x.Sloc, Path: p}
	case *air.CheckArgument:
		v := rebindOne(x.Value, ctx)
		if v == x.Value {
			return x
		}
		return &air.CheckArgument{ByRef: x.ByRef, Value: v}
	case *air.CatchExpression:
		body := rebindList(x.Body, ctx, false)
		if sameSlice(body, x.Body) {
			return x
		}
		return &air.CatchExpression{Body: body}
	default:
		// Leaf alternatives (push_global_ref, push_constant,
		// function_call, apply_operator, ...) carry no nested AIR and no
		// name to resolve.
		return n
	}
}

// resolve walks ctx counting Analytic hops, mirroring
// acontext.Context.PushLocalReference's depth contract exactly so the
// solidified push_bound_ref's Depth lines up with the runtime Context
// chain built by internal/engine.
func resolve(ctx *acontext.Context, name string) (int, bool) {
	depth := 0
	for cur := ctx; cur != nil; cur = cur.Parent() {
		if _, ok := cur.LookupLocal(name); ok {
			return depth, true
		}
		if cur.Kind() == acontext.Global {
			return 0, false
		}
		depth++
	}
	return 0, false
}

func sameSlice(a, b []air.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
