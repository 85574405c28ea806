// Package acontext implements the lexical-scope context flavors:
// Global (process lifetime), Executive (a call-stack frame), and Analytic
// (compile-time only, used by the rebinder).
package acontext

import (
	"math/rand/v2"

	"github.com/asteria-lang/asteria/internal/hooks"
	"github.com/asteria-lang/asteria/internal/loader"
	"github.com/asteria-lang/asteria/internal/ref"
)

// Kind distinguishes the context flavors.
type Kind uint8

const (
	AnalyticPlain Kind = iota
	AnalyticFunction
	ExecutivePlain
	ExecutiveFunction
	Global
)

// Context is a name->Reference mapping plus an optional parent and a kind
// tag. Analytic contexts carry only placeholders; executive contexts own
// live references.
type Context struct {
	kind   Kind
	parent *Context
	names  map[string]ref.Reference
	order  []string // insertion order, returned by Names

	// Executive-only state.
	deferList []DeferredExpr

	// Global-only state.
	globalState *GlobalState
}

// DeferredExpr is a sub-queue captured at execution time, run on scope
// exit in reverse insertion order. The concrete queue type lives in
// internal/avmc; it is threaded through as `any` (a *avmc.Queue) to avoid
// an import cycle between acontext and avmc (avmc needs acontext to run
// handlers).
type DeferredExpr struct {
	Queue any
}

// GlobalState holds process-lifetime engine facilities: hooks, loader,
// recursion sentry, PRNG, and a pointer to the GC (kept as `any` for the
// same reason as DeferredExpr.Queue). Builtins/std are installed by the
// embedder with Declare on the Global context itself.
type GlobalState struct {
	Hooks      hooks.Hooks
	Loader     loader.Loader
	Collector  any // *gc.Collector
	RNG        *rand.Rand
	RecursionDepth int
	RecursionLimit int
}

// NewGlobal creates the root Global context.
func NewGlobal(state *GlobalState) *Context {
	return &Context{kind: Global, names: make(map[string]ref.Reference), globalState: state}
}

// NewAnalytic creates a compile-time context chained to parent.
func NewAnalytic(parent *Context, function bool) *Context {
	k := AnalyticPlain
	if function {
		k = AnalyticFunction
	}
	return &Context{kind: k, parent: parent, names: make(map[string]ref.Reference)}
}

// NewExecutive creates a runtime frame chained to parent.
func NewExecutive(parent *Context, function bool) *Context {
	k := ExecutivePlain
	if function {
		k = ExecutiveFunction
	}
	return &Context{kind: k, parent: parent, names: make(map[string]ref.Reference)}
}

func (c *Context) Kind() Kind { return c.kind }

func (c *Context) Parent() *Context { return c.parent }

func (c *Context) IsAnalytic() bool {
	return c.kind == AnalyticPlain || c.kind == AnalyticFunction
}

func (c *Context) IsFunctionBoundary() bool {
	return c.kind == AnalyticFunction || c.kind == ExecutiveFunction
}

// Global walks up the parent chain to the root Global context.
func (c *Context) Global() *Context {
	cur := c
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

func (c *Context) GlobalState() *GlobalState { return c.Global().globalState }

// Declare installs name, overwriting any prior binding in this context
// only (not the parent chain).
func (c *Context) Declare(name string, r ref.Reference) {
	if _, exists := c.names[name]; !exists {
		c.order = append(c.order, name)
	}
	c.names[name] = r
}

// Lookup walks the parent chain looking for name.
func (c *Context) Lookup(name string) (ref.Reference, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if r, ok := cur.names[name]; ok {
			return r, true
		}
	}
	return ref.Reference{}, false
}

// LookupLocal looks up name only in this context, not its parents.
func (c *Context) LookupLocal(name string) (ref.Reference, bool) {
	r, ok := c.names[name]
	return r, ok
}

// PushLocalReference skips `depth` parents first (captured at compile
// time by the rebinder) then looks up name in that ancestor context only.
func (c *Context) PushLocalReference(depth int, name string) (ref.Reference, bool) {
	cur := c
	for i := 0; i < depth && cur != nil; i++ {
		cur = cur.parent
	}
	if cur == nil {
		return ref.Reference{}, false
	}
	return cur.LookupLocal(name)
}

// Names returns the insertion-ordered name list declared directly in this
// context (not the parent chain). Used by internal/engine to enumerate
// the variables a context keeps alive for the collector.
func (c *Context) Names() []string { return c.order }

// PushDefer appends a deferred expression, to run in reverse insertion
// order on scope exit.
func (c *Context) PushDefer(d DeferredExpr) {
	c.deferList = append(c.deferList, d)
}

// DeferList returns the deferred expressions in LIFO (run) order.
func (c *Context) DeferList() []DeferredExpr {
	out := make([]DeferredExpr, len(c.deferList))
	for i, d := range c.deferList {
		out[len(c.deferList)-1-i] = d
	}
	return out
}
