// Package engine implements the execution driver, the proper
// tail-call trampoline and structured exceptions with scope-exit
// semantics: the concrete avmc.Machine the solidifier's handlers
// run against. It is built as a flat operand stack plus a block-scope
// stack walked by a single dispatch loop, rather than a recursive
// tree-walking evaluator.
package engine

import (
	"fmt"

	"github.com/asteria-lang/asteria/internal/acontext"
	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/gc"
	"github.com/asteria-lang/asteria/internal/hooks"
	"github.com/asteria-lang/asteria/internal/loader"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
	"github.com/asteria-lang/asteria/internal/variable"
)

// blockScope is the Scope token EnterBlock/LeaveBlock exchange: a lexical
// context plus the evaluation-stack height it started at, so LeaveBlock
// can restore the stack-height invariant regardless of how the block
// exited.
type blockScope struct {
	ctx      *acontext.Context
	baseline int
}

// Driver is the running machine for one script invocation: an operand
// stack, an argument-assembly alt stack, and a stack of lexical block
// scopes rooted at a shared Global context.
type Driver struct {
	stack  []ref.Reference
	alt    []ref.Reference
	blocks []*blockScope

	global    *acontext.Context
	collector *gc.Collector
	hooks     hooks.Hooks
	loader    loader.Loader

	// modules holds pre-solidified module bodies keyed by canonical path,
	// since parsing source text into AIR is an external concern: the
	// embedder registers a module's AVMC queue the same way it registers
	// the entry program's.
	modules        map[string]*avmc.Queue
	loadingModules map[string]bool
}

// New builds a Driver with its own Collector and Global context. g0, g1
// and g2 are the generational thresholds and recursionLimit bounds call
// nesting (0 disables it); h and ld may be nil (defaulting to
// hooks.NopHooks and a loader.FileLoader).
func New(g0, g1, g2 int, recursionLimit int, h hooks.Hooks, ld loader.Loader, rngSeed [32]byte) *Driver {
	if h == nil {
		h = hooks.NopHooks{}
	}
	if ld == nil {
		ld = loader.NewFileLoader()
	}
	d := &Driver{
		hooks:          h,
		loader:         ld,
		modules:        make(map[string]*avmc.Queue),
		loadingModules: make(map[string]bool),
	}
	d.collector = gc.New(g0, g1, g2)
	d.collector.Roots = d.gcRoots
	state := &acontext.GlobalState{
		Hooks:          h,
		Loader:         ld,
		Collector:      d.collector,
		RNG:            newRand(rngSeed),
		RecursionLimit: recursionLimit,
	}
	d.global = acontext.NewGlobal(state)
	return d
}

// Collector exposes the owned collector for host diagnostics
// (pkg/asteria's GC log) and tests.
func (d *Driver) Collector() *gc.Collector { return d.collector }

// Global exposes the root lexical context so embedders
// (pkg/asteria) can install builtins before running a module.
func (d *Driver) Global() *acontext.Context { return d.global }

// RegisterModule makes a pre-solidified module body importable under
// canonicalPath.
func (d *Driver) RegisterModule(canonicalPath string, q *avmc.Queue) {
	d.modules[canonicalPath] = q
}

// RunModule executes q as the top-level program, returning the value of
// its explicit return statement (null if the body completes normally
// without one).
func (d *Driver) RunModule(q *avmc.Queue) (value.Value, error) {
	scope := d.EnterBlock(true)
	status, err := q.Run(d)
	status, err = d.LeaveBlock(scope, status, err)
	if err != nil {
		return value.Value{}, err
	}
	switch status {
	case air.StatusReturnRef:
		r := d.Pop()
		resolved, err := d.Barrier(r)
		if err != nil {
			return value.Value{}, err
		}
		return resolved.DereferenceReadonly()
	default:
		return value.Nil(), nil
	}
}

// ---- evaluation stack ----

func (d *Driver) Push(r avmc.Ref) { d.stack = append(d.stack, r) }

func (d *Driver) Pop() avmc.Ref {
	n := len(d.stack)
	r := d.stack[n-1]
	d.stack = d.stack[:n-1]
	return r
}

func (d *Driver) Peek(fromTop int) avmc.Ref {
	return d.stack[len(d.stack)-1-fromTop]
}

func (d *Driver) Height() int { return len(d.stack) }

func (d *Driver) Truncate(height int) {
	if height < len(d.stack) {
		d.stack = d.stack[:height]
	}
}

// ---- alt (argument-assembly) stack ----

func (d *Driver) PushAlt(r avmc.Ref) { d.alt = append(d.alt, r) }

func (d *Driver) PopAlt() avmc.Ref {
	n := len(d.alt)
	r := d.alt[n-1]
	d.alt = d.alt[:n-1]
	return r
}

func (d *Driver) AltLen() int { return len(d.alt) }

func (d *Driver) currentCtx() *acontext.Context {
	if len(d.blocks) == 0 {
		return d.global
	}
	return d.blocks[len(d.blocks)-1].ctx
}

// ---- lexical scope ----

func (d *Driver) enterBlockWithParent(parent *acontext.Context, function bool) *blockScope {
	ctx := acontext.NewExecutive(parent, function)
	bs := &blockScope{ctx: ctx, baseline: d.Height()}
	d.blocks = append(d.blocks, bs)
	return bs
}

func (d *Driver) EnterBlock(function bool) avmc.Scope {
	return d.enterBlockWithParent(d.currentCtx(), function)
}

// LeaveBlock runs the block's deferred expressions (in reverse insertion
// order, regardless of exit path), then restores the
// evaluation stack to the block's baseline height, preserving a
// return-by-reference result across the truncation.
func (d *Driver) LeaveBlock(s avmc.Scope, status air.StatusCode, propagated error) (air.StatusCode, error) {
	bs, ok := s.(*blockScope)
	if !ok {
		return air.StatusNext, fmt.Errorf("engine: LeaveBlock given a foreign scope token")
	}

	excErr := propagated
	for _, de := range bs.ctx.DeferList() {
		q, _ := de.Queue.(*avmc.Queue)
		if q == nil {
			continue
		}
		deferBaseline := d.Height()
		_, derr := q.Run(d)
		d.Truncate(deferBaseline)
		if derr != nil {
			if excErr != nil {
				excErr = d.WrapCatch(excErr, derr)
			} else {
				excErr = derr
			}
		}
	}

	d.blocks = d.blocks[:len(d.blocks)-1]

	if excErr != nil {
		d.Truncate(bs.baseline)
		return air.StatusNext, excErr
	}

	switch status {
	case air.StatusReturnRef:
		top := d.Pop()
		d.Truncate(bs.baseline)
		d.Push(top)
	default:
		d.Truncate(bs.baseline)
	}
	return status, nil
}

func (d *Driver) BlockBaseline() int {
	if len(d.blocks) == 0 {
		return 0
	}
	return d.blocks[len(d.blocks)-1].baseline
}

// ---- declarations ----

func (d *Driver) Declare(name string, immutable bool) error {
	v := d.collector.Allocate(immutable)
	d.currentCtx().Declare(name, ref.Variable(v))
	d.hooks.OnVariableDeclare(hooks.SourceLoc{}, name)
	return nil
}

func (d *Driver) DefineNull(name string, immutable bool) error {
	v := d.collector.Allocate(immutable)
	if err := v.Initialize(value.Nil()); err != nil {
		return err
	}
	d.currentCtx().Declare(name, ref.Variable(v))
	d.hooks.OnVariableDeclare(hooks.SourceLoc{}, name)
	return nil
}

func (d *Driver) DeclareRef(name string) error {
	d.currentCtx().Declare(name, ref.Void())
	return nil
}

func (d *Driver) InitializeLocal(name string) error {
	r, ok := d.currentCtx().LookupLocal(name)
	if !ok {
		return fmt.Errorf("engine: initialize of undeclared name %q", name)
	}
	v, ok := r.UnphaseVariableOpt()
	if !ok {
		return fmt.Errorf("engine: %q is not a plain variable binding", name)
	}
	top := d.Pop()
	resolved, err := d.Barrier(top)
	if err != nil {
		return err
	}
	val, err := resolved.DereferenceReadonly()
	if err != nil {
		return err
	}
	return v.Initialize(val)
}

func (d *Driver) InitializeRefLocal(name string) error {
	top := d.Pop()
	d.currentCtx().Declare(name, top)
	return nil
}

// ---- lookups ----

func (d *Driver) LookupGlobal(name string) (avmc.Ref, error) {
	r, ok := d.global.LookupLocal(name)
	if !ok {
		return ref.Reference{}, fmt.Errorf("engine: undefined global %q", name)
	}
	return r, nil
}

func (d *Driver) LookupLocal(depth int, name string) (avmc.Ref, bool) {
	return d.currentCtx().PushLocalReference(depth, name)
}

func (d *Driver) LookupChain(name string) (avmc.Ref, bool) {
	return d.currentCtx().Lookup(name)
}

// ---- misc runtime services ----

func (d *Driver) RandomSeed() int64 {
	return int64(d.global.GlobalState().RNG.Uint64())
}

func (d *Driver) SingleStep(sloc air.SourceLoc) {
	d.hooks.OnSingleStepTrap(toHookSloc(sloc))
}

func (d *Driver) PushDefer(q *avmc.Queue, sloc air.SourceLoc) {
	d.currentCtx().PushDefer(acontext.DeferredExpr{Queue: q})
}

func (d *Driver) AllocVariable(immutable bool) avmc.Ref {
	v := d.collector.Allocate(immutable)
	return ref.Variable(v)
}

func toHookSloc(s air.SourceLoc) hooks.SourceLoc {
	return hooks.SourceLoc{File: s.File, Line: s.Line, Column: s.Column}
}

func (d *Driver) gcRoots() []*variable.Variable {
	var roots []*variable.Variable
	collect := func(v *variable.Variable) bool {
		roots = append(roots, v)
		return true
	}
	for _, r := range d.stack {
		enumerateRefVariables(r, collect)
	}
	for _, r := range d.alt {
		enumerateRefVariables(r, collect)
	}
	for _, bs := range d.blocks {
		enumerateContextVariables(bs.ctx, collect)
	}
	enumerateContextVariables(d.global, collect)
	return roots
}

var _ avmc.Machine = (*Driver)(nil)
