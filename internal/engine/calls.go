package engine

import (
	"fmt"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
)

// Call implements direct and proper-tail-call invocation. A direct
// call (PTCNone) always bottoms out to a concrete value before returning.
// A tail call instead installs a PTCThunk and defers the actual work to
// the next barrier, so a chain of tail calls never grows the Go
// call stack.
func (d *Driver) Call(callee avmc.Ref, args []avmc.Ref, ptcMode air.PTCMode, sloc air.SourceLoc) (avmc.Ref, error) {
	resolvedCallee, err := d.Barrier(callee)
	if err != nil {
		return ref.Reference{}, err
	}
	cv, err := resolvedCallee.DereferenceReadonly()
	if err != nil {
		return ref.Reference{}, err
	}
	if cv.Tag() != value.Function {
		return ref.Reference{}, fmt.Errorf("engine: call target is not a function (got %s)", cv.Tag())
	}
	fn, ok := cv.AsFunction().(*Closure)
	if !ok {
		return ref.Reference{}, fmt.Errorf("engine: call target is not an engine-native function")
	}

	if ptcMode == air.PTCNone {
		r, err := d.invokeOnce(fn, args, sloc)
		if err != nil {
			return ref.Reference{}, err
		}
		return d.Barrier(r)
	}

	thunk := &ref.PTCThunk{
		SourceLine: sloc.Line,
		Mode:       convertPTCMode(ptcMode),
		Target:     cv,
		Invoke: func() (ref.Reference, error) {
			return d.invokeOnce(fn, args, sloc)
		},
	}
	return ref.PTC(thunk), nil
}

// Barrier forces a pending tail call to run to a concrete reference,
// iterating rather than recursing so an arbitrarily long tail-call chain
// costs bounded Go stack.
//
// Each thunk it resolves stands in for a call site invokeOnce never
// wrapped with its own "function" frame, because the call that created
// the thunk returned before the thunk ever ran. If the chain eventually
// errors, Barrier appends one "call" frame per thunk it walked through
// (innermost first) so an uncaught exception's backtrace names every
// tail-call site the same way a non-tail chain's nested invokeOnce calls
// would have, just annotated by PTC site rather than by function frame.
func (d *Driver) Barrier(r avmc.Ref) (avmc.Ref, error) {
	cur := r
	var chain []*ref.PTCThunk
	for cur.Root() == ref.RootPTC {
		thunk := cur.Thunk()
		chain = append(chain, thunk)
		nxt, err := thunk.Invoke()
		if err != nil {
			exc := asException(err)
			for i := len(chain) - 1; i >= 0; i-- {
				t := chain[i]
				exc.Frames = append(exc.Frames, Frame{
					Kind:  "call",
					Line:  t.SourceLine,
					Value: t.Target,
				})
			}
			return ref.Reference{}, exc
		}
		cur = nxt
	}
	return cur, nil
}

func convertPTCMode(m air.PTCMode) ref.PTCMode {
	switch m {
	case air.PTCByRef:
		return ref.PTCByRef
	case air.PTCByVal:
		return ref.PTCByVal
	case air.PTCVoid:
		return ref.PTCVoid
	default:
		return ref.PTCNone
	}
}

// invokeOnce runs exactly one frame of fn against args: it does not
// resolve a trailing tail call the body itself installs, leaving that to
// the caller's Barrier loop.
func (d *Driver) invokeOnce(fn *Closure, args []ref.Reference, sloc air.SourceLoc) (ref.Reference, error) {
	gs := d.global.GlobalState()
	if gs.RecursionLimit > 0 && gs.RecursionDepth >= gs.RecursionLimit {
		return ref.Reference{}, &Exception{
			Payload: value.Str("recursion limit exceeded"),
			Frames:  []Frame{{Kind: "native", File: sloc.File, Line: sloc.Line, Column: sloc.Column}},
		}
	}
	gs.RecursionDepth++
	defer func() { gs.RecursionDepth-- }()

	targetVal := value.Fn(fn)
	d.hooks.OnFunctionCall(toHookSloc(sloc), targetVal)

	bs := d.enterBlockWithParent(fn.env, true)
	if err := bindParams(d, bs.ctx, fn.params, args); err != nil {
		d.blocks = d.blocks[:len(d.blocks)-1]
		wrapped := augmentFrame(err, "function", sloc, fn.name)
		d.hooks.OnFunctionExcept(toHookSloc(sloc), targetVal, wrapped)
		return ref.Reference{}, wrapped
	}

	status, err := fn.body.Run(d)
	status, err = d.LeaveBlock(bs, status, err)
	if err != nil {
		wrapped := augmentFrame(err, "function", sloc, fn.name)
		d.hooks.OnFunctionExcept(toHookSloc(sloc), targetVal, wrapped)
		return ref.Reference{}, wrapped
	}

	var result ref.Reference
	switch status {
	case air.StatusReturnRef:
		result = d.Pop()
	case air.StatusReturnVoid, air.StatusNext:
		result = ref.Constant(value.Nil())
	default:
		return ref.Reference{}, fmt.Errorf("engine: a break/continue escaped the function body of %q", fn.Name())
	}

	var resVal value.Value
	if result.Root() != ref.RootPTC {
		resVal, _ = result.DereferenceReadonly()
	}
	d.hooks.OnFunctionReturn(toHookSloc(sloc), targetVal, resVal)
	return result, nil
}

// bindParams binds each call argument reference directly to its
// parameter name: by-value vs by-reference passing is already decided at
// the call site by `check_argument`, so the parameter simply inherits
// whatever kind of reference arrived.
func bindParams(d *Driver, ctx interface {
	Declare(name string, r ref.Reference)
}, params []air.FunctionParam, args []ref.Reference) error {
	for i, p := range params {
		if p.Variadic || p.Name == "" {
			var remaining []ref.Reference
			if i < len(args) {
				remaining = args[i:]
			}
			elems := make([]value.Value, len(remaining))
			for j, a := range remaining {
				v, err := a.DereferenceReadonly()
				if err != nil {
					return err
				}
				elems[j] = v
			}
			if p.Name != "" {
				v := d.collector.Allocate(false)
				if err := v.Initialize(value.Arr(elems)); err != nil {
					return err
				}
				ctx.Declare(p.Name, ref.Variable(v))
			}
			return nil
		}
		var argRef ref.Reference
		if i < len(args) {
			argRef = args[i]
		} else {
			argRef = ref.Constant(value.Nil())
		}
		if p.Name != "" {
			ctx.Declare(p.Name, argRef)
		}
	}
	return nil
}
