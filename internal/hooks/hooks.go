// Package hooks defines the host-facing observation interface.
// The engine core depends only on this interface; concrete sinks (a debug
// gRPC stream, a REPL's tracer) are external collaborators.
package hooks

import "github.com/asteria-lang/asteria/internal/value"

// SourceLoc identifies a point in the (externally parsed) source text
// that produced an AIR node, carried through for diagnostics.
type SourceLoc struct {
	File   string
	Line   int
	Column int
}

// Hooks is the set of observation callbacks the engine fires. The methods
// return no error, and the engine calls them directly: a panic raised
// inside a hook is not recovered by the engine and unwinds through it to
// the embedder's call.
type Hooks interface {
	OnVariableDeclare(sloc SourceLoc, name string)
	OnFunctionCall(sloc SourceLoc, target value.Value)
	OnFunctionReturn(sloc SourceLoc, target value.Value, result value.Value)
	OnFunctionExcept(sloc SourceLoc, target value.Value, err error)
	OnSingleStepTrap(sloc SourceLoc)
}

// NopHooks implements Hooks with no-ops; used when the Global context has
// no hook object installed, matching "hooks as optional capability".
type NopHooks struct{}

func (NopHooks) OnVariableDeclare(SourceLoc, string)                    {}
func (NopHooks) OnFunctionCall(SourceLoc, value.Value)                  {}
func (NopHooks) OnFunctionReturn(SourceLoc, value.Value, value.Value)   {}
func (NopHooks) OnFunctionExcept(SourceLoc, value.Value, error)         {}
func (NopHooks) OnSingleStepTrap(SourceLoc)                             {}
