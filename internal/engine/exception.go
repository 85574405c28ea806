package engine

import (
	"fmt"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
)

// Frame is one entry of a structured exception's backtrace:
// "throw" or "assert" (the raising statement), "function", "call" (a PTC
// trampoline site), "catch" (an error chained by WrapCatch) and "native"
// (an engine-raised error with no script throw statement). No "try"
// frame is recorded.
type Frame struct {
	Kind   string
	File   string
	Line   int
	Column int
	Value  value.Value
}

// Exception is the error type every script-level throw, and every
// engine-raised runtime error, eventually becomes. Frames accumulate as
// the error propagates out through scope-exit boundaries.
type Exception struct {
	Payload value.Value
	Frames  []Frame
}

func (e *Exception) Error() string {
	return fmt.Sprintf("exception: %s", e.Payload.Inspect())
}

// MarshalYAML renders the exception as a structured diagnostic:
// the payload plus the backtrace frame list, for a host to log or dump.
func (e *Exception) MarshalYAML() (any, error) {
	payload, err := e.Payload.MarshalYAML()
	if err != nil {
		return nil, err
	}
	frames := make([]any, len(e.Frames))
	for i, f := range e.Frames {
		fv, err := f.Value.MarshalYAML()
		if err != nil {
			return nil, err
		}
		frames[i] = map[string]any{
			"kind":   f.Kind,
			"file":   f.File,
			"line":   f.Line,
			"column": f.Column,
			"value":  fv,
		}
	}
	return map[string]any{
		"payload": payload,
		"frames":  frames,
	}, nil
}

// asException coerces any error into *Exception, wrapping a foreign
// error's message as a string payload with no frames yet.
func asException(err error) *Exception {
	if exc, ok := err.(*Exception); ok {
		return exc
	}
	return &Exception{Payload: value.Str(err.Error())}
}

// augmentFrame appends one backtrace frame to err (coercing it to an
// Exception first if it is a foreign error), annotating it with sloc and
// an optional payload describing the frame (e.g. the function name).
func augmentFrame(err error, kind string, sloc air.SourceLoc, label string) *Exception {
	exc := asException(err)
	exc.Frames = append(exc.Frames, Frame{
		Kind:   kind,
		File:   sloc.File,
		Line:   sloc.Line,
		Column: sloc.Column,
		Value:  value.Str(label),
	})
	return exc
}

// Throw raises val as a structured exception with a single "throw" frame
// at sloc. kind distinguishes a script `throw` from an `assert` failure.
func (d *Driver) Throw(val avmc.Ref, sloc air.SourceLoc, kind string) error {
	resolved, err := d.Barrier(val)
	if err != nil {
		return err
	}
	v, err := resolved.DereferenceReadonly()
	if err != nil {
		return err
	}
	return &Exception{
		Payload: v,
		Frames:  []Frame{{Kind: kind, File: sloc.File, Line: sloc.Line, Column: sloc.Column, Value: v}},
	}
}

// WrapCatch chains a secondary error onto primary's backtrace as a "catch"
// frame, so neither is silently dropped. LeaveBlock passes the in-flight
// exception as primary and a failing defer's error as secondary; a failing
// catch block passes its own error as primary and the exception it was
// handling as secondary.
func (d *Driver) WrapCatch(primary, secondary error) error {
	exc := asException(primary)
	sexc := asException(secondary)
	exc.Frames = append(exc.Frames, Frame{Kind: "catch", Value: sexc.Payload})
	return exc
}

// BindCaught declares name (and the implicit __backtrace array) in the
// current scope from a propagated exception.
func (d *Driver) BindCaught(name string, caught error) error {
	exc := asException(caught)
	if name != "" {
		d.currentCtx().Declare(name, ref.Constant(exc.Payload))
	}
	d.currentCtx().Declare("__backtrace", ref.Constant(backtraceValue(exc)))
	return nil
}

// CaughtValue converts a propagated exception into its script-level
// Value, for `catch_expression`.
func (d *Driver) CaughtValue(caught error) avmc.Ref {
	exc := asException(caught)
	return ref.Constant(exc.Payload)
}

func backtraceValue(exc *Exception) value.Value {
	elems := make([]value.Value, len(exc.Frames))
	for i, f := range exc.Frames {
		od := value.NewObjectData()
		od.Set("kind", value.Str(f.Kind))
		od.Set("file", value.Str(f.File))
		od.Set("line", value.Int(int64(f.Line)))
		od.Set("column", value.Int(int64(f.Column)))
		od.Set("value", f.Value)
		elems[i] = value.Obj(od)
	}
	return value.Arr(elems)
}
