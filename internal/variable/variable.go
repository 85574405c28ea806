// Package variable implements the Variable heap cell:
// created only by the garbage collector's factory so every Variable the
// engine allocates is tracked, and destroyed only by the collector.
package variable

import (
	"github.com/google/uuid"

	"github.com/asteria-lang/asteria/internal/value"
)

// Variable is a mutable, GC-tracked cell holding a Value.
type Variable struct {
	val         value.Value
	immutable   bool
	initialized bool

	// gcRef is the collector's per-pass marking stamp. It is only ever
	// touched by internal/gc during a collection pass; scripts never
	// observe it.
	gcRef int64

	// id is a debug-only correlation handle, exposed through ID(), so a
	// host can track a variable across generations without exposing a Go
	// pointer. internal/debugstream's events do not carry it.
	id uuid.UUID
}

// New constructs a Variable. Only internal/gc.Collector.Allocate should call
// this, immediately registering the result with a generation; see
// internal/gc for the sole supported factory path.
func New(immutable bool) *Variable {
	return &Variable{immutable: immutable, id: uuid.New()}
}

func (v *Variable) ID() uuid.UUID { return v.id }

func (v *Variable) Immutable() bool { return v.immutable }

func (v *Variable) Initialized() bool { return v.initialized }

func (v *Variable) Value() value.Value { return v.val }

// Initialize sets the held value and marks the cell initialized. Returns
// an error if the cell is immutable and already initialized.
func (v *Variable) Initialize(val value.Value) error {
	if v.immutable && v.initialized {
		return ErrImmutable
	}
	v.val = val
	v.initialized = true
	return nil
}

// Assign overwrites the held value, failing for immutable variables per
// the `immutable_violation` error kind.
func (v *Variable) Assign(val value.Value) error {
	if v.immutable && v.initialized {
		return ErrImmutable
	}
	v.val = val
	v.initialized = true
	return nil
}

// Reset overwrites the value unconditionally; used by the collector to
// replace a destroyed variable's payload with a scalar sentinel before
// dropping it, breaking any reference cycle it was part of.
func (v *Variable) Reset(val value.Value, immutable bool) {
	v.val = val
	v.immutable = immutable
	v.initialized = true
}

// GCRef and SetGCRef expose the collector's marking stamp to
// internal/gc. They live in this package (not gc) because Variable is the
// thing being stamped and every other package that can reach a *Variable
// must not be able to perturb it.
func (v *Variable) GCRef() int64     { return v.gcRef }
func (v *Variable) SetGCRef(n int64) { v.gcRef = n }

// ErrImmutable is returned by Assign and Initialize on an
// already-initialized immutable variable.
var ErrImmutable = immutableError{}

type immutableError struct{}

func (immutableError) Error() string { return "assignment to immutable variable" }
