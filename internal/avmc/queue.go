// Package avmc implements the packed, append-only execution queue: a
// linear sequence of records, each holding a handler plus its inline and
// out-of-line parameters, walked by the execution driver
// (internal/engine).
//
// A record is a Record struct (handler, 8-byte uparam, an out-of-line
// sparam, optional meta) in a plain slice rather than a hand-rolled byte
// buffer with a descriptor table: fixed-size handler dispatch and a
// move-only sparam are preserved (Record is never copied after Append;
// Queue.Append is the only way to add one), while unsafe-pointer packing
// buys nothing in a garbage-collected host.
package avmc

import (
	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/ref"
)

// Ref is the stack-held handle type (internal/ref.Reference), aliased
// here so Machine's signature reads naturally within this package.
type Ref = ref.Reference

// Machine is the contract the execution driver (internal/engine) fulfills
// for record handlers (internal/solidify builds handlers against this
// interface so neither package needs to import the other).
type Machine interface {
	// Evaluation stack: the primary operand stack of References.
	Push(r Ref)
	Pop() Ref
	Peek(fromTop int) Ref
	Height() int
	Truncate(height int)

	// Alt stack: argument-assembly stack used by calls.
	PushAlt(r Ref)
	PopAlt() Ref
	AltLen() int

	// Lexical scope.
	EnterBlock(function bool) Scope
	LeaveBlock(s Scope, status air.StatusCode, propagated error) (air.StatusCode, error)
	BlockBaseline() int
	Declare(name string, immutable bool) error
	DefineNull(name string, immutable bool) error
	DeclareRef(name string) error
	InitializeLocal(name string) error
	InitializeRefLocal(name string) error
	LookupGlobal(name string) (Ref, error)
	LookupLocal(depth int, name string) (Ref, bool)
	LookupChain(name string) (Ref, bool)

	// Calls.
	Call(callee Ref, args []Ref, ptcMode air.PTCMode, sloc air.SourceLoc) (Ref, error)
	Barrier(r Ref) (Ref, error)

	// Imports.
	Import(path string, sloc air.SourceLoc) (Ref, error)

	// Exceptions.
	Throw(val Ref, sloc air.SourceLoc, kind string) error
	WrapCatch(primary error, secondary error) error
	// BindCaught declares name and the implicit __backtrace in the
	// current (already-entered) scope from a propagated exception.
	BindCaught(name string, caught error) error
	// CaughtValue converts a propagated exception into its script-level
	// Value, for `catch_expression`.
	CaughtValue(caught error) Ref

	// Misc runtime services.
	RandomSeed() int64
	SingleStep(sloc air.SourceLoc)
	PushDefer(q *Queue, sloc air.SourceLoc)
	AllocVariable(immutable bool) Ref

	// MakeFunction materializes a closure over the current scope chain,
	// capturing whatever the body's solidified references reach via
	// PushLocalRef/PushBoundRef.
	MakeFunction(name string, params []air.FunctionParam, body *Queue, sloc air.SourceLoc) Ref
}

// Scope is an opaque token returned by EnterBlock/consumed by LeaveBlock,
// letting Machine implementations track nested contexts without leaking
// their concrete type into this package.
type Scope interface{}

// Handler executes one record against the running machine and yields the
// status code the AIR alternative's semantics produce.
type Handler func(m Machine, rec *Record) (air.StatusCode, error)

// Record is one packed AVMC instruction: a handler plus its inline
// (UParam) and out-of-line (SParam) parameters and optional source/meta
// info.
type Record struct {
	Handler Handler
	UParam  uint64
	SParam  any
	Meta    *Meta
}

// Meta carries the optional per-record source location and debug name.
type Meta struct {
	Sloc air.SourceLoc
	// Name is the AIR alternative's name, used only for disassembly.
	Name string
}

// Queue is the packed, append-only instruction stream a function body (or
// any nested block) solidifies into.
type Queue struct {
	records []Record
}

// Append adds rec to the queue. Records are move-only once appended. At
// and Run hand out pointers into the backing slice; a later Append may
// reallocate that slice, after which such a pointer no longer refers to
// the queue's record.
func (q *Queue) Append(rec Record) {
	q.records = append(q.records, rec)
}

func (q *Queue) Len() int { return len(q.records) }

func (q *Queue) At(i int) *Record { return &q.records[i] }

// Run executes every record in order, honoring handler-returned statuses
// the way the execution driver's block-level interpretation does for a
// flat (non-loop, non-switch) body: the first non-`next` status stops
// the walk and is returned to the caller.
func (q *Queue) Run(m Machine) (air.StatusCode, error) {
	for i := range q.records {
		st, err := q.records[i].Handler(m, &q.records[i])
		if err != nil {
			return air.StatusNext, err
		}
		if st != air.StatusNext {
			return st, nil
		}
	}
	return air.StatusNext, nil
}
