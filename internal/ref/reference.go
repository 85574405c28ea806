// Package ref implements the Reference handle: a root plus
// an ordered chain of modifiers addressing a sub-value.
package ref

import (
	"fmt"

	"github.com/asteria-lang/asteria/internal/value"
	"github.com/asteria-lang/asteria/internal/variable"
)

// RootKind identifies which of the five root alternatives a Reference
// currently holds.
type RootKind uint8

const (
	RootVoid RootKind = iota
	RootConstant
	RootTemporary
	RootVariable
	RootPTC
)

// ModifierKind identifies one step of the modifier chain.
type ModifierKind uint8

const (
	ModArrayIndex ModifierKind = iota
	ModArrayHead
	ModArrayTail
	ModArrayRandom
	ModObjectKey
)

// Modifier is one step in a Reference's addressing chain.
type Modifier struct {
	Kind ModifierKind
	// Index is used by ModArrayIndex (may be negative: counts from the
	// end) and as a PRNG seed by ModArrayRandom.
	Index int64
	// Key is used by ModObjectKey.
	Key string
}

func IndexModifier(i int64) Modifier  { return Modifier{Kind: ModArrayIndex, Index: i} }
func HeadModifier() Modifier          { return Modifier{Kind: ModArrayHead} }
func TailModifier() Modifier          { return Modifier{Kind: ModArrayTail} }
func RandomModifier(seed int64) Modifier {
	return Modifier{Kind: ModArrayRandom, Index: seed}
}
func KeyModifier(k string) Modifier { return Modifier{Kind: ModObjectKey, Key: k} }

// PTCThunk captures a pending tail call: the arguments and
// target needed to resolve the call iteratively at the next barrier.
// Invoke is supplied by internal/engine so this package stays free of
// an import cycle.
type PTCThunk struct {
	SourceLine int
	Mode       PTCMode
	Target     value.Value
	// Invoke runs exactly one frame of the pending call and yields its
	// raw result reference, which may itself be another PTC root: the
	// trampoline (internal/engine) loops on that case instead of this
	// thunk recursing into the next one.
	Invoke func() (Reference, error)
}

// PTCMode controls how the eventual tail-call result is projected back
// into the caller.
type PTCMode uint8

const (
	PTCNone PTCMode = iota
	PTCByRef
	PTCByVal
	PTCVoid
)

// Reference is a root plus an ordered modifier chain.
type Reference struct {
	root RootKind

	constant  value.Value
	temporary value.Value
	variable  *variable.Variable
	thunk     *PTCThunk

	modifiers []Modifier
}

func Void() Reference { return Reference{root: RootVoid} }

func Constant(v value.Value) Reference { return Reference{root: RootConstant, constant: v} }

func Temporary(v value.Value) Reference { return Reference{root: RootTemporary, temporary: v} }

func Variable(v *variable.Variable) Reference { return Reference{root: RootVariable, variable: v} }

func PTC(thunk *PTCThunk) Reference { return Reference{root: RootPTC, thunk: thunk} }

func (r Reference) Root() RootKind { return r.root }

func (r Reference) Modifiers() []Modifier { return r.modifiers }

func (r Reference) Thunk() *PTCThunk { return r.thunk }

func (r Reference) Variable() *variable.Variable { return r.variable }

// PushModifier appends a modifier. Once the root is a PTC thunk, pushing a
// modifier is forbidden until the thunk is resolved.
func (r Reference) PushModifier(m Modifier) (Reference, error) {
	if r.root == RootPTC {
		return r, fmt.Errorf("reference: cannot address into a pending tail call before it is resolved")
	}
	r.modifiers = append(append([]Modifier(nil), r.modifiers...), m)
	return r, nil
}

// PopModifier pops the last modifier, returning the parent reference.
func (r Reference) PopModifier() (Reference, error) {
	if len(r.modifiers) == 0 {
		return r, fmt.Errorf("reference: no modifier to pop")
	}
	r.modifiers = r.modifiers[:len(r.modifiers)-1]
	return r, nil
}

// UnphaseVariableOpt returns the referenced Variable iff the reference has
// no modifiers and root is `variable`.
func (r Reference) UnphaseVariableOpt() (*variable.Variable, bool) {
	if r.root == RootVariable && len(r.modifiers) == 0 {
		return r.variable, true
	}
	return nil, false
}
