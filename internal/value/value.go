// Package value implements the Asteria dynamic Value: a closed tagged
// union over the nine alternatives a script can hold at runtime.
package value

import (
	"fmt"
	"math"
)

// Tag identifies which alternative a Value currently holds.
type Tag uint8

const (
	Null Tag = iota
	Boolean
	Integer
	Real
	String
	Array
	Object
	Function
	Opaque
)

func (t Tag) String() string {
	switch t {
	case Null:
		return "null"
	case Boolean:
		return "boolean"
	case Integer:
		return "integer"
	case Real:
		return "real"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	case Function:
		return "function"
	case Opaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// FunctionValue is the callable category: an opaque invocation target owned
// by the engine. The core only needs to carry and compare these; invocation
// itself is implemented by internal/engine against the Invokable interface.
type FunctionValue interface {
	Invokable
	Name() string
}

// Invokable is implemented by any callable Value payload.
type Invokable interface {
	// kept intentionally minimal; internal/engine defines the call ABI
	// (this avoids an import cycle between value and engine).
	IsCallable()
}

// OpaqueObject is implemented by host-defined opaque values. EnumerateChildren
// lets the garbage collector trace into host state that holds Variable
// references, exactly like arrays, objects, and closures do natively.
type OpaqueObject interface {
	TypeName() string
	Inspect() string
	// EnumerateChildren calls fn for every *variable.Variable reachable
	// directly from this opaque object. fn returns false to stop early.
	// The argument type is `any` (boxed *variable.Variable) to avoid an
	// import cycle; internal/variable's Enumerate type-asserts it.
	EnumerateChildren(fn func(v any) bool)
}

// Value is a stack-held tagged union: scalar payloads are packed inline in
// Data, heap categories (string/array/object/function/opaque) are boxed in
// Obj so the Go garbage collector keeps them alive incidentally while the
// Asteria collector (internal/gc) governs the Variable graph they may point
// into.
type Value struct {
	tag  Tag
	data uint64 // boolean (0/1), integer bits, or real bits
	obj  any    // string, *ArrayData, *ObjectData, Function, OpaqueObject
}

// ArrayData is the boxed payload for the array category: an ordered
// sequence of Value. Boxed behind a pointer so Value stays small and so
// multiple references can share the same backing slice semantics are
// layered on top by internal/ref.
type ArrayData struct {
	Elems []Value
}

// ObjectData is the boxed payload for the object category: an
// insertion-ordered string->Value mapping with unique keys.
type ObjectData struct {
	keys   []string
	lookup map[string]int
	vals   []Value
}

func NewObjectData() *ObjectData {
	return &ObjectData{lookup: make(map[string]int)}
}

func (o *ObjectData) Len() int { return len(o.keys) }

func (o *ObjectData) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	i, ok := o.lookup[key]
	if !ok {
		return Value{}, false
	}
	return o.vals[i], true
}

func (o *ObjectData) Set(key string, v Value) {
	if i, ok := o.lookup[key]; ok {
		o.vals[i] = v
		return
	}
	o.lookup[key] = len(o.keys)
	o.keys = append(o.keys, key)
	o.vals = append(o.vals, v)
}

func (o *ObjectData) Delete(key string) (Value, bool) {
	i, ok := o.lookup[key]
	if !ok {
		return Value{}, false
	}
	old := o.vals[i]
	delete(o.lookup, key)
	o.keys = append(o.keys[:i], o.keys[i+1:]...)
	o.vals = append(o.vals[:i], o.vals[i+1:]...)
	for k, idx := range o.lookup {
		if idx > i {
			o.lookup[k] = idx - 1
		}
	}
	return old, true
}

// Keys returns the insertion-ordered key list. Callers must not mutate it.
func (o *ObjectData) Keys() []string { return o.keys }

func (o *ObjectData) Clone() *ObjectData {
	n := &ObjectData{
		keys:   append([]string(nil), o.keys...),
		vals:   append([]Value(nil), o.vals...),
		lookup: make(map[string]int, len(o.lookup)),
	}
	for k, v := range o.lookup {
		n.lookup[k] = v
	}
	return n
}

// Constructors

func Nil() Value { return Value{tag: Null} }

func Bool(b bool) Value {
	var d uint64
	if b {
		d = 1
	}
	return Value{tag: Boolean, data: d}
}

func Int(i int64) Value { return Value{tag: Integer, data: uint64(i)} }

func Float(f float64) Value { return Value{tag: Real, data: math.Float64bits(f)} }

func Str(s string) Value { return Value{tag: String, obj: s} }

func Arr(elems []Value) Value { return Value{tag: Array, obj: &ArrayData{Elems: elems}} }

func ArrFromData(d *ArrayData) Value { return Value{tag: Array, obj: d} }

func Obj(d *ObjectData) Value { return Value{tag: Object, obj: d} }

func Fn(f FunctionValue) Value { return Value{tag: Function, obj: f} }

func Opq(o OpaqueObject) Value { return Value{tag: Opaque, obj: o} }

// Accessors

func (v Value) Tag() Tag { return v.tag }

func (v Value) IsNull() bool { return v.tag == Null }

func (v Value) AsBool() bool { return v.data == 1 }

func (v Value) AsInt() int64 { return int64(v.data) }

// AsReal is the only implicit-conversion accessor: an
// integer never silently promotes to real anywhere else.
func (v Value) AsReal() float64 {
	switch v.tag {
	case Real:
		return math.Float64frombits(v.data)
	case Integer:
		return float64(v.AsInt())
	default:
		panic("value: AsReal on non-numeric Value")
	}
}

func (v Value) AsString() string { return v.obj.(string) }

func (v Value) AsArray() *ArrayData { return v.obj.(*ArrayData) }

func (v Value) AsObject() *ObjectData { return v.obj.(*ObjectData) }

func (v Value) AsFunction() FunctionValue { return v.obj.(FunctionValue) }

func (v Value) AsOpaque() OpaqueObject { return v.obj.(OpaqueObject) }

// TypeOf implements the `typeof` unary operator.
func (v Value) TypeOf() string {
	if v.tag == Opaque {
		return v.AsOpaque().TypeName()
	}
	return v.tag.String()
}

// Countof implements `countof`: array length, object key count, 0 for null.
func (v Value) Countof() (int64, error) {
	switch v.tag {
	case Null:
		return 0, nil
	case Array:
		return int64(len(v.AsArray().Elems)), nil
	case Object:
		return int64(v.AsObject().Len()), nil
	case String:
		return int64(len(v.AsString())), nil
	default:
		return 0, fmt.Errorf("countof: unsupported operand type %q", v.tag)
	}
}

// Inspect renders a debug representation; never used for script-observable
// string conversion (that is a stdlib concern, external to the core).
func (v Value) Inspect() string {
	switch v.tag {
	case Null:
		return "null"
	case Boolean:
		return fmt.Sprintf("%t", v.AsBool())
	case Integer:
		return fmt.Sprintf("%d", v.AsInt())
	case Real:
		return fmt.Sprintf("%g", v.AsReal())
	case String:
		return fmt.Sprintf("%q", v.AsString())
	case Array:
		return "<array>"
	case Object:
		return "<object>"
	case Function:
		return fmt.Sprintf("<function %s>", v.AsFunction().Name())
	case Opaque:
		return v.AsOpaque().Inspect()
	default:
		return "<?>"
	}
}

// MarshalYAML lets diagnostics (exceptions, backtraces) round-trip through
// gopkg.in/yaml.v3 for structured host-side reporting.
func (v Value) MarshalYAML() (any, error) {
	switch v.tag {
	case Null:
		return nil, nil
	case Boolean:
		return v.AsBool(), nil
	case Integer:
		return v.AsInt(), nil
	case Real:
		return v.AsReal(), nil
	case String:
		return v.AsString(), nil
	case Array:
		out := make([]any, 0, len(v.AsArray().Elems))
		for _, e := range v.AsArray().Elems {
			m, err := e.MarshalYAML()
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	case Object:
		m := make(map[string]any, v.AsObject().Len())
		for _, k := range v.AsObject().Keys() {
			vv, _ := v.AsObject().Get(k)
			mv, err := vv.MarshalYAML()
			if err != nil {
				return nil, err
			}
			m[k] = mv
		}
		return m, nil
	case Function:
		return fmt.Sprintf("<function %s>", v.AsFunction().Name()), nil
	case Opaque:
		return v.AsOpaque().Inspect(), nil
	default:
		return nil, fmt.Errorf("value: cannot marshal tag %d", v.tag)
	}
}
