package ref

import (
	"fmt"

	"github.com/asteria-lang/asteria/internal/value"
)

// baseValue resolves the root (ignoring modifiers) to a Value, failing
// for a void root or an unresolved PTC thunk (callers must pass the
// reference through the barrier in internal/engine first).
func (r *Reference) baseValue() (value.Value, error) {
	switch r.root {
	case RootVoid:
		return value.Value{}, fmt.Errorf("reference: dereference of a void reference")
	case RootConstant:
		return r.constant, nil
	case RootTemporary:
		return r.temporary, nil
	case RootVariable:
		if !r.variable.Initialized() {
			return value.Value{}, fmt.Errorf("reference: use of uninitialized variable")
		}
		return r.variable.Value(), nil
	case RootPTC:
		return value.Value{}, fmt.Errorf("reference: pending tail call has not been resolved at a barrier")
	default:
		return value.Value{}, fmt.Errorf("reference: unknown root kind")
	}
}

// DereferenceReadonly returns the addressed Value without mutating
// anything. It fails on a dangling object_key or an out-of-range index.
func (r *Reference) DereferenceReadonly() (value.Value, error) {
	cur, err := r.baseValue()
	if err != nil {
		return value.Value{}, err
	}
	for _, m := range r.modifiers {
		cur, err = applyReadonly(cur, m)
		if err != nil {
			return value.Value{}, err
		}
	}
	return cur, nil
}

// asArrayChecked rejects any non-array operand (null included) with a typed error
// instead of the panicking type assertion value.Value.AsArray performs,
// so indexing into the wrong category (`noop(->obj[1])` against an
// object) surfaces as a runtime error rather than crashing the engine.
func asArrayChecked(cur value.Value, what string) (*value.ArrayData, error) {
	if cur.Tag() != value.Array {
		return nil, fmt.Errorf("reference: %s applied to non-array value of type %q", what, cur.Tag())
	}
	return cur.AsArray(), nil
}

func asObjectChecked(cur value.Value, what string) (*value.ObjectData, error) {
	if cur.Tag() != value.Object {
		return nil, fmt.Errorf("reference: %s applied to non-object value of type %q", what, cur.Tag())
	}
	return cur.AsObject(), nil
}

func applyReadonly(cur value.Value, m Modifier) (value.Value, error) {
	switch m.Kind {
	case ModArrayIndex:
		if cur.IsNull() {
			return value.Value{}, fmt.Errorf("reference: index applied to null")
		}
		arr, err := asArrayChecked(cur, "array index")
		if err != nil {
			return value.Value{}, err
		}
		idx, ok := normalizeIndex(m.Index, len(arr.Elems))
		if !ok {
			return value.Value{}, fmt.Errorf("reference: array index %d out of range (length %d)", m.Index, len(arr.Elems))
		}
		return arr.Elems[idx], nil
	case ModArrayHead:
		arr, err := asArrayChecked(cur, "array head")
		if err != nil {
			return value.Value{}, err
		}
		if len(arr.Elems) == 0 {
			return value.Value{}, fmt.Errorf("reference: head of empty array")
		}
		return arr.Elems[0], nil
	case ModArrayTail:
		arr, err := asArrayChecked(cur, "array tail")
		if err != nil {
			return value.Value{}, err
		}
		if len(arr.Elems) == 0 {
			return value.Value{}, fmt.Errorf("reference: tail of empty array")
		}
		return arr.Elems[len(arr.Elems)-1], nil
	case ModArrayRandom:
		arr, err := asArrayChecked(cur, "random element")
		if err != nil {
			return value.Value{}, err
		}
		if len(arr.Elems) == 0 {
			return value.Value{}, fmt.Errorf("reference: random element of empty array")
		}
		idx := int(uint64(m.Index) % uint64(len(arr.Elems)))
		return arr.Elems[idx], nil
	case ModObjectKey:
		if cur.IsNull() {
			return value.Value{}, fmt.Errorf("reference: key %q not found", m.Key)
		}
		obj, err := asObjectChecked(cur, "object key")
		if err != nil {
			return value.Value{}, err
		}
		v, ok := obj.Get(m.Key)
		if !ok {
			return value.Value{}, fmt.Errorf("reference: key %q not found", m.Key)
		}
		return v, nil
	default:
		return value.Value{}, fmt.Errorf("reference: unknown modifier")
	}
}

// DereferenceCopy materializes the addressed value into an owned
// temporary root.
func (r *Reference) DereferenceCopy() (Reference, error) {
	v, err := r.DereferenceReadonly()
	if err != nil {
		return Reference{}, err
	}
	return Temporary(v), nil
}

// lvalue is a settable slot discovered while walking the modifier chain.
type lvalue struct {
	get func() value.Value
	set func(value.Value)
}

// DereferenceMutable returns a settable slot, auto-creating missing
// array/object slots along the way. Fails against a constant root.
func (r *Reference) DereferenceMutable() (get func() value.Value, set func(value.Value), err error) {
	if r.root == RootConstant {
		return nil, nil, fmt.Errorf("reference: cannot mutate a constant reference")
	}
	if r.root == RootVariable && r.variable.Immutable() {
		return nil, nil, fmt.Errorf("reference: cannot mutate an immutable variable")
	}

	var rootGet func() value.Value
	var rootSet func(value.Value)
	switch r.root {
	case RootTemporary:
		rootGet = func() value.Value { return r.temporary }
		rootSet = func(v value.Value) { r.temporary = v }
	case RootVariable:
		rootGet = func() value.Value { return r.variable.Value() }
		rootSet = func(v value.Value) { _ = r.variable.Assign(v) }
	default:
		return nil, nil, fmt.Errorf("reference: root is not addressable")
	}

	cur := lvalue{get: rootGet, set: rootSet}
	for _, m := range r.modifiers {
		cur, err = applyMutable(cur, m)
		if err != nil {
			return nil, nil, err
		}
	}
	return cur.get, cur.set, nil
}

func applyMutable(cur lvalue, m Modifier) (lvalue, error) {
	switch m.Kind {
	case ModArrayIndex:
		v := cur.get()
		var arr *value.ArrayData
		if v.IsNull() {
			arr = &value.ArrayData{}
			cur.set(value.ArrFromData(arr))
		} else {
			var err error
			arr, err = asArrayChecked(v, "array index")
			if err != nil {
				return lvalue{}, err
			}
		}
		idx, ok := normalizeIndex(m.Index, len(arr.Elems))
		if !ok {
			if m.Index < 0 {
				return lvalue{}, fmt.Errorf("reference: negative array index %d out of range", m.Index)
			}
			// auto-create missing trailing slots, per dereference_mutable.
			for int64(len(arr.Elems)) <= m.Index {
				arr.Elems = append(arr.Elems, value.Nil())
			}
			idx = int(m.Index)
		}
		return lvalue{
			get: func() value.Value { return arr.Elems[idx] },
			set: func(nv value.Value) { arr.Elems[idx] = nv },
		}, nil
	case ModArrayHead:
		v := cur.get()
		var arr *value.ArrayData
		if v.IsNull() {
			arr = &value.ArrayData{Elems: []value.Value{value.Nil()}}
			cur.set(value.ArrFromData(arr))
		} else {
			var err error
			arr, err = asArrayChecked(v, "array head")
			if err != nil {
				return lvalue{}, err
			}
			if len(arr.Elems) == 0 {
				arr.Elems = append(arr.Elems, value.Nil())
			}
		}
		return lvalue{
			get: func() value.Value { return arr.Elems[0] },
			set: func(nv value.Value) { arr.Elems[0] = nv },
		}, nil
	case ModArrayTail:
		v := cur.get()
		var arr *value.ArrayData
		if v.IsNull() {
			arr = &value.ArrayData{Elems: []value.Value{value.Nil()}}
			cur.set(value.ArrFromData(arr))
		} else {
			var err error
			arr, err = asArrayChecked(v, "array tail")
			if err != nil {
				return lvalue{}, err
			}
			if len(arr.Elems) == 0 {
				arr.Elems = append(arr.Elems, value.Nil())
			}
		}
		last := len(arr.Elems) - 1
		return lvalue{
			get: func() value.Value { return arr.Elems[last] },
			set: func(nv value.Value) { arr.Elems[last] = nv },
		}, nil
	case ModArrayRandom:
		v := cur.get()
		arr, err := asArrayChecked(v, "random element")
		if err != nil {
			return lvalue{}, err
		}
		if len(arr.Elems) == 0 {
			return lvalue{}, fmt.Errorf("reference: random element of empty array")
		}
		idx := int(uint64(m.Index) % uint64(len(arr.Elems)))
		return lvalue{
			get: func() value.Value { return arr.Elems[idx] },
			set: func(nv value.Value) { arr.Elems[idx] = nv },
		}, nil
	case ModObjectKey:
		v := cur.get()
		var obj *value.ObjectData
		if v.IsNull() {
			obj = value.NewObjectData()
			cur.set(value.Obj(obj))
		} else {
			var err error
			obj, err = asObjectChecked(v, "object key")
			if err != nil {
				return lvalue{}, err
			}
		}
		if _, ok := obj.Get(m.Key); !ok {
			obj.Set(m.Key, value.Nil())
		}
		key := m.Key
		return lvalue{
			get: func() value.Value { vv, _ := obj.Get(key); return vv },
			set: func(nv value.Value) { obj.Set(key, nv) },
		}, nil
	default:
		return lvalue{}, fmt.Errorf("reference: unknown modifier")
	}
}

// DereferenceUnset removes the addressed slot, returning its previous
// value.
func (r *Reference) DereferenceUnset() (value.Value, error) {
	if len(r.modifiers) == 0 {
		return value.Value{}, fmt.Errorf("reference: cannot unset a reference with no modifiers")
	}
	parent := *r
	last := parent.modifiers[len(parent.modifiers)-1]
	parent.modifiers = parent.modifiers[:len(parent.modifiers)-1]

	get, _, err := parent.DereferenceMutable()
	if err != nil {
		return value.Value{}, err
	}
	container := get()
	switch last.Kind {
	case ModArrayIndex:
		arr, err := asArrayChecked(container, "unset array index")
		if err != nil {
			return value.Value{}, err
		}
		idx, ok := normalizeIndex(last.Index, len(arr.Elems))
		if !ok {
			return value.Value{}, fmt.Errorf("reference: array index %d out of range", last.Index)
		}
		old := arr.Elems[idx]
		arr.Elems = append(arr.Elems[:idx], arr.Elems[idx+1:]...)
		return old, nil
	case ModObjectKey:
		obj, err := asObjectChecked(container, "unset object key")
		if err != nil {
			return value.Value{}, err
		}
		old, ok := obj.Delete(last.Key)
		if !ok {
			return value.Value{}, fmt.Errorf("reference: key %q not found", last.Key)
		}
		return old, nil
	default:
		return value.Value{}, fmt.Errorf("reference: unset not supported for this modifier")
	}
}

// normalizeIndex resolves a possibly-negative index against length,
// returning ok=false if out of range.
func normalizeIndex(i int64, length int) (int, bool) {
	if i < 0 {
		i += int64(length)
	}
	if i < 0 || i >= int64(length) {
		return 0, false
	}
	return int(i), true
}
