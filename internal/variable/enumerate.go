package variable

import "github.com/asteria-lang/asteria/internal/value"

// ChildEnumerator is implemented by any Value payload that itself holds
// edges to further Variables: closures capturing references, and
// host-defined opaque objects. Concrete closure types live in
// internal/engine, which already depends on this package, so they can
// implement this interface directly without creating an import cycle.
type ChildEnumerator interface {
	EnumerateChildren(fn func(*Variable) bool)
}

// Enumerate walks v looking for Variable children reachable one level at
// a time: array elements and object values are descended into structurally
// (they are plain Value containers, not graph nodes themselves); functions
// and opaques are asked to enumerate their own captured Variables. fn is
// called once per discovered Variable edge; returning false stops the
// walk early.
func Enumerate(v value.Value, fn func(*Variable) bool) {
	enumerate(v, fn)
}

func enumerate(v value.Value, fn func(*Variable) bool) bool {
	switch v.Tag() {
	case value.Array:
		for _, e := range v.AsArray().Elems {
			if !enumerate(e, fn) {
				return false
			}
		}
	case value.Object:
		od := v.AsObject()
		for _, k := range od.Keys() {
			ev, _ := od.Get(k)
			if !enumerate(ev, fn) {
				return false
			}
		}
	case value.Function:
		if ce, ok := v.AsFunction().(ChildEnumerator); ok {
			ok := true
			ce.EnumerateChildren(func(child *Variable) bool {
				ok = fn(child)
				return ok
			})
			return ok
		}
	case value.Opaque:
		ok := true
		v.AsOpaque().EnumerateChildren(func(child any) bool {
			if cv, isVar := child.(*Variable); isVar {
				ok = fn(cv)
				return ok
			}
			return true
		})
		return ok
	}
	return true
}
