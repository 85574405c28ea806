package solidify

import (
	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
)

func solidifyPushGlobalRef(x *air.PushGlobalRef, q *avmc.Queue) error {
	name := x.Name
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "push_global_ref"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			r, err := m.LookupGlobal(name)
			if err != nil {
				return air.StatusNext, err
			}
			m.Push(r)
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyPushLocalRef(x *air.PushLocalRef, q *avmc.Queue) error {
	depth, name := x.Depth, x.Name
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "push_local_ref"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			r, ok := m.LookupLocal(depth, name)
			if !ok {
				return air.StatusNext, undeclaredName(name)
			}
			m.Push(r)
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyPushBoundRef(x *air.PushBoundRef, q *avmc.Queue) error {
	depth, name := x.Depth, x.Name
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "push_bound_ref"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			r, ok := m.LookupLocal(depth, name)
			if !ok {
				return air.StatusNext, undeclaredName(name)
			}
			m.Push(r)
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyPushConstant(x *air.PushConstant, q *avmc.Queue) error {
	v := x.Value
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "push_constant"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			m.Push(ref.Constant(v))
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyPushConstantSmallInt(x *air.PushConstantSmallInt, q *avmc.Queue) error {
	v := value.Int(int64(x.Value))
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "push_constant_small_int"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			m.Push(ref.Constant(v))
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyPushUnnamedArray(x *air.PushUnnamedArray, q *avmc.Queue) error {
	count := x.Count
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "push_unnamed_array"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			elems := make([]value.Value, count)
			for i := count - 1; i >= 0; i-- {
				popped := m.Pop()
				v, err := popped.DereferenceReadonly()
				if err != nil {
					return air.StatusNext, err
				}
				elems[i] = v
			}
			m.Push(ref.Temporary(value.Arr(elems)))
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyPushUnnamedObject(x *air.PushUnnamedObject, q *avmc.Queue) error {
	keys := x.Keys
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "push_unnamed_object"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			obj := value.NewObjectData()
			vals := make([]value.Value, len(keys))
			for i := len(keys) - 1; i >= 0; i-- {
				popped := m.Pop()
				v, err := popped.DereferenceReadonly()
				if err != nil {
					return air.StatusNext, err
				}
				vals[i] = v
			}
			for i, k := range keys {
				obj.Set(k, vals[i])
			}
			m.Push(ref.Temporary(value.Obj(obj)))
			return air.StatusNext, nil
		},
	})
	return nil
}

// solidifyBranchExpression implements the ternary (`?:`), null-coalescing
// (`??`) and assigning null-coalescing (`??=`) families over the
// already-pushed left operand.
func solidifyBranchExpression(x *air.BranchExpression, q *avmc.Queue) error {
	thenQ, err := solidifyExpr(x.Then)
	if err != nil {
		return err
	}
	elseQ, err := solidifyExpr(x.Else)
	if err != nil {
		return err
	}
	assign, coalesce := x.Assign, x.Coalesce
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "branch_expression"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			lhs := m.Pop()

			if !coalesce {
				v, err := lhs.DereferenceReadonly()
				if err != nil {
					return air.StatusNext, err
				}
				branch := elseQ
				if v.AsBool() {
					branch = thenQ
				}
				return branch.Run(m)
			}

			v, err := lhs.DereferenceReadonly()
			if err != nil {
				return air.StatusNext, err
			}
			if !v.IsNull() {
				m.Push(lhs)
				return air.StatusNext, nil
			}
			if !assign {
				if _, err := elseQ.Run(m); err != nil {
					return air.StatusNext, err
				}
				return air.StatusNext, nil
			}
			if _, err := elseQ.Run(m); err != nil {
				return air.StatusNext, err
			}
			rhsPopped := m.Pop()
			rhsVal, err := rhsPopped.DereferenceReadonly()
			if err != nil {
				return air.StatusNext, err
			}
			_, set, err := lhsRef(lhs)
			if err != nil {
				return air.StatusNext, err
			}
			set(rhsVal)
			m.Push(lhs)
			return air.StatusNext, nil
		},
	})
	return nil
}

func lhsRef(r avmc.Ref) (func() value.Value, func(value.Value), error) {
	return r.DereferenceMutable()
}
