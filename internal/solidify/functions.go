package solidify

import (
	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
)

func solidifyDefineFunction(x *air.DefineFunction, q *avmc.Queue) error {
	body, err := Solidify(x.Body)
	if err != nil {
		return err
	}
	name, params, sloc := x.Name, x.Params, x.Sloc
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: sloc, Name: "define_function"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			fn := m.MakeFunction(name, params, body, sloc)
			if name == "" {
				m.Push(fn)
				return air.StatusNext, nil
			}
			if err := m.Declare(name, true); err != nil {
				return air.StatusNext, err
			}
			m.Push(fn)
			return air.StatusNext, m.InitializeLocal(name)
		},
	})
	return nil
}

func solidifyDeferExpression(x *air.DeferExpression, q *avmc.Queue) error {
	body, err := Solidify(x.Body)
	if err != nil {
		return err
	}
	sloc := x.Sloc
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: sloc, Name: "defer_expression"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			m.PushDefer(body, sloc)
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyReturn(x *air.Return, q *avmc.Queue) error {
	if x.Value == nil {
		q.Append(avmc.Record{
			Meta: &avmc.Meta{Sloc: x.Sloc, Name: "return_void"},
			Handler: func(_ avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
				return air.StatusReturnVoid, nil
			},
		})
		return nil
	}
	valueQ, err := solidifyExpr(x.Value)
	if err != nil {
		return err
	}
	byRef := x.ByRef
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: x.Sloc, Name: "return"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			if _, err := valueQ.Run(m); err != nil {
				return air.StatusNext, err
			}
			r := m.Pop()
			if !byRef {
				resolved, err := m.Barrier(r)
				if err != nil {
					return air.StatusNext, err
				}
				r = resolved
			}
			m.Push(r)
			return air.StatusReturnRef, nil
		},
	})
	return nil
}

func solidifyThrow(x *air.Throw, q *avmc.Queue) error {
	valueQ, err := solidifyExpr(x.Value)
	if err != nil {
		return err
	}
	sloc := x.Sloc
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: sloc, Name: "throw"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			if _, err := valueQ.Run(m); err != nil {
				return air.StatusNext, err
			}
			return air.StatusNext, m.Throw(m.Pop(), sloc, "throw")
		},
	})
	return nil
}

func solidifyAssert(x *air.Assert, q *avmc.Queue) error {
	condQ, err := solidifyExpr(x.Cond)
	if err != nil {
		return err
	}
	sloc, message := x.Sloc, x.Message
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: sloc, Name: "assert"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			ok, err := condValue(m, condQ)
			if err != nil {
				return air.StatusNext, err
			}
			if ok {
				return air.StatusNext, nil
			}
			msg := message
			if msg == "" {
				msg = "assertion failed"
			}
			return air.StatusNext, m.Throw(ref.Constant(value.Str(msg)), sloc, "assert")
		},
	})
	return nil
}
