package solidify

import (
	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
)

func solidifyFunctionCall(x *air.FunctionCall, q *avmc.Queue) error {
	nargs, sloc, ptc := x.NArgs, x.Sloc, x.PTCMode
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: sloc, Name: "function_call"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			args := make([]avmc.Ref, nargs)
			for i := nargs - 1; i >= 0; i-- {
				args[i] = m.PopAlt()
			}
			callee := m.Pop()
			result, err := m.Call(callee, args, ptc, sloc)
			if err != nil {
				return air.StatusNext, err
			}
			m.Push(result)
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyVariadicCall(x *air.VariadicCall, q *avmc.Queue) error {
	sloc, ptc := x.Sloc, x.PTCMode
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: sloc, Name: "variadic_call"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			argsPopped := m.Pop()
			argsVal, err := argsPopped.DereferenceReadonly()
			if err != nil {
				return air.StatusNext, err
			}
			callee := m.Pop()
			elems := argsVal.AsArray().Elems
			args := make([]avmc.Ref, len(elems))
			for i, e := range elems {
				args[i] = ref.Temporary(e)
			}
			result, err := m.Call(callee, args, ptc, sloc)
			if err != nil {
				return air.StatusNext, err
			}
			m.Push(result)
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyImportCall(x *air.ImportCall, q *avmc.Queue) error {
	pathQ, err := solidifyExpr(x.Path)
	if err != nil {
		return err
	}
	sloc := x.Sloc
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: sloc, Name: "import_call"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			if _, err := pathQ.Run(m); err != nil {
				return air.StatusNext, err
			}
			pathPopped := m.Pop()
			pathVal, err := pathPopped.DereferenceReadonly()
			if err != nil {
				return air.StatusNext, err
			}
			result, err := m.Import(pathVal.AsString(), sloc)
			if err != nil {
				return air.StatusNext, err
			}
			m.Push(result)
			return air.StatusNext, nil
		},
	})
	return nil
}

// solidifyCheckArgument implements the by-ref argument barrier:
// ByRef arguments are moved to the alt stack untouched, by-value
// arguments are copied first so the callee cannot observe caller-side
// mutation through them.
func solidifyCheckArgument(x *air.CheckArgument, q *avmc.Queue) error {
	valueQ, err := solidifyExpr(x.Value)
	if err != nil {
		return err
	}
	byRef := x.ByRef
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "check_argument"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			if _, err := valueQ.Run(m); err != nil {
				return air.StatusNext, err
			}
			r := m.Pop()
			if byRef {
				m.PushAlt(r)
				return air.StatusNext, nil
			}
			cp, err := r.DereferenceCopy()
			if err != nil {
				return air.StatusNext, err
			}
			m.PushAlt(cp)
			return air.StatusNext, nil
		},
	})
	return nil
}
