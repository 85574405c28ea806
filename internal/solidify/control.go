package solidify

import (
	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
)

// condValue runs condQ (exactly one pushed ref) and reads it back as a
// boolean, the common shape behind if/while/do-while/for.
func condValue(m avmc.Machine, condQ *avmc.Queue) (bool, error) {
	if _, err := condQ.Run(m); err != nil {
		return false, err
	}
	r, err := m.Barrier(m.Pop())
	if err != nil {
		return false, err
	}
	v, err := r.DereferenceReadonly()
	if err != nil {
		return false, err
	}
	return v.AsBool(), nil
}

func solidifyIf(x *air.If, q *avmc.Queue) error {
	condQ, err := solidifyExpr(x.Cond)
	if err != nil {
		return err
	}
	thenQ, err := Solidify(x.Then)
	if err != nil {
		return err
	}
	elseQ, err := Solidify(x.Else)
	if err != nil {
		return err
	}
	negative := x.Negative
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "if"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			cond, err := condValue(m, condQ)
			if err != nil {
				return air.StatusNext, err
			}
			if negative {
				cond = !cond
			}
			branch := elseQ
			if cond {
				branch = thenQ
			}
			scope := m.EnterBlock(false)
			st, err := branch.Run(m)
			return m.LeaveBlock(scope, st, err)
		},
	})
	return nil
}

func solidifySwitch(x *air.Switch, q *avmc.Queue) error {
	condQ, err := solidifyExpr(x.Cond)
	if err != nil {
		return err
	}
	type clause struct {
		labelQ *avmc.Queue
		body   *avmc.Queue
		names  []string
	}
	clauses := make([]*clause, len(x.Clauses))
	for i, c := range x.Clauses {
		body, err := Solidify(c.Body)
		if err != nil {
			return err
		}
		cl := &clause{body: body, names: c.LocalNames}
		if c.Label != nil {
			lq, err := solidifyExpr(c.Label)
			if err != nil {
				return err
			}
			cl.labelQ = lq
		}
		clauses[i] = cl
	}

	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "switch"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			if _, err := condQ.Run(m); err != nil {
				return air.StatusNext, err
			}
			condRef, err := m.Barrier(m.Pop())
			if err != nil {
				return air.StatusNext, err
			}
			condVal, err := condRef.DereferenceReadonly()
			if err != nil {
				return air.StatusNext, err
			}

			matched := -1
			fallbackDefault := -1
			for i, cl := range clauses {
				if cl.labelQ == nil {
					fallbackDefault = i
					continue
				}
				if _, err := cl.labelQ.Run(m); err != nil {
					return air.StatusNext, err
				}
				labelRef, err := m.Barrier(m.Pop())
				if err != nil {
					return air.StatusNext, err
				}
				labelVal, err := labelRef.DereferenceReadonly()
				if err != nil {
					return air.StatusNext, err
				}
				// An unordered pair (mixed categories, NaN) simply does
				// not match; it is not an error.
				if value.Eq(labelVal, condVal) {
					matched = i
					break
				}
			}
			if matched < 0 {
				matched = fallbackDefault
			}
			if matched < 0 {
				return air.StatusNext, nil
			}

			scope := m.EnterBlock(false)
			// Inject uninitialized placeholders for names declared in
			// clauses that fall-through scope reaches but control flow
			// skips.
			for i := 0; i < matched; i++ {
				for _, name := range clauses[i].names {
					if err := m.Declare(name, false); err != nil {
						return m.LeaveBlock(scope, air.StatusNext, err)
					}
				}
			}
			var status air.StatusCode
			var runErr error
			for i := matched; i < len(clauses); i++ {
				status, runErr = clauses[i].body.Run(m)
				if runErr != nil || status != air.StatusNext {
					break
				}
			}
			if status == air.StatusBreakSwitch || status == air.StatusBreakUnspec {
				status = air.StatusNext
			}
			return m.LeaveBlock(scope, status, runErr)
		},
	})
	return nil
}

func solidifyDoWhile(x *air.DoWhile, q *avmc.Queue) error {
	bodyQ, err := Solidify(x.Body)
	if err != nil {
		return err
	}
	condQ, err := solidifyExpr(x.Cond)
	if err != nil {
		return err
	}
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "do_while"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			for {
				scope := m.EnterBlock(false)
				st, err := bodyQ.Run(m)
				st, err = m.LeaveBlock(scope, st, err)
				if err != nil {
					return air.StatusNext, err
				}
				if brk, stop := loopBreak(st, loopWhile); stop {
					return brk, nil
				}
				ok, err := condValue(m, condQ)
				if err != nil {
					return air.StatusNext, err
				}
				if !ok {
					return air.StatusNext, nil
				}
			}
		},
	})
	return nil
}

func solidifyWhile(x *air.While, q *avmc.Queue) error {
	condQ, err := solidifyExpr(x.Cond)
	if err != nil {
		return err
	}
	bodyQ, err := Solidify(x.Body)
	if err != nil {
		return err
	}
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "while"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			for {
				ok, err := condValue(m, condQ)
				if err != nil {
					return air.StatusNext, err
				}
				if !ok {
					return air.StatusNext, nil
				}
				scope := m.EnterBlock(false)
				st, err := bodyQ.Run(m)
				st, err = m.LeaveBlock(scope, st, err)
				if err != nil {
					return air.StatusNext, err
				}
				if brk, stop := loopBreak(st, loopWhile); stop {
					return brk, nil
				}
			}
		},
	})
	return nil
}

func solidifyFor(x *air.For, q *avmc.Queue) error {
	initQ, err := Solidify(x.Init)
	if err != nil {
		return err
	}
	var condQ *avmc.Queue
	if x.Cond != nil {
		condQ, err = solidifyExpr(x.Cond)
		if err != nil {
			return err
		}
	}
	stepQ, err := Solidify(x.Step)
	if err != nil {
		return err
	}
	bodyQ, err := Solidify(x.Body)
	if err != nil {
		return err
	}
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "for"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			outer := m.EnterBlock(false)
			st, err := initQ.Run(m)
			if err != nil {
				return m.LeaveBlock(outer, st, err)
			}
			for {
				if condQ != nil {
					ok, err := condValue(m, condQ)
					if err != nil {
						return m.LeaveBlock(outer, air.StatusNext, err)
					}
					if !ok {
						break
					}
				}
				inner := m.EnterBlock(false)
				st, err := bodyQ.Run(m)
				st, err = m.LeaveBlock(inner, st, err)
				if err != nil {
					return m.LeaveBlock(outer, air.StatusNext, err)
				}
				if brk, stop := loopBreak(st, loopFor); stop {
					return m.LeaveBlock(outer, brk, nil)
				}
				if _, err := stepQ.Run(m); err != nil {
					return m.LeaveBlock(outer, air.StatusNext, err)
				}
			}
			return m.LeaveBlock(outer, air.StatusNext, nil)
		},
	})
	return nil
}

func solidifyForEach(x *air.ForEach, q *avmc.Queue) error {
	rangeQ, err := solidifyExpr(x.Range)
	if err != nil {
		return err
	}
	bodyQ, err := Solidify(x.Body)
	if err != nil {
		return err
	}
	keyName, valueName := x.KeyName, x.ValueName
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "for_each"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			if _, err := rangeQ.Run(m); err != nil {
				return air.StatusNext, err
			}
			rangeRef := m.Pop()
			rangeVal, err := rangeRef.DereferenceReadonly()
			if err != nil {
				return air.StatusNext, err
			}
			return runForEach(m, keyName, valueName, rangeRef, rangeVal, bodyQ)
		},
	})
	return nil
}

func solidifyTryCatch(x *air.TryCatch, q *avmc.Queue) error {
	tryQ, err := Solidify(x.Try)
	if err != nil {
		return err
	}
	catchQ, err := Solidify(x.Catch)
	if err != nil {
		return err
	}
	catchName := x.CatchName
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "try_catch"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			tryScope := m.EnterBlock(false)
			st, tryErr := tryQ.Run(m)
			st, tryErr = m.LeaveBlock(tryScope, st, tryErr)
			if tryErr == nil {
				return st, nil
			}
			catchScope := m.EnterBlock(false)
			if err := m.BindCaught(catchName, tryErr); err != nil {
				return m.LeaveBlock(catchScope, air.StatusNext, err)
			}
			cst, cerr := catchQ.Run(m)
			if cerr != nil {
				cerr = m.WrapCatch(cerr, tryErr)
			}
			return m.LeaveBlock(catchScope, cst, cerr)
		},
	})
	return nil
}

func solidifyCatchExpression(x *air.CatchExpression, q *avmc.Queue) error {
	bodyQ, err := Solidify(x.Body)
	if err != nil {
		return err
	}
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "catch_expression"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			baseline := m.Height()
			scope := m.EnterBlock(false)
			_, err := bodyQ.Run(m)
			if _, lerr := m.LeaveBlock(scope, air.StatusNext, nil); lerr != nil {
				return air.StatusNext, lerr
			}
			m.Truncate(baseline)
			if err != nil {
				m.Push(m.CaughtValue(err))
			} else {
				m.Push(ref.Constant(value.Nil()))
			}
			return air.StatusNext, nil
		},
	})
	return nil
}

// loopKind selects which typed break/continue statuses a loop construct
// handles itself; the unspecified variants bind to the nearest enclosing
// loop of any kind.
type loopKind uint8

const (
	loopWhile loopKind = iota // while and do-while
	loopFor                   // for and for-each
)

// loopBreak normalizes a loop body's terminal status: a continue of the
// matching kind (or unspecified) is absorbed, since the Go for-loop
// already moves on; a break of the matching kind (or unspecified) is
// absorbed and reported as a stop signal; anything else (return, a
// break/continue targeting a different construct) propagates unchanged.
func loopBreak(st air.StatusCode, kind loopKind) (air.StatusCode, bool) {
	matchBreak, matchContinue := air.StatusBreakWhile, air.StatusContinueWhile
	if kind == loopFor {
		matchBreak, matchContinue = air.StatusBreakFor, air.StatusContinueFor
	}
	switch st {
	case air.StatusNext, air.StatusContinueUnspec, matchContinue:
		return air.StatusNext, false
	case air.StatusBreakUnspec, matchBreak:
		return air.StatusNext, true
	default:
		return st, true
	}
}
