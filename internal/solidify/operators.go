package solidify

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
	"github.com/asteria-lang/asteria/internal/value"
)

// isUnary partitions value.Op the way apply_operator's AIR
// payload does: everything before OpAssign in the Op enum is unary.
func isUnary(op value.Op) bool { return op < value.OpAssign }

// solidifyApplyOperator implements the full builtin operator set
// against the top one or two stack operands, dispatching on the opcode
// rather than through a Visitor-based evaluator.
func solidifyApplyOperator(x *air.ApplyOperator, q *avmc.Queue) error {
	op, sloc, assignToLHS := x.Op, x.Sloc, x.AssignToLHS
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: sloc, Name: "apply_operator"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			if op == value.OpFma {
				return air.StatusNext, applyFma(m)
			}
			if isUnary(op) {
				return air.StatusNext, applyUnary(m, op)
			}
			return air.StatusNext, applyBinary(m, op, assignToLHS)
		},
	})
	return nil
}

func applyUnary(m avmc.Machine, op value.Op) error {
	r := m.Pop()
	v, err := r.DereferenceReadonly()
	if err != nil {
		return err
	}
	switch op {
	case value.OpPos:
		m.Push(ref.Temporary(v))
		return nil
	case value.OpNeg:
		switch v.Tag() {
		case value.Integer:
			n, err := value.SubChecked(0, v.AsInt())
			if err != nil {
				return err
			}
			m.Push(ref.Temporary(value.Int(n)))
		case value.Real:
			m.Push(ref.Temporary(value.Float(-v.AsReal())))
		default:
			return typeError("neg", v)
		}
		return nil
	case value.OpNotB:
		switch v.Tag() {
		case value.Boolean:
			m.Push(ref.Temporary(value.Bool(!v.AsBool())))
		case value.Integer:
			m.Push(ref.Temporary(value.Int(^v.AsInt())))
		default:
			return typeError("notb", v)
		}
		return nil
	case value.OpNotL:
		m.Push(ref.Temporary(value.Bool(!v.AsBool())))
		return nil
	case value.OpCountof:
		n, err := v.Countof()
		if err != nil {
			return err
		}
		m.Push(ref.Temporary(value.Int(n)))
		return nil
	case value.OpTypeof:
		m.Push(ref.Temporary(value.Str(v.TypeOf())))
		return nil
	case value.OpSqrt:
		out, err := value.Sqrt(v)
		if err != nil {
			return err
		}
		m.Push(ref.Temporary(out))
		return nil
	case value.OpIsNan:
		m.Push(ref.Temporary(value.Bool(v.Tag() == value.Real && math.IsNaN(v.AsReal()))))
		return nil
	case value.OpIsInf:
		m.Push(ref.Temporary(value.Bool(v.Tag() == value.Real && math.IsInf(v.AsReal(), 0))))
		return nil
	case value.OpAbs:
		switch v.Tag() {
		case value.Integer:
			n := v.AsInt()
			if n < 0 {
				n = -n
			}
			m.Push(ref.Temporary(value.Int(n)))
		case value.Real:
			m.Push(ref.Temporary(value.Float(math.Abs(v.AsReal()))))
		default:
			return typeError("abs", v)
		}
		return nil
	case value.OpSign:
		switch v.Tag() {
		case value.Integer:
			n := v.AsInt()
			switch {
			case n < 0:
				m.Push(ref.Temporary(value.Int(-1)))
			case n > 0:
				m.Push(ref.Temporary(value.Int(1)))
			default:
				m.Push(ref.Temporary(value.Int(0)))
			}
		case value.Real:
			m.Push(ref.Temporary(value.Float(math.Copysign(1, v.AsReal()))))
		default:
			return typeError("sign", v)
		}
		return nil
	case value.OpRound, value.OpFloor, value.OpCeil, value.OpTrunc,
		value.OpIRound, value.OpIFloor, value.OpICeil, value.OpITrunc:
		return applyRounding(m, op, v)
	case value.OpLzcnt:
		m.Push(ref.Temporary(value.Int(int64(bits.LeadingZeros64(uint64(v.AsInt()))))))
		return nil
	case value.OpTzcnt:
		m.Push(ref.Temporary(value.Int(int64(bits.TrailingZeros64(uint64(v.AsInt()))))))
		return nil
	case value.OpPopcnt:
		m.Push(ref.Temporary(value.Int(int64(bits.OnesCount64(uint64(v.AsInt()))))))
		return nil
	case value.OpInc, value.OpDec:
		delta := int64(1)
		if op == value.OpDec {
			delta = -1
		}
		n, err := value.AddChecked(v.AsInt(), delta)
		if err != nil {
			return err
		}
		_, set, err := r.DereferenceMutable()
		if err != nil {
			return err
		}
		set(value.Int(n))
		m.Push(ref.Temporary(v))
		return nil
	case value.OpUnset:
		old, err := r.DereferenceUnset()
		if err != nil {
			return err
		}
		m.Push(ref.Temporary(old))
		return nil
	case value.OpHead:
		nr, err := r.PushModifier(ref.HeadModifier())
		if err != nil {
			return err
		}
		m.Push(nr)
		return nil
	case value.OpTail:
		nr, err := r.PushModifier(ref.TailModifier())
		if err != nil {
			return err
		}
		m.Push(nr)
		return nil
	case value.OpRandom:
		nr, err := r.PushModifier(ref.RandomModifier(m.RandomSeed()))
		if err != nil {
			return err
		}
		m.Push(nr)
		return nil
	default:
		return fmt.Errorf("solidify: unhandled unary operator %d", op)
	}
}

// applyFma implements the ternary `fma` operator: pops c, b, a (in
// that push order) and computes a*b+c without an intermediate rounding
// step for real operands, matching math.FMA's contract.
func applyFma(m avmc.Machine) error {
	cRef := m.Pop()
	bRef := m.Pop()
	aRef := m.Pop()
	c, err := cRef.DereferenceReadonly()
	if err != nil {
		return err
	}
	b, err := bRef.DereferenceReadonly()
	if err != nil {
		return err
	}
	a, err := aRef.DereferenceReadonly()
	if err != nil {
		return err
	}
	if a.Tag() == value.Integer && b.Tag() == value.Integer && c.Tag() == value.Integer {
		prod, err := value.MulChecked(a.AsInt(), b.AsInt())
		if err != nil {
			return err
		}
		sum, err := value.AddChecked(prod, c.AsInt())
		if err != nil {
			return err
		}
		m.Push(ref.Temporary(value.Int(sum)))
		return nil
	}
	m.Push(ref.Temporary(value.Float(math.FMA(a.AsReal(), b.AsReal(), c.AsReal()))))
	return nil
}

func applyRounding(m avmc.Machine, op value.Op, v value.Value) error {
	if v.Tag() != value.Real && v.Tag() != value.Integer {
		return typeError("round", v)
	}
	if v.Tag() == value.Integer {
		m.Push(ref.Temporary(v))
		return nil
	}
	f := v.AsReal()
	var rounded float64
	switch op {
	case value.OpRound, value.OpIRound:
		rounded = math.Round(f)
	case value.OpFloor, value.OpIFloor:
		rounded = math.Floor(f)
	case value.OpCeil, value.OpICeil:
		rounded = math.Ceil(f)
	case value.OpTrunc, value.OpITrunc:
		rounded = math.Trunc(f)
	}
	switch op {
	case value.OpIRound, value.OpIFloor, value.OpICeil, value.OpITrunc:
		if rounded > math.MaxInt64 || rounded < math.MinInt64 {
			return &value.OverflowError{Op: "round-to-integer"}
		}
		m.Push(ref.Temporary(value.Int(int64(rounded))))
	default:
		m.Push(ref.Temporary(value.Float(rounded)))
	}
	return nil
}

func applyBinary(m avmc.Machine, op value.Op, assignToLHS bool) error {
	rhsRef := m.Pop()
	lhsRef := m.Pop()
	rhs, err := rhsRef.DereferenceReadonly()
	if err != nil {
		return err
	}

	if op == value.OpAssign {
		_, set, err := lhsRef.DereferenceMutable()
		if err != nil {
			return err
		}
		set(rhs)
		m.Push(lhsRef)
		return nil
	}
	if op == value.OpIndex {
		nr, err := indexModifierFor(lhsRef, rhs)
		if err != nil {
			return err
		}
		m.Push(nr)
		return nil
	}

	lhs, err := lhsRef.DereferenceReadonly()
	if err != nil {
		return err
	}

	result, err := computeBinary(op, lhs, rhs)
	if err != nil {
		return err
	}

	if !assignToLHS {
		m.Push(ref.Temporary(result))
		return nil
	}
	_, set, err := lhsRef.DereferenceMutable()
	if err != nil {
		return err
	}
	set(result)
	m.Push(lhsRef)
	return nil
}

func computeBinary(op value.Op, lhs, rhs value.Value) (value.Value, error) {
	switch op {
	case value.OpCmpEq:
		return value.Bool(value.Eq(lhs, rhs)), nil
	case value.OpCmpNe:
		return value.Bool(!value.Eq(lhs, rhs)), nil
	case value.OpCmpLt, value.OpCmpGt, value.OpCmpLte, value.OpCmpGte:
		o := value.Compare(lhs, rhs)
		if o == value.Unordered {
			return value.Value{}, &value.UnorderedCompareError{}
		}
		switch op {
		case value.OpCmpLt:
			return value.Bool(o == value.Less), nil
		case value.OpCmpGt:
			return value.Bool(o == value.Greater), nil
		case value.OpCmpLte:
			return value.Bool(o != value.Greater), nil
		default:
			return value.Bool(o != value.Less), nil
		}
	case value.OpCmp3Way:
		o, ok := value.Cmp3Way(lhs, rhs)
		if !ok {
			return value.Str(value.UnorderedSentinel), nil
		}
		return value.Int(value.OrderingToInt(o)), nil
	case value.OpCmpUn:
		return value.Bool(value.Compare(lhs, rhs) == value.Unordered), nil
	case value.OpAdd, value.OpAddM, value.OpAddS:
		return arith(op, lhs, rhs, value.AddChecked, value.AddWrap, value.AddSat, func(a, b float64) float64 { return a + b })
	case value.OpSub, value.OpSubM, value.OpSubS:
		return arith(op, lhs, rhs, value.SubChecked, value.SubWrap, value.SubSat, func(a, b float64) float64 { return a - b })
	case value.OpMul, value.OpMulM, value.OpMulS:
		return arith(op, lhs, rhs, value.MulChecked, value.MulWrap, value.MulSat, func(a, b float64) float64 { return a * b })
	case value.OpDiv:
		if lhs.Tag() == value.Integer && rhs.Tag() == value.Integer {
			n, err := value.DivChecked(lhs.AsInt(), rhs.AsInt())
			return value.Int(n), err
		}
		return value.Float(lhs.AsReal() / rhs.AsReal()), nil
	case value.OpMod:
		if lhs.Tag() == value.Integer && rhs.Tag() == value.Integer {
			n, err := value.ModChecked(lhs.AsInt(), rhs.AsInt())
			return value.Int(n), err
		}
		return value.Float(math.Mod(lhs.AsReal(), rhs.AsReal())), nil
	case value.OpAndB, value.OpOrB, value.OpXorB:
		if lhs.Tag() == value.String && rhs.Tag() == value.String {
			s, err := value.BitwiseStringOp(op, lhs.AsString(), rhs.AsString())
			return value.Str(s), err
		}
		a, b := lhs.AsInt(), rhs.AsInt()
		switch op {
		case value.OpAndB:
			return value.Int(a & b), nil
		case value.OpOrB:
			return value.Int(a | b), nil
		default:
			return value.Int(a ^ b), nil
		}
	case value.OpSll, value.OpSrl:
		n, err := value.ShiftLogical(op == value.OpSll, lhs.AsInt(), rhs.AsInt())
		return value.Int(n), err
	case value.OpSla:
		n, err := value.ShiftArithmeticLeft(lhs.AsInt(), rhs.AsInt())
		return value.Int(n), err
	case value.OpSra:
		n, err := value.ShiftArithmeticRight(lhs.AsInt(), rhs.AsInt())
		return value.Int(n), err
	case value.OpFma:
		return value.Value{}, fmt.Errorf("solidify: fma is a ternary operator, not representable by a single apply_operator binary pop")
	default:
		return value.Value{}, fmt.Errorf("solidify: unhandled binary operator %d", op)
	}
}

type checkedOp func(a, b int64) (int64, error)
type wrapOp func(a, b int64) int64
type satOp func(a, b int64) int64
type floatOp func(a, b float64) float64

func arith(op value.Op, lhs, rhs value.Value, checked checkedOp, wrap wrapOp, sat satOp, fop floatOp) (value.Value, error) {
	if lhs.Tag() == value.String {
		return stringArith(op, lhs, rhs)
	}
	if lhs.Tag() == value.Array && rhs.Tag() == value.Integer {
		elems, err := value.RepeatArray(lhs.AsArray().Elems, rhs.AsInt())
		if err != nil {
			return value.Value{}, err
		}
		return value.Arr(elems), nil
	}
	if lhs.Tag() == value.Integer && rhs.Tag() == value.Integer {
		a, b := lhs.AsInt(), rhs.AsInt()
		switch {
		case isWrapVariant(op):
			return value.Int(wrap(a, b)), nil
		case isSatVariant(op):
			return value.Int(sat(a, b)), nil
		default:
			n, err := checked(a, b)
			return value.Int(n), err
		}
	}
	return value.Float(fop(lhs.AsReal(), rhs.AsReal())), nil
}

func stringArith(op value.Op, lhs, rhs value.Value) (value.Value, error) {
	switch {
	case op == value.OpAdd || op == value.OpAddM || op == value.OpAddS:
		if rhs.Tag() != value.String {
			return value.Value{}, typeError("string concat", rhs)
		}
		return value.Str(lhs.AsString() + rhs.AsString()), nil
	case op == value.OpMul || op == value.OpMulM || op == value.OpMulS:
		if rhs.Tag() != value.Integer {
			return value.Value{}, typeError("string repeat", rhs)
		}
		s, err := value.RepeatString(lhs.AsString(), rhs.AsInt())
		return value.Str(s), err
	default:
		return value.Value{}, fmt.Errorf("solidify: unsupported string operator %d", op)
	}
}

func isWrapVariant(op value.Op) bool {
	return op == value.OpAddM || op == value.OpSubM || op == value.OpMulM
}

func isSatVariant(op value.Op) bool {
	return op == value.OpAddS || op == value.OpSubS || op == value.OpMulS
}

func typeError(what string, v value.Value) error {
	return fmt.Errorf("%s: unsupported operand type %q", what, v.Tag())
}

// indexModifierFor builds the reference `index` produces: an integer
// subscript addresses into an array by array_index, a string subscript
// addresses into an object by object_key.
func indexModifierFor(lhsRef avmc.Ref, subscript value.Value) (avmc.Ref, error) {
	switch subscript.Tag() {
	case value.Integer:
		return lhsRef.PushModifier(ref.IndexModifier(subscript.AsInt()))
	case value.String:
		return lhsRef.PushModifier(ref.KeyModifier(subscript.AsString()))
	default:
		return ref.Reference{}, typeError("index", subscript)
	}
}
