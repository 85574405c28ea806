// Package solidify implements AIR->AVMC solidification: it walks an
// air.Node tree with a type switch rather than Visitor double-dispatch,
// and appends avmc.Record handlers that close over internal/avmc.Machine,
// so this package never imports internal/engine.
package solidify

import (
	"fmt"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
)

// Solidify lowers a top-level statement list into a runnable Queue.
func Solidify(nodes []air.Node) (*avmc.Queue, error) {
	q := &avmc.Queue{}
	for _, n := range nodes {
		if err := solidifyOne(n, q); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// solidifyExpr lowers a single expression node, wrapping it the same way
// Solidify does a statement list, for call sites (If.Cond, Return.Value,
// BranchExpression.Then/Else, ...) that hold exactly one Node.
func solidifyExpr(n air.Node) (*avmc.Queue, error) {
	if n == nil {
		return &avmc.Queue{}, nil
	}
	return Solidify([]air.Node{n})
}

func solidifyOne(n air.Node, q *avmc.Queue) error {
	switch x := n.(type) {
	case *air.ClearStack:
		return solidifyClearStack(x, q)
	case *air.ExecuteBlock:
		return solidifyExecuteBlock(x, q)
	case *air.DeclareVariable:
		return solidifyDeclareVariable(x, q)
	case *air.InitializeVariable:
		return solidifyInitializeVariable(x, q)
	case *air.DefineNullVariable:
		return solidifyDefineNullVariable(x, q)
	case *air.DeclareReference:
		return solidifyDeclareReference(x, q)
	case *air.InitializeReference:
		return solidifyInitializeReference(x, q)
	case *air.If:
		return solidifyIf(x, q)
	case *air.Switch:
		return solidifySwitch(x, q)
	case *air.DoWhile:
		return solidifyDoWhile(x, q)
	case *air.While:
		return solidifyWhile(x, q)
	case *air.For:
		return solidifyFor(x, q)
	case *air.ForEach:
		return solidifyForEach(x, q)
	case *air.TryCatch:
		return solidifyTryCatch(x, q)
	case *air.Throw:
		return solidifyThrow(x, q)
	case *air.Assert:
		return solidifyAssert(x, q)
	case *air.Return:
		return solidifyReturn(x, q)
	case *air.DefineFunction:
		return solidifyDefineFunction(x, q)
	case *air.DeferExpression:
		return solidifyDeferExpression(x, q)
	case *air.PushGlobalRef:
		return solidifyPushGlobalRef(x, q)
	case *air.PushLocalRef:
		return solidifyPushLocalRef(x, q)
	case *air.PushBoundRef:
		return solidifyPushBoundRef(x, q)
	case *air.PushConstant:
		return solidifyPushConstant(x, q)
	case *air.PushConstantSmallInt:
		return solidifyPushConstantSmallInt(x, q)
	case *air.PushUnnamedArray:
		return solidifyPushUnnamedArray(x, q)
	case *air.PushUnnamedObject:
		return solidifyPushUnnamedObject(x, q)
	case *air.BranchExpression:
		return solidifyBranchExpression(x, q)
	case *air.FunctionCall:
		return solidifyFunctionCall(x, q)
	case *air.VariadicCall:
		return solidifyVariadicCall(x, q)
	case *air.ImportCall:
		return solidifyImportCall(x, q)
	case *air.ApplyOperator:
		return solidifyApplyOperator(x, q)
	case *air.CheckArgument:
		return solidifyCheckArgument(x, q)
	case *air.SimpleStatus:
		return solidifySimpleStatus(x, q)
	case *air.CatchExpression:
		return solidifyCatchExpression(x, q)
	case *air.SingleStepTrap:
		return solidifySingleStepTrap(x, q)
	default:
		return fmt.Errorf("solidify: unhandled AIR node %T", n)
	}
}

func solidifyClearStack(_ *air.ClearStack, q *avmc.Queue) error {
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "clear_stack"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			m.Truncate(m.BlockBaseline())
			return air.StatusNext, nil
		},
	})
	return nil
}

func solidifyExecuteBlock(x *air.ExecuteBlock, q *avmc.Queue) error {
	body, err := Solidify(x.Body)
	if err != nil {
		return err
	}
	q.Append(avmc.Record{
		Meta:   &avmc.Meta{Name: "execute_block"},
		SParam: body,
		Handler: func(m avmc.Machine, rec *avmc.Record) (air.StatusCode, error) {
			sub := rec.SParam.(*avmc.Queue)
			scope := m.EnterBlock(false)
			st, err := sub.Run(m)
			return m.LeaveBlock(scope, st, err)
		},
	})
	return nil
}

func solidifyDeclareVariable(x *air.DeclareVariable, q *avmc.Queue) error {
	name, immutable := x.Name, x.Immutable
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: x.Sloc, Name: "declare_variable"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			return air.StatusNext, m.Declare(name, immutable)
		},
	})
	return nil
}

func solidifyInitializeVariable(x *air.InitializeVariable, q *avmc.Queue) error {
	name := x.Name
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "initialize_variable"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			return air.StatusNext, m.InitializeLocal(name)
		},
	})
	return nil
}

func solidifyDefineNullVariable(x *air.DefineNullVariable, q *avmc.Queue) error {
	name, immutable := x.Name, x.Immutable
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: x.Sloc, Name: "define_null_variable"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			return air.StatusNext, m.DefineNull(name, immutable)
		},
	})
	return nil
}

func solidifyDeclareReference(x *air.DeclareReference, q *avmc.Queue) error {
	name := x.Name
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: x.Sloc, Name: "declare_reference"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			return air.StatusNext, m.DeclareRef(name)
		},
	})
	return nil
}

func solidifyInitializeReference(x *air.InitializeReference, q *avmc.Queue) error {
	name := x.Name
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "initialize_reference"},
		Handler: func(m avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			return air.StatusNext, m.InitializeRefLocal(name)
		},
	})
	return nil
}

func solidifySimpleStatus(x *air.SimpleStatus, q *avmc.Queue) error {
	status := x.Status
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Name: "simple_status"},
		Handler: func(_ avmc.Machine, _ *avmc.Record) (air.StatusCode, error) {
			return status, nil
		},
	})
	return nil
}

func solidifySingleStepTrap(x *air.SingleStepTrap, q *avmc.Queue) error {
	q.Append(avmc.Record{
		Meta: &avmc.Meta{Sloc: x.Sloc, Name: "single_step_trap"},
		Handler: func(m avmc.Machine, rec *avmc.Record) (air.StatusCode, error) {
			m.SingleStep(rec.Meta.Sloc)
			return air.StatusNext, nil
		},
	})
	return nil
}
