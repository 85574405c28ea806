package asteria

import (
	"math"
	"strings"
	"testing"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/engine"
	"github.com/asteria-lang/asteria/internal/engineconfig"
	"github.com/asteria-lang/asteria/internal/value"
)

func newTestRuntime(t *testing.T, cfg engineconfig.Config) *Runtime {
	t.Helper()
	rt, err := New(cfg, WithRandomSeed([32]byte{1}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rt
}

// TestForEachPreservesIterationOrder: iterating an array with
// for_each and writing back through the bound (key, value) pair at its
// own index round-trips the source array in order.
func TestForEachPreservesIterationOrder(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "src"},
		&air.PushConstant{Value: value.Str("a")},
		&air.PushConstant{Value: value.Str("b")},
		&air.PushConstant{Value: value.Str("c")},
		&air.PushUnnamedArray{Count: 3},
		&air.InitializeVariable{Name: "src"},

		&air.DeclareVariable{Name: "out"},
		&air.PushConstant{Value: value.Nil()},
		&air.PushConstant{Value: value.Nil()},
		&air.PushConstant{Value: value.Nil()},
		&air.PushUnnamedArray{Count: 3},
		&air.InitializeVariable{Name: "out"},

		&air.ForEach{
			KeyName:   "k",
			ValueName: "v",
			Range:     &air.PushLocalRef{Depth: 0, Name: "src"},
			Body: []air.Node{
				&air.PushLocalRef{Depth: 1, Name: "out"},
				&air.PushLocalRef{Depth: 0, Name: "k"},
				&air.ApplyOperator{Op: value.OpIndex},
				&air.PushLocalRef{Depth: 0, Name: "v"},
				&air.ApplyOperator{Op: value.OpAssign},
				&air.ClearStack{},
			},
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "out"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	elems := result.AsArray().Elems
	want := []string{"a", "b", "c"}
	if len(elems) != len(want) {
		t.Fatalf("out = %s, want length %d", result.Inspect(), len(want))
	}
	for i, w := range want {
		if elems[i].AsString() != w {
			t.Fatalf("out[%d] = %q, want %q", i, elems[i].AsString(), w)
		}
	}
}

// TestNestedFunctionClosureResolvesOuterName: a function
// defined three levels deep resolves an outer sibling function by name
// through its captured lexical environment, and typeof that value is
// "function" all the way back out through three tail-position returns.
func TestNestedFunctionClosureResolvesOuterName(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())

	one := []air.Node{
		// "two" is declared two Analytic hops up from one's own body:
		// one -> two (declares "one") -> three (declares "two").
		&air.PushLocalRef{Depth: 2, Name: "two"},
		&air.Return{Value: &air.ApplyOperator{Op: value.OpTypeof}},
	}
	two := []air.Node{
		&air.DefineFunction{Name: "one", Body: one},
		&air.PushLocalRef{Depth: 0, Name: "one"},
		&air.Return{Value: &air.FunctionCall{NArgs: 0}},
	}
	three := []air.Node{
		&air.DefineFunction{Name: "two", Body: two},
		&air.PushLocalRef{Depth: 0, Name: "two"},
		&air.Return{Value: &air.FunctionCall{NArgs: 0}},
	}
	program := []air.Node{
		&air.DefineFunction{Name: "three", Body: three},
		&air.PushLocalRef{Depth: 0, Name: "three"},
		&air.Return{Value: &air.FunctionCall{NArgs: 0}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.Tag() != value.String || result.AsString() != "function" {
		t.Fatalf("result = %s, want the string \"function\"", result.Inspect())
	}
}

// TestByRefIndexIntoObjectErrorsRatherThanPanics: a by-ref
// argument that resolves to an array-style index applied against an
// object only fails once the callee actually dereferences it, and it
// fails with an error rather than a panic.
func TestByRefIndexIntoObjectErrorsRatherThanPanics(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())

	noop := []air.Node{
		&air.PushLocalRef{Depth: 0, Name: "p"},
		&air.ApplyOperator{Op: value.OpCountof},
		&air.ClearStack{},
	}
	program := []air.Node{
		&air.DeclareVariable{Name: "obj"},
		&air.PushUnnamedObject{},
		&air.InitializeVariable{Name: "obj"},

		&air.DefineFunction{
			Name:   "noop",
			Params: []air.FunctionParam{{Name: "p"}},
			Body:   noop,
		},

		&air.PushLocalRef{Depth: 0, Name: "noop"},
		&air.PushLocalRef{Depth: 0, Name: "obj"},
		&air.PushConstantSmallInt{Value: 1},
		&air.ApplyOperator{Op: value.OpIndex},
		&air.CheckArgument{ByRef: true},
		&air.FunctionCall{NArgs: 1},
		&air.ClearStack{},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "obj"}},
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("indexing an object with an array-style modifier panicked: %v", r)
		}
	}()
	if _, err := rt.CompileAndRun(program); err == nil {
		t.Fatalf("expected a runtime error indexing an object via an array modifier")
	}
}

// TestProperTailCallTrampolineBoundsRecursion: a deep chain of proper
// tail calls must not
// grow the engine's own recursion-depth sentry, even when the sentry's
// limit is far smaller than the chain length.
func TestProperTailCallTrampolineBoundsRecursion(t *testing.T) {
	cfg := engineconfig.Default()
	cfg.RecursionLimit = 3
	rt := newTestRuntime(t, cfg)

	const depth = 50000
	countdown := []air.Node{
		&air.PushLocalRef{Depth: 0, Name: "n"},
		&air.PushConstantSmallInt{Value: 0},
		&air.If{
			Cond: &air.ApplyOperator{Op: value.OpCmpLte},
			Then: []air.Node{
				&air.Return{Value: &air.PushConstantSmallInt{Value: 0}},
			},
			Else: []air.Node{
				// countdown is declared in the module body, two hops up
				// from the If's else-branch block; n is one hop up.
				&air.PushLocalRef{Depth: 2, Name: "countdown"},
				&air.PushLocalRef{Depth: 1, Name: "n"},
				&air.PushConstantSmallInt{Value: 1},
				&air.ApplyOperator{Op: value.OpSub},
				&air.CheckArgument{},
				&air.Return{ByRef: true, Value: &air.FunctionCall{NArgs: 1, PTCMode: air.PTCByRef}},
			},
		},
	}
	program := []air.Node{
		&air.DefineFunction{
			Name:   "countdown",
			Params: []air.FunctionParam{{Name: "n"}},
			Body:   countdown,
		},
		&air.DeclareVariable{Name: "result"},
		&air.PushLocalRef{Depth: 0, Name: "countdown"},
		&air.PushConstantSmallInt{Value: depth},
		&air.CheckArgument{},
		&air.FunctionCall{NArgs: 1},
		&air.InitializeVariable{Name: "result"},
		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "result"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("a bounded tail-call chain of depth %d must not exceed a recursion limit of %d: %v", depth, cfg.RecursionLimit, err)
	}
	if result.AsInt() != 0 {
		t.Fatalf("countdown(%d) = %d, want 0", depth, result.AsInt())
	}
}

// TestIntegerOverflowCaughtPreservesPreAssignmentValue: an
// integer-add overflow inside a try block is caught, the caught payload
// is a string, and the assignment target never observes the overflowed
// result.
func TestIntegerOverflowCaughtPreservesPreAssignmentValue(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "a"},
		&air.PushConstantSmallInt{Value: 1},
		&air.InitializeVariable{Name: "a"},

		&air.TryCatch{
			Try: []air.Node{
				&air.PushLocalRef{Depth: 1, Name: "a"},
				&air.PushConstant{Value: value.Int(9223372036854775807)},
				&air.ApplyOperator{Op: value.OpAdd, AssignToLHS: true},
				&air.ClearStack{},
			},
			CatchName: "e",
			Catch: []air.Node{
				&air.PushLocalRef{Depth: 0, Name: "e"},
				&air.ApplyOperator{Op: value.OpTypeof},
				&air.PushConstant{Value: value.Str("string")},
				&air.ApplyOperator{Op: value.OpCmpEq},
				&air.Assert{Message: "typeof e == \"string\""},
			},
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "a"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsInt() != 1 {
		t.Fatalf("a = %d after a caught overflow, want 1 (pre-assignment value retained)", result.AsInt())
	}
}

// TestUncaughtExceptionBacktraceHasOneFrameAtEachCallSite: a
// chain of three nested calls (each a tail call in the source position
// a parser would put them) that ends in a throw leaves three frames
// besides the throw frame on the way out, most-recent first. The
// innermost call, the one that raised, appears as a "function" frame;
// the two tail-call sites resolved by the trampoline each add a "call"
// frame. The entry call, which returned its tail-call thunk before the
// throw, adds no frame of its own.
func TestUncaughtExceptionBacktraceHasOneFrameAtEachCallSite(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())

	three := []air.Node{
		&air.Throw{Value: &air.PushConstant{Value: value.Str("boom")}},
	}
	two := []air.Node{
		&air.DefineFunction{Name: "three", Body: three},
		&air.PushLocalRef{Depth: 0, Name: "three"},
		&air.Return{ByRef: true, Value: &air.FunctionCall{PTCMode: air.PTCByRef}},
	}
	one := []air.Node{
		&air.DefineFunction{Name: "two", Body: two},
		&air.PushLocalRef{Depth: 0, Name: "two"},
		&air.Return{ByRef: true, Value: &air.FunctionCall{PTCMode: air.PTCByRef}},
	}
	program := []air.Node{
		&air.DefineFunction{Name: "one", Body: one},
		&air.PushLocalRef{Depth: 0, Name: "one"},
		&air.Return{Value: &air.FunctionCall{}},
	}

	_, err := rt.CompileAndRun(program)
	if err == nil {
		t.Fatalf("expected the uncaught throw to propagate as an error")
	}
	exc, ok := err.(*engine.Exception)
	if !ok {
		t.Fatalf("err = %T, want *engine.Exception", err)
	}
	if exc.Payload.AsString() != "boom" {
		t.Fatalf("payload = %q, want %q", exc.Payload.AsString(), "boom")
	}
	var functionFrames, callFrames int
	for _, f := range exc.Frames {
		switch f.Kind {
		case "function":
			functionFrames++
		case "call":
			callFrames++
		}
	}
	if functionFrames+callFrames != 3 {
		t.Fatalf("function+call frames = %d+%d, want 3 total (one per call site regardless of tail-call projection)",
			functionFrames, callFrames)
	}
	if callFrames != 2 {
		t.Fatalf("call frames = %d, want 2 (one per resolved tail-call site)", callFrames)
	}
}

func TestFormatBacktraceRendersUncaughtException(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.Throw{Value: &air.PushConstant{Value: value.Str("boom")}},
	}
	_, err := rt.CompileAndRun(program)
	if err == nil {
		t.Fatalf("expected an error")
	}
	var buf strings.Builder
	FormatBacktrace(&buf, err)
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("backtrace = %q, want it to mention the payload", buf.String())
	}
}

// appendToS builds the statement list for `s += lit;` with s living depth
// lexical hops above the block the nodes run in.
func appendToS(depth int, lit string) []air.Node {
	return []air.Node{
		&air.PushLocalRef{Depth: depth, Name: "s"},
		&air.PushConstant{Value: value.Str(lit)},
		&air.ApplyOperator{Op: value.OpAdd, AssignToLHS: true},
		&air.ClearStack{},
	}
}

// TestDeferredExpressionsRunInReverseInsertionOrder: three defers
// registered a, b, c inside one block must run c, b, a when the block
// exits normally.
func TestDeferredExpressionsRunInReverseInsertionOrder(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	deferAppend := func(lit string) air.Node {
		return &air.DeferExpression{Body: []air.Node{
			&air.PushLocalRef{Depth: 1, Name: "s"},
			&air.PushConstant{Value: value.Str(lit)},
			&air.ApplyOperator{Op: value.OpAdd, AssignToLHS: true},
		}}
	}
	program := []air.Node{
		&air.DeclareVariable{Name: "s"},
		&air.PushConstant{Value: value.Str("")},
		&air.InitializeVariable{Name: "s"},

		&air.ExecuteBlock{Body: []air.Node{
			deferAppend("a"),
			deferAppend("b"),
			deferAppend("c"),
		}},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "s"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsString() != "cba" {
		t.Fatalf("s = %q, want %q (defers in reverse insertion order)", result.AsString(), "cba")
	}
}

// TestDeferredExpressionRunsOnExceptionExit: a defer registered before a
// throw in the same block still runs while the exception unwinds.
func TestDeferredExpressionRunsOnExceptionExit(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "s"},
		&air.PushConstant{Value: value.Str("")},
		&air.InitializeVariable{Name: "s"},

		&air.TryCatch{
			Try: []air.Node{
				&air.ExecuteBlock{Body: []air.Node{
					&air.DeferExpression{Body: []air.Node{
						&air.PushLocalRef{Depth: 2, Name: "s"},
						&air.PushConstant{Value: value.Str("a")},
						&air.ApplyOperator{Op: value.OpAdd, AssignToLHS: true},
					}},
					&air.Throw{Value: &air.PushConstant{Value: value.Str("bang")}},
				}},
			},
			CatchName: "e",
			Catch:     []air.Node{},
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "s"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsString() != "a" {
		t.Fatalf("s = %q, want %q (defer must run while unwinding)", result.AsString(), "a")
	}
}

// TestSwitchFallsThroughUntilBreak: the matched clause and every clause
// after it run in order until a break stops the walk.
func TestSwitchFallsThroughUntilBreak(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "s"},
		&air.PushConstant{Value: value.Str("")},
		&air.InitializeVariable{Name: "s"},

		&air.Switch{
			Cond: &air.PushConstantSmallInt{Value: 1},
			Clauses: []air.SwitchClause{
				{Label: &air.PushConstantSmallInt{Value: 1}, Body: appendToS(1, "one")},
				{Label: &air.PushConstantSmallInt{Value: 2}, Body: append(appendToS(1, "two"),
					&air.SimpleStatus{Status: air.StatusBreakSwitch})},
				{Label: &air.PushConstantSmallInt{Value: 3}, Body: appendToS(1, "three")},
			},
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "s"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsString() != "onetwo" {
		t.Fatalf("s = %q, want %q", result.AsString(), "onetwo")
	}
}

// TestSwitchFallsBackToDefaultClauseInSourceOrder: with no label match,
// execution starts at the default clause wherever it appears, and still
// falls through the clauses after it.
func TestSwitchFallsBackToDefaultClauseInSourceOrder(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "s"},
		&air.PushConstant{Value: value.Str("")},
		&air.InitializeVariable{Name: "s"},

		&air.Switch{
			Cond: &air.PushConstantSmallInt{Value: 9},
			Clauses: []air.SwitchClause{
				{Label: &air.PushConstantSmallInt{Value: 1}, Body: appendToS(1, "one")},
				{Label: nil, Body: appendToS(1, "dflt")},
				{Label: &air.PushConstantSmallInt{Value: 2}, Body: appendToS(1, "two")},
			},
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "s"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsString() != "dflttwo" {
		t.Fatalf("s = %q, want %q", result.AsString(), "dflttwo")
	}
}

// TestSwitchUnorderedLabelDoesNotMatchOrError: a label the condition
// cannot be ordered against (mixed categories, NaN) simply fails to
// match; with no default clause the switch is a no-op.
func TestSwitchUnorderedLabelDoesNotMatchOrError(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "s"},
		&air.PushConstant{Value: value.Str("start")},
		&air.InitializeVariable{Name: "s"},

		&air.Switch{
			Cond: &air.PushConstant{Value: value.Str("x")},
			Clauses: []air.SwitchClause{
				{Label: &air.PushConstantSmallInt{Value: 1}, Body: appendToS(1, "one")},
				{Label: &air.PushConstant{Value: value.Float(math.NaN())}, Body: appendToS(1, "nan")},
			},
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "s"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsString() != "start" {
		t.Fatalf("s = %q, want %q (unmatched switch must be a no-op)", result.AsString(), "start")
	}
}

// TestSwitchInjectsBypassedClauseDeclarations: names declared by a clause
// control flow skipped still exist (uninitialized) in the clauses that
// do run, so reading one errors with "uninitialized" rather than
// resolving to a same-named outer variable.
func TestSwitchInjectsBypassedClauseDeclarations(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "x"},
		&air.PushConstantSmallInt{Value: 99},
		&air.InitializeVariable{Name: "x"},

		&air.DeclareVariable{Name: "got"},
		&air.PushConstant{Value: value.Nil()},
		&air.InitializeVariable{Name: "got"},

		&air.TryCatch{
			Try: []air.Node{
				&air.Switch{
					Cond: &air.PushConstantSmallInt{Value: 2},
					Clauses: []air.SwitchClause{
						{
							Label:      &air.PushConstantSmallInt{Value: 1},
							LocalNames: []string{"x"},
							Body: []air.Node{
								&air.DeclareVariable{Name: "x"},
								&air.PushConstantSmallInt{Value: 7},
								&air.InitializeVariable{Name: "x"},
							},
						},
						{
							Label: &air.PushConstantSmallInt{Value: 2},
							Body: []air.Node{
								&air.PushLocalRef{Depth: 0, Name: "x"},
								&air.ApplyOperator{Op: value.OpTypeof},
								&air.ClearStack{},
							},
						},
					},
				},
			},
			CatchName: "e",
			Catch: []air.Node{
				&air.PushLocalRef{Depth: 1, Name: "got"},
				&air.PushLocalRef{Depth: 0, Name: "e"},
				&air.ApplyOperator{Op: value.OpAssign},
				&air.ClearStack{},
			},
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "got"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if !strings.Contains(result.AsString(), "uninitialized") {
		t.Fatalf("caught %q, want an uninitialized-variable error (the bypassed clause's placeholder, not the outer x)", result.AsString())
	}
}

// TestCatchExpressionYieldsPayloadOrNull: catch-as-expression evaluates
// to the thrown payload when the body throws and to null when it does
// not.
func TestCatchExpressionYieldsPayloadOrNull(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "a"},
		&air.CatchExpression{Body: []air.Node{
			&air.Throw{Value: &air.PushConstant{Value: value.Str("bang")}},
		}},
		&air.InitializeVariable{Name: "a"},

		&air.DeclareVariable{Name: "b"},
		&air.CatchExpression{Body: []air.Node{
			&air.PushConstantSmallInt{Value: 1},
		}},
		&air.InitializeVariable{Name: "b"},

		&air.PushLocalRef{Depth: 0, Name: "a"},
		&air.PushLocalRef{Depth: 0, Name: "b"},
		&air.Return{Value: &air.PushUnnamedArray{Count: 2}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	elems := result.AsArray().Elems
	if elems[0].AsString() != "bang" {
		t.Fatalf("a = %s, want the thrown payload \"bang\"", elems[0].Inspect())
	}
	if !elems[1].IsNull() {
		t.Fatalf("b = %s, want null for a non-throwing body", elems[1].Inspect())
	}
}

// TestImportRunsRegisteredModule: importing a path relative to the
// importing file resolves against the registered canonical path and
// yields the module body's return value.
func TestImportRunsRegisteredModule(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	if err := rt.RegisterModule("/virtual/dep.as", []air.Node{
		&air.Return{Value: &air.PushConstantSmallInt{Value: 42}},
	}); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}

	program := []air.Node{
		&air.DeclareVariable{Name: "got"},
		&air.ImportCall{
			Sloc: air.SourceLoc{File: "/virtual/main.as"},
			Path: &air.PushConstant{Value: value.Str("dep.as")},
		},
		&air.InitializeVariable{Name: "got"},
		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "got"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsInt() != 42 {
		t.Fatalf("imported value = %d, want 42", result.AsInt())
	}
}

// TestRecursiveImportFails: a module that imports itself (directly or
// through its own canonical path) errors instead of looping.
func TestRecursiveImportFails(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	if err := rt.RegisterModule("/virtual/self.as", []air.Node{
		&air.ImportCall{
			Sloc: air.SourceLoc{File: "/virtual/self.as"},
			Path: &air.PushConstant{Value: value.Str("self.as")},
		},
		&air.ClearStack{},
	}); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}

	program := []air.Node{
		&air.ImportCall{
			Sloc: air.SourceLoc{File: "/virtual/main.as"},
			Path: &air.PushConstant{Value: value.Str("self.as")},
		},
		&air.ClearStack{},
	}

	_, err := rt.CompileAndRun(program)
	if err == nil {
		t.Fatalf("expected a recursive import to error")
	}
	if !strings.Contains(err.Error(), "recursive import") {
		t.Fatalf("err = %q, want it to name the recursive import", err)
	}
}

// TestVariadicParameterCollectsRemainingArguments: a trailing variadic
// parameter binds every argument past the named ones as an array.
func TestVariadicParameterCollectsRemainingArguments(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DefineFunction{
			Name: "f",
			Params: []air.FunctionParam{
				{Name: "first"},
				{Name: "rest", Variadic: true},
			},
			Body: []air.Node{
				&air.PushLocalRef{Depth: 0, Name: "rest"},
				&air.Return{Value: &air.ApplyOperator{Op: value.OpCountof}},
			},
		},

		&air.DeclareVariable{Name: "n"},
		&air.PushLocalRef{Depth: 0, Name: "f"},
		&air.CheckArgument{Value: &air.PushConstantSmallInt{Value: 10}},
		&air.CheckArgument{Value: &air.PushConstantSmallInt{Value: 20}},
		&air.CheckArgument{Value: &air.PushConstantSmallInt{Value: 30}},
		&air.CheckArgument{Value: &air.PushConstantSmallInt{Value: 40}},
		&air.FunctionCall{NArgs: 4},
		&air.InitializeVariable{Name: "n"},
		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "n"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsInt() != 3 {
		t.Fatalf("countof rest = %d, want 3", result.AsInt())
	}
}

// TestVariadicCallSpreadsArrayArguments: variadic_call takes its
// arguments from an array value instead of the alt stack, one element
// per parameter position.
func TestVariadicCallSpreadsArrayArguments(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DefineFunction{
			Name: "f",
			Params: []air.FunctionParam{
				{Name: "first"},
				{Name: "rest", Variadic: true},
			},
			Body: []air.Node{
				&air.PushLocalRef{Depth: 0, Name: "rest"},
				&air.Return{Value: &air.ApplyOperator{Op: value.OpCountof}},
			},
		},

		&air.DeclareVariable{Name: "n"},
		&air.PushLocalRef{Depth: 0, Name: "f"},
		&air.PushConstantSmallInt{Value: 10},
		&air.PushConstantSmallInt{Value: 20},
		&air.PushConstantSmallInt{Value: 30},
		&air.PushUnnamedArray{Count: 3},
		&air.VariadicCall{},
		&air.InitializeVariable{Name: "n"},
		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "n"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsInt() != 2 {
		t.Fatalf("countof rest = %d, want 2", result.AsInt())
	}
}

// TestBreakForEscapesInnerWhile: a for-kind break raised inside a while
// loop must pass through the while untouched and terminate the enclosing
// for-each instead.
func TestBreakForEscapesInnerWhile(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "s"},
		&air.PushConstant{Value: value.Str("")},
		&air.InitializeVariable{Name: "s"},

		&air.DeclareVariable{Name: "src"},
		&air.PushConstantSmallInt{Value: 1},
		&air.PushConstantSmallInt{Value: 2},
		&air.PushConstantSmallInt{Value: 3},
		&air.PushUnnamedArray{Count: 3},
		&air.InitializeVariable{Name: "src"},

		&air.ForEach{
			ValueName: "v",
			Range:     &air.PushLocalRef{Depth: 0, Name: "src"},
			Body: append(append(appendToS(1, "x"),
				&air.While{
					Cond: &air.PushConstant{Value: value.Bool(true)},
					Body: []air.Node{
						&air.SimpleStatus{Status: air.StatusBreakFor},
					},
				}),
				appendToS(1, "y")...),
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "s"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsString() != "x" {
		t.Fatalf("s = %q, want %q (break-for must skip the rest of the body and end the outer loop)", result.AsString(), "x")
	}
}

// TestBreakWhileStopsOnlyTheWhile: a while-kind break inside a while
// nested in a for-each ends the while and lets the outer loop keep
// iterating.
func TestBreakWhileStopsOnlyTheWhile(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "s"},
		&air.PushConstant{Value: value.Str("")},
		&air.InitializeVariable{Name: "s"},

		&air.DeclareVariable{Name: "src"},
		&air.PushConstantSmallInt{Value: 1},
		&air.PushConstantSmallInt{Value: 2},
		&air.PushConstantSmallInt{Value: 3},
		&air.PushUnnamedArray{Count: 3},
		&air.InitializeVariable{Name: "src"},

		&air.ForEach{
			ValueName: "v",
			Range:     &air.PushLocalRef{Depth: 0, Name: "src"},
			Body: append(append(appendToS(1, "x"),
				&air.While{
					Cond: &air.PushConstant{Value: value.Bool(true)},
					Body: []air.Node{
						&air.SimpleStatus{Status: air.StatusBreakWhile},
					},
				}),
				appendToS(1, "y")...),
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "s"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsString() != "xyxyxy" {
		t.Fatalf("s = %q, want %q", result.AsString(), "xyxyxy")
	}
}

// TestContinueForBindsToEnclosingForEach: a for-kind continue skips the
// rest of the iteration's body without ending the loop.
func TestContinueForBindsToEnclosingForEach(t *testing.T) {
	rt := newTestRuntime(t, engineconfig.Default())
	program := []air.Node{
		&air.DeclareVariable{Name: "s"},
		&air.PushConstant{Value: value.Str("")},
		&air.InitializeVariable{Name: "s"},

		&air.DeclareVariable{Name: "src"},
		&air.PushConstantSmallInt{Value: 1},
		&air.PushConstantSmallInt{Value: 2},
		&air.PushConstantSmallInt{Value: 3},
		&air.PushUnnamedArray{Count: 3},
		&air.InitializeVariable{Name: "src"},

		&air.ForEach{
			ValueName: "v",
			Range:     &air.PushLocalRef{Depth: 0, Name: "src"},
			Body: append(append(appendToS(1, "x"),
				&air.SimpleStatus{Status: air.StatusContinueFor}),
				appendToS(1, "y")...),
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "s"}},
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		t.Fatalf("CompileAndRun: %v", err)
	}
	if result.AsString() != "xxx" {
		t.Fatalf("s = %q, want %q", result.AsString(), "xxx")
	}
}
