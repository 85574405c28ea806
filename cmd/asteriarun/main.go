// Command asteriarun is a thin demonstration binary for pkg/asteria. It
// builds a small AIR program directly via the air.* constructors (the
// role an external parser front end would normally play), compiles it,
// runs it, and prints the result or a formatted backtrace.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/debugstream"
	"github.com/asteria-lang/asteria/internal/engineconfig"
	"github.com/asteria-lang/asteria/internal/value"

	"github.com/asteria-lang/asteria/pkg/asteria"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "asteriarun: panic: %v\n", r)
			os.Exit(1)
		}
	}()

	disasm := flag.Bool("disasm", false, "print the compiled program's disassembly instead of running it")
	configPath := flag.String("config", "", "path to an asteria.yaml configuration file (default: built-in defaults)")
	debugAddr := flag.String("debug-addr", "", "if set, serve internal/debugstream events on this address while running")
	flag.Parse()

	if err := run(*disasm, *configPath, *debugAddr); err != nil {
		fmt.Fprintf(os.Stderr, "asteriarun: %v\n", err)
		os.Exit(1)
	}
}

func run(disasm bool, configPath, debugAddr string) error {
	cfg := engineconfig.Default()
	if configPath != "" {
		var err error
		cfg, err = engineconfig.Load(configPath)
		if err != nil {
			return err
		}
	}

	opts := []asteria.Option{asteria.WithRandomSeed([32]byte{1, 2, 3, 4, 5, 6, 7, 8})}
	if debugAddr != "" {
		sink, err := debugstream.NewSink(debugAddr)
		if err != nil {
			return fmt.Errorf("starting debug stream: %w", err)
		}
		defer sink.Close()
		opts = append(opts, asteria.WithHooks(sink))
		fmt.Fprintf(os.Stderr, "asteriarun: serving debug events on %s\n", debugAddr)
	}

	rt, err := asteria.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}

	program := demoProgram()

	if disasm {
		q, err := rt.Compile(program)
		if err != nil {
			return fmt.Errorf("compiling: %w", err)
		}
		fmt.Print(asteria.Disassemble(q, "asteriarun-demo"))
		return nil
	}

	result, err := rt.CompileAndRun(program)
	if err != nil {
		asteria.FormatBacktrace(os.Stderr, err)
		return fmt.Errorf("running demo program")
	}
	fmt.Println(result.Inspect())
	return nil
}

// demoProgram builds, by hand, the equivalent of:
//
//	var numbers = [1, 2, 3, 4, 5];
//
//	function sumAll(arr) {
//	    var total = 0;
//	    for each v in arr {
//	        total += v;
//	    }
//	    return total;
//	}
//
//	var result = {};
//	result["sum"] = sumAll(numbers);
//
//	try {
//	    var missing = result["missing"]["deep"];
//	} catch (err) {
//	    result["error"] = err;
//	}
//
//	return result;
//
// exercising array/object literals, closures, for-each over an array,
// nested reference indexing (including the checked-object-key error
// path), and try/catch exception binding — without ever having a parser
// available to produce this tree from source text.
func demoProgram() []air.Node {
	return []air.Node{
		&air.DeclareVariable{Name: "numbers"},
		&air.PushConstantSmallInt{Value: 1},
		&air.PushConstantSmallInt{Value: 2},
		&air.PushConstantSmallInt{Value: 3},
		&air.PushConstantSmallInt{Value: 4},
		&air.PushConstantSmallInt{Value: 5},
		&air.PushUnnamedArray{Count: 5},
		&air.InitializeVariable{Name: "numbers"},

		&air.DefineFunction{
			Name:   "sumAll",
			Params: []air.FunctionParam{{Name: "arr"}},
			Body: []air.Node{
				&air.DeclareVariable{Name: "total"},
				&air.PushConstantSmallInt{Value: 0},
				&air.InitializeVariable{Name: "total"},
				&air.ForEach{
					ValueName: "v",
					Range:     &air.PushLocalRef{Depth: 0, Name: "arr"},
					Body: []air.Node{
						&air.PushLocalRef{Depth: 1, Name: "total"},
						&air.PushLocalRef{Depth: 0, Name: "v"},
						&air.ApplyOperator{Op: value.OpAdd, AssignToLHS: true},
						&air.ClearStack{},
					},
				},
				&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "total"}},
			},
		},

		&air.DeclareVariable{Name: "result"},
		&air.PushUnnamedObject{},
		&air.InitializeVariable{Name: "result"},

		// result["sum"] = sumAll(numbers);
		&air.PushLocalRef{Depth: 0, Name: "result"},
		&air.PushConstant{Value: value.Str("sum")},
		&air.ApplyOperator{Op: value.OpIndex},
		&air.PushLocalRef{Depth: 0, Name: "sumAll"},
		&air.CheckArgument{Value: &air.PushLocalRef{Depth: 0, Name: "numbers"}},
		&air.FunctionCall{NArgs: 1},
		&air.ApplyOperator{Op: value.OpAssign},
		&air.ClearStack{},

		&air.TryCatch{
			Try: []air.Node{
				&air.DeclareVariable{Name: "missing"},
				&air.PushLocalRef{Depth: 1, Name: "result"},
				&air.PushConstant{Value: value.Str("missing")},
				&air.ApplyOperator{Op: value.OpIndex},
				&air.PushConstant{Value: value.Str("deep")},
				&air.ApplyOperator{Op: value.OpIndex},
				&air.InitializeVariable{Name: "missing"},
			},
			CatchName: "err",
			Catch: []air.Node{
				// "result" lives in the module scope, one hop above the
				// catch scope that binds "err".
				&air.PushLocalRef{Depth: 1, Name: "result"},
				&air.PushConstant{Value: value.Str("error")},
				&air.ApplyOperator{Op: value.OpIndex},
				&air.PushLocalRef{Depth: 0, Name: "err"},
				&air.ApplyOperator{Op: value.OpAssign},
				&air.ClearStack{},
			},
		},

		&air.Return{Value: &air.PushLocalRef{Depth: 0, Name: "result"}},
	}
}
