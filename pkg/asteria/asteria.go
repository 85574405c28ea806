// Package asteria is the embeddable public API:
// it wires internal/engine, internal/solidify, internal/rebind and
// internal/engineconfig together behind a handful of calls an embedder
// makes without reaching into the internal/ tree itself. Parsing source
// text into AIR remains outside the core's scope; a Runtime only ever
// compiles and runs AIR trees an external front end (or, in
// cmd/asteriarun, direct constructor calls) already produced.
package asteria

import (
	"fmt"
	"log"
	"os"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/engine"
	"github.com/asteria-lang/asteria/internal/engineconfig"
	"github.com/asteria-lang/asteria/internal/gc"
	"github.com/asteria-lang/asteria/internal/hooks"
	"github.com/asteria-lang/asteria/internal/loader"
	"github.com/asteria-lang/asteria/internal/rebind"
	"github.com/asteria-lang/asteria/internal/solidify"
	"github.com/asteria-lang/asteria/internal/value"

	"github.com/dustin/go-humanize"
)

// Runtime is one running engine instance: an internal/engine.Driver plus
// the ambient configuration it was built from. Not safe for concurrent
// use by multiple goroutines; the engine is a single-threaded
// cooperative machine.
type Runtime struct {
	driver *engine.Driver
	cfg    engineconfig.Config
	logger *log.Logger
}

// Option configures New beyond what engineconfig.Config carries.
type Option func(*options)

type options struct {
	hooks  hooks.Hooks
	loader loader.Loader
	logger *log.Logger
	seed   [32]byte
}

// WithHooks installs a host observation sink, e.g.
// internal/debugstream.Sink.
func WithHooks(h hooks.Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithLoader installs a module loader other than the default
// internal/loader.FileLoader.
func WithLoader(l loader.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithLogger overrides the default stderr logger used for GC threshold
// diagnostics and other ambient engine logging.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRandomSeed overrides the seed engineconfig.Config.Seed produced
// (or its zero default), for reproducible test runs.
func WithRandomSeed(seed [32]byte) Option {
	return func(o *options) { o.seed = seed }
}

// New builds a Runtime from cfg, installing a GC diagnostic logger that
// reports threshold-exceeded collections with humanized counts.
func New(cfg engineconfig.Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	seed := o.seed
	if seed == [32]byte{} {
		var err error
		seed, err = cfg.Seed()
		if err != nil {
			return nil, err
		}
	}
	logger := o.logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	d := engine.New(cfg.GC.G0Threshold, cfg.GC.G1Threshold, cfg.GC.G2Threshold, cfg.RecursionLimit, o.hooks, o.loader, seed)

	r := &Runtime{driver: d, cfg: cfg, logger: logger}
	d.Collector().OnCollect = r.logCollection
	return r, nil
}

// logCollection is the Collector.OnCollect callback: it only logs passes
// that actually reclaimed something, formatting the before/after counts
// with github.com/dustin/go-humanize the way a host would want a
// "GC threshold exceeded" line to read in a log stream.
func (r *Runtime) logCollection(s gc.Stats) {
	if s.Collected == 0 {
		return
	}
	r.logger.Printf("gc: %s collection reclaimed %s of %s tracked variables (%s promoted)",
		s.Generation,
		humanize.Comma(int64(s.Collected)),
		humanize.Comma(int64(s.Tracked+s.Collected+s.Promoted)),
		humanize.Comma(int64(s.Promoted)))
}

// Compile rebinds and solidifies an AIR program into a runnable Queue,
// against the Runtime's Global context so closures captured at the top
// level resolve correctly.
func (r *Runtime) Compile(program []air.Node) (*avmc.Queue, error) {
	rebound := rebind.Rebind(program, r.driver.Global())
	return solidify.Solidify(rebound)
}

// RegisterModule compiles program and registers it under canonicalPath
// so `import_call` can resolve it (the parser/loader front end is
// responsible for turning a source path into a canonical one and into
// AIR; a Runtime only accepts the already-built tree).
func (r *Runtime) RegisterModule(canonicalPath string, program []air.Node) error {
	q, err := r.Compile(program)
	if err != nil {
		return fmt.Errorf("asteria: compiling module %q: %w", canonicalPath, err)
	}
	r.driver.RegisterModule(canonicalPath, q)
	return nil
}

// Run executes q as the top-level program and returns the value of its
// explicit return statement (null if it completes without one). A script-level throw or an engine-raised runtime error comes
// back as *engine.Exception; use FormatBacktrace to render it.
func (r *Runtime) Run(q *avmc.Queue) (value.Value, error) {
	return r.driver.RunModule(q)
}

// CompileAndRun is the common single-shot embedding path: compile
// program fresh and run it immediately.
func (r *Runtime) CompileAndRun(program []air.Node) (value.Value, error) {
	q, err := r.Compile(program)
	if err != nil {
		return value.Value{}, err
	}
	return r.Run(q)
}

// Driver exposes the underlying engine driver for callers that need
// lower-level access (installing builtins into the Global context before
// running, invoking a returned function Value, disassembling a queue).
func (r *Runtime) Driver() *engine.Driver { return r.driver }

// Disassemble renders q as a human-readable listing, useful for a
// host's debug command.
func Disassemble(q *avmc.Queue, name string) string {
	return avmc.Disassemble(q, name)
}
