// Package gc implements the tri-generational collector: Variables enter
// G0 (the nursery), and a generation crossing its threshold is collected,
// with survivors promoted to the next tied generation.
//
// Collection is a mark-and-sweep over an explicit root set the engine
// supplies at each pass (contexts, evaluation stacks, defer queues)
// rather than an incremental reference count: Go offers no hook for "a
// handle was copied or dropped" short of threading retain/release calls
// through every assignment of a Reference value, which would fight the
// host language's own memory model for no benefit. Go's GC already
// reclaims the Go-level memory; this collector reclaims *script* cycles
// that would otherwise stay reachable forever. The generational
// bookkeeping (track/untrack, thresholds, promotion, reentrancy sentry,
// output pool) is unaffected by that choice.
package gc

import (
	"github.com/asteria-lang/asteria/internal/value"
	"github.com/asteria-lang/asteria/internal/variable"
)

// defunctValue overwrites a collected Variable's payload, breaking any
// cycle it participated in before it is dropped from the tracked set.
var defunctValue = value.Int(0x7EEDFACECAFEBEEF)

// RootsFunc is invoked by the collector at the start of every collection
// pass to obtain the current set of externally-held Variables: those
// reachable from live contexts, evaluation stacks, or defer queues. The
// engine installs this once, at construction.
type RootsFunc func() []*variable.Variable

// Stats summarizes one collection pass, surfaced to host hooks/diagnostics.
type Stats struct {
	Generation string
	Tracked    int
	Collected  int
	Promoted   int
}

// Collector owns the three generations and the engine-supplied root
// source.
type Collector struct {
	Roots RootsFunc

	g0, g1, g2 *generation

	// epoch is the current marking stamp. Each pass bumps it once, then
	// stamps every reachable Variable's gc_ref with it: a Variable is
	// reachable in this pass iff GCRef() == epoch, so stale stamps from
	// earlier passes never need clearing.
	epoch int64

	// OnCollect, if set, is called after every completed pass (including
	// ones that collected nothing) for diagnostics/logging.
	OnCollect func(Stats)
}

// New builds a collector with the given per-generation thresholds. A
// threshold of 0 disables opportunistic collection for that generation
// (it collects only when forced through CollectGeneration; promotions into
// it never trigger a pass).
func New(g0Threshold, g1Threshold, g2Threshold int) *Collector {
	c := &Collector{}
	c.g2 = newGeneration("G2", g2Threshold, nil)
	c.g1 = newGeneration("G1", g1Threshold, c.g2)
	c.g0 = newGeneration("G0", g0Threshold, c.g1)
	return c
}

// Allocate is the sole factory for Variables: every Variable the engine
// ever holds must come from here so it is tracked from birth.
func (c *Collector) Allocate(immutable bool) *variable.Variable {
	v := variable.New(immutable)
	c.track(c.g0, v)
	return v
}

func (c *Collector) track(g *generation, v *variable.Variable) {
	g.tracked[v] = struct{}{}
	g.counter++
	if g.threshold > 0 && g.counter > g.threshold {
		next := g
		for next != nil {
			next = c.collectOnce(next)
		}
	}
}

// CollectGeneration forces a collection of the named generation (0, 1, or
// 2), for use by tests and by a host-triggered "collect now" hook. It does
// not cascade into tied generations unless they too cross threshold.
func (c *Collector) CollectGeneration(n int) {
	var g *generation
	switch n {
	case 0:
		g = c.g0
	case 1:
		g = c.g1
	case 2:
		g = c.g2
	default:
		return
	}
	for g != nil {
		g = c.collectOnce(g)
	}
}

// collectOnce runs the four passes against a single generation and
// returns the tied generation if promotions pushed it over its own
// threshold, so the caller's loop (iterative, never recursive) can
// continue the chain.
func (c *Collector) collectOnce(g *generation) *generation {
	if g.collecting {
		return nil // reentrancy sentry
	}
	g.collecting = true
	defer func() { g.collecting = false }()

	///////////////////////////////////////////////////////////////////
	// Phase 1: seed the worklist with the external roots from the
	// engine's live state, stamping each with this pass's epoch.
	///////////////////////////////////////////////////////////////////
	c.epoch++
	var work []*variable.Variable
	if c.Roots != nil {
		for _, r := range c.Roots() {
			if r.GCRef() != c.epoch {
				r.SetGCRef(c.epoch)
				work = append(work, r)
			}
		}
	}

	///////////////////////////////////////////////////////////////////
	// Phase 2: transitively stamp everything reachable from an external
	// root, whether or not the root itself belongs to this generation
	// (a root may be an older-generation Variable whose value still
	// reaches into this one). The worklist keeps the walk iterative, so
	// an arbitrarily deep value graph costs bounded Go stack.
	///////////////////////////////////////////////////////////////////
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		variable.Enumerate(v.Value(), func(child *variable.Variable) bool {
			if child.GCRef() != c.epoch {
				child.SetGCRef(c.epoch)
				work = append(work, child)
			}
			return true
		})
	}

	///////////////////////////////////////////////////////////////////
	// Phase 3: anything tracked by this generation whose stamp is not
	// this pass's epoch is unreachable. Overwrite it with a scalar
	// sentinel to sever any cycle before dropping it.
	///////////////////////////////////////////////////////////////////
	collected := 0
	promoted := 0
	for v := range g.tracked {
		if v.GCRef() == c.epoch {
			continue
		}
		v.Reset(defunctValue, true)
		if g.output != nil {
			g.output.tracked[v] = struct{}{}
		}
		delete(g.tracked, v)
		collected++
	}

	///////////////////////////////////////////////////////////////////
	// Phase 4: promote survivors to the tied generation, if any.
	///////////////////////////////////////////////////////////////////
	var next *generation
	if g.tied != nil {
		for v := range g.tracked {
			delete(g.tracked, v)
			g.tied.tracked[v] = struct{}{}
			g.tied.counter++
			promoted++
		}
		if g.tied.threshold > 0 && g.tied.counter > g.tied.threshold {
			next = g.tied
		}
	}
	g.counter = 0

	if c.OnCollect != nil {
		c.OnCollect(Stats{Generation: g.name, Tracked: len(g.tracked), Collected: collected, Promoted: promoted})
	}
	return next
}

// TrackedCount reports how many variables each generation currently holds
// (test/diagnostic helper).
func (c *Collector) TrackedCount() (g0, g1, g2 int) {
	return len(c.g0.tracked), len(c.g1.tracked), len(c.g2.tracked)
}
