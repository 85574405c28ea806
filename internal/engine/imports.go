package engine

import (
	"fmt"

	"github.com/asteria-lang/asteria/internal/air"
	"github.com/asteria-lang/asteria/internal/avmc"
	"github.com/asteria-lang/asteria/internal/ref"
)

// Import resolves path against the importing file's location and runs
// the pre-solidified module body registered under that canonical path.
// Parsing source text into AIR is outside the core's scope: an
// unregistered path is an error even if the loader can read its bytes,
// since nothing in this package can turn those bytes into AIR.
func (d *Driver) Import(path string, sloc air.SourceLoc) (avmc.Ref, error) {
	canon, err := d.loader.Canonicalize(sloc.File, path)
	if err != nil {
		return ref.Reference{}, err
	}
	q, ok := d.modules[canon]
	if !ok {
		if _, err := d.loader.Load(canon); err != nil {
			return ref.Reference{}, err
		}
		return ref.Reference{}, fmt.Errorf("engine: module %q was loaded but never solidified to AIR (parsing is outside the core's scope)", canon)
	}
	if d.loadingModules[canon] {
		return ref.Reference{}, fmt.Errorf("engine: recursive import of %q", canon)
	}
	d.loadingModules[canon] = true
	defer delete(d.loadingModules, canon)

	v, err := d.RunModule(q)
	if err != nil {
		return ref.Reference{}, err
	}
	return ref.Temporary(v), nil
}
