package gc

import "github.com/asteria-lang/asteria/internal/variable"

// generation is one of G0 (nursery), G1 (young), or G2 (old). Each owns
// the full set of Variables currently allocated at that tier — not merely
// "roots".
type generation struct {
	name      string
	tracked   map[*variable.Variable]struct{}
	counter   int
	threshold int

	tied   *generation // next generation surviving variables promote into
	output *generation // optional sink for collected (not promoted) variables

	collecting bool
}

func newGeneration(name string, threshold int, tied *generation) *generation {
	return &generation{
		name:      name,
		tracked:   make(map[*variable.Variable]struct{}),
		threshold: threshold,
		tied:      tied,
	}
}
