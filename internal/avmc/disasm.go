package avmc

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of q in a `== name ==` /
// per-offset layout, useful for engine tests and a debug-dump hook.
func Disassemble(q *Queue, name string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== %s ==\n", name)
	for i := range q.records {
		rec := &q.records[i]
		line := 0
		recName := "?"
		if rec.Meta != nil {
			line = rec.Meta.Sloc.Line
			recName = rec.Meta.Name
		}
		fmt.Fprintf(&sb, "%04d %4d %-24s uparam=%d\n", i, line, recName, rec.UParam)
	}
	return sb.String()
}
