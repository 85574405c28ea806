package asteria

import (
	"fmt"
	"io"
	"os"

	"github.com/asteria-lang/asteria/internal/engine"

	"github.com/mattn/go-isatty"
)

// FormatBacktrace renders err (normally whatever Run returned) as a
// human-readable backtrace: one line per frame, most recent first,
// matching the script-visible "__backtrace" frame shape
// (kind/file/line/column/value).
// A non-*engine.Exception error (one that never passed through the
// engine's exception pipeline) is rendered as a single bare line.
//
// Colors are enabled only when w is a terminal, detected with
// github.com/mattn/go-isatty against the output file descriptor.
func FormatBacktrace(w io.Writer, err error) {
	if err == nil {
		return
	}
	colored := isTerminal(w)
	exc, ok := err.(*engine.Exception)
	if !ok {
		fmt.Fprintln(w, colorize(colored, 31, err.Error()))
		return
	}
	fmt.Fprintln(w, colorize(colored, 31, fmt.Sprintf("uncaught exception: %s", exc.Payload.Inspect())))
	for i := 0; i < len(exc.Frames); i++ {
		f := exc.Frames[i]
		loc := fmt.Sprintf("%s:%d:%d", f.File, f.Line, f.Column)
		line := fmt.Sprintf("  at %s (%s) %s", colorize(colored, 36, f.Kind), loc, f.Value.Inspect())
		fmt.Fprintln(w, line)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colorize(enabled bool, code int, s string) string {
	if !enabled {
		return s
	}
	return fmt.Sprintf("\033[%dm%s\033[0m", code, s)
}
