// Package status prints cargo-style progress banners to stderr.
package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

var (
	Output io.Writer = os.Stderr

	colVerb    = color.New(color.FgGreen, color.OpBold)
	colWarn    = color.New(color.FgYellow, color.OpBold)
	colSkip    = color.New(color.FgCyan, color.OpBold)
	colComment = color.New(color.FgGray)
)

// Configure selects the color mode. Unknown modes behave like auto.
func Configure(mode string) {
	switch strings.ToLower(mode) {
	case ColorAlways:
		color.Enable = true
		color.ForceColor()
	case ColorNever:
		color.Disable()
	default:
		color.Enable = term.IsTerminal(int(os.Stderr.Fd()))
	}
}

func banner(style color.Style, verb, format string, args ...interface{}) {
	fmt.Fprintf(Output, "%s %s\n", style.Sprintf("%12s", verb), fmt.Sprintf(format, args...))
}

// Print shows a progress line such as `    Building platform-console | debug | 2 crates`.
func Print(verb, format string, args ...interface{}) {
	banner(colVerb, verb, format, args...)
}

// Warn shows a degraded-outcome line.
func Warn(verb, format string, args ...interface{}) {
	banner(colWarn, verb, format, args...)
}

// Skip shows a line for work that was intentionally not done.
func Skip(verb, format string, args ...interface{}) {
	banner(colSkip, verb, format, args...)
}

// Finished prints the closing banner for an operation that started at start.
func Finished(what string, start time.Time) {
	Print("Finished", "%s in %.2fs", what, time.Since(start).Seconds())
}

// Comment de-emphasizes s.
func Comment(s string) string {
	return colComment.Sprint(s)
}
