package tool

import (
	"errors"
	"fmt"
)

// ExitCode is the closed set of process exit codes a tool may return.
type ExitCode int

const (
	ExitSuccess                ExitCode = 0x00
	ExitWarnings               ExitCode = 0x33
	ExitPlatformNotImplemented ExitCode = 0x91
	ExitCommandNotImplemented  ExitCode = 0xC1
	ExitErrors                 ExitCode = 0xEE
)

var (
	// ErrToolErrors is returned when a tool reports ExitErrors.
	ErrToolErrors = errors.New("tool reported errors")
)

// UnrecognizedExitCodeError is returned for any code outside the ExitCode set.
type UnrecognizedExitCodeError struct {
	Tool string
	Code int
}

func (e *UnrecognizedExitCodeError) Error() string {
	if e.Code >= 0x80 {
		return fmt.Sprintf("`%s` returned unrecognized exit code 0x%02X - is your tool up to date?", e.Tool, e.Code)
	}
	return fmt.Sprintf("`%s` build failed (exit code %d)", e.Tool, e.Code)
}

// ParseExitCode maps a raw process exit status onto the ExitCode set.
func ParseExitCode(code int) (ExitCode, bool) {
	switch c := ExitCode(code); c {
	case ExitSuccess, ExitWarnings, ExitPlatformNotImplemented, ExitCommandNotImplemented, ExitErrors:
		return c, true
	}
	return 0, false
}

func (c ExitCode) String() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitWarnings:
		return "warnings"
	case ExitPlatformNotImplemented:
		return "platform-not-implemented"
	case ExitCommandNotImplemented:
		return "command-not-implemented"
	case ExitErrors:
		return "errors"
	}
	return fmt.Sprintf("unknown(0x%02X)", int(c))
}

// Int returns the numeric wire value.
func (c ExitCode) Int() int { return int(c) }

// Built reports whether the code counts toward "something was built".
func (c ExitCode) Built() bool {
	return c == ExitSuccess || c == ExitWarnings
}

// Skipped reports whether the (tool, command) combination is silently skipped.
func (c ExitCode) Skipped() bool {
	return c == ExitCommandNotImplemented || c == ExitPlatformNotImplemented
}

// Outcome is what the orchestrator does with a finished invocation.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeAbort    Outcome = "abort"
)

// Classify decides the outcome of a tool that exited with code. The error
// is non-nil exactly when the outcome is OutcomeAbort.
func Classify(tool string, code int) (Outcome, error) {
	c, ok := ParseExitCode(code)
	if !ok {
		return OutcomeAbort, &UnrecognizedExitCodeError{Tool: tool, Code: code}
	}
	switch c {
	case ExitSuccess:
		return OutcomeSuccess, nil
	case ExitWarnings:
		return OutcomeDegraded, nil
	case ExitCommandNotImplemented, ExitPlatformNotImplemented:
		return OutcomeSkipped, nil
	default:
		return OutcomeAbort, fmt.Errorf("`%s`: %w", tool, ErrToolErrors)
	}
}
