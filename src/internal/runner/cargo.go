package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/gh-nvat/cargo-container/src/pkg/trace"
)

// CargoExitError carries the exit code of a failed cargo process so it can
// become the exit code of cargo-container itself.
type CargoExitError struct {
	Args []string
	Code int
}

func (e *CargoExitError) Error() string {
	return fmt.Sprintf("`cargo %s` failed (exit code %d)", strings.Join(e.Args, " "), e.Code)
}

// Cargo runs cargo subcommands from the project root.
type Cargo interface {
	Run(ctx context.Context, root string, args ...string) error
}

type execCargo struct {
	bin    string
	stdout io.Writer
	stderr io.Writer
}

// NewCargo returns a Cargo that spawns `cargo` found on PATH, or $CARGO when set.
func NewCargo(stdout, stderr io.Writer) Cargo {
	bin := os.Getenv("CARGO")
	if bin == "" {
		bin = "cargo"
	}
	return &execCargo{bin: bin, stdout: stdout, stderr: stderr}
}

func (c *execCargo) Run(ctx context.Context, root string, args ...string) error {
	ctx, span := trace.StartSpan(ctx, "Cargo."+strings.Join(args, "."))
	defer span.End()

	logger.WithField("args", args).Debug("Running cargo")
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = root
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			return &CargoExitError{Args: args, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run `cargo %s`: %w", strings.Join(args, " "), err)
	}
	return nil
}
