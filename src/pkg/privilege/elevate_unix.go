//go:build !windows

package privilege

import (
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/gh-nvat/cargo-container/src/pkg/template"
)

const (
	scriptExt      = ".sh"
	scriptTemplate = template.FileNameSudoScriptUnix
)

type sudoElevator struct {
	stdout, stderr io.Writer
}

// NewElevator runs scripts through sudo, or directly when already root.
func NewElevator(stdout, stderr io.Writer) Elevator {
	return &sudoElevator{stdout: stdout, stderr: stderr}
}

func (e *sudoElevator) Run(ctx context.Context, scriptPath string) error {
	var cmd *exec.Cmd
	if os.Geteuid() == 0 {
		cmd = exec.CommandContext(ctx, "sh", scriptPath)
	} else {
		cmd = exec.CommandContext(ctx, "sudo", "sh", scriptPath)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	return cmd.Run()
}
