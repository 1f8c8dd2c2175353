//go:build windows

package privilege

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/gh-nvat/cargo-container/src/pkg/template"
	"golang.org/x/sys/windows"
)

const (
	scriptExt      = ".cmd"
	scriptTemplate = template.FileNameSudoScriptWin
)

type runAsElevator struct {
	stdout, stderr io.Writer
}

// NewElevator runs scripts through a UAC prompt, or directly when the
// process token is already elevated.
func NewElevator(stdout, stderr io.Writer) Elevator {
	return &runAsElevator{stdout: stdout, stderr: stderr}
}

func (e *runAsElevator) Run(ctx context.Context, scriptPath string) error {
	var cmd *exec.Cmd
	if windows.GetCurrentProcessToken().IsElevated() {
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", scriptPath)
	} else {
		quoted := `'"` + strings.ReplaceAll(scriptPath, "'", "''") + `"'`
		ps := fmt.Sprintf(
			"$p = Start-Process -FilePath cmd.exe -ArgumentList '/C',%s -Verb RunAs -Wait -PassThru; exit $p.ExitCode",
			quoted,
		)
		cmd = exec.CommandContext(ctx, "powershell.exe", "-NoProfile", "-NonInteractive", "-Command", ps)
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	return cmd.Run()
}
