package privilege

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gh-nvat/cargo-container/src/pkg/policy"
	"github.com/gh-nvat/cargo-container/src/pkg/status"
	"github.com/gh-nvat/cargo-container/src/pkg/template"
	"github.com/gh-nvat/cargo-container/src/pkg/workspace"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "privilege")

var (
	// ErrElevationFailed indicates the elevated script could not run or exited non-zero.
	ErrElevationFailed = errors.New("elevated script failed")
)

// Decision is the result of a Flush.
type Decision string

const (
	DecisionNone    Decision = "none"
	DecisionAllowed Decision = "allowed"
	DecisionDenied  Decision = "denied"
)

// Result summarizes what a Flush did.
type Result struct {
	Decision Decision `json:"decision"`
	Commands []string `json:"commands,omitempty"`
	Packages []string `json:"packages,omitempty"`
}

// Checker vets a script before it is offered for elevation.
type Checker interface {
	Check(ctx context.Context, input policy.Input) error
}

// Prompter asks the user whether to run the script.
type Prompter interface {
	Confirm(script string) (bool, error)
}

// Elevator runs a script file with administrator rights and waits for it.
type Elevator interface {
	Run(ctx context.Context, scriptPath string) error
}

// Batcher executes the accumulated privileged work of one top-level command.
type Batcher struct {
	Root           string
	PackageManager PackageManager
	// AllowSudo is the explicit --allow-sudo / --deny-sudo choice, nil when absent.
	AllowSudo *bool

	Policy   Checker
	Prompter Prompter
	Elevator Elevator
	Renderer *template.Renderer
	Getenv   func(string) string
}

func NewBatcher(root string, pm PackageManager, allowSudo *bool, checker Checker, renderer *template.Renderer, stdout, stderr io.Writer) *Batcher {
	return &Batcher{
		Root:           root,
		PackageManager: pm,
		AllowSudo:      allowSudo,
		Policy:         checker,
		Prompter:       NewTerminalPrompter(os.Stdin, stderr),
		Elevator:       NewElevator(stdout, stderr),
		Renderer:       renderer,
		Getenv:         os.Getenv,
	}
}

// Flush finalizes r, asks for authorization and runs it elevated. Declining
// is not an error. Flush is meant to be called once per request.
func (b *Batcher) Flush(ctx context.Context, r *Request) (*Result, error) {
	if pkgs := r.Packages(); len(pkgs) > 0 {
		r.AddComment("packages requested by tools")
		r.AddCommand(b.PackageManager.InstallLine(pkgs))
	}

	result := &Result{Decision: DecisionNone, Packages: r.Packages()}
	if r.Empty() {
		return result, nil
	}

	if b.needsRefresh(r) {
		r.prepend(
			Line{Comment: true, Text: "refresh the package index before installing"},
			Line{Text: b.PackageManager.Refresh},
		)
	}
	result.Commands = r.Commands()

	// An explicit deny never elevates, so the policy has nothing to gate.
	if b.AllowSudo != nil && !*b.AllowSudo {
		logger.Debug("Sudo denied by flag")
		return b.skip(result), nil
	}

	if b.Policy != nil {
		input := policy.Input{Commands: result.Commands, Packages: result.Packages, OS: runtime.GOOS}
		if err := b.Policy.Check(ctx, input); err != nil {
			return result, err
		}
	}

	if !b.authorize(r) {
		return b.skip(result), nil
	}
	result.Decision = DecisionAllowed

	path, err := b.writeScript(r)
	if err != nil {
		return result, err
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WithField("path", path).WithField("error", err).Warn("Failed to remove privileged script")
		}
	}()

	status.Print("Elevating", "%d commands", len(result.Commands))
	logger.WithField("path", path).Debug("Running privileged script")
	if err := b.Elevator.Run(ctx, path); err != nil {
		return result, fmt.Errorf("%w: %v", ErrElevationFailed, err)
	}
	return result, nil
}

func (b *Batcher) skip(result *Result) *Result {
	result.Decision = DecisionDenied
	status.Skip("Skipping", "admin tasks")
	return result
}

func (b *Batcher) needsRefresh(r *Request) bool {
	found := false
	for _, cmd := range r.Commands() {
		if strings.TrimSpace(cmd) == b.PackageManager.Refresh {
			return false
		}
		if LooksLikePackageManager(cmd) {
			found = true
		}
	}
	return found
}

func (b *Batcher) authorize(r *Request) bool {
	if b.AllowSudo != nil {
		logger.WithField("allow", *b.AllowSudo).Debug("Sudo decided by flag")
		return *b.AllowSudo
	}

	getenv := b.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if IsCI(getenv) {
		logger.Info("CI environment detected, running admin tasks without prompting")
		return true
	}

	ok, err := b.Prompter.Confirm(r.String())
	if err != nil {
		logger.WithField("error", err).Warn("Unable to read confirmation, skipping admin tasks (pass --allow-sudo or --deny-sudo to skip this prompt)")
		return false
	}
	if !ok {
		logger.Warn("Admin tasks declined, the build may fail without them (pass --allow-sudo or --deny-sudo to skip this prompt)")
	}
	return ok
}

func (b *Batcher) writeScript(r *Request) (string, error) {
	dir := workspace.ScriptsDir(b.Root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create `%s`: %w", dir, err)
	}

	data := struct {
		PID   int
		Lines []Line
	}{os.Getpid(), r.Lines}

	content, err := b.Renderer.Render(scriptTemplate, data)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("sudo-%d%s", os.Getpid(), scriptExt))
	if err := os.WriteFile(path, content, 0755); err != nil {
		return "", fmt.Errorf("failed to write `%s`: %w", path, err)
	}
	return path, nil
}

// IsCI reports whether CI holds a truthy value.
func IsCI(getenv func(string) string) bool {
	switch strings.ToLower(strings.TrimSpace(getenv("CI"))) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}
