package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gh-nvat/cargo-container/src/pkg/directive"
	"github.com/gh-nvat/cargo-container/src/pkg/privilege"
	"github.com/gh-nvat/cargo-container/src/pkg/trace"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "tool")

// Environment variables of the tool process protocol.
const (
	EnvCommand   = "CARGO_CONTAINER_COMMAND"
	EnvCratesDir = "CARGO_CONTAINER_CRATES_DIR"
	EnvArches    = "CARGO_CONTAINER_ARCHES"
	EnvConfigs   = "CARGO_CONTAINER_CONFIGS"
	EnvPackages  = "CARGO_CONTAINER_PACKAGES"
	envPrefix    = "CARGO_CONTAINER_"
)

// BinDir is the project-local directory searched before PATH.
const BinDir = "bin"

// Invocation describes one spawn of a tool.
type Invocation struct {
	Tool      string
	Command   string
	CratesDir string
	Arches    []string
	Configs   []string
	Packages  []string
	// ExtraEnv holds additional KEY=VALUE pairs.
	ExtraEnv []string
}

// Result is the classified outcome of an Invocation.
type Result struct {
	Tool     string
	Command  string
	Code     int
	Outcome  Outcome
	Duration time.Duration
}

// Invoker spawns tools from the project root and interprets their stdout.
type Invoker struct {
	RootDir string
	Stdout  io.Writer
	Stderr  io.Writer
	Environ func() []string
}

func NewInvoker(root string, stdout, stderr io.Writer) *Invoker {
	return &Invoker{
		RootDir: root,
		Stdout:  stdout,
		Stderr:  stderr,
		Environ: os.Environ,
	}
}

// Resolve finds the tool executable, preferring <root>/bin.
func (iv *Invoker) Resolve(name string) (string, error) {
	local := filepath.Join(iv.RootDir, BinDir, name)
	candidates := []string{local}
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		candidates = []string{local + ".exe", local + ".cmd", local + ".bat"}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("unable to find `%s`: %w", name, err)
	}
	return path, nil
}

// Env returns the complete environment for inv.
func (iv *Invoker) Env(inv Invocation) []string {
	environ := iv.Environ
	if environ == nil {
		environ = os.Environ
	}

	var env []string
	path := ""
	for _, kv := range environ() {
		key, value, _ := strings.Cut(kv, "=")
		switch {
		case strings.EqualFold(key, "PATH"):
			path = value
		case strings.HasPrefix(key, envPrefix):
		default:
			env = append(env, kv)
		}
	}

	bin := filepath.Join(iv.RootDir, BinDir)
	if path != "" {
		bin += string(os.PathListSeparator) + path
	}

	env = append(env,
		"PATH="+bin,
		EnvCommand+"="+inv.Command,
		EnvCratesDir+"="+inv.CratesDir,
		EnvArches+"="+strings.Join(inv.Arches, ","),
		EnvConfigs+"="+strings.Join(inv.Configs, ","),
		EnvPackages+"="+strings.Join(inv.Packages, ","),
	)
	return append(env, inv.ExtraEnv...)
}

// Run spawns the tool, feeds its stdout to a directive interpreter bound to
// request and classifies the exit code. The returned Result is non-nil
// whenever the tool was started; err is non-nil when the orchestrator must
// abort.
func (iv *Invoker) Run(ctx context.Context, inv Invocation, request *privilege.Request) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, fmt.Sprintf("Invoke.%s.%s", inv.Tool, inv.Command))
	defer span.End()

	path, err := iv.Resolve(inv.Tool)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = iv.RootDir
	cmd.Env = iv.Env(inv)
	cmd.Stderr = iv.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("`%s` %s failed: %w", inv.Tool, inv.Command, err)
	}

	logger.WithField("tool", inv.Tool).WithField("path", path).WithField("command", inv.Command).Debug("Spawning tool")
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("`%s` %s failed: %w", inv.Tool, inv.Command, err)
	}

	interp := directive.NewInterpreter(inv.Tool, inv.Command, request, iv.Stdout)
	consumeErr := interp.Consume(stdout)
	if consumeErr != nil {
		// Drain so the tool never blocks writing to a full pipe before Wait.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	result := &Result{
		Tool:     inv.Tool,
		Command:  inv.Command,
		Duration: time.Since(start),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			result.Outcome = OutcomeAbort
			return result, fmt.Errorf("`%s` %s failed: %w", inv.Tool, inv.Command, waitErr)
		}
		result.Code = exitErr.ExitCode()
		if result.Code < 0 {
			result.Outcome = OutcomeAbort
			return result, fmt.Errorf("`%s` %s failed (%s)", inv.Tool, inv.Command, exitErr)
		}
	}
	if consumeErr != nil {
		result.Outcome = OutcomeAbort
		return result, consumeErr
	}

	result.Outcome, err = Classify(inv.Tool, result.Code)
	logger.WithField("tool", inv.Tool).
		WithField("code", result.Code).
		WithField("outcome", result.Outcome).
		Debug("Tool exited")
	return result, err
}
