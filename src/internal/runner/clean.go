package runner

import (
	"context"
	"fmt"

	"github.com/gh-nvat/cargo-container/src/pkg/manifest"
	"github.com/gh-nvat/cargo-container/src/pkg/status"
	"github.com/gh-nvat/cargo-container/src/pkg/trace"
	"github.com/gh-nvat/cargo-container/src/pkg/workspace"
)

// RunnerClean removes build artifacts and the generated .container directory.
// Tools are not consulted.
type RunnerClean struct {
	RunnerBase
}

// make RunnerClean implement RunnerInterface
var _ RunnerInterface = (*RunnerClean)(nil)

func NewRunnerClean(ctx context.Context, options *Options, m *manifest.Manifest, cargo Cargo) (*RunnerClean, error) {
	runner := &RunnerClean{
		RunnerBase: RunnerBase{
			Context:  ctx,
			Options:  options,
			Command:  Command{Name: "clean", Verbing: "Cleaning", OkNone: true},
			Manifest: m,
			Cargo:    cargo,
		},
	}
	runner.Instance = runner
	return runner, nil
}

func (r *RunnerClean) Initialize() error {
	if r.Manifest == nil || r.Cargo == nil {
		return fmt.Errorf("manifest and cargo are required")
	}
	return nil
}

func (r *RunnerClean) Process() error {
	ctx, span := trace.StartSpan(r.Context, "Process")
	defer span.End()

	args := append([]string{"clean"}, r.Options.Args...)
	if err := r.Cargo.Run(ctx, r.root(), args...); err != nil {
		return err
	}

	status.Print("Removing", "%s", workspace.DotContainer)
	if err := workspace.Clean(r.root()); err != nil {
		return err
	}
	return r.Output(r.newReport())
}
