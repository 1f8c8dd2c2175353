package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gh-nvat/cargo-container/src/internal/runner"
	"github.com/gh-nvat/cargo-container/src/pkg/manifest"
	"github.com/gh-nvat/cargo-container/src/pkg/metadata"
	"github.com/gh-nvat/cargo-container/src/pkg/policy"
	"github.com/gh-nvat/cargo-container/src/pkg/privilege"
	"github.com/gh-nvat/cargo-container/src/pkg/settings"
	"github.com/gh-nvat/cargo-container/src/pkg/status"
	"github.com/gh-nvat/cargo-container/src/pkg/template"
	"github.com/gh-nvat/cargo-container/src/pkg/tool"
	"github.com/gh-nvat/cargo-container/src/pkg/trace"
	"github.com/gh-nvat/cargo-container/src/pkg/workspace"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "run")

const commandClean = "clean"

// createRunner creates the runner matching command
func createRunner(ctx context.Context, opts *runner.Options, command runner.Command) (runner.RunnerInterface, error) {
	logger.WithField("opts", opts).Debug("Creating runner..")

	m, err := manifest.Load(opts.WorkDir)
	if err != nil {
		return nil, err
	}
	cargo := runner.NewCargo(os.Stdout, os.Stderr)

	if command.Name == commandClean {
		r, err := runner.NewRunnerClean(ctx, opts, m, cargo)
		if err != nil {
			return nil, fmt.Errorf("failed to create clean runner: %w", err)
		}
		return r, nil
	}

	pm, err := privilege.LookupPackageManager(opts.PackageManager)
	if err != nil {
		return nil, err
	}
	root := m.RootDirectory()
	renderer := template.NewRenderer()
	evaluator := policy.NewEvaluator(opts.SudoPolicy)
	invoker := tool.NewInvoker(root, os.Stdout, os.Stderr)

	r, err := runner.NewRunnerBase(
		ctx, opts, command, m,
		workspace.NewSynthesizer(renderer),
		metadata.NewCargoResolver(),
		invoker,
		tool.NewGenerator(invoker),
		privilege.NewBatcher(root, pm, opts.AllowSudo, evaluator, renderer, os.Stdout, os.Stderr),
		evaluator,
		cargo,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	return r, nil
}

func initialize(ctx context.Context, opts *runner.Options, command runner.Command) (runner.RunnerInterface, error) {
	r, err := createRunner(ctx, opts, command)
	if err != nil {
		return nil, err
	}
	if err := r.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize runner: %w", err)
	}
	return r, nil
}

func run(ctx context.Context, opts *runner.Options, command runner.Command) error {
	s, err := settings.LoadDefault()
	if err != nil {
		return err
	}
	if err := applySettings(opts, s); err != nil {
		return err
	}
	logger.WithField("opts", opts).Debug("Running..")

	if err := validateOptions(opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	opts.Normalize()

	// Initialize tracer
	shutdown, err := trace.InitTracer("cargo-container", opts.EnableExportPerformanceReport, opts.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdown()

	appRunner, err := initialize(ctx, opts, command)
	if err != nil {
		return err
	}
	return appRunner.Process()
}

// applySettings fills options left unset on the command line from the user
// settings file, then configures logging and colors.
func applySettings(opts *runner.Options, s *settings.Settings) error {
	if opts.Color == "" {
		opts.Color = s.Color
	}
	if opts.PackageManager == "" {
		opts.PackageManager = s.PackageManager
	}
	if opts.SudoPolicy == "" {
		opts.SudoPolicy = s.SudoPolicy
	}
	if opts.AllowSudo == nil {
		opts.AllowSudo = s.AllowSudo
	}

	level := log.InfoLevel
	if s.LogLevel != "" {
		parsed, err := log.ParseLevel(s.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	if opts.Debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	status.Configure(opts.Color)
	return nil
}

func validateOptions(opts *runner.Options) error {
	switch opts.Color {
	case "", status.ColorAuto, status.ColorAlways, status.ColorNever:
	default:
		return fmt.Errorf("color must be 'auto', 'always' or 'never', got: %s", opts.Color)
	}
	if opts.EnableExportReport || opts.EnableExportPerformanceReport {
		if opts.OutputDir == "" {
			return fmt.Errorf("--output-dir is required when exporting reports")
		}
	}
	return opts.Validate()
}
