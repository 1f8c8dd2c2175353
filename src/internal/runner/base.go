package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gh-nvat/cargo-container/src/pkg/manifest"
	"github.com/gh-nvat/cargo-container/src/pkg/metadata"
	"github.com/gh-nvat/cargo-container/src/pkg/models"
	"github.com/gh-nvat/cargo-container/src/pkg/policy"
	"github.com/gh-nvat/cargo-container/src/pkg/privilege"
	"github.com/gh-nvat/cargo-container/src/pkg/status"
	"github.com/gh-nvat/cargo-container/src/pkg/tool"
	"github.com/gh-nvat/cargo-container/src/pkg/trace"
	"github.com/gh-nvat/cargo-container/src/pkg/workspace"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "runner")

// ErrNoCombinations is returned when a command that must build something
// matched nothing.
var ErrNoCombinations = errors.New("matched no crate x tool combinations")

// ReportFile is written to the output directory when report export is enabled.
const ReportFile = "report.json"

type RunnerBase struct {
	Context context.Context
	Options *Options
	Command Command

	Manifest    *manifest.Manifest
	Synthesizer *workspace.Synthesizer
	Resolver    metadata.Resolver
	Invoker     *tool.Invoker
	Generator   *tool.Generator
	Batcher     *privilege.Batcher
	Evaluator   *policy.Evaluator
	Cargo       Cargo

	// Request accumulates privileged work from every tool spawned by this run.
	Request  *privilege.Request
	Packages metadata.Packages

	Instance RunnerInterface
}

// make RunnerBase implement RunnerInterface
var _ RunnerInterface = (*RunnerBase)(nil)

func NewRunnerBase(
	ctx context.Context,
	options *Options,
	command Command,
	m *manifest.Manifest,
	synthesizer *workspace.Synthesizer,
	resolver metadata.Resolver,
	invoker *tool.Invoker,
	generator *tool.Generator,
	batcher *privilege.Batcher,
	evaluator *policy.Evaluator,
	cargo Cargo,
) (*RunnerBase, error) {
	runner := &RunnerBase{
		Context:     ctx,
		Options:     options,
		Command:     command,
		Manifest:    m,
		Synthesizer: synthesizer,
		Resolver:    resolver,
		Invoker:     invoker,
		Generator:   generator,
		Batcher:     batcher,
		Evaluator:   evaluator,
		Cargo:       cargo,
		Request:     privilege.NewRequest(),
	}
	runner.Instance = runner
	return runner, nil
}

func (r *RunnerBase) Initialize() error {
	logger.Debug("Initializing runner: starting...")

	// if any is nil, return error
	if r.Manifest == nil || r.Synthesizer == nil || r.Resolver == nil || r.Invoker == nil ||
		r.Generator == nil || r.Batcher == nil || r.Evaluator == nil || r.Cargo == nil {
		return fmt.Errorf("manifest, synthesizer, resolver, invoker, generator, batcher, evaluator and cargo are required")
	}

	logger.Debug("Initialize runner: Evaluator: Loading and validating sudo policy")
	if err := r.Evaluator.LoadAndValidate(r.Context); err != nil {
		return fmt.Errorf("failed to load sudo policy: %w", err)
	}

	logger.Debug("Initialize runner: done.")
	return nil
}

func (r *RunnerBase) root() string {
	return r.Manifest.RootDirectory()
}

// PrepareWorkspace creates .container, regenerates the workspace Cargo.toml
// and installs the [local-install] tools.
func (r *RunnerBase) PrepareWorkspace(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "PrepareWorkspace")
	defer span.End()

	if _, err := r.Synthesizer.EnsureDotContainer(r.root()); err != nil {
		return err
	}
	if err := r.Synthesizer.Write(r.Manifest); err != nil {
		return err
	}
	if len(r.Manifest.LocalInstall) > 0 {
		if err := r.Cargo.Run(ctx, r.root(), "local-install", "--no-path-warning"); err != nil {
			return fmt.Errorf("failed to install local tools: %w", err)
		}
	}
	return nil
}

// ResolvePackages loads the workspace package metadata.
func (r *RunnerBase) ResolvePackages(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "ResolvePackages")
	defer span.End()

	pkgs, err := r.Resolver.Resolve(ctx, r.root())
	if err != nil {
		return err
	}
	r.Packages = pkgs
	return nil
}

// selected reports whether the (tool, crate) pair passes the filters.
func (r *RunnerBase) selected(tool, crate string) bool {
	return r.Options.ToolSelected(tool) && r.Options.CrateSelected(crate)
}

// GenerateCrates runs the generate step of every tool in the manifest.
func (r *RunnerBase) GenerateCrates(ctx context.Context) ([]models.InvocationReport, error) {
	ctx, span := trace.StartSpan(ctx, "GenerateCrates")
	defer span.End()

	results, err := r.Generator.Generate(ctx, r.Manifest, r.Packages, r.selected, r.Request)
	byTool := r.Manifest.CratesByTool()
	reports := make([]models.InvocationReport, 0, len(results))
	for _, res := range results {
		reports = append(reports, newInvocationReport(res, "", nil, byTool[res.Tool]))
	}
	return reports, err
}

// warnUnmatchedFilters flags --crate and --tool values that no [[build]] mentions.
func (r *RunnerBase) warnUnmatchedFilters() {
	for _, c := range r.Options.Crates {
		if !r.Manifest.HasCrate(c) {
			status.Warn("warning", "`--crate %s` is not part of any `[[build]]`'s crates", c)
		}
	}
	for _, t := range r.Options.Tools {
		if !r.Manifest.HasTool(t) {
			status.Warn("warning", "`--tool %s` is not part of any `[[build]]`'s tools", t)
		}
	}
}

// RunAll invokes every selected tool for every selected config, one build
// group at a time. built is true when any invocation succeeded or finished
// with warnings.
func (r *RunnerBase) RunAll(ctx context.Context) (reports []models.InvocationReport, built bool, err error) {
	ctx, span := trace.StartSpan(ctx, "RunAll")
	defer span.End()

	for _, group := range r.Manifest.Builds {
		var crates []string
		for _, c := range group.Crates {
			if r.Options.CrateSelected(c) {
				crates = append(crates, c)
			}
		}
		var tools []string
		for _, t := range group.Tools {
			if r.Options.ToolSelected(t) {
				tools = append(tools, t)
			}
		}
		if len(crates) == 0 || len(tools) == 0 {
			continue
		}
		for _, c := range crates {
			if _, err := r.Packages.Lookup(c); err != nil {
				return reports, built, err
			}
		}

		for _, t := range tools {
			for _, config := range r.Options.Configs {
				report, ok, err := r.invoke(ctx, t, config, crates)
				reports = append(reports, report)
				if err != nil {
					return reports, built, err
				}
				built = built || ok
			}
		}
	}
	return reports, built, nil
}

func (r *RunnerBase) invoke(ctx context.Context, t, config string, crates []string) (models.InvocationReport, bool, error) {
	what := fmt.Sprintf("%s | %s | %d crates", t, config, len(crates))
	fmt.Fprintln(status.Output)
	status.Print(r.Command.Verbing, "%s", what)
	start := time.Now()

	inv := tool.Invocation{
		Tool:      t,
		Command:   r.Command.Name,
		CratesDir: workspace.CratesDir(t),
		Arches:    r.Options.Arches,
		Configs:   []string{config},
		Packages:  crates,
	}
	res, err := r.Invoker.Run(ctx, inv, r.Request)
	if res == nil {
		res = &tool.Result{Tool: t, Command: r.Command.Name, Outcome: tool.OutcomeAbort}
	}
	report := newInvocationReport(res, config, r.Options.Arches, crates)
	if err != nil {
		return report, false, err
	}

	switch res.Outcome {
	case tool.OutcomeSuccess:
		status.Finished(what, start)
		return report, true, nil
	case tool.OutcomeDegraded:
		status.Warn("Finished", "%s with warnings in %.2fs", what, time.Since(start).Seconds())
		return report, true, nil
	default:
		logger.WithField("tool", t).WithField("config", config).Debug("Tool does not implement this command or platform")
		return report, false, nil
	}
}

func newInvocationReport(res *tool.Result, config string, arches, crates []string) models.InvocationReport {
	return models.InvocationReport{
		Tool:       res.Tool,
		Command:    res.Command,
		Config:     config,
		Arches:     arches,
		Crates:     crates,
		Outcome:    string(res.Outcome),
		ExitCode:   res.Code,
		DurationMs: res.Duration.Milliseconds(),
	}
}

// FlushPrivileged runs the admin tasks accumulated during the run.
func (r *RunnerBase) FlushPrivileged(ctx context.Context) (*models.PrivilegedSummary, error) {
	ctx, span := trace.StartSpan(ctx, "FlushPrivileged")
	defer span.End()

	res, err := r.Batcher.Flush(ctx, r.Request)
	if res == nil {
		return nil, err
	}
	return &models.PrivilegedSummary{
		Decision: string(res.Decision),
		Commands: res.Commands,
		Packages: res.Packages,
	}, err
}

func (r *RunnerBase) newReport() *models.ReportData {
	return &models.ReportData{
		Command:   r.Command.Name,
		Timestamp: time.Now(),
		Root:      r.root(),
		Arches:    r.Options.Arches,
		Configs:   r.Options.Configs,
		Crates:    r.Options.Crates,
		Tools:     r.Options.Tools,
	}
}

func (r *RunnerBase) Process() error {
	ctx, span := trace.StartSpan(r.Context, "Process")
	defer span.End()
	logger.WithField("command", r.Command.Name).Debug("Process: starting...")

	report := r.newReport()
	if err := r.PrepareWorkspace(ctx); err != nil {
		return err
	}
	if err := r.ResolvePackages(ctx); err != nil {
		return err
	}

	generated, err := r.GenerateCrates(ctx)
	report.Generate = generated
	if err != nil {
		return err
	}

	r.warnUnmatchedFilters()
	invocations, built, err := r.RunAll(ctx)
	report.Invocations = invocations
	report.Built = built
	if err != nil {
		return err
	}
	if !built && !r.Command.OkNone {
		return fmt.Errorf("`%s`: %w", r.Command.Name, ErrNoCombinations)
	}

	privileged, err := r.FlushPrivileged(ctx)
	report.Privileged = privileged
	if err != nil {
		return err
	}

	if r.Command.Cargo != "" {
		if err := r.Cargo.Run(ctx, r.root(), r.Command.Cargo); err != nil {
			return err
		}
	}

	logger.Debug("Process: done.")
	return r.Instance.Output(report)
}

func (r *RunnerBase) Output(data *models.ReportData) error {
	_, span := trace.StartSpan(r.Context, "Output")
	defer span.End()

	return r.outputReportJson(data)
}

// Exporting report json file to output directory if enabled
func (r *RunnerBase) outputReportJson(data *models.ReportData) error {
	if !r.Options.EnableExportReport {
		logger.Debug("OutputJson: option was disabled")
		return nil
	}

	if err := os.MkdirAll(r.Options.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	resultsJson, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	filePath := filepath.Join(r.Options.OutputDir, ReportFile)
	if err := os.WriteFile(filePath, resultsJson, 0644); err != nil {
		logger.WithField("filePath", filePath).WithField("error", err).Error("Failed to write report data to file")
		return err
	}
	logger.WithField("filePath", filePath).Info("Written report data to file")
	return nil
}
