package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gh-nvat/cargo-container/src/pkg/manifest"
	"github.com/gh-nvat/cargo-container/src/pkg/metadata"
	"github.com/gh-nvat/cargo-container/src/pkg/models"
	"github.com/gh-nvat/cargo-container/src/pkg/policy"
	"github.com/gh-nvat/cargo-container/src/pkg/privilege"
	"github.com/gh-nvat/cargo-container/src/pkg/status"
	"github.com/gh-nvat/cargo-container/src/pkg/template"
	"github.com/gh-nvat/cargo-container/src/pkg/tool"
	"github.com/gh-nvat/cargo-container/src/pkg/workspace"
)

type fakeResolver struct {
	pkgs metadata.Packages
}

func (f fakeResolver) Resolve(context.Context, string) (metadata.Packages, error) {
	return f.pkgs, nil
}

// fakeCargo records its calls and fails those whose subcommand is failOn.
type fakeCargo struct {
	calls  [][]string
	failOn string
	err    error
}

func (c *fakeCargo) Run(_ context.Context, _ string, args ...string) error {
	c.calls = append(c.calls, args)
	if len(args) > 0 && args[0] == c.failOn {
		return c.err
	}
	return nil
}

// echoTool succeeds for generate and prints what it was asked to build.
const echoTool = `if [ "$CARGO_CONTAINER_COMMAND" = generate ]; then exit 0; fi
echo "$CARGO_CONTAINER_COMMAND $CARGO_CONTAINER_PACKAGES $CARGO_CONTAINER_CONFIGS"`

type fixture struct {
	root   string
	stdout *bytes.Buffer
	status *bytes.Buffer
	cargo  *fakeCargo
	opts   *Options
}

func newFixture(t *testing.T, containerToml string, tools map[string]string) *fixture {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub tools are shell scripts")
	}
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, manifest.FileName), []byte(containerToml), 0644); err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(root, tool.BinDir)
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}
	for name, body := range tools {
		if err := os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}

	f := &fixture{
		root:   root,
		stdout: &bytes.Buffer{},
		status: &bytes.Buffer{},
		cargo:  &fakeCargo{},
		opts: &Options{
			OutputDir:          filepath.Join(root, "output"),
			EnableExportReport: true,
			AllowSudo:          new(bool),
		},
	}
	status.Configure(status.ColorNever)
	status.Output = f.status
	t.Cleanup(func() { status.Output = os.Stderr })
	return f
}

func (f *fixture) runner(t *testing.T, name string) *RunnerBase {
	t.Helper()
	command, err := LookupCommand(name)
	if err != nil {
		t.Fatal(err)
	}
	m, err := manifest.LoadFile(filepath.Join(f.root, manifest.FileName))
	if err != nil {
		t.Fatal(err)
	}
	f.opts.Normalize()

	renderer := template.NewRenderer()
	evaluator := policy.NewEvaluator("")
	invoker := tool.NewInvoker(f.root, f.stdout, &bytes.Buffer{})
	invoker.Environ = func() []string { return []string{"PATH=/usr/bin:/bin"} }
	pm, err := privilege.LookupPackageManager("")
	if err != nil {
		t.Fatal(err)
	}
	pkgs := metadata.Packages{
		"alpha": {Name: "alpha", Dir: filepath.Join(f.root, "apps", "alpha"), Version: "0.1.0"},
		"beta":  {Name: "beta", Dir: filepath.Join(f.root, "apps", "beta"), Version: "0.1.0"},
	}

	r, err := NewRunnerBase(
		context.Background(), f.opts, command, m,
		workspace.NewSynthesizer(renderer),
		fakeResolver{pkgs: pkgs},
		invoker,
		tool.NewGenerator(invoker),
		privilege.NewBatcher(f.root, pm, f.opts.AllowSudo, evaluator, renderer, f.stdout, &bytes.Buffer{}),
		evaluator,
		f.cargo,
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return r
}

func (f *fixture) report(t *testing.T) models.ReportData {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.opts.OutputDir, ReportFile))
	if err != nil {
		t.Fatal(err)
	}
	var report models.ReportData
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatal(err)
	}
	return report
}

const singleBuild = `
[workspace]
members = ["apps/*"]

[[build]]
crates = ["alpha"]
tools = ["echo-tool"]
`

func TestProcess_SingleBuild(t *testing.T) {
	f := newFixture(t, singleBuild, map[string]string{"echo-tool": echoTool})

	if err := f.runner(t, "build").Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if got := f.stdout.String(); got != "build alpha debug\n" {
		t.Errorf("tool output = %q", got)
	}
	for _, want := range []string{"Building echo-tool | debug | 1 crates", "Finished echo-tool | debug | 1 crates in "} {
		if !strings.Contains(f.status.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, f.status.String())
		}
	}

	report := f.report(t)
	if !report.Built || len(report.Invocations) != 1 {
		t.Fatalf("report = %+v, want exactly one invocation", report)
	}
	inv := report.Invocations[0]
	if inv.Tool != "echo-tool" || inv.Outcome != string(tool.OutcomeSuccess) || inv.Config != "debug" {
		t.Errorf("invocation = %+v", inv)
	}
	if len(report.Generate) != 1 || report.Generate[0].Command != tool.CommandGenerate {
		t.Errorf("generate = %+v", report.Generate)
	}
	if report.Privileged == nil || report.Privileged.Decision != string(privilege.DecisionNone) {
		t.Errorf("privileged = %+v", report.Privileged)
	}

	cargoToml, err := os.ReadFile(filepath.Join(f.root, workspace.CargoToml))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(cargoToml), workspace.Sentinel) {
		t.Errorf("workspace Cargo.toml not generated:\n%s", cargoToml)
	}
	if _, err := os.Stat(filepath.Join(f.root, workspace.DotContainer)); err != nil {
		t.Errorf(".container not created: %v", err)
	}
	if len(f.cargo.calls) != 0 {
		t.Errorf("unexpected cargo calls %v", f.cargo.calls)
	}
}

func TestProcess_ConfigsAndGroups(t *testing.T) {
	f := newFixture(t, `
[[build]]
crates = ["alpha", "beta"]
tools = ["echo-tool"]

[[build]]
crates = ["beta"]
tools = ["other-tool"]
`, map[string]string{"echo-tool": echoTool, "other-tool": echoTool})
	f.opts.Configs = []string{"release", "debug", "release"}
	f.opts.Arches = []string{"x86_64"}

	if err := f.runner(t, "test").Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	want := "test alpha,beta debug\ntest alpha,beta release\ntest beta debug\ntest beta release\n"
	if got := f.stdout.String(); got != want {
		t.Errorf("tool output = %q, want %q", got, want)
	}
	report := f.report(t)
	if len(report.Invocations) != 4 {
		t.Errorf("got %d invocations, want 4", len(report.Invocations))
	}
	if !reflect.DeepEqual(report.Invocations[0].Arches, []string{"x86_64"}) {
		t.Errorf("arches = %v", report.Invocations[0].Arches)
	}
}

func TestProcess_NoCombinations(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantErr bool
	}{
		{name: "build must build something", command: "build", wantErr: true},
		{name: "setup may build nothing", command: "setup"},
		{name: "check may build nothing", command: "check"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "[workspace]\nmembers = []\n", nil)

			err := f.runner(t, tt.command).Process()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Process() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrNoCombinations) {
				t.Fatalf("Process() error = %v, want ErrNoCombinations", err)
			}
			if err.Error() != "`build`: matched no crate x tool combinations" {
				t.Errorf("error message = %q", err.Error())
			}
		})
	}
}

func TestProcess_Filters(t *testing.T) {
	f := newFixture(t, `
[[build]]
crates = ["alpha", "beta"]
tools = ["echo-tool", "other-tool"]
`, map[string]string{"echo-tool": echoTool, "other-tool": echoTool})
	f.opts.Crates = []string{"beta", "gamma"}
	f.opts.Tools = []string{"echo-tool", "nope"}

	if err := f.runner(t, "build").Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := f.stdout.String(); got != "build beta debug\n" {
		t.Errorf("tool output = %q", got)
	}
	for _, want := range []string{
		"`--crate gamma` is not part of any `[[build]]`'s crates",
		"`--tool nope` is not part of any `[[build]]`'s tools",
	} {
		if !strings.Contains(f.status.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, f.status.String())
		}
	}
}

func TestProcess_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		built   bool
	}{
		{name: "warnings still count as built", body: "[ \"$CARGO_CONTAINER_COMMAND\" = generate ] && exit 0\nexit 51", built: true},
		{name: "not implemented is skipped", body: "[ \"$CARGO_CONTAINER_COMMAND\" = generate ] && exit 0\nexit 193"},
		{name: "errors abort", body: "[ \"$CARGO_CONTAINER_COMMAND\" = generate ] && exit 0\nexit 238", wantErr: true},
		{name: "generate errors abort", body: "exit 238", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, singleBuild, map[string]string{"echo-tool": tt.body})

			// setup tolerates building nothing, so only the outcome decides.
			err := f.runner(t, "setup").Process()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Process() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, tool.ErrToolErrors) {
					t.Errorf("error = %v, want ErrToolErrors", err)
				}
				return
			}
			if got := f.report(t).Built; got != tt.built {
				t.Errorf("Built = %v, want %v", got, tt.built)
			}
		})
	}
}

func TestProcess_MissingSelectedCrate(t *testing.T) {
	f := newFixture(t, `
[[build]]
crates = ["ghost"]
tools = ["echo-tool"]
`, map[string]string{"echo-tool": echoTool})

	err := f.runner(t, "build").Process()
	if !errors.Is(err, metadata.ErrPackageNotFound) {
		t.Fatalf("Process() error = %v, want ErrPackageNotFound", err)
	}
}

func TestProcess_MissingCrateOfExcludedTool(t *testing.T) {
	f := newFixture(t, `
[workspace]
members = ["apps/*"]

[[build]]
crates = ["alpha"]
tools = ["echo-tool"]

[[build]]
crates = ["ghost"]
tools = ["other-tool"]
`, map[string]string{"echo-tool": echoTool, "other-tool": echoTool})
	f.opts.Tools = []string{"echo-tool"}

	if err := f.runner(t, "build").Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := f.stdout.String(); got != "build alpha debug\n" {
		t.Errorf("tool output = %q", got)
	}
}

func TestProcess_PrivilegedRequests(t *testing.T) {
	f := newFixture(t, singleBuild, map[string]string{"echo-tool": `echo "cargo-container:apt-get-install=libfoo-dev"
echo "cargo-container:sudo=ldconfig"`})

	if err := f.runner(t, "build").Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if f.stdout.Len() != 0 {
		t.Errorf("directives leaked to stdout: %q", f.stdout.String())
	}

	report := f.report(t)
	p := report.Privileged
	if p == nil || p.Decision != string(privilege.DecisionDenied) {
		t.Fatalf("privileged = %+v, want denied", p)
	}
	if !reflect.DeepEqual(p.Packages, []string{"libfoo-dev"}) {
		t.Errorf("packages = %v", p.Packages)
	}
	if !strings.Contains(f.status.String(), "Skipping admin tasks") {
		t.Errorf("status output:\n%s", f.status.String())
	}
}

func TestProcess_CargoFollowUps(t *testing.T) {
	f := newFixture(t, `
[local-install]
echo-tool = { path = "tools/echo" }
`+singleBuild, map[string]string{"echo-tool": echoTool})

	if err := f.runner(t, "check").Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := [][]string{{"local-install", "--no-path-warning"}, {"check"}}
	if !reflect.DeepEqual(f.cargo.calls, want) {
		t.Errorf("cargo calls = %v, want %v", f.cargo.calls, want)
	}

	f.cargo.calls = nil
	f.cargo.failOn = "check"
	f.cargo.err = &CargoExitError{Args: []string{"check"}, Code: 101}
	err := f.runner(t, "check").Process()
	var exitErr *CargoExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 101 {
		t.Errorf("Process() error = %v, want cargo exit 101", err)
	}
}

func TestRunnerClean(t *testing.T) {
	f := newFixture(t, singleBuild, nil)
	if err := os.MkdirAll(filepath.Join(f.root, workspace.DotContainer, "crates"), 0755); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.LoadFile(filepath.Join(f.root, manifest.FileName))
	if err != nil {
		t.Fatal(err)
	}
	f.opts.Args = []string{"--release"}
	f.opts.EnableExportReport = false

	r, err := NewRunnerClean(context.Background(), f.opts, m, f.cargo)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := r.Process(); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if want := [][]string{{"clean", "--release"}}; !reflect.DeepEqual(f.cargo.calls, want) {
		t.Errorf("cargo calls = %v, want %v", f.cargo.calls, want)
	}
	if _, err := os.Stat(filepath.Join(f.root, workspace.DotContainer)); !os.IsNotExist(err) {
		t.Errorf(".container still present: %v", err)
	}
}
