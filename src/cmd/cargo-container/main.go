package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/gh-nvat/cargo-container/src/internal/runner"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps the outcome to a process exit code.
func execute(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(stripSubcommandName(args))
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var cargoErr *runner.CargoExitError
		if errors.As(err, &cargoErr) && cargoErr.Code != 0 {
			return cargoErr.Code
		}
		return 1
	}
	return 0
}

// stripSubcommandName drops the leading "container" cargo passes when the
// binary is run as `cargo container ...`.
func stripSubcommandName(args []string) []string {
	if len(args) > 0 && args[0] == "container" {
		return args[1:]
	}
	return args
}

// newRootCmd creates the root command, parse args from CLI
func newRootCmd() *cobra.Command {
	opts := &runner.Options{}
	var allowSudo, denySudo bool

	cmd := &cobra.Command{
		Use:   "cargo-container",
		Short: "Multi-platform meta-build orchestrator for Rust crates",
		Long: `cargo-container generates a Cargo workspace from Container.toml and drives
per-platform build tools over it. Each tool receives the selected crates,
architectures and configurations through CARGO_CONTAINER_* environment
variables and may ask for privileged setup through stdout directives.`,
		Version:       fmt.Sprintf("%s (built: %s)", Version, BuildTime),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return fmt.Errorf("unrecognized subcommand: %s", args[0])
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case allowSudo:
				opts.AllowSudo = &allowSudo
			case denySudo:
				allow := false
				opts.AllowSudo = &allow
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringArrayVar(&opts.Arches, "arch", nil, "Architecture to build for (repeatable)")
	flags.StringArrayVar(&opts.Configs, "config", nil, "Configuration to build, e.g. debug or release (repeatable, default: debug)")
	flags.StringArrayVar(&opts.Crates, "crate", nil, "Only build this crate (repeatable)")
	flags.StringArrayVar(&opts.Tools, "tool", nil, "Only use this tool (repeatable)")

	flags.BoolVar(&allowSudo, "allow-sudo", false, "Run requested admin tasks without asking")
	flags.BoolVar(&denySudo, "deny-sudo", false, "Skip requested admin tasks without asking")
	flags.StringVar(&opts.SudoPolicy, "sudo-policy", "", "Rego policy gating admin tasks (default: built-in policy)")
	flags.StringVar(&opts.PackageManager, "package-manager", "", "Package manager for requested packages (default: apt-get)")

	flags.StringVar(&opts.WorkDir, "manifest-dir", ".", "Directory to search upwards from for Container.toml")
	flags.StringVar(&opts.Color, "color", "", "Coloring: auto, always or never")
	flags.BoolVar(&opts.Debug, "debug", false, "Debug mode")

	flags.StringVar(&opts.OutputDir, "output-dir", "./output",
		"Output directory for exported reports")
	flags.BoolVar(&opts.EnableExportReport, "enable-export-report", false, "Enable export report (json file to output dir)")
	flags.BoolVar(&opts.EnableExportPerformanceReport, "enable-export-performance-report", false, "Enable export performance report (json file to output dir)")

	cmd.MarkFlagsMutuallyExclusive("allow-sudo", "deny-sudo")

	for _, c := range runner.Commands {
		cmd.AddCommand(newForwardCmd(opts, c))
	}
	cmd.AddCommand(newCleanCmd(opts))
	for _, name := range runner.NotImplemented {
		cmd.AddCommand(newNotImplementedCmd(name))
	}
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// newForwardCmd generates the workspace, then forwards c to every selected tool.
func newForwardCmd(opts *runner.Options, c runner.Command) *cobra.Command {
	return &cobra.Command{
		Use:     c.Name,
		Aliases: c.Aliases,
		Short:   c.Short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, c)
		},
	}
}

func newCleanCmd(opts *runner.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "clean [cargo clean args...]",
		Short: "Remove generated files, then run `cargo clean`",
		// Everything is forwarded to cargo untouched.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Args = args
			return run(cmd.Context(), opts, runner.Command{Name: "clean"})
		},
	}
}

func newNotImplementedCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:                name,
		Hidden:             true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("not yet implemented: %s", name)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cargo-container %s\n", cmd.Root().Version)
		},
	}
}
