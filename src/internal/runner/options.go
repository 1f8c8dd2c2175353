package runner

import (
	"fmt"
	"sort"
)

// DefaultConfig is built when no --config is given.
const DefaultConfig = "debug"

type Options struct {
	Debug bool   // Debug mode
	Color string // auto, always or never

	// Directory to start searching for Container.toml from (default: working directory)
	WorkDir string

	// Filters, repeatable on the command line
	Arches  []string
	Configs []string
	Crates  []string
	Tools   []string

	// Privileged tasks
	AllowSudo      *bool  // --allow-sudo / --deny-sudo, nil when neither was given
	SudoPolicy     string // Path to a rego policy replacing the built-in one
	PackageManager string // Used for the combined install line (default: apt-get)

	// Reports
	OutputDir                     string
	EnableExportReport            bool
	EnableExportPerformanceReport bool

	// Extra arguments, forwarded to cargo by `clean`
	Args []string
}

// Normalize sorts and deduplicates the filters, warning about repeats, and
// applies the default configuration.
func (o *Options) Normalize() {
	o.Arches = dedupe("--arch", o.Arches)
	o.Configs = dedupe("--config", o.Configs)
	o.Crates = dedupe("--crate", o.Crates)
	o.Tools = dedupe("--tool", o.Tools)
	if len(o.Configs) == 0 {
		o.Configs = []string{DefaultConfig}
	}
}

func dedupe(flag string, values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			logger.Warnf("`%s %s` was already specified", flag, v)
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// CrateSelected reports whether crate passes the --crate filter.
func (o *Options) CrateSelected(crate string) bool {
	return len(o.Crates) == 0 || contains(o.Crates, crate)
}

// ToolSelected reports whether tool passes the --tool filter.
func (o *Options) ToolSelected(tool string) bool {
	return len(o.Tools) == 0 || contains(o.Tools, tool)
}

func (o *Options) Validate() error {
	for _, values := range [][]string{o.Arches, o.Configs, o.Crates, o.Tools} {
		for _, v := range values {
			if v == "" {
				return fmt.Errorf("filter values must not be empty")
			}
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
