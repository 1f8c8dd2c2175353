package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "manifest")

const (
	// FileName is the manifest searched for from the working directory upwards.
	FileName = "Container.toml"
)

var (
	// ErrNotFound indicates that no Container.toml exists in the directory or any parent.
	ErrNotFound = errors.New("Container.toml not found")
)

// ParseError is returned when Container.toml is not valid TOML or does not
// match the expected layout.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	var perr toml.ParseError
	if errors.As(e.Err, &perr) {
		return fmt.Sprintf("unable to parse `%s`: %s", e.Path, perr.ErrorWithPosition())
	}
	return fmt.Sprintf("unable to parse `%s`: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Manifest is the parsed representation of Container.toml.
//
//	[local-install]
//	platform-console = { path = "platforms/console" }
//
//	[workspace]
//	members = ["app-common", "apps/*", "platforms/*"]
//
//	[[build]]
//	crates = ["alpha", "beta"]
//	tools  = ["platform-console"]
type Manifest struct {
	LocalInstall map[string]interface{} `toml:"local-install"`
	Workspace    Workspace              `toml:"workspace"`
	Profile      map[string]interface{} `toml:"profile"`
	Builds       []BuildGroup           `toml:"build"`

	path string
}

// Workspace holds the members/exclude globs forwarded to the generated Cargo.toml.
type Workspace struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
}

// BuildGroup pairs a set of crates with the tools that build them.
type BuildGroup struct {
	Crates []string `toml:"crates"`
	Tools  []string `toml:"tools"`
}

// Load walks from dir up to the filesystem root looking for Container.toml
// and parses the first one found.
func Load(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve `%s`: %w", dir, err)
	}

	current := abs
	for {
		candidate := filepath.Join(current, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return LoadFile(candidate)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil, fmt.Errorf("%w in `%s` or its parent directories", ErrNotFound, abs)
		}
		current = parent
	}
}

// LoadFile parses the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	logger.WithField("path", path).Debug("Loading manifest...")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read `%s`: %w", path, err)
	}

	m := &Manifest{}
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	for _, key := range md.Undecoded() {
		logger.WithField("path", path).WithField("key", key.String()).Warn("Ignoring unknown manifest key")
	}

	if err := m.validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve `%s`: %w", path, err)
	}
	m.path = abs
	return m, nil
}

func (m *Manifest) validate() error {
	for i, build := range m.Builds {
		if len(build.Crates) == 0 {
			return fmt.Errorf("[[build]] #%d: `crates` must not be empty", i+1)
		}
		if len(build.Tools) == 0 {
			return fmt.Errorf("[[build]] #%d: `tools` must not be empty", i+1)
		}
		for _, c := range build.Crates {
			if c == "" {
				return fmt.Errorf("[[build]] #%d: empty crate name", i+1)
			}
		}
		for _, t := range build.Tools {
			if t == "" {
				return fmt.Errorf("[[build]] #%d: empty tool name", i+1)
			}
		}
	}
	return nil
}

// Path returns the absolute path of the parsed Container.toml.
func (m *Manifest) Path() string {
	return m.path
}

// RootDirectory is the directory containing Container.toml.
func (m *Manifest) RootDirectory() string {
	return filepath.Dir(m.path)
}

// HasCrate reports whether any [[build]] lists the crate.
func (m *Manifest) HasCrate(name string) bool {
	for _, b := range m.Builds {
		for _, c := range b.Crates {
			if c == name {
				return true
			}
		}
	}
	return false
}

// HasTool reports whether any [[build]] lists the tool.
func (m *Manifest) HasTool(name string) bool {
	for _, b := range m.Builds {
		for _, t := range b.Tools {
			if t == name {
				return true
			}
		}
	}
	return false
}

// CratesByTool maps each distinct tool to the union of crates of every
// [[build]] that references it. Crates are sorted for stable output.
func (m *Manifest) CratesByTool() map[string][]string {
	sets := make(map[string]map[string]bool)
	for _, b := range m.Builds {
		for _, t := range b.Tools {
			if sets[t] == nil {
				sets[t] = make(map[string]bool)
			}
			for _, c := range b.Crates {
				sets[t][c] = true
			}
		}
	}

	result := make(map[string][]string, len(sets))
	for tool, crates := range sets {
		names := make([]string, 0, len(crates))
		for c := range crates {
			names = append(names, c)
		}
		sort.Strings(names)
		result[tool] = names
	}
	return result
}

// Tools returns every distinct tool, sorted.
func (m *Manifest) Tools() []string {
	byTool := m.CratesByTool()
	tools := make([]string, 0, len(byTool))
	for t := range byTool {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}
