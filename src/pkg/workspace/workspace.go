package workspace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gh-nvat/cargo-container/src/pkg/manifest"
	"github.com/gh-nvat/cargo-container/src/pkg/template"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "workspace")

// Layout of the generated-artifacts root:
// - <root>/
// |-- Cargo.toml                    (generated, starts with Sentinel)
// |-- .container/
// |   |-- .gitignore                (marker: everything here is generated)
// |   |-- crates/
// |   |   |-- <tool>/<crate>/       (written by each tool's generate step)
// |   |   |-- zzz/stub/             (keeps CratesGlob non-empty)
// |   |-- scripts/                  (transient privileged scripts)
const (
	Sentinel     = "# DO NOT EDIT BY HAND - AUTOGENERATED BY cargo-container FROM Container.toml"
	DotContainer = ".container"
	CratesGlob   = ".container/crates/*/*"
	CargoToml    = "Cargo.toml"
)

var (
	// ErrHandAuthored indicates an existing Cargo.toml lacks the Sentinel line.
	ErrHandAuthored = errors.New("refusing to overwrite hand-authored file")
)

// CratesDir returns the generated crate directory for tool, relative to the root.
func CratesDir(tool string) string {
	return DotContainer + "/crates/" + tool
}

// ScriptsDir returns the directory holding transient privileged scripts.
func ScriptsDir(root string) string {
	return filepath.Join(root, DotContainer, "scripts")
}

// Synthesizer regenerates the workspace Cargo.toml derived from Container.toml.
type Synthesizer struct {
	Renderer *template.Renderer
}

func NewSynthesizer(renderer *template.Renderer) *Synthesizer {
	return &Synthesizer{Renderer: renderer}
}

// EnsureDotContainer creates the .container directory and its marker file.
func (s *Synthesizer) EnsureDotContainer(root string) (string, error) {
	path := filepath.Join(root, DotContainer)
	err := os.Mkdir(path, 0755)
	switch {
	case err == nil:
		gitignore, err := s.Renderer.Render(template.FileNameGitignore, nil)
		if err != nil {
			return "", err
		}
		if _, err := WriteIfModified(filepath.Join(path, ".gitignore"), gitignore); err != nil {
			return "", err
		}
	case errors.Is(err, fs.ErrExist):
	default:
		return "", fmt.Errorf("unable to create `%s`: %w", path, err)
	}
	return path, nil
}

// Write renders the workspace Cargo.toml for m. It is safe to call on every
// run: nothing is touched when the rendered content is unchanged.
func (s *Synthesizer) Write(m *manifest.Manifest) error {
	root := m.RootDirectory()
	path := filepath.Join(root, CargoToml)

	if err := checkSentinel(path); err != nil {
		return err
	}

	written, err := WriteIfModified(path, Render(m))
	if err != nil {
		return err
	}
	logger.WithField("path", path).WithField("written", written).Debug("Workspace Cargo.toml up to date")

	return s.writeStub(root)
}

func checkSentinel(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to check `%s`: %w", path, err)
	}
	defer f.Close()

	first, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("unable to check `%s`: %w", path, err)
	}
	first = strings.TrimRight(first, "\r\n")
	if first != Sentinel {
		return fmt.Errorf("%w `%s`: missing expected warning comment: `%s`", ErrHandAuthored, path, Sentinel)
	}
	return nil
}

// Render produces the workspace Cargo.toml content for m.
func Render(m *manifest.Manifest) []byte {
	var b bytes.Buffer
	fmt.Fprintln(&b, Sentinel)
	fmt.Fprintln(&b)

	if len(m.LocalInstall) > 0 {
		fmt.Fprintln(&b, "[workspace.metadata.local-install]")
		writeTable(&b, m.LocalInstall)
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "[workspace]")
	fmt.Fprintln(&b, "members = [")
	for _, member := range m.Workspace.Members {
		fmt.Fprintf(&b, "    %s,\n", manifest.FormatString(member))
	}
	fmt.Fprintf(&b, "    %s\n", manifest.FormatString(CratesGlob))
	fmt.Fprintln(&b, "]")
	fmt.Fprintln(&b, "exclude = [")
	for _, exclude := range m.Workspace.Exclude {
		fmt.Fprintf(&b, "    %s,\n", manifest.FormatString(exclude))
	}
	fmt.Fprintln(&b, "]")

	if len(m.Profile) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "[profile]")
		writeTable(&b, m.Profile)
	}
	return b.Bytes()
}

func writeTable(b *bytes.Buffer, table map[string]interface{}) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s = %s\n", manifest.FormatKey(k), manifest.FormatInline(table[k]))
	}
}

func (s *Synthesizer) writeStub(root string) error {
	stubDir := filepath.Join(root, DotContainer, "crates", "zzz", "stub")
	if err := os.MkdirAll(stubDir, 0755); err != nil {
		return fmt.Errorf("unable to create `%s`: %w", stubDir, err)
	}

	data := struct {
		Sentinel   string
		CratesGlob string
	}{Sentinel, CratesGlob}

	files := map[string]string{
		"Cargo.toml":  template.FileNameStubCargoToml,
		"zzz-stub.rs": template.FileNameStubLib,
	}
	for name, tmpl := range files {
		content, err := s.Renderer.Render(tmpl, data)
		if err != nil {
			return err
		}
		if _, err := WriteIfModified(filepath.Join(stubDir, name), content); err != nil {
			return err
		}
	}
	return nil
}

// WriteIfModified writes data to path unless the file already holds exactly
// data. It reports whether the file was written.
func WriteIfModified(path string, data []byte) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("unable to read `%s`: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("unable to write `%s`: %w", path, err)
	}
	return true, nil
}

// Clean removes the generated-artifacts root.
func Clean(root string) error {
	path := filepath.Join(root, DotContainer)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete `%s`: %w", path, err)
	}
	return nil
}
