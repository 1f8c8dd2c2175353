package tool

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gh-nvat/cargo-container/src/pkg/manifest"
	"github.com/gh-nvat/cargo-container/src/pkg/metadata"
	"github.com/gh-nvat/cargo-container/src/pkg/privilege"
	"github.com/gh-nvat/cargo-container/src/pkg/workspace"
)

// CommandGenerate asks a tool to write its crate scaffolding.
const CommandGenerate = "generate"

// GenerateConfigs is passed to every generate invocation.
var GenerateConfigs = []string{"debug", "release"}

// Generator runs every tool referenced by the manifest once in generate mode.
type Generator struct {
	Invoker *Invoker
}

func NewGenerator(invoker *Invoker) *Generator {
	return &Generator{Invoker: invoker}
}

// Generate invokes each tool with the union of its crates. A crate missing
// from pkgs aborts only when selected reports it will be built; otherwise it
// is left out with a warning.
func (g *Generator) Generate(
	ctx context.Context,
	m *manifest.Manifest,
	pkgs metadata.Packages,
	selected func(tool, crate string) bool,
	request *privilege.Request,
) ([]*Result, error) {
	byTool := m.CratesByTool()
	var results []*Result

	for _, tool := range m.Tools() {
		var names, env []string
		for _, crate := range byTool[tool] {
			pkg, err := pkgs.Lookup(crate)
			if err != nil {
				if selected == nil || selected(tool, crate) {
					return results, err
				}
				logger.WithField("tool", tool).WithField("crate", crate).Warn("Crate not found in cargo metadata, not generating it")
				continue
			}
			pkgEnv, err := g.packageEnv(pkg)
			if err != nil {
				return results, err
			}
			names = append(names, pkg.Name)
			env = append(env, pkgEnv...)
		}
		if len(names) == 0 {
			continue
		}

		inv := Invocation{
			Tool:      tool,
			Command:   CommandGenerate,
			CratesDir: workspace.CratesDir(tool),
			Configs:   GenerateConfigs,
			Packages:  names,
			ExtraEnv:  env,
		}
		result, err := g.Invoker.Run(ctx, inv, request)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			return results, fmt.Errorf("`%s` generate failed: %w", tool, err)
		}
	}
	return results, nil
}

// packageEnv describes pkg to a tool. PATH is relative to the tool's
// generated crate directory, four levels below the root.
func (g *Generator) packageEnv(pkg metadata.Package) ([]string, error) {
	rel, err := filepath.Rel(g.Invoker.RootDir, pkg.Dir)
	if err != nil {
		return nil, fmt.Errorf("package `%s` is outside the workspace: %w", pkg.Name, err)
	}
	path := "../../../.."
	if rel != "." {
		path += "/" + filepath.ToSlash(rel)
	}

	prefix := envPrefix + "PACKAGE_" + pkg.Name
	return []string{
		prefix + "_PATH=" + path,
		prefix + "_VERSION=" + pkg.Version,
		prefix + "_DESCRIPTION=" + pkg.Description,
	}, nil
}
