package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "metadata")

var (
	// ErrPackageNotFound indicates a crate name has no package in the workspace.
	ErrPackageNotFound = errors.New("package not found in cargo metadata")
)

// Package is a workspace member as reported by cargo.
type Package struct {
	Name        string
	Dir         string
	Version     string
	Description string
}

// Packages maps crate names to their resolved package.
type Packages map[string]Package

// Lookup returns the package called name, or ErrPackageNotFound.
func (p Packages) Lookup(name string) (Package, error) {
	pkg, ok := p[name]
	if !ok {
		return Package{}, fmt.Errorf("`%s`: %w", name, ErrPackageNotFound)
	}
	return pkg, nil
}

// Resolver defines the interface for resolving workspace packages
type Resolver interface {
	// Resolve returns every package of the cargo workspace rooted at root
	Resolve(ctx context.Context, root string) (Packages, error)
}

// CargoResolver shells out to `cargo metadata`.
type CargoResolver struct {
	Cargo string
}

// Ensure CargoResolver implements Resolver
var _ Resolver = (*CargoResolver)(nil)

func NewCargoResolver() *CargoResolver {
	return &CargoResolver{Cargo: "cargo"}
}

func (r *CargoResolver) Resolve(ctx context.Context, root string) (Packages, error) {
	logger.WithField("root", root).Debug("Resolving cargo metadata...")
	cmd := exec.CommandContext(ctx, r.Cargo, "metadata", "--format-version", "1", "--no-deps")
	cmd.Dir = root

	// Output() keeps cargo's progress chatter on stderr out of the JSON
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("cargo metadata failed: %w\nStderr: %s", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("cargo metadata failed: %w", err)
	}
	return Parse(output)
}

// Parse decodes `cargo metadata --format-version 1` output.
func Parse(data []byte) (Packages, error) {
	var doc struct {
		Packages []struct {
			Name         string  `json:"name"`
			Version      string  `json:"version"`
			Description  *string `json:"description"`
			ManifestPath string  `json:"manifest_path"`
		} `json:"packages"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse cargo metadata: %w", err)
	}

	pkgs := make(Packages, len(doc.Packages))
	for _, p := range doc.Packages {
		pkg := Package{
			Name:    p.Name,
			Dir:     filepath.Dir(p.ManifestPath),
			Version: p.Version,
		}
		if p.Description != nil {
			pkg.Description = *p.Description
		}
		pkgs[p.Name] = pkg
	}
	logger.WithField("count", len(pkgs)).Debug("Resolved cargo metadata")
	return pkgs, nil
}
