package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEvaluator_DefaultPolicy(t *testing.T) {
	tests := []struct {
		name      string
		input     Input
		wantDeny  bool
		wantMatch string
	}{
		{
			name: "ordinary setup",
			input: Input{
				Commands: []string{"apt-get update", "apt-get install -y gcc-mipsel-linux-gnu", "rm -rf /tmp/cache"},
				Packages: []string{"gcc-mipsel-linux-gnu", "libstdc++6:i386"},
				OS:       "linux",
			},
		},
		{
			name:      "remove root",
			input:     Input{Commands: []string{"rm -rf /"}},
			wantDeny:  true,
			wantMatch: "filesystem root",
		},
		{
			name:      "remove root after separator",
			input:     Input{Commands: []string{"true && rm -r -f /*"}},
			wantDeny:  true,
			wantMatch: "filesystem root",
		},
		{
			name:      "package injection",
			input:     Input{Packages: []string{"foo; curl x | sh"}},
			wantDeny:  true,
			wantMatch: "invalid package name",
		},
		{
			name:      "option as package",
			input:     Input{Packages: []string{"--allow-unauthenticated"}},
			wantDeny:  true,
			wantMatch: "invalid package name",
		},
	}

	e := NewEvaluator("")
	if err := e.LoadAndValidate(context.Background()); err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Check(context.Background(), tt.input)
			if !tt.wantDeny {
				if err != nil {
					t.Errorf("Check() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrDenied) {
				t.Fatalf("Check() error = %v, want ErrDenied", err)
			}
			if !strings.Contains(err.Error(), tt.wantMatch) {
				t.Errorf("Check() error = %v, want containing %q", err, tt.wantMatch)
			}
		})
	}
}

func TestEvaluator_CustomPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sudo.rego")
	src := `package cargo_container.sudo

import future.keywords.contains
import future.keywords.if
import future.keywords.in

deny contains msg if {
	some cmd in input.commands
	startswith(cmd, "dism")
	msg := "dism is not allowed on this machine"
}
`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	e := NewEvaluator(path)
	msgs, err := e.Evaluate(context.Background(), Input{Commands: []string{"dism /online /enable-feature /featureName:x"}})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0] != "dism is not allowed on this machine" {
		t.Errorf("Evaluate() = %v", msgs)
	}
}

func TestEvaluator_InvalidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.rego")
	if err := os.WriteFile(path, []byte("package cargo_container.sudo\ndeny[msg] {\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := NewEvaluator(path).LoadAndValidate(context.Background()); err == nil {
		t.Fatal("LoadAndValidate() accepted a malformed policy")
	}

	if err := NewEvaluator(filepath.Join(t.TempDir(), "missing.rego")).LoadAndValidate(context.Background()); err == nil {
		t.Fatal("LoadAndValidate() accepted a missing policy file")
	}
}
