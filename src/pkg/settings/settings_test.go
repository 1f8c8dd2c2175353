package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantErr   bool
		wantAllow *bool
		wantPM    string
	}{
		{name: "empty", content: ""},
		{
			name: "full",
			content: `log_level: debug
color: never
package_manager: dnf
sudo_policy: /etc/cargo-container/sudo.rego
allow_sudo: false
`,
			wantAllow: new(bool),
			wantPM:    "dnf",
		},
		{name: "bad level", content: "log_level: loud\n", wantErr: true},
		{name: "bad color", content: "color: sometimes\n", wantErr: true},
		{name: "bad yaml", content: "allow_sudo: [\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			s, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (s.AllowSudo == nil) != (tt.wantAllow == nil) {
				t.Fatalf("AllowSudo = %v, want %v", s.AllowSudo, tt.wantAllow)
			}
			if s.AllowSudo != nil && *s.AllowSudo != *tt.wantAllow {
				t.Errorf("AllowSudo = %v, want %v", *s.AllowSudo, *tt.wantAllow)
			}
			if s.PackageManager != tt.wantPM {
				t.Errorf("PackageManager = %q, want %q", s.PackageManager, tt.wantPM)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.AllowSudo != nil || s.LogLevel != "" {
		t.Errorf("expected empty settings, got %+v", s)
	}
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv(EnvPath, "/tmp/custom.yaml")
	path, err := DefaultPath()
	if err != nil || path != "/tmp/custom.yaml" {
		t.Errorf("DefaultPath() = %q, %v", path, err)
	}
}
