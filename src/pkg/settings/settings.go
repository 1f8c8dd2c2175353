package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var logger = log.WithField("package", "settings")

const (
	// EnvPath overrides the settings file location.
	EnvPath  = "CARGO_CONTAINER_SETTINGS"
	fileName = "settings.yaml"
)

// Settings holds per-user defaults. Command-line flags take precedence.
type Settings struct {
	LogLevel       string `yaml:"log_level"`
	Color          string `yaml:"color"`
	PackageManager string `yaml:"package_manager"`
	SudoPolicy     string `yaml:"sudo_policy"`
	// AllowSudo is tri-state: unset, always allow or always deny.
	AllowSudo *bool `yaml:"allow_sudo"`
}

// DefaultPath returns the settings file location.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cargo-container", fileName), nil
}

// Load reads the settings file at path. A missing file yields empty settings.
func Load(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.WithField("path", path).Debug("No settings file")
			return s, nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return s, nil
}

// LoadDefault loads the settings from DefaultPath.
func LoadDefault() (*Settings, error) {
	path, err := DefaultPath()
	if err != nil {
		logger.WithField("error", err).Debug("No user config directory, using default settings")
		return &Settings{}, nil
	}
	return Load(path)
}

func (s *Settings) Validate() error {
	if s.LogLevel != "" {
		if _, err := log.ParseLevel(s.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	switch s.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always or never, got: %s", s.Color)
	}
	return nil
}
