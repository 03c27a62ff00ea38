package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds navigator and report options. Keys missing from a config
// file keep their default.
type Settings struct {
	// ReadRetries is the number of extra attempts for a failed block read.
	ReadRetries int `yaml:"read_retries"`
	// ScanLimit bounds the packs scanned while looking for a navigation pack.
	ScanLimit        int           `yaml:"scan_limit"`
	MinTitleDuration time.Duration `yaml:"min_title_duration"`
	LogLevel         string        `yaml:"log_level"`
	ReportFileName   string        `yaml:"report_file_name"`
}

func Default(reportBaseDir string) Settings {
	return Settings{
		ReadRetries:      1,
		ScanLimit:        1024,
		MinTitleDuration: 10 * time.Second,
		LogLevel:         "warn",
		ReportFileName:   filepath.Join(reportBaseDir, "DVDInfo_{0}.txt"),
	}
}

// Load overlays the YAML file at path onto base.
func Load(path string, base Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return base, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the navigator cannot work with.
func (s Settings) Validate() error {
	if s.ReadRetries < 0 {
		return fmt.Errorf("read_retries must not be negative, got %d", s.ReadRetries)
	}
	if s.ScanLimit <= 0 {
		return fmt.Errorf("scan_limit must be positive, got %d", s.ScanLimit)
	}
	if s.MinTitleDuration < 0 {
		return fmt.Errorf("min_title_duration must not be negative, got %s", s.MinTitleDuration)
	}
	return nil
}
