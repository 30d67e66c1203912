package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".shelfwatch"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML shape of the configuration file. Every field is a
// pointer so that an absent key leaves the corresponding Config value
// untouched; CLI flags still override anything set here.
//
// Durations are written as Go duration strings ("500ms", "2s").
type File struct {
	BaseURL         *string `yaml:"base_url"`
	Mode            *string `yaml:"mode"`
	DBDir           *string `yaml:"db_dir"`
	ReportDir       *string `yaml:"report_dir"`
	LogDir          *string `yaml:"log_dir"`
	Timeout         *string `yaml:"timeout"`
	Retries         *int    `yaml:"retries"`
	CrawlDelay      *string `yaml:"crawl_delay"`
	MaxBodySize     *int64  `yaml:"max_body_size"`
	UserAgent       *string `yaml:"user_agent"`
	IgnoreRobots    *bool   `yaml:"ignore_robots"`
	GenerateReport  *bool   `yaml:"generate_report"`
	ReportBatchSize *int    `yaml:"report_batch_size"`
}

// LoadConfigFile loads configuration overrides from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &f, nil
}

// Apply merges the file's values into cfg. Only keys present in the file
// change anything.
func (f *File) Apply(cfg *Config) error {
	if f.BaseURL != nil {
		cfg.BaseURL = *f.BaseURL
	}
	if f.Mode != nil {
		cfg.Mode = *f.Mode
	}
	if f.DBDir != nil {
		cfg.DBDir = *f.DBDir
	}
	if f.ReportDir != nil {
		cfg.ReportDir = *f.ReportDir
	}
	if f.LogDir != nil {
		cfg.LogDir = *f.LogDir
	}
	if f.Timeout != nil {
		d, err := time.ParseDuration(*f.Timeout)
		if err != nil {
			return fmt.Errorf("failed to parse timeout %q: %w", *f.Timeout, err)
		}
		cfg.Timeout = d
	}
	if f.Retries != nil {
		cfg.Retries = *f.Retries
	}
	if f.CrawlDelay != nil {
		d, err := time.ParseDuration(*f.CrawlDelay)
		if err != nil {
			return fmt.Errorf("failed to parse crawl_delay %q: %w", *f.CrawlDelay, err)
		}
		cfg.CrawlDelay = d
	}
	if f.MaxBodySize != nil {
		cfg.MaxBodySize = *f.MaxBodySize
	}
	if f.UserAgent != nil {
		cfg.UserAgent = *f.UserAgent
	}
	if f.IgnoreRobots != nil {
		cfg.IgnoreRobots = *f.IgnoreRobots
	}
	if f.GenerateReport != nil {
		cfg.GenerateReport = *f.GenerateReport
	}
	if f.ReportBatchSize != nil {
		cfg.ReportBatchSize = *f.ReportBatchSize
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .shelfwatch in the current directory
// 3. Look for .shelfwatch in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
