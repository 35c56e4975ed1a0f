// Package config loads the engine configuration from atomtx.yaml.
// Priority: config file > defaults. Missing files are not an error;
// every field has a default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Storage backend names accepted by the snapshot store setting
const (
	StorageMemory = "memory"
	StorageFile   = "file"
)

// History backend names accepted by the history setting
const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
)

// Archive gateway names accepted by the archive setting
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveS3    = "s3"
	ArchiveMock  = "mock"
)

// RawConfig mirrors the structure of atomtx.yaml. Pointer fields
// distinguish "absent" from zero values so defaults only fill gaps.
type RawConfig struct {
	// Core settings
	Home      *string `yaml:"home"`
	Workspace *string `yaml:"workspace"`

	// Backend selection
	Storage *string `yaml:"storage"`
	History *string `yaml:"history"`
	Archive *string `yaml:"archive"`

	// Logging
	LogMode  *string `yaml:"log_mode"`
	LogLevel *string `yaml:"log_level"`

	// Rollback feasibility
	FeasibilityWindowSec *int `yaml:"feasibility_window_sec"`

	// Archive backends
	LocalArchiveDir *string `yaml:"local_archive_dir"`
	S3Bucket        *string `yaml:"s3_bucket"`
	S3Prefix        *string `yaml:"s3_prefix"`
	S3Region        *string `yaml:"s3_region"`
}

// Config is the resolved engine configuration
type Config struct {
	Home      string
	Workspace string

	Storage string
	History string
	Archive string

	LogMode  string
	LogLevel string

	FeasibilityWindow time.Duration

	LocalArchiveDir string
	S3Bucket        string
	S3Prefix        string
	S3Region        string

	// Source records where the configuration came from: "default" or a file path
	Source string
}

// Default returns the configuration used when no file exists
func Default() Config {
	return Config{
		Home:              ".atomtx",
		Workspace:         ".",
		Storage:           StorageFile,
		History:           HistorySQLite,
		Archive:           ArchiveNone,
		LogMode:           "console",
		LogLevel:          "info",
		FeasibilityWindow: 24 * time.Hour,
		LocalArchiveDir:   ".atomtx/archive",
		S3Prefix:          "atomtx",
		Source:            "default",
	}
}

// Load reads a configuration file, filling gaps with defaults. A
// missing file yields the defaults with Source "default".
func Load(fs afero.Fs, path string) (Config, error) {
	raw := &RawConfig{}
	source := "default"

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, raw); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			source = path
		}
	}

	cfg := build(raw)
	cfg.Source = source
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// build applies defaults over the raw settings
func build(raw *RawConfig) Config {
	cfg := Default()

	if raw.Home != nil {
		cfg.Home = *raw.Home
	}
	if raw.Workspace != nil {
		cfg.Workspace = *raw.Workspace
	}
	if raw.Storage != nil {
		cfg.Storage = *raw.Storage
	}
	if raw.History != nil {
		cfg.History = *raw.History
	}
	if raw.Archive != nil {
		cfg.Archive = *raw.Archive
	}
	if raw.LogMode != nil {
		cfg.LogMode = *raw.LogMode
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = *raw.LogLevel
	}
	if raw.FeasibilityWindowSec != nil {
		cfg.FeasibilityWindow = time.Duration(*raw.FeasibilityWindowSec) * time.Second
	}
	if raw.LocalArchiveDir != nil {
		cfg.LocalArchiveDir = *raw.LocalArchiveDir
	}
	if raw.S3Bucket != nil {
		cfg.S3Bucket = *raw.S3Bucket
	}
	if raw.S3Prefix != nil {
		cfg.S3Prefix = *raw.S3Prefix
	}
	if raw.S3Region != nil {
		cfg.S3Region = *raw.S3Region
	}

	return cfg
}

func (c Config) validate() error {
	switch c.Storage {
	case StorageMemory, StorageFile:
	default:
		return fmt.Errorf("unknown storage backend %q (want %s or %s)", c.Storage, StorageMemory, StorageFile)
	}

	switch c.History {
	case HistoryMemory, HistorySQLite:
	default:
		return fmt.Errorf("unknown history backend %q (want %s or %s)", c.History, HistoryMemory, HistorySQLite)
	}

	switch c.Archive {
	case ArchiveNone, ArchiveLocal, ArchiveS3, ArchiveMock:
	default:
		return fmt.Errorf("unknown archive backend %q (want %s, %s, %s or %s)",
			c.Archive, ArchiveNone, ArchiveLocal, ArchiveS3, ArchiveMock)
	}

	if c.Archive == ArchiveS3 && c.S3Bucket == "" {
		return fmt.Errorf("archive backend %q requires s3_bucket", ArchiveS3)
	}
	return nil
}

// SnapshotsDir returns where the file snapshot store lives
func (c Config) SnapshotsDir() string {
	return filepath.Join(c.Home, "snapshots")
}

// HistoryDBPath returns the SQLite history database path
func (c Config) HistoryDBPath() string {
	return filepath.Join(c.Home, "history.db")
}

// MetricsPath returns the metrics JSON file path
func (c Config) MetricsPath() string {
	return filepath.Join(c.Home, "metrics.json")
}
