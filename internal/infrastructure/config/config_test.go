package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()

	cfg, err := Load(fs, "atomtx.yaml")
	require.NoError(t, err)

	assert.Equal(t, ".atomtx", cfg.Home)
	assert.Equal(t, ".", cfg.Workspace)
	assert.Equal(t, StorageFile, cfg.Storage)
	assert.Equal(t, HistorySQLite, cfg.History)
	assert.Equal(t, ArchiveNone, cfg.Archive)
	assert.Equal(t, "console", cfg.LogMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24*time.Hour, cfg.FeasibilityWindow)
	assert.Equal(t, "default", cfg.Source)
}

func TestLoad_FileOverridesOnlySetFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "atomtx.yaml", []byte(`
home: /var/lib/atomtx
storage: memory
history: memory
feasibility_window_sec: 3600
`), 0o644))

	cfg, err := Load(fs, "atomtx.yaml")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/atomtx", cfg.Home)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, HistoryMemory, cfg.History)
	assert.Equal(t, time.Hour, cfg.FeasibilityWindow)
	// Unset fields keep their defaults
	assert.Equal(t, ".", cfg.Workspace)
	assert.Equal(t, ArchiveNone, cfg.Archive)
	assert.Equal(t, "atomtx.yaml", cfg.Source)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Source)
}

func TestLoad_InvalidYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "atomtx.yaml", []byte("storage: [broken"), 0o644))

	_, err := Load(fs, "atomtx.yaml")
	assert.Error(t, err)
}

func TestLoad_ValidatesBackends(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown storage", "storage: redis"},
		{"unknown history", "history: postgres"},
		{"unknown archive", "archive: glacier"},
		{"s3 without bucket", "archive: s3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "atomtx.yaml", []byte(tt.yaml), 0o644))
			_, err := Load(fs, "atomtx.yaml")
			assert.Error(t, err)
		})
	}
}

func TestLoad_S3WithBucket(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "atomtx.yaml", []byte(`
archive: s3
s3_bucket: my-archive
s3_region: eu-west-1
`), 0o644))

	cfg, err := Load(fs, "atomtx.yaml")
	require.NoError(t, err)
	assert.Equal(t, ArchiveS3, cfg.Archive)
	assert.Equal(t, "my-archive", cfg.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3Region)
	assert.Equal(t, "atomtx", cfg.S3Prefix)
}

func TestConfig_DerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.Home = "/var/lib/atomtx"

	assert.Equal(t, filepath.Join("/var/lib/atomtx", "snapshots"), cfg.SnapshotsDir())
	assert.Equal(t, filepath.Join("/var/lib/atomtx", "history.db"), cfg.HistoryDBPath())
	assert.Equal(t, filepath.Join("/var/lib/atomtx", "metrics.json"), cfg.MetricsPath())
}
