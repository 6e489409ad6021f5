package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// Create a minimal config file
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Check default values
	assert.Equal(t, "./data", cfg.Analysis.DataDir)
	assert.Equal(t, "./output", cfg.Analysis.OutputDir)
	assert.Equal(t, "json", cfg.Analysis.OutputFormat)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
analysis:
  data_dir: "/tmp/data"
  output_format: folded
  min_percent: 0.5
  strict_mode: true
  known_locations:
    /vendor/app/Custom/Custom.apk: com.vendor.custom
database:
  enabled: true
  type: postgres
  host: db.example.com
  port: 5432
  database: heapgraph
  user: admin
  password: secret
storage:
  type: local
  local_path: /tmp/storage
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/data", cfg.Analysis.DataDir)
	assert.Equal(t, "folded", cfg.Analysis.OutputFormat)
	assert.Equal(t, 0.5, cfg.Analysis.MinPercent)
	assert.True(t, cfg.Analysis.StrictMode)
	assert.Equal(t, map[string]string{
		"/vendor/app/Custom/Custom.apk": "com.vendor.custom",
	}, cfg.Analysis.KnownLocations)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "heapgraph", cfg.Database.Database)
}

func TestLoad_InvalidDatabaseType(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
database:
  type: oracle
  host: localhost
storage:
  type: local
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

// Note: Storage validation tests live in the internal/storage package

func TestLoad_COSWithCredentials(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: cos
  bucket: test-bucket
  region: ap-guangzhou
  secret_id: test-id
  secret_key: test-key
`
	err := os.WriteFile(configFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "test-bucket", cfg.Storage.Bucket)
}

func TestValidate_EmptyHost(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Enabled: true,
			Type:    "postgres",
			Host:    "",
		},
		Storage: StorageConfig{
			Type: "local",
		},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database host is required")
}

func TestValidate_SQLiteWithoutPath(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Enabled: true,
			Type:    "sqlite",
		},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite database path is required")
}

func TestValidate_InvalidOutputFormat(t *testing.T) {
	cfg := &Config{
		Analysis: AnalysisConfig{OutputFormat: "svg"},
		Database: DatabaseConfig{Type: "sqlite", Path: "x.db"},
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestGetOutputPath(t *testing.T) {
	cfg := &Config{
		Analysis: AnalysisConfig{
			OutputDir: "/tmp/output",
		},
	}

	assert.Equal(t, "/tmp/output/snapshot.json", cfg.GetOutputPath("snapshot.json"))
}

func TestEnsureDataDir(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "analysis", "data")
	outputDir := filepath.Join(dir, "analysis", "output")

	cfg := &Config{
		Analysis: AnalysisConfig{
			DataDir:   dataDir,
			OutputDir: outputDir,
		},
	}

	err := cfg.EnsureDataDir()
	require.NoError(t, err)

	_, err = os.Stat(dataDir)
	assert.NoError(t, err)
	_, err = os.Stat(outputDir)
	assert.NoError(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	// Should not return error, use defaults
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
database:
  type: mysql
  host: mysql.local
storage:
  type: local
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, "mysql.local", cfg.Database.Host)
}
