package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heapgraph-analysis/pkg/config"
)

func validCOSConfig() *COSConfig {
	return &COSConfig{
		Bucket:    "heap-dumps-1250000000",
		Region:    "ap-guangzhou",
		SecretID:  "id",
		SecretKey: "key",
	}
}

func TestNewCOSStorage(t *testing.T) {
	s, err := NewCOSStorage(validCOSConfig())
	require.NoError(t, err)
	assert.NotNil(t, s.client)
}

func TestNewCOSStorage_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*COSConfig)
	}{
		{"no bucket", func(c *COSConfig) { c.Bucket = "" }},
		{"no region", func(c *COSConfig) { c.Region = "" }},
		{"no secret id", func(c *COSConfig) { c.SecretID = "" }},
		{"no secret key", func(c *COSConfig) { c.SecretKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validCOSConfig()
			tt.mutate(cfg)
			_, err := NewCOSStorage(cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewStorage_SelectsBackend(t *testing.T) {
	local, err := NewStorage(&config.StorageConfig{
		Type:      "local",
		LocalPath: t.TempDir(),
	})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, local)

	remote, err := NewStorage(&config.StorageConfig{
		Type:      "cos",
		Bucket:    "heap-dumps-1250000000",
		Region:    "ap-guangzhou",
		SecretID:  "id",
		SecretKey: "key",
	})
	require.NoError(t, err)
	assert.IsType(t, &COSStorage{}, remote)

	// Empty type falls back to local.
	fallback, err := NewStorage(&config.StorageConfig{LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, fallback)
}

func TestValidateConfig(t *testing.T) {
	assert.Error(t, ValidateConfig(nil))
	assert.Error(t, ValidateConfig(&config.StorageConfig{Type: "s3"}))
	assert.Error(t, ValidateConfig(&config.StorageConfig{Type: "local"}))
	assert.Error(t, ValidateConfig(&config.StorageConfig{Type: "cos", Bucket: "b"}))
	assert.NoError(t, ValidateConfig(&config.StorageConfig{Type: "local", LocalPath: "./objects"}))
}
