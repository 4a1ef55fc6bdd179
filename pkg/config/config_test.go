package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50*1024*1024, cfg.Server.BodyLimit)
	assert.Equal(t, "json", cfg.Storage.Backend)
	assert.Equal(t, 1000, cfg.Ingestion.PDFChunkSize)
	assert.Equal(t, 1500, cfg.Ingestion.DOCXChunkSize)
	assert.Equal(t, 20, cfg.Ingestion.TableGroupSize)
	assert.Equal(t, 15, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.Retrieval.CaseNameBonus)
	assert.False(t, cfg.Retrieval.PeriodBonusEnabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DOCCHAT_RETRIEVAL_TOPK", "6")
	t.Setenv("DOCCHAT_RETRIEVAL_PERIODBONUSENABLED", "true")
	t.Setenv("DOCCHAT_STORAGE_BACKEND", "sqlite")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Retrieval.TopK)
	assert.True(t, cfg.Retrieval.PeriodBonusEnabled)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  backend: bolt
  root: /srv/docchat
auth:
  sharedSecret: s3cret
ingestion:
  tableGroupSize: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Storage.Backend)
	assert.Equal(t, "/srv/docchat", cfg.Storage.Root)
	assert.Equal(t, "s3cret", cfg.Auth.SharedSecret)
	assert.Equal(t, 10, cfg.Ingestion.TableGroupSize)
	assert.Equal(t, 1000, cfg.Ingestion.TXTChunkSize)
}

func TestLoad_InvalidBackend(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DOCCHAT_STORAGE_BACKEND", "postgres")

	_, err := Load("")
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
