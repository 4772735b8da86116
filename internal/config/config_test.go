package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("MODE", "")
	t.Setenv("SCORING_MAX_INVALID_FRACTION", "")
	t.Setenv("SCORING_FETCH_TIMEOUT", "")
	cfg := FromEnv()
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, 0.10, cfg.Scoring.MaxInvalidFraction)
	assert.Equal(t, 10*time.Second, cfg.Scoring.FetchTimeout)
	assert.Equal(t, cfg.CORSOriginsOffline, cfg.CORSOrigins())
}

func TestFromEnv_ScoringKnobs(t *testing.T) {
	t.Setenv("SCORING_MAX_INVALID_FRACTION", "0.25")
	t.Setenv("SCORING_FETCH_TIMEOUT", "1500ms")
	t.Setenv("CORS_ORIGINS_OFFLINE", " http://a , ,http://b")
	cfg := FromEnv()
	assert.Equal(t, 0.25, cfg.Scoring.MaxInvalidFraction)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scoring.FetchTimeout)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.CORSOriginsOffline)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("HTTP_ADDR", ":9999")
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: online
db_driver: postgres
scoring:
  max_invalid_fraction: 0.05
  fetch_timeout: 3s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeOnline, cfg.Mode)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, ":9999", cfg.HTTPAddr, "keys absent from the file keep env values")
	assert.Equal(t, 0.05, cfg.Scoring.MaxInvalidFraction)
	assert.Equal(t, 3*time.Second, cfg.Scoring.FetchTimeout)
	assert.Equal(t, cfg.CORSOriginsOnline, cfg.CORSOrigins())
}

func TestLoad_Rejects(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("scoring:\n  max_invalid_fraction: 2\n"), 0o600))
	_, err := Load(bad)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_DRIVER", "")
	_, err = Load("")
	assert.NoError(t, err)

	t.Setenv("DB_DRIVER", "oracle")
	_, err = Load("")
	assert.Error(t, err)
}
