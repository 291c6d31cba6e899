package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-catalog-client/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.New()

	require.Equal(t, "http://localhost:5000", cfg.GetBaseURL())
	require.Equal(t, "Catalog Client", cfg.GetAppName())
	require.Empty(t, cfg.GetCSRFInitPath(), "CSRF is off unless configured")
	require.Equal(t, 15*time.Minute, cfg.GetIdleLimit())
	require.Equal(t, 14*time.Minute, cfg.GetWarningLimit())
	require.Equal(t, 30*time.Second, cfg.GetCheckInterval())
	require.Equal(t, 400*time.Millisecond, cfg.GetSearchDebounce())
	require.Equal(t, time.Second, cfg.GetSyncPollInterval())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_API_URL", "https://api.example.com")
	t.Setenv("CATALOG_APP_NAME", "Script Labs")
	t.Setenv("CATALOG_CSRF_PATH", "/health")
	t.Setenv("CATALOG_IDLE_LIMIT", "5m")
	t.Setenv("CATALOG_SEARCH_DEBOUNCE", "100ms")

	cfg := config.New()

	require.Equal(t, "https://api.example.com", cfg.GetBaseURL())
	require.Equal(t, "Script Labs", cfg.GetAppName())
	require.Equal(t, "/health", cfg.GetCSRFInitPath())
	require.Equal(t, 5*time.Minute, cfg.GetIdleLimit())
	require.Equal(t, 100*time.Millisecond, cfg.GetSearchDebounce())
}

func TestUnparsableDurationsFallBack(t *testing.T) {
	t.Setenv("CATALOG_IDLE_LIMIT", "soon")
	t.Setenv("CATALOG_CHECK_INTERVAL", "-10s")

	cfg := config.New()

	require.Equal(t, 15*time.Minute, cfg.GetIdleLimit())
	require.Equal(t, 30*time.Second, cfg.GetCheckInterval())
}

func TestFileOverlay(t *testing.T) {
	t.Setenv("CATALOG_API_URL", "https://from-env.example.com")

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := []byte("base_url: https://from-file.example.com\nidle_limit: 20m\nsearch_debounce: 250ms\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	require.Equal(t, "https://from-file.example.com", cfg.GetBaseURL(), "the file wins over the environment")
	require.Equal(t, 20*time.Minute, cfg.GetIdleLimit())
	require.Equal(t, 250*time.Millisecond, cfg.GetSearchDebounce())

	// Fields absent from the file fall through to env/default values.
	require.Equal(t, "Catalog Client", cfg.GetAppName())
	require.Equal(t, 14*time.Minute, cfg.GetWarningLimit())
}

func TestFileOverlayErrors(t *testing.T) {
	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: [oops"), 0o600))
	_, err = config.LoadFile(path)
	require.Error(t, err)
}
