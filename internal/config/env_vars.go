package config

import (
	"os"
	"path/filepath"
)

const (
	baseURLVar   = "CATALOG_API_URL"
	appNameVar   = "CATALOG_APP_NAME"
	stateFileVar = "CATALOG_STATE_FILE"
	csrfPathVar  = "CATALOG_CSRF_PATH"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:5000")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Catalog Client")
}

// GetStateFile returns the path of the shared state file standing in for the
// origin-scoped storage tabs would share in a browser.
func (EnvVars) GetStateFile() string {
	if v := os.Getenv(stateFileVar); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "catalog-state.json"
	}
	return filepath.Join(home, ".catalog-client", "state.json")
}

// GetCSRFInitPath returns the harmless GET endpoint used to obtain a CSRF
// token. Empty disables the CSRF capability entirely.
func (EnvVars) GetCSRFInitPath() string {
	return GetEnv(csrfPathVar, "")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
