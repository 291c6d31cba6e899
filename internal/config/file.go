package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jrsteele09/go-catalog-client/internal/utils"
)

// fileValues is the optional YAML overlay. Every field overrides the
// corresponding env/default value when set; durations use Go syntax ("15m").
type fileValues struct {
	BaseURL        string `yaml:"base_url"`
	AppName        string `yaml:"app_name"`
	StateFile      string `yaml:"state_file"`
	CSRFInitPath   string `yaml:"csrf_init_path"`
	IdleLimit      string `yaml:"idle_limit"`
	WarningLimit   string `yaml:"warning_limit"`
	CheckInterval  string `yaml:"check_interval"`
	SearchDebounce string `yaml:"search_debounce"`
	SyncPoll       string `yaml:"sync_poll_interval"`
}

type fileConfig struct {
	mainConfig
	values fileValues
}

var _ Config = fileConfig{}

// LoadFile returns a Config that overlays the YAML file at path on top of the
// env-backed defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "[LoadFile] read config file")
	}
	var values fileValues
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, "[LoadFile] parse config file")
	}
	return fileConfig{values: values}, nil
}

func (f fileConfig) GetBaseURL() string {
	return utils.FirstNonEmpty(f.values.BaseURL, f.mainConfig.GetBaseURL())
}

func (f fileConfig) GetAppName() string {
	return utils.FirstNonEmpty(f.values.AppName, f.mainConfig.GetAppName())
}

func (f fileConfig) GetStateFile() string {
	return utils.FirstNonEmpty(f.values.StateFile, f.mainConfig.GetStateFile())
}

func (f fileConfig) GetCSRFInitPath() string {
	return utils.FirstNonEmpty(f.values.CSRFInitPath, f.mainConfig.GetCSRFInitPath())
}

func (f fileConfig) GetIdleLimit() time.Duration {
	return f.overlayDuration(f.values.IdleLimit, f.mainConfig.GetIdleLimit())
}

func (f fileConfig) GetWarningLimit() time.Duration {
	return f.overlayDuration(f.values.WarningLimit, f.mainConfig.GetWarningLimit())
}

func (f fileConfig) GetCheckInterval() time.Duration {
	return f.overlayDuration(f.values.CheckInterval, f.mainConfig.GetCheckInterval())
}

func (f fileConfig) GetSearchDebounce() time.Duration {
	return f.overlayDuration(f.values.SearchDebounce, f.mainConfig.GetSearchDebounce())
}

func (f fileConfig) GetSyncPollInterval() time.Duration {
	return f.overlayDuration(f.values.SyncPoll, f.mainConfig.GetSyncPollInterval())
}

func (fileConfig) overlayDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
