package config

import "time"

type Config interface {
	EnvConfig
	TimerConfig
}

type EnvConfig interface {
	GetBaseURL() string
	GetAppName() string
	GetStateFile() string
	GetCSRFInitPath() string
	GetEnv() string
}

// TimerConfig groups every duration the session machinery depends on. All of
// them are injectable so the state machines stay testable without wall-clock
// waits.
type TimerConfig interface {
	GetIdleLimit() time.Duration
	GetWarningLimit() time.Duration
	GetCheckInterval() time.Duration
	GetSearchDebounce() time.Duration
	GetSyncPollInterval() time.Duration
}

type mainConfig struct {
	EnvVars
	Timers
}

func New() Config {
	return mainConfig{}
}
