package config

import "time"

// Defaults mirror the production values: a session ends after 15 minutes of
// inactivity, a warning fires one minute before that, the idle check runs
// every 30 seconds and search input debounces for 400ms.
const (
	idleLimitVar      = "CATALOG_IDLE_LIMIT"
	warningLimitVar   = "CATALOG_WARNING_LIMIT"
	checkIntervalVar  = "CATALOG_CHECK_INTERVAL"
	searchDebounceVar = "CATALOG_SEARCH_DEBOUNCE"
	syncPollVar       = "CATALOG_SYNC_POLL_INTERVAL"

	defaultIdleLimit      = 15 * time.Minute
	defaultWarningLimit   = 14 * time.Minute
	defaultCheckInterval  = 30 * time.Second
	defaultSearchDebounce = 400 * time.Millisecond
	defaultSyncPoll       = 1 * time.Second
)

type Timers struct{}

var _ TimerConfig = Timers{}

func (Timers) GetIdleLimit() time.Duration {
	return durationEnv(idleLimitVar, defaultIdleLimit)
}

func (Timers) GetWarningLimit() time.Duration {
	return durationEnv(warningLimitVar, defaultWarningLimit)
}

func (Timers) GetCheckInterval() time.Duration {
	return durationEnv(checkIntervalVar, defaultCheckInterval)
}

func (Timers) GetSearchDebounce() time.Duration {
	return durationEnv(searchDebounceVar, defaultSearchDebounce)
}

func (Timers) GetSyncPollInterval() time.Duration {
	return durationEnv(syncPollVar, defaultSyncPoll)
}

// durationEnv parses a Go duration string from the environment, falling back
// to the default on absence or parse failure.
func durationEnv(key string, defaultValue time.Duration) time.Duration {
	v := GetEnv(key, "")
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
