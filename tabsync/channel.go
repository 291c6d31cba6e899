// Package tabsync makes activity and logout events visible across tabs that
// share an origin-scoped store. It publishes two keys: the last-activity
// timestamp, advanced monotonically, and a forced-logout marker that commands
// every observing tab to end its session.
package tabsync

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-catalog-client/storage"
)

// Shared keys. The values are wall-clock milliseconds in decimal.
const (
	ActivityKey = "app:lastActivity"
	LogoutKey   = "app:forceLogout"
)

// Channel broadcasts and observes session events over a storage.KV. A nil
// store degrades to storage.Discard so single-tab operation is unaffected.
type Channel struct {
	kv         storage.KV
	onActivity func(time.Time)
	onLogout   func()
	cancel     func()
}

// New creates a Channel over kv. Handlers must be registered before Listen.
func New(kv storage.KV) *Channel {
	if kv == nil {
		kv = storage.Discard
	}
	return &Channel{kv: kv}
}

// OnActivity registers the handler for foreign activity updates. Monotonic
// adoption is the consumer's merge rule: the handler receives every observed
// timestamp and decides whether it advances local state.
func (c *Channel) OnActivity(fn func(time.Time)) {
	c.onActivity = fn
}

// OnForcedLogout registers the handler invoked when any tab announces a
// logout. This is a broadcast command, not a timestamp to compare: the
// handler fires regardless of local activity recency.
func (c *Channel) OnForcedLogout(fn func()) {
	c.onLogout = fn
}

// Listen subscribes to store changes and dispatches them to the registered
// handlers until Close is called.
func (c *Channel) Listen() {
	if c.cancel != nil {
		return
	}
	c.cancel = c.kv.Watch(func(ev storage.Event) {
		switch ev.Key {
		case ActivityKey:
			ts, ok := parseMillis(ev.Value)
			if !ok {
				return
			}
			if c.onActivity != nil {
				c.onActivity(ts)
			}
		case LogoutKey:
			log.Debug().Str("origin", ev.Origin).Msg("forced logout announced by another tab")
			if c.onLogout != nil {
				c.onLogout()
			}
		}
	})
}

// Close unsubscribes from the store.
func (c *Channel) Close() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// PublishActivity records ts as the shared last-activity timestamp.
func (c *Channel) PublishActivity(ts time.Time) {
	c.kv.Set(ActivityKey, formatMillis(ts))
}

// AnnounceLogout writes the forced-logout marker, commanding other tabs to
// end their sessions.
func (c *Channel) AnnounceLogout(ts time.Time) {
	c.kv.Set(LogoutKey, formatMillis(ts))
}

// LastActivity returns the shared activity timestamp, when present and valid.
func (c *Channel) LastActivity() (time.Time, bool) {
	raw, ok := c.kv.Get(ActivityKey)
	if !ok {
		return time.Time{}, false
	}
	return parseMillis(raw)
}

func formatMillis(ts time.Time) string {
	return strconv.FormatInt(ts.UnixMilli(), 10)
}

func parseMillis(raw string) (time.Time, bool) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
