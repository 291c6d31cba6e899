// Package idle detects user inactivity and forces a logout after a fixed
// threshold, with a one-time warning beforehand. Detection is polling based:
// a periodic check compares the clock against the last recorded activity,
// which keeps the state machine deterministic under an injected clock.
package idle

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-catalog-client/tabsync"
)

const (
	defaultIdleLimit     = 15 * time.Minute
	defaultWarningLimit  = 14 * time.Minute
	defaultCheckInterval = 30 * time.Second
)

// Watcher tracks activity for one tab. The host feeds it interaction signals
// through Touch and visibility restores through Visible; the watcher drives
// the timeout callback and announces forced logouts on the sync channel.
type Watcher struct {
	idleLimit     time.Duration
	warningLimit  time.Duration
	checkInterval time.Duration
	nowTime       func() time.Time

	channel   *tabsync.Channel
	active    func() bool // gates the warning on an authenticated session
	onTimeout func()
	onWarning func(remaining time.Duration)

	mu           sync.Mutex
	lastActivity time.Time
	warned       bool
	stop         chan struct{} // nil when not running
}

// Option defines a function type to modify the Watcher instance.
type Option func(*Watcher)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(w *Watcher) { w.nowTime = nowFunc }
}

// WithIdleLimit overrides the inactivity duration after which the session is
// forcibly ended.
func WithIdleLimit(d time.Duration) Option {
	return func(w *Watcher) { w.idleLimit = d }
}

// WithWarningLimit overrides the inactivity duration at which the one-time
// warning fires. Must be less than the idle limit.
func WithWarningLimit(d time.Duration) Option {
	return func(w *Watcher) { w.warningLimit = d }
}

// WithCheckInterval overrides how often the periodic idle check runs.
func WithCheckInterval(d time.Duration) Option {
	return func(w *Watcher) { w.checkInterval = d }
}

// WithChannel attaches the cross-tab sync channel. Activity is published to
// it and forced logouts are announced on it.
func WithChannel(c *tabsync.Channel) Option {
	return func(w *Watcher) { w.channel = c }
}

// WithSessionCheck provides the predicate deciding whether a session is
// active; the warning only fires for an active session.
func WithSessionCheck(fn func() bool) Option {
	return func(w *Watcher) { w.active = fn }
}

// WithWarning registers the one-time warning callback, invoked with the time
// remaining until forced logout.
func WithWarning(fn func(remaining time.Duration)) Option {
	return func(w *Watcher) { w.onWarning = fn }
}

// New creates a Watcher that invokes onTimeout when the idle limit is
// breached. The watcher is idle until Start is called.
func New(onTimeout func(), options ...Option) *Watcher {
	w := &Watcher{
		idleLimit:     defaultIdleLimit,
		warningLimit:  defaultWarningLimit,
		checkInterval: defaultCheckInterval,
		nowTime:       time.Now,
		onTimeout:     onTimeout,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// Start begins periodic idle checks, counting from now. Starting a running
// watcher is a no-op, so session transitions cannot leak tickers.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		return
	}
	w.lastActivity = w.nowTime()
	w.warned = false
	stop := make(chan struct{})
	w.stop = stop
	go w.run(stop)
}

// Stop cancels the periodic check. Idempotent; no timeout or warning fires
// after Stop returns the watcher to the stopped state.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Watcher) stopLocked() {
	if w.stop != nil {
		close(w.stop)
		w.stop = nil
	}
}

// Running reports whether periodic checks are active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stop != nil
}

func (w *Watcher) run(stop chan struct{}) {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// Touch records user activity: now becomes the last-activity timestamp, the
// shared channel is refreshed and warning eligibility resets.
func (w *Watcher) Touch() {
	now := w.nowTime()
	w.mu.Lock()
	if now.After(w.lastActivity) {
		w.lastActivity = now
	}
	w.warned = false
	w.mu.Unlock()

	if w.channel != nil {
		w.channel.PublishActivity(now)
	}
}

// ObserveRemote merges a foreign tab's activity timestamp. Adoption is
// monotonic: a stale tab can never rewind a fresher one.
func (w *Watcher) ObserveRemote(ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ts.After(w.lastActivity) {
		w.lastActivity = ts
	}
}

// Visible reconciles after the tab regains visibility: adopt the shared
// timestamp when it is newer, otherwise treat the regained focus as activity
// and refresh the shared value from local state.
func (w *Watcher) Visible() {
	if w.channel != nil {
		if stored, ok := w.channel.LastActivity(); ok {
			w.mu.Lock()
			if stored.After(w.lastActivity) {
				w.lastActivity = stored
				w.mu.Unlock()
				return
			}
			w.mu.Unlock()
		}
	}
	w.Touch()
}

// LastActivity returns the current local last-activity timestamp.
func (w *Watcher) LastActivity() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActivity
}

// check is the periodic idle evaluation. Breaching the idle limit stops the
// watcher, announces the forced logout to other tabs and invokes the timeout
// callback; entering the warning window fires the warning at most once per
// idle excursion.
func (w *Watcher) check() {
	sessionActive := w.active == nil || w.active()

	w.mu.Lock()
	if w.stop == nil {
		// Cancelled between the tick and this check.
		w.mu.Unlock()
		return
	}
	now := w.nowTime()
	idleFor := now.Sub(w.lastActivity)

	if idleFor >= w.idleLimit {
		w.stopLocked()
		w.mu.Unlock()
		log.Info().Dur("idleFor", idleFor).Msg("idle limit reached, forcing logout")
		if w.channel != nil {
			w.channel.AnnounceLogout(now)
		}
		if w.onTimeout != nil {
			w.onTimeout()
		}
		return
	}

	if idleFor >= w.warningLimit && !w.warned && sessionActive {
		w.warned = true
		remaining := w.idleLimit - idleFor
		w.mu.Unlock()
		log.Debug().Dur("remaining", remaining).Msg("inactivity warning")
		if w.onWarning != nil {
			w.onWarning(remaining)
		}
		return
	}
	w.mu.Unlock()
}
