package api

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const csrfErrorCode = "CSRF_TOKEN_INVALID"

// csrfGuard caches the CSRF token in memory and refreshes it via a harmless
// GET when the server rejects a stale one. Concurrent refreshes collapse into
// a single request.
type csrfGuard struct {
	initPath string
	group    singleflight.Group

	mu    sync.RWMutex
	token string
}

func newCSRFGuard(initPath string) *csrfGuard {
	return &csrfGuard{initPath: initPath}
}

func (g *csrfGuard) current() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// capture stores a token rotated by the server. Empty values are ignored.
func (g *csrfGuard) capture(token string) {
	if token == "" {
		return
	}
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

// refresh fetches a new token from the init path. The token itself arrives
// through the response header, which roundTrip feeds back via capture.
func (g *csrfGuard) refresh(ctx context.Context, c *Client) error {
	_, err, _ := g.group.Do("refresh", func() (any, error) {
		if _, _, err := c.roundTrip(ctx, http.MethodGet, g.initPath, nil); err != nil {
			return nil, errors.Wrap(err, "[csrfGuard.refresh] init request failed")
		}
		return nil, nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("CSRF token refresh failed")
		return err
	}
	if g.current() == "" {
		return errors.New("[csrfGuard.refresh] server did not issue a token")
	}
	return nil
}

// isCSRFFailure recognises the server's CSRF rejection: a 403 carrying the
// dedicated error code, or failing that a message mentioning csrf.
func isCSRFFailure(status int, env *Envelope) bool {
	if status != http.StatusForbidden {
		return false
	}
	if env.Error != nil && env.Error.Code == csrfErrorCode {
		return true
	}
	return strings.Contains(strings.ToLower(env.FailureMessage(status)), "csrf")
}
