// Package session holds the client's authentication state machine: a single
// source of truth for the current user identity, injected into whatever front
// end hosts it rather than reached through ambient globals.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-catalog-client/api"
)

const (
	loginPath    = "/api/auth/login"
	registerPath = "/api/auth/register"
)

// State is the session lifecycle state. Unknown exists only before
// rehydration completes; New resolves it before returning, so consumers never
// observe it.
type State int

const (
	StateUnknown State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// LogoutReason distinguishes why a session ended.
type LogoutReason int

const (
	LogoutManual LogoutReason = iota // user action
	LogoutIdle                       // idle timeout, auto-triggered
	LogoutRemote                     // forced-logout broadcast from another tab
)

func (r LogoutReason) String() string {
	switch r {
	case LogoutIdle:
		return "idle"
	case LogoutRemote:
		return "remote"
	default:
		return "manual"
	}
}

// Snapshot is an immutable view of the store handed to subscribers.
type Snapshot struct {
	State   State
	User    *User
	Loading bool
	Err     string // last auth error message, "" when none
}

// IsAuthenticated reports whether a user is signed in.
func (s Snapshot) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}

// SessionEndedErr marks an auth result discarded because the session was torn
// down while the request was in flight. A late-arriving response must never
// resurrect a cleared session.
var SessionEndedErr = errors.New("session ended before the response arrived")

// Store is the auth session state machine. Login and register are serialized
// per instance; logout is idempotent and may race either of them, in which
// case the logout wins and the in-flight result is discarded.
type Store struct {
	client  *api.Client
	creds   CredentialRepo
	nowTime func() time.Time

	authMu sync.Mutex // serializes login/register network calls

	mu      sync.Mutex
	state   State
	user    *User
	loading int
	lastErr string
	epoch   uint64
	subs    map[int]func(Snapshot)
	nextSub int
}

// Option defines a function type to modify the Store instance.
type Option func(*Store)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// New creates a Store and synchronously rehydrates it from the credential
// repo, so the first state consumers observe is already Anonymous or
// Authenticated.
func New(client *api.Client, creds CredentialRepo, options ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("[session.New] api client is required")
	}
	if creds == nil {
		return nil, errors.New("[session.New] credential repo is required")
	}

	s := &Store{
		client:  client,
		creds:   creds,
		nowTime: time.Now,
		state:   StateUnknown,
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range options {
		opt(s)
	}
	s.rehydrate()
	return s, nil
}

// rehydrate restores the persisted session. A persisted JWT whose expiry has
// passed is discarded rather than restored; opaque tokens carry no expiry the
// client can inspect and are restored as-is.
func (s *Store) rehydrate() {
	user, token := s.creds.Load()
	if token != "" && tokenExpired(token, s.nowTime()) {
		log.Debug().Msg("persisted token has expired, clearing session")
		s.creds.Clear()
		user, token = nil, ""
	}

	s.mu.Lock()
	if user != nil && token != "" {
		s.state = StateAuthenticated
		s.user = user
	} else {
		s.state = StateAnonymous
	}
	s.mu.Unlock()
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authPayload is the shape login/register responses carry, either under the
// envelope's data field or, for older servers, at the top level.
type authPayload struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Login authenticates and transitions the store to Authenticated. A nominal
// success lacking a user identity is a hard failure (NoUserDataErr): the
// session would otherwise be inconsistent.
func (s *Store) Login(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateCredentials(email, password); err != nil {
		s.recordError(err)
		return nil, err
	}

	s.authMu.Lock()
	defer s.authMu.Unlock()

	epoch := s.beginCall()
	defer s.endCall()

	env, err := s.client.Post(ctx, loginPath, credentials{Email: email, Password: password})
	if err != nil {
		s.recordError(err)
		return nil, errors.Wrap(err, "[Store.Login] login request")
	}

	payload, err := extractAuth(env)
	if err != nil {
		s.recordError(err)
		return nil, errors.Wrap(err, "[Store.Login] decode login response")
	}
	if payload.User == nil {
		s.recordError(NoUserDataErr)
		return nil, NoUserDataErr
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		log.Debug().Msg("discarding login result, session was torn down mid-flight")
		return nil, SessionEndedErr
	}
	s.state = StateAuthenticated
	s.user = payload.User
	s.lastErr = ""
	s.creds.Save(payload.User, payload.Token)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.Info().Str("email", payload.User.Email).Msg("login succeeded")
	s.notify(snap)
	return payload.User, nil
}

// Register creates an account but never authenticates: the caller logs in
// afterwards. Envelope failures surface their message verbatim.
func (s *Store) Register(ctx context.Context, email, password, confirm string) (*User, error) {
	if err := ValidateRegistration(email, password, confirm); err != nil {
		s.recordError(err)
		return nil, err
	}

	s.authMu.Lock()
	defer s.authMu.Unlock()

	s.beginCall()
	defer s.endCall()

	env, err := s.client.Post(ctx, registerPath, credentials{Email: email, Password: password})
	if err != nil {
		s.recordError(err)
		return nil, errors.Wrap(err, "[Store.Register] register request")
	}

	payload, err := extractAuth(env)
	if err != nil {
		s.recordError(err)
		return nil, errors.Wrap(err, "[Store.Register] decode register response")
	}

	s.mu.Lock()
	s.lastErr = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return payload.User, nil
}

// Logout ends the session and clears the persisted credentials. It is
// idempotent: calling it repeatedly, or concurrently from the idle watcher
// and a user action, converges on Anonymous without error.
func (s *Store) Logout(reason LogoutReason) {
	s.mu.Lock()
	wasAuthenticated := s.state == StateAuthenticated
	s.state = StateAnonymous
	s.user = nil
	s.epoch++
	s.creds.Clear()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if wasAuthenticated {
		log.Info().Str("reason", reason.String()).Msg("session ended")
	}
	s.notify(snap)
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated
}

// Epoch increments on every logout. Callers holding results of requests
// issued under an earlier epoch must discard them.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Subscribe registers fn for state change notifications until the returned
// cancel func is called. fn must not call back into the Store.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:   s.state,
		Loading: s.loading > 0,
		Err:     s.lastErr,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// beginCall marks an auth mutation in flight and returns the epoch under
// which it was issued.
func (s *Store) beginCall() uint64 {
	s.mu.Lock()
	s.loading++
	s.lastErr = ""
	epoch := s.epoch
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return epoch
}

func (s *Store) endCall() {
	s.mu.Lock()
	s.loading--
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	targets := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		targets = append(targets, fn)
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(snap)
	}
}

// extractAuth decodes user and token from the envelope's data, falling back
// to the top level of the raw body for servers that predate the envelope.
func extractAuth(env *api.Envelope) (*authPayload, error) {
	var payload authPayload
	if err := env.DecodeData(&payload); err != nil {
		return nil, errors.Wrap(err, "[extractAuth] decode data payload")
	}
	if payload.User == nil && len(env.Raw) > 0 {
		var topLevel authPayload
		if err := json.Unmarshal(env.Raw, &topLevel); err == nil {
			if payload.User == nil {
				payload.User = topLevel.User
			}
			if payload.Token == "" {
				payload.Token = topLevel.Token
			}
		}
	}
	return &payload, nil
}

// tokenExpired inspects the unverified exp claim of a persisted JWT. The
// client holds no signing key, so this is a liveness check, not verification;
// tokens that do not parse as JWTs are treated as opaque and never expired.
func tokenExpired(raw string, now time.Time) bool {
	token, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
