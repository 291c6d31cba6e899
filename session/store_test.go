package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-catalog-client/api"
	"github.com/jrsteele09/go-catalog-client/internal/apitest"
	"github.com/jrsteele09/go-catalog-client/session"
	"github.com/jrsteele09/go-catalog-client/session/credfakes"
)

const (
	testEmail    = "reader@example.com"
	testPassword = "secret1"
)

type testFixture struct {
	srv   *apitest.Server
	creds *credfakes.FakeCredentialRepo
	store *session.Store
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.SeedUser(testEmail, testPassword)

	creds := credfakes.NewFakeCredentialRepo()
	client := api.New(srv.URL(), api.WithTokenSource(creds))
	store, err := session.New(client, creds)
	require.NoError(t, err)

	return &testFixture{srv: srv, creds: creds, store: store}
}

func TestLoginTransitionsToAuthenticated(t *testing.T) {
	f := setupTestFixture(t)

	user, err := f.store.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testEmail, user.Email)

	snap := f.store.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, testEmail, snap.User.Email)
	require.Empty(t, snap.Err)
	require.NotEmpty(t, f.creds.Token(), "credentials must be persisted on login")
}

func TestLoginValidationFailsWithoutARequest(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.store.Login(context.Background(), "not-an-email", testPassword)
	require.ErrorIs(t, err, session.InvalidEmailErr)
	require.Zero(t, f.srv.Hits("POST", "/api/auth/login"), "validation failures must not reach the network")

	_, err = f.store.Login(context.Background(), testEmail, "")
	require.ErrorIs(t, err, session.PasswordRequiredErr)
	require.Zero(t, f.srv.Hits("POST", "/api/auth/login"))
}

func TestLoginFailureSurfacesServerMessage(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.store.Login(context.Background(), testEmail, "wrongpw")
	require.Error(t, err)
	require.Contains(t, err.Error(), "Invalid email or password")

	snap := f.store.Snapshot()
	require.False(t, snap.IsAuthenticated())
	require.Equal(t, "Invalid email or password", snap.Err)
}

func TestLoginWithoutUserDataFails(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"token":"t"}}`))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	creds := credfakes.NewFakeCredentialRepo()
	store, err := session.New(api.New(srv.URL, api.WithTokenSource(creds)), creds)
	require.NoError(t, err)

	_, err = store.Login(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, session.NoUserDataErr)
	require.False(t, store.IsAuthenticated())
	require.Empty(t, creds.Token())
}

func TestLoginAcceptsTopLevelPayload(t *testing.T) {
	// Older servers return user and token at the top level instead of under
	// the envelope's data field.
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"user":{"id":"u1","email":"reader@example.com"},"token":"opaque-token"}`))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	creds := credfakes.NewFakeCredentialRepo()
	store, err := session.New(api.New(srv.URL, api.WithTokenSource(creds)), creds)
	require.NoError(t, err)

	user, err := store.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, testEmail, user.Email)
	require.Equal(t, "opaque-token", creds.Token())
}

func TestRegisterNeverAuthenticates(t *testing.T) {
	f := setupTestFixture(t)

	user, err := f.store.Register(context.Background(), "new@example.com", testPassword, testPassword)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", user.Email)

	require.False(t, f.store.IsAuthenticated(), "registration must not sign the user in")
	require.Empty(t, f.creds.Token())

	// The account exists, so logging in now works.
	_, err = f.store.Login(context.Background(), "new@example.com", testPassword)
	require.NoError(t, err)
	require.True(t, f.store.IsAuthenticated())
}

func TestRegisterDuplicateEmailFails(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.store.Register(context.Background(), testEmail, testPassword, testPassword)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Email already exists")
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.store.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	epoch := f.store.Epoch()
	f.store.Logout(session.LogoutManual)
	f.store.Logout(session.LogoutIdle)

	require.False(t, f.store.IsAuthenticated())
	require.Empty(t, f.creds.Token())
	require.Greater(t, f.store.Epoch(), epoch)
}

func TestLogoutDiscardsInFlightLogin(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"user":{"id":"u1","email":"reader@example.com"},"token":"late-token"}}`))
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	creds := credfakes.NewFakeCredentialRepo()
	store, err := session.New(api.New(srv.URL, api.WithTokenSource(creds)), creds)
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := store.Login(context.Background(), testEmail, testPassword)
		errs <- err
	}()

	<-entered
	store.Logout(session.LogoutRemote)
	close(release)

	require.ErrorIs(t, <-errs, session.SessionEndedErr)
	require.False(t, store.IsAuthenticated(), "a late login response must not resurrect the session")
	require.Empty(t, creds.Token())
}

func TestRehydrateRestoresOpaqueToken(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	creds := credfakes.NewFakeCredentialRepo()
	creds.Save(&session.User{ID: "u1", Email: testEmail}, "opaque-token")

	store, err := session.New(api.New(srv.URL(), api.WithTokenSource(creds)), creds)
	require.NoError(t, err)

	snap := store.Snapshot()
	require.True(t, snap.IsAuthenticated())
	require.Equal(t, testEmail, snap.User.Email)
}

func TestRehydrateClearsExpiredJWT(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	expired := signTestToken(t, time.Now().Add(-time.Hour))
	creds := credfakes.NewFakeCredentialRepo()
	creds.Save(&session.User{ID: "u1", Email: testEmail}, expired)

	store, err := session.New(api.New(srv.URL(), api.WithTokenSource(creds)), creds)
	require.NoError(t, err)

	require.False(t, store.IsAuthenticated())
	require.Empty(t, creds.Token())
	require.Equal(t, 1, creds.ClearCalls)
}

func TestRehydrateKeepsUnexpiredJWT(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	token := signTestToken(t, time.Now().Add(time.Hour))
	creds := credfakes.NewFakeCredentialRepo()
	creds.Save(&session.User{ID: "u1", Email: testEmail}, token)

	store, err := session.New(api.New(srv.URL(), api.WithTokenSource(creds)), creds)
	require.NoError(t, err)
	require.True(t, store.IsAuthenticated())
	require.Zero(t, creds.ClearCalls)
}

func TestSubscribersObserveTransitions(t *testing.T) {
	f := setupTestFixture(t)

	var states []session.State
	cancel := f.store.Subscribe(func(snap session.Snapshot) {
		states = append(states, snap.State)
	})

	_, err := f.store.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Contains(t, states, session.StateAuthenticated)

	f.store.Logout(session.LogoutManual)
	require.Equal(t, session.StateAnonymous, states[len(states)-1])

	cancel()
	seen := len(states)
	f.store.Logout(session.LogoutManual)
	require.Len(t, states, seen, "cancelled subscribers must not be notified")
}

func signTestToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwtlib.MapClaims{"sub": "u1", "exp": exp.Unix()}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}
