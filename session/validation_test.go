package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-catalog-client/session"
)

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "reader@example.com", password: "secret1"},
		{name: "empty email", email: "", password: "secret1", wantErr: session.EmailRequiredErr},
		{name: "whitespace email", email: "   ", password: "secret1", wantErr: session.EmailRequiredErr},
		{name: "missing at sign", email: "reader.example.com", password: "secret1", wantErr: session.InvalidEmailErr},
		{name: "missing domain dot", email: "reader@example", password: "secret1", wantErr: session.InvalidEmailErr},
		{name: "empty password", email: "reader@example.com", password: "", wantErr: session.PasswordRequiredErr},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := session.ValidateCredentials(tc.email, tc.password)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
		wantErr  error
	}{
		{name: "valid", email: "reader@example.com", password: "secret1", confirm: "secret1"},
		{name: "short password", email: "reader@example.com", password: "abc", confirm: "abc", wantErr: session.PasswordTooShortErr},
		{name: "mismatched confirmation", email: "reader@example.com", password: "secret1", confirm: "secret2", wantErr: session.PasswordMismatchErr},
		{name: "invalid email", email: "nope", password: "secret1", confirm: "secret1", wantErr: session.InvalidEmailErr},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := session.ValidateRegistration(tc.email, tc.password, tc.confirm)
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestFieldErrorNamesTheField(t *testing.T) {
	err := session.ValidateRegistration("reader@example.com", "secret1", "other")
	var fieldErr *session.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "confirmPassword", fieldErr.Field)
	require.Equal(t, "confirmPassword: passwords do not match", err.Error())
}
