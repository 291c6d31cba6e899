package session

import "github.com/pkg/errors"

var (
	NoUserDataErr       = errors.New("login succeeded but returned no user data")
	EmailRequiredErr    = errors.New("email is required")
	InvalidEmailErr     = errors.New("invalid email format")
	PasswordRequiredErr = errors.New("password is required")
	PasswordTooShortErr = errors.New("password must be at least 6 characters")
	PasswordMismatchErr = errors.New("passwords do not match")
)

// FieldError is a client-side validation failure attributed to a single input
// field. It blocks the request entirely: no network call is made for a
// payload that cannot pass validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
