package session

import (
	"regexp"
	"strings"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateCredentials checks the login inputs before any request is issued.
// Failures are reported per field via FieldError.
func ValidateCredentials(email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return &FieldError{Field: "password", Err: PasswordRequiredErr}
	}
	return nil
}

// ValidateRegistration applies the stricter registration rules: email shape,
// minimum password length and the confirm-password match.
func ValidateRegistration(email, password, confirm string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return &FieldError{Field: "password", Err: PasswordRequiredErr}
	}
	if len(password) < minPasswordLength {
		return &FieldError{Field: "password", Err: PasswordTooShortErr}
	}
	if confirm != password {
		return &FieldError{Field: "confirmPassword", Err: PasswordMismatchErr}
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &FieldError{Field: "email", Err: EmailRequiredErr}
	}
	if !emailPattern.MatchString(email) {
		return &FieldError{Field: "email", Err: InvalidEmailErr}
	}
	return nil
}
