package authsession

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// MinPasswordLength is the shortest password the forms accept.
const MinPasswordLength = 6

// Form field names used as FieldErrors keys.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
)

// FieldErrors maps a form field to its first failing check. It wraps
// ErrInvalidInput.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return ErrInvalidInput.Error() + ": " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() error {
	return ErrInvalidInput
}

func (fe FieldErrors) orNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// ValidateLogin checks the password login form.
func ValidateLogin(email, password string) error {
	fe := FieldErrors{}
	checkEmail(fe, email, "Please enter a valid email address")
	switch {
	case password == "":
		fe[FieldPassword] = "Password is required"
	case len(password) < MinPasswordLength:
		fe[FieldPassword] = "Password must be at least 6 characters"
	}
	return fe.orNil()
}

// ValidateRegistration checks the sign-up form.
func ValidateRegistration(name, email, password, confirm string) error {
	fe := FieldErrors{}
	if strings.TrimSpace(name) == "" {
		fe[FieldName] = "Name is required"
	}
	checkEmail(fe, email, "Email is invalid")
	switch {
	case password == "":
		fe[FieldPassword] = "Password is required"
	case len(password) < MinPasswordLength:
		fe[FieldPassword] = "Password must be at least 6 characters"
	case !mixedPassword(password):
		fe[FieldPassword] = "Password must contain uppercase, lowercase, and number"
	}
	checkConfirm(fe, password, confirm)
	return fe.orNil()
}

// ValidateForgotPassword checks the reset request form.
func ValidateForgotPassword(email string) error {
	fe := FieldErrors{}
	checkEmail(fe, email, "Please enter a valid email")
	return fe.orNil()
}

// ValidatePasswordReset checks the new password form.
func ValidatePasswordReset(password, confirm string) error {
	fe := FieldErrors{}
	switch {
	case password == "":
		fe[FieldPassword] = "Password is required"
	case len(password) < MinPasswordLength || !mixedPassword(password):
		fe[FieldPassword] = "Please ensure your password meets all requirements"
	}
	checkConfirm(fe, password, confirm)
	return fe.orNil()
}

func checkEmail(fe FieldErrors, email, invalid string) {
	switch {
	case strings.TrimSpace(email) == "":
		fe[FieldEmail] = "Email is required"
	case !emailPattern.MatchString(email):
		fe[FieldEmail] = invalid
	}
}

func checkConfirm(fe FieldErrors, password, confirm string) {
	switch {
	case confirm == "":
		fe[FieldConfirmPassword] = "Please confirm your password"
	case confirm != password:
		fe[FieldConfirmPassword] = "Passwords do not match"
	}
}

func mixedPassword(p string) bool {
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
