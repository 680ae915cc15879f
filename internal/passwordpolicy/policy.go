// Package passwordpolicy mirrors the service's password rules so forms can
// reject a bad password before sending it. The service stays authoritative.
package passwordpolicy

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinLength is the minimum password length in characters.
const MinLength = 12

// punctuation is the ASCII punctuation set the service counts as special
// characters.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var (
	ErrTooShort   = fmt.Errorf("Password must be at least %d characters long.", MinLength)
	ErrNoLower    = errors.New("Password must include at least one lowercase letter.")
	ErrNoUpper    = errors.New("Password must include at least one uppercase letter.")
	ErrNoDigit    = errors.New("Password must include at least one number.")
	ErrNoSpecial  = errors.New("Password must include at least one special character.")
	ErrWhitespace = errors.New("Password cannot contain whitespace characters.")
	ErrMismatch   = errors.New("Passwords must match")
)

// Violations returns every rule password breaks, length first. It returns
// nil for an acceptable password.
func Violations(password string) []error {
	var errs []error

	if utf8.RuneCountInString(password) < MinLength {
		errs = append(errs, ErrTooShort)
	}
	if !strings.ContainsFunc(password, unicode.IsLower) {
		errs = append(errs, ErrNoLower)
	}
	if !strings.ContainsFunc(password, unicode.IsUpper) {
		errs = append(errs, ErrNoUpper)
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		errs = append(errs, ErrNoDigit)
	}
	if !strings.ContainsAny(password, punctuation) {
		errs = append(errs, ErrNoSpecial)
	}
	if strings.ContainsFunc(password, unicode.IsSpace) {
		errs = append(errs, ErrWhitespace)
	}

	return errs
}

// Check returns the first rule password breaks, or nil.
func Check(password string) error {
	if errs := Violations(password); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// CheckNew validates a new password and its confirmation. The length rule
// is reported before a mismatch, the remaining rules after it.
func CheckNew(password, confirm string) error {
	if utf8.RuneCountInString(password) < MinLength {
		return ErrTooShort
	}
	if password != confirm {
		return ErrMismatch
	}
	return Check(password)
}
