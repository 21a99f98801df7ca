// Package validate implements credential validation for the signup, login
// and change-password forms, plus the password strength meter.
package validate

import (
	"fmt"
	"regexp"
	"unicode"
)

// emailRegex accepts local@domain.tld shapes: one @, a dot in the domain,
// no whitespace.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Result is the outcome of a single validator call. Message is set only
// on failure.
type Result struct {
	OK      bool
	Message string
}

func pass() Result {
	return Result{OK: true}
}

func fail(message string) Result {
	return Result{Message: message}
}

// Email checks that value is present and email-shaped.
func Email(value string) Result {
	if value == "" {
		return fail("Email is required")
	}
	if !emailRegex.MatchString(value) {
		return fail("Please enter a valid email address")
	}
	return pass()
}

// Password checks the password policy: at least 8 characters with a
// letter, a digit and a special character. fieldName names the field in
// failure messages ("Password", "New password").
func Password(value, fieldName string) Result {
	if fieldName == "" {
		fieldName = "Password"
	}
	if value == "" {
		return fail(fmt.Sprintf("%s is required", fieldName))
	}
	if len(value) < 8 || !hasLetter(value) || !hasDigit(value) || !hasSpecial(value) {
		return fail(fmt.Sprintf("%s must be at least 8 characters long and contain letters, numbers, and special characters", fieldName))
	}
	return pass()
}

// ConfirmPassword checks that confirm matches the primary password.
func ConfirmPassword(password, confirm string) Result {
	if password != confirm {
		return fail("Passwords do not match")
	}
	return pass()
}

// Strength scores a password 0-4: one point each for length >= 8, a
// letter, a digit and a special character.
func Strength(password string) int {
	score := 0
	if len(password) >= 8 {
		score++
	}
	if hasLetter(password) {
		score++
	}
	if hasDigit(password) {
		score++
	}
	if hasSpecial(password) {
		score++
	}
	return score
}

// StrengthWidth converts a strength score to a meter width percentage.
func StrengthWidth(score int) int {
	return score * 100 / 4
}

// StrengthColor maps a strength score to the meter color.
func StrengthColor(score int) string {
	switch {
	case score <= 1:
		return "#ff4d4d"
	case score <= 3:
		return "#ffa500"
	default:
		return "#4CAF50"
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasSpecial(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
