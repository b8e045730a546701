package service

import (
	netmail "net/mail"
	"strings"
	"unicode/utf8"

	"github.com/pquerna/otp"
)

const (
	minNameLen     = 2
	maxNameLen     = 30
	minPasswordLen = 8
	minPhoneDigits = 10
	maxPhoneDigits = 15

	passwordSpecials = "@$!%*?&"
)

// otpDigits is the length of every code the ledger issues.
var otpDigits = otp.DigitsSix

func checkName(v *ValidationError, field, value string) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < minNameLen || n > maxNameLen {
		v.add(field, "must be between 2 and 30 characters")
	}
}

func checkEmail(v *ValidationError, field, value string) {
	if !validEmail(value) {
		v.add(field, "must be a valid email address")
	}
}

// validEmail accepts a bare address only, no display name.
func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := netmail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func checkPassword(v *ValidationError, field, value string) {
	if !strongPassword(value) {
		v.add(field, "must be at least 8 characters and mix upper and lower case letters, digits and one of "+passwordSpecials)
	}
}

func strongPassword(s string) bool {
	if len(s) < minPasswordLen {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

func checkPhone(v *ValidationError, field, value string) {
	if n := len(value); n < minPhoneDigits || n > maxPhoneDigits || !allDigits(value) {
		v.add(field, "must be 10 to 15 digits")
	}
}

func checkRequired(v *ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required")
	}
}

// validOTPFormat reports whether s could be a code the ledger issued.
func validOTPFormat(s string) bool {
	return len(s) == otpDigits.Length() && allDigits(s)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
