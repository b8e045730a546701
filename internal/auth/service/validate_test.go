package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStrongPassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		password string
		want     bool
	}{
		{"Str0ng!Pass", true},
		{"Aa1@aaaa", true},
		{"Aa1@aaa", false},     // too short
		{"str0ng!pass", false}, // no upper
		{"STR0NG!PASS", false}, // no lower
		{"Strong!Pass", false}, // no digit
		{"Str0ngPass", false},  // no special
		{"Str0ng!Pass#", false},
		{"Str0ng! Pass", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, strongPassword(tt.password), tt.password)
	}
}

func TestValidEmail(t *testing.T) {
	t.Parallel()

	require.True(t, validEmail("alice@example.com"))
	require.True(t, validEmail("a.b+c@sub.example.org"))

	for _, s := range []string{"", "alice", "alice@", "@example.com", "Alice <alice@example.com>", "alice@localhost"} {
		require.False(t, validEmail(s), s)
	}
}

func TestValidationHelpers(t *testing.T) {
	t.Parallel()

	v := &ValidationError{}
	checkPhone(v, "phone", "0612345678")
	checkPhone(v, "phone2", "123456789012345")
	checkName(v, "name", "  Jo ")
	checkName(v, "name2", "Élodie")
	require.NoError(t, v.orNil())

	checkPhone(v, "phone", "+33612345678")
	checkPhone(v, "short", "123456789")
	checkName(v, "name", "J")
	checkRequired(v, "address", "   ")
	require.Error(t, v.orNil())
	require.Len(t, v.Fields, 4)
	require.Contains(t, v.Error(), "address: is required")

	require.True(t, validOTPFormat("012345"))
	require.False(t, validOTPFormat("12345"))
	require.False(t, validOTPFormat("12345a"))
	require.False(t, validOTPFormat("１２３４５６"))
}

func TestParseOTPAction(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"login", "resetPassword", "changeDevice"} {
		a, err := ParseOTPAction(s)
		require.NoError(t, err)
		require.Equal(t, OTPAction(s), a)
	}
	for _, s := range []string{"", "Login", "reset_password", "drop"} {
		_, err := ParseOTPAction(s)
		require.ErrorIs(t, err, ErrInvalidAction, s)
	}
}

func TestParseResetMethod(t *testing.T) {
	t.Parallel()

	m, err := ParseResetMethod("")
	require.NoError(t, err)
	require.Equal(t, ResetByLink, m)

	m, err = ParseResetMethod("otp")
	require.NoError(t, err)
	require.Equal(t, ResetByOTP, m)

	_, err = ParseResetMethod("sms")
	require.ErrorIs(t, err, ErrInvalidMethod)
}
