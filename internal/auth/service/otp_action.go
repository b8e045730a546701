package service

import "github.com/aussiebroadwan/bartab-accounts/internal/auth/mail"

// OTPAction is what a verified one-time code unlocks.
type OTPAction string

const (
	OTPActionLogin         OTPAction = "login"
	OTPActionResetPassword OTPAction = "resetPassword"
	OTPActionChangeDevice  OTPAction = "changeDevice"
)

// ParseOTPAction returns ErrInvalidAction for anything but the three
// known actions.
func ParseOTPAction(s string) (OTPAction, error) {
	switch a := OTPAction(s); a {
	case OTPActionLogin, OTPActionResetPassword, OTPActionChangeDevice:
		return a, nil
	default:
		return "", ErrInvalidAction
	}
}

// otpPurpose is the purpose a code must have been issued for to complete
// the action.
func (a OTPAction) otpPurpose() mail.Purpose {
	switch a {
	case OTPActionResetPassword:
		return mail.PurposePasswordReset
	case OTPActionChangeDevice:
		return mail.PurposeChangeDevice
	default:
		return mail.PurposeLogin
	}
}

// ResetMethod is how a forgotten password is recovered.
type ResetMethod string

const (
	ResetByLink ResetMethod = "link"
	ResetByOTP  ResetMethod = "otp"
)

// ParseResetMethod defaults to ResetByLink.
func ParseResetMethod(s string) (ResetMethod, error) {
	switch m := ResetMethod(s); m {
	case "":
		return ResetByLink, nil
	case ResetByLink, ResetByOTP:
		return m, nil
	default:
		return "", ErrInvalidMethod
	}
}
