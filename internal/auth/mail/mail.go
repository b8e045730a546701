// Package mail composes and delivers the account emails: verification
// links, one-time codes and password reset notices.
package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
)

// Message is a plain text email to a single recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Purpose selects the wording of a one-time code email.
type Purpose string

const (
	PurposeLogin         Purpose = "login"
	PurposePasswordReset Purpose = "password_reset"
	PurposeChangeDevice  Purpose = "change_device"
)

func (p Purpose) subject() string {
	switch p {
	case PurposePasswordReset:
		return "Your password reset code"
	case PurposeChangeDevice:
		return "Confirm your new device"
	default:
		return "Your login verification code"
	}
}

// Mailer turns account events into messages and hands them to a Sender.
type Mailer struct {
	sender      Sender
	frontendURL string
	brand       string
	otpTTL      time.Duration
	resetTTL    time.Duration
}

type MailerOptions struct {
	// FrontendURL prefixes the verify-email and reset-password links.
	FrontendURL string
	// Brand is appended to subjects and used in greetings.
	Brand string
	// OTPTTL and ResetTTL are quoted in the body text.
	OTPTTL   time.Duration
	ResetTTL time.Duration
}

func NewMailer(sender Sender, opts MailerOptions) *Mailer {
	if opts.Brand == "" {
		opts.Brand = "BarTab"
	}
	return &Mailer{
		sender:      sender,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		brand:       opts.Brand,
		otpTTL:      opts.OTPTTL,
		resetTTL:    opts.ResetTTL,
	}
}

// SendVerification mails the link that confirms the address of u.
func (m *Mailer) SendVerification(ctx context.Context, u domain.User, token string) error {
	link := m.frontendURL + "/verify-email/" + token

	var b strings.Builder
	m.greet(&b, u)
	fmt.Fprintf(&b, "Thank you for signing up for %s! Please verify your email address to activate your account.\n\n", m.brand)
	fmt.Fprintf(&b, "Open the link below to verify your email:\n%s\n\n", link)
	fmt.Fprintf(&b, "If you didn't sign up for %s, you can ignore this email.\n", m.brand)

	return m.send(ctx, u.Email, "Verify Your Email", b.String())
}

// SendOTP mails a one-time code.
func (m *Mailer) SendOTP(ctx context.Context, u domain.User, purpose Purpose, code string) error {
	var b strings.Builder
	m.greet(&b, u)
	fmt.Fprintf(&b, "Your verification code is: %s\n\n", code)
	if m.otpTTL > 0 {
		fmt.Fprintf(&b, "This code is valid for %s. Please enter it promptly.\n", humanDuration(m.otpTTL))
	}
	b.WriteString("If you didn't request this code, please ignore this email.\n")

	return m.send(ctx, u.Email, purpose.subject(), b.String())
}

// SendPasswordReset mails the reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, u domain.User, token string) error {
	link := m.frontendURL + "/reset-password/" + token

	var b strings.Builder
	m.greet(&b, u)
	fmt.Fprintf(&b, "You have requested to reset your password for your %s account.\n\n", m.brand)
	fmt.Fprintf(&b, "Open the link below to reset your password:\n%s\n\n", link)
	b.WriteString("If you didn't request a password reset, you can ignore this email.\n")
	if m.resetTTL > 0 {
		fmt.Fprintf(&b, "This link will expire in %s.\n", humanDuration(m.resetTTL))
	}

	return m.send(ctx, u.Email, "Password Reset Request", b.String())
}

// SendPasswordResetConfirmation tells u the password was changed.
func (m *Mailer) SendPasswordResetConfirmation(ctx context.Context, u domain.User) error {
	var b strings.Builder
	m.greet(&b, u)
	b.WriteString("Your password has been successfully reset.\n\n")
	b.WriteString("If you did not perform this action, please contact our support team immediately.\n")

	return m.send(ctx, u.Email, "Password Reset Confirmation", b.String())
}

func (m *Mailer) greet(b *strings.Builder, u domain.User) {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(b, "Hi %s,\n\n", name)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	msg := Message{
		To:      to,
		Subject: subject + " - " + m.brand,
		Body:    body,
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("mail: send %q: %w", subject, err)
	}
	return nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		n := int(d / time.Hour)
		if n == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", n)
	case d%time.Minute == 0:
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", n)
	default:
		return d.String()
	}
}
