package domain

import (
	"strings"
	"time"
)

type User struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string // lower-cased, trimmed
	PasswordHash  string // argon2id PHC string
	Phone         string
	Address       string
	EmailVerified bool
	Devices       []Device // ordered by first sight
	RoleIDs       []string
	LastLogin     *time.Time
	Locked        bool
	LockUntil     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NormalizeEmail is applied before every lookup and write so the unique
// index sees one spelling per mailbox.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsLocked reports whether a lock is in force at now.
func (u User) IsLocked(now time.Time) bool {
	return u.Locked && u.LockUntil != nil && now.Before(*u.LockUntil)
}

// FindDevice looks a device up by its exact (user agent, IP) key.
func (u User) FindDevice(userAgent, ip string) (Device, bool) {
	for _, d := range u.Devices {
		if d.Matches(userAgent, ip) {
			return d, true
		}
	}
	return Device{}, false
}

// PublicUser is what clients are allowed to see.
type PublicUser struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	Phone         string
	Address       string
	EmailVerified bool
	RoleIDs       []string
	Roles         []string // names, resolved by the service layer
	LastLogin     *time.Time
	CreatedAt     time.Time
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Phone:         u.Phone,
		Address:       u.Address,
		EmailVerified: u.EmailVerified,
		RoleIDs:       append([]string(nil), u.RoleIDs...),
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
	}
}
