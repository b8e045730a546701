package domain

import "time"

// OTPEntry is the single live one-time code of an owner.
type OTPEntry struct {
	OwnerID   string    `json:"-"`
	Purpose   string    `json:"purpose"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e OTPEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
