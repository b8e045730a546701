package domain

import "time"

// IssuedToken is a signed token and its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TTL returns the remaining lifetime at now, never negative.
func (t IssuedToken) TTL(now time.Time) time.Duration {
	return max(t.ExpiresAt.Sub(now), 0)
}
