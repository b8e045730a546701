package domain

import "time"

// Device is a (user agent, IP) pair seen for a user. Only verified devices
// skip the OTP challenge.
type Device struct {
	UserAgent string
	IPAddress string
	Verified  bool
	LastLogin time.Time
	CreatedAt time.Time
}

func (d Device) Matches(userAgent, ip string) bool {
	return d.UserAgent == userAgent && d.IPAddress == ip
}
