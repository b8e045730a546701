package mongo

import (
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
)

type userDoc struct {
	ID            string      `bson:"_id"`
	FirstName     string      `bson:"firstName"`
	LastName      string      `bson:"lastName"`
	Email         string      `bson:"email"`
	PasswordHash  string      `bson:"passwordHash"`
	Phone         string      `bson:"phone"`
	Address       string      `bson:"address"`
	EmailVerified bool        `bson:"isEmailVerified"`
	Devices       []deviceDoc `bson:"devices"`
	Roles         []string    `bson:"roles"`
	LastLogin     *time.Time  `bson:"lastLogin,omitempty"`
	Locked        bool        `bson:"isLocked"`
	LockUntil     *time.Time  `bson:"lockUntil,omitempty"`
	CreatedAt     time.Time   `bson:"createdAt"`
	UpdatedAt     time.Time   `bson:"updatedAt"`
}

type deviceDoc struct {
	UserAgent string    `bson:"userAgent"`
	IPAddress string    `bson:"ipAddress"`
	Verified  bool      `bson:"verified"`
	LastLogin time.Time `bson:"lastLogin"`
	CreatedAt time.Time `bson:"createdAt"`
}

type roleDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func toUserDoc(u domain.User) userDoc {
	devices := make([]deviceDoc, 0, len(u.Devices))
	for _, d := range u.Devices {
		devices = append(devices, toDeviceDoc(d))
	}
	roles := append([]string{}, u.RoleIDs...)

	return userDoc{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		Phone:         u.Phone,
		Address:       u.Address,
		EmailVerified: u.EmailVerified,
		Devices:       devices,
		Roles:         roles,
		LastLogin:     u.LastLogin,
		Locked:        u.Locked,
		LockUntil:     u.LockUntil,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (d userDoc) toDomain() domain.User {
	devices := make([]domain.Device, 0, len(d.Devices))
	for _, dev := range d.Devices {
		devices = append(devices, domain.Device{
			UserAgent: dev.UserAgent,
			IPAddress: dev.IPAddress,
			Verified:  dev.Verified,
			LastLogin: dev.LastLogin.UTC(),
			CreatedAt: dev.CreatedAt.UTC(),
		})
	}

	return domain.User{
		ID:            d.ID,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		Phone:         d.Phone,
		Address:       d.Address,
		EmailVerified: d.EmailVerified,
		Devices:       devices,
		RoleIDs:       d.Roles,
		LastLogin:     utcPtr(d.LastLogin),
		Locked:        d.Locked,
		LockUntil:     utcPtr(d.LockUntil),
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

func toDeviceDoc(d domain.Device) deviceDoc {
	return deviceDoc{
		UserAgent: d.UserAgent,
		IPAddress: d.IPAddress,
		Verified:  d.Verified,
		LastLogin: d.LastLogin.UTC(),
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func (d roleDoc) toDomain() domain.Role {
	return domain.Role{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC()}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
