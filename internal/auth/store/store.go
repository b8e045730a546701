package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, mongo)
// implement it and expose sub-repositories to keep concerns tidy.
//
// There is no transaction API: every write below is a single atomic
// statement (or an internal driver transaction), which is all the auth
// flows need and what a standalone MongoDB can offer.
type Store interface {
	Users() Users
	Roles() Roles

	// ApplyMigrations brings the schema (tables or indexes) up to date.
	ApplyMigrations(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail expects an already normalised email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts the user with its roles and devices. A duplicate
	// email returns ErrAlreadyExists; the unique index decides, not a
	// prior lookup.
	CreateUser(ctx context.Context, u domain.User) error

	// DeleteUser removes the user and everything hanging off it.
	DeleteUser(ctx context.Context, id string) error

	// UpdatePasswordHash sets only the password hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// MarkEmailVerified sets email_verified.
	MarkEmailVerified(ctx context.Context, id string) error

	// TouchLastLogin records a successful login and clears any lock.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// LockUser locks the account until the given time.
	LockUser(ctx context.Context, id string, until time.Time) error

	// UnlockExpired clears locks whose lock_until has passed.
	UnlockExpired(ctx context.Context, now time.Time) (int64, error)

	// UpsertDevice matches on the exact (user agent, IP) pair. A match has
	// its LastLogin replaced and Verified OR-ed with d.Verified, so a device
	// is never downgraded; otherwise d is appended. ErrNotFound when the
	// user does not exist.
	UpsertDevice(ctx context.Context, userID string, d domain.Device) error

	// PruneDevices drops unverified devices last seen before cutoff. The
	// count is driver specific: sqlite reports devices, mongo reports users.
	PruneDevices(ctx context.Context, cutoff time.Time) (int64, error)
}

type Roles interface {
	GetRoleByID(ctx context.Context, id string) (domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)

	// ListAll returns roles ordered by name.
	ListAll(ctx context.Context) ([]domain.Role, error)

	// CreateRole returns ErrAlreadyExists on a duplicate name.
	CreateRole(ctx context.Context, r domain.Role) error

	// RenameRole returns ErrNotFound or ErrAlreadyExists.
	RenameRole(ctx context.Context, id, name string) error

	// DeleteRole removes the role and detaches it from every user.
	DeleteRole(ctx context.Context, id string) error
}
