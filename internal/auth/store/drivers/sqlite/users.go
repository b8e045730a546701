package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
)

type usersRepo struct {
	db *sql.DB
}

const userColumns = `id, first_name, last_name, email, password_hash, phone, address,
	email_verified, last_login, locked, lock_until, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *usersRepo) getUser(ctx context.Context, query string, arg string) (domain.User, error) {
	var (
		u         domain.User
		lastLogin sql.NullTime
		lockUntil sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Phone, &u.Address,
		&u.EmailVerified, &lastLogin, &u.Locked, &lockUntil, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.LastLogin = mapNullTimePtr(lastLogin)
	u.LockUntil = mapNullTimePtr(lockUntil)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	if u.RoleIDs, err = r.roleIDs(ctx, u.ID); err != nil {
		return domain.User{}, err
	}
	if u.Devices, err = r.devices(ctx, u.ID); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *usersRepo) roleIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role_id FROM user_roles WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *usersRepo) devices(ctx context.Context, userID string) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_agent, ip_address, verified, last_login, created_at
		FROM user_devices WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Device
	for rows.Next() {
		var d domain.Device
		if err := rows.Scan(&d.UserAgent, &d.IPAddress, &d.Verified, &d.LastLogin, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.LastLogin = d.LastLogin.UTC()
		d.CreatedAt = d.CreatedAt.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	return withTx(ctx, r.db, func(q querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Phone, u.Address,
			u.EmailVerified, mapOptionalTime(u.LastLogin), u.Locked, mapOptionalTime(u.LockUntil),
			u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
		)
		if err != nil {
			return mapConstraint(err)
		}

		for i, roleID := range u.RoleIDs {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role_id, position) VALUES (?, ?, ?)`,
				u.ID, roleID, i,
			); err != nil {
				return mapConstraint(err)
			}
		}

		for _, d := range u.Devices {
			if err := upsertDevice(ctx, q, u.ID, d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id))
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, id string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id))
}

func (r *usersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE users SET last_login = ?, locked = 0, lock_until = NULL, updated_at = ?
		WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id))
}

func (r *usersRepo) LockUser(ctx context.Context, id string, until time.Time) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET locked = 1, lock_until = ?, updated_at = ? WHERE id = ?`,
		until.UTC(), time.Now().UTC(), id))
}

func (r *usersRepo) UnlockExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET locked = 0, lock_until = NULL, updated_at = ?
		WHERE locked = 1 AND (lock_until IS NULL OR lock_until <= ?)`,
		time.Now().UTC(), now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *usersRepo) UpsertDevice(ctx context.Context, userID string, d domain.Device) error {
	return upsertDevice(ctx, r.db, userID, d)
}

// upsertDevice is a single statement so concurrent logins from the same
// device cannot create duplicate rows.
func upsertDevice(ctx context.Context, q querier, userID string, d domain.Device) error {
	if d.LastLogin.IsZero() {
		d.LastLogin = time.Now()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = d.LastLogin
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO user_devices (user_id, user_agent, ip_address, verified, last_login, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, user_agent, ip_address) DO UPDATE SET
			verified   = MAX(user_devices.verified, excluded.verified),
			last_login = excluded.last_login`,
		userID, d.UserAgent, d.IPAddress, d.Verified, d.LastLogin.UTC(), d.CreatedAt.UTC(),
	)
	return mapConstraint(err)
}

func (r *usersRepo) PruneDevices(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM user_devices WHERE verified = 0 AND last_login < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
