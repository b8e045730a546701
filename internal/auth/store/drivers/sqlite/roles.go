package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/domain"
)

type rolesRepo struct {
	db *sql.DB
}

func (r *rolesRepo) GetRoleByID(ctx context.Context, id string) (domain.Role, error) {
	return r.getRole(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE id = ?`, id)
}

func (r *rolesRepo) GetRoleByName(ctx context.Context, name string) (domain.Role, error) {
	return r.getRole(ctx, `SELECT id, name, created_at, updated_at FROM roles WHERE name = ?`, name)
}

func (r *rolesRepo) getRole(ctx context.Context, query, arg string) (domain.Role, error) {
	var role domain.Role
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return mapRole(role), nil
}

func (r *rolesRepo) ListAll(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, mapRole(role))
	}
	return roles, rows.Err()
}

func (r *rolesRepo) CreateRole(ctx context.Context, role domain.Role) error {
	now := time.Now().UTC()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	if role.UpdatedAt.IsZero() {
		role.UpdatedAt = role.CreatedAt
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		role.ID, role.Name, role.CreatedAt.UTC(), role.UpdatedAt.UTC())
	return mapConstraint(err)
}

func (r *rolesRepo) RenameRole(ctx context.Context, id, name string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE roles SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id))
}

// DeleteRole relies on ON DELETE CASCADE to detach the role from users.
func (r *rolesRepo) DeleteRole(ctx context.Context, id string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id))
}

func mapRole(r domain.Role) domain.Role {
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r
}
