package sqlite

import (
	"context"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/jmoiron/sqlx"
)

type userRolesRepo struct {
	s *Store
}

// Add relies on the (user_id, role_id) primary key for uniqueness.
func (r *userRolesRepo) Add(ctx context.Context, userID, roleID idx.ID) error {
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`,
		userID.String(), roleID.String())
	return mapErr(err)
}

func (r *userRolesRepo) Remove(ctx context.Context, userID, roleID idx.ID) error {
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`,
		userID.String(), roleID.String())
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *userRolesRepo) Exists(ctx context.Context, userID, roleID idx.ID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, r.s.reader(), &exists,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = ? AND role_id = ?)`,
		userID.String(), roleID.String())
	return exists, mapErr(err)
}

func (r *userRolesRepo) RolesForUser(ctx context.Context, userID idx.ID) ([]domain.Role[idx.ID], error) {
	return selectRoles(ctx, r.s.reader(), `
		SELECT `+roleColumns+` FROM roles
		WHERE id IN (SELECT role_id FROM user_roles WHERE user_id = ?)
		ORDER BY rowid`, userID.String())
}

func (r *userRolesRepo) UsersInRole(ctx context.Context, roleID idx.ID) ([]domain.User[idx.ID], error) {
	return selectUsers(ctx, r.s.reader(), `
		SELECT `+userColumns+` FROM users
		WHERE id IN (SELECT user_id FROM user_roles WHERE role_id = ?)
		ORDER BY rowid`, roleID.String())
}
