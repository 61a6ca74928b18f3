package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/jmoiron/sqlx"
)

const roleColumns = `id, name, normalized_name, concurrency_stamp, created_at, updated_at`

type roleRow struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	NormalizedName   string    `db:"normalized_name"`
	ConcurrencyStamp string    `db:"concurrency_stamp"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func toRoleRow(r *domain.Role[idx.ID]) roleRow {
	return roleRow{
		ID:               r.ID.String(),
		Name:             r.Name,
		NormalizedName:   r.NormalizedName,
		ConcurrencyStamp: r.ConcurrencyStamp,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

func mapRole(row roleRow) domain.Role[idx.ID] {
	return domain.Role[idx.ID]{
		ID:               idx.ID(row.ID),
		Name:             row.Name,
		NormalizedName:   row.NormalizedName,
		ConcurrencyStamp: row.ConcurrencyStamp,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

func selectRoles(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]domain.Role[idx.ID], error) {
	var rows []roleRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, mapErr(err)
	}
	roles := make([]domain.Role[idx.ID], len(rows))
	for i, row := range rows {
		roles[i] = mapRole(row)
	}
	return roles, nil
}

type rolesRepo struct {
	s *Store
}

func (r *rolesRepo) Create(ctx context.Context, role *domain.Role[idx.ID]) error {
	if err := r.s.checkKey(role.ID); err != nil {
		return err
	}
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}

	row := toRoleRow(role)
	row.ConcurrencyStamp = newStamp()
	_, err = sqlx.NamedExecContext(ctx, q, `
		INSERT INTO roles (`+roleColumns+`)
		VALUES (:id, :name, :normalized_name, :concurrency_stamp, :created_at, :updated_at)`, row)
	if err != nil {
		return mapErr(err)
	}
	role.ConcurrencyStamp = row.ConcurrencyStamp
	return nil
}

type roleUpdate struct {
	roleRow
	ExpectedStamp string `db:"expected_stamp"`
}

func (r *rolesRepo) Update(ctx context.Context, role *domain.Role[idx.ID]) error {
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}

	args := roleUpdate{roleRow: toRoleRow(role), ExpectedStamp: role.ConcurrencyStamp}
	args.ConcurrencyStamp = newStamp()
	res, err := sqlx.NamedExecContext(ctx, q, `
		UPDATE roles SET
			name = :name,
			normalized_name = :normalized_name,
			concurrency_stamp = :concurrency_stamp,
			updated_at = :updated_at
		WHERE id = :id AND concurrency_stamp = :expected_stamp`, args)
	if err != nil {
		return mapErr(err)
	}
	if err := staleOrMissing(ctx, q, res, "roles", args.ID); err != nil {
		return err
	}
	role.ConcurrencyStamp = args.ConcurrencyStamp
	return nil
}

func (r *rolesRepo) Delete(ctx context.Context, id idx.ID) error {
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id.String())
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func (r *rolesRepo) FindByID(ctx context.Context, id idx.ID) (domain.Role[idx.ID], error) {
	return r.findOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = ?`, id.String())
}

func (r *rolesRepo) FindByNormalizedName(ctx context.Context, normalizedName string) (domain.Role[idx.ID], error) {
	return r.findOne(ctx, `SELECT `+roleColumns+` FROM roles WHERE normalized_name = ?`, normalizedName)
}

func (r *rolesRepo) findOne(ctx context.Context, query string, args ...any) (domain.Role[idx.ID], error) {
	var row roleRow
	if err := sqlx.GetContext(ctx, r.s.reader(), &row, query, args...); err != nil {
		return domain.Role[idx.ID]{}, mapErr(err)
	}
	return mapRole(row), nil
}

func (r *rolesRepo) List(ctx context.Context) ([]domain.Role[idx.ID], error) {
	return selectRoles(ctx, r.s.reader(), `SELECT `+roleColumns+` FROM roles ORDER BY rowid`)
}
