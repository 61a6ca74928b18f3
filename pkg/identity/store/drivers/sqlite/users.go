package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/jmoiron/sqlx"
)

const userColumns = `id, user_name, normalized_user_name, email, normalized_email, email_confirmed,
	password_hash, security_stamp, concurrency_stamp, phone_number, phone_number_confirmed,
	two_factor_enabled, authenticator_key, lockout_enabled, lockout_end, access_failed_count,
	created_at, updated_at`

type userRow struct {
	ID                   string       `db:"id"`
	UserName             string       `db:"user_name"`
	NormalizedUserName   string       `db:"normalized_user_name"`
	Email                string       `db:"email"`
	NormalizedEmail      string       `db:"normalized_email"`
	EmailConfirmed       bool         `db:"email_confirmed"`
	PasswordHash         string       `db:"password_hash"`
	SecurityStamp        string       `db:"security_stamp"`
	ConcurrencyStamp     string       `db:"concurrency_stamp"`
	PhoneNumber          string       `db:"phone_number"`
	PhoneNumberConfirmed bool         `db:"phone_number_confirmed"`
	TwoFactorEnabled     bool         `db:"two_factor_enabled"`
	AuthenticatorKey     string       `db:"authenticator_key"`
	LockoutEnabled       bool         `db:"lockout_enabled"`
	LockoutEnd           sql.NullTime `db:"lockout_end"`
	AccessFailedCount    int          `db:"access_failed_count"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"`
}

func toUserRow(u *domain.User[idx.ID]) userRow {
	return userRow{
		ID:                   u.ID.String(),
		UserName:             u.UserName,
		NormalizedUserName:   u.NormalizedUserName,
		Email:                u.Email,
		NormalizedEmail:      u.NormalizedEmail,
		EmailConfirmed:       u.EmailConfirmed,
		PasswordHash:         u.PasswordHash,
		SecurityStamp:        u.SecurityStamp,
		ConcurrencyStamp:     u.ConcurrencyStamp,
		PhoneNumber:          u.PhoneNumber,
		PhoneNumberConfirmed: u.PhoneNumberConfirmed,
		TwoFactorEnabled:     u.TwoFactorEnabled,
		AuthenticatorKey:     u.AuthenticatorKey,
		LockoutEnabled:       u.LockoutEnabled,
		LockoutEnd:           mapOptionalTime(u.LockoutEnd),
		AccessFailedCount:    u.AccessFailedCount,
		CreatedAt:            u.CreatedAt.UTC(),
		UpdatedAt:            u.UpdatedAt.UTC(),
	}
}

func mapUser(row userRow) domain.User[idx.ID] {
	return domain.User[idx.ID]{
		ID:                   idx.ID(row.ID),
		UserName:             row.UserName,
		NormalizedUserName:   row.NormalizedUserName,
		Email:                row.Email,
		NormalizedEmail:      row.NormalizedEmail,
		EmailConfirmed:       row.EmailConfirmed,
		PasswordHash:         row.PasswordHash,
		SecurityStamp:        row.SecurityStamp,
		ConcurrencyStamp:     row.ConcurrencyStamp,
		PhoneNumber:          row.PhoneNumber,
		PhoneNumberConfirmed: row.PhoneNumberConfirmed,
		TwoFactorEnabled:     row.TwoFactorEnabled,
		AuthenticatorKey:     row.AuthenticatorKey,
		LockoutEnabled:       row.LockoutEnabled,
		LockoutEnd:           mapNullTimePtr(row.LockoutEnd),
		AccessFailedCount:    row.AccessFailedCount,
		CreatedAt:            row.CreatedAt.UTC(),
		UpdatedAt:            row.UpdatedAt.UTC(),
	}
}

func mapUsers(rows []userRow) []domain.User[idx.ID] {
	users := make([]domain.User[idx.ID], len(rows))
	for i, row := range rows {
		users[i] = mapUser(row)
	}
	return users
}

type usersRepo struct {
	s *Store
}

func (r *usersRepo) Create(ctx context.Context, u *domain.User[idx.ID]) error {
	if err := r.s.checkKey(u.ID); err != nil {
		return err
	}
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}

	row := toUserRow(u)
	row.ConcurrencyStamp = newStamp()
	_, err = sqlx.NamedExecContext(ctx, q, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :user_name, :normalized_user_name, :email, :normalized_email, :email_confirmed,
			:password_hash, :security_stamp, :concurrency_stamp, :phone_number, :phone_number_confirmed,
			:two_factor_enabled, :authenticator_key, :lockout_enabled, :lockout_end, :access_failed_count,
			:created_at, :updated_at)`, row)
	if err != nil {
		return mapErr(err)
	}
	u.ConcurrencyStamp = row.ConcurrencyStamp
	return nil
}

type userUpdate struct {
	userRow
	ExpectedStamp string `db:"expected_stamp"`
}

func (r *usersRepo) Update(ctx context.Context, u *domain.User[idx.ID]) error {
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}

	args := userUpdate{userRow: toUserRow(u), ExpectedStamp: u.ConcurrencyStamp}
	args.ConcurrencyStamp = newStamp()
	res, err := sqlx.NamedExecContext(ctx, q, `
		UPDATE users SET
			user_name = :user_name,
			normalized_user_name = :normalized_user_name,
			email = :email,
			normalized_email = :normalized_email,
			email_confirmed = :email_confirmed,
			password_hash = :password_hash,
			security_stamp = :security_stamp,
			concurrency_stamp = :concurrency_stamp,
			phone_number = :phone_number,
			phone_number_confirmed = :phone_number_confirmed,
			two_factor_enabled = :two_factor_enabled,
			authenticator_key = :authenticator_key,
			lockout_enabled = :lockout_enabled,
			lockout_end = :lockout_end,
			access_failed_count = :access_failed_count,
			updated_at = :updated_at
		WHERE id = :id AND concurrency_stamp = :expected_stamp`, args)
	if err != nil {
		return mapErr(err)
	}
	if err := staleOrMissing(ctx, q, res, "users", args.ID); err != nil {
		return err
	}
	u.ConcurrencyStamp = args.ConcurrencyStamp
	return nil
}

// staleOrMissing tells a stamp mismatch apart from a missing row after an
// optimistic update touched nothing.
func staleOrMissing(ctx context.Context, q sqlx.QueryerContext, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = ?)`, id); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrConcurrencyFailure
}

func (r *usersRepo) Delete(ctx context.Context, id idx.ID) error {
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return mapErr(err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) FindByID(ctx context.Context, id idx.ID) (domain.User[idx.ID], error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
}

func (r *usersRepo) FindByNormalizedName(ctx context.Context, normalizedName string) (domain.User[idx.ID], error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE normalized_user_name = ?`, normalizedName)
}

func (r *usersRepo) FindByNormalizedEmail(ctx context.Context, normalizedEmail string) (domain.User[idx.ID], error) {
	if normalizedEmail == "" {
		return domain.User[idx.ID]{}, store.ErrNotFound
	}
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE normalized_email = ? ORDER BY rowid LIMIT 1`, normalizedEmail)
}

func (r *usersRepo) findOne(ctx context.Context, query string, args ...any) (domain.User[idx.ID], error) {
	return getUser(ctx, r.s.reader(), query, args...)
}

func getUser(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (domain.User[idx.ID], error) {
	var row userRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return domain.User[idx.ID]{}, mapErr(err)
	}
	return mapUser(row), nil
}

func selectUsers(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]domain.User[idx.ID], error) {
	var rows []userRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, mapErr(err)
	}
	return mapUsers(rows), nil
}

func (r *usersRepo) List(ctx context.Context) ([]domain.User[idx.ID], error) {
	return selectUsers(ctx, r.s.reader(), `SELECT `+userColumns+` FROM users ORDER BY rowid`)
}

// IncrementAccessFailed does the count and the lockout in one UPDATE. SET
// expressions all read the pre-update row.
func (r *usersRepo) IncrementAccessFailed(
	ctx context.Context,
	id idx.ID,
	maxAttempts int,
	lockFor time.Duration,
	now time.Time,
) (domain.User[idx.ID], error) {
	var out domain.User[idx.ID]
	err := r.s.atomic(ctx, func(q sqlx.ExtContext) error {
		res, err := q.ExecContext(ctx, `
			UPDATE users SET
				access_failed_count = CASE WHEN lockout_enabled AND ?1 > 0 AND access_failed_count + 1 >= ?1
					THEN 0 ELSE access_failed_count + 1 END,
				lockout_end = CASE WHEN lockout_enabled AND ?1 > 0 AND access_failed_count + 1 >= ?1
					THEN ?2 ELSE lockout_end END,
				concurrency_stamp = ?3,
				updated_at = ?4
			WHERE id = ?5`,
			maxAttempts, now.Add(lockFor).UTC(), newStamp(), now.UTC(), id.String())
		if err != nil {
			return mapErr(err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		out, err = getUser(ctx, q, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
		return err
	})
	return out, err
}
