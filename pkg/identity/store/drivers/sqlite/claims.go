package sqlite

import (
	"context"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/jmoiron/sqlx"
)

type claimRow struct {
	Type  string `db:"claim_type"`
	Value string `db:"claim_value"`
}

func selectClaims(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]domain.Claim, error) {
	var rows []claimRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, mapErr(err)
	}
	claims := make([]domain.Claim, len(rows))
	for i, row := range rows {
		claims[i] = domain.Claim{Type: row.Type, Value: row.Value}
	}
	return claims, nil
}

type userClaimsRepo struct {
	s *Store
}

func (r *userClaimsRepo) List(ctx context.Context, userID idx.ID) ([]domain.Claim, error) {
	return selectClaims(ctx, r.s.reader(),
		`SELECT claim_type, claim_value FROM user_claims WHERE user_id = ? ORDER BY id`, userID.String())
}

func (r *userClaimsRepo) Add(ctx context.Context, userID idx.ID, claims ...domain.Claim) error {
	return r.s.atomic(ctx, func(q sqlx.ExtContext) error {
		for _, c := range claims {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO user_claims (user_id, claim_type, claim_value) VALUES (?, ?, ?)`,
				userID.String(), c.Type, c.Value); err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
}

func (r *userClaimsRepo) Replace(ctx context.Context, userID idx.ID, old, replacement domain.Claim) error {
	q, err := r.s.writer(ctx)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		UPDATE user_claims SET claim_type = ?, claim_value = ?
		WHERE user_id = ? AND claim_type = ? AND claim_value = ?`,
		replacement.Type, replacement.Value, userID.String(), old.Type, old.Value)
	return mapErr(err)
}

func (r *userClaimsRepo) Remove(ctx context.Context, userID idx.ID, claims ...domain.Claim) error {
	return r.s.atomic(ctx, func(q sqlx.ExtContext) error {
		for _, c := range claims {
			if _, err := q.ExecContext(ctx,
				`DELETE FROM user_claims WHERE user_id = ? AND claim_type = ? AND claim_value = ?`,
				userID.String(), c.Type, c.Value); err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
}

func (r *userClaimsRepo) UsersForClaim(ctx context.Context, c domain.Claim) ([]domain.User[idx.ID], error) {
	return selectUsers(ctx, r.s.reader(), `
		SELECT `+userColumns+` FROM users
		WHERE id IN (SELECT user_id FROM user_claims WHERE claim_type = ? AND claim_value = ?)
		ORDER BY rowid`, c.Type, c.Value)
}

type roleClaimsRepo struct {
	s *Store
}

func (r *roleClaimsRepo) List(ctx context.Context, roleID idx.ID) ([]domain.Claim, error) {
	return selectClaims(ctx, r.s.reader(),
		`SELECT claim_type, claim_value FROM role_claims WHERE role_id = ? ORDER BY id`, roleID.String())
}

func (r *roleClaimsRepo) Add(ctx context.Context, roleID idx.ID, claims ...domain.Claim) error {
	return r.s.atomic(ctx, func(q sqlx.ExtContext) error {
		for _, c := range claims {
			if _, err := q.ExecContext(ctx,
				`INSERT INTO role_claims (role_id, claim_type, claim_value) VALUES (?, ?, ?)`,
				roleID.String(), c.Type, c.Value); err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
}

func (r *roleClaimsRepo) Remove(ctx context.Context, roleID idx.ID, claims ...domain.Claim) error {
	return r.s.atomic(ctx, func(q sqlx.ExtContext) error {
		for _, c := range claims {
			if _, err := q.ExecContext(ctx,
				`DELETE FROM role_claims WHERE role_id = ? AND claim_type = ? AND claim_value = ?`,
				roleID.String(), c.Type, c.Value); err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
}
