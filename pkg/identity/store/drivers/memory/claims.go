package memory

import (
	"context"
	"slices"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
)

type userClaimsRepo[K comparable] struct {
	s *Store[K]
}

func (r userClaimsRepo[K]) List(ctx context.Context, userID K) ([]domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var claims []domain.Claim
	for _, c := range r.s.view().userClaims {
		if c.UserID == userID {
			claims = append(claims, c.Claim)
		}
	}
	return claims, nil
}

func (r userClaimsRepo[K]) Add(ctx context.Context, userID K, claims ...domain.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	if _, ok := st.users[userID]; !ok {
		return store.ErrNotFound
	}
	for _, c := range claims {
		st.claimSeq++
		st.userClaims = append(st.userClaims, domain.UserClaim[K]{ID: st.claimSeq, UserID: userID, Claim: c})
	}
	return nil
}

func (r userClaimsRepo[K]) Replace(ctx context.Context, userID K, old, replacement domain.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	for i, c := range st.userClaims {
		if c.UserID == userID && c.Claim == old {
			st.userClaims[i].Claim = replacement
		}
	}
	return nil
}

func (r userClaimsRepo[K]) Remove(ctx context.Context, userID K, claims ...domain.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	st.userClaims = slices.DeleteFunc(st.userClaims, func(c domain.UserClaim[K]) bool {
		return c.UserID == userID && slices.Contains(claims, c.Claim)
	})
	return nil
}

func (r userClaimsRepo[K]) UsersForClaim(ctx context.Context, claim domain.Claim) ([]domain.User[K], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st := r.s.view()
	holders := make(map[K]struct{})
	for _, c := range st.userClaims {
		if c.Claim == claim {
			holders[c.UserID] = struct{}{}
		}
	}
	return slices.DeleteFunc(st.orderedUsers(), func(u domain.User[K]) bool {
		_, ok := holders[u.ID]
		return !ok
	}), nil
}

type roleClaimsRepo[K comparable] struct {
	s *Store[K]
}

func (r roleClaimsRepo[K]) List(ctx context.Context, roleID K) ([]domain.Claim, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var claims []domain.Claim
	for _, c := range r.s.view().roleClaims {
		if c.RoleID == roleID {
			claims = append(claims, c.Claim)
		}
	}
	return claims, nil
}

func (r roleClaimsRepo[K]) Add(ctx context.Context, roleID K, claims ...domain.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	if _, ok := st.roles[roleID]; !ok {
		return store.ErrNotFound
	}
	for _, c := range claims {
		st.claimSeq++
		st.roleClaims = append(st.roleClaims, domain.RoleClaim[K]{ID: st.claimSeq, RoleID: roleID, Claim: c})
	}
	return nil
}

func (r roleClaimsRepo[K]) Remove(ctx context.Context, roleID K, claims ...domain.Claim) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	st.roleClaims = slices.DeleteFunc(st.roleClaims, func(c domain.RoleClaim[K]) bool {
		return c.RoleID == roleID && slices.Contains(claims, c.Claim)
	})
	return nil
}
