package memory

import (
	"context"
	"slices"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
)

type rolesRepo[K comparable] struct {
	s *Store[K]
}

func (r rolesRepo[K]) Create(ctx context.Context, role *domain.Role[K]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.s.checkKey(role.ID); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	if _, ok := st.roles[role.ID]; ok {
		return store.ErrAlreadyExists
	}
	if _, ok := st.roleByName(role.NormalizedName); ok {
		return store.ErrAlreadyExists
	}

	role.ConcurrencyStamp = newStamp()
	st.roles[role.ID] = roleRow[K]{role: *role, seq: r.s.nextSeq()}
	return nil
}

func (r rolesRepo[K]) Update(ctx context.Context, role *domain.Role[K]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	row, ok := st.roles[role.ID]
	if !ok {
		return store.ErrNotFound
	}
	if row.role.ConcurrencyStamp != role.ConcurrencyStamp {
		return store.ErrConcurrencyFailure
	}
	if other, ok := st.roleByName(role.NormalizedName); ok && other.ID != role.ID {
		return store.ErrAlreadyExists
	}

	role.ConcurrencyStamp = newStamp()
	row.role = *role
	st.roles[role.ID] = row
	return nil
}

func (r rolesRepo[K]) Delete(ctx context.Context, id K) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	if _, ok := st.roles[id]; !ok {
		return store.ErrNotFound
	}

	delete(st.roles, id)
	st.roleClaims = slices.DeleteFunc(st.roleClaims, func(c domain.RoleClaim[K]) bool { return c.RoleID == id })
	for ur := range st.userRoles {
		if ur.RoleID == id {
			delete(st.userRoles, ur)
		}
	}
	return nil
}

func (r rolesRepo[K]) FindByID(ctx context.Context, id K) (domain.Role[K], error) {
	if err := ctx.Err(); err != nil {
		return domain.Role[K]{}, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.view().roles[id]
	if !ok {
		return domain.Role[K]{}, store.ErrNotFound
	}
	return row.role, nil
}

func (r rolesRepo[K]) FindByNormalizedName(ctx context.Context, normalizedName string) (domain.Role[K], error) {
	if err := ctx.Err(); err != nil {
		return domain.Role[K]{}, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	role, ok := r.s.view().roleByName(normalizedName)
	if !ok {
		return domain.Role[K]{}, store.ErrNotFound
	}
	return role, nil
}

func (r rolesRepo[K]) List(ctx context.Context) ([]domain.Role[K], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.view().orderedRoles(func(domain.Role[K]) bool { return true }), nil
}

func (st *state[K]) roleByName(normalizedName string) (domain.Role[K], bool) {
	for _, row := range st.roles {
		if row.role.NormalizedName == normalizedName {
			return row.role, true
		}
	}
	return domain.Role[K]{}, false
}

func (st *state[K]) orderedRoles(keep func(domain.Role[K]) bool) []domain.Role[K] {
	rows := make([]roleRow[K], 0, len(st.roles))
	for _, row := range st.roles {
		if keep(row.role) {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b roleRow[K]) int { return cmpSeq(a.seq, b.seq) })

	roles := make([]domain.Role[K], len(rows))
	for i, row := range rows {
		roles[i] = row.role
	}
	return roles
}
