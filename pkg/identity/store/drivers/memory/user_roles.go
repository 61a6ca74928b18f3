package memory

import (
	"context"
	"slices"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
)

type userRolesRepo[K comparable] struct {
	s *Store[K]
}

func (r userRolesRepo[K]) Add(ctx context.Context, userID, roleID K) error {
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
	if _, ok := st.roles[roleID]; !ok {
		return store.ErrNotFound
	}

	key := domain.UserRole[K]{UserID: userID, RoleID: roleID}
	if _, ok := st.userRoles[key]; ok {
		return store.ErrAlreadyExists
	}
	st.userRoles[key] = struct{}{}
	return nil
}

func (r userRolesRepo[K]) Remove(ctx context.Context, userID, roleID K) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	key := domain.UserRole[K]{UserID: userID, RoleID: roleID}
	if _, ok := st.userRoles[key]; !ok {
		return store.ErrNotFound
	}
	delete(st.userRoles, key)
	return nil
}

func (r userRolesRepo[K]) Exists(ctx context.Context, userID, roleID K) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	_, ok := r.s.view().userRoles[domain.UserRole[K]{UserID: userID, RoleID: roleID}]
	return ok, nil
}

func (r userRolesRepo[K]) RolesForUser(ctx context.Context, userID K) ([]domain.Role[K], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st := r.s.view()
	return st.orderedRoles(func(role domain.Role[K]) bool {
		_, ok := st.userRoles[domain.UserRole[K]{UserID: userID, RoleID: role.ID}]
		return ok
	}), nil
}

func (r userRolesRepo[K]) UsersInRole(ctx context.Context, roleID K) ([]domain.User[K], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st := r.s.view()
	return slices.DeleteFunc(st.orderedUsers(), func(u domain.User[K]) bool {
		_, ok := st.userRoles[domain.UserRole[K]{UserID: u.ID, RoleID: roleID}]
		return !ok
	}), nil
}
