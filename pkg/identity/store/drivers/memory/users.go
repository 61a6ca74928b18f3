package memory

import (
	"context"
	"slices"
	"time"

	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/store"
)

type usersRepo[K comparable] struct {
	s *Store[K]
}

func (r usersRepo[K]) Create(ctx context.Context, u *domain.User[K]) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.s.checkKey(u.ID); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	if _, ok := st.users[u.ID]; ok {
		return store.ErrAlreadyExists
	}
	if _, ok := st.userByName(u.NormalizedUserName); ok {
		return store.ErrAlreadyExists
	}

	u.ConcurrencyStamp = newStamp()
	st.users[u.ID] = userRow[K]{user: copyUser(*u), seq: r.s.nextSeq()}
	return nil
}

func (r usersRepo[K]) Update(ctx context.Context, u *domain.User[K]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	row, ok := st.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	if row.user.ConcurrencyStamp != u.ConcurrencyStamp {
		return store.ErrConcurrencyFailure
	}
	if other, ok := st.userByName(u.NormalizedUserName); ok && other.ID != u.ID {
		return store.ErrAlreadyExists
	}

	u.ConcurrencyStamp = newStamp()
	row.user = copyUser(*u)
	st.users[u.ID] = row
	return nil
}

func (r usersRepo[K]) Delete(ctx context.Context, id K) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return err
	}
	if _, ok := st.users[id]; !ok {
		return store.ErrNotFound
	}

	delete(st.users, id)
	st.userClaims = slices.DeleteFunc(st.userClaims, func(c domain.UserClaim[K]) bool { return c.UserID == id })
	for ur := range st.userRoles {
		if ur.UserID == id {
			delete(st.userRoles, ur)
		}
	}
	return nil
}

func (r usersRepo[K]) FindByID(ctx context.Context, id K) (domain.User[K], error) {
	if err := ctx.Err(); err != nil {
		return domain.User[K]{}, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.view().users[id]
	if !ok {
		return domain.User[K]{}, store.ErrNotFound
	}
	return copyUser(row.user), nil
}

func (r usersRepo[K]) FindByNormalizedName(ctx context.Context, normalizedName string) (domain.User[K], error) {
	if err := ctx.Err(); err != nil {
		return domain.User[K]{}, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.view().userByName(normalizedName)
	if !ok {
		return domain.User[K]{}, store.ErrNotFound
	}
	return copyUser(u), nil
}

func (r usersRepo[K]) FindByNormalizedEmail(ctx context.Context, normalizedEmail string) (domain.User[K], error) {
	if err := ctx.Err(); err != nil {
		return domain.User[K]{}, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.view().orderedUsers() {
		if normalizedEmail != "" && u.NormalizedEmail == normalizedEmail {
			return u, nil
		}
	}
	return domain.User[K]{}, store.ErrNotFound
}

func (r usersRepo[K]) List(ctx context.Context) ([]domain.User[K], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.s.view().orderedUsers(), nil
}

func (r usersRepo[K]) IncrementAccessFailed(
	ctx context.Context,
	id K,
	maxAttempts int,
	lockFor time.Duration,
	now time.Time,
) (domain.User[K], error) {
	if err := ctx.Err(); err != nil {
		return domain.User[K]{}, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	st, err := r.s.edit()
	if err != nil {
		return domain.User[K]{}, err
	}
	row, ok := st.users[id]
	if !ok {
		return domain.User[K]{}, store.ErrNotFound
	}

	u := &row.user
	u.AccessFailedCount++
	if u.LockoutEnabled && maxAttempts > 0 && u.AccessFailedCount >= maxAttempts {
		end := now.Add(lockFor).UTC()
		u.LockoutEnd = &end
		u.AccessFailedCount = 0
	}
	u.ConcurrencyStamp = newStamp()
	u.UpdatedAt = now.UTC()

	st.users[id] = row
	return copyUser(row.user), nil
}

func (st *state[K]) userByName(normalizedName string) (domain.User[K], bool) {
	for _, row := range st.users {
		if row.user.NormalizedUserName == normalizedName {
			return row.user, true
		}
	}
	return domain.User[K]{}, false
}

// orderedUsers returns copies of all users in insertion order.
func (st *state[K]) orderedUsers() []domain.User[K] {
	rows := make([]userRow[K], 0, len(st.users))
	for _, row := range st.users {
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b userRow[K]) int { return cmpSeq(a.seq, b.seq) })

	users := make([]domain.User[K], len(rows))
	for i, row := range rows {
		users[i] = copyUser(row.user)
	}
	return users
}

func cmpSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
