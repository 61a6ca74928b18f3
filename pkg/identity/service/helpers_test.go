package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/membership/pkg/cryptox"
	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/identity/service"
	"github.com/aussiebroadwan/membership/pkg/identity/store/drivers/memory"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/aussiebroadwan/membership/pkg/slogx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const goodPassword = "Passw0rd!"

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Cheap parameters, tests hash a lot.
var fastParams = cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

func fastHasher() *cryptox.PasswordHasher {
	return &cryptox.PasswordHasher{Params: fastParams, Pepper: "test-pepper"}
}

func newUsers(t *testing.T, opts ...service.Option) (*service.UserManager[idx.ID], *clockwork.FakeClock) {
	t.Helper()
	clk := clockwork.NewFakeClockAt(epoch)
	base := []service.Option{
		service.WithClock(clk),
		service.WithHasher(fastHasher()),
		service.WithLogger(slogx.Discard()),
		service.WithOwnedStore(),
	}
	m := service.NewUserManager[idx.ID](memory.New(idx.New), append(base, opts...)...)
	t.Cleanup(func() { _ = m.Close() })
	return m, clk
}

func createUser(t *testing.T, m *service.UserManager[idx.ID], name, password string) *domain.User[idx.ID] {
	t.Helper()
	u := &domain.User[idx.ID]{UserName: name, Email: name + "@example.com"}
	res, err := m.Create(context.Background(), u, password)
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.String())
	return u
}

func createRole(t *testing.T, m *service.UserManager[idx.ID], name string) *domain.Role[idx.ID] {
	t.Helper()
	r := &domain.Role[idx.ID]{Name: name}
	res, err := m.Roles().Create(context.Background(), r)
	require.NoError(t, err)
	require.True(t, res.Succeeded(), res.String())
	return r
}

func reload(t *testing.T, m *service.UserManager[idx.ID], u *domain.User[idx.ID]) *domain.User[idx.ID] {
	t.Helper()
	fresh, err := m.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh
}
