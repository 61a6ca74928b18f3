package main

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/membership/internal/app"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T) *app.Application {
	t.Helper()
	dir := t.TempDir()
	cfg := app.LoadConfig()
	cfg.DatabaseFile = filepath.Join(dir, "membership.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	cfg.LogOutput = io.Discard

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	var out bytes.Buffer

	exec := func(args ...string) error {
		out.Reset()
		return run(ctx, a, args[0], args[1:], &out)
	}

	require.NoError(t, exec("migrate"))
	require.NoError(t, exec("user-add", "-name", "alice", "-email", "alice@example.com", "-password", "Passw0rd!"))
	require.Len(t, strings.TrimSpace(out.String()), 26)

	require.NoError(t, exec("role-add", "-name", "admin"))
	require.NoError(t, exec("grant", "-user", "alice", "-role", "admin"))
	require.Error(t, exec("grant", "-user", "alice", "-role", "admin"))
	require.NoError(t, exec("claim-add", "-user", "alice", "-type", "department", "-value", "ops"))

	require.NoError(t, exec("signin", "-user", "alice", "-password", "Passw0rd!"))
	require.Contains(t, out.String(), "Succeeded")
	require.Contains(t, out.String(), "role=admin")
	require.Contains(t, out.String(), "department=ops")

	require.NoError(t, exec("signin", "-user", "alice", "-password", "nope"))
	require.Contains(t, out.String(), "InvalidCredential")

	require.NoError(t, exec("user-list"))
	require.Contains(t, out.String(), "alice@example.com")

	require.NoError(t, exec("revoke", "-user", "alice", "-role", "admin"))
	require.Error(t, exec("user-add", "-name", "bob", "-password", "weak"))
	require.Error(t, exec("bogus"))
}

func TestUserAddGeneratesPassword(t *testing.T) {
	ctx := context.Background()
	a := newApp(t)
	var out bytes.Buffer

	require.NoError(t, run(ctx, a, "user-add", []string{"-name", "carol"}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Len(t, lines[0], 26)

	pw, ok := strings.CutPrefix(lines[1], "password: ")
	require.True(t, ok, lines[1])
	require.True(t, a.Users.ValidatePassword(pw).Succeeded())

	out.Reset()
	require.NoError(t, run(ctx, a, "signin", []string{"-user", "carol", "-password", pw}, &out))
	require.Contains(t, out.String(), "Succeeded")
}
