// Command identityctl administers a membership database: migrations, users,
// roles, claims and sign-in checks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/aussiebroadwan/membership/internal/app"
	"github.com/aussiebroadwan/membership/pkg/cryptox"
	"github.com/aussiebroadwan/membership/pkg/identity/domain"
	"github.com/aussiebroadwan/membership/pkg/idx"
	"github.com/joho/godotenv"
)

const generatedPasswordLength = 20

const usage = `usage: identityctl <command> [flags]

commands:
  migrate                                      apply schema migrations
  user-add    -name N [-email E] [-password P] create a user; without -password
                                               one is generated and printed once
  user-list                                    list users
  role-add    -name N                          create a role
  grant       -user N -role R                  add a user to a role
  revoke      -user N -role R                  remove a user from a role
  claim-add   -user N -type T -value V         add a claim to a user
  signin      -user N -password P              check credentials
`

func main() {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	a, err := app.New(app.LoadConfig())
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer a.Close()

	if err := run(context.Background(), a, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		a.Close()
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func run(ctx context.Context, a *app.Application, cmd string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	var (
		name     = fs.String("name", "", "user or role name")
		email    = fs.String("email", "", "e-mail address")
		password = fs.String("password", "", "password")
		userName = fs.String("user", "", "user name")
		roleName = fs.String("role", "", "role name")
		typ      = fs.String("type", "", "claim type")
		value    = fs.String("value", "", "claim value")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "migrate":
		// app.New already migrated.
		fmt.Fprintln(out, "migrations applied")
		return nil

	case "user-add":
		pw, generated := *password, false
		if pw == "" {
			var err error
			if pw, err = generatePassword(a); err != nil {
				return err
			}
			generated = true
		}
		u := &domain.User[idx.ID]{UserName: *name, Email: *email}
		res, err := a.Users.Create(ctx, u, pw)
		if err := check(res, err); err != nil {
			return err
		}
		fmt.Fprintln(out, u.ID)
		if generated {
			fmt.Fprintf(out, "password: %s\n", pw)
		}
		return nil

	case "user-list":
		users, err := a.Users.Users(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tUSER\tEMAIL\tLOCKED UNTIL")
		for _, u := range users {
			locked := "-"
			if u.LockoutEnd != nil {
				locked = u.LockoutEnd.Format("2006-01-02 15:04:05Z07:00")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.UserName, u.Email, locked)
		}
		return tw.Flush()

	case "role-add":
		r := &domain.Role[idx.ID]{Name: *name}
		res, err := a.Roles.Create(ctx, r)
		if err := check(res, err); err != nil {
			return err
		}
		fmt.Fprintln(out, r.ID)
		return nil

	case "grant", "revoke":
		u, err := a.Users.FindByName(ctx, *userName)
		if err != nil {
			return err
		}
		if cmd == "grant" {
			return check(a.Users.AddToRole(ctx, u, *roleName))
		}
		return check(a.Users.RemoveFromRole(ctx, u, *roleName))

	case "claim-add":
		u, err := a.Users.FindByName(ctx, *userName)
		if err != nil {
			return err
		}
		return check(a.Users.AddClaim(ctx, u, domain.Claim{Type: *typ, Value: *value}))

	case "signin":
		res, sess, err := a.SignIn.PasswordSignIn(ctx, *userName, *password, true)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, res)
		if sess != nil && !sess.Pending {
			for _, c := range sess.Principal.Claims {
				fmt.Fprintf(out, "  %s\n", c)
			}
		}
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// generatePassword draws random passwords until one passes the configured
// password policy.
func generatePassword(a *app.Application) (string, error) {
	length := max(a.Users.Options().Password.RequiredLength, generatedPasswordLength)
	for range 8 {
		pw, err := cryptox.GeneratePassword(length)
		if err != nil {
			return "", err
		}
		if a.Users.ValidatePassword(pw).Succeeded() {
			return pw, nil
		}
	}
	return "", errors.New("could not generate a password satisfying the policy")
}

func check(res domain.Result, err error) error {
	if err != nil {
		return err
	}
	return res.Err()
}
