package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dukerupert/manutenzioni/internal/auth"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/google/subcommands"
)

type addUserCmd struct {
	email    string
	password string
	name     string
	surname  string
	role     string
}

func (*addUserCmd) Name() string     { return "adduser" }
func (*addUserCmd) Synopsis() string { return "create an account and its profile" }
func (*addUserCmd) Usage() string {
	return `manutenzioni adduser -email <email> -password <password> [-name <name>] [-surname <surname>] [-role user|admin]
`
}

func (c *addUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Login email (required).")
	f.StringVar(&c.password, "password", "", "Login password (required).")
	f.StringVar(&c.name, "name", "", "First name shown on cards.")
	f.StringVar(&c.surname, "surname", "", "Surname shown on cards.")
	f.StringVar(&c.role, "role", model.RoleUser, "Profile role, user or admin.")
}

func (c *addUserCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	email := strings.ToLower(strings.TrimSpace(c.email))
	if email == "" || c.password == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if c.role != model.RoleUser && c.role != "admin" {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", c.role)
		return subcommands.ExitUsageError
	}

	hash, err := auth.HashPassword(c.password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	e, err := openEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	users := store.NewUserStore(e.db)
	existing, err := users.GetByEmail(email)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if existing != nil {
		fmt.Fprintf(os.Stderr, "user %s already exists\n", email)
		return subcommands.ExitFailure
	}

	u, err := users.Create(email, hash)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	profiles := store.NewProfileStore(e.db)
	if _, err := profiles.Create(u.ID, u.Email, c.role); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if c.name != "" || c.surname != "" {
		if _, err := profiles.Update(u.ID, blankNil(c.name), blankNil(c.surname)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}

	fmt.Printf("created %s (%s)\n", u.Email, u.ID)
	return subcommands.ExitSuccess
}

func blankNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type passwdCmd struct {
	email    string
	password string
}

func (*passwdCmd) Name() string     { return "passwd" }
func (*passwdCmd) Synopsis() string { return "set a user's password and sign out their sessions" }
func (*passwdCmd) Usage() string {
	return `manutenzioni passwd -email <email> -password <password>
`
}

func (c *passwdCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Login email (required).")
	f.StringVar(&c.password, "password", "", "New password (required).")
}

func (c *passwdCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	email := strings.ToLower(strings.TrimSpace(c.email))
	if email == "" || c.password == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	hash, err := auth.HashPassword(c.password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	e, err := openEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	users := store.NewUserStore(e.db)
	u, err := users.GetByEmail(email)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if u == nil {
		fmt.Fprintf(os.Stderr, "no user %s\n", email)
		return subcommands.ExitFailure
	}
	if err := users.SetPassword(u.ID, hash); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := store.NewSessionStore(e.db, e.cfg.SessionTTL).DeleteByUserID(u.ID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("password updated for %s\n", u.Email)
	return subcommands.ExitSuccess
}
