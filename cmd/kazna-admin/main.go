// Command kazna-admin manages accounts and administrator privilege directly
// against the treasury database.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dukerupert/kazna/internal/archive"
	"github.com/dukerupert/kazna/internal/auth"
	"github.com/dukerupert/kazna/internal/config"
	"github.com/dukerupert/kazna/internal/database"
	"github.com/dukerupert/kazna/internal/push"
	"github.com/dukerupert/kazna/internal/store"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "gen-vapid":
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "KAZNA_VAPID_PUBLIC_KEY=%s\nKAZNA_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return nil
	case "decrypt-archive":
		return decryptArchive(rest, out)
	case "create-user", "grant", "revoke", "reset-password", "list-users":
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	dbPath := fs.String("db", "", "database path (default KAZNA_DB_PATH or kazna.db)")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	admin := fs.Bool("admin", false, "grant administrator privilege on create")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	if *dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		*dbPath = cfg.DBPath
	}
	db, err := database.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	e := strings.ToLower(strings.TrimSpace(*email))
	switch cmd {
	case "create-user":
		return createUser(db, out, e, *password, *admin)
	case "grant":
		return setAdmin(db, out, e, true)
	case "revoke":
		return setAdmin(db, out, e, false)
	case "reset-password":
		return resetPassword(db, out, e, *password)
	default:
		return listUsers(db, out)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `Usage: kazna-admin <command> [flags]

Commands:
  create-user     -email E -password P [-admin]
  grant           -email E
  revoke          -email E
  reset-password  -email E -password P
  list-users
  gen-vapid
  decrypt-archive -in FILE [-out FILE]   (passphrase from KAZNA_ARCHIVE_PASSPHRASE)

Common flags:
  -db PATH        database path (default KAZNA_DB_PATH or kazna.db)
`)
}

func createUser(db *sql.DB, out io.Writer, email, password string, admin bool) error {
	if email == "" {
		return errors.New("-email is required")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	users := store.NewUserStore(db)
	existing, err := users.GetByEmail(email)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", email)
	}
	u, err := users.Create(email, hash)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created user %d (%s)\n", u.ID, u.Email)

	if admin {
		return setAdmin(db, out, email, true)
	}
	return nil
}

func lookup(db *sql.DB, email string) (int64, error) {
	if email == "" {
		return 0, errors.New("-email is required")
	}
	u, err := store.NewUserStore(db).GetByEmail(email)
	if err != nil {
		return 0, err
	}
	if u == nil {
		return 0, fmt.Errorf("no user with email %s", email)
	}
	return u.ID, nil
}

func setAdmin(db *sql.DB, out io.Writer, email string, grant bool) error {
	id, err := lookup(db, email)
	if err != nil {
		return err
	}
	admins := store.NewAdminStore(db)
	if grant {
		if err := admins.Grant(id); err != nil {
			return err
		}
		fmt.Fprintf(out, "granted admin to %s\n", email)
		return nil
	}
	if err := admins.Revoke(id); err != nil {
		return err
	}
	fmt.Fprintf(out, "revoked admin from %s\n", email)
	return nil
}

func resetPassword(db *sql.DB, out io.Writer, email, password string) error {
	id, err := lookup(db, email)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := store.NewUserStore(db).UpdatePassword(id, hash); err != nil {
		return err
	}
	// Existing sessions must sign in again with the new password.
	if err := store.NewSessionStore(db).DeleteByUserID(id); err != nil {
		return err
	}
	fmt.Fprintf(out, "password reset for %s\n", email)
	return nil
}

func listUsers(db *sql.DB, out io.Writer) error {
	users, err := store.NewUserStore(db).List()
	if err != nil {
		return err
	}
	admins := store.NewAdminStore(db)
	for _, u := range users {
		isAdmin, err := admins.IsAdmin(u.ID)
		if err != nil {
			return err
		}
		role := "visitor"
		if isAdmin {
			role = "admin"
		}
		fmt.Fprintf(out, "%d\t%s\t%s\n", u.ID, u.Email, role)
	}
	return nil
}

func decryptArchive(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("decrypt-archive", flag.ContinueOnError)
	fs.SetOutput(out)
	in := fs.String("in", "", "encrypted statement file")
	dst := fs.String("out", "", "write plaintext here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Archive.Passphrase == "" {
		return errors.New("KAZNA_ARCHIVE_PASSPHRASE is not set")
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	plain, err := archive.Open(data, cfg.Archive.Passphrase)
	if err != nil {
		return err
	}
	if *dst != "" {
		return os.WriteFile(*dst, plain, 0600)
	}
	_, err = out.Write(plain)
	return err
}
