package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/dukerupert/manutenzioni/internal/backup"
	"github.com/dukerupert/manutenzioni/internal/config"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/google/subcommands"
)

type backupCmd struct {
	prune bool
}

func (*backupCmd) Name() string     { return "backup" }
func (*backupCmd) Synopsis() string { return "upload a database snapshot to object storage" }
func (*backupCmd) Usage() string {
	return `manutenzioni backup [-prune]

  Takes a snapshot of the database and uploads it to the backups prefix of
  the configured bucket, encrypted when MANUTENZIONI_BACKUP_PASSPHRASE is set.
`
}

func (c *backupCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.prune, "prune", false, "Also delete snapshots older than MANUTENZIONI_BACKUP_RETENTION.")
}

func (c *backupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	blobs := storage.New(e.cfg.S3, e.logger)
	m := backup.NewManager(e.db, store.NewBackupStore(e.db), blobs, e.cfg.Backup.Passphrase, e.logger.With("component", "backup"))

	b, err := m.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("uploaded %s (%d bytes)\n", b.ObjectKey, b.SizeBytes)

	if c.prune {
		n, err := m.Prune(ctx, e.cfg.Backup.Retention)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("pruned %d old snapshots\n", n)
	}
	return subcommands.ExitSuccess
}

type decryptCmd struct {
	out string
}

func (*decryptCmd) Name() string     { return "decrypt" }
func (*decryptCmd) Synopsis() string { return "decrypt a downloaded snapshot" }
func (*decryptCmd) Usage() string {
	return `manutenzioni decrypt -o <file.db> <snapshot.db.enc>

  Uses MANUTENZIONI_BACKUP_PASSPHRASE. The result is a plain SQLite file
  that can replace the database while the server is stopped.
`
}

func (c *decryptCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "Output path (required).")
}

func (c *decryptCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.out == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	passphrase := cfg.Backup.Passphrase
	if passphrase == "" {
		fmt.Fprintln(os.Stderr, "MANUTENZIONI_BACKUP_PASSPHRASE is not set")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	plain, err := backup.Decrypt(data, passphrase)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := os.WriteFile(c.out, plain, 0o600); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("wrote %s\n", c.out)
	return subcommands.ExitSuccess
}
