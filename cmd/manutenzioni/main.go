// Command manutenzioni runs the maintenance tracker server and its
// administrative tasks.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&serveCmd{}, "")
	commander.Register(&addUserCmd{}, "admin")
	commander.Register(&passwdCmd{}, "admin")
	commander.Register(&importCmd{}, "data")
	commander.Register(&exportCmd{}, "data")
	commander.Register(&backupCmd{}, "admin")
	commander.Register(&decryptCmd{}, "admin")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
