package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dukerupert/manutenzioni/internal/csvimport"
	"github.com/dukerupert/manutenzioni/internal/report"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/google/subcommands"
)

type importCmd struct {
	kind string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import houses or tasks from a CSV file" }
func (*importCmd) Usage() string {
	return `manutenzioni import -kind houses|tasks <file.csv>

  Reads a comma or semicolon separated file with a header row. Rows that
  fail validation are reported and skipped.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.kind, "kind", "tasks", "What the file contains: houses or tasks.")
}

func (c *importCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	file, err := os.Open(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	im := csvimport.NewImporter(store.NewHouseStore(e.db), store.NewTaskStore(e.db), e.logger)
	var res csvimport.Result
	switch c.kind {
	case "houses", "case":
		res, err = im.Houses(file)
	case "tasks", "task":
		res, err = im.Tasks(file)
	default:
		fmt.Fprintf(os.Stderr, "unknown kind %q\n", c.kind)
		return subcommands.ExitUsageError
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	for _, re := range res.Errors {
		fmt.Fprintf(os.Stderr, "riga %d: %s\n", re.Line, re.Reason)
	}
	fmt.Printf("imported %d rows, %d skipped\n", res.Imported, len(res.Errors))
	return subcommands.ExitSuccess
}

type exportCmd struct {
	month  string
	from   string
	to     string
	format string
	out    string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export completed tasks as CSV or XLSX" }
func (*exportCmd) Usage() string {
	return `manutenzioni export (-month YYYY-MM | -from YYYY-MM-DD -to YYYY-MM-DD) [-format csv|xlsx] [-o <dir>]
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.month, "month", "", "Calendar month to export.")
	f.StringVar(&c.from, "from", "", "First day of a custom range.")
	f.StringVar(&c.to, "to", "", "Last day of a custom range.")
	f.StringVar(&c.format, "format", "csv", "Output format, csv or xlsx.")
	f.StringVar(&c.out, "o", ".", "Directory the report is written to.")
}

func (c *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.month == "") == (c.from == "" && c.to == "") {
		f.Usage()
		return subcommands.ExitUsageError
	}
	format, err := report.ParseFormat(c.format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	loc := e.cfg.Location()
	var r report.Range
	if c.month != "" {
		r, err = report.MonthRange(c.month, loc)
	} else {
		r, err = report.DatesRange(c.from, c.to, loc)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	rep, err := report.NewGenerator(store.NewTaskStore(e.db), loc).Generate(r, format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	path := filepath.Join(c.out, rep.Filename)
	if err := os.WriteFile(path, rep.Data, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("wrote %d tasks to %s\n", rep.Rows, path)
	return subcommands.ExitSuccess
}
