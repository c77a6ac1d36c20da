// Package csvimport reads houses and tasks from delimited files.
package csvimport

import (
	"bytes"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/cost"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
)

const MaxFileSize = 5 << 20

var (
	ErrMissingHeader = errors.New("missing required column")
	ErrEmptyFile     = errors.New("file has no header row")
	ErrTooLarge      = fmt.Errorf("file exceeds %d MiB", MaxFileSize>>20)
)

const bom = "\ufeff"

// RowError explains why a data row was skipped. Line is the 1-based line
// of the file where the row starts.
type RowError struct {
	Line   int    `json:"riga"`
	Reason string `json:"motivo"`
}

type Result struct {
	Imported int        `json:"importati"`
	Errors   []RowError `json:"errori"`
}

// DetectDelimiter picks ';' when the header line has at least as many
// semicolons as commas outside quotes, ',' otherwise.
func DetectDelimiter(data []byte) rune {
	var semis, commas int
	inQuotes := false
scan:
	for _, b := range data {
		switch b {
		case '"':
			inQuotes = !inQuotes
		case ';':
			if !inQuotes {
				semis++
			}
		case ',':
			if !inQuotes {
				commas++
			}
		case '\n':
			if !inQuotes {
				break scan
			}
		}
	}
	if semis > 0 && semis >= commas {
		return ';'
	}
	return ','
}

type record struct {
	line   int
	fields map[string]string
}

// table is a parsed file: normalised header names and the data rows.
type table struct {
	header  []string
	records []record
}

func (t table) has(col string) bool {
	for _, h := range t.header {
		if h == col {
			return true
		}
	}
	return false
}

func (t table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingHeader, strings.Join(missing, ", "))
	}
	return nil
}

func normaliseHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, bom)))
}

func readTable(r io.Reader) (table, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return table{}, fmt.Errorf("read csv: %w", err)
	}
	if len(data) > MaxFileSize {
		return table{}, ErrTooLarge
	}
	data = bytes.TrimPrefix(data, []byte(bom))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = DetectDelimiter(data)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return table{}, ErrEmptyFile
	}
	if err != nil {
		return table{}, fmt.Errorf("read header: %w", err)
	}
	t := table{header: make([]string, len(header))}
	for i, h := range header {
		t.header[i] = normaliseHeader(h)
	}

	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table{}, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec := record{line: line, fields: make(map[string]string, len(t.header))}
		blank := true
		for i, name := range t.header {
			if i < len(fields) {
				v := strings.TrimSpace(fields[i])
				rec.fields[name] = v
				if v != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		t.records = append(t.records, rec)
	}
	return t, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// ParseHouses reads house rows. Rows without a name are reported and
// skipped.
func ParseHouses(r io.Reader) ([]store.HouseInput, []RowError, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, nil, err
	}
	if err := t.require("nome"); err != nil {
		return nil, nil, err
	}

	var houses []store.HouseInput
	var rowErrs []RowError
	for _, rec := range t.records {
		name := rec.fields["nome"]
		if name == "" {
			rowErrs = append(rowErrs, RowError{Line: rec.line, Reason: "nome mancante"})
			continue
		}
		houses = append(houses, store.HouseInput{
			Name:    name,
			Address: optional(rec.fields["indirizzo"]),
			Notes:   optional(rec.fields["note"]),
		})
	}
	return houses, rowErrs, nil
}

// ParseTasks reads task rows, resolving casa_nome through houses (exact
// match). Completed rows are stamped with now.
func ParseTasks(r io.Reader, houses map[string]string, now time.Time) ([]store.TaskInput, []RowError, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, nil, err
	}
	if err := t.require("casa_nome", "descrizione", "rilevato_da"); err != nil {
		return nil, nil, err
	}

	var tasks []store.TaskInput
	var rowErrs []RowError
	fail := func(line int, format string, args ...any) {
		rowErrs = append(rowErrs, RowError{Line: line, Reason: fmt.Sprintf(format, args...)})
	}

	for _, rec := range t.records {
		f := rec.fields
		houseID, ok := houses[f["casa_nome"]]
		switch {
		case f["casa_nome"] == "":
			fail(rec.line, "casa_nome mancante")
			continue
		case !ok:
			fail(rec.line, "casa %q non trovata", f["casa_nome"])
			continue
		case f["descrizione"] == "":
			fail(rec.line, "descrizione mancante")
			continue
		case f["rilevato_da"] == "":
			fail(rec.line, "rilevato_da mancante")
			continue
		}

		priority, err := model.ParsePriority(f["priorita"])
		if err != nil {
			fail(rec.line, "priorità %q non valida", f["priorita"])
			continue
		}
		status, err := model.ParseStatus(f["stato"])
		if err != nil {
			fail(rec.line, "stato %q non valido", f["stato"])
			continue
		}
		amount, err := cost.FromGross(f["costo"])
		if err != nil {
			fail(rec.line, "costo %q non valido", f["costo"])
			continue
		}

		in := store.TaskInput{
			Target:      model.HouseTarget(houseID),
			Description: f["descrizione"],
			Notes:       optional(f["note"]),
			Priority:    priority,
			ReportedBy:  f["rilevato_da"],
			Operator:    optional(f["operatore"]),
			Cost:        amount.Value(),
			Status:      status,
		}
		if status != model.StatusPending {
			completed := now
			in.CompletedAt = &completed
		}
		tasks = append(tasks, in)
	}
	return tasks, rowErrs, nil
}

//go:embed templates/*.csv
var templates embed.FS

// Template returns a sample file for kind ("case" or "task").
func Template(kind string) (name string, data []byte, err error) {
	switch kind {
	case "case", "houses":
		name = "esempio_case.csv"
	case "task", "tasks":
		name = "esempio_task.csv"
	default:
		return "", nil, fmt.Errorf("unknown template %q", kind)
	}
	data, err = templates.ReadFile("templates/" + name)
	if err != nil {
		return "", nil, fmt.Errorf("read template: %w", err)
	}
	return name, data, nil
}
