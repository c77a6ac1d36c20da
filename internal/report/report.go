// Package report renders completed tasks as downloadable CSV or XLSX.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dukerupert/manutenzioni/internal/locale"
	"github.com/dukerupert/manutenzioni/internal/model"
	"github.com/dukerupert/manutenzioni/internal/store"
	"github.com/dukerupert/manutenzioni/internal/task"
	"github.com/xuri/excelize/v2"
)

var ErrNoTasks = errors.New("nessuna task trovata per il periodo selezionato")

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

var Header = []string{
	"Nome Casa",
	"Data e Ora Task",
	"Descrizione",
	"Priorità",
	"Rilevato da",
	"Stato",
	"Operatore/Azienda",
	"Data e Ora Completamento",
	"Costo Manutenzione (€)",
}

const costColumn = 8

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return locale.NotAvailable
	}
	return s
}

// Row renders one task as report cells.
func Row(d model.TaskDetail, loc *time.Location) []string {
	operator := ""
	if d.Operator != nil {
		operator = *d.Operator
	}
	costCell := locale.NotAvailable
	if d.Cost != nil {
		costCell = d.Cost.StringFixed(2)
	}
	return []string{
		orNA(d.TargetName),
		locale.DateTime(d.CreatedAt, loc),
		orNA(d.Description),
		orNA(strings.ToUpper(string(d.Priority))),
		orNA(d.ReportedBy),
		task.StatusLabel(d.Status),
		orNA(operator),
		locale.DateTimeOrNA(d.CompletedAt, loc),
		costCell,
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteCSV writes a UTF-8 BOM, the header and one line per task. Every
// field is double quoted and fields are separated by semicolons.
func WriteCSV(w io.Writer, tasks []model.TaskDetail, loc *time.Location) error {
	var b strings.Builder
	b.WriteString("\ufeff")
	writeLine := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteString(quote(c))
		}
		b.WriteByte('\n')
	}
	writeLine(Header)
	for _, d := range tasks {
		writeLine(Row(d, loc))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

const sheetName = "Report"

// WriteXLSX writes a single-sheet workbook with a bold header. Costs are
// numeric cells.
func WriteXLSX(w io.Writer, tasks []model.TaskDetail, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, d := range tasks {
		cells := Row(d, loc)
		values := make([]any, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		if d.Cost != nil {
			values[costColumn] = d.Cost.Round(2).InexactFloat64()
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheetName, "A", "I", 22); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Report is a rendered file ready for download.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

type Generator struct {
	tasks *store.TaskStore
	loc   *time.Location
}

func NewGenerator(ts *store.TaskStore, loc *time.Location) *Generator {
	return &Generator{tasks: ts, loc: loc}
}

// Generate renders the tasks completed within r, archived ones included.
func (g *Generator) Generate(r Range, f Format) (*Report, error) {
	tasks, err := g.tasks.ListCompletedBetween(r.From, r.To)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	var buf bytes.Buffer
	switch f {
	case FormatXLSX:
		err = WriteXLSX(&buf, tasks, g.loc)
	default:
		f = FormatCSV
		err = WriteCSV(&buf, tasks, g.loc)
	}
	if err != nil {
		return nil, err
	}
	return &Report{
		Filename:    r.Filename(string(f)),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
		Rows:        len(tasks),
	}, nil
}
