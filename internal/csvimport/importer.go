package csvimport

import (
	"io"
	"log/slog"
	"time"

	"github.com/dukerupert/manutenzioni/internal/store"
)

// Importer parses files and inserts every valid row in one transaction.
type Importer struct {
	houses *store.HouseStore
	tasks  *store.TaskStore
	logger *slog.Logger
	now    func() time.Time
}

func NewImporter(hs *store.HouseStore, ts *store.TaskStore, logger *slog.Logger) *Importer {
	return &Importer{
		houses: hs,
		tasks:  ts,
		logger: logger.With("component", "csvimport"),
		now:    time.Now,
	}
}

func (im *Importer) Houses(r io.Reader) (Result, error) {
	houses, rowErrs, err := ParseHouses(r)
	if err != nil {
		return Result{}, err
	}
	res := Result{Errors: rowErrs}
	if len(houses) > 0 {
		if res.Imported, err = im.houses.CreateBatch(houses); err != nil {
			return Result{}, err
		}
	}
	im.logger.Info("houses imported", "imported", res.Imported, "skipped", len(rowErrs))
	return res, nil
}

func (im *Importer) Tasks(r io.Reader) (Result, error) {
	index, err := im.houses.NameIndex()
	if err != nil {
		return Result{}, err
	}
	tasks, rowErrs, err := ParseTasks(r, index, im.now())
	if err != nil {
		return Result{}, err
	}
	res := Result{Errors: rowErrs}
	if len(tasks) > 0 {
		if res.Imported, err = im.tasks.CreateBatch(tasks); err != nil {
			return Result{}, err
		}
	}
	im.logger.Info("tasks imported", "imported", res.Imported, "skipped", len(rowErrs))
	return res, nil
}
