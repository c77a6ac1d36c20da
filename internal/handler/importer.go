package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/manutenzioni/internal/csvimport"
	"github.com/dukerupert/manutenzioni/internal/task"
)

type ImportHandler struct {
	importer *csvimport.Importer
	hub      task.Broadcaster
	logger   *slog.Logger
}

func NewImportHandler(im *csvimport.Importer, hub task.Broadcaster, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{importer: im, hub: hub, logger: logger}
}

// csvBody returns the uploaded "file" part, or the raw body when the
// request is not multipart.
func csvBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, csvimport.MaxFileSize+multipartOverhead)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, csvimport.ErrTooLarge
			}
			return nil, errors.New("missing file")
		}
		return file, nil
	}
	return r.Body, nil
}

func (h *ImportHandler) run(w http.ResponseWriter, r *http.Request, entity string, fn func(io.Reader) (csvimport.Result, error)) {
	body, err := csvBody(w, r)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fail(w, h.logger, err, "failed to read file")
		return
	}
	defer body.Close()

	res, err := fn(body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = csvimport.ErrTooLarge
		}
		fail(w, h.logger, err, "import failed")
		return
	}
	if res.Errors == nil {
		res.Errors = []csvimport.RowError{}
	}
	if res.Imported > 0 {
		h.hub.Notify(entity, "imported", "")
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ImportHandler) Houses(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "house", h.importer.Houses)
}

func (h *ImportHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "task", h.importer.Tasks)
}

// Template serves a sample CSV for /api/import/templates/{kind}.
func (h *ImportHandler) Template(w http.ResponseWriter, r *http.Request) {
	name, data, err := csvimport.Template(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Write(data)
}
