package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/manutenzioni/internal/report"
)

const defaultMonthOptions = 12

type ReportHandler struct {
	generator *report.Generator
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

func NewReportHandler(g *report.Generator, loc *time.Location, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{generator: g, loc: loc, now: time.Now, logger: logger}
}

// Completed renders the completed-task report for ?month=YYYY-MM or
// ?from=YYYY-MM-DD&to=YYYY-MM-DD as a CSV or XLSX attachment.
func (h *ReportHandler) Completed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format, err := report.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var rng report.Range
	switch {
	case q.Get("month") != "":
		rng, err = report.MonthRange(q.Get("month"), h.loc)
	case q.Get("from") != "" || q.Get("to") != "":
		rng, err = report.DatesRange(q.Get("from"), q.Get("to"), h.loc)
	default:
		writeError(w, http.StatusBadRequest, "specifica month oppure from e to")
		return
	}
	if err != nil {
		fail(w, h.logger, err, "invalid range")
		return
	}

	rep, err := h.generator.Generate(rng, format)
	if err != nil {
		fail(w, h.logger, err, "failed to generate report")
		return
	}

	w.Header().Set("Content-Type", rep.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Data)))
	w.Write(rep.Data)
}

// Months lists the selectable report months, most recent first.
func (h *ReportHandler) Months(w http.ResponseWriter, r *http.Request) {
	n := defaultMonthOptions
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 60 {
			writeError(w, http.StatusBadRequest, "n must be between 1 and 60")
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, report.MonthOptions(h.now(), h.loc, n))
}
