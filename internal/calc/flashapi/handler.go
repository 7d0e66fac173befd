// Package flashapi serves the flash endpoints: request validation, the grid
// run and the JSON, OLGA TAB, XLSX and PDF renderings of its results.
package flashapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"Flashgrid/internal/auth"
	"Flashgrid/internal/calc/export"
	"Flashgrid/internal/calc/report"
	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
	"Flashgrid/internal/grid"
	"Flashgrid/internal/olga"
	"Flashgrid/internal/repo"
)

type Handler struct {
	Orchestrator *flash.Orchestrator
	Repo         repo.Repository
	Defaults     Defaults
	MaxBodyBytes int64
	HistoryLimit int
	Log          log.FieldLogger
}

type jsonResponse struct {
	RunID    uuid.UUID      `json:"run_id"`
	Results  []*flash.State `json:"results"`
	GridInfo flash.GridInfo `json:"grid_info"`
}

func (h *Handler) logger() log.FieldLogger {
	if h.Log == nil {
		return log.StandardLogger()
	}
	return h.Log
}

// Calc returns the handler for one flash endpoint.
func (h *Handler) Calc(kind flash.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serve(w, r, kind, false)
	}
}

// PHFlashOLGA always answers in OLGA TAB.
func (h *Handler) PHFlashOLGA(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, flash.PH, true)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, kind flash.Kind, forceOLGA bool) {
	if h.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	in, err := Decode(r.Body)
	if err != nil {
		WriteError(w, err)
		return
	}
	prep, err := Prepare(kind, in, h.Defaults, forceOLGA)
	if err != nil {
		WriteError(w, err)
		return
	}

	run, err := h.Orchestrator.CalculateGrid(r.Context(), prep.Request)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.Record(r.Context(), run, prep.Format)

	w.Header().Set("X-Run-ID", run.ID.String())
	if err := Render(w, run, prep); err != nil {
		h.logger().WithError(err).WithField("run", run.ID).Error("rendering response")
	}
}

// Render writes run in the prepared format. Encoding failures before any
// byte is written become a 500 with a plain-text diagnostic.
func Render(w http.ResponseWriter, run *flash.Run, prep Prepared) error {
	switch prep.Format {
	case FormatOLGA, FormatXLSX:
		doc, err := olga.Build(run.Kind, run.X.Points, run.Y.Points, run.Results(), run.Composition, run.MolarMass)
		if err != nil {
			writeFormattingError(w, err)
			return err
		}
		if prep.Format == FormatOLGA {
			return writeTab(w, doc)
		}
		book, err := export.Workbook(doc, run)
		if err != nil {
			writeFormattingError(w, err)
			return err
		}
		defer book.Close()
		name := strings.TrimSuffix(doc.Endpoint.Filename(), ".tab") + ".xlsx"
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+name)
		return book.Write(w)

	case FormatPDF:
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename=\"report.pdf\"")
		return report.Generate(w, report.Input{Run: run, System: prep.System})

	default:
		results := run.Results()
		out := make([]*flash.State, len(results))
		for k, s := range results {
			out[k] = s.Converted(prep.System, run.MolarMass)
		}
		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(jsonResponse{RunID: run.ID, Results: out, GridInfo: run.Info})
	}
}

func writeTab(w http.ResponseWriter, doc *olga.Document) error {
	body, err := render(doc)
	if err != nil {
		writeFormattingError(w, err)
		return err
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+doc.Endpoint.Filename())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, err = io.WriteString(w, body)
	return err
}

func render(doc *olga.Document) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &olga.FormattingError{Stage: "render", Err: fmt.Errorf("%v", r)}
		}
	}()
	return doc.Render(), nil
}

func writeFormattingError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	fmt.Fprintf(w, "Error formatting OLGA TAB response: %v\n", err)
}

// Record stores a run in the history. Failures are logged, not returned.
func (h *Handler) Record(ctx context.Context, run *flash.Run, format Format) {
	if h.Repo == nil {
		return
	}
	err := h.Repo.SaveRun(ctx, repo.Run{
		ID:        run.ID,
		Endpoint:  string(run.Kind),
		Fluid:     run.Composition.Descriptor(),
		NX:        run.Info.XPoints,
		NY:        run.Info.YPoints,
		Points:    run.Info.TotalPoints,
		Failed:    run.Info.FailedPoints,
		Format:    string(format),
		CreatedAt: run.Started.UTC(),
	})
	entry := h.logger().WithFields(log.Fields{"run": run.ID, "subject": auth.Subject(ctx)})
	if err != nil {
		entry.WithError(err).Warn("saving run history")
		return
	}
	entry.WithField("points", run.Info.TotalPoints).Debug("run recorded")
}

// Runs lists recent runs, newest first. ?limit= caps the list.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := h.HistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			WriteError(w, &fluid.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		if limit <= 0 || n < limit {
			limit = n
		}
	}
	runs := []repo.Run{}
	if h.Repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		got, err := h.Repo.RecentRuns(ctx, limit)
		if err != nil {
			h.logger().WithError(err).Error("listing runs")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run history unavailable"})
			return
		}
		if got != nil {
			runs = got
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// ImportComposition reads a composition from an uploaded workbook.
func (h *Handler) ImportComposition(w http.ResponseWriter, r *http.Request) {
	if h.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBodyBytes)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		WriteError(w, &fluid.ValidationError{Field: "file", Reason: "file required"})
		return
	}
	defer file.Close()

	comp, err := export.ReadComposition(file)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"composition": comp})
}

// WriteError maps validation failures to 400 and everything else to 500.
func WriteError(w http.ResponseWriter, err error) {
	var verr *fluid.ValidationError
	var ferr *olga.FormattingError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.As(err, &ferr):
		writeFormattingError(w, err)
	default:
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
	}
}

// statusFor maps a few structural errors to client errors.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	var rangeErr *grid.InvalidRangeError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &rangeErr), errors.Is(err, grid.ErrInvalidResolution):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
