// Package api provides the HTTP server for reconcile.
// It exposes batch reconciliation and ledger access per owner.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconcile/internal/buildinfo"
	"github.com/cleared-dev/reconcile/internal/importer"
	"github.com/cleared-dev/reconcile/internal/ledger"
	"github.com/cleared-dev/reconcile/internal/model"
	"github.com/cleared-dev/reconcile/internal/reconcile"
	"github.com/cleared-dev/reconcile/internal/workspace"
)

// MaxImportBytes caps the size of an uploaded bank export.
const MaxImportBytes = 10 << 20

// Server is the reconcile HTTP API server.
type Server struct {
	ws             *workspace.Workspace
	metricsEnabled bool
	timeout        time.Duration
}

// NewServer creates a new API server over an open workspace.
func NewServer(ws *workspace.Workspace) *Server {
	return &Server{ws: ws, timeout: time.Minute}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": buildinfo.Version,
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/formats", s.handleFormats)
		r.Route("/owners/{owner}", func(r chi.Router) {
			r.Use(ownerCtx)
			r.Post("/reconcile", s.handleReconcile)
			r.Get("/ledger", s.handleListLedger)
			r.Post("/ledger", s.handleCreateLedger)
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ownerCtx rejects owner IDs the ledger stores cannot hold.
func ownerCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := ledger.CheckOwner(chi.URLParam(r, "owner")); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"formats": s.ws.Parsers.Formats()})
}

// handleReconcile runs one batch. The request body is the raw bank export.
//
// Query parameters:
//
//	format   parser name, default from config
//	create   bulk-create unmatched rows
//	link     write back-references for matches, default from config
//	dry_run  match and resolve without writing
//	match    row:ledgerID, repeatable
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := workspace.BatchRequest{
		Owner:  chi.URLParam(r, "owner"),
		Format: q.Get("format"),
		Source: "api",
	}

	var err error
	if req.Create, err = queryBool(q.Get("create")); err != nil {
		writeError(w, http.StatusBadRequest, "create: "+err.Error())
		return
	}
	if req.DryRun, err = queryBool(q.Get("dry_run")); err != nil {
		writeError(w, http.StatusBadRequest, "dry_run: "+err.Error())
		return
	}
	if v := q.Get("link"); v != "" {
		link, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "link: "+err.Error())
			return
		}
		req.Link = &link
	}
	if req.Matches, err = workspace.ParseMatches(q["match"], ":"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Raw, err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImportBytes))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, "reading body: "+err.Error())
		return
	}

	out, err := s.ws.RunBatch(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newBatchResponse(out))
}

func (s *Server) handleListLedger(w http.ResponseWriter, r *http.Request) {
	txns, err := s.ws.Ledger.List(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	views := make([]ledgerView, len(txns))
	for i, t := range txns {
		views[i] = newLedgerView(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": views})
}

type createLedgerRequest struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   model.Direction `json:"direction"`
	Category    string          `json:"category"`
}

func (s *Server) handleCreateLedger(w http.ResponseWriter, r *http.Request) {
	var body createLedgerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	fields := model.LedgerFields{
		Description: body.Description,
		Amount:      body.Amount,
		Direction:   body.Direction,
		Category:    body.Category,
	}
	if body.Date != "" {
		d, err := time.Parse(model.DateFormat, body.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("date %q: want YYYY-MM-DD", body.Date))
			return
		}
		fields.Date = d
	}
	if fields.Category == "" {
		fields.Category = model.Uncategorized
	}

	txn, err := s.ws.Ledger.Create(r.Context(), chi.URLParam(r, "owner"), fields)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, newLedgerView(txn))
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		ierr *importer.ImportError
		verr ledger.ValidationErrors
	)
	switch {
	case errors.As(err, &ierr), errors.Is(err, workspace.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reconcile.ErrUnknownLedger), errors.Is(err, reconcile.ErrUnknownRow),
		errors.Is(err, reconcile.ErrAlreadyCreated):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"status":  status,
		},
	})
}
