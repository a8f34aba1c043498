// Package server exposes the ingestion, correction and analytics
// operations over HTTP.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/smartdoc/policyd/internal/analytics"
	"github.com/smartdoc/policyd/internal/apperr"
	"github.com/smartdoc/policyd/internal/corrections"
	"github.com/smartdoc/policyd/internal/ingest"
	"github.com/smartdoc/policyd/internal/model"
	"github.com/smartdoc/policyd/internal/store"
)

// Server holds the handlers' dependencies.
type Server struct {
	ingest         *ingest.Service
	tracker        *corrections.Tracker
	analytics      *analytics.Engine
	store          store.Store
	maxUploadBytes int64
	allowedOrigins []string
}

// Options configure the HTTP surface.
type Options struct {
	MaxUploadMB    int
	AllowedOrigins []string
}

// New creates a Server.
func New(ing *ingest.Service, tracker *corrections.Tracker, eng *analytics.Engine, st store.Store, opts Options) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 32
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		ingest:         ing,
		tracker:        tracker,
		analytics:      eng,
		store:          st,
		maxUploadBytes: int64(opts.MaxUploadMB) << 20,
		allowedOrigins: opts.AllowedOrigins,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", handleHealth)
	r.Post("/extract", s.handleExtract)
	r.Post("/save", s.handleSave)
	r.Post("/analytics", s.handleAnalytics)
	r.Post("/analytics/trends", s.handleTrends)
	r.Post("/analytics/pdf-details", s.handleDocumentList)
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExtract accepts a multipart upload ("file" plus "user_id") and
// runs the full ingestion pipeline on it.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "server: parse multipart form"))
		return
	}

	ownerID := r.FormValue("user_id")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "server: missing file part"))
		return
	}
	defer file.Close() //nolint:errcheck

	// The pipeline reads from disk and names the document after the
	// file, so stage the upload under its original filename.
	dir, err := os.MkdirTemp("", "policyd-upload-")
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindUnknown, err, "server: create upload dir"))
		return
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	path := filepath.Join(dir, filepath.Base(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindUnknown, err, "server: stage upload"))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close() //nolint:errcheck
		writeError(w, apperr.Wrap(apperr.KindUnknown, err, "server: stage upload"))
		return
	}
	if err := dst.Close(); err != nil {
		writeError(w, apperr.Wrap(apperr.KindUnknown, err, "server: stage upload"))
		return
	}

	doc, err := s.ingest.IngestFile(r.Context(), path, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type saveRequest struct {
	DocumentID string            `json:"pdf_id"`
	OwnerID    string            `json:"user_id"`
	Fields     map[string]string `json:"fields"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "server: decode save request"))
		return
	}

	changed, err := s.tracker.Save(r.Context(), req.DocumentID, req.OwnerID, req.Fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "changed": changed})
}

type analyticsRequest struct {
	OwnerID string `json:"user_id"`
	Window  string `json:"time_frame"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	var req analyticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "server: decode analytics request"))
		return
	}

	result, err := s.analytics.Calculate(r.Context(), req.OwnerID, model.Window(req.Window))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	var req analyticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "server: decode trends request"))
		return
	}

	points, err := s.analytics.Trend(r.Context(), req.OwnerID, model.Window(req.Window))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trend": points})
}

func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	var req analyticsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalidInput, err, "server: decode document list request"))
		return
	}
	if req.OwnerID == "" {
		writeError(w, apperr.New(apperr.KindInvalidInput, "missing user id"))
		return
	}

	docs, err := s.store.ListDocuments(r.Context(), req.OwnerID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindPersistence, err, "server: list documents"))
		return
	}

	summaries := make([]model.Summary, len(docs))
	for i := range docs {
		summaries[i] = docs[i].Summarize()
	}
	writeJSON(w, http.StatusOK, map[string]any{"pdfs": summaries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

// writeError maps application error kinds to HTTP statuses. Internal
// detail is logged, never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	var status int
	var msg string
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
		msg = err.Error()
	case apperr.KindNotFound:
		status = http.StatusNotFound
		msg = err.Error()
	default:
		status = http.StatusInternalServerError
		msg = "internal server error"
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
