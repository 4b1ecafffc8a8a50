// Package api serves comparisons and stored snapshots over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/serpcmp/internal/compare"
	"github.com/FranksOps/serpcmp/internal/config"
	"github.com/FranksOps/serpcmp/internal/metrics"
	"github.com/FranksOps/serpcmp/internal/pipeline"
	"github.com/FranksOps/serpcmp/internal/serp"
	"github.com/FranksOps/serpcmp/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CredentialHeader carries a per-request API key when the server has none configured.
const CredentialHeader = "X-Api-Key"

// maxBody bounds a compare request body.
const maxBody = 64 << 10

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Pipeline    *pipeline.Pipeline
	Backend     storage.Backend // optional; /api/snapshots answers 404 without it
	Credential  string
	ResultCount int
	Logger      *slog.Logger
}

// CompareRequest is the body of POST /api/compare.
type CompareRequest struct {
	Queries     []compare.Query `json:"queries"`
	ResultCount int             `json:"result_count"`
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/compare", s.handleCompare)
		r.Get("/snapshots", s.handleSnapshots)
	})
	return r
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	if err := config.ValidateQueries(req.Queries); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	count := req.ResultCount
	if count == 0 {
		count = s.ResultCount
	}
	if count < config.MinResultCount || count > config.MaxResultCount {
		writeError(w, http.StatusBadRequest, fmt.Errorf("result_count must be between %d and %d", config.MinResultCount, config.MaxResultCount))
		return
	}

	credential := s.Credential
	if credential == "" {
		credential = r.Header.Get(CredentialHeader)
	}

	run, err := s.Pipeline.Run(r.Context(), pipeline.RunConfig{
		Queries:     req.Queries,
		ResultCount: count,
		Credential:  credential,
	})
	switch {
	case errors.Is(err, compare.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, serp.ErrMissingCredential):
		writeError(w, http.StatusUnauthorized, err)
		return
	case err != nil:
		s.Logger.Error("compare failed", "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.Backend == nil {
		writeError(w, http.StatusNotFound, errors.New("no storage backend configured"))
		return
	}

	filter := storage.Filter{
		Keyword: r.URL.Query().Get("keyword"),
		Limit:   queryInt(r, "limit", 50),
		Offset:  queryInt(r, "offset", 0),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since: %w", err))
			return
		}
		filter.Since = &t
	}

	snaps, err := s.Backend.Query(r.Context(), filter)
	if err != nil {
		s.Logger.Error("snapshot query failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Info("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return def
	}
	return v
}
