// Package api implements the crateplan HTTP API.
//
// The API exposes the feature-resolution engine over HTTP for callers that
// keep their crate graphs out of process: POST a graph plus a resolution
// request, get back the activation list and merged map, or a stored build
// plan. All endpoints are JSON; errors carry the structured error code.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crateplan/crateplan/pkg/crate"
	"github.com/crateplan/crateplan/pkg/errors"
	"github.com/crateplan/crateplan/pkg/manifest"
	"github.com/crateplan/crateplan/pkg/observability"
	"github.com/crateplan/crateplan/pkg/plan"
	"github.com/crateplan/crateplan/pkg/resolve"
)

// Server handles API requests. Construct with NewServer.
type Server struct {
	logger *log.Logger
	store  plan.Store
	opts   resolve.Options
}

// NewServer creates an API server backed by the given plan store.
// A nil logger falls back to log.Default().
func NewServer(logger *log.Logger, store plan.Store, opts resolve.Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{logger: logger, store: store, opts: opts}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Post("/plan", s.handlePlan)
		r.Get("/plan/{id}", s.handleGetPlan)
	})
	return r
}

// resolveRequest is the request body for /resolve and /plan: a graph in the
// JSON interchange format plus the resolution request.
type resolveRequest struct {
	Graph    json.RawMessage `json:"graph"`
	Root     crate.ID        `json:"root"`
	Features []string        `json:"features"`
}

// resolveResponse is the /resolve response body.
type resolveResponse struct {
	Activations resolve.ActivationList `json:"activations"`
	Merged      resolve.MergedMap      `json:"merged"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	g, req, err := s.decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	list, merged, err := resolve.Resolve(g, req.Root, req.Features, s.opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Activations: list, Merged: merged})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	g, req, err := s.decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	list, merged, err := resolve.Resolve(g, req.Root, req.Features, s.opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	p := plan.New(g, req.Root, req.Features, list, merged)
	if err := s.store.Put(r.Context(), p); err != nil {
		s.writeError(w, err)
		return
	}
	observability.Resolve().OnPlanWritten(r.Context(), p.ID, len(p.Packages))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) decodeRequest(r *http.Request) (crate.Graph, *resolveRequest, error) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
	}
	if len(req.Graph) == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "missing graph")
	}
	if req.Root == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "missing root")
	}
	g, err := manifest.ParseGraph(req.Graph)
	if err != nil {
		return nil, nil, err
	}
	return g, &req, nil
}

// errorResponse is the JSON body for failed requests.
type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// writeError maps structured error codes to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidGraph,
		errors.ErrCodeInvalidManifest, errors.ErrCodeDanglingReference,
		errors.ErrCodeDepthExceeded:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodePackageNotFound,
		errors.ErrCodePlanNotFound:
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{
		Code:    errors.GetCode(err),
		Message: errors.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// observe emits HTTP hook events and debug logs for every request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), elapsed)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", elapsed.Round(time.Millisecond))
	})
}
