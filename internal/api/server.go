package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/apimap/internal/config"
	"github.com/QTest-hq/apimap/internal/engine"
	"github.com/QTest-hq/apimap/internal/render"
	"github.com/QTest-hq/apimap/internal/source"
	"github.com/QTest-hq/apimap/pkg/model"
)

// Server exposes the extraction engine and renderers over JSON
type Server struct {
	cfg     *config.Config
	router  *chi.Mux
	fetcher *source.Fetcher
}

// ExtractRequest is the request body of /extract and /detect
type ExtractRequest struct {
	Path      string `json:"path"`                // directory on the server or git URL
	Framework string `json:"framework,omitempty"` // skips detection
}

// RenderRequest is the request body of /render/{format}
type RenderRequest struct {
	ExtractRequest
	BaseURL string `json:"base_url,omitempty"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
	Lang    string `json:"lang,omitempty"` // snippet language
}

// NewServer creates a new API server
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	s := &Server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		fetcher: source.NewFetcher("", os.Getenv("APIMAP_GIT_TOKEN")),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.RequestTimeout()))
	s.router.Use(corsMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/frameworks", s.listFrameworks)
		r.Get("/formats", s.listFormats)
		r.Post("/detect", s.detect)
		r.Post("/extract", s.extract)
		r.Post("/render/{format}", s.render)
	})
}

// RequestTimeout leaves room for the scan ceiling plus a clone
func (s *Server) RequestTimeout() time.Duration {
	if s.cfg.Scan.Timeout > 0 {
		return s.cfg.Scan.Timeout + 30*time.Second
	}
	return 5 * time.Minute
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listFrameworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"frameworks": model.Frameworks()})
}

func (s *Server) listFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"formats":  render.Formats(),
		"snippets": render.NewSnippetRegistry().List(),
	})
}

func (s *Server) detect(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if !decode(w, r, &req) {
		return
	}
	root, release, ok := s.resolve(r.Context(), w, req.Path)
	if !ok {
		return
	}
	defer release()

	fw := s.engine(req.Framework).Detect(root)
	writeJSON(w, http.StatusOK, map[string]string{"framework": string(fw)})
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if !decode(w, r, &req) {
		return
	}
	res, ok := s.run(r.Context(), w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if !slices.Contains(render.Formats(), format) {
		writeError(w, http.StatusNotFound, "unknown format: "+format)
		return
	}

	var req RenderRequest
	if !decode(w, r, &req) {
		return
	}
	res, ok := s.run(r.Context(), w, req.ExtractRequest)
	if !ok {
		return
	}

	opts := render.Options{Title: req.Title, Version: req.Version, BaseURL: req.BaseURL}
	if format == render.FormatOpenAPI || format == render.FormatOpenAPIYAML {
		if err := render.ValidateOpenAPI(r.Context(), render.OpenAPI(res.Endpoints, opts)); err != nil {
			log.Warn().Err(err).Str("path", req.Path).Msg("generated OpenAPI document does not validate")
		}
	}

	data, err := render.Artifact(format, res.Endpoints, opts, req.Lang)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", render.ContentType(format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// run resolves the request target and extracts it, writing the error
// response itself when the target cannot be opened.
func (s *Server) run(ctx context.Context, w http.ResponseWriter, req ExtractRequest) (*model.Result, bool) {
	root, release, ok := s.resolve(ctx, w, req.Path)
	if !ok {
		return nil, false
	}
	defer release()

	res := s.engine(req.Framework).Extract(ctx, root)
	res.Root = req.Path
	return res, true
}

func (s *Server) resolve(ctx context.Context, w http.ResponseWriter, target string) (string, func(), bool) {
	if target == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return "", nil, false
	}
	root, release, err := s.fetcher.Resolve(ctx, target)
	if err != nil {
		log.Debug().Err(err).Str("path", target).Msg("cannot resolve scan target")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return "", nil, false
	}
	return root, release, true
}

func (s *Server) engine(framework string) *engine.Engine {
	opts := engine.FromConfig(s.cfg)
	if framework != "" {
		opts.Overrides = &config.ProjectConfig{Framework: framework}
	}
	return engine.New(opts)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
