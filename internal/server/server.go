package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"github.com/TobiSchelling/bizscout/internal/database"
	"github.com/TobiSchelling/bizscout/internal/niches"
	"github.com/TobiSchelling/bizscout/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Runner runs one analysis batch.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.BatchResult, error)
}

// BusinessStore reads stored businesses back.
type BusinessStore interface {
	ListBusinesses(ctx context.Context, niche string, limit int) ([]database.StoredBusiness, error)
}

// Server is the HTTP API and HTML index.
type Server struct {
	runner  Runner
	store   BusinessStore
	catalog *niches.Catalog
	pages   map[string]*template.Template
	mux     *http.ServeMux
	now     func() time.Time
}

// New creates a new Server. db may be nil, in which case nothing is listed.
func New(runner Runner, db *database.DB, catalog *niches.Catalog) (*Server, error) {
	var store BusinessStore
	if db != nil {
		store = db
	}
	return newServer(runner, store, catalog)
}

func newServer(runner Runner, store BusinessStore, catalog *niches.Catalog) (*Server, error) {
	if catalog == nil {
		catalog = niches.Default()
	}

	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"rating": func(r *float64) string {
			if r == nil {
				return "-"
			}
			return strconv.FormatFloat(*r, 'f', 1, 64)
		},
		"join": strings.Join,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, eris.Wrap(err, "parsing base template")
	}

	// Each page clones the base so it gets its own "title" and "content".
	pageNames := []string{"index.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, eris.Wrapf(err, "cloning base for %s", name)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, eris.Wrapf(err, "parsing template %s", name)
		}
		pages[name] = clone
	}

	s := &Server{
		runner:  runner,
		store:   store,
		catalog: catalog,
		pages:   pages,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/niches", s.handleNiches)
	s.mux.HandleFunc("GET /api/businesses", s.handleBusinesses)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

type nicheInfo struct {
	Label          string   `json:"label"`
	CommonServices []string `json:"common_services"`
}

func (s *Server) handleNiches(w http.ResponseWriter, r *http.Request) {
	out := map[string]nicheInfo{}
	for key, n := range s.catalog.Public() {
		services := n.CommonServices
		if services == nil {
			services = []string{}
		}
		label := n.Label
		if label == "" {
			label = key
		}
		out[key] = nicheInfo{Label: label, CommonServices: services}
	}
	writeJSON(w, http.StatusOK, out)
}

// analyzeBody accepts max_results as a number or a numeric string.
type analyzeBody struct {
	Niche      string       `json:"niche"`
	Location   string       `json:"location"`
	MaxResults *json.Number `json:"max_results"`
}

func (b analyzeBody) request() pipeline.Request {
	req := pipeline.Request{Niche: b.Niche, Location: b.Location, MaxResults: pipeline.DefaultResults}
	if b.MaxResults != nil {
		if n, err := b.MaxResults.Int64(); err == nil {
			req.MaxResults = int(n)
		} else if f, err := b.MaxResults.Float64(); err == nil {
			req.MaxResults = int(f)
		} else {
			req.MaxResults = 0
		}
	}
	return req
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body analyzeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	result, err := s.runner.Run(r.Context(), body.request())
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			zap.L().Info("rejected analysis request", zap.String("kind", string(verr.Kind())), zap.String("reason", verr.Message))
			writeError(w, http.StatusBadRequest, verr.Message)
			return
		}
		zap.L().Error("analysis batch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBusinesses(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.listBusinesses(r.Context(), r.URL.Query().Get("niche"), limit)
	if err != nil {
		zap.L().Error("listing businesses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	niche := r.URL.Query().Get("niche")
	list, err := s.listBusinesses(r.Context(), niche, defaultListLimit)
	if err != nil {
		zap.L().Error("listing businesses", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Businesses": list,
		"Niche":      niche,
		"Niches":     s.catalog.Keys(),
	})
}

func (s *Server) listBusinesses(ctx context.Context, niche string, limit int) ([]database.StoredBusiness, error) {
	if s.store == nil {
		return []database.StoredBusiness{}, nil
	}
	return s.store.ListBusinesses(ctx, niche, limit)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, eris.New("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		zap.L().Error("template not found", zap.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		zap.L().Error("rendering template", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("writing response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// withCORS allows browser clients on any origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve listens on addr until ctx is cancelled.
func Serve(ctx context.Context, srv *Server, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server listening", zap.String("url", "http://"+addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "serving http")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		zap.L().Info("shutting down server")
		return eris.Wrap(httpSrv.Shutdown(shutdownCtx), "shutting down")
	}
}
