// ABOUTME: Web UI server with embedded templates
// ABOUTME: Local read-mostly dashboard, people list, SVG network graph and Prometheus metrics
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/viz"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

//go:embed templates/*
var templatesFS embed.FS

// DefaultAddr keeps the UI on the loopback interface.
const DefaultAddr = "localhost:8080"

type Server struct {
	store     *db.Store
	scope     models.Scope
	templates *template.Template
	generator *viz.GraphGenerator
	log       zerolog.Logger
}

func NewServer(store *db.Store, scope models.Scope, log zerolog.Logger) (*Server, error) {
	// Helper functions for templates
	funcMap := template.FuncMap{
		"multiply": func(a, b int) int {
			return a * b
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		store:     store,
		scope:     scope,
		templates: tmpl,
		generator: viz.NewGraphGenerator(store),
		log:       log.With().Str("component", "web").Logger(),
	}, nil
}

// Handler returns the routed mux; Start serves it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /people", s.handlePeople)
	mux.HandleFunc("GET /graph.svg", s.handleGraphSVG)
	mux.HandleFunc("GET /graph.dot", s.handleGraphDOT)
	mux.HandleFunc("POST /relationships/{id}/interactions", s.handleLogInteraction)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("starting web server")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := viz.GenerateDashboardStats(r.Context(), s.store, s.scope)
	if err != nil {
		s.fail(w, err)
		return
	}

	data := map[string]interface{}{
		"Stats":      stats,
		"Categories": stats.Categories(),
		"Title":      "Dashboard",
	}
	s.renderTemplate(w, "dashboard.html", data)
}

type personView struct {
	Name            string
	Company         string
	City            string
	Status          string
	IsCoreUser      bool
	NeedsCompletion bool
}

func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	opts := db.ListPersonsOptions{
		Status:          r.URL.Query().Get("status"),
		IncludeArchived: r.URL.Query().Get("status") == models.StatusArchived,
		Limit:           500,
	}
	people, err := s.store.ListPersons(r.Context(), s.scope, opts)
	if err != nil {
		s.fail(w, err)
		return
	}

	views := make([]personView, 0, len(people))
	for i := range people {
		p := &people[i]
		views = append(views, personView{
			Name:            p.Name,
			Company:         p.Company,
			City:            p.City,
			Status:          p.Status,
			IsCoreUser:      p.IsCoreUser,
			NeedsCompletion: p.NeedsCompletion(),
		})
	}

	data := map[string]interface{}{
		"People": views,
		"Title":  "People",
	}
	s.renderTemplate(w, "people.html", data)
}

func (s *Server) graphOptions(r *http.Request) (viz.GraphOptions, error) {
	q := r.URL.Query()
	opts := viz.GraphOptions{IncludeEnded: q.Get("include_ended") == "true"}
	if c := q.Get("center"); c != "" {
		id, err := uuid.Parse(c)
		if err != nil {
			return opts, models.NewValidationError("uuid", "center", "center must be a UUID")
		}
		opts.Center = id
	}
	if d := q.Get("depth"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 {
			return opts, models.NewValidationError("gte", "depth", "depth must be a positive integer")
		}
		opts.Depth = n
	}
	return opts, nil
}

func (s *Server) handleGraphDOT(w http.ResponseWriter, r *http.Request) {
	opts, err := s.graphOptions(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	dot, _, err := s.generator.GenerateNetworkGraph(r.Context(), s.scope, opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = w.Write([]byte(dot))
}

func (s *Server) handleGraphSVG(w http.ResponseWriter, r *http.Request) {
	opts, err := s.graphOptions(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	dot, stats, err := s.generator.GenerateNetworkGraph(r.Context(), s.scope, opts)
	if err != nil {
		s.fail(w, err)
		return
	}
	svg, err := viz.RenderSVG(r.Context(), dot)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Debug().Int("nodes", stats.Nodes).Int("edges", stats.Edges).Msg("rendered graph")
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(svg)
}

func (s *Server) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.fail(w, models.NewValidationError("uuid", "relationship_id", "relationship id must be a UUID"))
		return
	}
	kind := strings.ToLower(r.FormValue("kind"))
	if kind == "" {
		kind = models.InteractionText
	}

	if err := s.store.RecordInteraction(r.Context(), s.scope, id, kind, time.Time{}); err != nil {
		s.fail(w, err)
		return
	}

	_, err = w.Write([]byte(`<span class="muted">✓ Interaction logged</span>`))
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("template error")
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// fail maps the error taxonomy onto HTTP status codes. Bodies carry only the code.
func (s *Server) fail(w http.ResponseWriter, err error) {
	code := models.ErrorCode(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Str("code", code).Err(err).Msg("request failed")
	}
	http.Error(w, code, status)
}
