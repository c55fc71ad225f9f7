// Package web implements the read-only status server: JSON endpoints over the
// run store for checking what has been generated, published and assigned.
package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v8"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"golang.org/x/crypto/bcrypt"

	"github.com/ed-tools/dataquiz/app/persistence"
)

// Store defines read access to pipeline state.
type Store interface {
	LoadVersions() ([]persistence.VersionInfo, error)
	LoadAssignments() ([]persistence.AssignmentInfo, error)
	LoadRuns(limit int) ([]persistence.RunInfo, error)
}

// Server is the status web server.
type Server struct {
	Store        Store
	Address      string
	Version      string
	PasswordHash string // bcrypt hash for basic auth, empty disables auth
}

// Run starts the server and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown status server: %v", err)
		}
	}()

	log.Printf("[INFO] starting status server on %s", s.Address)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status server failed: %w", err)
	}
	return nil
}

// routes returns the http.Handler with all routes configured.
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(100),
		rest.AppInfo("dataquiz", "ed-tools", s.Version),
		rest.Ping,
		rest.SizeLimit(64*1024),
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	if s.PasswordHash != "" {
		log.Printf("[INFO] authentication enabled for status server")
		router.Use(s.authMiddleware)
	}

	limiter := tollbooth.NewLimiter(10, nil)
	router.Mount("/api").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.Use(tollbooth.HTTPMiddleware(limiter))
		api.HandleFunc("GET /versions", s.handleVersions)
		api.HandleFunc("GET /assignments", s.handleAssignments)
		api.HandleFunc("GET /runs", s.handleRuns)
	})

	return router
}

// authMiddleware checks basic auth against the bcrypt password hash.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, password, ok := r.BasicAuth()
		if !ok || bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="Dataquiz Status"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleVersions(w http.ResponseWriter, _ *http.Request) {
	versions, err := s.Store.LoadVersions()
	if err != nil {
		log.Printf("[WARN] can't load versions: %v", err)
		http.Error(w, "can't load versions", http.StatusInternalServerError)
		return
	}
	rest.RenderJSON(w, versions)
}

func (s *Server) handleAssignments(w http.ResponseWriter, _ *http.Request) {
	assignments, err := s.Store.LoadAssignments()
	if err != nil {
		log.Printf("[WARN] can't load assignments: %v", err)
		http.Error(w, "can't load assignments", http.StatusInternalServerError)
		return
	}
	rest.RenderJSON(w, assignments)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := s.Store.LoadRuns(limit)
	if err != nil {
		log.Printf("[WARN] can't load runs: %v", err)
		http.Error(w, "can't load runs", http.StatusInternalServerError)
		return
	}
	rest.RenderJSON(w, runs)
}
