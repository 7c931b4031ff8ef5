// Package httpapi is the HTTP transport shell around the branch service,
// following the teacher's handleX(w, r)-method-per-route style on a
// Server struct, chi-routed, JSON in and out.
package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/orian/branchvc/internal/branch/service"
	"github.com/orian/branchvc/internal/brancherr"
	"github.com/orian/branchvc/internal/commit"
)

// Server handles HTTP requests against a branch service.Service.
//
// A Commit is in-memory-only and cannot survive a second HTTP round
// trip as a Go value, so Server holds open commits in a short-lived map
// keyed by a generated commitId. This is purely a transport-layer
// adaptation: the commit package itself has no notion of a commitId.
type Server struct {
	svc *service.Service

	allowDestructiveOps bool

	mu      sync.Mutex
	commits map[string]*openCommit
}

type openCommit struct {
	path string
	c    *commit.Commit
}

// New returns a Server fronting svc. allowDestructiveOps gates the
// DELETE /api/branches admin endpoint.
func New(svc *service.Service, allowDestructiveOps bool) *Server {
	return &Server{
		svc:                 svc,
		allowDestructiveOps: allowDestructiveOps,
		commits:             make(map[string]*openCommit),
	}
}

// Router builds the chi.Router exposing the full API surface, mounted
// under /api/branches.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api/branches", func(r chi.Router) {
		r.Get("/", s.handleFindAll)
		r.Post("/", s.handleCreate)
		r.Delete("/", s.handleDeleteAll)

		r.Route("/{path}", func(r chi.Router) {
			r.Get("/", s.handleFindLatest)
			r.Get("/exists", s.handleExists)
			r.Get("/at/{t}", s.handleFindAtTimepoint)
			r.Get("/children", s.handleFindChildren)
			r.Post("/unlock", s.handleUnlock)

			r.Post("/commits", s.handleOpenCommit)
			r.Post("/commits/rebase", s.handleOpenRebaseCommit)
			r.Post("/commits/promotion", s.handleOpenPromotionCommit)
			r.Post("/commits/{commitId}/complete", s.handleComplete)
			r.Post("/commits/{commitId}/rollback", s.handleRollback)
		})
	})

	return r
}

// pathParam extracts and URL-unescapes the {path} route param. Branch
// paths contain '/', so clients must escape them (url.PathEscape) before
// embedding them as this single route segment.
func pathParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "path")
	return url.PathUnescape(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a brancherr.Kind to an HTTP status code, the way the
// teacher's handlers map storage errors to http.Error codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case brancherr.Is(err, brancherr.NotFound):
		status = http.StatusNotFound
	case brancherr.Is(err, brancherr.AlreadyExists):
		status = http.StatusConflict
	case brancherr.Is(err, brancherr.InvalidArgument):
		status = http.StatusBadRequest
	case brancherr.Is(err, brancherr.ConflictLocked):
		status = http.StatusConflict
	case brancherr.Is(err, brancherr.InvariantViolation):
		status = http.StatusInternalServerError
	case brancherr.Is(err, brancherr.ListenerAborted):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) putCommit(path string, c *commit.Commit) string {
	id := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits[id] = &openCommit{path: path, c: c}
	return id
}

func (s *Server) takeCommit(id string) (*commit.Commit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oc, ok := s.commits[id]
	if !ok {
		return nil, false
	}
	delete(s.commits, id)
	return oc.c, true
}
