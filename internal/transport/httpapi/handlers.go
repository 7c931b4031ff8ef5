package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/orian/branchvc/internal/brancherr"
	"github.com/orian/branchvc/internal/commit"
)

type createRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	recursive := r.URL.Query().Get("recursive") == "true"

	var (
		ts  any
		err error
	)
	if recursive {
		ts, err = s.svc.RecursiveCreate(r.Context(), req.Path)
	} else {
		ts, err = s.svc.Create(r.Context(), req.Path)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ts)
}

func (s *Server) handleFindAll(w http.ResponseWriter, r *http.Request) {
	all, err := s.svc.FindAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if !s.allowDestructiveOps {
		http.Error(w, "destructive operations are disabled", http.StatusForbidden)
		return
	}
	if err := s.svc.DeleteAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFindLatest(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ts, err := s.svc.FindBranchOrThrow(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleExists(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	exists, err := s.svc.Exists(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (s *Server) handleFindAtTimepoint(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := strconv.ParseInt(chi.URLParam(r, "t"), 10, 64)
	if err != nil {
		http.Error(w, "invalid timepoint: "+err.Error(), http.StatusBadRequest)
		return
	}
	ts, err := s.svc.FindAtTimepointOrThrow(r.Context(), path, t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleFindChildren(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	children, err := s.svc.FindChildren(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.svc.Unlock(r.Context(), path); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commitResponse struct {
	CommitID  string `json:"commitId"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	Timepoint int64  `json:"timepoint"`
}

func (s *Server) handleOpenCommit(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := s.svc.OpenCommit(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondOpened(w, path, c)
}

func (s *Server) handleOpenRebaseCommit(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := s.svc.OpenRebaseCommit(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondOpened(w, path, c)
}

type promotionRequest struct {
	SourcePath string `json:"sourcePath"`
}

func (s *Server) handleOpenPromotionCommit(w http.ResponseWriter, r *http.Request) {
	path, err := pathParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req promotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := s.svc.OpenPromotionCommit(r.Context(), path, req.SourcePath)
	if err != nil {
		writeError(w, err)
		return
	}
	s.respondOpened(w, path, c)
}

func (s *Server) respondOpened(w http.ResponseWriter, path string, c *commit.Commit) {
	id := s.putCommit(path, c)
	writeJSON(w, http.StatusCreated, commitResponse{
		CommitID:  id,
		Path:      path,
		Type:      c.Type().String(),
		Timepoint: c.Timepoint(),
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	commitID := chi.URLParam(r, "commitId")
	c, ok := s.takeCommit(commitID)
	if !ok {
		writeError(w, brancherr.New(brancherr.NotFound, "no open commit %q", commitID))
		return
	}
	ts, err := s.svc.Complete(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	commitID := chi.URLParam(r, "commitId")
	c, ok := s.takeCommit(commitID)
	if !ok {
		writeError(w, brancherr.New(brancherr.NotFound, "no open commit %q", commitID))
		return
	}
	if err := s.svc.Rollback(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
