package server

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lockr/internal/audit"
	"lockr/internal/auth"
	"lockr/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type auditResponse struct {
	Entries  []audit.Entry `json:"entries"`
	Verified bool          `json:"verified"`
	Error    string        `json:"error,omitempty"`
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	env, err := s.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeJSONStatus(w, http.StatusNotFound, errorResponse{Error: "entry not found"})
		return
	case err != nil:
		s.logger.WithFields(logrus.Fields{"id": id}).WithError(err).Error("reading entry")
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
		return
	}

	s.mu.Lock()
	updated := s.written[id]
	s.mu.Unlock()
	writeJSON(w, storage.Record{ID: id, Envelope: env, UpdatedAt: updated})
}

func (s *Server) handlePutEntry(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims, err := auth.MustClaims(r)
	if err != nil {
		writeJSONStatus(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	var body storage.Record
	if err := readJSON(w, r, &body); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if body.ID != "" && body.ID != id {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "id in body does not match path"})
		return
	}
	if body.Envelope == "" {
		writeJSONStatus(w, http.StatusBadRequest, errorResponse{Error: "envelope is required"})
		return
	}

	if err := s.store.Put(r.Context(), id, body.Envelope); err != nil {
		s.logger.WithFields(logrus.Fields{"id": id}).WithError(err).Error("writing entry")
		writeJSONStatus(w, http.StatusInternalServerError, errorResponse{Error: "storage failure"})
		return
	}

	s.mu.Lock()
	s.written[id] = time.Now().Unix()
	s.mu.Unlock()
	s.audit.Append(claims.Sub, "put", id)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries := s.audit.Entries()
	resp := auditResponse{Entries: entries, Verified: true}
	if err := audit.Verify(entries); err != nil {
		resp.Verified = false
		resp.Error = err.Error()
	}
	if resp.Entries == nil {
		resp.Entries = []audit.Entry{}
	}
	writeJSON(w, resp)
}
