package server

import (
	"net/http"

	"lockr/internal/auth"
)

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	read := auth.RequireScope(auth.ScopeRead)
	write := auth.RequireScope(auth.ScopeWrite)

	s.mux.Handle("GET /api/entries/{id}", read(http.HandlerFunc(s.handleGetEntry)))
	s.mux.Handle("PUT /api/entries/{id}", write(http.HandlerFunc(s.handlePutEntry)))
	s.mux.Handle("GET /api/audit", read(http.HandlerFunc(s.handleAudit)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
