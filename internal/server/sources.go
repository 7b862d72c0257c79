package server

import (
	"net/http"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/service"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListSources(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req service.SourceInput
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	sp, err := s.svc.CreateSource(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sp)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.svc.DeleteSource(r.Context(), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleSourceContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	content, err := s.svc.SourceContent(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeText(w, http.StatusOK, content)
}

func (s *Server) handleUpdateSourceContent(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var req contentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if req.Content == nil {
		s.writeErr(w, r, apperr.Validation("Request body must contain M3U content string."))
		return
	}
	sp, err := s.svc.UpdateSourceContent(r.Context(), id, *req.Content)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}
