package server

import (
	"net/http"

	"github.com/fastpanel/fastpanel/internal/service"
)

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.svc.ListClients(r.Context(), caller(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req service.ClientInput
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	c, err := s.svc.CreateClient(r.Context(), caller(r), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.svc.DeleteClient(r.Context(), caller(r), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeNoContent(w)
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var req resetPasswordRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.svc.ResetPassword(r.Context(), caller(r), id, req.NewPassword); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Password reset successfully."})
}

type renewRequest struct {
	Expiration *int `json:"expiration"`
}

func (s *Server) handleRenewClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var req renewRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	c, err := s.svc.RenewClient(r.Context(), caller(r), id, req.Expiration)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
