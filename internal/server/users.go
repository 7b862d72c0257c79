package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/service"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context(), caller(r), r.URL.Query().Get("role"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.UserInput
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	u, err := s.svc.CreateUser(r.Context(), caller(r), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	u, err := s.svc.GetUser(r.Context(), caller(r), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var req service.UserUpdate
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	u, err := s.svc.UpdateUser(r.Context(), caller(r), id, req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.svc.DeleteUser(r.Context(), caller(r), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeNoContent(w)
}

// --- registration tokens ---

type generateTokenRequest struct {
	Role      models.Role `json:"role"`
	DaysValid *int        `json:"daysValid"`
}

func (s *Server) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	var req generateTokenRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	t, err := s.svc.GenerateToken(r.Context(), caller(r), req.Role, req.DaysValid)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "Token generated successfully!",
		"token":     t.Token,
		"expiresAt": t.ExpiresAt,
	})
}

func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	role, err := s.svc.ValidateToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Token válido.", "role": role})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	id, err := s.svc.Register(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Usuário registrado com sucesso!", "userId": id})
}
