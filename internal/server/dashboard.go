package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fastpanel/fastpanel/internal/apperr"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context(), caller(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Settings(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type settingsRequest struct {
	Settings map[string]json.RawMessage `json:"settings"`
}

// handleUpdateSettings stores every value as text: JSON strings are
// unquoted, numbers and booleans keep their literal form.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	var values map[string]string
	if req.Settings != nil {
		values = make(map[string]string, len(req.Settings))
		for k, raw := range req.Settings {
			v, err := settingValue(raw)
			if err != nil {
				s.writeErr(w, r, err)
				return
			}
			values[k] = v
		}
	}
	if err := s.svc.UpdateSettings(r.Context(), values); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Settings updated successfully."})
}

func settingValue(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, nil
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" || text[0] == '{' || text[0] == '[' {
		return "", apperr.Validation("Setting values must be strings, numbers or booleans.")
	}
	return text, nil
}
