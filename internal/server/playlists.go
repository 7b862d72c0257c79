package server

import (
	"fmt"
	"net/http"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/service"
)

// handleClientPlaylist serves get.php. IPTV apps read the body as a
// playlist, so every answer is plain text.
func (s *Server) handleClientPlaylist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := s.svc.ClientPlaylist(r.Context(), q.Get("username"), q.Get("password"))
	if err != nil {
		status := apperr.HTTPStatus(err)
		if status >= 500 {
			s.log.WithError(err).Error("client playlist")
		}
		writeText(w, status, apperr.Message(err))
		return
	}
	if p.Placeholder() {
		writeText(w, http.StatusOK, p.Content)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", p.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(p.Content))
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListPlaylists(r.Context(), caller(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMergeSelection(w http.ResponseWriter, r *http.Request) {
	var req service.MergeInput
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	p, err := s.svc.MergeSelection(r.Context(), caller(r), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleAddRemotePlaylist(w http.ResponseWriter, r *http.Request) {
	var req service.RemoteInput
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	p, err := s.svc.AddRemotePlaylist(r.Context(), caller(r), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.svc.DeletePlaylist(r.Context(), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleRefreshPlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.svc.RefreshPlaylist(r.Context(), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageBody{Message: "Playlist refresh started. The worker will process it shortly."})
}

func (s *Server) handleSyncMaster(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.SyncMaster(r.Context(), caller(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Master playlist synchronization started.",
		"playlist": res.Playlist,
		"streams":  res.Streams,
	})
}

type analyzeRequest struct {
	M3UContent string `json:"m3uContent"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.svc.Analyze(r.Context(), req.M3UContent)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFolderContent(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.FolderContent(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleMasterText(w http.ResponseWriter, r *http.Request) {
	text, err := s.svc.MasterText(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeText(w, http.StatusOK, text)
}

type contentRequest struct {
	Content *string `json:"content"`
}

func (s *Server) handleUpdateMasterText(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.svc.UpdateMasterText(r.Context(), req.Content); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Master playlist updated successfully."})
}

type createFromParsedRequest struct {
	Streams []models.StreamEntry `json:"streams"`
}

func (s *Server) handleCreateFromParsed(w http.ResponseWriter, r *http.Request) {
	var req createFromParsedRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	n, err := s.svc.CreateFromParsed(r.Context(), caller(r), req.Streams)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("%d new streams were added to the master playlist.", n),
		"added":   n,
	})
}

type ingestRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.svc.IngestURL(r.Context(), caller(r), req.URL)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMasterStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := s.svc.MasterStreams(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streams)
}

func (s *Server) handleAddMasterStream(w http.ResponseWriter, r *http.Request) {
	var req service.StreamInput
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	st, err := s.svc.AddMasterStream(r.Context(), req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleUpdateMasterStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "streamId")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var req service.StreamInput
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	st, err := s.svc.UpdateMasterStream(r.Context(), id, req)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type streamTypeRequest struct {
	StreamType models.StreamType `json:"streamType"`
}

func (s *Server) handleUpdateStreamType(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "streamId")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	var req streamTypeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	st, err := s.svc.UpdateStreamType(r.Context(), id, req.StreamType)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteMasterStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "streamId")
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	st, err := s.svc.DeleteMasterStream(r.Context(), id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Stream removed.",
		"stream":  st,
	})
}
