// Package parsersvc is the out-of-process M3U parser: a small HTTP
// service bound to loopback that parses files on disk for the refresher,
// keeping large parses away from the API process.
package parsersvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/models"
)

// DefaultAddr is the loopback address parserd listens on.
const DefaultAddr = "127.0.0.1:8083"

// ErrNotLoopback is returned when asked to listen on a non-loopback address.
var ErrNotLoopback = errors.New("parser service must listen on a loopback address")

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	FilePath string `json:"filePath"`
}

// ParseResponse is the success body of POST /parse.
type ParseResponse struct {
	Items []models.StreamEntry `json:"items"`
}

type errorBody struct {
	Message string `json:"message"`
}

// NewHandler returns the service routes, reading files from fs.
func NewHandler(fs afero.Fs, log *logrus.Entry) http.Handler {
	h := &handler{fs: fs, log: log}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/parse", h.parse)
	return r
}

type handler struct {
	fs  afero.Fs
	log *logrus.Entry
}

func (h *handler) parse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid JSON body"})
		return
	}
	if req.FilePath == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "filePath is required"})
		return
	}
	if !filepath.IsAbs(req.FilePath) {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "filePath must be absolute"})
		return
	}

	start := time.Now()
	items, err := fetcher.ReadFileFS(h.fs, req.FilePath)
	log := h.log.WithField("path", req.FilePath)
	if err != nil {
		if fetcher.IsParseError(err) {
			log.WithError(err).Warn("unparseable playlist")
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Message: err.Error()})
			return
		}
		log.WithError(err).Error("read playlist")
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: err.Error()})
		return
	}
	if items == nil {
		items = []models.StreamEntry{}
	}
	log.WithFields(logrus.Fields{"items": len(items), "took": time.Since(start).String()}).Info("parsed")
	writeJSON(w, http.StatusOK, ParseResponse{Items: items})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// CheckLoopback rejects listen addresses outside the loopback interface.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("listen address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrNotLoopback, addr)
	}
	return nil
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, log *logrus.Entry) error {
	if err := CheckLoopback(addr); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("parser service shutdown")
		}
	}()

	log.WithField("addr", addr).Info("parser service listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}
