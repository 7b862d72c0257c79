// Package service holds the panel's use cases. Every method returns
// errors classified with apperr so the HTTP layer can map them directly.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/fastpanel/fastpanel/internal/analyze"
	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/queue"
	"github.com/fastpanel/fastpanel/internal/store"
)

// Caller is the authenticated operator performing an action.
type Caller struct {
	UserID int64
	Role   models.Role
}

// IsSuperAdmin reports whether c may act on every reseller's records.
func (c Caller) IsSuperAdmin() bool { return c.Role == models.RoleSuperAdmin }

// Options configures a Service.
type Options struct {
	// MasterTextPath is the standalone master playlist text file.
	MasterTextPath string
	// Fetch is used when importing remote playlists.
	Fetch fetcher.FetchOptions
	// NormalizeURLs makes analysis match URLs after normalization.
	NormalizeURLs bool
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service implements the panel operations on top of the store, the
// playlist files, the cache and the job queue.
type Service struct {
	store    store.Store
	files    *filestore.Files
	cache    cache.PlaylistCache
	jobs     queue.Producer
	analyzer *analyze.Analyzer
	opts     Options
	log      *logrus.Entry
}

// New creates a Service. s should already invalidate cached playlists on
// stream mutations (see store.CachedStore).
func New(s store.Store, files *filestore.Files, c cache.PlaylistCache, jobs queue.Producer, opts Options, log *logrus.Entry) *Service {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    s,
		files:    files,
		cache:    c,
		jobs:     jobs,
		analyzer: analyze.New(s, analyze.Options{NormalizeURLs: opts.NormalizeURLs}),
		opts:     opts,
		log:      log,
	}
}

// Ping checks the store, for health endpoints.
func (s *Service) Ping(ctx context.Context) error {
	_, err := s.store.GetSettings(ctx)
	return err
}

// storeErr classifies a store error. Empty messages leave that sentinel
// unclassified.
func storeErr(err error, notFound, conflict string) error {
	switch {
	case err == nil:
		return nil
	case notFound != "" && errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("%s", notFound)
	case conflict != "" && errors.Is(err, store.ErrConflict):
		return apperr.Conflict("%s", conflict)
	case errors.Is(err, store.ErrInvalidReference):
		return apperr.Validation("references a record that does not exist")
	}
	return err
}

func (s *Service) hash(password string) (string, error) {
	if len(password) > 72 {
		return "", apperr.Validation("password must be at most 72 bytes")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
