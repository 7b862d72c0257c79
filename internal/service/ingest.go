package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/fetcher"
)

// IngestResult reports a remote import into the master catalog.
type IngestResult struct {
	Fetched int   `json:"fetched"`
	Added   int64 `json:"added"`
}

// IngestURL fetches a remote M3U and appends its streams to the master
// catalog, creating the catalog when needed. Streams whose URL is already
// present are kept as they are, so manual type changes survive re-imports.
func (s *Service) IngestURL(ctx context.Context, c Caller, m3uURL string) (*IngestResult, error) {
	if m3uURL == "" {
		return nil, apperr.Validation("m3u URL is required")
	}
	if !isHTTPURL(m3uURL) {
		return nil, apperr.Validation("url must be an http or https address")
	}

	entries, err := fetcher.FetchURL(ctx, m3uURL, s.opts.Fetch)
	if err != nil {
		if fetcher.IsParseError(err) {
			return nil, apperr.Validation("The remote content is not an M3U playlist.")
		}
		return nil, apperr.TransientIO(err, "could not fetch the playlist")
	}
	if len(entries) == 0 {
		return nil, apperr.Validation("The remote playlist is empty.")
	}

	// The import may be large; stop early on shutdown.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest cancelled: %w", err)
	}

	m, err := s.store.EnsureMasterPlaylist(ctx, c.UserID)
	if err != nil {
		return nil, fmt.Errorf("EnsureMasterPlaylist: %w", err)
	}
	for i := range entries {
		if entries[i].Name == "" {
			entries[i].Name = "Unknown"
		}
	}
	added, err := s.store.AddStreams(ctx, m.ID, entries)
	if err != nil {
		return nil, fmt.Errorf("AddStreams: %w", err)
	}
	if added > 0 {
		if err := s.markStale(ctx, m.ID); err != nil {
			return nil, err
		}
	}
	s.log.WithFields(logrus.Fields{"url": m3uURL, "fetched": len(entries), "added": added}).Info("remote playlist ingested")
	return &IngestResult{Fetched: len(entries), Added: added}, nil
}
