package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/models"
)

// SourceInput is the body of a source playlist creation.
type SourceInput struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ListSources returns every source playlist ordered by name.
func (s *Service) ListSources(ctx context.Context) ([]models.SourcePlaylist, error) {
	list, err := s.store.ListSourcePlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSourcePlaylists: %w", err)
	}
	if list == nil {
		list = []models.SourcePlaylist{}
	}
	return list, nil
}

// CreateSource stores the content as a new file and records it. Content
// that is not M3U text or holds no streams is rejected.
func (s *Service) CreateSource(ctx context.Context, in SourceInput) (*models.SourcePlaylist, error) {
	if in.Name == "" || in.Type == "" || in.Content == "" {
		return nil, apperr.Validation("Please provide name, type, and M3U content.")
	}
	if !isPlaylistText([]byte(in.Content)) {
		return nil, apperr.Validation("The provided content is not text.")
	}
	items, err := fetcher.Parse(in.Content)
	if err != nil || len(items) == 0 {
		return nil, apperr.Validation("The provided M3U content is empty or invalid.")
	}

	path, err := s.files.CreateSource(in.Content)
	if err != nil {
		return nil, apperr.TransientIO(err, "could not store playlist file")
	}
	sp := &models.SourcePlaylist{Name: in.Name, Type: in.Type, FilePath: path, StreamCount: len(items)}
	id, err := s.store.CreateSourcePlaylist(ctx, sp)
	if err != nil {
		if rerr := s.files.Remove(path); rerr != nil {
			s.log.WithError(rerr).WithField("path", path).Warn("remove orphaned source file")
		}
		return nil, storeErr(err, "", fmt.Sprintf("A playlist with the name %q already exists.", in.Name))
	}
	sp.ID = id
	s.log.WithFields(logrus.Fields{"source_id": id, "streams": sp.StreamCount}).Info("source playlist created")
	return s.store.GetSourcePlaylist(ctx, id)
}

// isPlaylistText reports whether data sniffs as an M3U playlist or as
// some kind of text.
func isPlaylistText(data []byte) bool {
	mt := mimetype.Detect(data)
	if mt.Is("application/vnd.apple.mpegurl") {
		return true
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func (s *Service) source(ctx context.Context, id int64) (*models.SourcePlaylist, error) {
	sp, err := s.store.GetSourcePlaylist(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Playlist not found.", "")
	}
	return sp, nil
}

// SourceContent returns the raw M3U text of a source playlist.
func (s *Service) SourceContent(ctx context.Context, id int64) (string, error) {
	sp, err := s.source(ctx, id)
	if err != nil {
		return "", err
	}
	content, err := s.files.Read(sp.FilePath)
	if err != nil {
		return "", apperr.TransientIO(err, "Failed to read playlist content.")
	}
	return content, nil
}

// UpdateSourceContent overwrites the file, recounts its streams and drops
// the parse cached for the previous content.
func (s *Service) UpdateSourceContent(ctx context.Context, id int64, content string) (*models.SourcePlaylist, error) {
	sp, err := s.source(ctx, id)
	if err != nil {
		return nil, err
	}
	oldFP, fpErr := s.files.Fingerprint(sp.FilePath)

	if err := s.files.ReplaceSource(sp.FilePath, content); err != nil {
		return nil, apperr.TransientIO(err, "Failed to update playlist content.")
	}
	count := len(fetcher.Items(content))
	if err := s.store.UpdateSourceStreamCount(ctx, id, count); err != nil {
		return nil, storeErr(err, "Playlist not found.", "")
	}
	if fpErr == nil {
		if err := s.cache.Delete(ctx, cache.SourceKey(id, oldFP)); err != nil {
			s.log.WithError(err).WithField("source_id", id).Warn("cache delete failed")
		}
	}
	sp.StreamCount = count
	return sp, nil
}

// DeleteSource removes the record, then the file. A file that cannot be
// removed is logged; the record stays deleted.
func (s *Service) DeleteSource(ctx context.Context, id int64) error {
	sp, err := s.source(ctx, id)
	if err != nil {
		return err
	}
	fp, fpErr := s.files.Fingerprint(sp.FilePath)
	if err := s.store.DeleteSourcePlaylist(ctx, id); err != nil {
		return storeErr(err, "Playlist not found.", "")
	}
	if err := s.files.Remove(sp.FilePath); err != nil {
		s.log.WithError(err).WithField("path", sp.FilePath).Error("source record deleted but file removal failed")
	}
	if fpErr == nil {
		_ = s.cache.Delete(ctx, cache.SourceKey(id, fp))
	} else if !errors.Is(fpErr, os.ErrNotExist) {
		s.log.WithError(fpErr).WithField("path", sp.FilePath).Debug("stat source file")
	}
	return nil
}
