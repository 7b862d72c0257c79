package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/analyze"
	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/generator"
	"github.com/fastpanel/fastpanel/internal/models"
)

// MergeInput selects streams to publish as a new refreshable playlist.
type MergeInput struct {
	Name            string               `json:"name"`
	Priority        *int                 `json:"priority"`
	SelectedStreams []models.StreamEntry `json:"selectedStreams"`
}

// RemoteInput registers a playlist fetched from a URL.
type RemoteInput struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Priority int    `json:"priority"`
}

// FolderFile is one file of the import folder with its parsed streams.
type FolderFile struct {
	FileName string               `json:"fileName"`
	Items    []models.StreamEntry `json:"items"`
	Error    string               `json:"error,omitempty"`
}

// ListPlaylists returns the playlists owned by the caller, or all of them
// for a super admin.
func (s *Service) ListPlaylists(ctx context.Context, c Caller) ([]models.Playlist, error) {
	all, err := s.store.ListPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListPlaylists: %w", err)
	}
	out := make([]models.Playlist, 0, len(all))
	for _, p := range all {
		if c.IsSuperAdmin() || p.OwnerID == c.UserID {
			out = append(out, p)
		}
	}
	return out, nil
}

// AddRemotePlaylist registers an http(s) playlist for the refresher.
func (s *Service) AddRemotePlaylist(ctx context.Context, c Caller, in RemoteInput) (*models.Playlist, error) {
	if in.Name == "" || in.URL == "" {
		return nil, apperr.Validation("Please provide name and url.")
	}
	if !isHTTPURL(in.URL) {
		return nil, apperr.Validation("url must be an http or https address")
	}
	if in.Name == models.MasterPlaylistName {
		return nil, apperr.Conflict("%q is reserved for the master playlist", in.Name)
	}
	p := &models.Playlist{
		Name:     in.Name,
		URL:      in.URL,
		Priority: in.Priority,
		OwnerID:  c.UserID,
		Status:   models.StatusVerificando,
	}
	id, err := s.store.CreatePlaylist(ctx, p)
	if err != nil {
		return nil, storeErr(err, "", "playlist already exists")
	}
	return s.store.GetPlaylist(ctx, id)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// MergeSelection renders the selected streams to a temp file and registers
// it as a file:// playlist; the refresher parses it and removes the file.
func (s *Service) MergeSelection(ctx context.Context, c Caller, in MergeInput) (*models.Playlist, error) {
	if in.Name == "" || in.Priority == nil || in.SelectedStreams == nil {
		return nil, apperr.Validation("Please provide name, priority and selected streams.")
	}
	if len(in.SelectedStreams) == 0 {
		return nil, apperr.Validation("No streams selected for the playlist.")
	}

	path, err := s.files.CreateTemp(generator.Render(in.SelectedStreams))
	if err != nil {
		return nil, apperr.TransientIO(err, "could not write merged playlist")
	}
	now := s.opts.Now()
	p := &models.Playlist{
		Name:     in.Name,
		URL:      filestore.FileURL(path),
		FileName: fmt.Sprintf("merged_from_selection_%d.m3u", now.UnixMilli()),
		Priority: *in.Priority,
		OwnerID:  c.UserID,
		Status:   models.StatusVerificando,
	}
	id, err := s.store.CreatePlaylist(ctx, p)
	if err != nil {
		_ = s.files.Remove(path)
		return nil, storeErr(err, "", "playlist already exists")
	}
	s.log.WithFields(logrus.Fields{"playlist_id": id, "streams": len(in.SelectedStreams)}).Info("merged playlist queued for refresh")
	return s.store.GetPlaylist(ctx, id)
}

// DeletePlaylist removes a playlist and its cache entry. A pending merge
// temp file is removed too.
func (s *Service) DeletePlaylist(ctx context.Context, id int64) error {
	p, err := s.store.GetPlaylist(ctx, id)
	if err != nil {
		return storeErr(err, "Playlist not found.", "")
	}
	if err := s.store.DeletePlaylist(ctx, id); err != nil {
		return storeErr(err, "Playlist not found.", "")
	}
	if strings.HasPrefix(p.URL, "file://") {
		if path, err := filestore.PathFromURL(p.URL); err == nil {
			_ = s.files.Remove(path)
		}
	}
	s.log.WithField("playlist_id", id).Info("playlist deleted")
	return nil
}

// RefreshPlaylist marks a playlist for the next refresh cycle.
func (s *Service) RefreshPlaylist(ctx context.Context, id int64) error {
	if err := s.store.SetPlaylistStatus(ctx, id, models.StatusVerificando); err != nil {
		return storeErr(err, "Playlist not found.", "")
	}
	if err := s.cache.Delete(ctx, cache.PlaylistKey(id)); err != nil {
		s.log.WithError(err).WithField("playlist_id", id).Warn("cache delete failed")
	}
	return nil
}

// Analyze partitions pasted M3U text against the master catalog.
func (s *Service) Analyze(ctx context.Context, text string) (analyze.Result, error) {
	if text == "" {
		return analyze.Result{}, apperr.Validation("M3U content is required.")
	}
	res, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return analyze.Result{}, fmt.Errorf("analyze: %w", err)
	}
	return res, nil
}

// FolderContent parses every .m3u file of the import folder. A file that
// fails to parse is reported with an error and no items.
func (s *Service) FolderContent(ctx context.Context) ([]FolderFile, error) {
	names, err := s.files.ListImport()
	if err != nil {
		return nil, apperr.TransientIO(err, "could not list the import folder")
	}
	out := make([]FolderFile, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := FolderFile{FileName: name, Items: []models.StreamEntry{}}
		items, err := s.importItems(name)
		if err != nil {
			s.log.WithError(err).WithField("file", name).Warn("skipping import file")
			f.Error = err.Error()
		} else {
			f.Items = items
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Service) importItems(name string) ([]models.StreamEntry, error) {
	content, err := s.files.ReadImport(name)
	if err != nil {
		return nil, err
	}
	items, err := fetcher.Parse(content)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.StreamEntry{}
	}
	return items, nil
}

// MasterText returns the standalone master playlist text, or "" when the
// file does not exist yet.
func (s *Service) MasterText(ctx context.Context) (string, error) {
	content, err := s.files.Read(s.opts.MasterTextPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", apperr.TransientIO(err, "could not read the master playlist text")
	}
	return content, nil
}

// UpdateMasterText replaces the master playlist text. Every #EXTINF line
// must carry a tvg-logo attribute.
func (s *Service) UpdateMasterText(ctx context.Context, content *string) error {
	if content == nil {
		return apperr.Validation("Content is required.")
	}
	if err := ValidateMasterText(*content); err != nil {
		return err
	}
	if err := s.files.WriteText(s.opts.MasterTextPath, *content); err != nil {
		return apperr.TransientIO(err, "could not write the master playlist text")
	}
	return nil
}

// ValidateMasterText rejects the first #EXTINF line without tvg-logo.
func ValidateMasterText(content string) error {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "#EXTINF") && !strings.Contains(line, "tvg-logo") {
			return apperr.Validation("The line %q has no tvg-logo.", line)
		}
	}
	return nil
}
