package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/models"
)

const masterNotFound = "Master playlist not found."

// StreamInput is a manually entered master catalog stream.
type StreamInput struct {
	Name       string            `json:"name"`
	StreamURL  string            `json:"streamUrl"`
	StreamType models.StreamType `json:"streamType"`
}

// SyncResult reports a master catalog rebuild.
type SyncResult struct {
	Playlist *models.Playlist `json:"playlist"`
	Streams  int64            `json:"streams"`
}

func (s *Service) master(ctx context.Context) (*models.Playlist, error) {
	p, err := s.store.GetMasterPlaylist(ctx)
	if err != nil {
		return nil, storeErr(err, masterNotFound, "")
	}
	return p, nil
}

// markStale flags the master playlist for the next refresh cycle. The
// cache entry is already gone by the time this runs.
func (s *Service) markStale(ctx context.Context, playlistID int64) error {
	if err := s.store.SetPlaylistStatus(ctx, playlistID, models.StatusVerificando); err != nil {
		return fmt.Errorf("SetPlaylistStatus: %w", err)
	}
	return nil
}

// MasterStreams lists the master catalog.
func (s *Service) MasterStreams(ctx context.Context) ([]models.Stream, error) {
	m, err := s.master(ctx)
	if err != nil {
		return nil, err
	}
	streams, err := s.store.ListStreams(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("ListStreams: %w", err)
	}
	if streams == nil {
		streams = []models.Stream{}
	}
	return streams, nil
}

func (s *Service) findStream(ctx context.Context, playlistID, streamID int64) (*models.Stream, error) {
	streams, err := s.store.ListStreams(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("ListStreams: %w", err)
	}
	for i := range streams {
		if streams[i].ID == streamID {
			return &streams[i], nil
		}
	}
	return nil, apperr.NotFound("Stream not found.")
}

func (s *Service) findStreamByURL(ctx context.Context, playlistID int64, url string) (*models.Stream, error) {
	streams, err := s.store.ListStreams(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("ListStreams: %w", err)
	}
	for i := range streams {
		if streams[i].StreamURL == url {
			return &streams[i], nil
		}
	}
	return nil, apperr.NotFound("Stream not found.")
}

func streamType(t models.StreamType) (models.StreamType, error) {
	if t == "" {
		return models.StreamTypeCanal, nil
	}
	if !t.Valid() {
		return "", apperr.Validation("Invalid stream type.")
	}
	return t, nil
}

// AddMasterStream adds one stream to the master catalog.
func (s *Service) AddMasterStream(ctx context.Context, in StreamInput) (*models.Stream, error) {
	if in.Name == "" || in.StreamURL == "" {
		return nil, apperr.Validation("Stream name and URL are required.")
	}
	t, err := streamType(in.StreamType)
	if err != nil {
		return nil, err
	}
	m, err := s.master(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.store.AddStreams(ctx, m.ID, []models.StreamEntry{{Name: in.Name, URL: in.StreamURL, StreamType: t}})
	if err != nil {
		return nil, fmt.Errorf("AddStreams: %w", err)
	}
	if n == 0 {
		return nil, apperr.Conflict("A stream with this URL already exists in the master playlist.")
	}
	if err := s.markStale(ctx, m.ID); err != nil {
		return nil, err
	}
	return s.findStreamByURL(ctx, m.ID, in.StreamURL)
}

// UpdateMasterStream renames or repoints a master stream; its type is kept.
func (s *Service) UpdateMasterStream(ctx context.Context, streamID int64, in StreamInput) (*models.Stream, error) {
	if in.Name == "" || in.StreamURL == "" {
		return nil, apperr.Validation("Stream name and URL are required.")
	}
	m, err := s.master(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.findStream(ctx, m.ID, streamID)
	if err != nil {
		return nil, err
	}
	st.Name, st.StreamURL = in.Name, in.StreamURL
	if err := s.store.UpdateStream(ctx, m.ID, st); err != nil {
		return nil, storeErr(err, "Stream not found.", "A stream with this URL already exists in the master playlist.")
	}
	if err := s.markStale(ctx, m.ID); err != nil {
		return nil, err
	}
	return st, nil
}

// UpdateStreamType reclassifies a master stream.
func (s *Service) UpdateStreamType(ctx context.Context, streamID int64, t models.StreamType) (*models.Stream, error) {
	if !t.Valid() {
		return nil, apperr.Validation("Invalid stream type.")
	}
	m, err := s.master(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStreamType(ctx, m.ID, streamID, t); err != nil {
		return nil, storeErr(err, "Stream not found.", "")
	}
	return s.findStream(ctx, m.ID, streamID)
}

// DeleteMasterStream removes a stream and returns what was removed.
func (s *Service) DeleteMasterStream(ctx context.Context, streamID int64) (*models.Stream, error) {
	m, err := s.master(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.findStream(ctx, m.ID, streamID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteStream(ctx, m.ID, streamID); err != nil {
		return nil, storeErr(err, "Stream not found.", "")
	}
	if err := s.markStale(ctx, m.ID); err != nil {
		return nil, err
	}
	return st, nil
}

// CreateFromParsed adds analyzed streams to the master catalog, creating
// it on first use. URLs already present are skipped. The master playlist
// is left ONLINE since it was curated by hand.
func (s *Service) CreateFromParsed(ctx context.Context, c Caller, streams []models.StreamEntry) (int64, error) {
	if len(streams) == 0 {
		return 0, apperr.Validation("The stream list is required and cannot be empty.")
	}
	m, err := s.store.EnsureMasterPlaylist(ctx, c.UserID)
	if err != nil {
		return 0, fmt.Errorf("EnsureMasterPlaylist: %w", err)
	}

	entries := make([]models.StreamEntry, 0, len(streams))
	for _, e := range streams {
		if e.URL == "" {
			continue
		}
		if e.Name == "" {
			e.Name = "Sem Nome"
		}
		if !e.StreamType.Valid() {
			e.StreamType = models.StreamTypeCanal
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return 0, apperr.Validation("None of the streams has a URL.")
	}

	n, err := s.store.AddStreams(ctx, m.ID, entries)
	if err != nil {
		return 0, fmt.Errorf("AddStreams: %w", err)
	}
	if err := s.store.SetPlaylistStatus(ctx, m.ID, models.StatusOnline); err != nil {
		return n, fmt.Errorf("SetPlaylistStatus: %w", err)
	}
	s.log.WithFields(logrus.Fields{"added": n, "submitted": len(streams)}).Info("master catalog extended")
	return n, nil
}

// SyncMaster rebuilds the master catalog from every .m3u file in the
// import folder. Files that fail to parse are skipped.
func (s *Service) SyncMaster(ctx context.Context, c Caller) (*SyncResult, error) {
	names, err := s.files.ListImport()
	if err != nil {
		return nil, apperr.TransientIO(err, "could not list the import folder")
	}
	if len(names) == 0 {
		return nil, apperr.NotFound("No .m3u files found in the import folder to synchronize.")
	}

	var all []models.StreamEntry
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := s.importItems(name)
		if err != nil {
			s.log.WithError(err).WithField("file", name).Warn("skipping import file")
			continue
		}
		all = append(all, items...)
	}
	if len(all) == 0 {
		return nil, apperr.Validation("No streams could be extracted from the M3U files.")
	}
	for i := range all {
		if all[i].Name == "" {
			all[i].Name = "Unknown"
		}
	}

	m, err := s.store.EnsureMasterPlaylist(ctx, c.UserID)
	if err != nil {
		return nil, fmt.Errorf("EnsureMasterPlaylist: %w", err)
	}
	n, err := s.store.ReplaceStreams(ctx, m.ID, all)
	if err != nil {
		return nil, fmt.Errorf("ReplaceStreams: %w", err)
	}
	if err := s.markStale(ctx, m.ID); err != nil {
		return nil, err
	}
	m, err = s.store.GetPlaylist(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("GetPlaylist: %w", err)
	}
	s.log.WithFields(logrus.Fields{"files": len(names), "streams": n}).Info("master catalog synchronized")
	return &SyncResult{Playlist: m, Streams: n}, nil
}
