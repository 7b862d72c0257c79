package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/store"
)

// Settings keys that override the computed content counts.
const (
	SettingManualLive   = "manual_live_tv_count"
	SettingManualMovies = "manual_movie_count"
	SettingManualSeries = "manual_series_count"
)

// ContentCounts is the catalog size by kind.
type ContentCounts struct {
	LiveChannels int64 `json:"liveChannels"`
	Movies       int64 `json:"movies"`
	Series       int64 `json:"series"`
}

// Stats is the dashboard summary.
type Stats struct {
	ContentCounts   ContentCounts `json:"contentCounts"`
	TotalClients    int64         `json:"totalClients"`
	SourcePlaylists int           `json:"sourcePlaylists"`
	SourceStreams   int           `json:"sourceStreams"`
}

// Stats counts the caller's clients, the source playlists and the master
// catalog by type. Numeric manual settings replace the computed counts.
func (s *Service) Stats(ctx context.Context, c Caller) (*Stats, error) {
	var st Stats

	var owner *int64
	if !c.IsSuperAdmin() {
		owner = &c.UserID
	}
	n, err := s.store.CountClients(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("CountClients: %w", err)
	}
	st.TotalClients = n

	sources, err := s.store.ListSourcePlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSourcePlaylists: %w", err)
	}
	st.SourcePlaylists = len(sources)
	for _, sp := range sources {
		st.SourceStreams += sp.StreamCount
	}

	m, err := s.store.GetMasterPlaylist(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("GetMasterPlaylist: %w", err)
	default:
		byType, err := s.store.CountStreamsByType(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("CountStreamsByType: %w", err)
		}
		st.ContentCounts = ContentCounts{
			LiveChannels: byType[models.StreamTypeCanal],
			Movies:       byType[models.StreamTypeFilme],
			Series:       byType[models.StreamTypeSerie],
		}
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetSettings: %w", err)
	}
	override(&st.ContentCounts.LiveChannels, settings[SettingManualLive])
	override(&st.ContentCounts.Movies, settings[SettingManualMovies])
	override(&st.ContentCounts.Series, settings[SettingManualSeries])
	return &st, nil
}

func override(dst *int64, v string) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = n
	}
}

// Settings returns every panel setting.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetSettings: %w", err)
	}
	if settings == nil {
		settings = map[string]string{}
	}
	return settings, nil
}

// UpdateSettings upserts every pair in one transaction.
func (s *Service) UpdateSettings(ctx context.Context, values map[string]string) error {
	if values == nil {
		return apperr.Validation("Request body must contain a \"settings\" object.")
	}
	for k := range values {
		if k == "" {
			return apperr.Validation("Setting keys cannot be empty.")
		}
	}
	if err := s.store.UpsertSettings(ctx, values); err != nil {
		return fmt.Errorf("UpsertSettings: %w", err)
	}
	return nil
}
