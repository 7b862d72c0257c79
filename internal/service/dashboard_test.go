package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/apperr"
	"github.com/fastpanel/fastpanel/internal/models"
)

func TestStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	st, err := e.svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, *st)

	e.client(t, reseller, "maria", 1)
	e.client(t, other, "joao", 1)
	_, err = e.svc.CreateFromParsed(ctx, admin, []models.StreamEntry{
		{Name: "c1", URL: "http://x/1", StreamType: models.StreamTypeCanal},
		{Name: "c2", URL: "http://x/2", StreamType: models.StreamTypeCanal},
		{Name: "f1", URL: "http://x/3", StreamType: models.StreamTypeFilme},
	})
	require.NoError(t, err)

	st, err = e.svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.TotalClients)
	assert.Equal(t, 2, st.SourcePlaylists)
	assert.Equal(t, 4, st.SourceStreams)
	assert.Equal(t, ContentCounts{LiveChannels: 2, Movies: 1}, st.ContentCounts)

	st, err = e.svc.Stats(ctx, reseller)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalClients)

	require.NoError(t, e.svc.UpdateSettings(ctx, map[string]string{
		SettingManualMovies: "1500",
		SettingManualSeries: "not a number",
	}))
	st, err = e.svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, ContentCounts{LiveChannels: 2, Movies: 1500}, st.ContentCounts)
}

func TestSettings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	got, err := e.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	requireKind(t, e.svc.UpdateSettings(ctx, nil), apperr.KindValidation)
	requireKind(t, e.svc.UpdateSettings(ctx, map[string]string{"": "x"}), apperr.KindValidation)

	require.NoError(t, e.svc.UpdateSettings(ctx, map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, e.svc.UpdateSettings(ctx, map[string]string{"a": "3"}))
	got, err = e.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "3", "b": "2"}, got)
}
