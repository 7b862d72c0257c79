package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/models"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="c1" tvg-name="Chan One" tvg-logo="http://logo/1.png" group-title="Noticias",Chan One HD
http://x/1

#EXTINF:-1 tvg-name="Filme, O Retorno" group-title="Filmes Acao",O Retorno
#EXTVLCOPT:http-user-agent=VLC
http://x/2
#EXTINF:-1,Orphan without url
#EXTINF:-1,Grouped
#EXTGRP:Series Drama
http://x/3
`

func TestParse_SpecScenario(t *testing.T) {
	items, err := Parse("#EXTM3U\n#EXTINF:-1 tvg-name=\"Chan1\" group-title=\"Filmes\",Chan1\nhttp://x/1\n")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Chan1", items[0].Name)
	assert.Equal(t, "http://x/1", items[0].URL)
	assert.Equal(t, "Filmes", items[0].GroupTitle)
	assert.Equal(t, models.StreamTypeFilme, items[0].StreamType)
}

func TestParse_Entries(t *testing.T) {
	items, err := Parse(samplePlaylist)
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "Chan One HD", first.Name)
	assert.Equal(t, "Chan One", first.TvgName)
	assert.Equal(t, "c1", first.TvgID)
	assert.Equal(t, "http://logo/1.png", first.TvgLogo)
	assert.Equal(t, models.StreamTypeCanal, first.StreamType)
	assert.Equal(t, `#EXTINF:-1 tvg-id="c1" tvg-name="Chan One" tvg-logo="http://logo/1.png" group-title="Noticias",Chan One HD`, first.Raw)

	// Comma inside a quoted attribute must not split the display name.
	assert.Equal(t, "O Retorno", items[1].Name)
	assert.Equal(t, "Filme, O Retorno", items[1].TvgName)
	assert.Equal(t, models.StreamTypeFilme, items[1].StreamType)

	// The orphan EXTINF is dropped; #EXTGRP supplies the group.
	assert.Equal(t, "Grouped", items[2].Name)
	assert.Equal(t, "Series Drama", items[2].GroupTitle)
	assert.Equal(t, models.StreamTypeSerie, items[2].StreamType)
}

func TestParse_ToleratesWhitespace(t *testing.T) {
	text := "\n\n   #EXTM3U  \r\n\r\n  #EXTINF:-1,Spaced  \r\n\r\n   http://x/9   \r\n"
	items, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Spaced", items[0].Name)
	assert.Equal(t, "http://x/9", items[0].URL)
}

func TestParse_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		cause error
	}{
		{"blank", "  \n\t", ErrEmptyInput},
		{"not m3u", "not an m3u file", ErrNotM3U},
		{"html", "<html><body>404</body></html>", ErrNotM3U},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, items)
			assert.True(t, IsParseError(err))
			assert.ErrorIs(t, err, tt.cause)
			assert.Empty(t, Items(tt.input))
		})
	}
}

func TestParse_HeaderOnlyIsEmptyNotError(t *testing.T) {
	items, err := Parse("#EXTM3U\n")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, Items("#EXTM3U\n"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Name", DisplayName(`#EXTINF:-1 a="1,2",Name`))
	assert.Equal(t, "", DisplayName(`#EXTINF:-1 a="x"`))
	assert.Equal(t, "B", DisplayName(`#EXTINF:-1,A,B`))
}

func TestGuessStreamType(t *testing.T) {
	tests := map[string]models.StreamType{
		"":               models.StreamTypeCanal,
		"Esportes":       models.StreamTypeCanal,
		"filmes 4k":      models.StreamTypeFilme,
		"MOVIES | Acao":  models.StreamTypeFilme,
		"Series Netflix": models.StreamTypeSerie,
		"séries":         models.StreamTypeSerie,
	}
	for group, want := range tests {
		assert.Equal(t, want, GuessStreamType(group), group)
	}
}

func TestFetchURL(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok.m3u":
			_, _ = w.Write([]byte(samplePlaylist))
		case "/garbage":
			_, _ = w.Write([]byte("garbage"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	items, err := FetchURL(context.Background(), srv.URL+"/ok.m3u", FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, DefaultUserAgent, gotUA)

	_, err = FetchURL(context.Background(), srv.URL+"/missing", FetchOptions{})
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)

	_, err = FetchURL(context.Background(), srv.URL+"/garbage", FetchOptions{})
	assert.True(t, IsParseError(err))
	assert.False(t, errors.As(err, &fe))
}

func TestFetchURL_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := FetchURL(context.Background(), srv.URL, FetchOptions{Timeout: 50 * time.Millisecond})
	var fe *FetchError
	assert.True(t, errors.As(err, &fe))
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.m3u")
	require.NoError(t, os.WriteFile(path, []byte(samplePlaylist), 0o644))

	items, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = ReadFile(filepath.Join(dir, "nope.m3u"))
	var re *ReadError
	require.True(t, errors.As(err, &re))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadFileFS(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/a.m3u", []byte("plain text"), 0o644))

	_, err := ReadFileFS(fsys, "/data/a.m3u")
	assert.True(t, IsParseError(err))
}
