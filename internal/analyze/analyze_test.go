package analyze

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/store/storetest"
)

func catalogWith(t *testing.T, urls ...string) *storetest.Memory {
	t.Helper()
	st := storetest.New()
	master, err := st.EnsureMasterPlaylist(context.Background(), 0)
	require.NoError(t, err)
	var entries []models.StreamEntry
	for _, u := range urls {
		entries = append(entries, models.StreamEntry{Name: u, URL: u})
	}
	_, err = st.AddStreams(context.Background(), master.ID, entries)
	require.NoError(t, err)
	return st
}

func urlsOf(items []models.StreamEntry) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.URL)
	}
	return out
}

const twoStreams = "#EXTM3U\n" +
	"#EXTINF:-1 group-title=\"Filmes\",One\nhttp://x/1\n" +
	"#EXTINF:-1 group-title=\"Series\",Two\nhttp://x/2\n"

func TestAnalyze_Dedup(t *testing.T) {
	a := New(catalogWith(t, "http://x/1"), Options{})

	res, err := a.Analyze(context.Background(), twoStreams)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://x/1"}, urlsOf(res.DuplicateItems))
	assert.Equal(t, []string{"http://x/2"}, urlsOf(res.NewItems))
	assert.Equal(t, models.StreamTypeFilme, res.DuplicateItems[0].StreamType)
	assert.Equal(t, models.StreamTypeSerie, res.NewItems[0].StreamType)
}

func TestAnalyze_MalformedInput(t *testing.T) {
	a := New(catalogWith(t, "http://x/1"), Options{})
	for _, text := range []string{"not an m3u file", "", "#EXTM3U\n"} {
		res, err := a.Analyze(context.Background(), text)
		require.NoError(t, err)
		assert.NotNil(t, res.NewItems)
		assert.NotNil(t, res.DuplicateItems)
		assert.Empty(t, res.NewItems)
		assert.Empty(t, res.DuplicateItems)
	}
}

func TestAnalyze_NoMasterMeansAllNew(t *testing.T) {
	a := New(storetest.New(), Options{})
	res, err := a.Analyze(context.Background(), twoStreams)
	require.NoError(t, err)
	assert.Len(t, res.NewItems, 2)
	assert.Empty(t, res.DuplicateItems)
}

func TestAnalyze_PartitionIsCompleteAndDisjoint(t *testing.T) {
	text := "#EXTM3U\n" +
		"#EXTINF:-1,A\nhttp://x/a\n" +
		"#EXTINF:-1,B\nhttp://x/b\n" +
		"#EXTINF:-1,C\nhttp://x/c\n" +
		"#EXTINF:-1,orphan\n" +
		"#EXTINF:-1,D\nhttp://x/d\n"
	a := New(catalogWith(t, "http://x/b", "http://x/d", "http://x/zzz"), Options{})

	res, err := a.Analyze(context.Background(), text)
	require.NoError(t, err)

	dup := map[string]bool{}
	for _, u := range urlsOf(res.DuplicateItems) {
		dup[u] = true
	}
	union := map[string]bool{}
	for _, u := range urlsOf(res.NewItems) {
		assert.False(t, dup[u], "%s is in both partitions", u)
		union[u] = true
	}
	for u := range dup {
		union[u] = true
	}
	assert.Equal(t, map[string]bool{"http://x/a": true, "http://x/b": true, "http://x/c": true, "http://x/d": true}, union)
}

func TestAnalyze_Idempotent(t *testing.T) {
	a := New(catalogWith(t, "http://x/2"), Options{})
	first, err := a.Analyze(context.Background(), twoStreams)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), twoStreams)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyze_ExactMatchByDefault(t *testing.T) {
	text := "#EXTM3U\n#EXTINF:-1,A\nHTTP://X.example/live/?b=2&a=1\n"
	master := catalogWith(t, "http://x.example/live?a=1&b=2")

	res, err := New(master, Options{}).Analyze(context.Background(), text)
	require.NoError(t, err)
	assert.Len(t, res.NewItems, 1)

	res, err = New(master, Options{NormalizeURLs: true}).Analyze(context.Background(), text)
	require.NoError(t, err)
	assert.Len(t, res.DuplicateItems, 1)
	assert.Equal(t, "HTTP://X.example/live/?b=2&a=1", res.DuplicateItems[0].URL, "items keep their original URL")
}

func TestAnalyze_CatalogError(t *testing.T) {
	st := catalogWith(t)
	st.ErrListStreamURLs = errors.New("db down")
	_, err := New(st, Options{}).Analyze(context.Background(), twoStreams)
	assert.Error(t, err)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://host/a", NormalizeURL("HTTP://Host/a/"))
	assert.Equal(t, "http://host/a?a=1&b=2", NormalizeURL("http://host/a?b=2&a=1"))
	assert.Equal(t, "not a url", NormalizeURL("not a url"))
}
