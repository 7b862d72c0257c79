package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/models"
)

func TestGenerate(t *testing.T) {
	items := []models.StreamEntry{
		{Raw: `#EXTINF:-1 tvg-name="Canal Um" group-title="TV",Canal 1`, URL: "http://up/1"},
		{Raw: `#EXTINF:-1 group-title="TV",Esporte+ HD`, URL: "http://up/2"},
		{Raw: `#EXTINF:-1 group-title="TV"`, URL: "http://up/3"},
		{Name: "no raw line", URL: "http://up/4"},
		{Raw: `#EXTINF:-1,No URL`},
	}

	got := Generate(items, "https://panel.example/")
	want := "#EXTM3U\n" +
		"#EXTINF:-1 tvg-name=\"Canal Um\" group-title=\"TV\",Canal 1\nhttps://panel.example/live/Canal_Um\n" +
		"#EXTINF:-1 group-title=\"TV\",Esporte+ HD\nhttps://panel.example/live/Esporte__HD\n" +
		"#EXTINF:-1 group-title=\"TV\"\nhttps://panel.example/live/Unknown\n"
	assert.Equal(t, want, got)
}

func TestGenerate_Empty(t *testing.T) {
	assert.Equal(t, "#EXTM3U\n", Generate(nil, "http://h"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "a-b_c.d", SanitizeName("a-b_c.d"))
	assert.Equal(t, "Canal___HD", SanitizeName("Canal + HD"))
	assert.Equal(t, "S_o_Paulo", SanitizeName("São Paulo"))
	assert.Equal(t, "", SanitizeName(""))
}

func TestGenerate_RoundTrip(t *testing.T) {
	src := "#EXTM3U\n" +
		"#EXTINF:-1 tvg-name=\"One\" group-title=\"Filmes\",One\nhttp://x/1\n" +
		"#EXTINF:-1 group-title=\"Series\",Two Part\nhttp://x/2\n" +
		"#EXTINF:-1,Three\nhttp://x/3\n"
	items, err := fetcher.Parse(src)
	require.NoError(t, err)

	out := Generate(items, "http://panel")
	again, err := fetcher.Parse(out)
	require.NoError(t, err)
	require.Len(t, again, len(items))

	for i := range items {
		assert.Equal(t, RestreamURL("http://panel", StreamName(items[i].Raw)), again[i].URL)
		assert.Equal(t, items[i].Raw, again[i].Raw)
		assert.True(t, strings.HasPrefix(again[i].URL, "http://panel/live/"))
	}
}

func TestRender_KeepsOriginalURLs(t *testing.T) {
	items := fetcher.Items("#EXTM3U\n#EXTINF:-1,A\nhttp://x/a\n#EXTINF:-1,B\nhttp://x/b\n")
	out := Render(items)
	again := fetcher.Items(out)
	require.Len(t, again, 2)
	assert.Equal(t, "http://x/a", again[0].URL)
	assert.Equal(t, "http://x/b", again[1].URL)
}
