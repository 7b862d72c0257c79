package parsersvc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*httptest.Server, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	l, _ := logtest.NewNullLogger()
	srv := httptest.NewServer(NewHandler(fs, logrus.NewEntry(l)))
	t.Cleanup(srv.Close)
	return srv, fs
}

func TestParse_RoundTrip(t *testing.T) {
	srv, fs := newService(t)
	require.NoError(t, afero.WriteFile(fs, "/tmp/list.m3u",
		[]byte("#EXTM3U\n#EXTINF:-1 group-title=\"Series\",Ep 1\nhttp://x/1\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/tmp/empty.m3u", []byte("#EXTM3U\n"), 0o644))

	c := NewClient(srv.URL+"/", 0)
	items, err := c.Parse(context.Background(), "/tmp/list.m3u")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ep 1", items[0].Name)
	assert.Equal(t, "SERIE", string(items[0].StreamType))

	items, err = c.Parse(context.Background(), "/tmp/empty.m3u")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParse_Errors(t *testing.T) {
	srv, fs := newService(t)
	require.NoError(t, afero.WriteFile(fs, "/tmp/bad.m3u", []byte("hello"), 0o644))
	c := NewClient(srv.URL, 0)

	tests := []struct {
		path   string
		status int
	}{
		{"", http.StatusBadRequest},
		{"relative/list.m3u", http.StatusBadRequest},
		{"/tmp/bad.m3u", http.StatusUnprocessableEntity},
		{"/tmp/missing.m3u", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		_, err := c.Parse(context.Background(), tt.path)
		var se *ServiceError
		require.True(t, errors.As(err, &se), tt.path)
		assert.Equal(t, tt.status, se.StatusCode, tt.path)
		assert.NotEmpty(t, se.Message)
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	srv, _ := newService(t)
	resp, err := http.Post(srv.URL+"/parse", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckLoopback(t *testing.T) {
	assert.NoError(t, CheckLoopback("127.0.0.1:3001"))
	assert.NoError(t, CheckLoopback("[::1]:3001"))
	assert.NoError(t, CheckLoopback("localhost:3001"))
	assert.ErrorIs(t, CheckLoopback("0.0.0.0:3001"), ErrNotLoopback)
	assert.ErrorIs(t, CheckLoopback(":3001"), ErrNotLoopback)
	assert.Error(t, CheckLoopback("nonsense"))
}
