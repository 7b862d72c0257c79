package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/fastpanel/fastpanel/internal/models"
)

// DefaultUserAgent is a desktop browser UA; several IPTV providers refuse
// requests that do not look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultTimeout bounds a remote playlist fetch.
const DefaultTimeout = 15 * time.Second

// FetchOptions tunes FetchURL. Zero values select the defaults.
type FetchOptions struct {
	UserAgent string
	Timeout   time.Duration
	Client    *http.Client
}

// FetchURL downloads the playlist at url and parses it.
// Transport failures and non-2xx answers return *FetchError; bad content returns *ParseError.
func FetchURL(ctx context.Context, url string, opts FetchOptions) ([]models.StreamEntry, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("NewRequest: %w", err)}
	}
	req.Header.Set("User-Agent", opts.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("ReadAll: %w", err)}
	}
	return Parse(string(body))
}

// ReadFile reads and parses a playlist file. The path is made absolute first.
func ReadFile(path string) ([]models.StreamEntry, error) {
	return ReadFileFS(afero.NewOsFs(), path)
}

// ReadFileFS is ReadFile against an arbitrary filesystem.
// Read failures return *ReadError; bad content returns *ParseError.
func ReadFileFS(fsys afero.Fs, path string) ([]models.StreamEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	data, err := afero.ReadFile(fsys, abs)
	if err != nil {
		return nil, &ReadError{Path: abs, Err: err}
	}
	return Parse(string(data))
}
