// Package analyze partitions incoming M3U entries into streams the master
// catalog already has and streams it does not.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/store"
)

// Catalog is the read-only view of the master playlist the analyzer needs.
type Catalog interface {
	GetMasterPlaylist(ctx context.Context) (*models.Playlist, error)
	ListStreamURLs(ctx context.Context, playlistID int64) ([]string, error)
}

// Options tunes URL comparison. The zero value compares URLs exactly.
type Options struct {
	// NormalizeURLs compares URLs after NormalizeURL on both sides.
	NormalizeURLs bool
}

// Result is the partition of the analyzed entries.
type Result struct {
	NewItems       []models.StreamEntry `json:"newItems"`
	DuplicateItems []models.StreamEntry `json:"duplicateItems"`
}

// Analyzer compares M3U text against the master catalog.
type Analyzer struct {
	catalog Catalog
	opts    Options
}

// New creates an Analyzer reading from catalog.
func New(catalog Catalog, opts Options) *Analyzer {
	return &Analyzer{catalog: catalog, opts: opts}
}

// Analyze parses text and splits its entries by whether their URL is in
// the master catalog. Unparseable or empty text yields two empty lists.
// Every entry is annotated with a stream type guessed from its group.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Result, error) {
	res := Result{NewItems: []models.StreamEntry{}, DuplicateItems: []models.StreamEntry{}}
	items := fetcher.Items(text)
	if len(items) == 0 {
		return res, nil
	}

	known, err := a.masterURLs(ctx)
	if err != nil {
		return Result{}, err
	}
	for _, item := range items {
		item.StreamType = fetcher.GuessStreamType(item.GroupTitle)
		if known[a.key(item.URL)] {
			res.DuplicateItems = append(res.DuplicateItems, item)
		} else {
			res.NewItems = append(res.NewItems, item)
		}
	}
	return res, nil
}

// masterURLs returns the master catalog URL set, empty when no master exists.
func (a *Analyzer) masterURLs(ctx context.Context) (map[string]bool, error) {
	master, err := a.catalog.GetMasterPlaylist(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load master playlist: %w", err)
	}
	urls, err := a.catalog.ListStreamURLs(ctx, master.ID)
	if err != nil {
		return nil, fmt.Errorf("load master urls: %w", err)
	}
	set := make(map[string]bool, len(urls))
	for _, u := range urls {
		set[a.key(u)] = true
	}
	return set, nil
}

func (a *Analyzer) key(u string) string {
	if a.opts.NormalizeURLs {
		return NormalizeURL(u)
	}
	return u
}

// NormalizeURL lower-cases scheme and host, drops a trailing slash from
// the path and sorts query parameters. Unparseable input is returned as is.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return u.String()
}
