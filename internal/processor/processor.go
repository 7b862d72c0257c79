// Package processor turns queued client jobs into generated playlist files.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/filestore"
	"github.com/fastpanel/fastpanel/internal/generator"
	"github.com/fastpanel/fastpanel/internal/metrics"
	"github.com/fastpanel/fastpanel/internal/models"
	"github.com/fastpanel/fastpanel/internal/queue"
)

// ClientURLPrefix is the public path under which generated playlists are served.
const ClientURLPrefix = "/M3U/"

// ErrNoSources is returned for a client without assigned source playlists.
var ErrNoSources = errors.New("client has no source playlists")

// Clients is the part of the store the processor reads and updates.
type Clients interface {
	GetClient(ctx context.Context, id int64) (*models.Client, error)
	SetClientM3UURL(ctx context.Context, id int64, url string) error
}

// Options configures a Processor.
type Options struct {
	// BaseURL prefixes every restream URL written to client playlists.
	BaseURL string
	// Concurrency bounds how many source files are parsed at once.
	Concurrency int
}

// Processor generates one client playlist per job.
type Processor struct {
	clients Clients
	files   *filestore.Files
	cache   cache.PlaylistCache
	opts    Options
	log     *logrus.Entry
}

// New creates a Processor.
func New(clients Clients, files *filestore.Files, c cache.PlaylistCache, opts Options, log *logrus.Entry) *Processor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Processor{clients: clients, files: files, cache: c, opts: opts, log: log}
}

// Run claims jobs from consumer until ctx is done. A job is acked only
// after its playlist is written and the client updated; any failure
// hands it back through Fail.
func (p *Processor) Run(ctx context.Context, consumer queue.Consumer) error {
	p.log.Info("processor started")
	for {
		d, err := consumer.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.log.Info("processor stopping")
				return nil
			}
			p.log.WithError(err).Error("claim job")
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			continue
		}
		p.handle(ctx, consumer, d)
	}
}

func (p *Processor) handle(ctx context.Context, consumer queue.Consumer, d *queue.Delivery) {
	log := p.log.WithField("job", d.ID)
	if err := p.Process(ctx, d); err != nil {
		metrics.JobsProcessed.WithLabelValues("failed").Inc()
		log.WithError(err).Error("job failed")
		if ferr := consumer.Fail(ctx, d, err); ferr != nil {
			log.WithError(ferr).Error("mark job failed")
		}
		return
	}
	if err := consumer.Ack(ctx, d); err != nil {
		log.WithError(err).Error("ack job")
		return
	}
	metrics.JobsProcessed.WithLabelValues("ok").Inc()
}

// Process runs one job: decode it, load the client and its source
// playlists, merge their streams in assignment order, write the
// generated playlist and record its URL on the client. A source that
// cannot be read or parsed is logged and skipped.
func (p *Processor) Process(ctx context.Context, d *queue.Delivery) error {
	job, err := queue.DecodeJob(d.Body)
	if err != nil {
		return err
	}
	log := p.log.WithFields(logrus.Fields{"client_id": job.ClientID, "username": job.Username})

	client, err := p.clients.GetClient(ctx, job.ClientID)
	if err != nil {
		return fmt.Errorf("load client %d: %w", job.ClientID, err)
	}
	if len(client.SourcePlaylists) == 0 {
		return fmt.Errorf("client %d: %w", job.ClientID, ErrNoSources)
	}

	var merged []models.StreamEntry
	for _, items := range p.parseAll(ctx, client.SourcePlaylists, log) {
		merged = append(merged, items...)
	}

	content := generator.Generate(merged, p.opts.BaseURL)
	if _, err := p.files.WriteClientPlaylist(client.Username, content); err != nil {
		return err
	}
	url := ClientURLPrefix + filestore.ClientFileName(client.Username)
	if err := p.clients.SetClientM3UURL(ctx, client.ID, url); err != nil {
		return fmt.Errorf("update client %d: %w", client.ID, err)
	}
	log.WithFields(logrus.Fields{"streams": len(merged), "url": url}).Info("client playlist generated")
	return nil
}

// parseAll parses the sources with bounded concurrency. The result keeps
// the order of sources; a failed source contributes nil.
func (p *Processor) parseAll(ctx context.Context, sources []models.SourcePlaylist, log *logrus.Entry) [][]models.StreamEntry {
	results := make([][]models.StreamEntry, len(sources))
	wp := pool.New().WithMaxGoroutines(p.opts.Concurrency)
	for i := range sources {
		i := i
		sp := sources[i]
		wp.Go(func() {
			items, err := p.entries(ctx, sp)
			if err != nil {
				log.WithError(err).WithField("source_playlist", sp.Name).Warn("skipping source playlist")
				return
			}
			results[i] = items
		})
	}
	wp.Wait()
	return results
}

// entries returns the parsed streams of one source file, using the cache
// entry for the file's current fingerprint when there is one.
func (p *Processor) entries(ctx context.Context, sp models.SourcePlaylist) ([]models.StreamEntry, error) {
	fp, err := p.files.Fingerprint(sp.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", sp.FilePath, err)
	}
	key := cache.SourceKey(sp.ID, fp)
	if items, ok := p.cache.Get(ctx, key); ok {
		metrics.CacheResult(true)
		return items, nil
	}
	metrics.CacheResult(false)

	items, err := fetcher.ReadFileFS(p.files.FS(), sp.FilePath)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, items, 0); err != nil {
		p.log.WithError(err).WithField("key", key).Warn("cache set failed")
	}
	return items, nil
}
