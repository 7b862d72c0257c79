// Command refresher re-derives the cached streams of playlists pending
// verification. With -once it runs a single cycle and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fastpanel/fastpanel/internal/bootstrap"
	"github.com/fastpanel/fastpanel/internal/cache"
	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/parsersvc"
	"github.com/fastpanel/fastpanel/internal/refresher"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	once := flag.Bool("once", false, "Run one refresh cycle and exit")
	purge := flag.Bool("purge", false, "Drop every cached playlist from Redis before refreshing")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	log := bootstrap.Logger("refresher", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("store")
		return 1
	}
	defer pg.Close()

	c, err := bootstrap.OpenCache(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("cache")
		return 1
	}
	defer c.Close()

	opts := refresher.Options{
		Fetch: fetcher.FetchOptions{UserAgent: cfg.UserAgent, Timeout: cfg.FetchTimeout},
	}
	if c.Redis != nil {
		// A cycle over many remote playlists can take minutes.
		opts.Lock = refresher.RedisLocker(c.Redis, 30*time.Minute)
		if cache.IsLocked(ctx, c.Redis, cache.RefreshLockKey) {
			log.Warn("another refresher holds the cycle lock; cycles are skipped until it is released")
		}
		if *purge {
			if err := c.Playlists.(*cache.RedisPlaylists).Purge(ctx); err != nil {
				log.WithError(err).Error("purge cache")
				return 1
			}
			log.Info("playlist cache purged")
		}
	} else if *purge {
		log.Warn("-purge ignored: no shared cache configured")
	}

	parser := parsersvc.NewClient(cfg.ParserServiceURL, 0)
	w := refresher.New(pg, parser, c.Playlists, opts, log)

	if *once {
		st, err := w.RefreshAll(ctx)
		if err != nil {
			log.WithError(err).Error("refresh cycle")
			return 1
		}
		log.WithFields(logrus.Fields{"online": st.Online, "offline": st.Offline, "skipped": st.Skipped}).Info("refresh cycle done")
		return 0
	}

	bootstrap.ServeMetrics(ctx, cfg.MetricsAddr, log)
	if err := w.Run(ctx, cfg.RefreshInterval); err != nil {
		log.WithError(err).Error("refresher")
		return 1
	}
	return 0
}
