// Command fastpanel runs the panel HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastpanel/fastpanel/internal/auth"
	"github.com/fastpanel/fastpanel/internal/bootstrap"
	"github.com/fastpanel/fastpanel/internal/fetcher"
	"github.com/fastpanel/fastpanel/internal/server"
	"github.com/fastpanel/fastpanel/internal/service"
	"github.com/fastpanel/fastpanel/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	log := bootstrap.Logger("api", cfg)

	tokens, err := auth.NewTokens(cfg.JWTSecret, auth.DefaultExpiry)
	if err != nil {
		log.WithError(err).Error("auth")
		return 1
	}

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

	files, err := bootstrap.Files(cfg)
	if err != nil {
		log.WithError(err).Error("files")
		return 1
	}
	jobs, _, err := bootstrap.JobQueue(cfg, c)
	if err != nil {
		log.WithError(err).Error("queue")
		return 1
	}

	svc := service.New(store.NewCachedStore(pg, c.Playlists, log), files, c.Playlists, jobs, service.Options{
		MasterTextPath: cfg.MasterTextPath,
		Fetch:          fetcher.FetchOptions{UserAgent: cfg.UserAgent, Timeout: cfg.FetchTimeout},
		NormalizeURLs:  cfg.NormalizeURLs,
	}, log)

	srv := server.New(svc, tokens, pg, server.Options{}, log)
	defer srv.Close()
	if err := srv.ListenAndServe(ctx, ":"+cfg.ServerPort); err != nil {
		log.WithError(err).Error("server")
		return 1
	}
	return 0
}
