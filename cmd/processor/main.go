// Command processor generates client playlists from queued jobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastpanel/fastpanel/internal/bootstrap"
	"github.com/fastpanel/fastpanel/internal/processor"
	"github.com/fastpanel/fastpanel/internal/queue"
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
	log := bootstrap.Logger("processor", cfg)

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

	bootstrap.ServeMetrics(ctx, cfg.MetricsAddr, log)

	var consumer queue.Consumer
	producer, dir, err := bootstrap.JobQueue(cfg, c)
	if err != nil {
		log.WithError(err).Error("queue")
		return 1
	}
	if dir != nil {
		w, err := queue.NewWatcher(dir.Path(), cfg.QueueQuiescence, log)
		if err != nil {
			log.WithError(err).Error("watch queue")
			return 1
		}
		defer w.Close()
		go w.Run(ctx)
		consumer = queue.NewDirConsumer(dir, w.Events())
		log.WithField("dir", dir.Path()).Info("watching job directory")
	} else {
		rq := producer.(*queue.RedisQueue)
		n, err := rq.Recover(ctx)
		if err != nil {
			log.WithError(err).Error("recover in-flight jobs")
			return 1
		}
		if n > 0 {
			log.WithField("jobs", n).Info("requeued jobs left in processing")
		}
		consumer = rq
	}

	p := processor.New(pg, files, c.Playlists, processor.Options{
		BaseURL:     cfg.ServerBaseURL,
		Concurrency: cfg.Concurrency,
	}, log)
	if err := p.Run(ctx, consumer); err != nil {
		log.WithError(err).Error("processor")
		return 1
	}
	return 0
}
