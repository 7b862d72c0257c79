// Command parserd parses local playlist files for the refresher. It only
// binds loopback addresses.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/fastpanel/fastpanel/internal/bootstrap"
	"github.com/fastpanel/fastpanel/internal/config"
	"github.com/fastpanel/fastpanel/internal/parsersvc"
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", "", "Listen address (loopback only); default PARSER_ADDR")
	flag.Parse()

	cfg, err := config.LoadParser()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	log := bootstrap.Logger("parserd", cfg)

	listen := cfg.ParserAddr
	if *addr != "" {
		listen = *addr
	}
	if err := parsersvc.CheckLoopback(listen); err != nil {
		log.WithError(err).WithField("addr", listen).Error("refusing to listen")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := parsersvc.NewHandler(afero.NewOsFs(), log)
	if err := parsersvc.ListenAndServe(ctx, listen, h, log); err != nil {
		log.WithError(err).Error("parserd")
		return 1
	}
	return 0
}
