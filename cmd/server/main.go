package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/omochice/chatsocket/internal/config"
	"github.com/omochice/chatsocket/internal/logging"
	"github.com/omochice/chatsocket/internal/relay"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to YAML config file")
	listen := flag.String("listen", "", "Address to listen on (e.g., :8080)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadWithDefaults(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := relay.New(logger, relay.WithPath(cfg.Server.Path))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("listen", cfg.Server.Listen).WithField("path", cfg.Server.Path).Info("starting relay server")
		return srv.Start(cfg.Server.Listen)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		srv.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}
