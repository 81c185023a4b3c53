package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/Nylv/edt-sync/internal/config"
	"github.com/Nylv/edt-sync/internal/syncer"
	"github.com/Nylv/edt-sync/internal/web"
)

type flags struct {
	configPath string
	serve      bool
	listen     string
}

func init() {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			log.Fatal(err)
		}
		log.SetLevel(parsed)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	fl := parseFlags()

	cfg, err := config.Load(fl.configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if fl.listen != "" {
		cfg.Serve.Listen = fl.listen
	}

	s, err := syncer.New(cfg)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("signal %s received, shutting down", sig)
		cancel()
	}()

	if !fl.serve {
		if err := s.Run(ctx); err != nil {
			log.Fatalf("sync failed: %v", err)
		}
		return
	}

	// Serve mode: sync now, then on a schedule, while exposing the file
	// over HTTP. A failed refresh keeps the previous calendar in place.
	if err := s.Run(ctx); err != nil {
		log.Errorf("initial sync failed: %v", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Serve.Refresh, func() {
		if err := s.Run(ctx); err != nil {
			log.Errorf("scheduled sync failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("invalid refresh schedule %q: %v", cfg.Serve.Refresh, err)
	}
	c.Start()
	defer c.Stop()

	server := web.NewServer(cfg.Serve.Listen, s.OutputPath(), s)
	if err := server.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var fl flags
	flag.StringVar(&fl.configPath, "config", "", "Path to optional YAML config file")
	flag.BoolVar(&fl.serve, "serve", false, "Keep running: refresh on a schedule and serve the calendar over HTTP")
	flag.StringVar(&fl.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.Parse()
	return fl
}
