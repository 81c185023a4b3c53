package syncer

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Nylv/edt-sync/internal/config"
	"github.com/Nylv/edt-sync/internal/fetch"
	"github.com/Nylv/edt-sync/internal/ical"
	"github.com/Nylv/edt-sync/internal/portal"
)

// Syncer runs the whole pipeline: authenticate, fetch, build, write. One
// Syncer is safe to reuse across runs; each Run opens with a fresh login so
// an expired session never poisons a later refresh.
type Syncer struct {
	client  *portal.Client
	fetcher fetch.Fetcher

	prodID     string
	outputPath string
}

// New wires a Syncer from configuration. All configuration errors surface
// here, before any network I/O.
func New(cfg config.Config) (*Syncer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", cfg.Calendar.Timezone, err)
	}

	client, err := portal.NewClient(cfg.Portal)
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.New(cfg.Fetch, client, loc)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		client:     client,
		fetcher:    fetcher,
		prodID:     cfg.Calendar.ProdID,
		outputPath: cfg.Output.Path,
	}, nil
}

// Run executes one full sync and overwrites the output file.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.client.Login(ctx); err != nil {
		return err
	}

	events, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	log.Infof("fetched %d events", len(events))

	cal := ical.Build(events, s.prodID)
	if err := ical.Write(cal, s.outputPath); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}

	log.Infof("calendar written to %s", s.outputPath)
	return nil
}

// OutputPath reports where Run writes the calendar, for the HTTP server.
func (s *Syncer) OutputPath() string {
	return s.outputPath
}
