package main

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/warp/quote-engine/config"
	"github.com/warp/quote-engine/quotes"
	"github.com/warp/quote-engine/store"
)

// app is the wired dependency graph shared by the commands.
type app struct {
	cfg      *config.Config
	gw       *store.Gateway
	registry *prometheus.Registry
	service  *quotes.Service
}

func openStore(ctx context.Context, cfg *config.Config, skipMigrations bool) (*store.Gateway, error) {
	opts := store.Options{
		Driver:         cfg.Database.Driver,
		Path:           cfg.Database.Path,
		Developer:      cfg.Server.Developer,
		SkipMigrations: skipMigrations,
	}
	if cfg.Database.Driver == "postgres" {
		opts.DSN = cfg.Database.DSN()
	}
	gw, err := store.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	return gw, nil
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	gw, err := openStore(ctx, cfg, false)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	im, err := quotes.NewImporter(gw, quotes.ImportOptions{
		Source:      cfg.Import.Source,
		Category:    cfg.Import.Category,
		OnMalformed: quotes.MalformedPolicy(cfg.Import.OnMalformed),
		Atomicity:   quotes.Atomicity(cfg.Import.Atomicity),
		Strategy:    quotes.Strategy(cfg.Import.Strategy),
	}, quotes.NewMetrics(reg))
	if err != nil {
		gw.Close()
		return nil, err
	}

	log.Printf("Using %s store, import source %q", cfg.Database.Driver, cfg.Import.Source)
	return &app{
		cfg:      cfg,
		gw:       gw,
		registry: reg,
		service:  quotes.NewService(gw, im),
	}, nil
}

func (a *app) Close() error {
	return a.gw.Close()
}
