package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/downfa11-org/strata/pkg/config"
	"github.com/downfa11-org/strata/pkg/controller"
	"github.com/downfa11-org/strata/pkg/disk"
	"github.com/downfa11-org/strata/pkg/engine"
	"github.com/downfa11-org/strata/pkg/flush"
	"github.com/downfa11-org/strata/pkg/metrics"
	"github.com/downfa11-org/strata/pkg/query"
	"github.com/downfa11-org/strata/util"
)

func main() {
	// Configuration
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		util.Fatal("failed to load config: %v", err)
	}

	util.Info("starting strata: log=%s segment=%dB threshold=%dB flush=%s level=%s", cfg.LogDir, cfg.SegmentSize, cfg.GenerationThreshold, cfg.FlushDir, util.Level())

	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
	} else {
		util.Info("exporter disabled")
	}

	// Initialization
	lm, err := disk.NewLogManager(cfg.LogDir, cfg.SegmentSize)
	if err != nil {
		util.Fatal("failed to open log: %v", err)
	}
	defer lm.Close()

	writer, err := flush.NewFileWriter(cfg.FlushCompression)
	if err != nil {
		util.Fatal("failed to create flush writer: %v", err)
	}

	store := query.NewStore(nil)
	defer store.Close()

	eng := engine.New(cfg, store, writer)
	actor, err := controller.NewActor(cfg, lm, eng)
	if err != nil {
		util.Fatal("failed to create command actor: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ReplayOnStart {
		n, err := actor.Replay(ctx)
		if err != nil {
			util.Fatal("replay failed after %d records: %v", n, err)
		}
	}

	if err := actor.Run(ctx); err != nil {
		util.Error("storage engine stopped: %v", err)
		store.Close()
		lm.Close()
		os.Exit(1)
	}
	util.Info("shutdown complete")
}
