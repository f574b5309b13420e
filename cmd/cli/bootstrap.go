package main

import (
	"context"
	"fmt"
	"io"

	"finresearch/internal"
	"finresearch/internal/config"
	"finresearch/internal/container"
	"finresearch/internal/migration"
	"finresearch/internal/research"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// bootstrap loads configuration and wires the container the same way the
// server does. Progress events go to progress when it is non-nil.
func bootstrap(ctx context.Context, progress io.Writer) (*container.Container, error) {
	_ = godotenv.Load()
	internal.ConfigureFromEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	c, err := container.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Enabled() {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := migration.NewRunner().Run(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		if err := c.InitWithDatabase(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	var sinks []research.EventSink
	if progress != nil {
		sinks = append(sinks, progressPrinter(progress))
	}
	if _, err := c.BuildEngine(sinks...); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// progressPrinter prints one line per run event
func progressPrinter(w io.Writer) research.EventSink {
	return research.EventSinkFunc(func(ev research.Event) {
		switch ev.Type {
		case research.EventPlanReady:
			fmt.Fprintf(w, "[plan] %d sub-question(s)\n", ev.Count)
		case research.EventStageStarted:
			fmt.Fprintf(w, "[%s] gathering evidence...\n", ev.Stage)
		case research.EventStageCompleted:
			fmt.Fprintf(w, "[%s] %d record(s)\n", ev.Stage, ev.Count)
		case research.EventSynthesisStarted:
			fmt.Fprintln(w, "[synthesize] writing answer...")
		case research.EventRunFailed:
			fmt.Fprintf(w, "[failed] %s\n", ev.Message)
		}
	})
}
