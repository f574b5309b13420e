package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"finresearch/internal"
	"finresearch/internal/config"
	"finresearch/internal/container"
	"finresearch/internal/errors"
	"finresearch/internal/migration"
	"finresearch/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

// initDatabase connects to PostgreSQL and applies the schema
func initDatabase(ctx context.Context, appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	internal.ConfigureFromEnv()

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(ctx, appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Close()

	if appConfig.Database.Enabled() {
		db, err := initDatabase(ctx, appConfig)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		if err := appContainer.InitWithDatabase(db); err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
		log.Println("Run archive: PostgreSQL")
	} else {
		log.Printf("Run archive: %s (no DATABASE_URL)", appConfig.Storage.RunsDir)
	}

	engine, err := appContainer.BuildEngine()
	if err != nil {
		log.Fatalf("Failed to build research engine: %v", err)
	}

	server := ui.NewServer(ui.Options{
		Engine:     engine,
		Runs:       appContainer.Runs,
		Hub:        appContainer.SSEHub,
		Usage:      appContainer.Usage,
		GinMode:    appConfig.Server.GinMode,
		CORSOrigin: appConfig.Server.CORSOrigin,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, ":"+appConfig.Server.Port)
	})

	// Ops server for liveness and pprof
	if appConfig.Profiling.Enabled {
		g.Go(func() error {
			log.Printf("View profiles: go tool pprof -http=:8081 http://localhost:%s/debug/pprof/profile?seconds=30", appConfig.Profiling.Port)
			return ui.NewOpsApp().ListenAndServe(gctx, ":"+appConfig.Profiling.Port)
		})
	}

	if err := g.Wait(); err != nil {
		log.Printf("Server stopped: %v", err)
		appContainer.Close()
		os.Exit(1)
	}
}
