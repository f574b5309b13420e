package main

import (
	"context"
	"log"
	"math"
	"os"

	"finresearch/adapters/filestore"
	"finresearch/adapters/postgres"
	"finresearch/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate <database_url> [runs_dir]")
	}

	databaseURL := os.Args[1]
	ctx := context.Background()

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner()
	log.Printf("Applying schema version %s", runner.Version())
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Schema migration failed: %v", err)
	}

	if len(os.Args) < 3 {
		log.Printf("Schema up to date")
		return
	}

	// Import a file archive into the database. Saves are upserts, so
	// re-running the import is safe.
	runsDir := os.Args[2]
	files := filestore.NewRunStore(runsDir)
	runs := postgres.NewRunRepository(db)

	summaries, err := files.ListRecent(ctx, math.MaxInt32)
	if err != nil {
		log.Fatalf("Failed to list archived runs in %s: %v", runsDir, err)
	}
	log.Printf("Found %d archived runs to import", len(summaries))

	migrated := 0
	skipped := 0
	for _, s := range summaries {
		state, err := files.Get(ctx, s.RunID)
		if err != nil {
			log.Printf("Failed to load run %s: %v", s.RunID, err)
			skipped++
			continue
		}
		if err := runs.Save(ctx, state); err != nil {
			log.Printf("Failed to save run %s: %v", s.RunID, err)
			skipped++
			continue
		}
		migrated++
	}

	log.Printf("Migration complete: %d imported, %d skipped", migrated, skipped)
}
