package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"venue_atlas/internal/adapters/observability"
	redisad "venue_atlas/internal/adapters/redis"
	"venue_atlas/internal/app"
	"venue_atlas/internal/shared"
	mysqlrepo "venue_atlas/internal/storage/mysql"
)

func main() {
	var (
		file        = flag.String("file", "", "path to a JSON array of raw scraped records")
		source      = flag.String("source", "", "origin of the records: google, yandex or 2gis")
		incremental = flag.Bool("incremental", false, "skip records whose fingerprint is unchanged")
		consolidate = flag.Bool("consolidate", false, "run a full duplicate sweep after the import")
	)
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	if *file == "" || *source == "" {
		log.Fatal().Msg("-file and -source are required")
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("read input failed")
	}
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Fatal().Err(err).Msg("input must be a JSON array of objects")
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	cons := app.NewConsolidationService(repo, cache)

	ctx := context.Background()
	log.Info().Str("source", *source).Int("records", len(records)).Bool("incremental", *incremental).Msg("import starting")

	stats, err := cons.ImportBatch(ctx, *source, records, app.SaveOptions{Incremental: *incremental})
	if err != nil {
		log.Fatal().Err(err).Msg("import aborted")
	}
	log.Info().
		Int("total", stats.Total).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("merged", stats.Merged).
		Int("unchanged", stats.Unchanged).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Msg("import completed")
	for _, m := range stats.ErrorMessages {
		log.Warn().Str("error", m).Msg("import record failed")
	}

	if *consolidate {
		report, err := cons.RunFullConsolidation(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("consolidation failed")
		}
		log.Info().
			Int("processed", report.Processed).
			Int("merged", report.Merged).
			Int("deleted", report.Deleted).
			Msg("consolidation completed")
	}
}
