package main

import (
	"context"
	"database/sql"
	"flag"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"venue_atlas/internal/adapters/observability"
	"venue_atlas/internal/adapters/places"
	redisad "venue_atlas/internal/adapters/redis"
	"venue_atlas/internal/app"
	"venue_atlas/internal/shared"
	mysqlrepo "venue_atlas/internal/storage/mysql"
)

func main() {
	var (
		limit = flag.Int("limit", 100, "max venues to refresh in one run")
		force = flag.Bool("force", false, "ignore the 24h cooldown")
	)
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	client, err := places.New(cfg.PlacesBase, cfg.PlacesKey, cfg.PlacesRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize places client")
	}
	ref := app.NewRefreshService(repo, client, cache, app.DefaultSyncConfig())

	plans, err := ref.Plan(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("refresh planning failed")
	}
	log.Info().Int("due", len(plans)).Int("workers", cfg.Workers).Msg("refresher starting")

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, p := range plans {
		p := p

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if err := ref.RefreshVenue(ctx, p.VenueID, p.Mode, *force); err != nil {
				log.Warn().Int64("id", p.VenueID).Err(err).Msg("refresh failed")
				return
			}
			log.Info().Int64("id", p.VenueID).Str("mode", string(p.Mode)).Msg("refresh ok")
		}()
	}

	wg.Wait()
	log.Info().Msg("refresh completed")
}
