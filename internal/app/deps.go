package app

import (
	"log/slog"
	"time"

	"github.com/tubefeed/backend/internal/config"
	"github.com/tubefeed/backend/internal/db"
	"github.com/tubefeed/backend/internal/fetcher"
	"github.com/tubefeed/backend/internal/handlers"
	"github.com/tubefeed/backend/internal/middleware"
	"github.com/tubefeed/backend/internal/quota"
	"github.com/tubefeed/backend/internal/repositories"
	"github.com/tubefeed/backend/internal/youtube"
)

// buildDependencies wires together the credential pool, video source, repository,
// and fetch scheduler, and hands the HTTP handlers their collaborators.
func buildDependencies(pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, *fetcher.Scheduler) {
	videos := repositories.NewPostgresVideoRepository(pool)
	credentials := quota.NewPool(cfg.APIKeys, cfg.DailyQuota)
	source := youtube.NewSearchClient(cfg.SearchCost)

	scheduler := fetcher.New(fetcher.Config{
		Query:      cfg.SearchQuery,
		MaxResults: cfg.MaxResults,
		Interval:   cfg.FetchInterval,
	}, credentials, source, videos, logger)

	return handlers.Dependencies{
		Videos:       videos,
		Fetcher:      scheduler,
		AdminLimiter: middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
	}, scheduler
}
