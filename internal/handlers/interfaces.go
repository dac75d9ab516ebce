package handlers

import (
	"context"

	"github.com/tubefeed/backend/internal/fetcher"
	"github.com/tubefeed/backend/internal/models"
	"github.com/tubefeed/backend/internal/repositories"
)

// VideoStore captures the read operations required by the video handlers.
type VideoStore interface {
	List(ctx context.Context, filter repositories.VideoFilter, page, perPage int) ([]models.Video, int, error)
	FindByVideoID(ctx context.Context, videoID string) (models.Video, error)
	Latest(ctx context.Context, limit int) ([]models.Video, error)
	Count(ctx context.Context) (int, error)
}

// FetchController exposes background fetcher control to the admin handlers.
type FetchController interface {
	Start()
	Stop()
	ForceFetch(ctx context.Context) (fetcher.Report, error)
	Status() fetcher.Status
}
