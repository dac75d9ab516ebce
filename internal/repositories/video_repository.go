package repositories

import (
	"context"
	"time"

	"github.com/tubefeed/backend/internal/models"
)

// VideoFilter narrows List queries. Zero values are ignored.
type VideoFilter struct {
	Search          string
	ChannelID       string
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
}

// VideoRepository exposes data access for fetched videos.
type VideoRepository interface {
	UpsertMany(ctx context.Context, videos []models.Video) (inserted, updated int, err error)
	FindByVideoID(ctx context.Context, videoID string) (models.Video, error)
	List(ctx context.Context, filter VideoFilter, page, perPage int) ([]models.Video, int, error)
	Latest(ctx context.Context, limit int) ([]models.Video, error)
	Count(ctx context.Context) (int, error)
}
