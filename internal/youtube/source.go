package youtube

import (
	"context"

	"github.com/tubefeed/backend/internal/models"
)

// FetchResult is the outcome of one search-and-detail fetch: the normalized
// records in search order plus the total quota units the fetch cost.
type FetchResult struct {
	Videos []models.Video
	Cost   int
}

// Source executes one search-and-detail fetch against the video provider
// using the supplied API key.
type Source interface {
	Fetch(ctx context.Context, query string, maxResults int64, apiKey string) (FetchResult, error)
}
