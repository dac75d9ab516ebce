package youtube

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/tubefeed/backend/internal/models"
)

const (
	// detailBatchSize is the maximum number of video IDs videos.list accepts
	// per call.
	detailBatchSize = 50
	// detailCallCost is the quota cost of one videos.list call.
	detailCallCost = 1

	defaultSearchCost = 100
	defaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond
)

// SearchClient fetches videos from the YouTube Data API v3, first resolving
// candidate IDs with search.list and then hydrating them with videos.list.
// A service is built per call so each fetch runs under the supplied API key.
type SearchClient struct {
	// SearchCost is the quota cost charged per search.list call.
	SearchCost int
	// MaxRetries bounds transient-error retries within one Fetch.
	MaxRetries int
	// Backoff is the base delay between transient retries.
	Backoff time.Duration
	// Options are appended to the per-call service options; tests use
	// option.WithEndpoint to point at a stub server.
	Options []option.ClientOption
}

// NewSearchClient constructs a client charging searchCost units per search call.
func NewSearchClient(searchCost int) *SearchClient {
	if searchCost <= 0 {
		searchCost = defaultSearchCost
	}
	return &SearchClient{
		SearchCost: searchCost,
		MaxRetries: defaultMaxRetries,
		Backoff:    defaultBackoff,
	}
}

// Fetch runs one two-step fetch: search for recent videos matching query, then
// retrieve full metadata for the candidates in as few batched calls as the API
// allows. The returned cost covers every call made, including ones that failed
// partway through.
func (c *SearchClient) Fetch(ctx context.Context, query string, maxResults int64, apiKey string) (FetchResult, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, c.Options...)
	svc, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return FetchResult{}, fmt.Errorf("create youtube service: %w", err)
	}

	result := FetchResult{}

	if maxResults <= 0 || maxResults > detailBatchSize {
		maxResults = detailBatchSize
	}

	var searchResp *ytapi.SearchListResponse
	err = c.doWithRetry(ctx, func() error {
		var callErr error
		searchResp, callErr = svc.Search.List([]string{"id"}).
			Q(query).
			Type("video").
			Order("date").
			MaxResults(maxResults).
			Context(ctx).
			Do()
		return callErr
	})
	result.Cost += c.SearchCost
	if err != nil {
		return result, fmt.Errorf("search videos: %w", classifyError(err))
	}

	ids := make([]string, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			return result, fmt.Errorf("search item missing video id: %w", ErrMalformedResponse)
		}
		ids = append(ids, item.Id.VideoId)
	}

	if len(ids) == 0 {
		return result, nil
	}

	details := make(map[string]models.Video, len(ids))
	for start := 0; start < len(ids); start += detailBatchSize {
		end := start + detailBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		var listResp *ytapi.VideoListResponse
		err = c.doWithRetry(ctx, func() error {
			var callErr error
			listResp, callErr = svc.Videos.List([]string{"snippet", "statistics", "contentDetails"}).
				Id(batch...).
				Context(ctx).
				Do()
			return callErr
		})
		result.Cost += detailCallCost
		if err != nil {
			return result, fmt.Errorf("list video details: %w", classifyError(err))
		}

		for _, item := range listResp.Items {
			video, err := parseVideo(item)
			if err != nil {
				return result, fmt.Errorf("parse video %s: %w", item.Id, err)
			}
			details[video.VideoID] = video
		}
	}

	// Preserve search order; the details endpoint does not guarantee it.
	for _, id := range ids {
		if video, ok := details[id]; ok {
			result.Videos = append(result.Videos, video)
		}
	}

	return result, nil
}

func (c *SearchClient) doWithRetry(ctx context.Context, call func() error) error {
	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = call()
		if err == nil || !isTransient(err) || attempt >= retries {
			return err
		}

		backoff := c.Backoff * time.Duration(attempt+1)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func parseVideo(item *ytapi.Video) (models.Video, error) {
	if item == nil || item.Id == "" || item.Snippet == nil {
		return models.Video{}, ErrMalformedResponse
	}

	snippet := item.Snippet

	publishedAt, err := time.Parse(time.RFC3339, snippet.PublishedAt)
	if err != nil {
		return models.Video{}, fmt.Errorf("publish time %q: %w", snippet.PublishedAt, ErrMalformedResponse)
	}

	video := models.Video{
		VideoID:      item.Id,
		Title:        snippet.Title,
		Description:  snippet.Description,
		PublishedAt:  publishedAt.UTC(),
		ChannelID:    snippet.ChannelId,
		ChannelTitle: snippet.ChannelTitle,
		Thumbnails:   parseThumbnails(snippet.Thumbnails),
		Tags:         snippet.Tags,
		CategoryID:   snippet.CategoryId,
		Language:     snippet.DefaultLanguage,
	}

	if item.Statistics != nil {
		video.ViewCount = int64(item.Statistics.ViewCount)
		video.LikeCount = int64(item.Statistics.LikeCount)
		video.CommentCount = int64(item.Statistics.CommentCount)
	}
	if item.ContentDetails != nil {
		video.Duration = item.ContentDetails.Duration
	}

	return video, nil
}

func parseThumbnails(details *ytapi.ThumbnailDetails) map[string]models.Thumbnail {
	thumbs := make(map[string]models.Thumbnail)
	if details == nil {
		return thumbs
	}

	add := func(name string, t *ytapi.Thumbnail) {
		if t == nil || t.Url == "" {
			return
		}
		thumbs[name] = models.Thumbnail{URL: t.Url, Width: t.Width, Height: t.Height}
	}

	add("default", details.Default)
	add("medium", details.Medium)
	add("high", details.High)
	add("standard", details.Standard)
	add("maxres", details.Maxres)

	return thumbs
}

var _ Source = (*SearchClient)(nil)
