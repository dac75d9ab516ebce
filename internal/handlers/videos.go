package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tubefeed/backend/internal/logging"
	"github.com/tubefeed/backend/internal/models"
	"github.com/tubefeed/backend/internal/repositories"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
	defaultLatest  = 10
	maxLatest      = 50
)

// VideoHandler provides read endpoints over the stored video records.
type VideoHandler struct {
	Videos VideoStore
}

type videoListResponse struct {
	Videos     []models.Video `json:"videos"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int            `json:"total_pages"`
}

// List handles GET /api/v1/videos with pagination and filters.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil {
		logger.Error("video store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "video storage unavailable"})
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "page must be >= 1"})
		return
	}
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage < 1 || perPage > maxPerPage {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "per_page must be between 1 and 100"})
		return
	}

	filter := repositories.VideoFilter{
		Search:    strings.TrimSpace(r.URL.Query().Get("search")),
		ChannelID: strings.TrimSpace(r.URL.Query().Get("channel_id")),
	}

	var err error
	if filter.PublishedAfter, err = queryTime(r, "published_after"); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "published_after must be RFC 3339"})
		return
	}
	if filter.PublishedBefore, err = queryTime(r, "published_before"); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "published_before must be RFC 3339"})
		return
	}

	videos, total, err := h.Videos.List(ctx, filter, page, perPage)
	if err != nil {
		logger.Error("list videos", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to list videos"})
		return
	}

	if videos == nil {
		videos = []models.Video{}
	}

	respondJSON(ctx, w, http.StatusOK, videoListResponse{
		Videos:     videos,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// Latest handles GET /api/v1/videos/latest.
func (h VideoHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	limit := queryInt(r, "limit", defaultLatest)
	if limit < 1 || limit > maxLatest {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 50"})
		return
	}

	videos, err := h.Videos.Latest(ctx, limit)
	if err != nil {
		logging.FromContext(ctx).Error("latest videos", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch latest videos"})
		return
	}

	if videos == nil {
		videos = []models.Video{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"videos": videos,
		"count":  len(videos),
	})
}

// Stats handles GET /api/v1/videos/stats.
func (h VideoHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	total, err := h.Videos.Count(ctx)
	if err != nil {
		logger.Error("count videos", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
		return
	}

	latest, err := h.Videos.Latest(ctx, 1)
	if err != nil {
		logger.Error("latest video", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
		return
	}

	payload := map[string]any{"total_videos": total}
	if len(latest) > 0 {
		payload["latest_video"] = latest[0]
	} else {
		payload["latest_video"] = nil
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}

// Get handles GET /api/v1/videos/{videoID}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	videoID := strings.TrimPrefix(r.URL.Path, "/api/v1/videos/")
	if videoID == "" || strings.Contains(videoID, "/") {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
		return
	}

	video, err := h.Videos.FindByVideoID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logging.FromContext(ctx).Error("find video", "videoId", videoID, "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch video"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, video)
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return i
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
