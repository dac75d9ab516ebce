package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tubefeed/backend/internal/db"
	"github.com/tubefeed/backend/internal/models"
)

const videoColumns = `video_id, title, description, published_at, channel_id, channel_title,
        thumbnails, duration, view_count, like_count, comment_count, tags, category_id, language,
        created_at, updated_at`

// PostgresVideoRepository provides PostgreSQL-backed persistence for fetched videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// UpsertMany merges fetched videos into storage keyed by video_id. Records seen
// for the first time are inserted; known records have all mutable fields
// replaced. Each record write is all-or-nothing but the batch is not atomic.
func (r *PostgresVideoRepository) UpsertMany(ctx context.Context, videos []models.Video) (int, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var inserted, updated int
	now := time.Now().UTC()

	for _, video := range videos {
		wasInserted, err := upsertVideo(ctx, conn, video, now)
		if err != nil {
			return inserted, updated, fmt.Errorf("upsert video %s: %w", video.VideoID, err)
		}
		if wasInserted {
			inserted++
		} else {
			updated++
		}
	}

	return inserted, updated, nil
}

func upsertVideo(ctx context.Context, conn *pgxpool.Conn, video models.Video, now time.Time) (bool, error) {
	thumbnails, err := json.Marshal(video.Thumbnails)
	if err != nil {
		return false, fmt.Errorf("encode thumbnails: %w", err)
	}

	tags := video.Tags
	if tags == nil {
		tags = []string{}
	}

	tag, err := conn.Exec(ctx, `
        INSERT INTO videos (video_id, title, description, published_at, channel_id, channel_title,
                thumbnails, duration, view_count, like_count, comment_count, tags, category_id, language,
                created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
        ON CONFLICT (video_id) DO NOTHING
    `, video.VideoID, video.Title, video.Description, video.PublishedAt, video.ChannelID, video.ChannelTitle,
		thumbnails, video.Duration, video.ViewCount, video.LikeCount, video.CommentCount, tags,
		video.CategoryID, video.Language, now)
	if err != nil {
		return false, fmt.Errorf("insert video: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	_, err = conn.Exec(ctx, `
        UPDATE videos
        SET title = $2, description = $3, published_at = $4, channel_id = $5, channel_title = $6,
            thumbnails = $7, duration = $8, view_count = $9, like_count = $10, comment_count = $11,
            tags = $12, category_id = $13, language = $14, updated_at = $15
        WHERE video_id = $1
    `, video.VideoID, video.Title, video.Description, video.PublishedAt, video.ChannelID, video.ChannelTitle,
		thumbnails, video.Duration, video.ViewCount, video.LikeCount, video.CommentCount, tags,
		video.CategoryID, video.Language, now)
	if err != nil {
		return false, fmt.Errorf("update video: %w", err)
	}

	return false, nil
}

// FindByVideoID fetches a video by its YouTube video ID.
func (r *PostgresVideoRepository) FindByVideoID(ctx context.Context, videoID string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE video_id = $1
    `, videoID)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video by id: %w", err)
	}

	return video, nil
}

// List returns a page of videos matching the filter, newest first, along with
// the total number of matching rows.
func (r *PostgresVideoRepository) List(ctx context.Context, filter VideoFilter, page, perPage int) ([]models.Video, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	where, args := buildVideoFilter(filter)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM videos`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := conn.Query(ctx, fmt.Sprintf(`
        SELECT `+videoColumns+`
        FROM videos`+where+`
        ORDER BY published_at DESC
        LIMIT $%d OFFSET $%d
    `, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos, err := collectVideos(rows)
	if err != nil {
		return nil, 0, err
	}

	return videos, total, nil
}

// Latest returns the most recently published videos.
func (r *PostgresVideoRepository) Latest(ctx context.Context, limit int) ([]models.Video, error) {
	if limit < 1 {
		limit = 10
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        ORDER BY published_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

// Count returns the total number of stored videos.
func (r *PostgresVideoRepository) Count(ctx context.Context) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM videos`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}

	return total, nil
}

func buildVideoFilter(filter VideoFilter) (string, []any) {
	var conditions []string
	var args []any

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR channel_title ILIKE $%d)", n, n, n))
	}
	if filter.ChannelID != "" {
		args = append(args, filter.ChannelID)
		conditions = append(conditions, fmt.Sprintf("channel_id = $%d", len(args)))
	}
	if filter.PublishedAfter != nil {
		args = append(args, *filter.PublishedAfter)
		conditions = append(conditions, fmt.Sprintf("published_at >= $%d", len(args)))
	}
	if filter.PublishedBefore != nil {
		args = append(args, *filter.PublishedBefore)
		conditions = append(conditions, fmt.Sprintf("published_at <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func collectVideos(rows pgx.Rows) ([]models.Video, error) {
	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var (
		video      models.Video
		thumbnails []byte
	)

	if err := row.Scan(&video.VideoID, &video.Title, &video.Description, &video.PublishedAt,
		&video.ChannelID, &video.ChannelTitle, &thumbnails, &video.Duration,
		&video.ViewCount, &video.LikeCount, &video.CommentCount, &video.Tags,
		&video.CategoryID, &video.Language, &video.CreatedAt, &video.UpdatedAt); err != nil {
		return models.Video{}, err
	}

	if len(thumbnails) > 0 {
		if err := json.Unmarshal(thumbnails, &video.Thumbnails); err != nil {
			return models.Video{}, fmt.Errorf("decode thumbnails: %w", err)
		}
	}

	video.PublishedAt = video.PublishedAt.UTC()
	video.CreatedAt = video.CreatedAt.UTC()
	video.UpdatedAt = video.UpdatedAt.UTC()

	return video, nil
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
