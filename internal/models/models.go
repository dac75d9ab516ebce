package models

import "time"

// Thumbnail is a single thumbnail variant offered by the video provider.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
}

// Video is a normalized video record as stored in the database. The YouTube
// video ID is the stable external key; every other field is replaced whenever
// the video is re-observed by a fetch cycle.
type Video struct {
	VideoID      string               `json:"video_id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	PublishedAt  time.Time            `json:"published_at"`
	ChannelID    string               `json:"channel_id"`
	ChannelTitle string               `json:"channel_title"`
	Thumbnails   map[string]Thumbnail `json:"thumbnails"`
	Duration     string               `json:"duration,omitempty"`
	ViewCount    int64                `json:"view_count"`
	LikeCount    int64                `json:"like_count"`
	CommentCount int64                `json:"comment_count"`
	Tags         []string             `json:"tags"`
	CategoryID   string               `json:"category_id,omitempty"`
	Language     string               `json:"language,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}
