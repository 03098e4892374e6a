package database

import "time"

// Video is the canonical record for an accepted video. Fields are set once
// at creation and never mutated.
type Video struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Path      string    `json:"-"`
	Duration  float64   `json:"duration"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// StoreStats summarizes the contents of the video store.
type StoreStats struct {
	TotalVideos   int     `json:"totalVideos"`
	TotalBytes    int64   `json:"totalBytes"`
	TotalDuration float64 `json:"totalDurationSeconds"`
}
