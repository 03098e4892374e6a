package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mallucodewizard/videoverse/internal/apperr"
	"github.com/mallucodewizard/videoverse/internal/metrics"
)

// CreateVideo inserts a new video record. This is the only way a video
// comes into existence; callers must have validated the candidate first.
func (d *Database) CreateVideo(ctx context.Context, v *Video) error {
	if v.ID == "" || v.Title == "" || v.Path == "" {
		return fmt.Errorf("incomplete video record: id=%q title=%q path=%q", v.ID, v.Title, v.Path)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO videos (id, title, path, duration, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID, v.Title, v.Path, v.Duration, v.Size, v.CreatedAt.Unix())
	metrics.ObserveDBQuery("create_video", time.Since(start).Seconds(), err)

	if err != nil {
		return fmt.Errorf("failed to insert video %s: %w", v.ID, err)
	}
	return nil
}

// GetVideo returns the video with the given id, or a NotFound-kind error.
func (d *Database) GetVideo(ctx context.Context, id string) (*Video, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	row := d.db.QueryRowContext(ctx, `
		SELECT id, title, path, duration, size, created_at
		FROM videos WHERE id = ?
	`, id)

	v, err := scanVideo(row)
	metrics.ObserveDBQuery("get_video", time.Since(start).Seconds(), err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.KindNotFound, "video %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load video %s: %w", id, err)
	}
	return v, nil
}

// ListVideos returns up to limit videos, newest first. limit <= 0 means a
// default page of 100.
func (d *Database) ListVideos(ctx context.Context, limit int) ([]*Video, error) {
	if limit <= 0 {
		limit = 100
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, title, path, duration, size, created_at
		FROM videos ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	metrics.ObserveDBQuery("list_videos", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := make([]*Video, 0, limit)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// Stats returns aggregate store statistics.
func (d *Database) Stats(ctx context.Context) (StoreStats, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	var stats StoreStats
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(SUM(duration), 0)
		FROM videos
	`).Scan(&stats.TotalVideos, &stats.TotalBytes, &stats.TotalDuration)
	metrics.ObserveDBQuery("stats", time.Since(start).Seconds(), err)

	if err != nil {
		return StoreStats{}, fmt.Errorf("failed to compute store stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var createdAt int64
	if err := row.Scan(&v.ID, &v.Title, &v.Path, &v.Duration, &v.Size, &createdAt); err != nil {
		return nil, err
	}
	v.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &v, nil
}
