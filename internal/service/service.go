// Package service orchestrates upload validation, transforms and share
// links over the video store.
package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mallucodewizard/videoverse/internal/apperr"
	"github.com/mallucodewizard/videoverse/internal/database"
	"github.com/mallucodewizard/videoverse/internal/logging"
	"github.com/mallucodewizard/videoverse/internal/metrics"
	"github.com/mallucodewizard/videoverse/internal/transcoder"
)

// Store is the record store the service persists videos in.
type Store interface {
	CreateVideo(ctx context.Context, v *database.Video) error
	GetVideo(ctx context.Context, id string) (*database.Video, error)
	ListVideos(ctx context.Context, limit int) ([]*database.Video, error)
}

// Engine is the external media engine behind probing and transforms.
type Engine interface {
	Probe(ctx context.Context, path string) (*transcoder.MediaInfo, error)
	Trim(ctx context.Context, src transcoder.Source, start, end float64) (string, error)
	Merge(ctx context.Context, sources []transcoder.Source) (string, error)
	Thumbnail(ctx context.Context, srcPath, videoID string) (string, error)
	IsEnabled() bool
}

// Validator enforces the upload policy on a candidate file.
type Validator interface {
	Validate(ctx context.Context, path string, size int64) (*transcoder.MediaInfo, error)
}

// Links issues and verifies share tokens.
type Links interface {
	Issue(videoID string, ttl time.Duration) (string, error)
	Verify(tokenString string) (string, error)
}

// Options configures a new Service.
type Options struct {
	Store Store
	Gate  Validator
	Eng   Engine
	Links Links

	UploadDir         string
	TmpDir            string
	BaseURL           string
	MaxUploadBytes    int64
	ThumbnailsEnabled bool
}

// Service composes the store, validation gate, transform engine and link
// service into the caller-facing operations.
type Service struct {
	store Store
	gate  Validator
	eng   Engine
	links Links

	uploadDir      string
	tmpDir         string
	baseURL        string
	maxUploadBytes int64
	thumbsEnabled  bool
}

// New creates a Service.
func New(opts Options) *Service {
	return &Service{
		store:          opts.Store,
		gate:           opts.Gate,
		eng:            opts.Eng,
		links:          opts.Links,
		uploadDir:      opts.UploadDir,
		tmpDir:         opts.TmpDir,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		maxUploadBytes: opts.MaxUploadBytes,
		thumbsEnabled:  opts.ThumbnailsEnabled,
	}
}

// Upload validates the candidate and, on acceptance, persists it as a new
// video. The temporary spool file is removed on every exit path except the
// one promoting it into the upload directory.
func (s *Service) Upload(ctx context.Context, file io.Reader, filename, title string) (*database.Video, error) {
	if title == "" {
		return nil, apperr.E(apperr.KindInvalidInput, "title is required")
	}
	if file == nil {
		return nil, apperr.E(apperr.KindInvalidInput, "no file provided")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}

	tmp, err := os.CreateTemp(s.tmpDir, "upload-*"+ext)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to spool upload")
	}
	tmpPath := tmp.Name()
	promoted := false
	defer func() {
		if !promoted {
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				logging.Warn("failed to remove upload spool file %s: %v", tmpPath, err)
			}
		}
	}()

	// Cap the copy one byte past the limit so an oversized body is
	// detected without spooling it in full.
	written, copyErr := io.Copy(tmp, io.LimitReader(file, s.maxUploadBytes+1))
	closeErr := tmp.Close()
	if copyErr != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.KindInternal, copyErr, "failed to read upload")
	}
	if closeErr != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.KindInternal, closeErr, "failed to spool upload")
	}
	if written == 0 {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, apperr.E(apperr.KindInvalidInput, "no file provided")
	}

	info, err := s.gate.Validate(ctx, tmpPath, written)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	id := uuid.NewString()
	destPath := filepath.Join(s.uploadDir, id+ext)
	if err := os.Rename(tmpPath, destPath); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to store upload")
	}
	promoted = true

	video := &database.Video{
		ID:        id,
		Title:     title,
		Path:      destPath,
		Duration:  info.Duration,
		Size:      info.Size,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateVideo(ctx, video); err != nil {
		if removeErr := os.Remove(destPath); removeErr != nil {
			logging.Warn("failed to remove orphaned upload %s: %v", destPath, removeErr)
		}
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to persist video record")
	}

	metrics.UploadsTotal.WithLabelValues("accepted").Inc()
	metrics.UploadBytes.Observe(float64(written))
	logging.Info("Accepted upload %s (%q, %.2fs, %d bytes)", id, title, info.Duration, info.Size)

	s.spawnThumbnail(destPath, id)
	return video, nil
}

// Trim produces a new video holding [start, end) seconds of the source.
// Nil offsets default to the start and end of the source. The output is
// registered as a first-class video.
func (s *Service) Trim(ctx context.Context, id string, start, end *float64) (*database.Video, error) {
	src, err := s.store.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	startSec := 0.0
	if start != nil {
		startSec = *start
	}
	endSec := src.Duration
	if end != nil {
		endSec = *end
	}

	outPath, err := s.eng.Trim(ctx, transcoder.Source{
		ID:       src.ID,
		Path:     src.Path,
		Duration: src.Duration,
	}, startSec, endSec)
	if err != nil {
		return nil, err
	}

	return s.registerOutput(ctx, outPath, src.Title+" (trimmed)")
}

// Merge concatenates the videos with the given ids, in order, into a new
// video. The first unknown id short-circuits the operation.
func (s *Service) Merge(ctx context.Context, ids []string) (*database.Video, error) {
	if len(ids) == 0 {
		return nil, apperr.E(apperr.KindInvalidInput, "at least one video id is required")
	}

	sources := make([]transcoder.Source, 0, len(ids))
	for _, id := range ids {
		v, err := s.store.GetVideo(ctx, id)
		if err != nil {
			return nil, err
		}
		sources = append(sources, transcoder.Source{
			ID:       v.ID,
			Path:     v.Path,
			Duration: v.Duration,
		})
	}

	outPath, err := s.eng.Merge(ctx, sources)
	if err != nil {
		return nil, err
	}

	return s.registerOutput(ctx, outPath, "Merged video")
}

// registerOutput probes a transform output and persists it as a video. A
// failure leaves no unreferenced file behind.
func (s *Service) registerOutput(ctx context.Context, outPath, title string) (*database.Video, error) {
	cleanup := func() {
		if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove transform output %s: %v", outPath, err)
		}
	}

	info, err := s.eng.Probe(ctx, outPath)
	if err != nil {
		cleanup()
		return nil, apperr.Wrap(apperr.KindTranscode, err, "transform produced an unreadable output")
	}
	if info.Size == 0 {
		if fi, statErr := os.Stat(outPath); statErr == nil {
			info.Size = fi.Size()
		}
	}

	video := &database.Video{
		ID:        uuid.NewString(),
		Title:     title,
		Path:      outPath,
		Duration:  info.Duration,
		Size:      info.Size,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateVideo(ctx, video); err != nil {
		cleanup()
		return nil, apperr.Wrap(apperr.KindInternal, err, "failed to persist transform output")
	}

	logging.Info("Registered transform output %s (%q, %.2fs)", video.ID, title, info.Duration)
	s.spawnThumbnail(outPath, video.ID)
	return video, nil
}

// ShareResult is the outcome of issuing a share link.
type ShareResult struct {
	VideoID   string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Share issues a time-bound link granting unauthenticated playback access
// to the given video.
func (s *Service) Share(ctx context.Context, id string, ttl time.Duration) (*ShareResult, error) {
	v, err := s.store.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	signed, err := s.links.Issue(v.ID, ttl)
	if err != nil {
		return nil, err
	}

	return &ShareResult{
		VideoID:   v.ID,
		URL:       fmt.Sprintf("%s/share/%s", s.baseURL, signed),
		ExpiresAt: time.Now().Add(ttl).UTC(),
	}, nil
}

// AccessResult is the outcome of redeeming a share link.
type AccessResult struct {
	VideoID     string  `json:"id"`
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"`
	PlaybackURL string  `json:"playbackUrl"`
}

// Access verifies a share token and resolves the playback URL it grants.
// Tokens are stateless; redeeming one does not consume it.
func (s *Service) Access(ctx context.Context, tokenString string) (*AccessResult, error) {
	id, err := s.links.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	v, err := s.store.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}

	return &AccessResult{
		VideoID:     v.ID,
		Title:       v.Title,
		Duration:    v.Duration,
		PlaybackURL: fmt.Sprintf("%s/api/videos/%s/file", s.baseURL, v.ID),
	}, nil
}

// spawnThumbnail kicks off best-effort poster frame generation. Thumbnail
// failures never fail the operation that created the video.
func (s *Service) spawnThumbnail(srcPath, videoID string) {
	if !s.thumbsEnabled || s.eng == nil || !s.eng.IsEnabled() {
		return
	}
	go func() {
		if _, err := s.eng.Thumbnail(context.Background(), srcPath, videoID); err != nil {
			logging.Debug("thumbnail generation failed for %s: %v", videoID, err)
		}
	}()
}
