package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/mallucodewizard/videoverse/internal/logging"
	"github.com/mallucodewizard/videoverse/internal/metrics"
)

const (
	thumbnailSize   = 320
	thumbnailOffset = "1" // seconds into the clip
)

// Thumbnail extracts a poster frame from src and writes a bounded JPEG
// thumbnail named after the video id. Failures here are advisory; callers
// treat a missing thumbnail as non-fatal.
func (e *Engine) Thumbnail(ctx context.Context, srcPath, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	frame, err := e.grabFrame(ctx, srcPath, thumbnailOffset)
	if err != nil {
		// Very short clips may not reach the offset; retry at the start.
		logging.Debug("frame grab at %ss failed for %s: %v, retrying at 0", thumbnailOffset, srcPath, err)
		frame, err = e.grabFrame(ctx, srcPath, "0")
	}
	if err != nil {
		metrics.TransformsTotal.WithLabelValues("thumbnail", "error").Inc()
		return "", fmt.Errorf("failed to extract poster frame: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		metrics.TransformsTotal.WithLabelValues("thumbnail", "error").Inc()
		return "", fmt.Errorf("failed to decode poster frame: %w", err)
	}

	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)
	outPath := filepath.Join(e.thumbnailDir, videoID+".jpg")
	if err := imaging.Save(thumb, outPath, imaging.JPEGQuality(85)); err != nil {
		metrics.TransformsTotal.WithLabelValues("thumbnail", "error").Inc()
		return "", fmt.Errorf("failed to save thumbnail: %w", err)
	}

	metrics.TransformsTotal.WithLabelValues("thumbnail", "success").Inc()
	return outPath, nil
}

func (e *Engine) grabFrame(ctx context.Context, srcPath, offset string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-ss", offset,
		"-i", srcPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame grab failed: %w - %s", err, stderr.String())
	}
	logging.Debug("frame grab took %s for %s", time.Since(start).Round(time.Millisecond), srcPath)

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame output for %s", srcPath)
	}
	return stdout.Bytes(), nil
}
