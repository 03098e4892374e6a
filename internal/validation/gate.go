// Package validation enforces the upload policy: maximum byte size and a
// duration window, checked before any record is created.
package validation

import (
	"context"
	"time"

	"github.com/mallucodewizard/videoverse/internal/apperr"
	"github.com/mallucodewizard/videoverse/internal/logging"
	"github.com/mallucodewizard/videoverse/internal/metrics"
	"github.com/mallucodewizard/videoverse/internal/transcoder"
)

// Prober inspects a media file for duration and stream information.
type Prober interface {
	Probe(ctx context.Context, path string) (*transcoder.MediaInfo, error)
}

// Gate validates upload candidates against the configured policy.
type Gate struct {
	maxBytes    int64
	minDuration time.Duration
	maxDuration time.Duration
	prober      Prober
}

// New creates a Gate with the given policy bounds.
func New(prober Prober, maxBytes int64, minDuration, maxDuration time.Duration) *Gate {
	return &Gate{
		maxBytes:    maxBytes,
		minDuration: minDuration,
		maxDuration: maxDuration,
		prober:      prober,
	}
}

// MaxBytes returns the configured size limit.
func (g *Gate) MaxBytes() int64 {
	return g.maxBytes
}

// Validate checks the candidate file at path against the upload policy and
// returns its probed media info on acceptance. The size check runs before
// the probe so oversized input never reaches the transcoding tool. The
// caller owns the candidate file and must remove it on every exit path.
func (g *Gate) Validate(ctx context.Context, path string, size int64) (*transcoder.MediaInfo, error) {
	if size > g.maxBytes {
		metrics.ValidationRejectionsTotal.WithLabelValues("size").Inc()
		return nil, apperr.E(apperr.KindPolicyViolation,
			"file size %d exceeds the maximum of %d bytes", size, g.maxBytes)
	}

	info, err := g.prober.Probe(ctx, path)
	if err != nil {
		// A file the probe cannot read is a rejected upload, not a fault.
		logging.Debug("probe rejected upload candidate %s: %v", path, err)
		metrics.ValidationRejectionsTotal.WithLabelValues("unreadable").Inc()
		return nil, apperr.Wrap(apperr.KindPolicyViolation, err, "file is not a readable video")
	}

	minSec := g.minDuration.Seconds()
	maxSec := g.maxDuration.Seconds()
	if info.Duration < minSec || info.Duration > maxSec {
		metrics.ValidationRejectionsTotal.WithLabelValues("duration").Inc()
		return nil, apperr.E(apperr.KindPolicyViolation,
			"video duration %.2fs is outside the allowed range of %.0f-%.0f seconds",
			info.Duration, minSec, maxSec)
	}

	if info.Size == 0 {
		info.Size = size
	}
	return info, nil
}
