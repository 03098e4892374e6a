// Package transcoder wraps the external ffmpeg/ffprobe tools behind a
// narrow probing and transform interface.
package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/mallucodewizard/videoverse/internal/apperr"
	"github.com/mallucodewizard/videoverse/internal/logging"
	"github.com/mallucodewizard/videoverse/internal/metrics"
)

// MediaInfo contains probed information about a media file.
type MediaInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
	Size     int64   `json:"size"`
}

// Source identifies one input to a transform operation.
type Source struct {
	ID       string
	Path     string
	Duration float64
}

// Engine performs probe, trim and merge operations via ffmpeg.
type Engine struct {
	trimmedDir   string
	mergedDir    string
	thumbnailDir string
	targetHeight int
	timeout      time.Duration
	enabled      bool

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// Options configures a new Engine.
type Options struct {
	TrimmedDir   string
	MergedDir    string
	ThumbnailDir string
	TargetHeight int
	Timeout      time.Duration
	Enabled      bool
}

// New creates a new Engine instance.
func New(opts Options) *Engine {
	if opts.TargetHeight <= 0 {
		opts.TargetHeight = 720
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &Engine{
		trimmedDir:   opts.TrimmedDir,
		mergedDir:    opts.MergedDir,
		thumbnailDir: opts.ThumbnailDir,
		targetHeight: opts.TargetHeight,
		timeout:      opts.Timeout,
		enabled:      opts.Enabled,
		processes:    make(map[string]*exec.Cmd),
	}
}

// IsEnabled returns whether transform operations are available.
func (e *Engine) IsEnabled() bool {
	return e.enabled
}

// ffprobe JSON output shape (the subset we read).
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Probe inspects a media file for duration, dimensions and codec. A file
// ffprobe cannot parse yields an error; callers decide whether that is a
// policy rejection (uploads) or a transcoding fault (transform outputs).
func (e *Engine) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		metrics.ProbesTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ffprobe timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		metrics.ProbesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	metrics.ProbesTotal.WithLabelValues("success").Inc()
	return info, nil
}

// parseProbeOutput extracts the fields we care about from ffprobe's JSON.
func parseProbeOutput(data []byte) (*MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}

	info := &MediaInfo{}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	info.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)
	for _, s := range out.Streams {
		if s.CodecType == "video" {
			info.Codec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}

	if info.Duration <= 0 {
		return nil, fmt.Errorf("no playable duration found")
	}
	return info, nil
}

// Trim extracts [start, end) seconds from src into a new file under the
// trimmed output directory. Bound violations are reported as invalid-input
// errors naming the offending bound; ffmpeg failures as transcode faults.
func (e *Engine) Trim(ctx context.Context, src Source, start, end float64) (string, error) {
	if !e.enabled {
		return "", apperr.E(apperr.KindTranscode, "transform operations are disabled (ffmpeg unavailable)")
	}

	if start < 0 {
		return "", apperr.E(apperr.KindInvalidInput, "start offset must not be negative, got %.3f", start)
	}
	if start >= end {
		return "", apperr.E(apperr.KindInvalidInput, "start offset %.3f must be before end offset %.3f", start, end)
	}
	if end > src.Duration {
		return "", apperr.E(apperr.KindInvalidInput, "end offset %.3f exceeds video duration %.3f", end, src.Duration)
	}

	// Namespaced by source id; the nanosecond suffix keeps concurrent
	// identical requests from writing the same file.
	outPath := filepath.Join(e.trimmedDir, fmt.Sprintf("%s_%d_%d_%d.mp4",
		src.ID, int64(start*1000), int64(end*1000), time.Now().UnixNano()))

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", src.Path,
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-y", outPath,
	}

	if err := e.run(ctx, "trim", outPath, args); err != nil {
		return "", apperr.Wrap(apperr.KindTranscode, err, "trim of video %s failed", src.ID)
	}
	return outPath, nil
}

// Merge concatenates the given sources in order into a single output file.
// Inputs of differing resolution are normalized to the configured target
// height (width scaled proportionally) before concatenation.
func (e *Engine) Merge(ctx context.Context, sources []Source) (string, error) {
	if !e.enabled {
		return "", apperr.E(apperr.KindTranscode, "transform operations are disabled (ffmpeg unavailable)")
	}
	if len(sources) == 0 {
		return "", apperr.E(apperr.KindInvalidInput, "merge requires at least one source video")
	}

	for _, src := range sources {
		if _, err := os.Stat(src.Path); err != nil {
			return "", apperr.Wrap(apperr.KindTranscode, err, "source video %s is unreadable", src.ID)
		}
	}

	// Timestamp-qualified name so concurrent merges never collide.
	outPath := filepath.Join(e.mergedDir, fmt.Sprintf("merge_%d.mp4", time.Now().UnixNano()))

	args := []string{"-hide_banner", "-loglevel", "error"}
	for _, src := range sources {
		args = append(args, "-i", src.Path)
	}

	var filter bytes.Buffer
	for i := range sources {
		fmt.Fprintf(&filter, "[%d:v]scale=-2:%d,setsar=1[v%d];", i, e.targetHeight, i)
	}
	for i := range sources {
		fmt.Fprintf(&filter, "[v%d][%d:a]", i, i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=1[outv][outa]", len(sources))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-y", outPath,
	)

	if err := e.run(ctx, "merge", outPath, args); err != nil {
		return "", apperr.Wrap(apperr.KindTranscode, err, "merge of %d videos failed", len(sources))
	}
	return outPath, nil
}

// run executes ffmpeg with the given args, tracking the process so Cleanup
// can kill it on shutdown. A failed run removes any partial output file so
// no corrupt result survives a fault. The process map lock is never held
// across the ffmpeg call itself.
func (e *Engine) run(ctx context.Context, op, outPath string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.processMu.Lock()
	e.processes[outPath] = cmd
	e.processMu.Unlock()

	defer func() {
		e.processMu.Lock()
		delete(e.processes, outPath)
		e.processMu.Unlock()
	}()

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	metrics.TransformDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	if err != nil {
		metrics.TransformsTotal.WithLabelValues(op, "error").Inc()
		if removeErr := os.Remove(outPath); removeErr != nil && !os.IsNotExist(removeErr) {
			logging.Warn("failed to remove partial %s output %s: %v", op, outPath, removeErr)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg %s timed out after %s: %w", op, elapsed.Round(time.Millisecond), ctx.Err())
		}
		return fmt.Errorf("ffmpeg %s failed: %w - %s", op, err, stderr.String())
	}

	metrics.TransformsTotal.WithLabelValues(op, "success").Inc()
	logging.Debug("ffmpeg %s completed in %s: %s", op, elapsed.Round(time.Millisecond), outPath)
	return nil
}

// Cleanup kills all in-flight ffmpeg processes. Called on shutdown.
func (e *Engine) Cleanup() {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	for path, cmd := range e.processes {
		if cmd.Process != nil {
			logging.Info("Killing transform process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transform process for %s: %v", path, err)
			}
		}
	}
}

// formatSeconds renders a second offset the way ffmpeg expects it.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
