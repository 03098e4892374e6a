// Package startup loads and validates service configuration and logs the
// boot sequence.
package startup

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mallucodewizard/videoverse/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Upload policy defaults.
const (
	DefaultMaxUploadBytes = 25 << 20 // 25 MB
	DefaultMinDuration    = 5 * time.Second
	DefaultMaxDuration    = 25 * time.Second
	DefaultMergeHeight    = 720
)

// Config holds all application configuration.
type Config struct {
	DataDir     string
	DatabaseDir string
	Port        string
	BaseURL     string

	MaxUploadBytes   int64
	MinDuration      time.Duration
	MaxDuration      time.Duration
	MergeHeight      int
	TranscodeTimeout time.Duration

	SigningKey []byte

	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths
	DatabasePath string
	UploadDir    string
	TrimmedDir   string
	MergedDir    string
	ThumbnailDir string
	TmpDir       string

	// Feature flags based on tool/directory availability
	TransformsEnabled bool
	ThumbnailsEnabled bool
}

// LoadConfig loads and validates configuration from the environment. A .env
// file in the working directory is applied first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logging.Info("Loaded configuration overrides from .env")
	}

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:"+port), "/")
	maxUploadBytes := getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	minDuration := getEnvDuration("MIN_DURATION", DefaultMinDuration)
	maxDuration := getEnvDuration("MAX_DURATION", DefaultMaxDuration)
	mergeHeight := int(getEnvInt64("MERGE_TARGET_HEIGHT", DefaultMergeHeight))
	transcodeTimeout := getEnvDuration("TRANSCODE_TIMEOUT", 2*time.Minute)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)

	logging.Info("  DATA_DIR:            %s", dataDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  BASE_URL:            %s", baseURL)
	logging.Info("  MAX_UPLOAD_BYTES:    %d", maxUploadBytes)
	logging.Info("  MIN_DURATION:        %s", minDuration)
	logging.Info("  MAX_DURATION:        %s", maxDuration)
	logging.Info("  MERGE_TARGET_HEIGHT: %d", mergeHeight)
	logging.Info("  TRANSCODE_TIMEOUT:   %s", transcodeTimeout)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if minDuration <= 0 || maxDuration <= minDuration {
		return nil, fmt.Errorf("invalid duration policy: min=%s max=%s", minDuration, maxDuration)
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", maxUploadBytes)
	}

	signingKey, err := loadSigningKey()
	if err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err = filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Data directory (absolute):     %s", dataDir)
	logging.Info("  Database directory (absolute): %s", databaseDir)

	config := &Config{
		DataDir:          dataDir,
		DatabaseDir:      databaseDir,
		Port:             port,
		BaseURL:          baseURL,
		MaxUploadBytes:   maxUploadBytes,
		MinDuration:      minDuration,
		MaxDuration:      maxDuration,
		MergeHeight:      mergeHeight,
		TranscodeTimeout: transcodeTimeout,
		SigningKey:       signingKey,
		LogHealthChecks:  logHealthChecks,
		MetricsEnabled:   metricsEnabled,
		DatabasePath:     filepath.Join(databaseDir, "videoverse.db"),
		UploadDir:        filepath.Join(dataDir, "uploads"),
		TrimmedDir:       filepath.Join(dataDir, "trimmed"),
		MergedDir:        filepath.Join(dataDir, "merged"),
		ThumbnailDir:     filepath.Join(dataDir, "thumbnails"),
		TmpDir:           filepath.Join(dataDir, "tmp"),
	}

	// Database and upload directories are required.
	for _, d := range []struct{ path, name string }{
		{databaseDir, "database"},
		{config.UploadDir, "uploads"},
		{config.TmpDir, "tmp"},
	} {
		if err := ensureDirectory(d.path, d.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(d.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
	}
	logging.Info("  [OK] Database, upload and tmp directories are writable")

	transformDirsOK := setupOptionalDir(config.TrimmedDir, "trimmed") &&
		setupOptionalDir(config.MergedDir, "merged")
	config.ThumbnailsEnabled = setupOptionalDir(config.ThumbnailDir, "thumbnails")

	// Transforms additionally need ffmpeg/ffprobe on the PATH. Uploads
	// always need ffprobe, so that one is a hard requirement.
	if err := checkTool("ffprobe"); err != nil {
		return nil, fmt.Errorf("ffprobe is required for upload validation: %w", err)
	}
	if err := checkTool("ffmpeg"); err != nil {
		logging.Warn("  ffmpeg not available: %v", err)
		logging.Warn("  Trim/Merge will be disabled")
		config.TransformsEnabled = false
		config.ThumbnailsEnabled = false
	} else {
		config.TransformsEnabled = transformDirsOK
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Uploads:     ENABLED (required)")
	logging.Info("    Transforms:  %s", enabledString(config.TransformsEnabled))
	logging.Info("    Thumbnails:  %s", enabledString(config.ThumbnailsEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// loadSigningKey reads SIGNING_KEY (hex) from the environment. Without one
// an ephemeral key is generated, which invalidates share links on restart.
func loadSigningKey() ([]byte, error) {
	if v := os.Getenv("SIGNING_KEY"); v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("SIGNING_KEY must be hex-encoded: %w", err)
		}
		if len(key) < 32 {
			return nil, fmt.Errorf("SIGNING_KEY must be at least 32 bytes, got %d", len(key))
		}
		logging.Info("  SIGNING_KEY:         set (%d bytes)", len(key))
		return key, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral signing key: %w", err)
	}
	logging.Warn("  SIGNING_KEY not set; using an ephemeral key. Share links will not survive a restart. Generate one with cmd/genkey.")
	return key, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization timing.
func LogDatabaseInit(duration time.Duration) {
	logging.Info("Database ready in %s", duration.Round(time.Millisecond))
}

// LogServerStarted logs the final startup summary.
func LogServerStarted(port string, elapsed time.Duration) {
	logging.Info("------------------------------------------------------------")
	logging.Info("  videoverse listening on :%s (startup took %s)", port, elapsed.Round(time.Millisecond))
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs the start of graceful shutdown.
func LogShutdownInitiated(signal string) {
	logging.Info("Received %s, shutting down gracefully", signal)
}

// LogShutdownStep logs an individual shutdown step.
func LogShutdownStep(step string) {
	logging.Info("  %s...", step)
}

// LogShutdownComplete logs the end of graceful shutdown.
func LogShutdownComplete() {
	logging.Info("Shutdown complete")
}

// LogFatal logs a fatal error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
        _    __ _     __
       | |  / /(_)___/ /___  ____  _   _____  _____ ________
       | | / // // _  // _ \/ __ \| | / / _ \/ ___// ___/ _ \
       | |/ // // /_/ //  __/ /_/ /| |/ /  __/ /   (__  )  __/
       |___//_/ \__,_/ \___/\____/ |___/\___/_/   /____/\___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))
	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Write access itself was confirmed.
	}
	return nil
}

func checkTool(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	if lines := strings.Split(string(output), "\n"); len(lines) > 0 {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(lines[0]))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
