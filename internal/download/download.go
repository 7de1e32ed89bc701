// Package download fetches one format of a video with yt-dlp into the
// output directory, optionally trimmed to a time range.
// Arguments are passed as explicit slices and output names are sanitized
// so they cannot escape the directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clipdeck/internal/httputil"
	"clipdeck/internal/media"
	"clipdeck/internal/metrics"
	"clipdeck/internal/toolexec"
)

var (
	// ErrDownloadFailed is returned when yt-dlp exits non-zero.
	ErrDownloadFailed = errors.New("download failed")

	// ErrNoOutput is returned when yt-dlp succeeded but no file can be found.
	ErrNoOutput = errors.New("download finished but no output file was found")
)

const defaultBase = "video"

// PublicPrefix is the URL prefix downloaded files are served under.
const PublicPrefix = "/downloads/"

// Recorder receives every completed download. Failures are logged only.
type Recorder interface {
	Record(ctx context.Context, req media.DownloadRequest, res *media.DownloadResult) error
}

// Uploader copies a completed download elsewhere. Failures are logged only.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// Orchestrator runs downloads into a single output directory.
type Orchestrator struct {
	dir     string
	runner  toolexec.Runner
	ytdlp   toolexec.Tool
	ffmpeg  toolexec.Tool
	logger  zerolog.Logger
	metrics *metrics.Metrics

	recorders []Recorder
	uploaders []Uploader
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder adds a journal that is told about every completed download.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorders = append(o.recorders, r) }
}

// WithUploader adds a mirror that receives every completed file.
func WithUploader(u Uploader) Option {
	return func(o *Orchestrator) { o.uploaders = append(o.uploaders, u) }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator writing into dir.
func New(dir string, runner toolexec.Runner, ytdlp, ffmpeg toolexec.Tool, logger zerolog.Logger, opts ...Option) *Orchestrator {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	o := &Orchestrator{
		dir:    dir,
		runner: runner,
		ytdlp:  ytdlp,
		ffmpeg: ffmpeg,
		logger: logger.With().Str("component", "download").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dir returns the output directory.
func (o *Orchestrator) Dir() string { return o.dir }

// Validate checks a request without starting any tool.
func Validate(req media.DownloadRequest) error {
	if req.URL == "" || req.FormatID == "" {
		return media.Invalid("URL and format_id are required")
	}
	if err := httputil.ValidateURL(req.URL); err != nil {
		return media.Invalid("invalid URL: %v", err)
	}
	if err := httputil.ValidateFormatID(req.FormatID); err != nil {
		return media.Invalid("invalid format_id: %v", err)
	}
	if start, end, ok := req.Segment(); ok {
		if start <= 0 {
			return media.Invalid("Start time must be greater than 0")
		}
		if end <= start {
			return media.Invalid("End time must be greater than start time")
		}
	}
	return nil
}

// Download fetches req.FormatID of req.URL and returns the file it produced.
func (o *Orchestrator) Download(ctx context.Context, req media.DownloadRequest) (*media.DownloadResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	start, end, segmented := req.Segment()
	mode := "full"
	if segmented {
		mode = "segment"
		if _, err := o.runner.Probe(ctx, o.ffmpeg); err != nil {
			o.metrics.ObserveDownload(mode, "unavailable")
			return nil, err
		}
	}

	if err := os.MkdirAll(o.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	id := uuid.NewString()
	base := baseName(req.Title)
	template := OutputTemplate(base, req.FormatID, start, end, segmented)
	args := BuildArgs(req, filepath.Join(o.dir, template), o.ffmpegLocation())

	logger := o.logger.With().Str("download_id", id).Str("url", req.URL).Str("format_id", req.FormatID).Logger()
	logger.Info().Str("template", template).Bool("segment", segmented).Msg("starting download")

	res, err := o.runner.Run(ctx, o.ytdlp, args...)
	if err != nil {
		o.metrics.ObserveDownload(mode, "failed")
		var exitErr *toolexec.ExitError
		if errors.As(err, &exitErr) {
			logger.Error().Int("exit_code", exitErr.Code).Str("stderr", exitErr.Stderr).Msg("download failed")
			return nil, fmt.Errorf("%w: %s", ErrDownloadFailed, strings.TrimSpace(exitErr.Stderr))
		}
		logger.Error().Err(err).Msg("download failed")
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	path, err := o.resolveOutput(res.Stdout, base)
	if err != nil {
		o.metrics.ObserveDownload(mode, "no_output")
		logger.Error().Err(err).Msg("download produced no file")
		return nil, err
	}

	name := filepath.Base(path)
	result := &media.DownloadResult{
		ID:           id,
		Filename:     name,
		Path:         path,
		DownloadPath: PublicPrefix + url.PathEscape(name),
		Segmented:    segmented,
	}

	o.metrics.ObserveDownload(mode, "ok")
	logger.Info().Str("file", name).Dur("duration", res.Duration).Msg("download completed")

	o.afterDownload(ctx, logger, req, result)
	return result, nil
}

func (o *Orchestrator) afterDownload(ctx context.Context, logger zerolog.Logger, req media.DownloadRequest, res *media.DownloadResult) {
	for _, r := range o.recorders {
		if err := r.Record(ctx, req, res); err != nil {
			logger.Warn().Err(err).Msg("recording download failed")
		}
	}
	for _, u := range o.uploaders {
		if err := u.Upload(ctx, res.Path); err != nil {
			logger.Warn().Err(err).Str("file", res.Filename).Msg("mirroring download failed")
		}
	}
}

// ffmpegLocation returns the configured ffmpeg path when it is not the default lookup.
func (o *Orchestrator) ffmpegLocation() string {
	if o.ffmpeg.Binary == "" || o.ffmpeg.Binary == "ffmpeg" {
		return ""
	}
	return o.ffmpeg.Binary
}

// resolveOutput prefers the final path yt-dlp printed. If none was printed
// (older yt-dlp, or the path is outside the directory) it falls back to the
// newest file whose name contains base. That fallback can pick another
// request's file when two downloads share a base name.
func (o *Orchestrator) resolveOutput(stdout, base string) (string, error) {
	if p := reportedPath(stdout); p != "" && httputil.Within(o.dir, p) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}

	match, err := LatestMatch(o.dir, base)
	if err != nil {
		return "", err
	}
	return filepath.Join(o.dir, match), nil
}

// reportedPath returns the last absolute path printed on stdout.
func reportedPath(stdout string) string {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if filepath.IsAbs(line) {
			return line
		}
	}
	return ""
}

// LatestMatch returns the most recently modified file in dir whose name contains substr.
func LatestMatch(dir, substr string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading output directory: %w", err)
	}

	type candidate struct {
		name  string
		mtime int64
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), substr) || isPartial(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{e.Name(), info.ModTime().UnixNano()})
	}

	if len(candidates) == 0 {
		return "", ErrNoOutput
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].mtime > candidates[j].mtime
	})
	return candidates[0].name, nil
}

// isPartial reports yt-dlp's in-progress artifacts.
func isPartial(name string) bool {
	return strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") || strings.Contains(name, ".part-Frag")
}

// baseName returns the sanitized title or "video".
func baseName(title string) string {
	if b := httputil.SanitizeTemplateBase(title); b != "" {
		return b
	}
	return defaultBase
}

// OutputTemplate builds the yt-dlp output template:
// <base>[_<start>-<end>]_<format_id>.%(ext)s
func OutputTemplate(base, formatID string, start, end int, segmented bool) string {
	if segmented {
		base += "_" + SegmentLabel(start) + "-" + SegmentLabel(end)
	}
	return base + "_" + httputil.SanitizeTemplateBase(formatID) + ".%(ext)s"
}

// SegmentLabel formats seconds for filenames: 1h02m05s, or 1m30s under an hour.
func SegmentLabel(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// BuildArgs builds the yt-dlp argument list for req writing to outputPath.
// ffmpegLocation is passed through for segment downloads when non-empty.
func BuildArgs(req media.DownloadRequest, outputPath, ffmpegLocation string) []string {
	args := []string{
		"-f", req.FormatID,
		"-o", outputPath,
		"--no-warnings",
	}

	if start, end, ok := req.Segment(); ok {
		args = append(args, "--download-sections", "*"+strconv.Itoa(start)+"-"+strconv.Itoa(end))
		if ffmpegLocation != "" {
			args = append(args, "--ffmpeg-location", ffmpegLocation)
		}
	}

	// Report the final path so the produced file need not be guessed.
	args = append(args, "--print", "after_move:filepath", "--no-simulate")

	return append(args, req.URL)
}
