// Package formats lists the stream formats yt-dlp reports for a URL.
package formats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"clipdeck/internal/httputil"
	"clipdeck/internal/media"
	"clipdeck/internal/toolexec"
)

// printTemplate asks yt-dlp for one pipe-delimited line per format.
// Field order: id, ext, resolution, filesize, vcodec, acodec, note.
const printTemplate = "%(format_id)s|%(ext)s|%(resolution)s|%(filesize)s|%(vcodec)s|%(acodec)s|%(format_note)s"

const (
	delimiter    = "|"
	defaultTitle = "Video"
)

// Lister looks up formats and the display title for a URL.
type Lister struct {
	runner toolexec.Runner
	ytdlp  toolexec.Tool
	logger zerolog.Logger
}

// NewLister creates a Lister that invokes ytdlp through runner.
func NewLister(runner toolexec.Runner, ytdlp toolexec.Tool, logger zerolog.Logger) *Lister {
	return &Lister{
		runner: runner,
		ytdlp:  ytdlp,
		logger: logger.With().Str("component", "formats").Logger(),
	}
}

// List returns the title and formats for url.
func (l *Lister) List(ctx context.Context, url string) (*media.VideoInfo, error) {
	if url == "" {
		return nil, media.Invalid("URL is required")
	}
	if err := httputil.ValidateURL(url); err != nil {
		return nil, media.Invalid("invalid URL: %v", err)
	}

	if _, err := l.runner.Probe(ctx, l.ytdlp); err != nil {
		return nil, err
	}

	res, err := l.runner.Run(ctx, l.ytdlp,
		"--list-formats",
		"--no-warnings",
		"--print", printTemplate,
		url,
	)
	if err != nil {
		return nil, fmt.Errorf("listing formats: %w", err)
	}

	formats := ParseFormats(res.Stdout)
	title := l.title(ctx, url)

	l.logger.Info().Str("url", url).Str("title", title).Int("formats", len(formats)).Msg("formats listed")

	return &media.VideoInfo{Title: title, Formats: formats}, nil
}

// title fetches the display title. Failures fall back to the placeholder
// since the format list is already available.
func (l *Lister) title(ctx context.Context, url string) string {
	res, err := l.runner.Run(ctx, l.ytdlp, "--get-title", "--no-warnings", url)
	if err != nil {
		var exitErr *toolexec.ExitError
		if !errors.As(err, &exitErr) {
			l.logger.Warn().Err(err).Str("url", url).Msg("title lookup failed")
			return defaultTitle
		}
	}
	if res == nil {
		return defaultTitle
	}
	if title := strings.TrimSpace(res.Stdout); title != "" {
		return title
	}
	return defaultTitle
}

// ParseFormats parses yt-dlp --print output produced with printTemplate.
// Lines without the delimiter or with an empty format id are skipped.
func ParseFormats(output string) []media.Format {
	formats := []media.Format{}

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.Contains(line, delimiter) {
			continue
		}

		f, ok := parseLine(line)
		if !ok {
			continue
		}
		formats = append(formats, f)
	}

	return formats
}

func parseLine(line string) (media.Format, bool) {
	parts := strings.Split(line, delimiter)
	field := func(i int, fallback string) string {
		if i < len(parts) && parts[i] != "" {
			return parts[i]
		}
		return fallback
	}

	f := media.Format{
		ID:         field(0, ""),
		Ext:        field(1, ""),
		Resolution: field(2, "N/A"),
		Filesize:   field(3, "N/A"),
		VCodec:     field(4, "none"),
		ACodec:     field(5, "none"),
		Note:       field(6, ""),
	}
	return f, f.ID != ""
}
