// Package media defines shared types for the clipdeck application.
package media

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Format is one selectable audio/video stream variant reported by yt-dlp.
type Format struct {
	ID         string `json:"format_id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"` // "N/A" when unknown
	Filesize   string `json:"filesize"`   // bytes as reported, "N/A" when unknown
	VCodec     string `json:"vcodec"`     // "none" for audio-only streams
	ACodec     string `json:"acodec"`     // "none" for video-only streams
	Note       string `json:"note"`
}

// HasVideo reports whether the format carries a video stream.
func (f Format) HasVideo() bool { return f.VCodec != "none" }

// HasAudio reports whether the format carries an audio stream.
func (f Format) HasAudio() bool { return f.ACodec != "none" }

// VideoInfo is the result of a format lookup for one URL.
type VideoInfo struct {
	Title   string   `json:"title"`
	Formats []Format `json:"formats"`
}

// Offset is a position in seconds. It decodes from a JSON number or
// from a "[hh:]mm:ss" string.
type Offset int

func (o *Offset) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := strconv.ParseFloat(string(n), 64)
		if err != nil || v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
			return Invalid("time must be a whole number of seconds")
		}
		*o = Offset(v)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return Invalid("time must be a number of seconds or a [hh:]mm:ss string")
	}
	secs, err := ParseOffset(s)
	if err != nil {
		return Invalid("%v", err)
	}
	*o = Offset(secs)
	return nil
}

// ParseOffset parses "hh:mm:ss", "mm:ss" or plain seconds into whole seconds.
func ParseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time value")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	total := 0
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > math.MaxInt32 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total = total*60 + v
		if total > math.MaxInt32 {
			return 0, fmt.Errorf("time %q out of range", s)
		}
	}
	return total, nil
}

// FormatClock formats seconds as H:MM:SS or M:SS.
func FormatClock(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// DownloadRequest asks for one format of a URL, optionally trimmed.
type DownloadRequest struct {
	URL       string  `json:"url"`
	FormatID  string  `json:"format_id"`
	Title     string  `json:"title,omitempty"`
	StartTime *Offset `json:"start_time,omitempty"`
	EndTime   *Offset `json:"end_time,omitempty"`
}

// Segment returns the requested time range. ok is false unless both
// offsets are present.
func (r DownloadRequest) Segment() (start, end int, ok bool) {
	if r.StartTime == nil || r.EndTime == nil {
		return 0, 0, false
	}
	return int(*r.StartTime), int(*r.EndTime), true
}

// DownloadResult describes the file produced by a download.
type DownloadResult struct {
	ID           string `json:"-"`
	Filename     string `json:"filename"`
	Path         string `json:"-"`
	DownloadPath string `json:"downloadPath"`
	Segmented    bool   `json:"-"`
}

// DownloadedFile is one entry of the output directory.
type DownloadedFile struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// HistoryEntry is one completed download recorded in the journal.
type HistoryEntry struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	FormatID     string    `json:"format_id"`
	Title        string    `json:"title"`
	Filename     string    `json:"filename"`
	SegmentStart *int      `json:"segment_start,omitempty"`
	SegmentEnd   *int      `json:"segment_end,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidationError reports a request rejected before any tool was started.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid returns a *ValidationError with a formatted message.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
