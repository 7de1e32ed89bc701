package ui

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"clipdeck/internal/media"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// Kind labels a format by the streams it carries.
func Kind(f media.Format) string {
	switch {
	case f.HasVideo() && f.HasAudio():
		return "video+audio"
	case f.HasVideo():
		return "video only"
	case f.HasAudio():
		return "audio only"
	}
	return "unknown"
}

// FileSize formats a yt-dlp filesize field, which may be "N/A" or "NA".
func FileSize(raw string) string {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return "unknown"
	}
	return humanize.IBytes(n)
}

// FormatsTable renders formats for the terminal.
func FormatsTable(formats []media.Format) string {
	t := newTable("ID", "EXT", "RESOLUTION", "SIZE", "TYPE", "VCODEC", "ACODEC", "NOTE")
	for _, f := range formats {
		t.Row(f.ID, f.Ext, f.Resolution, FileSize(f.Filesize), Kind(f), f.VCodec, f.ACodec, f.Note)
	}
	return t.String()
}

// FormatItems builds picker rows for formats.
func FormatItems(formats []media.Format) []Item {
	items := make([]Item, len(formats))
	for i, f := range formats {
		detail := Kind(f) + " · " + FileSize(f.Filesize)
		if f.Note != "" {
			detail += " · " + f.Note
		}
		items[i] = Item{
			Label:  f.ID + "  " + f.Ext + "  " + f.Resolution,
			Detail: detail,
		}
	}
	return items
}

// DownloadsTable renders the downloads directory listing.
func DownloadsTable(files []media.DownloadedFile, now time.Time) string {
	t := newTable("FILE", "SIZE", "MODIFIED")
	for _, f := range files {
		t.Row(f.Filename, humanize.IBytes(uint64(f.Size)), humanize.RelTime(f.Modified, now, "ago", "from now"))
	}
	return t.String()
}

// HistoryTable renders journal entries.
func HistoryTable(entries []media.HistoryEntry, now time.Time) string {
	t := newTable("WHEN", "TITLE", "FORMAT", "SEGMENT", "FILE")
	for _, e := range entries {
		segment := "-"
		if e.SegmentStart != nil && e.SegmentEnd != nil {
			segment = media.FormatClock(*e.SegmentStart) + "-" + media.FormatClock(*e.SegmentEnd)
		}
		title := e.Title
		if title == "" {
			title = e.URL
		}
		t.Row(humanize.RelTime(e.CreatedAt, now, "ago", "from now"), title, e.FormatID, segment, e.Filename)
	}
	return t.String()
}
