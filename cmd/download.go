package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"clipdeck/internal/media"
	"clipdeck/internal/ui"
)

var (
	flagFormat string
	flagTitle  string
	flagStart  string
	flagEnd    string
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download one format of a video, optionally trimmed",
	Long: `Download one format of a video into the download directory.

Without --format on a terminal, the available formats are listed for picking.
--start and --end take seconds or [hh:]mm:ss; both are needed to trim.`,
	Args: cobra.ExactArgs(1),
	RunE: downloadRun,
}

func init() {
	downloadCmd.Flags().StringVarP(&flagFormat, "format", "f", "", "yt-dlp format id (e.g. 18, 137+140)")
	downloadCmd.Flags().StringVarP(&flagTitle, "title", "t", "", "Base name for the output file")
	downloadCmd.Flags().StringVar(&flagStart, "start", "", "Segment start (seconds or [hh:]mm:ss)")
	downloadCmd.Flags().StringVar(&flagEnd, "end", "", "Segment end (seconds or [hh:]mm:ss)")
}

func downloadRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	req := media.DownloadRequest{URL: args[0], FormatID: flagFormat, Title: flagTitle}

	var err error
	if req.StartTime, err = parseOffsetFlag("start", flagStart); err != nil {
		return err
	}
	if req.EndTime, err = parseOffsetFlag("end", flagEnd); err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if req.FormatID == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("--format is required when not running on a terminal")
		}
		info, err := a.formats.List(ctx, req.URL)
		if err != nil {
			return err
		}
		idx, err := ui.Select(info.Title, ui.FormatItems(info.Formats))
		if err != nil {
			return err
		}
		req.FormatID = info.Formats[idx].ID
		if req.Title == "" {
			req.Title = info.Title
		}
	}

	logger.Debug().Str("url", req.URL).Str("format_id", req.FormatID).Msg("downloading")

	res, err := a.downloads.Download(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", res.Path)
	return nil
}

func parseOffsetFlag(name, value string) (*media.Offset, error) {
	if value == "" {
		return nil, nil
	}
	secs, err := media.ParseOffset(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	o := media.Offset(secs)
	return &o, nil
}
