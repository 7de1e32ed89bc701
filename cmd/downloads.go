package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipdeck/internal/registry"
	"clipdeck/internal/ui"
)

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List downloaded files, newest first",
	Args:  cobra.NoArgs,
	RunE:  downloadsRun,
}

func init() {
	downloadsCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Output as JSON")
}

func downloadsRun(cmd *cobra.Command, args []string) error {
	dir, err := cfg.ExpandDownloadDir()
	if err != nil {
		return err
	}

	files, err := registry.New(dir).List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return json.NewEncoder(out).Encode(files)
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No downloads in %s\n", dir)
		return nil
	}
	fmt.Fprintln(out, ui.DownloadsTable(files, time.Now()))
	return nil
}
