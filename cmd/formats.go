package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"clipdeck/internal/ui"
)

var flagJSON bool

var formatsCmd = &cobra.Command{
	Use:   "formats <url>",
	Short: "List the formats available for a video",
	Args:  cobra.ExactArgs(1),
	RunE:  formatsRun,
}

func init() {
	formatsCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Output as JSON")
}

func formatsRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.formats.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintln(out, info.Title)
	fmt.Fprintln(out, ui.FormatsTable(info.Formats))
	return nil
}
