package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clipdeck/internal/history"
	"clipdeck/internal/ui"
)

var flagLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently completed downloads",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

func init() {
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "Number of entries (0 for all)")
	historyCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Output as JSON")
}

func historyRun(cmd *cobra.Command, args []string) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in the configuration")
	}

	path, err := cfg.HistoryPath()
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(cmd.Context(), flagLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return json.NewEncoder(out).Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		return nil
	}
	fmt.Fprintln(out, ui.HistoryTable(entries, time.Now()))
	return nil
}
