package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-axe/axe/internal/history"
)

var (
	historyLimit int
	historyDB    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent check/test history",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of rows to show")
	historyCmd.Flags().StringVar(&historyDB, "history-db", defaultHistoryDB, "SQLite database path")
}

const defaultHistoryDB = "axe-history.db"

func runHistory(cmd *cobra.Command, args []string) error {
	hs, err := history.Open(historyDB)
	if err != nil {
		return err
	}
	defer hs.Close()

	recs, err := hs.Recent(context.Background(), historyLimit)
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no history recorded")
		return nil
	}

	for _, r := range recs {
		status := "pass"
		if r.Mismatch {
			status = "MISMATCH"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-5s %-4s %6dms  %-7s  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Model, r.Verdict, r.DurationMS, status, r.File)
	}
	return nil
}
