package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/mirrorsync/internal/audit"
	"github.com/danieljhkim/mirrorsync/internal/gitx"
)

var (
	historyRepo  string
	historyRef   string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently processed ref updates",
	Long: `Show the audit log of processed ref updates, newest first.

Each entry records the direction (propagate or apply), the outcome and the
mirrors that were left behind, if any.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyRepo, "repo", "", "Only this repository")
	historyCmd.Flags().StringVar(&historyRef, "ref", "", "Only this ref")
	historyCmd.Flags().IntVar(&historyLimit, "limit", audit.DefaultLimit, "Maximum number of entries")
}

func runHistory(cmd *cobra.Command, args []string) error {
	settings, _, err := loadConfig()
	if err != nil {
		return err
	}
	if !settings.Audit.Enabled {
		return ErrAuditDisabled
	}

	store, err := openAudit(cmd.Context(), settings.Audit)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(cmd.Context(), audit.Query{
		Repository: historyRepo,
		Ref:        historyRef,
		Limit:      historyLimit,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		if records == nil {
			records = []audit.Record{}
		}
		return outputJSON(records)
	}

	if len(records) == 0 {
		PrintEmptyState("No recorded updates")
		return nil
	}
	PrintTable([]string{"TIME", "REPOSITORY", "REF", "UPDATE", "DIRECTION", "OUTCOME", "DETAIL"}, historyRows(records))
	return nil
}

func historyRows(records []audit.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for i := range records {
		rec := &records[i]
		direction := string(rec.Direction)
		if rec.Origin != "" {
			direction += " from " + rec.Origin
		}
		detail := rec.Classification
		if lagging := rec.Mirrors(); len(lagging) > 0 {
			detail = "lagging: " + strings.Join(lagging, ",")
		}
		if rec.Outcome == audit.OutcomeFailed && rec.Error != "" {
			detail = firstLine(rec.Error)
		}
		rows = append(rows, []string{
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Repository,
			rec.Ref,
			gitx.SHA(rec.OldSHA).Short() + ".." + gitx.SHA(rec.NewSHA).Short(),
			direction,
			string(rec.Outcome),
			detail,
		})
	}
	return rows
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
