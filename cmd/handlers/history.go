package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pulseboard/internal/config"
	"pulseboard/internal/store"
)

// NewHistoryCmd creates the command that lists recent generation runs
func NewHistoryCmd() *cobra.Command {
	var (
		limit int
		theme string
		dsn   string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generation runs from the run history store",
		Long: `Show the newest theme outcomes recorded by generate.

History is kept only when history.dsn is configured: a SQLite file path
(or sqlite://path) or a postgres:// connection URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), cmd.OutOrStdout(), dsn, theme, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows to show")
	cmd.Flags().StringVar(&theme, "theme", "", "only show this theme")
	cmd.Flags().StringVar(&dsn, "dsn", "", "history database (default from config: history.dsn)")

	return cmd
}

func runHistory(ctx context.Context, out io.Writer, dsn, theme string, limit int) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dsn == "" {
		dsn = cfg.History.DSN
	}
	if dsn == "" {
		return fmt.Errorf("run history is not configured: set history.dsn or HISTORY_DSN")
	}

	s, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.Recent(ctx, theme, limit)
	if err != nil {
		return err
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, renderHistory(runs, stats))
	return nil
}

func renderHistory(runs []store.Run, stats store.RunStats) string {
	if len(runs) == 0 {
		return mutedStyle.Render("No runs recorded yet.")
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		runID := r.RunID
		if len(runID) > 8 {
			runID = runID[:8]
		}
		rows = append(rows, []string{
			r.FinishedAt.Format("2006-01-02 15:04:05"),
			runID,
			r.Theme,
			r.Status,
			itoa(r.ArticleCount),
			itoa(r.ClusterCount),
			r.Enrichment,
			firstLine(r.Error),
		})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Recent runs"))
	b.WriteString("\n")
	b.WriteString(statusTable([]string{"Finished (UTC)", "Run", "Theme", "Status", "Articles", "Clusters", "Digest", "Error"}, rows, 3))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d theme runs stored: %d ok, %d failed, %d model digests",
		stats.Total, stats.Succeeded, stats.Failed, stats.LLM)))
	return b.String()
}
