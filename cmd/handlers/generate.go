package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pulseboard/internal/config"
	"pulseboard/internal/logger"
	"pulseboard/internal/pipeline"
	"pulseboard/internal/themes"
)

type generateOptions struct {
	themesFile string
	dataDir    string
	date       string
	only       []string
	noLLM      bool
}

// NewGenerateCmd creates the daily generation command
func NewGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Fetch news and prices and write today's theme documents",
		Long: `Run the daily batch for every theme in the theme ticker file.

Themes are processed one at a time. A theme whose news fetch fails is skipped
and keeps its previous manifest entry; price and model failures only degrade
that theme's output. The run fails only when NEWSAPI_KEY is missing or the
manifest cannot be written.

Examples:
  # Generate every theme
  pulseboard generate

  # Backfill a single theme without the model
  pulseboard generate --only ai --date 2026-01-26 --no-llm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.themesFile, "themes-file", "", "theme to tickers file, JSON or YAML (default from config: themeTickers.json)")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "output directory (default from config: data)")
	cmd.Flags().StringVar(&opts.date, "date", "", "UTC date to write under, YYYY-MM-DD (default today)")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "only generate these themes (repeatable)")
	cmd.Flags().BoolVar(&opts.noLLM, "no-llm", false, "skip model enrichment and use the rule-based digest")

	return cmd
}

func runGenerate(ctx context.Context, out io.Writer, opts generateOptions) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireNewsAPIKey(); err != nil {
		return err
	}

	if opts.date != "" {
		if _, err := time.Parse(time.DateOnly, opts.date); err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", opts.date)
		}
	}

	themesFile := opts.themesFile
	if themesFile == "" {
		themesFile = cfg.Output.ThemesFile
	}
	list, err := themes.Load(themesFile)
	if err != nil {
		return fmt.Errorf("failed to load themes: %w", err)
	}
	list = themes.Filter(list, opts.only)
	if len(list) == 0 {
		return fmt.Errorf("no themes selected from %s (--only %s)", themesFile, strings.Join(opts.only, ","))
	}

	b := pipeline.NewBuilder(cfg, log).
		WithDataDir(opts.dataDir).
		WithDate(opts.date)
	if opts.noLLM {
		b.WithoutLLM()
	}
	defer b.Close(context.Background())

	p, err := b.Build(ctx)
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx, list)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, renderRunSummary(summary))
	return nil
}

func renderRunSummary(s *pipeline.RunSummary) string {
	rows := make([][]string, 0, len(s.Themes))
	for _, o := range s.Themes {
		detail := o.Path
		if o.Err != nil {
			detail = firstLine(o.Err.Error())
		}
		rows = append(rows, []string{o.Theme, o.Status, itoa(o.Articles), itoa(o.Clusters), o.Enrichment, detail})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Run %s  %s", s.RunID, s.Date)))
	b.WriteString("\n")
	b.WriteString(statusTable([]string{"Theme", "Status", "Articles", "Clusters", "Digest", "Output"}, rows, 1))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d written, %d failed in %s. Manifest: %s",
		len(s.Succeeded), len(s.Failed()), s.Duration().Round(time.Millisecond), s.ManifestPath)))
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
