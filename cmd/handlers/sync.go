package handlers

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pulseboard/internal/config"
	"pulseboard/internal/logger"
	"pulseboard/internal/render"
)

// NewSyncCmd creates the command that publishes the data tree to the site
func NewSyncCmd() *cobra.Command {
	var source, target string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy the generated data tree into the site asset directory",
		Long: `Replace the site's data directory with a verbatim copy of the generated
data tree. The target is cleared first; this is a full overwrite, not a merge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.OutOrStdout(), source, target)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "data tree to copy (default from config: data)")
	cmd.Flags().StringVar(&target, "target", "", "destination directory (default from config: site/public/data)")

	return cmd
}

func runSync(out io.Writer, source, target string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if source == "" {
		source = cfg.Output.DataDir
	}
	if target == "" {
		target = cfg.Sync.Target
	}

	if err := render.SyncTree(source, target); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	logger.Get().Info("data synced", "source", source, "target", target)
	fmt.Fprintf(out, "Synced %s -> %s\n", source, target)
	return nil
}
