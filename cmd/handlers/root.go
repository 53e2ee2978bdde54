/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pulseboard/internal/config"
	"pulseboard/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pulseboard",
		Short: "Pulseboard generates the daily theme news and price data for the dashboard.",
		Long: `Pulseboard is a daily batch job. For every theme in the theme ticker file it
fetches recent news and end-of-day prices, builds a rule-based digest and
keyword clusters (optionally replaced by a validated model summary), and writes
data/<date>/<theme>.json plus data/manifest.json for the dashboard to read.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.pulseboard.yaml, then $HOME/.pulseboard.yaml)")

	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewHistoryCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables, then applies the logging settings.
func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}
