package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pulseboard/internal/config"
	"pulseboard/internal/logger"
	"pulseboard/internal/server"
)

// NewServeCmd creates the serve command for previewing generated data
func NewServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated data tree read-only for local dashboard development",
		Long: `Start a read-only HTTP server over the data directory.

Endpoints:
  • /health                 liveness and data directory check
  • /api/manifest           the manifest, empty when none has been written
  • /api/themes             every theme with its latest date
  • /api/themes/{theme}     the latest document for a theme, resolved through the manifest
  • /data/*                 raw files, the same paths the dashboard fetches

Examples:
  # Serve ./data on the configured address
  pulseboard serve

  # Serve a synced copy on another port
  pulseboard serve --data-dir site/public/data --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port, host, dataDir)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory to serve (default from config: data)")

	return cmd
}

func runServe(port int, host, dataDir string) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverCfg := server.Config{
		Host:        cfg.Serve.Host,
		Port:        cfg.Serve.Port,
		DataDir:     cfg.Output.DataDir,
		CORSOrigins: cfg.Serve.CORSOrigins,
	}
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}
	if dataDir != "" {
		serverCfg.DataDir = dataDir
	}

	srv := server.New(serverCfg, log)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
