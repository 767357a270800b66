package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	clientcmd "github.com/whistlegraph/dp1-feed/internal/cmd/client"
	serverrun "github.com/whistlegraph/dp1-feed/internal/cmd/server"
	cfgpkg "github.com/whistlegraph/dp1-feed/internal/config"
	pebblestore "github.com/whistlegraph/dp1-feed/internal/storage/pebble"
	logpkg "github.com/whistlegraph/dp1-feed/pkg/log"
)

func main() {
	// Respect DP1_LOG_LEVEL for CLI output as well as server start.
	level := os.Getenv("DP1_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "dp1-feed",
		Short: "dp1-feed CLI",
		Long:  "dp1-feed is a single-binary feed store. This CLI manages the server and basic operations.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the dp1-feed server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			dispatchURL, _ := cmd.Flags().GetString("dispatch-url")
			dispatchToken, _ := cmd.Flags().GetString("dispatch-token")
			pollIntervalMs, _ := cmd.Flags().GetInt("poll-interval-ms")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("http") {
				cfg.HTTPAddr = httpAddr
			}
			if dispatchURL != "" {
				cfg.Queue.DispatchURL = dispatchURL
			}
			if dispatchToken != "" {
				cfg.Queue.DispatchToken = dispatchToken
			}
			if pollIntervalMs > 0 {
				cfg.Queue.PollIntervalMs = pollIntervalMs
			}
			if logLevel != "" {
				_ = os.Setenv("DP1_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("DP1_LOG_FORMAT", logFormat)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{
				Config:        cfg,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to a JSON config file")
	serverStartCmd.Flags().String("data-dir", "", "Data directory (default: OS-specific application data directory)")
	serverStartCmd.Flags().String("http", ":8787", "HTTP listen address")
	serverStartCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms")
	serverStartCmd.Flags().String("log-level", os.Getenv("DP1_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("DP1_LOG_FORMAT"), "Log format: text|json (default text)")
	serverStartCmd.Flags().String("dispatch-url", "", "Endpoint pending write events are POSTed to")
	serverStartCmd.Flags().String("dispatch-token", "", "Bearer token for the dispatch endpoint")
	serverStartCmd.Flags().Int("poll-interval-ms", 0, "Queue processor tick in ms (default 1000)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	rootCmd.AddCommand(clientcmd.NewRecordCommand(clientcmd.BaseURLFromEnv))
	rootCmd.AddCommand(clientcmd.NewQueueCommand(clientcmd.BaseURLFromEnv))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
