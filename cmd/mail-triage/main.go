// Package main implements the mail-triage command, which sorts a personal
// mailbox into request, informational and junk folders.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/di"
	"github.com/mikey/mail-triage/internal/metrics"
)

var (
	// configFile overrides the default config search path
	configFile string

	rescue        bool
	sendTemplates bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mail-triage",
	Short: "Batch triage of a personal mailbox",
	Long: `mail-triage reads new mail from the configured IMAP servers, rebuilds
conversation threads, scores senders and moves each new inbox message to a
request, informational or junk folder for review.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")

	runCmd.Flags().BoolVar(&rescue, "rescue", false, "Repeat routing from stored state without fetching new mail")
	runCmd.Flags().BoolVar(&sendTemplates, "send-templates", false, "Send pending draft templates after review")

	rootCmd.AddCommand(runCmd)
}

// runCmd executes one triage pass
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one triage pass",
	Long: `Run one triage pass over every configured server, then wait for the
review before purging the blacklist folders.

Examples:
  # Normal pass
  mail-triage run

  # Repeat the routing of an interrupted pass
  mail-triage run --rescue`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return invoke(cmd.Context(), runPass)
	},
}

// runPass is the run command with its dependencies injected
func runPass(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	svc *core.TriageService,
	m *metrics.Metrics,
) error {
	report, err := svc.Run(ctx, core.RunOptions{Rescue: rescue, SendTemplates: sendTemplates})
	if err != nil {
		logger.Error("Triage pass failed", zap.Error(err))
		return err
	}

	if err := m.WriteTextfile(cfg.GetString("metrics.textfile")); err != nil {
		logger.Warn("Failed to write metrics", zap.Error(err))
	}
	fmt.Printf("Pass %s: %d new, %d closed, %d purged, %d errors\n",
		report.RunID, report.Ingested, report.Closed, report.Purged, report.MessageErrors)
	return nil
}

// invoke builds the container and calls fn with its dependencies and a
// context cancelled on SIGINT or SIGTERM. The store is closed afterwards.
func invoke(parent context.Context, fn interface{}) error {
	container, err := di.BuildContainer(configFile)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := container.Provide(func() context.Context { return ctx }); err != nil {
		return err
	}

	err = container.Invoke(fn)
	closeErr := container.Invoke(func(logger *zap.Logger, store core.MessageStore) {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
		_ = logger.Sync()
	})
	if err != nil {
		return dig.RootCause(err)
	}
	if closeErr != nil {
		return dig.RootCause(closeErr)
	}
	return nil
}
