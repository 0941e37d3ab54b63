package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/maildir"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/factory"
	"github.com/mikey/mail-triage/internal/logging"
)

var listName string

func init() {
	addAddressCmd.Flags().StringVar(&listName, "list", "notjunk", "Address list (owner, notjunk, vip, blacklist)")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(purgeDuplicatesCmd)
	rootCmd.AddCommand(sendTemplatesCmd)
	rootCmd.AddCommand(addAddressCmd)
	rootCmd.AddCommand(setPasswordCmd)
}

// importCmd loads the history of a local maildir
var importCmd = &cobra.Command{
	Use:   "import-maildir [path]",
	Short: "Import message headers from a local maildir",
	Long: `Import the headers of every message in a local maildir into the store.
The path defaults to maildir.path from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(cmd.Context(), func(ctx context.Context, cfg *config.Config, logger *zap.Logger, svc *core.TriageService) error {
			path := cfg.GetString("maildir.path")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no maildir path given")
			}
			report, err := svc.ImportMaildir(ctx, maildir.New(path, logger))
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d messages (%d errors)\n", report.Ingested, report.MessageErrors)
			return nil
		})
	},
}

// purgeDuplicatesCmd removes duplicate message rows
var purgeDuplicatesCmd = &cobra.Command{
	Use:   "purge-duplicates",
	Short: "Remove duplicate messages from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return invoke(cmd.Context(), func(ctx context.Context, svc *core.TriageService) error {
			n, err := svc.PurgeDuplicates(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d duplicates\n", n)
			return nil
		})
	},
}

// sendTemplatesCmd sends pending drafts without running a pass
var sendTemplatesCmd = &cobra.Command{
	Use:   "send-templates",
	Short: "Send drafts that name a template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return invoke(cmd.Context(), func(ctx context.Context, logger *zap.Logger, svc *core.TriageService) error {
			p, err := svc.NewPass(ctx)
			if err != nil {
				return err
			}
			total := 0
			for _, srv := range svc.Servers() {
				n, err := svc.SendTemplates(ctx, p, srv)
				if relErr := srv.Transport.Release(ctx); relErr != nil {
					logger.Warn("Failed to release mail server connection",
						zap.String("server", srv.Name),
						zap.Error(relErr))
				}
				if err != nil {
					return err
				}
				total += n
			}
			fmt.Printf("Sent %d drafts (%d errors)\n", total, p.Report.MessageErrors)
			return nil
		})
	},
}

// addAddressCmd adds addresses to one of the flat lists
var addAddressCmd = &cobra.Command{
	Use:   "add-address address...",
	Short: "Add addresses to an address list",
	Long: `Add addresses to an address list.

Examples:
  # Never treat a sender as junk
  mail-triage add-address --list notjunk friend@example.org

  # Register another address of the mailbox owner
  mail-triage add-address --list owner me@work.example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		list, ok := core.ParseAddressList(listName)
		if !ok {
			return fmt.Errorf("unknown address list: %s", listName)
		}
		return invoke(cmd.Context(), func(ctx context.Context, svc *core.TriageService) error {
			n, err := svc.AddAddresses(ctx, list, args)
			if err != nil {
				return err
			}
			fmt.Printf("Added %d addresses to %s\n", n, list)
			return nil
		})
	},
}

// setPasswordCmd stores a server password in the keyring
var setPasswordCmd = &cobra.Command{
	Use:   "set-password key",
	Short: "Store a password in the system keyring",
	Long: `Read a password from standard input and store it in the system keyring
under key. Reference it from the configuration with keyring_key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewWithFile(configFile)
		if err != nil {
			return err
		}
		logger, err := logging.InitConsoleLogger(false, false)
		if err != nil {
			return err
		}
		defer logger.Sync()

		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return errors.New("empty password")
		}

		s, err := factory.NewCredentialFactory(cfg, logger).Store()
		if err != nil {
			return err
		}
		if err := s.Set(args[0], password); err != nil {
			return err
		}
		logger.Info("Stored password", zap.String("key", args[0]))
		return nil
	},
}
