package di

import (
	"flag"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/review"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/logging"
	"github.com/mikey/mail-triage/internal/whitelist"
)

// CLIFlags contains all command line flags for the report application
type CLIFlags struct {
	// Report flags
	MaxGap time.Duration
	Top    int

	// Output flags
	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}

	// Report flags
	flag.DurationVar(&flags.MaxGap, "max-gap", 90*24*time.Hour, "Largest same-subject gap included in the ROC curve")
	flag.IntVar(&flags.Top, "top", 20, "Rows printed per reputation table")

	// Output flags
	flag.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	flag.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	flag.Parse()
	return flags
}

// BuildCLIContainer creates a container for the offline report. It needs the
// store only, so no mail server or sender is configured.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.NewWithFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideShared(container); err != nil {
		return nil, err
	}

	// Register triage service with no servers
	if err := container.Provide(func(
		cfg core.ServiceConfig,
		store core.MessageStore,
		parser core.HeaderParser,
		notJunk *whitelist.Checker,
		logger *zap.Logger,
	) *core.TriageService {
		return core.NewTriageService(
			cfg,
			store,
			nil, // No servers for reports
			parser,
			review.NewAuto(logger),
			nil, // No sender
			notJunk,
			nil, // No metrics
			logger,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
