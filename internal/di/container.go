package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/factory"
	"github.com/mikey/mail-triage/internal/logging"
	"github.com/mikey/mail-triage/internal/metrics"
	"github.com/mikey/mail-triage/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container.
// An empty configPath searches the default config locations.
func BuildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewWithFile(configPath)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideShared(container); err != nil {
		return nil, err
	}

	// Register mail servers
	if err := container.Provide(factory.NewTransportFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.TransportFactory) ([]core.Server, error) {
		return f.CreateServers()
	}); err != nil {
		return nil, err
	}

	// Register sender and reviewer
	if err := container.Provide(factory.NewDeliveryFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory) (core.MailSender, error) {
		return f.CreateSender()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.DeliveryFactory) (core.Reviewer, error) {
		return f.CreateReviewer()
	}); err != nil {
		return nil, err
	}

	// Register pass metrics
	if err := container.Provide(metrics.NewMetrics); err != nil {
		return nil, err
	}
	if err := container.Provide(func(m *metrics.Metrics) core.PassObserver {
		return m
	}); err != nil {
		return nil, err
	}

	// Register triage service
	if err := container.Provide(core.NewTriageService); err != nil {
		return nil, err
	}

	return container, nil
}

// provideShared registers what every entry point needs once config and
// logger are available: the store, the parser and the service settings
func provideShared(container *dig.Container) error {
	// Register credential resolution
	if err := container.Provide(factory.NewCredentialFactory); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewParserFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewServiceFactory); err != nil {
		return err
	}

	// Register message store
	if err := container.Provide(func(f *factory.StoreFactory) (core.MessageStore, error) {
		return f.CreateStore()
	}); err != nil {
		return err
	}

	// Register header parser
	if err := container.Provide(func(f *factory.ParserFactory) (core.HeaderParser, error) {
		return f.CreateParser()
	}); err != nil {
		return err
	}

	// Register service settings
	if err := container.Provide(func(f *factory.ServiceFactory) (core.ServiceConfig, error) {
		return f.CreateServiceConfig()
	}); err != nil {
		return err
	}

	// Register not-junk domains
	if err := container.Provide(func(f *factory.ServiceFactory, logger *zap.Logger) *whitelist.Checker {
		checker := f.CreateNotJunkChecker()
		logger.Debug("Loaded not-junk domain overrides")
		return checker
	}); err != nil {
		return err
	}

	return nil
}
