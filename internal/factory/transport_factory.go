package factory

import (
	"fmt"
	"sync"

	"github.com/mikey/mail-triage/internal/adapters/imap"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/credential"
	"go.uber.org/zap"
)

// CredentialFactory opens the keyring on first use, so configurations with
// inline passwords never touch it
type CredentialFactory struct {
	cfg    *config.Config
	logger *zap.Logger

	once  sync.Once
	store *credential.Store
	err   error
}

// NewCredentialFactory creates a new credential factory
func NewCredentialFactory(cfg *config.Config, logger *zap.Logger) *CredentialFactory {
	return &CredentialFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// Store returns the opened keyring store
func (f *CredentialFactory) Store() (*credential.Store, error) {
	f.once.Do(func() {
		kc := f.cfg.GetKeyring()
		f.store, f.err = credential.Open(credential.Config{
			ServiceName:  kc.Service,
			FileDir:      kc.FileDir,
			FilePassword: kc.FilePassword,
		})
		if f.err == nil {
			f.logger.Debug("Opened keyring", zap.String("service", kc.Service))
		}
	})
	return f.store, f.err
}

// Resolve returns password when set, else the keyring entry named key
func (f *CredentialFactory) Resolve(password, key string) (string, error) {
	if password != "" || key == "" {
		var none *credential.Store
		return none.Resolve(password, key)
	}
	s, err := f.Store()
	if err != nil {
		return "", err
	}
	return s.Resolve(password, key)
}

// TransportFactory creates one retrying transport per configured server
type TransportFactory struct {
	cfg         *config.Config
	credentials *CredentialFactory
	logger      *zap.Logger
}

// NewTransportFactory creates a new transport factory
func NewTransportFactory(cfg *config.Config, credentials *CredentialFactory, logger *zap.Logger) *TransportFactory {
	return &TransportFactory{
		cfg:         cfg,
		credentials: credentials,
		logger:      logger,
	}
}

// CreateServers builds the configured servers. Connections are opened on
// first use.
func (f *TransportFactory) CreateServers() ([]core.Server, error) {
	servers, err := f.cfg.GetServers()
	if err != nil {
		return nil, err
	}
	tc, err := f.cfg.GetTransport()
	if err != nil {
		return nil, err
	}
	backoff := imap.Backoff{Initial: tc.InitialBackoff, Max: tc.MaxBackoff}

	out := make([]core.Server, 0, len(servers))
	for _, sc := range servers {
		password, err := f.credentials.Resolve(sc.Password, sc.KeyringKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve password for %s: %w", sc.Host, err)
		}
		name := fmt.Sprintf("%s@%s", sc.Username, sc.Host)
		t := imap.NewServerTransport(name, imap.ServerConfig{
			Host:     sc.Host,
			Port:     sc.Port,
			Username: sc.Username,
			Password: password,
			TLS:      sc.TLS,
		}, backoff, f.logger)
		out = append(out, core.Server{ID: sc.ID, Name: name, Transport: t})
	}

	f.logger.Info("Configured mail servers", zap.Int("servers", len(out)))
	return out, nil
}

// BatchSize returns the configured fetch batch size
func (f *TransportFactory) BatchSize() (int, error) {
	tc, err := f.cfg.GetTransport()
	if err != nil {
		return 0, err
	}
	return tc.BatchSize, nil
}
