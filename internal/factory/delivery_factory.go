package factory

import (
	"errors"
	"fmt"
	"os"

	"github.com/mikey/mail-triage/internal/adapters/review"
	"github.com/mikey/mail-triage/internal/adapters/smtp"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/credential"
	"go.uber.org/zap"
)

// DeliveryFactory creates the components that talk to the owner: the
// template sender and the review prompt
type DeliveryFactory struct {
	cfg         *config.Config
	credentials *CredentialFactory
	logger      *zap.Logger
}

// NewDeliveryFactory creates a new delivery factory
func NewDeliveryFactory(cfg *config.Config, credentials *CredentialFactory, logger *zap.Logger) *DeliveryFactory {
	return &DeliveryFactory{
		cfg:         cfg,
		credentials: credentials,
		logger:      logger,
	}
}

// CreateSender returns the SMTP sender, or nil when no SMTP host is configured
func (f *DeliveryFactory) CreateSender() (core.MailSender, error) {
	sc := f.cfg.GetSMTP()
	if sc.Host == "" {
		f.logger.Debug("No SMTP host configured, template sending disabled")
		return nil, nil
	}

	password, err := f.credentials.Resolve(sc.Password, sc.KeyringKey)
	if errors.Is(err, credential.ErrNoCredential) {
		password = ""
	} else if err != nil {
		return nil, fmt.Errorf("failed to resolve SMTP password: %w", err)
	}

	return smtp.NewSender(smtp.Config{
		Host:     sc.Host,
		Port:     sc.Port,
		Username: sc.Username,
		Password: password,
		Security: smtp.Security(sc.Security),
	}, f.logger), nil
}

// CreateReviewer creates the reviewer selected by review.mode
func (f *DeliveryFactory) CreateReviewer() (core.Reviewer, error) {
	mode := f.cfg.GetString("review.mode")

	switch mode {
	case "prompt", "":
		return review.NewConsole(os.Stdin, os.Stdout, f.logger), nil
	case "auto":
		return review.NewAuto(f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported review mode: %s", mode)
	}
}
