package factory

import (
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/ingest"
	"github.com/mikey/mail-triage/internal/utils"
	"go.uber.org/zap"
)

// ParserFactory creates header parsers and the text processors they use
type ParserFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewParserFactory creates a new ParserFactory
func NewParserFactory(cfg *config.Config, logger *zap.Logger) *ParserFactory {
	return &ParserFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *ParserFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateParser creates a header parser from the ingest settings
func (f *ParserFactory) CreateParser() (*ingest.Parser, error) {
	ic, err := f.cfg.GetIngest()
	if err != nil {
		return nil, err
	}
	return ingest.NewParser(ingest.Config{
		DefaultTZOffset: ic.DefaultTZOffset,
		MaxHeaderBytes:  ic.MaxHeaderBytes,
	}, f.CreateTextProcessor(), f.logger), nil
}
