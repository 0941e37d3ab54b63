package factory

import (
	"fmt"

	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/reputation"
	"github.com/mikey/mail-triage/internal/thread"
	"github.com/mikey/mail-triage/internal/whitelist"
	"go.uber.org/zap"
)

// ServiceFactory turns configuration into triage service settings
type ServiceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(cfg *config.Config, logger *zap.Logger) *ServiceFactory {
	return &ServiceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateServiceConfig assembles the service settings, rejecting unknown
// mailbox roles and verdict names
func (f *ServiceFactory) CreateServiceConfig() (core.ServiceConfig, error) {
	mailboxes, err := core.NewMailboxes(f.cfg.GetMailboxes())
	if err != nil {
		return core.ServiceConfig{}, err
	}
	tc, err := f.cfg.GetTransport()
	if err != nil {
		return core.ServiceConfig{}, err
	}

	rc := f.cfg.GetReputation()
	keep := make([]core.Role, 0, len(rc.KeepVerdicts))
	for _, name := range rc.KeepVerdicts {
		role, ok := core.ParseRole(name)
		if !ok {
			return core.ServiceConfig{}, fmt.Errorf("unknown verdict %q in reputation.keep_verdicts", name)
		}
		keep = append(keep, role)
	}

	th := f.cfg.GetThread()
	tr := f.cfg.GetTriage()
	return core.ServiceConfig{
		Mailboxes: mailboxes,
		BatchSize: tc.BatchSize,
		Thread: thread.Config{
			Linker:        thread.LinkerConfig{SubjectP: th.SubjectP, LinkP: th.LinkP},
			ReplyPrefixes: th.ReplyPrefixes,
			MinThreadGaps: th.MinThreadGaps,
		},
		Verdict: reputation.VerdictConfig{NotJunkP: rc.NotJunkP, JunkP: rc.JunkP},
		Buckets: reputation.BucketConfig{
			RequestP:       tr.RequestP,
			JunkP:          tr.JunkP,
			FYIReplies:     tr.FYIReplies,
			MaxJunkReplies: tr.MaxJunkReplies,
		},
		KeepVerdicts: keep,
	}, nil
}

// CreateNotJunkChecker creates the domain override checker
func (f *ServiceFactory) CreateNotJunkChecker() *whitelist.Checker {
	return whitelist.NewChecker(f.cfg.GetTriage().NotJunkDomains, f.logger)
}
