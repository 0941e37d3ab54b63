package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/reputation"
	"github.com/mikey/mail-triage/internal/thread"
	"github.com/mikey/mail-triage/internal/triage"
	"github.com/mikey/mail-triage/internal/whitelist"
)

// PassObserver receives the report of every completed pass
type PassObserver interface {
	ObservePass(report *PassReport)
}

// ServiceConfig holds the settings of the triage service
type ServiceConfig struct {
	Mailboxes    Mailboxes
	BatchSize    int
	Thread       thread.Config
	Verdict      reputation.VerdictConfig
	Buckets      reputation.BucketConfig
	KeepVerdicts []Role
}

// Server is one remote account the service triages
type Server struct {
	ID        int
	Name      string
	Transport Transport
}

// TriageService runs batch triage passes over the configured servers
type TriageService struct {
	cfg      ServiceConfig
	store    MessageStore
	servers  []Server
	parser   HeaderParser
	reviewer Reviewer
	sender   MailSender
	notJunk  *whitelist.Checker
	observer PassObserver
	logger   *zap.Logger
}

// NewTriageService creates a new triage service. sender and observer may be nil.
func NewTriageService(
	cfg ServiceConfig,
	store MessageStore,
	servers []Server,
	parser HeaderParser,
	reviewer Reviewer,
	sender MailSender,
	notJunk *whitelist.Checker,
	observer PassObserver,
	logger *zap.Logger,
) *TriageService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if len(cfg.Thread.ReplyPrefixes) == 0 {
		cfg.Thread.ReplyPrefixes = thread.DefaultReplyPrefixes
	}
	if notJunk == nil {
		notJunk = whitelist.NewChecker(nil, logger)
	}
	return &TriageService{
		cfg:      cfg,
		store:    store,
		servers:  servers,
		parser:   parser,
		reviewer: reviewer,
		sender:   sender,
		notJunk:  notJunk,
		observer: observer,
		logger:   logger,
	}
}

// Servers returns the configured servers
func (s *TriageService) Servers() []Server {
	return s.servers
}

// Pass is the state of one batch pass: the report, the run logger and the
// per-server folder snapshots taken during the update phase
type Pass struct {
	Report *PassReport
	logger *zap.Logger
	owners map[string]bool
	state  map[int]*serverState
}

// serverState is what the update phase learned about one server
type serverState struct {
	// inbox holds the untriaged inbox messages known to the store
	inbox []HeaderMessage
	// folders holds the listings of the folders watched for answers
	folders map[string][]triage.FolderMessage
}

// NewPass starts a pass with a fresh run id and loads the owner addresses
func (s *TriageService) NewPass(ctx context.Context) (*Pass, error) {
	runID := uuid.NewString()
	p := &Pass{
		Report: &PassReport{RunID: runID},
		logger: s.logger.With(zap.String("run_id", runID)),
		state:  make(map[int]*serverState),
	}
	owners, err := s.ownerAddresses(ctx)
	if err != nil {
		return nil, err
	}
	p.owners = owners
	return p, nil
}

func (p *Pass) server(id int) *serverState {
	st, ok := p.state[id]
	if !ok {
		st = &serverState{folders: make(map[string][]triage.FolderMessage)}
		p.state[id] = st
	}
	return st
}

// InboxSize returns the number of untriaged inbox messages of a server
func (p *Pass) InboxSize(serverID int) int {
	return len(p.server(serverID).inbox)
}

func (s *TriageService) ownerAddresses(ctx context.Context) (map[string]bool, error) {
	owners := make(map[string]bool)
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		addrs, err := tx.AddressList(ctx, ListOwner)
		if err != nil {
			return err
		}
		for _, a := range addrs {
			owners[strings.ToLower(strings.TrimSpace(a))] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load owner addresses: %w", err)
	}
	return owners, nil
}

// RunOptions selects the variant of a batch pass
type RunOptions struct {
	// Rescue rebuilds the inbox batch from the server without touching the
	// store, so the routing of an aborted pass can be repeated
	Rescue bool
	// SendTemplates sends pending draft templates after the review
	SendTemplates bool
}

// Run executes one batch pass: update, analyze, route, reconcile, then wait
// for the owner's review before purging the blacklist folders
func (s *TriageService) Run(ctx context.Context, opts RunOptions) (*PassReport, error) {
	start := time.Now()
	p, err := s.NewPass(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Starting triage pass",
		zap.Int("servers", len(s.servers)),
		zap.Bool("rescue", opts.Rescue))

	for _, srv := range s.servers {
		if opts.Rescue {
			err = s.RescueUpdate(ctx, p, srv)
		} else {
			err = s.GetUpdates(ctx, p, srv)
		}
		if err != nil {
			return p.Report, err
		}
	}

	if !opts.Rescue {
		if _, err := s.UpdateThreads(ctx, p); err != nil {
			return p.Report, err
		}
	}

	for _, srv := range s.servers {
		if err := s.Triage(ctx, p, srv); err != nil {
			return p.Report, err
		}
		if err := s.CloseAnswered(ctx, p, srv); err != nil {
			return p.Report, err
		}
	}
	p.Report.Duration = time.Since(start)

	s.releaseAll(ctx, p.logger)
	proceed, err := s.reviewer.AwaitReview(ctx, p.Report)
	if err != nil {
		return p.Report, fmt.Errorf("review interrupted: %w", err)
	}
	if !proceed {
		p.logger.Info("Review declined, skipping purge")
		s.finish(p, start)
		return p.Report, nil
	}

	for _, srv := range s.servers {
		if err := s.PurgeBlacklist(ctx, p, srv); err != nil {
			return p.Report, err
		}
		if opts.SendTemplates {
			if _, err := s.SendTemplates(ctx, p, srv); err != nil {
				return p.Report, err
			}
		}
	}
	s.releaseAll(ctx, p.logger)
	s.finish(p, start)
	return p.Report, nil
}

func (s *TriageService) finish(p *Pass, start time.Time) {
	p.Report.Duration = time.Since(start)
	p.logger.Info("Triage pass completed",
		zap.Int("ingested", p.Report.Ingested),
		zap.Any("routed", p.Report.Routed),
		zap.Int("closed", p.Report.Closed),
		zap.Int("purged", p.Report.Purged),
		zap.Int("message_errors", p.Report.MessageErrors),
		zap.Duration("duration", p.Report.Duration))
	if s.observer != nil {
		s.observer.ObservePass(p.Report)
	}
}

// releaseAll logs out of every server; the next call reconnects
func (s *TriageService) releaseAll(ctx context.Context, logger *zap.Logger) {
	for _, srv := range s.servers {
		if err := srv.Transport.Release(ctx); err != nil {
			logger.Warn("Failed to release mail server connection",
				zap.String("server", srv.Name),
				zap.Error(err))
		}
	}
}
