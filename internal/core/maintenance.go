package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/templates"
	"github.com/mikey/mail-triage/internal/thread"
)

// ImportMaildir stores every message of a local Maildir tree. Imported
// messages keep their native flags and belong to no server.
func (s *TriageService) ImportMaildir(ctx context.Context, local LocalMailbox) (*PassReport, error) {
	p, err := s.NewPass(ctx)
	if err != nil {
		return nil, err
	}

	boxes, err := local.Mailboxes(ctx)
	if err != nil {
		return p.Report, fmt.Errorf("failed to list local mailboxes: %w", err)
	}
	for _, box := range boxes {
		msgs, err := local.Messages(ctx, box)
		if err != nil {
			return p.Report, fmt.Errorf("failed to read local mailbox %s: %w", box, err)
		}

		imported := 0
		err = s.store.WithTx(ctx, func(tx StoreTx) error {
			for _, lm := range msgs {
				h, err := s.parser.Parse(lm.Header, p.owners)
				if err != nil || h.MessageID == "" {
					p.logger.Warn("Skipping unreadable local message",
						zap.String("mailbox", box),
						zap.String("id", lm.ID),
						zap.Error(err))
					p.Report.MessageErrors++
					continue
				}
				_, inserted, err := tx.InsertMessage(ctx, &Message{
					MessageID: h.MessageID,
					SourceRef: lm.ID,
					Mailbox:   box,
					Date:      h.Date,
					Flags:     NewMaildirFlags(lm.Flags),
					Received:  h.Received,
					Sender:    h.Sender,
					FromMe:    h.FromMe,
					Subject:   h.Subject,
					Headers:   h.Headers,
					Pending:   true,
				})
				if err != nil {
					p.logger.Warn("Failed to store local message",
						zap.String("message_id", h.MessageID),
						zap.Error(err))
					p.Report.MessageErrors++
					continue
				}
				if inserted {
					imported++
				}
			}
			return nil
		})
		if err != nil {
			return p.Report, fmt.Errorf("failed to import %s: %w", box, err)
		}
		p.Report.Ingested += imported
		p.logger.Info("Imported local mailbox",
			zap.String("mailbox", box),
			zap.Int("messages", len(msgs)),
			zap.Int("new", imported))
	}
	return p.Report, nil
}

// PurgeDuplicates deletes every row that shares its message identifier with
// a lower-numbered row and returns the number deleted
func (s *TriageService) PurgeDuplicates(ctx context.Context) (int, error) {
	var ids []int64
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		pairs, err := tx.DuplicatePairs(ctx)
		if err != nil {
			return err
		}
		seen := make(map[int64]bool, len(pairs))
		for _, pair := range pairs {
			if dup := pair[1]; !seen[dup] {
				seen[dup] = true
				ids = append(ids, dup)
			}
		}
		return tx.DeleteMessages(ctx, ids)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge duplicates: %w", err)
	}
	s.logger.Info("Purged duplicate messages", zap.Int("deleted", len(ids)))
	return len(ids), nil
}

// AddAddresses adds lower-cased addresses to one of the flat lists
func (s *TriageService) AddAddresses(ctx context.Context, list AddressList, addrs []string) (int, error) {
	clean := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) == 0 {
		return 0, nil
	}
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		return tx.AddAddresses(ctx, list, clean)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to add addresses to %s: %w", list, err)
	}
	s.logger.Info("Added addresses", zap.String("list", string(list)), zap.Strings("addresses", clean))
	return len(clean), nil
}

// SendTemplates renders every template request found in the drafts folder
// of one server, sends it and deletes the request draft. A request that
// cannot be rendered or sent stays in the drafts folder.
func (s *TriageService) SendTemplates(ctx context.Context, p *Pass, srv Server) (int, error) {
	if s.sender == nil {
		p.logger.Info("No outgoing mail server configured, skipping templates")
		return 0, nil
	}
	folder := s.cfg.Mailboxes.Drafts

	msgs, err := FetchFolder(ctx, srv.Transport, folder, FetchFull, s.cfg.BatchSize, false)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch drafts on %s: %w", srv.Name, err)
	}
	drafts := make([]templates.Draft, 0, len(msgs))
	for _, m := range msgs {
		drafts = append(drafts, templates.Draft{UID: m.UID, Raw: m.Body})
	}
	set, reqs, err := templates.Collect(drafts)
	if err != nil {
		return 0, err
	}

	var done []uint32
	for _, req := range reqs {
		out, err := set.Render(req)
		if err != nil {
			p.logger.Warn("Skipping template request",
				zap.Uint32("uid", req.UID),
				zap.String("template", req.Name),
				zap.Error(err))
			p.Report.MessageErrors++
			continue
		}
		if err := s.sender.Send(ctx, out.From, out.Recipients, out.Data); err != nil {
			if ctx.Err() != nil {
				return len(done), ctx.Err()
			}
			p.logger.Warn("Failed to send templated message",
				zap.Uint32("uid", req.UID),
				zap.String("template", req.Name),
				zap.Error(err))
			p.Report.MessageErrors++
			continue
		}
		done = append(done, out.UID)
	}

	if len(done) > 0 {
		if err := srv.Transport.SelectFolder(ctx, folder); err != nil {
			return len(done), err
		}
		if err := srv.Transport.Delete(ctx, done); err != nil {
			return len(done), fmt.Errorf("failed to delete sent drafts: %w", err)
		}
		if err := srv.Transport.Expunge(ctx); err != nil {
			return len(done), fmt.Errorf("failed to expunge %s: %w", folder, err)
		}
	}
	p.logger.Info("Sent templated messages",
		zap.String("server", srv.Name),
		zap.Int("templates", len(set)),
		zap.Int("requests", len(reqs)),
		zap.Int("sent", len(done)))
	return len(done), nil
}

// Report is the read-only state of the last analysis
type Report struct {
	ROC *thread.SubjectROC
	// ROCErr explains why no calibration curve exists, if none does
	ROCErr  error
	Request []AddressScore
	Junk    []AddressScore
	Verdict []AddressScore
}

// BuildReport assesses subject matching against the stored threads and
// reads the reputation tables. Pairs further apart than maxGap are ignored
// when maxGap is positive.
func (s *TriageService) BuildReport(ctx context.Context, maxGap time.Duration) (*Report, error) {
	r := &Report{}
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		msgs, err := tx.Messages(ctx, MessageFilter{})
		if err != nil {
			return err
		}
		nodes := make([]thread.Node, 0, len(msgs))
		threadOf := make(map[int64]int64)
		for _, m := range msgs {
			nodes = append(nodes, thread.Node{ID: m.ID, Date: m.Date, Subject: m.Subject})
			if m.ThreadID != nil {
				threadOf[m.ID] = *m.ThreadID
			}
		}
		groups := thread.GroupBySubject(nodes, s.cfg.Thread.ReplyPrefixes)
		r.ROC, r.ROCErr = thread.BuildSubjectROC(groups, threadOf, maxGap)

		if r.Request, err = tx.Reputation(ctx, TableRequest); err != nil {
			return err
		}
		if r.Junk, err = tx.Reputation(ctx, TableJunk); err != nil {
			return err
		}
		r.Verdict, err = tx.Reputation(ctx, TableVerdict)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	return r, nil
}
