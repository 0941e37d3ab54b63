package core

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/triage"
)

// destinationRoles maps each routing outcome to the folder role it lands in
var destinationRoles = map[triage.Destination]Role{
	triage.ClosedReview:    RoleClosedTriage,
	triage.RequestsReview:  RoleRequestsTriage,
	triage.FYIReview:       RoleFYITriage,
	triage.Blacklist:       RoleBlacklist,
	triage.JunkReview:      RoleJunkTriage,
	triage.StrangersReview: RoleBlacklistTriage,
}

var destinationOrder = []triage.Destination{
	triage.ClosedReview,
	triage.RequestsReview,
	triage.FYIReview,
	triage.Blacklist,
	triage.JunkReview,
	triage.StrangersReview,
}

// Triage routes the inbox batch of one server to the review folders. A
// failed move is counted and the remaining destinations still run.
func (s *TriageService) Triage(ctx context.Context, p *Pass, srv Server) error {
	st := p.server(srv.ID)
	if len(st.inbox) == 0 {
		return nil
	}
	mb := s.cfg.Mailboxes
	inbox := mb.Name(RoleInbox)

	ids := make([]int64, 0, len(st.inbox))
	for _, m := range st.inbox {
		ids = append(ids, m.StoreID)
	}

	var classifier *triage.Classifier
	ownerThread := make(map[int64]bool)
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		buckets, err := s.loadBuckets(ctx, tx)
		if err != nil {
			return err
		}
		classifier = triage.NewClassifier(buckets)

		// Rows are looked up by id: a message moved back into the inbox
		// keeps the mailbox label of its last recorded move
		msgs, err := tx.Messages(ctx, MessageFilter{IDs: ids})
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if m.OwnerThread != nil && *m.OwnerThread {
				ownerThread[m.ID] = true
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load triage state: %w", err)
	}

	byID := make(map[int64]HeaderMessage, len(st.inbox))
	batch := make([]triage.Candidate, 0, len(st.inbox))
	for _, m := range st.inbox {
		byID[m.StoreID] = m
		batch = append(batch, triage.Candidate{
			ID:          m.StoreID,
			Sender:      m.Sender,
			OwnerActed:  m.Flags.OwnerActed(),
			FromMe:      m.FromMe != nil && *m.FromMe,
			OwnerThread: ownerThread[m.StoreID],
		})
	}

	plan := classifier.Plan(batch)
	for _, dest := range destinationOrder {
		candidates := plan[dest]
		if len(candidates) == 0 {
			continue
		}
		folder := mb.Name(destinationRoles[dest])
		msgs := make([]HeaderMessage, 0, len(candidates))
		for _, c := range candidates {
			msgs = append(msgs, byID[c.ID])
		}

		moved, err := s.moveAndRecord(ctx, p, srv, inbox, folder, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("Failed to route messages",
				zap.String("server", srv.Name),
				zap.String("destination", dest.String()),
				zap.Int("messages", len(moved)),
				zap.Error(err))
			p.Report.MessageErrors += len(moved)
			continue
		}
		if len(moved) == 0 {
			continue
		}
		p.Report.RecordRoute(dest.String(), len(moved))
		p.logger.Info("Routed messages",
			zap.String("server", srv.Name),
			zap.String("destination", dest.String()),
			zap.String("mailbox", folder),
			zap.Int("messages", len(moved)))
	}
	st.inbox = nil
	return nil
}

// moveAndRecord moves messages on the server, then records the new mailbox.
// A message whose reference is not a server uid is skipped and counted. It
// returns the messages the move covered.
func (s *TriageService) moveAndRecord(ctx context.Context, p *Pass, srv Server, from, to string, msgs []HeaderMessage) ([]HeaderMessage, error) {
	valid := make([]HeaderMessage, 0, len(msgs))
	uids := make([]uint32, 0, len(msgs))
	for _, m := range msgs {
		uid, err := strconv.ParseUint(m.SourceRef, 10, 32)
		if err != nil {
			p.logger.Warn("Skipping message with invalid reference",
				zap.String("server", srv.Name),
				zap.String("mailbox", from),
				zap.String("ref", m.SourceRef),
				zap.Int64("id", m.StoreID))
			p.Report.MessageErrors++
			continue
		}
		valid = append(valid, m)
		uids = append(uids, uint32(uid))
	}
	if len(valid) == 0 {
		return nil, nil
	}
	if err := MoveMessages(ctx, srv.Transport, from, to, uids); err != nil {
		return valid, err
	}
	return valid, s.store.WithTx(ctx, func(tx StoreTx) error {
		for _, m := range valid {
			if err := tx.RecordMove(ctx, m.StoreID, to); err != nil {
				return err
			}
		}
		return nil
	})
}

// CloseAnswered moves messages of the watched folders whose thread received
// a later message from the owner to the Closed folder
func (s *TriageService) CloseAnswered(ctx context.Context, p *Pass, srv Server) error {
	st := p.server(srv.ID)
	if len(st.folders) == 0 {
		return nil
	}
	mb := s.cfg.Mailboxes
	closed := mb.Name(RoleClosed)

	var answered map[string]int64
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		var err error
		answered, err = tx.AnsweredMessages(ctx, distinct(closed, mb.Name(RoleClosedTriage), mb.Name(RoleSent)))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to find answered messages: %w", err)
	}
	if len(answered) == 0 {
		return nil
	}

	for folder, listing := range st.folders {
		closures := triage.SelectAnswered(answered, listing)
		if len(closures) == 0 {
			continue
		}
		msgs := make([]HeaderMessage, 0, len(closures))
		for _, c := range closures {
			msgs = append(msgs, HeaderMessage{SourceRef: c.Ref, MessageID: c.MessageID, StoreID: c.StoreID})
		}
		moved, err := s.moveAndRecord(ctx, p, srv, folder, closed, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("Failed to close answered messages",
				zap.String("server", srv.Name),
				zap.String("mailbox", folder),
				zap.Error(err))
			p.Report.MessageErrors += len(moved)
			continue
		}
		if len(moved) == 0 {
			continue
		}
		p.Report.Closed += len(moved)
		p.logger.Info("Closed answered messages",
			zap.String("server", srv.Name),
			zap.String("mailbox", folder),
			zap.Int("messages", len(moved)))
	}
	st.folders = make(map[string][]triage.FolderMessage)
	return nil
}
