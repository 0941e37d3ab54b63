package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/triage"
)

// fetchedHeader is one parsed message of a fetched folder
type fetchedHeader struct {
	uid    uint32
	flags  FlagSet
	header *ParsedHeader
}

func (f fetchedHeader) message(srv Server, folder string) *Message {
	h := f.header
	return &Message{
		MessageID: h.MessageID,
		ServerID:  srv.ID,
		SourceRef: UIDRef(f.uid),
		Mailbox:   folder,
		Date:      h.Date,
		Flags:     f.flags,
		Received:  h.Received,
		Sender:    h.Sender,
		FromMe:    h.FromMe,
		Subject:   h.Subject,
		Headers:   h.Headers,
		Pending:   true,
	}
}

func (f fetchedHeader) headerMessage(storeID int64) HeaderMessage {
	return HeaderMessage{
		SourceRef: UIDRef(f.uid),
		Flags:     f.flags,
		Headers:   f.header.Headers,
		MessageID: f.header.MessageID,
		Sender:    f.header.Sender,
		FromMe:    f.header.FromMe,
		StoreID:   storeID,
	}
}

// fetchHeaders fetches and parses the headers of every message in folder.
// Messages that cannot be parsed are skipped and counted; uids lists every
// fetched message regardless.
func (s *TriageService) fetchHeaders(ctx context.Context, p *Pass, srv Server, folder string, preserveUnseen bool) ([]fetchedHeader, []uint32, error) {
	msgs, err := FetchFolder(ctx, srv.Transport, folder, FetchHeader, s.cfg.BatchSize, preserveUnseen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s on %s: %w", folder, srv.Name, err)
	}

	out := make([]fetchedHeader, 0, len(msgs))
	uids := make([]uint32, 0, len(msgs))
	for _, m := range msgs {
		uids = append(uids, m.UID)
		h, err := s.parser.Parse(m.Body, p.owners)
		if err != nil {
			p.logger.Warn("Failed to parse message header",
				zap.String("server", srv.Name),
				zap.String("mailbox", folder),
				zap.Uint32("uid", m.UID),
				zap.Error(err))
			p.Report.MessageErrors++
			continue
		}
		if h.MessageID == "" {
			p.logger.Debug("Message has no Message-ID",
				zap.String("server", srv.Name),
				zap.String("mailbox", folder),
				zap.Uint32("uid", m.UID))
		}
		out = append(out, fetchedHeader{uid: m.UID, flags: NewIMAPFlags(m.Flags), header: h})
	}
	return out, uids, nil
}

// distinct returns names without repeats or empty entries, keeping order
func distinct(names ...string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// GetUpdates brings the store up to date with one server: new inbox
// messages, the owner's sent mail and the verdicts expressed by filing
// messages into the confirmed folders. It ends by purging the blacklist
// folders.
func (s *TriageService) GetUpdates(ctx context.Context, p *Pass, srv Server) error {
	mb := s.cfg.Mailboxes
	log := p.logger.With(zap.String("server", srv.Name))

	created, err := EnsureFolders(ctx, srv.Transport, mb.Folders())
	if err != nil {
		return fmt.Errorf("failed to prepare mailboxes on %s: %w", srv.Name, err)
	}
	if len(created) > 0 {
		log.Info("Created missing mailboxes", zap.Strings("mailboxes", created))
	}

	if err := s.updateInbox(ctx, p, srv); err != nil {
		return err
	}
	if err := s.updateSent(ctx, p, srv); err != nil {
		return err
	}
	if err := s.updateVerdicts(ctx, p, srv); err != nil {
		return err
	}
	return s.PurgeBlacklist(ctx, p, srv)
}

func (s *TriageService) updateInbox(ctx context.Context, p *Pass, srv Server) error {
	folder := s.cfg.Mailboxes.Name(RoleInbox)
	msgs, _, err := s.fetchHeaders(ctx, p, srv, folder, true)
	if err != nil {
		return err
	}

	st := p.server(srv.ID)
	st.inbox = nil
	ingested := 0
	err = s.store.WithTx(ctx, func(tx StoreTx) error {
		for _, fh := range msgs {
			id, inserted, err := tx.InsertMessage(ctx, fh.message(srv, folder))
			if err != nil {
				p.logger.Warn("Failed to store message",
					zap.String("message_id", fh.header.MessageID),
					zap.String("mailbox", folder),
					zap.Error(err))
				p.Report.MessageErrors++
				continue
			}
			if inserted {
				ingested++
			}
			st.inbox = append(st.inbox, fh.headerMessage(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store inbox of %s: %w", srv.Name, err)
	}
	p.Report.Ingested += ingested

	p.logger.Info("Fetched inbox",
		zap.String("server", srv.Name),
		zap.Int("messages", len(st.inbox)),
		zap.Int("new", ingested))
	return nil
}

// updateSent stores the owner's sent mail, which is owner-authored by
// definition
func (s *TriageService) updateSent(ctx context.Context, p *Pass, srv Server) error {
	folder := s.cfg.Mailboxes.Name(RoleSent)
	msgs, _, err := s.fetchHeaders(ctx, p, srv, folder, false)
	if err != nil {
		return err
	}

	fromMe := true
	sent := RoleSent
	ingested := 0
	err = s.store.WithTx(ctx, func(tx StoreTx) error {
		for _, fh := range msgs {
			m := fh.message(srv, folder)
			m.FromMe = &fromMe
			m.Verdict = &sent
			_, inserted, err := tx.InsertMessage(ctx, m)
			if err != nil {
				p.logger.Warn("Failed to store sent message",
					zap.String("message_id", m.MessageID),
					zap.Error(err))
				p.Report.MessageErrors++
				continue
			}
			if inserted {
				ingested++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store sent mail of %s: %w", srv.Name, err)
	}
	p.Report.Ingested += ingested
	return nil
}

// updateVerdicts records the folder every confirmed message was filed into
// and keeps the listings of the folders watched for answers
func (s *TriageService) updateVerdicts(ctx context.Context, p *Pass, srv Server) error {
	mb := s.cfg.Mailboxes
	st := p.server(srv.ID)

	confirmed := map[string]Role{
		mb.Name(RoleRequests): RoleRequests,
		mb.Name(RoleFYI):      RoleFYI,
		mb.Name(RoleClosed):   RoleClosed,
	}
	watched := map[string]bool{
		mb.Name(RoleRequests):       true,
		mb.Name(RoleFYI):            true,
		mb.Name(RoleRequestsTriage): true,
		mb.Name(RoleFYITriage):      true,
	}

	folders := distinct(mb.Name(RoleRequests), mb.Name(RoleFYI), mb.Name(RoleClosed),
		mb.Name(RoleRequestsTriage), mb.Name(RoleFYITriage))
	for _, folder := range folders {
		msgs, _, err := s.fetchHeaders(ctx, p, srv, folder, false)
		if err != nil {
			return err
		}

		if watched[folder] {
			listing := make([]triage.FolderMessage, 0, len(msgs))
			for _, fh := range msgs {
				listing = append(listing, triage.FolderMessage{MessageID: fh.header.MessageID, Ref: UIDRef(fh.uid)})
			}
			st.folders[folder] = listing
		}

		role, ok := confirmed[folder]
		if !ok {
			continue
		}
		// A Closed verdict never replaces a more specific one
		overwrite := role != RoleClosed
		if err := s.saveVerdicts(ctx, p, srv, folder, role, overwrite, msgs); err != nil {
			return err
		}
	}
	return nil
}

// saveVerdicts records verdict for every message, storing messages the
// store has not seen yet
func (s *TriageService) saveVerdicts(ctx context.Context, p *Pass, srv Server, folder string, verdict Role, overwrite bool, msgs []fetchedHeader) error {
	ingested := 0
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		for _, fh := range msgs {
			var updated bool
			var err error
			if fh.header.MessageID != "" {
				updated, err = tx.SaveVerdict(ctx, fh.header.MessageID, UIDRef(fh.uid), folder, verdict, overwrite)
			}
			if err == nil && !updated {
				m := fh.message(srv, folder)
				v := verdict
				m.Verdict = &v
				var inserted bool
				_, inserted, err = tx.InsertMessage(ctx, m)
				if inserted {
					ingested++
				}
			}
			if err != nil {
				p.logger.Warn("Failed to record verdict",
					zap.String("message_id", fh.header.MessageID),
					zap.String("mailbox", folder),
					zap.Stringer("verdict", verdict),
					zap.Error(err))
				p.Report.MessageErrors++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record verdicts of %s on %s: %w", folder, srv.Name, err)
	}
	p.Report.Ingested += ingested
	return nil
}

// RescueUpdate rebuilds the inbox batch of one server from the messages the
// store already knows, without writing anything
func (s *TriageService) RescueUpdate(ctx context.Context, p *Pass, srv Server) error {
	folder := s.cfg.Mailboxes.Name(RoleInbox)
	msgs, _, err := s.fetchHeaders(ctx, p, srv, folder, true)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(msgs))
	for _, fh := range msgs {
		if fh.header.MessageID != "" {
			ids = append(ids, fh.header.MessageID)
		}
	}
	var known map[string]int64
	// Messages without an identifier are found by their inbox reference
	byRef := make(map[string]int64)
	err = s.store.WithTx(ctx, func(tx StoreTx) error {
		var err error
		if known, err = tx.LookupIDs(ctx, ids); err != nil {
			return err
		}
		if len(ids) == len(msgs) {
			return nil
		}
		stored, err := tx.Messages(ctx, MessageFilter{Mailbox: folder})
		if err != nil {
			return err
		}
		for _, m := range stored {
			if m.MessageID == "" && m.ServerID == srv.ID && m.SourceRef != "" {
				byRef[m.SourceRef] = m.ID
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to look up inbox of %s: %w", srv.Name, err)
	}

	st := p.server(srv.ID)
	st.inbox = nil
	for _, fh := range msgs {
		id, ok := known[fh.header.MessageID]
		if fh.header.MessageID == "" {
			id, ok = byRef[UIDRef(fh.uid)]
		}
		if !ok {
			p.logger.Debug("Skipping message unknown to the store",
				zap.String("message_id", fh.header.MessageID))
			continue
		}
		st.inbox = append(st.inbox, fh.headerMessage(id))
	}
	p.logger.Info("Rebuilt inbox from server",
		zap.String("server", srv.Name),
		zap.Int("messages", len(st.inbox)),
		zap.Int("unknown", len(msgs)-len(st.inbox)))
	return nil
}

// PurgeBlacklist records a Blacklist verdict for every message in the
// blacklist folders, blacklists their senders and deletes them
func (s *TriageService) PurgeBlacklist(ctx context.Context, p *Pass, srv Server) error {
	mb := s.cfg.Mailboxes
	for _, folder := range distinct(mb.Name(RoleBlacklist), mb.Name(RoleBlacklistTriage)) {
		msgs, uids, err := s.fetchHeaders(ctx, p, srv, folder, false)
		if err != nil {
			return err
		}
		if len(uids) == 0 {
			continue
		}

		if err := s.saveVerdicts(ctx, p, srv, folder, RoleBlacklist, true, msgs); err != nil {
			return err
		}
		var senders []string
		for _, fh := range msgs {
			if fh.header.Sender != "" && !p.owners[fh.header.Sender] {
				senders = append(senders, fh.header.Sender)
			}
		}
		if len(senders) > 0 {
			err := s.store.WithTx(ctx, func(tx StoreTx) error {
				return tx.AddAddresses(ctx, ListBlacklist, senders)
			})
			if err != nil {
				return fmt.Errorf("failed to blacklist senders: %w", err)
			}
		}

		if err := srv.Transport.Delete(ctx, uids); err != nil {
			return fmt.Errorf("failed to delete blacklisted messages from %s: %w", folder, err)
		}
		if err := srv.Transport.Expunge(ctx); err != nil {
			return fmt.Errorf("failed to expunge %s: %w", folder, err)
		}
		p.Report.Purged += len(uids)
		p.logger.Info("Purged blacklisted messages",
			zap.String("server", srv.Name),
			zap.String("mailbox", folder),
			zap.Int("messages", len(uids)),
			zap.Int("senders", len(senders)))
	}
	return nil
}
