package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/reputation"
	"github.com/mikey/mail-triage/internal/thread"
)

// UpdateThreads recomputes every thread and the three reputation tables in
// one transaction. Either all of them are replaced or none is.
func (s *TriageService) UpdateThreads(ctx context.Context, p *Pass) (*thread.Result, error) {
	builder := thread.NewBuilder(s.cfg.Thread, p.logger)

	var res *thread.Result
	err := s.store.WithTx(ctx, func(tx StoreTx) error {
		all, err := tx.Messages(ctx, MessageFilter{})
		if err != nil {
			return err
		}
		pending, err := tx.Messages(ctx, MessageFilter{PendingOnly: true, WithHeaders: true})
		if err != nil {
			return err
		}

		refs := make(map[int64][]string, len(pending))
		for _, m := range pending {
			refs[m.ID] = thread.ExtractReferences(m.Headers)
		}
		nodes := make([]thread.Node, 0, len(all))
		for i := range all {
			m := &all[i]
			nodes = append(nodes, thread.Node{
				ID:         m.ID,
				MessageID:  m.MessageID,
				ThreadID:   m.ThreadID,
				Pending:    m.Pending,
				References: refs[m.ID],
				Date:       m.Date,
				Subject:    m.Subject,
				FromMe:     m.IsFromMe(),
				OwnerActed: m.Flags.OwnerActed(),
			})
		}

		res = builder.Build(nodes)
		assignments := make(map[int64]ThreadAssignment, len(res.ThreadOf))
		for id, a := range res.Assignments() {
			assignments[id] = ThreadAssignment{ThreadID: a.ThreadID, OwnerThread: a.OwnerThread}
		}
		if err := tx.ReplaceThreads(ctx, assignments); err != nil {
			return err
		}
		return s.updateReputation(ctx, tx, p, all, res)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update threads: %w", err)
	}

	p.Report.Threads = len(res.Members)
	p.Report.OwnerThreads = len(res.OwnerThreads)
	p.Report.SubjectLinks = len(res.Accepted)
	p.logger.Info("Threads updated",
		zap.Int("threads", p.Report.Threads),
		zap.Int("owner_threads", p.Report.OwnerThreads),
		zap.Int("subject_links", p.Report.SubjectLinks),
		zap.Int("request_senders", p.Report.RequestSenders),
		zap.Int("junk_senders", p.Report.JunkSenders))
	return res, nil
}

// updateReputation scores every sender against the fresh thread result and
// replaces the reputation tables
func (s *TriageService) updateReputation(ctx context.Context, tx StoreTx, p *Pass, all []Message, res *thread.Result) error {
	keep := make(map[Role]bool, len(s.cfg.KeepVerdicts))
	for _, r := range s.cfg.KeepVerdicts {
		keep[r] = true
	}

	var samples []reputation.Sample
	var verdicts []reputation.VerdictSample
	for i := range all {
		m := &all[i]
		if m.IsFromMe() || m.Sender == "" {
			continue
		}
		if m.Verdict != nil {
			verdicts = append(verdicts, reputation.VerdictSample{Sender: m.Sender, Kept: keep[*m.Verdict]})
		}
		if m.Subject == "" {
			continue
		}
		samples = append(samples, reputation.Sample{Sender: m.Sender, OwnerThread: res.IsOwnerThread(m.ID)})
	}

	low, high := reputation.ScoreSenders(samples)
	scored := reputation.ScoreVerdicts(verdicts, s.cfg.Verdict)

	tables := []struct {
		table  ReputationTable
		scores []reputation.Score
	}{
		{TableRequest, high},
		{TableJunk, low},
		{TableVerdict, scored},
	}
	for _, t := range tables {
		if err := tx.ReplaceReputation(ctx, t.table, toAddressScores(t.scores)); err != nil {
			return err
		}
	}

	p.Report.RequestSenders = countBelow(high, s.cfg.Buckets.RequestP)
	p.Report.JunkSenders = countBelow(low, s.cfg.Buckets.JunkP)
	return nil
}

func countBelow(scores []reputation.Score, threshold float64) int {
	n := 0
	for _, sc := range scores {
		if sc.P < threshold {
			n++
		}
	}
	return n
}

func toAddressScores(scores []reputation.Score) []AddressScore {
	out := make([]AddressScore, 0, len(scores))
	for _, sc := range scores {
		out = append(out, AddressScore{Address: sc.Address, Score: sc.P, Relevant: sc.Relevant, Total: sc.Total})
	}
	return out
}

func fromAddressScores(rows []AddressScore) []reputation.Score {
	out := make([]reputation.Score, 0, len(rows))
	for _, r := range rows {
		out = append(out, reputation.Score{Address: r.Address, P: r.Score, Relevant: r.Relevant, Total: r.Total})
	}
	return out
}

// loadBuckets reads the reputation tables and address lists of the last
// analysis and derives the sender buckets
func (s *TriageService) loadBuckets(ctx context.Context, tx StoreTx) (*reputation.Buckets, error) {
	var t reputation.Tables
	for _, src := range []struct {
		table ReputationTable
		dst   *[]reputation.Score
	}{
		{TableRequest, &t.High},
		{TableJunk, &t.Low},
		{TableVerdict, &t.Verdict},
	} {
		rows, err := tx.Reputation(ctx, src.table)
		if err != nil {
			return nil, err
		}
		*src.dst = fromAddressScores(rows)
	}

	notJunk, err := tx.AddressList(ctx, ListNotJunk)
	if err != nil {
		return nil, err
	}
	blacklist, err := tx.AddressList(ctx, ListBlacklist)
	if err != nil {
		return nil, err
	}
	vip, err := tx.AddressList(ctx, ListVIP)
	if err != nil {
		return nil, err
	}
	return reputation.NewBuckets(t, s.cfg.Buckets, s.notJunk.WithAddresses(notJunk), blacklist, vip), nil
}
