package core_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/store"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/ingest"
	"github.com/mikey/mail-triage/internal/reputation"
	"github.com/mikey/mail-triage/internal/thread"
	"github.com/mikey/mail-triage/internal/utils"
	"github.com/mikey/mail-triage/internal/whitelist"
)

type fakeMessage struct {
	uid   uint32
	flags []string
	raw   []byte
}

func (m *fakeMessage) hasFlag(flag string) bool {
	for _, f := range m.flags {
		if f == flag {
			return true
		}
	}
	return false
}

// fakeServer is an in-memory mail server implementing core.Transport
type fakeServer struct {
	folders  map[string][]*fakeMessage
	nextUID  uint32
	selected string
	failCopy bool
	releases int
}

func newFakeServer(folders ...string) *fakeServer {
	f := &fakeServer{folders: make(map[string][]*fakeMessage), nextUID: 1}
	for _, name := range folders {
		f.folders[name] = nil
	}
	return f
}

func (f *fakeServer) add(folder string, raw string, flags ...string) uint32 {
	uid := f.nextUID
	f.nextUID++
	f.folders[folder] = append(f.folders[folder], &fakeMessage{uid: uid, flags: flags, raw: []byte(raw)})
	return uid
}

// subjects lists the subjects of the live messages of a folder
func (f *fakeServer) subjects(folder string) []string {
	var out []string
	for _, m := range f.folders[folder] {
		if m.hasFlag(`\Deleted`) {
			continue
		}
		for _, line := range strings.Split(string(m.raw), "\r\n") {
			if strings.HasPrefix(line, "Subject: ") {
				out = append(out, strings.TrimPrefix(line, "Subject: "))
			}
		}
	}
	sort.Strings(out)
	return out
}

func (f *fakeServer) find(uids []uint32) []*fakeMessage {
	want := make(map[uint32]bool, len(uids))
	for _, u := range uids {
		want[u] = true
	}
	var out []*fakeMessage
	for _, m := range f.folders[f.selected] {
		if want[m.uid] {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeServer) SelectFolder(_ context.Context, folder string) error {
	if _, ok := f.folders[folder]; !ok {
		return fmt.Errorf("no such folder %s", folder)
	}
	f.selected = folder
	return nil
}

func (f *fakeServer) Search(_ context.Context, c core.SearchCriteria) ([]uint32, error) {
	var out []uint32
	for _, m := range f.folders[f.selected] {
		if c.NotDeleted && m.hasFlag(`\Deleted`) {
			continue
		}
		if c.Unseen && m.hasFlag(`\Seen`) {
			continue
		}
		out = append(out, m.uid)
	}
	return out, nil
}

func (f *fakeServer) Fetch(_ context.Context, uids []uint32, _ core.FetchPart) ([]core.FetchedMessage, error) {
	var out []core.FetchedMessage
	for _, m := range f.find(uids) {
		out = append(out, core.FetchedMessage{UID: m.uid, Flags: append([]string(nil), m.flags...), Body: m.raw})
		// Like a server without peek support, fetching marks the message read
		if !m.hasFlag(`\Seen`) {
			m.flags = append(m.flags, `\Seen`)
		}
	}
	return out, nil
}

func (f *fakeServer) Copy(_ context.Context, uids []uint32, dest string) error {
	if f.failCopy {
		return errors.New("copy refused")
	}
	if _, ok := f.folders[dest]; !ok {
		return fmt.Errorf("no such folder %s", dest)
	}
	for _, m := range f.find(uids) {
		var flags []string
		for _, fl := range m.flags {
			if fl != `\Deleted` {
				flags = append(flags, fl)
			}
		}
		f.add(dest, string(m.raw), flags...)
	}
	return nil
}

func (f *fakeServer) Delete(_ context.Context, uids []uint32) error {
	for _, m := range f.find(uids) {
		if !m.hasFlag(`\Deleted`) {
			m.flags = append(m.flags, `\Deleted`)
		}
	}
	return nil
}

func (f *fakeServer) Expunge(_ context.Context) error {
	var kept []*fakeMessage
	for _, m := range f.folders[f.selected] {
		if !m.hasFlag(`\Deleted`) {
			kept = append(kept, m)
		}
	}
	f.folders[f.selected] = kept
	return nil
}

func (f *fakeServer) RemoveFlags(_ context.Context, uids []uint32, flags []string) error {
	drop := make(map[string]bool, len(flags))
	for _, fl := range flags {
		drop[fl] = true
	}
	for _, m := range f.find(uids) {
		var kept []string
		for _, fl := range m.flags {
			if !drop[fl] {
				kept = append(kept, fl)
			}
		}
		m.flags = kept
	}
	return nil
}

func (f *fakeServer) ListFolders(_ context.Context) ([]string, error) {
	var out []string
	for name := range f.folders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeServer) CreateFolder(_ context.Context, name string) error {
	if _, ok := f.folders[name]; ok {
		return fmt.Errorf("folder %s exists", name)
	}
	f.folders[name] = nil
	return nil
}

func (f *fakeServer) Release(_ context.Context) error {
	f.releases++
	f.selected = ""
	return nil
}

// fixedReviewer answers every review the same way
type fixedReviewer struct {
	proceed bool
	reports []*core.PassReport
}

func (r *fixedReviewer) AwaitReview(_ context.Context, report *core.PassReport) (bool, error) {
	r.reports = append(r.reports, report)
	return r.proceed, nil
}

type sentMail struct {
	from string
	to   []string
	data []byte
}

type fakeSender struct {
	sent []sentMail
}

func (s *fakeSender) Send(_ context.Context, from string, to []string, msg []byte) error {
	s.sent = append(s.sent, sentMail{from: from, to: to, data: msg})
	return nil
}

func (s *fakeSender) Close() error { return nil }

type observerFunc func(*core.PassReport)

func (f observerFunc) ObservePass(r *core.PassReport) { f(r) }

const owner = "me@example.com"

// harness wires a service over an in-memory store and one fake server
type harness struct {
	store    *store.SQLStore
	server   *fakeServer
	reviewer *fixedReviewer
	sender   *fakeSender
	observed []*core.PassReport
	svc      *core.TriageService
}

func newHarness(t *testing.T, proceed bool) *harness {
	t.Helper()

	st, err := store.Open("sqlite", ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mailboxes, err := core.NewMailboxes(config.DefaultMailboxes)
	require.NoError(t, err)

	h := &harness{
		store:    st,
		server:   newFakeServer("INBOX", "Sent", "Drafts"),
		reviewer: &fixedReviewer{proceed: proceed},
		sender:   &fakeSender{},
	}
	parser := ingest.NewParser(ingest.Config{}, utils.NewTextProcessor(zap.NewNop()), zap.NewNop())
	cfg := core.ServiceConfig{
		Mailboxes:    mailboxes,
		BatchSize:    2,
		Thread:       thread.DefaultConfig(),
		Verdict:      reputation.DefaultVerdictConfig(),
		Buckets:      reputation.DefaultBucketConfig(),
		KeepVerdicts: []core.Role{core.RoleRequests, core.RoleFYI, core.RoleClosed},
	}
	servers := []core.Server{{ID: 1, Name: "test", Transport: h.server}}
	h.svc = core.NewTriageService(cfg, st, servers, parser, h.reviewer, h.sender,
		whitelist.NewChecker(nil, zap.NewNop()),
		observerFunc(func(r *core.PassReport) { h.observed = append(h.observed, r) }),
		zap.NewNop())

	_, err = h.svc.AddAddresses(context.Background(), core.ListOwner, []string{owner})
	require.NoError(t, err)
	return h
}

func (h *harness) list(t *testing.T, list core.AddressList) []string {
	t.Helper()
	var out []string
	require.NoError(t, h.store.WithTx(context.Background(), func(tx core.StoreTx) error {
		var err error
		out, err = tx.AddressList(context.Background(), list)
		return err
	}))
	return out
}

func (h *harness) messages(t *testing.T) map[string]core.Message {
	t.Helper()
	out := make(map[string]core.Message)
	require.NoError(t, h.store.WithTx(context.Background(), func(tx core.StoreTx) error {
		msgs, err := tx.Messages(context.Background(), core.MessageFilter{})
		for _, m := range msgs {
			out[m.MessageID] = m
		}
		return err
	}))
	return out
}

// mail builds a raw header block
func mail(id, from, to, subject, date string, extra ...string) string {
	lines := []string{
		"Message-ID: " + id,
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"Date: " + date,
	}
	lines = append(lines, extra...)
	return strings.Join(lines, "\r\n") + "\r\n\r\n"
}
