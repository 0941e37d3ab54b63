package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// DefaultBatchSize bounds the number of messages fetched per request
const DefaultBatchSize = 200

// Mailboxes maps mailbox roles to the folder names of one account
type Mailboxes struct {
	names  map[Role]string
	Drafts string
}

// NewMailboxes builds the role mapping from role keys to folder names.
// Every role must be named; the "drafts" key names the template folder.
func NewMailboxes(byKey map[string]string) (Mailboxes, error) {
	m := Mailboxes{names: make(map[Role]string, len(roleNames)), Drafts: byKey["drafts"]}
	for key, name := range byKey {
		if key == "drafts" {
			continue
		}
		role, ok := ParseRole(key)
		if !ok {
			return Mailboxes{}, fmt.Errorf("unknown mailbox role %q", key)
		}
		m.names[role] = name
	}
	for _, role := range AllRoles() {
		if m.names[role] == "" {
			return Mailboxes{}, fmt.Errorf("mailbox role %s has no folder name", role)
		}
	}
	if m.Drafts == "" {
		m.Drafts = "Drafts"
	}
	return m, nil
}

// Name returns the folder name of role
func (m Mailboxes) Name(role Role) string {
	return m.names[role]
}

// Folders returns the distinct folder names of every role, sorted
func (m Mailboxes) Folders() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range m.names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// FetchFolder selects folder and fetches every message not marked deleted
// in batches of batchSize. With preserveUnseen the \Seen flag the fetch may
// set is removed again from messages that were unread before.
func FetchFolder(ctx context.Context, t Transport, folder string, part FetchPart, batchSize int, preserveUnseen bool) ([]FetchedMessage, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if err := t.SelectFolder(ctx, folder); err != nil {
		return nil, err
	}

	var unseen []uint32
	if preserveUnseen {
		var err error
		unseen, err = t.Search(ctx, SearchCriteria{Unseen: true})
		if err != nil {
			return nil, fmt.Errorf("failed to search unseen messages in %s: %w", folder, err)
		}
	}

	uids, err := t.Search(ctx, SearchCriteria{NotDeleted: true})
	if err != nil {
		return nil, fmt.Errorf("failed to search messages in %s: %w", folder, err)
	}

	out := make([]FetchedMessage, 0, len(uids))
	for start := 0; start < len(uids); start += batchSize {
		end := start + batchSize
		if end > len(uids) {
			end = len(uids)
		}
		msgs, err := t.Fetch(ctx, uids[start:end], part)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch messages from %s: %w", folder, err)
		}
		out = append(out, msgs...)
	}

	if len(unseen) > 0 {
		if err := t.RemoveFlags(ctx, unseen, []string{`\Seen`}); err != nil {
			return nil, fmt.Errorf("failed to restore unseen state in %s: %w", folder, err)
		}
	}
	return out, nil
}

// MoveMessages copies uids from one folder to another, then deletes and
// expunges them from the source
func MoveMessages(ctx context.Context, t Transport, from, to string, uids []uint32) error {
	if len(uids) == 0 || from == to {
		return nil
	}
	if err := t.SelectFolder(ctx, from); err != nil {
		return err
	}
	if err := t.Copy(ctx, uids, to); err != nil {
		return fmt.Errorf("failed to copy messages to %s: %w", to, err)
	}
	if err := t.Delete(ctx, uids); err != nil {
		return fmt.Errorf("failed to delete messages from %s: %w", from, err)
	}
	if err := t.Expunge(ctx); err != nil {
		return fmt.Errorf("failed to expunge %s: %w", from, err)
	}
	return nil
}

// EnsureFolders creates every missing folder and returns the created names
func EnsureFolders(ctx context.Context, t Transport, names []string) ([]string, error) {
	existing, err := t.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, n := range existing {
		have[n] = true
	}

	var created []string
	for _, n := range names {
		if have[n] {
			continue
		}
		if err := t.CreateFolder(ctx, n); err != nil {
			return created, err
		}
		have[n] = true
		created = append(created, n)
	}
	return created, nil
}

// UIDRef formats a transport UID as a stored source reference
func UIDRef(uid uint32) string {
	return strconv.FormatUint(uint64(uid), 10)
}
