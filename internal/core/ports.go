package core

import (
	"context"
)

// MessageStore persists message records, thread assignments, reputation
// tables and address lists. Callers serialize passes; a single writer is assumed.
type MessageStore interface {
	// WithTx runs fn inside one transaction; any error rolls everything back
	WithTx(ctx context.Context, fn func(tx StoreTx) error) error

	// Close releases the underlying database
	Close() error
}

// StoreTx is the transaction-scoped handle a pass reads and writes through
type StoreTx interface {
	// InsertMessage stores m if its message identifier is new. It returns the
	// internal id and whether a row was inserted.
	InsertMessage(ctx context.Context, m *Message) (int64, bool, error)

	// SaveVerdict records a human triage decision for the message with the
	// given identifier. With overwrite false an existing verdict is kept.
	SaveVerdict(ctx context.Context, messageID, sourceRef, mailbox string, verdict Role, overwrite bool) (bool, error)

	// RecordMove sets the mailbox label and clears the stale transport reference
	RecordMove(ctx context.Context, id int64, mailbox string) error

	// LookupIDs maps message identifiers to internal ids
	LookupIDs(ctx context.Context, messageIDs []string) (map[string]int64, error)

	// Messages returns the records matching the filter ordered by internal id
	Messages(ctx context.Context, filter MessageFilter) ([]Message, error)

	// ReplaceThreads erases all thread assignments, writes the given ones and
	// marks every message analyzed
	ReplaceThreads(ctx context.Context, assignments map[int64]ThreadAssignment) error

	// ReplaceReputation fully replaces one reputation table
	ReplaceReputation(ctx context.Context, table ReputationTable, rows []AddressScore) error

	// Reputation returns one reputation table sorted by ascending score
	Reputation(ctx context.Context, table ReputationTable) ([]AddressScore, error)

	// AddressList returns the addresses stored in a flat list
	AddressList(ctx context.Context, list AddressList) ([]string, error)

	// AddAddresses adds addresses to a flat list, ignoring ones already present
	AddAddresses(ctx context.Context, list AddressList, addrs []string) error

	// DuplicatePairs returns (canonical id, duplicate id) pairs of rows
	// sharing a message identifier
	DuplicatePairs(ctx context.Context) ([][2]int64, error)

	// DeleteMessages removes rows by internal id
	DeleteMessages(ctx context.Context, ids []int64) error

	// AnsweredMessages maps message identifiers of transport-backed messages
	// outside the excluded mailboxes to internal ids when a later
	// owner-authored message exists in the same thread
	AnsweredMessages(ctx context.Context, excludeMailboxes []string) (map[string]int64, error)
}

// SearchCriteria is the simple predicate a transport search supports
type SearchCriteria struct {
	NotDeleted bool
	Unseen     bool
}

// FetchPart selects how much of each message a fetch returns
type FetchPart int

const (
	FetchHeader FetchPart = iota
	FetchFull
)

// FetchedMessage is one message returned by a transport fetch
type FetchedMessage struct {
	UID   uint32
	Flags []string
	Body  []byte
}

// Transport is the remote mailbox collaborator. Every call may fail with a
// transient connectivity error; implementations are expected to be wrapped
// by a retrying transport.
type Transport interface {
	SelectFolder(ctx context.Context, folder string) error
	Search(ctx context.Context, criteria SearchCriteria) ([]uint32, error)
	Fetch(ctx context.Context, uids []uint32, part FetchPart) ([]FetchedMessage, error)
	Copy(ctx context.Context, uids []uint32, dest string) error
	Delete(ctx context.Context, uids []uint32) error
	Expunge(ctx context.Context) error
	RemoveFlags(ctx context.Context, uids []uint32, flags []string) error
	ListFolders(ctx context.Context) ([]string, error)
	CreateFolder(ctx context.Context, name string) error

	// Release logs out; the next call reconnects
	Release(ctx context.Context) error
}

// LocalMessage is one message read from a local mailbox directory
type LocalMessage struct {
	ID     string
	Flags  string
	Header []byte
}

// LocalMailbox is the local file-based mailbox collaborator
type LocalMailbox interface {
	// Mailboxes lists the per-user mailbox directories
	Mailboxes(ctx context.Context) ([]string, error)

	// Messages returns the stored messages of one mailbox
	Messages(ctx context.Context, mailbox string) ([]LocalMessage, error)
}

// HeaderParser extracts message metadata from a raw header block.
// owners holds the lower-cased addresses of the mailbox owner.
type HeaderParser interface {
	Parse(raw []byte, owners map[string]bool) (*ParsedHeader, error)
}

// Reviewer is the human review suspension point between the automated
// triage pass and the purge phase. It returns false when the operator
// declines to continue.
type Reviewer interface {
	AwaitReview(ctx context.Context, report *PassReport) (bool, error)
}

// MailSender delivers fully formed messages
type MailSender interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
	Close() error
}
