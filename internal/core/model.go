package core

import (
	"errors"
	"time"

	"github.com/mikey/mail-triage/internal/thread"
)

var (
	// ErrNotFound is returned when a stored record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrNoThreadHistory is returned when no resolved threads exist to calibrate subject linking
	ErrNoThreadHistory = thread.ErrNoThreadHistory
)

// Role is a fixed mailbox role the classifier reasons about. Verdicts are
// recorded as the role of the folder a message was triaged into.
type Role int

const (
	RoleInbox Role = iota
	RoleSent
	RoleJunk
	RoleRequests
	RoleFYI
	RoleClosed
	RoleRequestsTriage
	RoleFYITriage
	RoleClosedTriage
	RoleJunkTriage
	RoleBlacklist
	RoleBlacklistTriage
	RoleStrangersInbox
)

var roleNames = map[Role]string{
	RoleInbox:           "inbox",
	RoleSent:            "sent",
	RoleJunk:            "junk",
	RoleRequests:        "requests",
	RoleFYI:             "fyi",
	RoleClosed:          "closed",
	RoleRequestsTriage:  "requests_triage",
	RoleFYITriage:       "fyi_triage",
	RoleClosedTriage:    "closed_triage",
	RoleJunkTriage:      "junk_triage",
	RoleBlacklist:       "blacklist",
	RoleBlacklistTriage: "blacklist_triage",
	RoleStrangersInbox:  "strangers_inbox",
}

// AllRoles lists every mailbox role in declaration order
func AllRoles() []Role {
	roles := make([]Role, 0, len(roleNames))
	for r := RoleInbox; r <= RoleStrangersInbox; r++ {
		roles = append(roles, r)
	}
	return roles
}

// String returns the configuration key of the role
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRole resolves a role from its configuration key
func ParseRole(s string) (Role, bool) {
	for r, name := range roleNames {
		if name == s {
			return r, true
		}
	}
	return 0, false
}

// Message is one persisted message record
type Message struct {
	ID          int64
	MessageID   string
	ServerID    int
	SourceRef   string
	ThreadID    *int64
	OwnerThread *bool
	Mailbox     string
	Date        *time.Time
	Flags       FlagSet
	Received    string
	Sender      string
	FromMe      *bool
	Subject     string
	Headers     map[string]string
	Verdict     *Role
	Pending     bool
}

// IsFromMe reports whether the owner is known to have authored the message
func (m *Message) IsFromMe() bool {
	return m.FromMe != nil && *m.FromMe
}

// HeaderMessage is a message fetched from a mailbox collaborator, before or
// after it has been matched to a stored record
type HeaderMessage struct {
	SourceRef string
	Flags     FlagSet
	Headers   map[string]string
	Raw       []byte
	MessageID string
	Sender    string
	FromMe    *bool
	// StoreID is the internal id once the message is known to the store
	StoreID int64
}

// ParsedHeader is the metadata extracted from one raw header block
type ParsedHeader struct {
	MessageID string
	Sender    string
	Subject   string
	Received  string
	Date      *time.Time
	FromMe    *bool
	Headers   map[string]string
}

// AddressScore is one row of a reputation table
type AddressScore struct {
	Address  string  `db:"email"`
	Score    float64 `db:"pval"`
	Relevant int     `db:"nrelevant"`
	Total    int     `db:"ntotal"`
}

// ReputationTable names one of the ranked address tables
type ReputationTable string

const (
	// TableRequest holds participation high-tail scores
	TableRequest ReputationTable = "addrs"
	// TableJunk holds participation low-tail scores
	TableJunk ReputationTable = "junkaddrs"
	// TableVerdict holds explicit-verdict log-odds scores
	TableVerdict ReputationTable = "verdictaddrs"
)

// AddressList names one of the flat address tables
type AddressList string

const (
	ListOwner     AddressList = "myaddrs"
	ListNotJunk   AddressList = "notjunk"
	ListVIP       AddressList = "vip"
	ListBlacklist AddressList = "blacklist"
)

// ParseAddressList resolves a list from its short name
func ParseAddressList(s string) (AddressList, bool) {
	switch s {
	case "owner", "myaddrs":
		return ListOwner, true
	case "notjunk":
		return ListNotJunk, true
	case "vip":
		return ListVIP, true
	case "blacklist":
		return ListBlacklist, true
	}
	return "", false
}

// ThreadAssignment is the recomputed thread membership of one message
type ThreadAssignment struct {
	ThreadID    int64
	OwnerThread bool
}

// MessageFilter restricts a message query
type MessageFilter struct {
	PendingOnly bool
	Mailbox     string
	// IDs limits the query to these internal ids when not empty
	IDs         []int64
	WithHeaders bool
}

// PassReport summarizes one batch pass
type PassReport struct {
	RunID          string
	Ingested       int
	Threads        int
	OwnerThreads   int
	SubjectLinks   int
	Routed         map[string]int
	Closed         int
	Purged         int
	MessageErrors  int
	Duration       time.Duration
	RequestSenders int
	JunkSenders    int
}

// RecordRoute counts one message routed to a mailbox
func (r *PassReport) RecordRoute(mailbox string, n int) {
	if r.Routed == nil {
		r.Routed = make(map[string]int)
	}
	r.Routed[mailbox] += n
}
