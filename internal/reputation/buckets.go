package reputation

import (
	"math"
	"strings"
)

// NotJunkChecker reports explicit not-junk overrides
type NotJunkChecker interface {
	IsNotJunk(address string) bool
}

// BucketConfig holds the thresholds that turn scores into buckets
type BucketConfig struct {
	// RequestP is the high-tail score below which a sender is a correspondent
	RequestP float64
	// JunkP is the low-tail score below which a sender is junk; the verdict
	// table uses the matching log odds ln(JunkP / (1 - JunkP))
	JunkP float64
	// FYIReplies is the minimum relevant count of an informational sender
	FYIReplies int
	// MaxJunkReplies is the largest relevant count a junk sender may have
	MaxJunkReplies int
}

// DefaultBucketConfig returns the default thresholds
func DefaultBucketConfig() BucketConfig {
	return BucketConfig{RequestP: 0.05, JunkP: 0.05, FYIReplies: 1, MaxJunkReplies: 0}
}

// Tables are the three ranked reputation tables of one pass
type Tables struct {
	High    []Score
	Low     []Score
	Verdict []Score
}

// Buckets are the sender sets the classifier consults
type Buckets struct {
	Request   map[string]bool
	FYI       map[string]bool
	Junk      map[string]bool
	Blacklist map[string]bool
	notJunk   NotJunkChecker
}

// NewBuckets derives the sender buckets from the ranked tables and the
// explicit address lists. VIP senders count as request evidence. The
// not-junk override removes senders from the junk and blacklist buckets.
func NewBuckets(t Tables, cfg BucketConfig, notJunk NotJunkChecker, blacklist, vip []string) *Buckets {
	b := &Buckets{
		Request:   make(map[string]bool),
		FYI:       make(map[string]bool),
		Junk:      make(map[string]bool),
		Blacklist: make(map[string]bool),
		notJunk:   notJunk,
	}

	for _, s := range t.High {
		if s.P < cfg.RequestP {
			b.Request[s.Address] = true
		}
		if s.Relevant >= cfg.FYIReplies {
			b.FYI[s.Address] = true
		}
	}
	for _, addr := range vip {
		b.Request[normalize(addr)] = true
	}

	for _, s := range t.Low {
		if s.P < cfg.JunkP && s.Relevant <= cfg.MaxJunkReplies && !b.IsNotJunk(s.Address) {
			b.Junk[s.Address] = true
		}
	}
	verdictCut := math.Log(cfg.JunkP / (1 - cfg.JunkP))
	for _, s := range t.Verdict {
		if s.P < verdictCut && s.Relevant <= cfg.MaxJunkReplies && !b.IsNotJunk(s.Address) {
			b.Junk[s.Address] = true
		}
	}

	for _, addr := range blacklist {
		addr = normalize(addr)
		if addr != "" && !b.IsNotJunk(addr) {
			b.Blacklist[addr] = true
		}
	}
	return b
}

// IsNotJunk reports whether the address carries a not-junk override
func (b *Buckets) IsNotJunk(address string) bool {
	return b.notJunk != nil && b.notJunk.IsNotJunk(address)
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
