// Package triage routes untriaged messages to review folders.
package triage

import (
	"github.com/mikey/mail-triage/internal/reputation"
)

// Destination is the review bucket a message is routed to
type Destination int

const (
	ClosedReview Destination = iota
	RequestsReview
	FYIReview
	Blacklist
	JunkReview
	StrangersReview
)

var destinationNames = [...]string{
	ClosedReview:    "closed_review",
	RequestsReview:  "requests_review",
	FYIReview:       "fyi_review",
	Blacklist:       "blacklist",
	JunkReview:      "junk_review",
	StrangersReview: "strangers_review",
}

func (d Destination) String() string {
	if int(d) < len(destinationNames) {
		return destinationNames[d]
	}
	return "unknown"
}

// Rule identifies which precedence rule produced a decision
type Rule int

const (
	RuleOwnerActed Rule = iota + 1
	RuleOwnerThread
	RuleCorrespondent
	RuleReplied
	RuleBlacklisted
	RuleJunk
	RuleStranger
)

var ruleNames = map[Rule]string{
	RuleOwnerActed:    "owner_acted",
	RuleOwnerThread:   "owner_thread",
	RuleCorrespondent: "correspondent",
	RuleReplied:       "replied",
	RuleBlacklisted:   "blacklisted",
	RuleJunk:          "junk",
	RuleStranger:      "stranger",
}

func (r Rule) String() string {
	if name, ok := ruleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Candidate is the classifier's view of one untriaged message
type Candidate struct {
	ID     int64
	Sender string
	// OwnerActed is set when the message was answered or forwarded
	OwnerActed  bool
	FromMe      bool
	OwnerThread bool
}

// Decision is the routing outcome for one message
type Decision struct {
	Destination Destination
	Rule        Rule
}

// Classifier applies the fixed precedence rules against the sender buckets
type Classifier struct {
	buckets *reputation.Buckets
}

// NewClassifier creates a classifier over the given buckets
func NewClassifier(buckets *reputation.Buckets) *Classifier {
	return &Classifier{buckets: buckets}
}

// Classify returns the first matching rule's destination. Exactly one rule
// fires for every candidate.
func (c *Classifier) Classify(m Candidate) Decision {
	b := c.buckets
	switch {
	case m.OwnerActed || m.FromMe:
		return Decision{ClosedReview, RuleOwnerActed}
	case m.OwnerThread:
		return Decision{RequestsReview, RuleOwnerThread}
	case b.Request[m.Sender]:
		return Decision{RequestsReview, RuleCorrespondent}
	case b.FYI[m.Sender]:
		return Decision{FYIReview, RuleReplied}
	case b.Blacklist[m.Sender]:
		return Decision{Blacklist, RuleBlacklisted}
	case b.Junk[m.Sender] && !b.IsNotJunk(m.Sender):
		return Decision{JunkReview, RuleJunk}
	default:
		return Decision{StrangersReview, RuleStranger}
	}
}

// Plan groups a batch of candidates by destination, preserving input order
func (c *Classifier) Plan(batch []Candidate) map[Destination][]Candidate {
	plan := make(map[Destination][]Candidate)
	for _, m := range batch {
		d := c.Classify(m)
		plan[d.Destination] = append(plan[d.Destination], m)
	}
	return plan
}
