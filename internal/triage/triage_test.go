package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mikey/mail-triage/internal/reputation"
)

type notJunkSet map[string]bool

func (s notJunkSet) IsNotJunk(addr string) bool { return s[addr] }

func testBuckets() *reputation.Buckets {
	tables := reputation.Tables{
		High: []reputation.Score{
			{Address: "boss@example.com", P: 0.001, Relevant: 8, Total: 9},
			{Address: "news@example.com", P: 0.6, Relevant: 1, Total: 50},
			{Address: "both@example.com", P: 0.01, Relevant: 0, Total: 3},
		},
		Low: []reputation.Score{
			{Address: "spam@example.com", P: 0.001, Relevant: 0, Total: 40},
			{Address: "y@example.com", P: 0.01, Relevant: 0, Total: 15},
			{Address: "both@example.com", P: 0.01, Relevant: 0, Total: 3},
		},
	}
	nj := notJunkSet{"y@example.com": true}
	return reputation.NewBuckets(tables, reputation.DefaultBucketConfig(), nj,
		[]string{"evil@example.com", "spam@example.com", "y@example.com"}, nil)
}

func TestClassifyPrecedence(t *testing.T) {
	c := NewClassifier(testBuckets())

	tests := []struct {
		name string
		in   Candidate
		want Decision
	}{
		{"answered", Candidate{Sender: "evil@example.com", OwnerActed: true, OwnerThread: true},
			Decision{ClosedReview, RuleOwnerActed}},
		{"from owner", Candidate{Sender: "me@example.com", FromMe: true},
			Decision{ClosedReview, RuleOwnerActed}},
		{"blacklisted sender in owner thread", Candidate{Sender: "evil@example.com", OwnerThread: true},
			Decision{RequestsReview, RuleOwnerThread}},
		{"correspondent", Candidate{Sender: "boss@example.com"},
			Decision{RequestsReview, RuleCorrespondent}},
		{"request evidence beats junk evidence", Candidate{Sender: "both@example.com"},
			Decision{RequestsReview, RuleCorrespondent}},
		{"replied once", Candidate{Sender: "news@example.com"},
			Decision{FYIReview, RuleReplied}},
		{"blacklist beats junk", Candidate{Sender: "spam@example.com"},
			Decision{Blacklist, RuleBlacklisted}},
		{"blacklisted", Candidate{Sender: "evil@example.com"},
			Decision{Blacklist, RuleBlacklisted}},
		{"not-junk override", Candidate{Sender: "y@example.com"},
			Decision{StrangersReview, RuleStranger}},
		{"stranger", Candidate{Sender: "new@example.com"},
			Decision{StrangersReview, RuleStranger}},
		{"no sender", Candidate{},
			Decision{StrangersReview, RuleStranger}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.in))
		})
	}
}

func TestClassifyJunk(t *testing.T) {
	tables := reputation.Tables{
		Low: []reputation.Score{{Address: "promo@example.com", P: 0.001, Total: 30}},
	}
	b := reputation.NewBuckets(tables, reputation.DefaultBucketConfig(), notJunkSet{}, nil, nil)
	d := NewClassifier(b).Classify(Candidate{Sender: "promo@example.com"})
	assert.Equal(t, Decision{JunkReview, RuleJunk}, d)
}

func TestPlan(t *testing.T) {
	c := NewClassifier(testBuckets())
	plan := c.Plan([]Candidate{
		{ID: 1, Sender: "boss@example.com"},
		{ID: 2, Sender: "new@example.com"},
		{ID: 3, Sender: "boss@example.com"},
	})
	assert.Len(t, plan, 2)
	assert.Equal(t, []Candidate{{ID: 1, Sender: "boss@example.com"}, {ID: 3, Sender: "boss@example.com"}}, plan[RequestsReview])
	assert.Len(t, plan[StrangersReview], 1)
}

func TestDestinationString(t *testing.T) {
	assert.Equal(t, "requests_review", RequestsReview.String())
	assert.Equal(t, "unknown", Destination(42).String())
	assert.Equal(t, "stranger", RuleStranger.String())
}

func TestSelectAnswered(t *testing.T) {
	answered := map[string]int64{"<a@x>": 3, "<b@x>": 7}
	folder := []FolderMessage{
		{MessageID: "<a@x>", Ref: "101"},
		{MessageID: "<c@x>", Ref: "102"},
		{MessageID: "", Ref: "103"},
	}
	got := SelectAnswered(answered, folder)
	assert.Equal(t, []Closure{{FolderMessage: FolderMessage{MessageID: "<a@x>", Ref: "101"}, StoreID: 3}}, got)
	assert.Empty(t, SelectAnswered(nil, folder))
}
