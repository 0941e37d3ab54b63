package reputation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notJunkSet map[string]bool

func (s notJunkSet) IsNotJunk(addr string) bool { return s[addr] }

func samples(sender string, total, relevant int) []Sample {
	out := make([]Sample, 0, total)
	for i := 0; i < total; i++ {
		out = append(out, Sample{Sender: sender, OwnerThread: i < relevant})
	}
	return out
}

func find(t *testing.T, scores []Score, addr string) Score {
	t.Helper()
	for _, s := range scores {
		if s.Address == addr {
			return s
		}
	}
	require.Failf(t, "address not scored", "%s", addr)
	return Score{}
}

func TestScoreSenders(t *testing.T) {
	var in []Sample
	in = append(in, samples("x@example.com", 20, 1)...)
	in = append(in, samples("friend@example.com", 30, 25)...)
	in = append(in, samples("rest@example.com", 450, 24)...)
	in = append(in, Sample{Sender: ""})

	low, high := ScoreSenders(in)
	require.Len(t, low, 3)
	require.Len(t, high, 3)

	x := find(t, high, "x@example.com")
	assert.Equal(t, 1, x.Relevant)
	assert.Equal(t, 20, x.Total)
	assert.Greater(t, x.P, 0.5, "one owner thread in twenty is not significant")

	friend := find(t, high, "friend@example.com")
	assert.Less(t, friend.P, 0.05)
	assert.Equal(t, "friend@example.com", high[0].Address, "most significant first")

	rest := find(t, low, "rest@example.com")
	assert.Less(t, rest.P, 0.05)

	for i := 1; i < len(low); i++ {
		assert.LessOrEqual(t, low[i-1].P, low[i].P)
		assert.LessOrEqual(t, high[i-1].P, high[i].P)
	}
	for _, s := range high {
		assert.LessOrEqual(t, s.Relevant, s.Total)
	}
}

func TestScoreSendersSingleSender(t *testing.T) {
	low, high := ScoreSenders(samples("only@example.com", 4, 4))
	require.Len(t, high, 1)
	assert.Equal(t, 1.0, high[0].P)
	assert.Equal(t, 1.0, low[0].P)
}

func TestScoreVerdicts(t *testing.T) {
	cfg := DefaultVerdictConfig()
	var in []VerdictSample
	for i := 0; i < 3; i++ {
		in = append(in, VerdictSample{Sender: "spam@example.com"})
	}
	in = append(in,
		VerdictSample{Sender: "mixed@example.com", Kept: true},
		VerdictSample{Sender: "mixed@example.com"},
	)

	scores := ScoreVerdicts(in, cfg)
	require.Len(t, scores, 2)

	trashLOD := math.Log((1 - cfg.NotJunkP) / (1 - cfg.JunkP))
	keptLOD := math.Log(cfg.NotJunkP / cfg.JunkP)

	assert.Equal(t, "spam@example.com", scores[0].Address)
	assert.InDelta(t, 3*trashLOD, scores[0].P, 1e-12)
	assert.Equal(t, 0, scores[0].Relevant)
	assert.Equal(t, 3, scores[0].Total)

	assert.InDelta(t, keptLOD+trashLOD, scores[1].P, 1e-12)
	assert.Equal(t, 1, scores[1].Relevant)
	assert.Equal(t, 2, scores[1].Total)
}

func TestNewBuckets(t *testing.T) {
	cfg := DefaultBucketConfig()
	tables := Tables{
		High: []Score{
			{Address: "boss@example.com", P: 0.001, Relevant: 9, Total: 10},
			{Address: "list@example.com", P: 0.4, Relevant: 2, Total: 40},
			{Address: "x@example.com", P: 0.88, Relevant: 1, Total: 20},
			{Address: "promo@example.com", P: 1, Relevant: 0, Total: 30},
		},
		Low: []Score{
			{Address: "promo@example.com", P: 0.01, Relevant: 0, Total: 30},
			{Address: "y@example.com", P: 0.01, Relevant: 0, Total: 12},
			{Address: "list@example.com", P: 0.02, Relevant: 2, Total: 40},
		},
		Verdict: []Score{
			{Address: "trashed@example.com", P: 5 * math.Log(0.5/0.999), Relevant: 0, Total: 5},
			{Address: "twice@example.com", P: 2 * math.Log(0.5/0.999), Relevant: 0, Total: 2},
		},
	}
	nj := notJunkSet{"y@example.com": true, "bad@example.com": true}
	b := NewBuckets(tables, cfg, nj, []string{"Bad@Example.com", "evil@example.com"}, []string{"VIP@example.com"})

	assert.True(t, b.Request["boss@example.com"])
	assert.True(t, b.Request["vip@example.com"])
	assert.False(t, b.Request["x@example.com"])

	assert.True(t, b.FYI["list@example.com"])
	assert.True(t, b.FYI["x@example.com"])
	assert.False(t, b.FYI["promo@example.com"])

	assert.True(t, b.Junk["promo@example.com"])
	assert.False(t, b.Junk["y@example.com"], "not-junk override beats the low-tail score")
	assert.False(t, b.Junk["list@example.com"], "senders with replies are never junk")
	assert.True(t, b.Junk["trashed@example.com"])
	assert.False(t, b.Junk["twice@example.com"])

	assert.True(t, b.Blacklist["evil@example.com"])
	assert.False(t, b.Blacklist["bad@example.com"])
}
