// Package reputation scores correspondents by how their past messages were
// treated by the mailbox owner.
package reputation

import (
	"math"
	"sort"

	"github.com/mikey/mail-triage/internal/stats"
)

// Score is one ranked address entry
type Score struct {
	Address  string
	P        float64
	Relevant int
	Total    int
}

// Sample is one qualifying message for participation scoring
type Sample struct {
	Sender string
	// OwnerThread marks messages in an owner-participated thread
	OwnerThread bool
}

type counts struct {
	relevant int
	total    int
}

// ScoreSenders runs the hypergeometric participation test for every sender.
// low holds CDF(k) (junk evidence) and high holds P(X >= k) (correspondent
// evidence); both are sorted ascending by score.
func ScoreSenders(samples []Sample) (low, high []Score) {
	bySender := make(map[string]*counts)
	for _, s := range samples {
		if s.Sender == "" {
			continue
		}
		c, ok := bySender[s.Sender]
		if !ok {
			c = &counts{}
			bySender[s.Sender] = c
		}
		c.total++
		if s.OwnerThread {
			c.relevant++
		}
	}

	N, M := 0, 0
	for _, c := range bySender {
		N += c.total
		M += c.relevant
	}

	low = make([]Score, 0, len(bySender))
	high = make([]Score, 0, len(bySender))
	for addr, c := range bySender {
		h := stats.NewHypergeom(N, M, c.total)
		low = append(low, Score{Address: addr, P: h.CDF(c.relevant), Relevant: c.relevant, Total: c.total})
		high = append(high, Score{Address: addr, P: h.UpperTail(c.relevant), Relevant: c.relevant, Total: c.total})
	}
	Sort(low)
	Sort(high)
	return low, high
}

// VerdictSample is one recorded triage verdict for a sender
type VerdictSample struct {
	Sender string
	Kept   bool
}

// VerdictConfig holds the likelihoods of the two competing sender models
type VerdictConfig struct {
	// NotJunkP is the chance a wanted sender's message is kept
	NotJunkP float64
	// JunkP is the chance a junk sender's message is kept
	JunkP float64
}

// DefaultVerdictConfig returns the default model likelihoods
func DefaultVerdictConfig() VerdictConfig {
	return VerdictConfig{NotJunkP: 0.5, JunkP: 0.001}
}

// ScoreVerdicts computes the log likelihood odds of "wanted" versus "junk"
// for every sender with at least one verdict. Lower scores are stronger junk
// evidence; Relevant counts kept messages and Total all verdicts.
func ScoreVerdicts(samples []VerdictSample, cfg VerdictConfig) []Score {
	keptLOD := math.Log(cfg.NotJunkP / cfg.JunkP)
	trashLOD := math.Log((1 - cfg.NotJunkP) / (1 - cfg.JunkP))

	bySender := make(map[string]*counts)
	for _, s := range samples {
		if s.Sender == "" {
			continue
		}
		c, ok := bySender[s.Sender]
		if !ok {
			c = &counts{}
			bySender[s.Sender] = c
		}
		c.total++
		if s.Kept {
			c.relevant++
		}
	}

	out := make([]Score, 0, len(bySender))
	for addr, c := range bySender {
		trashed := c.total - c.relevant
		out = append(out, Score{
			Address:  addr,
			P:        float64(c.relevant)*keptLOD + float64(trashed)*trashLOD,
			Relevant: c.relevant,
			Total:    c.total,
		})
	}
	Sort(out)
	return out
}

// Sort orders scores ascending, breaking ties by address
func Sort(scores []Score) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].P == scores[j].P {
			return scores[i].Address < scores[j].Address
		}
		return scores[i].P < scores[j].P
	})
}
