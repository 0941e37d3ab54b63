package thread

import (
	"sort"
	"strings"
	"time"

	"github.com/mikey/mail-triage/internal/stats"
)

// DefaultReplyPrefixes are the subject tokens stripped before grouping
var DefaultReplyPrefixes = []string{"re:"}

// NormalizeSubject strips leading reply-prefix tokens (case-insensitive)
// from the subject's words and rejoins the rest with single spaces.
func NormalizeSubject(subject string, prefixes []string) string {
	words := strings.Fields(subject)
	for i, w := range words {
		if !isPrefix(w, prefixes) {
			return strings.Join(words[i:], " ")
		}
	}
	return ""
}

func isPrefix(word string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.EqualFold(word, p) {
			return true
		}
	}
	return false
}

// Dated is a message id with its timestamp
type Dated struct {
	ID   int64
	Date time.Time
}

// SubjectGroups maps a normalized subject to its dated messages
type SubjectGroups map[string][]Dated

// GroupBySubject collects dated nodes under their normalized subject.
// Undated nodes and empty subjects are skipped.
func GroupBySubject(nodes []Node, prefixes []string) SubjectGroups {
	groups := make(SubjectGroups)
	for _, n := range nodes {
		if n.Date == nil {
			continue
		}
		subject := NormalizeSubject(n.Subject, prefixes)
		if subject == "" {
			continue
		}
		groups[subject] = append(groups[subject], Dated{ID: n.ID, Date: *n.Date})
	}
	for _, msgs := range groups {
		sortDated(msgs)
	}
	return groups
}

func sortDated(msgs []Dated) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Date.Equal(msgs[j].Date) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Date.Before(msgs[j].Date)
	})
}

// Link is a proposed edge between two temporally adjacent messages
type Link struct {
	From int64
	To   int64
	P    float64
}

// SubjectScore is the combined significance of one subject's links
type SubjectScore struct {
	Subject string
	P       float64
	Links   []Link
}

// LinkerConfig holds the subject-link acceptance thresholds
type LinkerConfig struct {
	// SubjectP is the combined p-value below which weak links are pruned
	SubjectP float64
	// LinkP is the per-link probability a pruned subject's link must exceed
	LinkP float64
}

// DefaultLinkerConfig returns the default acceptance thresholds
func DefaultLinkerConfig() LinkerConfig {
	return LinkerConfig{SubjectP: 0.004, LinkP: 0.2}
}

// ProposeLinks scores adjacent same-subject pairs against the sorted
// reference gaps (seconds) and returns per-subject scores ascending by
// combined p-value, with each subject's accepted links.
func ProposeLinks(groups SubjectGroups, gaps []float64, cfg LinkerConfig) []SubjectScore {
	scores := make([]SubjectScore, 0, len(groups))
	for subject, msgs := range groups {
		if len(msgs) < 2 {
			continue
		}
		sorted := append([]Dated(nil), msgs...)
		sortDated(sorted)

		links := make([]Link, 0, len(sorted)-1)
		ps := make([]float64, 0, len(sorted)-1)
		for i := 0; i+1 < len(sorted); i++ {
			gap := sorted[i+1].Date.Sub(sorted[i].Date).Seconds()
			p := stats.GapProbability(gaps, gap)
			links = append(links, Link{From: sorted[i].ID, To: sorted[i+1].ID, P: p})
			ps = append(ps, p)
		}

		combined := stats.JostCombine(ps)
		if combined < cfg.SubjectP && len(links) > 1 {
			kept := links[:0]
			for _, l := range links {
				if l.P > cfg.LinkP {
					kept = append(kept, l)
				}
			}
			links = kept
		}
		scores = append(scores, SubjectScore{Subject: subject, P: combined, Links: links})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].P == scores[j].P {
			return scores[i].Subject < scores[j].Subject
		}
		return scores[i].P < scores[j].P
	})
	return scores
}
