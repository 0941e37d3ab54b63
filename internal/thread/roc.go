package thread

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrNoThreadHistory means no resolved thread spans two dated messages,
	// so there is no reference distribution to calibrate subject links
	ErrNoThreadHistory = errors.New("not enough thread history")
	// ErrNoSubjectPairs means no subject has two messages in known threads
	ErrNoSubjectPairs = errors.New("no subject pairs in known threads")
)

// ThreadGaps returns, for every thread, the time from each earlier message
// to the thread's last message, pooled and sorted ascending (seconds).
func ThreadGaps(nodes []Node, threadOf map[int64]int64) []float64 {
	dates := make(map[int64][]time.Time)
	for _, n := range nodes {
		if n.Date == nil {
			continue
		}
		tid, ok := threadOf[n.ID]
		if !ok {
			continue
		}
		dates[tid] = append(dates[tid], *n.Date)
	}

	var gaps []float64
	for _, ds := range dates {
		sort.Slice(ds, func(i, j int) bool { return ds[i].Before(ds[j]) })
		last := ds[len(ds)-1]
		for _, d := range ds[:len(ds)-1] {
			gaps = append(gaps, last.Sub(d).Seconds())
		}
	}
	sort.Float64s(gaps)
	return gaps
}

// ROCPoint is one step of the subject-link calibration curve
type ROCPoint struct {
	Gap time.Duration
	TPR float64
	FPR float64
}

// FPCount is the false-positive tally of one subject
type FPCount struct {
	FalsePositives int
	Pairs          int
}

// SubjectROC summarizes how well "same subject" predicts "same thread"
type SubjectROC struct {
	Curve     []ROCPoint
	BySubject map[string]FPCount
	// FPRate is the overall fraction of subject pairs that are false positives
	FPRate float64
}

type rocPair struct {
	gap time.Duration
	tp  bool
}

// BuildSubjectROC assesses every pair of same-subject messages that both
// belong to known threads. Pairs further apart than maxGap are skipped when
// maxGap is positive. A curve axis with no observations stays at zero.
func BuildSubjectROC(groups SubjectGroups, threadOf map[int64]int64, maxGap time.Duration) (*SubjectROC, error) {
	var pairs []rocPair
	res := &SubjectROC{BySubject: make(map[string]FPCount)}
	ntp := 0

	for subject, msgs := range groups {
		var known []Dated
		for _, m := range msgs {
			if _, ok := threadOf[m.ID]; ok {
				known = append(known, m)
			}
		}
		if len(known) < 2 {
			continue
		}
		sortDated(known)

		n, npair := 0, 0
		for i := range known {
			for _, later := range known[i+1:] {
				gap := later.Date.Sub(known[i].Date)
				if maxGap > 0 && gap > maxGap {
					continue
				}
				tp := threadOf[known[i].ID] == threadOf[later.ID]
				pairs = append(pairs, rocPair{gap: gap, tp: tp})
				if tp {
					n++
				}
				npair++
			}
		}
		ntp += n
		res.BySubject[subject] = FPCount{FalsePositives: npair - n, Pairs: npair}
	}

	if len(pairs) == 0 {
		return res, ErrNoSubjectPairs
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].gap == pairs[j].gap {
			return !pairs[i].tp && pairs[j].tp
		}
		return pairs[i].gap < pairs[j].gap
	})
	nfp := len(pairs) - ntp
	tpsum, fpsum := 0, 0
	res.Curve = make([]ROCPoint, 0, len(pairs))
	for _, p := range pairs {
		if p.tp {
			tpsum++
		} else {
			fpsum++
		}
		res.Curve = append(res.Curve, ROCPoint{
			Gap: p.gap,
			TPR: fraction(tpsum, ntp),
			FPR: fraction(fpsum, nfp),
		})
	}
	res.FPRate = fraction(nfp, len(pairs))
	return res, nil
}

func fraction(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
