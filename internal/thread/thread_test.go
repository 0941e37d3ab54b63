package thread

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	ts := t0.Add(d)
	return &ts
}

func ptr(v int64) *int64 { return &v }

func msgID(id int64) string { return fmt.Sprintf("<m%d@example.com>", id) }

func TestComponentsIndependentConversations(t *testing.T) {
	g := NewGraph()
	// conversation A: 5-3-9, conversation B: 4-7, conversation C: 8-6-2
	g.AddEdge(5, 3)
	g.AddEdge(3, 9)
	g.AddEdge(7, 4)
	g.AddEdge(8, 6)
	g.AddEdge(6, 2)

	c := g.Components()
	require.Len(t, c.Members, 3)
	assert.Equal(t, []int64{3, 5, 9}, c.Members[3])
	assert.Equal(t, []int64{4, 7}, c.Members[4])
	assert.Equal(t, []int64{2, 6, 8}, c.Members[2])
	assert.Equal(t, int64(2), c.ThreadOf[8])

	again := g.Components()
	assert.Equal(t, c.ThreadOf, again.ThreadOf)
}

func TestComponentsLongChain(t *testing.T) {
	g := NewGraph()
	const n = 200000
	for i := int64(n); i > 1; i-- {
		g.AddEdge(i, i-1)
	}
	c := g.Components()
	require.Len(t, c.Members, 1)
	assert.Len(t, c.Members[1], n)
	assert.Equal(t, int64(1), c.ThreadOf[n])
}

func TestAddEdgeIgnoresSelfLoops(t *testing.T) {
	g := NewGraph()
	g.AddEdge(3, 3)
	assert.Equal(t, 0, g.Len())
	g.AddEdge(3, 4)
	assert.True(t, g.HasEdge(4, 3))
}

func TestExtractReferences(t *testing.T) {
	t.Run("in-reply-to appended", func(t *testing.T) {
		refs := ExtractReferences(map[string]string{
			"references":  "<a@x> <b@x>",
			"in-reply-to": "<c@x>",
		})
		assert.Equal(t, []string{"<a@x>", "<b@x>", "<c@x>"}, refs)
	})

	t.Run("in-reply-to already listed", func(t *testing.T) {
		refs := ExtractReferences(map[string]string{
			"references":  "<a@x>\n <b@x>",
			"in-reply-to": "<b@x>",
		})
		assert.Equal(t, []string{"<a@x>", "<b@x>"}, refs)
	})

	t.Run("no headers", func(t *testing.T) {
		assert.Empty(t, ExtractReferences(map[string]string{}))
	})
}

func TestNormalizeSubject(t *testing.T) {
	cases := map[string]string{
		"Budget Review":            "Budget Review",
		"Re: Budget Review":        "Budget Review",
		"RE: re:  Budget   Review": "Budget Review",
		"Re:":                      "",
		"":                         "",
		"Budget Re: Review":        "Budget Re: Review",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSubject(in, DefaultReplyPrefixes), in)
	}
	assert.Equal(t, "Budget", NormalizeSubject("AW: Re: Budget", []string{"re:", "aw:"}))
}

func TestBuildReferencesAndDuplicates(t *testing.T) {
	nodes := []Node{
		{ID: 1, MessageID: msgID(1), Pending: true},
		{ID: 2, MessageID: msgID(2), Pending: true, References: []string{msgID(1)}},
		{ID: 3, MessageID: msgID(3), Pending: true, References: []string{"<unknown@x>"}},
		{ID: 4, MessageID: msgID(3), Pending: true},
		{ID: 5, MessageID: msgID(5), Pending: true},
	}
	res := NewBuilder(DefaultConfig(), zap.NewNop()).Build(nodes)

	assert.Equal(t, int64(1), res.ThreadOf[2])
	assert.Equal(t, int64(3), res.ThreadOf[4], "duplicates share a thread")
	assert.Equal(t, [][2]int64{{3, 4}}, res.Duplicates)
	_, threaded := res.ThreadOf[5]
	assert.False(t, threaded, "singletons have no thread")
	assert.ErrorIs(t, res.LinkingErr, ErrNoThreadHistory)
}

func TestBuildIncremental(t *testing.T) {
	b := NewBuilder(DefaultConfig(), zap.NewNop())

	first := []Node{
		{ID: 10, MessageID: msgID(10), Pending: true},
		{ID: 11, MessageID: msgID(11), Pending: true, References: []string{msgID(10)}},
		{ID: 20, MessageID: msgID(20), Pending: true},
		{ID: 21, MessageID: msgID(21), Pending: true, References: []string{msgID(20)}},
	}
	res := b.Build(first)
	assert.Equal(t, int64(10), res.ThreadOf[11])
	assert.Equal(t, int64(20), res.ThreadOf[21])

	// second pass: history comes back as assignments, references of old
	// messages are no longer supplied, a new message bridges both threads
	var second []Node
	for _, n := range first {
		tid := res.ThreadOf[n.ID]
		second = append(second, Node{ID: n.ID, MessageID: n.MessageID, ThreadID: ptr(tid)})
	}
	second = append(second, Node{
		ID: 30, MessageID: msgID(30), Pending: true,
		References: []string{msgID(11), msgID(21)},
	})
	res2 := b.Build(second)
	for _, id := range []int64{10, 11, 20, 21, 30} {
		assert.Equal(t, int64(10), res2.ThreadOf[id], "id %d", id)
	}

	// rerun on the unchanged edge set is stable
	res3 := b.Build(second)
	assert.Equal(t, res2.ThreadOf, res3.ThreadOf)
}

func TestBuildOwnerThreads(t *testing.T) {
	nodes := []Node{
		{ID: 1, MessageID: msgID(1), Pending: true},
		{ID: 2, MessageID: msgID(2), Pending: true, References: []string{msgID(1)}, FromMe: true},
		{ID: 3, MessageID: msgID(3), Pending: true},
		{ID: 4, MessageID: msgID(4), Pending: true, References: []string{msgID(3)}, OwnerActed: true},
		{ID: 5, MessageID: msgID(5), Pending: true},
		{ID: 6, MessageID: msgID(6), Pending: true, References: []string{msgID(5)}},
		{ID: 7, MessageID: msgID(7), Pending: true, FromMe: true},
	}
	res := NewBuilder(DefaultConfig(), zap.NewNop()).Build(nodes)

	assert.True(t, res.IsOwnerThread(1))
	assert.True(t, res.IsOwnerThread(3))
	assert.False(t, res.IsOwnerThread(6))
	assert.False(t, res.IsOwnerThread(7), "unthreaded messages belong to no thread")

	a := res.Assignments()
	assert.Equal(t, Assignment{ThreadID: 3, OwnerThread: true}, a[4])
	assert.Equal(t, Assignment{ThreadID: 5, OwnerThread: false}, a[6])
	assert.NotContains(t, a, int64(7))
}

func TestBuildSubjectLinkAccepted(t *testing.T) {
	// an existing thread provides the reference gaps (1h and 2h)
	nodes := []Node{
		{ID: 1, MessageID: msgID(1), ThreadID: ptr(1), Date: at(0), Subject: "Quarterly plan"},
		{ID: 2, MessageID: msgID(2), ThreadID: ptr(1), Date: at(time.Hour), Subject: "Re: Quarterly plan"},
		{ID: 3, MessageID: msgID(3), ThreadID: ptr(1), Date: at(2 * time.Hour), Subject: "Re: Quarterly plan"},
		{ID: 10, MessageID: msgID(10), Pending: true, Date: at(48 * time.Hour), Subject: "Budget Review"},
		{ID: 11, MessageID: msgID(11), Pending: true, Date: at(48*time.Hour + 10*time.Minute), Subject: "RE: Budget Review"},
	}
	res := NewBuilder(DefaultConfig(), zap.NewNop()).Build(nodes)

	require.NoError(t, res.LinkingErr)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, Link{From: 10, To: 11, P: 1}, res.Accepted[0])
	assert.Equal(t, res.ThreadOf[10], res.ThreadOf[11])
	assert.Equal(t, int64(10), res.ThreadOf[11])
}

func TestBuildSubjectLinksOnlyTouchPending(t *testing.T) {
	nodes := []Node{
		{ID: 1, MessageID: msgID(1), ThreadID: ptr(1), Date: at(0), Subject: "a"},
		{ID: 2, MessageID: msgID(2), ThreadID: ptr(1), Date: at(time.Hour), Subject: "a"},
		{ID: 5, MessageID: msgID(5), Date: at(0), Subject: "old news"},
		{ID: 6, MessageID: msgID(6), Date: at(time.Minute), Subject: "old news"},
	}
	res := NewBuilder(DefaultConfig(), zap.NewNop()).Build(nodes)
	require.NoError(t, res.LinkingErr)
	assert.Empty(t, res.Accepted)
	_, threaded := res.ThreadOf[5]
	assert.False(t, threaded)
}

func TestProposeLinksPruning(t *testing.T) {
	gaps := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	t.Run("weak links pruned from an implausible subject", func(t *testing.T) {
		msgs := []Dated{{ID: 1, Date: t0}, {ID: 2, Date: t0.Add(500 * time.Millisecond)}}
		for i := 1; i <= 10; i++ {
			msgs = append(msgs, Dated{ID: int64(2 + i), Date: t0.Add(time.Duration(i) * 24 * time.Hour)})
		}
		scores := ProposeLinks(SubjectGroups{"weekly digest": msgs}, gaps, DefaultLinkerConfig())
		require.Len(t, scores, 1)
		assert.Less(t, scores[0].P, 0.004)
		require.Len(t, scores[0].Links, 1)
		assert.Equal(t, Link{From: 1, To: 2, P: 1}, scores[0].Links[0])
	})

	t.Run("single weak link is kept", func(t *testing.T) {
		msgs := []Dated{{ID: 1, Date: t0}, {ID: 2, Date: t0.Add(30 * 24 * time.Hour)}}
		scores := ProposeLinks(SubjectGroups{"hello": msgs}, gaps, DefaultLinkerConfig())
		require.Len(t, scores, 1)
		assert.InDelta(t, 0.1, scores[0].P, 1e-12)
		assert.Len(t, scores[0].Links, 1)
	})

	t.Run("single message subjects are skipped", func(t *testing.T) {
		scores := ProposeLinks(SubjectGroups{"solo": {{ID: 1, Date: t0}}}, gaps, DefaultLinkerConfig())
		assert.Empty(t, scores)
	})
}

func TestThreadGaps(t *testing.T) {
	nodes := []Node{
		{ID: 1, Date: at(0)},
		{ID: 2, Date: at(3 * time.Hour)},
		{ID: 3, Date: at(time.Hour)},
		{ID: 4, Date: at(0)},
		{ID: 5, Date: at(30 * time.Minute)},
		{ID: 6},
		{ID: 7, Date: at(0)},
	}
	threadOf := map[int64]int64{1: 1, 2: 1, 3: 1, 4: 4, 5: 4, 6: 4}
	assert.Equal(t, []float64{1800, 7200, 10800}, ThreadGaps(nodes, threadOf))
	assert.Empty(t, ThreadGaps(nodes, nil))
}

func TestBuildSubjectROC(t *testing.T) {
	groups := SubjectGroups{
		"status": {
			{ID: 1, Date: t0},
			{ID: 2, Date: t0.Add(time.Minute)},
			{ID: 3, Date: t0.Add(time.Hour)},
		},
		"lunch": {
			{ID: 4, Date: t0},
			{ID: 9, Date: t0.Add(time.Second)},
		},
	}
	threadOf := map[int64]int64{1: 1, 2: 1, 3: 3, 4: 4}

	roc, err := BuildSubjectROC(groups, threadOf, 0)
	require.NoError(t, err)
	assert.Equal(t, FPCount{FalsePositives: 2, Pairs: 3}, roc.BySubject["status"])
	assert.NotContains(t, roc.BySubject, "lunch")
	require.Len(t, roc.Curve, 3)
	assert.Equal(t, time.Minute, roc.Curve[0].Gap)
	assert.Equal(t, 1.0, roc.Curve[0].TPR)
	assert.Equal(t, 0.0, roc.Curve[0].FPR)
	assert.Equal(t, 1.0, roc.Curve[2].FPR)
	assert.InDelta(t, 2.0/3.0, roc.FPRate, 1e-12)

	t.Run("max gap filter", func(t *testing.T) {
		roc, err := BuildSubjectROC(groups, threadOf, 2*time.Minute)
		require.NoError(t, err)
		assert.Len(t, roc.Curve, 1)
	})

	t.Run("no pairs", func(t *testing.T) {
		_, err := BuildSubjectROC(groups, map[int64]int64{}, 0)
		assert.ErrorIs(t, err, ErrNoSubjectPairs)
	})

	t.Run("no true positives", func(t *testing.T) {
		roc, err := BuildSubjectROC(groups, map[int64]int64{1: 1, 2: 2}, 0)
		require.NoError(t, err)
		require.Len(t, roc.Curve, 1)
		assert.Equal(t, 0.0, roc.Curve[0].TPR)
		assert.Equal(t, 1.0, roc.Curve[0].FPR)
	})
}
