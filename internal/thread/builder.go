package thread

import (
	"time"

	"go.uber.org/zap"
)

// Node is the thread-relevant view of one stored message
type Node struct {
	ID        int64
	MessageID string
	// ThreadID is the assignment from the previous analysis pass, if any
	ThreadID *int64
	// Pending marks messages ingested since the previous pass
	Pending    bool
	References []string
	Date       *time.Time
	Subject    string
	FromMe     bool
	// OwnerActed is set when the owner answered or forwarded the message
	OwnerActed bool
}

// Config holds the thread builder settings
type Config struct {
	Linker        LinkerConfig
	ReplyPrefixes []string
	// MinThreadGaps is the number of reference gaps required before
	// subject links are proposed
	MinThreadGaps int
}

// DefaultConfig returns the default builder settings
func DefaultConfig() Config {
	return Config{
		Linker:        DefaultLinkerConfig(),
		ReplyPrefixes: DefaultReplyPrefixes,
		MinThreadGaps: 1,
	}
}

// Assignment is the thread membership of one message
type Assignment struct {
	ThreadID    int64
	OwnerThread bool
}

// Result is the outcome of one graph build
type Result struct {
	Graph *Graph
	Components
	// OwnerThreads holds representatives of owner-participated threads
	OwnerThreads map[int64]bool
	// Subjects are the scored subject groups, most significant first
	Subjects []SubjectScore
	// Accepted are the subject links added to the graph
	Accepted []Link
	// Duplicates are (canonical, duplicate) pairs sharing a message identifier
	Duplicates [][2]int64
	// LinkingErr explains why subject linking was skipped, if it was
	LinkingErr error
}

// Assignments returns the thread membership of every threaded message.
// Messages without any edge belong to no thread.
func (r *Result) Assignments() map[int64]Assignment {
	out := make(map[int64]Assignment, len(r.ThreadOf))
	for id, tid := range r.ThreadOf {
		out[id] = Assignment{ThreadID: tid, OwnerThread: r.OwnerThreads[tid]}
	}
	return out
}

// IsOwnerThread reports whether the message belongs to an owner-participated thread
func (r *Result) IsOwnerThread(id int64) bool {
	tid, ok := r.ThreadOf[id]
	return ok && r.OwnerThreads[tid]
}

// Builder reconstructs threads from stored messages
type Builder struct {
	cfg    Config
	logger *zap.Logger
}

// NewBuilder creates a thread builder
func NewBuilder(cfg Config, logger *zap.Logger) *Builder {
	if len(cfg.ReplyPrefixes) == 0 {
		cfg.ReplyPrefixes = DefaultReplyPrefixes
	}
	if cfg.MinThreadGaps < 1 {
		cfg.MinThreadGaps = 1
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Build merges historical assignments, duplicate identifiers, references of
// pending messages and accepted subject links into one graph, then
// recomputes every thread from scratch.
func (b *Builder) Build(nodes []Node) *Result {
	g := NewGraph()
	idx := NewIndex(nodes)

	for _, n := range nodes {
		if n.ThreadID != nil {
			g.AddEdge(n.ID, *n.ThreadID)
		}
	}

	dups := DuplicateEdges(nodes, idx)
	for _, e := range dups {
		g.AddEdge(e[0], e[1])
	}

	dangling := 0
	for _, n := range nodes {
		if !n.Pending {
			continue
		}
		for _, ref := range n.References {
			if id, ok := idx.Resolve(ref); ok {
				g.AddEdge(n.ID, id)
			} else {
				dangling++
			}
		}
	}

	res := &Result{Graph: g, Duplicates: dups}
	b.linkSubjects(nodes, res)

	res.Components = g.Components()
	res.OwnerThreads = make(map[int64]bool)
	for _, n := range nodes {
		if !n.FromMe && !n.OwnerActed {
			continue
		}
		if tid, ok := res.ThreadOf[n.ID]; ok {
			res.OwnerThreads[tid] = true
		}
	}

	b.logger.Debug("Thread graph built",
		zap.Int("messages", len(nodes)),
		zap.Int("graph_nodes", g.Len()),
		zap.Int("threads", len(res.Members)),
		zap.Int("owner_threads", len(res.OwnerThreads)),
		zap.Int("duplicates", len(dups)),
		zap.Int("subject_links", len(res.Accepted)),
		zap.Int("dangling_references", dangling))
	return res
}

// linkSubjects calibrates against the reference-only components and adds
// accepted subject links that touch at least one pending message.
func (b *Builder) linkSubjects(nodes []Node, res *Result) {
	gaps := ThreadGaps(nodes, res.Graph.Components().ThreadOf)
	if len(gaps) < b.cfg.MinThreadGaps {
		res.LinkingErr = ErrNoThreadHistory
		b.logger.Info("Subject linking disabled",
			zap.Int("thread_gaps", len(gaps)),
			zap.Int("min_thread_gaps", b.cfg.MinThreadGaps))
		return
	}

	pending := make(map[int64]bool)
	for _, n := range nodes {
		if n.Pending {
			pending[n.ID] = true
		}
	}

	groups := GroupBySubject(nodes, b.cfg.ReplyPrefixes)
	res.Subjects = ProposeLinks(groups, gaps, b.cfg.Linker)
	for _, s := range res.Subjects {
		for _, l := range s.Links {
			if !pending[l.From] && !pending[l.To] {
				continue
			}
			res.Graph.AddEdge(l.From, l.To)
			res.Accepted = append(res.Accepted, l)
		}
	}
}
