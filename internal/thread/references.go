package thread

import (
	"strings"
)

// ExtractReferences returns the foreign message identifiers a message refers
// to: the whitespace-separated "references" header followed by "in-reply-to"
// when it is not already listed. Header names are expected in lower case.
func ExtractReferences(headers map[string]string) []string {
	refs := strings.Fields(headers["references"])
	if reply := strings.TrimSpace(headers["in-reply-to"]); reply != "" {
		for _, r := range refs {
			if r == reply {
				return refs
			}
		}
		refs = append(refs, reply)
	}
	return refs
}

// Index maps message identifiers to the lowest internal id carrying them
type Index map[string]int64

// NewIndex builds the identifier index over the given nodes
func NewIndex(nodes []Node) Index {
	idx := make(Index, len(nodes))
	for _, n := range nodes {
		if n.MessageID == "" {
			continue
		}
		if cur, ok := idx[n.MessageID]; !ok || n.ID < cur {
			idx[n.MessageID] = n.ID
		}
	}
	return idx
}

// Resolve returns the internal id for a message identifier
func (idx Index) Resolve(messageID string) (int64, bool) {
	id, ok := idx[messageID]
	return id, ok
}

// DuplicateEdges pairs every node with the canonical (lowest) id sharing its
// message identifier.
func DuplicateEdges(nodes []Node, idx Index) [][2]int64 {
	var edges [][2]int64
	for _, n := range nodes {
		if n.MessageID == "" {
			continue
		}
		if canonical := idx[n.MessageID]; canonical != n.ID {
			edges = append(edges, [2]int64{canonical, n.ID})
		}
	}
	return edges
}
