// Package thread reconstructs conversations from message metadata.
package thread

import (
	"sort"
)

// Graph is an undirected adjacency map over internal message ids
type Graph struct {
	adj map[int64]map[int64]struct{}
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{adj: make(map[int64]map[int64]struct{})}
}

// AddEdge links a and b in both directions. Self loops are ignored.
func (g *Graph) AddEdge(a, b int64) {
	if a == b {
		return
	}
	g.link(a, b)
	g.link(b, a)
}

func (g *Graph) link(a, b int64) {
	set, ok := g.adj[a]
	if !ok {
		set = make(map[int64]struct{})
		g.adj[a] = set
	}
	set[b] = struct{}{}
}

// HasEdge reports whether a and b are adjacent
func (g *Graph) HasEdge(a, b int64) bool {
	_, ok := g.adj[a][b]
	return ok
}

// Len returns the number of nodes with at least one edge
func (g *Graph) Len() int {
	return len(g.adj)
}

// Nodes returns every node in ascending order
func (g *Graph) Nodes() []int64 {
	nodes := make([]int64, 0, len(g.adj))
	for id := range g.adj {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Components holds the connected components of a graph
type Components struct {
	// ThreadOf maps a node to its component representative
	ThreadOf map[int64]int64
	// Members maps a representative to its ascending member ids
	Members map[int64][]int64
}

// Components labels every connected component by its minimum member id.
// Traversal uses an explicit stack so reply chains of any length are safe.
func (g *Graph) Components() Components {
	c := Components{
		ThreadOf: make(map[int64]int64, len(g.adj)),
		Members:  make(map[int64][]int64),
	}

	// Visiting roots in ascending order makes each root the component minimum.
	for _, root := range g.Nodes() {
		if _, seen := c.ThreadOf[root]; seen {
			continue
		}
		c.ThreadOf[root] = root
		members := []int64{root}
		stack := []int64{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for next := range g.adj[id] {
				if _, seen := c.ThreadOf[next]; seen {
					continue
				}
				c.ThreadOf[next] = root
				members = append(members, next)
				stack = append(stack, next)
			}
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		c.Members[root] = members
	}
	return c
}
