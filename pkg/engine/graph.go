// ABOUTME: Declarative audio graph model
// ABOUTME: Nodes, typed variants, and an insertion-ordered DAG container

package engine

import (
	"fmt"
)

// NodeType is the closed set of node variants. Analysis code switches
// exhaustively over it rather than comparing strings.
type NodeType int

const (
	NodeSource NodeType = iota
	NodeEffect
	NodeDestination
)

// String returns the canonical lowercase name of the type.
func (t NodeType) String() string {
	switch t {
	case NodeSource:
		return "source"
	case NodeEffect:
		return "effect"
	case NodeDestination:
		return "destination"
	default:
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
}

// Node is one processing node in a declarative graph. Nodes are immutable
// compiler inputs; edit the graph and recompile rather than mutating a
// node in place.
type Node struct {
	ID          string
	Type        NodeType
	Connections []string // ordered downstream node IDs
	Parameters  map[string]float64
}

// Graph is an ID-to-node mapping forming a DAG. Insertion order is
// preserved so compilation is reproducible; cycles are a caller error
// detected at compile time.
type Graph struct {
	nodes map[string]Node
	order []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]Node)}
}

// AddNode adds a node. A duplicate ID is a caller error.
func (g *Graph) AddNode(node Node) error {
	if node.ID == "" {
		return fmt.Errorf("engine: node with empty ID")
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("engine: duplicate node ID %q", node.ID)
	}

	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)

	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// NodeIDs returns all node IDs in insertion order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.order)
}
