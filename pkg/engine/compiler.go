// ABOUTME: Audio graph compiler
// ABOUTME: Topological execution order plus advisory optimization tags

package engine

import (
	"fmt"
	"strings"
)

// CompiledGraph is the derived, disposable execution plan for a graph.
// Recompute it on every graph edit; it is never updated in place.
type CompiledGraph struct {
	// ExecutionOrder lists node IDs so every edge points earlier→later.
	ExecutionOrder []string

	// Optimizations is a set of advisory diagnostic tags with a stable
	// vocabulary ("parallel-groups:<ids>", "no-op:<id>", "cacheable:<id>")
	// for logging and a downstream executor. The compiler itself performs
	// no caching or skipping.
	Optimizations []string
}

// GraphCompiler turns a declarative graph into a CompiledGraph. It is a
// pure function of the graph: compiling an unchanged graph twice yields
// identical output.
type GraphCompiler struct{}

// NewGraphCompiler creates a compiler.
func NewGraphCompiler() *GraphCompiler {
	return &GraphCompiler{}
}

// Compile produces the execution order via Kahn's algorithm, breaking
// ties by node insertion order, then runs the optimization analysis.
// A cyclic or malformed graph is an error; the compiler never guesses a
// partial order.
func (c *GraphCompiler) Compile(g *Graph) (CompiledGraph, error) {
	if g == nil || g.Len() == 0 {
		return CompiledGraph{}, fmt.Errorf("engine: empty graph")
	}

	ids := g.NodeIDs()
	position := make(map[string]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}

	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		node, _ := g.Node(id)
		for _, target := range node.Connections {
			if _, ok := g.Node(target); !ok {
				return CompiledGraph{}, fmt.Errorf("engine: node %q connects to unknown node %q", id, target)
			}
			inDegree[target]++
		}
	}

	// Ready list kept sorted by insertion position for determinism.
	var ready []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(ids))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		node, _ := g.Node(id)
		for _, target := range node.Connections {
			inDegree[target]--
			if inDegree[target] == 0 {
				ready = insertByPosition(ready, target, position)
			}
		}
	}

	if len(order) != len(ids) {
		return CompiledGraph{}, fmt.Errorf("engine: graph contains a cycle (%d node(s) unresolved)", len(ids)-len(order))
	}

	return CompiledGraph{
		ExecutionOrder: order,
		Optimizations:  c.analyze(g, ids),
	}, nil
}

// insertByPosition inserts id into ready keeping insertion-order sorting.
func insertByPosition(ready []string, id string, position map[string]int) []string {
	i := len(ready)
	for j, existing := range ready {
		if position[id] < position[existing] {
			i = j
			break
		}
	}

	ready = append(ready, "")
	copy(ready[i+1:], ready[i:])
	ready[i] = id

	return ready
}

// analyze emits advisory tags. The rules are deliberately conservative: a
// node is never marked elidable or cacheable unless skipping or memoizing
// it is guaranteed not to change the signal.
func (c *GraphCompiler) analyze(g *Graph, ids []string) []string {
	var tags []string

	if groups := parallelGroups(g, ids); len(groups) > 1 {
		parts := make([]string, len(groups))
		for i, group := range groups {
			parts[i] = strings.Join(group, "+")
		}
		tags = append(tags, "parallel-groups:"+strings.Join(parts, "|"))
	}

	fanIn := make(map[string]int, len(ids))
	for _, id := range ids {
		node, _ := g.Node(id)
		for _, target := range node.Connections {
			fanIn[target]++
		}
	}

	for _, id := range ids {
		node, _ := g.Node(id)
		switch node.Type {
		case NodeEffect:
			// An effect with no configured parameters passes signal
			// through untouched; an effect fed by nothing is constant.
			if len(node.Parameters) == 0 {
				tags = append(tags, "no-op:"+id)
			}
			if fanIn[id] == 0 {
				tags = append(tags, "cacheable:"+id)
			}
		case NodeSource, NodeDestination:
			// Sources are time-varying and destinations are sinks;
			// neither is ever elidable or memoizable.
		}
	}

	return tags
}

// parallelGroups returns the weakly connected components of the graph in
// insertion order. Components with no path between them are independently
// evaluable.
func parallelGroups(g *Graph, ids []string) [][]string {
	adjacent := make(map[string][]string, len(ids))
	for _, id := range ids {
		node, _ := g.Node(id)
		for _, target := range node.Connections {
			adjacent[id] = append(adjacent[id], target)
			adjacent[target] = append(adjacent[target], id)
		}
	}

	seen := make(map[string]bool, len(ids))
	var groups [][]string

	for _, id := range ids {
		if seen[id] {
			continue
		}

		var group []string
		stack := []string{id}
		seen[id] = true

		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, current)

			for _, next := range adjacent[current] {
				if !seen[next] {
					seen[next] = true
					stack = append(stack, next)
				}
			}
		}

		groups = append(groups, group)
	}

	return groups
}
