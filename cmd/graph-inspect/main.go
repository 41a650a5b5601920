// ABOUTME: Offline graph compiler CLI
// ABOUTME: Reads a JSON graph, compiles it, and prints the execution plan

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Tonewheel-Audio/tonewheel-go/pkg/engine"
)

type graphFile struct {
	Nodes []nodeSpec `json:"nodes"`
}

type nodeSpec struct {
	ID          string             `json:"id"`
	Type        string             `json:"type"`
	Connections []string           `json:"connections,omitempty"`
	Parameters  map[string]float64 `json:"parameters,omitempty"`
}

func main() {
	jsonOut := flag.Bool("json", false, "Print the plan as JSON")
	flag.Parse()
	log.SetFlags(0)

	if flag.NArg() != 1 {
		log.Fatalf("usage: graph-inspect [-json] <graph.json>")
	}

	graph, err := loadGraph(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}

	plan, err := engine.NewGraphCompiler().Compile(graph)
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}

	if *jsonOut {
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode plan: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Println("Execution order:")
	for i, id := range plan.ExecutionOrder {
		fmt.Printf("  %2d. %s\n", i+1, id)
	}

	if len(plan.Optimizations) == 0 {
		fmt.Println("No optimizations found")
		return
	}
	fmt.Println("Optimizations:")
	for _, opt := range plan.Optimizations {
		fmt.Printf("  %s\n", opt)
	}
}

func loadGraph(path string) (*engine.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file graphFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid graph file: %w", err)
	}

	g := engine.NewGraph()
	for _, spec := range file.Nodes {
		nodeType, err := parseNodeType(spec.Type)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(engine.Node{
			ID:          spec.ID,
			Type:        nodeType,
			Connections: spec.Connections,
			Parameters:  spec.Parameters,
		}); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func parseNodeType(s string) (engine.NodeType, error) {
	switch s {
	case "source":
		return engine.NodeSource, nil
	case "effect":
		return engine.NodeEffect, nil
	case "destination":
		return engine.NodeDestination, nil
	default:
		return 0, fmt.Errorf("unknown node type %q", s)
	}
}
