// Package flow holds the plain node/edge graph edited by the flow builder.
// The graph is data only: execution lives in the backend, and the console
// round-trips it as JSON without validating connections.
package flow

import (
	"encoding/json"
	"fmt"
)

// NodeKind is the type of a flow node.
type NodeKind string

const (
	NodeTrigger   NodeKind = "trigger"
	NodeMessage   NodeKind = "message"
	NodeQuestion  NodeKind = "question"
	NodeCondition NodeKind = "condition"
	NodeHandoff   NodeKind = "handoff"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Node struct {
	ID       string            `json:"id"`
	Kind     NodeKind          `json:"kind"`
	Label    string            `json:"label"`
	Position Position          `json:"position"`
	Data     map[string]string `json:"data,omitempty"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the unit the backend stores per bot.
type Graph struct {
	BotID     string `json:"botId,omitempty"`
	Version   int    `json:"version,omitempty"`
	Published bool   `json:"published,omitempty"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
}

// Empty returns a graph with a single trigger node, the state a brand-new
// bot starts from.
func Empty(botID string) Graph {
	return Graph{
		BotID: botID,
		Nodes: []Node{{
			ID:       "start",
			Kind:     NodeTrigger,
			Label:    "Incoming message",
			Position: Position{X: 0, Y: 0},
		}},
	}
}

func Marshal(g Graph) ([]byte, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode flow graph: %w", err)
	}
	return b, nil
}

func Unmarshal(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("decode flow graph: %w", err)
	}
	return g, nil
}

// Summary renders a one-line-per-node description for the console view.
func Summary(g Graph) []string {
	out := make([]string, 0, len(g.Nodes))
	degree := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		degree[e.Source]++
	}
	for _, n := range g.Nodes {
		out = append(out, fmt.Sprintf("[%s] %s (%d out)", n.Kind, n.Label, degree[n.ID]))
	}
	return out
}
