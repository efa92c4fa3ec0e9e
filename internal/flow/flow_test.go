package flow

import (
	"reflect"
	"testing"
)

func TestRoundTripKeepsGraphShape(t *testing.T) {
	g := Graph{
		BotID:   "bot-1",
		Version: 3,
		Nodes: []Node{
			{ID: "start", Kind: NodeTrigger, Label: "Incoming message"},
			{ID: "greet", Kind: NodeMessage, Label: "Greeting", Position: Position{X: 120, Y: 40},
				Data: map[string]string{"text": "Olá! Como posso ajudar?"}},
		},
		Edges: []Edge{{ID: "e1", Source: "start", Target: "greet"}},
	}

	raw, err := Marshal(g)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(g, got) {
		t.Fatalf("graph changed across round trip:\n got %+v\nwant %+v", got, g)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte("{nodes:")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEmptyGraphHasTrigger(t *testing.T) {
	g := Empty("bot-9")
	if len(g.Nodes) != 1 || g.Nodes[0].Kind != NodeTrigger {
		t.Fatalf("unexpected empty graph: %+v", g)
	}
}

func TestSummaryCountsOutgoingEdges(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "a", Kind: NodeTrigger, Label: "Start"},
			{ID: "b", Kind: NodeMessage, Label: "Reply"},
		},
		Edges: []Edge{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "a", Target: "b"},
		},
	}
	lines := Summary(g)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "[trigger] Start (2 out)" {
		t.Fatalf("unexpected summary line: %q", lines[0])
	}
}
