package mockapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"omnibot-console/internal/api"
	"omnibot-console/internal/flow"
)

func newTestClient(t *testing.T, srv *Server) (*api.Client, func() (string, bool)) {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	var token string
	source := func() (string, bool) { return token, token != "" }
	client := api.New(api.Config{BaseURL: ts.URL, TokenSource: source})

	tok, err := client.DevToken(context.Background())
	if err != nil {
		t.Fatalf("dev token: %v", err)
	}
	token = tok
	return client, source
}

func TestLoginIssuesToken(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()
	client := api.New(api.Config{BaseURL: ts.URL})

	tok, err := client.Login(context.Background(), "admin@omnibot.dev", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok == "" {
		t.Fatal("expected a token")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()
	client := api.New(api.Config{BaseURL: ts.URL})

	if _, err := client.Login(context.Background(), "admin@omnibot.dev", "wrong"); err == nil {
		t.Fatal("expected login rejection")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := httptest.NewServer(New().Router())
	defer ts.Close()
	client := api.New(api.Config{BaseURL: ts.URL})

	if _, err := client.ListBots(context.Background()); err == nil {
		t.Fatal("expected 401 without bearer token")
	}
}

func TestBotAndFlowLifecycle(t *testing.T) {
	client, _ := newTestClient(t, New())
	ctx := context.Background()

	bot, err := client.CreateBot(ctx, "Vendas", "telegram")
	if err != nil {
		t.Fatalf("create bot: %v", err)
	}
	if bot.Status != "draft" || bot.Channel != "telegram" {
		t.Fatalf("unexpected bot: %+v", bot)
	}

	g, err := client.GetFlow(ctx, bot.ID)
	if err != nil {
		t.Fatalf("get flow: %v", err)
	}
	if len(g.Nodes) != 1 || g.Nodes[0].Kind != flow.NodeTrigger {
		t.Fatalf("new bot should start with a trigger-only graph: %+v", g)
	}

	g.Nodes = append(g.Nodes, flow.Node{ID: "greet", Kind: flow.NodeMessage, Label: "Greeting"})
	g.Edges = append(g.Edges, flow.Edge{ID: "e1", Source: "start", Target: "greet"})
	saved, err := client.SaveFlow(ctx, bot.ID, g)
	if err != nil {
		t.Fatalf("save flow: %v", err)
	}
	if saved.Version != 1 || saved.Published {
		t.Fatalf("save should bump version and reset publish: %+v", saved)
	}

	published, err := client.PublishFlow(ctx, bot.ID)
	if err != nil {
		t.Fatalf("publish flow: %v", err)
	}
	if !published.Published {
		t.Fatal("expected published graph")
	}
}

func TestWhatsAppPairingLifecycle(t *testing.T) {
	client, _ := newTestClient(t, New())
	ctx := context.Background()

	ws, err := client.InitWhatsAppSession(ctx, "num-1")
	if err != nil {
		t.Fatalf("init session: %v", err)
	}
	if ws.Status != "waiting_scan" || ws.QRCode == "" {
		t.Fatalf("unexpected pairing state: %+v", ws)
	}

	ws, err = client.MockScan(ctx, "num-1")
	if err != nil {
		t.Fatalf("mock scan: %v", err)
	}
	if ws.Status != "connected" || ws.QRCode != "" {
		t.Fatalf("scan should connect and drop the QR: %+v", ws)
	}

	numbers, err := client.ListNumbers(ctx)
	if err != nil {
		t.Fatalf("list numbers: %v", err)
	}
	if numbers[0].Status != "connected" {
		t.Fatalf("number status should follow pairing: %+v", numbers[0])
	}
}

func TestMockScanWithoutPairingConflicts(t *testing.T) {
	client, _ := newTestClient(t, New())
	if _, err := client.MockScan(context.Background(), "num-1"); err == nil {
		t.Fatal("expected conflict without a pairing session")
	}
}

func TestWorkspaceBillingEndpoints(t *testing.T) {
	client, _ := newTestClient(t, New())
	ctx := context.Background()

	wss, err := client.ListWorkspaces(ctx)
	if err != nil || len(wss) == 0 {
		t.Fatalf("list workspaces: %v (%d)", err, len(wss))
	}

	plan, err := client.Plan(ctx, wss[0].ID)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Name != "starter" {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	usage, err := client.Usage(ctx, wss[0].ID)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.MessageLimit != plan.MessageLimit {
		t.Fatalf("usage limit %d should match plan limit %d", usage.MessageLimit, plan.MessageLimit)
	}

	cs, err := client.CreateCheckoutSession(ctx, wss[0].ID, "pro")
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if cs.URL == "" {
		t.Fatal("expected a checkout URL")
	}
}

func TestConversationStreamDeliversAndStopsOnCancel(t *testing.T) {
	srv := New()
	srv.streamInterval = 20 * time.Millisecond
	client, _ := newTestClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := client.StreamConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}

	select {
	case ev, open := <-events:
		if !open {
			t.Fatal("stream closed before first event")
		}
		if ev.Event != "message" || ev.Message.ConversationID != "conv-1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no stream event arrived")
	}

	// Navigating away: cancel must release the stream on every exit path.
	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-events:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("stream channel not closed after cancel")
		}
	}
}
