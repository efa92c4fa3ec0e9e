package ui

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"omnibot-console/internal/alerts"
	"omnibot-console/internal/api"
	"omnibot-console/internal/appbus"
	"omnibot-console/internal/export"
	"omnibot-console/internal/flow"
	"omnibot-console/internal/routes"
	"omnibot-console/internal/session"
)

// newTestModel wires a shell against a throwaway store and bus. Returned
// commands are never executed, so the api client needs no live backend.
func newTestModel(t *testing.T) Model {
	t.Helper()

	store, err := session.Open(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := appbus.New()
	t.Cleanup(bus.Close)

	exp, err := export.New(t.TempDir())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	return NewModel(Deps{
		Store:    store,
		Client:   api.New(api.Config{BaseURL: "http://127.0.0.1:1"}),
		Bus:      bus,
		Feed:     alerts.New(nil),
		Exporter: exp,
	})
}

func authedTestModel(t *testing.T) Model {
	t.Helper()
	m := newTestModel(t)
	if err := m.deps.Store.SetToken("tok-test"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	m.authed = true
	m.route = routes.Dashboard
	return m
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestColdStartAnonymousLandsOnLogin(t *testing.T) {
	m := newTestModel(t)
	if m.route != routes.Login {
		t.Fatalf("anonymous cold start should land on login, got %q", m.route)
	}
}

func TestColdStartResumesPersistedRouteWhenAuthed(t *testing.T) {
	store, err := session.Open(filepath.Join(t.TempDir(), "state.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.SetToken("tok"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if err := store.SetRoute(routes.Flow); err != nil {
		t.Fatalf("set route: %v", err)
	}

	bus := appbus.New()
	t.Cleanup(bus.Close)
	exp, _ := export.New(t.TempDir())
	m := NewModel(Deps{
		Store:    store,
		Client:   api.New(api.Config{BaseURL: "http://127.0.0.1:1"}),
		Bus:      bus,
		Feed:     alerts.New(nil),
		Exporter: exp,
	})
	if m.route != routes.Flow {
		t.Fatalf("expected resumed flow route, got %q", m.route)
	}
}

func TestNavigationKeySwitchesRouteAndPersists(t *testing.T) {
	m := authedTestModel(t)

	updated, _ := m.Update(keyRune('3'))
	got := updated.(Model)

	if got.route != routes.Conversations {
		t.Fatalf("expected conversations route, got %q", got.route)
	}
	if got.deps.Store.Route() != routes.Conversations {
		t.Fatalf("route not persisted, store has %q", got.deps.Store.Route())
	}
}

func TestProtectedNavigationWhileAnonymousFallsToLogin(t *testing.T) {
	m := newTestModel(t)
	m.route = routes.Login

	cmd := m.navigate(routes.Workspaces)
	_ = cmd

	if m.route != routes.Login {
		t.Fatalf("guard should hold anonymous session on login, got %q", m.route)
	}
}

func TestLogoutClearsTokenAndDemotes(t *testing.T) {
	m := authedTestModel(t)

	updated, _ := m.Update(keyRune('L'))
	got := updated.(Model)

	if got.route != routes.Login {
		t.Fatalf("expected login after logout, got %q", got.route)
	}
	if got.deps.Store.Authenticated() {
		t.Fatalf("token should be cleared after logout")
	}
}

func TestBusErrorEventBecomesToast(t *testing.T) {
	m := authedTestModel(t)

	updated, _ := m.Update(busEventMsg{ev: appbus.ErrorRaised{Title: "HTTP 500", Detail: "db down"}})
	got := updated.(Model)

	items := got.deps.Feed.Items()
	if len(items) != 1 {
		t.Fatalf("expected one toast, got %d", len(items))
	}
	if items[0].Title != "HTTP 500" || items[0].Detail != "db down" {
		t.Fatalf("unexpected toast: %+v", items[0])
	}
}

func TestDismissKeyRemovesNewestToast(t *testing.T) {
	m := authedTestModel(t)
	m.deps.Feed.Push("first", "")
	m.deps.Feed.Push("second", "")

	updated, _ := m.Update(keyRune('x'))
	got := updated.(Model)

	items := got.deps.Feed.Items()
	if len(items) != 1 || items[0].Title != "first" {
		t.Fatalf("expected newest toast dismissed, got %+v", items)
	}
}

func TestForeignTokenClearDemotesProtectedRoute(t *testing.T) {
	m := authedTestModel(t)
	m.route = routes.Conversations

	updated, _ := m.Update(busEventMsg{ev: appbus.SessionChanged{TokenPresent: false}})
	got := updated.(Model)

	if got.authed {
		t.Fatalf("expected authed=false after foreign sign-out")
	}
	if got.route != routes.Login {
		t.Fatalf("expected forced login route, got %q", got.route)
	}
}

func TestForeignSignOutWithRouteWriteResolvesToLogin(t *testing.T) {
	m := authedTestModel(t)
	m.route = routes.Dashboard

	// A foreign process cleared the token and wrote a route in the same
	// poll window; the route must resolve against the new session state.
	updated, _ := m.Update(busEventMsg{ev: appbus.SessionChanged{TokenPresent: false, Route: routes.Bots}})
	got := updated.(Model)

	if got.authed {
		t.Fatalf("expected authed=false from the event's session state")
	}
	if got.route != routes.Login {
		t.Fatalf("protected route must not survive a sign-out, got %q", got.route)
	}
}

func TestForeignRouteChangeIsAdopted(t *testing.T) {
	m := authedTestModel(t)

	updated, _ := m.Update(busEventMsg{ev: appbus.SessionChanged{TokenPresent: true, Route: routes.Bots}})
	got := updated.(Model)

	if got.route != routes.Bots {
		t.Fatalf("expected adopted bots route, got %q", got.route)
	}
}

func TestNavigateRequestedEventRunsThroughGuard(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.Update(busEventMsg{ev: appbus.NavigateRequested{Route: routes.Dashboard}})
	got := updated.(Model)

	if got.route != routes.Login {
		t.Fatalf("anonymous navigate request should resolve to login, got %q", got.route)
	}
}

func TestAuthResultPersistsTokenAndRequestsDashboard(t *testing.T) {
	m := newTestModel(t)
	events, cancel := m.deps.Bus.Subscribe()
	defer cancel()

	updated, _ := m.Update(authResultMsg{token: "tok-1", mode: routes.Login})
	got := updated.(Model)

	if !got.authed {
		t.Fatalf("expected authed after successful sign-in")
	}
	if tok, ok := got.deps.Store.Token(); !ok || tok != "tok-1" {
		t.Fatalf("token not persisted, got %q ok=%v", tok, ok)
	}

	select {
	case ev := <-events:
		nav, ok := ev.(appbus.NavigateRequested)
		if !ok || nav.Route != routes.Dashboard {
			t.Fatalf("expected dashboard navigation request, got %#v", ev)
		}
	default:
		t.Fatalf("expected a navigation request on the bus")
	}
}

func TestAuthResultErrorStaysOnLogin(t *testing.T) {
	m := newTestModel(t)
	m.passwordInput.SetValue("wrong")

	updated, _ := m.Update(authResultMsg{mode: routes.Login, err: api.ErrStatus})
	got := updated.(Model)

	if got.authed {
		t.Fatalf("failed sign-in must not authenticate")
	}
	if got.authErr == "" {
		t.Fatalf("expected inline auth error")
	}
	if got.passwordInput.Value() != "" {
		t.Fatalf("password field should be cleared after failure")
	}
}

func TestSearchHighlightCountsMatches(t *testing.T) {
	m := authedTestModel(t)
	m.route = routes.Conversations
	m.selectedConv = "conv-1"
	m.rendered["conv-1"] = "ajuda com o pedido\nsem resposta\nAJUDA urgente"
	m.searchQuery = "ajuda"

	m.refreshTranscript()

	if m.matchCount != 2 {
		t.Fatalf("expected 2 matches, got %d", m.matchCount)
	}
	if !strings.Contains(m.transcript.View(), "pedido") {
		t.Fatalf("transcript content missing after highlight")
	}
}

func TestAddNodeGrowsGraph(t *testing.T) {
	m := authedTestModel(t)
	m.route = routes.Flow
	m.bots = []api.Bot{{ID: "bot-1", Name: "Suporte"}}
	m.graph = flow.Empty("bot-1")

	updated, _ := m.Update(keyRune('a'))
	got := updated.(Model)

	if len(got.graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(got.graph.Nodes))
	}
	if len(got.graph.Edges) != 1 {
		t.Fatalf("expected connecting edge, got %d", len(got.graph.Edges))
	}
	if got.graph.Edges[0].Source != "start" {
		t.Fatalf("new node should hang off the trigger, edge=%+v", got.graph.Edges[0])
	}
}

func TestStreamEventAppendsToTranscript(t *testing.T) {
	m := authedTestModel(t)
	m.route = routes.Conversations
	m.selectedConv = "conv-1"
	m.setConversations([]api.Conversation{{ID: "conv-1", Contact: "Maria"}})

	ch := make(chan api.StreamEvent, 1)
	updated, _ := m.Update(streamEventMsg{
		ev: api.StreamEvent{Event: "message", Message: api.Message{ConversationID: "conv-1", Sender: "contact", Content: "oi"}},
		ch: ch,
	})
	got := updated.(Model)

	msgs := got.messages["conv-1"]
	if len(msgs) != 1 || msgs[0].Content != "oi" {
		t.Fatalf("expected streamed message appended, got %+v", msgs)
	}
}

func TestViewShowsToastOverlay(t *testing.T) {
	m := authedTestModel(t)
	m.width = 100
	m.height = 30
	m.deps.Feed.Push("Network error", "connection refused")

	out := m.View()
	if !strings.Contains(out, "Network error") {
		t.Fatalf("toast missing from view:\n%s", out)
	}
}

func TestAuthViewTogglesBetweenScreens(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	got := updated.(Model)
	if got.route != routes.Signup {
		t.Fatalf("expected signup screen, got %q", got.route)
	}

	updated, _ = got.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	got = updated.(Model)
	if got.route != routes.Login {
		t.Fatalf("expected login screen, got %q", got.route)
	}
}

func TestTypingDigitsInAuthFormDoesNotNavigate(t *testing.T) {
	m := authedTestModel(t)
	m.route = routes.Login

	updated, _ := m.Update(keyRune('3'))
	got := updated.(Model)

	if got.route != routes.Login {
		t.Fatalf("digits typed into the auth form must not navigate, got %q", got.route)
	}
	if got.emailInput.Value() != "3" {
		t.Fatalf("expected digit captured by email input, got %q", got.emailInput.Value())
	}
}
