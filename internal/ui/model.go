// Package ui is the console shell: it owns the active route, renders the
// page for it and surfaces error toasts no matter which page produced
// them.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"omnibot-console/internal/alerts"
	"omnibot-console/internal/api"
	"omnibot-console/internal/appbus"
	"omnibot-console/internal/clipboard"
	"omnibot-console/internal/config"
	"omnibot-console/internal/export"
	"omnibot-console/internal/flow"
	"omnibot-console/internal/routes"
	"omnibot-console/internal/session"
)

// Deps is everything the shell needs; main wires it once.
type Deps struct {
	Cfg      config.AppConfig
	Store    *session.Store
	Client   *api.Client
	Bus      *appbus.Bus
	Feed     *alerts.Feed
	Exporter *export.Exporter
}

type Model struct {
	deps Deps

	route  routes.ID
	authed bool

	width  int
	height int

	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	busy     bool
	status   string

	// auth form state, shared by the login and signup screens
	emailInput    textinput.Model
	passwordInput textinput.Model
	passwordFocus bool
	authErr       string

	// page data
	user          api.User
	bots          []api.Bot
	botCursor     int
	numbers       []api.Number
	numberCursor  int
	whatsapp      map[string]api.WhatsAppSession
	graph         flow.Graph
	workspaces    []api.Workspace
	members       []api.Member
	plan          api.Plan
	usage         api.Usage
	checkoutURL   string
	convList      list.Model
	transcript    viewport.Model
	messages      map[string][]api.Message
	rendered      map[string]string
	selectedConv  string
	searchInput   textinput.Model
	searchMode    bool
	searchQuery   string
	matchCount    int

	// live conversation stream; cancelled on every exit path
	streamCancel context.CancelFunc
	streamCh     <-chan api.StreamEvent

	busEvents <-chan appbus.Event
	busCancel func()

	toastTicking bool
}

func NewModel(deps Deps) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Points

	h := help.New()

	email := textinput.New()
	email.Placeholder = "email"
	email.CharLimit = 128
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword

	search := textinput.New()
	search.Placeholder = "Search transcript..."
	search.Prompt = "/ "
	search.CharLimit = 128

	cl := list.New([]list.Item{}, list.NewDefaultDelegate(), 40, 20)
	cl.Title = "Conversations"
	cl.SetShowFilter(false)
	cl.SetFilteringEnabled(false)
	cl.SetShowStatusBar(false)
	cl.SetShowHelp(false)
	cl.DisableQuitKeybindings()

	vp := viewport.New(60, 20)

	authed := deps.Store.Authenticated()
	m := Model{
		deps:          deps,
		route:         routes.Initial(authed, deps.Store.Route()),
		authed:        authed,
		spinner:       sp,
		help:          h,
		keys:          defaultKeys(),
		emailInput:    email,
		passwordInput: password,
		searchInput:   search,
		convList:      cl,
		transcript:    vp,
		whatsapp:      make(map[string]api.WhatsAppSession),
		messages:      make(map[string][]api.Message),
		rendered:      make(map[string]string),
	}

	events, cancel := deps.Bus.Subscribe()
	m.busEvents = events
	m.busCancel = cancel
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, waitForBusEvent(m.busEvents)}
	if cmd := m.loadCmd(m.route); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// --- messages -------------------------------------------------------------

type busEventMsg struct{ ev appbus.Event }
type busClosedMsg struct{}
type toastTickMsg struct{}

type authResultMsg struct {
	token string
	mode  routes.ID // login or signup
	err   error
}
type devTokenMsg struct {
	token string
	err   error
}
type meMsg struct {
	user api.User
	err  error
}
type dashboardMsg struct {
	bots          []api.Bot
	conversations []api.Conversation
	usage         api.Usage
	err           error
}
type botsMsg struct {
	bots []api.Bot
	err  error
}
type botCreatedMsg struct {
	bot api.Bot
	err error
}
type numbersMsg struct {
	numbers []api.Number
	err     error
}
type whatsappMsg struct {
	ws  api.WhatsAppSession
	err error
}
type flowMsg struct {
	graph flow.Graph
	err   error
}
type conversationsMsg struct {
	conversations []api.Conversation
	err           error
}
type transcriptMsg struct {
	conversationID string
	messages       []api.Message
	err            error
}
type renderMsg struct {
	conversationID string
	rendered       string
	err            error
}
type streamOpenedMsg struct {
	conversationID string
	events         <-chan api.StreamEvent
	err            error
}
type streamEventMsg struct {
	ev api.StreamEvent
	ch <-chan api.StreamEvent
}
type streamClosedMsg struct{}
type workspacesMsg struct {
	workspaces []api.Workspace
	members    []api.Member
	plan       api.Plan
	usage      api.Usage
	err        error
}
type checkoutMsg struct {
	url string
	err error
}
type exportDoneMsg struct {
	path string
	err  error
}
type copyDoneMsg struct{ err error }
type resetDoneMsg struct{ err error }

// --- commands -------------------------------------------------------------

func waitForBusEvent(ch <-chan appbus.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return busClosedMsg{}
		}
		return busEventMsg{ev: ev}
	}
}

func (m Model) loginCmd(mode routes.ID, email, password string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		var tok string
		var err error
		if mode == routes.Signup {
			tok, err = client.Register(ctx, email, password)
		} else {
			tok, err = client.Login(ctx, email, password)
		}
		return authResultMsg{token: tok, mode: mode, err: err}
	}
}

func (m Model) devTokenCmd() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		tok, err := client.DevToken(ctx)
		return devTokenMsg{token: tok, err: err}
	}
}

func (m Model) resetPasswordCmd(email string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return resetDoneMsg{err: client.ResetPassword(ctx, email)}
	}
}

func (m Model) meCmd() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		user, err := client.Me(context.Background())
		return meMsg{user: user, err: err}
	}
}

func (m Model) dashboardCmd() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		ctx := context.Background()
		bots, err := client.ListBots(ctx)
		if err != nil {
			return dashboardMsg{err: err}
		}
		convs, err := client.ListConversations(ctx)
		if err != nil {
			return dashboardMsg{err: err}
		}
		var usage api.Usage
		if wss, err := client.ListWorkspaces(ctx); err == nil && len(wss) > 0 {
			usage, _ = client.Usage(ctx, wss[0].ID)
		}
		return dashboardMsg{bots: bots, conversations: convs, usage: usage}
	}
}

func (m Model) botsCmd() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		bots, err := client.ListBots(context.Background())
		return botsMsg{bots: bots, err: err}
	}
}

func (m Model) createBotCmd(name string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		bot, err := client.CreateBot(context.Background(), name, "whatsapp")
		return botCreatedMsg{bot: bot, err: err}
	}
}

func (m Model) numbersCmd() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		numbers, err := client.ListNumbers(context.Background())
		return numbersMsg{numbers: numbers, err: err}
	}
}

func (m Model) whatsappCmd(action string, numberID string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		ctx := context.Background()
		var ws api.WhatsAppSession
		var err error
		switch action {
		case "init":
			ws, err = client.InitWhatsAppSession(ctx, numberID)
		case "scan":
			ws, err = client.MockScan(ctx, numberID)
		default:
			ws, err = client.WhatsAppStatus(ctx, numberID)
		}
		return whatsappMsg{ws: ws, err: err}
	}
}

func (m Model) flowCmd(botID string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		graph, err := client.GetFlow(context.Background(), botID)
		return flowMsg{graph: graph, err: err}
	}
}

func (m Model) saveFlowCmd(botID string, g flow.Graph) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		graph, err := client.SaveFlow(context.Background(), botID, g)
		return flowMsg{graph: graph, err: err}
	}
}

func (m Model) publishFlowCmd(botID string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		graph, err := client.PublishFlow(context.Background(), botID)
		return flowMsg{graph: graph, err: err}
	}
}

func (m Model) conversationsCmd() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		convs, err := client.ListConversations(context.Background())
		return conversationsMsg{conversations: convs, err: err}
	}
}

func (m Model) transcriptCmd(conversationID string) tea.Cmd {
	if conversationID == "" {
		return nil
	}
	client := m.deps.Client
	return func() tea.Msg {
		msgs, err := client.ListMessages(context.Background(), conversationID)
		return transcriptMsg{conversationID: conversationID, messages: msgs, err: err}
	}
}

func (m Model) renderTranscriptCmd(conv api.Conversation, msgs []api.Message, wrap int) tea.Cmd {
	return func() tea.Msg {
		md := export.BuildConversationMarkdown(conv, msgs, time.Now().UTC())
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return renderMsg{conversationID: conv.ID, rendered: md}
		}
		out, err := r.Render(md)
		if err != nil {
			return renderMsg{conversationID: conv.ID, rendered: md}
		}
		return renderMsg{conversationID: conv.ID, rendered: out}
	}
}

func (m Model) openStreamCmd(ctx context.Context, conversationID string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		events, err := client.StreamConversation(ctx, conversationID)
		return streamOpenedMsg{conversationID: conversationID, events: events, err: err}
	}
}

func waitForStreamEvent(ch <-chan api.StreamEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return streamEventMsg{ev: ev, ch: ch}
	}
}

func (m Model) workspacesCmd() tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		ctx := context.Background()
		wss, err := client.ListWorkspaces(ctx)
		if err != nil {
			return workspacesMsg{err: err}
		}
		out := workspacesMsg{workspaces: wss}
		if len(wss) > 0 {
			out.members, _ = client.Members(ctx, wss[0].ID)
			out.plan, _ = client.Plan(ctx, wss[0].ID)
			out.usage, _ = client.Usage(ctx, wss[0].ID)
		}
		return out
	}
}

func (m Model) checkoutCmd(workspaceID, plan string) tea.Cmd {
	client := m.deps.Client
	return func() tea.Msg {
		cs, err := client.CreateCheckoutSession(context.Background(), workspaceID, plan)
		return checkoutMsg{url: cs.URL, err: err}
	}
}

func (m Model) exportCmd(conv api.Conversation, msgs []api.Message) tea.Cmd {
	exp := m.deps.Exporter
	return func() tea.Msg {
		path, err := exp.Export(conv, msgs)
		return exportDoneMsg{path: path, err: err}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return copyDoneMsg{err: clipboard.Copy(ctx, text)}
	}
}

// loadCmd kicks off the data fetch a route needs when it becomes active.
func (m Model) loadCmd(route routes.ID) tea.Cmd {
	switch route {
	case routes.Dashboard:
		return m.dashboardCmd()
	case routes.Bots:
		return m.botsCmd()
	case routes.Flow:
		return m.botsCmd() // flow needs a bot to edit first
	case routes.Config:
		return m.numbersCmd()
	case routes.Conversations:
		return m.conversationsCmd()
	case routes.Profile:
		return m.meCmd()
	case routes.Workspaces:
		return m.workspacesCmd()
	default:
		return nil
	}
}

// navigate runs a navigation intent through the guard, persists the
// effective route and starts that page's load.
func (m *Model) navigate(requested routes.ID) tea.Cmd {
	effective := routes.Resolve(m.authed, requested)
	if err := m.deps.Store.SetRoute(effective); err != nil {
		m.status = "Could not persist route: " + err.Error()
	}
	changed := m.route != effective
	m.route = effective
	if !changed {
		return nil
	}
	cmds := []tea.Cmd{m.releaseStream()}
	if cmd := m.loadCmd(effective); cmd != nil {
		m.busy = true
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// releaseStream closes the live conversation stream, if any.
func (m *Model) releaseStream() tea.Cmd {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
		m.streamCh = nil
	}
	return nil
}

func (m *Model) logout() tea.Cmd {
	if err := m.deps.Store.ClearToken(); err != nil {
		m.status = "Could not clear session: " + err.Error()
	}
	m.authed = false
	m.user = api.User{}
	if forced, ok := routes.Demote(m.authed, m.route); ok {
		return m.navigate(forced)
	}
	return m.navigate(routes.Login)
}

// applySessionChange mirrors a foreign-process store mutation into the
// shell, including the forced fall-back to the login screen when the
// session disappears under a protected route.
func (m *Model) applySessionChange(ev appbus.SessionChanged) tea.Cmd {
	var cmds []tea.Cmd
	// The event carries the session state observed alongside the write;
	// adopt it before resolving so a sign-out delivered together with a
	// route change can never render a protected page.
	m.authed = ev.TokenPresent
	if ev.Route != "" && routes.Known(ev.Route) {
		effective := routes.Resolve(m.authed, ev.Route)
		if effective != m.route {
			m.route = effective
			cmds = append(cmds, m.releaseStream())
			if cmd := m.loadCmd(effective); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	} else {
		if forced, ok := routes.Demote(m.authed, m.route); ok {
			m.route = forced
			cmds = append(cmds, m.releaseStream())
		}
		if m.authed && m.user.ID == "" {
			cmds = append(cmds, m.meCmd())
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m *Model) ensureToastTick() tea.Cmd {
	if m.toastTicking || m.deps.Feed.Len() == 0 {
		return nil
	}
	m.toastTicking = true
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg { return toastTickMsg{} })
}

func (m *Model) selectedConversation() (api.Conversation, bool) {
	item, ok := m.convList.SelectedItem().(convItem)
	if !ok {
		return api.Conversation{}, false
	}
	return item.c, true
}

func (m *Model) currentBot() (api.Bot, bool) {
	if len(m.bots) == 0 {
		return api.Bot{}, false
	}
	if m.botCursor >= len(m.bots) {
		m.botCursor = 0
	}
	return m.bots[m.botCursor], true
}

func (m *Model) currentNumber() (api.Number, bool) {
	if len(m.numbers) == 0 {
		return api.Number{}, false
	}
	if m.numberCursor >= len(m.numbers) {
		m.numberCursor = 0
	}
	return m.numbers[m.numberCursor], true
}

type convItem struct{ c api.Conversation }

func (i convItem) Title() string {
	title := i.c.Contact
	if i.c.Unread > 0 {
		title += fmt.Sprintf(" (%d)", i.c.Unread)
	}
	return title
}

func (i convItem) Description() string {
	return i.c.Channel + " | last " + i.c.LastMessageAt.Local().Format("2006-01-02 15:04")
}

func (i convItem) FilterValue() string {
	return strings.ToLower(i.c.Contact + " " + i.c.Channel)
}
