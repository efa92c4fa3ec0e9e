package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"omnibot-console/internal/api"
	"omnibot-console/internal/appbus"
	"omnibot-console/internal/flow"
	"omnibot-console/internal/routes"
)

type keyMap struct {
	Dashboard     key.Binding
	Flow          key.Binding
	Conversations key.Binding
	Bots          key.Binding
	Config        key.Binding
	Profile       key.Binding
	Workspaces    key.Binding
	Refresh       key.Binding
	Dismiss       key.Binding
	Logout        key.Binding
	Search        key.Binding
	Export        key.Binding
	Copy          key.Binding
	NewItem       key.Binding
	Save          key.Binding
	Publish       key.Binding
	Pair          key.Binding
	Scan          key.Binding
	Cycle         key.Binding
	Submit        key.Binding
	SwitchScreen  key.Binding
	ResetPassword key.Binding
	DevToken      key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Dashboard:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "dashboard")),
		Flow:          key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "flow")),
		Conversations: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "conversations")),
		Bots:          key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "bots")),
		Config:        key.NewBinding(key.WithKeys("5"), key.WithHelp("5", "channels")),
		Profile:       key.NewBinding(key.WithKeys("6"), key.WithHelp("6", "profile")),
		Workspaces:    key.NewBinding(key.WithKeys("7"), key.WithHelp("7", "workspaces")),
		Refresh:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Dismiss:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss toast")),
		Logout:        key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log out")),
		Search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Export:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		Copy:          key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy last message")),
		NewItem:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Save:          key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save")),
		Publish:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "publish")),
		Pair:          key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "pair whatsapp")),
		Scan:          key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mock scan")),
		Cycle:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		Submit:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		SwitchScreen:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "login/signup")),
		ResetPassword: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset password")),
		DevToken:      key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "dev token")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:          key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Dashboard, k.Conversations, k.Refresh, k.Logout, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Dashboard, k.Flow, k.Conversations, k.Bots},
		{k.Config, k.Profile, k.Workspaces, k.Refresh},
		{k.Search, k.Export, k.Copy, k.Dismiss},
		{k.Save, k.Publish, k.Pair, k.Scan},
		{k.Logout, k.Help, k.Quit},
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizePanes()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case busEventMsg:
		cmd := m.handleBusEvent(msg.ev)
		return m, tea.Batch(cmd, waitForBusEvent(m.busEvents))

	case busClosedMsg:
		return m, nil

	case toastTickMsg:
		m.toastTicking = false
		cmd := m.ensureToastTick()
		return m, cmd

	case authResultMsg:
		return m.handleAuthResult(msg)

	case devTokenMsg:
		if msg.err != nil {
			m.busy = false
			m.authErr = "Dev token unavailable: " + msg.err.Error()
			return m, nil
		}
		return m.adoptToken(msg.token)

	case meMsg:
		m.busy = false
		if msg.err == nil {
			m.user = msg.user
		}
		return m, nil

	case dashboardMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.bots = msg.bots
		m.usage = msg.usage
		m.setConversations(msg.conversations)
		return m, nil

	case botsMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.bots = msg.bots
		if m.route == routes.Flow {
			if bot, ok := m.currentBot(); ok {
				m.busy = true
				return m, m.flowCmd(bot.ID)
			}
		}
		return m, nil

	case botCreatedMsg:
		if msg.err != nil {
			return m, nil
		}
		m.bots = append(m.bots, msg.bot)
		m.status = "Created bot " + msg.bot.Name
		return m, nil

	case numbersMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.numbers = msg.numbers
		return m, nil

	case whatsappMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.whatsapp[msg.ws.NumberID] = msg.ws
		if msg.ws.Status == "connected" {
			m.status = "WhatsApp connected"
			return m, m.numbersCmd()
		}
		return m, nil

	case flowMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.graph = msg.graph
		return m, nil

	case conversationsMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.setConversations(msg.conversations)
		cmd := m.openSelectedConversation()
		return m, cmd

	case transcriptMsg:
		if msg.err != nil {
			return m, nil
		}
		m.messages[msg.conversationID] = msg.messages
		conv, ok := m.conversationByID(msg.conversationID)
		if !ok {
			return m, nil
		}
		return m, m.renderTranscriptCmd(conv, msg.messages, m.transcript.Width)

	case renderMsg:
		m.rendered[msg.conversationID] = msg.rendered
		if msg.conversationID == m.selectedConv {
			m.refreshTranscript()
			m.transcript.GotoBottom()
		}
		return m, nil

	case streamOpenedMsg:
		if msg.err != nil || msg.conversationID != m.selectedConv {
			return m, nil
		}
		m.streamCh = msg.events
		return m, waitForStreamEvent(msg.events)

	case streamEventMsg:
		cmd := m.appendStreamed(msg.ev)
		return m, tea.Batch(cmd, waitForStreamEvent(msg.ch))

	case streamClosedMsg:
		m.streamCh = nil
		return m, nil

	case workspacesMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.workspaces = msg.workspaces
		m.members = msg.members
		m.plan = msg.plan
		m.usage = msg.usage
		return m, nil

	case checkoutMsg:
		if msg.err != nil {
			return m, nil
		}
		m.checkoutURL = msg.url
		m.status = "Checkout ready: " + msg.url
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "Exported to " + msg.path
		return m, nil

	case resetDoneMsg:
		if msg.err != nil {
			m.authErr = "Reset request failed: " + msg.err.Error()
			return m, nil
		}
		m.authErr = ""
		m.status = "Password reset email sent"
		return m, nil

	case copyDoneMsg:
		if msg.err != nil {
			m.status = "Copy failed: " + msg.err.Error()
		} else {
			m.status = "Copied to clipboard"
		}
		return m, nil
	}

	return m, nil
}

// handleBusEvent reacts to one application event. Errors become toasts;
// navigation and session events run through the route guard.
func (m *Model) handleBusEvent(ev appbus.Event) tea.Cmd {
	switch ev := ev.(type) {
	case appbus.ErrorRaised:
		m.deps.Feed.Push(ev.Title, ev.Detail)
		return m.ensureToastTick()
	case appbus.NavigateRequested:
		return m.navigate(ev.Route)
	case appbus.SessionChanged:
		return m.applySessionChange(ev)
	}
	return nil
}

func (m Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.authErr = "Could not sign in: " + msg.err.Error()
		m.passwordInput.SetValue("")
		return m, nil
	}
	return m.adoptToken(msg.token)
}

// adoptToken persists a fresh token and asks the shell, via the bus, to
// move to the dashboard.
func (m Model) adoptToken(token string) (tea.Model, tea.Cmd) {
	m.busy = false
	m.authErr = ""
	if err := m.deps.Store.SetToken(token); err != nil {
		m.authErr = "Could not persist session: " + err.Error()
		return m, nil
	}
	m.authed = true
	m.passwordInput.SetValue("")
	m.deps.Bus.Publish(appbus.NavigateRequested{Route: routes.Dashboard})
	return m, m.meCmd()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		cmd := m.shutdown()
		return m, cmd
	}

	if m.searchMode {
		return m.handleSearchKey(msg)
	}
	if routes.IsAuth(m.route) {
		return m.handleAuthKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		if items := m.deps.Feed.Items(); len(items) > 0 {
			m.deps.Feed.Dismiss(items[0].ID)
		}
		return m, nil
	case key.Matches(msg, m.keys.Logout):
		cmd := m.logout()
		return m, cmd
	case key.Matches(msg, m.keys.Refresh):
		m.busy = true
		return m, m.loadCmd(m.route)
	case key.Matches(msg, m.keys.Dashboard):
		cmd := m.navigate(routes.Dashboard)
		return m, cmd
	case key.Matches(msg, m.keys.Flow):
		cmd := m.navigate(routes.Flow)
		return m, cmd
	case key.Matches(msg, m.keys.Conversations):
		cmd := m.navigate(routes.Conversations)
		return m, cmd
	case key.Matches(msg, m.keys.Bots):
		cmd := m.navigate(routes.Bots)
		return m, cmd
	case key.Matches(msg, m.keys.Config):
		cmd := m.navigate(routes.Config)
		return m, cmd
	case key.Matches(msg, m.keys.Profile):
		cmd := m.navigate(routes.Profile)
		return m, cmd
	case key.Matches(msg, m.keys.Workspaces):
		cmd := m.navigate(routes.Workspaces)
		return m, cmd
	}

	return m.handlePageKey(msg)
}

// handlePageKey dispatches keys that only mean something on the current
// page.
func (m Model) handlePageKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.route {
	case routes.Conversations:
		return m.handleConversationsKey(msg)

	case routes.Flow:
		switch {
		case key.Matches(msg, m.keys.Cycle):
			if len(m.bots) > 0 {
				m.botCursor = (m.botCursor + 1) % len(m.bots)
				m.busy = true
				return m, m.flowCmd(m.bots[m.botCursor].ID)
			}
		case key.Matches(msg, m.keys.NewItem):
			m.appendMessageNode()
			return m, nil
		case key.Matches(msg, m.keys.Save):
			if bot, ok := m.currentBot(); ok {
				m.busy = true
				m.status = "Saving flow..."
				return m, m.saveFlowCmd(bot.ID, m.graph)
			}
		case key.Matches(msg, m.keys.Publish):
			if bot, ok := m.currentBot(); ok {
				m.busy = true
				m.status = "Publishing flow..."
				return m, m.publishFlowCmd(bot.ID)
			}
		}

	case routes.Bots:
		switch {
		case key.Matches(msg, m.keys.Cycle):
			if len(m.bots) > 0 {
				m.botCursor = (m.botCursor + 1) % len(m.bots)
			}
			return m, nil
		case key.Matches(msg, m.keys.NewItem):
			name := fmt.Sprintf("Bot %d", len(m.bots)+1)
			return m, m.createBotCmd(name)
		}

	case routes.Config:
		switch {
		case key.Matches(msg, m.keys.Cycle):
			if len(m.numbers) > 0 {
				m.numberCursor = (m.numberCursor + 1) % len(m.numbers)
			}
			return m, nil
		case key.Matches(msg, m.keys.Pair):
			if num, ok := m.currentNumber(); ok {
				m.busy = true
				return m, m.whatsappCmd("init", num.ID)
			}
		case key.Matches(msg, m.keys.Scan):
			if num, ok := m.currentNumber(); ok {
				m.busy = true
				return m, m.whatsappCmd("scan", num.ID)
			}
		}

	case routes.Profile:
		if key.Matches(msg, m.keys.Copy) && m.deps.Store.Authenticated() {
			if tok, ok := m.deps.Store.Token(); ok {
				return m, copyCmd(tok)
			}
		}

	case routes.Workspaces:
		if key.Matches(msg, m.keys.NewItem) && len(m.workspaces) > 0 {
			return m, m.checkoutCmd(m.workspaces[0].ID, "pro")
		}
	}

	return m, nil
}

func (m Model) handleConversationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.searchQuery)
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Export):
		if conv, ok := m.selectedConversation(); ok {
			return m, m.exportCmd(conv, m.messages[conv.ID])
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if conv, ok := m.selectedConversation(); ok {
			if msgs := m.messages[conv.ID]; len(msgs) > 0 {
				return m, copyCmd(msgs[len(msgs)-1].Content)
			}
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	before := m.selectedConv
	m.convList, cmd = m.convList.Update(msg)
	cmds = append(cmds, cmd)

	if conv, ok := m.selectedConversation(); ok && conv.ID != before {
		cmds = append(cmds, m.openSelectedConversation())
	} else {
		m.transcript, cmd = m.transcript.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searchMode = false
		m.searchQuery = strings.TrimSpace(m.searchInput.Value())
		m.searchInput.Blur()
		m.refreshTranscript()
		return m, nil
	case tea.KeyEsc:
		m.searchMode = false
		m.searchQuery = ""
		m.searchInput.SetValue("")
		m.searchInput.Blur()
		m.refreshTranscript()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.SwitchScreen):
		target := routes.Login
		if m.route == routes.Login {
			target = routes.Signup
		}
		cmd := m.navigate(target)
		return m, cmd

	case key.Matches(msg, m.keys.DevToken):
		m.busy = true
		m.authErr = ""
		return m, m.devTokenCmd()

	case key.Matches(msg, m.keys.ResetPassword):
		email := strings.TrimSpace(m.emailInput.Value())
		if email == "" {
			m.authErr = "Enter your email first, then reset"
			return m, nil
		}
		return m, m.resetPasswordCmd(email)

	case key.Matches(msg, m.keys.Cycle):
		m.passwordFocus = !m.passwordFocus
		if m.passwordFocus {
			m.emailInput.Blur()
			return m, m.passwordInput.Focus()
		}
		m.passwordInput.Blur()
		return m, m.emailInput.Focus()

	case key.Matches(msg, m.keys.Submit):
		email := strings.TrimSpace(m.emailInput.Value())
		password := m.passwordInput.Value()
		if email == "" || password == "" {
			m.authErr = "Email and password are required"
			return m, nil
		}
		m.busy = true
		m.authErr = ""
		return m, m.loginCmd(m.route, email, password)
	}

	var cmd tea.Cmd
	if m.passwordFocus {
		m.passwordInput, cmd = m.passwordInput.Update(msg)
	} else {
		m.emailInput, cmd = m.emailInput.Update(msg)
	}
	return m, cmd
}

// shutdown releases the bus subscription and stream before quitting.
func (m *Model) shutdown() tea.Cmd {
	m.releaseStream()
	if m.busCancel != nil {
		m.busCancel()
	}
	return tea.Quit
}

// setConversations replaces the list contents, keeping the selection on
// the same conversation when it survives the refresh.
func (m *Model) setConversations(convs []api.Conversation) {
	items := make([]list.Item, len(convs))
	selected := 0
	for i, c := range convs {
		items[i] = convItem{c: c}
		if c.ID == m.selectedConv {
			selected = i
		}
	}
	m.convList.SetItems(items)
	if len(items) > 0 {
		m.convList.Select(selected)
	}
}

// openSelectedConversation loads the transcript for the highlighted
// conversation and switches the live stream over to it.
func (m *Model) openSelectedConversation() tea.Cmd {
	conv, ok := m.selectedConversation()
	if !ok {
		return nil
	}
	m.releaseStream()
	m.selectedConv = conv.ID
	m.refreshTranscript()

	ctx, cancel := context.WithCancel(context.Background())
	m.streamCancel = cancel
	return tea.Batch(m.transcriptCmd(conv.ID), m.openStreamCmd(ctx, conv.ID))
}

func (m *Model) conversationByID(id string) (api.Conversation, bool) {
	for _, item := range m.convList.Items() {
		if ci, ok := item.(convItem); ok && ci.c.ID == id {
			return ci.c, true
		}
	}
	return api.Conversation{}, false
}

// appendStreamed folds a live message into the transcript and triggers a
// re-render when it belongs to the visible conversation.
func (m *Model) appendStreamed(ev api.StreamEvent) tea.Cmd {
	id := ev.Message.ConversationID
	if id == "" {
		id = m.selectedConv
	}
	m.messages[id] = append(m.messages[id], ev.Message)
	if id != m.selectedConv {
		return nil
	}
	conv, ok := m.conversationByID(id)
	if !ok {
		return nil
	}
	return m.renderTranscriptCmd(conv, m.messages[id], m.transcript.Width)
}

// refreshTranscript re-applies search highlighting to the rendered
// transcript and pushes it into the viewport.
func (m *Model) refreshTranscript() {
	body := m.rendered[m.selectedConv]
	if m.searchQuery == "" {
		m.matchCount = 0
		m.transcript.SetContent(body)
		return
	}
	res := applyHighlight(body, m.searchQuery)
	m.matchCount = res.Count
	m.transcript.SetContent(res.Text)
	if len(res.Lines) > 0 {
		m.transcript.SetYOffset(res.Lines[0])
	}
}

// appendMessageNode grows the flow graph with a message node hanging off
// the last node, the smallest useful edit the console supports.
func (m *Model) appendMessageNode() {
	if len(m.graph.Nodes) == 0 {
		bot, _ := m.currentBot()
		m.graph = flow.Empty(bot.ID)
	}
	last := m.graph.Nodes[len(m.graph.Nodes)-1]
	n := flow.Node{
		ID:       fmt.Sprintf("n%d", len(m.graph.Nodes)+1),
		Kind:     flow.NodeMessage,
		Label:    fmt.Sprintf("Message %d", len(m.graph.Nodes)),
		Position: flow.Position{X: last.Position.X, Y: last.Position.Y + 120},
		Data:     map[string]string{"text": "..."},
	}
	m.graph.Nodes = append(m.graph.Nodes, n)
	m.graph.Edges = append(m.graph.Edges, flow.Edge{
		ID:     fmt.Sprintf("e%d", len(m.graph.Edges)+1),
		Source: last.ID,
		Target: n.ID,
	})
	m.status = "Added node (unsaved)"
}
