package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"omnibot-console/internal/alerts"
	"omnibot-console/internal/flow"
	"omnibot-console/internal/highlight"
	"omnibot-console/internal/routes"
)

const (
	minWidth    = 40
	toastWidth  = 48
	sidebarPane = 36
)

func (m *Model) resizePanes() {
	listWidth := sidebarPane
	if m.width > 0 && m.width < 2*sidebarPane {
		listWidth = m.width / 2
	}
	bodyHeight := m.height - 6
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	m.convList.SetSize(listWidth, bodyHeight)
	m.transcript.Width = maxInt(m.width-listWidth-4, 20)
	m.transcript.Height = bodyHeight
}

func (m Model) View() string {
	if m.width > 0 && m.width < minWidth {
		return "Terminal too narrow.\n"
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")

	switch m.route {
	case routes.Login, routes.Signup:
		b.WriteString(m.authView())
	case routes.Dashboard:
		b.WriteString(m.dashboardView())
	case routes.Flow:
		b.WriteString(m.flowView())
	case routes.Conversations:
		b.WriteString(m.conversationsView())
	case routes.Bots:
		b.WriteString(m.botsView())
	case routes.Config:
		b.WriteString(m.configView())
	case routes.Profile:
		b.WriteString(m.profileView())
	case routes.Workspaces:
		b.WriteString(m.workspacesView())
	}

	b.WriteString("\n")
	b.WriteString(m.footerView())

	out := b.String()
	if toasts := renderToasts(m.deps.Feed.Items()); toasts != "" {
		out = overlayTopRight(out, toasts, m.width)
	}
	return out
}

func (m Model) headerView() string {
	title := titleStyle.Render("OmniBot Console")
	page := pageStyle.Render(routes.Title(m.route))
	right := ""
	if m.authed {
		who := m.user.Email
		if who == "" {
			who = "signed in"
		}
		right = identityStyle.Render(who)
	} else {
		right = identityStyle.Render("anonymous")
	}
	line := title + " " + page
	if m.width > 0 {
		pad := m.width - lipgloss.Width(line) - lipgloss.Width(right)
		if pad > 0 {
			line += strings.Repeat(" ", pad)
		}
	}
	return line + right
}

func (m Model) footerView() string {
	var left string
	if m.busy {
		left = m.spinner.View() + " working..."
	} else if m.status != "" {
		left = statusStyle.Render(m.status)
	}
	return left + "\n" + m.help.View(m.keys)
}

func (m Model) authView() string {
	var b strings.Builder
	if m.route == routes.Signup {
		b.WriteString(sectionStyle.Render("Create your OmniBot account"))
	} else {
		b.WriteString(sectionStyle.Render("Sign in to OmniBot"))
	}
	b.WriteString("\n\n")
	b.WriteString("  " + m.emailInput.View() + "\n")
	b.WriteString("  " + m.passwordInput.View() + "\n\n")
	if m.authErr != "" {
		b.WriteString("  " + errorStyle.Render(m.authErr) + "\n\n")
	}
	b.WriteString(dimStyle.Render("  enter submit · tab switch field · ctrl+s login/signup · ctrl+r reset password · ctrl+t dev token\n"))
	return b.String()
}

func (m Model) dashboardView() string {
	open := 0
	unread := 0
	for _, item := range m.convList.Items() {
		if ci, ok := item.(convItem); ok {
			open++
			unread += ci.c.Unread
		}
	}
	cards := []string{
		metricCard("Bots", fmt.Sprintf("%d", len(m.bots))),
		metricCard("Conversations", fmt.Sprintf("%d", open)),
		metricCard("Unread", fmt.Sprintf("%d", unread)),
	}
	if m.usage.MessageLimit > 0 {
		cards = append(cards, metricCard("Usage", fmt.Sprintf("%d / %d msgs", m.usage.MessagesUsed, m.usage.MessageLimit)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...) + "\n"
}

func (m Model) flowView() string {
	current, ok := m.currentBot()
	if !ok {
		return dimStyle.Render("  No bots yet. Create one on the Bots page.\n")
	}

	var b strings.Builder
	state := "draft"
	if m.graph.Published {
		state = "published"
	}
	b.WriteString(fmt.Sprintf("  Bot: %s  ·  v%d  ·  %s\n\n", sectionStyle.Render(current.Name), m.graph.Version, state))
	for _, line := range flow.Summary(m.graph) {
		b.WriteString("    " + line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("  a add node · s save · p publish · tab next bot\n"))
	return b.String()
}

func (m Model) conversationsView() string {
	left := m.convList.View()
	var right strings.Builder
	if m.searchMode {
		right.WriteString(m.searchInput.View() + "\n")
	} else if m.searchQuery != "" {
		right.WriteString(fmt.Sprintf("%d matches for %q (esc via / clears)\n", m.matchCount, m.searchQuery))
	}
	right.WriteString(m.transcript.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right.String())
}

func (m Model) botsView() string {
	if len(m.bots) == 0 {
		return dimStyle.Render("  No bots yet. Press a to create one.\n")
	}
	var b strings.Builder
	for i, bot := range m.bots {
		cursor := "  "
		if i == m.botCursor {
			cursor = cursorStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%s  %s  %s\n", cursor, sectionStyle.Render(bot.Name), bot.Channel, dimStyle.Render(bot.Status)))
	}
	b.WriteString("\n" + dimStyle.Render("  a new bot · tab select\n"))
	return b.String()
}

func (m Model) configView() string {
	if len(m.numbers) == 0 {
		return dimStyle.Render("  No numbers provisioned.\n")
	}
	var b strings.Builder
	for i, num := range m.numbers {
		cursor := "  "
		if i == m.numberCursor {
			cursor = cursorStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%s  %s\n", cursor, sectionStyle.Render(num.Phone), num.Status))
		if ws, ok := m.whatsapp[num.ID]; ok && ws.Status == "waiting_scan" {
			b.WriteString(dimStyle.Render("      scan to pair: ") + ws.QRCode + "\n")
		}
	}
	b.WriteString("\n" + dimStyle.Render("  i pair whatsapp · m mock scan · r refresh · tab select\n"))
	return b.String()
}

func (m Model) profileView() string {
	var b strings.Builder
	b.WriteString("  " + sectionStyle.Render("Account") + "\n\n")
	b.WriteString("    Name:   " + m.user.Name + "\n")
	b.WriteString("    Email:  " + m.user.Email + "\n")
	if !m.user.CreatedAt.IsZero() {
		b.WriteString("    Since:  " + m.user.CreatedAt.Format("2006-01-02") + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("  y copy token · L log out\n"))
	return b.String()
}

func (m Model) workspacesView() string {
	if len(m.workspaces) == 0 {
		return dimStyle.Render("  No workspaces.\n")
	}
	ws := m.workspaces[0]
	var b strings.Builder
	b.WriteString("  " + sectionStyle.Render(ws.Name) + "  ·  plan " + ws.Plan + "\n\n")

	if m.plan.Name != "" {
		b.WriteString(fmt.Sprintf("    Plan:   %s (R$ %.2f / month, %d msgs)\n",
			m.plan.Name, float64(m.plan.PriceCents)/100, m.plan.MessageLimit))
	}
	if m.usage.MessageLimit > 0 {
		b.WriteString(fmt.Sprintf("    Usage:  %d / %d messages, resets %s\n",
			m.usage.MessagesUsed, m.usage.MessageLimit, m.usage.PeriodEnd.Format("2006-01-02")))
	}
	b.WriteString("\n    Members:\n")
	for _, mem := range m.members {
		b.WriteString(fmt.Sprintf("      %s  %s\n", mem.Email, dimStyle.Render(mem.Role)))
	}
	if m.checkoutURL != "" {
		b.WriteString("\n    Checkout: " + m.checkoutURL + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("  a upgrade to pro\n"))
	return b.String()
}

// renderToasts stacks the live alert items newest-first into one block.
func renderToasts(items []alerts.Item) string {
	if len(items) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(items))
	for _, it := range items {
		title := toastTitleStyle.Render(ansi.Truncate(it.Title, toastWidth-4, "…"))
		body := title
		if it.Detail != "" {
			body += "\n" + ansi.Truncate(it.Detail, toastWidth-4, "…")
		}
		blocks = append(blocks, toastStyle.Render(body))
	}
	return strings.Join(blocks, "\n")
}

// overlayTopRight paints block over the top-right corner of base. Lines
// are replaced wholesale: precise splicing inside styled lines is not
// worth the ANSI bookkeeping for a transient toast.
func overlayTopRight(base, block string, width int) string {
	if width <= 0 {
		return base + "\n" + block
	}
	baseLines := strings.Split(base, "\n")
	for i, bl := range strings.Split(block, "\n") {
		// keep the header line visible
		row := i + 1
		for row >= len(baseLines) {
			baseLines = append(baseLines, "")
		}
		pad := width - ansi.StringWidth(bl)
		if pad < 0 {
			pad = 0
		}
		baseLines[row] = strings.Repeat(" ", pad) + bl
	}
	return strings.Join(baseLines, "\n")
}

func applyHighlight(text, query string) highlight.Result {
	return highlight.Apply(text, query, func(s string) string {
		return matchStyle.Render(s)
	})
}

func metricCard(label, value string) string {
	return cardStyle.Render(dimStyle.Render(label) + "\n" + valueStyle.Render(value))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	pageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99"))

	identityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 2).
			MarginRight(1)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1).
			Width(toastWidth)

	toastTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	matchStyle = lipgloss.NewStyle().
			Reverse(true).
			Foreground(lipgloss.Color("220"))
)
