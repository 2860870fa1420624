package tui

import (
	"context"
	"fmt"
	"strings"

	"deskchat/cli/internal/chatapi"
	"deskchat/cli/internal/desktop"
	"deskchat/cli/internal/history"
	"deskchat/cli/internal/session"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Session is the part of the orchestrator the TUI drives.
// *session.Orchestrator implements it.
type Session interface {
	Submit(ctx context.Context, text string) (session.Reply, error)
	Mode() chatapi.Mode
	SetMode(m chatapi.Mode) chatapi.Mode
	SetView(ctx context.Context, v desktop.View) desktop.State
	ToggleSidebar() desktop.State
	DesktopState() desktop.State
	Messages() []history.Message
	ClearHistory() error
	DesktopEnabled() bool
}

var modeCycle = []chatapi.Mode{
	chatapi.ModeChat,
	chatapi.ModeAgent,
	chatapi.ModeCUA,
	chatapi.ModeHighEffort,
}

const (
	sidebarWidthRatio = 3
	defaultWrap       = 80
)

type submitDoneMsg struct {
	reply session.Reply
	err   error
}

type viewDoneMsg struct {
	state desktop.State
}

type desktopMsg struct {
	state desktop.State
}

type connMsg struct {
	connected bool
}

type model struct {
	ctx  context.Context
	sess Session
	th   theme

	events <-chan tea.Msg

	messages  []history.Message
	desk      desktop.State
	mode      chatapi.Mode
	pending   string
	inflight  bool
	connected bool
	status    string

	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	sidebar  viewport.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer
}

func newModel(ctx context.Context, sess Session, events <-chan tea.Msg, connected bool) model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 4000
	input.Placeholder = "Ask something. tab switches mode."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))

	m := model{
		ctx:       ctx,
		sess:      sess,
		th:        defaultTheme(),
		events:    events,
		messages:  sess.Messages(),
		desk:      sess.DesktopState(),
		mode:      sess.Mode(),
		connected: connected,
		status:    "ready",
		input:     input,
		timeline:  viewport.New(0, 0),
		sidebar:   viewport.New(0, 0),
		spinner:   sp,
		markdown:  newMarkdownRenderer(defaultWrap),
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitEventCmd(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKeys):
			return m, tea.Quit
		case key.Matches(msg, submitKey):
			return m.submit()
		case key.Matches(msg, modeKey):
			m.cycleMode()
			return m, nil
		case key.Matches(msg, sidebarKey):
			m.applyDesktop(m.sess.ToggleSidebar())
			m.resize()
			m.renderPanes()
			return m, nil
		case key.Matches(msg, viewKey):
			next := desktop.ViewFiles
			if m.desk.View == desktop.ViewFiles {
				next = desktop.ViewTerminal
			}
			return m, setViewCmd(m.ctx, m.sess, next)
		case key.Matches(msg, clearKey):
			if err := m.sess.ClearHistory(); err != nil {
				m.status = "clear failed: " + err.Error()
				return m, nil
			}
			m.messages = m.sess.Messages()
			m.status = "history cleared"
			m.renderPanes()
			return m, nil
		case key.Matches(msg, scrollUpKey), key.Matches(msg, scrollDownKey):
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		}

	case submitDoneMsg:
		m.inflight = false
		m.pending = ""
		m.messages = m.sess.Messages()
		m.applyDesktop(m.sess.DesktopState())
		switch {
		case msg.err != nil:
			m.status = "send failed: " + msg.err.Error()
		case msg.reply.Err != nil:
			m.status = "chat error"
		default:
			m.status = fmt.Sprintf("ready · %d action(s)", len(msg.reply.Outcomes))
		}
		m.renderPanes()
		return m, nil

	case viewDoneMsg:
		m.applyDesktop(msg.state)
		m.renderPanes()
		return m, nil

	case desktopMsg:
		m.applyDesktop(msg.state)
		m.renderPanes()
		return m, waitEventCmd(m.events)

	case connMsg:
		m.connected = msg.connected
		return m, waitEventCmd(m.events)

	case spinner.TickMsg:
		if !m.inflight {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.inflight {
		return m, nil
	}
	m.input.Reset()
	m.inflight = true
	m.pending = text
	m.status = "waiting for " + string(m.mode)
	m.renderPanes()
	return m, tea.Batch(m.spinner.Tick, submitCmd(m.ctx, m.sess, text))
}

// cycleMode advances to the next mode the session accepts. Desktop modes
// are skipped while no sandbox is configured.
func (m *model) cycleMode() {
	idx := 0
	for i, mode := range modeCycle {
		if mode == m.mode {
			idx = i
			break
		}
	}
	for step := 1; step <= len(modeCycle); step++ {
		want := modeCycle[(idx+step)%len(modeCycle)]
		if got := m.sess.SetMode(want); got == want {
			m.mode = got
			m.status = "mode: " + string(got)
			return
		}
	}
	m.mode = m.sess.Mode()
	m.status = "set a sandbox URL to use desktop modes"
}

func submitCmd(ctx context.Context, sess Session, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := sess.Submit(ctx, text)
		return submitDoneMsg{reply: reply, err: err}
	}
}

func setViewCmd(ctx context.Context, sess Session, v desktop.View) tea.Cmd {
	return func() tea.Msg {
		return viewDoneMsg{state: sess.SetView(ctx, v)}
	}
}

func waitEventCmd(ch <-chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// applyDesktop keeps the newest state; a late reply from SetView can
// carry an older one than an event already delivered.
func (m *model) applyDesktop(st desktop.State) {
	if st.Version < m.desk.Version {
		return
	}
	m.desk = st
}

func (m *model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	bodyHeight := m.height - 6
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	sideWidth := 0
	if m.desk.SidebarOpen {
		sideWidth = m.width / sidebarWidthRatio
	}
	m.timeline.Width = m.width - sideWidth - 4
	m.timeline.Height = bodyHeight
	m.sidebar.Width = max(sideWidth-4, 0)
	m.sidebar.Height = bodyHeight
	m.input.Width = m.width - 6
	if wrap := m.timeline.Width - 2; wrap > 10 {
		m.markdown = newMarkdownRenderer(wrap)
	}
}

func newMarkdownRenderer(wrap int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown falls back to the raw text when glamour fails or panics.
func (m model) renderMarkdown(text string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()
	if m.markdown == nil || strings.TrimSpace(text) == "" {
		return text
	}
	rendered, err := m.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}

func (m *model) renderPanes() {
	m.timeline.SetContent(m.renderTimeline())
	m.timeline.GotoBottom()
	m.sidebar.SetContent(m.renderSidebar())
}

func (m model) renderTimeline() string {
	if len(m.messages) == 0 && m.pending == "" {
		return m.th.Muted.Render("No messages yet.")
	}
	var b strings.Builder
	for _, msg := range m.messages {
		if msg.IsUser {
			b.WriteString(m.th.User.Render("you") + "\n")
		} else {
			b.WriteString(m.th.Assistant.Render("assistant") + "\n")
			if t := thinkingText(msg.Thinking); t != "" {
				b.WriteString(m.th.Muted.Render(t) + "\n")
			}
			b.WriteString(m.renderMarkdown(msg.Text) + "\n\n")
			continue
		}
		b.WriteString(msg.Text + "\n\n")
	}
	if m.pending != "" {
		b.WriteString(m.th.User.Render("you") + "\n" + m.pending + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func thinkingText(t *chatapi.Thinking) string {
	if t == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{t.Thought, t.Plan, t.Output} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	for _, s := range t.Steps {
		parts = append(parts, "- "+s)
	}
	return strings.Join(parts, "\n")
}

func (m model) renderSidebar() string {
	var b strings.Builder
	switch m.desk.View {
	case desktop.ViewFiles:
		b.WriteString(m.th.Header.Render("Files") + "\n")
		if len(m.desk.Files.FileTree) == 0 {
			b.WriteString(m.th.Muted.Render("(empty)") + "\n")
		}
		for _, node := range m.desk.Files.FileTree {
			if node.IsDirectory {
				b.WriteString(m.th.Accent.Render(node.Name+"/") + "\n")
				continue
			}
			b.WriteString(node.Name + "\n")
		}
		if f := m.desk.Files.CurrentFile; f != nil {
			b.WriteString("\n" + m.th.Header.Render(f.Name) + "\n" + f.Content + "\n")
		}
	default:
		b.WriteString(m.th.Header.Render("Terminal") + "\n")
		b.WriteString(strings.Join(m.desk.Terminal.Output, "\n") + "\n")
	}

	b.WriteString("\n" + m.th.Header.Render("Activity") + "\n")
	if len(m.desk.Activities) == 0 {
		b.WriteString(m.th.Muted.Render("none"))
	}
	for _, act := range m.desk.Activities {
		b.WriteString(m.th.Muted.Render(act.Timestamp.Format("15:04:05")) + " " + act.Action + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.th.Header.Render("deskchat") + "  " +
		m.th.Accent.Render("mode: "+string(m.mode)) + "  " + m.connLabel()
	if m.inflight {
		header += "  " + m.spinner.View()
	}

	body := m.th.Frame.Render(m.timeline.View())
	if m.desk.SidebarOpen {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.th.Panel.Render(m.sidebar.View()))
	}

	helps := make([]string, 0, len(helpLine()))
	for _, b := range helpLine() {
		h := b.Help()
		helps = append(helps, h.Key+" "+h.Desc)
	}
	footer := m.th.Muted.Render(m.status + " · " + strings.Join(helps, " · "))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		m.th.Input.Render(m.input.View()),
		footer,
	)
}

func (m model) connLabel() string {
	if !m.sess.DesktopEnabled() {
		return m.th.Muted.Render("○ no sandbox")
	}
	if m.connected {
		return m.th.Success.Render("● connected")
	}
	return m.th.Danger.Render("● disconnected")
}
