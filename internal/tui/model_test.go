package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"deskchat/cli/internal/chatapi"
	"deskchat/cli/internal/desktop"
	"deskchat/cli/internal/history"
	"deskchat/cli/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
)

type fakeSession struct {
	enabled   bool
	mode      chatapi.Mode
	messages  []history.Message
	desk      desktop.State
	submitted []string
	views     []desktop.View
	clearErr  error
}

func newFakeSession(enabled bool) *fakeSession {
	return &fakeSession{enabled: enabled, mode: chatapi.ModeChat, desk: desktop.InitialState()}
}

func (f *fakeSession) Submit(_ context.Context, text string) (session.Reply, error) {
	f.submitted = append(f.submitted, text)
	reply := history.NewAssistantMessage("echo: "+text, nil)
	f.messages = append(f.messages, history.NewUserMessage(text), reply)
	return session.Reply{Message: reply}, nil
}

func (f *fakeSession) Mode() chatapi.Mode { return f.mode }

func (f *fakeSession) SetMode(m chatapi.Mode) chatapi.Mode {
	if m.UsesDesktop() && !f.enabled {
		f.mode = chatapi.ModeChat
		return f.mode
	}
	f.mode = m
	return m
}

func (f *fakeSession) SetView(_ context.Context, v desktop.View) desktop.State {
	f.views = append(f.views, v)
	f.desk = desktop.Reduce(f.desk, desktop.SetView{View: v})
	return f.desk
}

func (f *fakeSession) ToggleSidebar() desktop.State {
	f.desk = desktop.Reduce(f.desk, desktop.ToggleSidebar{})
	return f.desk
}

func (f *fakeSession) DesktopState() desktop.State { return f.desk }
func (f *fakeSession) Messages() []history.Message { return f.messages }
func (f *fakeSession) DesktopEnabled() bool        { return f.enabled }

func (f *fakeSession) ClearHistory() error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.messages = nil
	return nil
}

func sized(t *testing.T, sess Session) model {
	t.Helper()
	m := newModel(context.Background(), sess, nil, false)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model)
}

func runBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		if c != nil {
			out = append(out, c())
		}
	}
	return out
}

func TestModel_SubmitRoundTrip(t *testing.T) {
	sess := newFakeSession(false)
	m := sized(t, sess)
	m.input.SetValue("  hello  ")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	if !m.inflight {
		t.Fatal("expected submit to be in flight")
	}
	if m.pending != "hello" || m.input.Value() != "" {
		t.Fatalf("unexpected pending=%q input=%q", m.pending, m.input.Value())
	}

	var done tea.Msg
	for _, msg := range runBatch(t, cmd) {
		if d, ok := msg.(submitDoneMsg); ok {
			done = d
		}
	}
	if done == nil {
		t.Fatal("expected submitDoneMsg from submit command")
	}
	next, _ = m.Update(done)
	m = next.(model)

	if m.inflight || m.pending != "" {
		t.Fatalf("expected idle model, inflight=%v pending=%q", m.inflight, m.pending)
	}
	if diff := cmp.Diff([]string{"hello"}, sess.submitted); diff != "" {
		t.Fatalf("submitted mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(m.renderTimeline(), "echo: hello") {
		t.Fatalf("expected reply in timeline, got %q", m.renderTimeline())
	}
}

func TestModel_BlankSubmitIsIgnored(t *testing.T) {
	sess := newFakeSession(false)
	m := sized(t, sess)
	m.input.SetValue("   ")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatal("expected no command for blank input")
	}
	if next.(model).inflight {
		t.Fatal("blank input must not start a submit")
	}
}

func TestModel_SubmitFailureShowsStatus(t *testing.T) {
	m := sized(t, newFakeSession(false))
	m.inflight = true
	next, _ := m.Update(submitDoneMsg{err: errors.New("disk full")})
	if got := next.(model).status; got != "send failed: disk full" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestModel_CycleModeSkipsDesktopModesWithoutSandbox(t *testing.T) {
	sess := newFakeSession(false)
	m := sized(t, sess)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	if m.mode != chatapi.ModeChat {
		t.Fatalf("expected chat mode, got %q", m.mode)
	}
	if !strings.Contains(m.status, "sandbox URL") {
		t.Fatalf("expected sandbox hint, got %q", m.status)
	}
}

func TestModel_CycleModeWalksAllModes(t *testing.T) {
	sess := newFakeSession(true)
	m := sized(t, sess)

	var got []chatapi.Mode
	for i := 0; i < len(modeCycle); i++ {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m = next.(model)
		got = append(got, m.mode)
	}
	want := []chatapi.Mode{chatapi.ModeAgent, chatapi.ModeCUA, chatapi.ModeHighEffort, chatapi.ModeChat}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mode cycle mismatch (-want +got):\n%s", diff)
	}
	if sess.mode != chatapi.ModeChat {
		t.Fatalf("session mode not updated, got %q", sess.mode)
	}
}

func TestModel_ToggleSidebarAndView(t *testing.T) {
	sess := newFakeSession(true)
	m := sized(t, sess)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlB})
	m = next.(model)
	if m.desk.SidebarOpen {
		t.Fatal("expected sidebar closed")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(model)
	msgs := runBatch(t, cmd)
	if len(msgs) != 1 {
		t.Fatalf("expected one view message, got %d", len(msgs))
	}
	next, _ = m.Update(msgs[0])
	m = next.(model)
	if m.desk.View != desktop.ViewFiles {
		t.Fatalf("expected files view, got %q", m.desk.View)
	}
	if diff := cmp.Diff([]desktop.View{desktop.ViewFiles}, sess.views); diff != "" {
		t.Fatalf("views mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(m.renderSidebar(), "Files") {
		t.Fatalf("expected files sidebar, got %q", m.renderSidebar())
	}
}

func TestModel_ClearHistory(t *testing.T) {
	sess := newFakeSession(false)
	sess.messages = []history.Message{history.NewUserMessage("old")}
	m := sized(t, sess)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = next.(model)
	if len(m.messages) != 0 {
		t.Fatalf("expected empty history, got %d", len(m.messages))
	}

	sess.clearErr = errors.New("locked")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	if got := next.(model).status; got != "clear failed: locked" {
		t.Fatalf("unexpected status %q", got)
	}
}

func TestModel_EventsUpdateConnectionAndDesktop(t *testing.T) {
	sess := newFakeSession(true)
	events := make(chan tea.Msg, 2)
	m := newModel(context.Background(), sess, events, false)

	events <- connMsg{connected: true}
	st := desktop.InitialState()
	st.Terminal.Output = append(st.Terminal.Output, "$ ls")
	events <- desktopMsg{state: st}

	next, _ := m.Update(waitEventCmd(events)())
	m = next.(model)
	if !m.connected {
		t.Fatal("expected connected after event")
	}
	next, _ = m.Update(waitEventCmd(events)())
	m = next.(model)
	if !strings.Contains(m.renderSidebar(), "$ ls") {
		t.Fatalf("expected terminal line in sidebar, got %q", m.renderSidebar())
	}
}

func TestModel_DropsOlderDesktopState(t *testing.T) {
	m := newModel(context.Background(), newFakeSession(true), nil, false)

	newer := desktop.InitialState()
	newer.Version = 5
	newer.Terminal.Output = append(newer.Terminal.Output, "$ ls")
	next, _ := m.Update(desktopMsg{state: newer})
	m = next.(model)

	older := desktop.InitialState()
	older.Version = 4
	older.View = desktop.ViewFiles
	next, _ = m.Update(viewDoneMsg{state: older})
	m = next.(model)

	if m.desk.Version != 5 || m.desk.View != desktop.ViewTerminal {
		t.Fatalf("older state replaced newer one: %+v", m.desk)
	}
}

func TestModel_ViewBeforeResize(t *testing.T) {
	m := newModel(context.Background(), newFakeSession(false), nil, false)
	if got := m.View(); got != "Initializing..." {
		t.Fatalf("unexpected view %q", got)
	}
	m = sized(t, newFakeSession(false))
	if !strings.Contains(m.View(), "no sandbox") {
		t.Fatalf("expected sandbox indicator, got %q", m.View())
	}
}

func TestThinkingText(t *testing.T) {
	got := thinkingText(&chatapi.Thinking{Thought: "hmm", Steps: []string{"a", "b"}})
	if got != "hmm\n- a\n- b" {
		t.Fatalf("unexpected thinking text %q", got)
	}
	if thinkingText(nil) != "" {
		t.Fatal("nil thinking must render empty")
	}
}

func TestRenderMarkdown_FallsBackToPlainText(t *testing.T) {
	var m model
	if got := m.renderMarkdown("**bold**"); got != "**bold**" {
		t.Fatalf("expected raw text without renderer, got %q", got)
	}
	m = newModel(context.Background(), newFakeSession(false), nil, false)
	if got := m.renderMarkdown("some *body* text"); !strings.Contains(got, "body") {
		t.Fatalf("expected rendered text to keep content, got %q", got)
	}
}
