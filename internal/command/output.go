package command

import (
	"fmt"
	"io"
	"strings"

	"deskchat/cli/internal/chatapi"
	"deskchat/cli/internal/desktop"
	"deskchat/cli/internal/history"
	"deskchat/cli/internal/settings"
)

func writeSendResult(w io.Writer, res SendResult) {
	for _, out := range res.Reply.Outcomes {
		status := "ok"
		if out.Result.Failed() {
			status = "error: " + out.Result.Error
		}
		fmt.Fprintf(w, "[%s] %s\n", out.Action.Type, status)
	}
	writeThinking(w, res.Reply.Message.Thinking)
	fmt.Fprintln(w, res.Reply.Message.Text)
	if len(res.Reply.Outcomes) > 0 {
		writeDesktop(w, res.Desktop)
	}
}

func writeThinking(w io.Writer, t *chatapi.Thinking) {
	if t == nil {
		return
	}
	for _, s := range []string{t.Thought, t.Plan, t.Output} {
		if s = strings.TrimSpace(s); s != "" {
			fmt.Fprintf(w, "(thinking) %s\n", s)
		}
	}
	for _, s := range t.Steps {
		fmt.Fprintf(w, "(step) %s\n", s)
	}
}

func writeDesktop(w io.Writer, st desktop.State) {
	fmt.Fprintf(w, "\n-- desktop (%s) --\n", st.View)
	switch st.View {
	case desktop.ViewFiles:
		for _, n := range st.Files.FileTree {
			if n.IsDirectory {
				fmt.Fprintf(w, "%s/\n", n.Name)
				continue
			}
			fmt.Fprintln(w, n.Name)
		}
		if f := st.Files.CurrentFile; f != nil {
			fmt.Fprintf(w, "== %s ==\n%s\n", f.Name, f.Content)
		}
	default:
		for _, line := range st.Terminal.Output {
			fmt.Fprintln(w, line)
		}
	}
}

func writeHistory(w io.Writer, msgs []history.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "no messages")
		return
	}
	for _, m := range msgs {
		who := "assistant"
		if m.IsUser {
			who = "you"
		}
		fmt.Fprintf(w, "%s: %s\n", who, m.Text)
	}
}

func writeSettings(w io.Writer, s settings.Settings) {
	url := s.SandboxURL
	if url == "" {
		url = "(not set)"
	}
	fmt.Fprintf(w, "sandbox-url: %s\n", url)
	fmt.Fprintf(w, "desktop: %t\n", s.DesktopEnabled())
	fmt.Fprintf(w, "api-key: %t\n", s.APIKeySet)
}
