package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"deskchat/cli/internal/chatapi"
	"deskchat/cli/internal/config"
	"deskchat/cli/internal/desktop"
	"deskchat/cli/internal/history"
	"deskchat/cli/internal/session"
	"deskchat/cli/internal/settings"
)

func baseDeps() Deps {
	return Deps{
		LoadConfig: func() config.Config {
			return config.Config{ChatURL: "http://127.0.0.1:8000", SandboxRoot: ".", ListenHost: "127.0.0.1", SandboxPort: 3001, BackendPort: 8000}
		},
	}
}

func TestBuildApp_DefaultCommandIsChat(t *testing.T) {
	chatCalled := 0
	migrateCalled := 0
	deps := baseDeps()
	deps.RunChat = func(context.Context, config.Config) error {
		chatCalled++
		return nil
	}
	deps.RunMigrateUp = func(context.Context, config.Config) error {
		migrateCalled++
		return nil
	}
	app := BuildApp(deps)
	if err := app.RunContext(context.Background(), []string{"deskchat"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if chatCalled != 1 || migrateCalled != 0 {
		t.Fatalf("unexpected call count chat=%d migrate=%d", chatCalled, migrateCalled)
	}
}

func TestBuildApp_GlobalFlagsOverrideConfig(t *testing.T) {
	var got config.Config
	deps := baseDeps()
	deps.RunChat = func(_ context.Context, cfg config.Config) error {
		got = cfg
		return nil
	}
	app := BuildApp(deps)
	args := []string{"deskchat", "--config-dir", "/tmp/dc", "--log-level", "debug", "--chat-url", "http://x:9/", "chat"}
	if err := app.RunContext(context.Background(), args); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got.ConfigDir != "/tmp/dc" || got.LogLevel != "debug" || got.ChatURL != "http://x:9" {
		t.Fatalf("unexpected config %+v", got)
	}
}

func TestBuildApp_SendPrintsReplyAndDesktop(t *testing.T) {
	var req SendRequest
	deps := baseDeps()
	deps.RunSend = func(_ context.Context, _ config.Config, in SendRequest) (SendResult, error) {
		req = in
		st := desktop.InitialState()
		st.Terminal.Output = append(st.Terminal.Output, "$ ls", "a.txt")
		outcome := desktop.Outcome{
			Action: desktop.NewAction(desktop.KindExecuteCommand, desktop.Args{Command: "ls"}),
			Result: desktop.Result{Output: "a.txt"},
		}
		reply := session.Reply{Message: history.NewAssistantMessage("Done.", nil), Outcomes: []desktop.Outcome{outcome}}
		return SendResult{Reply: reply, Desktop: st}, nil
	}
	var out bytes.Buffer
	app := BuildApp(deps)
	app.Writer = &out
	args := []string{"deskchat", "send", "--mode", "agent", "--retry", "list", "files"}
	if err := app.RunContext(context.Background(), args); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if req.Message != "list files" || req.Mode != chatapi.ModeAgent || !req.Retry {
		t.Fatalf("unexpected request %+v", req)
	}
	text := out.String()
	for _, want := range []string{"[execute_command] ok", "Done.", "$ ls", "a.txt"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
}

func TestBuildApp_SendRejectsBadInput(t *testing.T) {
	deps := baseDeps()
	deps.RunSend = func(context.Context, config.Config, SendRequest) (SendResult, error) {
		t.Fatal("runner must not be called")
		return SendResult{}, nil
	}
	if err := BuildApp(deps).RunContext(context.Background(), []string{"deskchat", "send"}); err == nil {
		t.Fatal("expected error for missing message")
	}
	err := BuildApp(deps).RunContext(context.Background(), []string{"deskchat", "send", "--mode", "turbo", "hi"})
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected unknown mode error, got %v", err)
	}
}

func TestBuildApp_SendReturnsChatError(t *testing.T) {
	chatErr := errors.New("chat API returned 500")
	deps := baseDeps()
	deps.RunSend = func(context.Context, config.Config, SendRequest) (SendResult, error) {
		return SendResult{Reply: session.Reply{Message: history.NewAssistantMessage(chatErr.Error(), nil), Err: chatErr}}, nil
	}
	var out bytes.Buffer
	app := BuildApp(deps)
	app.Writer = &out
	err := app.RunContext(context.Background(), []string{"deskchat", "send", "hi"})
	if !errors.Is(err, chatErr) {
		t.Fatalf("expected chat error, got %v", err)
	}
	if !strings.Contains(out.String(), "chat API returned 500") {
		t.Fatalf("expected error text printed, got %q", out.String())
	}
}

func TestBuildApp_ServeSubcommandsApplyFlags(t *testing.T) {
	var sandboxCfg, backendCfg config.Config
	deps := baseDeps()
	deps.RunSandbox = func(_ context.Context, cfg config.Config) error {
		sandboxCfg = cfg
		return nil
	}
	deps.RunBackend = func(_ context.Context, cfg config.Config) error {
		backendCfg = cfg
		return nil
	}
	if err := BuildApp(deps).RunContext(context.Background(), []string{"deskchat", "serve", "sandbox", "--root", "/srv/ws", "--port", "4001"}); err != nil {
		t.Fatalf("serve sandbox failed: %v", err)
	}
	if sandboxCfg.SandboxRoot != "/srv/ws" || sandboxCfg.SandboxPort != 4001 || sandboxCfg.ListenHost != "127.0.0.1" {
		t.Fatalf("unexpected sandbox config %+v", sandboxCfg)
	}
	if err := BuildApp(deps).RunContext(context.Background(), []string{"deskchat", "serve", "backend", "--host", "0.0.0.0"}); err != nil {
		t.Fatalf("serve backend failed: %v", err)
	}
	if backendCfg.ListenHost != "0.0.0.0" || backendCfg.BackendPort != 8000 {
		t.Fatalf("unexpected backend config %+v", backendCfg)
	}
}

func TestBuildApp_HistoryCommands(t *testing.T) {
	cleared := 0
	deps := baseDeps()
	deps.ShowHistory = func(context.Context, config.Config) ([]history.Message, error) {
		return []history.Message{history.NewUserMessage("hi"), history.NewAssistantMessage("hello", nil)}, nil
	}
	deps.ClearHistory = func(context.Context, config.Config) error {
		cleared++
		return nil
	}
	var out bytes.Buffer
	app := BuildApp(deps)
	app.Writer = &out
	if err := app.RunContext(context.Background(), []string{"deskchat", "history", "show"}); err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	if out.String() != "you: hi\nassistant: hello\n" {
		t.Fatalf("unexpected history output %q", out.String())
	}
	if err := BuildApp(deps).RunContext(context.Background(), []string{"deskchat", "history", "clear"}); err != nil {
		t.Fatalf("history clear failed: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected one clear, got %d", cleared)
	}
}

func TestBuildApp_SettingsSet(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantURL *string
		wantKey string
		clear   bool
		wantErr bool
	}{
		{name: "url only", args: []string{"--sandbox-url", "http://127.0.0.1:3001"}, wantURL: strPtr("http://127.0.0.1:3001")},
		{name: "empty url disables", args: []string{"--sandbox-url", ""}, wantURL: strPtr("")},
		{name: "api key only", args: []string{"--api-key", " sk-1 "}, wantKey: "sk-1"},
		{name: "clear key", args: []string{"--clear-api-key"}, clear: true},
		{name: "conflict", args: []string{"--api-key", "sk", "--clear-api-key"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got SettingsUpdate
			called := false
			deps := baseDeps()
			deps.SaveSettings = func(_ context.Context, _ config.Config, in SettingsUpdate) (settings.Settings, error) {
				called = true
				got = in
				return settings.Settings{SandboxURL: "http://127.0.0.1:3001", APIKeySet: true}, nil
			}
			var out bytes.Buffer
			app := BuildApp(deps)
			app.Writer = &out
			err := app.RunContext(context.Background(), append([]string{"deskchat", "settings", "set"}, tt.args...))
			if tt.wantErr {
				if err == nil || called {
					t.Fatalf("expected error without save, err=%v called=%v", err, called)
				}
				return
			}
			if err != nil {
				t.Fatalf("settings set failed: %v", err)
			}
			if (got.SandboxURL == nil) != (tt.wantURL == nil) || (got.SandboxURL != nil && *got.SandboxURL != *tt.wantURL) {
				t.Fatalf("unexpected sandbox url %v", got.SandboxURL)
			}
			if got.APIKey != tt.wantKey || got.ClearAPIKey != tt.clear {
				t.Fatalf("unexpected update %+v", got)
			}
			if !strings.Contains(out.String(), "desktop: true") {
				t.Fatalf("expected settings printed, got %q", out.String())
			}
		})
	}
}

func TestBuildApp_SettingsShowHidesKey(t *testing.T) {
	deps := baseDeps()
	deps.ShowSettings = func(context.Context, config.Config) (settings.Settings, error) {
		return settings.Settings{APIKey: "sk-secret", APIKeySet: true}, nil
	}
	var out bytes.Buffer
	app := BuildApp(deps)
	app.Writer = &out
	if err := app.RunContext(context.Background(), []string{"deskchat", "settings", "show"}); err != nil {
		t.Fatalf("settings show failed: %v", err)
	}
	if strings.Contains(out.String(), "sk-secret") {
		t.Fatalf("api key leaked: %q", out.String())
	}
	if !strings.Contains(out.String(), "sandbox-url: (not set)") || !strings.Contains(out.String(), "desktop: false") {
		t.Fatalf("unexpected settings output %q", out.String())
	}
}

func TestBuildApp_MigrateUpCommand(t *testing.T) {
	migrateCalled := 0
	deps := baseDeps()
	deps.RunMigrateUp = func(context.Context, config.Config) error {
		migrateCalled++
		return nil
	}
	app := BuildApp(deps)
	if err := app.RunContext(context.Background(), []string{"deskchat", "migrate", "up"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if migrateCalled != 1 {
		t.Fatalf("expected migrate command called once, got %d", migrateCalled)
	}
}

func TestBuildApp_MissingRunnerFails(t *testing.T) {
	app := BuildApp(baseDeps())
	err := app.RunContext(context.Background(), []string{"deskchat", "serve", "sandbox"})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}
}

func strPtr(s string) *string { return &s }
