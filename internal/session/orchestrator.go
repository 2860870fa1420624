package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"deskchat/cli/internal/chatapi"
	"deskchat/cli/internal/desktop"
	"deskchat/cli/internal/history"
	"deskchat/cli/internal/retry"
	"deskchat/cli/internal/sandbox"
	"deskchat/cli/internal/settings"
)

// ListFilesActivity is the activity type recorded when the automatic
// directory listing for the files view fails.
const ListFilesActivity = "list_files"

type ChatSender interface {
	Send(ctx context.Context, in chatapi.Request) (chatapi.Response, error)
}

// SettingsStore persists user settings. *settings.Store implements it.
type SettingsStore interface {
	Load() (settings.Settings, error)
	Save(settings.Settings) error
	SaveAPIKey(key string) error
}

type Options struct {
	Chat       ChatSender
	History    *history.Log
	Settings   SettingsStore
	Desktop    *desktop.Store
	HTTPClient *http.Client
	Logger     *slog.Logger
	Mode       chatapi.Mode
	// SendRetry, when set, retries the chat call. Submit otherwise makes
	// exactly one attempt.
	SendRetry *retry.Policy
}

// Reply is what a submit produced: the assistant message appended to the
// history and the outcome of every desktop action, in order.
type Reply struct {
	Message  history.Message
	Outcomes []desktop.Outcome
	Err      error
}

type Orchestrator struct {
	chat       ChatSender
	history    *history.Log
	settings   SettingsStore
	desktop    *desktop.Store
	httpClient *http.Client
	logger     *slog.Logger
	sendRetry  *retry.Policy

	submitMu sync.Mutex

	mu      sync.RWMutex
	mode    chatapi.Mode
	current settings.Settings
	sandbox *sandbox.Client
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Chat == nil {
		return nil, errors.New("chat client is required")
	}
	if opts.History == nil {
		return nil, errors.New("history log is required")
	}
	if opts.Settings == nil {
		return nil, errors.New("settings store is required")
	}
	if opts.Desktop == nil {
		opts.Desktop = desktop.NewStore(desktop.Reducer{})
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cur, err := opts.Settings.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	o := &Orchestrator{
		chat:       opts.Chat,
		history:    opts.History,
		settings:   opts.Settings,
		desktop:    opts.Desktop,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		sendRetry:  opts.SendRetry,
		current:    cur,
		sandbox:    sandbox.NewClient(cur.SandboxURL, opts.HTTPClient),
		mode:       chatapi.ModeChat,
	}
	o.mode = o.gateMode(opts.Mode)
	return o, nil
}

// Submit sends text to the chat API, runs any desktop actions it returns
// to completion and then appends the assistant reply. Blank input is
// ignored. Chat failures become an assistant message carrying the error
// text; the returned error is only for history persistence failures.
func (o *Orchestrator) Submit(ctx context.Context, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, nil
	}
	o.submitMu.Lock()
	defer o.submitMu.Unlock()

	if err := o.history.Append(history.NewUserMessage(text)); err != nil {
		return Reply{}, err
	}

	o.mu.RLock()
	req := chatapi.Request{Message: text, Mode: o.mode, APIKey: o.current.APIKey}
	client := o.sandbox
	enabled := o.current.DesktopEnabled()
	o.mu.RUnlock()

	resp, err := o.send(ctx, req)
	if err != nil {
		o.logger.Warn("chat request failed", "mode", req.Mode, "err", err)
		msg := history.NewAssistantMessage(err.Error(), nil)
		if appendErr := o.history.Append(msg); appendErr != nil {
			return Reply{}, appendErr
		}
		return Reply{Message: msg, Err: err}, nil
	}

	actions := make([]desktop.Action, 0, len(resp.DesktopActions))
	for _, raw := range resp.DesktopActions {
		actions = append(actions, desktop.DecodeAction(raw.Type, raw.Args))
	}
	var outcomes []desktop.Outcome
	if len(actions) > 0 {
		d := desktop.NewDispatcher(client, func() bool { return enabled }, o.logger)
		outcomes = d.Run(ctx, actions, func(out desktop.Outcome) {
			o.desktop.Dispatch(desktop.APIAction{Outcome: out})
		})
	}

	msg := history.NewAssistantMessage(resp.Response, resp.Thinking)
	if err := o.history.Append(msg); err != nil {
		return Reply{}, err
	}
	return Reply{Message: msg, Outcomes: outcomes}, nil
}

func (o *Orchestrator) send(ctx context.Context, req chatapi.Request) (chatapi.Response, error) {
	if o.sendRetry == nil {
		return o.chat.Send(ctx, req)
	}
	return retry.Value(ctx, *o.sendRetry, func(ctx context.Context) (chatapi.Response, error) {
		return o.chat.Send(ctx, req)
	})
}

// SetMode selects the chat mode. Modes that drive the desktop fall back to
// chat while no sandbox URL is configured. The effective mode is returned.
func (o *Orchestrator) SetMode(m chatapi.Mode) chatapi.Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mode = o.gateModeLocked(m)
	return o.mode
}

func (o *Orchestrator) Mode() chatapi.Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

func (o *Orchestrator) gateMode(m chatapi.Mode) chatapi.Mode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.gateModeLocked(m)
}

func (o *Orchestrator) gateModeLocked(m chatapi.Mode) chatapi.Mode {
	if _, ok := chatapi.ParseMode(string(m)); !ok {
		return chatapi.ModeChat
	}
	if m.UsesDesktop() && !o.current.DesktopEnabled() {
		return chatapi.ModeChat
	}
	return m
}

// SetView switches the sidebar view. Entering the files view with the
// desktop enabled lists the sandbox root.
func (o *Orchestrator) SetView(ctx context.Context, v desktop.View) desktop.State {
	st := o.desktop.Dispatch(desktop.SetView{View: v})
	if v != desktop.ViewFiles {
		return st
	}
	return o.refreshFiles(ctx, st)
}

func (o *Orchestrator) refreshFiles(ctx context.Context, st desktop.State) desktop.State {
	o.mu.RLock()
	client := o.sandbox
	enabled := o.current.DesktopEnabled()
	o.mu.RUnlock()
	if !enabled {
		return st
	}

	resp, err := client.ListDirectory(ctx, ".")
	if err != nil {
		o.logger.Warn("list sandbox root failed", "err", err)
		return o.desktop.Dispatch(desktop.APIAction{Outcome: desktop.Outcome{
			Action: desktop.Action{Type: ListFilesActivity, Kind: desktop.KindUnknown, Args: desktop.Args{Path: "."}},
			Result: desktop.Result{Error: err.Error()},
		}})
	}
	return o.desktop.Dispatch(desktop.APIAction{Outcome: desktop.Outcome{
		Action: desktop.NewAction(desktop.KindListDirectory, desktop.Args{Path: "."}),
		Result: desktop.Result{Output: resp.Result, Files: resp.Files},
	}})
}

func (o *Orchestrator) ToggleSidebar() desktop.State {
	return o.desktop.Dispatch(desktop.ToggleSidebar{})
}

func (o *Orchestrator) DesktopState() desktop.State {
	return o.desktop.State()
}

func (o *Orchestrator) Desktop() *desktop.Store {
	return o.desktop
}

func (o *Orchestrator) Messages() []history.Message {
	return o.history.Messages()
}

func (o *Orchestrator) ClearHistory() error {
	return o.history.Clear()
}

func (o *Orchestrator) Settings() settings.Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.current
}

func (o *Orchestrator) DesktopEnabled() bool {
	return o.Settings().DesktopEnabled()
}

// SaveSettings persists in and swaps the sandbox client. Losing the
// sandbox URL drops the mode back to chat; while the files view is open
// with a sandbox configured the listing is refreshed.
func (o *Orchestrator) SaveSettings(ctx context.Context, in settings.Settings) (settings.Settings, error) {
	if err := o.settings.Save(in); err != nil {
		return settings.Settings{}, err
	}
	return o.reloadSettings(ctx)
}

// SaveAPIKey stores only the model API key.
func (o *Orchestrator) SaveAPIKey(ctx context.Context, key string) (settings.Settings, error) {
	if err := o.settings.SaveAPIKey(key); err != nil {
		return settings.Settings{}, err
	}
	return o.reloadSettings(ctx)
}

func (o *Orchestrator) reloadSettings(ctx context.Context) (settings.Settings, error) {
	cur, err := o.settings.Load()
	if err != nil {
		return settings.Settings{}, err
	}
	o.mu.Lock()
	o.current = cur
	o.sandbox = sandbox.NewClient(cur.SandboxURL, o.httpClient)
	o.mode = o.gateModeLocked(o.mode)
	o.mu.Unlock()
	o.logger.Info("settings saved", "desktop_enabled", cur.DesktopEnabled(), "api_key_set", cur.APIKeySet)

	if st := o.desktop.State(); st.View == desktop.ViewFiles {
		o.refreshFiles(ctx, st)
	}
	return cur, nil
}

// Ping probes the currently configured sandbox.
func (o *Orchestrator) Ping(ctx context.Context) error {
	o.mu.RLock()
	client := o.sandbox
	o.mu.RUnlock()
	return client.Ping(ctx)
}
