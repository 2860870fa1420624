package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"deskchat/cli/internal/desktop"

	tea "github.com/charmbracelet/bubbletea"
)

// Monitor reports sandbox reachability. *health.Monitor implements it.
type Monitor interface {
	Connected() bool
	OnChange(fn func(bool))
}

// Subscriber delivers desktop state changes. *desktop.Store implements it.
type Subscriber interface {
	Subscribe(fn func(desktop.State))
}

type Options struct {
	Session Session
	Monitor Monitor
	Desktop Subscriber
	Logger  *slog.Logger
}

const eventBuffer = 64

// Run blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Session == nil {
		return errors.New("tui: session is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := make(chan tea.Msg, eventBuffer)
	push := func(msg tea.Msg) {
		select {
		case events <- msg:
		default:
			logger.Debug("tui event dropped", "type", fmt.Sprintf("%T", msg))
		}
	}

	connected := false
	if opts.Monitor != nil {
		connected = opts.Monitor.Connected()
		opts.Monitor.OnChange(func(ok bool) { push(connMsg{connected: ok}) })
	}
	if opts.Desktop != nil {
		opts.Desktop.Subscribe(func(st desktop.State) { push(desktopMsg{state: st}) })
	}

	m := newModel(ctx, opts.Session, events, connected)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	logger.Info("tui started", "mode", opts.Session.Mode())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
