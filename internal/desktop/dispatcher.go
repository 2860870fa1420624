package desktop

import (
	"context"
	"fmt"
	"log/slog"

	"deskchat/cli/internal/sandbox"
)

const DisabledMessage = "Desktop features are not enabled. Please provide an MCP Server URL in settings."

// Desktop is the sandbox surface the dispatcher drives. sandbox.Client
// implements it.
type Desktop interface {
	ExecuteCommand(ctx context.Context, command string) (sandbox.Response, error)
	WriteFile(ctx context.Context, path, content string) (sandbox.Response, error)
	ReadFile(ctx context.Context, path string) (sandbox.Response, error)
	ListDirectory(ctx context.Context, path string) (sandbox.Response, error)
	CreateDirectory(ctx context.Context, path string) (sandbox.Response, error)
	MoveItem(ctx context.Context, path, newPath string) (sandbox.Response, error)
	DeleteItem(ctx context.Context, path string, isDir bool) (sandbox.Response, error)
}

type Dispatcher struct {
	desktop Desktop
	enabled func() bool
	logger  *slog.Logger
}

// NewDispatcher builds a dispatcher. enabled is consulted once per Run;
// nil means enabled whenever desktop is non-nil.
func NewDispatcher(desktop Desktop, enabled func() bool, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{desktop: desktop, enabled: enabled, logger: logger}
}

func (d *Dispatcher) Enabled() bool {
	if d == nil || d.desktop == nil {
		return false
	}
	if d.enabled == nil {
		return true
	}
	return d.enabled()
}

// Run executes actions one at a time in order. apply receives each
// outcome before the next action starts. A failed action never stops the
// batch; a cancelled ctx marks the remaining actions as failed without
// calling the sandbox.
func (d *Dispatcher) Run(ctx context.Context, actions []Action, apply func(Outcome)) []Outcome {
	enabled := d.Enabled()
	out := make([]Outcome, 0, len(actions))
	for i, a := range actions {
		var res Result
		switch {
		case !enabled:
			res = Result{Error: DisabledMessage}
		case ctx.Err() != nil:
			res = Result{Error: ctx.Err().Error()}
		default:
			res = d.execute(ctx, a)
		}
		if res.Failed() {
			d.logger.Warn("desktop action failed", "index", i, "type", a.Type, "error", res.Error)
		} else {
			d.logger.Debug("desktop action done", "index", i, "type", a.Type)
		}
		o := Outcome{Action: a, Result: res}
		if apply != nil {
			apply(o)
		}
		out = append(out, o)
	}
	return out
}

func (d *Dispatcher) execute(ctx context.Context, a Action) Result {
	if err := a.ArgsError(); err != nil {
		return Result{Error: err.Error()}
	}
	var (
		resp sandbox.Response
		err  error
	)
	switch a.Kind {
	case KindExecuteCommand:
		resp, err = d.desktop.ExecuteCommand(ctx, a.Args.Command)
	case KindWriteFile:
		resp, err = d.desktop.WriteFile(ctx, a.Args.Path, a.Args.Content)
	case KindReadFile:
		resp, err = d.desktop.ReadFile(ctx, a.Args.Path)
	case KindListDirectory:
		resp, err = d.desktop.ListDirectory(ctx, a.Args.Path)
	case KindCreateDirectory:
		resp, err = d.desktop.CreateDirectory(ctx, a.Args.Path)
	case KindMoveItem:
		resp, err = d.desktop.MoveItem(ctx, a.Args.Path, a.Args.NewPath)
	case KindDeleteItem:
		resp, err = d.desktop.DeleteItem(ctx, a.Args.Path, a.Args.IsDir)
	default:
		return Result{Error: fmt.Sprintf("Unknown desktop action type: %s", a.Type)}
	}
	if err != nil {
		return Result{Error: err.Error()}
	}
	output := resp.Result
	if output == "" {
		output = resp.Message
	}
	return Result{Output: output, Content: resp.Content, Files: resp.Files}
}
