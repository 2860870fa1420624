package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"deskchat/cli/internal/chatapi"
	"deskchat/cli/internal/config"
	"deskchat/cli/internal/desktop"
	"deskchat/cli/internal/history"
	"deskchat/cli/internal/session"
	"deskchat/cli/internal/settings"
)

// SendRequest is one non-interactive submit. An empty Mode keeps the
// configured default.
type SendRequest struct {
	Message string
	Mode    chatapi.Mode
	Retry   bool
}

type SendResult struct {
	Reply   session.Reply
	Desktop desktop.State
}

// SettingsUpdate carries only what the user asked to change. A nil
// SandboxURL leaves the stored URL alone; an empty one disables the
// desktop.
type SettingsUpdate struct {
	SandboxURL  *string
	APIKey      string
	ClearAPIKey bool
}

type Deps struct {
	LoadConfig   func() config.Config
	RunChat      func(context.Context, config.Config) error
	RunSend      func(context.Context, config.Config, SendRequest) (SendResult, error)
	RunSandbox   func(context.Context, config.Config) error
	RunBackend   func(context.Context, config.Config) error
	ShowHistory  func(context.Context, config.Config) ([]history.Message, error)
	ClearHistory func(context.Context, config.Config) error
	ShowSettings func(context.Context, config.Config) (settings.Settings, error)
	SaveSettings func(context.Context, config.Config, SettingsUpdate) (settings.Settings, error)
	RunMigrateUp func(context.Context, config.Config) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "deskchat",
		Usage: "chat client with an agent-driven virtual desktop",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-dir", Usage: "override the config directory"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "chat-url", Usage: "chat API base URL"},
		},
		Action: func(ctx *cli.Context) error {
			return runChat(ctx.Context, deps, loadConfig(ctx, deps))
		},
		Commands: []*cli.Command{
			{
				Name:  "chat",
				Usage: "open the interactive chat",
				Action: func(ctx *cli.Context) error {
					return runChat(ctx.Context, deps, loadConfig(ctx, deps))
				},
			},
			{
				Name:      "send",
				Usage:     "send one message and print the reply",
				ArgsUsage: "<message...>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Usage: "chat, agent, cua or high-effort"},
					&cli.BoolFlag{Name: "retry", Usage: "retry the chat call on failure"},
				},
				Action: func(ctx *cli.Context) error {
					cfg := loadConfig(ctx, deps)
					req, err := sendRequest(ctx)
					if err != nil {
						return err
					}
					if deps.RunSend == nil {
						return errors.New("send runner is not configured")
					}
					res, err := deps.RunSend(ctx.Context, cfg, req)
					if err != nil {
						return err
					}
					writeSendResult(ctx.App.Writer, res)
					return res.Reply.Err
				},
			},
			{
				Name:  "serve",
				Usage: "run a local service",
				Subcommands: []*cli.Command{
					{
						Name:  "sandbox",
						Usage: "serve the sandbox API over a local directory",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "root", Usage: "workspace root"},
							&cli.StringFlag{Name: "host", Usage: "listen host"},
							&cli.IntFlag{Name: "port", Usage: "listen port"},
						},
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(ctx, deps)
							if ctx.IsSet("root") {
								cfg.SandboxRoot = ctx.String("root")
							}
							if ctx.IsSet("host") {
								cfg.ListenHost = ctx.String("host")
							}
							if ctx.IsSet("port") {
								cfg.SandboxPort = ctx.Int("port")
							}
							if deps.RunSandbox == nil {
								return errors.New("sandbox runner is not configured")
							}
							return deps.RunSandbox(ctx.Context, cfg)
						},
					},
					{
						Name:  "backend",
						Usage: "serve the chat backend",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "host", Usage: "listen host"},
							&cli.IntFlag{Name: "port", Usage: "listen port"},
						},
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(ctx, deps)
							if ctx.IsSet("host") {
								cfg.ListenHost = ctx.String("host")
							}
							if ctx.IsSet("port") {
								cfg.BackendPort = ctx.Int("port")
							}
							if deps.RunBackend == nil {
								return errors.New("backend runner is not configured")
							}
							return deps.RunBackend(ctx.Context, cfg)
						},
					},
				},
			},
			{
				Name:  "history",
				Usage: "inspect the stored conversation",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "print every stored message",
						Action: func(ctx *cli.Context) error {
							if deps.ShowHistory == nil {
								return errors.New("history runner is not configured")
							}
							msgs, err := deps.ShowHistory(ctx.Context, loadConfig(ctx, deps))
							if err != nil {
								return err
							}
							writeHistory(ctx.App.Writer, msgs)
							return nil
						},
					},
					{
						Name:  "clear",
						Usage: "delete the stored conversation",
						Action: func(ctx *cli.Context) error {
							if deps.ClearHistory == nil {
								return errors.New("history runner is not configured")
							}
							return deps.ClearHistory(ctx.Context, loadConfig(ctx, deps))
						},
					},
				},
			},
			{
				Name:  "settings",
				Usage: "show or change the sandbox URL and model API key",
				Subcommands: []*cli.Command{
					{
						Name:  "show",
						Usage: "print current settings",
						Action: func(ctx *cli.Context) error {
							if deps.ShowSettings == nil {
								return errors.New("settings runner is not configured")
							}
							s, err := deps.ShowSettings(ctx.Context, loadConfig(ctx, deps))
							if err != nil {
								return err
							}
							writeSettings(ctx.App.Writer, s)
							return nil
						},
					},
					{
						Name:  "set",
						Usage: "update settings",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "sandbox-url", Usage: "sandbox base URL, empty to disable the desktop"},
							&cli.StringFlag{Name: "api-key", Usage: "model API key"},
							&cli.BoolFlag{Name: "clear-api-key", Usage: "forget the stored model API key"},
						},
						Action: func(ctx *cli.Context) error {
							if deps.SaveSettings == nil {
								return errors.New("settings runner is not configured")
							}
							upd := SettingsUpdate{
								APIKey:      strings.TrimSpace(ctx.String("api-key")),
								ClearAPIKey: ctx.Bool("clear-api-key"),
							}
							if ctx.IsSet("sandbox-url") {
								u := ctx.String("sandbox-url")
								upd.SandboxURL = &u
							}
							if upd.ClearAPIKey && upd.APIKey != "" {
								return errors.New("--api-key and --clear-api-key are mutually exclusive")
							}
							s, err := deps.SaveSettings(ctx.Context, loadConfig(ctx, deps), upd)
							if err != nil {
								return err
							}
							writeSettings(ctx.App.Writer, s)
							return nil
						},
					},
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(ctx *cli.Context) error {
							return runMigrateUp(ctx.Context, deps, loadConfig(ctx, deps))
						},
					},
				},
			},
		},
	}
}

// loadConfig reads the environment and applies the global flags on top.
func loadConfig(ctx *cli.Context, deps Deps) config.Config {
	var cfg config.Config
	if deps.LoadConfig != nil {
		cfg = deps.LoadConfig()
	} else {
		cfg = config.LoadConfig()
	}
	if v := strings.TrimSpace(ctx.String("config-dir")); v != "" {
		cfg.ConfigDir = v
	}
	if v := strings.TrimSpace(ctx.String("log-level")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(ctx.String("chat-url")); v != "" {
		cfg.ChatURL = strings.TrimRight(v, "/")
	}
	return cfg
}

func sendRequest(ctx *cli.Context) (SendRequest, error) {
	msg := strings.TrimSpace(strings.Join(ctx.Args().Slice(), " "))
	if msg == "" {
		return SendRequest{}, errors.New("message is required")
	}
	req := SendRequest{Message: msg, Retry: ctx.Bool("retry")}
	if raw := ctx.String("mode"); raw != "" {
		mode, ok := chatapi.ParseMode(raw)
		if !ok {
			return SendRequest{}, fmt.Errorf("unknown mode %q", raw)
		}
		req.Mode = mode
	}
	return req, nil
}

func runChat(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunChat == nil {
		return errors.New("chat runner is not configured")
	}
	return deps.RunChat(ctx, cfg)
}

func runMigrateUp(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunMigrateUp == nil {
		return errors.New("migrate up runner is not configured")
	}
	return deps.RunMigrateUp(ctx, cfg)
}
