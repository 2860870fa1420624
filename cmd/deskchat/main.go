package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"deskchat/cli/internal/application"
	"deskchat/cli/internal/command"
	"deskchat/cli/internal/config"
	dbmodel "deskchat/cli/internal/db"
	"deskchat/cli/internal/global"
	"deskchat/cli/internal/history"
	"deskchat/cli/internal/logging"
	"deskchat/cli/internal/retry"
	"deskchat/cli/internal/settings"
	"deskchat/cli/internal/tui"
)

const logFileName = "deskchat.log"

var openClient = application.Open

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig:   config.LoadConfig,
		RunChat:      runChat,
		RunSend:      runSend,
		RunSandbox:   runSandbox,
		RunBackend:   runBackend,
		ShowHistory:  showHistory,
		ClearHistory: clearHistory,
		ShowSettings: showSettings,
		SaveSettings: saveSettings,
		RunMigrateUp: runMigrateUp,
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "deskchat"}).Error("deskchat failed", "err", err)
		os.Exit(1)
	}
}

func configDir(cfg config.Config) (string, error) {
	if dir := strings.TrimSpace(cfg.ConfigDir); dir != "" {
		return dir, nil
	}
	return global.DefaultConfigDir()
}

func stderrLogger(cfg config.Config, component string) *slog.Logger {
	return logging.NewLogger(logging.Options{Level: cfg.LogLevel, Writer: os.Stderr, Component: component})
}

func open(cfg config.Config, logger *slog.Logger, sendRetry *retry.Policy) (*application.Client, error) {
	dir, err := configDir(cfg)
	if err != nil {
		return nil, err
	}
	return openClient(application.Options{
		Config:    cfg,
		ConfigDir: dir,
		Logger:    logger,
		SendRetry: sendRetry,
	})
}

// runChat owns the terminal, so logs go to a file in the config dir.
func runChat(ctx context.Context, cfg config.Config) error {
	dir, err := configDir(cfg)
	if err != nil {
		return err
	}
	logger, closer, err := logging.NewFileLogger(filepath.Join(dir, logFileName), logging.Options{Level: cfg.LogLevel, Component: "deskchat"})
	if err != nil {
		return err
	}
	defer closeQuietly(closer)

	client, err := open(cfg, logger, nil)
	if err != nil {
		return err
	}
	sess := client.Session()
	return client.Run(ctx, func(uiCtx context.Context) error {
		return tui.Run(uiCtx, tui.Options{
			Session: sess,
			Monitor: client.Monitor(),
			Desktop: sess.Desktop(),
			Logger:  logger.With("module", "tui"),
		})
	})
}

func runSend(ctx context.Context, cfg config.Config, req command.SendRequest) (command.SendResult, error) {
	var sendRetry *retry.Policy
	if req.Retry {
		sendRetry = &retry.Policy{Delay: retry.DefaultDelay}
	}
	client, err := open(cfg, stderrLogger(cfg, "deskchat"), sendRetry)
	if err != nil {
		return command.SendResult{}, err
	}
	defer closeQuietly(closerFunc(func() error { return client.Close(context.Background()) }))

	reply, err := client.SendOnce(ctx, req.Message, req.Mode)
	if err != nil {
		return command.SendResult{}, err
	}
	return command.SendResult{Reply: reply, Desktop: client.Session().DesktopState()}, nil
}

func runSandbox(ctx context.Context, cfg config.Config) error {
	return application.ServeSandbox(ctx, application.SandboxOptions{
		Host:   cfg.ListenHost,
		Port:   cfg.SandboxPort,
		Root:   cfg.SandboxRoot,
		Logger: stderrLogger(cfg, "sandbox"),
	})
}

func runBackend(ctx context.Context, cfg config.Config) error {
	dir, err := configDir(cfg)
	if err != nil {
		return err
	}
	return application.ServeBackend(ctx, application.BackendOptions{
		Host:      cfg.ListenHost,
		Port:      cfg.BackendPort,
		ConfigDir: dir,
		Config:    cfg,
		Logger:    stderrLogger(cfg, "backend"),
	})
}

func showHistory(_ context.Context, cfg config.Config) ([]history.Message, error) {
	client, err := open(cfg, stderrLogger(cfg, "deskchat"), nil)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(closerFunc(func() error { return client.Close(context.Background()) }))
	return client.History().Messages(), nil
}

func clearHistory(_ context.Context, cfg config.Config) error {
	client, err := open(cfg, stderrLogger(cfg, "deskchat"), nil)
	if err != nil {
		return err
	}
	defer closeQuietly(closerFunc(func() error { return client.Close(context.Background()) }))
	return client.Session().ClearHistory()
}

func showSettings(_ context.Context, cfg config.Config) (settings.Settings, error) {
	client, err := open(cfg, stderrLogger(cfg, "deskchat"), nil)
	if err != nil {
		return settings.Settings{}, err
	}
	defer closeQuietly(closerFunc(func() error { return client.Close(context.Background()) }))
	return client.Settings().Load()
}

func saveSettings(ctx context.Context, cfg config.Config, upd command.SettingsUpdate) (settings.Settings, error) {
	client, err := open(cfg, stderrLogger(cfg, "deskchat"), nil)
	if err != nil {
		return settings.Settings{}, err
	}
	defer closeQuietly(closerFunc(func() error { return client.Close(context.Background()) }))

	if upd.ClearAPIKey {
		if err := client.Settings().ClearAPIKey(); err != nil {
			return settings.Settings{}, err
		}
	}
	if upd.SandboxURL == nil {
		return client.Session().SaveAPIKey(ctx, upd.APIKey)
	}
	next := client.Session().Settings()
	next.APIKey = upd.APIKey
	next.SandboxURL = *upd.SandboxURL
	return client.Session().SaveSettings(ctx, next)
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	dir, err := configDir(cfg)
	if err != nil {
		return err
	}
	gdb, err := dbmodel.Open(filepath.Join(dir, application.DBFileName))
	if err != nil {
		return err
	}
	defer closeQuietly(closerFunc(func() error { return dbmodel.Close(gdb) }))
	return dbmodel.MigrateUp(gdb)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
