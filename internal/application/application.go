package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"deskchat/cli/internal/chatapi"
	dbmodel "deskchat/cli/internal/db"
	"deskchat/cli/internal/desktop"
	"deskchat/cli/internal/global"
	"deskchat/cli/internal/health"
	"deskchat/cli/internal/history"
	"deskchat/cli/internal/kvstore"
	"deskchat/cli/internal/lifecycle"
	"deskchat/cli/internal/retry"
	"deskchat/cli/internal/session"
	"deskchat/cli/internal/settings"
)

const (
	DBFileName         = "deskchat.db"
	defaultHTTPTimeout = 5 * time.Minute
)

// Client is the assembled chat client: storage, settings, the session
// orchestrator and the sandbox health monitor.
type Client struct {
	db       *gorm.DB
	global   global.GlobalConfig
	settings *settings.Store
	history  *history.Log
	session  *session.Orchestrator
	monitor  *health.Monitor
	probe    retry.Policy
	logger   *slog.Logger
}

func Open(opts Options) (*Client, error) {
	configDir := strings.TrimSpace(opts.ConfigDir)
	if configDir == "" {
		return nil, errors.New("config dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	gcfg, err := global.NewConfigStore(configDir).LoadOrInit()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Join(configDir, "config.toml"), err)
	}
	dbPath := strings.TrimSpace(opts.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join(configDir, DBFileName)
	}
	gdb, err := dbmodel.Open(dbPath)
	if err != nil {
		return nil, err
	}
	c, err := assemble(gdb, gcfg, configDir, opts, httpClient, logger)
	if err != nil {
		_ = dbmodel.Close(gdb)
		return nil, err
	}
	return c, nil
}

func assemble(gdb *gorm.DB, gcfg global.GlobalConfig, configDir string, opts Options, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	kv, err := kvstore.NewGORM(gdb)
	if err != nil {
		return nil, err
	}
	st, err := settings.NewStore(kv, filepath.Join(configDir, settings.SecretFileName), opts.Config.SandboxURL)
	if err != nil {
		return nil, err
	}
	log, err := history.Load(kv)
	if err != nil {
		return nil, err
	}
	mode, ok := chatapi.ParseMode(gcfg.DefaultMode)
	if !ok {
		mode = chatapi.ModeChat
	}
	store := desktop.NewStore(desktop.Reducer{
		MaxActivities:    gcfg.Desktop.ActivityLimit(),
		MaxTerminalLines: gcfg.Desktop.TerminalLimit(),
	})
	orch, err := session.New(session.Options{
		Chat:       chatapi.NewClient(opts.Config.ChatURL, httpClient),
		History:    log,
		Settings:   st,
		Desktop:    store,
		HTTPClient: httpClient,
		Logger:     logger.With("module", "session"),
		Mode:       mode,
		SendRetry:  opts.SendRetry,
	})
	if err != nil {
		return nil, err
	}

	probe := retry.Policy{Delay: retry.DefaultDelay}
	if opts.ProbeRetry != nil {
		probe = *opts.ProbeRetry
	}

	interval := opts.Config.HealthInterval
	if interval <= 0 {
		interval = time.Duration(gcfg.HealthIntervalSeconds) * time.Second
	}
	return &Client{
		db:       gdb,
		global:   gcfg,
		settings: st,
		history:  log,
		session:  orch,
		monitor:  health.NewMonitor(orch, interval, logger.With("module", "health")),
		probe:    probe,
		logger:   logger,
	}, nil
}

func (c *Client) Session() *session.Orchestrator { return c.session }

func (c *Client) Monitor() *health.Monitor { return c.monitor }

func (c *Client) History() *history.Log { return c.history }

func (c *Client) Settings() *settings.Store { return c.settings }

func (c *Client) GlobalConfig() global.GlobalConfig { return c.global }

func (c *Client) Close(context.Context) error {
	if c == nil || c.db == nil {
		return nil
	}
	return dbmodel.Close(c.db)
}

// Run drives ui alongside the health monitor. When ui returns, the monitor
// stops and the database is closed.
func (c *Client) Run(ctx context.Context, ui func(context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mgr := lifecycle.NewManager(c.logger)
	mgr.AddRun("health-monitor", c.monitor.Run)
	mgr.AddRun("ui", func(uiCtx context.Context) error {
		defer cancel()
		return ui(uiCtx)
	})
	mgr.AddShutdown("close-db", c.Close)
	return mgr.StartAndWait(runCtx)
}

// SendOnce submits text outside the TUI. A desktop mode first waits for the
// sandbox; if it never answers the submit still runs and the dispatcher
// reports the failures.
func (c *Client) SendOnce(ctx context.Context, text string, mode chatapi.Mode) (session.Reply, error) {
	if mode != "" {
		if got := c.session.SetMode(mode); got != mode {
			c.logger.Warn("mode needs a sandbox URL, using chat", "requested", mode)
		}
	}
	if c.session.Mode().UsesDesktop() {
		if err := c.monitor.WaitReady(ctx, c.probe); err != nil {
			c.logger.Warn("sandbox not reachable", "err", err)
		}
	}
	return c.session.Submit(ctx, text)
}
