package application

import (
	"log/slog"
	"net/http"

	"deskchat/cli/internal/config"
	"deskchat/cli/internal/retry"
)

// Options configure the interactive client (TUI and one-shot send).
type Options struct {
	Config     config.Config
	ConfigDir  string
	DBPath     string
	HTTPClient *http.Client
	Logger     *slog.Logger
	SendRetry  *retry.Policy
	// ProbeRetry bounds the sandbox wait in SendOnce. Nil means
	// DefaultAttempts spaced DefaultDelay apart.
	ProbeRetry *retry.Policy
}

type SandboxOptions struct {
	Host   string
	Port   int
	Root   string
	Logger *slog.Logger
}

type BackendOptions struct {
	Host      string
	Port      int
	ConfigDir string
	Config    config.Config
	Logger    *slog.Logger
}
