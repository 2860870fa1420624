package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"deskchat/cli/internal/backend"
	"deskchat/cli/internal/config"
	"deskchat/cli/internal/global"
	"deskchat/cli/internal/lifecycle"
	"deskchat/cli/internal/sandboxserver"
)

const shutdownTimeout = 3 * time.Second

// ServeSandbox runs the sandbox HTTP API over opts.Root until ctx ends.
func ServeSandbox(ctx context.Context, opts SandboxOptions) error {
	logger := loggerOrDefault(opts.Logger)
	ws, err := sandboxserver.NewWorkspace(opts.Root, nil)
	if err != nil {
		return err
	}
	srv := sandboxserver.NewServer(ws, sandboxserver.Options{Logger: logger})
	addr := listenAddr(opts.Host, opts.Port)
	logger.Info("sandbox listening", "addr", "http://"+addr, "root", ws.Root())
	return serveHTTP(ctx, logger, "sandbox-http", addr, srv.Handler())
}

// ServeBackend runs the chat backend. The provider and per-mode models come
// from config.toml; DESKCHAT_PROVIDER and the provider's *_MODEL variable
// override them.
func ServeBackend(ctx context.Context, opts BackendOptions) error {
	logger := loggerOrDefault(opts.Logger)
	gcfg := global.GlobalConfig{}
	if dir := strings.TrimSpace(opts.ConfigDir); dir != "" {
		loaded, err := global.NewConfigStore(dir).LoadOrInit()
		if err != nil {
			return err
		}
		gcfg = loaded
	}
	p := resolveProvider(gcfg, opts.Config)
	gcfg.Provider = p.name
	srv := backend.NewServer(backend.Options{
		Completer:     p.completer,
		ModelFor:      modelResolver(gcfg, p.modelOverride),
		DefaultAPIKey: p.apiKey,
		Logger:        logger,
	})
	addr := listenAddr(opts.Host, opts.Port)
	logger.Info("chat backend listening", "addr", "http://"+addr, "provider", p.name, "endpoint", p.endpoint)
	return serveHTTP(ctx, logger, "backend-http", addr, srv.Handler())
}

type provider struct {
	name          string
	endpoint      string
	apiKey        string
	modelOverride string
	completer     backend.Completer
}

func resolveProvider(gcfg global.GlobalConfig, cfg config.Config) provider {
	name := gcfg.Provider
	if strings.TrimSpace(cfg.Provider) != "" {
		name = cfg.Provider
	}
	if global.NormalizeProvider(name) == global.ProviderGemini {
		return provider{
			name:          global.ProviderGemini,
			endpoint:      endpointLabel(cfg.GeminiEndpoint),
			apiKey:        cfg.GeminiAPIKey,
			modelOverride: cfg.GeminiModel,
			completer:     backend.NewGeminiCompleter(backend.GeminiConfig{BaseURL: cfg.GeminiEndpoint}, nil),
		}
	}
	return provider{
		name:          global.ProviderOpenAI,
		endpoint:      endpointLabel(cfg.OpenAIEndpoint),
		apiKey:        cfg.OpenAIAPIKey,
		modelOverride: cfg.OpenAIModel,
		completer:     backend.NewOpenAICompleter(backend.OpenAIConfig{BaseURL: cfg.OpenAIEndpoint, MaxRetries: 2}, nil),
	}
}

// modelResolver uses gcfg's provider models unless override is set, which
// then applies to every mode. gcfg.Provider must already match the
// provider in use.
func modelResolver(gcfg global.GlobalConfig, override string) func(string) string {
	override = strings.TrimSpace(override)
	return func(mode string) string {
		if override != "" {
			return override
		}
		return gcfg.ModelFor(mode)
	}
}

func endpointLabel(endpoint string) string {
	if strings.TrimSpace(endpoint) == "" {
		return "default"
	}
	return endpoint
}

func serveHTTP(ctx context.Context, logger *slog.Logger, name, addr string, h http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	mgr := lifecycle.NewManager(logger)
	mgr.AddRun(name, func(runCtx context.Context) error {
		go func() {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	mgr.AddShutdown(name+"-shutdown", func(shutdownCtx context.Context) error {
		err := httpServer.Shutdown(shutdownCtx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	return mgr.StartAndWait(ctx, os.Interrupt)
}

func listenAddr(host string, port int) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
