package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DESKCHAT_SANDBOX_URL", "DESKCHAT_CHAT_URL", "DESKCHAT_LOG_LEVEL", "DESKCHAT_CONFIG_DIR",
		"DESKCHAT_SANDBOX_ROOT", "DESKCHAT_LISTEN_HOST", "DESKCHAT_SANDBOX_PORT", "DESKCHAT_BACKEND_PORT",
		"DESKCHAT_HEALTH_INTERVAL", "OPENAI_ENDPOINT", "OPENAI_MODEL", "OPENAI_API_KEY",
		"DESKCHAT_PROVIDER", "GEMINI_ENDPOINT", "GEMINI_MODEL", "GEMINI_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig()
	if cfg.SandboxURL != "" {
		t.Fatalf("sandbox url should default empty, got %q", cfg.SandboxURL)
	}
	if cfg.ChatURL != "http://127.0.0.1:8000" {
		t.Fatalf("unexpected ChatURL: %s", cfg.ChatURL)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("unexpected LogLevel: %s", cfg.LogLevel)
	}
	if cfg.SandboxRoot != "." {
		t.Fatalf("unexpected sandbox root: %s", cfg.SandboxRoot)
	}
	if cfg.ListenHost != "127.0.0.1" {
		t.Fatalf("unexpected listen host: %s", cfg.ListenHost)
	}
	if cfg.SandboxPort != 3001 || cfg.BackendPort != 8000 {
		t.Fatalf("unexpected ports: sandbox=%d backend=%d", cfg.SandboxPort, cfg.BackendPort)
	}
	if cfg.HealthInterval != 0 {
		t.Fatalf("health interval should be unset, got %s", cfg.HealthInterval)
	}
	if cfg.OpenAIEndpoint != "" || cfg.OpenAIModel != "" || cfg.OpenAIAPIKey != "" {
		t.Fatalf("openai env should default empty, got endpoint=%q model=%q key-set=%v", cfg.OpenAIEndpoint, cfg.OpenAIModel, cfg.OpenAIAPIKey != "")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DESKCHAT_SANDBOX_URL", "http://sandbox:3001/")
	t.Setenv("DESKCHAT_CHAT_URL", "http://backend:9000/")
	t.Setenv("DESKCHAT_SANDBOX_ROOT", "/tmp/work")
	t.Setenv("DESKCHAT_LISTEN_HOST", "0.0.0.0")
	t.Setenv("DESKCHAT_SANDBOX_PORT", "4001")
	t.Setenv("DESKCHAT_BACKEND_PORT", "9000")
	t.Setenv("DESKCHAT_HEALTH_INTERVAL", "2")
	t.Setenv("OPENAI_ENDPOINT", "https://api.example.com/v1")
	t.Setenv("OPENAI_MODEL", "gpt-5-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := LoadConfig()
	if cfg.SandboxURL != "http://sandbox:3001" {
		t.Fatalf("unexpected sandbox url: %s", cfg.SandboxURL)
	}
	if cfg.ChatURL != "http://backend:9000" {
		t.Fatalf("unexpected chat url: %s", cfg.ChatURL)
	}
	if cfg.SandboxRoot != "/tmp/work" || cfg.ListenHost != "0.0.0.0" {
		t.Fatalf("unexpected root/host: %s %s", cfg.SandboxRoot, cfg.ListenHost)
	}
	if cfg.SandboxPort != 4001 || cfg.BackendPort != 9000 {
		t.Fatalf("unexpected ports: sandbox=%d backend=%d", cfg.SandboxPort, cfg.BackendPort)
	}
	if cfg.HealthInterval != 2*time.Second {
		t.Fatalf("unexpected health interval: %s", cfg.HealthInterval)
	}
	if cfg.OpenAIEndpoint != "https://api.example.com/v1" || cfg.OpenAIModel != "gpt-5-mini" || cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("unexpected openai config: %+v", cfg)
	}
}

func TestLoadConfig_MalformedPortFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("DESKCHAT_SANDBOX_PORT", "30x1")
	t.Setenv("DESKCHAT_BACKEND_PORT", "0")
	cfg := LoadConfig()
	if cfg.SandboxPort != 3001 || cfg.BackendPort != 8000 {
		t.Fatalf("expected fallback ports, got sandbox=%d backend=%d", cfg.SandboxPort, cfg.BackendPort)
	}
}

func TestLoadConfig_GeminiProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("DESKCHAT_PROVIDER", " Gemini ")
	t.Setenv("GEMINI_ENDPOINT", "http://127.0.0.1:9")
	t.Setenv("GEMINI_MODEL", "gemini-test")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg := LoadConfig()
	if cfg.Provider != "gemini" {
		t.Fatalf("unexpected provider %q", cfg.Provider)
	}
	if cfg.GeminiEndpoint != "http://127.0.0.1:9" || cfg.GeminiModel != "gemini-test" || cfg.GeminiAPIKey != "g-key" {
		t.Fatalf("unexpected gemini config: %+v", cfg)
	}
}
