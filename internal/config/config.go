package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	SandboxURL     string
	ChatURL        string
	LogLevel       string
	ConfigDir      string
	SandboxRoot    string
	ListenHost     string
	SandboxPort    int
	BackendPort    int
	HealthInterval time.Duration
	OpenAIEndpoint string
	OpenAIModel    string
	OpenAIAPIKey   string

	// Provider overrides the backend provider from config.toml when set.
	Provider       string
	GeminiEndpoint string
	GeminiModel    string
	GeminiAPIKey   string
}

var (
	defaultChatURL     = "http://127.0.0.1:8000"
	defaultSandboxPort = 3001
	defaultBackendPort = 8000
)

func LoadConfig() Config {
	return loadFromEnv()
}

func loadFromEnv() Config {
	chatURL := strings.TrimRight(strings.TrimSpace(os.Getenv("DESKCHAT_CHAT_URL")), "/")
	if chatURL == "" {
		chatURL = defaultChatURL
	}

	level := os.Getenv("DESKCHAT_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	sandboxRoot := strings.TrimSpace(os.Getenv("DESKCHAT_SANDBOX_ROOT"))
	if sandboxRoot == "" {
		sandboxRoot = "."
	}
	listenHost := os.Getenv("DESKCHAT_LISTEN_HOST")
	if listenHost == "" {
		listenHost = "127.0.0.1"
	}

	// Zero means "not set" for the health interval; the config file then decides.
	healthInterval := time.Duration(atoiOrDefault(os.Getenv("DESKCHAT_HEALTH_INTERVAL"), 0)) * time.Second

	return Config{
		SandboxURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("DESKCHAT_SANDBOX_URL")), "/"),
		ChatURL:        chatURL,
		LogLevel:       level,
		ConfigDir:      strings.TrimSpace(os.Getenv("DESKCHAT_CONFIG_DIR")),
		SandboxRoot:    sandboxRoot,
		ListenHost:     listenHost,
		SandboxPort:    atoiOrDefault(os.Getenv("DESKCHAT_SANDBOX_PORT"), defaultSandboxPort),
		BackendPort:    atoiOrDefault(os.Getenv("DESKCHAT_BACKEND_PORT"), defaultBackendPort),
		HealthInterval: healthInterval,
		OpenAIEndpoint: os.Getenv("OPENAI_ENDPOINT"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		Provider:       strings.ToLower(strings.TrimSpace(os.Getenv("DESKCHAT_PROVIDER"))),
		GeminiEndpoint: os.Getenv("GEMINI_ENDPOINT"),
		GeminiModel:    os.Getenv("GEMINI_MODEL"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
	}
}

func atoiOrDefault(v string, fallback int) int {
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	if n == 0 {
		return fallback
	}
	return n
}
