package global

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configTOMLFileName = "config.toml"

	defaultMode                  = "chat"
	ProviderOpenAI               = "openai"
	ProviderGemini               = "gemini"
	defaultMaxActivities         = 500
	defaultMaxTerminalLines      = 2000
	defaultHealthIntervalSeconds = 5
)

var defaultModels = map[string]string{
	"chat":        "gpt-4o",
	"agent":       "gpt-4o",
	"cua":         "gpt-4o-mini",
	"high-effort": "o4-mini",
}

var defaultGeminiModels = map[string]string{
	"chat":        "gemini-2.5-flash",
	"agent":       "gemini-2.5-flash",
	"cua":         "gemini-2.5-flash-lite",
	"high-effort": "gemini-2.5-pro",
}

type DesktopConfig struct {
	MaxActivities    int `json:"max_activities" toml:"max_activities"`
	MaxTerminalLines int `json:"max_terminal_lines" toml:"max_terminal_lines"`
}

// ActivityLimit converts the file value to a reducer bound: any negative
// value disables the bound (0).
func (d DesktopConfig) ActivityLimit() int {
	if d.MaxActivities < 0 {
		return 0
	}
	return d.MaxActivities
}

func (d DesktopConfig) TerminalLimit() int {
	if d.MaxTerminalLines < 0 {
		return 0
	}
	return d.MaxTerminalLines
}

type GlobalConfig struct {
	DefaultMode           string            `json:"default_mode" toml:"default_mode"`
	HealthIntervalSeconds int               `json:"health_interval_seconds" toml:"health_interval_seconds"`
	Provider              string            `json:"provider" toml:"provider"`
	Desktop               DesktopConfig     `json:"desktop" toml:"desktop"`
	Models                map[string]string `json:"models" toml:"models"`
	GeminiModels          map[string]string `json:"gemini_models" toml:"gemini_models"`
}

// ModelFor returns the model the configured provider uses for mode,
// falling back to its chat model.
func (c GlobalConfig) ModelFor(mode string) string {
	models, defaults := c.Models, defaultModels
	if NormalizeProvider(c.Provider) == ProviderGemini {
		models, defaults = c.GeminiModels, defaultGeminiModels
	}
	if m := strings.TrimSpace(models[strings.ToLower(strings.TrimSpace(mode))]); m != "" {
		return m
	}
	if m := strings.TrimSpace(models[defaultMode]); m != "" {
		return m
	}
	return defaults[defaultMode]
}

// NormalizeProvider maps unknown or empty names to openai.
func NormalizeProvider(name string) string {
	if strings.ToLower(strings.TrimSpace(name)) == ProviderGemini {
		return ProviderGemini
	}
	return ProviderOpenAI
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) Path() string {
	return filepath.Join(s.dir, configTOMLFileName)
}

func (s *ConfigStore) LoadOrInit() (GlobalConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return GlobalConfig{}, err
	}

	path := s.Path()
	if b, err := os.ReadFile(path); err == nil {
		var cfg GlobalConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return GlobalConfig{}, err
		}
		return normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return GlobalConfig{}, err
	}

	cfg := normalizeConfig(GlobalConfig{})
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Save(cfg GlobalConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(s.Path(), normalizeConfig(cfg))
}

func normalizeConfig(cfg GlobalConfig) GlobalConfig {
	cfg.DefaultMode = normalizeMode(cfg.DefaultMode)
	if cfg.HealthIntervalSeconds <= 0 {
		cfg.HealthIntervalSeconds = defaultHealthIntervalSeconds
	}
	if cfg.Desktop.MaxActivities == 0 {
		cfg.Desktop.MaxActivities = defaultMaxActivities
	}
	if cfg.Desktop.MaxTerminalLines == 0 {
		cfg.Desktop.MaxTerminalLines = defaultMaxTerminalLines
	}
	cfg.Provider = NormalizeProvider(cfg.Provider)
	cfg.Models = normalizeModels(cfg.Models, defaultModels)
	cfg.GeminiModels = normalizeModels(cfg.GeminiModels, defaultGeminiModels)
	return cfg
}

func normalizeMode(mode string) string {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "chat", "agent", "cua", "high-effort":
		return m
	default:
		return defaultMode
	}
}

func normalizeModels(in, defaults map[string]string) map[string]string {
	out := make(map[string]string, len(defaults))
	for mode, model := range defaults {
		out[mode] = model
	}
	for mode, model := range in {
		mode = strings.ToLower(strings.TrimSpace(mode))
		model = strings.TrimSpace(model)
		if mode == "" || model == "" {
			continue
		}
		out[mode] = model
	}
	return out
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
