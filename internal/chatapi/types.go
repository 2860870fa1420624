package chatapi

import (
	"bytes"
	"encoding/json"
	"strings"
)

const APIKeyHeader = "X-Model-API-Key"

type Mode string

const (
	ModeChat       Mode = "chat"
	ModeAgent      Mode = "agent"
	ModeCUA        Mode = "cua"
	ModeHighEffort Mode = "high-effort"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeChat:
		return ModeChat, true
	case ModeAgent:
		return ModeAgent, true
	case ModeCUA:
		return ModeCUA, true
	case ModeHighEffort:
		return ModeHighEffort, true
	default:
		return "", false
	}
}

// UsesDesktop reports whether the mode lets the model emit desktop actions.
func (m Mode) UsesDesktop() bool {
	return m != ModeChat && m != ""
}

type Request struct {
	Message string `json:"message"`
	Mode    Mode   `json:"mode"`
	APIKey  string `json:"-"`
}

type Thinking struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Status    string   `json:"status,omitempty"`
	Output    string   `json:"output,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Thought   string   `json:"thought,omitempty"`
	Plan      string   `json:"plan,omitempty"`
	Steps     []string `json:"steps,omitempty"`
}

// UnmarshalJSON also accepts a bare string, which is what the backend
// sends for high-effort answers.
func (t *Thinking) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Thinking{Name: "thinking", Status: "completed", Output: s}
		return nil
	}
	type plain Thinking
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*t = Thinking(p)
	return nil
}

// RawAction is a desktop action exactly as the chat API emitted it.
// Decoding into typed actions happens in the desktop package.
type RawAction struct {
	Type string          `json:"type"`
	Args json.RawMessage `json:"args,omitempty"`
}

type Response struct {
	Response       string      `json:"response"`
	Thinking       *Thinking   `json:"thinking,omitempty"`
	DesktopActions []RawAction `json:"desktop_actions,omitempty"`
}
