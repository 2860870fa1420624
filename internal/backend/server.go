package backend

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"deskchat/cli/internal/chatapi"
	"deskchat/cli/internal/desktop"
)

const (
	RunningMessage     = "Chat backend is running"
	ActionCompleted    = "Action completed."
	missingKeyDetail   = "Model API key is missing. Provide it in the " + chatapi.APIKeyHeader + " header or as OPENAI_API_KEY."
	maxRequestBodySize = 1 << 20
)

type Options struct {
	Completer     Completer
	ModelFor      func(mode string) string
	DefaultAPIKey string
	Logger        *slog.Logger
}

// Server answers chat requests. It never touches the sandbox itself: tool
// calls go back to the client as desktop actions.
type Server struct {
	completer     Completer
	modelFor      func(mode string) string
	defaultAPIKey string
	logger        *slog.Logger
	mux           *http.ServeMux
}

type chatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type toolUse struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type chatResponse struct {
	Response       string              `json:"response"`
	ToolsUsed      []toolUse           `json:"tools_used"`
	DesktopActions []chatapi.RawAction `json:"desktop_actions,omitempty"`
	Thinking       string              `json:"thinking,omitempty"`
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ModelFor == nil {
		opts.ModelFor = func(string) string { return "gpt-4o" }
	}
	s := &Server{
		completer:     opts.Completer,
		modelFor:      opts.ModelFor,
		defaultAPIKey: strings.TrimSpace(opts.DefaultAPIKey),
		logger:        opts.Logger,
		mux:           http.NewServeMux(),
	}
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/api/chat", s.handleChat)
	s.mux.HandleFunc("/chat", s.handleChat)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "Not found.")
		return
	}
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": RunningMessage})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	apiKey := strings.TrimSpace(r.Header.Get(chatapi.APIKeyHeader))
	if apiKey == "" {
		apiKey = s.defaultAPIKey
	}
	if apiKey == "" {
		respondError(w, http.StatusUnauthorized, missingKeyDetail)
		return
	}
	if s.completer == nil {
		respondError(w, http.StatusInternalServerError, "No model provider configured.")
		return
	}

	mode, ok := chatapi.ParseMode(req.Mode)
	if !ok {
		mode = chatapi.ModeChat
	}
	model := s.modelFor(string(mode))
	s.logger.Info("chat request", "mode", mode, "model", model)

	completion, err := s.completer.Complete(r.Context(), CompletionRequest{
		Model:     model,
		APIKey:    apiKey,
		System:    systemPrompt(mode),
		User:      req.Message,
		WithTools: mode.UsesDesktop(),
	})
	if err != nil {
		s.logger.Warn("chat completion failed", "mode", mode, "err", err)
		writeJSON(w, http.StatusOK, chatResponse{Response: "Sorry, there was an error: " + err.Error(), ToolsUsed: []toolUse{}})
		return
	}
	writeJSON(w, http.StatusOK, s.buildResponse(mode, completion))
}

func (s *Server) buildResponse(mode chatapi.Mode, c Completion) chatResponse {
	out := chatResponse{Response: c.Text, ToolsUsed: make([]toolUse, 0, len(c.ToolCalls))}
	for _, tc := range c.ToolCalls {
		args := tc.Arguments
		if len(args) == 0 || !json.Valid(args) {
			s.logger.Warn("tool call arguments are not valid JSON", "tool", tc.Name)
			args = json.RawMessage("{}")
		}
		if desktop.ParseKind(tc.Name) == desktop.KindUnknown {
			s.logger.Warn("model called an unknown tool", "tool", tc.Name)
		}
		out.ToolsUsed = append(out.ToolsUsed, toolUse{Name: tc.Name, Args: args})
		out.DesktopActions = append(out.DesktopActions, chatapi.RawAction{Type: tc.Name, Args: args})
	}
	if len(c.ToolCalls) > 0 && strings.TrimSpace(out.Response) == "" {
		out.Response = ActionCompleted
	}
	if mode == chatapi.ModeHighEffort && out.Response != "" {
		out.Response, out.Thinking = splitThinking(out.Response)
	}
	return out
}

func respondError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
