package sandboxserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	RunningMessage        = "MCP Server is running"
	defaultCommandTimeout = 2 * time.Minute
	maxBodyBytes          = 8 << 20
)

type Options struct {
	Logger         *slog.Logger
	CommandTimeout time.Duration
}

// Server exposes a Workspace over the sandbox HTTP protocol.
type Server struct {
	ws             *Workspace
	mux            *http.ServeMux
	logger         *slog.Logger
	commandTimeout time.Duration
}

type request struct {
	Command *string `json:"command"`
	Path    *string `json:"path"`
	Content *string `json:"content"`
	NewPath *string `json:"new_path"`
	IsDir   bool    `json:"is_dir"`
}

func NewServer(ws *Workspace, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	s := &Server{ws: ws, mux: http.NewServeMux(), logger: opts.Logger, commandTimeout: opts.CommandTimeout}
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/execute_command", s.handleExecuteCommand)
	s.mux.HandleFunc("/fs/write_file", s.handleWriteFile)
	s.mux.HandleFunc("/fs/read_file", s.handleReadFile)
	s.mux.HandleFunc("/fs/list_directory", s.handleListDirectory)
	s.mux.HandleFunc("/fs/create_directory", s.handleCreateDirectory)
	s.mux.HandleFunc("/fs/move_item", s.handleMoveItem)
	s.mux.HandleFunc("/fs/delete_item", s.handleDeleteItem)
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

func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	if req.Command == nil || strings.TrimSpace(*req.Command) == "" {
		respondError(w, http.StatusBadRequest, "Command is required.")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.commandTimeout)
	defer cancel()
	out, err := s.ws.Execute(ctx, *req.Command)
	if err != nil {
		s.fail(w, "execute command", err)
		return
	}
	s.logger.Debug("sandbox command executed", "command", *req.Command)
	writeJSON(w, http.StatusOK, map[string]any{"result": out})
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	if req.Path == nil || *req.Path == "" || req.Content == nil {
		respondError(w, http.StatusBadRequest, "Path and content are required.")
		return
	}
	if err := s.ws.WriteFile(*req.Path, *req.Content); err != nil {
		s.fail(w, "write file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("File %s written successfully.", *req.Path)})
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	path, ok := s.decodePath(w, r)
	if !ok {
		return
	}
	content, err := s.ws.ReadFile(path)
	if err != nil {
		s.fail(w, "read file", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"content": content})
}

func (s *Server) handleListDirectory(w http.ResponseWriter, r *http.Request) {
	path, ok := s.decodePath(w, r)
	if !ok {
		return
	}
	files, err := s.ws.List(path)
	if err != nil {
		s.fail(w, "list directory", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	path, ok := s.decodePath(w, r)
	if !ok {
		return
	}
	if err := s.ws.CreateDirectory(path); err != nil {
		s.fail(w, "create directory", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Directory %s created successfully.", path)})
}

func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	if req.Path == nil || *req.Path == "" {
		respondError(w, http.StatusBadRequest, "Path is required.")
		return
	}
	if req.NewPath == nil || *req.NewPath == "" {
		respondError(w, http.StatusBadRequest, "new_path is required for move_item.")
		return
	}
	if err := s.ws.Move(*req.Path, *req.NewPath); err != nil {
		s.fail(w, "move item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Moved %s to %s.", *req.Path, *req.NewPath)})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}
	if req.Path == nil || *req.Path == "" {
		respondError(w, http.StatusBadRequest, "Path is required.")
		return
	}
	if err := s.ws.Delete(*req.Path, req.IsDir); err != nil {
		s.fail(w, "delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("Deleted %s.", *req.Path)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (request, bool) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return request{}, false
	}
	var req request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return request{}, false
	}
	return req, true
}

func (s *Server) decodePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	req, ok := s.decode(w, r)
	if !ok {
		return "", false
	}
	if req.Path == nil || *req.Path == "" {
		respondError(w, http.StatusBadRequest, "Path is required.")
		return "", false
	}
	return *req.Path, true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, ErrOutsideRoot) {
		code = http.StatusBadRequest
	}
	s.logger.Warn("sandbox request failed", "op", op, "err", err)
	respondError(w, code, relativeError(err, s.ws.Root()))
}

// relativeError keeps host paths out of responses.
func relativeError(err error, root string) string {
	msg := err.Error()
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		msg = strings.ReplaceAll(msg, root+string(os.PathSeparator), "")
	}
	return msg
}

func respondError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
