package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const (
	EndpointExecuteCommand  = "execute_command"
	EndpointWriteFile       = "fs/write_file"
	EndpointReadFile        = "fs/read_file"
	EndpointListDirectory   = "fs/list_directory"
	EndpointCreateDirectory = "fs/create_directory"
	EndpointMoveItem        = "fs/move_item"
	EndpointDeleteItem      = "fs/delete_item"
)

type FileEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// Response is the union of the sandbox success bodies. Which fields are
// set depends on the endpoint.
type Response struct {
	Result  string      `json:"result,omitempty"`
	Message string      `json:"message,omitempty"`
	Content string      `json:"content,omitempty"`
	Files   []FileEntry `json:"files,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

func (c *Client) ExecuteCommand(ctx context.Context, command string) (Response, error) {
	return c.call(ctx, EndpointExecuteCommand, map[string]any{"command": command})
}

func (c *Client) WriteFile(ctx context.Context, path, content string) (Response, error) {
	return c.call(ctx, EndpointWriteFile, map[string]any{"path": path, "content": content})
}

func (c *Client) ReadFile(ctx context.Context, path string) (Response, error) {
	return c.call(ctx, EndpointReadFile, map[string]any{"path": path})
}

func (c *Client) ListDirectory(ctx context.Context, path string) (Response, error) {
	if strings.TrimSpace(path) == "" {
		path = "."
	}
	return c.call(ctx, EndpointListDirectory, map[string]any{"path": path})
}

func (c *Client) CreateDirectory(ctx context.Context, path string) (Response, error) {
	return c.call(ctx, EndpointCreateDirectory, map[string]any{"path": path})
}

func (c *Client) MoveItem(ctx context.Context, path, newPath string) (Response, error) {
	return c.call(ctx, EndpointMoveItem, map[string]any{"path": path, "new_path": newPath})
}

func (c *Client) DeleteItem(ctx context.Context, path string, isDir bool) (Response, error) {
	return c.call(ctx, EndpointDeleteItem, map[string]any{"path": path, "is_dir": isDir})
}

// Ping probes GET / and succeeds on any 2xx.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.baseURL == "" {
		return &CallError{Kind: KindNotConfigured}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return &CallError{Kind: KindTransport, Endpoint: "/", Err: err}
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return &CallError{Kind: KindTransport, Endpoint: "/", Err: err}
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &CallError{Kind: KindStatus, Endpoint: "/", Status: res.StatusCode}
	}
	return nil
}

func (c *Client) call(ctx context.Context, endpoint string, payload map[string]any) (Response, error) {
	if c == nil || c.baseURL == "" {
		return Response{}, &CallError{Kind: KindNotConfigured, Endpoint: endpoint}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, &CallError{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, &CallError{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, &CallError{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, &CallError{Kind: KindTransport, Endpoint: endpoint, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Response{}, &CallError{Kind: KindStatus, Endpoint: endpoint, Status: res.StatusCode, Body: string(raw)}
	}
	return decodeResponse(endpoint, raw)
}

// decodeResponse accepts any JSON object. Endpoints whose body is
// implementation-defined may answer with plain text, which is kept as
// the result.
func decodeResponse(endpoint string, raw []byte) (Response, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Response{}, nil
	}
	var out Response
	if err := json.Unmarshal(trimmed, &out); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) && trimmed[0] != '{' {
			return Response{Result: string(trimmed)}, nil
		}
		return Response{}, &CallError{Kind: KindDecode, Endpoint: endpoint, Err: err}
	}
	return out, nil
}
