package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindStatus
	KindDecode
)

type CallError struct {
	Kind   ErrorKind
	Status int
	Body   string
	Err    error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("HTTP error! status: %d, message: %s", e.Status, e.Body)
	case KindDecode:
		return fmt.Sprintf("invalid chat API response: %v", e.Err)
	default:
		return fmt.Sprintf("Failed to reach chat API: %v", e.Err)
	}
}

func (e *CallError) Unwrap() error { return e.Err }

func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
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

func (c *Client) Send(ctx context.Context, in Request) (Response, error) {
	mode := in.Mode
	if mode == "" {
		mode = ModeChat
	}
	body, err := json.Marshal(Request{Message: in.Message, Mode: mode})
	if err != nil {
		return Response{}, &CallError{Kind: KindTransport, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Response{}, &CallError{Kind: KindTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(in.APIKey); key != "" {
		req.Header.Set(APIKeyHeader, key)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, &CallError{Kind: KindTransport, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, &CallError{Kind: KindTransport, Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Response{}, &CallError{Kind: KindStatus, Status: res.StatusCode, Body: string(raw)}
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, &CallError{Kind: KindDecode, Err: err}
	}
	return out, nil
}
