package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

type GeminiConfig struct {
	BaseURL string
}

// GeminiCompleter talks to the Gemini API. A client is built per call
// because the API key may differ between requests.
type GeminiCompleter struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

func NewGeminiCompleter(cfg GeminiConfig, httpClient *http.Client) *GeminiCompleter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiCompleter{cfg: cfg, httpClient: httpClient}
}

func (c *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	cc := &genai.ClientConfig{
		APIKey:     req.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if base := strings.TrimSpace(c.cfg.BaseURL); base != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(base, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return Completion{}, fmt.Errorf("gemini client: %w", err)
	}

	conf := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.System) != "" {
		conf.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.WithTools {
		conf.Tools = geminiTools()
	}
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, conf)
	if err != nil {
		return Completion{}, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Completion{}, errors.New("gemini returned no candidates")
	}

	out := Completion{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		args := json.RawMessage("{}")
		if len(fc.Args) > 0 {
			b, err := json.Marshal(fc.Args)
			if err != nil {
				return Completion{}, fmt.Errorf("gemini tool args for %s: %w", fc.Name, err)
			}
			args = b
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{Name: fc.Name, Arguments: args})
	}
	return out, nil
}
