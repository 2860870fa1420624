package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type CompletionRequest struct {
	Model     string
	APIKey    string
	System    string
	User      string
	WithTools bool
}

type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

type Completion struct {
	Text      string
	ToolCalls []ToolCall
}

// Completer produces one model turn. OpenAICompleter is the production
// implementation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type OpenAIConfig struct {
	BaseURL    string
	MaxRetries int
}

type OpenAICompleter struct {
	service openai.ChatCompletionService
}

func NewOpenAICompleter(cfg OpenAIConfig, httpClient *http.Client) *OpenAICompleter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &OpenAICompleter{service: openai.NewChatCompletionService(opts...)}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}
	if req.WithTools {
		params.Tools = toolParams()
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}

	resp, err := c.service.New(ctx, params, option.WithAPIKey(req.APIKey))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return Completion{}, fmt.Errorf("chat completions status %d: %s", apiErr.StatusCode, strings.TrimSpace(apiErr.RawJSON()))
		}
		return Completion{}, fmt.Errorf("chat completions request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Completion{}, errors.New("chat completions returned no choices")
	}

	msg := resp.Choices[0].Message
	out := Completion{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(strings.TrimSpace(tc.Function.Arguments)),
		})
	}
	return out, nil
}
