package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicAdapter implements ProviderAdapter on the official Anthropic SDK.
type AnthropicAdapter struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewAnthropicAdapter creates an adapter for the given model. When apiKey is
// empty the SDK reads ANTHROPIC_API_KEY from the environment.
func NewAnthropicAdapter(apiKey, model string) *AnthropicAdapter {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicAdapter{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Complete sends the conversation to the Messages API and returns the text
// of the first text block.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	model := a.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := a.api.Messages.New(ctx, params)
	if err != nil {
		return nil, a.translateError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &Response{
		ID:       msg.ID,
		Model:    string(msg.Model),
		Provider: a.Name(),
		Text:     sb.String(),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

// translateError classifies an SDK error into the typed hierarchy.
func (a *AnthropicAdapter) translateError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return ErrorFromStatusCode(apiErr.StatusCode, apiErr.Error(), a.Name(), nil)
	}
	msgLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msgLower, "context deadline") || strings.Contains(msgLower, "timeout"):
		return &RequestTimeoutError{ClientError: ClientError{Message: "anthropic request timed out", Cause: err}}
	default:
		return &NetworkError{ClientError: ClientError{Message: fmt.Sprintf("anthropic API call failed: %v", err), Cause: err}}
	}
}
