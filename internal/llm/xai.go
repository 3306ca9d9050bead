package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultXAIBaseURL = "https://api.x.ai/v1"

// XAIProvider implements Provider against xAI's OpenAI-compatible chat
// completions endpoint.
type XAIProvider struct {
	client *openai.Client
	model  string
}

func NewXAIProvider(apiKey, model, baseURL string) *XAIProvider {
	if baseURL == "" {
		baseURL = defaultXAIBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return &XAIProvider{client: &client, model: model}
}

func (p *XAIProvider) Name() string {
	return fmt.Sprintf("xAI (%s)", p.model)
}

func (p *XAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	messages := buildXAIMessages(req)
	if len(messages) == 0 {
		return nil, fmt.Errorf("no user content provided")
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: messages,
	}
	if req.Params.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Params.Temperature))
	}
	if req.Params.TopP > 0 {
		params.TopP = openai.Float(float64(req.Params.TopP))
	}
	if req.Params.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.Params.MaxOutputTokens))
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case events <- Event{Type: EventTextDelta, Text: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := stream.Err(); err != nil {
			return wrapXAIError(err)
		}
		return nil
	}), nil
}

func buildXAIMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, t := range req.Turns {
		if t.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(t.Content))
		} else {
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}
	return messages
}

func wrapXAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "xai", StatusCode: apiErr.StatusCode, Code: apiErr.Code, Err: err}
	}
	return fmt.Errorf("xai streaming error: %w", err)
}
