package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider using the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string {
	return fmt.Sprintf("Gemini (%s)", p.model)
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	contents := buildGeminiContents(req.Turns)
	if len(contents) == 0 {
		return nil, fmt.Errorf("no user content provided")
	}
	cfg := buildGeminiConfig(req)

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
			if err != nil {
				return wrapGeminiError(err)
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case events <- Event{Type: EventTextDelta, Text: text}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}), nil
}

func buildGeminiContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}

func buildGeminiConfig(req Request) *genai.GenerateContentConfig {
	temp := req.Params.Temperature
	topP := req.Params.TopP
	topK := float32(req.Params.TopK)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: req.Params.MaxOutputTokens,
		CandidateCount:  req.Params.CandidateCount,
		StopSequences:   req.Params.StopSequences,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "gemini", StatusCode: apiErr.Code, Code: apiErr.Status, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Provider: "gemini", StatusCode: apiErrPtr.Code, Code: apiErrPtr.Status, Err: err}
	}
	return fmt.Errorf("gemini streaming error: %w", err)
}
