package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"codex/internal/logging"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
}

// NewOpenAIClient creates a client. An empty baseURL uses api.openai.com.
func NewOpenAIClient(apiKey, baseURL string, timeout time.Duration) *OpenAIClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIClient{apiKey: apiKey, baseURL: baseURL, timeout: timeout}
}

func (c *OpenAIClient) client(key string) *openai.Client {
	cfg := openai.DefaultConfig(key)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	key := req.APIKey
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return "", ErrNoAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var msgs []openai.ChatCompletionMessage
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleModel {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	gc := req.config()
	start := time.Now()
	resp, err := c.client(key).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: gc.Temperature,
		TopP:        gc.TopP,
		MaxTokens:   gc.MaxOutputTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		var reqErr *openai.RequestError
		switch {
		case errors.As(err, &apiErr):
			err = &APIError{Provider: ProviderOpenAI, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		case errors.As(err, &reqErr):
			err = &APIError{Provider: ProviderOpenAI, StatusCode: reqErr.HTTPStatusCode, Message: fmt.Sprint(reqErr.Err)}
		}
		logging.APIError("[OpenAI] model=%s failed: %v", req.Model, err)
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrInvalidResponse
	}
	logging.API("[OpenAI] model=%s reply_len=%d in %v", req.Model, len(resp.Choices[0].Message.Content), time.Since(start))
	return resp.Choices[0].Message.Content, nil
}
