// Package llm provides the model clients the assistant talks to: the Gemini
// REST API, the Gemini genai SDK and OpenAI-compatible chat completions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Roles used in Message.Role.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

var (
	// ErrInvalidAPIKey marks errors caused by a missing, wrong or revoked key.
	ErrInvalidAPIKey = errors.New("invalid API key")
	// ErrNoAPIKey is returned before any request when no key is available.
	ErrNoAPIKey = errors.New("API key not configured")
	// ErrInvalidResponse is returned when a reply carries no text.
	ErrInvalidResponse = errors.New("invalid response format from API")
	// ErrUnknownModel is returned for models missing from the registry.
	ErrUnknownModel = errors.New("unknown model")
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationConfig holds sampling parameters.
type GenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultGenerationConfig returns the assistant's sampling parameters.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{Temperature: 0.7, TopP: 0.95, TopK: 40, MaxOutputTokens: 4096}
}

// Request is a generation request.
type Request struct {
	Model    string
	System   string
	Messages []Message
	// APIKey overrides the client's configured key when set.
	APIKey string
	Config *GenerationConfig
}

func (r Request) config() GenerationConfig {
	if r.Config != nil {
		return *r.Config
	}
	return DefaultGenerationConfig()
}

// Client generates a reply for a conversation.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// =============================================================================
// ERRORS
// =============================================================================

// APIError is an error reported by a model API.
type APIError struct {
	Provider   string
	StatusCode int
	Status     string // e.g. INVALID_ARGUMENT
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("API Error: %s", e.Message)
}

// Is classifies key failures as ErrInvalidAPIKey.
func (e *APIError) Is(target error) bool {
	return target == ErrInvalidAPIKey && e.invalidKey()
}

func (e *APIError) invalidKey() bool {
	switch e.Status {
	case "INVALID_ARGUMENT", "PERMISSION_DENIED", "UNAUTHENTICATED":
		return true
	}
	if strings.Contains(strings.ToLower(e.Message), "api key not valid") {
		return true
	}
	// OpenAI-compatible APIs signal bad keys with plain HTTP status codes.
	return e.Provider == "openai" && (e.StatusCode == 401 || e.StatusCode == 403)
}

// IsInvalidAPIKey reports whether err means the key must be replaced.
func IsInvalidAPIKey(err error) bool {
	return errors.Is(err, ErrInvalidAPIKey)
}
