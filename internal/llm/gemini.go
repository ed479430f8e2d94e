package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codex/internal/logging"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
	SafetySettings    []geminiSafetySetting  `json:"safetySettings"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *geminiError `json:"error,omitempty"`
}

// SafetyCategories are blocked at medium probability and above.
var SafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

const safetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"

// =============================================================================
// CLIENT
// =============================================================================

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int           // retries after a 429
	Backoff    time.Duration // first retry delay, doubled each time
}

// DefaultGeminiConfig returns the standard settings.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:     apiKey,
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		Timeout:    2 * time.Minute,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// GeminiClient calls generateContent over REST.
type GeminiClient struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

// NewGeminiClient creates a REST client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	def := DefaultGeminiConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GeminiClient{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func buildGeminiRequest(req Request) geminiRequest {
	gc := req.config()
	body := geminiRequest{
		GenerationConfig: geminiGenerationConfig{
			Temperature:     gc.Temperature,
			TopP:            gc.TopP,
			TopK:            gc.TopK,
			MaxOutputTokens: gc.MaxOutputTokens,
		},
	}
	for _, m := range req.Messages {
		role := m.Role
		if role != RoleModel {
			role = RoleUser
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}
	if strings.TrimSpace(req.System) != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	for _, c := range SafetyCategories {
		body.SafetySettings = append(body.SafetySettings, geminiSafetySetting{Category: c, Threshold: safetyThreshold})
	}
	return body
}

// Generate implements Client.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	key := req.APIKey
	if key == "" {
		key = c.cfg.APIKey
	}
	if key == "" {
		return "", ErrNoAPIKey
	}
	model := req.Model
	if model == "" {
		model = DefaultModelID
	}

	start := time.Now()
	payload, err := json.Marshal(buildGeminiRequest(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.cfg.BaseURL, url.PathEscape(model), url.QueryEscape(key))
	logging.APIDebug("[Gemini] generateContent model=%s messages=%d", model, len(req.Messages))

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.Backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, retry, err := c.do(ctx, endpoint, payload)
		if err == nil {
			logging.API("[Gemini] model=%s reply_len=%d in %v", model, len(text), time.Since(start))
			return text, nil
		}
		lastErr = err
		if !retry {
			break
		}
		logging.APIWarn("[Gemini] rate limited, attempt %d/%d", attempt+1, c.cfg.MaxRetries+1)
	}
	logging.APIError("[Gemini] model=%s failed: %v", model, lastErr)
	return "", lastErr
}

// do performs one request. retry is true for rate limiting.
func (c *GeminiClient) do(ctx context.Context, endpoint string, payload []byte) (text string, retry bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed geminiResponse
	jsonErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, &APIError{Provider: ProviderGemini, StatusCode: resp.StatusCode, Status: "RESOURCE_EXHAUSTED", Message: "rate limit exceeded (429)"}
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: ProviderGemini, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if jsonErr == nil && parsed.Error != nil {
			apiErr.Status = parsed.Error.Status
			if parsed.Error.Message != "" {
				apiErr.Message = parsed.Error.Message
			}
		}
		return "", false, apiErr
	}
	if jsonErr != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", jsonErr)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", false, ErrInvalidResponse
	}
	return parsed.Candidates[0].Content.Parts[0].Text, false, nil
}
