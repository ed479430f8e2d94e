package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"codex/internal/logging"
)

// GenAIClient sends the same requests as GeminiClient through the official
// google.golang.org/genai SDK. One SDK client is kept per API key.
type GenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGenAIClient creates an SDK-backed client. baseURL may be empty; when set
// it is the API root without the version segment.
func NewGenAIClient(apiKey, baseURL string, timeout time.Duration) *GenAIClient {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GenAIClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1beta"),
		httpClient: &http.Client{Timeout: timeout},
		clients:    make(map[string]*genai.Client),
	}
}

func (c *GenAIClient) client(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[key]; ok {
		return cl, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL + "/"}
	}
	cl, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	c.clients[key] = cl
	return cl, nil
}

func genaiConfig(req Request) *genai.GenerateContentConfig {
	gc := req.config()
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(gc.Temperature),
		TopP:            genai.Ptr(gc.TopP),
		TopK:            genai.Ptr(float32(gc.TopK)),
		MaxOutputTokens: int32(gc.MaxOutputTokens),
	}
	for _, cat := range SafetyCategories {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(cat),
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

// Generate implements Client.
func (c *GenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	key := req.APIKey
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return "", ErrNoAPIKey
	}
	model := req.Model
	if model == "" {
		model = DefaultModelID
	}
	cl, err := c.client(ctx, key)
	if err != nil {
		return "", err
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	start := time.Now()
	resp, err := cl.Models.GenerateContent(ctx, model, contents, genaiConfig(req))
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			err = &APIError{Provider: ProviderGemini, StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
		}
		logging.APIError("[GenAI] model=%s failed: %v", model, err)
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", ErrInvalidResponse
	}
	logging.API("[GenAI] model=%s reply_len=%d in %v", model, len(text), time.Since(start))
	return text, nil
}
