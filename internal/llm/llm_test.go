package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello there"},{"text":"ignored"}]}}]}`

func newGemini(t *testing.T, h http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGeminiClient(GeminiConfig{APIKey: "cfg-key", BaseURL: srv.URL + "/v1beta/", MaxRetries: 2, Backoff: time.Millisecond})
}

func TestGemini_RequestShape(t *testing.T) {
	var got geminiRequest
	var path, key string
	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.URL.Query().Get("key")
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, okReply)
	})

	text, err := c.Generate(context.Background(), Request{
		Model:  "gemini-1.5-pro",
		System: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleModel, Content: "hello"},
			{Role: "ai", Content: "odd role"},
		},
		APIKey: "req-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text, "first part of the first candidate")
	assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", path)
	assert.Equal(t, "req-key", key)

	require.Len(t, got.Contents, 3)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, "user", got.Contents[2].Role)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be brief", got.SystemInstruction.Parts[0].Text)
	assert.Equal(t, geminiGenerationConfig{Temperature: 0.7, TopP: 0.95, TopK: 40, MaxOutputTokens: 4096}, got.GenerationConfig)
	require.Len(t, got.SafetySettings, 4)
	for _, s := range got.SafetySettings {
		assert.Equal(t, "BLOCK_MEDIUM_AND_ABOVE", s.Threshold)
	}
}

func TestGemini_NoKey(t *testing.T) {
	c := NewGeminiClient(GeminiConfig{})
	_, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGemini_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, okReply)
	})
	text, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGemini_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.False(t, IsInvalidAPIKey(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGemini_ErrorClassification(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		invalid bool
	}{
		{"invalid argument", 400, `{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`, true},
		{"permission denied", 403, `{"error":{"code":403,"message":"no","status":"PERMISSION_DENIED"}}`, true},
		{"unauthenticated", 401, `{"error":{"code":401,"message":"who","status":"UNAUTHENTICATED"}}`, true},
		{"key message", 400, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"FAILED_PRECONDITION"}}`, true},
		{"server error", 500, `{"error":{"code":500,"message":"internal","status":"INTERNAL"}}`, false},
		{"not json", 502, `bad gateway`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.Generate(context.Background(), Request{})
			require.Error(t, err)
			assert.Equal(t, tc.invalid, IsInvalidAPIKey(err))
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
		})
	}
}

func TestGemini_InvalidResponse(t *testing.T) {
	for _, body := range []string{`{"candidates":[]}`, `{"candidates":[{"content":{"parts":[]}}]}`} {
		c := newGemini(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		_, err := c.Generate(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrInvalidResponse)
		assert.EqualError(t, err, "invalid response format from API")
	}
}

func TestGemini_ContextCanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := NewGeminiClient(GeminiConfig{APIKey: "k", BaseURL: srv.URL, MaxRetries: 3, Backoff: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenAI_Generate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/v1", time.Second)
	text, err := c.Generate(context.Background(), Request{
		Model:    "gpt-4o-mini",
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "q"}, {Role: RoleModel, Content: "a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, []string{"system", "user", "assistant"},
		[]string{got.Messages[0].Role, got.Messages[1].Role, got.Messages[2].Role})
}

func TestOpenAI_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient("bad", srv.URL+"/v1", time.Second).Generate(context.Background(), Request{Model: "m"})
	require.Error(t, err)
	assert.True(t, IsInvalidAPIKey(err))
}

func TestGenAI_Generate(t *testing.T) {
	var path string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okReply)
	}))
	defer srv.Close()

	c := NewGenAIClient("key", srv.URL+"/v1beta", time.Second)
	text, err := c.Generate(context.Background(), Request{
		Model:    "gemini-2.0-flash",
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "hello there"))
	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", path)
	assert.Contains(t, body, "systemInstruction")
	assert.Contains(t, body, "safetySettings")
}

func TestGenAI_InvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	_, err := NewGenAIClient("bad", srv.URL, time.Second).Generate(context.Background(), Request{Model: "gemini-2.0-flash"})
	require.Error(t, err)
	assert.True(t, IsInvalidAPIKey(err))
}

type stubClient struct{ reply string }

func (s stubClient) Generate(ctx context.Context, req Request) (string, error) {
	return fmt.Sprintf("%s:%s", s.reply, req.Model), nil
}

func TestRegistryAndRouter(t *testing.T) {
	reg := NewRegistry("gpt-4o-mini", "")
	require.Len(t, reg.Models(), 5)
	assert.Equal(t, "gemini-2.0-flash", reg.Default().ID)
	m, ok := reg.Lookup("gemini-1.5-pro")
	require.True(t, ok)
	assert.Equal(t, 1000000, m.ContextLength)
	assert.Equal(t, "Advanced capabilities for complex tasks", m.Description)

	r := NewRouter(reg)
	r.Register(ProviderGemini, stubClient{reply: "g"})
	out, err := r.Generate(context.Background(), Request{Model: "gemini-2.0-pro"})
	require.NoError(t, err)
	assert.Equal(t, "g:gemini-2.0-pro", out)

	_, err = r.Generate(context.Background(), Request{Model: "gpt-4o-mini"})
	assert.ErrorContains(t, err, "no client configured")
	_, err = r.Generate(context.Background(), Request{Model: "nope"})
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Provider: ProviderGemini, StatusCode: 500, Message: "boom"}
	assert.Equal(t, "API Error: boom", err.Error())
	assert.False(t, errors.Is(err, ErrInvalidAPIKey))
}
