package llm

import (
	"context"
	"fmt"
	"sync"
)

// Providers a model can be served by.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Model describes a selectable model.
type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	ContextLength int    `json:"contextLength"`
	Provider      string `json:"provider"`
}

// DefaultModelID is selected when nothing else is configured.
const DefaultModelID = "gemini-2.0-flash"

var geminiModels = []Model{
	{ID: "gemini-2.0-flash", Name: "gemini-2.0-flash", Description: "Fast responses, good for quick questions", ContextLength: 128000, Provider: ProviderGemini},
	{ID: "gemini-2.0-pro", Name: "gemini-2.0-pro", Description: "Balanced performance for most tasks", ContextLength: 128000, Provider: ProviderGemini},
	{ID: "gemini-1.5-pro", Name: "gemini-1.5-pro", Description: "Advanced capabilities for complex tasks", ContextLength: 1000000, Provider: ProviderGemini},
	{ID: "gemini-1.5-flash", Name: "gemini-1.5-flash", Description: "Efficient model with good performance", ContextLength: 1000000, Provider: ProviderGemini},
}

// Registry lists the models the assistant may use.
type Registry struct {
	models []Model
}

// NewRegistry returns the Gemini models plus one entry per OpenAI-compatible model ID.
func NewRegistry(openAIModels ...string) *Registry {
	r := &Registry{models: append([]Model(nil), geminiModels...)}
	for _, id := range openAIModels {
		if id == "" {
			continue
		}
		r.models = append(r.models, Model{
			ID:          id,
			Name:        id,
			Description: "OpenAI-compatible model",
			Provider:    ProviderOpenAI,
		})
	}
	return r
}

// Models returns every registered model.
func (r *Registry) Models() []Model {
	return append([]Model(nil), r.models...)
}

// Lookup finds a model by ID.
func (r *Registry) Lookup(id string) (Model, bool) {
	for _, m := range r.models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// Default returns the default model.
func (r *Registry) Default() Model {
	m, _ := r.Lookup(DefaultModelID)
	return m
}

// Router sends each request to the client serving the model's provider.
type Router struct {
	registry *Registry

	mu      sync.RWMutex
	clients map[string]Client
}

// NewRouter creates a router over registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry, clients: make(map[string]Client)}
}

// Register sets the client for a provider.
func (r *Router) Register(provider string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[provider] = c
}

// Registry returns the router's model registry.
func (r *Router) Registry() *Registry { return r.registry }

// Generate implements Client.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	m, ok := r.registry.Lookup(req.Model)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, req.Model)
	}
	r.mu.RLock()
	c, ok := r.clients[m.Provider]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no client configured for provider %s", m.Provider)
	}
	return c.Generate(ctx, req)
}
