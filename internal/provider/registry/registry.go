// Package registry resolves model ids to the model client that serves them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

// Registry implements the ProviderRegistry interface.
type Registry struct {
	mu            sync.RWMutex
	clients       map[string]domain.ModelClient
	modelToClient map[string]string
}

var _ domain.ProviderRegistry = (*Registry)(nil)

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:       make(map[string]domain.ModelClient),
		modelToClient: make(map[string]string),
	}
}

// Register adds a client and indexes the models it serves. When two clients
// name the same model, the first registration keeps it.
func (r *Registry) Register(ctx context.Context, client domain.ModelClient) error {
	if client == nil {
		return errors.New("provider cannot be nil")
	}

	name := client.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.clients[name] = client
	for _, model := range client.SupportedModels(ctx) {
		if _, taken := r.modelToClient[model]; !taken {
			r.modelToClient[model] = name
		}
	}

	return nil
}

// Get retrieves a client by provider name.
func (r *Registry) Get(_ context.Context, providerName string) (domain.ModelClient, error) {
	if providerName == "" {
		return nil, errors.New("provider name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[providerName]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}

	return client, nil
}

// List returns all provider names, sorted.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// GetByModel retrieves the client serving model. The reverse index is checked
// first, then every client is asked in name order.
func (r *Registry) GetByModel(ctx context.Context, model string) (domain.ModelClient, error) {
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, ok := r.modelToClient[model]; ok {
		if client, exists := r.clients[name]; exists {
			return client, nil
		}
	}

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if r.clients[name].IsModelSupported(ctx, model) {
			return r.clients[name], nil
		}
	}

	return nil, fmt.Errorf("%w: no provider found for model %s", domain.ErrModelUnavailable, model)
}
