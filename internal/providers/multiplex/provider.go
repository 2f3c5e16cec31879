// internal/providers/multiplex/provider.go
// Package multiplex routes provider calls based on the host type of a request.
package multiplex

import (
	"context"
	"fmt"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/models"
	"github.com/mwiater/aiplay/internal/providers"
	"github.com/mwiater/aiplay/internal/providers/null"
)

// Provider delegates calls to an underlying provider based on host type.
type Provider struct {
	providers map[string]providers.Provider
}

// New constructs a Provider from a map of host type to provider implementation.
// Host types are normalized, so "llama.cpp" and "llamacpp" share an entry.
func New(providerMap map[string]providers.Provider) *Provider {
	normalized := make(map[string]providers.Provider, len(providerMap))
	for key, provider := range providerMap {
		normalized[models.NormalizeType(key)] = provider
	}
	return &Provider{providers: normalized}
}

// Availability asks the provider registered for the request's host type.
func (p *Provider) Availability(ctx context.Context, req providers.Request) (capability.Availability, error) {
	return p.providerFor(req).Availability(ctx, req)
}

// Create asks the provider registered for the request's host type.
func (p *Provider) Create(ctx context.Context, req providers.Request, progress providers.ProgressFunc) (providers.Session, error) {
	return p.providerFor(req).Create(ctx, req, progress)
}

// Close cleans up any resources used by the provider.
func (p *Provider) Close() error {
	var firstErr error
	seen := map[providers.Provider]struct{}{}
	for _, provider := range p.providers {
		if _, ok := seen[provider]; ok {
			continue
		}
		seen[provider] = struct{}{}
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// providerFor returns the registered provider, or a null provider for unknown host types.
func (p *Provider) providerFor(req providers.Request) providers.Provider {
	hostType := models.NormalizeType(req.Target.Host.Type)
	if provider, ok := p.providers[hostType]; ok {
		return provider
	}
	return null.New(fmt.Sprintf("no provider registered for host type %q", req.Target.Host.Type))
}
