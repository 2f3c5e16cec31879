// internal/providers/null/provider.go
// Package null provides the provider used for hosts that cannot serve any capability.
package null

import (
	"context"
	"fmt"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers"
)

// Provider reports every capability as unavailable.
type Provider struct {
	// Reason is included in Create errors, for example the unsupported host type.
	Reason string
}

// New constructs a null Provider.
func New(reason string) *Provider {
	return &Provider{Reason: reason}
}

// Availability always answers unavailable.
func (p *Provider) Availability(context.Context, providers.Request) (capability.Availability, error) {
	return capability.Unavailable, nil
}

// Create always fails.
func (p *Provider) Create(_ context.Context, req providers.Request, _ providers.ProgressFunc) (providers.Session, error) {
	if p.Reason != "" {
		return nil, fmt.Errorf("%s: %w (%s)", req.Capability, providers.ErrUnsupported, p.Reason)
	}
	return nil, fmt.Errorf("%s: %w", req.Capability, providers.ErrUnsupported)
}

func (p *Provider) Close() error {
	return nil
}
