// internal/session/gate.go
package session

import (
	"context"
	"fmt"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/providers"
)

// Binder resolves the host and model serving a capability.
type Binder func(name capability.Name) (providers.Target, bool)

// BinderFromConfig resolves bindings with appconfig.Config.BindingFor.
func BinderFromConfig(cfg *appconfig.Config) Binder {
	return func(name capability.Name) (providers.Target, bool) {
		if cfg == nil {
			return providers.Target{}, false
		}
		host, model, ok := cfg.BindingFor(string(name))
		if !ok {
			return providers.Target{}, false
		}
		return providers.Target{Host: host, Model: model}, true
	}
}

// StaticBinder binds every capability to the same target.
func StaticBinder(target providers.Target) Binder {
	return func(capability.Name) (providers.Target, bool) { return target, true }
}

// Gate answers whether a capability can be used with a given config.
type Gate struct {
	provider providers.Provider
	bind     Binder
}

// NewGate constructs a Gate.
func NewGate(provider providers.Provider, bind Binder) *Gate {
	return &Gate{provider: provider, bind: bind}
}

// Probe asks the provider for the availability of a capability. It never fails:
// a missing binding, a provider error, or a panic all resolve to unavailable.
func (g *Gate) Probe(ctx context.Context, name capability.Name, cfg capability.Config) (status capability.Availability) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogEvent("probe %s panicked: %v", name, r)
			status = capability.Unavailable
		}
	}()

	if g == nil || g.provider == nil || g.bind == nil {
		return capability.Unavailable
	}
	target, ok := g.bind(name)
	if !ok {
		logging.LogEvent("probe %s: no host bound", name)
		return capability.Unavailable
	}
	status, err := g.provider.Availability(ctx, providers.Request{Capability: name, Target: target, Config: cfg})
	if err != nil {
		logging.LogEvent("probe %s on %s: %v", name, describeTarget(target), err)
		return capability.Unavailable
	}
	if status == capability.Unknown {
		return capability.Unavailable
	}
	logging.LogEvent("probe %s on %s: %s", name, describeTarget(target), status)
	return status
}

func describeTarget(t providers.Target) string {
	return fmt.Sprintf("%s/%s", t.Host.Name, t.Model)
}
