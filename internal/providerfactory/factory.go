// internal/providerfactory/factory.go
package providerfactory

import (
	"fmt"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/metrics"
	"github.com/mwiater/aiplay/internal/models"
	"github.com/mwiater/aiplay/internal/providers"
	"github.com/mwiater/aiplay/internal/providers/llamacpp"
	"github.com/mwiater/aiplay/internal/providers/mock"
	"github.com/mwiater/aiplay/internal/providers/multiplex"
	"github.com/mwiater/aiplay/internal/providers/null"
	"github.com/mwiater/aiplay/internal/providers/ollama"
)

// NewProvider builds the provider stack for the configured hosts: one provider per
// host type behind a multiplexer, wrapped with metrics collection if enabled.
func NewProvider(cfg *appconfig.Config) (providers.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}

	types, err := collectHostTypes(cfg)
	if err != nil {
		return nil, err
	}

	registered := make(map[string]providers.Provider, len(types))
	for hostType := range types {
		switch hostType {
		case "ollama":
			registered[hostType] = ollama.New(cfg)
		case "llamacpp":
			registered[hostType] = llamacpp.New(cfg)
		case "mock":
			registered[hostType] = mock.FromConfig(cfg)
		case "none":
			registered[hostType] = null.New("host has no type")
		}
		logging.LogEvent("provider ready for host type %s", hostType)
	}

	var provider providers.Provider = multiplex.New(registered)
	if cfg.Metrics {
		provider = metrics.NewProvider(provider, metrics.NewAggregator(cfg.MetricsFilePath()))
	}
	return provider, nil
}

// collectHostTypes returns the normalized host types in use, rejecting unknown types.
func collectHostTypes(cfg *appconfig.Config) (map[string]bool, error) {
	types := make(map[string]bool)
	for _, host := range cfg.Hosts {
		hostType := models.NormalizeType(host.Type)
		switch hostType {
		case "ollama", "llamacpp", "mock", "none":
			types[hostType] = true
		default:
			return nil, fmt.Errorf("unsupported host type %q for host %q", host.Type, host.Name)
		}
	}
	return types, nil
}
