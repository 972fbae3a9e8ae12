package provider

import (
	"sort"

	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/config"
	domainerrors "github.com/elimu-platform/payment-service/internal/domain/errors"
	"github.com/elimu-platform/payment-service/internal/domain/provider"
	"github.com/elimu-platform/payment-service/internal/infrastructure/provider/airtel"
	"github.com/elimu-platform/payment-service/internal/infrastructure/provider/mpesa"
	"github.com/elimu-platform/payment-service/internal/infrastructure/provider/mtnmomo"
)

// Registry maps provider names to adapter instances. It is built once at
// startup from configuration; only providers marked active are registered, so
// a lookup failure covers both unknown and disabled networks.
type Registry struct {
	adapters map[string]provider.Adapter
}

// NewRegistry builds the adapter registry from configuration.
func NewRegistry(cfg *config.ProvidersConfig, logger *zap.Logger) *Registry {
	adapters := make(map[string]provider.Adapter)

	if cfg.Mpesa.Active {
		adapters[mpesa.ProviderName] = mpesa.New(cfg.Mpesa, logger)
	}
	if cfg.MTN.Active {
		adapters[mtnmomo.ProviderName] = mtnmomo.New(cfg.MTN, logger)
	}
	if cfg.Airtel.Active {
		adapters[airtel.ProviderName] = airtel.New(cfg.Airtel, logger)
	}

	r := &Registry{adapters: adapters}
	logger.Info("Payment provider registry initialized",
		zap.Strings("providers", r.Names()))
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (provider.Adapter, error) {
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, domainerrors.ErrUnknownProvider
	}
	return adapter, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
