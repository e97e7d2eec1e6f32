package payment

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"payment-callbacks/internal/config"
	"payment-callbacks/internal/domain"
	"payment-callbacks/internal/domain/ports/adapter"
	"payment-callbacks/internal/domain/ports/repository"
)

var _ adapter.ProviderRegistry = (*Registry)(nil)

// Deps are the shared collaborators handed to every provider factory.
type Deps struct {
	Payments   repository.PaymentRepository
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Factory builds the provider for one configured variant.
type Factory func(variant string, cfg config.ProviderConfig, deps Deps) (adapter.PaymentProvider, error)

// DefaultFactories maps backend names accepted in config to their constructors.
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		BackendDummy:         newDummyFromConfig,
		BackendZarinPal:      newZarinPalFromConfig,
		BackendStripeSources: newStripeSourcesFromConfig,
	}
}

// Registry holds one provider instance per variant. It is built once at startup
// and read-only afterwards.
type Registry struct {
	providers map[string]adapter.PaymentProvider
}

// NewRegistry builds every configured variant. An unknown backend or a failing
// factory aborts startup instead of surfacing on the first callback.
func NewRegistry(cfgs map[string]config.ProviderConfig, factories map[string]Factory, deps Deps) (*Registry, error) {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if deps.Logger == nil {
		nop := zerolog.Nop()
		deps.Logger = &nop
	}

	r := &Registry{providers: make(map[string]adapter.PaymentProvider, len(cfgs))}
	for variant, cfg := range cfgs {
		factory, ok := factories[cfg.Backend]
		if !ok {
			return nil, fmt.Errorf("variant %q: unknown backend %q", variant, cfg.Backend)
		}
		p, err := factory(variant, cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("variant %q: %w", variant, err)
		}
		r.providers[variant] = p
	}
	return r, nil
}

func (r *Registry) Get(variant string) (adapter.PaymentProvider, error) {
	p, ok := r.providers[variant]
	if !ok {
		return nil, &domain.UnknownProviderError{Variant: variant}
	}
	return p, nil
}

// Variants lists the configured variant names, sorted.
func (r *Registry) Variants() []string {
	out := make([]string, 0, len(r.providers))
	for v := range r.providers {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
