package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// providerSource is the slice of the status store the registry needs.
type providerSource interface {
	ProviderFor(ctx context.Context, loadBalancerID string) (string, error)
	ListLoadBalancers(ctx context.Context) ([]*lb.LoadBalancer, error)
}

// Registry maps provider names to configured drivers.
type Registry struct {
	drivers         map[string]Driver
	defaultProvider string
	logger          *zap.SugaredLogger
}

// RegistryOption configures a Registry.
type RegistryOption func(r *Registry)

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *zap.SugaredLogger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry returns a registry with the given default provider name. The
// default must be registered before first use.
func NewRegistry(defaultProvider string, options ...RegistryOption) *Registry {
	r := &Registry{
		drivers:         map[string]Driver{},
		defaultProvider: defaultProvider,
		logger:          zap.NewNop().Sugar(),
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// Register adds a driver under its provider name, replacing any previous
// registration for the same name.
func (r *Registry) Register(d Driver) {
	r.drivers[d.Name()] = d
	r.logger.Infow("registered provider driver", "provider", d.Name())
}

// DefaultProvider returns the configured default provider name.
func (r *Registry) DefaultProvider() string {
	return r.defaultProvider
}

// ForProvider resolves a provider name to its driver. An empty name resolves
// to the default provider.
func (r *Registry) ForProvider(provider string) (Driver, error) {
	if provider == "" {
		provider = r.defaultProvider
	}

	d, ok := r.drivers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lb.ErrUnknownProvider, provider)
	}

	return d, nil
}

// ForLoadBalancer resolves the driver for an existing load balancer by its
// recorded provider.
func (r *Registry) ForLoadBalancer(ctx context.Context, src providerSource, loadBalancerID string) (Driver, error) {
	provider, err := src.ProviderFor(ctx, loadBalancerID)
	if err != nil {
		return nil, err
	}

	return r.ForProvider(provider)
}

// CheckOrphans scans all persisted load balancers and fails when any
// references a provider with no registered driver. Run at start-up; an
// orphaned provider means the process cannot safely manage the fleet.
func (r *Registry) CheckOrphans(ctx context.Context, src providerSource) error {
	lbs, err := src.ListLoadBalancers(ctx)
	if err != nil {
		return err
	}

	orphaned := map[string]int{}

	for _, l := range lbs {
		if _, ok := r.drivers[l.Provider]; !ok {
			orphaned[l.Provider]++
		}
	}

	for provider, count := range orphaned {
		r.logger.Errorw("load balancers reference unregistered provider", "provider", provider, "count", count)
	}

	if len(orphaned) > 0 {
		return fmt.Errorf("%w: %d provider(s) referenced by existing load balancers are not configured", lb.ErrDriverResolution, len(orphaned))
	}

	return nil
}
