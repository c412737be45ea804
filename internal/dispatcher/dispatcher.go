// Package dispatcher is the single choke point for every mutating operation
// on the resource tree. It validates preconditions, performs the pending
// status transition, resolves the provider driver and invokes it, and owns
// the completion callbacks drivers report back through. A resource is never
// left pending once a driver call has returned: either the driver confirmed
// synchronously, or a reconciler task has been scheduled to finish it.
package dispatcher

import (
	"context"

	"go.infratographer.com/x/gidx"
	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
	"go.infratographer.com/loadbalancer-controlplane/internal/store"
)

// id prefixes per resource type
const (
	prefixLoadBalancer  = "loadbal"
	prefixListener      = "loadlsn"
	prefixPool          = "loadpoo"
	prefixMember        = "loadmbr"
	prefixHealthMonitor = "loadhmn"
	prefixL7Policy      = "loadl7p"
	prefixL7Rule        = "loadl7r"
)

// Dispatcher orchestrates all mutating operations.
type Dispatcher struct {
	store    *store.Store
	registry *driver.Registry
	certs    CertValidator
	flavors  map[string]string
	logger   *zap.SugaredLogger
}

// Option configures a Dispatcher.
type Option func(d *Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithCertValidator sets the certificate validation collaborator used for
// TLS-terminating listeners.
func WithCertValidator(v CertValidator) Option {
	return func(d *Dispatcher) {
		d.certs = v
	}
}

// WithFlavorProviders sets the flavor id to provider name table used to
// resolve a provider from a requested flavor.
func WithFlavorProviders(flavors map[string]string) Option {
	return func(d *Dispatcher) {
		d.flavors = flavors
	}
}

// New returns a dispatcher over the given store and driver registry.
func New(s *store.Store, registry *driver.Registry, options ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    s,
		registry: registry,
		logger:   zap.NewNop().Sugar(),
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// driverFor resolves the driver already bound to an existing load balancer.
func (d *Dispatcher) driverFor(ctx context.Context, loadBalancerID string) (driver.Driver, error) {
	return d.registry.ForLoadBalancer(ctx, d.store, loadBalancerID)
}

// releasePending backs out of a pending transition after a failure between
// the status move and the driver invocation. The driver never ran, so no
// completion will fire for this operation: the entity is set to the given
// status and a non-root entity's root is released back to ACTIVE.
func (d *Dispatcher) releasePending(ctx context.Context, resource lb.ResourceType, id, rootID string, to lb.ProvisioningStatus) {
	if err := d.store.UpdateStatus(ctx, resource, id, to, ""); err != nil {
		d.logger.Errorw("failed to release pending resource",
			"resource", string(resource), "resourceID", id, "error", err)
	}

	if resource == lb.ResourceLoadBalancer {
		return
	}

	if err := d.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, rootID, lb.StatusActive, ""); err != nil {
		d.logger.Errorw("failed to release load balancer",
			"loadBalancerID", rootID, "error", err)
	}
}

// callDriver invokes one driver operation. A driver error means the backend
// rejected or failed the change: the root is flagged ERROR (the driver's own
// failure completion normally already did this; propagation here covers
// non-conformant paths) and the cause is surfaced as a driver operation
// error.
func (d *Dispatcher) callDriver(ctx context.Context, obj driver.Object, fn func() error) error {
	if err := fn(); err != nil {
		if perr := d.store.PropagateErrorToRoot(ctx, obj.Type, obj.ID); perr != nil {
			d.logger.Errorw("failed to propagate driver error to root",
				"resource", string(obj.Type), "resourceID", obj.ID, "error", perr)
		}

		return lb.NewDriverOperationError(err)
	}

	return nil
}

func newID(prefix string) string {
	return gidx.MustNewID(prefix).String()
}
