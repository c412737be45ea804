package dispatcher

import (
	"context"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CreatePool validates, inserts the pool pending and drives the backend
// create. A non-empty listenerID attaches the pool as that listener's
// default in the same operation.
func (d *Dispatcher) CreatePool(ctx context.Context, in *lb.Pool, listenerID string) (*lb.Pool, error) {
	if err := validatePool(in); err != nil {
		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, in.LoadBalancerID)
	if err != nil {
		return nil, err
	}

	if listenerID != "" {
		listener, err := d.store.GetListener(ctx, listenerID)
		if err != nil {
			return nil, err
		}

		if listener.LoadBalancerID != in.LoadBalancerID {
			return nil, lb.NewValidationError("listener %q belongs to a different load balancer", listenerID)
		}

		if listener.DefaultPoolID != "" {
			return nil, lb.NewValidationError("listener %q already has a default pool", listenerID)
		}

		if !lb.ProtocolsCompatible(listener.Protocol, in.Protocol) {
			return nil, lb.NewValidationError("listener protocol %s cannot serve pool protocol %s", listener.Protocol, in.Protocol)
		}
	}

	if _, err := d.store.TestAndSetStatus(ctx, lb.ResourceLoadBalancer, tree.ID, lb.StatusPendingUpdate); err != nil {
		return nil, err
	}

	in.ID = newID(prefixPool)
	in.ProvisioningStatus = lb.StatusPendingCreate
	in.OperatingStatus = lb.OperatingOffline

	if err := d.store.CreatePool(ctx, in); err != nil {
		if uerr := d.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, tree.ID, lb.StatusActive, ""); uerr != nil {
			d.logger.Errorw("failed to release load balancer after insert failure", "loadBalancerID", tree.ID, "error", uerr)
		}

		return nil, err
	}

	if listenerID != "" {
		if err := d.store.SetListenerDefaultPool(ctx, listenerID, in.ID); err != nil {
			d.releasePending(ctx, lb.ResourcePool, in.ID, tree.ID, lb.StatusError)
			return nil, err
		}
	}

	tree, err = d.store.GetLoadBalancer(ctx, in.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourcePool, in.ID, in.LoadBalancerID, lb.StatusError)
		return nil, err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourcePool, in.ID, tree.ID, lb.StatusError)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourcePool, ID: in.ID, RootID: tree.ID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.Pool().Create(ctx, tree, in)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetPool(ctx, in.ID)
}

// GetPool returns one pool with members and monitor.
func (d *Dispatcher) GetPool(ctx context.Context, id string) (*lb.Pool, error) {
	return d.store.GetPool(ctx, id)
}

// UpdatePool applies mutable field changes and drives the backend update
// with the pre-mutation snapshot.
func (d *Dispatcher) UpdatePool(ctx context.Context, id string, in *lb.Pool) (*lb.Pool, error) {
	old, err := d.store.GetPool(ctx, id)
	if err != nil {
		return nil, err
	}

	in.ID = id
	in.LoadBalancerID = old.LoadBalancerID
	in.Protocol = old.Protocol

	if in.Algorithm == "" {
		in.Algorithm = old.Algorithm
	}

	if !validAlgorithms[in.Algorithm] {
		return nil, lb.NewValidationError("unknown pool algorithm %q", in.Algorithm)
	}

	if err := validateSessionPersistence(in.SessionPersistence); err != nil {
		return nil, err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourcePool, id, lb.StatusPendingUpdate)
	if err != nil {
		return nil, err
	}

	if err := d.store.UpdatePool(ctx, in); err != nil {
		d.releasePending(ctx, lb.ResourcePool, id, old.LoadBalancerID, prior)
		return nil, err
	}

	updated, err := d.store.GetPool(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourcePool, id, old.LoadBalancerID, prior)
		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, old.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourcePool, id, old.LoadBalancerID, prior)
		return nil, err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourcePool, id, tree.ID, prior)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourcePool, ID: id, RootID: tree.ID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.Pool().Update(ctx, tree, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetPool(ctx, id)
}

// DeletePool tears down one pool. An attached health monitor blocks the
// delete; members go with the pool.
func (d *Dispatcher) DeletePool(ctx context.Context, id string) error {
	pool, err := d.store.GetPool(ctx, id)
	if err != nil {
		return err
	}

	if pool.HealthMonitor != nil {
		return lb.NewEntityInUseError(lb.ResourcePool, id, lb.ResourceHealthMonitor)
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourcePool, id, lb.StatusPendingDelete)
	if err != nil {
		return err
	}

	tree, err := d.store.GetLoadBalancer(ctx, pool.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourcePool, id, pool.LoadBalancerID, prior)
		return err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourcePool, id, tree.ID, prior)
		return err
	}

	obj := driver.Object{Type: lb.ResourcePool, ID: id, RootID: tree.ID}

	return d.callDriver(ctx, obj, func() error {
		return drv.Pool().Delete(ctx, tree, pool)
	})
}
