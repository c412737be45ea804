package dispatcher

import (
	"context"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// checkDefaultPool validates a listener's default pool reference: the pool
// must exist on the same load balancer, carry a compatible protocol and not
// already serve as another listener's default.
func (d *Dispatcher) checkDefaultPool(ctx context.Context, l *lb.Listener, currentListenerID string) error {
	if l.DefaultPoolID == "" {
		return nil
	}

	pool, err := d.store.GetPool(ctx, l.DefaultPoolID)
	if err != nil {
		return err
	}

	if pool.LoadBalancerID != l.LoadBalancerID {
		return lb.NewValidationError("pool %q belongs to a different load balancer", pool.ID)
	}

	if !lb.ProtocolsCompatible(l.Protocol, pool.Protocol) {
		return lb.NewValidationError("listener protocol %s cannot serve pool protocol %s", l.Protocol, pool.Protocol)
	}

	for _, id := range pool.ListenerIDs {
		if id != currentListenerID {
			return lb.NewValidationError("pool %q is already the default pool of listener %q", pool.ID, id)
		}
	}

	return nil
}

// CreateListener validates, inserts the listener pending and drives the
// backend create. The owning load balancer is moved to PENDING_UPDATE first,
// which serializes the operation against the rest of the tree.
func (d *Dispatcher) CreateListener(ctx context.Context, in *lb.Listener) (*lb.Listener, error) {
	if err := validateListener(in); err != nil {
		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, in.LoadBalancerID)
	if err != nil {
		return nil, err
	}

	if err := d.checkDefaultPool(ctx, in, ""); err != nil {
		return nil, err
	}

	if err := d.validateListenerTLS(ctx, in, tree.ID); err != nil {
		return nil, err
	}

	if _, err := d.store.TestAndSetStatus(ctx, lb.ResourceLoadBalancer, tree.ID, lb.StatusPendingUpdate); err != nil {
		return nil, err
	}

	in.ID = newID(prefixListener)
	in.ProvisioningStatus = lb.StatusPendingCreate
	in.OperatingStatus = lb.OperatingOffline

	if err := d.store.CreateListener(ctx, in); err != nil {
		// release the tree, nothing was dispatched
		if uerr := d.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, tree.ID, lb.StatusActive, ""); uerr != nil {
			d.logger.Errorw("failed to release load balancer after insert failure", "loadBalancerID", tree.ID, "error", uerr)
		}

		return nil, err
	}

	tree, err = d.store.GetLoadBalancer(ctx, in.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceListener, in.ID, in.LoadBalancerID, lb.StatusError)
		return nil, err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceListener, in.ID, tree.ID, lb.StatusError)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceListener, ID: in.ID, RootID: tree.ID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.Listener().Create(ctx, tree, in)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetListener(ctx, in.ID)
}

// GetListener returns one listener.
func (d *Dispatcher) GetListener(ctx context.Context, id string) (*lb.Listener, error) {
	return d.store.GetListener(ctx, id)
}

// UpdateListener applies mutable field changes and drives the backend update
// with the pre-mutation snapshot.
func (d *Dispatcher) UpdateListener(ctx context.Context, id string, in *lb.Listener) (*lb.Listener, error) {
	old, err := d.store.GetListener(ctx, id)
	if err != nil {
		return nil, err
	}

	in.ID = id
	in.LoadBalancerID = old.LoadBalancerID
	in.Protocol = old.Protocol
	in.ProtocolPort = old.ProtocolPort

	if err := d.checkDefaultPool(ctx, in, id); err != nil {
		return nil, err
	}

	if err := d.validateListenerTLS(ctx, in, old.LoadBalancerID); err != nil {
		return nil, err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceListener, id, lb.StatusPendingUpdate)
	if err != nil {
		return nil, err
	}

	if err := d.store.UpdateListener(ctx, in); err != nil {
		d.releasePending(ctx, lb.ResourceListener, id, old.LoadBalancerID, prior)
		return nil, err
	}

	updated, err := d.store.GetListener(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourceListener, id, old.LoadBalancerID, prior)
		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, old.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceListener, id, old.LoadBalancerID, prior)
		return nil, err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceListener, id, tree.ID, prior)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceListener, ID: id, RootID: tree.ID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.Listener().Update(ctx, tree, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetListener(ctx, id)
}

// DeleteListener tears down one listener; its l7 policies go with it.
func (d *Dispatcher) DeleteListener(ctx context.Context, id string) error {
	listener, err := d.store.GetListener(ctx, id)
	if err != nil {
		return err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceListener, id, lb.StatusPendingDelete)
	if err != nil {
		return err
	}

	tree, err := d.store.GetLoadBalancer(ctx, listener.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceListener, id, listener.LoadBalancerID, prior)
		return err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceListener, id, tree.ID, prior)
		return err
	}

	obj := driver.Object{Type: lb.ResourceListener, ID: id, RootID: tree.ID}

	return d.callDriver(ctx, obj, func() error {
		return drv.Listener().Delete(ctx, tree, listener)
	})
}
