package dispatcher

import (
	"context"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// defaultMaxRetriesDown is the consecutive failure count marking a member
// down when the caller leaves max_retries_down unset.
const defaultMaxRetriesDown = 3

// CreateHealthMonitor attaches a monitor to a pool. At most one monitor per
// pool; a second create is rejected before any status mutation.
func (d *Dispatcher) CreateHealthMonitor(ctx context.Context, in *lb.HealthMonitor) (*lb.HealthMonitor, error) {
	if in.MaxRetriesDown == 0 {
		in.MaxRetriesDown = defaultMaxRetriesDown
	}

	if err := validateHealthMonitor(in); err != nil {
		return nil, err
	}

	pool, err := d.store.GetPool(ctx, in.PoolID)
	if err != nil {
		return nil, err
	}

	if pool.HealthMonitor != nil {
		return nil, lb.NewEntityInUseError(lb.ResourcePool, pool.ID, lb.ResourceHealthMonitor)
	}

	if _, err := d.store.TestAndSetStatus(ctx, lb.ResourceLoadBalancer, pool.LoadBalancerID, lb.StatusPendingUpdate); err != nil {
		return nil, err
	}

	in.ID = newID(prefixHealthMonitor)
	in.ProvisioningStatus = lb.StatusPendingCreate

	if err := d.store.CreateHealthMonitor(ctx, in); err != nil {
		if uerr := d.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, pool.LoadBalancerID, lb.StatusActive, ""); uerr != nil {
			d.logger.Errorw("failed to release load balancer after insert failure", "loadBalancerID", pool.LoadBalancerID, "error", uerr)
		}

		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, pool.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceHealthMonitor, in.ID, pool.LoadBalancerID, lb.StatusError)
		return nil, err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceHealthMonitor, in.ID, tree.ID, lb.StatusError)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceHealthMonitor, ID: in.ID, RootID: tree.ID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.HealthMonitor().Create(ctx, tree, in)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetHealthMonitor(ctx, in.ID)
}

// GetHealthMonitor returns one health monitor.
func (d *Dispatcher) GetHealthMonitor(ctx context.Context, id string) (*lb.HealthMonitor, error) {
	return d.store.GetHealthMonitor(ctx, id)
}

// UpdateHealthMonitor applies mutable field changes and drives the backend
// update with the pre-mutation snapshot.
func (d *Dispatcher) UpdateHealthMonitor(ctx context.Context, id string, in *lb.HealthMonitor) (*lb.HealthMonitor, error) {
	old, err := d.store.GetHealthMonitor(ctx, id)
	if err != nil {
		return nil, err
	}

	in.ID = id
	in.PoolID = old.PoolID

	if in.Type == "" {
		in.Type = old.Type
	}

	if in.MaxRetriesDown == 0 {
		in.MaxRetriesDown = old.MaxRetriesDown
	}

	if err := validateHealthMonitor(in); err != nil {
		return nil, err
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceHealthMonitor, id)
	if err != nil {
		return nil, err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceHealthMonitor, id, lb.StatusPendingUpdate)
	if err != nil {
		return nil, err
	}

	if err := d.store.UpdateHealthMonitor(ctx, in); err != nil {
		d.releasePending(ctx, lb.ResourceHealthMonitor, id, rootID, prior)
		return nil, err
	}

	updated, err := d.store.GetHealthMonitor(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourceHealthMonitor, id, rootID, prior)
		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceHealthMonitor, id, rootID, prior)
		return nil, err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceHealthMonitor, id, rootID, prior)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceHealthMonitor, ID: id, RootID: rootID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.HealthMonitor().Update(ctx, tree, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetHealthMonitor(ctx, id)
}

// DeleteHealthMonitor detaches and tears down a pool's monitor.
func (d *Dispatcher) DeleteHealthMonitor(ctx context.Context, id string) error {
	hm, err := d.store.GetHealthMonitor(ctx, id)
	if err != nil {
		return err
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceHealthMonitor, id)
	if err != nil {
		return err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceHealthMonitor, id, lb.StatusPendingDelete)
	if err != nil {
		return err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceHealthMonitor, id, rootID, prior)
		return err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceHealthMonitor, id, rootID, prior)
		return err
	}

	obj := driver.Object{Type: lb.ResourceHealthMonitor, ID: id, RootID: rootID}

	return d.callDriver(ctx, obj, func() error {
		return drv.HealthMonitor().Delete(ctx, tree, hm)
	})
}
