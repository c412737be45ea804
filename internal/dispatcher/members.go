package dispatcher

import (
	"context"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CreateMember validates, inserts the member pending and drives the backend
// create. (pool, address, port) uniqueness is enforced by the store.
func (d *Dispatcher) CreateMember(ctx context.Context, in *lb.Member) (*lb.Member, error) {
	if in.Weight == 0 {
		in.Weight = 1
	}

	if err := validateMember(in); err != nil {
		return nil, err
	}

	pool, err := d.store.GetPool(ctx, in.PoolID)
	if err != nil {
		return nil, err
	}

	if _, err := d.store.TestAndSetStatus(ctx, lb.ResourceLoadBalancer, pool.LoadBalancerID, lb.StatusPendingUpdate); err != nil {
		return nil, err
	}

	in.ID = newID(prefixMember)
	in.ProvisioningStatus = lb.StatusPendingCreate
	in.OperatingStatus = lb.OperatingOffline

	if err := d.store.CreateMember(ctx, in); err != nil {
		if uerr := d.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, pool.LoadBalancerID, lb.StatusActive, ""); uerr != nil {
			d.logger.Errorw("failed to release load balancer after insert failure", "loadBalancerID", pool.LoadBalancerID, "error", uerr)
		}

		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, pool.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceMember, in.ID, pool.LoadBalancerID, lb.StatusError)
		return nil, err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceMember, in.ID, tree.ID, lb.StatusError)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceMember, ID: in.ID, RootID: tree.ID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.Member().Create(ctx, tree, in)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetMember(ctx, in.ID)
}

// GetMember returns one member.
func (d *Dispatcher) GetMember(ctx context.Context, id string) (*lb.Member, error) {
	return d.store.GetMember(ctx, id)
}

// UpdateMember applies mutable field changes and drives the backend update
// with the pre-mutation snapshot.
func (d *Dispatcher) UpdateMember(ctx context.Context, id string, in *lb.Member) (*lb.Member, error) {
	old, err := d.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}

	in.ID = id
	in.PoolID = old.PoolID
	in.Address = old.Address
	in.ProtocolPort = old.ProtocolPort
	in.SubnetID = old.SubnetID

	if in.Weight == 0 {
		in.Weight = old.Weight
	}

	if err := validateMember(in); err != nil {
		return nil, err
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceMember, id)
	if err != nil {
		return nil, err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceMember, id, lb.StatusPendingUpdate)
	if err != nil {
		return nil, err
	}

	if err := d.store.UpdateMember(ctx, in); err != nil {
		d.releasePending(ctx, lb.ResourceMember, id, rootID, prior)
		return nil, err
	}

	updated, err := d.store.GetMember(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourceMember, id, rootID, prior)
		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceMember, id, rootID, prior)
		return nil, err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceMember, id, rootID, prior)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceMember, ID: id, RootID: rootID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.Member().Update(ctx, tree, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetMember(ctx, id)
}

// DeleteMember tears down one member.
func (d *Dispatcher) DeleteMember(ctx context.Context, id string) error {
	member, err := d.store.GetMember(ctx, id)
	if err != nil {
		return err
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceMember, id)
	if err != nil {
		return err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceMember, id, lb.StatusPendingDelete)
	if err != nil {
		return err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceMember, id, rootID, prior)
		return err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceMember, id, rootID, prior)
		return err
	}

	obj := driver.Object{Type: lb.ResourceMember, ID: id, RootID: rootID}

	return d.callDriver(ctx, obj, func() error {
		return drv.Member().Delete(ctx, tree, member)
	})
}
