package dispatcher

import (
	"context"
	"fmt"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// resolveProvider picks the provider for a new load balancer. An explicit
// provider and a flavor never mix: a resource is bound to exactly one
// provider resolution for its lifetime.
func (d *Dispatcher) resolveProvider(in *lb.LoadBalancer) (driver.Driver, error) {
	if in.Provider != "" && in.FlavorID != "" {
		return nil, fmt.Errorf("%w: provider %q, flavor %q", lb.ErrProviderFlavorConflict, in.Provider, in.FlavorID)
	}

	provider := in.Provider

	if in.FlavorID != "" {
		p, ok := d.flavors[in.FlavorID]
		if !ok {
			return nil, lb.NewValidationError("unknown flavor %q", in.FlavorID)
		}

		provider = p
	}

	return d.registry.ForProvider(provider)
}

// CreateLoadBalancer inserts the root resource pending and drives the
// backend create. VIP-allocating backends populate the address themselves;
// otherwise the caller must supply one.
func (d *Dispatcher) CreateLoadBalancer(ctx context.Context, in *lb.LoadBalancer) (*lb.LoadBalancer, error) {
	drv, err := d.resolveProvider(in)
	if err != nil {
		return nil, err
	}

	caps := drv.Capabilities()

	if !caps.AllocatesVIP && in.VIPAddress == "" {
		return nil, lb.NewValidationError("provider %q requires a vip_address", drv.Name())
	}

	in.ID = newID(prefixLoadBalancer)
	in.Provider = drv.Name()
	in.ProvisioningStatus = lb.StatusPendingCreate
	in.OperatingStatus = lb.OperatingOffline

	if err := d.store.CreateLoadBalancer(ctx, in); err != nil {
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceLoadBalancer, ID: in.ID, RootID: in.ID}

	err = d.callDriver(ctx, obj, func() error {
		if caps.AllocatesVIP {
			allocator, ok := drv.LoadBalancer().(driver.VIPAllocator)
			if !ok {
				return fmt.Errorf("%w: provider %q reports allocatesVIP without implementing it", lb.ErrDriverResolution, drv.Name())
			}

			return allocator.CreateAndAllocateVIP(ctx, in)
		}

		return drv.LoadBalancer().Create(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetLoadBalancer(ctx, in.ID)
}

// CreateLoadBalancerGraph creates a whole resource tree in one backend call.
// Only providers reporting allowsGraphCreate accept it; every row is
// inserted pending and the root's completion settles the lot.
func (d *Dispatcher) CreateLoadBalancerGraph(ctx context.Context, in *lb.LoadBalancer) (*lb.LoadBalancer, error) {
	drv, err := d.resolveProvider(in)
	if err != nil {
		return nil, err
	}

	caps := drv.Capabilities()

	if !caps.AllowsGraphCreate {
		return nil, lb.NewValidationError("provider %q does not support graph create", drv.Name())
	}

	if !caps.AllocatesVIP && in.VIPAddress == "" {
		return nil, lb.NewValidationError("provider %q requires a vip_address", drv.Name())
	}

	if err := d.validateGraph(in); err != nil {
		return nil, err
	}

	in.ID = newID(prefixLoadBalancer)
	in.Provider = drv.Name()
	in.ProvisioningStatus = lb.StatusPendingCreate
	in.OperatingStatus = lb.OperatingOffline

	if err := d.insertGraph(ctx, in); err != nil {
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceLoadBalancer, ID: in.ID, RootID: in.ID}

	err = d.callDriver(ctx, obj, func() error {
		if caps.AllocatesVIP {
			allocator, ok := drv.LoadBalancer().(driver.VIPAllocator)
			if !ok {
				return fmt.Errorf("%w: provider %q reports allocatesVIP without implementing it", lb.ErrDriverResolution, drv.Name())
			}

			return allocator.CreateAndAllocateVIP(ctx, in)
		}

		return drv.LoadBalancer().Create(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetLoadBalancer(ctx, in.ID)
}

// GetLoadBalancer returns a load balancer with its full tree.
func (d *Dispatcher) GetLoadBalancer(ctx context.Context, id string) (*lb.LoadBalancer, error) {
	return d.store.GetLoadBalancer(ctx, id)
}

// ListLoadBalancers returns all load balancers without their trees.
func (d *Dispatcher) ListLoadBalancers(ctx context.Context) ([]*lb.LoadBalancer, error) {
	return d.store.ListLoadBalancers(ctx)
}

// UpdateLoadBalancer applies mutable field changes and drives the backend
// update with the pre-mutation snapshot.
func (d *Dispatcher) UpdateLoadBalancer(ctx context.Context, id string, in *lb.LoadBalancer) (*lb.LoadBalancer, error) {
	old, err := d.store.GetLoadBalancer(ctx, id)
	if err != nil {
		return nil, err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceLoadBalancer, id, lb.StatusPendingUpdate)
	if err != nil {
		return nil, err
	}

	in.ID = id

	if err := d.store.UpdateLoadBalancer(ctx, in); err != nil {
		d.releasePending(ctx, lb.ResourceLoadBalancer, id, id, prior)
		return nil, err
	}

	updated, err := d.store.GetLoadBalancer(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourceLoadBalancer, id, id, prior)
		return nil, err
	}

	drv, err := d.driverFor(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourceLoadBalancer, id, id, prior)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceLoadBalancer, ID: id, RootID: id}

	err = d.callDriver(ctx, obj, func() error {
		return drv.LoadBalancer().Update(ctx, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetLoadBalancer(ctx, id)
}

// DeleteLoadBalancer tears down the root resource. Attached listeners or
// pools block the delete.
func (d *Dispatcher) DeleteLoadBalancer(ctx context.Context, id string) error {
	tree, err := d.store.GetLoadBalancer(ctx, id)
	if err != nil {
		return err
	}

	if len(tree.Listeners) > 0 {
		return lb.NewEntityInUseError(lb.ResourceLoadBalancer, id, lb.ResourceListener)
	}

	if len(tree.Pools) > 0 {
		return lb.NewEntityInUseError(lb.ResourceLoadBalancer, id, lb.ResourcePool)
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceLoadBalancer, id, lb.StatusPendingDelete)
	if err != nil {
		return err
	}

	drv, err := d.driverFor(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourceLoadBalancer, id, id, prior)
		return err
	}

	obj := driver.Object{Type: lb.ResourceLoadBalancer, ID: id, RootID: id}

	return d.callDriver(ctx, obj, func() error {
		return drv.LoadBalancer().Delete(ctx, tree)
	})
}

// RefreshLoadBalancer re-realizes a whole deployment from local desired
// state, for providers that support it.
func (d *Dispatcher) RefreshLoadBalancer(ctx context.Context, id string) error {
	tree, err := d.store.GetLoadBalancer(ctx, id)
	if err != nil {
		return err
	}

	drv, err := d.driverFor(ctx, id)
	if err != nil {
		return err
	}

	refresher, ok := drv.LoadBalancer().(driver.Refreshable)
	if !ok {
		return lb.NewValidationError("provider %q does not support refresh", drv.Name())
	}

	obj := driver.Object{Type: lb.ResourceLoadBalancer, ID: id, RootID: id}

	return d.callDriver(ctx, obj, func() error {
		return refresher.Refresh(ctx, tree)
	})
}

// LoadBalancerStats reads fresh traffic counters from the backend when the
// provider supports it, persisting them as it goes; otherwise it serves the
// last persisted counters.
func (d *Dispatcher) LoadBalancerStats(ctx context.Context, id string) (*lb.StatsReport, error) {
	tree, err := d.store.GetLoadBalancer(ctx, id)
	if err != nil {
		return nil, err
	}

	drv, err := d.driverFor(ctx, id)
	if err != nil {
		return nil, err
	}

	provider, ok := drv.LoadBalancer().(driver.StatsProvider)
	if !ok {
		stats, err := d.store.GetStats(ctx, id)
		if err != nil {
			return nil, err
		}

		return &lb.StatsReport{Stats: *stats}, nil
	}

	report, err := provider.Stats(ctx, tree)
	if err != nil {
		return nil, lb.NewDriverOperationError(err)
	}

	if err := d.store.UpdateStats(ctx, id, &report.Stats); err != nil {
		return nil, err
	}

	return report, nil
}

// hoistGraphPools moves pools nested under listeners as default pools into
// the top-level pool list, so one insertion pass covers both spellings.
func hoistGraphPools(in *lb.LoadBalancer) {
	for _, l := range in.Listeners {
		if l.DefaultPool == nil {
			continue
		}

		found := false

		for _, p := range in.Pools {
			if p == l.DefaultPool {
				found = true
				break
			}
		}

		if !found {
			in.Pools = append(in.Pools, l.DefaultPool)
		}
	}
}

// validateGraph runs the structural validations for a whole-tree create.
func (d *Dispatcher) validateGraph(in *lb.LoadBalancer) error {
	hoistGraphPools(in)

	for _, p := range in.Pools {
		if err := validatePool(p); err != nil {
			return err
		}

		if p.HealthMonitor != nil {
			if p.HealthMonitor.MaxRetriesDown == 0 {
				p.HealthMonitor.MaxRetriesDown = defaultMaxRetriesDown
			}

			if err := validateHealthMonitor(p.HealthMonitor); err != nil {
				return err
			}
		}

		for _, m := range p.Members {
			if err := validateMember(m); err != nil {
				return err
			}
		}
	}

	seenPorts := map[int]bool{}

	for _, l := range in.Listeners {
		if err := validateListener(l); err != nil {
			return err
		}

		if seenPorts[l.ProtocolPort] {
			return lb.NewValidationError("duplicate listener port %d", l.ProtocolPort)
		}

		seenPorts[l.ProtocolPort] = true

		for _, pol := range l.L7Policies {
			if err := validateL7Policy(pol); err != nil {
				return err
			}

			for _, r := range pol.Rules {
				if err := validateL7Rule(r); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// insertGraph mints ids for the whole tree and inserts every row pending.
func (d *Dispatcher) insertGraph(ctx context.Context, in *lb.LoadBalancer) error {
	if err := d.store.CreateLoadBalancer(ctx, in); err != nil {
		return err
	}

	for _, p := range in.Pools {
		p.ID = newID(prefixPool)
		p.LoadBalancerID = in.ID
		p.ProvisioningStatus = lb.StatusPendingCreate
		p.OperatingStatus = lb.OperatingOffline

		if err := d.store.CreatePool(ctx, p); err != nil {
			return err
		}

		for _, m := range p.Members {
			m.ID = newID(prefixMember)
			m.PoolID = p.ID
			m.ProvisioningStatus = lb.StatusPendingCreate
			m.OperatingStatus = lb.OperatingOffline

			if m.Weight == 0 {
				m.Weight = 1
			}

			if err := d.store.CreateMember(ctx, m); err != nil {
				return err
			}
		}

		if hm := p.HealthMonitor; hm != nil {
			hm.ID = newID(prefixHealthMonitor)
			hm.PoolID = p.ID
			hm.ProvisioningStatus = lb.StatusPendingCreate

			if err := d.store.CreateHealthMonitor(ctx, hm); err != nil {
				return err
			}
		}
	}

	for _, l := range in.Listeners {
		l.ID = newID(prefixListener)
		l.LoadBalancerID = in.ID
		l.ProvisioningStatus = lb.StatusPendingCreate
		l.OperatingStatus = lb.OperatingOffline

		if l.DefaultPool != nil {
			l.DefaultPoolID = l.DefaultPool.ID
		}

		if err := d.store.CreateListener(ctx, l); err != nil {
			return err
		}

		for _, pol := range l.L7Policies {
			pol.ID = newID(prefixL7Policy)
			pol.ListenerID = l.ID
			pol.ProvisioningStatus = lb.StatusPendingCreate

			if err := d.store.CreateL7Policy(ctx, pol); err != nil {
				return err
			}

			for _, r := range pol.Rules {
				r.ID = newID(prefixL7Rule)
				r.L7PolicyID = pol.ID
				r.ProvisioningStatus = lb.StatusPendingCreate

				if err := d.store.CreateL7Rule(ctx, r); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
