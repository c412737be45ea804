// Package haproxy implements a driver that realizes load balancers as local
// haproxy processes, one per load balancer, reloaded on every change.
package haproxy

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// Driver deploys one haproxy instance per load balancer. Every operation is
// a full redeploy of the owning instance under a per-instance lock; the
// backend is local, so all operations complete synchronously.
type Driver struct {
	name       string
	supervisor *Supervisor
	completion driver.CompletionHandler
	logger     *zap.SugaredLogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ driver.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(d *Driver)

// WithLogger sets the driver logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver returns an haproxy driver for the given provider name.
func NewDriver(name string, supervisor *Supervisor, completion driver.CompletionHandler, options ...Option) *Driver {
	d := &Driver{
		name:       name,
		supervisor: supervisor,
		completion: completion,
		logger:     zap.NewNop().Sugar(),
		locks:      map[string]*sync.Mutex{},
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return d.name }

// Capabilities implements driver.Driver. The local backend binds the
// operator-supplied address and realizes one resource at a time.
func (d *Driver) Capabilities() driver.Capabilities { return driver.Capabilities{} }

// instanceLock serializes operations per load balancer.
func (d *Driver) instanceLock(id string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.locks[id]
	if !ok {
		l = &sync.Mutex{}
		d.locks[id] = l
	}

	return l
}

// deploy renders and pushes the tree's config, then reports completion for
// obj like any synchronous backend.
func (d *Driver) deploy(ctx context.Context, tree *lb.LoadBalancer, obj driver.Object, deleted bool) error {
	lock := d.instanceLock(tree.ID)
	lock.Lock()
	defer lock.Unlock()

	config, err := renderConfig(tree, d.supervisor.SocketPath(tree.ID))
	if err == nil {
		err = d.supervisor.Deploy(ctx, tree.ID, config)
	}

	return d.finish(ctx, obj, deleted, err)
}

func (d *Driver) finish(ctx context.Context, obj driver.Object, deleted bool, err error) error {
	if err != nil {
		d.logger.Errorw("haproxy operation failed", "resource", string(obj.Type), "resourceID", obj.ID, "error", err)

		if cerr := d.completion.CompleteFailure(ctx, obj); cerr != nil {
			return cerr
		}

		return err
	}

	return d.completion.CompleteSuccess(ctx, obj, deleted)
}

// unsupported rejects resource types the local backend cannot realize.
func (d *Driver) unsupported(ctx context.Context, obj driver.Object) error {
	if cerr := d.completion.CompleteFailure(ctx, obj); cerr != nil {
		return cerr
	}

	return ErrUnsupportedOperation
}

func rootObj(lbr *lb.LoadBalancer) driver.Object {
	return driver.Object{Type: lb.ResourceLoadBalancer, ID: lbr.ID, RootID: lbr.ID}
}

func childObj(resource lb.ResourceType, id string, tree *lb.LoadBalancer) driver.Object {
	return driver.Object{Type: resource, ID: id, RootID: tree.ID}
}

// LoadBalancer implements driver.Driver.
func (d *Driver) LoadBalancer() driver.LoadBalancerManager { return &lbManager{d} }

// Listener implements driver.Driver.
func (d *Driver) Listener() driver.ListenerManager { return &listenerManager{d} }

// Pool implements driver.Driver.
func (d *Driver) Pool() driver.PoolManager { return &poolManager{d} }

// Member implements driver.Driver.
func (d *Driver) Member() driver.MemberManager { return &memberManager{d} }

// HealthMonitor implements driver.Driver.
func (d *Driver) HealthMonitor() driver.HealthMonitorManager { return &healthMonitorManager{d} }

// L7Policy implements driver.Driver.
func (d *Driver) L7Policy() driver.L7PolicyManager { return &l7PolicyManager{d} }

// L7Rule implements driver.Driver.
func (d *Driver) L7Rule() driver.L7RuleManager { return &l7RuleManager{d} }

type lbManager struct {
	d *Driver
}

func (m *lbManager) Create(ctx context.Context, lbr *lb.LoadBalancer) error {
	return m.d.deploy(ctx, lbr, rootObj(lbr), false)
}

func (m *lbManager) Update(ctx context.Context, _, updated *lb.LoadBalancer) error {
	return m.d.deploy(ctx, updated, rootObj(updated), false)
}

func (m *lbManager) Delete(ctx context.Context, lbr *lb.LoadBalancer) error {
	lock := m.d.instanceLock(lbr.ID)
	lock.Lock()
	defer lock.Unlock()

	err := m.d.supervisor.Undeploy(ctx, lbr.ID)

	return m.d.finish(ctx, rootObj(lbr), true, err)
}

// Refresh re-realizes the whole deployment from the given tree.
func (m *lbManager) Refresh(ctx context.Context, lbr *lb.LoadBalancer) error {
	lock := m.d.instanceLock(lbr.ID)
	lock.Lock()
	defer lock.Unlock()

	config, err := renderConfig(lbr, m.d.supervisor.SocketPath(lbr.ID))
	if err != nil {
		return err
	}

	return m.d.supervisor.Deploy(ctx, lbr.ID, config)
}

// Stats reads the instance's control socket.
func (m *lbManager) Stats(ctx context.Context, lbr *lb.LoadBalancer) (*lb.StatsReport, error) {
	if !m.d.supervisor.Deployed(lbr.ID) {
		return nil, ErrInstanceNotDeployed
	}

	return readStats(ctx, m.d.supervisor.SocketPath(lbr.ID))
}

type listenerManager struct {
	d *Driver
}

func (m *listenerManager) Create(ctx context.Context, tree *lb.LoadBalancer, l *lb.Listener) error {
	return m.d.deploy(ctx, tree, childObj(lb.ResourceListener, l.ID, tree), false)
}

func (m *listenerManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.Listener) error {
	return m.d.deploy(ctx, tree, childObj(lb.ResourceListener, updated.ID, tree), false)
}

func (m *listenerManager) Delete(ctx context.Context, tree *lb.LoadBalancer, l *lb.Listener) error {
	return m.d.deploy(ctx, withoutListener(tree, l.ID), childObj(lb.ResourceListener, l.ID, tree), true)
}

type poolManager struct {
	d *Driver
}

func (m *poolManager) Create(ctx context.Context, tree *lb.LoadBalancer, p *lb.Pool) error {
	return m.d.deploy(ctx, tree, childObj(lb.ResourcePool, p.ID, tree), false)
}

func (m *poolManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.Pool) error {
	return m.d.deploy(ctx, tree, childObj(lb.ResourcePool, updated.ID, tree), false)
}

func (m *poolManager) Delete(ctx context.Context, tree *lb.LoadBalancer, p *lb.Pool) error {
	return m.d.deploy(ctx, withoutPool(tree, p.ID), childObj(lb.ResourcePool, p.ID, tree), true)
}

type memberManager struct {
	d *Driver
}

func (m *memberManager) Create(ctx context.Context, tree *lb.LoadBalancer, mb *lb.Member) error {
	return m.d.deploy(ctx, tree, childObj(lb.ResourceMember, mb.ID, tree), false)
}

func (m *memberManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.Member) error {
	return m.d.deploy(ctx, tree, childObj(lb.ResourceMember, updated.ID, tree), false)
}

func (m *memberManager) Delete(ctx context.Context, tree *lb.LoadBalancer, mb *lb.Member) error {
	return m.d.deploy(ctx, withoutMember(tree, mb.ID), childObj(lb.ResourceMember, mb.ID, tree), true)
}

type healthMonitorManager struct {
	d *Driver
}

func (m *healthMonitorManager) Create(ctx context.Context, tree *lb.LoadBalancer, hm *lb.HealthMonitor) error {
	return m.d.deploy(ctx, tree, childObj(lb.ResourceHealthMonitor, hm.ID, tree), false)
}

func (m *healthMonitorManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.HealthMonitor) error {
	return m.d.deploy(ctx, tree, childObj(lb.ResourceHealthMonitor, updated.ID, tree), false)
}

func (m *healthMonitorManager) Delete(ctx context.Context, tree *lb.LoadBalancer, hm *lb.HealthMonitor) error {
	return m.d.deploy(ctx, withoutHealthMonitor(tree, hm.ID), childObj(lb.ResourceHealthMonitor, hm.ID, tree), true)
}

type l7PolicyManager struct {
	d *Driver
}

func (m *l7PolicyManager) Create(ctx context.Context, tree *lb.LoadBalancer, p *lb.L7Policy) error {
	return m.d.unsupported(ctx, childObj(lb.ResourceL7Policy, p.ID, tree))
}

func (m *l7PolicyManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.L7Policy) error {
	return m.d.unsupported(ctx, childObj(lb.ResourceL7Policy, updated.ID, tree))
}

func (m *l7PolicyManager) Delete(ctx context.Context, tree *lb.LoadBalancer, p *lb.L7Policy) error {
	return m.d.unsupported(ctx, childObj(lb.ResourceL7Policy, p.ID, tree))
}

type l7RuleManager struct {
	d *Driver
}

func (m *l7RuleManager) Create(ctx context.Context, tree *lb.LoadBalancer, r *lb.L7Rule) error {
	return m.d.unsupported(ctx, childObj(lb.ResourceL7Rule, r.ID, tree))
}

func (m *l7RuleManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.L7Rule) error {
	return m.d.unsupported(ctx, childObj(lb.ResourceL7Rule, updated.ID, tree))
}

func (m *l7RuleManager) Delete(ctx context.Context, tree *lb.LoadBalancer, r *lb.L7Rule) error {
	return m.d.unsupported(ctx, childObj(lb.ResourceL7Rule, r.ID, tree))
}

// The pruning helpers return a shallow copy of the tree with one entity
// removed, for realizing deletes before the row itself is gone.

func withoutListener(tree *lb.LoadBalancer, id string) *lb.LoadBalancer {
	out := *tree
	out.Listeners = nil

	for _, l := range tree.Listeners {
		if l.ID != id {
			out.Listeners = append(out.Listeners, l)
		}
	}

	return &out
}

func withoutPool(tree *lb.LoadBalancer, id string) *lb.LoadBalancer {
	out := *tree
	out.Pools = nil

	for _, p := range tree.Pools {
		if p.ID != id {
			out.Pools = append(out.Pools, p)
		}
	}

	out.Listeners = nil

	for _, l := range tree.Listeners {
		if l.DefaultPoolID == id {
			cp := *l
			cp.DefaultPoolID = ""
			cp.DefaultPool = nil
			l = &cp
		}

		out.Listeners = append(out.Listeners, l)
	}

	return &out
}

func withoutMember(tree *lb.LoadBalancer, id string) *lb.LoadBalancer {
	out := *tree
	out.Pools = nil

	for _, p := range tree.Pools {
		cp := *p
		cp.Members = nil

		for _, m := range p.Members {
			if m.ID != id {
				cp.Members = append(cp.Members, m)
			}
		}

		out.Pools = append(out.Pools, &cp)
	}

	return &out
}

func withoutHealthMonitor(tree *lb.LoadBalancer, id string) *lb.LoadBalancer {
	out := *tree
	out.Pools = nil

	for _, p := range tree.Pools {
		if p.HealthMonitor != nil && p.HealthMonitor.ID == id {
			cp := *p
			cp.HealthMonitor = nil
			p = &cp
		}

		out.Pools = append(out.Pools, p)
	}

	return &out
}
