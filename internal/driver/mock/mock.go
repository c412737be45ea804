// Package mock provides a synchronous in-memory driver for tests.
package mock

import (
	"context"
	"sync"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// Driver is a fake backend. Every operation records a call string such as
// "pool.create <id>", consults FailOn (or Err) to decide the outcome, and
// reports through Completion the way a synchronous driver would. Individual
// operations can be overridden with the Do* function fields.
type Driver struct {
	Provider   string
	Caps       driver.Capabilities
	Completion driver.CompletionHandler

	// Err fails every operation when set.
	Err error

	// FailOn fails specific operations, keyed by call name ("member.update").
	FailOn map[string]error

	// VIPAddress and VIPPortID are written back through the completion
	// handler on load balancer create when Caps.AllocatesVIP is set.
	VIPAddress string
	VIPPortID  string

	DoLoadBalancerCreate func(ctx context.Context, lbr *lb.LoadBalancer) error
	DoLoadBalancerDelete func(ctx context.Context, lbr *lb.LoadBalancer) error
	DoRefresh            func(ctx context.Context, lbr *lb.LoadBalancer) error
	DoStats              func(ctx context.Context, lbr *lb.LoadBalancer) (*lb.StatsReport, error)

	mu    sync.Mutex
	calls []string
}

var _ driver.Driver = (*Driver)(nil)

// Name implements driver.Driver.
func (d *Driver) Name() string { return d.Provider }

// Capabilities implements driver.Driver.
func (d *Driver) Capabilities() driver.Capabilities { return d.Caps }

// Calls returns a copy of the recorded call log.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, len(d.calls))
	copy(out, d.calls)

	return out
}

func (d *Driver) record(call string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, call)
}

func (d *Driver) outcome(op string) error {
	if d.Err != nil {
		return d.Err
	}

	if err, ok := d.FailOn[op]; ok {
		return err
	}

	return nil
}

// finish mimics a synchronous backend: the operation either succeeded and is
// confirmed immediately, or failed and is flagged immediately.
func (d *Driver) finish(ctx context.Context, op string, obj driver.Object, deleted bool) error {
	d.record(op + " " + obj.ID)

	if err := d.outcome(op); err != nil {
		if cerr := d.Completion.CompleteFailure(ctx, obj); cerr != nil {
			return cerr
		}

		return err
	}

	return d.Completion.CompleteSuccess(ctx, obj, deleted)
}

func rootObj(lbr *lb.LoadBalancer) driver.Object {
	return driver.Object{Type: lb.ResourceLoadBalancer, ID: lbr.ID, RootID: lbr.ID}
}

// LoadBalancer implements driver.Driver.
func (d *Driver) LoadBalancer() driver.LoadBalancerManager { return &lbManager{d} }

// Listener implements driver.Driver.
func (d *Driver) Listener() driver.ListenerManager {
	return childManager[lb.Listener]{d, lb.ResourceListener, "listener"}
}

// Pool implements driver.Driver.
func (d *Driver) Pool() driver.PoolManager {
	return childManager[lb.Pool]{d, lb.ResourcePool, "pool"}
}

// Member implements driver.Driver.
func (d *Driver) Member() driver.MemberManager {
	return childManager[lb.Member]{d, lb.ResourceMember, "member"}
}

// HealthMonitor implements driver.Driver.
func (d *Driver) HealthMonitor() driver.HealthMonitorManager {
	return childManager[lb.HealthMonitor]{d, lb.ResourceHealthMonitor, "healthmonitor"}
}

// L7Policy implements driver.Driver.
func (d *Driver) L7Policy() driver.L7PolicyManager {
	return childManager[lb.L7Policy]{d, lb.ResourceL7Policy, "l7policy"}
}

// L7Rule implements driver.Driver.
func (d *Driver) L7Rule() driver.L7RuleManager {
	return childManager[lb.L7Rule]{d, lb.ResourceL7Rule, "l7rule"}
}

type lbManager struct {
	d *Driver
}

func (m *lbManager) Create(ctx context.Context, lbr *lb.LoadBalancer) error {
	if m.d.DoLoadBalancerCreate != nil {
		return m.d.DoLoadBalancerCreate(ctx, lbr)
	}

	return m.d.finish(ctx, "loadbalancer.create", rootObj(lbr), false)
}

func (m *lbManager) CreateAndAllocateVIP(ctx context.Context, lbr *lb.LoadBalancer) error {
	m.d.record("loadbalancer.allocatevip " + lbr.ID)

	if err := m.d.outcome("loadbalancer.create"); err != nil {
		if cerr := m.d.Completion.CompleteFailure(ctx, rootObj(lbr)); cerr != nil {
			return cerr
		}

		return err
	}

	if err := m.d.Completion.SetVIPAddress(ctx, lbr.ID, m.d.VIPAddress, m.d.VIPPortID); err != nil {
		return err
	}

	return m.d.Completion.CompleteSuccess(ctx, rootObj(lbr), false)
}

func (m *lbManager) Update(ctx context.Context, _, updated *lb.LoadBalancer) error {
	return m.d.finish(ctx, "loadbalancer.update", rootObj(updated), false)
}

func (m *lbManager) Delete(ctx context.Context, lbr *lb.LoadBalancer) error {
	if m.d.DoLoadBalancerDelete != nil {
		return m.d.DoLoadBalancerDelete(ctx, lbr)
	}

	return m.d.finish(ctx, "loadbalancer.delete", rootObj(lbr), true)
}

func (m *lbManager) Refresh(ctx context.Context, lbr *lb.LoadBalancer) error {
	if m.d.DoRefresh != nil {
		return m.d.DoRefresh(ctx, lbr)
	}

	m.d.record("loadbalancer.refresh " + lbr.ID)

	return m.d.outcome("loadbalancer.refresh")
}

func (m *lbManager) Stats(ctx context.Context, lbr *lb.LoadBalancer) (*lb.StatsReport, error) {
	if m.d.DoStats != nil {
		return m.d.DoStats(ctx, lbr)
	}

	m.d.record("loadbalancer.stats " + lbr.ID)

	if err := m.d.outcome("loadbalancer.stats"); err != nil {
		return nil, err
	}

	return &lb.StatsReport{}, nil
}

// childManager implements every child resource manager with the same
// record-and-finish behavior; the resource type tags completion objects and
// the prefix tags call log entries.
type childManager[E any] struct {
	d        *Driver
	resource lb.ResourceType
	prefix   string
}

func (m childManager[E]) object(tree *lb.LoadBalancer, e *E) driver.Object {
	return driver.Object{Type: m.resource, ID: entityID(e), RootID: tree.ID}
}

func (m childManager[E]) Create(ctx context.Context, tree *lb.LoadBalancer, e *E) error {
	return m.d.finish(ctx, m.prefix+".create", m.object(tree, e), false)
}

func (m childManager[E]) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *E) error {
	return m.d.finish(ctx, m.prefix+".update", m.object(tree, updated), false)
}

func (m childManager[E]) Delete(ctx context.Context, tree *lb.LoadBalancer, e *E) error {
	return m.d.finish(ctx, m.prefix+".delete", m.object(tree, e), true)
}

func entityID(e any) string {
	switch v := e.(type) {
	case *lb.Listener:
		return v.ID
	case *lb.Pool:
		return v.ID
	case *lb.Member:
		return v.ID
	case *lb.HealthMonitor:
		return v.ID
	case *lb.L7Policy:
		return v.ID
	case *lb.L7Rule:
		return v.ID
	default:
		return ""
	}
}
