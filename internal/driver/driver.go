// Package driver defines the polymorphic backend abstraction. A Driver
// translates typed operations from the dispatcher into backend effects via
// per-resource-type managers, and reports completion through the
// CompletionHandler it was constructed with. A manager must either confirm
// synchronously (calling the handler before returning) or guarantee that a
// reconciliation task will call it later; anything else leaks a resource in
// a pending status forever.
package driver

import (
	"context"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// Capabilities are the per-provider feature flags fixed at registration.
type Capabilities struct {
	// AllocatesVIP is true when the backend manages its own virtual IPs and
	// the control plane must copy the backend-reported address back.
	AllocatesVIP bool

	// AllowsGraphCreate is true when the backend accepts a whole resource
	// tree in one create call.
	AllowsGraphCreate bool
}

// Driver is one configured backend.
type Driver interface {
	Name() string
	Capabilities() Capabilities

	LoadBalancer() LoadBalancerManager
	Listener() ListenerManager
	Pool() PoolManager
	Member() MemberManager
	HealthMonitor() HealthMonitorManager
	L7Policy() L7PolicyManager
	L7Rule() L7RuleManager
}

// LoadBalancerManager handles operations on the root resource.
type LoadBalancerManager interface {
	Create(ctx context.Context, lbr *lb.LoadBalancer) error
	Update(ctx context.Context, old, updated *lb.LoadBalancer) error
	Delete(ctx context.Context, lbr *lb.LoadBalancer) error
}

// ListenerManager handles listener operations. Managers receive the root's
// current tree alongside the entity so backends that realize whole
// deployments at once (the local process backend) have everything they need.
type ListenerManager interface {
	Create(ctx context.Context, tree *lb.LoadBalancer, l *lb.Listener) error
	Update(ctx context.Context, tree *lb.LoadBalancer, old, updated *lb.Listener) error
	Delete(ctx context.Context, tree *lb.LoadBalancer, l *lb.Listener) error
}

// PoolManager handles pool operations.
type PoolManager interface {
	Create(ctx context.Context, tree *lb.LoadBalancer, p *lb.Pool) error
	Update(ctx context.Context, tree *lb.LoadBalancer, old, updated *lb.Pool) error
	Delete(ctx context.Context, tree *lb.LoadBalancer, p *lb.Pool) error
}

// MemberManager handles member operations.
type MemberManager interface {
	Create(ctx context.Context, tree *lb.LoadBalancer, m *lb.Member) error
	Update(ctx context.Context, tree *lb.LoadBalancer, old, updated *lb.Member) error
	Delete(ctx context.Context, tree *lb.LoadBalancer, m *lb.Member) error
}

// HealthMonitorManager handles health monitor operations.
type HealthMonitorManager interface {
	Create(ctx context.Context, tree *lb.LoadBalancer, hm *lb.HealthMonitor) error
	Update(ctx context.Context, tree *lb.LoadBalancer, old, updated *lb.HealthMonitor) error
	Delete(ctx context.Context, tree *lb.LoadBalancer, hm *lb.HealthMonitor) error
}

// L7PolicyManager handles l7 policy operations.
type L7PolicyManager interface {
	Create(ctx context.Context, tree *lb.LoadBalancer, p *lb.L7Policy) error
	Update(ctx context.Context, tree *lb.LoadBalancer, old, updated *lb.L7Policy) error
	Delete(ctx context.Context, tree *lb.LoadBalancer, p *lb.L7Policy) error
}

// L7RuleManager handles l7 rule operations.
type L7RuleManager interface {
	Create(ctx context.Context, tree *lb.LoadBalancer, r *lb.L7Rule) error
	Update(ctx context.Context, tree *lb.LoadBalancer, old, updated *lb.L7Rule) error
	Delete(ctx context.Context, tree *lb.LoadBalancer, r *lb.L7Rule) error
}

// VIPAllocator is implemented by load balancer managers of backends that
// allocate their own virtual IPs. When the driver's Capabilities report
// AllocatesVIP, the dispatcher calls CreateAndAllocateVIP instead of Create;
// the implementation must see to it that the backend-reported address is
// written back to the local entity before success is signalled.
type VIPAllocator interface {
	CreateAndAllocateVIP(ctx context.Context, lbr *lb.LoadBalancer) error
}

// Refreshable is implemented by load balancer managers that can re-realize a
// whole deployment from local desired state.
type Refreshable interface {
	Refresh(ctx context.Context, lbr *lb.LoadBalancer) error
}

// StatsProvider is implemented by load balancer managers that can read
// traffic counters from the backend.
type StatsProvider interface {
	Stats(ctx context.Context, lbr *lb.LoadBalancer) (*lb.StatsReport, error)
}

// Object identifies a resource for completion callbacks.
type Object struct {
	Type   lb.ResourceType
	ID     string
	RootID string
}

// IsRoot reports whether the object is its own root load balancer.
func (o Object) IsRoot() bool {
	return o.Type == lb.ResourceLoadBalancer
}

// CompletionHandler closes the loop on a driver operation. Implemented by
// the dispatcher's status finisher; called exactly once per operation by
// synchronous drivers, and by the reconciler on behalf of asynchronous ones.
type CompletionHandler interface {
	// CompleteSuccess finalizes a successful operation: deletes the local
	// row when deleted is true, otherwise marks the object ACTIVE, and in
	// both cases releases the root load balancer from its pending status.
	CompleteSuccess(ctx context.Context, obj Object, deleted bool) error

	// CompleteFailure marks the object ERROR/OFFLINE and flags the root
	// load balancer ERROR.
	CompleteFailure(ctx context.Context, obj Object) error

	// SetVIPAddress records a backend-allocated virtual IP on the local
	// load balancer entity.
	SetVIPAddress(ctx context.Context, loadBalancerID, address, portID string) error
}
