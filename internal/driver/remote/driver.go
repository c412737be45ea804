package remote

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
	"go.infratographer.com/loadbalancer-controlplane/internal/reconciler"
)

// Tracker is the slice of the reconciler a remote driver needs. A nil
// tracker makes the driver synchronous: the backend call is taken as the
// final word and completion is reported before the operation returns.
type Tracker interface {
	Track(obj driver.Object, opts reconciler.TrackOptions) string
}

// Driver manages backends over a REST API.
type Driver struct {
	name       string
	caps       driver.Capabilities
	client     *Client
	completion driver.CompletionHandler
	tracker    Tracker
	logger     *zap.SugaredLogger
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

// WithCapabilities sets the provider capability flags.
func WithCapabilities(caps driver.Capabilities) Option {
	return func(d *Driver) {
		d.caps = caps
	}
}

// WithTracker makes the driver asynchronous: accepted operations are handed
// to the reconciler instead of being confirmed in line.
func WithTracker(t Tracker) Option {
	return func(d *Driver) {
		d.tracker = t
	}
}

// NewDriver returns a remote driver for the given provider name.
func NewDriver(name string, client *Client, completion driver.CompletionHandler, options ...Option) *Driver {
	d := &Driver{
		name:       name,
		client:     client,
		completion: completion,
		logger:     zap.NewNop().Sugar(),
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// Name implements driver.Driver.
func (d *Driver) Name() string { return d.name }

// Capabilities implements driver.Driver.
func (d *Driver) Capabilities() driver.Capabilities { return d.caps }

// finish closes out one backend call. Deletes tolerate a vanished remote
// resource. Synchronous mode reports completion immediately; asynchronous
// mode hands accepted operations to the reconciler.
func (d *Driver) finish(ctx context.Context, obj driver.Object, opts reconciler.TrackOptions, err error) error {
	if err != nil {
		if opts.Delete && errors.Is(err, ErrRemoteNotFound) {
			return d.completion.CompleteSuccess(ctx, obj, true)
		}

		d.logger.Errorw("remote backend call failed", "resource", string(obj.Type), "resourceID", obj.ID, "error", err)

		if cerr := d.completion.CompleteFailure(ctx, obj); cerr != nil {
			return cerr
		}

		return err
	}

	if d.tracker != nil {
		d.tracker.Track(obj, opts)
		return nil
	}

	return d.completion.CompleteSuccess(ctx, obj, opts.Delete)
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
	err := m.d.client.request(ctx, http.MethodPost, "/v1/loadbalancers", loadBalancerArgs(lbr), nil)

	return m.d.finish(ctx, rootObj(lbr), reconciler.TrackOptions{}, err)
}

// CreateAndAllocateVIP creates the load balancer and copies the
// backend-chosen virtual IP back onto the local entity. In synchronous mode
// the create response carries the address; in asynchronous mode the
// reconciler copies it from the settled status document.
func (m *lbManager) CreateAndAllocateVIP(ctx context.Context, lbr *lb.LoadBalancer) error {
	if m.d.tracker != nil {
		err := m.d.client.request(ctx, http.MethodPost, "/v1/loadbalancers", loadBalancerArgs(lbr), nil)

		return m.d.finish(ctx, rootObj(lbr), reconciler.TrackOptions{CopyVIP: true}, err)
	}

	var created loadBalancerStatus

	err := m.d.client.request(ctx, http.MethodPost, "/v1/loadbalancers", loadBalancerArgs(lbr), &created)
	if err == nil && created.VIP.IPAddress != "" {
		if verr := m.d.completion.SetVIPAddress(ctx, lbr.ID, created.VIP.IPAddress, created.VIP.PortID); verr != nil {
			return verr
		}
	}

	return m.d.finish(ctx, rootObj(lbr), reconciler.TrackOptions{}, err)
}

func (m *lbManager) Update(ctx context.Context, _, updated *lb.LoadBalancer) error {
	err := m.d.client.request(ctx, http.MethodPut, loadBalancerPath(updated.ID), loadBalancerArgs(updated), nil)

	return m.d.finish(ctx, rootObj(updated), reconciler.TrackOptions{}, err)
}

func (m *lbManager) Delete(ctx context.Context, lbr *lb.LoadBalancer) error {
	err := m.d.client.request(ctx, http.MethodDelete, loadBalancerPath(lbr.ID), nil, nil)

	return m.d.finish(ctx, rootObj(lbr), reconciler.TrackOptions{Delete: true}, err)
}

// Stats reads the backend's traffic counters for a load balancer.
func (m *lbManager) Stats(ctx context.Context, lbr *lb.LoadBalancer) (*lb.StatsReport, error) {
	var report lb.StatsReport

	if err := m.d.client.request(ctx, http.MethodGet, loadBalancerPath(lbr.ID)+"/stats", nil, &report); err != nil {
		return nil, err
	}

	return &report, nil
}

type listenerManager struct {
	d *Driver
}

func (m *listenerManager) Create(ctx context.Context, tree *lb.LoadBalancer, l *lb.Listener) error {
	err := m.d.client.request(ctx, http.MethodPost, loadBalancerPath(tree.ID)+"/listeners", listenerArgs(l), nil)

	return m.d.finish(ctx, childObj(lb.ResourceListener, l.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *listenerManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.Listener) error {
	err := m.d.client.request(ctx, http.MethodPut, listenerPath(tree.ID, updated.ID), listenerArgs(updated), nil)

	return m.d.finish(ctx, childObj(lb.ResourceListener, updated.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *listenerManager) Delete(ctx context.Context, tree *lb.LoadBalancer, l *lb.Listener) error {
	err := m.d.client.request(ctx, http.MethodDelete, listenerPath(tree.ID, l.ID), nil, nil)

	return m.d.finish(ctx, childObj(lb.ResourceListener, l.ID, tree), reconciler.TrackOptions{Delete: true}, err)
}

type poolManager struct {
	d *Driver
}

func (m *poolManager) Create(ctx context.Context, tree *lb.LoadBalancer, p *lb.Pool) error {
	err := m.d.client.request(ctx, http.MethodPost, loadBalancerPath(tree.ID)+"/pools", poolArgs(p), nil)

	return m.d.finish(ctx, childObj(lb.ResourcePool, p.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *poolManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.Pool) error {
	err := m.d.client.request(ctx, http.MethodPut, poolPath(tree.ID, updated.ID), poolArgs(updated), nil)

	return m.d.finish(ctx, childObj(lb.ResourcePool, updated.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *poolManager) Delete(ctx context.Context, tree *lb.LoadBalancer, p *lb.Pool) error {
	err := m.d.client.request(ctx, http.MethodDelete, poolPath(tree.ID, p.ID), nil, nil)

	return m.d.finish(ctx, childObj(lb.ResourcePool, p.ID, tree), reconciler.TrackOptions{Delete: true}, err)
}

type memberManager struct {
	d *Driver
}

func (m *memberManager) Create(ctx context.Context, tree *lb.LoadBalancer, mb *lb.Member) error {
	err := m.d.client.request(ctx, http.MethodPost, poolPath(tree.ID, mb.PoolID)+"/members", memberArgs(mb), nil)

	return m.d.finish(ctx, childObj(lb.ResourceMember, mb.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *memberManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.Member) error {
	err := m.d.client.request(ctx, http.MethodPut, memberPath(tree.ID, updated.PoolID, updated.ID), memberArgs(updated), nil)

	return m.d.finish(ctx, childObj(lb.ResourceMember, updated.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *memberManager) Delete(ctx context.Context, tree *lb.LoadBalancer, mb *lb.Member) error {
	err := m.d.client.request(ctx, http.MethodDelete, memberPath(tree.ID, mb.PoolID, mb.ID), nil, nil)

	return m.d.finish(ctx, childObj(lb.ResourceMember, mb.ID, tree), reconciler.TrackOptions{Delete: true}, err)
}

type healthMonitorManager struct {
	d *Driver
}

func (m *healthMonitorManager) Create(ctx context.Context, tree *lb.LoadBalancer, hm *lb.HealthMonitor) error {
	err := m.d.client.request(ctx, http.MethodPost, healthMonitorPath(tree.ID, hm.PoolID), healthMonitorArgs(hm), nil)

	return m.d.finish(ctx, childObj(lb.ResourceHealthMonitor, hm.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *healthMonitorManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.HealthMonitor) error {
	err := m.d.client.request(ctx, http.MethodPut, healthMonitorPath(tree.ID, updated.PoolID), healthMonitorArgs(updated), nil)

	return m.d.finish(ctx, childObj(lb.ResourceHealthMonitor, updated.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *healthMonitorManager) Delete(ctx context.Context, tree *lb.LoadBalancer, hm *lb.HealthMonitor) error {
	err := m.d.client.request(ctx, http.MethodDelete, healthMonitorPath(tree.ID, hm.PoolID), nil, nil)

	return m.d.finish(ctx, childObj(lb.ResourceHealthMonitor, hm.ID, tree), reconciler.TrackOptions{Delete: true}, err)
}

type l7PolicyManager struct {
	d *Driver
}

func (m *l7PolicyManager) Create(ctx context.Context, tree *lb.LoadBalancer, p *lb.L7Policy) error {
	err := m.d.client.request(ctx, http.MethodPost, listenerPath(tree.ID, p.ListenerID)+"/l7policies", l7PolicyArgs(p), nil)

	return m.d.finish(ctx, childObj(lb.ResourceL7Policy, p.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *l7PolicyManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.L7Policy) error {
	err := m.d.client.request(ctx, http.MethodPut, l7PolicyPath(tree.ID, updated.ListenerID, updated.ID), l7PolicyArgs(updated), nil)

	return m.d.finish(ctx, childObj(lb.ResourceL7Policy, updated.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *l7PolicyManager) Delete(ctx context.Context, tree *lb.LoadBalancer, p *lb.L7Policy) error {
	err := m.d.client.request(ctx, http.MethodDelete, l7PolicyPath(tree.ID, p.ListenerID, p.ID), nil, nil)

	return m.d.finish(ctx, childObj(lb.ResourceL7Policy, p.ID, tree), reconciler.TrackOptions{Delete: true}, err)
}

type l7RuleManager struct {
	d *Driver
}

// listenerIDForPolicy walks the tree for the listener owning a policy; rule
// URLs nest under both.
func listenerIDForPolicy(tree *lb.LoadBalancer, policyID string) string {
	for _, l := range tree.Listeners {
		for _, p := range l.L7Policies {
			if p.ID == policyID {
				return l.ID
			}
		}
	}

	return ""
}

func (m *l7RuleManager) Create(ctx context.Context, tree *lb.LoadBalancer, r *lb.L7Rule) error {
	listenerID := listenerIDForPolicy(tree, r.L7PolicyID)
	err := m.d.client.request(ctx, http.MethodPost, l7PolicyPath(tree.ID, listenerID, r.L7PolicyID)+"/rules", l7RuleArgs(r), nil)

	return m.d.finish(ctx, childObj(lb.ResourceL7Rule, r.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *l7RuleManager) Update(ctx context.Context, tree *lb.LoadBalancer, _, updated *lb.L7Rule) error {
	listenerID := listenerIDForPolicy(tree, updated.L7PolicyID)
	err := m.d.client.request(ctx, http.MethodPut, l7RulePath(tree.ID, listenerID, updated.L7PolicyID, updated.ID), l7RuleArgs(updated), nil)

	return m.d.finish(ctx, childObj(lb.ResourceL7Rule, updated.ID, tree), reconciler.TrackOptions{}, err)
}

func (m *l7RuleManager) Delete(ctx context.Context, tree *lb.LoadBalancer, r *lb.L7Rule) error {
	listenerID := listenerIDForPolicy(tree, r.L7PolicyID)
	err := m.d.client.request(ctx, http.MethodDelete, l7RulePath(tree.ID, listenerID, r.L7PolicyID, r.ID), nil, nil)

	return m.d.finish(ctx, childObj(lb.ResourceL7Rule, r.ID, tree), reconciler.TrackOptions{Delete: true}, err)
}
