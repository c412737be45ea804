package dispatcher

import (
	"context"

	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
	"go.infratographer.com/loadbalancer-controlplane/internal/pubsub"
	"go.infratographer.com/loadbalancer-controlplane/internal/store"
)

// event types carried on published status messages
const (
	eventTypeUpdate = "update"
	eventTypeDelete = "delete"
)

// StatusPublisher receives an event for every finalized status transition.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg pubsub.StatusMessage) error
}

// Completions finalizes driver operations: it is the dispatcher-side
// implementation of the completion contract every driver reports through,
// shared by synchronous drivers and the reconciler.
type Completions struct {
	store     *store.Store
	publisher StatusPublisher
	logger    *zap.SugaredLogger
}

var _ driver.CompletionHandler = (*Completions)(nil)

// CompletionOption configures Completions.
type CompletionOption func(c *Completions)

// WithCompletionLogger sets the logger.
func WithCompletionLogger(l *zap.SugaredLogger) CompletionOption {
	return func(c *Completions) {
		c.logger = l
	}
}

// WithStatusPublisher enables status change events.
func WithStatusPublisher(p StatusPublisher) CompletionOption {
	return func(c *Completions) {
		c.publisher = p
	}
}

// NewCompletions returns the completion handler over the given store.
func NewCompletions(s *store.Store, options ...CompletionOption) *Completions {
	c := &Completions{
		store:  s,
		logger: zap.NewNop().Sugar(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// CompleteSuccess implements driver.CompletionHandler. Deletes remove the
// local row; everything else settles to ACTIVE/ONLINE. The root load
// balancer is released from its pending status in all cases. A root create
// confirmation also settles any children still pending from a graph create.
func (c *Completions) CompleteSuccess(ctx context.Context, obj driver.Object, deleted bool) error {
	if deleted {
		if err := c.deleteRow(ctx, obj); err != nil {
			return err
		}

		if !obj.IsRoot() {
			if err := c.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, obj.RootID, lb.StatusActive, ""); err != nil {
				return err
			}
		}

		c.publish(ctx, obj, eventTypeDelete, lb.StatusDeleted, "")

		return nil
	}

	if err := c.store.UpdateStatus(ctx, obj.Type, obj.ID, lb.StatusActive, lb.OperatingOnline); err != nil {
		return err
	}

	if obj.IsRoot() {
		if err := c.finishPendingChildren(ctx, obj.ID, lb.StatusActive, lb.OperatingOnline); err != nil {
			return err
		}
	} else {
		if err := c.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, obj.RootID, lb.StatusActive, ""); err != nil {
			return err
		}
	}

	c.publish(ctx, obj, eventTypeUpdate, lb.StatusActive, lb.OperatingOnline)

	return nil
}

// CompleteFailure implements driver.CompletionHandler. The failed entity and
// its root are both flagged ERROR, so a later status read reflects the
// failure without the original error in hand. A failed root create from a
// graph also flags every still-pending descendant, leaving the whole tree in
// a deletable state.
func (c *Completions) CompleteFailure(ctx context.Context, obj driver.Object) error {
	if err := c.store.UpdateStatus(ctx, obj.Type, obj.ID, lb.StatusError, lb.OperatingOffline); err != nil {
		return err
	}

	if obj.IsRoot() {
		if err := c.finishPendingChildren(ctx, obj.ID, lb.StatusError, lb.OperatingOffline); err != nil {
			return err
		}
	} else {
		if err := c.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, obj.RootID, lb.StatusError, ""); err != nil {
			return err
		}
	}

	c.publish(ctx, obj, eventTypeUpdate, lb.StatusError, lb.OperatingOffline)

	return nil
}

// SetVIPAddress implements driver.CompletionHandler.
func (c *Completions) SetVIPAddress(ctx context.Context, loadBalancerID, address, portID string) error {
	return c.store.SetVIPAddress(ctx, loadBalancerID, address, portID)
}

func (c *Completions) deleteRow(ctx context.Context, obj driver.Object) error {
	switch obj.Type {
	case lb.ResourceLoadBalancer:
		return c.store.DeleteLoadBalancer(ctx, obj.ID)
	case lb.ResourceListener:
		return c.store.DeleteListener(ctx, obj.ID)
	case lb.ResourcePool:
		return c.store.DeletePool(ctx, obj.ID)
	case lb.ResourceMember:
		return c.store.DeleteMember(ctx, obj.ID)
	case lb.ResourceHealthMonitor:
		return c.store.DeleteHealthMonitor(ctx, obj.ID)
	case lb.ResourceL7Policy:
		return c.store.DeleteL7Policy(ctx, obj.ID)
	case lb.ResourceL7Rule:
		return c.store.DeleteL7Rule(ctx, obj.ID)
	default:
		return nil
	}
}

// finishPendingChildren moves every still-pending descendant of a finished
// root operation to the given statuses. Only graph creates leave children
// pending at this point: the tree is serialized, so no other operation can be
// in flight. A confirmed root settles them ACTIVE, a failed one ERROR.
func (c *Completions) finishPendingChildren(ctx context.Context, loadBalancerID string, provisioning lb.ProvisioningStatus, operating lb.OperatingStatus) error {
	tree, err := c.store.GetLoadBalancer(ctx, loadBalancerID)
	if err != nil {
		return err
	}

	settle := func(resource lb.ResourceType, id string, status lb.ProvisioningStatus) error {
		if !status.Pending() {
			return nil
		}

		return c.store.UpdateStatus(ctx, resource, id, provisioning, operating)
	}

	for _, p := range tree.Pools {
		if err := settle(lb.ResourcePool, p.ID, p.ProvisioningStatus); err != nil {
			return err
		}

		for _, m := range p.Members {
			if err := settle(lb.ResourceMember, m.ID, m.ProvisioningStatus); err != nil {
				return err
			}
		}

		if p.HealthMonitor != nil {
			if err := settle(lb.ResourceHealthMonitor, p.HealthMonitor.ID, p.HealthMonitor.ProvisioningStatus); err != nil {
				return err
			}
		}
	}

	for _, l := range tree.Listeners {
		if err := settle(lb.ResourceListener, l.ID, l.ProvisioningStatus); err != nil {
			return err
		}

		for _, pol := range l.L7Policies {
			if err := settle(lb.ResourceL7Policy, pol.ID, pol.ProvisioningStatus); err != nil {
				return err
			}

			for _, r := range pol.Rules {
				if err := settle(lb.ResourceL7Rule, r.ID, r.ProvisioningStatus); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (c *Completions) publish(ctx context.Context, obj driver.Object, eventType string, provisioning lb.ProvisioningStatus, operating lb.OperatingStatus) {
	if c.publisher == nil {
		return
	}

	msg := pubsub.StatusMessage{
		EventType:          eventType,
		ResourceType:       obj.Type,
		SubjectID:          obj.ID,
		LoadBalancerID:     obj.RootID,
		ProvisioningStatus: provisioning,
		OperatingStatus:    operating,
	}

	if err := c.publisher.PublishStatus(ctx, msg); err != nil {
		c.logger.Warnw("failed to publish status event",
			"resource", string(obj.Type), "resourceID", obj.ID, "error", err)
	}
}
