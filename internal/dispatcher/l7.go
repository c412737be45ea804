package dispatcher

import (
	"context"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// L7 policies and rules are only realized on the backend while they are
// administratively up; an admin-down policy or rule is stored DEFERRED and
// no driver call is issued until it is re-enabled.

// CreateL7Policy validates and inserts a policy, driving the backend create
// unless the policy is deferred.
func (d *Dispatcher) CreateL7Policy(ctx context.Context, in *lb.L7Policy) (*lb.L7Policy, error) {
	if err := validateL7Policy(in); err != nil {
		return nil, err
	}

	listener, err := d.store.GetListener(ctx, in.ListenerID)
	if err != nil {
		return nil, err
	}

	if in.RedirectPoolID != "" {
		pool, err := d.store.GetPool(ctx, in.RedirectPoolID)
		if err != nil {
			return nil, err
		}

		if pool.LoadBalancerID != listener.LoadBalancerID {
			return nil, lb.NewValidationError("redirect pool %q belongs to a different load balancer", pool.ID)
		}
	}

	if in.Position < 1 {
		in.Position = len(listener.L7Policies) + 1
	}

	in.ID = newID(prefixL7Policy)

	if !in.AdminStateUp {
		in.ProvisioningStatus = lb.StatusDeferred

		if err := d.store.CreateL7Policy(ctx, in); err != nil {
			return nil, err
		}

		return d.store.GetL7Policy(ctx, in.ID)
	}

	if _, err := d.store.TestAndSetStatus(ctx, lb.ResourceLoadBalancer, listener.LoadBalancerID, lb.StatusPendingUpdate); err != nil {
		return nil, err
	}

	in.ProvisioningStatus = lb.StatusPendingCreate

	if err := d.store.CreateL7Policy(ctx, in); err != nil {
		if uerr := d.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, listener.LoadBalancerID, lb.StatusActive, ""); uerr != nil {
			d.logger.Errorw("failed to release load balancer after insert failure", "loadBalancerID", listener.LoadBalancerID, "error", uerr)
		}

		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, listener.LoadBalancerID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Policy, in.ID, listener.LoadBalancerID, lb.StatusError)
		return nil, err
	}

	drv, err := d.driverFor(ctx, tree.ID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Policy, in.ID, tree.ID, lb.StatusError)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceL7Policy, ID: in.ID, RootID: tree.ID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.L7Policy().Create(ctx, tree, in)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetL7Policy(ctx, in.ID)
}

// GetL7Policy returns one policy with its rules.
func (d *Dispatcher) GetL7Policy(ctx context.Context, id string) (*lb.L7Policy, error) {
	return d.store.GetL7Policy(ctx, id)
}

// UpdateL7Policy applies changes, realizing a previously deferred policy on
// the backend when it comes up.
func (d *Dispatcher) UpdateL7Policy(ctx context.Context, id string, in *lb.L7Policy) (*lb.L7Policy, error) {
	old, err := d.store.GetL7Policy(ctx, id)
	if err != nil {
		return nil, err
	}

	in.ID = id
	in.ListenerID = old.ListenerID

	if in.Action == "" {
		in.Action = old.Action
	}

	if in.Position < 1 {
		in.Position = old.Position
	}

	if err := validateL7Policy(in); err != nil {
		return nil, err
	}

	wasDeferred := old.ProvisioningStatus == lb.StatusDeferred

	if !in.AdminStateUp {
		// stays (or becomes) deferred; realized policies are torn down
		if !wasDeferred {
			if err := d.deferL7Policy(ctx, old); err != nil {
				return nil, err
			}
		}

		in.ProvisioningStatus = lb.StatusDeferred

		if err := d.store.UpdateL7Policy(ctx, in); err != nil {
			return nil, err
		}

		if err := d.store.UpdateStatus(ctx, lb.ResourceL7Policy, id, lb.StatusDeferred, ""); err != nil {
			return nil, err
		}

		return d.store.GetL7Policy(ctx, id)
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceL7Policy, id)
	if err != nil {
		return nil, err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceL7Policy, id, lb.StatusPendingUpdate)
	if err != nil {
		return nil, err
	}

	if err := d.store.UpdateL7Policy(ctx, in); err != nil {
		d.releasePending(ctx, lb.ResourceL7Policy, id, rootID, prior)
		return nil, err
	}

	updated, err := d.store.GetL7Policy(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Policy, id, rootID, prior)
		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Policy, id, rootID, prior)
		return nil, err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Policy, id, rootID, prior)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceL7Policy, ID: id, RootID: rootID}

	err = d.callDriver(ctx, obj, func() error {
		if wasDeferred {
			return drv.L7Policy().Create(ctx, tree, updated)
		}

		return drv.L7Policy().Update(ctx, tree, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetL7Policy(ctx, id)
}

// DeleteL7Policy removes a policy and its rules. A deferred policy was never
// realized, so its rows are removed without a driver call.
func (d *Dispatcher) DeleteL7Policy(ctx context.Context, id string) error {
	policy, err := d.store.GetL7Policy(ctx, id)
	if err != nil {
		return err
	}

	if policy.ProvisioningStatus == lb.StatusDeferred {
		return d.store.DeleteL7Policy(ctx, id)
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceL7Policy, id)
	if err != nil {
		return err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceL7Policy, id, lb.StatusPendingDelete)
	if err != nil {
		return err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Policy, id, rootID, prior)
		return err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Policy, id, rootID, prior)
		return err
	}

	obj := driver.Object{Type: lb.ResourceL7Policy, ID: id, RootID: rootID}

	return d.callDriver(ctx, obj, func() error {
		return drv.L7Policy().Delete(ctx, tree, policy)
	})
}

// deferL7Policy tears a realized policy down on the backend without touching
// its rows, for a policy transitioning to deferred.
func (d *Dispatcher) deferL7Policy(ctx context.Context, policy *lb.L7Policy) error {
	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceL7Policy, policy.ID)
	if err != nil {
		return err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		return err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		return err
	}

	// backend delete only; local rows stay, the completion callbacks in the
	// sync path would resurrect ACTIVE status, so this bypasses them
	if err := drv.L7Policy().Delete(ctx, tree, policy); err != nil {
		return lb.NewDriverOperationError(err)
	}

	return nil
}

// CreateL7Rule validates and inserts a rule on a policy, driving the backend
// create unless the rule or its policy is deferred.
func (d *Dispatcher) CreateL7Rule(ctx context.Context, in *lb.L7Rule) (*lb.L7Rule, error) {
	if err := validateL7Rule(in); err != nil {
		return nil, err
	}

	policy, err := d.store.GetL7Policy(ctx, in.L7PolicyID)
	if err != nil {
		return nil, err
	}

	in.ID = newID(prefixL7Rule)

	if !in.AdminStateUp || policy.ProvisioningStatus == lb.StatusDeferred {
		in.ProvisioningStatus = lb.StatusDeferred

		if err := d.store.CreateL7Rule(ctx, in); err != nil {
			return nil, err
		}

		return d.store.GetL7Rule(ctx, in.ID)
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceL7Policy, policy.ID)
	if err != nil {
		return nil, err
	}

	if _, err := d.store.TestAndSetStatus(ctx, lb.ResourceLoadBalancer, rootID, lb.StatusPendingUpdate); err != nil {
		return nil, err
	}

	in.ProvisioningStatus = lb.StatusPendingCreate

	if err := d.store.CreateL7Rule(ctx, in); err != nil {
		if uerr := d.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, rootID, lb.StatusActive, ""); uerr != nil {
			d.logger.Errorw("failed to release load balancer after insert failure", "loadBalancerID", rootID, "error", uerr)
		}

		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Rule, in.ID, rootID, lb.StatusError)
		return nil, err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Rule, in.ID, rootID, lb.StatusError)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceL7Rule, ID: in.ID, RootID: rootID}

	err = d.callDriver(ctx, obj, func() error {
		return drv.L7Rule().Create(ctx, tree, in)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetL7Rule(ctx, in.ID)
}

// GetL7Rule returns one rule.
func (d *Dispatcher) GetL7Rule(ctx context.Context, id string) (*lb.L7Rule, error) {
	return d.store.GetL7Rule(ctx, id)
}

// UpdateL7Rule applies changes, realizing a previously deferred rule when it
// and its policy are up.
func (d *Dispatcher) UpdateL7Rule(ctx context.Context, id string, in *lb.L7Rule) (*lb.L7Rule, error) {
	old, err := d.store.GetL7Rule(ctx, id)
	if err != nil {
		return nil, err
	}

	in.ID = id
	in.L7PolicyID = old.L7PolicyID

	if in.Type == "" {
		in.Type = old.Type
	}

	if in.CompareType == "" {
		in.CompareType = old.CompareType
	}

	if in.Value == "" {
		in.Value = old.Value
	}

	if err := validateL7Rule(in); err != nil {
		return nil, err
	}

	policy, err := d.store.GetL7Policy(ctx, old.L7PolicyID)
	if err != nil {
		return nil, err
	}

	wasDeferred := old.ProvisioningStatus == lb.StatusDeferred

	if !in.AdminStateUp || policy.ProvisioningStatus == lb.StatusDeferred {
		if err := d.store.UpdateL7Rule(ctx, in); err != nil {
			return nil, err
		}

		if err := d.store.UpdateStatus(ctx, lb.ResourceL7Rule, id, lb.StatusDeferred, ""); err != nil {
			return nil, err
		}

		return d.store.GetL7Rule(ctx, id)
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceL7Rule, id)
	if err != nil {
		return nil, err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceL7Rule, id, lb.StatusPendingUpdate)
	if err != nil {
		return nil, err
	}

	if err := d.store.UpdateL7Rule(ctx, in); err != nil {
		d.releasePending(ctx, lb.ResourceL7Rule, id, rootID, prior)
		return nil, err
	}

	updated, err := d.store.GetL7Rule(ctx, id)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Rule, id, rootID, prior)
		return nil, err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Rule, id, rootID, prior)
		return nil, err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Rule, id, rootID, prior)
		return nil, err
	}

	obj := driver.Object{Type: lb.ResourceL7Rule, ID: id, RootID: rootID}

	err = d.callDriver(ctx, obj, func() error {
		if wasDeferred {
			return drv.L7Rule().Create(ctx, tree, updated)
		}

		return drv.L7Rule().Update(ctx, tree, old, updated)
	})
	if err != nil {
		return nil, err
	}

	return d.store.GetL7Rule(ctx, id)
}

// DeleteL7Rule removes one rule. A deferred rule was never realized, so its
// row is removed without a driver call.
func (d *Dispatcher) DeleteL7Rule(ctx context.Context, id string) error {
	rule, err := d.store.GetL7Rule(ctx, id)
	if err != nil {
		return err
	}

	if rule.ProvisioningStatus == lb.StatusDeferred {
		return d.store.DeleteL7Rule(ctx, id)
	}

	rootID, err := d.store.RootLoadBalancerID(ctx, lb.ResourceL7Rule, id)
	if err != nil {
		return err
	}

	prior, err := d.store.TestAndSetStatus(ctx, lb.ResourceL7Rule, id, lb.StatusPendingDelete)
	if err != nil {
		return err
	}

	tree, err := d.store.GetLoadBalancer(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Rule, id, rootID, prior)
		return err
	}

	drv, err := d.driverFor(ctx, rootID)
	if err != nil {
		d.releasePending(ctx, lb.ResourceL7Rule, id, rootID, prior)
		return err
	}

	obj := driver.Object{Type: lb.ResourceL7Rule, ID: id, RootID: rootID}

	return d.callDriver(ctx, obj, func() error {
		return drv.L7Rule().Delete(ctx, tree, rule)
	})
}
