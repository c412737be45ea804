package dispatcher

import (
	"context"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// NodeStatus is one node of a status tree. OperatingStatus is omitted for
// health monitors, l7 policies and l7 rules, which carry none.
type NodeStatus struct {
	ID                 string                `json:"id"`
	ProvisioningStatus lb.ProvisioningStatus `json:"provisioning_status"`
	OperatingStatus    lb.OperatingStatus    `json:"operating_status,omitempty"`
}

// MemberStatusNode is a leaf member in a status tree.
type MemberStatusNode struct {
	NodeStatus
}

// HealthMonitorStatusNode reports a pool's health monitor.
type HealthMonitorStatusNode struct {
	ID                 string                `json:"id"`
	ProvisioningStatus lb.ProvisioningStatus `json:"provisioning_status"`
}

// L7RuleStatusNode reports one l7 rule.
type L7RuleStatusNode struct {
	ID                 string                `json:"id"`
	ProvisioningStatus lb.ProvisioningStatus `json:"provisioning_status"`
}

// L7PolicyStatusNode reports one l7 policy and its rules.
type L7PolicyStatusNode struct {
	ID                 string                `json:"id"`
	ProvisioningStatus lb.ProvisioningStatus `json:"provisioning_status"`
	Rules              []L7RuleStatusNode    `json:"rules"`
}

// PoolStatusNode reports one pool with its members and monitor.
type PoolStatusNode struct {
	NodeStatus
	Members       []MemberStatusNode       `json:"members"`
	HealthMonitor *HealthMonitorStatusNode `json:"healthmonitor,omitempty"`
}

// ListenerStatusNode reports one listener with its policies and default pool.
type ListenerStatusNode struct {
	NodeStatus
	Pools      []PoolStatusNode     `json:"pools"`
	L7Policies []L7PolicyStatusNode `json:"l7policies"`
}

// StatusTree is the aggregated status view of a whole load balancer tree.
// Operating statuses in the tree are computed, not the persisted values: any
// node with a degraded descendant reports DEGRADED here while the stored
// statuses stay untouched.
type StatusTree struct {
	NodeStatus
	Listeners []ListenerStatusNode `json:"listeners"`
	Pools     []PoolStatusNode     `json:"pools"`
}

// Statuses builds the status tree for one load balancer.
func (d *Dispatcher) Statuses(ctx context.Context, id string) (*StatusTree, error) {
	tree, err := d.store.GetLoadBalancer(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &StatusTree{
		NodeStatus: NodeStatus{
			ID:                 tree.ID,
			ProvisioningStatus: tree.ProvisioningStatus,
			OperatingStatus:    tree.OperatingStatus,
		},
	}

	rootDisabled := !tree.AdminStateUp

	degraded := false

	seen := make(map[string]bool)

	for _, l := range tree.Listeners {
		node, dg := listenerStatus(l, rootDisabled)
		degraded = degraded || dg

		out.Listeners = append(out.Listeners, node)

		if l.DefaultPool != nil {
			seen[l.DefaultPool.ID] = true
		}
	}

	// shared pools not claimed as any listener's default still show up at
	// the root
	for _, p := range tree.Pools {
		if seen[p.ID] {
			continue
		}

		node, dg := poolStatus(p, rootDisabled)
		degraded = degraded || dg

		out.Pools = append(out.Pools, node)
	}

	switch {
	case rootDisabled:
		out.OperatingStatus = lb.OperatingDisabled
	case degraded:
		out.OperatingStatus = lb.OperatingDegraded
	}

	return out, nil
}

// nodeDegraded reports whether a single node counts as degraded on its own:
// provisioning ERROR, or an operating status other than ONLINE or NO_MONITOR.
func nodeDegraded(provisioning lb.ProvisioningStatus, operating lb.OperatingStatus) bool {
	if provisioning == lb.StatusError {
		return true
	}

	switch operating {
	case lb.OperatingOnline, lb.OperatingNoMonitor, "":
		return false
	default:
		return true
	}
}

func listenerStatus(l *lb.Listener, disabled bool) (ListenerStatusNode, bool) {
	disabled = disabled || !l.AdminStateUp

	node := ListenerStatusNode{
		NodeStatus: NodeStatus{
			ID:                 l.ID,
			ProvisioningStatus: l.ProvisioningStatus,
			OperatingStatus:    l.OperatingStatus,
		},
	}

	below := false

	if l.DefaultPool != nil {
		pnode, dg := poolStatus(l.DefaultPool, disabled)
		below = below || dg

		node.Pools = append(node.Pools, pnode)
	}

	for _, p := range l.L7Policies {
		pnode := L7PolicyStatusNode{ID: p.ID, ProvisioningStatus: p.ProvisioningStatus}

		if p.ProvisioningStatus == lb.StatusError {
			below = true
		}

		for _, r := range p.Rules {
			pnode.Rules = append(pnode.Rules, L7RuleStatusNode{ID: r.ID, ProvisioningStatus: r.ProvisioningStatus})

			if r.ProvisioningStatus == lb.StatusError {
				below = true
			}
		}

		node.L7Policies = append(node.L7Policies, pnode)
	}

	// an admin-down subtree reports DISABLED throughout and never degrades
	// its ancestors
	if disabled {
		node.OperatingStatus = lb.OperatingDisabled
		return node, false
	}

	// only a degraded descendant rewrites the listener's reported status;
	// a listener that is itself unhealthy keeps its own operating status
	if below {
		node.OperatingStatus = lb.OperatingDegraded
	}

	return node, below || nodeDegraded(l.ProvisioningStatus, l.OperatingStatus)
}

func poolStatus(p *lb.Pool, disabled bool) (PoolStatusNode, bool) {
	disabled = disabled || !p.AdminStateUp

	node := PoolStatusNode{
		NodeStatus: NodeStatus{
			ID:                 p.ID,
			ProvisioningStatus: p.ProvisioningStatus,
			OperatingStatus:    p.OperatingStatus,
		},
	}

	below := false

	for _, m := range p.Members {
		mnode := MemberStatusNode{NodeStatus{
			ID:                 m.ID,
			ProvisioningStatus: m.ProvisioningStatus,
			OperatingStatus:    m.OperatingStatus,
		}}

		if disabled || !m.AdminStateUp {
			mnode.OperatingStatus = lb.OperatingDisabled
		} else {
			below = below || nodeDegraded(m.ProvisioningStatus, m.OperatingStatus)
		}

		node.Members = append(node.Members, mnode)
	}

	if p.HealthMonitor != nil {
		node.HealthMonitor = &HealthMonitorStatusNode{
			ID:                 p.HealthMonitor.ID,
			ProvisioningStatus: p.HealthMonitor.ProvisioningStatus,
		}

		if p.HealthMonitor.ProvisioningStatus == lb.StatusError {
			below = true
		}
	}

	if disabled {
		node.OperatingStatus = lb.OperatingDisabled
		return node, false
	}

	if below {
		node.OperatingStatus = lb.OperatingDegraded
	}

	return node, below || nodeDegraded(p.ProvisioningStatus, p.OperatingStatus)
}
