package store

import (
	"context"
	"database/sql"
	"errors"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CreateLoadBalancer inserts a new load balancer row together with its
// zeroed stats row. The caller supplies the initial statuses.
func (s *Store) CreateLoadBalancer(ctx context.Context, l *lb.LoadBalancer) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO loadbalancers
				(id, name, description, admin_state_up, provider, flavor_id,
				 vip_subnet_id, vip_address, vip_port_id,
				 provisioning_status, operating_status)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Name, l.Description, l.AdminStateUp, l.Provider, l.FlavorID,
			l.VIPSubnetID, l.VIPAddress, l.VIPPortID,
			l.ProvisioningStatus, l.OperatingStatus)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO loadbalancer_stats (loadbalancer_id) VALUES (?)`, l.ID)

		return err
	})
}

// GetLoadBalancer returns the load balancer and its full resource tree:
// listeners with their l7 policies and rules, pools with their members and
// health monitor, and default-pool links resolved.
func (s *Store) GetLoadBalancer(ctx context.Context, id string) (*lb.LoadBalancer, error) {
	l := &lb.LoadBalancer{}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, admin_state_up, provider, flavor_id,
			vip_subnet_id, vip_address, vip_port_id,
			provisioning_status, operating_status
		 FROM loadbalancers WHERE id = ?`, id).Scan(
		&l.ID, &l.Name, &l.Description, &l.AdminStateUp, &l.Provider, &l.FlavorID,
		&l.VIPSubnetID, &l.VIPAddress, &l.VIPPortID,
		&l.ProvisioningStatus, &l.OperatingStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lb.NewNotFoundError(lb.ResourceLoadBalancer, id)
		}

		return nil, err
	}

	pools, err := s.poolsForLoadBalancer(ctx, id)
	if err != nil {
		return nil, err
	}

	l.Pools = pools

	poolsByID := make(map[string]*lb.Pool, len(pools))
	for _, p := range pools {
		poolsByID[p.ID] = p
	}

	listeners, err := s.listenersForLoadBalancer(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, lst := range listeners {
		if lst.DefaultPoolID != "" {
			lst.DefaultPool = poolsByID[lst.DefaultPoolID]
		}
	}

	l.Listeners = listeners

	return l, nil
}

// ListLoadBalancers returns shallow load balancer rows, without children.
func (s *Store) ListLoadBalancers(ctx context.Context) ([]*lb.LoadBalancer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, admin_state_up, provider, vip_address,
			provisioning_status, operating_status
		 FROM loadbalancers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*lb.LoadBalancer

	for rows.Next() {
		l := &lb.LoadBalancer{}
		if err := rows.Scan(&l.ID, &l.Name, &l.AdminStateUp, &l.Provider,
			&l.VIPAddress, &l.ProvisioningStatus, &l.OperatingStatus); err != nil {
			return nil, err
		}

		out = append(out, l)
	}

	return out, rows.Err()
}

// ProviderFor returns the provider name a load balancer is bound to.
func (s *Store) ProviderFor(ctx context.Context, id string) (string, error) {
	var provider string

	err := s.db.QueryRowContext(ctx,
		`SELECT provider FROM loadbalancers WHERE id = ?`, id).Scan(&provider)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", lb.NewNotFoundError(lb.ResourceLoadBalancer, id)
		}

		return "", err
	}

	return provider, nil
}

// UpdateLoadBalancer writes the mutable fields of a load balancer.
func (s *Store) UpdateLoadBalancer(ctx context.Context, l *lb.LoadBalancer) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE loadbalancers SET name = ?, description = ?, admin_state_up = ? WHERE id = ?`,
		l.Name, l.Description, l.AdminStateUp, l.ID)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceLoadBalancer, l.ID)
}

// SetVIPAddress records the backend-reported virtual IP for a load balancer
// whose driver allocates its own VIPs.
func (s *Store) SetVIPAddress(ctx context.Context, id, address, portID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE loadbalancers SET vip_address = ?, vip_port_id = ? WHERE id = ?`,
		address, portID, id)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceLoadBalancer, id)
}

// DeleteLoadBalancer removes the load balancer row. The stats row cascades.
func (s *Store) DeleteLoadBalancer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM loadbalancers WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceLoadBalancer, id)
}

// GetStats returns the persisted traffic counters for a load balancer.
func (s *Store) GetStats(ctx context.Context, id string) (*lb.Stats, error) {
	st := &lb.Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT bytes_in, bytes_out, active_connections, total_connections
		 FROM loadbalancer_stats WHERE loadbalancer_id = ?`, id).Scan(
		&st.BytesIn, &st.BytesOut, &st.ActiveConnections, &st.TotalConnections)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lb.NewNotFoundError(lb.ResourceLoadBalancer, id)
		}

		return nil, err
	}

	return st, nil
}

// UpdateStats overwrites the persisted traffic counters for a load balancer.
func (s *Store) UpdateStats(ctx context.Context, id string, st *lb.Stats) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE loadbalancer_stats
		 SET bytes_in = ?, bytes_out = ?, active_connections = ?, total_connections = ?
		 WHERE loadbalancer_id = ?`,
		st.BytesIn, st.BytesOut, st.ActiveConnections, st.TotalConnections, id)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceLoadBalancer, id)
}

func requireRow(res sql.Result, resource lb.ResourceType, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return lb.NewNotFoundError(resource, id)
	}

	return nil
}
