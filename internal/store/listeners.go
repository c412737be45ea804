package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CreateListener inserts a listener row. The (loadbalancer, protocol_port)
// unique constraint is enforced by the schema.
func (s *Store) CreateListener(ctx context.Context, l *lb.Listener) error {
	sni, err := json.Marshal(l.SNIContainerRefs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listeners
			(id, loadbalancer_id, name, protocol, protocol_port, connection_limit,
			 admin_state_up, default_pool_id, default_tls_container_ref,
			 sni_container_refs, provisioning_status, operating_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.LoadBalancerID, l.Name, l.Protocol, l.ProtocolPort, l.ConnectionLimit,
		l.AdminStateUp, nullable(l.DefaultPoolID), l.DefaultTLSContainerRef,
		string(sni), l.ProvisioningStatus, l.OperatingStatus)

	return err
}

// GetListener returns a listener with its l7 policies and rules.
func (s *Store) GetListener(ctx context.Context, id string) (*lb.Listener, error) {
	l, err := s.scanListener(s.db.QueryRowContext(ctx, selectListener+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lb.NewNotFoundError(lb.ResourceListener, id)
		}

		return nil, err
	}

	policies, err := s.l7PoliciesForListener(ctx, id)
	if err != nil {
		return nil, err
	}

	l.L7Policies = policies

	return l, nil
}

// UpdateListener writes the mutable fields of a listener.
func (s *Store) UpdateListener(ctx context.Context, l *lb.Listener) error {
	sni, err := json.Marshal(l.SNIContainerRefs)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE listeners
		 SET name = ?, connection_limit = ?, admin_state_up = ?, default_pool_id = ?,
			 default_tls_container_ref = ?, sni_container_refs = ?
		 WHERE id = ?`,
		l.Name, l.ConnectionLimit, l.AdminStateUp, nullable(l.DefaultPoolID),
		l.DefaultTLSContainerRef, string(sni), l.ID)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceListener, l.ID)
}

// SetListenerDefaultPool points a listener at its default pool.
func (s *Store) SetListenerDefaultPool(ctx context.Context, listenerID, poolID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE listeners SET default_pool_id = ? WHERE id = ?`,
		nullable(poolID), listenerID)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceListener, listenerID)
}

// DeleteListener removes a listener row along with its l7 policies and
// rules.
func (s *Store) DeleteListener(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM l7rules WHERE l7policy_id IN (SELECT id FROM l7policies WHERE listener_id = ?)`, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM l7policies WHERE listener_id = ?`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM listeners WHERE id = ?`, id)
		if err != nil {
			return err
		}

		return requireRow(res, lb.ResourceListener, id)
	})
}

const selectListener = `SELECT id, loadbalancer_id, name, protocol, protocol_port,
	connection_limit, admin_state_up, default_pool_id, default_tls_container_ref,
	sni_container_refs, provisioning_status, operating_status FROM listeners`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanListener(row rowScanner) (*lb.Listener, error) {
	l := &lb.Listener{}

	var (
		defaultPool sql.NullString
		sni         string
	)

	if err := row.Scan(&l.ID, &l.LoadBalancerID, &l.Name, &l.Protocol, &l.ProtocolPort,
		&l.ConnectionLimit, &l.AdminStateUp, &defaultPool, &l.DefaultTLSContainerRef,
		&sni, &l.ProvisioningStatus, &l.OperatingStatus); err != nil {
		return nil, err
	}

	l.DefaultPoolID = defaultPool.String

	if err := json.Unmarshal([]byte(sni), &l.SNIContainerRefs); err != nil {
		return nil, err
	}

	return l, nil
}

func (s *Store) listenersForLoadBalancer(ctx context.Context, lbID string) ([]*lb.Listener, error) {
	rows, err := s.db.QueryContext(ctx, selectListener+` WHERE loadbalancer_id = ? ORDER BY protocol_port`, lbID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*lb.Listener

	for rows.Next() {
		l, err := s.scanListener(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, l := range out {
		policies, err := s.l7PoliciesForListener(ctx, l.ID)
		if err != nil {
			return nil, err
		}

		l.L7Policies = policies
	}

	return out, nil
}

// nullable maps the empty string to NULL so optional foreign keys stay
// consistent.
func nullable(s string) any {
	if s == "" {
		return nil
	}

	return s
}
