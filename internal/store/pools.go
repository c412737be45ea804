package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CreatePool inserts a pool row.
func (s *Store) CreatePool(ctx context.Context, p *lb.Pool) error {
	sp, err := marshalSessionPersistence(p.SessionPersistence)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pools
			(id, loadbalancer_id, name, protocol, algorithm, admin_state_up,
			 session_persistence, provisioning_status, operating_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.LoadBalancerID, p.Name, p.Protocol, p.Algorithm, p.AdminStateUp,
		sp, p.ProvisioningStatus, p.OperatingStatus)

	return err
}

// GetPool returns a pool with its members, health monitor and the ids of
// listeners using it as their default pool.
func (s *Store) GetPool(ctx context.Context, id string) (*lb.Pool, error) {
	p, err := s.scanPool(s.db.QueryRowContext(ctx, selectPool+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lb.NewNotFoundError(lb.ResourcePool, id)
		}

		return nil, err
	}

	if err := s.fillPool(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// UpdatePool writes the mutable fields of a pool.
func (s *Store) UpdatePool(ctx context.Context, p *lb.Pool) error {
	sp, err := marshalSessionPersistence(p.SessionPersistence)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE pools SET name = ?, algorithm = ?, admin_state_up = ?, session_persistence = ? WHERE id = ?`,
		p.Name, p.Algorithm, p.AdminStateUp, sp, p.ID)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourcePool, p.ID)
}

// DeletePool removes a pool row with its members, clearing any listener
// default-pool references to it. The caller is responsible for rejecting the
// delete while a health monitor is attached.
func (s *Store) DeletePool(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE listeners SET default_pool_id = NULL WHERE default_pool_id = ?`, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE pool_id = ?`, id); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE l7policies SET redirect_pool_id = NULL WHERE redirect_pool_id = ?`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM pools WHERE id = ?`, id)
		if err != nil {
			return err
		}

		return requireRow(res, lb.ResourcePool, id)
	})
}

const selectPool = `SELECT id, loadbalancer_id, name, protocol, algorithm,
	admin_state_up, session_persistence, provisioning_status, operating_status FROM pools`

func (s *Store) scanPool(row rowScanner) (*lb.Pool, error) {
	p := &lb.Pool{}

	var sp sql.NullString

	if err := row.Scan(&p.ID, &p.LoadBalancerID, &p.Name, &p.Protocol, &p.Algorithm,
		&p.AdminStateUp, &sp, &p.ProvisioningStatus, &p.OperatingStatus); err != nil {
		return nil, err
	}

	if sp.Valid {
		p.SessionPersistence = &lb.SessionPersistence{}
		if err := json.Unmarshal([]byte(sp.String), p.SessionPersistence); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (s *Store) fillPool(ctx context.Context, p *lb.Pool) error {
	members, err := s.membersForPool(ctx, p.ID)
	if err != nil {
		return err
	}

	p.Members = members

	hm, err := s.healthMonitorForPool(ctx, p.ID)
	if err != nil {
		return err
	}

	p.HealthMonitor = hm

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM listeners WHERE default_pool_id = ? ORDER BY id`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}

		p.ListenerIDs = append(p.ListenerIDs, id)
	}

	return rows.Err()
}

func (s *Store) poolsForLoadBalancer(ctx context.Context, lbID string) ([]*lb.Pool, error) {
	rows, err := s.db.QueryContext(ctx, selectPool+` WHERE loadbalancer_id = ? ORDER BY id`, lbID)
	if err != nil {
		return nil, err
	}

	var out []*lb.Pool

	for rows.Next() {
		p, err := s.scanPool(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}

		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}

	rows.Close()

	for _, p := range out {
		if err := s.fillPool(ctx, p); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func marshalSessionPersistence(sp *lb.SessionPersistence) (any, error) {
	if sp == nil {
		return nil, nil
	}

	b, err := json.Marshal(sp)
	if err != nil {
		return nil, err
	}

	return string(b), nil
}
