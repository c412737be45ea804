package store

import (
	"context"
	"database/sql"
	"errors"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CreateMember inserts a member row. The (pool, address, protocol_port)
// unique constraint is enforced by the schema.
func (s *Store) CreateMember(ctx context.Context, m *lb.Member) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members
			(id, pool_id, name, address, protocol_port, weight, subnet_id,
			 admin_state_up, provisioning_status, operating_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.PoolID, m.Name, m.Address, m.ProtocolPort, m.Weight, m.SubnetID,
		m.AdminStateUp, m.ProvisioningStatus, m.OperatingStatus)

	return err
}

// GetMember returns a member row.
func (s *Store) GetMember(ctx context.Context, id string) (*lb.Member, error) {
	m := &lb.Member{}

	err := s.db.QueryRowContext(ctx, selectMember+` WHERE id = ?`, id).Scan(
		&m.ID, &m.PoolID, &m.Name, &m.Address, &m.ProtocolPort, &m.Weight,
		&m.SubnetID, &m.AdminStateUp, &m.ProvisioningStatus, &m.OperatingStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lb.NewNotFoundError(lb.ResourceMember, id)
		}

		return nil, err
	}

	return m, nil
}

// UpdateMember writes the mutable fields of a member.
func (s *Store) UpdateMember(ctx context.Context, m *lb.Member) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, weight = ?, admin_state_up = ? WHERE id = ?`,
		m.Name, m.Weight, m.AdminStateUp, m.ID)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceMember, m.ID)
}

// DeleteMember removes a member row.
func (s *Store) DeleteMember(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceMember, id)
}

const selectMember = `SELECT id, pool_id, name, address, protocol_port, weight,
	subnet_id, admin_state_up, provisioning_status, operating_status FROM members`

func (s *Store) membersForPool(ctx context.Context, poolID string) ([]*lb.Member, error) {
	rows, err := s.db.QueryContext(ctx, selectMember+` WHERE pool_id = ? ORDER BY address, protocol_port`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*lb.Member

	for rows.Next() {
		m := &lb.Member{}
		if err := rows.Scan(&m.ID, &m.PoolID, &m.Name, &m.Address, &m.ProtocolPort,
			&m.Weight, &m.SubnetID, &m.AdminStateUp, &m.ProvisioningStatus,
			&m.OperatingStatus); err != nil {
			return nil, err
		}

		out = append(out, m)
	}

	return out, rows.Err()
}
