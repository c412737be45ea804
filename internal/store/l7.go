package store

import (
	"context"
	"database/sql"
	"errors"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CreateL7Policy inserts an l7 policy row.
func (s *Store) CreateL7Policy(ctx context.Context, p *lb.L7Policy) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO l7policies
			(id, listener_id, name, action, position, redirect_pool_id,
			 redirect_url, admin_state_up, provisioning_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ListenerID, p.Name, p.Action, p.Position, nullable(p.RedirectPoolID),
		p.RedirectURL, p.AdminStateUp, p.ProvisioningStatus)

	return err
}

// GetL7Policy returns an l7 policy with its rules.
func (s *Store) GetL7Policy(ctx context.Context, id string) (*lb.L7Policy, error) {
	p, err := scanL7Policy(s.db.QueryRowContext(ctx, selectL7Policy+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lb.NewNotFoundError(lb.ResourceL7Policy, id)
		}

		return nil, err
	}

	rules, err := s.l7RulesForPolicy(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Rules = rules

	return p, nil
}

// UpdateL7Policy writes the mutable fields of an l7 policy.
func (s *Store) UpdateL7Policy(ctx context.Context, p *lb.L7Policy) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE l7policies
		 SET name = ?, action = ?, position = ?, redirect_pool_id = ?,
			 redirect_url = ?, admin_state_up = ?
		 WHERE id = ?`,
		p.Name, p.Action, p.Position, nullable(p.RedirectPoolID),
		p.RedirectURL, p.AdminStateUp, p.ID)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceL7Policy, p.ID)
}

// DeleteL7Policy removes an l7 policy and its rules.
func (s *Store) DeleteL7Policy(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM l7rules WHERE l7policy_id = ?`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM l7policies WHERE id = ?`, id)
		if err != nil {
			return err
		}

		return requireRow(res, lb.ResourceL7Policy, id)
	})
}

// CreateL7Rule inserts an l7 rule row.
func (s *Store) CreateL7Rule(ctx context.Context, r *lb.L7Rule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO l7rules
			(id, l7policy_id, type, compare_type, key, value, invert,
			 admin_state_up, provisioning_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.L7PolicyID, r.Type, r.CompareType, r.Key, r.Value, r.Invert,
		r.AdminStateUp, r.ProvisioningStatus)

	return err
}

// GetL7Rule returns an l7 rule row.
func (s *Store) GetL7Rule(ctx context.Context, id string) (*lb.L7Rule, error) {
	r, err := scanL7Rule(s.db.QueryRowContext(ctx, selectL7Rule+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lb.NewNotFoundError(lb.ResourceL7Rule, id)
		}

		return nil, err
	}

	return r, nil
}

// UpdateL7Rule writes the mutable fields of an l7 rule.
func (s *Store) UpdateL7Rule(ctx context.Context, r *lb.L7Rule) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE l7rules
		 SET type = ?, compare_type = ?, key = ?, value = ?, invert = ?, admin_state_up = ?
		 WHERE id = ?`,
		r.Type, r.CompareType, r.Key, r.Value, r.Invert, r.AdminStateUp, r.ID)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceL7Rule, r.ID)
}

// DeleteL7Rule removes an l7 rule row.
func (s *Store) DeleteL7Rule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM l7rules WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceL7Rule, id)
}

const selectL7Policy = `SELECT id, listener_id, name, action, position,
	redirect_pool_id, redirect_url, admin_state_up, provisioning_status FROM l7policies`

const selectL7Rule = `SELECT id, l7policy_id, type, compare_type, key, value,
	invert, admin_state_up, provisioning_status FROM l7rules`

func scanL7Policy(row rowScanner) (*lb.L7Policy, error) {
	p := &lb.L7Policy{}

	var redirectPool sql.NullString

	if err := row.Scan(&p.ID, &p.ListenerID, &p.Name, &p.Action, &p.Position,
		&redirectPool, &p.RedirectURL, &p.AdminStateUp, &p.ProvisioningStatus); err != nil {
		return nil, err
	}

	p.RedirectPoolID = redirectPool.String

	return p, nil
}

func scanL7Rule(row rowScanner) (*lb.L7Rule, error) {
	r := &lb.L7Rule{}

	if err := row.Scan(&r.ID, &r.L7PolicyID, &r.Type, &r.CompareType, &r.Key,
		&r.Value, &r.Invert, &r.AdminStateUp, &r.ProvisioningStatus); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Store) l7PoliciesForListener(ctx context.Context, listenerID string) ([]*lb.L7Policy, error) {
	rows, err := s.db.QueryContext(ctx, selectL7Policy+` WHERE listener_id = ? ORDER BY position`, listenerID)
	if err != nil {
		return nil, err
	}

	var out []*lb.L7Policy

	for rows.Next() {
		p, err := scanL7Policy(rows)
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
		rules, err := s.l7RulesForPolicy(ctx, p.ID)
		if err != nil {
			return nil, err
		}

		p.Rules = rules
	}

	return out, nil
}

func (s *Store) l7RulesForPolicy(ctx context.Context, policyID string) ([]*lb.L7Rule, error) {
	rows, err := s.db.QueryContext(ctx, selectL7Rule+` WHERE l7policy_id = ? ORDER BY id`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*lb.L7Rule

	for rows.Next() {
		r, err := scanL7Rule(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, r)
	}

	return out, rows.Err()
}
