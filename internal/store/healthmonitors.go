package store

import (
	"context"
	"database/sql"
	"errors"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CreateHealthMonitor inserts a health monitor row. The unique pool_id
// constraint enforces at most one monitor per pool.
func (s *Store) CreateHealthMonitor(ctx context.Context, hm *lb.HealthMonitor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO healthmonitors
			(id, pool_id, type, delay, timeout, max_retries, max_retries_down,
			 http_method, url_path, expected_codes, admin_state_up,
			 provisioning_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hm.ID, hm.PoolID, hm.Type, hm.Delay, hm.Timeout, hm.MaxRetries,
		hm.MaxRetriesDown, hm.HTTPMethod, hm.URLPath, hm.ExpectedCodes,
		hm.AdminStateUp, hm.ProvisioningStatus)

	return err
}

// GetHealthMonitor returns a health monitor row.
func (s *Store) GetHealthMonitor(ctx context.Context, id string) (*lb.HealthMonitor, error) {
	hm, err := scanHealthMonitor(s.db.QueryRowContext(ctx, selectHealthMonitor+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, lb.NewNotFoundError(lb.ResourceHealthMonitor, id)
		}

		return nil, err
	}

	return hm, nil
}

// UpdateHealthMonitor writes the mutable fields of a health monitor.
func (s *Store) UpdateHealthMonitor(ctx context.Context, hm *lb.HealthMonitor) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE healthmonitors
		 SET delay = ?, timeout = ?, max_retries = ?, max_retries_down = ?,
			 http_method = ?, url_path = ?, expected_codes = ?,
			 admin_state_up = ?
		 WHERE id = ?`,
		hm.Delay, hm.Timeout, hm.MaxRetries, hm.MaxRetriesDown,
		hm.HTTPMethod, hm.URLPath, hm.ExpectedCodes, hm.AdminStateUp, hm.ID)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceHealthMonitor, hm.ID)
}

// DeleteHealthMonitor removes a health monitor row.
func (s *Store) DeleteHealthMonitor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM healthmonitors WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return requireRow(res, lb.ResourceHealthMonitor, id)
}

const selectHealthMonitor = `SELECT id, pool_id, type, delay, timeout, max_retries,
	max_retries_down, http_method, url_path, expected_codes, admin_state_up,
	provisioning_status
	FROM healthmonitors`

func scanHealthMonitor(row rowScanner) (*lb.HealthMonitor, error) {
	hm := &lb.HealthMonitor{}

	if err := row.Scan(&hm.ID, &hm.PoolID, &hm.Type, &hm.Delay, &hm.Timeout,
		&hm.MaxRetries, &hm.MaxRetriesDown, &hm.HTTPMethod, &hm.URLPath,
		&hm.ExpectedCodes, &hm.AdminStateUp, &hm.ProvisioningStatus); err != nil {
		return nil, err
	}

	return hm, nil
}

func (s *Store) healthMonitorForPool(ctx context.Context, poolID string) (*lb.HealthMonitor, error) {
	hm, err := scanHealthMonitor(s.db.QueryRowContext(ctx, selectHealthMonitor+` WHERE pool_id = ?`, poolID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return hm, nil
}
