package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type tableInfo struct {
	name         string
	hasOperating bool
}

var tables = map[lb.ResourceType]tableInfo{
	lb.ResourceLoadBalancer:  {name: "loadbalancers", hasOperating: true},
	lb.ResourceListener:      {name: "listeners", hasOperating: true},
	lb.ResourcePool:          {name: "pools", hasOperating: true},
	lb.ResourceMember:        {name: "members", hasOperating: true},
	lb.ResourceHealthMonitor: {name: "healthmonitors", hasOperating: false},
	lb.ResourceL7Policy:      {name: "l7policies", hasOperating: false},
	lb.ResourceL7Rule:        {name: "l7rules", hasOperating: false},
}

// RootLoadBalancerID resolves the root load balancer owning the given
// resource. The resource tree has no cycles, so each resource type resolves
// through a fixed join chain.
func (s *Store) RootLoadBalancerID(ctx context.Context, resource lb.ResourceType, id string) (string, error) {
	return rootLoadBalancerID(ctx, s.db, resource, id)
}

func rootLoadBalancerID(ctx context.Context, q querier, resource lb.ResourceType, id string) (string, error) {
	var (
		query string
		lbID  string
	)

	switch resource {
	case lb.ResourceLoadBalancer:
		query = `SELECT id FROM loadbalancers WHERE id = ?`
	case lb.ResourceListener:
		query = `SELECT loadbalancer_id FROM listeners WHERE id = ?`
	case lb.ResourcePool:
		query = `SELECT loadbalancer_id FROM pools WHERE id = ?`
	case lb.ResourceMember:
		query = `SELECT p.loadbalancer_id FROM members m JOIN pools p ON p.id = m.pool_id WHERE m.id = ?`
	case lb.ResourceHealthMonitor:
		query = `SELECT p.loadbalancer_id FROM healthmonitors h JOIN pools p ON p.id = h.pool_id WHERE h.id = ?`
	case lb.ResourceL7Policy:
		query = `SELECT l.loadbalancer_id FROM l7policies pol JOIN listeners l ON l.id = pol.listener_id WHERE pol.id = ?`
	case lb.ResourceL7Rule:
		query = `SELECT l.loadbalancer_id FROM l7rules r
			JOIN l7policies pol ON pol.id = r.l7policy_id
			JOIN listeners l ON l.id = pol.listener_id WHERE r.id = ?`
	default:
		return "", fmt.Errorf("unknown resource type %q", resource)
	}

	if err := q.QueryRowContext(ctx, query, id).Scan(&lbID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", lb.NewNotFoundError(resource, id)
		}

		return "", err
	}

	return lbID, nil
}

// TestAndSetStatus atomically moves the resource to newStatus after checking
// that its root load balancer is not already mid-operation. For non-root
// resources the root load balancer is moved to PENDING_UPDATE in the same
// transaction, which is what serializes concurrent mutations on a tree.
// Returns the resource's prior provisioning status.
func (s *Store) TestAndSetStatus(ctx context.Context, resource lb.ResourceType, id string, newStatus lb.ProvisioningStatus) (lb.ProvisioningStatus, error) {
	info, ok := tables[resource]
	if !ok {
		return "", fmt.Errorf("unknown resource type %q", resource)
	}

	var prior lb.ProvisioningStatus

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`SELECT provisioning_status FROM %s WHERE id = ?`, info.name)
		if err := tx.QueryRowContext(ctx, query, id).Scan(&prior); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return lb.NewNotFoundError(resource, id)
			}

			return err
		}

		rootID, err := rootLoadBalancerID(ctx, tx, resource, id)
		if err != nil {
			return err
		}

		var rootStatus lb.ProvisioningStatus
		if err := tx.QueryRowContext(ctx,
			`SELECT provisioning_status FROM loadbalancers WHERE id = ?`, rootID).Scan(&rootStatus); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return lb.NewNotFoundError(lb.ResourceLoadBalancer, rootID)
			}

			return err
		}

		// a tree with an in-flight operation, or an already-deleted
		// resource, rejects further mutations
		if rootStatus.Pending() {
			return lb.NewConflictError(lb.ResourceLoadBalancer, rootID, rootStatus)
		}

		if prior.Pending() || prior == lb.StatusDeleted {
			return lb.NewConflictError(resource, id, prior)
		}

		if resource == lb.ResourceLoadBalancer {
			_, err = tx.ExecContext(ctx,
				`UPDATE loadbalancers SET provisioning_status = ? WHERE id = ?`, newStatus, id)
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE loadbalancers SET provisioning_status = ? WHERE id = ?`, lb.StatusPendingUpdate, rootID); err != nil {
			return err
		}

		update := fmt.Sprintf(`UPDATE %s SET provisioning_status = ? WHERE id = ?`, info.name)
		_, err = tx.ExecContext(ctx, update, newStatus, id)

		return err
	})
	if err != nil {
		return "", err
	}

	return prior, nil
}

// UpdateStatus writes status fields unconditionally. An empty provisioning or
// operating value leaves that field untouched. A missing row is logged and
// ignored: a concurrent delete racing a status update from an in-flight
// operation is expected, not exceptional.
func (s *Store) UpdateStatus(ctx context.Context, resource lb.ResourceType, id string, provisioning lb.ProvisioningStatus, operating lb.OperatingStatus) error {
	info, ok := tables[resource]
	if !ok {
		return fmt.Errorf("unknown resource type %q", resource)
	}

	sets := ""
	args := []any{}

	if provisioning != "" {
		sets = "provisioning_status = ?"
		args = append(args, provisioning)
	}

	if operating != "" && info.hasOperating {
		if sets != "" {
			sets += ", "
		}

		sets += "operating_status = ?"
		args = append(args, operating)
	}

	if sets == "" {
		return nil
	}

	args = append(args, id)

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, info.name, sets), args...)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debugw("status update for missing resource, ignoring",
			"resource-type", string(resource), "resource-id", id)
	}

	return nil
}

// PropagateErrorToRoot marks the owning load balancer's provisioning status
// ERROR so the whole tree is flagged for operator attention.
func (s *Store) PropagateErrorToRoot(ctx context.Context, resource lb.ResourceType, id string) error {
	rootID, err := s.RootLoadBalancerID(ctx, resource, id)
	if err != nil {
		if errors.Is(err, lb.ErrNotFound) {
			s.logger.Debugw("error propagation for missing resource, ignoring",
				"resource-type", string(resource), "resource-id", id)
			return nil
		}

		return err
	}

	return s.UpdateStatus(ctx, lb.ResourceLoadBalancer, rootID, lb.StatusError, "")
}
