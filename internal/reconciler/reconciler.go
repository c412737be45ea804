// Package reconciler tracks asynchronous backend operations to completion.
// Each accepted operation gets one managed task that polls the backend's
// root load balancer status until it settles or the wall-clock deadline
// passes, then reports through the dispatcher's completion handler.
package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

var (
	// ErrPollTimeout is returned when a backend does not settle within the
	// configured deadline.
	ErrPollTimeout = errors.New("timed out waiting for backend to settle")

	// ErrStatusGone signals that the backend no longer knows the root
	// resource. Treated as success for delete operations.
	ErrStatusGone = errors.New("backend status not found")
)

// Task states, visible in logs.
const (
	statePolling   = "POLLING"
	stateCompleted = "COMPLETED"
	stateFailed    = "FAILED"
	stateTimedOut  = "TIMED_OUT"
)

// RootStatus is the backend's view of a root load balancer.
type RootStatus struct {
	ProvisioningStatus lb.ProvisioningStatus
	VIPAddress         string
	VIPPortID          string
}

// StatusGetter reads a root load balancer's status from the backend.
// Implementations return ErrStatusGone (possibly wrapped) when the backend
// has no record of the resource.
type StatusGetter interface {
	RootStatus(ctx context.Context, loadBalancerID string) (*RootStatus, error)
}

// TrackOptions shape how a task interprets the settled status.
type TrackOptions struct {
	// Delete marks the tracked operation as a delete; success removes the
	// local row, and a vanished backend record counts as success.
	Delete bool

	// CopyVIP copies the backend-reported virtual IP onto the local root
	// entity before success is signalled. Set on load balancer creates
	// against VIP-allocating backends.
	CopyVIP bool
}

// Reconciler owns the poll tasks. Shutdown cancels all of them and waits.
type Reconciler struct {
	getter     StatusGetter
	completion driver.CompletionHandler
	interval   time.Duration
	timeout    time.Duration
	logger     *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Reconciler.
type Option func(r *Reconciler)

// WithLogger sets the reconciler logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithPollInterval sets the delay between status reads.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		r.interval = d
	}
}

// WithPollTimeout sets the wall-clock deadline per task.
func WithPollTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		r.timeout = d
	}
}

// New returns a reconciler polling through getter and finishing operations
// through completion.
func New(getter StatusGetter, completion driver.CompletionHandler, options ...Option) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())

	r := &Reconciler{
		getter:     getter,
		completion: completion,
		interval:   3 * time.Second,
		timeout:    10 * time.Minute,
		logger:     zap.NewNop().Sugar(),
		ctx:        ctx,
		cancel:     cancel,
	}

	for _, opt := range options {
		opt(r)
	}

	return r
}

// Track starts a poll task for an accepted asynchronous operation and
// returns its task id.
func (r *Reconciler) Track(obj driver.Object, opts TrackOptions) string {
	taskID := uuid.New().String()

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.run(taskID, obj, opts)
	}()

	return taskID
}

// Shutdown cancels all tasks and waits for them to exit.
func (r *Reconciler) Shutdown() {
	r.cancel()
	r.wg.Wait()
}

func (r *Reconciler) run(taskID string, obj driver.Object, opts TrackOptions) {
	logger := r.logger.With(
		"task", taskID,
		"resource", string(obj.Type),
		"resourceID", obj.ID,
		"loadBalancerID", obj.RootID,
	)

	logger.Debugw("poll task started", "state", statePolling)

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	status, err := r.poll(ctx, obj.RootID, opts)

	switch {
	case err == nil:
		// finalization must not race the task deadline, so it runs outside
		// the polling context
		finishCtx := context.WithoutCancel(r.ctx)

		if opts.CopyVIP && status.VIPAddress != "" {
			if verr := r.completion.SetVIPAddress(finishCtx, obj.RootID, status.VIPAddress, status.VIPPortID); verr != nil {
				logger.Errorw("recording allocated vip failed", "error", verr)
			}
		}

		if cerr := r.completion.CompleteSuccess(finishCtx, obj, opts.Delete); cerr != nil {
			logger.Errorw("finalizing successful operation failed", "error", cerr)
		}

		logger.Debugw("poll task finished", "state", stateCompleted)
	case errors.Is(err, ErrPollTimeout):
		logger.Errorw("backend did not settle before deadline", "state", stateTimedOut, "timeout", r.timeout)
		r.fail(obj, logger)
	default:
		logger.Errorw("backend reported failure", "state", stateFailed, "error", err)
		r.fail(obj, logger)
	}
}

func (r *Reconciler) fail(obj driver.Object, logger *zap.SugaredLogger) {
	if cerr := r.completion.CompleteFailure(context.WithoutCancel(r.ctx), obj); cerr != nil {
		logger.Errorw("finalizing failed operation failed", "error", cerr)
	}
}

// poll reads the backend status every interval until it settles. A nil
// error means the operation succeeded.
func (r *Reconciler) poll(ctx context.Context, loadBalancerID string, opts TrackOptions) (*RootStatus, error) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		status, err := r.getter.RootStatus(ctx, loadBalancerID)

		switch {
		case errors.Is(err, ErrStatusGone):
			if opts.Delete {
				return &RootStatus{ProvisioningStatus: lb.StatusDeleted}, nil
			}

			return nil, err
		case err != nil:
			// transient read failure, retry until deadline
			r.logger.Debugw("backend status read failed", "loadBalancerID", loadBalancerID, "error", err)
		case status.ProvisioningStatus == lb.StatusActive, status.ProvisioningStatus == lb.StatusDeleted:
			return status, nil
		case status.ProvisioningStatus == lb.StatusError:
			return nil, errors.New("backend reported provisioning status ERROR")
		}

		select {
		case <-ctx.Done():
			return nil, ErrPollTimeout
		case <-ticker.C:
		}
	}
}
