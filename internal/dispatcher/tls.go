package dispatcher

import (
	"context"

	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// CertBundle is the materialized content of one certificate container.
type CertBundle struct {
	Certificate   string
	PrivateKey    string
	Intermediates []string
}

// CertValidator is the certificate validation collaborator for
// TLS-terminating listeners. ValidateAndFetch registers and materializes a
// container, failing with a wrapped ErrContainerNotFound or
// ErrContainerInvalid; DeleteRegistration undoes a registration.
type CertValidator interface {
	ValidateAndFetch(ctx context.Context, containerRef, loadBalancerID string) (*CertBundle, error)
	DeleteRegistration(ctx context.Context, containerRef, loadBalancerID string) error
}

// compensations is an ordered undo list: each sub-step that succeeds pushes
// its undo action, and a later failure runs them in reverse. Undo failures
// are logged, never re-raised.
type compensations []func(ctx context.Context) error

func (c compensations) run(ctx context.Context, logger *zap.SugaredLogger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](ctx); err != nil {
			logger.Warnw("compensation step failed", "error", err)
		}
	}
}

// validateListenerTLS validates every certificate container a listener
// references. On any failure the containers registered so far are
// deregistered before the error surfaces.
func (d *Dispatcher) validateListenerTLS(ctx context.Context, l *lb.Listener, loadBalancerID string) error {
	if l.Protocol != lb.ProtocolTerminatedHTTPS {
		return nil
	}

	if d.certs == nil {
		return lb.NewValidationError("listener protocol %s is not supported without a certificate validator", l.Protocol)
	}

	refs := make([]string, 0, len(l.SNIContainerRefs)+1)
	refs = append(refs, l.DefaultTLSContainerRef)
	refs = append(refs, l.SNIContainerRefs...)

	var undo compensations

	for _, ref := range refs {
		ref := ref

		if _, err := d.certs.ValidateAndFetch(ctx, ref, loadBalancerID); err != nil {
			// the failing fetch may itself have registered the container
			if derr := d.certs.DeleteRegistration(ctx, ref, loadBalancerID); derr != nil {
				d.logger.Warnw("failed to deregister tls container", "containerRef", ref, "error", derr)
			}

			undo.run(ctx, d.logger)

			return err
		}

		undo = append(undo, func(ctx context.Context) error {
			return d.certs.DeleteRegistration(ctx, ref, loadBalancerID)
		})
	}

	return nil
}
