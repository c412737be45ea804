package lb

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when a resource's current provisioning status
	// forbids the requested transition.
	ErrConflict = errors.New("resource state conflict")

	// ErrValidation is returned for malformed or structurally inconsistent
	// request payloads. It never follows a status mutation.
	ErrValidation = errors.New("validation failed")

	// ErrEntityInUse is returned when a delete is rejected because dependent
	// child resources still exist.
	ErrEntityInUse = errors.New("entity in use")

	// ErrDriverOperation is returned when the backend rejected or failed the
	// requested change. The root load balancer has already been marked ERROR
	// by the time the caller sees it.
	ErrDriverOperation = errors.New("driver operation failed")

	// ErrDriverResolution is returned when a resource is bound to a provider
	// that is no longer configured. Fatal at start-up.
	ErrDriverResolution = errors.New("driver resolution failed")

	// ErrUnknownProvider is returned when a requested provider name is not
	// configured.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrProviderFlavorConflict is returned when a create supplies both an
	// explicit provider and a flavor-derived provider.
	ErrProviderFlavorConflict = errors.New("provider and flavor both specified")

	// ErrContainerNotFound is returned when a TLS certificate container is
	// missing from the secret store.
	ErrContainerNotFound = errors.New("tls container not found")

	// ErrContainerInvalid is returned when a TLS certificate container fails
	// validation.
	ErrContainerInvalid = errors.New("tls container invalid")
)

// NewNotFoundError reports a missing resource of the given type.
func NewNotFoundError(resource ResourceType, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, resource, id)
}

// NewConflictError reports a resource whose current status forbids the
// requested transition.
func NewConflictError(resource ResourceType, id string, status ProvisioningStatus) error {
	return fmt.Errorf("%w: %s %q is %s", ErrConflict, resource, id, status)
}

// NewValidationError reports a structurally invalid payload.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NewEntityInUseError reports a delete rejected because of a dependent child.
func NewEntityInUseError(using ResourceType, usingID string, inUse ResourceType) error {
	return fmt.Errorf("%w: %s is used by %s %q", ErrEntityInUse, inUse, using, usingID)
}

// NewDriverOperationError wraps a backend failure, preserving the cause.
func NewDriverOperationError(cause error) error {
	return fmt.Errorf("%w: %v", ErrDriverOperation, cause)
}
