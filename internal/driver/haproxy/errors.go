package haproxy

import "errors"

var (
	// ErrUnsupportedOperation is returned for resource types the local
	// process backend cannot realize.
	ErrUnsupportedOperation = errors.New("operation not supported by the haproxy provider")

	// ErrInstanceNotDeployed is returned when stats or a refresh is
	// requested for a load balancer with no running process.
	ErrInstanceNotDeployed = errors.New("haproxy instance not deployed")

	// ErrStatsParse is returned when the control socket returns a stats
	// document that cannot be interpreted.
	ErrStatsParse = errors.New("failed to parse haproxy stats")
)
