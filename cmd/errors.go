package cmd

import "errors"

var (
	// ErrDatabasePathRequired is returned when the sqlite database path is missing
	ErrDatabasePathRequired = errors.New("database path is required and cannot be empty")
	// ErrNoProvidersConfigured is returned when no backend providers are configured
	ErrNoProvidersConfigured = errors.New("at least one provider must be configured")
	// ErrDefaultProviderUnknown is returned when the default provider names no configured provider
	ErrDefaultProviderUnknown = errors.New("default provider is not among the configured providers")
	// ErrProviderURLRequired is returned when a rest provider has no base url
	ErrProviderURLRequired = errors.New("provider url is required for rest providers")
	// ErrProviderStateDirRequired is returned when a haproxy provider has no state directory
	ErrProviderStateDirRequired = errors.New("provider state directory is required for haproxy providers")
	// ErrProviderKindUnknown is returned when a provider kind is not recognized
	ErrProviderKindUnknown = errors.New("provider kind must be haproxy, rest or rest-async")
)
