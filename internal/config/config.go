// Package config holds the application's runtime configuration.
package config

import (
	"time"

	"go.infratographer.com/x/loggingx"

	"go.infratographer.com/loadbalancer-controlplane/x/oauth2x"
)

// Provider kinds selecting which driver implementation backs a provider.
const (
	ProviderKindHAProxy   = "haproxy"
	ProviderKindREST      = "rest"
	ProviderKindRESTAsync = "rest-async"
)

// Provider describes one backend driver to register.
type Provider struct {
	Name         string
	Kind         string
	URL          string
	AllocatesVIP bool          `mapstructure:"allocates_vip"`
	GraphCreate  bool          `mapstructure:"graph_create"`
	StateDir     string        `mapstructure:"state_dir"`
	Binary       string        `mapstructure:"binary"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// NATSConfig stores the status event stream connection settings. An empty URL
// disables publishing.
type NATSConfig struct {
	URL           string
	CredsFile     string `mapstructure:"creds_file"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// OIDCClientConfig stores the configuration for an OIDC client
type OIDCClientConfig struct {
	Client oauth2x.Config
}

// DatabaseConfig stores the sqlite database location.
type DatabaseConfig struct {
	Path string
}

// ServerConfig stores the API listen settings.
type ServerConfig struct {
	Listen string
}

// DispatchConfig stores provider selection defaults.
type DispatchConfig struct {
	DefaultProvider string            `mapstructure:"default_provider"`
	Flavors         map[string]string `mapstructure:"flavors"`
}

var AppConfig struct {
	Logging   loggingx.Config
	OIDC      OIDCClientConfig
	NATS      NATSConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Dispatch  DispatchConfig
	Providers []Provider
}
