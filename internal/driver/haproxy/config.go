package haproxy

import (
	"fmt"

	parser "github.com/haproxytech/config-parser/v4"
	"github.com/haproxytech/config-parser/v4/options"
	"github.com/haproxytech/config-parser/v4/types"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// baseConfigTemplate is the skeleton every instance config starts from. The
// stats socket path is substituted per instance.
const baseConfigTemplate = `global
    daemon
    stats socket %s mode 0666 level user

defaults
    retries 3
    option redispatch
    timeout connect 5000
    timeout client 50000
    timeout server 50000
`

// renderConfig builds an haproxy configuration for one load balancer tree.
// Disabled subtrees are left out entirely: a disabled load balancer renders
// no frontends, a disabled listener renders no frontend, disabled pools get
// no servers routed to them and disabled members render as disabled servers.
func renderConfig(tree *lb.LoadBalancer, socketPath string) (string, error) {
	cfg, err := parser.New(options.String(fmt.Sprintf(baseConfigTemplate, socketPath)))
	if err != nil {
		return "", err
	}

	pools := poolsByID(tree)

	for _, p := range tree.Pools {
		if !p.AdminStateUp {
			continue
		}

		if err := mergeBackend(cfg, p); err != nil {
			return "", err
		}
	}

	if tree.AdminStateUp {
		for _, l := range tree.Listeners {
			if !l.AdminStateUp {
				continue
			}

			if err := mergeFrontend(cfg, tree, l, pools); err != nil {
				return "", err
			}
		}
	}

	return cfg.String(), nil
}

func poolsByID(tree *lb.LoadBalancer) map[string]*lb.Pool {
	pools := make(map[string]*lb.Pool, len(tree.Pools))

	for _, p := range tree.Pools {
		pools[p.ID] = p
	}

	return pools
}

func mergeFrontend(cfg parser.Parser, tree *lb.LoadBalancer, l *lb.Listener, pools map[string]*lb.Pool) error {
	if err := cfg.SectionsCreate(parser.Frontends, l.ID); err != nil {
		return fmt.Errorf("frontend %s: %w", l.ID, err)
	}

	if err := cfg.Insert(parser.Frontends, l.ID, "bind", types.Bind{
		Path: fmt.Sprintf("%s@%s:%d", "ipv4", tree.VIPAddress, l.ProtocolPort)}); err != nil {
		return fmt.Errorf("frontend %s bind: %w", l.ID, err)
	}

	if err := cfg.Set(parser.Frontends, l.ID, "mode", types.StringC{Value: frontendMode(l.Protocol)}); err != nil {
		return fmt.Errorf("frontend %s mode: %w", l.ID, err)
	}

	if l.ConnectionLimit > 0 {
		if err := cfg.Set(parser.Frontends, l.ID, "maxconn", types.Int64C{Value: int64(l.ConnectionLimit)}); err != nil {
			return fmt.Errorf("frontend %s maxconn: %w", l.ID, err)
		}
	}

	if l.DefaultPoolID == "" {
		return nil
	}

	pool, ok := pools[l.DefaultPoolID]
	if !ok || !pool.AdminStateUp {
		return nil
	}

	if err := cfg.Set(parser.Frontends, l.ID, "use_backend", types.UseBackend{Name: pool.ID}); err != nil {
		return fmt.Errorf("frontend %s use_backend: %w", l.ID, err)
	}

	return nil
}

func mergeBackend(cfg parser.Parser, p *lb.Pool) error {
	if err := cfg.SectionsCreate(parser.Backends, p.ID); err != nil {
		return fmt.Errorf("backend %s: %w", p.ID, err)
	}

	if err := cfg.Set(parser.Backends, p.ID, "mode", types.StringC{Value: backendMode(p.Protocol)}); err != nil {
		return fmt.Errorf("backend %s mode: %w", p.ID, err)
	}

	if err := cfg.Set(parser.Backends, p.ID, "balance", types.Balance{Algorithm: balanceAlgorithm(p)}); err != nil {
		return fmt.Errorf("backend %s balance: %w", p.ID, err)
	}

	cookie := sessionCookie(p)
	if cookie != nil {
		if err := cfg.Set(parser.Backends, p.ID, "cookie", *cookie); err != nil {
			return fmt.Errorf("backend %s cookie: %w", p.ID, err)
		}
	}

	if hm := p.HealthMonitor; hm != nil && hm.AdminStateUp && (hm.Type == lb.MonitorHTTP || hm.Type == lb.MonitorHTTPS) {
		if err := cfg.Set(parser.Backends, p.ID, "option httpchk", types.OptionHttpchk{
			Method: hm.HTTPMethod,
			URI:    hm.URLPath,
		}); err != nil {
			return fmt.Errorf("backend %s httpchk: %w", p.ID, err)
		}
	}

	for _, m := range p.Members {
		srvr := types.Server{
			Name:    m.ID,
			Address: serverAddress(p, m, cookie != nil),
		}

		if err := cfg.Set(parser.Backends, p.ID, "server", srvr); err != nil {
			return fmt.Errorf("backend %s server %s: %w", p.ID, m.ID, err)
		}
	}

	return nil
}

// serverAddress renders the server line tail: address, weight, health check
// parameters from the pool's monitor, the persistence cookie and the
// disabled marker.
func serverAddress(p *lb.Pool, m *lb.Member, withCookie bool) string {
	addr := fmt.Sprintf("%s:%d weight %d", m.Address, m.ProtocolPort, m.Weight)

	if hm := p.HealthMonitor; hm != nil && hm.AdminStateUp {
		addr += fmt.Sprintf(" check inter %ds rise %d fall %d", hm.Delay, hm.MaxRetries, hm.MaxRetriesDown)
	}

	if withCookie {
		addr += " cookie " + m.ID
	}

	if !m.AdminStateUp {
		addr += " disabled"
	}

	return addr
}

func frontendMode(protocol string) string {
	switch protocol {
	case lb.ProtocolHTTP, lb.ProtocolTerminatedHTTPS:
		return "http"
	default:
		return "tcp"
	}
}

func backendMode(protocol string) string {
	if protocol == lb.ProtocolHTTP {
		return "http"
	}

	return "tcp"
}

// balanceAlgorithm maps the pool algorithm, with SOURCE_IP session
// persistence forcing source hashing.
func balanceAlgorithm(p *lb.Pool) string {
	if p.SessionPersistence != nil && p.SessionPersistence.Type == lb.SessionPersistenceSourceIP {
		return "source"
	}

	switch p.Algorithm {
	case lb.AlgorithmLeastConnections:
		return "leastconn"
	case lb.AlgorithmSourceIP:
		return "source"
	default:
		return "roundrobin"
	}
}

func sessionCookie(p *lb.Pool) *types.Cookie {
	if p.SessionPersistence == nil {
		return nil
	}

	switch p.SessionPersistence.Type {
	case lb.SessionPersistenceHTTPCookie:
		return &types.Cookie{Name: "SRV", Type: "insert", Indirect: true, Nocache: true}
	case lb.SessionPersistenceAppCookie:
		return &types.Cookie{Name: p.SessionPersistence.CookieName, Type: "prefix"}
	default:
		return nil
	}
}
