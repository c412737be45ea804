package haproxy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

func webTree() *lb.LoadBalancer {
	monitor := &lb.HealthMonitor{
		ID:             "hm-1",
		PoolID:         "pool-1",
		Type:           lb.MonitorHTTP,
		Delay:          5,
		Timeout:        3,
		MaxRetries:     4,
		MaxRetriesDown: 2,
		HTTPMethod:     "GET",
		URLPath:        "/healthz",
		AdminStateUp:   true,
	}

	pool := &lb.Pool{
		ID:             "pool-1",
		LoadBalancerID: "lb-1",
		Protocol:       lb.ProtocolHTTP,
		Algorithm:      lb.AlgorithmRoundRobin,
		AdminStateUp:   true,
		HealthMonitor:  monitor,
		Members: []*lb.Member{
			{ID: "member-1", PoolID: "pool-1", Address: "192.0.2.10", ProtocolPort: 8080, Weight: 1, AdminStateUp: true},
			{ID: "member-2", PoolID: "pool-1", Address: "192.0.2.11", ProtocolPort: 8080, Weight: 2, AdminStateUp: false},
		},
	}

	listener := &lb.Listener{
		ID:              "listener-1",
		LoadBalancerID:  "lb-1",
		Protocol:        lb.ProtocolHTTP,
		ProtocolPort:    80,
		ConnectionLimit: 1000,
		DefaultPoolID:   "pool-1",
		DefaultPool:     pool,
		AdminStateUp:    true,
	}

	return &lb.LoadBalancer{
		ID:           "lb-1",
		VIPAddress:   "10.0.0.10",
		AdminStateUp: true,
		Listeners:    []*lb.Listener{listener},
		Pools:        []*lb.Pool{pool},
	}
}

func TestRenderConfig(t *testing.T) {
	cfg, err := renderConfig(webTree(), "/run/lb-1.sock")
	require.NoError(t, err)

	assert.Contains(t, cfg, "stats socket /run/lb-1.sock")
	assert.Contains(t, cfg, "frontend listener-1")
	assert.Contains(t, cfg, "bind ipv4@10.0.0.10:80")
	assert.Contains(t, cfg, "maxconn 1000")
	assert.Contains(t, cfg, "use_backend pool-1")
	assert.Contains(t, cfg, "backend pool-1")
	assert.Contains(t, cfg, "balance roundrobin")
	assert.Contains(t, cfg, "option httpchk GET /healthz")
	assert.Contains(t, cfg, "server member-1 192.0.2.10:8080 weight 1 check inter 5s rise 4 fall 2")
	assert.Contains(t, cfg, "server member-2 192.0.2.11:8080 weight 2 check inter 5s rise 4 fall 2 disabled")
}

func TestRenderConfigDisabledLoadBalancer(t *testing.T) {
	tree := webTree()
	tree.AdminStateUp = false

	cfg, err := renderConfig(tree, "/run/lb-1.sock")
	require.NoError(t, err)

	assert.NotContains(t, cfg, "frontend")
	// backends stay rendered so a re-enable is a config-only change
	assert.Contains(t, cfg, "backend pool-1")
}

func TestRenderConfigDisabledListener(t *testing.T) {
	tree := webTree()
	tree.Listeners[0].AdminStateUp = false

	cfg, err := renderConfig(tree, "/run/lb-1.sock")
	require.NoError(t, err)

	assert.NotContains(t, cfg, "frontend listener-1")
	assert.Contains(t, cfg, "backend pool-1")
}

func TestRenderConfigDisabledPool(t *testing.T) {
	tree := webTree()
	tree.Pools[0].AdminStateUp = false

	cfg, err := renderConfig(tree, "/run/lb-1.sock")
	require.NoError(t, err)

	assert.Contains(t, cfg, "frontend listener-1")
	assert.NotContains(t, cfg, "backend pool-1")
	assert.NotContains(t, cfg, "use_backend")
}

func TestRenderConfigSessionPersistence(t *testing.T) {
	tests := []struct {
		name        string
		persistence *lb.SessionPersistence
		contains    []string
		notContains []string
	}{
		{
			name:        "http cookie inserts a tracking cookie",
			persistence: &lb.SessionPersistence{Type: lb.SessionPersistenceHTTPCookie},
			contains:    []string{"cookie SRV insert", "cookie member-1"},
		},
		{
			name:        "app cookie prefixes the named cookie",
			persistence: &lb.SessionPersistence{Type: lb.SessionPersistenceAppCookie, CookieName: "JSESSIONID"},
			contains:    []string{"cookie JSESSIONID prefix"},
		},
		{
			name:        "source ip forces source balancing",
			persistence: &lb.SessionPersistence{Type: lb.SessionPersistenceSourceIP},
			contains:    []string{"balance source"},
			notContains: []string{"cookie"},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree := webTree()
			tree.Pools[0].SessionPersistence = tt.persistence

			cfg, err := renderConfig(tree, "/run/lb-1.sock")
			require.NoError(t, err)

			for _, want := range tt.contains {
				assert.Contains(t, cfg, want)
			}

			for _, unwanted := range tt.notContains {
				assert.NotContains(t, cfg, unwanted)
			}
		})
	}
}

func TestRenderConfigTCPModes(t *testing.T) {
	tree := webTree()
	tree.Listeners[0].Protocol = lb.ProtocolTCP
	tree.Pools[0].Protocol = lb.ProtocolTCP
	tree.Pools[0].HealthMonitor = nil

	cfg, err := renderConfig(tree, "/run/lb-1.sock")
	require.NoError(t, err)

	assert.NotContains(t, cfg, "mode http")
	assert.Equal(t, 2, strings.Count(cfg, "mode tcp"))
	assert.NotContains(t, cfg, "httpchk")
	assert.NotContains(t, cfg, "check inter")
}

func TestPruneListener(t *testing.T) {
	tree := webTree()

	pruned := withoutListener(tree, "listener-1")
	assert.Empty(t, pruned.Listeners)
	assert.Len(t, tree.Listeners, 1)
}

func TestPrunePoolDetachesDefault(t *testing.T) {
	tree := webTree()

	pruned := withoutPool(tree, "pool-1")
	assert.Empty(t, pruned.Pools)
	require.Len(t, pruned.Listeners, 1)
	assert.Empty(t, pruned.Listeners[0].DefaultPoolID)
	assert.Nil(t, pruned.Listeners[0].DefaultPool)

	// the original tree is untouched
	assert.Equal(t, "pool-1", tree.Listeners[0].DefaultPoolID)
}

func TestPruneMember(t *testing.T) {
	tree := webTree()

	pruned := withoutMember(tree, "member-1")
	require.Len(t, pruned.Pools, 1)
	require.Len(t, pruned.Pools[0].Members, 1)
	assert.Equal(t, "member-2", pruned.Pools[0].Members[0].ID)
	assert.Len(t, tree.Pools[0].Members, 2)
}

func TestPruneHealthMonitor(t *testing.T) {
	tree := webTree()

	pruned := withoutHealthMonitor(tree, "hm-1")
	require.Len(t, pruned.Pools, 1)
	assert.Nil(t, pruned.Pools[0].HealthMonitor)
	assert.NotNil(t, tree.Pools[0].HealthMonitor)
}
