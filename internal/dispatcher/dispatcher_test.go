package dispatcher

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/driver/mock"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
	"go.infratographer.com/loadbalancer-controlplane/internal/pubsub"
	"go.infratographer.com/loadbalancer-controlplane/internal/store"
)

const testProvider = "mockprov"

type testEnv struct {
	dispatcher *Dispatcher
	store      *store.Store
	driver     *mock.Driver
	events     *eventRecorder
}

type eventRecorder struct {
	messages []pubsub.StatusMessage
}

func (r *eventRecorder) PublishStatus(_ context.Context, msg pubsub.StatusMessage) error {
	r.messages = append(r.messages, msg)
	return nil
}

func newTestEnv(t *testing.T, caps driver.Capabilities) *testEnv {
	t.Helper()

	s, err := store.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.Nil(t, err)

	t.Cleanup(func() { _ = s.Close() })

	events := &eventRecorder{}
	completions := NewCompletions(s, WithStatusPublisher(events))

	md := &mock.Driver{
		Provider:   testProvider,
		Caps:       caps,
		Completion: completions,
		VIPAddress: "203.0.113.9",
		VIPPortID:  "port-1",
	}

	registry := driver.NewRegistry(testProvider)
	registry.Register(md)

	d := New(s, registry, WithFlavorProviders(map[string]string{"small": testProvider}))

	return &testEnv{dispatcher: d, store: s, driver: md, events: events}
}

func (e *testEnv) createLoadBalancer(t *testing.T) *lb.LoadBalancer {
	t.Helper()

	out, err := e.dispatcher.CreateLoadBalancer(context.Background(), &lb.LoadBalancer{
		Name:         "web",
		AdminStateUp: true,
		VIPSubnetID:  "subnet-1",
		VIPAddress:   "10.0.0.5",
	})
	require.Nil(t, err)

	return out
}

func (e *testEnv) createListener(t *testing.T, lbID string) *lb.Listener {
	t.Helper()

	out, err := e.dispatcher.CreateListener(context.Background(), &lb.Listener{
		LoadBalancerID: lbID,
		Name:           "http",
		Protocol:       lb.ProtocolHTTP,
		ProtocolPort:   80,
		AdminStateUp:   true,
	})
	require.Nil(t, err)

	return out
}

func (e *testEnv) createPool(t *testing.T, lbID, listenerID string) *lb.Pool {
	t.Helper()

	out, err := e.dispatcher.CreatePool(context.Background(), &lb.Pool{
		LoadBalancerID: lbID,
		Name:           "backends",
		Protocol:       lb.ProtocolHTTP,
		Algorithm:      lb.AlgorithmRoundRobin,
		AdminStateUp:   true,
	}, listenerID)
	require.Nil(t, err)

	return out
}

func TestCreateLoadBalancer(t *testing.T) {
	ctx := context.Background()

	t.Run("success settles active", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})

		out := env.createLoadBalancer(t)

		assert.Equal(t, lb.StatusActive, out.ProvisioningStatus)
		assert.Equal(t, lb.OperatingOnline, out.OperatingStatus)
		assert.Equal(t, testProvider, out.Provider)
		assert.Contains(t, env.driver.Calls(), "loadbalancer.create "+out.ID)
	})

	t.Run("vip required without an allocating backend", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})

		_, err := env.dispatcher.CreateLoadBalancer(ctx, &lb.LoadBalancer{Name: "web", AdminStateUp: true})
		assert.ErrorIs(t, err, lb.ErrValidation)
	})

	t.Run("allocating backend reports the vip", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{AllocatesVIP: true})

		out, err := env.dispatcher.CreateLoadBalancer(ctx, &lb.LoadBalancer{Name: "web", AdminStateUp: true})
		require.Nil(t, err)

		assert.Equal(t, "203.0.113.9", out.VIPAddress)
		assert.Equal(t, "port-1", out.VIPPortID)
		assert.Equal(t, lb.StatusActive, out.ProvisioningStatus)
	})

	t.Run("driver failure leaves the root in error", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})
		env.driver.FailOn = map[string]error{"loadbalancer.create": errors.New("backend exploded")}

		_, err := env.dispatcher.CreateLoadBalancer(ctx, &lb.LoadBalancer{
			Name: "web", AdminStateUp: true, VIPAddress: "10.0.0.5",
		})
		require.ErrorIs(t, err, lb.ErrDriverOperation)

		lbs, err := env.dispatcher.ListLoadBalancers(ctx)
		require.Nil(t, err)
		require.Len(t, lbs, 1)
		assert.Equal(t, lb.StatusError, lbs[0].ProvisioningStatus)
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})

		_, err := env.dispatcher.CreateLoadBalancer(ctx, &lb.LoadBalancer{
			Name: "web", Provider: "nosuch", VIPAddress: "10.0.0.5",
		})
		assert.ErrorIs(t, err, lb.ErrUnknownProvider)
	})

	t.Run("provider and flavor together conflict", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})

		_, err := env.dispatcher.CreateLoadBalancer(ctx, &lb.LoadBalancer{
			Name: "web", Provider: testProvider, FlavorID: "small", VIPAddress: "10.0.0.5",
		})
		assert.ErrorIs(t, err, lb.ErrProviderFlavorConflict)
	})

	t.Run("flavor resolves to its provider", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})

		out, err := env.dispatcher.CreateLoadBalancer(ctx, &lb.LoadBalancer{
			Name: "web", FlavorID: "small", VIPAddress: "10.0.0.5",
		})
		require.Nil(t, err)
		assert.Equal(t, testProvider, out.Provider)
	})
}

func TestOperationSerialization(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, driver.Capabilities{})
	root := env.createLoadBalancer(t)

	// simulate an in-flight operation on the tree
	require.Nil(t, env.store.UpdateStatus(ctx, lb.ResourceLoadBalancer, root.ID, lb.StatusPendingUpdate, ""))

	_, err := env.dispatcher.CreateListener(ctx, &lb.Listener{
		LoadBalancerID: root.ID,
		Protocol:       lb.ProtocolHTTP,
		ProtocolPort:   80,
		AdminStateUp:   true,
	})
	assert.ErrorIs(t, err, lb.ErrConflict)

	_, err = env.dispatcher.UpdateLoadBalancer(ctx, root.ID, &lb.LoadBalancer{Name: "renamed"})
	assert.ErrorIs(t, err, lb.ErrConflict)

	err = env.dispatcher.DeleteLoadBalancer(ctx, root.ID)
	assert.ErrorIs(t, err, lb.ErrConflict)
}

func TestMemberFailureMarksTree(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, driver.Capabilities{})

	root := env.createLoadBalancer(t)
	env.createListener(t, root.ID)
	pool := env.createPool(t, root.ID, "")

	env.driver.FailOn = map[string]error{"member.create": errors.New("no route to host")}

	_, err := env.dispatcher.CreateMember(ctx, &lb.Member{
		PoolID:       pool.ID,
		Address:      "192.168.1.10",
		ProtocolPort: 8080,
		AdminStateUp: true,
	})
	require.ErrorIs(t, err, lb.ErrDriverOperation)

	tree, err := env.dispatcher.GetLoadBalancer(ctx, root.ID)
	require.Nil(t, err)

	// the failed member and its root are both flagged
	assert.Equal(t, lb.StatusError, tree.ProvisioningStatus)
	require.Len(t, tree.Pools, 1)
	require.Len(t, tree.Pools[0].Members, 1)
	assert.Equal(t, lb.StatusError, tree.Pools[0].Members[0].ProvisioningStatus)
	assert.Equal(t, lb.OperatingOffline, tree.Pools[0].Members[0].OperatingStatus)
}

func TestLifecycleRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, driver.Capabilities{})

	root := env.createLoadBalancer(t)
	listener := env.createListener(t, root.ID)
	pool := env.createPool(t, root.ID, listener.ID)

	member, err := env.dispatcher.CreateMember(ctx, &lb.Member{
		PoolID:       pool.ID,
		Address:      "192.168.1.10",
		ProtocolPort: 8080,
		AdminStateUp: true,
	})
	require.Nil(t, err)
	assert.Equal(t, lb.StatusActive, member.ProvisioningStatus)
	assert.Equal(t, 1, member.Weight)

	hm, err := env.dispatcher.CreateHealthMonitor(ctx, &lb.HealthMonitor{
		PoolID:       pool.ID,
		Type:         lb.MonitorHTTP,
		Delay:        10,
		Timeout:      5,
		MaxRetries:   3,
		AdminStateUp: true,
	})
	require.Nil(t, err)
	assert.Equal(t, lb.StatusActive, hm.ProvisioningStatus)
	// unset max_retries_down falls back to the default
	assert.Equal(t, 3, hm.MaxRetriesDown)

	// every intermediate operation released the root again
	tree, err := env.dispatcher.GetLoadBalancer(ctx, root.ID)
	require.Nil(t, err)
	assert.Equal(t, lb.StatusActive, tree.ProvisioningStatus)
	require.Len(t, tree.Listeners, 1)
	require.NotNil(t, tree.Listeners[0].DefaultPool)
	assert.Equal(t, pool.ID, tree.Listeners[0].DefaultPool.ID)

	// tear down bottom-up
	require.Nil(t, env.dispatcher.DeleteHealthMonitor(ctx, hm.ID))
	require.Nil(t, env.dispatcher.DeleteMember(ctx, member.ID))
	require.Nil(t, env.dispatcher.DeletePool(ctx, pool.ID))
	require.Nil(t, env.dispatcher.DeleteListener(ctx, listener.ID))
	require.Nil(t, env.dispatcher.DeleteLoadBalancer(ctx, root.ID))

	_, err = env.dispatcher.GetLoadBalancer(ctx, root.ID)
	assert.ErrorIs(t, err, lb.ErrNotFound)
}

func TestDeleteGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("pool with monitor refuses delete", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})
		root := env.createLoadBalancer(t)
		pool := env.createPool(t, root.ID, "")

		_, err := env.dispatcher.CreateHealthMonitor(ctx, &lb.HealthMonitor{
			PoolID: pool.ID, Type: lb.MonitorTCP, Delay: 10, Timeout: 5, MaxRetries: 3, AdminStateUp: true,
		})
		require.Nil(t, err)

		err = env.dispatcher.DeletePool(ctx, pool.ID)
		require.ErrorIs(t, err, lb.ErrEntityInUse)

		// the refusal happens before any status transition
		got, err := env.dispatcher.GetPool(ctx, pool.ID)
		require.Nil(t, err)
		assert.Equal(t, lb.StatusActive, got.ProvisioningStatus)

		tree, err := env.dispatcher.GetLoadBalancer(ctx, root.ID)
		require.Nil(t, err)
		assert.Equal(t, lb.StatusActive, tree.ProvisioningStatus)
	})

	t.Run("load balancer with children refuses delete", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})
		root := env.createLoadBalancer(t)
		env.createListener(t, root.ID)

		err := env.dispatcher.DeleteLoadBalancer(ctx, root.ID)
		assert.ErrorIs(t, err, lb.ErrEntityInUse)
	})

	t.Run("second monitor on a pool refused", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})
		root := env.createLoadBalancer(t)
		pool := env.createPool(t, root.ID, "")

		_, err := env.dispatcher.CreateHealthMonitor(ctx, &lb.HealthMonitor{
			PoolID: pool.ID, Type: lb.MonitorTCP, Delay: 10, Timeout: 5, MaxRetries: 3, AdminStateUp: true,
		})
		require.Nil(t, err)

		_, err = env.dispatcher.CreateHealthMonitor(ctx, &lb.HealthMonitor{
			PoolID: pool.ID, Type: lb.MonitorTCP, Delay: 10, Timeout: 5, MaxRetries: 3, AdminStateUp: true,
		})
		assert.ErrorIs(t, err, lb.ErrEntityInUse)
	})
}

func TestSessionPersistenceValidation(t *testing.T) {
	ctx := context.Background()

	persistenceTests := []struct {
		name        string
		persistence *lb.SessionPersistence
		wantErr     bool
	}{
		{"app cookie with name", &lb.SessionPersistence{Type: lb.SessionPersistenceAppCookie, CookieName: "JSESSIONID"}, false},
		{"app cookie without name", &lb.SessionPersistence{Type: lb.SessionPersistenceAppCookie}, true},
		{"source ip with stray name", &lb.SessionPersistence{Type: lb.SessionPersistenceSourceIP, CookieName: "nope"}, true},
		{"http cookie", &lb.SessionPersistence{Type: lb.SessionPersistenceHTTPCookie}, false},
		{"unknown type", &lb.SessionPersistence{Type: "STICKY_MAGIC"}, true},
	}

	for _, tt := range persistenceTests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, driver.Capabilities{})
			root := env.createLoadBalancer(t)

			_, err := env.dispatcher.CreatePool(ctx, &lb.Pool{
				LoadBalancerID:     root.ID,
				Protocol:           lb.ProtocolHTTP,
				Algorithm:          lb.AlgorithmRoundRobin,
				AdminStateUp:       true,
				SessionPersistence: tt.persistence,
			}, "")

			if tt.wantErr {
				assert.ErrorIs(t, err, lb.ErrValidation)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestHealthMonitorValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, driver.Capabilities{})
	root := env.createLoadBalancer(t)
	pool := env.createPool(t, root.ID, "")

	// a check that waits less than its own timeout is rejected
	_, err := env.dispatcher.CreateHealthMonitor(ctx, &lb.HealthMonitor{
		PoolID: pool.ID, Type: lb.MonitorHTTP, Delay: 3, Timeout: 5, MaxRetries: 3, AdminStateUp: true,
	})
	assert.ErrorIs(t, err, lb.ErrValidation)

	// max_retries_down shares the 1..10 range with max_retries
	_, err = env.dispatcher.CreateHealthMonitor(ctx, &lb.HealthMonitor{
		PoolID: pool.ID, Type: lb.MonitorHTTP, Delay: 10, Timeout: 5,
		MaxRetries: 3, MaxRetriesDown: 11, AdminStateUp: true,
	})
	assert.ErrorIs(t, err, lb.ErrValidation)
}

func TestListenerValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, driver.Capabilities{})
	root := env.createLoadBalancer(t)

	t.Run("terminated https requires a certificate", func(t *testing.T) {
		_, err := env.dispatcher.CreateListener(ctx, &lb.Listener{
			LoadBalancerID: root.ID,
			Protocol:       lb.ProtocolTerminatedHTTPS,
			ProtocolPort:   443,
			AdminStateUp:   true,
		})
		assert.ErrorIs(t, err, lb.ErrValidation)
	})

	t.Run("tls refs forbidden on plain listeners", func(t *testing.T) {
		_, err := env.dispatcher.CreateListener(ctx, &lb.Listener{
			LoadBalancerID:         root.ID,
			Protocol:               lb.ProtocolHTTP,
			ProtocolPort:           80,
			DefaultTLSContainerRef: "ref-1",
			AdminStateUp:           true,
		})
		assert.ErrorIs(t, err, lb.ErrValidation)
	})

	t.Run("incompatible default pool protocol", func(t *testing.T) {
		pool := env.createPool(t, root.ID, "")

		_, err := env.dispatcher.CreateListener(ctx, &lb.Listener{
			LoadBalancerID: root.ID,
			Protocol:       lb.ProtocolTCP,
			ProtocolPort:   22,
			DefaultPoolID:  pool.ID,
			AdminStateUp:   true,
		})
		assert.ErrorIs(t, err, lb.ErrValidation)
	})
}

func TestGraphCreate(t *testing.T) {
	ctx := context.Background()

	graph := func() *lb.LoadBalancer {
		return &lb.LoadBalancer{
			Name:         "web",
			AdminStateUp: true,
			VIPAddress:   "10.0.0.5",
			Listeners: []*lb.Listener{{
				Protocol:     lb.ProtocolHTTP,
				ProtocolPort: 80,
				AdminStateUp: true,
				DefaultPool: &lb.Pool{
					Protocol:     lb.ProtocolHTTP,
					Algorithm:    lb.AlgorithmRoundRobin,
					AdminStateUp: true,
					Members: []*lb.Member{{
						Address:      "192.168.1.10",
						ProtocolPort: 8080,
						AdminStateUp: true,
					}},
					HealthMonitor: &lb.HealthMonitor{
						Type:         lb.MonitorHTTP,
						Delay:        10,
						Timeout:      5,
						MaxRetries:   3,
						AdminStateUp: true,
					},
				},
			}},
		}
	}

	t.Run("unsupported without the capability", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{})

		_, err := env.dispatcher.CreateLoadBalancerGraph(ctx, graph())
		assert.ErrorIs(t, err, lb.ErrValidation)
	})

	t.Run("single driver call settles the whole tree", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{AllowsGraphCreate: true})

		out, err := env.dispatcher.CreateLoadBalancerGraph(ctx, graph())
		require.Nil(t, err)

		assert.Equal(t, lb.StatusActive, out.ProvisioningStatus)
		require.Len(t, out.Listeners, 1)
		assert.Equal(t, lb.StatusActive, out.Listeners[0].ProvisioningStatus)
		require.NotNil(t, out.Listeners[0].DefaultPool)
		assert.Equal(t, lb.StatusActive, out.Listeners[0].DefaultPool.ProvisioningStatus)
		require.Len(t, out.Listeners[0].DefaultPool.Members, 1)
		assert.Equal(t, lb.StatusActive, out.Listeners[0].DefaultPool.Members[0].ProvisioningStatus)
		require.NotNil(t, out.Listeners[0].DefaultPool.HealthMonitor)
		assert.Equal(t, lb.StatusActive, out.Listeners[0].DefaultPool.HealthMonitor.ProvisioningStatus)

		// only the root create reached the backend
		assert.Equal(t, []string{"loadbalancer.create " + out.ID}, env.driver.Calls())
	})

	t.Run("failed backend create flags the whole tree", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{AllowsGraphCreate: true})
		env.driver.FailOn = map[string]error{"loadbalancer.create": errors.New("backend exploded")}

		_, err := env.dispatcher.CreateLoadBalancerGraph(ctx, graph())
		require.ErrorIs(t, err, lb.ErrDriverOperation)

		lbs, err := env.dispatcher.ListLoadBalancers(ctx)
		require.Nil(t, err)
		require.Len(t, lbs, 1)

		tree, err := env.dispatcher.GetLoadBalancer(ctx, lbs[0].ID)
		require.Nil(t, err)

		// no descendant is left pending: the whole tree is flagged
		assert.Equal(t, lb.StatusError, tree.ProvisioningStatus)
		require.Len(t, tree.Listeners, 1)
		assert.Equal(t, lb.StatusError, tree.Listeners[0].ProvisioningStatus)
		require.NotNil(t, tree.Listeners[0].DefaultPool)
		pool := tree.Listeners[0].DefaultPool
		assert.Equal(t, lb.StatusError, pool.ProvisioningStatus)
		require.Len(t, pool.Members, 1)
		assert.Equal(t, lb.StatusError, pool.Members[0].ProvisioningStatus)
		require.NotNil(t, pool.HealthMonitor)
		assert.Equal(t, lb.StatusError, pool.HealthMonitor.ProvisioningStatus)

		// and the flagged tree can still be torn down
		env.driver.FailOn = nil

		require.Nil(t, env.dispatcher.DeleteHealthMonitor(ctx, pool.HealthMonitor.ID))
		require.Nil(t, env.dispatcher.DeleteMember(ctx, pool.Members[0].ID))
		require.Nil(t, env.dispatcher.DeleteListener(ctx, tree.Listeners[0].ID))
		require.Nil(t, env.dispatcher.DeletePool(ctx, pool.ID))
		require.Nil(t, env.dispatcher.DeleteLoadBalancer(ctx, tree.ID))
	})

	t.Run("duplicate listener ports rejected", func(t *testing.T) {
		env := newTestEnv(t, driver.Capabilities{AllowsGraphCreate: true})

		in := graph()
		in.Listeners = append(in.Listeners, &lb.Listener{
			Protocol:     lb.ProtocolHTTP,
			ProtocolPort: 80,
			AdminStateUp: true,
		})

		_, err := env.dispatcher.CreateLoadBalancerGraph(ctx, in)
		assert.ErrorIs(t, err, lb.ErrValidation)
	})
}

func TestDeferredL7(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, driver.Capabilities{})
	root := env.createLoadBalancer(t)
	listener := env.createListener(t, root.ID)

	policy, err := env.dispatcher.CreateL7Policy(ctx, &lb.L7Policy{
		ListenerID:   listener.ID,
		Action:       lb.L7ActionReject,
		AdminStateUp: false,
	})
	require.Nil(t, err)
	assert.Equal(t, lb.StatusDeferred, policy.ProvisioningStatus)

	// a rule on a deferred policy is deferred too, still with no driver call
	rule, err := env.dispatcher.CreateL7Rule(ctx, &lb.L7Rule{
		L7PolicyID:   policy.ID,
		Type:         lb.L7RulePath,
		CompareType:  lb.L7CompareStartsWith,
		Value:        "/admin",
		AdminStateUp: true,
	})
	require.Nil(t, err)
	assert.Equal(t, lb.StatusDeferred, rule.ProvisioningStatus)

	for _, call := range env.driver.Calls() {
		assert.NotContains(t, call, "l7")
	}

	// bringing the policy up realizes it on the backend
	policy, err = env.dispatcher.UpdateL7Policy(ctx, policy.ID, &lb.L7Policy{
		Action:       lb.L7ActionReject,
		AdminStateUp: true,
	})
	require.Nil(t, err)
	assert.Equal(t, lb.StatusActive, policy.ProvisioningStatus)
	assert.Contains(t, env.driver.Calls(), "l7policy.create "+policy.ID)

	// deferred entities are removed without touching the backend
	require.Nil(t, env.dispatcher.DeleteL7Rule(ctx, rule.ID))

	for _, call := range env.driver.Calls() {
		assert.NotContains(t, call, "l7rule")
	}
}

func TestLoadBalancerStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, driver.Capabilities{})
	root := env.createLoadBalancer(t)

	env.driver.DoStats = func(_ context.Context, _ *lb.LoadBalancer) (*lb.StatsReport, error) {
		return &lb.StatsReport{Stats: lb.Stats{BytesIn: 42, TotalConnections: 7}}, nil
	}

	report, err := env.dispatcher.LoadBalancerStats(ctx, root.ID)
	require.Nil(t, err)
	assert.Equal(t, uint64(42), report.BytesIn)

	// the report is persisted for later reads
	st, err := env.store.GetStats(ctx, root.ID)
	require.Nil(t, err)
	assert.Equal(t, uint64(42), st.BytesIn)
	assert.Equal(t, uint64(7), st.TotalConnections)
}

func TestStatusEvents(t *testing.T) {
	env := newTestEnv(t, driver.Capabilities{})
	root := env.createLoadBalancer(t)

	require.NotEmpty(t, env.events.messages)

	msg := env.events.messages[len(env.events.messages)-1]
	assert.Equal(t, lb.ResourceLoadBalancer, msg.ResourceType)
	assert.Equal(t, root.ID, msg.SubjectID)
	assert.Equal(t, root.ID, msg.LoadBalancerID)
	assert.Equal(t, lb.StatusActive, msg.ProvisioningStatus)
}

func TestPreDriverFailureReleasesPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, driver.Capabilities{})

	// a stored row bound to a provider that is no longer registered makes
	// driver resolution fail after the status transition
	orphan := &lb.LoadBalancer{
		ID:                 "loadbal-ghost",
		Name:               "web",
		AdminStateUp:       true,
		Provider:           "ghost",
		VIPAddress:         "10.0.0.9",
		ProvisioningStatus: lb.StatusActive,
		OperatingStatus:    lb.OperatingOnline,
	}
	require.Nil(t, env.store.CreateLoadBalancer(ctx, orphan))

	t.Run("root update", func(t *testing.T) {
		_, err := env.dispatcher.UpdateLoadBalancer(ctx, orphan.ID, &lb.LoadBalancer{Name: "renamed", AdminStateUp: true})
		require.ErrorIs(t, err, lb.ErrUnknownProvider)

		got, err := env.dispatcher.GetLoadBalancer(ctx, orphan.ID)
		require.Nil(t, err)
		assert.Equal(t, lb.StatusActive, got.ProvisioningStatus)
	})

	t.Run("listener delete", func(t *testing.T) {
		lsn := &lb.Listener{
			ID:                 "loadlsn-ghost",
			LoadBalancerID:     orphan.ID,
			Protocol:           lb.ProtocolHTTP,
			ProtocolPort:       80,
			AdminStateUp:       true,
			ProvisioningStatus: lb.StatusActive,
			OperatingStatus:    lb.OperatingOnline,
		}
		require.Nil(t, env.store.CreateListener(ctx, lsn))

		require.ErrorIs(t, env.dispatcher.DeleteListener(ctx, lsn.ID), lb.ErrUnknownProvider)

		got, err := env.dispatcher.GetListener(ctx, lsn.ID)
		require.Nil(t, err)
		assert.Equal(t, lb.StatusActive, got.ProvisioningStatus)

		// the root is released too, so the operation can be retried
		tree, err := env.dispatcher.GetLoadBalancer(ctx, orphan.ID)
		require.Nil(t, err)
		assert.Equal(t, lb.StatusActive, tree.ProvisioningStatus)

		require.ErrorIs(t, env.dispatcher.DeleteListener(ctx, lsn.ID), lb.ErrUnknownProvider)
	})
}
