package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

func TestStatuses(t *testing.T) {
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

	t.Run("healthy tree reports stored statuses", func(t *testing.T) {
		tree, err := env.dispatcher.Statuses(ctx, root.ID)
		require.Nil(t, err)

		assert.Equal(t, lb.OperatingOnline, tree.OperatingStatus)
		require.Len(t, tree.Listeners, 1)
		assert.Equal(t, lb.OperatingOnline, tree.Listeners[0].OperatingStatus)
		require.Len(t, tree.Listeners[0].Pools, 1)
		assert.Equal(t, lb.OperatingOnline, tree.Listeners[0].Pools[0].OperatingStatus)
		// the pool is a listener default, so it does not repeat at the root
		assert.Empty(t, tree.Pools)
	})

	t.Run("offline member degrades every ancestor", func(t *testing.T) {
		require.Nil(t, env.store.UpdateStatus(ctx, lb.ResourceMember, member.ID, "", lb.OperatingOffline))

		tree, err := env.dispatcher.Statuses(ctx, root.ID)
		require.Nil(t, err)

		// the member itself keeps its own status, ancestors report degraded
		got := tree.Listeners[0].Pools[0].Members[0]
		assert.Equal(t, lb.OperatingOffline, got.OperatingStatus)
		assert.Equal(t, lb.OperatingDegraded, tree.Listeners[0].Pools[0].OperatingStatus)
		assert.Equal(t, lb.OperatingDegraded, tree.Listeners[0].OperatingStatus)
		assert.Equal(t, lb.OperatingDegraded, tree.OperatingStatus)
	})

	t.Run("computed view never persists", func(t *testing.T) {
		stored, err := env.store.GetLoadBalancer(ctx, root.ID)
		require.Nil(t, err)
		assert.Equal(t, lb.OperatingOnline, stored.OperatingStatus)

		storedPool, err := env.store.GetPool(ctx, pool.ID)
		require.Nil(t, err)
		assert.Equal(t, lb.OperatingOnline, storedPool.OperatingStatus)
	})

	t.Run("errored monitor degrades its pool", func(t *testing.T) {
		require.Nil(t, env.store.UpdateStatus(ctx, lb.ResourceMember, member.ID, "", lb.OperatingOnline))

		hm, err := env.dispatcher.CreateHealthMonitor(ctx, &lb.HealthMonitor{
			PoolID: pool.ID, Type: lb.MonitorTCP, Delay: 10, Timeout: 5, MaxRetries: 3, AdminStateUp: true,
		})
		require.Nil(t, err)

		require.Nil(t, env.store.UpdateStatus(ctx, lb.ResourceHealthMonitor, hm.ID, lb.StatusError, ""))

		tree, err := env.dispatcher.Statuses(ctx, root.ID)
		require.Nil(t, err)

		require.NotNil(t, tree.Listeners[0].Pools[0].HealthMonitor)
		assert.Equal(t, lb.StatusError, tree.Listeners[0].Pools[0].HealthMonitor.ProvisioningStatus)
		assert.Equal(t, lb.OperatingDegraded, tree.Listeners[0].Pools[0].OperatingStatus)
		assert.Equal(t, lb.OperatingDegraded, tree.OperatingStatus)
	})
}

func TestStatusesDisabledSubtree(t *testing.T) {
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

	t.Run("admin-down member reports disabled without degrading", func(t *testing.T) {
		_, err := env.dispatcher.UpdateMember(ctx, member.ID, &lb.Member{
			Address:      member.Address,
			ProtocolPort: member.ProtocolPort,
			Weight:       member.Weight,
			AdminStateUp: false,
		})
		require.Nil(t, err)

		tree, err := env.dispatcher.Statuses(ctx, root.ID)
		require.Nil(t, err)

		got := tree.Listeners[0].Pools[0].Members[0]
		assert.Equal(t, lb.OperatingDisabled, got.OperatingStatus)
		assert.Equal(t, lb.OperatingOnline, tree.Listeners[0].Pools[0].OperatingStatus)
		assert.Equal(t, lb.OperatingOnline, tree.OperatingStatus)
	})

	t.Run("admin-down listener disables its whole subtree", func(t *testing.T) {
		_, err := env.dispatcher.UpdateListener(ctx, listener.ID, &lb.Listener{
			Name:          listener.Name,
			DefaultPoolID: pool.ID,
			AdminStateUp:  false,
		})
		require.Nil(t, err)

		tree, err := env.dispatcher.Statuses(ctx, root.ID)
		require.Nil(t, err)

		assert.Equal(t, lb.OperatingDisabled, tree.Listeners[0].OperatingStatus)
		assert.Equal(t, lb.OperatingDisabled, tree.Listeners[0].Pools[0].OperatingStatus)
		assert.Equal(t, lb.OperatingDisabled, tree.Listeners[0].Pools[0].Members[0].OperatingStatus)
		assert.NotEqual(t, lb.OperatingDegraded, tree.OperatingStatus)
	})

	t.Run("admin-down load balancer disables everything", func(t *testing.T) {
		_, err := env.dispatcher.UpdateLoadBalancer(ctx, root.ID, &lb.LoadBalancer{
			Name:         root.Name,
			AdminStateUp: false,
		})
		require.Nil(t, err)

		tree, err := env.dispatcher.Statuses(ctx, root.ID)
		require.Nil(t, err)

		assert.Equal(t, lb.OperatingDisabled, tree.OperatingStatus)
		assert.Equal(t, lb.OperatingDisabled, tree.Listeners[0].OperatingStatus)
	})
}
