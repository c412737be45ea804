package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.infratographer.com/loadbalancer-controlplane/pkg/client/internal/mock"
)

func newAPIMock(respJSON string, respCode int) *mock.HTTPClient {
	mockCli := &mock.HTTPClient{}
	mockCli.DoFunc = func(*http.Request) (*http.Response, error) {
		r := io.NopCloser(strings.NewReader(respJSON))
		return &http.Response{
			StatusCode: respCode,
			Body:       r,
		}, nil
	}

	return mockCli
}

func TestGetLoadBalancer(t *testing.T) {
	t.Run("GET v1/loadbalancers/:id", func(t *testing.T) {
		t.Parallel()
		respJSON := `{
			"id": "loadbal-kdiekd83747dk",
			"name": "web",
			"vip_address": "10.0.0.5",
			"provisioning_status": "ACTIVE",
			"operating_status": "ONLINE",
			"listeners": [
				{
					"id": "loadlsn-03mdkf82m",
					"protocol": "HTTP",
					"protocol_port": 80,
					"default_pool_id": "loadpol-99dmf82k"
				}
			]
		}`

		cli := Client{
			baseURL: "test.url",
			client:  newAPIMock(respJSON, http.StatusOK),
		}

		out, err := cli.GetLoadBalancer(context.Background(), "loadbal-kdiekd83747dk")
		require.Nil(t, err)

		assert.Equal(t, "loadbal-kdiekd83747dk", out.ID)
		assert.Equal(t, "web", out.Name)
		assert.Equal(t, "10.0.0.5", out.VIPAddress)
		assert.Equal(t, "ACTIVE", out.ProvisioningStatus)
		require.Len(t, out.Listeners, 1)
		assert.Equal(t, "loadlsn-03mdkf82m", out.Listeners[0].ID)
		assert.Equal(t, 80, out.Listeners[0].ProtocolPort)
		assert.Equal(t, "loadpol-99dmf82k", out.Listeners[0].DefaultPoolID)
	})

	negativeTests := []struct {
		name            string
		respCode        int
		expectedFailure error
	}{
		{"GET v1/loadbalancers/:id - 404", http.StatusNotFound, ErrNotFound},
		{"GET v1/loadbalancers/:id - 401", http.StatusUnauthorized, ErrUnauthorized},
		{"GET v1/loadbalancers/:id - 500", http.StatusInternalServerError, ErrAPIError},
	}

	for _, tt := range negativeTests {
		// go vet
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cli := Client{
				baseURL: "test.url",
				client:  newAPIMock("", tt.respCode),
			}

			out, err := cli.GetLoadBalancer(context.Background(), "loadbal-kdiekd83747dk")
			require.NotNil(t, err)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.expectedFailure)
		})
	}
}

func TestCreateLoadBalancer(t *testing.T) {
	t.Run("POST v1/loadbalancers", func(t *testing.T) {
		t.Parallel()

		var captured *http.Request

		mockCli := &mock.HTTPClient{}
		mockCli.DoFunc = func(req *http.Request) (*http.Response, error) {
			captured = req
			return &http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(strings.NewReader(`{"id": "loadbal-new", "name": "web", "provisioning_status": "ACTIVE"}`)),
			}, nil
		}

		cli := Client{baseURL: "test.url", client: mockCli}

		out, err := cli.CreateLoadBalancer(context.Background(), &LoadBalancer{
			Name:        "web",
			VIPSubnetID: "subnet-1",
			VIPAddress:  "10.0.0.5",
		})
		require.Nil(t, err)

		assert.Equal(t, "loadbal-new", out.ID)
		assert.Equal(t, "ACTIVE", out.ProvisioningStatus)

		require.NotNil(t, captured)
		assert.Equal(t, http.MethodPost, captured.Method)
		assert.Equal(t, "test.url/v1/loadbalancers", captured.URL.String())
		assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	})

	t.Run("POST v1/loadbalancers - validation failure", func(t *testing.T) {
		t.Parallel()

		cli := Client{
			baseURL: "test.url",
			client:  newAPIMock(`{"error": "a virtual ip address is required"}`, http.StatusBadRequest),
		}

		out, err := cli.CreateLoadBalancer(context.Background(), &LoadBalancer{Name: "web"})
		require.NotNil(t, err)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, ErrBadRequest)
		assert.Contains(t, err.Error(), "virtual ip address")
	})
}

func TestDeleteLoadBalancer(t *testing.T) {
	t.Run("DELETE v1/loadbalancers/:id", func(t *testing.T) {
		t.Parallel()

		cli := Client{
			baseURL: "test.url",
			client:  newAPIMock("", http.StatusAccepted),
		}

		require.Nil(t, cli.DeleteLoadBalancer(context.Background(), "loadbal-kdiekd83747dk"))
	})

	t.Run("DELETE v1/loadbalancers/:id - in use", func(t *testing.T) {
		t.Parallel()

		cli := Client{
			baseURL: "test.url",
			client:  newAPIMock(`{"error": "load balancer has listeners"}`, http.StatusConflict),
		}

		err := cli.DeleteLoadBalancer(context.Background(), "loadbal-kdiekd83747dk")
		require.NotNil(t, err)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Contains(t, err.Error(), "has listeners")
	})
}

func TestGetPool(t *testing.T) {
	t.Run("GET v1/pools/:id", func(t *testing.T) {
		t.Parallel()
		respJSON := `{
			"id": "loadpol-99dmf82k",
			"protocol": "HTTP",
			"lb_algorithm": "ROUND_ROBIN",
			"session_persistence": {"type": "APP_COOKIE", "cookie_name": "JSESSIONID"},
			"members": [
				{"id": "loadmbr-1", "address": "192.0.2.5", "protocol_port": 8080, "weight": 1}
			],
			"healthmonitor": {"id": "loadhmn-1", "type": "HTTP", "delay": 5, "timeout": 3, "max_retries": 4}
		}`

		cli := Client{
			baseURL: "test.url",
			client:  newAPIMock(respJSON, http.StatusOK),
		}

		out, err := cli.GetPool(context.Background(), "loadpol-99dmf82k")
		require.Nil(t, err)

		assert.Equal(t, "ROUND_ROBIN", out.Algorithm)
		require.NotNil(t, out.SessionPersistence)
		assert.Equal(t, "JSESSIONID", out.SessionPersistence.CookieName)
		require.Len(t, out.Members, 1)
		assert.Equal(t, "192.0.2.5", out.Members[0].Address)
		require.NotNil(t, out.HealthMonitor)
		assert.Equal(t, "HTTP", out.HealthMonitor.Type)
	})
}

func TestGetLoadBalancerStatuses(t *testing.T) {
	t.Run("GET v1/loadbalancers/:id/statuses", func(t *testing.T) {
		t.Parallel()
		respJSON := `{
			"id": "loadbal-kdiekd83747dk",
			"provisioning_status": "ACTIVE",
			"operating_status": "DEGRADED",
			"listeners": [
				{
					"id": "loadlsn-03mdkf82m",
					"provisioning_status": "ACTIVE",
					"operating_status": "DEGRADED",
					"l7policies": [],
					"pools": [
						{
							"id": "loadpol-99dmf82k",
							"provisioning_status": "ACTIVE",
							"operating_status": "DEGRADED",
							"members": [
								{"id": "loadmbr-1", "provisioning_status": "ACTIVE", "operating_status": "OFFLINE"}
							]
						}
					]
				}
			],
			"pools": []
		}`

		cli := Client{
			baseURL: "test.url",
			client:  newAPIMock(respJSON, http.StatusOK),
		}

		out, err := cli.GetLoadBalancerStatuses(context.Background(), "loadbal-kdiekd83747dk")
		require.Nil(t, err)

		assert.Equal(t, "DEGRADED", out.OperatingStatus)
		require.Len(t, out.Listeners, 1)
		require.Len(t, out.Listeners[0].Pools, 1)
		require.Len(t, out.Listeners[0].Pools[0].Members, 1)
		assert.Equal(t, "OFFLINE", out.Listeners[0].Pools[0].Members[0].OperatingStatus)
	})
}

func TestGetLoadBalancerStats(t *testing.T) {
	t.Run("GET v1/loadbalancers/:id/stats", func(t *testing.T) {
		t.Parallel()
		respJSON := `{
			"bytes_in": 1024,
			"bytes_out": 4096,
			"active_connections": 2,
			"total_connections": 150,
			"members": {
				"loadmbr-1": {"status": "ONLINE", "health": "UP"}
			}
		}`

		cli := Client{
			baseURL: "test.url",
			client:  newAPIMock(respJSON, http.StatusOK),
		}

		out, err := cli.GetLoadBalancerStats(context.Background(), "loadbal-kdiekd83747dk")
		require.Nil(t, err)

		assert.Equal(t, uint64(1024), out.BytesIn)
		assert.Equal(t, uint64(150), out.TotalConnections)
		assert.Equal(t, "ONLINE", out.Members["loadmbr-1"].Status)
	})
}
