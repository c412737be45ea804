package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.infratographer.com/loadbalancer-controlplane/internal/driver"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
	"go.infratographer.com/loadbalancer-controlplane/internal/reconciler"
)

type successCall struct {
	obj     driver.Object
	deleted bool
}

type vipCall struct {
	loadBalancerID string
	address        string
	portID         string
}

// completionLog records completion callbacks for assertions.
type completionLog struct {
	mu        sync.Mutex
	successes []successCall
	failures  []driver.Object
	vips      []vipCall
}

func (c *completionLog) CompleteSuccess(_ context.Context, obj driver.Object, deleted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.successes = append(c.successes, successCall{obj: obj, deleted: deleted})

	return nil
}

func (c *completionLog) CompleteFailure(_ context.Context, obj driver.Object) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures = append(c.failures, obj)

	return nil
}

func (c *completionLog) SetVIPAddress(_ context.Context, loadBalancerID, address, portID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.vips = append(c.vips, vipCall{loadBalancerID: loadBalancerID, address: address, portID: portID})

	return nil
}

type trackCall struct {
	obj  driver.Object
	opts reconciler.TrackOptions
}

type fakeTracker struct {
	calls []trackCall
}

func (f *fakeTracker) Track(obj driver.Object, opts reconciler.TrackOptions) string {
	f.calls = append(f.calls, trackCall{obj: obj, opts: opts})

	return "task-1"
}

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

// recordingServer captures every request and answers with a fixed handler
// per method+path, defaulting to 200 with an empty body.
func recordingServer(t *testing.T, handlers map[string]http.HandlerFunc) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []recordedRequest
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, 0)

		if r.Body != nil {
			buf := make([]byte, 4096)
			n, _ := r.Body.Read(buf)
			body = buf[:n]
		}

		mu.Lock()
		requests = append(requests, recordedRequest{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()

		if h, ok := handlers[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))

	t.Cleanup(srv.Close)

	return srv, &requests
}

func testTree() *lb.LoadBalancer {
	return &lb.LoadBalancer{
		ID:           "lb-1",
		Name:         "web",
		VIPAddress:   "10.0.0.10",
		VIPSubnetID:  "subnet-1",
		AdminStateUp: true,
	}
}

func TestLoadBalancerCreateSync(t *testing.T) {
	srv, requests := recordingServer(t, nil)

	completions := &completionLog{}
	d := NewDriver("edge", NewClient(srv.URL), completions)

	err := d.LoadBalancer().Create(context.Background(), testTree())
	require.NoError(t, err)

	require.Len(t, *requests, 1)
	assert.Equal(t, http.MethodPost, (*requests)[0].method)
	assert.Equal(t, "/v1/loadbalancers", (*requests)[0].path)

	var payload loadBalancerPayload
	require.NoError(t, json.Unmarshal((*requests)[0].body, &payload))
	assert.Equal(t, "lb-1", payload.ID)
	assert.Equal(t, "10.0.0.10", payload.VIPAddress)

	require.Len(t, completions.successes, 1)
	assert.Equal(t, lb.ResourceLoadBalancer, completions.successes[0].obj.Type)
	assert.Equal(t, "lb-1", completions.successes[0].obj.ID)
	assert.False(t, completions.successes[0].deleted)
	assert.Empty(t, completions.failures)
}

func TestCreateAndAllocateVIPSync(t *testing.T) {
	srv, _ := recordingServer(t, map[string]http.HandlerFunc{
		"POST /v1/loadbalancers": func(w http.ResponseWriter, _ *http.Request) {
			var status loadBalancerStatus
			status.ID = "lb-1"
			status.ProvisioningStatus = string(lb.StatusActive)
			status.VIP.IPAddress = "203.0.113.40"
			status.VIP.PortID = "port-40"

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(status)
		},
	})

	completions := &completionLog{}
	d := NewDriver("edge", NewClient(srv.URL), completions)

	tree := testTree()
	tree.VIPAddress = ""

	require.NoError(t, d.LoadBalancer().(driver.VIPAllocator).CreateAndAllocateVIP(context.Background(), tree))

	require.Len(t, completions.vips, 1)
	assert.Equal(t, "lb-1", completions.vips[0].loadBalancerID)
	assert.Equal(t, "203.0.113.40", completions.vips[0].address)
	assert.Equal(t, "port-40", completions.vips[0].portID)

	require.Len(t, completions.successes, 1)
	assert.False(t, completions.successes[0].deleted)
}

func TestCreateAndAllocateVIPAsync(t *testing.T) {
	srv, _ := recordingServer(t, nil)

	completions := &completionLog{}
	tracker := &fakeTracker{}
	d := NewDriver("edge", NewClient(srv.URL), completions, WithTracker(tracker))

	require.NoError(t, d.LoadBalancer().(driver.VIPAllocator).CreateAndAllocateVIP(context.Background(), testTree()))

	// the settled status document carries the address later, so nothing is
	// confirmed in line
	assert.Empty(t, completions.successes)
	assert.Empty(t, completions.vips)

	require.Len(t, tracker.calls, 1)
	assert.True(t, tracker.calls[0].opts.CopyVIP)
	assert.False(t, tracker.calls[0].opts.Delete)
	assert.Equal(t, "lb-1", tracker.calls[0].obj.RootID)
}

func TestBackendRejectionFails(t *testing.T) {
	srv, _ := recordingServer(t, map[string]http.HandlerFunc{
		"POST /v1/loadbalancers": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})

	completions := &completionLog{}
	d := NewDriver("edge", NewClient(srv.URL), completions)

	err := d.LoadBalancer().Create(context.Background(), testTree())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteRequest)

	require.Len(t, completions.failures, 1)
	assert.Equal(t, lb.ResourceLoadBalancer, completions.failures[0].Type)
	assert.Empty(t, completions.successes)
}

func TestDeleteToleratesGoneBackend(t *testing.T) {
	srv, _ := recordingServer(t, map[string]http.HandlerFunc{
		"DELETE /v1/loadbalancers/lb-1": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	})

	completions := &completionLog{}
	d := NewDriver("edge", NewClient(srv.URL), completions)

	require.NoError(t, d.LoadBalancer().Delete(context.Background(), testTree()))

	require.Len(t, completions.successes, 1)
	assert.True(t, completions.successes[0].deleted)
	assert.Empty(t, completions.failures)
}

func TestChildResourcePaths(t *testing.T) {
	srv, requests := recordingServer(t, nil)

	completions := &completionLog{}
	d := NewDriver("edge", NewClient(srv.URL), completions)

	tree := testTree()
	tree.Listeners = []*lb.Listener{
		{
			ID:             "li-1",
			LoadBalancerID: "lb-1",
			Protocol:       "HTTP",
			ProtocolPort:   80,
			L7Policies: []*lb.L7Policy{
				{ID: "pol-1", ListenerID: "li-1", Action: lb.L7ActionReject},
			},
		},
	}

	ctx := context.Background()

	require.NoError(t, d.Listener().Create(ctx, tree, tree.Listeners[0]))
	require.NoError(t, d.Member().Delete(ctx, tree, &lb.Member{ID: "m-1", PoolID: "p-1"}))
	require.NoError(t, d.HealthMonitor().Update(ctx, tree, nil, &lb.HealthMonitor{ID: "hm-1", PoolID: "p-1", Type: lb.MonitorPing}))
	require.NoError(t, d.L7Rule().Create(ctx, tree, &lb.L7Rule{ID: "r-1", L7PolicyID: "pol-1", Type: lb.L7RulePath, CompareType: lb.L7CompareStartsWith, Value: "/api"}))

	require.Len(t, *requests, 4)
	assert.Equal(t, "/v1/loadbalancers/lb-1/listeners", (*requests)[0].path)
	assert.Equal(t, "/v1/loadbalancers/lb-1/pools/p-1/members/m-1", (*requests)[1].path)
	assert.Equal(t, "/v1/loadbalancers/lb-1/pools/p-1/healthmonitor", (*requests)[2].path)
	assert.Equal(t, "/v1/loadbalancers/lb-1/listeners/li-1/l7policies/pol-1/rules", (*requests)[3].path)

	require.Len(t, completions.successes, 4)
	assert.Equal(t, lb.ResourceListener, completions.successes[0].obj.Type)
	assert.True(t, completions.successes[1].deleted)
	assert.Equal(t, "lb-1", completions.successes[3].obj.RootID)
}

func TestAsyncOperationsTrackInsteadOfCompleting(t *testing.T) {
	srv, _ := recordingServer(t, nil)

	completions := &completionLog{}
	tracker := &fakeTracker{}
	d := NewDriver("edge", NewClient(srv.URL), completions, WithTracker(tracker))

	tree := testTree()
	l := &lb.Listener{ID: "li-1", LoadBalancerID: "lb-1", Protocol: "TCP", ProtocolPort: 5432}

	require.NoError(t, d.Listener().Create(context.Background(), tree, l))
	require.NoError(t, d.Listener().Delete(context.Background(), tree, l))

	assert.Empty(t, completions.successes)
	require.Len(t, tracker.calls, 2)
	assert.Equal(t, lb.ResourceListener, tracker.calls[0].obj.Type)
	assert.False(t, tracker.calls[0].opts.Delete)
	assert.True(t, tracker.calls[1].opts.Delete)
}

func TestAsyncBackendFailureStillCompletesFailure(t *testing.T) {
	srv, _ := recordingServer(t, map[string]http.HandlerFunc{
		"POST /v1/loadbalancers": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		},
	})

	completions := &completionLog{}
	tracker := &fakeTracker{}
	d := NewDriver("edge", NewClient(srv.URL), completions, WithTracker(tracker))

	err := d.LoadBalancer().Create(context.Background(), testTree())
	require.Error(t, err)

	// a rejected request never reaches the reconciler
	assert.Empty(t, tracker.calls)
	require.Len(t, completions.failures, 1)
}

func TestStats(t *testing.T) {
	srv, _ := recordingServer(t, map[string]http.HandlerFunc{
		"GET /v1/loadbalancers/lb-1/stats": func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(lb.StatsReport{
				Stats: lb.Stats{
					BytesIn:           100,
					BytesOut:          200,
					ActiveConnections: 3,
					TotalConnections:  40,
				},
			})
		},
	})

	d := NewDriver("edge", NewClient(srv.URL), &completionLog{})

	report, err := d.LoadBalancer().(driver.StatsProvider).Stats(context.Background(), testTree())
	require.NoError(t, err)
	assert.Equal(t, uint64(100), report.BytesIn)
	assert.Equal(t, uint64(40), report.TotalConnections)
}

func TestRootStatus(t *testing.T) {
	srv, _ := recordingServer(t, map[string]http.HandlerFunc{
		"GET /v1/loadbalancers/lb-1": func(w http.ResponseWriter, _ *http.Request) {
			var status loadBalancerStatus
			status.ID = "lb-1"
			status.ProvisioningStatus = string(lb.StatusActive)
			status.VIP.IPAddress = "203.0.113.40"
			status.VIP.PortID = "port-40"

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(status)
		},
	})

	client := NewClient(srv.URL)

	status, err := client.RootStatus(context.Background(), "lb-1")
	require.NoError(t, err)
	assert.Equal(t, lb.StatusActive, status.ProvisioningStatus)
	assert.Equal(t, "203.0.113.40", status.VIPAddress)
	assert.Equal(t, "port-40", status.VIPPortID)

	_, err = client.RootStatus(context.Background(), "lb-gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, reconciler.ErrStatusGone)
}

func TestWaitForReady(t *testing.T) {
	var calls int

	srv, _ := recordingServer(t, map[string]http.HandlerFunc{
		"GET /v1/loadbalancers": func(w http.ResponseWriter, _ *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}

			w.WriteHeader(http.StatusOK)
		},
	})

	client := NewClient(srv.URL)

	require.NoError(t, client.WaitForReady(context.Background(), 5, time.Millisecond))
	assert.Equal(t, 3, calls)
}

func TestWaitForReadyExhaustsRetries(t *testing.T) {
	srv, _ := recordingServer(t, map[string]http.HandlerFunc{
		"GET /v1/loadbalancers": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	})

	client := NewClient(srv.URL)

	err := client.WaitForReady(context.Background(), 2, time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRemoteRequest)
}
