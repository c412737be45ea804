// Package client is a Go client for the load balancer control plane API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const apiVersion = "v1"

// HTTPClient is the http client surface the API client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a control plane endpoint.
type Client struct {
	client  HTTPClient
	baseURL string
}

// Option configures a Client.
type Option func(c *Client)

// WithHTTPClient injects a specific http client, typically an oauth2
// token-refreshing one.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.client = httpClient
	}
}

// New returns a control plane API client for the given base url.
func New(url string, opts ...Option) *Client {
	retryCli := retryablehttp.NewClient()
	retryCli.RetryMax = 3
	retryCli.HTTPClient.Timeout = time.Second * 5
	retryCli.Logger = nil

	c := &Client{
		baseURL: url,
		client:  retryCli.StandardClient(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// do performs one API call and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader

	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		body = bytes.NewReader(buf)
	}

	url := fmt.Sprintf("%s/%s%s", c.baseURL, apiVersion, path)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, readError(resp.Body))
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, readError(resp.Body))
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	return nil
}

func readError(r io.Reader) string {
	var e struct {
		Error string `json:"error"`
	}

	if err := json.NewDecoder(io.LimitReader(r, 512)).Decode(&e); err != nil || e.Error == "" {
		return "no detail"
	}

	return e.Error
}

// CreateLoadBalancer creates a load balancer. A payload carrying nested
// listeners or pools creates the whole tree in one call.
func (c *Client) CreateLoadBalancer(ctx context.Context, in *LoadBalancer) (*LoadBalancer, error) {
	var out LoadBalancer

	if err := c.do(ctx, http.MethodPost, "/loadbalancers", in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetLoadBalancer returns a load balancer by id.
func (c *Client) GetLoadBalancer(ctx context.Context, id string) (*LoadBalancer, error) {
	var out LoadBalancer

	if err := c.do(ctx, http.MethodGet, "/loadbalancers/"+id, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// ListLoadBalancers returns all load balancers.
func (c *Client) ListLoadBalancers(ctx context.Context) ([]LoadBalancer, error) {
	var out []LoadBalancer

	if err := c.do(ctx, http.MethodGet, "/loadbalancers", nil, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// UpdateLoadBalancer updates the mutable fields of a load balancer.
func (c *Client) UpdateLoadBalancer(ctx context.Context, id string, in *LoadBalancer) (*LoadBalancer, error) {
	var out LoadBalancer

	if err := c.do(ctx, http.MethodPut, "/loadbalancers/"+id, in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteLoadBalancer deletes an empty load balancer.
func (c *Client) DeleteLoadBalancer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/loadbalancers/"+id, nil, nil)
}

// RefreshLoadBalancer asks the control plane to re-realize the whole
// deployment from its stored state.
func (c *Client) RefreshLoadBalancer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/loadbalancers/"+id+"/refresh", nil, nil)
}

// GetLoadBalancerStats returns a load balancer's traffic counters.
func (c *Client) GetLoadBalancerStats(ctx context.Context, id string) (*StatsReport, error) {
	var out StatsReport

	if err := c.do(ctx, http.MethodGet, "/loadbalancers/"+id+"/stats", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetLoadBalancerStatuses returns the aggregated status tree of a load
// balancer.
func (c *Client) GetLoadBalancerStatuses(ctx context.Context, id string) (*StatusTree, error) {
	var out StatusTree

	if err := c.do(ctx, http.MethodGet, "/loadbalancers/"+id+"/statuses", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// CreateListener creates a listener on a load balancer.
func (c *Client) CreateListener(ctx context.Context, in *Listener) (*Listener, error) {
	var out Listener

	if err := c.do(ctx, http.MethodPost, "/listeners", in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetListener returns a listener by id.
func (c *Client) GetListener(ctx context.Context, id string) (*Listener, error) {
	var out Listener

	if err := c.do(ctx, http.MethodGet, "/listeners/"+id, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateListener updates the mutable fields of a listener.
func (c *Client) UpdateListener(ctx context.Context, id string, in *Listener) (*Listener, error) {
	var out Listener

	if err := c.do(ctx, http.MethodPut, "/listeners/"+id, in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteListener deletes a listener.
func (c *Client) DeleteListener(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/listeners/"+id, nil, nil)
}

// CreatePool creates a pool, optionally attached as a listener's default.
func (c *Client) CreatePool(ctx context.Context, in *Pool) (*Pool, error) {
	var out Pool

	if err := c.do(ctx, http.MethodPost, "/pools", in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetPool returns a pool by id.
func (c *Client) GetPool(ctx context.Context, id string) (*Pool, error) {
	var out Pool

	if err := c.do(ctx, http.MethodGet, "/pools/"+id, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdatePool updates the mutable fields of a pool.
func (c *Client) UpdatePool(ctx context.Context, id string, in *Pool) (*Pool, error) {
	var out Pool

	if err := c.do(ctx, http.MethodPut, "/pools/"+id, in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeletePool deletes a pool that is no longer referenced.
func (c *Client) DeletePool(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/pools/"+id, nil, nil)
}

// CreateMember adds a member to a pool.
func (c *Client) CreateMember(ctx context.Context, in *Member) (*Member, error) {
	var out Member

	if err := c.do(ctx, http.MethodPost, "/members", in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetMember returns a member by id.
func (c *Client) GetMember(ctx context.Context, id string) (*Member, error) {
	var out Member

	if err := c.do(ctx, http.MethodGet, "/members/"+id, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateMember updates the mutable fields of a member.
func (c *Client) UpdateMember(ctx context.Context, id string, in *Member) (*Member, error) {
	var out Member

	if err := c.do(ctx, http.MethodPut, "/members/"+id, in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteMember removes a member from its pool.
func (c *Client) DeleteMember(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/members/"+id, nil, nil)
}

// CreateHealthMonitor attaches a health monitor to a pool.
func (c *Client) CreateHealthMonitor(ctx context.Context, in *HealthMonitor) (*HealthMonitor, error) {
	var out HealthMonitor

	if err := c.do(ctx, http.MethodPost, "/healthmonitors", in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetHealthMonitor returns a health monitor by id.
func (c *Client) GetHealthMonitor(ctx context.Context, id string) (*HealthMonitor, error) {
	var out HealthMonitor

	if err := c.do(ctx, http.MethodGet, "/healthmonitors/"+id, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateHealthMonitor updates the mutable fields of a health monitor.
func (c *Client) UpdateHealthMonitor(ctx context.Context, id string, in *HealthMonitor) (*HealthMonitor, error) {
	var out HealthMonitor

	if err := c.do(ctx, http.MethodPut, "/healthmonitors/"+id, in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteHealthMonitor removes a pool's health monitor.
func (c *Client) DeleteHealthMonitor(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/healthmonitors/"+id, nil, nil)
}

// CreateL7Policy adds a routing policy to a listener.
func (c *Client) CreateL7Policy(ctx context.Context, in *L7Policy) (*L7Policy, error) {
	var out L7Policy

	if err := c.do(ctx, http.MethodPost, "/l7policies", in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetL7Policy returns an l7 policy by id.
func (c *Client) GetL7Policy(ctx context.Context, id string) (*L7Policy, error) {
	var out L7Policy

	if err := c.do(ctx, http.MethodGet, "/l7policies/"+id, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateL7Policy updates the mutable fields of an l7 policy.
func (c *Client) UpdateL7Policy(ctx context.Context, id string, in *L7Policy) (*L7Policy, error) {
	var out L7Policy

	if err := c.do(ctx, http.MethodPut, "/l7policies/"+id, in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteL7Policy deletes an l7 policy and its rules.
func (c *Client) DeleteL7Policy(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/l7policies/"+id, nil, nil)
}

// CreateL7Rule adds a match condition to an l7 policy.
func (c *Client) CreateL7Rule(ctx context.Context, in *L7Rule) (*L7Rule, error) {
	var out L7Rule

	if err := c.do(ctx, http.MethodPost, "/l7rules", in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetL7Rule returns an l7 rule by id.
func (c *Client) GetL7Rule(ctx context.Context, id string) (*L7Rule, error) {
	var out L7Rule

	if err := c.do(ctx, http.MethodGet, "/l7rules/"+id, nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateL7Rule updates the mutable fields of an l7 rule.
func (c *Client) UpdateL7Rule(ctx context.Context, id string, in *L7Rule) (*L7Rule, error) {
	var out L7Rule

	if err := c.do(ctx, http.MethodPut, "/l7rules/"+id, in, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DeleteL7Rule removes a match condition from its policy.
func (c *Client) DeleteL7Rule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/l7rules/"+id, nil, nil)
}
