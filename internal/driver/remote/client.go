// Package remote implements drivers for backends managed over a REST API,
// in both blocking and asynchronous variants.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
	"go.infratographer.com/loadbalancer-controlplane/internal/reconciler"
)

var remoteClientTimeout = 30 * time.Second

// Client is the http client for a remote backend API.
type Client struct {
	client  *http.Client
	baseURL string
	logger  *zap.SugaredLogger
}

// ClientOption configures a client option.
type ClientOption func(c *Client)

// NewClient returns an http client for a remote backend API.
func NewClient(url string, options ...ClientOption) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: remoteClientTimeout,
		},
		baseURL: url,
		logger:  zap.NewNop().Sugar(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying http client, typically with an
// oauth2 token-refreshing one.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.client = httpClient
	}
}

// request performs one call against the backend. A non-nil out receives the
// decoded JSON response body.
func (c *Client) request(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader

	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}

		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
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
		return ErrRemoteNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrRemoteUnauthorized
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Debugw("remote backend rejected request", "method", method, "path", path, "status", resp.StatusCode, "body", string(msg))

		return fmt.Errorf("%w: %s %s returned %d", ErrRemoteRequest, method, path, resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}

	return nil
}

func loadBalancerPath(id string) string {
	return "/v1/loadbalancers/" + id
}

func listenerPath(lbID, id string) string {
	return loadBalancerPath(lbID) + "/listeners/" + id
}

func poolPath(lbID, id string) string {
	return loadBalancerPath(lbID) + "/pools/" + id
}

func memberPath(lbID, poolID, id string) string {
	return poolPath(lbID, poolID) + "/members/" + id
}

func healthMonitorPath(lbID, poolID string) string {
	return poolPath(lbID, poolID) + "/healthmonitor"
}

func l7PolicyPath(lbID, listenerID, id string) string {
	return listenerPath(lbID, listenerID) + "/l7policies/" + id
}

func l7RulePath(lbID, listenerID, policyID, id string) string {
	return l7PolicyPath(lbID, listenerID, policyID) + "/rules/" + id
}

// WaitForReady polls the backend's load balancer collection until it answers,
// retrying up to retries times with the given interval between attempts.
func (c *Client) WaitForReady(ctx context.Context, retries int, interval time.Duration) error {
	var err error

	for i := 0; i < retries; i++ {
		if err = c.request(ctx, http.MethodGet, "/v1/loadbalancers", nil, nil); err == nil {
			c.logger.Infow("remote backend is ready", "url", c.baseURL)
			return nil
		}

		c.logger.Warnw("remote backend is not ready", "url", c.baseURL, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return err
}

// RootStatus implements reconciler.StatusGetter against the backend's status
// document.
func (c *Client) RootStatus(ctx context.Context, loadBalancerID string) (*reconciler.RootStatus, error) {
	var status loadBalancerStatus

	err := c.request(ctx, http.MethodGet, loadBalancerPath(loadBalancerID), nil, &status)

	switch {
	case errors.Is(err, ErrRemoteNotFound):
		return nil, fmt.Errorf("%w: loadbalancer %s", reconciler.ErrStatusGone, loadBalancerID)
	case err != nil:
		return nil, err
	}

	return &reconciler.RootStatus{
		ProvisioningStatus: lb.ProvisioningStatus(status.ProvisioningStatus),
		VIPAddress:         status.VIP.IPAddress,
		VIPPortID:          status.VIP.PortID,
	}, nil
}
