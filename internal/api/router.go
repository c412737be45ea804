// Package api exposes the load balancer lifecycle over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"go.infratographer.com/loadbalancer-controlplane/internal/dispatcher"
	"go.infratographer.com/loadbalancer-controlplane/internal/lb"
)

// Service is what the router needs from the dispatch layer.
type Service interface {
	CreateLoadBalancer(ctx context.Context, in *lb.LoadBalancer) (*lb.LoadBalancer, error)
	CreateLoadBalancerGraph(ctx context.Context, in *lb.LoadBalancer) (*lb.LoadBalancer, error)
	GetLoadBalancer(ctx context.Context, id string) (*lb.LoadBalancer, error)
	ListLoadBalancers(ctx context.Context) ([]*lb.LoadBalancer, error)
	UpdateLoadBalancer(ctx context.Context, id string, in *lb.LoadBalancer) (*lb.LoadBalancer, error)
	DeleteLoadBalancer(ctx context.Context, id string) error
	RefreshLoadBalancer(ctx context.Context, id string) error
	LoadBalancerStats(ctx context.Context, id string) (*lb.StatsReport, error)
	Statuses(ctx context.Context, id string) (*dispatcher.StatusTree, error)

	CreateListener(ctx context.Context, in *lb.Listener) (*lb.Listener, error)
	GetListener(ctx context.Context, id string) (*lb.Listener, error)
	UpdateListener(ctx context.Context, id string, in *lb.Listener) (*lb.Listener, error)
	DeleteListener(ctx context.Context, id string) error

	CreatePool(ctx context.Context, in *lb.Pool, listenerID string) (*lb.Pool, error)
	GetPool(ctx context.Context, id string) (*lb.Pool, error)
	UpdatePool(ctx context.Context, id string, in *lb.Pool) (*lb.Pool, error)
	DeletePool(ctx context.Context, id string) error

	CreateMember(ctx context.Context, in *lb.Member) (*lb.Member, error)
	GetMember(ctx context.Context, id string) (*lb.Member, error)
	UpdateMember(ctx context.Context, id string, in *lb.Member) (*lb.Member, error)
	DeleteMember(ctx context.Context, id string) error

	CreateHealthMonitor(ctx context.Context, in *lb.HealthMonitor) (*lb.HealthMonitor, error)
	GetHealthMonitor(ctx context.Context, id string) (*lb.HealthMonitor, error)
	UpdateHealthMonitor(ctx context.Context, id string, in *lb.HealthMonitor) (*lb.HealthMonitor, error)
	DeleteHealthMonitor(ctx context.Context, id string) error

	CreateL7Policy(ctx context.Context, in *lb.L7Policy) (*lb.L7Policy, error)
	GetL7Policy(ctx context.Context, id string) (*lb.L7Policy, error)
	UpdateL7Policy(ctx context.Context, id string, in *lb.L7Policy) (*lb.L7Policy, error)
	DeleteL7Policy(ctx context.Context, id string) error

	CreateL7Rule(ctx context.Context, in *lb.L7Rule) (*lb.L7Rule, error)
	GetL7Rule(ctx context.Context, id string) (*lb.L7Rule, error)
	UpdateL7Rule(ctx context.Context, id string, in *lb.L7Rule) (*lb.L7Rule, error)
	DeleteL7Rule(ctx context.Context, id string) error
}

// Router wires the lifecycle endpoints onto an echo instance.
type Router struct {
	service Service
	logger  *zap.SugaredLogger
}

// RouterOption configures a Router.
type RouterOption func(r *Router)

// WithRouterLogger sets the router logger.
func WithRouterLogger(logger *zap.SugaredLogger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter builds a Router over the given service.
func NewRouter(service Service, opts ...RouterOption) *Router {
	r := &Router{
		service: service,
		logger:  zap.NewNop().Sugar(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Routes registers all endpoints under the given group.
func (r *Router) Routes(g *echo.Group) {
	g.POST("/loadbalancers", r.createLoadBalancer)
	g.GET("/loadbalancers", r.listLoadBalancers)
	g.GET("/loadbalancers/:id", r.getLoadBalancer)
	g.PUT("/loadbalancers/:id", r.updateLoadBalancer)
	g.DELETE("/loadbalancers/:id", r.deleteLoadBalancer)
	g.POST("/loadbalancers/:id/refresh", r.refreshLoadBalancer)
	g.GET("/loadbalancers/:id/stats", r.loadBalancerStats)
	g.GET("/loadbalancers/:id/statuses", r.loadBalancerStatuses)

	g.POST("/listeners", r.createListener)
	g.GET("/listeners/:id", r.getListener)
	g.PUT("/listeners/:id", r.updateListener)
	g.DELETE("/listeners/:id", r.deleteListener)

	g.POST("/pools", r.createPool)
	g.GET("/pools/:id", r.getPool)
	g.PUT("/pools/:id", r.updatePool)
	g.DELETE("/pools/:id", r.deletePool)

	g.POST("/members", r.createMember)
	g.GET("/members/:id", r.getMember)
	g.PUT("/members/:id", r.updateMember)
	g.DELETE("/members/:id", r.deleteMember)

	g.POST("/healthmonitors", r.createHealthMonitor)
	g.GET("/healthmonitors/:id", r.getHealthMonitor)
	g.PUT("/healthmonitors/:id", r.updateHealthMonitor)
	g.DELETE("/healthmonitors/:id", r.deleteHealthMonitor)

	g.POST("/l7policies", r.createL7Policy)
	g.GET("/l7policies/:id", r.getL7Policy)
	g.PUT("/l7policies/:id", r.updateL7Policy)
	g.DELETE("/l7policies/:id", r.deleteL7Policy)

	g.POST("/l7rules", r.createL7Rule)
	g.GET("/l7rules/:id", r.getL7Rule)
	g.PUT("/l7rules/:id", r.updateL7Rule)
	g.DELETE("/l7rules/:id", r.deleteL7Rule)
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError translates the lifecycle sentinel errors into HTTP statuses.
func (r *Router) respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, lb.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lb.ErrConflict), errors.Is(err, lb.ErrEntityInUse):
		status = http.StatusConflict
	case errors.Is(err, lb.ErrValidation),
		errors.Is(err, lb.ErrUnknownProvider),
		errors.Is(err, lb.ErrProviderFlavorConflict),
		errors.Is(err, lb.ErrContainerNotFound),
		errors.Is(err, lb.ErrContainerInvalid):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		r.logger.Errorw("request failed", "path", c.Path(), "error", err)
	}

	return c.JSON(status, errorResponse{Error: err.Error()})
}
