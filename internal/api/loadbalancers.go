package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (r *Router) createLoadBalancer(c echo.Context) error {
	var payload loadBalancerPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	in := payload.toModel()

	create := r.service.CreateLoadBalancer
	if len(in.Listeners) > 0 || len(in.Pools) > 0 {
		create = r.service.CreateLoadBalancerGraph
	}

	out, err := create(c.Request().Context(), in)
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, loadBalancerView(out))
}

func (r *Router) listLoadBalancers(c echo.Context) error {
	lbs, err := r.service.ListLoadBalancers(c.Request().Context())
	if err != nil {
		return r.respondError(c, err)
	}

	out := make([]loadBalancerPayload, 0, len(lbs))
	for _, l := range lbs {
		out = append(out, loadBalancerView(l))
	}

	return c.JSON(http.StatusOK, out)
}

func (r *Router) getLoadBalancer(c echo.Context) error {
	out, err := r.service.GetLoadBalancer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, loadBalancerView(out))
}

func (r *Router) updateLoadBalancer(c echo.Context) error {
	var payload loadBalancerPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.UpdateLoadBalancer(c.Request().Context(), c.Param("id"), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, loadBalancerView(out))
}

func (r *Router) deleteLoadBalancer(c echo.Context) error {
	if err := r.service.DeleteLoadBalancer(c.Request().Context(), c.Param("id")); err != nil {
		return r.respondError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (r *Router) refreshLoadBalancer(c echo.Context) error {
	if err := r.service.RefreshLoadBalancer(c.Request().Context(), c.Param("id")); err != nil {
		return r.respondError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (r *Router) loadBalancerStats(c echo.Context) error {
	out, err := r.service.LoadBalancerStats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (r *Router) loadBalancerStatuses(c echo.Context) error {
	out, err := r.service.Statuses(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
