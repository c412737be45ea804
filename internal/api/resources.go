package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (r *Router) createListener(c echo.Context) error {
	var payload listenerPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.CreateListener(c.Request().Context(), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, listenerView(out))
}

func (r *Router) getListener(c echo.Context) error {
	out, err := r.service.GetListener(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, listenerView(out))
}

func (r *Router) updateListener(c echo.Context) error {
	var payload listenerPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.UpdateListener(c.Request().Context(), c.Param("id"), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, listenerView(out))
}

func (r *Router) deleteListener(c echo.Context) error {
	if err := r.service.DeleteListener(c.Request().Context(), c.Param("id")); err != nil {
		return r.respondError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (r *Router) createPool(c echo.Context) error {
	var payload poolPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.CreatePool(c.Request().Context(), payload.toModel(), payload.ListenerID)
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, poolView(out))
}

func (r *Router) getPool(c echo.Context) error {
	out, err := r.service.GetPool(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, poolView(out))
}

func (r *Router) updatePool(c echo.Context) error {
	var payload poolPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.UpdatePool(c.Request().Context(), c.Param("id"), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, poolView(out))
}

func (r *Router) deletePool(c echo.Context) error {
	if err := r.service.DeletePool(c.Request().Context(), c.Param("id")); err != nil {
		return r.respondError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (r *Router) createMember(c echo.Context) error {
	var payload memberPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.CreateMember(c.Request().Context(), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, memberView(out))
}

func (r *Router) getMember(c echo.Context) error {
	out, err := r.service.GetMember(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, memberView(out))
}

func (r *Router) updateMember(c echo.Context) error {
	var payload memberPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.UpdateMember(c.Request().Context(), c.Param("id"), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, memberView(out))
}

func (r *Router) deleteMember(c echo.Context) error {
	if err := r.service.DeleteMember(c.Request().Context(), c.Param("id")); err != nil {
		return r.respondError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (r *Router) createHealthMonitor(c echo.Context) error {
	var payload healthMonitorPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.CreateHealthMonitor(c.Request().Context(), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, healthMonitorView(out))
}

func (r *Router) getHealthMonitor(c echo.Context) error {
	out, err := r.service.GetHealthMonitor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, healthMonitorView(out))
}

func (r *Router) updateHealthMonitor(c echo.Context) error {
	var payload healthMonitorPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.UpdateHealthMonitor(c.Request().Context(), c.Param("id"), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, healthMonitorView(out))
}

func (r *Router) deleteHealthMonitor(c echo.Context) error {
	if err := r.service.DeleteHealthMonitor(c.Request().Context(), c.Param("id")); err != nil {
		return r.respondError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (r *Router) createL7Policy(c echo.Context) error {
	var payload l7PolicyPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.CreateL7Policy(c.Request().Context(), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, l7PolicyView(out))
}

func (r *Router) getL7Policy(c echo.Context) error {
	out, err := r.service.GetL7Policy(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, l7PolicyView(out))
}

func (r *Router) updateL7Policy(c echo.Context) error {
	var payload l7PolicyPayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.UpdateL7Policy(c.Request().Context(), c.Param("id"), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, l7PolicyView(out))
}

func (r *Router) deleteL7Policy(c echo.Context) error {
	if err := r.service.DeleteL7Policy(c.Request().Context(), c.Param("id")); err != nil {
		return r.respondError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}

func (r *Router) createL7Rule(c echo.Context) error {
	var payload l7RulePayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.CreateL7Rule(c.Request().Context(), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, l7RuleView(out))
}

func (r *Router) getL7Rule(c echo.Context) error {
	out, err := r.service.GetL7Rule(c.Request().Context(), c.Param("id"))
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, l7RuleView(out))
}

func (r *Router) updateL7Rule(c echo.Context) error {
	var payload l7RulePayload

	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	out, err := r.service.UpdateL7Rule(c.Request().Context(), c.Param("id"), payload.toModel())
	if err != nil {
		return r.respondError(c, err)
	}

	return c.JSON(http.StatusOK, l7RuleView(out))
}

func (r *Router) deleteL7Rule(c echo.Context) error {
	if err := r.service.DeleteL7Rule(c.Request().Context(), c.Param("id")); err != nil {
		return r.respondError(c, err)
	}

	return c.NoContent(http.StatusAccepted)
}
