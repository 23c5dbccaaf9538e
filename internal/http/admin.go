package http

import (
	"net/http"

	"github.com/herwingx/nexogym-sub000/internal/service/reconcile"
	"github.com/labstack/echo/v4"
)

func reconcileHandler(svc *reconcile.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if svc == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "reconciler_unavailable"})
		}

		sums, err := svc.Run(c.Request().Context())
		if sums == nil {
			sums = []reconcile.TenantSummary{}
		}
		if err != nil {
			c.Logger().Errorf("reconcile failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"error": "reconcile_failed", "tenants": sums})
		}

		return c.JSON(http.StatusOK, map[string]any{"tenants": sums})
	}
}
