package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/http/middleware"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	echo "github.com/labstack/echo/v4"
)

func listEntriesHandler(chRepo repository.CHEntriesRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenant, ok := middleware.TenantFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		f := repository.EntryFilter{Limit: 50}
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				f.Limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				f.Offset = n
			}
		}
		if v := c.QueryParam("identity_id"); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				f.IdentityID = n
			}
		}
		for param, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
			raw := strings.TrimSpace(c.QueryParam(param))
			if raw == "" {
				continue
			}
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return badRequest(c, param+" must be RFC3339")
			}
			*dst = ts
		}

		rows, err := chRepo.ListByTenant(c.Request().Context(), tenant.ID, f)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"count":   len(rows),
			"results": rows,
		})
	}
}
