package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/herwingx/nexogym-sub000/internal/model"
	echo "github.com/labstack/echo/v4"
)

const (
	ctxTenant   = "tenant"
	ctxTenantID = "tenant_id"
)

// TenantLookup resolves the credentials a request carries.
type TenantLookup interface {
	TenantByAPIKey(ctx context.Context, apiKey string) (*model.Tenant, error)
	TenantByDeviceSecretHash(ctx context.Context, hash string) (*model.Tenant, error)
}

// TenantFromCtx extracts the tenant set by one of the auth middlewares.
func TenantFromCtx(c echo.Context) (*model.Tenant, bool) {
	t, ok := c.Get(ctxTenant).(*model.Tenant)
	return t, ok && t != nil
}

func setTenant(c echo.Context, t *model.Tenant) {
	c.Set(ctxTenant, t)
	c.Set(ctxTenantID, t.ID)
}

// HashDeviceSecret is how device secrets are stored.
func HashDeviceSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// APIKeyMiddleware authenticates requests using X-API-Key header.
// On success it stores the tenant in context; suspended tenants are rejected.
func APIKeyMiddleware(tenants TenantLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			t, err := tenants.TenantByAPIKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if !t.Active() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			setTenant(c, t)
			return next(c)
		}
	}
}

// DeviceSecretMiddleware authenticates hardware readers by X-Device-Secret. Failures
// answer in the door-decision shape so a reader always gets open_door=false.
func DeviceSecretMiddleware(tenants TenantLookup) echo.MiddlewareFunc {
	deny := func(c echo.Context, status int) error {
		return c.JSON(status, map[string]any{"open_door": false, "reason": "missing_tenant_context"})
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			secret := strings.TrimSpace(c.Request().Header.Get("X-Device-Secret"))
			if secret == "" {
				return deny(c, http.StatusUnauthorized)
			}
			t, err := tenants.TenantByDeviceSecretHash(c.Request().Context(), HashDeviceSecret(secret))
			if err != nil {
				return deny(c, http.StatusInternalServerError)
			}
			if !t.Active() {
				return deny(c, http.StatusUnauthorized)
			}
			setTenant(c, t)
			return next(c)
		}
	}
}

// OperatorTokenMiddleware guards operator endpoints. An empty configured token
// disables them.
func OperatorTokenMiddleware(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := strings.TrimSpace(c.Request().Header.Get("X-Operator-Token"))
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}
