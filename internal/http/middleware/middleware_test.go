package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/herwingx/nexogym-sub000/internal/http/middleware"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository/memory"
)

func newEcho(mw echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		t, ok := middleware.TenantFromCtx(c)
		if !ok {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, t.Name)
	}, mw)
	return e
}

func do(e *echo.Echo, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	store := memory.New()
	store.AddTenant(model.Tenant{Name: "downtown", APIKey: "k1"})
	store.AddTenant(model.Tenant{Name: "closed", APIKey: "k2", Status: "suspended"})
	e := newEcho(middleware.APIKeyMiddleware(store))

	rec := do(e, "X-API-Key", "k1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "downtown", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do(e, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, "X-API-Key", "nope").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, "X-API-Key", "k2").Code)
}

func TestDeviceSecretMiddleware(t *testing.T) {
	store := memory.New()
	store.AddTenant(model.Tenant{Name: "bio", DeviceSecretHash: middleware.HashDeviceSecret("s3cret")})
	e := newEcho(middleware.DeviceSecretMiddleware(store))

	rec := do(e, "X-Device-Secret", "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bio", rec.Body.String())

	rec = do(e, "X-Device-Secret", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"open_door":false,"reason":"missing_tenant_context"}`, rec.Body.String())
}

func TestOperatorTokenMiddleware(t *testing.T) {
	e := newEcho(middleware.OperatorTokenMiddleware("op"))
	assert.Equal(t, http.StatusOK, do(e, "X-Operator-Token", "op").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, "X-Operator-Token", "nope").Code)

	disabled := newEcho(middleware.OperatorTokenMiddleware(""))
	assert.Equal(t, http.StatusUnauthorized, do(disabled, "X-Operator-Token", "").Code)
}

func TestRateLimitMiddleware_NoRedisAllows(t *testing.T) {
	e := newEcho(middleware.RateLimitMiddleware(middleware.RateLimitConfig{DefaultRPS: 1}))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, "", "").Code)
	}
}
