package http

import (
	"net/http"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/http/middleware"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/service/checkin"
	"github.com/labstack/echo/v4"
)

type issueQRReq struct {
	IdentityID int64 `json:"identity_id" validate:"required,gt=0"`
}

func issueQRHandler(store repository.Store, codec *access.QRTokenCodec, now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req issueQRReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "malformed body")
		}
		if err := c.Validate(&req); err != nil {
			return badRequest(c, "identity_id is required")
		}

		tenant, ok := middleware.TenantFromCtx(c)
		if !ok {
			return writeCheckinError(c, checkin.ErrMissingTenantContext)
		}
		if !access.TenantCapabilities(tenant).Enabled(model.CapQRAccess) {
			return writeCheckinError(c, &checkin.CapabilityDisabledError{Capability: model.CapQRAccess})
		}
		if codec == nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "qr_unavailable"})
		}

		ident, err := store.IdentityByID(c.Request().Context(), tenant.ID, req.IdentityID)
		if err != nil {
			c.Logger().Errorf("qr identity lookup failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": checkin.ReasonInternal})
		}
		if ident == nil {
			return writeCheckinError(c, checkin.ErrIdentityNotFound)
		}

		token, exp, err := codec.Issue(tenant.ID, ident.ID, now())
		if err != nil {
			c.Logger().Errorf("qr sign failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": checkin.ReasonInternal})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"qr_token":   token,
			"expires_at": exp,
		})
	}
}
