package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/herwingx/nexogym-sub000/internal/service/checkin"
	"github.com/labstack/echo/v4"
)

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad_request", "description": msg})
}

// writeCheckinError maps orchestrator failures to status codes. Internal failures get a
// generic body.
func writeCheckinError(c echo.Context, err error) error {
	reason := checkin.ReasonCode(err)
	body := map[string]any{"error": reason}

	switch reason {
	case checkin.ReasonMissingTenantContext, checkin.ReasonInvalidQRToken:
		return c.JSON(http.StatusUnauthorized, body)
	case checkin.ReasonCapabilityDisabled:
		var ce *checkin.CapabilityDisabledError
		if errors.As(err, &ce) {
			body["capability"] = string(ce.Capability)
		}
		return c.JSON(http.StatusForbidden, body)
	case checkin.ReasonIdentityNotFound:
		return c.JSON(http.StatusNotFound, body)
	case checkin.ReasonNoActiveEntitlement, checkin.ReasonOutsideAllowedWindow, checkin.ReasonActorNotStaff:
		return c.JSON(http.StatusForbidden, body)
	case checkin.ReasonJustification:
		return c.JSON(http.StatusBadRequest, body)
	case checkin.ReasonReplayBlocked:
		if remaining, ok := checkin.RetryAfter(err); ok {
			secs := int(math.Ceil(remaining.Seconds()))
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			body["remaining_seconds"] = secs
		}
		return c.JSON(http.StatusTooManyRequests, body)
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": checkin.ReasonInternal})
	}
}
