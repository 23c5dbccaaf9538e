package http

import (
	"net/http"

	"github.com/herwingx/nexogym-sub000/internal/http/middleware"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/service/checkin"
	"github.com/labstack/echo/v4"
)

type checkinReq struct {
	IdentityID int64  `json:"identity_id" validate:"omitempty,gt=0"`
	QRToken    string `json:"qr_token"    validate:"omitempty,max=2048"`
	Method     string `json:"method"      validate:"omitempty,oneof=manual qr biometric"`
}

type nextRewardResp struct {
	ThresholdDays int    `json:"threshold_days"`
	Label         string `json:"label"`
}

type checkinResp struct {
	EntryID        string          `json:"entry_id"`
	Credited       bool            `json:"credited"`
	NewStreak      int             `json:"new_streak"`
	RewardUnlocked bool            `json:"reward_unlocked"`
	RewardLabel    string          `json:"reward_label"`
	NextRewardAt   *nextRewardResp `json:"next_reward_at,omitempty"`
}

func toCheckinResp(r *checkin.Result) checkinResp {
	out := checkinResp{
		EntryID:        r.EntryID,
		Credited:       r.Credited,
		NewStreak:      r.NewStreak,
		RewardUnlocked: r.RewardUnlocked,
		RewardLabel:    r.RewardLabel,
	}
	if r.NextReward != nil {
		out.NextRewardAt = &nextRewardResp{ThresholdDays: r.NextReward.ThresholdDays, Label: r.NextReward.Label}
	}
	return out
}

func checkinHandler(svc *checkin.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req checkinReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "malformed body")
		}
		if err := c.Validate(&req); err != nil || (req.IdentityID == 0 && req.QRToken == "") {
			return badRequest(c, "identity_id or qr_token is required; method must be manual, qr or biometric")
		}

		method, ok := model.ParseAccessMethod(req.Method)
		if !ok {
			return badRequest(c, "invalid method")
		}
		if req.QRToken != "" {
			method = model.MethodQR
		}

		// auth (set by APIKeyMiddleware); a nil tenant surfaces as missing_tenant_context
		tenant, _ := middleware.TenantFromCtx(c)

		res, err := svc.CheckIn(c.Request().Context(), tenant, checkin.Request{
			IdentityID: req.IdentityID,
			QRToken:    req.QRToken,
			Method:     method,
		})
		if err != nil {
			return writeCheckinError(c, err)
		}

		return c.JSON(http.StatusOK, toCheckinResp(res))
	}
}

type biometricReq struct {
	TemplateID string `json:"template_id" validate:"required,max=256"`
}

type doorResp struct {
	OpenDoor bool   `json:"open_door"`
	Reason   string `json:"reason,omitempty"`
}

// biometricHandler always answers 200 with a door decision once the device is
// authenticated. Readers only look at open_door.
func biometricHandler(svc *checkin.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req biometricReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusOK, doorResp{Reason: "bad_request"})
		}
		if err := c.Validate(&req); err != nil {
			return c.JSON(http.StatusOK, doorResp{Reason: "bad_request"})
		}

		tenant, _ := middleware.TenantFromCtx(c)
		d := svc.Biometric(c.Request().Context(), tenant, req.TemplateID)
		return c.JSON(http.StatusOK, doorResp{OpenDoor: d.OpenDoor, Reason: d.Reason})
	}
}

type courtesyReq struct {
	IdentityID    int64  `json:"identity_id"   validate:"required,gt=0"`
	ActorID       int64  `json:"actor_id"      validate:"required,gt=0"`
	Justification string `json:"justification" validate:"required,max=500"`
}

func courtesyHandler(svc *checkin.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req courtesyReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "malformed body")
		}
		if err := c.Validate(&req); err != nil {
			return badRequest(c, "identity_id, actor_id and justification are required")
		}

		tenant, _ := middleware.TenantFromCtx(c)
		entry, err := svc.Courtesy(c.Request().Context(), tenant, checkin.CourtesyRequest{
			IdentityID:    req.IdentityID,
			ActorID:       req.ActorID,
			Justification: req.Justification,
		})
		if err != nil {
			return writeCheckinError(c, err)
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"entry_id":    entry.ID,
			"identity_id": entry.IdentityID,
			"actor_id":    req.ActorID,
			"class":       entry.Class,
			"entered_at":  entry.At,
		})
	}
}
