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

type calendarReq struct {
	Weekdays []int    `json:"weekdays"`
	Holidays []string `json:"holidays"`
}

// settingsReq replaces the given sections; omitted sections keep their current value.
type settingsReq struct {
	Capabilities   map[string]any      `json:"capabilities"`
	RewardSchedule *[]model.RewardTier `json:"reward_schedule"`
	ClosedCalendar *calendarReq        `json:"closed_calendar"`
	Timezone       string              `json:"timezone" validate:"omitempty,max=64"`
}

func updateSettingsHandler(store repository.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req settingsReq
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "malformed body")
		}
		if err := c.Validate(&req); err != nil {
			return badRequest(c, "invalid timezone")
		}

		tenant, ok := middleware.TenantFromCtx(c)
		if !ok {
			return writeCheckinError(c, checkin.ErrMissingTenantContext)
		}

		st := model.TenantSettings{
			Overrides: currentOverrides(tenant.Overrides),
			Rewards:   tenant.Rewards,
			Calendar:  tenant.Calendar,
			Timezone:  tenant.Timezone,
		}

		if req.Capabilities != nil {
			o, err := model.ParseCapabilityOverrides(req.Capabilities)
			if err != nil {
				return badRequest(c, err.Error())
			}
			st.Overrides = o
		}
		if req.RewardSchedule != nil {
			rs, err := model.NewRewardSchedule(*req.RewardSchedule)
			if err != nil {
				return badRequest(c, err.Error())
			}
			st.Rewards = rs
		}
		if req.ClosedCalendar != nil {
			cal, err := model.NewClosedCalendar(req.ClosedCalendar.Weekdays, req.ClosedCalendar.Holidays)
			if err != nil {
				return badRequest(c, err.Error())
			}
			st.Calendar = cal
		}
		if req.Timezone != "" {
			if _, err := time.LoadLocation(req.Timezone); err != nil {
				return badRequest(c, "unknown timezone")
			}
			st.Timezone = req.Timezone
		}

		if err := store.UpdateTenantSettings(c.Request().Context(), tenant.ID, st); err != nil {
			c.Logger().Errorf("update settings failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": checkin.ReasonInternal})
		}

		raw := make(model.CapabilityOverrides, len(st.Overrides))
		for k, v := range st.Overrides {
			raw[string(k)] = v
		}
		effective := access.ResolveCapabilities(tenant.Tier, raw)
		caps := make(map[string]bool, len(model.AllCapabilities))
		for _, cp := range model.AllCapabilities {
			caps[string(cp)] = effective.Enabled(cp)
		}

		rewards := st.Rewards
		if rewards == nil {
			rewards = model.RewardSchedule{}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"tier":            tenant.Tier.String(),
			"capabilities":    caps,
			"reward_schedule": rewards,
			"closed_calendar": st.Calendar,
			"timezone":        st.Timezone,
		})
	}
}

func currentOverrides(raw model.CapabilityOverrides) map[model.Capability]bool {
	out := make(map[model.Capability]bool, len(raw))
	for k, v := range raw {
		c := model.Capability(k)
		if b, ok := v.(bool); ok && c.Valid() {
			out[c] = b
		}
	}
	return out
}
