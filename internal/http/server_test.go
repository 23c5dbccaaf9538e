package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/config"
	apphttp "github.com/herwingx/nexogym-sub000/internal/http"
	"github.com/herwingx/nexogym-sub000/internal/http/middleware"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository/memory"
	"github.com/herwingx/nexogym-sub000/internal/service/checkin"
	"github.com/herwingx/nexogym-sub000/internal/service/reconcile"
)

type env struct {
	srv    *apphttp.Server
	store  *memory.Store
	qr     *access.QRTokenCodec
	tenant model.Tenant
	basic  model.Tenant
	noQR   model.Tenant
}

func newEnv(t *testing.T) *env { return newEnvAt(t, time.Now) }

// newEnvAt wires the server and the check-in service to the same clock.
func newEnvAt(t *testing.T, now func() time.Time) *env {
	t.Helper()
	store := memory.New()
	rewards, err := model.NewRewardSchedule([]model.RewardTier{{ThresholdDays: 7, Label: "Smoothie"}})
	require.NoError(t, err)

	e := &env{store: store}
	e.tenant = store.AddTenant(model.Tenant{
		Name:             "premium",
		APIKey:           "premium-key",
		DeviceSecretHash: middleware.HashDeviceSecret("reader-1"),
		Tier:             model.TierPremiumBio,
		Rewards:          rewards,
	})
	e.basic = store.AddTenant(model.Tenant{Name: "basic", APIKey: "basic-key", Tier: model.TierBasic})
	e.noQR = store.AddTenant(model.Tenant{
		Name:      "pro-no-qr",
		APIKey:    "noqr-key",
		Tier:      model.TierProQR,
		Overrides: model.CapabilityOverrides{"qrAccess": false},
	})

	qr := access.NewQRTokenCodec("secret", "nexogym", time.Minute)
	e.qr = qr
	guard := access.NewReplayGuard(access.NewMemoryReplayStore(time.Minute), access.DefaultCooldowns())
	cfg := config.Config{Reconcile: config.ReconcileConfig{OperatorToken: "op"}}

	e.srv = apphttp.NewServer(cfg, apphttp.Deps{
		Store:      store,
		History:    store,
		Checkin:    checkin.New(store, guard, checkin.Config{}, checkin.WithQRCodec(qr), checkin.WithClock(now)),
		Reconciler: reconcile.New(store, 0, nil),
		QR:         qr,
		Now:        now,
	})
	return e
}

func (e *env) member(tenantID int64) model.Identity {
	i := e.store.AddIdentity(model.Identity{TenantID: tenantID, Name: "m"})
	e.store.AddEntitlement(model.Entitlement{
		TenantID:   tenantID,
		IdentityID: i.ID,
		Status:     model.EntitlementActive,
		ExpiresAt:  time.Now().AddDate(0, 1, 0),
	})
	return i
}

func (e *env) do(t *testing.T, method, path string, headers map[string]string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func key(k string) map[string]string { return map[string]string{"X-API-Key": k} }

func TestCheckin_HappyPathThenReplay(t *testing.T) {
	e := newEnv(t)
	m := e.member(e.tenant.ID)

	rec, out := e.do(t, http.MethodPost, "/v1/checkin", key("premium-key"), map[string]any{"identity_id": m.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, out["credited"])
	assert.Equal(t, float64(1), out["new_streak"])
	assert.Equal(t, false, out["reward_unlocked"])
	next, ok := out["next_reward_at"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(7), next["threshold_days"])

	rec, out = e.do(t, http.MethodPost, "/v1/checkin", key("premium-key"), map[string]any{"identity_id": m.ID})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "replay_blocked", out["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Greater(t, out["remaining_seconds"], float64(7000))
}

func TestCheckin_ErrorMapping(t *testing.T) {
	e := newEnv(t)
	basicMember := e.member(e.basic.ID)
	lapsed := e.store.AddIdentity(model.Identity{TenantID: e.tenant.ID})

	cases := []struct {
		name    string
		headers map[string]string
		body    any
		status  int
		reason  string
	}{
		{"missing key", nil, map[string]any{"identity_id": 1}, http.StatusUnauthorized, ""},
		{"bad payload", key("premium-key"), map[string]any{"method": "teleport", "identity_id": 1}, http.StatusBadRequest, "bad_request"},
		{"no identity", key("premium-key"), map[string]any{}, http.StatusBadRequest, "bad_request"},
		{"unknown identity", key("premium-key"), map[string]any{"identity_id": 4242}, http.StatusNotFound, "identity_not_found"},
		{"lapsed", key("premium-key"), map[string]any{"identity_id": lapsed.ID}, http.StatusForbidden, "no_active_entitlement"},
		{"capability", key("basic-key"), map[string]any{"identity_id": basicMember.ID, "method": "qr"}, http.StatusForbidden, "capability_disabled"},
		{"bad qr", key("premium-key"), map[string]any{"qr_token": "nope"}, http.StatusUnauthorized, "invalid_qr_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := e.do(t, http.MethodPost, "/v1/checkin", tc.headers, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.reason != "" {
				assert.Equal(t, tc.reason, out["error"])
			}
		})
	}

	_, out := e.do(t, http.MethodPost, "/v1/checkin", key("basic-key"), map[string]any{"identity_id": basicMember.ID, "method": "qr"})
	assert.Equal(t, "qrAccess", out["capability"])
}

func TestQRIssueThenCheckin(t *testing.T) {
	e := newEnv(t)
	m := e.member(e.tenant.ID)

	rec, out := e.do(t, http.MethodPost, "/v1/qr/issue", key("premium-key"), map[string]any{"identity_id": m.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := out["qr_token"].(string)
	require.NotEmpty(t, token)

	rec, out = e.do(t, http.MethodPost, "/v1/checkin", key("premium-key"), map[string]any{"qr_token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), out["new_streak"])

	rec, _ = e.do(t, http.MethodPost, "/v1/qr/issue", key("basic-key"), map[string]any{"identity_id": m.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestQRTokenCannotBypassDisabledQRAccess(t *testing.T) {
	e := newEnv(t)
	m := e.member(e.noQR.ID)
	token, _, err := e.qr.Issue(e.noQR.ID, m.ID, time.Now())
	require.NoError(t, err)

	rec, out := e.do(t, http.MethodPost, "/v1/checkin", key("noqr-key"),
		map[string]any{"qr_token": token, "method": "manual"})
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Equal(t, "capability_disabled", out["error"])
	assert.Equal(t, "qrAccess", out["capability"])
	assert.Empty(t, e.store.Entries(m.ID))
}

func TestQRIssueUsesServerClock(t *testing.T) {
	// the server runs an hour behind the wall clock, far past the token ttl
	at := time.Now().Add(-time.Hour).Truncate(time.Second)
	e := newEnvAt(t, func() time.Time { return at })
	m := e.member(e.tenant.ID)

	rec, out := e.do(t, http.MethodPost, "/v1/qr/issue", key("premium-key"), map[string]any{"identity_id": m.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	exp, err := time.Parse(time.RFC3339, out["expires_at"].(string))
	require.NoError(t, err)
	assert.True(t, exp.Equal(at.Add(time.Minute)))

	rec, _ = e.do(t, http.MethodPost, "/v1/checkin", key("premium-key"), map[string]any{"qr_token": out["qr_token"]})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestBiometricEndpoint(t *testing.T) {
	e := newEnv(t)
	m := e.member(e.tenant.ID)
	stored, _ := e.store.Identity(m.ID)
	tpl := "finger-7"
	stored.BiometricTemplateID = &tpl
	e.store.AddIdentity(stored)
	dev := map[string]string{"X-Device-Secret": "reader-1"}

	rec, out := e.do(t, http.MethodPost, "/v1/hardware/biometric", dev, map[string]any{"template_id": tpl})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["open_door"])

	rec, out = e.do(t, http.MethodPost, "/v1/hardware/biometric", dev, map[string]any{"template_id": tpl})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["open_door"])
	assert.Equal(t, "replay_blocked", out["reason"])

	rec, out = e.do(t, http.MethodPost, "/v1/hardware/biometric", dev, map[string]any{})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["open_door"])

	rec, out = e.do(t, http.MethodPost, "/v1/hardware/biometric", map[string]string{"X-Device-Secret": "stolen"}, map[string]any{"template_id": tpl})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, out["open_door"])
}

func TestCourtesyEndpoint(t *testing.T) {
	e := newEnv(t)
	coach := e.store.AddIdentity(model.Identity{TenantID: e.tenant.ID, Role: model.RoleStaff})
	guest := e.store.AddIdentity(model.Identity{TenantID: e.tenant.ID})

	rec, out := e.do(t, http.MethodPost, "/v1/courtesy", key("premium-key"), map[string]any{
		"identity_id": guest.ID, "actor_id": coach.ID, "justification": "trial day",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "courtesy", out["class"])

	rec, out = e.do(t, http.MethodPost, "/v1/courtesy", key("premium-key"), map[string]any{
		"identity_id": guest.ID, "actor_id": guest.ID, "justification": "self",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "actor_not_staff", out["error"])

	rec, _ = e.do(t, http.MethodPost, "/v1/courtesy", key("premium-key"), map[string]any{"identity_id": guest.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsEndpoint(t *testing.T) {
	e := newEnv(t)

	rec, out := e.do(t, http.MethodPut, "/v1/tenant/settings", key("basic-key"), map[string]any{
		"capabilities":    map[string]any{"gamification": true},
		"reward_schedule": []map[string]any{{"threshold_days": 30, "label": "Shirt"}, {"threshold_days": 10, "label": "Bottle"}},
		"closed_calendar": map[string]any{"weekdays": []int{0}, "holidays": []string{"12-25"}},
		"timezone":        "America/Mexico_City",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	caps := out["capabilities"].(map[string]any)
	assert.Equal(t, true, caps["gamification"])
	assert.Equal(t, false, caps["qrAccess"])

	got, _ := e.store.Tenant(e.basic.ID)
	require.Len(t, got.Rewards, 2)
	assert.Equal(t, 10, got.Rewards[0].ThresholdDays)
	assert.Equal(t, "America/Mexico_City", got.Timezone)
	assert.True(t, access.TenantCapabilities(&got).Enabled(model.CapGamification))

	for name, body := range map[string]any{
		"unknown capability": map[string]any{"capabilities": map[string]any{"teleport": true}},
		"non-bool":           map[string]any{"capabilities": map[string]any{"qrAccess": "yes"}},
		"dup threshold":      map[string]any{"reward_schedule": []map[string]any{{"threshold_days": 5, "label": "a"}, {"threshold_days": 5, "label": "b"}}},
		"bad weekday":        map[string]any{"closed_calendar": map[string]any{"weekdays": []int{7}}},
		"bad holiday":        map[string]any{"closed_calendar": map[string]any{"holidays": []string{"02-30"}}},
		"bad timezone":       map[string]any{"timezone": "Mars/Olympus"},
	} {
		rec, _ := e.do(t, http.MethodPut, "/v1/tenant/settings", key("basic-key"), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestEntriesEndpoint(t *testing.T) {
	e := newEnv(t)
	m := e.member(e.tenant.ID)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e.store.AddEntry(model.EntryRecord{
			ID: "e" + string(rune('a'+i)), TenantID: e.tenant.ID, IdentityID: m.ID,
			At: base.AddDate(0, 0, i), Method: model.MethodManual, Class: model.ClassRegular,
		})
	}

	rec, out := e.do(t, http.MethodGet, "/v1/entries?limit=2", key("premium-key"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), out["count"])
	first := out["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "ec", first["id"])

	rec, out = e.do(t, http.MethodGet, "/v1/entries?from=2026-03-02T00:00:00Z", key("premium-key"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), out["count"])

	rec, _ = e.do(t, http.MethodGet, "/v1/entries?from=yesterday", key("premium-key"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = e.do(t, http.MethodGet, "/v1/entries", key("basic-key"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), out["count"])
}

func TestAdminReconcile(t *testing.T) {
	e := newEnv(t)
	old := time.Now().UTC().AddDate(0, 0, -10)
	day := time.Date(old.Year(), old.Month(), old.Day(), 0, 0, 0, 0, time.UTC)
	i := e.store.AddIdentity(model.Identity{TenantID: e.tenant.ID, CurrentStreak: 4, LastCreditDate: &day})

	rec, _ := e.do(t, http.MethodPost, "/v1/admin/reconcile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out := e.do(t, http.MethodPost, "/v1/admin/reconcile", map[string]string{"X-Operator-Token": "op"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tenants := out["tenants"].([]any)
	require.Len(t, tenants, 1)
	assert.Equal(t, float64(1), tenants[0].(map[string]any)["reset"])

	got, _ := e.store.Identity(i.ID)
	assert.Zero(t, got.CurrentStreak)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rec, _ := e.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
