package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herwingx/nexogym-sub000/internal/model"
)

func TestNewRewardSchedule_SortsAndValidates(t *testing.T) {
	s, err := model.NewRewardSchedule([]model.RewardTier{
		{ThresholdDays: 30, Label: "Free month"},
		{ThresholdDays: 7, Label: " Free shake "},
	})
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, 7, s[0].ThresholdDays)
	assert.Equal(t, "Free shake", s[0].Label)

	_, err = model.NewRewardSchedule([]model.RewardTier{{ThresholdDays: 7, Label: "a"}, {ThresholdDays: 7, Label: "b"}})
	assert.ErrorIs(t, err, model.ErrInvalidSettings)

	_, err = model.NewRewardSchedule([]model.RewardTier{{ThresholdDays: 0, Label: "a"}})
	assert.ErrorIs(t, err, model.ErrInvalidSettings)

	_, err = model.NewRewardSchedule([]model.RewardTier{{ThresholdDays: 3, Label: "  "}})
	assert.ErrorIs(t, err, model.ErrInvalidSettings)
}

func TestDecodeRewardSchedule_Lenient(t *testing.T) {
	raw := []byte(`[{"threshold_days":30,"label":"Free month"},{"threshold_days":7,"label":"Free shake"},{"threshold_days":7,"label":"dup"},{"threshold_days":-1,"label":"bad"}]`)
	s := model.DecodeRewardSchedule(raw)
	require.Len(t, s, 2)
	assert.Equal(t, "Free shake", s[0].Label)
	assert.Equal(t, 30, s[1].ThresholdDays)

	assert.Nil(t, model.DecodeRewardSchedule([]byte(`{not json`)))
}

func TestRewardSchedule_UnmarshalIsStrict(t *testing.T) {
	var s model.RewardSchedule
	err := json.Unmarshal([]byte(`[{"threshold_days":7,"label":"a"},{"threshold_days":7,"label":"b"}]`), &s)
	assert.ErrorIs(t, err, model.ErrInvalidSettings)
}

func TestNewClosedCalendar(t *testing.T) {
	cal, err := model.NewClosedCalendar([]int{0}, []string{"12-25", "02-29"})
	require.NoError(t, err)

	assert.True(t, cal.IsClosed(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)))   // Sunday
	assert.False(t, cal.IsClosed(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))  // Monday
	assert.True(t, cal.IsClosed(time.Date(2027, 12, 25, 0, 0, 0, 0, time.UTC))) // recurring
	assert.True(t, cal.IsClosed(time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)))

	for _, tc := range []struct {
		weekdays []int
		holidays []string
	}{
		{weekdays: []int{7}},
		{weekdays: []int{-1}},
		{holidays: []string{"13-01"}},
		{holidays: []string{"02-30"}},
		{holidays: []string{"4-1"}},
		{holidays: []string{"xx-yy"}},
	} {
		_, err := model.NewClosedCalendar(tc.weekdays, tc.holidays)
		assert.ErrorIs(t, err, model.ErrInvalidSettings, "%v %v", tc.weekdays, tc.holidays)
	}
}

func TestClosedCalendar_JSONRoundTrip(t *testing.T) {
	cal, err := model.NewClosedCalendar([]int{6, 0}, []string{"01-01"})
	require.NoError(t, err)

	b, err := json.Marshal(cal)
	require.NoError(t, err)
	assert.JSONEq(t, `{"weekdays":[0,6],"holidays":["01-01"]}`, string(b))

	decoded := model.DecodeClosedCalendar(b)
	assert.True(t, decoded.IsClosed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	var strict model.ClosedCalendar
	assert.Error(t, json.Unmarshal([]byte(`{"weekdays":[9]}`), &strict))
}

func TestDecodeClosedCalendar_SkipsBadEntries(t *testing.T) {
	cal := model.DecodeClosedCalendar([]byte(`{"weekdays":[0,42],"holidays":["99-99","12-25"]}`))
	assert.True(t, cal.IsClosed(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)))
	assert.True(t, cal.IsClosed(time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)))
	assert.False(t, cal.Empty())
}

func TestParseCapabilityOverrides_Strict(t *testing.T) {
	got, err := model.ParseCapabilityOverrides(map[string]any{"qrAccess": true, "gamification": false})
	require.NoError(t, err)
	assert.Equal(t, map[model.Capability]bool{model.CapQRAccess: true, model.CapGamification: false}, got)

	_, err = model.ParseCapabilityOverrides(map[string]any{"teleport": true})
	assert.ErrorIs(t, err, model.ErrInvalidSettings)

	_, err = model.ParseCapabilityOverrides(map[string]any{"qrAccess": "yes"})
	assert.ErrorIs(t, err, model.ErrInvalidSettings)
}

func TestTimeWindow_Contains(t *testing.T) {
	w := model.TimeWindow{Start: 6 * 60, End: 14 * 60}
	assert.True(t, w.Contains(6*60))
	assert.True(t, w.Contains(14*60))
	assert.False(t, w.Contains(14*60+1))

	night := model.TimeWindow{Start: 22 * 60, End: 2 * 60}
	assert.True(t, night.Contains(23*60))
	assert.True(t, night.Contains(60))
	assert.False(t, night.Contains(12*60))
}

func TestParseTier(t *testing.T) {
	tier, ok := model.ParseTier("premium_bio")
	assert.True(t, ok)
	assert.Equal(t, model.TierPremiumBio, tier)
	assert.True(t, tier.AtLeast(model.TierProQR))

	tier, ok = model.ParseTier("gold")
	assert.False(t, ok)
	assert.Equal(t, model.TierBasic, tier)
}
