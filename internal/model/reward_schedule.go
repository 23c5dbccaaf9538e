package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RewardTier unlocks Label when a streak reaches exactly ThresholdDays.
type RewardTier struct {
	ThresholdDays int    `json:"threshold_days"`
	Label         string `json:"label"`
}

// RewardSchedule is ordered by ascending threshold with unique thresholds.
type RewardSchedule []RewardTier

// NewRewardSchedule validates and sorts tiers. Duplicate thresholds, non-positive
// thresholds, and empty labels are rejected.
func NewRewardSchedule(tiers []RewardTier) (RewardSchedule, error) {
	seen := make(map[int]struct{}, len(tiers))
	out := make(RewardSchedule, 0, len(tiers))
	for _, t := range tiers {
		t.Label = strings.TrimSpace(t.Label)
		if t.ThresholdDays <= 0 {
			return nil, fmt.Errorf("%w: reward threshold %d must be positive", ErrInvalidSettings, t.ThresholdDays)
		}
		if t.Label == "" {
			return nil, fmt.Errorf("%w: reward at %d days has empty label", ErrInvalidSettings, t.ThresholdDays)
		}
		if _, dup := seen[t.ThresholdDays]; dup {
			return nil, fmt.Errorf("%w: duplicate reward threshold %d", ErrInvalidSettings, t.ThresholdDays)
		}
		seen[t.ThresholdDays] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThresholdDays < out[j].ThresholdDays })
	return out, nil
}

// DecodeRewardSchedule reads a stored blob leniently: invalid tiers are skipped and
// the first tier for a given threshold wins.
func DecodeRewardSchedule(raw []byte) RewardSchedule {
	if len(raw) == 0 {
		return nil
	}
	var tiers []RewardTier
	if err := json.Unmarshal(raw, &tiers); err != nil {
		return nil
	}
	seen := make(map[int]struct{}, len(tiers))
	out := make(RewardSchedule, 0, len(tiers))
	for _, t := range tiers {
		t.Label = strings.TrimSpace(t.Label)
		if t.ThresholdDays <= 0 || t.Label == "" {
			continue
		}
		if _, dup := seen[t.ThresholdDays]; dup {
			continue
		}
		seen[t.ThresholdDays] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ThresholdDays < out[j].ThresholdDays })
	return out
}

func (s *RewardSchedule) UnmarshalJSON(b []byte) error {
	var tiers []RewardTier
	if err := json.Unmarshal(b, &tiers); err != nil {
		return fmt.Errorf("%w: reward schedule: %v", ErrInvalidSettings, err)
	}
	rs, err := NewRewardSchedule(tiers)
	if err != nil {
		return err
	}
	*s = rs
	return nil
}
