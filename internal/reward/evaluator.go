package reward

import "github.com/herwingx/nexogym-sub000/internal/model"

// Evaluator maps streak values to reward labels over a validated schedule.
type Evaluator struct {
	schedule model.RewardSchedule
}

// NewEvaluator expects a schedule already deduplicated and ascending, as produced by
// model.NewRewardSchedule or model.DecodeRewardSchedule.
func NewEvaluator(s model.RewardSchedule) Evaluator {
	return Evaluator{schedule: s}
}

// Unlocked returns the label configured for exactly this streak value.
func (e Evaluator) Unlocked(streak int) (string, bool) {
	for _, t := range e.schedule {
		if t.ThresholdDays == streak {
			return t.Label, true
		}
		if t.ThresholdDays > streak {
			break
		}
	}
	return "", false
}

// Next returns the smallest tier strictly above streak, or false once the streak has
// met or passed the largest configured threshold.
func (e Evaluator) Next(streak int) (model.RewardTier, bool) {
	for _, t := range e.schedule {
		if t.ThresholdDays > streak {
			return t, true
		}
	}
	return model.RewardTier{}, false
}
