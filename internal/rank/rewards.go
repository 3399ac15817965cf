package rank

import (
	"fmt"
	"math"
	"strings"
)

// Direction selects how per-action rewards scale with tier.
type Direction string

const (
	// Descending pays less per action at higher tiers, so early ranks come
	// quickly and later ones take sustained effort.
	Descending Direction = "descending"
	// Ascending pays more per action at higher tiers.
	Ascending Direction = "ascending"
)

// DefaultBonusRate is the share of a new rank's MinXP granted on rank-up.
const DefaultBonusRate = 0.05

// DescendingMultipliers is the reward multiplier per tier for Descending.
var DescendingMultipliers = map[string]float64{
	TierBronze:   1.0,
	TierSilver:   0.9,
	TierGold:     0.8,
	TierPlatinum: 0.7,
	TierDiamond:  0.6,
	TierMaster:   0.5,
}

// AscendingMultipliers is the reward multiplier per tier for Ascending.
var AscendingMultipliers = map[string]float64{
	TierBronze:   1.0,
	TierSilver:   1.1,
	TierGold:     1.25,
	TierPlatinum: 1.5,
	TierDiamond:  1.75,
	TierMaster:   2.0,
}

// DefaultBaseRewards is the Bronze-tier XP per activity type.
var DefaultBaseRewards = map[string]int{
	"task_completed_low":         5,
	"task_completed_medium":      10,
	"task_completed_high":        15,
	"session_started":            2,
	"focus_session_completed":    20,
	"pomodoro_session_completed": 50,
	"daily_streak":               5,
}

// tierThresholds lists each tier's three level boundaries; the Master tier
// has a single unbounded level.
var tierThresholds = []struct {
	tier   string
	starts []int
}{
	{TierBronze, []int{0, 100, 200}},
	{TierSilver, []int{300, 500, 750}},
	{TierGold, []int{1000, 1500, 2000}},
	{TierPlatinum, []int{2750, 3750, 5000}},
	{TierDiamond, []int{6500, 8500, 11000}},
	{TierMaster, []int{14000}},
}

var romanLevels = []string{"I", "II", "III"}

// ParseDirection accepts "ascending" or "descending" (any case).
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Descending, "":
		return Descending, nil
	case Ascending:
		return Ascending, nil
	}
	return "", fmt.Errorf("unknown reward direction %q", s)
}

// Multipliers returns the per-tier multiplier table for d.
func Multipliers(d Direction) map[string]float64 {
	if d == Ascending {
		return AscendingMultipliers
	}
	return DescendingMultipliers
}

// DefaultRanks builds the standard contiguous table with d's multipliers.
func DefaultRanks(d Direction) []Rank {
	mult := Multipliers(d)

	var starts []int
	var ranks []Rank
	for _, t := range tierThresholds {
		for i, s := range t.starts {
			name := t.tier
			if len(t.starts) > 1 {
				name += " " + romanLevels[i]
			}
			ranks = append(ranks, Rank{
				Name:             name,
				Tier:             t.tier,
				Level:            i + 1,
				MinXP:            s,
				RewardMultiplier: mult[t.tier],
			})
			starts = append(starts, s)
		}
	}
	for i := range ranks {
		if i == len(ranks)-1 {
			ranks[i].MaxXP = Unbounded
		} else {
			ranks[i].MaxXP = starts[i+1] - 1
		}
	}
	return ranks
}

// XPReward returns the XP earned for activity by a user in tier: the base
// reward times the tier multiplier, floored, never below 1. Unknown tiers
// use a multiplier of 1; unknown activities earn the minimum.
func (e *Engine) XPReward(tier, activity string) int {
	reward := int(math.Floor(float64(e.base[activity]) * e.multiplier(tier)))
	if reward < 1 {
		return 1
	}
	return reward
}

func (e *Engine) multiplier(tier string) float64 {
	for _, r := range e.ranks {
		if r.Tier == tier && r.RewardMultiplier > 0 {
			return r.RewardMultiplier
		}
	}
	return 1
}
