// Package rank holds the rank table and the pure functions that map XP
// onto it: rank lookup, progress to the next rank, tiered XP rewards and
// rank-up bonuses.
package rank

import (
	"errors"
	"fmt"
	"math"

	"github.com/priyanshu00007/moment/internal/outcome"
)

// Unbounded is the MaxXP of the top rank.
const Unbounded = math.MaxInt

const (
	TierBronze   = "Bronze"
	TierSilver   = "Silver"
	TierGold     = "Gold"
	TierPlatinum = "Platinum"
	TierDiamond  = "Diamond"
	TierMaster   = "Master"
)

var (
	errEmptyTable = errors.New("rank table is empty")
	errNoMatch    = errors.New("no rank interval contains xp")
)

// Rank is one row of the rank table. MinXP and MaxXP are inclusive.
type Rank struct {
	Name             string  `json:"name"`
	Tier             string  `json:"tier"`
	Level            int     `json:"level"`
	MinXP            int     `json:"minXP"`
	MaxXP            int     `json:"maxXP"`
	RewardMultiplier float64 `json:"rewardMultiplier"`
}

// IsTop reports whether r has no upper bound.
func (r Rank) IsTop() bool {
	return r.MaxXP == Unbounded
}

// Progress describes how far xp is into its current rank.
type Progress struct {
	Percent  float64
	XPNeeded int
	Current  Rank
	Next     *Rank
}

// Options configure an Engine. Zero values select the defaults.
type Options struct {
	Direction   Direction
	BonusRate   float64
	BaseRewards map[string]int
	Ranks       []Rank
}

// Engine answers rank questions against one table.
type Engine struct {
	ranks     []Rank
	base      map[string]int
	bonusRate float64
}

// New builds an Engine. When opts.Ranks is nil the default table is
// generated with the multipliers of opts.Direction.
func New(opts Options) *Engine {
	ranks := opts.Ranks
	if ranks == nil {
		ranks = DefaultRanks(opts.Direction)
	}
	base := opts.BaseRewards
	if base == nil {
		base = DefaultBaseRewards
	}
	rate := opts.BonusRate
	if rate <= 0 {
		rate = DefaultBonusRate
	}
	return &Engine{ranks: ranks, base: base, bonusRate: rate}
}

// Ranks returns a copy of the table.
func (e *Engine) Ranks() []Rank {
	out := make([]Rank, len(e.ranks))
	copy(out, e.ranks)
	return out
}

// BonusRate is the fraction of a new rank's MinXP granted on rank-up.
func (e *Engine) BonusRate() float64 {
	return e.bonusRate
}

// RankFor returns the rank containing xp. It never fails; see Lookup for
// the recovery information.
func (e *Engine) RankFor(xp int) Rank {
	return e.Lookup(xp).Value
}

// Lookup returns the rank whose interval contains xp. On a malformed table
// the lowest matching index wins; xp above every interval yields the top
// rank and xp falling in a gap yields the lowest rank, both as recovered
// results.
func (e *Engine) Lookup(xp int) outcome.Result[Rank] {
	idx, reason, cause := e.find(xp)
	if idx < 0 {
		return outcome.Recovered(Rank{Name: "Unranked", MaxXP: Unbounded, RewardMultiplier: 1}, reason, cause)
	}
	if reason != "" {
		return outcome.Recovered(e.ranks[idx], reason, cause)
	}
	return outcome.Ok(e.ranks[idx])
}

func (e *Engine) find(xp int) (int, outcome.Reason, error) {
	if len(e.ranks) == 0 {
		return -1, outcome.InvalidRankTable, errEmptyTable
	}
	if xp < 0 {
		xp = 0
	}
	highest := math.MinInt
	for i, r := range e.ranks {
		if xp >= r.MinXP && xp <= r.MaxXP {
			return i, "", nil
		}
		if r.MaxXP > highest {
			highest = r.MaxXP
		}
	}
	err := fmt.Errorf("%w: %d", errNoMatch, xp)
	if xp > highest {
		return len(e.ranks) - 1, outcome.InvalidRankTable, err
	}
	return 0, outcome.InvalidRankTable, err
}

// ProgressToNext reports the share of the way from the current rank's
// MinXP to the next rank's MinXP, clamped to [0, 100]. At the top rank Next
// is nil and Percent is 100.
func (e *Engine) ProgressToNext(xp int) Progress {
	if xp < 0 {
		xp = 0
	}
	idx, _, _ := e.find(xp)
	if idx < 0 {
		return Progress{Percent: 100, Current: e.RankFor(xp)}
	}
	cur := e.ranks[idx]
	if idx == len(e.ranks)-1 {
		return Progress{Percent: 100, Current: cur}
	}

	next := e.ranks[idx+1]
	p := Progress{Current: cur, Next: &next}
	span := next.MinXP - cur.MinXP
	if span <= 0 {
		p.Percent = 100
		return p
	}
	p.Percent = clamp(100*float64(xp-cur.MinXP)/float64(span), 0, 100)
	if need := next.MinXP - xp; need > 0 {
		p.XPNeeded = need
	}
	return p
}

// RankUpBonus is the one-time XP granted when entering r.
func (e *Engine) RankUpBonus(r Rank) int {
	return int(math.Floor(float64(r.MinXP) * e.bonusRate))
}

// Validate checks that ranks partition the non-negative integers: the
// first starts at 0, each starts one past the previous MaxXP and only the
// last is unbounded.
func Validate(ranks []Rank) error {
	if len(ranks) == 0 {
		return errEmptyTable
	}
	if ranks[0].MinXP != 0 {
		return fmt.Errorf("first rank %q starts at %d, want 0", ranks[0].Name, ranks[0].MinXP)
	}
	for i, r := range ranks {
		if r.MaxXP < r.MinXP {
			return fmt.Errorf("rank %q: maxXP %d below minXP %d", r.Name, r.MaxXP, r.MinXP)
		}
		if i == len(ranks)-1 {
			if !r.IsTop() {
				return fmt.Errorf("top rank %q is bounded at %d", r.Name, r.MaxXP)
			}
			break
		}
		if r.IsTop() {
			return fmt.Errorf("rank %q is unbounded but not last", r.Name)
		}
		if next := ranks[i+1]; next.MinXP != r.MaxXP+1 {
			return fmt.Errorf("gap or overlap between %q and %q", r.Name, next.Name)
		}
	}
	return nil
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
