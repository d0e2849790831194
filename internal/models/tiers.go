package models

import "fmt"

// TierThresholds maps a topic's repetition frequency to a 1-4 priority tier.
// Tier 4 is the catch-all for topics seen once.
type TierThresholds struct {
	Tier1Min int `json:"tier1_min"`
	Tier2Min int `json:"tier2_min"`
	Tier3Min int `json:"tier3_min"`
}

func DefaultTierThresholds() TierThresholds {
	return TierThresholds{Tier1Min: 4, Tier2Min: 3, Tier3Min: 2}
}

// Validate rejects degenerate configurations where the tier boundaries are
// not strictly descending.
func (t TierThresholds) Validate() error {
	if t.Tier3Min < 2 {
		return &ConfigurationError{Field: "tier_thresholds.tier3_min", Reason: "must be at least 2"}
	}
	if t.Tier1Min <= t.Tier2Min || t.Tier2Min <= t.Tier3Min {
		return &ConfigurationError{
			Field:  "tier_thresholds",
			Reason: fmt.Sprintf("boundaries must be strictly descending, got %d/%d/%d", t.Tier1Min, t.Tier2Min, t.Tier3Min),
		}
	}
	return nil
}

// TierFor is a pure function of frequency; tier 1 means "Tier1Min or more".
func (t TierThresholds) TierFor(frequency int) int {
	switch {
	case frequency >= t.Tier1Min:
		return 1
	case frequency >= t.Tier2Min:
		return 2
	case frequency >= t.Tier3Min:
		return 3
	default:
		return 4
	}
}
