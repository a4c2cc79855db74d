package service

import "github.com/nikolayy-dimitrov/indumenta-be/internal/model"

// DefaultTierLimits is the weekly allowance table used in production.
func DefaultTierLimits() map[model.Tier]model.TierLimits {
	return map[model.Tier]model.TierLimits{
		model.TierFree:    {MaxImageUploads: 8, MaxOutfitGenerations: 3},
		model.TierBasic:   {MaxImageUploads: 25, MaxOutfitGenerations: 10},
		model.TierPremium: {MaxImageUploads: 5000, MaxOutfitGenerations: 2500},
	}
}

// Policy maps a tier to its limits. It is immutable after construction.
type Policy struct {
	limits map[model.Tier]model.TierLimits
}

// NewPolicy copies table. A table without a free entry gets zero free limits.
func NewPolicy(table map[model.Tier]model.TierLimits) *Policy {
	limits := make(map[model.Tier]model.TierLimits, len(table))
	for k, v := range table {
		limits[k] = v
	}
	return &Policy{limits: limits}
}

// LimitsFor returns the limits for tier. Unknown or empty tiers get the free
// tier's limits.
func (p *Policy) LimitsFor(tier model.Tier) model.TierLimits {
	if l, ok := p.limits[tier]; ok {
		return l
	}
	return p.limits[model.TierFree]
}
