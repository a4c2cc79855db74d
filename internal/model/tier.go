package model

import "strings"

// Tier is the subscription level that controls usage limits.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// ParseTier normalizes s into a known tier.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierFree:
		return TierFree, true
	case TierBasic:
		return TierBasic, true
	case TierPremium:
		return TierPremium, true
	}
	return "", false
}

// IsPaid reports whether the tier requires an active subscription.
func (t Tier) IsPaid() bool {
	return t == TierBasic || t == TierPremium
}

// TierLimits holds the weekly allowances for a tier.
type TierLimits struct {
	MaxImageUploads      int `json:"max_image_uploads"`
	MaxOutfitGenerations int `json:"max_outfit_generations"`
}

// For returns the limit that applies to action.
func (l TierLimits) For(action UsageAction) int {
	switch action {
	case ActionImageUpload:
		return l.MaxImageUploads
	case ActionOutfitGeneration:
		return l.MaxOutfitGenerations
	}
	return 0
}
