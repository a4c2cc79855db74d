package model

// UsageAction identifies a quota-metered action.
type UsageAction string

const (
	ActionImageUpload      UsageAction = "image_upload"
	ActionOutfitGeneration UsageAction = "outfit_generation"
)

// UsageActions lists every metered action in display order.
var UsageActions = []UsageAction{ActionImageUpload, ActionOutfitGeneration}

// Valid reports whether a is a known action.
func (a UsageAction) Valid() bool {
	return a == ActionImageUpload || a == ActionOutfitGeneration
}

// UsageCounter is the per-user weekly tally. WeekStart is epoch milliseconds
// of the Monday 00:00 UTC the counts belong to.
type UsageCounter struct {
	ImageUploads      int   `db:"image_uploads" json:"image_uploads"`
	OutfitGenerations int   `db:"outfit_generations" json:"outfit_generations"`
	WeekStart         int64 `db:"usage_week_start" json:"week_start_timestamp"`
}

// Count returns the consumed amount for action.
func (c UsageCounter) Count(action UsageAction) int {
	switch action {
	case ActionImageUpload:
		return c.ImageUploads
	case ActionOutfitGeneration:
		return c.OutfitGenerations
	}
	return 0
}
