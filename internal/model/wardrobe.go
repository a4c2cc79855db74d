package model

import "time"

// ImageAnalysis is the labeler's classification of a clothing photo.
type ImageAnalysis struct {
	Category    string   `json:"category"`
	SubCategory *string  `json:"subCategory"`
	Vibe        string   `json:"vibe"`
	Season      string   `json:"season"`
	Color       string   `json:"color"`
	AllLabels   []string `json:"allLabels"`
}

// WardrobeItem is a classified clothing item as sent by the client for
// outfit generation.
type WardrobeItem struct {
	ID            string `json:"id" validate:"required"`
	Category      string `json:"category" validate:"required"`
	SubCategory   string `json:"subCategory,omitempty"`
	Vibe          string `json:"vibe,omitempty"`
	Season        string `json:"season"`
	DominantColor string `json:"dominantColor"`
	ImageURL      string `json:"imageUrl"`
}

// StylePreferences narrows outfit suggestions.
type StylePreferences struct {
	Color    string `json:"color,omitempty"`
	Occasion string `json:"occasion,omitempty"`
}

// OutfitPieces references wardrobe item ids per slot.
type OutfitPieces struct {
	Top    string `json:"Top"`
	Bottom string `json:"Bottom"`
	Shoes  string `json:"Shoes"`
}

// OutfitSuggestion is one ranked outfit.
type OutfitSuggestion struct {
	OutfitID     string       `json:"outfit_id"`
	OutfitPieces OutfitPieces `json:"outfit_pieces"`
	Match        float64      `json:"match"`
}

// OutfitResponse is the recommender's result.
type OutfitResponse struct {
	Outfits []OutfitSuggestion `json:"outfits"`
}

// Wardrobe item processing states.
const (
	ItemStatusPending  = "pending"
	ItemStatusComplete = "complete"
)

// StoredWardrobeItem is a wardrobe item as persisted after classification.
type StoredWardrobeItem struct {
	ID        string        `db:"id" json:"id"`
	UserID    string        `db:"user_id" json:"user_id"`
	ImagePath string        `db:"image_path" json:"image_path"`
	Analysis  ImageAnalysis `json:"analysis"`
	Status    string        `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}
