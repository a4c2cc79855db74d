package dto

import "github.com/nikolayy-dimitrov/indumenta-be/internal/model"

// ImageAnalyzeRequest asks for an uploaded image to be labeled and stored on
// a wardrobe item.
type ImageAnalyzeRequest struct {
	ImagePath string `json:"imagePath" validate:"required"`
	DocID     string `json:"docId" validate:"required"`
}

// ImageAnalyzeResponse wraps the stored analysis.
type ImageAnalyzeResponse struct {
	Success  bool                 `json:"success"`
	DocID    string               `json:"docId"`
	Analysis *model.ImageAnalysis `json:"analysis"`
}

type UploadURLRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"contentType" validate:"required,startswith=image/"`
}

// OutfitGenerateRequest carries the wardrobe the recommender picks from.
type OutfitGenerateRequest struct {
	Wardrobe         []model.WardrobeItem   `json:"wardrobe" validate:"required,min=1,dive"`
	StylePreferences model.StylePreferences `json:"stylePreferences"`
}
