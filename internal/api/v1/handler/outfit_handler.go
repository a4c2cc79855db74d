package handler

import (
	"net/http"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/api/v1/dto"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type OutfitHandler struct {
	outfitService service.OutfitService
	validate      *validator.Validate
	logger        zerolog.Logger
}

func NewOutfitHandler(outfitService service.OutfitService, validate *validator.Validate, logger zerolog.Logger) *OutfitHandler {
	return &OutfitHandler{outfitService: outfitService, validate: validate, logger: logger}
}

func (h *OutfitHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /outfits/generate", authMw(http.HandlerFunc(h.generate)))
}

// generate godoc
// @Summary Generate outfit suggestions
// @Description Asks the recommender for outfits built from the posted wardrobe. Consumes one outfit generation.
// @Tags outfits
// @Accept json
// @Produce json
// @Param request body dto.OutfitGenerateRequest true "Wardrobe and preferences"
// @Success 200 {object} model.OutfitResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse "inactive subscription"
// @Failure 429 {object} dto.ErrorResponse "weekly limit reached"
// @Failure 502 {object} dto.ErrorResponse "recommender failed or returned malformed output"
// @Router /outfits/generate [post]
func (h *OutfitHandler) generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.OutfitGenerateRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	outfits, err := h.outfitService.GenerateOutfits(r.Context(), userID, req.Wardrobe, req.StylePreferences)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, outfits)
}
