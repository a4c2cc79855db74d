package handler

import (
	"net/http"

	"github.com/nikolayy-dimitrov/indumenta-be/internal/api/v1/dto"
	"github.com/nikolayy-dimitrov/indumenta-be/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ImageHandler handles wardrobe image endpoints.
type ImageHandler struct {
	imageService service.ImageService
	validate     *validator.Validate
	logger       zerolog.Logger
}

func NewImageHandler(imageService service.ImageService, validate *validator.Validate, logger zerolog.Logger) *ImageHandler {
	return &ImageHandler{imageService: imageService, validate: validate, logger: logger}
}

// RegisterRoutes mounts image routes
func (h *ImageHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("POST /images/upload-url", authMw(http.HandlerFunc(h.uploadURL)))
	mux.Handle("POST /images/analyze", authMw(http.HandlerFunc(h.analyze)))
}

// uploadURL godoc
// @Summary Get a presigned upload URL
// @Description Returns a presigned PUT URL and the wardrobe item id the image will belong to.
// @Tags images
// @Accept json
// @Produce json
// @Param request body dto.UploadURLRequest true "Upload request"
// @Success 200 {object} service.UploadTarget
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /images/upload-url [post]
func (h *ImageHandler) uploadURL(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.UploadURLRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	target, err := h.imageService.CreateUploadURL(r.Context(), userID, req.Filename, req.ContentType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// analyze godoc
// @Summary Analyze an uploaded wardrobe image
// @Description Labels the image, stores the analysis on the wardrobe item and consumes one image upload.
// @Tags images
// @Accept json
// @Produce json
// @Param request body dto.ImageAnalyzeRequest true "Image to analyze"
// @Success 200 {object} dto.ImageAnalyzeResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse "inactive subscription"
// @Failure 404 {object} dto.ErrorResponse "image not found"
// @Failure 429 {object} dto.ErrorResponse "weekly limit reached"
// @Failure 502 {object} dto.ErrorResponse
// @Router /images/analyze [post]
func (h *ImageHandler) analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.ImageAnalyzeRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	analysis, err := h.imageService.AnalyzeImage(r.Context(), userID, req.ImagePath, req.DocID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ImageAnalyzeResponse{Success: true, DocID: req.DocID, Analysis: analysis})
}
