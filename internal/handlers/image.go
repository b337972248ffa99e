package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"image-track-backend/internal/services"
	"image-track-backend/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// maxUploadSize caps the in-memory part of multipart parsing
const maxUploadSize = 32 << 20

// ImageHandler handles upload and tracking HTTP requests
type ImageHandler struct {
	trackingService *services.TrackingService
}

// NewImageHandler creates a new image handler
func NewImageHandler(trackingService *services.TrackingService) *ImageHandler {
	return &ImageHandler{
		trackingService: trackingService,
	}
}

// Upload handles POST /api/upload
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, "No image uploaded", http.StatusBadRequest)
		return
	}

	var upload *services.FileUpload
	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		upload = &services.FileUpload{
			OriginalName: header.Filename,
			ContentType:  header.Header.Get("Content-Type"),
			Size:         header.Size,
			Body:         file,
		}
	}

	result, err := h.trackingService.HandleUpload(ctx, upload, r.FormValue("senderName"))
	if err != nil {
		if errors.Is(err, services.ErrNoFile) {
			respondError(w, "No image uploaded", http.StatusBadRequest)
			return
		}
		log.Error().Err(err).Msg("Failed to handle upload")
		respondError(w, "Upload failed", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("id", result.ID).
		Str("filename", upload.OriginalName).
		Msg("Image uploaded")

	respondJSON(w, map[string]interface{}{
		"message": "Upload successful",
		"id":      result.ID,
		"link":    result.Link,
	}, http.StatusCreated)
}

// trackRequest is the JSON body of a track call
type trackRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	UserAgent string   `json:"userAgent"`
}

// TrackView handles POST /api/track/{id}
func (h *ImageHandler) TrackView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req trackRequest
	if r.Body != nil {
		// an empty or malformed body still counts as a view
		json.NewDecoder(r.Body).Decode(&req)
	}

	geo := services.Geo{Latitude: req.Latitude, Longitude: req.Longitude}
	err := h.trackingService.TrackView(ctx, id, geo, req.UserAgent, r.UserAgent())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, "Image not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to track view")
		respondError(w, "Tracking failed", http.StatusInternalServerError)
		return
	}

	respondJSON(w, map[string]bool{"success": true}, http.StatusOK)
}

// GetImage handles GET /api/image/{id}
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	entry, err := h.trackingService.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, "Not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("id", id).Msg("Failed to get entry")
		respondError(w, "Lookup failed", http.StatusInternalServerError)
		return
	}

	respondJSON(w, entry, http.StatusOK)
}

// ListImages handles GET /api/images
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.trackingService.ListAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list entries")
		respondError(w, "Listing failed", http.StatusInternalServerError)
		return
	}

	respondJSON(w, entries, http.StatusOK)
}
