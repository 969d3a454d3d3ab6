package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/p-ddong/floratio-lib-client/internal/models"
	"github.com/p-ddong/floratio-lib-client/internal/search"
	"github.com/p-ddong/floratio-lib-client/internal/wizard"
)

type searchData struct {
	Searched bool
	Filename string
	Results  []models.PlantPrediction
	Error    string
}

// SearchFormHandler shows the image search form
func (h *Handler) SearchFormHandler(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "search.html", "search-results", "Identify a plant", searchData{})
}

// SearchHandler identifies the uploaded photo and lists the matching plants
func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		log.Warn().Err(err).Msg("Failed to parse search upload")
		h.render(w, r, http.StatusBadRequest, "search.html", "search-results", "Identify a plant",
			searchData{Searched: true, Error: "Please choose an image to search with"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.render(w, r, http.StatusBadRequest, "search.html", "search-results", "Identify a plant",
			searchData{Searched: true, Error: "Please choose an image to search with"})
		return
	}
	file.Close()

	data, contentType, err := readUpload(header)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read search upload")
		h.render(w, r, http.StatusBadRequest, "search.html", "search-results", "Identify a plant",
			searchData{Searched: true, Error: "Failed to read the image"})
		return
	}

	results, err := h.Searcher.Search(r.Context(), h.session(r).ID, search.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})

	out := searchData{Searched: true, Filename: header.Filename, Results: results}
	status := http.StatusOK
	switch {
	case err == nil:
		log.Info().Str("filename", header.Filename).Int("results", len(results)).Msg("Image search completed")
	case errors.Is(err, search.ErrSearchInProgress):
		out.Error = "A search is already running, please wait for it to finish"
		status = http.StatusConflict
	case errors.Is(err, wizard.ErrNotAnImage), errors.Is(err, wizard.ErrImageTooLarge):
		out.Error = "Please upload an image file of at most 5 MB"
		status = http.StatusBadRequest
	default:
		out.Error = "Could not identify the plant, please try again"
		status = http.StatusBadGateway
	}

	h.render(w, r, status, "search.html", "search-results", "Identify a plant", out)
}
