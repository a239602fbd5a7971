package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/basel-ax/fitroom/internal/domain"
)

func (s *Server) handleListGarments(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	garments, err := s.garments.List(r.Context(), category)
	if err != nil {
		s.logger.Error("garments.list_failed", "category", category, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load garments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"garments": garments})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.garments.Categories(r.Context())
	if err != nil {
		s.logger.Error("garments.categories_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	garmentID := mux.Vars(r)["garmentID"]

	recs := []domain.Recommendation{}
	if s.recommendations != nil {
		var err error
		recs, err = s.recommendations.ListForGarment(r.Context(), garmentID)
		if err != nil {
			s.logger.Error("garments.recommendations_failed", "garment_id", garmentID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to load recommendations")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}
