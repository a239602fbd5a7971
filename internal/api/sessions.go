package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/basel-ax/fitroom/internal/domain"
)

func isSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// sessionFromPath reads and validates the {sessionID} route variable. It
// writes the 400 response itself when the id is malformed.
func sessionFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["sessionID"]
	if !isSessionID(id) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return "", false
	}
	return strings.ToLower(id), true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": uuid.NewString()})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromPath(w, r)
	if !ok {
		return
	}

	entries, err := s.history.ListBySession(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("history.list_failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromPath(w, r)
	if !ok {
		return
	}

	favs, err := s.favorites.ListBySession(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("favorites.list_failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load favorites")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorites": favs})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromPath(w, r)
	if !ok {
		return
	}
	garmentID := strings.TrimSpace(mux.Vars(r)["garmentID"])
	if garmentID == "" {
		writeError(w, http.StatusBadRequest, "garment id is required")
		return
	}

	err := s.favorites.Add(r.Context(), domain.Favorite{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		GarmentID: garmentID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("favorites.add_failed", "session_id", sessionID, "garment_id", garmentID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFromPath(w, r)
	if !ok {
		return
	}
	garmentID := mux.Vars(r)["garmentID"]

	if err := s.favorites.Remove(r.Context(), sessionID, garmentID); err != nil {
		s.logger.Error("favorites.remove_failed", "session_id", sessionID, "garment_id", garmentID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove favorite")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
