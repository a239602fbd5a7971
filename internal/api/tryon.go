package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/basel-ax/fitroom/internal/domain"
)

const maxRequestBody = 1 << 20

type tryOnRequest struct {
	UserImageURL    string `json:"userImageUrl"`
	GarmentImageURL string `json:"garmentImageUrl"`
	SessionID       string `json:"sessionId,omitempty"`
	GarmentID       string `json:"garmentId,omitempty"`
}

type tryOnResponse struct {
	Output string `json:"output"`
}

type errorResponse struct {
	Error  string                  `json:"error"`
	Kind   domain.ErrorKind        `json:"kind,omitempty"`
	Status domain.PredictionStatus `json:"status,omitempty"`
}

func (s *Server) handleTryOn(w http.ResponseWriter, r *http.Request) {
	var req tryOnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "Invalid request body",
			Kind:  domain.KindInvalidRequest,
		})
		return
	}

	req.SessionID = strings.ToLower(strings.TrimSpace(req.SessionID))
	if req.SessionID != "" && !isSessionID(req.SessionID) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: "Invalid session id",
			Kind:  domain.KindInvalidRequest,
		})
		return
	}

	result, err := s.relay.Relay(r.Context(), domain.SynthesisRequest{
		SubjectImageURL: req.UserImageURL,
		GarmentImageURL: req.GarmentImageURL,
		SessionID:       req.SessionID,
		GarmentID:       req.GarmentID,
	})
	if err != nil {
		s.writeRelayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tryOnResponse{Output: result.Output})
}

func (s *Server) writeRelayError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	resp := errorResponse{Error: err.Error(), Kind: kind}

	var re *domain.RelayError
	if errors.As(err, &re) {
		resp.Status = re.Status
	}
	// Absent fields keep the message callers already match on.
	if kind == domain.KindInvalidRequest && errors.Is(err, domain.ErrInvalidRequest) {
		if re == nil || re.Err == domain.ErrInvalidRequest {
			resp.Error = "Missing required parameters"
		}
	}

	writeJSON(w, domain.HTTPStatus(kind), resp)
}
