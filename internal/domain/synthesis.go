package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// SynthesisRequest represents one try-on submission
type SynthesisRequest struct {
	SubjectImageURL string
	GarmentImageURL string

	// Optional; when set the outcome is recorded in the session's history.
	SessionID string
	GarmentID string
}

// Validate checks both image references before anything is sent upstream.
func (r SynthesisRequest) Validate() error {
	if strings.TrimSpace(r.SubjectImageURL) == "" || strings.TrimSpace(r.GarmentImageURL) == "" {
		return ErrInvalidRequest
	}
	for _, raw := range []string{r.SubjectImageURL, r.GarmentImageURL} {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidRequest, raw)
		}
	}
	return nil
}

// RelayResult is returned to the caller on success
type RelayResult struct {
	PredictionID string
	Output       string
}
