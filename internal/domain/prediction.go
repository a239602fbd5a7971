package domain

import (
	"context"
	"encoding/json"
	"strings"
)

// PredictionStatus is the lifecycle state of an external prediction job.
type PredictionStatus string

const (
	StatusQueued    PredictionStatus = "queued"
	StatusRunning   PredictionStatus = "running"
	StatusSucceeded PredictionStatus = "succeeded"
	StatusFailed    PredictionStatus = "failed"
	StatusCanceled  PredictionStatus = "canceled"
)

// NormalizeStatus folds the provider's synonyms onto the relay's states.
// Values it does not recognise are returned lower-cased and unchanged, and
// are treated as terminal.
func NormalizeStatus(raw string) PredictionStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "queued", "pending":
		return StatusQueued
	case "starting", "processing", "running":
		return StatusRunning
	case "succeeded", "successful", "completed":
		return StatusSucceeded
	case "failed", "error":
		return StatusFailed
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return PredictionStatus(s)
	}
}

// Terminal reports whether no further transition is expected.
func (s PredictionStatus) Terminal() bool {
	return s != StatusQueued && s != StatusRunning
}

// Prediction is the latest known state of a job, as reported by the service.
type Prediction struct {
	ID     string
	Status PredictionStatus
	Output string
	Error  string
}

// PredictionInput is the model input submitted for one synthesis.
type PredictionInput struct {
	HumanImage         string `json:"human_img"`
	GarmentImage       string `json:"garm_img"`
	GarmentDescription string `json:"garment_des"`
}

// PredictionService defines the operations the relay needs from the provider.
type PredictionService interface {
	// CreatePrediction submits a new job for the given model version
	CreatePrediction(ctx context.Context, version string, input PredictionInput) (*Prediction, error)

	// GetPrediction fetches a point-in-time snapshot of a job
	GetPrediction(ctx context.Context, id string) (*Prediction, error)
}

// DecodeOutput extracts a single URI from a prediction's output field, which
// is either a string or an array of strings depending on the model.
func DecodeOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, v := range list {
			if v != "" {
				return v
			}
		}
	}
	return ""
}
