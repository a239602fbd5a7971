package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/basel-ax/fitroom/internal/domain"
)

const maxErrorBody = 4 << 10

// Client represents the Replicate predictions API client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
}

var _ domain.PredictionService = (*Client)(nil)

// NewClient creates a new Replicate API client. baseURL is the API root,
// e.g. https://api.replicate.com/v1.
func NewClient(baseURL, apiToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiToken:   apiToken,
	}
}

type createPredictionRequest struct {
	Version string                 `json:"version"`
	Input   domain.PredictionInput `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

func (r predictionResponse) toDomain() *domain.Prediction {
	return &domain.Prediction{
		ID:     r.ID,
		Status: domain.NormalizeStatus(r.Status),
		Output: domain.DecodeOutput(r.Output),
		Error:  errorText(r.Error),
	}
}

// CreatePrediction submits a new prediction for the given model version
func (c *Client) CreatePrediction(ctx context.Context, version string, input domain.PredictionInput) (*domain.Prediction, error) {
	const op = "replicate.CreatePrediction"

	payload, err := json.Marshal(createPredictionRequest{Version: version, Input: input})
	if err != nil {
		return nil, &domain.RelayError{Op: op, Kind: domain.KindUpstreamSubmission, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.RelayError{Op: op, Kind: domain.KindUpstreamSubmission, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	result, err := c.do(httpReq)
	if err != nil {
		kind := domain.KindUpstreamSubmission
		if isAuthFailure(err) {
			kind = domain.KindUpstreamAuth
		}
		return nil, &domain.RelayError{Op: op, Kind: kind, Err: err}
	}
	if result.ID == "" {
		return nil, &domain.RelayError{Op: op, Kind: domain.KindUpstreamSubmission, Err: fmt.Errorf("response carries no prediction id")}
	}

	return result.toDomain(), nil
}

// GetPrediction fetches the current state of a prediction
func (c *Client) GetPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	const op = "replicate.GetPrediction"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, &domain.RelayError{Op: op, Kind: domain.KindUpstreamStatus, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	result, err := c.do(httpReq)
	if err != nil {
		return nil, &domain.RelayError{Op: op, Kind: domain.KindUpstreamStatus, Err: err}
	}

	return result.toDomain(), nil
}

// StatusError reports a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, e.Body)
}

func isAuthFailure(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}

func (c *Client) do(httpReq *http.Request) (*predictionResponse, error) {
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// errorText flattens the API's error field, which may be null, a string or
// an object.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
