package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/basel-ax/fitroom/internal/domain"
	"github.com/basel-ax/fitroom/internal/logger"
	"github.com/basel-ax/fitroom/internal/tracing"
)

// RelayConfig holds the fixed parameters of every submission
type RelayConfig struct {
	ModelVersion       string
	GarmentDescription string
	PollInterval       time.Duration
	PollTimeout        time.Duration
	MaxConcurrent      int
}

// Relay submits try-on jobs to the prediction service and waits for them
type Relay struct {
	predictions domain.PredictionService
	history     domain.HistoryStore
	cfg         RelayConfig
	sem         *semaphore.Weighted
	logger      *slog.Logger
	tracer      trace.Tracer
}

// RelayOption configures optional collaborators of a Relay.
type RelayOption func(*Relay)

// WithHistory records successful try-ons that carry a session id.
func WithHistory(store domain.HistoryStore) RelayOption {
	return func(r *Relay) { r.history = store }
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) RelayOption {
	return func(r *Relay) { r.tracer = t }
}

// WithLogger sets the relay logger.
func WithLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = l }
}

// NewRelay creates a new relay
func NewRelay(predictions domain.PredictionService, cfg RelayConfig, opts ...RelayOption) *Relay {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	r := &Relay{
		predictions: predictions,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:      logger.Discard(),
		tracer:      tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Relay validates the request, submits one prediction and blocks until it
// reaches a terminal state, the poll budget expires or ctx is done. The
// budget also covers the wait for a free relay slot.
func (r *Relay) Relay(ctx context.Context, req domain.SynthesisRequest) (*domain.RelayResult, error) {
	const op = "relay"

	if err := req.Validate(); err != nil {
		return nil, &domain.RelayError{Op: op, Kind: domain.KindInvalidRequest, Err: err}
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PollTimeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "relay")
	defer span.End()

	started := time.Now()
	result, err := r.run(ctx, req, span)
	if err != nil {
		err = r.classify(op, parent, ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		r.logger.Warn("relay.failed",
			"kind", domain.KindOf(err),
			"elapsed", time.Since(started),
			"error", err,
		)
		return nil, err
	}

	r.logger.Info("relay.succeeded",
		"prediction_id", result.PredictionID,
		"elapsed", time.Since(started),
	)

	if req.SessionID != "" && r.history != nil {
		r.recordHistory(context.WithoutCancel(parent), req, result)
	}

	return result, nil
}

func (r *Relay) run(ctx context.Context, req domain.SynthesisRequest, span trace.Span) (*domain.RelayResult, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a relay slot: %w", err)
	}
	defer r.sem.Release(1)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("waiting for a relay slot: %w", err)
	}

	pred, err := r.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("prediction.id", pred.ID))
	r.logger.Debug("relay.submitted", "prediction_id", pred.ID, "status", pred.Status)

	pred, err = r.waitForCompletion(ctx, pred)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("prediction.status", string(pred.Status)))

	if pred.Status != domain.StatusSucceeded {
		msg := pred.Error
		if msg == "" {
			msg = "prediction failed"
		}
		return nil, &domain.RelayError{
			Op:     "relay.result",
			Kind:   domain.KindUpstreamJobFailed,
			Status: pred.Status,
			Err:    fmt.Errorf("prediction %s: %s", pred.ID, msg),
		}
	}
	if pred.Output == "" {
		return nil, &domain.RelayError{
			Op:     "relay.result",
			Kind:   domain.KindUpstreamJobFailed,
			Status: pred.Status,
			Err:    fmt.Errorf("prediction %s succeeded without output", pred.ID),
		}
	}

	return &domain.RelayResult{PredictionID: pred.ID, Output: pred.Output}, nil
}

func (r *Relay) submit(ctx context.Context, req domain.SynthesisRequest) (*domain.Prediction, error) {
	ctx, span := r.tracer.Start(ctx, "relay.submit", trace.WithAttributes(
		attribute.String("model.version", r.cfg.ModelVersion),
	))
	pred, err := r.predictions.CreatePrediction(ctx, r.cfg.ModelVersion, domain.PredictionInput{
		HumanImage:         req.SubjectImageURL,
		GarmentImage:       req.GarmentImageURL,
		GarmentDescription: r.cfg.GarmentDescription,
	})
	if err == nil {
		span.SetAttributes(attribute.String("prediction.id", pred.ID))
	}
	endSpan(span, err)
	return pred, err
}

// waitForCompletion polls until the prediction leaves the non-terminal states
func (r *Relay) waitForCompletion(ctx context.Context, pred *domain.Prediction) (*domain.Prediction, error) {
	for attempt := 1; !pred.Status.Terminal(); attempt++ {
		timer := time.NewTimer(r.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return pred, ctx.Err()
		case <-timer.C:
		}

		next, err := r.poll(ctx, pred.ID, attempt)
		if err != nil {
			return pred, err
		}
		if next.ID == "" {
			next.ID = pred.ID
		}
		r.logger.Debug("relay.polled", "prediction_id", next.ID, "attempt", attempt, "status", next.Status)
		pred = next
	}
	return pred, nil
}

func (r *Relay) poll(ctx context.Context, id string, attempt int) (*domain.Prediction, error) {
	ctx, span := r.tracer.Start(ctx, "relay.poll", trace.WithAttributes(
		attribute.String("prediction.id", id),
		attribute.Int("poll.attempt", attempt),
	))
	pred, err := r.predictions.GetPrediction(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.String("prediction.status", string(pred.Status)))
	}
	endSpan(span, err)
	return pred, err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// classify turns context expiry into timeout or cancellation errors; the
// caller's own cancellation wins over the poll budget. Errors that did not
// come from a done context keep their kind.
func (r *Relay) classify(op string, parent, ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		switch {
		case parent.Err() != nil:
			return &domain.RelayError{Op: op, Kind: domain.KindCanceled, Err: err}
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return &domain.RelayError{
				Op:   op,
				Kind: domain.KindUpstreamTimeout,
				Err:  fmt.Errorf("prediction did not finish within %s: %w", r.cfg.PollTimeout, err),
			}
		}
	}

	var re *domain.RelayError
	if errors.As(err, &re) {
		return err
	}
	return &domain.RelayError{Op: op, Kind: domain.KindInternal, Err: err}
}

func (r *Relay) recordHistory(ctx context.Context, req domain.SynthesisRequest, result *domain.RelayResult) {
	entry := domain.HistoryEntry{
		ID:             uuid.NewString(),
		SessionID:      req.SessionID,
		UserImageURL:   req.SubjectImageURL,
		GarmentID:      req.GarmentID,
		ResultImageURL: result.Output,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.history.Record(ctx, entry); err != nil {
		r.logger.Error("relay.history_failed",
			"prediction_id", result.PredictionID,
			"session_id", req.SessionID,
			"error", err,
		)
	}
}
