package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/basel-ax/fitroom/internal/domain"
	"github.com/basel-ax/fitroom/internal/repository"
)

type fakePredictions struct {
	mu sync.Mutex

	created   *domain.Prediction
	createErr error
	// successive status responses; the last one repeats once exhausted
	polls []*domain.Prediction

	gotVersion  string
	gotInput    domain.PredictionInput
	submitCalls int
	pollTimes   []time.Time
}

func (f *fakePredictions) CreatePrediction(_ context.Context, version string, input domain.PredictionInput) (*domain.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.gotVersion = version
	f.gotInput = input
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := *f.created
	return &p, nil
}

func (f *fakePredictions) GetPrediction(_ context.Context, id string) (*domain.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollTimes = append(f.pollTimes, time.Now())
	if len(f.polls) == 0 {
		return &domain.Prediction{ID: id, Status: domain.StatusRunning}, nil
	}
	p := *f.polls[0]
	if len(f.polls) > 1 {
		f.polls = f.polls[1:]
	}
	return &p, nil
}

func (f *fakePredictions) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pollTimes)
}

func testConfig() RelayConfig {
	return RelayConfig{
		ModelVersion:       "v-test",
		GarmentDescription: "A garment item",
		PollInterval:       20 * time.Millisecond,
		PollTimeout:        2 * time.Second,
		MaxConcurrent:      4,
	}
}

func validRequest() domain.SynthesisRequest {
	return domain.SynthesisRequest{
		SubjectImageURL: "https://x/me.png",
		GarmentImageURL: "https://x/shirt.png",
	}
}

func TestRelay_MissingImageMakesNoCalls(t *testing.T) {
	f := &fakePredictions{created: &domain.Prediction{ID: "p1", Status: domain.StatusSucceeded, Output: "https://x/out.png"}}
	r := NewRelay(f, testConfig())

	for _, req := range []domain.SynthesisRequest{
		{GarmentImageURL: "https://x/shirt.png"},
		{SubjectImageURL: "https://x/me.png"},
		{},
	} {
		_, err := r.Relay(context.Background(), req)
		if !domain.IsKind(err, domain.KindInvalidRequest) {
			t.Fatalf("expected invalid_request, got %v", err)
		}
	}
	if f.submitCalls != 0 || f.pollCount() != 0 {
		t.Fatalf("expected no outbound calls, got submit=%d polls=%d", f.submitCalls, f.pollCount())
	}
}

func TestRelay_ImmediateSuccessSkipsPolling(t *testing.T) {
	f := &fakePredictions{created: &domain.Prediction{ID: "p1", Status: domain.StatusSucceeded, Output: "https://x/out.png"}}
	r := NewRelay(f, testConfig())

	res, err := r.Relay(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if res.Output != "https://x/out.png" || res.PredictionID != "p1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.pollCount() != 0 {
		t.Fatalf("expected zero status fetches, got %d", f.pollCount())
	}
	if f.gotVersion != "v-test" {
		t.Fatalf("version = %s", f.gotVersion)
	}
	want := domain.PredictionInput{HumanImage: "https://x/me.png", GarmentImage: "https://x/shirt.png", GarmentDescription: "A garment item"}
	if f.gotInput != want {
		t.Fatalf("input = %+v, want %+v", f.gotInput, want)
	}
}

func TestRelay_PollsUntilSucceeded(t *testing.T) {
	f := &fakePredictions{
		created: &domain.Prediction{ID: "p2", Status: domain.NormalizeStatus("starting")},
		polls: []*domain.Prediction{
			{ID: "p2", Status: domain.NormalizeStatus("processing")},
			{ID: "p2", Status: domain.StatusSucceeded, Output: "https://x/out2.png"},
		},
	}
	cfg := testConfig()
	r := NewRelay(f, cfg)

	started := time.Now()
	res, err := r.Relay(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if res.Output != "https://x/out2.png" {
		t.Fatalf("output = %s", res.Output)
	}
	if len(f.pollTimes) != 2 {
		t.Fatalf("expected exactly 2 status fetches, got %d", len(f.pollTimes))
	}
	if gap := f.pollTimes[0].Sub(started); gap < cfg.PollInterval {
		t.Fatalf("first poll after %v, want >= %v", gap, cfg.PollInterval)
	}
	if gap := f.pollTimes[1].Sub(f.pollTimes[0]); gap < cfg.PollInterval {
		t.Fatalf("polls %v apart, want >= %v", gap, cfg.PollInterval)
	}
}

func TestRelay_TerminalFailure(t *testing.T) {
	for _, status := range []domain.PredictionStatus{domain.StatusFailed, domain.StatusCanceled, "exploded"} {
		t.Run(string(status), func(t *testing.T) {
			f := &fakePredictions{
				created: &domain.Prediction{ID: "p3", Status: domain.StatusRunning},
				polls:   []*domain.Prediction{{ID: "p3", Status: status, Error: "boom"}},
			}
			r := NewRelay(f, testConfig())

			res, err := r.Relay(context.Background(), validRequest())
			if res != nil {
				t.Fatalf("expected no result, got %+v", res)
			}
			var re *domain.RelayError
			if !errors.As(err, &re) || re.Kind != domain.KindUpstreamJobFailed || re.Status != status {
				t.Fatalf("expected upstream_job_failed with status %s, got %v", status, err)
			}
		})
	}
}

func TestRelay_SucceededWithoutOutput(t *testing.T) {
	f := &fakePredictions{created: &domain.Prediction{ID: "p1", Status: domain.StatusSucceeded}}
	r := NewRelay(f, testConfig())

	_, err := r.Relay(context.Background(), validRequest())
	if !domain.IsKind(err, domain.KindUpstreamJobFailed) {
		t.Fatalf("expected upstream_job_failed, got %v", err)
	}
}

func TestRelay_SubmissionFailureSkipsPolling(t *testing.T) {
	f := &fakePredictions{createErr: &domain.RelayError{Op: "submit", Kind: domain.KindUpstreamAuth, Err: errors.New("401")}}
	r := NewRelay(f, testConfig())

	_, err := r.Relay(context.Background(), validRequest())
	if !domain.IsKind(err, domain.KindUpstreamAuth) {
		t.Fatalf("expected upstream_auth, got %v", err)
	}
	if f.pollCount() != 0 {
		t.Fatalf("expected no status fetches, got %d", f.pollCount())
	}
}

func TestRelay_TimesOutWhenJobNeverFinishes(t *testing.T) {
	f := &fakePredictions{created: &domain.Prediction{ID: "p4", Status: domain.StatusRunning}}
	cfg := testConfig()
	cfg.PollTimeout = 150 * time.Millisecond
	r := NewRelay(f, cfg)

	started := time.Now()
	_, err := r.Relay(context.Background(), validRequest())
	if !domain.IsKind(err, domain.KindUpstreamTimeout) {
		t.Fatalf("expected upstream_timeout, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("relay took %v, expected to stop near the budget", elapsed)
	}
	if f.pollCount() == 0 {
		t.Fatalf("expected some polling before the timeout")
	}
}

func TestRelay_CallerCancellationStopsPolling(t *testing.T) {
	f := &fakePredictions{created: &domain.Prediction{ID: "p5", Status: domain.StatusRunning}}
	r := NewRelay(f, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(60*time.Millisecond, cancel)

	_, err := r.Relay(ctx, validRequest())
	if !domain.IsKind(err, domain.KindCanceled) {
		t.Fatalf("expected canceled, got %v", err)
	}

	polls := f.pollCount()
	time.Sleep(80 * time.Millisecond)
	if f.pollCount() != polls {
		t.Fatalf("polling continued after cancellation")
	}
}

// cancelOnPoll cancels the caller's context while serving a status fetch.
type cancelOnPoll struct {
	*fakePredictions
	cancel context.CancelFunc
}

func (c cancelOnPoll) GetPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	c.cancel()
	return c.fakePredictions.GetPrediction(ctx, id)
}

func TestRelay_JobFailureSurvivesLateCancellation(t *testing.T) {
	f := &fakePredictions{
		created: &domain.Prediction{ID: "p6", Status: domain.StatusQueued},
		polls:   []*domain.Prediction{{ID: "p6", Status: domain.StatusFailed, Error: "NSFW content detected"}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRelay(cancelOnPoll{fakePredictions: f, cancel: cancel}, testConfig())

	_, err := r.Relay(ctx, validRequest())
	if !domain.IsKind(err, domain.KindUpstreamJobFailed) {
		t.Fatalf("expected upstream_job_failed, got %v", err)
	}
	var re *domain.RelayError
	if !errors.As(err, &re) || re.Status != domain.StatusFailed {
		t.Fatalf("expected failed status on error, got %#v", err)
	}
}

func TestRelay_SlotWaitCountsAgainstBudget(t *testing.T) {
	f := &fakePredictions{created: &domain.Prediction{ID: "p7", Status: domain.StatusRunning}}
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	cfg.PollTimeout = 300 * time.Millisecond
	r := NewRelay(f, cfg)

	first := make(chan error, 1)
	go func() {
		_, err := r.Relay(context.Background(), validRequest())
		first <- err
	}()
	time.Sleep(100 * time.Millisecond)

	started := time.Now()
	_, err := r.Relay(context.Background(), validRequest())
	elapsed := time.Since(started)

	if !domain.IsKind(err, domain.KindUpstreamTimeout) {
		t.Fatalf("expected upstream_timeout, got %v", err)
	}
	if elapsed > 450*time.Millisecond {
		t.Fatalf("queued relay took %v, budget is %v", elapsed, cfg.PollTimeout)
	}
	if err := <-first; !domain.IsKind(err, domain.KindUpstreamTimeout) {
		t.Fatalf("first relay: expected upstream_timeout, got %v", err)
	}
}

func TestRelay_QueuedCallerCancellation(t *testing.T) {
	b := &blockingPredictions{release: make(chan struct{})}
	defer close(b.release)
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	r := NewRelay(b, cfg)

	go r.Relay(context.Background(), validRequest())
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Relay(ctx, validRequest())
	if !domain.IsKind(err, domain.KindCanceled) {
		t.Fatalf("expected canceled while waiting for a slot, got %v", err)
	}
}

func TestRelay_RecordsSubmitAndPollSpans(t *testing.T) {
	f := &fakePredictions{
		created: &domain.Prediction{ID: "p8", Status: domain.StatusQueued},
		polls: []*domain.Prediction{
			{ID: "p8", Status: domain.StatusRunning},
			{ID: "p8", Status: domain.StatusSucceeded, Output: "https://x/out.png"},
		},
	}
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	r := NewRelay(f, testConfig(), WithTracer(tp.Tracer("relay-test")))
	if _, err := r.Relay(context.Background(), validRequest()); err != nil {
		t.Fatalf("Relay: %v", err)
	}

	counts := map[string]int{}
	var root sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		counts[s.Name()]++
		if s.Name() == "relay" {
			root = s
		}
	}
	if counts["relay"] != 1 || counts["relay.submit"] != 1 || counts["relay.poll"] != 2 {
		t.Fatalf("unexpected spans: %v", counts)
	}
	for _, s := range sr.Ended() {
		if s.Name() != "relay" && s.Parent().SpanID() != root.SpanContext().SpanID() {
			t.Fatalf("%s is not a child of the relay span", s.Name())
		}
	}
}

type blockingPredictions struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (b *blockingPredictions) CreatePrediction(ctx context.Context, _ string, _ domain.PredictionInput) (*domain.Prediction, error) {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &domain.Prediction{ID: "p", Status: domain.StatusSucceeded, Output: "https://x/o.png"}, nil
}

func (b *blockingPredictions) GetPrediction(context.Context, string) (*domain.Prediction, error) {
	return nil, errors.New("unexpected poll")
}

func TestRelay_CapsConcurrentRelays(t *testing.T) {
	b := &blockingPredictions{release: make(chan struct{})}
	cfg := testConfig()
	cfg.MaxConcurrent = 2
	r := NewRelay(b, cfg)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Relay(context.Background(), validRequest())
			errs <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(b.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Relay: %v", err)
		}
	}
	if peak := b.peak.Load(); peak != 2 {
		t.Fatalf("peak concurrency = %d, want 2", peak)
	}
}

func TestRelay_RecordsHistoryForSession(t *testing.T) {
	f := &fakePredictions{created: &domain.Prediction{ID: "p1", Status: domain.StatusSucceeded, Output: "https://x/out.png"}}
	store := repository.NewMemoryHistoryRepository()
	r := NewRelay(f, testConfig(), WithHistory(store))

	req := validRequest()
	if _, err := r.Relay(context.Background(), req); err != nil {
		t.Fatalf("Relay: %v", err)
	}

	req.SessionID = "6f1c2a4e-8d7b-4c1e-9a55-2b7f0c3d9e11"
	req.GarmentID = "g-1"
	if _, err := r.Relay(context.Background(), req); err != nil {
		t.Fatalf("Relay: %v", err)
	}

	entries, err := store.ListBySession(context.Background(), req.SessionID)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(entries))
	}
	e := entries[0]
	if e.ResultImageURL != "https://x/out.png" || e.UserImageURL != req.SubjectImageURL || e.GarmentID != "g-1" || e.ID == "" {
		t.Fatalf("unexpected entry: %+v", e)
	}
}
