// Package bench implements the retrieval test harness.
//
// A Runner holds a mutable, ordered list of query scenarios and executes
// them against the backend's test-retrieval endpoint STRICTLY sequentially:
// one round trip must finish before the next starts. That is a deliberate
// ordering/progress trade-off, not a limitation - progress reporting stays
// exact and the backend is never hammered concurrently. An optional pacing
// limiter spaces consecutive queries.
//
// Aggregate metrics are recomputed from the current result map on every
// call; there is no incremental accumulator to drift out of sync.
package bench

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/koopa0/ragctl/internal/api"
	"github.com/koopa0/ragctl/internal/log"
)

// Result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ErrRunInProgress indicates a batch run is already executing.
var ErrRunInProgress = errors.New("a test run is already in progress")

// Retriever is the backend surface the harness needs.
// *api.Client satisfies it.
type Retriever interface {
	TestRetrieval(ctx context.Context, query string) (*api.RetrievalResult, error)
}

// Scenario is one canned query in the harness list.
type Scenario struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
}

// Result records one scenario execution. Ephemeral: held in memory for the
// current run only (and in exports).
type Result struct {
	ScenarioID      string    `json:"scenario_id"`
	Query           string    `json:"query"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	ResultCount     int       `json:"result_count"`
	Scores          []float64 `json:"scores,omitempty"`
	TopScore        float64   `json:"top_score"`
	DurationSeconds float64   `json:"duration_seconds"` // measured client-side
	CompletedAt     time.Time `json:"completed_at"`
}

// Aggregates are simple means over the current result map.
type Aggregates struct {
	Total              int     `json:"total"`
	Succeeded          int     `json:"succeeded"`
	Failed             int     `json:"failed"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	AvgTopScore        float64 `json:"avg_top_score"`
}

// ProgressFunc receives (completed, total) after each scenario finishes.
type ProgressFunc func(completed, total int)

// defaultScenarios seeds a fresh Runner.
var defaultScenarios = []Scenario{
	{Name: "Product overview", Query: "What does this product do?"},
	{Name: "Refund policy", Query: "How do refunds work?"},
	{Name: "Account deletion", Query: "How do I delete my account?"},
	{Name: "Data storage", Query: "Where is my data stored?"},
	{Name: "Contact support", Query: "How can I contact support?"},
}

// Runner executes retrieval test scenarios. Safe for concurrent use;
// batch runs are single-flight.
type Runner struct {
	retriever Retriever
	limiter   *rate.Limiter
	logger    log.Logger

	mu        sync.Mutex
	scenarios []Scenario
	results   map[string]Result
	running   bool
	completed int
}

// NewRunner creates a harness seeded with the five default scenarios.
// interval > 0 enables pacing between consecutive queries.
func NewRunner(retriever Retriever, interval time.Duration, logger log.Logger) (*Runner, error) {
	if retriever == nil {
		return nil, errors.New("bench.NewRunner: retriever is required")
	}
	if logger == nil {
		return nil, errors.New("bench.NewRunner: logger is required")
	}

	var limiter *rate.Limiter
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	scenarios := make([]Scenario, len(defaultScenarios))
	copy(scenarios, defaultScenarios)
	for i := range scenarios {
		scenarios[i].ID = uuid.NewString()
	}

	return &Runner{
		retriever: retriever,
		limiter:   limiter,
		logger:    logger,
		scenarios: scenarios,
		results:   make(map[string]Result),
	}, nil
}

// Scenarios returns a snapshot of the scenario list in execution order.
func (r *Runner) Scenarios() []Scenario {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Scenario, len(r.scenarios))
	copy(out, r.scenarios)
	return out
}

// AddScenario appends a scenario and returns its generated ID.
func (r *Runner) AddScenario(name, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("add scenario: query is required")
	}
	if strings.TrimSpace(name) == "" {
		name = query
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.scenarios = append(r.scenarios, Scenario{ID: id, Name: name, Query: query})
	return id, nil
}

// RemoveScenario deletes a scenario (and its result) by ID.
func (r *Runner) RemoveScenario(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sc := range r.scenarios {
		if sc.ID == id {
			r.scenarios = append(r.scenarios[:i], r.scenarios[i+1:]...)
			delete(r.results, id)
			return true
		}
	}
	return false
}

// Results returns a snapshot of the result map keyed by scenario ID.
func (r *Runner) Results() map[string]Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Result, len(r.results))
	for k, v := range r.results {
		out[k] = v
	}
	return out
}

// Running reports whether a batch run is in progress and its progress
// fraction in [0,1].
func (r *Runner) Running() (bool, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.scenarios) == 0 {
		return r.running, 0
	}
	return r.running, float64(r.completed) / float64(len(r.scenarios))
}

// RunAll executes every scenario in order, one at a time. Prior results
// are discarded at the start. onProgress (optional) fires after each
// scenario completes. Cancelling ctx stops the run between scenarios; the
// in-flight scenario records a cancellation error result.
func (r *Runner) RunAll(ctx context.Context, onProgress ProgressFunc) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrRunInProgress
	}
	r.running = true
	r.completed = 0
	r.results = make(map[string]Result)
	scenarios := make([]Scenario, len(r.scenarios))
	copy(scenarios, r.scenarios)
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	total := len(scenarios)
	for i, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		result := r.execute(ctx, sc.ID, sc.Query)

		r.mu.Lock()
		r.results[sc.ID] = result
		r.completed = i + 1
		r.mu.Unlock()

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	return nil
}

// RunOne executes one ad-hoc query immediately, outside the scenario list.
// The result is returned but not recorded in the result map.
func (r *Runner) RunOne(ctx context.Context, query string) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, errors.New("run: query is required")
	}
	return r.execute(ctx, "", query), nil
}

// execute performs one retrieval round trip and shapes the Result.
// Duration is measured client-side.
func (r *Runner) execute(ctx context.Context, scenarioID, query string) Result {
	start := time.Now()
	res, err := r.retriever.TestRetrieval(ctx, query)
	elapsed := time.Since(start).Seconds()

	result := Result{
		ScenarioID:      scenarioID,
		Query:           query,
		DurationSeconds: elapsed,
		CompletedAt:     time.Now().UTC(),
	}

	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		r.logger.Warn("retrieval test failed", "query", query, "error", err)
		return result
	}

	result.Status = StatusOK
	result.ResultCount = res.ResultsCount
	result.Scores = make([]float64, 0, len(res.Results))
	for _, hit := range res.Results {
		result.Scores = append(result.Scores, hit.Score)
		if hit.Score > result.TopScore {
			result.TopScore = hit.Score
		}
	}

	r.logger.Debug("retrieval test completed",
		"query", query,
		"results", result.ResultCount,
		"top_score", result.TopScore,
		"duration_seconds", result.DurationSeconds)

	return result
}

// Aggregates recomputes summary statistics from the current result map.
// An empty map yields zeros, never NaN.
func (r *Runner) Aggregates() Aggregates {
	r.mu.Lock()
	defer r.mu.Unlock()
	return aggregate(r.results)
}

// aggregate computes means over a result map.
func aggregate(results map[string]Result) Aggregates {
	agg := Aggregates{Total: len(results)}
	if agg.Total == 0 {
		return agg
	}

	var durationSum, topScoreSum float64
	for _, res := range results {
		durationSum += res.DurationSeconds
		switch res.Status {
		case StatusOK:
			agg.Succeeded++
			topScoreSum += res.TopScore
		default:
			agg.Failed++
		}
	}

	agg.AvgDurationSeconds = durationSum / float64(agg.Total)
	if agg.Succeeded > 0 {
		agg.AvgTopScore = topScoreSum / float64(agg.Succeeded)
	}
	return agg
}

// String renders aggregates for plain CLI output.
func (a Aggregates) String() string {
	return fmt.Sprintf("total=%d ok=%d failed=%d avg_duration=%.3fs avg_top_score=%.3f",
		a.Total, a.Succeeded, a.Failed, a.AvgDurationSeconds, a.AvgTopScore)
}
