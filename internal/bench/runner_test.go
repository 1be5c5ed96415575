package bench

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/ragctl/internal/api"
	"github.com/koopa0/ragctl/internal/log"
)

// fakeRetriever records queries in call order and answers from a script.
type fakeRetriever struct {
	mu      sync.Mutex
	queries []string
	// respond maps query -> scripted error; unlisted queries succeed.
	failOn map[string]error
	scores []float64
}

func (f *fakeRetriever) TestRetrieval(ctx context.Context, query string) (*api.RetrievalResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.failOn[query]; ok {
		return nil, err
	}

	hits := make([]api.RetrievalHit, 0, len(f.scores))
	for _, score := range f.scores {
		hits = append(hits, api.RetrievalHit{Title: "doc", Score: score})
	}
	return &api.RetrievalResult{
		ResultsCount: len(hits),
		Results:      hits,
	}, nil
}

func (f *fakeRetriever) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.queries))
	copy(out, f.queries)
	return out
}

func newTestRunner(t *testing.T, retriever Retriever) *Runner {
	t.Helper()
	r, err := NewRunner(retriever, 0, log.NewNop())
	require.NoError(t, err)
	return r
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, 0, log.NewNop())
	assert.Error(t, err)

	_, err = NewRunner(&fakeRetriever{}, 0, nil)
	assert.Error(t, err)
}

func TestNewRunner_SeedsDefaultScenarios(t *testing.T) {
	r := newTestRunner(t, &fakeRetriever{})

	scenarios := r.Scenarios()
	require.Len(t, scenarios, 5)

	seen := make(map[string]bool)
	for _, sc := range scenarios {
		assert.NotEmpty(t, sc.ID)
		assert.NotEmpty(t, sc.Query)
		assert.False(t, seen[sc.ID], "scenario IDs must be unique")
		seen[sc.ID] = true
	}
}

func TestRunAll_SequentialInScenarioOrder(t *testing.T) {
	retriever := &fakeRetriever{scores: []float64{0.9, 0.5}}
	r := newTestRunner(t, retriever)

	var progress [][2]int
	err := r.RunAll(context.Background(), func(completed, total int) {
		progress = append(progress, [2]int{completed, total})
	})
	require.NoError(t, err)

	scenarios := r.Scenarios()
	calls := retriever.calls()
	require.Len(t, calls, len(scenarios))
	for i, sc := range scenarios {
		assert.Equal(t, sc.Query, calls[i], "scenario %d ran out of order", i)
	}

	require.Len(t, progress, len(scenarios))
	for i, p := range progress {
		assert.Equal(t, i+1, p[0])
		assert.Equal(t, len(scenarios), p[1])
	}

	results := r.Results()
	require.Len(t, results, len(scenarios))
	for _, sc := range scenarios {
		res, ok := results[sc.ID]
		require.True(t, ok)
		assert.Equal(t, StatusOK, res.Status)
		assert.Equal(t, 2, res.ResultCount)
		assert.InDelta(t, 0.9, res.TopScore, 1e-9)
	}

	running, frac := r.Running()
	assert.False(t, running)
	assert.InDelta(t, 1.0, frac, 1e-9)
}

func TestRunAll_RecordsFailuresAndKeepsGoing(t *testing.T) {
	retriever := &fakeRetriever{
		scores: []float64{0.7},
		failOn: map[string]error{"How do refunds work?": errors.New("backend down")},
	}
	r := newTestRunner(t, retriever)

	require.NoError(t, r.RunAll(context.Background(), nil))

	results := r.Results()
	require.Len(t, results, 5)

	var failed int
	for _, res := range results {
		if res.Status == StatusError {
			failed++
			assert.Contains(t, res.Error, "backend down")
			assert.Zero(t, res.ResultCount)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestRunAll_SingleFlight(t *testing.T) {
	r := newTestRunner(t, &fakeRetriever{})
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	err := r.RunAll(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestRunAll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(t, &fakeRetriever{})
	err := r.RunAll(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.Results())
}

func TestRunOne_AdHocQuery(t *testing.T) {
	retriever := &fakeRetriever{scores: []float64{0.42}}
	r := newTestRunner(t, retriever)

	res, err := r.RunOne(context.Background(), "where are the docs?")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Empty(t, res.ScenarioID)
	assert.Equal(t, 1, res.ResultCount)

	assert.Empty(t, r.Results(), "ad-hoc runs must not enter the result map")
}

func TestRunOne_EmptyQuery(t *testing.T) {
	retriever := &fakeRetriever{}
	r := newTestRunner(t, retriever)

	_, err := r.RunOne(context.Background(), "   ")
	assert.Error(t, err)
	assert.Empty(t, retriever.calls())
}

func TestAddRemoveScenario(t *testing.T) {
	r := newTestRunner(t, &fakeRetriever{})

	id, err := r.AddScenario("Pricing", "How much does it cost?")
	require.NoError(t, err)
	assert.Len(t, r.Scenarios(), 6)

	_, err = r.AddScenario("empty", "  ")
	assert.Error(t, err)

	assert.True(t, r.RemoveScenario(id))
	assert.False(t, r.RemoveScenario(id))
	assert.Len(t, r.Scenarios(), 5)
}

func TestAggregates(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Aggregates
	}{
		{
			name:    "empty map yields zeros",
			results: map[string]Result{},
			want:    Aggregates{},
		},
		{
			name: "means over mixed outcomes",
			results: map[string]Result{
				"a": {Status: StatusOK, TopScore: 0.8, DurationSeconds: 1.0},
				"b": {Status: StatusOK, TopScore: 0.4, DurationSeconds: 3.0},
				"c": {Status: StatusError, DurationSeconds: 2.0},
			},
			want: Aggregates{
				Total:              3,
				Succeeded:          2,
				Failed:             1,
				AvgDurationSeconds: 2.0,
				AvgTopScore:        0.6,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregate(tt.results)
			assert.Equal(t, tt.want.Total, got.Total)
			assert.Equal(t, tt.want.Succeeded, got.Succeeded)
			assert.Equal(t, tt.want.Failed, got.Failed)
			assert.InDelta(t, tt.want.AvgDurationSeconds, got.AvgDurationSeconds, 1e-9)
			assert.InDelta(t, tt.want.AvgTopScore, got.AvgTopScore, 1e-9)
		})
	}
}

func TestExport_RoundTrip(t *testing.T) {
	retriever := &fakeRetriever{scores: []float64{0.9}}
	r := newTestRunner(t, retriever)
	require.NoError(t, r.RunAll(context.Background(), nil))

	var buf bytes.Buffer
	require.NoError(t, r.Export(&buf))

	exp, err := ReadExport(&buf)
	require.NoError(t, err)

	assert.WithinDuration(t, time.Now().UTC(), exp.ExportedAt, time.Minute)
	assert.Equal(t, r.Scenarios(), exp.Scenarios)
	assert.Equal(t, r.Results(), exp.Results)
	assert.Equal(t, r.Aggregates(), exp.Aggregates)
}

func TestReadExport_Malformed(t *testing.T) {
	_, err := ReadExport(bytes.NewBufferString("{not json"))
	assert.Error(t, err)
}

func TestRunAll_PacingLimiter(t *testing.T) {
	retriever := &fakeRetriever{}
	r, err := NewRunner(retriever, 10*time.Millisecond, log.NewNop())
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, r.RunAll(context.Background(), nil))
	elapsed := time.Since(start)

	// 5 scenarios, burst 1: at least 4 waits of ~10ms each.
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}
