package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/harness"
	"github.com/roach88/convoprobe/internal/rule"
	"github.com/roach88/convoprobe/internal/turn"
)

var _ harness.RunRecorder = (*Store)(nil)

func testSummary(id string, started time.Time) *harness.RunSummary {
	return &harness.RunSummary{
		ID:        id,
		Selection: "suite:smoke",
		Timestamp: started,
		Results: []*harness.ScenarioResult{
			{
				Scenario: catalog.Scenario{ID: "greeting-basic", Name: "Basic greeting", Category: "greeting"},
				Status:   harness.StatusPass,
				Mode:     turn.ModeSingle,
				Turns: []turn.Result{{
					UserMessage:        "Hi there!",
					ResponseText:       "Hello! <Welcome> & enjoy",
					DetectionSource:    turn.SourceKeyword,
					KnowledgeFilesUsed: []string{},
					ResponseLatencyMs:  120,
				}},
				ElapsedMs: 130,
				RuleResults: []rule.Result{
					rule.Evaluate(rule.ContainsAny{Critical: true, Values: []string{"Hello"}}, turn.Result{ResponseText: "Hello"}),
				},
			},
			nil,
			{
				Scenario:    catalog.Scenario{ID: "silent", Name: "No messages", Category: "faq"},
				Status:      harness.StatusFail,
				RuleResults: []rule.Result{rule.ExecutionFailure("scenario has no messages")},
			},
		},
		Total:          3,
		Completed:      2,
		PassCount:      1,
		FailCount:      1,
		TotalElapsedMs: 400,
		Cancelled:      true,
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, testSummary("run-1", started)))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunRecord{
		ID:        "run-1",
		Selection: "suite:smoke",
		StartedAt: started,
		Total:     3,
		Completed: 2,
		PassCount: 1,
		FailCount: 1,
		ElapsedMs: 400,
		Cancelled: true,
	}, run)

	results, err := s.RunResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2, "never-claimed scenarios are not stored")

	assert.Equal(t, 0, results[0].Position)
	assert.Equal(t, "greeting-basic", results[0].ScenarioID)
	assert.Equal(t, harness.StatusPass, results[0].Status)
	assert.Equal(t, turn.ModeSingle, results[0].Mode)
	require.Len(t, results[0].Turns, 1)
	assert.Equal(t, "Hello! <Welcome> & enjoy", results[0].Turns[0].ResponseText)
	require.Len(t, results[0].RuleResults, 1)
	assert.True(t, results[0].RuleResults[0].Passed)
	assert.Equal(t, "Found: Hello", results[0].RuleResults[0].Detail)
	assert.Nil(t, results[0].RuleResults[0].Rule)

	assert.Equal(t, 2, results[1].Position)
	assert.Equal(t, harness.StatusFail, results[1].Status)
	assert.Empty(t, results[1].Turns)
	assert.Equal(t, rule.TypeExecution, results[1].RuleResults[0].Type)
}

func TestRecordRun_DuplicateIDRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, testSummary("run-1", started)))
	err := s.RecordRun(ctx, testSummary("run-1", started.Add(time.Hour)))
	require.Error(t, err)

	results, err := s.RunResults(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, s.RecordRun(ctx, testSummary(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestRecentRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestScenarioHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordRun(ctx, testSummary("run-a", base)))
	require.NoError(t, s.RecordRun(ctx, testSummary("run-b", base.Add(time.Minute))))

	hist, err := s.ScenarioHistory(ctx, "silent", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "run-b", hist[0].RunID)
	assert.Equal(t, "run-a", hist[1].RunID)
}
