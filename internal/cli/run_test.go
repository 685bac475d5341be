package cli

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/convoprobe/internal/assistant"
	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/harness"
	"github.com/roach88/convoprobe/internal/turn"
)

func TestRunAllPass(t *testing.T) {
	f := newFixture(t)

	stdout, stderr, err := execute(newRunCommand(f.runOptions("text")))
	require.NoError(t, err)

	assert.Contains(t, stdout, "Run run-1 (all) at ")
	assert.Contains(t, stdout, "[PASS] greeting-basic: Basic greeting (single, 1 turn")
	assert.Contains(t, stdout, "[PASS] booking-flow: Capsule booking (multi, 3 turns")
	assert.Contains(t, stdout, "4/4 completed: 4 pass, 0 warn, 0 fail")

	// Progress goes to stderr, never into the report.
	assert.Contains(t, stderr, "/4] ")
	assert.NotContains(t, stdout, "[1/4]")
}

func TestRunScenarioFailureExitsOne(t *testing.T) {
	f := newFixture(t)
	f.assistant.Replies["Hi there!"] = assistant.Reply{Response: "Goodbye.", DetectedLanguage: "en"}

	stdout, _, err := execute(newRunCommand(f.runOptions("text")))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 scenario(s) failed")

	assert.Contains(t, stdout, "[FAIL] greeting-basic")
	assert.Contains(t, stdout, "  - turn 0 contains_any (critical): None of [Hello, Welcome, Hi] found")
}

func TestRunFailOnWarn(t *testing.T) {
	f := newFixture(t)
	// language is non-critical: the scenario warns.
	f.assistant.Replies["Selamat pagi"] = assistant.Reply{Response: "Good morning!", DetectedLanguage: "en"}

	t.Run("warn_allowed", func(t *testing.T) {
		stdout, _, err := execute(newRunCommand(f.runOptions("text")), "suite:language")
		require.NoError(t, err)
		assert.Contains(t, stdout, "[WARN] greeting-malay")
	})

	t.Run("fail_on_warn", func(t *testing.T) {
		_, _, err := execute(newRunCommand(f.runOptions("text")), "suite:language", "--fail-on-warn")
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "1 scenario(s) warned")
	})
}

func TestRunFilter(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := execute(newRunCommand(f.runOptions("text")), "smoke")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Run run-1 (smoke)")
	assert.Contains(t, stdout, "greeting-basic")
	assert.Contains(t, stdout, "faq-breakfast")
	assert.NotContains(t, stdout, "booking-flow")
	assert.Contains(t, stdout, "2/2 completed")
}

func TestRunUnknownFilter(t *testing.T) {
	f := newFixture(t)

	_, _, err := execute(newRunCommand(f.runOptions("text")), "nosuch")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, errors.Is(err, catalog.ErrUnknownFilter))
	assert.Empty(t, f.assistant.ClassifyCalls(), "nothing is sent for an invalid filter")
}

func TestRunJSON(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := execute(newRunCommand(f.runOptions("json")), "suite:smoke")
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	assert.Equal(t, "ok", env.Status)
	assert.Equal(t, "run-1", env.RunID)
	assert.Nil(t, env.Error)

	var sum harness.RunSummary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	assert.Equal(t, "run-1", sum.ID)
	assert.Equal(t, "suite:smoke", sum.Selection)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.PassCount)
	require.Len(t, sum.Results, 2)
	assert.Equal(t, "greeting-basic", sum.Results[0].Scenario.ID)
	assert.Equal(t, turn.ModeSingle, sum.Results[0].Mode)
}

func TestRunJSONFailureEnvelope(t *testing.T) {
	f := newFixture(t)
	f.assistant.Replies["Hi there!"] = assistant.Reply{Response: ""}

	stdout, _, err := execute(newRunCommand(f.runOptions("json")), "suite:smoke")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	env := decodeEnvelope(t, stdout)
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeScenarioFails, env.Error.Code)
	assert.NotEmpty(t, env.Data, "the summary is still reported")
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := newRunCommand(f.runOptions("text"))
	cmd.SetContext(ctx)
	stdout, _, err := execute(cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "run cancelled after 0 of 4 scenarios")
	assert.Contains(t, stdout, "0/4 completed: 0 pass, 0 warn, 0 fail, 4 not run")
	assert.Contains(t, stdout, "(cancelled)")
}

func TestRunRecordsHistory(t *testing.T) {
	f := newFixture(t)
	dbPath := filepath.Join(f.dir, "history.db")

	_, _, err := execute(newRunCommand(f.runOptions("text")), "--db", dbPath)
	require.NoError(t, err)

	stdout, _, err := execute(NewHistoryCommand(f.rootOptions("json")), "--db", dbPath)
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0]["id"])
	assert.Equal(t, float64(4), runs[0]["passCount"])
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	f := newFixture(t)
	f.writeConfig(t, "concurrency: 2\ndatabase: ignored.db\n")

	opts := f.runOptions("text")
	cmd := newRunCommand(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--concurrency", "7", "--db", "", "--timeout-single", "2s"}))

	cfg, err := opts.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Concurrency)
	assert.Empty(t, cfg.Database)
	assert.Equal(t, "2s", cfg.Assistant.SingleTimeout.String())
	// Unset flags keep config values.
	assert.Equal(t, "30s", cfg.Assistant.MultiTimeout.String())
}

func TestRunInvalidConcurrencyFlag(t *testing.T) {
	f := newFixture(t)

	_, _, err := execute(newRunCommand(f.runOptions("text")), "--concurrency", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "concurrency must be at least 1")
}

func TestRunMissingCatalog(t *testing.T) {
	f := newFixture(t)

	_, _, err := execute(newRunCommand(f.runOptions("text")), "--catalog", filepath.Join(f.dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "catalog not found")
}

func TestRunOutcome(t *testing.T) {
	tests := []struct {
		name       string
		sum        harness.RunSummary
		failOnWarn bool
		wantErr    bool
	}{
		{"all_pass", harness.RunSummary{Total: 2, Completed: 2, PassCount: 2}, false, false},
		{"warn", harness.RunSummary{Total: 2, Completed: 2, PassCount: 1, WarnCount: 1}, false, false},
		{"warn_strict", harness.RunSummary{Total: 2, Completed: 2, PassCount: 1, WarnCount: 1}, true, true},
		{"fail", harness.RunSummary{Total: 2, Completed: 2, PassCount: 1, FailCount: 1}, false, true},
		{"cancelled", harness.RunSummary{Total: 2, Completed: 1, PassCount: 1, Cancelled: true}, false, true},
		{"empty", harness.RunSummary{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runOutcome(&tt.sum, tt.failOnWarn)
			if tt.wantErr {
				require.NotNil(t, err)
				assert.Equal(t, ExitFailure, err.Code)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}
