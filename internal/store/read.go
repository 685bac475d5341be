package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/convoprobe/internal/harness"
	"github.com/roach88/convoprobe/internal/rule"
	"github.com/roach88/convoprobe/internal/turn"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("not found")

// RunRecord is a stored run without its scenario rows.
type RunRecord struct {
	ID        string    `json:"id"`
	Selection string    `json:"selection,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	PassCount int       `json:"passCount"`
	WarnCount int       `json:"warnCount"`
	FailCount int       `json:"failCount"`
	ElapsedMs int64     `json:"elapsedMs"`
	Cancelled bool      `json:"cancelled"`
}

// ScenarioRecord is a stored scenario result.
type ScenarioRecord struct {
	RunID        string         `json:"runId"`
	Position     int            `json:"position"`
	ScenarioID   string         `json:"scenarioId"`
	ScenarioName string         `json:"scenarioName"`
	Category     string         `json:"category"`
	Status       harness.Status `json:"status"`
	Mode         turn.Mode      `json:"mode,omitempty"`
	ElapsedMs    int64          `json:"elapsedMs"`
	Turns        []turn.Result  `json:"turns"`
	RuleResults  []rule.Result  `json:"ruleResults"`
}

// RecentRuns returns up to limit runs, newest first.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = harness.DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, selection, started_at, total, completed, pass_count, warn_count, fail_count, elapsed_ms, cancelled
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by id, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, selection, started_at, total, completed, pass_count, warn_count, fail_count, elapsed_ms, cancelled
		FROM runs
		WHERE id = ?
	`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return r, err
}

// RunResults returns the executed scenarios of a run in selection order.
func (s *Store) RunResults(ctx context.Context, runID string) ([]ScenarioRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, position, scenario_id, scenario_name, category, status, mode, elapsed_ms, turns, rule_results
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scenario results: %w", err)
	}
	defer rows.Close()
	return collectScenarios(rows)
}

// ScenarioHistory returns the most recent results for one scenario across
// runs, newest first. Useful for spotting flaky scenarios.
func (s *Store) ScenarioHistory(ctx context.Context, scenarioID string, limit int) ([]ScenarioRecord, error) {
	if limit <= 0 {
		limit = harness.DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.run_id, sr.position, sr.scenario_id, sr.scenario_name, sr.category, sr.status, sr.mode,
		       sr.elapsed_ms, sr.turns, sr.rule_results
		FROM scenario_results sr
		JOIN runs r ON r.id = sr.run_id
		WHERE sr.scenario_id = ?
		ORDER BY r.started_at DESC, r.id DESC
		LIMIT ?
	`, scenarioID, limit)
	if err != nil {
		return nil, fmt.Errorf("query scenario history: %w", err)
	}
	defer rows.Close()
	return collectScenarios(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var (
		r         RunRecord
		startedMs int64
		cancelled int
	)
	err := row.Scan(&r.ID, &r.Selection, &startedMs, &r.Total, &r.Completed,
		&r.PassCount, &r.WarnCount, &r.FailCount, &r.ElapsedMs, &cancelled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(startedMs).UTC()
	r.Cancelled = cancelled != 0
	return r, nil
}

func collectScenarios(rows *sql.Rows) ([]ScenarioRecord, error) {
	out := []ScenarioRecord{}
	for rows.Next() {
		var (
			rec       ScenarioRecord
			status    string
			mode      string
			turnsJSON string
			rulesJSON string
		)
		err := rows.Scan(&rec.RunID, &rec.Position, &rec.ScenarioID, &rec.ScenarioName, &rec.Category,
			&status, &mode, &rec.ElapsedMs, &turnsJSON, &rulesJSON)
		if err != nil {
			return nil, fmt.Errorf("scan scenario result: %w", err)
		}
		rec.Status = harness.Status(status)
		rec.Mode = turn.Mode(mode)
		if rec.Turns, err = unmarshalTurns(turnsJSON); err != nil {
			return nil, err
		}
		if rec.RuleResults, err = unmarshalRuleResults(rulesJSON); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario results: %w", err)
	}
	return out, nil
}
