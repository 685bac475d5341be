package store

import (
	"context"
	"fmt"

	"github.com/roach88/convoprobe/internal/harness"
)

// RecordRun stores a finished run and its executed scenarios in one
// transaction. It implements harness.RunRecorder.
//
// Recording the same run id twice fails with a constraint error; runs are
// immutable once written.
func (s *Store) RecordRun(ctx context.Context, sum *harness.RunSummary) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, selection, started_at, total, completed, pass_count, warn_count, fail_count, elapsed_ms, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sum.ID,
		sum.Selection,
		sum.Timestamp.UnixMilli(),
		sum.Total,
		sum.Completed,
		sum.PassCount,
		sum.WarnCount,
		sum.FailCount,
		sum.TotalElapsedMs,
		boolToInt(sum.Cancelled),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", sum.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scenario_results
		(run_id, position, scenario_id, scenario_name, category, status, mode, elapsed_ms, turns, rule_results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record run %s: prepare: %w", sum.ID, err)
	}
	defer stmt.Close()

	for i, r := range sum.Results {
		if r == nil {
			continue
		}
		turnsJSON, err := marshalTurns(r.Turns)
		if err != nil {
			return fmt.Errorf("record run %s: %w", sum.ID, err)
		}
		rulesJSON, err := marshalRuleResults(r.RuleResults)
		if err != nil {
			return fmt.Errorf("record run %s: %w", sum.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			sum.ID,
			i,
			r.Scenario.ID,
			r.Scenario.Name,
			r.Scenario.Category,
			string(r.Status),
			string(r.Mode),
			r.ElapsedMs,
			turnsJSON,
			rulesJSON,
		)
		if err != nil {
			return fmt.Errorf("record run %s: scenario %s: %w", sum.ID, r.Scenario.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("record run %s: commit: %w", sum.ID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
