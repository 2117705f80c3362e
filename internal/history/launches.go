package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Outcome classifies how a launch ended.
type Outcome string

const (
	OutcomeRunning     Outcome = "running"
	OutcomeClean       Outcome = "clean"
	OutcomeFailure     Outcome = "failure"
	OutcomeSpawnFailed Outcome = "spawn_failed"
)

// OutcomeForCode maps a child exit code to an outcome.
func OutcomeForCode(code int) Outcome {
	if code == 0 {
		return OutcomeClean
	}
	return OutcomeFailure
}

// Launch is one recorded child launch.
type Launch struct {
	ID        int64
	RunID     string
	PID       int
	Command   string
	Restarts  int
	Outcome   Outcome
	StartedAt time.Time
	EndedAt   *time.Time
	ExitCode  *int
	Error     string
}

// Duration reports how long the launch ran, or has been running.
func (l Launch) Duration() time.Duration {
	if l.EndedAt != nil {
		return l.EndedAt.Sub(l.StartedAt)
	}
	return time.Since(l.StartedAt)
}

// RecordLaunch inserts a running launch.
func (s *Store) RecordLaunch(ctx context.Context, runID string, pid int, command string, restarts int, startedAt time.Time) error {
	if runID == "" {
		return errors.New("run id required")
	}
	_, err := s.exec(ctx,
		`INSERT INTO launches (run_id, pid, command, restarts, outcome, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, pid, nullableString(command), restarts, OutcomeRunning, startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert launch: %w", err)
	}
	return nil
}

// RecordExit closes the launch identified by runID with its exit code.
func (s *Store) RecordExit(ctx context.Context, runID string, code int, endedAt time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE launches SET outcome = ?, exit_code = ?, ended_at = ? WHERE run_id = ?`,
		OutcomeForCode(code), code, endedAt.UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("update launch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("launch %s not found", runID)
	}
	return nil
}

// RecordSpawnFailure stores a launch attempt that never produced a process.
func (s *Store) RecordSpawnFailure(ctx context.Context, runID string, restarts int, at time.Time, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	stamp := at.UTC().Format(time.RFC3339Nano)
	_, err := s.exec(ctx,
		`INSERT INTO launches (run_id, restarts, outcome, started_at, ended_at, error) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, restarts, OutcomeSpawnFailed, stamp, stamp, nullableString(message),
	)
	if err != nil {
		return fmt.Errorf("insert spawn failure: %w", err)
	}
	return nil
}

// Recent returns up to limit launches, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Launch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, pid, command, restarts, outcome, started_at, ended_at, exit_code, error
         FROM launches ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer rows.Close()

	var launches []Launch
	for rows.Next() {
		launch, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		launches = append(launches, launch)
	}
	return launches, rows.Err()
}

// Counts returns the number of launches per outcome.
func (s *Store) Counts(ctx context.Context) (map[Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM launches GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("launch counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome Outcome
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}

func scanLaunch(scanner interface{ Scan(dest ...any) error }) (Launch, error) {
	var (
		launch     Launch
		command    sql.NullString
		outcome    string
		startedRaw string
		endedRaw   sql.NullString
		exitCode   sql.NullInt64
		errMessage sql.NullString
	)
	if err := scanner.Scan(
		&launch.ID,
		&launch.RunID,
		&launch.PID,
		&command,
		&launch.Restarts,
		&outcome,
		&startedRaw,
		&endedRaw,
		&exitCode,
		&errMessage,
	); err != nil {
		return Launch{}, err
	}
	launch.Command = command.String
	launch.Outcome = Outcome(outcome)
	launch.Error = errMessage.String
	if started, err := parseTimeString(startedRaw); err == nil {
		launch.StartedAt = started
	}
	if endedRaw.Valid {
		if ended, err := parseTimeString(endedRaw.String); err == nil {
			launch.EndedAt = &ended
		}
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		launch.ExitCode = &code
	}
	return launch, nil
}
