package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/quartermaster/pkg/models"
)

// PlanRun is one finished plan as recorded in history.
type PlanRun struct {
	ID          string             `json:"id"`
	Caller      string             `json:"caller"`
	Utterance   string             `json:"utterance"`
	Disposition models.Disposition `json:"disposition"`
	CreatedAt   time.Time          `json:"created_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// TaskRun is one task's terminal record within a plan run.
type TaskRun struct {
	PlanID      string            `json:"plan_id"`
	TaskID      string            `json:"task_id"`
	Target      string            `json:"target"`
	Status      models.TaskStatus `json:"status"`
	Propagated  bool              `json:"propagated"`
	Error       string            `json:"error,omitempty"`
	Result      map[string]any    `json:"result,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// ConfirmationRun is one closed confirmation session's audit record.
type ConfirmationRun struct {
	SessionID  string    `json:"session_id"`
	PlanID     string    `json:"plan_id"`
	TaskID     string    `json:"task_id"`
	Reference  string    `json:"reference"`
	Candidates int       `json:"candidates"`
	Resolution string    `json:"resolution"`
	TimedOut   bool      `json:"timed_out"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
}

// SaveRun records a finished plan and the terminal state of every task in a
// single transaction.
func (db *DB) SaveRun(plan *models.Plan, outcome models.Outcome) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO plans (id, caller, utterance, disposition, created_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, plan.ID, plan.Caller, plan.Utterance, string(outcome.Disposition),
			formatTime(plan.CreatedAt), formatTime(outcome.FinishedAt))
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		for _, task := range plan.Tasks {
			var resultJSON any
			if task.Result != nil {
				data, err := json.Marshal(task.Result)
				if err != nil {
					return fmt.Errorf("marshal result of task %s: %w", task.ID, err)
				}
				resultJSON = string(data)
			}

			var startedAt, completedAt any
			if task.StartedAt != nil {
				startedAt = formatTime(*task.StartedAt)
			}
			if task.CompletedAt != nil {
				completedAt = formatTime(*task.CompletedAt)
			}

			_, err = tx.Exec(`
				INSERT INTO plan_tasks (plan_id, task_id, target, status, propagated, error, result, started_at, completed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, plan.ID, task.ID, task.Target, string(task.Status), task.Propagated,
				task.Error, resultJSON, startedAt, completedAt)
			if err != nil {
				return fmt.Errorf("insert task %s: %w", task.ID, err)
			}
		}

		return nil
	})
}

// GetRun retrieves one plan run by ID, or nil if unknown.
func (db *DB) GetRun(planID string) (*PlanRun, error) {
	row := db.QueryRow(`
		SELECT id, caller, utterance, disposition, created_at, finished_at
		FROM plans WHERE id = ?
	`, planID)

	run, err := scanPlanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent plan runs, newest first.
func (db *DB) ListRuns(limit int) ([]*PlanRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, caller, utterance, disposition, created_at, finished_at
		FROM plans ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*PlanRun
	for rows.Next() {
		run, err := scanPlanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListRunTasks returns every task record for a plan run.
func (db *DB) ListRunTasks(planID string) ([]*TaskRun, error) {
	rows, err := db.Query(`
		SELECT plan_id, task_id, target, status, propagated, error, result, started_at, completed_at
		FROM plan_tasks WHERE plan_id = ? ORDER BY task_id
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list run tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*TaskRun
	for rows.Next() {
		var task TaskRun
		var taskErr, resultJSON, startedAt, completedAt sql.NullString
		err := rows.Scan(&task.PlanID, &task.TaskID, &task.Target, &task.Status,
			&task.Propagated, &taskErr, &resultJSON, &startedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		task.Error = taskErr.String
		if resultJSON.Valid && resultJSON.String != "" {
			if err := json.Unmarshal([]byte(resultJSON.String), &task.Result); err != nil {
				return nil, fmt.Errorf("unmarshal result of task %s: %w", task.TaskID, err)
			}
		}
		task.StartedAt = parseNullableTime(startedAt)
		task.CompletedAt = parseNullableTime(completedAt)
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// SaveConfirmation records a closed confirmation session.
func (db *DB) SaveConfirmation(c *ConfirmationRun) error {
	_, err := db.Exec(`
		INSERT INTO confirmations (session_id, plan_id, task_id, reference, candidates, resolution, timed_out, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.SessionID, c.PlanID, c.TaskID, c.Reference, c.Candidates,
		c.Resolution, c.TimedOut, formatTime(c.OpenedAt), formatTime(c.ClosedAt))
	if err != nil {
		return fmt.Errorf("save confirmation: %w", err)
	}
	return nil
}

// ListConfirmations returns the confirmation audit records for a plan.
func (db *DB) ListConfirmations(planID string) ([]*ConfirmationRun, error) {
	rows, err := db.Query(`
		SELECT session_id, plan_id, task_id, reference, candidates, resolution, timed_out, opened_at, closed_at
		FROM confirmations WHERE plan_id = ? ORDER BY opened_at
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list confirmations: %w", err)
	}
	defer rows.Close()

	var records []*ConfirmationRun
	for rows.Next() {
		var c ConfirmationRun
		var openedAt, closedAt string
		err := rows.Scan(&c.SessionID, &c.PlanID, &c.TaskID, &c.Reference,
			&c.Candidates, &c.Resolution, &c.TimedOut, &openedAt, &closedAt)
		if err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		if c.OpenedAt, err = parseTime(openedAt); err != nil {
			return nil, fmt.Errorf("parse opened_at: %w", err)
		}
		if c.ClosedAt, err = parseTime(closedAt); err != nil {
			return nil, fmt.Errorf("parse closed_at: %w", err)
		}
		records = append(records, &c)
	}
	return records, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for shared scan code.
type scanner interface {
	Scan(dest ...any) error
}

func scanPlanRun(s scanner) (*PlanRun, error) {
	var run PlanRun
	var createdAt, finishedAt string
	err := s.Scan(&run.ID, &run.Caller, &run.Utterance, &run.Disposition, &createdAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	return &run, nil
}
