// Package db stores evaluation run history in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ziadkadry99/promptlab/internal/eval"
)

// DB wraps a sql.DB with promptlab-specific helpers. It implements
// eval.Recorder.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every pooled connection would see its own empty memory database.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    run_dir TEXT NOT NULL,
    prompt_model TEXT NOT NULL,
    answer_model TEXT NOT NULL,
    scoring_model TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'running',
    completed INTEGER NOT NULL DEFAULT 0,
    total INTEGER NOT NULL DEFAULT 0,
    cost REAL NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL,
    finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS run_results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    loop INTEGER NOT NULL,
    framework TEXT NOT NULL,
    question_id TEXT NOT NULL DEFAULT '',
    question TEXT NOT NULL,
    reference_answer TEXT NOT NULL DEFAULT '',
    answer TEXT NOT NULL DEFAULT '',
    score INTEGER NOT NULL,
    max_score INTEGER NOT NULL,
    rationale TEXT NOT NULL DEFAULT '',
    cost REAL NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_results_run ON run_results(run_id);
CREATE INDEX IF NOT EXISTS idx_results_framework ON run_results(run_id, framework);
`

// RecordRun inserts a new run in the running state.
func (d *DB) RecordRun(id, runDir string, models eval.ModelRoles, startedAt time.Time) error {
	_, err := d.Exec(
		`INSERT INTO runs (id, run_dir, prompt_model, answer_model, scoring_model, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, runDir, models.Prompt, models.Answer, models.Scoring, string(eval.StatusRunning), startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", id, err)
	}
	return nil
}

// RecordResult appends one result row to a run's history.
func (d *DB) RecordResult(runID string, loop int, framework string, row eval.ResultRow) error {
	_, err := d.Exec(
		`INSERT INTO run_results (run_id, loop, framework, question_id, question, reference_answer, answer, score, max_score, rationale, cost, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, loop, framework, row.QuestionID, row.Question, row.ReferenceAnswer, row.Answer, row.Score, row.MaxScore, row.Rationale, row.Cost, row.DurationMS, row.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting result for run %s: %w", runID, err)
	}
	return nil
}

// FinishRun marks a run terminal.
func (d *DB) FinishRun(id string, status eval.RunStatus, completed, total int, cost float64, finishedAt time.Time) error {
	_, err := d.Exec(
		`UPDATE runs SET status = ?, completed = ?, total = ?, cost = ?, finished_at = ? WHERE id = ?`,
		string(status), completed, total, cost, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	return nil
}

// RunRecord is one row of run history.
type RunRecord struct {
	ID           string     `json:"id"`
	RunDir       string     `json:"runDir"`
	PromptModel  string     `json:"promptModel"`
	AnswerModel  string     `json:"answerModel"`
	ScoringModel string     `json:"scoringModel"`
	Status       string     `json:"status"`
	Completed    int        `json:"completed"`
	Total        int        `json:"total"`
	Cost         float64    `json:"cost"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// ResultRecord is one persisted result row.
type ResultRecord struct {
	Loop            int     `json:"loop"`
	Framework       string  `json:"framework"`
	QuestionID      string  `json:"questionId,omitempty"`
	Question        string  `json:"question"`
	ReferenceAnswer string  `json:"referenceAnswer,omitempty"`
	Answer          string  `json:"answer,omitempty"`
	Score           int     `json:"score"`
	MaxScore        int     `json:"maxScore"`
	Rationale       string  `json:"rationale,omitempty"`
	Cost            float64 `json:"cost"`
	Error           string  `json:"error,omitempty"`
}

// ListRuns returns run history, newest first.
func (d *DB) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.Query(
		`SELECT id, run_dir, prompt_model, answer_model, scoring_model, status, completed, total, cost, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.RunDir, &r.PromptModel, &r.AnswerModel, &r.ScoringModel, &r.Status, &r.Completed, &r.Total, &r.Cost, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run by ID.
func (d *DB) GetRun(id string) (*RunRecord, error) {
	row := d.QueryRow(
		`SELECT id, run_dir, prompt_model, answer_model, scoring_model, status, completed, total, cost, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	var r RunRecord
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.RunDir, &r.PromptModel, &r.AnswerModel, &r.ScoringModel, &r.Status, &r.Completed, &r.Total, &r.Cost, &r.StartedAt, &finished); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// RunResults returns all result rows for a run in insertion order.
func (d *DB) RunResults(runID string) ([]ResultRecord, error) {
	rows, err := d.Query(
		`SELECT loop, framework, question_id, question, reference_answer, answer, score, max_score, rationale, cost, error
		 FROM run_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var r ResultRecord
		if err := rows.Scan(&r.Loop, &r.Framework, &r.QuestionID, &r.Question, &r.ReferenceAnswer, &r.Answer, &r.Score, &r.MaxScore, &r.Rationale, &r.Cost, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
