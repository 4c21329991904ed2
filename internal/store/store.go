// Package store persists segmentation run history in a local SQLite database.
// Migrations are embedded; the database file is created on first open. One
// writer connection keeps SQLite happy under concurrent runs.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ivanshev/segcut/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunStatus is the lifecycle state of one segmentation run.
type RunStatus string

const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// Run is one recorded segmentation job. Transcript holds the original input
// payload so a run can be re-analyzed later with a different topic or
// platform. Segments are populated only for finished runs.
type Run struct {
	ID         string                `json:"id"`
	Status     RunStatus             `json:"status"`
	Source     string                `json:"source,omitempty"`
	Topic      string                `json:"topic,omitempty"`
	Platform   string                `json:"platform,omitempty"`
	MaxClips   int                   `json:"max_clips,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	Error      string                `json:"error,omitempty"`
	Transcript json.RawMessage       `json:"-"`
	Segments   []types.ScoredSegment `json:"segments,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at dbPath and brings the schema up to
// date. Runs left in the running state by a previous process are marked
// failed; they cannot resume.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s := &Store{conn: conn, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := s.markInterruptedRuns(); err != nil && logger != nil {
		logger.Warn("failed to mark interrupted runs", "error", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	if _, err := s.conn.Exec("CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY, applied_at TEXT NOT NULL DEFAULT (datetime('now')))"); err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if s.logger != nil {
			s.logger.Info("applied migration", "name", name)
		}
	}
	return nil
}

func (s *Store) isMigrationApplied(name string) bool {
	var applied int
	err := s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (s *Store) markInterruptedRuns() error {
	_, err := s.conn.ExecContext(context.Background(),
		`UPDATE runs SET status = ?, error = 'interrupted by restart', updated_at = ? WHERE status = ?`,
		RunFailed, now(), RunRunning)
	return err
}

// CreateRun inserts a new queued run. An empty ID gets a generated one; the
// stored run is returned with timestamps set.
func (s *Store) CreateRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Status = RunQueued
	ts := time.Now().UTC()
	run.CreatedAt, run.UpdatedAt = ts, ts

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO runs (id, status, source, topic, platform, max_clips, reason, error, transcript, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', '', ?, ?, ?)`,
		run.ID, run.Status, run.Source, run.Topic, run.Platform, run.MaxClips,
		string(run.Transcript), fmtTime(run.CreatedAt), fmtTime(run.UpdatedAt))
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// MarkRunning transitions a run to the running state.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, RunRunning, "", "")
}

// CompleteRun records a finished run with its result segments. Any segments
// from a previous analysis of the same run are replaced.
func (s *Store) CompleteRun(ctx context.Context, id string, res types.Result) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	out, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, reason = ?, error = '', updated_at = ? WHERE id = ?`,
		RunDone, res.Reason, now(), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_segments WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}
	for i, seg := range res.Segments {
		tags, err := json.Marshal(seg.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_segments (run_id, position, start_s, end_s, summary, tags, word_count, relevance_score, engagement_score, composite_score, viral_potential)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, seg.Start, seg.End, seg.Summary, string(tags), seg.WordCount,
			seg.RelevanceScore, seg.EngagementScore, seg.CompositeScore, seg.ViralPotential); err != nil {
			return fmt.Errorf("insert segment %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// UpdateParams records new analysis parameters for a run, ahead of a
// re-analysis of its stored transcript.
func (s *Store) UpdateParams(ctx context.Context, id, topic, platformName string, maxClips int) error {
	out, err := s.conn.ExecContext(ctx,
		`UPDATE runs SET topic = ?, platform = ?, max_clips = ?, updated_at = ? WHERE id = ?`,
		topic, platformName, maxClips, now(), id)
	if err != nil {
		return fmt.Errorf("update run params: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// FailRun records a failed run with its error message.
func (s *Store) FailRun(ctx context.Context, id, msg string) error {
	return s.setStatus(ctx, id, RunFailed, "", msg)
}

func (s *Store) setStatus(ctx context.Context, id string, status RunStatus, reason, errMsg string) error {
	out, err := s.conn.ExecContext(ctx,
		`UPDATE runs SET status = ?, reason = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, reason, errMsg, now(), id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// GetRun loads a run and its segments. Returns nil when the run does not
// exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, status, source, topic, platform, max_clips, reason, error, transcript, created_at, updated_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}

	segs, err := s.loadSegments(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Segments = segs
	return &run, nil
}

// ListRuns returns the newest runs first, without their segments.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, status, source, topic, platform, max_clips, reason, error, transcript, created_at, updated_at
		 FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var transcript, createdAt, updatedAt string
	err := row.Scan(&run.ID, &run.Status, &run.Source, &run.Topic, &run.Platform,
		&run.MaxClips, &run.Reason, &run.Error, &transcript, &createdAt, &updatedAt)
	if err != nil {
		return Run{}, err
	}
	if transcript != "" {
		run.Transcript = json.RawMessage(transcript)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return run, nil
}

func (s *Store) loadSegments(ctx context.Context, runID string) ([]types.ScoredSegment, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT start_s, end_s, summary, tags, word_count, relevance_score, engagement_score, composite_score, viral_potential
		 FROM run_segments WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("select segments: %w", err)
	}
	defer rows.Close()

	var out []types.ScoredSegment
	for rows.Next() {
		var seg types.ScoredSegment
		var tags string
		if err := rows.Scan(&seg.Start, &seg.End, &seg.Summary, &tags, &seg.WordCount,
			&seg.RelevanceScore, &seg.EngagementScore, &seg.CompositeScore, &seg.ViralPotential); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &seg.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func now() string {
	return fmtTime(time.Now().UTC())
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
