// Package history records thingamajig runs in a SQLite database so past
// executions can be listed, inspected and compared.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/thingamajig/internal/models"
)

var (
	// ErrNotFound is returned when no run matches an ID or prefix
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguous is returned when an ID prefix matches several runs
	ErrAmbiguous = errors.New("run ID prefix is ambiguous")
)

// RunRecord is a run as stored in the database
type RunRecord struct {
	ID           string
	ProgramName  string
	ProgramPath  string
	Format       string
	ImageHash    string
	ImageSize    int
	Steps        uint64
	MaxSteps     uint64
	Halted       bool
	StopReason   string
	ErrorMessage string
	Duration     time.Duration
	Registers    models.RegisterSnapshot
	StartedAt    time.Time
}

// Stats summarises the stored runs
type Stats struct {
	TotalRuns   int
	HaltedRuns  int
	FailedRuns  int
	TotalSteps  uint64
	AvgDuration time.Duration
	ByProgram   map[string]int // program name -> run count
	LastRunAt   time.Time
}

// Store manages the SQLite run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every new connection would see its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path
func (s *Store) Path() string {
	return s.dbPath
}

// RecordRun stores a finished run. An empty result ID is filled with a new
// UUID so the caller can report it.
func (s *Store) RecordRun(ctx context.Context, result *models.RunResult) error {
	if result == nil || result.Program == nil {
		return fmt.Errorf("record run: missing program")
	}
	if result.ID == "" {
		result.ID = uuid.New().String()
	}

	regs, err := json.Marshal(result.Registers)
	if err != nil {
		return fmt.Errorf("marshal registers: %w", err)
	}

	var errMsg string
	if result.Error != nil {
		errMsg = result.Error.Error()
	}

	query := `INSERT INTO runs
		(id, program_name, program_path, format, image_hash, image_size, steps, max_steps, halted,
		 stop_reason, error_message, duration_ms, registers, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		result.ID,
		result.Program.Name,
		result.Program.Path,
		result.Program.Format,
		result.ImageHash,
		result.Program.Size(),
		int64(result.Steps),
		int64(result.Program.MaxSteps),
		result.Halted,
		result.StopReason,
		errMsg,
		result.Duration.Milliseconds(),
		string(regs),
		result.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const selectRuns = `SELECT id, program_name, program_path, COALESCE(format, ''), image_hash, image_size,
	steps, COALESCE(max_steps, 0), halted, stop_reason, COALESCE(error_message, ''), COALESCE(duration_ms, 0),
	COALESCE(registers, '{}'), started_at FROM runs`

// ListRuns returns the most recent runs first; limit <= 0 returns all
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := selectRuns + ` ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

// GetRun finds a run by full ID or unique ID prefix
func (s *Store) GetRun(ctx context.Context, idOrPrefix string) (*RunRecord, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, selectRuns+` WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case 1:
		return runs[0], nil
	default:
		for _, r := range runs {
			if r.ID == idOrPrefix {
				return r, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrAmbiguous, idOrPrefix)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Stats aggregates all stored runs
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByProgram: make(map[string]int)}

	var avgMs sql.NullFloat64
	var totalSteps sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN halted THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN error_message != '' THEN 1 ELSE 0 END), 0),
		SUM(steps),
		AVG(duration_ms)
		FROM runs`).Scan(&stats.TotalRuns, &stats.HaltedRuns, &stats.FailedRuns, &totalSteps, &avgMs)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	stats.TotalSteps = uint64(totalSteps.Int64)
	stats.AvgDuration = time.Duration(avgMs.Float64 * float64(time.Millisecond))

	if stats.TotalRuns > 0 {
		if err := s.db.QueryRowContext(ctx, `SELECT started_at FROM runs ORDER BY started_at DESC LIMIT 1`).Scan(&stats.LastRunAt); err != nil {
			return nil, fmt.Errorf("query last run: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT program_name, COUNT(*) FROM runs GROUP BY program_name`)
	if err != nil {
		return nil, fmt.Errorf("query program counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan program count: %w", err)
		}
		stats.ByProgram[name] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate program counts: %w", err)
	}

	return stats, nil
}

// Prune deletes all but the keep most recent runs and returns the number
// removed. keep <= 0 keeps everything.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes every run and returns the number removed
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRuns(rows *sql.Rows) ([]*RunRecord, error) {
	var runs []*RunRecord
	for rows.Next() {
		r := &RunRecord{}
		var steps, maxSteps, durationMs int64
		var regs string
		if err := rows.Scan(&r.ID, &r.ProgramName, &r.ProgramPath, &r.Format, &r.ImageHash, &r.ImageSize,
			&steps, &maxSteps, &r.Halted, &r.StopReason, &r.ErrorMessage, &durationMs, &regs, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Steps = uint64(steps)
		r.MaxSteps = uint64(maxSteps)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(regs), &r.Registers); err != nil {
			return nil, fmt.Errorf("unmarshal registers for run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
