package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/syncbridge/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateRun inserts a run record in running state.
func (s *SQLiteStore) CreateRun(ctx context.Context, rec *model.RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = model.RunStatusRunning
	}

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshaling run result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, tenant_id, direction, dry_run, status, result, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, string(rec.Direction),
		boolToInt(rec.DryRun), string(rec.Status),
		string(resultJSON), rec.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", rec.ID, err)
	}

	return nil
}

// FinishRun finalizes a run record with its terminal status, result,
// and finish time.
func (s *SQLiteStore) FinishRun(ctx context.Context, rec model.RunRecord) error {
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshaling run result: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, result = ?, finished_at = ?
		WHERE id = ?`,
		string(rec.Status), string(resultJSON), rec.FinishedAt.UTC(), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", rec.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", rec.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("finishing run %s: no such run", rec.ID)
	}

	return nil
}

// GetRun retrieves a single run record by its ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM runs WHERE id = ?", id)

	rec, err := scanRunRow(row)
	if err != nil {
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	return &rec, nil
}

// GetRuns retrieves run records matching the filter, newest first.
func (s *SQLiteStore) GetRuns(
	ctx context.Context,
	filter RunFilter,
) ([]model.RunRecord, error) {
	var conditions []string
	var args []interface{}

	if filter.TenantID != nil {
		conditions = append(conditions, "tenant_id = ?")
		args = append(args, *filter.TenantID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}

	query := "SELECT * FROM runs"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var recs []model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// scanRun scans a run row from a sqlx.Rows result set.
func scanRun(rows *sqlx.Rows) (model.RunRecord, error) {
	var (
		rec        model.RunRecord
		direction  string
		dryRun     int
		status     string
		resultJSON string
		finishedAt sql.NullTime
	)

	err := rows.Scan(
		&rec.ID, &rec.TenantID, &direction, &dryRun,
		&status, &resultJSON, &rec.StartedAt, &finishedAt,
	)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("scanning run row: %w", err)
	}

	return finishRunScan(rec, direction, dryRun, status, resultJSON, finishedAt)
}

// scanRunRow scans a single run row from a sqlx.Row.
func scanRunRow(row *sqlx.Row) (model.RunRecord, error) {
	var (
		rec        model.RunRecord
		direction  string
		dryRun     int
		status     string
		resultJSON string
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&rec.ID, &rec.TenantID, &direction, &dryRun,
		&status, &resultJSON, &rec.StartedAt, &finishedAt,
	)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("scanning run row: %w", err)
	}

	return finishRunScan(rec, direction, dryRun, status, resultJSON, finishedAt)
}

func finishRunScan(
	rec model.RunRecord,
	direction string,
	dryRun int,
	status string,
	resultJSON string,
	finishedAt sql.NullTime,
) (model.RunRecord, error) {
	rec.Direction = model.Direction(direction)
	rec.DryRun = dryRun != 0
	rec.Status = model.RunStatus(status)

	if finishedAt.Valid {
		rec.FinishedAt = finishedAt.Time
	}

	if resultJSON != "" {
		if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
			return model.RunRecord{}, fmt.Errorf("unmarshaling run result: %w", err)
		}
	}

	return rec, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
