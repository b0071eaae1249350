package trace

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const maxRuns = 500

// Store persists trace data to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL trace database at connStr.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run and prunes old ones.
func (s *Store) CreateRun(id string, startedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, status) VALUES ($1, $2, 'running')`,
		id, startedAt.UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT $1)`,
		maxRuns,
	)
	return err
}

// UpdateRun sets the run's final fields.
func (s *Store) UpdateRun(id string, durationMs float64, status, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET duration_ms = $1, status = $2, error_msg = $3 WHERE id = $4`,
		durationMs, status, errMsg, id,
	)
	return err
}

// CreateSpan inserts a span.
func (s *Store) CreateSpan(sp Span) error {
	_, err := s.db.Exec(
		`INSERT INTO spans (id, run_id, stage, started_at, duration_ms, output_chars, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sp.ID, sp.RunID, sp.Stage, sp.StartedAt.UTC(),
		sp.DurationMs, sp.OutputChars, sp.Status, sp.Error,
	)
	return err
}

// ListRuns returns runs ordered newest first, with span counts.
func (s *Store) ListRuns(limit, offset int) ([]Run, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT r.id, r.started_at, r.duration_ms, r.status, r.error_msg, COUNT(sp.id) as span_count
		FROM runs r
		LEFT JOIN spans sp ON sp.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err = rows.Scan(&r.ID, &r.StartedAt, &r.DurationMs, &r.Status, &r.Error, &r.SpanCount); err != nil {
			return nil, 0, err
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

// GetRun returns a single run with its spans in execution order.
func (s *Store) GetRun(id string) (*Run, []Span, error) {
	var r Run
	err := s.db.QueryRow(
		`SELECT id, started_at, duration_ms, status, error_msg FROM runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.StartedAt, &r.DurationMs, &r.Status, &r.Error)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, stage, started_at, duration_ms, output_chars, status, error_msg FROM spans WHERE run_id = $1 ORDER BY started_at ASC`,
		id,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var spans []Span
	for rows.Next() {
		var sp Span
		if err = rows.Scan(&sp.ID, &sp.RunID, &sp.Stage, &sp.StartedAt, &sp.DurationMs, &sp.OutputChars, &sp.Status, &sp.Error); err != nil {
			return nil, nil, err
		}
		spans = append(spans, sp)
	}
	r.SpanCount = len(spans)
	return &r, spans, rows.Err()
}
