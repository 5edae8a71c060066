package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for interview sessions and
// intake records.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "interviewd.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Sessions ---

// CreateSession inserts a new session row. The stored version starts at 1.
func (s *Store) CreateSession(sess Session) error {
	transcript, err := marshalTranscript(sess.Transcript)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, owner_id, mode, status, transcript, summary, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		sess.ID, sess.OwnerID, sess.Mode, sess.Status, transcript, nullable(sess.Summary),
		sess.CreatedAt.UTC().Format(time.RFC3339), sess.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetSession returns the session with the given id, or ErrNotFound.
func (s *Store) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, mode, status, transcript, summary, version, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// FindActiveSession returns the owner's in_progress session, or ErrNotFound.
// At most one such session exists per owner; enforced by lookup-before-create
// in the engine, so the newest row wins if the invariant was ever broken.
func (s *Store) FindActiveSession(ownerID string) (Session, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, mode, status, transcript, summary, version, created_at, updated_at
		FROM sessions WHERE owner_id = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`, ownerID, StatusInProgress)
	return scanSession(row)
}

// UpdateSession persists transcript, status, and summary for the session,
// guarded by the version the caller read. Returns ErrVersionConflict if the
// row changed underneath the caller.
func (s *Store) UpdateSession(sess Session) error {
	transcript, err := marshalTranscript(sess.Transcript)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE sessions
		SET transcript = ?, status = ?, summary = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		transcript, sess.Status, nullable(sess.Summary),
		sess.UpdatedAt.UTC().Format(time.RFC3339), sess.ID, sess.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is gone or the version moved on.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", sess.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// ListStaleSessions returns in_progress sessions not touched since cutoff,
// oldest first.
func (s *Store) ListStaleSessions(cutoff time.Time, limit int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, mode, status, transcript, summary, version, created_at, updated_at
		FROM sessions WHERE status = ? AND updated_at < ?
		ORDER BY updated_at ASC LIMIT ?`,
		StatusInProgress, cutoff.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var transcript string
	var summary sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&sess.ID, &sess.OwnerID, &sess.Mode, &sess.Status,
		&transcript, &summary, &sess.Version, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(transcript), &sess.Transcript); err != nil {
		return Session{}, fmt.Errorf("parsing transcript for session %s: %w", sess.ID, err)
	}
	sess.Summary = summary.String
	if sess.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Session{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Session{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return sess, nil
}

func marshalTranscript(turns []Turn) (string, error) {
	if turns == nil {
		turns = []Turn{}
	}
	b, err := json.Marshal(turns)
	if err != nil {
		return "", fmt.Errorf("marshalling transcript: %w", err)
	}
	return string(b), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// --- Intakes ---

// SetIntake upserts the intake record for an owner.
func (s *Store) SetIntake(in Intake) error {
	fields := in.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshalling intake fields: %w", err)
	}
	completed := 0
	if in.OnboardingCompleted {
		completed = 1
	}
	_, err = s.db.Exec(`
		INSERT INTO intakes (owner_id, fields, onboarding_completed, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			fields = excluded.fields,
			onboarding_completed = excluded.onboarding_completed,
			updated_at = excluded.updated_at`,
		in.OwnerID, string(b), completed, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetIntake returns the intake record for an owner, or ErrNotFound.
func (s *Store) GetIntake(ownerID string) (Intake, error) {
	var in Intake
	var fields string
	var completed int
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT owner_id, fields, onboarding_completed, updated_at
		FROM intakes WHERE owner_id = ?`, ownerID,
	).Scan(&in.OwnerID, &fields, &completed, &updatedAt)
	if err == sql.ErrNoRows {
		return Intake{}, ErrNotFound
	}
	if err != nil {
		return Intake{}, err
	}
	if err := json.Unmarshal([]byte(fields), &in.Fields); err != nil {
		return Intake{}, fmt.Errorf("parsing intake fields: %w", err)
	}
	in.OnboardingCompleted = completed != 0
	if in.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Intake{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return in, nil
}
