package punishments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const defaultTimeout = 5 * time.Second

// Store keeps punishment history in SQLite. Records are inserted once and
// only their reversal columns are ever updated.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects to the database and ensures all necessary tables exist.
func Open(dbPath string, timeout time.Duration) (*Store, error) {
	db, err := Init(dbPath)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{db: db, timeout: timeout}, nil
}

// Init initializes the database and ensures all necessary tables are created.
func Init(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// SQLite allows one writer; a single connection queues writers instead
	// of failing them with "database is locked".
	db.SetMaxOpenConns(1)

	punishmentsSchema := `CREATE TABLE IF NOT EXISTS punishments (
	          punishment_id TEXT PRIMARY KEY,
	          target_id TEXT NOT NULL,
	          punishment_type TEXT NOT NULL,
	          severity TEXT NOT NULL,
	          reason TEXT NOT NULL,
	          author_id TEXT NOT NULL,
	          applied_at INTEGER NOT NULL,
	          duration_seconds INTEGER NOT NULL,
	          reversed INTEGER NOT NULL DEFAULT 0,
	          reversal_type TEXT NOT NULL DEFAULT '',
	          reversed_by TEXT NOT NULL DEFAULT '',
	          reversed_at INTEGER NOT NULL DEFAULT 0,
	          reversal_reason TEXT NOT NULL DEFAULT ''
	      );`
	_, err = db.Exec(punishmentsSchema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create punishments table: %w", err)
	}

	// Display names were added after the first schema.
	alterStatements := []string{
		`ALTER TABLE punishments ADD COLUMN target_name TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE punishments ADD COLUMN author_name TEXT NOT NULL DEFAULT ''`,
	}
	for _, stmt := range alterStatements {
		_, err = db.Exec(stmt)
		if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			db.Close()
			return nil, fmt.Errorf("failed to execute ALTER statement %s: %w", stmt, err)
		}
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_punishments_target ON punishments (target_id, applied_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create punishments index: %w", err)
	}

	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}
