// Package history persists message navigation events so a user can jump
// back to recently visited points in a conversation tree across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS visits (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	context_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	node_id    TEXT NOT NULL,
	depth      INTEGER NOT NULL,
	visited_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visits_context ON visits(context_id, visited_at DESC);
`

// Visit is one recorded navigation event.
type Visit struct {
	ContextID string
	SessionID string
	NodeID    string
	Depth     int
	VisitedAt time.Time
}

// Store is a navigation history database. Methods are safe for concurrent
// use; database/sql serializes access to the single connection.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the history database location under the project's
// dotdir.
func DefaultPath(projectDir string) string {
	return filepath.Join(projectDir, ".timelines", "history.db")
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one navigation event.
func (s *Store) Record(ctx context.Context, v Visit) error {
	if v.VisitedAt.IsZero() {
		v.VisitedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visits (context_id, session_id, node_id, depth, visited_at) VALUES (?, ?, ?, ?, ?)`,
		v.ContextID, v.SessionID, v.NodeID, v.Depth, v.VisitedAt)
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// Recent returns the most recent visits for a context, newest first.
func (s *Store) Recent(ctx context.Context, contextID string, limit int) ([]Visit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT context_id, session_id, node_id, depth, visited_at
		 FROM visits WHERE context_id = ? ORDER BY visited_at DESC, id DESC LIMIT ?`,
		contextID, limit)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.ContextID, &v.SessionID, &v.NodeID, &v.Depth, &v.VisitedAt); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Prune deletes visits older than the cutoff across all contexts and
// returns the number removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM visits WHERE visited_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune visits: %w", err)
	}
	return res.RowsAffected()
}
