package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/archgraph/archgraph/pkg/formate"
	"github.com/archgraph/archgraph/pkg/model"
)

// GraphDB is the durable home of the canonical graph. It is written on
// explicit save, not on every mutation.
type GraphDB struct {
	db *sql.DB
}

// NewGraphDB opens (or creates) the SQLite database at dbPath.
// WAL mode is enabled for concurrency and durability.
func NewGraphDB(dbPath string) (*GraphDB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	g := &GraphDB{db: db}
	if err := g.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return g, nil
}

// Close closes the underlying database connection.
func (g *GraphDB) Close() error {
	return g.db.Close()
}

// migrate creates the graphs table if it doesn't exist. The serialized
// body is the Format-E text; version and view are columns so a load
// can restore the full GraphState.
func (g *GraphDB) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS graphs (
		workspace_id TEXT NOT NULL,
		system_id    TEXT NOT NULL,
		version      INTEGER NOT NULL,
		current_view TEXT NOT NULL,
		body         TEXT NOT NULL,
		saved_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (workspace_id, system_id)
	);
	`
	if _, err := g.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create graphs table: %w", err)
	}
	return nil
}

// Persist writes the graph for its (workspace, system) pair,
// replacing any previous save.
func (g *GraphDB) Persist(ctx context.Context, state *model.GraphState) error {
	body := formate.Serialize(state)
	query := `
	INSERT INTO graphs (workspace_id, system_id, version, current_view, body, saved_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (workspace_id, system_id) DO UPDATE SET
		version = excluded.version,
		current_view = excluded.current_view,
		body = excluded.body,
		saved_at = excluded.saved_at;
	`
	_, err := g.db.ExecContext(ctx, query,
		state.WorkspaceID, state.SystemID, state.Version, string(state.CurrentView), body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to persist graph %s/%s: %w", state.WorkspaceID, state.SystemID, err)
	}
	return nil
}

// Load reads a previously persisted graph. The second result is false
// when no save exists for the pair.
func (g *GraphDB) Load(ctx context.Context, workspaceID, systemID string) (*model.GraphState, bool, error) {
	var (
		version int64
		view    string
		body    string
	)
	row := g.db.QueryRowContext(ctx,
		`SELECT version, current_view, body FROM graphs WHERE workspace_id = ? AND system_id = ?`,
		workspaceID, systemID)
	if err := row.Scan(&version, &view, &body); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load graph %s/%s: %w", workspaceID, systemID, err)
	}

	state, err := formate.Deserialize(body, workspaceID, systemID)
	if err != nil {
		return nil, false, fmt.Errorf("persisted graph %s/%s is corrupt: %w", workspaceID, systemID, err)
	}
	state.Version = version
	state.CurrentView = model.View(view)
	return state, true, nil
}
