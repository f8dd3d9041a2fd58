package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"osops-utils/pkg/model"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS nodes(
	name TEXT PRIMARY KEY,
	environment TEXT NOT NULL DEFAULT '',
	document TEXT NOT NULL,
	revision INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_nodes_environment ON nodes(environment);`

// SQLiteStore is an embedded, file-backed registry for offline runs.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) UpsertNode(ctx context.Context, n model.Node) (model.Node, error) {
	if n.Name == "" {
		return n, fmt.Errorf("node name is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return n, err
	}
	defer func() { _ = tx.Rollback() }()

	var rev int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM nodes WHERE name=?`, n.Name).Scan(&rev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return n, fmt.Errorf("sqlite read revision %s: %w", n.Name, err)
	}
	n.Revision = rev + 1
	b, err := json.Marshal(n)
	if err != nil {
		return n, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO nodes(name, environment, document, revision, updated_at) VALUES(?,?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET environment=excluded.environment, document=excluded.document,
		revision=excluded.revision, updated_at=excluded.updated_at`,
		n.Name, n.Environment, string(b), n.Revision, time.Now().Unix())
	if err != nil {
		return n, fmt.Errorf("sqlite upsert %s: %w", n.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

func (s *SQLiteStore) GetNode(ctx context.Context, name string) (model.Node, bool, error) {
	var doc string
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT document, revision FROM nodes WHERE name=?`, name).Scan(&doc, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Node{}, false, nil
	}
	if err != nil {
		return model.Node{}, false, fmt.Errorf("sqlite get %s: %w", name, err)
	}
	var n model.Node
	if err := json.Unmarshal([]byte(doc), &n); err != nil {
		return model.Node{}, false, fmt.Errorf("decode node %s: %w", name, err)
	}
	n.Revision = rev
	return n, true, nil
}

func (s *SQLiteStore) ListNodes(ctx context.Context) ([]model.Node, error) {
	return s.query(ctx, `SELECT document, revision FROM nodes ORDER BY name`)
}

func (s *SQLiteStore) DeleteNode(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nodes WHERE name=?`, name)
	if err != nil {
		return fmt.Errorf("sqlite delete %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, query string) ([]model.Node, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	var nodes []model.Node
	if env, ok := q.Environment(); ok {
		nodes, err = s.query(ctx, `SELECT document, revision FROM nodes WHERE environment=? ORDER BY name`, env)
	} else {
		nodes, err = s.ListNodes(ctx)
	}
	if err != nil {
		return nil, err
	}
	return Filter(nodes, q), nil
}

func (s *SQLiteStore) query(ctx context.Context, stmt string, args ...interface{}) ([]model.Node, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer rows.Close()
	var out []model.Node
	for rows.Next() {
		var doc string
		var rev int64
		if err := rows.Scan(&doc, &rev); err != nil {
			return nil, err
		}
		var n model.Node
		if err := json.Unmarshal([]byte(doc), &n); err != nil {
			continue
		}
		n.Revision = rev
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
