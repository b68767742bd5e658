// Package store persists text nodes and chunks, and forwards embedded
// chunks to a vector database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/randalmurphal/metta-indexer/internal/chunk"
)

// ErrNotFound is returned when a requested record doesn't exist
var ErrNotFound = errors.New("not found")

// TextNode is a stored top-level syntax node.
type TextNode struct {
	ID    string
	Path  string
	Start int
	End   int
	Kind  string
	Text  string
}

// Stats summarizes the store contents.
type Stats struct {
	TextNodes int
	Chunks    int
	Embedded  int
}

// SQLiteStore keeps text nodes and chunks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// brings its schema up to date. ":memory:" gives a private in-memory store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Text node operations

// InsertTextNode stores n under a fresh id and returns the id.
func (s *SQLiteStore) InsertTextNode(ctx context.Context, n TextNode) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO text_nodes (id, file_path, start_offset, end_offset, node_type, text)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, n.Path, n.Start, n.End, n.Kind, n.Text)
	if err != nil {
		return "", fmt.Errorf("failed to insert text node: %w", err)
	}
	return id, nil
}

// TextNode fetches a text node by id.
func (s *SQLiteStore) TextNode(ctx context.Context, id string) (*TextNode, error) {
	n := TextNode{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT file_path, start_offset, end_offset, node_type, text
		FROM text_nodes WHERE id = ?
	`, id).Scan(&n.Path, &n.Start, &n.End, &n.Kind, &n.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("text node %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get text node: %w", err)
	}
	return &n, nil
}

// ResolveText returns the text of a stored node.
func (s *SQLiteStore) ResolveText(ctx context.Context, id string) (string, error) {
	n, err := s.TextNode(ctx, id)
	if err != nil {
		return "", err
	}
	return n.Text, nil
}

// DeleteTextNodes removes the nodes recorded for a file, so re-indexing a
// file does not leave stale rows behind.
func (s *SQLiteStore) DeleteTextNodes(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM text_nodes WHERE file_path = ?", path); err != nil {
		return fmt.Errorf("failed to delete text nodes: %w", err)
	}
	return nil
}

// Chunk operations

// InsertChunks stores chunks, skipping ids already present. It returns the
// chunks that were new.
func (s *SQLiteStore) InsertChunks(ctx context.Context, chunks []chunk.Chunk) ([]chunk.Chunk, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO chunks
			(chunk_id, source, chunk, origin_paths, project, repo, section, file, version, is_embedded, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var inserted []chunk.Chunk
	for _, c := range chunks {
		res, err := stmt.ExecContext(ctx,
			c.ID, c.Source, c.Text, encodeList(c.OriginPaths), c.Project, c.Repo,
			encodeList(c.Sections), encodeList(c.Files), c.Version, c.IsEmbedded, c.Description)
		if err != nil {
			return nil, fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, c)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

// Chunk fetches a chunk by id.
func (s *SQLiteStore) Chunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	row := s.db.QueryRowContext(ctx, selectChunks+" WHERE chunk_id = ?", id)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return c, nil
}

// PendingChunks returns up to limit chunks not yet embedded, oldest first.
func (s *SQLiteStore) PendingChunks(ctx context.Context, limit int) ([]chunk.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		selectChunks+" WHERE is_embedded = 0 ORDER BY created_at, chunk_id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending chunks: %w", err)
	}
	defer rows.Close()

	var out []chunk.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// MarkEmbedded flags chunks as embedded.
func (s *SQLiteStore) MarkEmbedded(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	_, err := s.db.ExecContext(ctx,
		"UPDATE chunks SET is_embedded = 1 WHERE chunk_id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("failed to mark chunks embedded: %w", err)
	}
	return nil
}

// Stats counts stored records.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM text_nodes),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM chunks WHERE is_embedded = 1)
	`).Scan(&st.TextNodes, &st.Chunks, &st.Embedded)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	return st, nil
}

const selectChunks = `
	SELECT chunk_id, source, chunk, origin_paths, project, repo, section, file, version, is_embedded, description
	FROM chunks`

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (*chunk.Chunk, error) {
	var (
		c                      chunk.Chunk
		paths, sections, files string
	)
	err := row.Scan(&c.ID, &c.Source, &c.Text, &paths, &c.Project, &c.Repo,
		&sections, &files, &c.Version, &c.IsEmbedded, &c.Description)
	if err != nil {
		return nil, err
	}
	c.OriginPaths = decodeList(paths)
	c.Sections = decodeList(sections)
	c.Files = decodeList(files)
	return &c, nil
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func decodeList(s string) []string {
	var items []string
	_ = json.Unmarshal([]byte(s), &items)
	return items
}
