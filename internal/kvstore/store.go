// Package kvstore is a namespaced JSON key-value store on a single sqlite
// file, exposed as tools.
package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultNamespace is used when a tool omits the namespace.
const DefaultNamespace = "default"

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	expires_at INTEGER,
	PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_entries_expires ON entries(expires_at) WHERE expires_at IS NOT NULL;
`

// Entry is one stored value. Times are stored as unix milliseconds.
type Entry struct {
	Namespace string
	Key       string
	Value     json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

// Filter selects entries for List.
type Filter struct {
	Namespace string
	Pattern   string
	Limit     int
}

// NamespaceStats counts live entries in one namespace.
type NamespaceStats struct {
	Name    string
	Entries int
	Bytes   int64
}

// Stats summarizes the store.
type Stats struct {
	Path       string
	FileSize   int64
	Entries    int
	Expiring   int
	Namespaces []NamespaceStats
}

// Store is the sqlite-backed key-value store.
type Store struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	closed atomic.Bool
}

// Open opens or creates the store at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

func (s *Store) nowMillis() int64 {
	return s.now().UnixMilli()
}

// purgeExpired deletes entries whose ttl has passed.
func (s *Store) purgeExpired(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}) (int64, error) {
	res, err := exec.ExecContext(ctx, `DELETE FROM entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.nowMillis())
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return res.RowsAffected()
}

// Set stores value under namespace/key, replacing any live value. A zero ttl
// keeps the entry until deleted. It reports whether the key was new.
func (s *Store) Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode value: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := s.purgeExpired(ctx, tx); err != nil {
		return false, err
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE namespace = ? AND key = ?`, namespace, key).Scan(&exists)
	if err != nil {
		return false, err
	}

	now := s.nowMillis()
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: now + ttl.Milliseconds(), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (namespace, key, value, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`, namespace, key, string(data), now, now, expires)
	if err != nil {
		return false, fmt.Errorf("store %s/%s: %w", namespace, key, err)
	}
	return exists == 0, tx.Commit()
}

const entryColumns = `namespace, key, value, created_at, updated_at, expires_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                Entry
		value            string
		created, updated int64
		expires          sql.NullInt64
	)
	if err := row.Scan(&e.Namespace, &e.Key, &value, &created, &updated, &expires); err != nil {
		return nil, err
	}
	e.Value = json.RawMessage(value)
	e.CreatedAt = time.UnixMilli(created)
	e.UpdatedAt = time.UnixMilli(updated)
	if expires.Valid {
		t := time.UnixMilli(expires.Int64)
		e.ExpiresAt = &t
	}
	return &e, nil
}

// Get returns the live entry at namespace/key.
func (s *Store) Get(ctx context.Context, namespace, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE namespace = ? AND key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		namespace, key, s.nowMillis())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Namespace: namespace, Key: key}
	}
	return e, err
}

// Delete removes namespace/key. Deleting an expired or absent key returns a
// NotFoundError.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.purgeExpired(ctx, tx); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Namespace: namespace, Key: key}
	}
	return nil
}

// List returns live entries of a namespace whose keys match the glob
// pattern, ordered by key.
func (s *Store) List(ctx context.Context, f Filter) ([]*Entry, error) {
	pattern := f.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE namespace = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key`, f.Namespace, s.nowMillis())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if ok, _ := doublestar.Match(pattern, e.Key); !ok {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, rows.Err()
}

// Search returns live entries whose key or JSON value contains query,
// case-insensitively. An empty namespace searches every namespace.
func (s *Store) Search(ctx context.Context, query, namespace string, limit int) ([]*Entry, error) {
	like := "%" + escapeLike(strings.ToLower(query)) + "%"

	q := `SELECT ` + entryColumns + ` FROM entries
		WHERE (expires_at IS NULL OR expires_at > ?)
		AND (lower(key) LIKE ? ESCAPE '\' OR lower(value) LIKE ? ESCAPE '\')`
	args := []any{s.nowMillis(), like, like}
	if namespace != "" {
		q += ` AND namespace = ?`
		args = append(args, namespace)
	}
	q += ` ORDER BY namespace, key`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Clear deletes every entry of namespace and reports how many live entries
// were removed.
func (s *Store) Clear(ctx context.Context, namespace string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := s.purgeExpired(ctx, tx); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ?`, namespace)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// Stats counts live entries per namespace.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	now := s.nowMillis()
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, COUNT(*), COALESCE(SUM(length(value)), 0),
			SUM(CASE WHEN expires_at IS NOT NULL THEN 1 ELSE 0 END)
		FROM entries WHERE expires_at IS NULL OR expires_at > ?
		GROUP BY namespace ORDER BY namespace`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	st := &Stats{Path: s.path}
	for rows.Next() {
		var (
			ns       NamespaceStats
			expiring int
		)
		if err := rows.Scan(&ns.Name, &ns.Entries, &ns.Bytes, &expiring); err != nil {
			return nil, err
		}
		st.Entries += ns.Entries
		st.Expiring += expiring
		st.Namespaces = append(st.Namespaces, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(s.path); err == nil {
		st.FileSize = fi.Size()
	}
	return st, nil
}
