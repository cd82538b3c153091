package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/tool"
)

func newTestToolset(t *testing.T) (*dispatch.Dispatcher, *Toolset) {
	t.Helper()
	cfg := config.Default().Database
	cfg.MaxRows = 3
	ts := New(cfg, nil)
	d, err := dispatch.FromToolset(ts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })
	return d, ts
}

func call(t *testing.T, d *dispatch.Dispatcher, name string, args map[string]any) *tool.Result {
	t.Helper()
	res, _ := d.Call(context.Background(), name, args)
	require.NotNil(t, res)
	return res
}

func connectSQLite(t *testing.T, d *dispatch.Dispatcher) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	res := call(t, d, "connect_database", map[string]any{"driver": "sqlite", "database": path})
	require.False(t, res.IsError, res.Text())
	return path
}

func seed(t *testing.T, d *dispatch.Dispatcher) {
	t.Helper()
	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT)",
		"INSERT INTO users (name, email) VALUES ('ada', 'ada@example.com'), ('alan', NULL), ('grace', 'grace@example.com'), ('linus', 'linus@example.com')",
	} {
		res := call(t, d, "execute_statement", map[string]any{"statement": stmt})
		require.False(t, res.IsError, res.Text())
	}
}

func TestQueryWithoutConnection(t *testing.T) {
	d, _ := newTestToolset(t)

	for _, name := range []string{"execute_query", "execute_statement", "list_tables", "describe_table", "sample_table", "list_databases"} {
		t.Run(name, func(t *testing.T) {
			args := map[string]any{"query": "SELECT 1", "statement": "SELECT 1", "table": "users", "params": []any{}}
			res := call(t, d, name, args)
			assert.True(t, res.IsError)
			assert.Equal(t, ErrNoConnection.Error(), res.Text())
		})
	}
}

func TestInfoWithoutConnection(t *testing.T) {
	d, _ := newTestToolset(t)

	res := call(t, d, "connection_info", nil)
	assert.False(t, res.IsError)
	assert.Equal(t, "Not connected", res.Text())

	res = call(t, d, "disconnect_database", nil)
	assert.False(t, res.IsError)
	assert.Equal(t, "No active database connection", res.Text())
}

func TestConnectAndQuery(t *testing.T) {
	d, _ := newTestToolset(t)
	path := connectSQLite(t, d)
	seed(t, d)

	res := call(t, d, "execute_query", map[string]any{
		"query":  "SELECT name, email FROM users WHERE id = ?",
		"params": []any{float64(2)},
	})
	require.False(t, res.IsError, res.Text())
	assert.Contains(t, res.Text(), "NAME")
	assert.Contains(t, res.Text(), "alan")
	assert.Contains(t, res.Text(), "NULL")
	assert.Contains(t, res.Text(), "(1 rows)")

	res = call(t, d, "connection_info", nil)
	assert.Contains(t, res.Text(), "sqlite "+path)
	assert.Contains(t, res.Text(), "Server:")
}

func TestQueryRowCap(t *testing.T) {
	d, _ := newTestToolset(t)
	connectSQLite(t, d)
	seed(t, d)

	res := call(t, d, "execute_query", map[string]any{"query": "SELECT id FROM users ORDER BY id"})
	require.False(t, res.IsError, res.Text())
	assert.Contains(t, res.Text(), "(showing first 3 rows)")
	assert.NotContains(t, res.Text(), "linus")
}

func TestQueryNoRows(t *testing.T) {
	d, _ := newTestToolset(t)
	connectSQLite(t, d)
	seed(t, d)

	res := call(t, d, "execute_query", map[string]any{"query": "SELECT id, name FROM users WHERE id > 100"})
	require.False(t, res.IsError)
	assert.Equal(t, "(0 rows) columns: id, name", res.Text())
}

func TestQueryErrorIsToolError(t *testing.T) {
	d, _ := newTestToolset(t)
	connectSQLite(t, d)

	res := call(t, d, "execute_query", map[string]any{"query": "SELECT * FROM missing"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "no such table")
}

func TestExecuteStatement(t *testing.T) {
	d, _ := newTestToolset(t)
	connectSQLite(t, d)
	seed(t, d)

	res := call(t, d, "execute_statement", map[string]any{
		"statement": "INSERT INTO users (name, email) VALUES (?, ?)",
		"params":    []any{"margaret", map[string]any{"work": "mh@example.com"}},
	})
	require.False(t, res.IsError, res.Text())
	assert.Contains(t, res.Text(), "Rows affected: 1")
	assert.Contains(t, res.Text(), "Last insert id: 5")

	res = call(t, d, "execute_query", map[string]any{"query": "SELECT email FROM users WHERE id = 5"})
	assert.Contains(t, res.Text(), `{"work":"mh@example.com"}`)
}

func TestSchemaTools(t *testing.T) {
	d, _ := newTestToolset(t)
	connectSQLite(t, d)
	seed(t, d)

	res := call(t, d, "list_tables", nil)
	require.False(t, res.IsError, res.Text())
	assert.Contains(t, res.Text(), "users")

	res = call(t, d, "describe_table", map[string]any{"table": "users"})
	require.False(t, res.IsError, res.Text())
	assert.Contains(t, res.Text(), "email")
	assert.Contains(t, res.Text(), "INTEGER")

	res = call(t, d, "describe_table", map[string]any{"table": "ghosts"})
	assert.True(t, res.IsError)
	assert.Equal(t, "table ghosts not found", res.Text())

	res = call(t, d, "list_databases", nil)
	require.False(t, res.IsError, res.Text())
	assert.Contains(t, res.Text(), "main")

	res = call(t, d, "sample_table", map[string]any{"table": "users", "limit": float64(2)})
	require.False(t, res.IsError, res.Text())
	assert.Contains(t, res.Text(), "ada")
	assert.Contains(t, res.Text(), "(2 rows)")
}

func TestIdentifierInjectionRejected(t *testing.T) {
	d, _ := newTestToolset(t)
	connectSQLite(t, d)
	seed(t, d)

	for _, name := range []string{"users; DROP TABLE users", `users"`, "users--", ""} {
		t.Run(name, func(t *testing.T) {
			res := call(t, d, "sample_table", map[string]any{"table": name})
			assert.True(t, res.IsError)
			assert.Contains(t, res.Text(), "invalid SQL identifier")
		})
	}

	res := call(t, d, "list_tables", nil)
	assert.Contains(t, res.Text(), "users")
}

func TestReconnectClosesPrevious(t *testing.T) {
	d, ts := newTestToolset(t)
	connectSQLite(t, d)
	first, err := ts.conn.Get()
	require.NoError(t, err)

	res := call(t, d, "connect_database", map[string]any{"driver": "sqlite", "database": filepath.Join(t.TempDir(), "other.db")})
	require.False(t, res.IsError, res.Text())
	assert.Contains(t, res.Text(), "Previous connection closed")
	assert.Equal(t, 1, ts.conn.Replaced())

	assert.Error(t, first.DB.Ping())

	res = call(t, d, "disconnect_database", nil)
	assert.Contains(t, res.Text(), "Disconnected from sqlite")
	assert.False(t, ts.conn.IsOpen())
}

func TestConnectFailureLeavesNoConnection(t *testing.T) {
	d, ts := newTestToolset(t)

	res := call(t, d, "connect_database", map[string]any{"driver": "sqlite"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "sqlite needs database")
	assert.False(t, ts.conn.IsOpen())
}

func TestConnectInvalidDriver(t *testing.T) {
	d, _ := newTestToolset(t)

	res := call(t, d, "connect_database", map[string]any{"driver": "oracle"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Text(), "oracle")
}

func TestDataSource(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   string
	}{
		{"dsn wins", Target{Driver: Postgres, DSN: "postgres://x@db/app", Host: "ignored"}, "postgres://x@db/app"},
		{"postgres defaults", Target{Driver: Postgres, Database: "app"}, "postgres://localhost:5432/app"},
		{"postgres full", Target{Driver: Postgres, Host: "db", Port: 6543, User: "bob", Password: "p@ss", Database: "app", SSLMode: "require"}, "postgres://bob:p%40ss@db:6543/app?sslmode=require"},
		{"mysql", Target{Driver: MySQL, User: "root", Password: "pw", Database: "shop"}, "root:pw@tcp(localhost:3306)/shop?parseTime=true"},
		{"sqlite", Target{Driver: SQLite, Database: ":memory:"}, ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.target.DataSource()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLabelRedactsPassword(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		want   string
	}{
		{"postgres", Target{Driver: Postgres, Host: "db", User: "bob", Password: "secret", Database: "app"}, "postgres postgres://bob:xxxxx@db:5432/app"},
		{"postgres dsn", Target{Driver: Postgres, DSN: "postgres://bob:secret@db/app"}, "postgres postgres://bob:xxxxx@db/app"},
		{"mysql", Target{Driver: MySQL, User: "root", Password: "secret", Database: "shop"}, "mysql root@localhost:3306/shop"},
		{"sqlite", Target{Driver: SQLite, Database: "/tmp/a.db"}, "sqlite /tmp/a.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.target.Label()
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "secret")
		})
	}
}

func TestBindParams(t *testing.T) {
	got := bindParams([]any{float64(3), 2.5, "x", nil, true, []any{"a"}})
	assert.Equal(t, []any{int64(3), 2.5, "x", nil, true, `["a"]`}, got)
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$2", Postgres.Placeholder(2))
	assert.Equal(t, "?", MySQL.Placeholder(2))
	assert.Equal(t, "?", SQLite.Placeholder(1))
}
