package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/dispatch"
	"github.com/joss/mcpd/internal/ident"
	"github.com/joss/mcpd/internal/logging"
	"github.com/joss/mcpd/internal/metrics"
	"github.com/joss/mcpd/internal/render"
	"github.com/joss/mcpd/internal/session"
	"github.com/joss/mcpd/internal/tool"
)

// Toolset is the database-mcp tool table.
type Toolset struct {
	cfg     config.DatabaseConfig
	conn    *session.Holder[*Conn]
	metrics *metrics.Metrics
	log     *logging.Logger
}

// New creates a toolset with no active connection.
func New(cfg config.DatabaseConfig, m *metrics.Metrics) *Toolset {
	return &Toolset{
		cfg:     cfg,
		conn:    session.New(func(c *Conn) error { return c.Close() }).WithNotOpenError(ErrNoConnection),
		metrics: m,
		log:     logging.New("database"),
	}
}

// Specs implements dispatch.Toolset.
func (t *Toolset) Specs() []tool.Spec { return Specs() }

// Close implements dispatch.Toolset.
func (t *Toolset) Close(ctx context.Context) error {
	return t.conn.Shutdown(ctx)
}

// Handlers implements dispatch.Toolset.
func (t *Toolset) Handlers() dispatch.Table {
	return dispatch.Table{
		"connect_database":    t.connect,
		"disconnect_database": t.disconnect,
		"connection_info":     t.connectionInfo,
		"execute_query":       t.withConn(t.executeQuery),
		"execute_statement":   t.withConn(t.executeStatement),
		"list_databases":      t.withConn(t.listDatabases),
		"list_tables":         t.withConn(t.listTables),
		"describe_table":      t.withConn(t.describeTable),
		"sample_table":        t.withConn(t.sampleTable),
	}
}

type connHandler func(ctx context.Context, c *Conn, args tool.Args) (*tool.Result, error)

func (t *Toolset) withConn(h connHandler) dispatch.Handler {
	return func(ctx context.Context, args tool.Args) (*tool.Result, error) {
		c, err := t.conn.Get()
		if err != nil {
			return nil, err
		}
		return h(ctx, c, args)
	}
}

func (t *Toolset) connect(ctx context.Context, args tool.Args) (*tool.Result, error) {
	target := Target{
		Driver:   Driver(args.String("driver")),
		DSN:      args.String("dsn"),
		Host:     args.String("host"),
		Port:     args.Int("port"),
		User:     args.String("user"),
		Password: args.String("password"),
		Database: args.String("database"),
		SSLMode:  args.String("sslmode"),
	}
	label := target.Label()

	replacing := t.conn.IsOpen()
	c, err := t.conn.Replace(ctx, label, func(ctx context.Context) (*Conn, error) {
		return Open(ctx, target, t.cfg)
	})
	t.metrics.RecordExternal("connect", err)
	if c == nil {
		return nil, err
	}
	if err != nil {
		t.log.Warn("previous_close_failed", map[string]any{"target": label}, err)
	}
	t.log.Info("connected", map[string]any{"target": label, "replaced": replacing})

	b := render.NewBuilder()
	b.Println("Connected to %s", label)
	if replacing {
		b.Println("Previous connection closed")
	}
	if v, err := c.ServerVersion(ctx); err == nil {
		b.KV("Server", v)
	}
	return b.Result(), nil
}

func (t *Toolset) disconnect(ctx context.Context, _ tool.Args) (*tool.Result, error) {
	info, open := t.conn.Info()
	if !open {
		return tool.Text("No active database connection"), nil
	}
	if err := t.conn.Close(); err != nil {
		return nil, fmt.Errorf("disconnect: %w", err)
	}
	t.log.Info("disconnected", map[string]any{"target": info.Label})
	return tool.Textf("Disconnected from %s", info.Label), nil
}

func (t *Toolset) connectionInfo(ctx context.Context, _ tool.Args) (*tool.Result, error) {
	c, err := t.conn.Get()
	if err != nil {
		return tool.Text("Not connected"), nil
	}
	info, _ := t.conn.Info()
	stats := c.DB.Stats()

	b := render.NewBuilder()
	b.Header("Connection")
	b.KV("Target", info.Label)
	b.KV("Driver", string(c.Driver))
	b.KV("Opened", info.OpenedAt.Format("2006-01-02 15:04:05"))
	if v, err := c.ServerVersion(ctx); err == nil {
		b.KV("Server", v)
	} else {
		b.KV("Server", "unavailable: "+err.Error())
	}
	b.Section("Pool")
	b.KV("Open", stats.OpenConnections)
	b.KV("In use", stats.InUse)
	b.KV("Idle", stats.Idle)
	b.KV("Max open", stats.MaxOpenConnections)
	return b.Result(), nil
}

func (t *Toolset) executeQuery(ctx context.Context, c *Conn, args tool.Args) (*tool.Result, error) {
	rows, err := c.DB.QueryContext(ctx, args.String("query"), bindParams(args.Slice("params"))...)
	t.metrics.RecordExternal("query", err)
	if err != nil {
		return nil, err
	}
	return t.renderRows(rows, "")
}

func (t *Toolset) executeStatement(ctx context.Context, c *Conn, args tool.Args) (*tool.Result, error) {
	res, err := c.DB.ExecContext(ctx, args.String("statement"), bindParams(args.Slice("params"))...)
	t.metrics.RecordExternal("exec", err)
	if err != nil {
		return nil, err
	}

	b := render.NewBuilder()
	if n, err := res.RowsAffected(); err == nil {
		b.KV("Rows affected", n)
	}
	// pgx does not report insert ids.
	if c.Driver != Postgres {
		if id, err := res.LastInsertId(); err == nil && id > 0 {
			b.KV("Last insert id", id)
		}
	}
	if b.Len() == 0 {
		b.Println("Statement executed")
	}
	return b.Result(), nil
}

func (t *Toolset) listDatabases(ctx context.Context, c *Conn, _ tool.Args) (*tool.Result, error) {
	var q string
	switch c.Driver {
	case Postgres:
		q = "SELECT datname AS name FROM pg_database WHERE NOT datistemplate ORDER BY datname"
	case MySQL:
		q = "SELECT schema_name AS name FROM information_schema.schemata ORDER BY schema_name"
	default:
		q = "SELECT name, file FROM pragma_database_list ORDER BY seq"
	}
	rows, err := c.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return t.renderRows(rows, "Databases")
}

func (t *Toolset) listTables(ctx context.Context, c *Conn, args tool.Args) (*tool.Result, error) {
	schema := args.String("schema")

	var (
		q      string
		params []any
	)
	switch c.Driver {
	case Postgres:
		q = "SELECT table_schema AS schema, table_name AS name, table_type AS type FROM information_schema.tables"
		if schema != "" {
			q += " WHERE table_schema = $1"
			params = append(params, schema)
		} else {
			q += " WHERE table_schema NOT IN ('pg_catalog', 'information_schema')"
		}
		q += " ORDER BY table_schema, table_name"
	case MySQL:
		q = "SELECT table_schema AS `schema`, table_name AS name, table_type AS type FROM information_schema.tables WHERE table_schema = COALESCE(?, DATABASE()) ORDER BY table_name"
		if schema != "" {
			params = append(params, schema)
		} else {
			params = append(params, nil)
		}
	default:
		master := "sqlite_master"
		if schema != "" {
			quoted, err := ident.Quote(schema, c.Driver.Quoting())
			if err != nil {
				return nil, err
			}
			master = quoted + ".sqlite_master"
		}
		q = "SELECT name, type FROM " + master + " WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name"
	}

	rows, err := c.DB.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	return t.renderRows(rows, "Tables")
}

func (t *Toolset) describeTable(ctx context.Context, c *Conn, args tool.Args) (*tool.Result, error) {
	table, schema := args.String("table"), args.String("schema")
	if err := ident.SQL.Check(table); err != nil {
		return nil, err
	}
	title := table
	if schema != "" {
		title = schema + "." + table
	}

	var (
		q      string
		params []any
	)
	switch c.Driver {
	case Postgres:
		q = `SELECT column_name AS column, data_type AS type, is_nullable AS nullable, COALESCE(column_default, '') AS "default"
			FROM information_schema.columns WHERE table_name = $1 AND table_schema = COALESCE($2, current_schema())
			ORDER BY ordinal_position`
		params = []any{table, nullable(schema)}
	case MySQL:
		q = "SELECT column_name AS `column`, column_type AS type, is_nullable AS nullable, COALESCE(column_default, '') AS `default`, column_key AS `key`" +
			" FROM information_schema.columns WHERE table_name = ? AND table_schema = COALESCE(?, DATABASE()) ORDER BY ordinal_position"
		params = []any{table, nullable(schema)}
	default:
		var err error
		if q, err = sqliteTableInfo(schema, table); err != nil {
			return nil, err
		}
	}

	rows, err := c.DB.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	res, n, err := t.collect(rows)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("table %s not found", title)
	}
	return t.table(res, "Table "+title), nil
}

// sqliteTableInfo builds the PRAGMA reading the columns of table.
func sqliteTableInfo(schema, table string) (string, error) {
	qt, err := ident.Quote(table, ident.DoubleQuote)
	if err != nil {
		return "", err
	}
	if schema == "" {
		return fmt.Sprintf("PRAGMA table_info(%s)", qt), nil
	}
	qs, err := ident.Quote(schema, ident.DoubleQuote)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PRAGMA %s.table_info(%s)", qs, qt), nil
}

func (t *Toolset) sampleTable(ctx context.Context, c *Conn, args tool.Args) (*tool.Result, error) {
	table := args.String("table")
	quoted, err := ident.Quote(table, c.Driver.Quoting())
	if err != nil {
		return nil, err
	}
	limit := args.Int("limit")
	if limit <= 0 || limit > t.cfg.MaxRows {
		limit = t.cfg.MaxRows
	}

	q := fmt.Sprintf("SELECT * FROM %s LIMIT %s", quoted, c.Driver.Placeholder(1))
	rows, err := c.DB.QueryContext(ctx, q, limit)
	t.metrics.RecordExternal("query", err)
	if err != nil {
		return nil, err
	}
	return t.renderRows(rows, "Sample of "+table)
}

// queryResult is a materialized row set.
type queryResult struct {
	columns   []string
	rows      [][]string
	truncated bool
}

// collect reads at most MaxRows rows and closes rows.
func (t *Toolset) collect(rows *sql.Rows) (*queryResult, int, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, 0, err
	}
	res := &queryResult{columns: cols}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if len(res.rows) >= t.cfg.MaxRows {
			res.truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, 0, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		res.rows = append(res.rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return res, len(res.rows), nil
}

func (t *Toolset) renderRows(rows *sql.Rows, title string) (*tool.Result, error) {
	res, _, err := t.collect(rows)
	if err != nil {
		return nil, err
	}
	return t.table(res, title), nil
}

func (t *Toolset) table(res *queryResult, title string) *tool.Result {
	b := render.NewBuilder()
	if title != "" {
		b.Header("%s", title)
	}
	if len(res.columns) == 0 {
		b.Empty("Query returned no columns")
		return b.Result()
	}
	if len(res.rows) == 0 {
		b.Println("(0 rows) columns: %s", strings.Join(res.columns, ", "))
		return b.Result()
	}
	b.Table(res.columns, res.rows)
	b.Line()
	if res.truncated {
		b.Println("(showing first %d rows)", len(res.rows))
	} else {
		b.Println("(%d rows)", len(res.rows))
	}
	return b.Result()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
