// Package database exposes a relational database as tools. One pooled
// connection is active at a time; connect_database replaces it.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/joss/mcpd/internal/config"
	"github.com/joss/mcpd/internal/ident"
)

// ErrNoConnection is returned by data tools before connect_database.
var ErrNoConnection = errors.New("no active database connection; call connect_database first")

// Driver identifies a supported database.
type Driver string

const (
	Postgres Driver = "postgres"
	MySQL    Driver = "mysql"
	SQLite   Driver = "sqlite"
)

// Drivers lists the accepted driver names.
var Drivers = []string{string(Postgres), string(MySQL), string(SQLite)}

// sqlName is the database/sql registration name.
func (d Driver) sqlName() string {
	switch d {
	case Postgres:
		return "pgx"
	case SQLite:
		return "sqlite3"
	default:
		return string(d)
	}
}

// Placeholder returns the bind marker for the n-th parameter (1-based).
func (d Driver) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Quoting returns the identifier quoting of the dialect.
func (d Driver) Quoting() ident.Quoting {
	if d == MySQL {
		return ident.Backtick
	}
	return ident.DoubleQuote
}

// Target describes where to connect. DSN wins over the discrete fields.
type Target struct {
	Driver   Driver
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DataSource returns the driver DSN for t.
func (t Target) DataSource() (string, error) {
	if t.DSN != "" {
		return t.DSN, nil
	}

	host := t.Host
	if host == "" {
		host = "localhost"
	}

	switch t.Driver {
	case Postgres:
		port := t.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(host, strconv.Itoa(port)),
			Path:   "/" + t.Database,
		}
		switch {
		case t.User != "" && t.Password != "":
			u.User = url.UserPassword(t.User, t.Password)
		case t.User != "":
			u.User = url.User(t.User)
		}
		if t.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {t.SSLMode}}.Encode()
		}
		return u.String(), nil

	case MySQL:
		port := t.Port
		if port == 0 {
			port = 3306
		}
		cfg := mysql.NewConfig()
		cfg.User = t.User
		cfg.Passwd = t.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
		cfg.DBName = t.Database
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil

	case SQLite:
		if t.Database == "" {
			return "", errors.New("sqlite needs database (a file path or :memory:) or dsn")
		}
		return t.Database, nil

	default:
		return "", fmt.Errorf("unsupported driver %q", t.Driver)
	}
}

// Label describes t without credentials.
func (t Target) Label() string {
	if t.DSN != "" {
		return string(t.Driver) + " " + redactDSN(t.Driver, t.DSN)
	}
	switch t.Driver {
	case SQLite:
		return "sqlite " + t.Database
	default:
		dsn, err := t.DataSource()
		if err != nil {
			return string(t.Driver)
		}
		return string(t.Driver) + " " + redactDSN(t.Driver, dsn)
	}
}

func redactDSN(d Driver, dsn string) string {
	switch d {
	case Postgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			return u.Redacted()
		}
		return "(dsn)"
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "(dsn)"
		}
		return fmt.Sprintf("%s@%s/%s", cfg.User, cfg.Addr, cfg.DBName)
	default:
		return dsn
	}
}

// Conn is the active pooled connection.
type Conn struct {
	DB     *sql.DB
	Driver Driver
	Target Target
}

// Open connects to t and verifies the connection with a ping.
func Open(ctx context.Context, t Target, pool config.DatabaseConfig) (*Conn, error) {
	dsn, err := t.DataSource()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(t.Driver.sqlName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.Driver, err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", t.Driver, err)
	}
	return &Conn{DB: db, Driver: t.Driver, Target: t}, nil
}

// Close releases the pool.
func (c *Conn) Close() error {
	return c.DB.Close()
}

// ServerVersion queries the server version string.
func (c *Conn) ServerVersion(ctx context.Context) (string, error) {
	q := "SELECT version()"
	if c.Driver == SQLite {
		q = "SELECT sqlite_version()"
	}
	var v string
	if err := c.DB.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return "", err
	}
	return v, nil
}

// bindParams converts JSON values into driver arguments. Whole numbers bind
// as integers; objects and arrays bind as their JSON text.
func bindParams(params []any) []any {
	out := make([]any, len(params))
	for i, p := range params {
		switch v := p.(type) {
		case float64:
			if v == float64(int64(v)) {
				out[i] = int64(v)
			} else {
				out[i] = v
			}
		case map[string]any, []any:
			out[i] = jsonText(v)
		default:
			out[i] = v
		}
	}
	return out
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}
