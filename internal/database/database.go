package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// DB wraps a SQLite or Postgres connection pool.
type DB struct {
	conn   *sql.DB
	path   string
	driver string
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "creating data directory")
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, eris.Wrap(err, "opening database")
	}
	// One writer at a time; concurrent candidates queue on the pool.
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "applying %s", pragma)
		}
	}

	db := &DB{conn: conn, path: dbPath, driver: SQLite}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "migrating schema")
	}
	return db, nil
}

// OpenPostgres connects to Postgres using a lib/pq DSN or URL.
func OpenPostgres(dsn string) (*DB, error) {
	if dsn == "" {
		return nil, eris.New("postgres DSN is empty")
	}
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "opening postgres")
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "connecting to postgres")
	}

	db := &DB{conn: conn, path: redactDSN(dsn), driver: Postgres}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "migrating schema")
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path, or the redacted DSN for Postgres.
func (db *DB) Path() string {
	return db.path
}

// Driver returns SQLite or Postgres.
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites ? placeholders to $n for Postgres.
func (db *DB) rebind(query string) string {
	if db.driver != Postgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return "postgres"
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
