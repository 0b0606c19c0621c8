package database

import (
	"database/sql"
	"strings"

	"github.com/rotisserie/eris"
)

// dialect holds the column types that differ between drivers.
type dialect struct {
	driver string
	id     string
	ref    string
	float  string
	bool   string
}

func dialectFor(driver string) dialect {
	if driver == Postgres {
		return dialect{driver: Postgres, id: "BIGSERIAL PRIMARY KEY", ref: "BIGINT", float: "DOUBLE PRECISION", bool: "BOOLEAN"}
	}
	return dialect{driver: SQLite, id: "INTEGER PRIMARY KEY AUTOINCREMENT", ref: "INTEGER", float: "REAL", bool: "BOOLEAN"}
}

// ddl expands the {{...}} type placeholders for the dialect.
func (d dialect) ddl(s string) string {
	return strings.NewReplacer("{{id}}", d.id, "{{ref}}", d.ref, "{{float}}", d.float, "{{bool}}", d.bool).Replace(s)
}

func (d dialect) execAll(tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(d.ddl(stmt)); err != nil {
			return eris.Wrapf(err, "executing %.60q", stmt)
		}
	}
	return nil
}

func (d dialect) addColumn(tx *sql.Tx, table, column, typ string) error {
	if d.driver == Postgres {
		_, err := tx.Exec("ALTER TABLE " + table + " ADD COLUMN IF NOT EXISTS " + column + " " + typ)
		return err
	}
	var n int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column,
	).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := tx.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + typ)
	return err
}

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx, d dialect) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "businesses, instagram_data, analyses",
		Up: func(tx *sql.Tx, d dialect) error {
			return d.execAll(tx,
				`CREATE TABLE IF NOT EXISTS businesses (
    id {{id}},
    name VARCHAR(255) NOT NULL,
    niche VARCHAR(100),
    location VARCHAR(255),
    website VARCHAR(500),
    phone VARCHAR(50),
    address VARCHAR(500),
    rating {{float}},
    reviews_count INTEGER,
    hours TEXT,
    scraped_at TEXT
)`,
				`CREATE TABLE IF NOT EXISTS instagram_data (
    id {{id}},
    business_id {{ref}} NOT NULL UNIQUE REFERENCES businesses(id) ON DELETE CASCADE,
    username VARCHAR(100),
    followers INTEGER,
    following INTEGER,
    posts INTEGER,
    engagement_rate {{float}},
    bio TEXT,
    is_verified {{bool}} DEFAULT FALSE,
    is_business {{bool}} DEFAULT FALSE
)`,
				`CREATE TABLE IF NOT EXISTS analyses (
    id {{id}},
    business_id {{ref}} NOT NULL UNIQUE REFERENCES businesses(id) ON DELETE CASCADE,
    revenue_streams TEXT,
    estimated_revenue_tier VARCHAR(50),
    pricing_strategy VARCHAR(50),
    service_quality_score {{float}},
    competitive_assessment TEXT,
    niche_specific_insights TEXT
)`,
				`CREATE INDEX IF NOT EXISTS idx_businesses_niche ON businesses(niche)`,
			)
		},
	},
	{
		Version:     2,
		Description: "run ids and website grades",
		Up: func(tx *sql.Tx, d dialect) error {
			if err := d.addColumn(tx, "businesses", "run_id", "VARCHAR(36)"); err != nil {
				return eris.Wrap(err, "adding run_id")
			}
			return d.execAll(tx,
				`CREATE INDEX IF NOT EXISTS idx_businesses_run ON businesses(run_id)`,
				`CREATE TABLE IF NOT EXISTS website_grades (
    id {{id}},
    business_id {{ref}} NOT NULL UNIQUE REFERENCES businesses(id) ON DELETE CASCADE,
    total_score INTEGER NOT NULL DEFAULT 0,
    design_score INTEGER NOT NULL DEFAULT 0,
    seo_score INTEGER NOT NULL DEFAULT 0,
    strengths TEXT,
    weaknesses TEXT,
    recommendations TEXT
)`,
			)
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
