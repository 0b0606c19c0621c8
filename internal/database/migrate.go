package database

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// getSchemaVersion reads the applied schema version. SQLite keeps it in
// PRAGMA user_version, Postgres in the schema_version table.
func (db *DB) getSchemaVersion() (int, error) {
	var version int
	if db.driver == Postgres {
		if _, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
			return 0, eris.Wrap(err, "creating schema_version")
		}
		err := db.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
		return version, eris.Wrap(err, "reading schema version")
	}
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, eris.Wrap(err, "reading schema version")
	}
	return version, nil
}

func (db *DB) setSchemaVersion(version int) error {
	if db.driver == Postgres {
		if _, err := db.conn.Exec(`DELETE FROM schema_version`); err != nil {
			return err
		}
		_, err := db.conn.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, version)
		return err
	}
	_, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}

// isLegacyDB returns true if a SQLite file already holds the business
// tables but no user_version. Files written by the earlier Flask service
// look like this and match migration 1.
func (db *DB) isLegacyDB() (bool, error) {
	if db.driver != SQLite {
		return false, nil
	}
	var count int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='businesses'",
	).Scan(&count)
	if err != nil {
		return false, eris.Wrap(err, "checking for legacy tables")
	}
	return count > 0, nil
}

// migrate brings the database schema up to the latest version.
func (db *DB) migrate() error {
	current, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if current == 0 {
		legacy, err := db.isLegacyDB()
		if err != nil {
			return err
		}
		if legacy {
			zap.L().Info("detected legacy database, stamping as version 1")
			if err := db.setSchemaVersion(1); err != nil {
				return eris.Wrap(err, "stamping legacy version")
			}
			current = 1
		}
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	d := dialectFor(db.driver)
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		zap.L().Info("applying migration", zap.Int("version", m.Version), zap.String("description", m.Description))

		tx, err := db.conn.Begin()
		if err != nil {
			return eris.Wrapf(err, "begin migration %d", m.Version)
		}

		if err := m.Up(tx, d); err != nil {
			tx.Rollback()
			return eris.Wrapf(err, "migration %d (%s)", m.Version, m.Description)
		}

		if err := tx.Commit(); err != nil {
			return eris.Wrapf(err, "commit migration %d", m.Version)
		}

		// Set user_version outside the transaction (modernc/sqlite requirement).
		// Safe: if we crash here, the idempotent DDL lets the migration re-run.
		if err := db.setSchemaVersion(m.Version); err != nil {
			return eris.Wrapf(err, "setting version %d", m.Version)
		}
	}

	return nil
}
