package store

import (
	"database/sql"
	"fmt"

	"linkforge/internal/logging"
)

// Migration adds one column to an existing table. New databases get the
// full schema up front; migrations only matter for databases created by
// older builds.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists every column added after the table shipped.
var pendingMigrations = []Migration{
	// current_platform was added when cycle resume landed
	{"campaigns", "current_platform", "TEXT NOT NULL DEFAULT ''"},
	// failure_history and next_retry_after arrived with the cooldown rules
	{"platform_targets", "failure_history", "TEXT NOT NULL DEFAULT '[]'"},
	{"platform_targets", "next_retry_after", "TEXT"},
}

// RunMigrations applies pending column additions to an existing database.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			return &PersistenceError{Op: "RunMigrations", Err: fmt.Errorf("%s.%s: %w", m.Table, m.Column, err)}
		}
		logging.Store("migrated: added %s.%s", m.Table, m.Column)
		applied++
	}
	if applied > 0 {
		logging.Store("schema migrations complete (%d applied)", applied)
	}
	return nil
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	return err == nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
