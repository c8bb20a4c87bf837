package database

import (
	"database/sql"
	"fmt"
	"log"
)

// legacyOwnerTables were created by the earlier deployment with the client
// id in a "uuid" column. The rest of their layout matches migration 1.
var legacyOwnerTables = []string{"dialogue_session", "dialogue"}

// SchemaVersion returns the applied migration version.
func (db *DB) SchemaVersion() (int, error) {
	return getSchemaVersion(db.conn)
}

func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// columns returns the column names of table, or nil if it does not exist.
func columns(conn *sql.DB, table string) (map[string]bool, error) {
	rows, err := conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols map[string]bool
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		if cols == nil {
			cols = make(map[string]bool)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// renameLegacyOwnerColumns renames "uuid" to "owner_id" in unversioned
// legacy tables so that migration 1 can adopt them. It reports how many
// tables were renamed.
func renameLegacyOwnerColumns(conn *sql.DB) (int, error) {
	renamed := 0
	for _, table := range legacyOwnerTables {
		cols, err := columns(conn, table)
		if err != nil {
			return renamed, fmt.Errorf("inspecting %s: %w", table, err)
		}
		if !cols["uuid"] || cols["owner_id"] {
			continue
		}
		if _, err := conn.Exec(fmt.Sprintf("ALTER TABLE %s RENAME COLUMN uuid TO owner_id", table)); err != nil {
			return renamed, fmt.Errorf("renaming owner column of %s: %w", table, err)
		}
		renamed++
	}
	return renamed, nil
}

// migrate brings the database schema up to the latest version, tracked in
// PRAGMA user_version.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		n, err := renameLegacyOwnerColumns(conn)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Printf("adopted %d legacy dialogue tables", n)
		}
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		log.Printf("applying migration %d: %s", m.Version, m.Description)
		if err := apply(conn, m); err != nil {
			return err
		}
	}
	return nil
}

func apply(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	// modernc/sqlite does not apply user_version inside a transaction; the
	// DDL is idempotent if this write is lost.
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("setting version %d: %w", m.Version, err)
	}
	return nil
}
