package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration is a named batch of idempotent statements.
type Migration struct {
	Name       string
	Statements []string
}

// Migrator applies registered migrations in registration order. Applied names
// are recorded in the schemaMigration table so each runs at most once; the
// statements themselves must still be safe to re-run.
type Migrator struct {
	migrations []Migration
}

func (m *Migrator) Register(name string, statements ...string) {
	name = strings.TrimSpace(name)
	for _, existing := range m.migrations {
		if existing.Name == name {
			panic(fmt.Sprintf("store: migration %q registered twice", name))
		}
	}
	m.migrations = append(m.migrations, Migration{Name: name, Statements: statements})
}

func (m *Migrator) Names() []string {
	out := make([]string, 0, len(m.migrations))
	for _, mig := range m.migrations {
		out = append(out, mig.Name)
	}
	return out
}

const createMigrationTable = `CREATE TABLE IF NOT EXISTS schemaMigration (
	name TEXT PRIMARY KEY,
	appliedAt INTEGER NOT NULL
);`

// Migrate applies every pending migration inside one transaction and returns
// the names it applied. Any failure rolls the whole batch back.
func (m *Migrator) Migrate(ctx context.Context, db *sql.DB) ([]string, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createMigrationTable); err != nil {
		return nil, fmt.Errorf("create migration table: %w", err)
	}
	done, err := appliedNames(ctx, tx)
	if err != nil {
		return nil, err
	}

	var applied []string
	now := time.Now().UTC().UnixMilli()
	for _, mig := range m.migrations {
		if done[mig.Name] {
			continue
		}
		for _, st := range mig.Statements {
			if _, err := tx.ExecContext(ctx, st); err != nil {
				return nil, fmt.Errorf("migration %s: %w", mig.Name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schemaMigration(name, appliedAt) VALUES(?, ?)`, mig.Name, now); err != nil {
			return nil, fmt.Errorf("record migration %s: %w", mig.Name, err)
		}
		applied = append(applied, mig.Name)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return applied, nil
}

// Applied lists recorded migration names in the order they were applied.
func (m *Migrator) Applied(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM schemaMigration ORDER BY appliedAt, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func appliedNames(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM schemaMigration`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// SchemaMigrator returns the migrator for the planner schema.
func SchemaMigrator() *Migrator {
	m := &Migrator{}
	m.Register("v1", schemaV1...)
	m.Register("v1-indexes", indexesV1...)
	return m
}

// Foreign keys are declared for documentation and parent checks; cascades are
// handled by the application.
var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS project (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		isDeleted INTEGER NOT NULL DEFAULT 0,
		createDate INTEGER NOT NULL,
		updateDate INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS projectImage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		projectId INTEGER NOT NULL REFERENCES project(id),
		filePath TEXT NOT NULL,
		isDeleted INTEGER NOT NULL DEFAULT 0,
		createDate INTEGER NOT NULL,
		updateDate INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS section (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		projectId INTEGER NOT NULL REFERENCES project(id),
		name TEXT NOT NULL,
		isDeleted INTEGER NOT NULL DEFAULT 0,
		createDate INTEGER NOT NULL,
		updateDate INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sectionItem (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sectionId INTEGER NOT NULL REFERENCES section(id),
		text TEXT NOT NULL,
		isComplete INTEGER NOT NULL DEFAULT 0,
		"order" INTEGER NOT NULL,
		isDeleted INTEGER NOT NULL DEFAULT 0,
		createDate INTEGER NOT NULL,
		updateDate INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sectionItemNote (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sectionItemId INTEGER NOT NULL UNIQUE REFERENCES sectionItem(id),
		text TEXT NOT NULL,
		isDeleted INTEGER NOT NULL DEFAULT 0,
		createDate INTEGER NOT NULL,
		updateDate INTEGER NOT NULL
	);`,
}

var indexesV1 = []string{
	`CREATE INDEX IF NOT EXISTS idx_projectImage_project ON projectImage(projectId);`,
	`CREATE INDEX IF NOT EXISTS idx_section_project ON section(projectId);`,
	`CREATE INDEX IF NOT EXISTS idx_sectionItem_section ON sectionItem(sectionId, "order");`,
}
