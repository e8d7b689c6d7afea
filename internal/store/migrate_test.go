package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "planner.sqlite")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	first, err := db.Schema(ctx)
	require.NoError(t, err)
	names, err := db.Migrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v1-indexes"}, names)

	applied, err := db.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	second, err := db.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, table := range []string{"project", "projectImage", "section", "sectionItem", "sectionItemNote"} {
		assert.Contains(t, second, table)
	}
}

func TestFailedMigrationLeavesNoPartialSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "planner.sqlite")

	m := &Migrator{}
	m.Register("good", `CREATE TABLE IF NOT EXISTS widget (id INTEGER PRIMARY KEY)`)
	m.Register("bad", `CREATE TABLE IF NOT EXISTS gadget (id INTEGER PRIMARY KEY)`, `THIS IS NOT SQL`)

	_, err := Open(ctx, path, WithMigrator(m))
	require.Error(t, err)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.True(t, IsFatal(err))

	ok := &Migrator{}
	ok.Register("noop", `SELECT 1`)
	db, err := Open(ctx, path, WithMigrator(ok))
	require.NoError(t, err)
	defer db.Close()

	schema, err := db.Schema(ctx)
	require.NoError(t, err)
	assert.NotContains(t, schema, "widget")
	assert.NotContains(t, schema, "gadget")
}

func TestRegisterTwicePanics(t *testing.T) {
	m := &Migrator{}
	m.Register("v1")
	assert.Panics(t, func() { m.Register("v1") })
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}
