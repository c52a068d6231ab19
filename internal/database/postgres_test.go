package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
}

func TestMigrationFiles_OrderedByVersion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"010_indexes.sql",
		"002_project_tables.sql",
		"001_chat_schema.sql",
		"README.md",
		"003_notes.txt",
		"draft.sql",
		"000_zero.sql",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "004_dir.sql"), 0o755))

	files, err := migrationFiles(dir)
	require.NoError(t, err)

	assert.Equal(t, []migration{
		{version: 1, name: "001_chat_schema.sql"},
		{version: 2, name: "002_project_tables.sql"},
		{version: 10, name: "010_indexes.sql"},
	}, files)
}

func TestMigrationFiles_RejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "001_a.sql", "1_b.sql")

	_, err := migrationFiles(dir)
	assert.ErrorContains(t, err, "share version 1")
}

func TestMigrationFiles_RepositoryMigrations(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 1, files[0].version)
	assert.Equal(t, 2, files[1].version)
}

func TestResolveMigrationsDir(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveMigrationsDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = resolveMigrationsDir(filepath.Join(dir, "missing"))
	assert.ErrorContains(t, err, "not found")
}
