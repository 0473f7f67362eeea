package migrations

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFindLatestMigrationVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_create_matches.up.sql",
		"000001_create_matches.down.sql",
		"000012_add_index.up.sql",
		"README.md",
		"notes_000099.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000500_dir"), 0o755))

	assert.Equal(t, int64(12), findLatestMigrationVersion(dir))
	assert.Zero(t, findLatestMigrationVersion(filepath.Join(dir, "missing")))
}

func TestRepositoryMigrationsAreNumbered(t *testing.T) {
	assert.Equal(t, int64(1), findLatestMigrationVersion("../../migrations"))
}

func TestRunMigrationsNeedsURL(t *testing.T) {
	assert.Error(t, RunMigrations("", "migrations", zap.NewNop()))
}
