package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["server"])
	assert.True(t, names["migrate"])
	assert.NotNil(t, GetRootCmd().PersistentFlags().Lookup("config"))
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, loadDotEnv(""))
	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAINTENANCE_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Setenv("MAINTENANCE_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("MAINTENANCE_TEST_VALUE"))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-dotenv", os.Getenv("MAINTENANCE_TEST_VALUE"))
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "maintenance.db")
	t.Setenv("APP_DATABASE_DRIVER", "sqlite")
	t.Setenv("APP_DATABASE_PATH", dbPath)
	t.Setenv("APP_LOG_LEVEL", "error")

	root := GetRootCmd()
	root.SetArgs([]string{"migrate", "--env-file", ""})
	require.NoError(t, root.Execute())

	_, err := os.Stat(dbPath)
	assert.NoError(t, err)
}
