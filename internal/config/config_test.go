package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "FRONTEND_URL", "STORE_DRIVER", "LOG_LEVEL", "MAX_CONNS",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"MONGO_URI", "MONGO_DATABASE", "AUTH_SECRET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, ":5000", cfg.Addr())
	assert.Equal(t, "http://localhost:5173", cfg.FrontendURL)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "todo.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = 6000
store_driver = "mongo"
mongo_database = "from_file"
db_name = "todos_file"
`), 0o600))

	t.Setenv("PORT", "7000")
	t.Setenv("DB_NAME", "todos_env")
	t.Setenv("AUTH_SECRET", " s3cret ")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, "from_file", cfg.MongoDatabase)
	assert.Equal(t, "todos_env", cfg.DBName)
	assert.Equal(t, "s3cret", cfg.AuthSecret)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	t.Setenv("DB_PORT", "five")
	_, err = Load("")
	assert.ErrorContains(t, err, "DB_PORT")

	t.Setenv("DB_PORT", "")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load("")
	assert.ErrorContains(t, err, "store driver")
	assert.ErrorContains(t, err, "log level")
}

func TestConnString(t *testing.T) {
	cfg := Defaults()
	cfg.DBUser, cfg.DBPassword, cfg.DBName = "app", "pw", "todos"

	assert.Equal(t,
		"host=localhost port=5432 user=app password=pw dbname=todos sslmode=disable",
		cfg.ConnString())
}
