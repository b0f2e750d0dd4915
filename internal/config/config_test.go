package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "KAFKA_BROKERS", "OUTBOX_BATCH_SIZE", "CONSUMER_TOPICS", "REFRESH_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, DriverPostgres, cfg.StoreDriver)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, []string{"result_events"}, cfg.ConsumerTopics)
	require.Equal(t, 30*time.Second, cfg.RefreshTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("DLQ_BASE_DELAY", "5s")

	cfg := Load()
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, 5*time.Second, cfg.DLQBaseDelay)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := Config{StoreDriver: "mysql"}
	require.Error(t, cfg.Validate())
	require.NoError(t, Config{StoreDriver: DriverMemory}.Validate())
}

func TestLoadFile(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	os.Unsetenv("STORE_DRIVER")
	path := filepath.Join(t.TempDir(), "credentials.env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_DRIVER=memory\nJWT_ISSUER=file-issuer\n"), 0o600))
	t.Setenv("JWT_ISSUER", "env-issuer")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, "env-issuer", cfg.JWTIssuer)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
