package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
	assert.Equal(t, 3*time.Second, cfg.Admission.BoundaryTimeout)
	assert.Equal(t, "postgres", cfg.Admission.StoreDriver)
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Contains(t, cfg.Database.DSN, "dbname=attendly_db")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ADMISSION_STORE_DRIVER", "memory")
	t.Setenv("ADMISSION_BOUNDARY_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_LIMIT_ENABLED", "not-a-bool")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()

	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, 750*time.Millisecond, cfg.Admission.BoundaryTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Notifications.KafkaBrokers)
	assert.True(t, cfg.RateLimit.Enabled, "unparseable bool falls back to default")
	assert.Equal(t, 3, cfg.Redis.DB)
}
