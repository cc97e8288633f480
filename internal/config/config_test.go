package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredIdPEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OKTA_DOMAIN", "dev-1.okta.com")
	t.Setenv("OKTA_API_TOKEN", "token")
	t.Setenv("OKTA_ADMIN_GROUP_ID", "00g-admins")
}

func TestLoad_DefaultsWithEnv(t *testing.T) {
	setRequiredIdPEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://dev-1.okta.com", cfg.IdP.BaseURL)
	assert.Equal(t, "SSWS", cfg.IdP.AuthScheme)
	assert.Equal(t, DataStoreMemory, cfg.DataStore)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 7, cfg.Policy.StalePasswordDays)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_YAMLThenEnvOverrides(t *testing.T) {
	setRequiredIdPEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
app:
  name: identity-sync-service
  environment: staging
log:
  level: debug
datastore: postgres
postgres:
  url: postgres://u:p@localhost:5432/identity
  auto_migrate: true
cache:
  user_ttl: 2m
policy:
  stale_password_days: 14
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DataStorePostgres, cfg.DataStore)
	assert.True(t, cfg.Postgres.AutoMigrate)
	assert.Equal(t, 2*time.Minute, cfg.Cache.UserTTL)
	assert.Equal(t, 30*time.Second, cfg.Cache.ScanTTL)
	assert.Equal(t, 14, cfg.Policy.StalePasswordDays)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingIdPSettings(t *testing.T) {
	t.Setenv("OKTA_DOMAIN", "")
	t.Setenv("OKTA_API_TOKEN", "")
	t.Setenv("OKTA_ADMIN_GROUP_ID", "")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_BadInteger(t *testing.T) {
	setRequiredIdPEnv(t)
	t.Setenv("STALE_PASSWORD_DAYS", "seven")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STALE_PASSWORD_DAYS")
}

func TestValidate_CrossFieldRules(t *testing.T) {
	base := Defaults()
	base.IdP.BaseURL = "https://dev-1.okta.com"
	base.IdP.APIToken = "token"
	base.IdP.AdminGroupID = "00g-admins"
	require.NoError(t, base.Validate())

	pg := base
	pg.DataStore = DataStorePostgres
	assert.ErrorContains(t, pg.Validate(), "DB_URL")

	fs := base
	fs.DataStore = DataStoreFirestore
	assert.ErrorContains(t, fs.Validate(), "project id")

	rc := base
	rc.Cache.Backend = CacheRedis
	assert.ErrorContains(t, rc.Validate(), "REDIS_URL")

	kf := base
	kf.Kafka.Brokers = []string{"k1:9092"}
	kf.Kafka.Topic = ""
	assert.ErrorContains(t, kf.Validate(), "KAFKA_TOPIC")

	bad := base
	bad.DataStore = "dynamo"
	assert.Error(t, bad.Validate())
}
