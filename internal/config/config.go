package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	DataStoreMemory    DataStore = "memory"
	DataStorePostgres  DataStore = "postgres"
	DataStoreFirestore DataStore = "firestore"
)

// CacheBackend enumerates supported cache backends.
type CacheBackend string

const (
	CacheRedis  CacheBackend = "redis"
	CacheMemory CacheBackend = "memory"
)

// Config contains runtime configuration required by the service.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	DataStore DataStore       `yaml:"datastore" validate:"oneof=memory postgres firestore"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Cache     CacheConfig     `yaml:"cache"`
	IdP       IdPConfig       `yaml:"idp"`
	Feed      FeedConfig      `yaml:"feed"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Policy    PolicyConfig    `yaml:"policy"`
}

type AppConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Environment string `yaml:"environment" validate:"required"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
	// AutoMigrate applies the embedded schema at startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

type FirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

// CacheConfig holds the cache backend and per-key-family TTLs.
type CacheConfig struct {
	Backend     CacheBackend  `yaml:"backend" validate:"oneof=redis memory"`
	RedisURL    string        `yaml:"redis_url"`
	KeyPrefix   string        `yaml:"key_prefix"`
	UserTTL     time.Duration `yaml:"user_ttl"`
	ScanTTL     time.Duration `yaml:"scan_ttl"`
	UpstreamTTL time.Duration `yaml:"upstream_ttl"`
	FeedTTL     time.Duration `yaml:"feed_ttl"`
}

// IdPConfig points at the Okta-style identity provider.
type IdPConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	APIToken     string        `yaml:"api_token" validate:"required"`
	AuthScheme   string        `yaml:"auth_scheme" validate:"required"`
	AdminGroupID string        `yaml:"admin_group_id" validate:"required"`
	PageLimit    int           `yaml:"page_limit" validate:"min=1,max=200"`
	Timeout      time.Duration `yaml:"timeout"`
}

type FeedConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxBytes   int64         `yaml:"max_bytes" validate:"min=1"`
	GCSEnabled bool          `yaml:"gcs_enabled"`
}

// KafkaConfig enables change-event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type PolicyConfig struct {
	StalePasswordDays int `yaml:"stale_password_days" validate:"min=1"`
}

// Defaults returns a configuration suitable for local development.
func Defaults() Config {
	return Config{
		App: AppConfig{Name: "identity-sync-service", Environment: "dev"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log:       LogConfig{Level: "info"},
		DataStore: DataStoreMemory,
		Firestore: FirestoreConfig{Collection: "identity_users"},
		Cache: CacheConfig{
			Backend:     CacheMemory,
			KeyPrefix:   "identity-sync:",
			UserTTL:     60 * time.Second,
			ScanTTL:     30 * time.Second,
			UpstreamTTL: 60 * time.Second,
			FeedTTL:     5 * time.Minute,
		},
		IdP: IdPConfig{
			AuthScheme: "SSWS",
			PageLimit:  200,
			Timeout:    30 * time.Second,
		},
		Feed: FeedConfig{
			Timeout:  30 * time.Second,
			MaxBytes: 32 << 20,
		},
		Kafka:  KafkaConfig{Topic: "identity.user-changes"},
		Policy: PolicyConfig{StalePasswordDays: 7},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if any),
// then environment overrides. The result is validated before it is returned.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.IdP.BaseURL = normalizeBaseURL(cfg.IdP.BaseURL)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags, then rules spanning several fields.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.DataStore {
	case DataStorePostgres:
		if strings.TrimSpace(c.Postgres.URL) == "" {
			return errors.New("DB_URL required when datastore=postgres")
		}
	case DataStoreFirestore:
		if c.Firestore.ProjectID == "" {
			return errors.New("gcp project id required when datastore=firestore")
		}
		if c.Firestore.Collection == "" {
			return errors.New("firestore collection required when datastore=firestore")
		}
	}

	if c.Cache.Backend == CacheRedis && c.Cache.RedisURL == "" {
		return errors.New("REDIS_URL required when cache backend=redis")
	}
	if c.Cache.UserTTL <= 0 || c.Cache.ScanTTL <= 0 || c.Cache.UpstreamTTL <= 0 || c.Cache.FeedTTL <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC required when KAFKA_BROKERS is set")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func applyEnv(cfg *Config) error {
	setString("APP_ENV", &cfg.App.Environment)
	setString("LOG_LEVEL", &cfg.Log.Level)
	if err := setInt("PORT", &cfg.Server.Port); err != nil {
		return err
	}

	if v := get("DATASTORE"); v != "" {
		cfg.DataStore = DataStore(strings.ToLower(v))
	}
	setString("DB_URL", &cfg.Postgres.URL)
	if err := setBool("DB_AUTO_MIGRATE", &cfg.Postgres.AutoMigrate); err != nil {
		return err
	}
	setString("GCP_PROJECT_ID", &cfg.Firestore.ProjectID)
	setString("FIRESTORE_COLLECTION", &cfg.Firestore.Collection)

	// REDIS_URL alone switches the cache to redis.
	if v := get("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
		cfg.Cache.Backend = CacheRedis
	}
	if v := get("CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = CacheBackend(strings.ToLower(v))
	}
	if err := setDuration("CACHE_USER_TTL", &cfg.Cache.UserTTL); err != nil {
		return err
	}
	if err := setDuration("CACHE_SCAN_TTL", &cfg.Cache.ScanTTL); err != nil {
		return err
	}

	setString("OKTA_DOMAIN", &cfg.IdP.BaseURL)
	setString("OKTA_API_TOKEN", &cfg.IdP.APIToken)
	setString("OKTA_ADMIN_GROUP_ID", &cfg.IdP.AdminGroupID)
	setString("OKTA_AUTH_SCHEME", &cfg.IdP.AuthScheme)

	if err := setBool("FEED_GCS_ENABLED", &cfg.Feed.GCSEnabled); err != nil {
		return err
	}

	if v := get("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	setString("KAFKA_TOPIC", &cfg.Kafka.Topic)

	return setInt("STALE_PASSWORD_DAYS", &cfg.Policy.StalePasswordDays)
}

func get(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

func setString(name string, dst *string) {
	if v := get(name); v != "" {
		*dst = v
	}
}

func setInt(name string, dst *int) error {
	v := get(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", name, err)
	}
	*dst = n
	return nil
}

func setBool(name string, dst *bool) error {
	v := get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s must be a boolean: %w", name, err)
	}
	*dst = b
	return nil
}

func setDuration(name string, dst *time.Duration) error {
	v := get(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s must be a duration: %w", name, err)
	}
	*dst = d
	return nil
}

// splitList parses "a,b,c" and drops empty items.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBaseURL accepts a bare Okta domain ("dev-1.okta.com") as well as a full URL.
func normalizeBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}
