package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the desk.
type Config struct {
	App      AppConfig
	Remote   RemoteConfig
	Push     PushConfig
	Sync     SyncConfig
	Desk     DeskConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
}

// AppConfig controls the desk's own HTTP surface.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// RemoteConfig points at the ticket service REST API.
type RemoteConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
	RatePerSecond         float64
	RateBurst             int
	PageSize              int
}

// PushConfig controls the push channel connection.
type PushConfig struct {
	Enabled             bool
	URL                 string
	Channel             string
	ReconnectBaseMillis int
	ReconnectMaxMillis  int
	MaxAttempts         int
	Jitter              float64
	PingIntervalSeconds int
}

// SyncConfig tunes snapshot reloads.
type SyncConfig struct {
	Taxonomy            string
	DebounceMillis      int
	PollIntervalSeconds int
}

// DeskConfig holds identity and projection settings.
type DeskConfig struct {
	PrivilegedIdentity string
	DefaultIdentity    string
	DirectoryFile      string
	MatchPolicy        string
	PreferenceKey      string
	PreferenceBackend  string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Preference backends.
const (
	PreferenceMemory   = "memory"
	PreferenceRedis    = "redis"
	PreferencePostgres = "postgres"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8090"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Remote: RemoteConfig{
			BaseURL:               getEnv("TICKET_API_URL", "http://localhost:8000/api"),
			RequestTimeoutSeconds: getEnvAsInt("TICKET_API_TIMEOUT_SECONDS", 15),
			RatePerSecond:         getEnvAsFloat("TICKET_API_RATE_PER_SECOND", 20),
			RateBurst:             getEnvAsInt("TICKET_API_RATE_BURST", 10),
			PageSize:              getEnvAsInt("TICKET_API_PAGE_SIZE", 100),
		},
		Push: PushConfig{
			Enabled:             getEnvAsBool("PUSH_ENABLED", true),
			URL:                 getEnv("TICKET_WS_URL", "ws://localhost:8000/ws"),
			Channel:             getEnv("PUSH_CHANNEL", "all"),
			ReconnectBaseMillis: getEnvAsInt("PUSH_RECONNECT_BASE_MS", 3000),
			ReconnectMaxMillis:  getEnvAsInt("PUSH_RECONNECT_MAX_MS", 60000),
			MaxAttempts:         getEnvAsInt("PUSH_RECONNECT_MAX_ATTEMPTS", 20),
			Jitter:              getEnvAsFloat("PUSH_RECONNECT_JITTER", 0.2),
			PingIntervalSeconds: getEnvAsInt("PUSH_PING_INTERVAL_SECONDS", 30),
		},
		Sync: SyncConfig{
			Taxonomy:            getEnv("SYNC_STATUS_TAXONOMY", "queue"),
			DebounceMillis:      getEnvAsInt("SYNC_RELOAD_DEBOUNCE_MS", 250),
			PollIntervalSeconds: getEnvAsInt("SYNC_POLL_INTERVAL_SECONDS", 60),
		},
		Desk: DeskConfig{
			PrivilegedIdentity: getEnv("DESK_PRIVILEGED_IDENTITY", "user-0"),
			DefaultIdentity:    getEnv("DESK_DEFAULT_IDENTITY", "user-0"),
			DirectoryFile:      os.Getenv("DESK_DIRECTORY_FILE"),
			MatchPolicy:        getEnv("DESK_MATCH_POLICY", "id"),
			PreferenceKey:      getEnv("DESK_PREFERENCE_KEY", "ticket-desk:current-user"),
			PreferenceBackend:  getEnv("DESK_PREFERENCE_BACKEND", PreferenceMemory),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	switch cfg.Desk.PreferenceBackend {
	case PreferenceMemory, PreferenceRedis, PreferencePostgres:
	default:
		return nil, fmt.Errorf("invalid DESK_PREFERENCE_BACKEND %q", cfg.Desk.PreferenceBackend)
	}
	if cfg.Desk.PreferenceBackend == PreferencePostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DESK_PREFERENCE_BACKEND=postgres requires POSTGRES_DSN")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RequestTimeout bounds one remote call.
func (r RemoteConfig) RequestTimeout() time.Duration {
	return seconds(r.RequestTimeoutSeconds)
}

// ReconnectBase is the delay before the first reconnect attempt.
func (p PushConfig) ReconnectBase() time.Duration {
	return time.Duration(p.ReconnectBaseMillis) * time.Millisecond
}

// ReconnectMax caps the backoff delay.
func (p PushConfig) ReconnectMax() time.Duration {
	return time.Duration(p.ReconnectMaxMillis) * time.Millisecond
}

// PingInterval is the keepalive period.
func (p PushConfig) PingInterval() time.Duration {
	return seconds(p.PingIntervalSeconds)
}

// Debounce is the reload coalescing window.
func (s SyncConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMillis) * time.Millisecond
}

// PollInterval is the periodic snapshot period; zero disables polling.
func (s SyncConfig) PollInterval() time.Duration {
	return seconds(s.PollIntervalSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
