package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/mes-backend/internal/data/db"
	"github.com/yungbote/mes-backend/internal/jobs/sweeper"
	"github.com/yungbote/mes-backend/internal/observability"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
	"github.com/yungbote/mes-backend/internal/services"
)

// ConfigFileEnv names an optional YAML/TOML/JSON file read before the env.
const ConfigFileEnv = "MES_CONFIG_FILE"

type Config struct {
	LogMode     string
	HTTPAddr    string
	ServiceName string
	CORSOrigins []string

	DB db.Config

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	MetricsEnabled bool
	Otel           observability.OtelConfig

	Trace services.TraceServiceConfig

	SweepEnabled bool
	Sweep        sweeper.Config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("SERVICE_NAME", "mes-backend")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")

	v.SetDefault("DB_DRIVER", db.DriverPostgres)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_NAME", "mes")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 20)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 10)
	v.SetDefault("POSTGRES_CONN_MAX_LIFETIME_SECONDS", 1800)
	v.SetDefault("SQLITE_PATH", "mes.db")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CHANNEL", "mes.trace_ledger")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_SERVICE_VERSION", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_HEADERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	v.SetDefault("TRACE_CREATE_MAX_ATTEMPTS", 5)
	v.SetDefault("TRACE_CREATE_BASE_BACKOFF_MS", 20)
	v.SetDefault("TRACE_CREATE_MAX_BACKOFF_MS", 500)

	v.SetDefault("TRACE_UNBOUND_EXPIRY_MINUTES", 24*60)
	v.SetDefault("TRACE_SWEEP_ENABLED", false)
	v.SetDefault("TRACE_SWEEP_INTERVAL_SECONDS", 300)
	v.SetDefault("TRACE_SWEEP_BATCH", 500)
}

// LoadConfig reads defaults, then the optional config file, then the env.
func LoadConfig(log *logger.Logger) (Config, error) {
	return loadConfig(viper.New(), log)
}

func loadConfig(v *viper.Viper, log *logger.Logger) (Config, error) {
	if log == nil {
		log = logger.NewNop()
	}
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	}

	cfg := Config{
		LogMode:     v.GetString("LOG_MODE"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		ServiceName: v.GetString("SERVICE_NAME"),
		CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),

		DB: db.Config{
			Driver:           v.GetString("DB_DRIVER"),
			PostgresHost:     v.GetString("POSTGRES_HOST"),
			PostgresPort:     v.GetString("POSTGRES_PORT"),
			PostgresUser:     v.GetString("POSTGRES_USER"),
			PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
			PostgresName:     v.GetString("POSTGRES_NAME"),
			PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),
			SQLitePath:       v.GetString("SQLITE_PATH"),
			MaxOpenConns:     v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
			MaxIdleConns:     v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
			ConnMaxLifetime:  time.Duration(v.GetInt("POSTGRES_CONN_MAX_LIFETIME_SECONDS")) * time.Second,
		},

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisChannel:  v.GetString("REDIS_CHANNEL"),

		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: v.GetString("SERVICE_NAME"),
			Environment: v.GetString("OTEL_ENVIRONMENT"),
			Version:     v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:    strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			Headers:     observability.ParseHeaders(v.GetString("OTEL_EXPORTER_OTLP_HEADERS")),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			SampleRatio: v.GetFloat64("OTEL_SAMPLE_RATIO"),
		},

		Trace: services.TraceServiceConfig{
			CreateMaxAttempts: v.GetInt("TRACE_CREATE_MAX_ATTEMPTS"),
			CreateBaseBackoff: time.Duration(v.GetInt("TRACE_CREATE_BASE_BACKOFF_MS")) * time.Millisecond,
			CreateMaxBackoff:  time.Duration(v.GetInt("TRACE_CREATE_MAX_BACKOFF_MS")) * time.Millisecond,
		},

		SweepEnabled: v.GetBool("TRACE_SWEEP_ENABLED"),
		Sweep: sweeper.Config{
			Interval:      time.Duration(v.GetInt("TRACE_SWEEP_INTERVAL_SECONDS")) * time.Second,
			ExpiryMinutes: v.GetInt("TRACE_UNBOUND_EXPIRY_MINUTES"),
			Batch:         v.GetInt("TRACE_SWEEP_BATCH"),
		},
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case db.DriverPostgres, db.DriverSQLite, "sqlite3":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.Sweep.ExpiryMinutes <= 0 {
		return fmt.Errorf("TRACE_UNBOUND_EXPIRY_MINUTES must be positive")
	}
	if c.Sweep.Batch <= 0 {
		return fmt.Errorf("TRACE_SWEEP_BATCH must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
