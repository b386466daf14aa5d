package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/yungbote/roomviz-backend/internal/db"
	"github.com/yungbote/roomviz-backend/internal/modules/design/render"
	"github.com/yungbote/roomviz-backend/internal/observability"
	"github.com/yungbote/roomviz-backend/internal/services"
)

// Config is read from an optional YAML file with environment overrides.
// Secrets only come from the environment.
type Config struct {
	Addr        string   `yaml:"addr" env:"ADDR" env-default:":8080"`
	LogMode     string   `yaml:"log_mode" env:"LOG_MODE" env-default:"development"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`
	CatalogPath string   `yaml:"catalog_path" env:"CATALOG_PATH"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Render    RenderConfig    `yaml:"render"`
	Estimate  EstimateConfig  `yaml:"estimate"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type TelemetryConfig struct {
	TracingEnabled bool    `yaml:"tracing_enabled" env:"OTEL_ENABLED" env-default:"false"`
	ServiceName    string  `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"roomviz"`
	Environment    string  `yaml:"environment" env:"ENVIRONMENT" env-default:"local"`
	Endpoint       string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio    float64 `yaml:"sample_ratio" env:"OTEL_SAMPLE_RATIO" env-default:"1"`
	MetricsAddr    string  `yaml:"metrics_addr" env:"METRICS_ADDR" env-default:":9090"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"-" env:"JWT_SECRET_KEY"`
	Issuer    string `yaml:"issuer" env:"JWT_ISSUER"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	DSN      string `yaml:"-" env:"DATABASE_URL"`
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"roomviz"`
	Password string `yaml:"-" env:"POSTGRES_PASSWORD"`
	Name     string `yaml:"name" env:"POSTGRES_NAME" env-default:"roomviz"`
	SSLMode  string `yaml:"ssl_mode" env:"POSTGRES_SSLMODE" env-default:"disable"`
	MaxOpen  int    `yaml:"max_open" env:"POSTGRES_MAX_OPEN" env-default:"20"`
	MaxIdle  int    `yaml:"max_idle" env:"POSTGRES_MAX_IDLE" env-default:"5"`
}

type RenderConfig struct {
	Model          string        `yaml:"model" env:"OPENAI_IMAGE_MODEL" env-default:"gpt-image-1"`
	Timeout        time.Duration `yaml:"timeout" env:"RENDER_TIMEOUT" env-default:"120s"`
	PersistTimeout time.Duration `yaml:"persist_timeout" env:"RENDER_PERSIST_TIMEOUT" env-default:"30s"`
	Temperature    float64       `yaml:"temperature" env:"RENDER_TEMPERATURE" env-default:"0.3"`
	MinArea        float64       `yaml:"min_area" env:"POLYGON_MIN_AREA" env-default:"1000"`
	LockTTL        time.Duration `yaml:"lock_ttl" env:"RENDER_LOCK_TTL" env-default:"5m"`
	PerMinute      float64       `yaml:"per_minute" env:"RENDER_RATE_PER_MINUTE" env-default:"6"`
	Burst          int           `yaml:"burst" env:"RENDER_RATE_BURST" env-default:"2"`
}

type EstimateConfig struct {
	ReferenceAreaM2 float64 `yaml:"reference_area_m2" env:"ESTIMATE_REFERENCE_AREA_M2" env-default:"25"`
	FloorAreaM2     float64 `yaml:"floor_area_m2" env:"ESTIMATE_FLOOR_AREA_M2" env-default:"20"`
}

// LoadConfig reads path when it is non-empty, otherwise the environment alone.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	var err error
	if strings.TrimSpace(path) != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Render.Temperature < 0 || c.Render.Temperature > 1 {
		return fmt.Errorf("RENDER_TEMPERATURE must be within [0,1], got %v", c.Render.Temperature)
	}
	return nil
}

func (c Config) dbConfig() db.Config {
	return db.Config{
		Driver:   c.Database.Driver,
		DSN:      c.Database.DSN,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Name:     c.Database.Name,
		SSLMode:  c.Database.SSLMode,
		MaxOpen:  c.Database.MaxOpen,
		MaxIdle:  c.Database.MaxIdle,
	}
}

func (c Config) renderConfig() render.Config {
	return render.Config{
		Timeout:        c.Render.Timeout,
		PersistTimeout: c.Render.PersistTimeout,
		MinArea:        c.Render.MinArea,
		Temperature:    c.Render.Temperature,
	}
}

func (c Config) otelConfig(version string) observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.Telemetry.TracingEnabled,
		ServiceName: c.Telemetry.ServiceName,
		Environment: c.Telemetry.Environment,
		Version:     version,
		Endpoint:    c.Telemetry.Endpoint,
		SampleRatio: c.Telemetry.SampleRatio,
	}
}

func (c Config) bookkeepingConfig() services.BookkeepingConfig {
	return services.BookkeepingConfig{
		ReferenceAreaM2: c.Estimate.ReferenceAreaM2,
		FloorAreaM2:     c.Estimate.FloorAreaM2,
	}
}
