package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devJWTSecret = "dev-only-secret"

// Config holds application configuration
type Config struct {
	Port        string   `env:"PORT" envDefault:"3000"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	DB    DBConfig
	JWT   JWTConfig
	Lock  LockConfig
	Redis RedisConfig

	WebhookURL     string        `env:"WEBHOOK_URL"`
	WebhookTimeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	SendGridAPIKey string        `env:"SENDGRID_API_KEY"`
	EmailSender    string        `env:"EMAIL_SENDER"`

	AuditSchedule        string `env:"AUDIT_SCHEDULE" envDefault:"@every 5m"`
	TokenCleanupSchedule string `env:"TOKEN_CLEANUP_SCHEDULE" envDefault:"@every 1h"`

	MaxFailedLogins    int           `env:"MAX_FAILED_LOGINS" envDefault:"3"`
	LoginBlockDuration time.Duration `env:"LOGIN_BLOCK_DURATION" envDefault:"1m"`
}

// DBConfig selects and tunes the database connection.
type DBConfig struct {
	Driver         string        `env:"DB_DRIVER" envDefault:"postgres"`
	Host           string        `env:"DB_HOST" envDefault:"localhost"`
	Port           string        `env:"DB_PORT" envDefault:"5432"`
	User           string        `env:"DB_USER" envDefault:"postgres"`
	Password       string        `env:"DB_PASSWORD" envDefault:"postgres"`
	Name           string        `env:"DB_NAME" envDefault:"course_enrollment"`
	SSLMode        string        `env:"DB_SSLMODE" envDefault:"disable"`
	Path           string        `env:"DB_PATH" envDefault:"course_enrollment.db"`
	Logging        bool          `env:"DB_LOGGING" envDefault:"false"`
	MaxConnections int           `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	IdleTimeout    time.Duration `env:"DB_IDLE_TIMEOUT" envDefault:"30s"`
}

// DSN builds the driver specific connection string.
func (c DBConfig) DSN() string {
	switch strings.ToLower(c.Driver) {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Name)
	case "sqlite":
		return c.Path
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
	}
}

// JWTConfig holds the token signing settings.
type JWTConfig struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
}

// LockConfig holds the enrollment admission lock settings.
type LockConfig struct {
	Driver     string        `env:"LOCK_DRIVER" envDefault:"memory"`
	Prefix     string        `env:"LOCK_PREFIX" envDefault:"lock:"`
	TTL        time.Duration `env:"ENROLLMENT_LOCK_TTL" envDefault:"5s"`
	RetryCount int           `env:"ENROLLMENT_LOCK_RETRY_COUNT" envDefault:"50"`
	RetryDelay time.Duration `env:"ENROLLMENT_LOCK_RETRY_DELAY" envDefault:"100ms"`
}

// RedisConfig points at the redis instance backing the distributed lock.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	cfg, err := Parse()
	if err != nil {
		log.Fatalf("Failed to parse configuration: %v", err)
	}
	AppConfig = cfg
}

// Parse reads the process environment into a Config and applies the
// development fallbacks.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.JWT.AccessSecret == "" {
		log.Println("Warning: JWT_ACCESS_SECRET is not set. Using a development secret.")
		cfg.JWT.AccessSecret = devJWTSecret
	}
	if cfg.JWT.RefreshSecret == "" {
		log.Println("Warning: JWT_REFRESH_SECRET is not set. Using a development secret.")
		cfg.JWT.RefreshSecret = devJWTSecret + "-refresh"
	}
	if cfg.Lock.RetryCount < 0 {
		return nil, fmt.Errorf("ENROLLMENT_LOCK_RETRY_COUNT must not be negative")
	}
	if cfg.Lock.TTL <= 0 {
		return nil, fmt.Errorf("ENROLLMENT_LOCK_TTL must be positive")
	}
	return cfg, nil
}
