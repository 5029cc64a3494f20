package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret is used outside production when JWT_SECRET is unset.
const DevJWTSecret = "sentinel-dev-secret-change-me"

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set in production")

type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
	MQTT        MQTTConfig
	Aggregation AggregationConfig
	SMTP        SMTPConfig
	Log         LogConfig
}

type AppConfig struct {
	Env  string
	Name string
}

func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type HTTPConfig struct {
	Port              int
	AllowedOrigins    []string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxStreamClients  int
	StreamIdleTimeout time.Duration
}

func (h HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	TopicAlerts       string
	GroupNotification string
	NumPartitions     int
}

type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	BcryptCost   int
	CookieName   string
	CookieSecure bool
}

// UsingDevSecret reports whether the built-in development secret is active.
func (a AuthConfig) UsingDevSecret() bool {
	return a.JWTSecret == DevJWTSecret
}

type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	QoS         int
	TopicPrefix string
	Workers     int
	QueueSize   int
}

type AggregationConfig struct {
	HourlyDelay time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "development")

	config := &Config{
		App: AppConfig{
			Env:  env,
			Name: getEnv("APP_NAME", "sentinel"),
		},
		HTTP: HTTPConfig{
			Port:              getEnvAsInt("HTTP_PORT", 5000),
			AllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:   getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxStreamClients:  getEnvAsInt("WS_MAX_CLIENTS", 1000),
			StreamIdleTimeout: getEnvAsDuration("WS_IDLE_TIMEOUT", 2*time.Minute),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnvAsInt("DB_PORT", 5432),
			User:          getEnv("DB_USER", "sentinel_user"),
			Password:      getEnv("DB_PASSWORD", "sentinel_pass"),
			DBName:        getEnv("DB_NAME", "sentinel_db"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", 10*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:           getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicAlerts:       getEnv("KAFKA_TOPIC_ALERTS", "sentinel.alerts"),
			GroupNotification: getEnv("KAFKA_GROUP_NOTIFICATION", "sentinel-notification"),
			NumPartitions:     getEnvAsInt("KAFKA_NUM_PARTITIONS", 6),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			TokenTTL:     getEnvAsDuration("JWT_TTL", 7*24*time.Hour),
			BcryptCost:   getEnvAsInt("BCRYPT_COST", 10),
			CookieName:   getEnv("AUTH_COOKIE_NAME", "token"),
			CookieSecure: getEnvAsBool("AUTH_COOKIE_SECURE", env == "production"),
		},
		MQTT: MQTTConfig{
			Enabled:     getEnvAsBool("MQTT_ENABLED", false),
			Broker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
			ClientID:    getEnv("MQTT_CLIENT_ID", "sentinel-server"),
			Username:    getEnv("MQTT_USERNAME", ""),
			Password:    getEnv("MQTT_PASSWORD", ""),
			QoS:         getEnvAsInt("MQTT_QOS", 1),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "sentinel"),
			Workers:     getEnvAsInt("MQTT_WORKERS", 8),
			QueueSize:   getEnvAsInt("MQTT_QUEUE_SIZE", 1000),
		},
		Aggregation: AggregationConfig{
			HourlyDelay: getEnvAsDuration("AGGREGATION_HOURLY_DELAY", 5*time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "sentinel@example.com"),
			To:       getEnv("SMTP_TO", "mission-control@example.com"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if config.Auth.JWTSecret == "" {
		if config.App.IsProduction() {
			return nil, ErrMissingJWTSecret
		}
		config.Auth.JWTSecret = DevJWTSecret
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
