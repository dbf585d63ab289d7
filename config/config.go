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

// PlaceholderJWTSecret is the well-known sample secret shipped in example
// env files. It is never accepted in production.
const PlaceholderJWTSecret = "darigo-super-secret-key-change-this-in-production"

const minProductionSecretLen = 32

const (
	EnvDev        = "dev"
	EnvProduction = "production"
)

type Config struct {
	Env            string
	ServerPort     int
	RequestTimeout time.Duration
	BcryptCost     int
	JWT            JWTConfig
	DBDriver       string
	Database       DatabaseConfig
	Mongo          MongoConfig
	Storage        StorageConfig
	MQ             MQConfig
	Redis          RedisConfig
	RateLimit      RateLimitConfig
	Log            LogConfig
	MetricsEnabled bool
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

type StorageConfig struct {
	Backend       string
	PublicBaseURL string
	MaxUploadSize int64
	Minio         MinioConfig
	GCS           GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
	NATS     NATSConfig
}

type RabbitMQConfig struct {
	URL             string
	Exchange        string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type NATSConfig struct {
	URL            string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Window       time.Duration
	APIRequests  int
	AuthFailures int
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() Config {
	env := getEnv("ENV", EnvDev)
	if env == EnvDev {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "darigo"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "darigo_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	apiRequests := 1000
	if env == EnvProduction {
		apiRequests = 100
	}

	return Config{
		Env:            env,
		ServerPort:     getEnvInt("SERVER_PORT", 3001),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		BcryptCost:     getEnvInt("BCRYPT_COST", 12),
		JWT: JWTConfig{
			Secret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
			TTL:    getEnvDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		},
		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		Database: dbConfig,
		Mongo: MongoConfig{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "darigo-real-estate"),
			ConnectTimeout: getEnvDuration("MONGODB_CONNECT_TIMEOUT", 30*time.Second),
			MaxPoolSize:    uint64(getEnvInt("MONGODB_MAX_POOL_SIZE", 10)),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("STORAGE_BACKEND", "")),
			PublicBaseURL: strings.TrimRight(getEnv("MEDIA_PUBLIC_BASE_URL", "/uploads"), "/"),
			MaxUploadSize: int64(getEnvInt("MEDIA_MAX_UPLOAD_MB", 10)) << 20,
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "darigo-media"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		MQ: MQConfig{
			Backend: strings.ToLower(getEnv("MQ_BACKEND", "")),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				Exchange:        getEnv("RABBITMQ_EXCHANGE", "darigo.events"),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
			NATS: NATSConfig{
				URL:            getEnv("NATS_URL", ""),
				ConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 5*time.Second),
			},
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Window:       getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
			APIRequests:  getEnvInt("RATE_LIMIT_API_MAX", apiRequests),
			AuthFailures: getEnvInt("RATE_LIMIT_AUTH_MAX", 5),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

// IsProduction reports whether the deployment runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate rejects configurations the server must not start with.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if c.JWT.Secret == PlaceholderJWTSecret {
			return errors.New("JWT_SECRET uses the placeholder value; refusing to start in production")
		}
		if len(c.JWT.Secret) < minProductionSecretLen {
			return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionSecretLen)
		}
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	switch c.DBDriver {
	case "postgres", "mongo", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15m") and the "<n>d" day form used by
// JWT_EXPIRES_IN in older env files.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueStr = strings.TrimSpace(valueStr)
	if days, ok := strings.CutSuffix(valueStr, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return defaultValue
		}
		return time.Duration(n) * 24 * time.Hour
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
