package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

type Config struct {
	ServerPort   string
	StoreBackend string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	MongoURI      string
	MongoDatabase string

	JWTSecret      string
	TokenTTL       time.Duration
	ProviderSecret string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	WeatherURL    string
	WeatherAPIKey string
	WeatherRPM    int

	AuthRateRPM      int
	TypingIdle       time.Duration
	InviteCodeLength int
}

// Load reads configuration from the environment. A .env file in the working
// directory (or the file named by TANDEM_ENV_FILE) is loaded first; variables
// already present in the environment win.
func Load() *Config {
	envFile := getEnv("TANDEM_ENV_FILE", ".env")
	_ = godotenv.Load(envFile)

	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		StoreBackend: getEnv("STORE_BACKEND", BackendMemory),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tandem"),
		DBPassword: getEnv("DB_PASSWORD", "tandem_dev_password"),
		DBName:     getEnv("DB_NAME", "tandem"),

		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "tandem"),

		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:       getEnvAsDuration("TOKEN_TTL", 24*time.Hour),
		ProviderSecret: getEnv("PROVIDER_SECRET", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", "http://127.0.0.1:9000"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Bucket:    getEnv("S3_BUCKET", "tandem"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),

		WeatherURL:    getEnv("WEATHER_URL", "https://api.openweathermap.org/data/2.5/weather"),
		WeatherAPIKey: getEnv("WEATHER_API_KEY", ""),
		WeatherRPM:    getEnvAsInt("WEATHER_RPM", 60),

		AuthRateRPM:      getEnvAsInt("AUTH_RATE_RPM", 10),
		TypingIdle:       getEnvAsDuration("TYPING_IDLE", 2*time.Second),
		InviteCodeLength: getEnvAsInt("INVITE_CODE_LENGTH", 6),
	}
}

// Validate reports configuration that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres, BackendMongo:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.TypingIdle <= 0 {
		return errors.New("TYPING_IDLE must be positive")
	}
	if c.InviteCodeLength < 4 {
		return errors.New("INVITE_CODE_LENGTH must be at least 4")
	}
	return nil
}

// PostgresDSN builds the connection string for pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
