// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Environment string
	Database    DatabaseConfig
	Redis       RedisConfig
	Server      ServerConfig
	Logging     LoggingConfig
	CORS        CORSConfig
	JWT         JWTConfig
	Playback    PlaybackConfig
	MediaProbe  MediaProbeConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           int
	MaxRequestSize int64
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// JWTConfig holds JWT token configuration
type JWTConfig struct {
	Secret string
}

// PlaybackConfig holds the tunables of the learner playback core
type PlaybackConfig struct {
	CompletionThreshold   float64
	SeekThresholdSeconds  float64
	FirstSegmentAllowance float64
	FrameInterval         time.Duration
	AutosaveInterval      time.Duration
	SessionIdleTimeout    time.Duration
	BeaconTimeout         time.Duration
	TestingMode           bool
	FreeTextScorer        string
}

// MediaProbeConfig holds media availability probe settings
type MediaProbeConfig struct {
	Enabled    bool
	Timeout    time.Duration
	MaxRetries int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	godotenv.Load()

	cfg := &Config{}

	cfg.Environment = os.Getenv("APP_ENV")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Database configuration
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return nil, fmt.Errorf("DB_HOST is required")
	}
	cfg.Database.Host = dbHost

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return nil, fmt.Errorf("DB_PORT is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	cfg.Database.Port = dbPort

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	cfg.Database.User = dbUser

	dbPassword := os.Getenv("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	cfg.Database.Password = dbPassword

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return nil, fmt.Errorf("DB_NAME is required")
	}
	cfg.Database.DBName = dbName

	// Server configuration
	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080" // default port
	}
	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = serverPort

	maxRequestSizeStr := os.Getenv("MAX_REQUEST_SIZE")
	if maxRequestSizeStr == "" {
		maxRequestSizeStr = "1048576" // 1 MB
	}
	cfg.Server.MaxRequestSize, err = strconv.ParseInt(maxRequestSizeStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_REQUEST_SIZE: %w", err)
	}

	// Logging configuration
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info" // default level
	}
	cfg.Logging.Level = logLevel

	// CORS configuration
	corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if corsOrigins == "" {
		// Default to allow all origins if not specified (for development)
		cfg.CORS.AllowedOrigins = []string{"*"}
	} else {
		origins := strings.Split(corsOrigins, ",")
		cfg.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, origin)
			}
		}
		if len(cfg.CORS.AllowedOrigins) == 0 {
			cfg.CORS.AllowedOrigins = []string{"*"}
		}
	}

	// JWT configuration
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.JWT.Secret = jwtSecret

	// Redis configuration (events and certificate tasks)
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost" // default
	}
	cfg.Redis.Host = redisHost

	redisPortStr := os.Getenv("REDIS_PORT")
	if redisPortStr == "" {
		redisPortStr = "6379" // default
	}
	redisPort, err := strconv.Atoi(redisPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	cfg.Redis.Port = redisPort

	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD") // optional

	redisDBStr := os.Getenv("REDIS_DB")
	if redisDBStr == "" {
		redisDBStr = "0" // default
	}
	redisDB, err := strconv.Atoi(redisDBStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.Redis.DB = redisDB

	if err := loadPlayback(cfg); err != nil {
		return nil, err
	}
	if err := loadMediaProbe(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadPlayback(cfg *Config) error {
	var err error
	p := &cfg.Playback

	if p.CompletionThreshold, err = floatEnv("WATCH_COMPLETION_THRESHOLD", 90); err != nil {
		return err
	}
	if p.CompletionThreshold <= 0 || p.CompletionThreshold > 100 {
		return fmt.Errorf("WATCH_COMPLETION_THRESHOLD must be in (0, 100], got %v", p.CompletionThreshold)
	}
	if p.SeekThresholdSeconds, err = floatEnv("SEEK_THRESHOLD_SECONDS", 5); err != nil {
		return err
	}
	if p.FirstSegmentAllowance, err = floatEnv("FIRST_SEGMENT_ALLOWANCE_SECONDS", 20); err != nil {
		return err
	}
	if p.FrameInterval, err = durationEnv("SYNC_FRAME_INTERVAL", 50*time.Millisecond); err != nil {
		return err
	}
	if p.AutosaveInterval, err = durationEnv("AUTOSAVE_INTERVAL", 30*time.Second); err != nil {
		return err
	}
	if p.SessionIdleTimeout, err = durationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return err
	}
	if p.BeaconTimeout, err = durationEnv("BEACON_TIMEOUT", 5*time.Second); err != nil {
		return err
	}
	if p.TestingMode, err = boolEnv("TESTING_MODE", false); err != nil {
		return err
	}
	if p.TestingMode && cfg.IsProduction() {
		return fmt.Errorf("TESTING_MODE cannot be enabled in production")
	}

	p.FreeTextScorer = os.Getenv("FREE_TEXT_SCORER")
	if p.FreeTextScorer == "" {
		p.FreeTextScorer = "accept-all"
	}
	return nil
}

func loadMediaProbe(cfg *Config) error {
	var err error
	m := &cfg.MediaProbe

	if m.Enabled, err = boolEnv("MEDIA_PROBE_ENABLED", true); err != nil {
		return err
	}
	if m.Timeout, err = durationEnv("MEDIA_PROBE_TIMEOUT", 5*time.Second); err != nil {
		return err
	}

	retriesStr := os.Getenv("MEDIA_PROBE_MAX_RETRIES")
	if retriesStr == "" {
		retriesStr = "2"
	}
	if m.MaxRetries, err = strconv.Atoi(retriesStr); err != nil {
		return fmt.Errorf("invalid MEDIA_PROBE_MAX_RETRIES: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DSN returns the database connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&multiStatements=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
	)
}

// RedisAddr returns the host:port address of Redis
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func floatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
