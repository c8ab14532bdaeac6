package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default configuration file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// Empty databaseURL selects the in-memory store (dev mode).
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// redis (default) or amqp.
	NotifierDriver string `yaml:"notifierDriver"`
	AMQPURL        string `yaml:"amqpURL"`

	JWTSecret  string `yaml:"jwtSecret"`
	SessionTTL string `yaml:"sessionTTL"`

	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioPublicBaseURL string `yaml:"minioPublicBaseURL"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`

	AuthRateLimitPerMinute int  `yaml:"authRateLimitPerMinute"`
	TrustProxy             bool `yaml:"trustProxy"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("NOTIFIER_DRIVER"); v != "" {
		cfg.NotifierDriver = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_PUBLIC_BASE_URL"); v != "" {
		cfg.MinioPublicBaseURL = v
	}
	if v := os.Getenv("AUTH_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuthRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.NotifierDriver)) {
	case "", "memory", "redis":
	case "amqp":
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return errors.New("config: amqpURL is required for the amqp notifier")
		}
	default:
		return fmt.Errorf("config: unknown notifierDriver %q", cfg.NotifierDriver)
	}
	if cfg.AuthRateLimitPerMinute < 0 {
		return errors.New("config: authRateLimitPerMinute must be >= 0")
	}
	return nil
}

// ParseSessionTTL parses the optional session TTL duration string.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	return dur, nil
}
