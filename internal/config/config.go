package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Selfie      SelfieConfig      `yaml:"selfie"`
	Presign     PresignConfig     `yaml:"presign"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type RecognitionConfig struct {
	Endpoint            string   `yaml:"endpoint"`
	APIKey              string   `yaml:"api_key"`
	MaxFaces            *int     `yaml:"max_faces"`
	SimilarityThreshold *float64 `yaml:"similarity_threshold"`
	WorkerCount         int      `yaml:"worker_count"`
	RateLimitPerSecond  float64  `yaml:"rate_limit_per_second"`
	RateLimitBurst      int      `yaml:"rate_limit_burst"`
}

type SelfieConfig struct {
	CollectionID        string  `yaml:"collection_id"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxUploads          int     `yaml:"max_uploads"`
	MaxBytes            int64   `yaml:"max_bytes"`
}

type PresignConfig struct {
	GetExpiration time.Duration `yaml:"get_expiration"`
	PutExpiration time.Duration `yaml:"put_expiration"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Recognition.WorkerCount == 0 {
		cfg.Recognition.WorkerCount = 5
	}
	if cfg.Recognition.RateLimitPerSecond == 0 {
		cfg.Recognition.RateLimitPerSecond = 10
	}
	if cfg.Recognition.RateLimitBurst == 0 {
		cfg.Recognition.RateLimitBurst = 5
	}
	if cfg.Selfie.CollectionID == "" {
		cfg.Selfie.CollectionID = "selfies"
	}
	if cfg.Selfie.SimilarityThreshold == 0 {
		cfg.Selfie.SimilarityThreshold = 90.0
	}
	if cfg.Selfie.MaxUploads == 0 {
		cfg.Selfie.MaxUploads = 5
	}
	if cfg.Selfie.MaxBytes == 0 {
		cfg.Selfie.MaxBytes = 4 * 1024 * 1024
	}
	if cfg.Presign.GetExpiration == 0 {
		cfg.Presign.GetExpiration = time.Hour
	}
	if cfg.Presign.PutExpiration == 0 {
		cfg.Presign.PutExpiration = 2 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RP_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("RP_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RP_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("RP_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("RP_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RP_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("RP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("RP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RP_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("RP_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("RP_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("RP_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("RP_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("RP_RECOGNITION_ENDPOINT"); v != "" {
		cfg.Recognition.Endpoint = v
	}
	if v := os.Getenv("RP_RECOGNITION_API_KEY"); v != "" {
		cfg.Recognition.APIKey = v
	}
	if v := os.Getenv("RP_INDEXING_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recognition.WorkerCount = n
		}
	}
}
