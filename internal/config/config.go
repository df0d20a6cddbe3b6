package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading API.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	JWTSecret        string
	JWTRefreshSecret string
	Storage          StorageConfig
	HTR              HTRConfig
	NATSURL          string
	EventsSubject    string
	WorkListCacheTTL time.Duration
	StrictReferences bool
	UploadMaxSizeMB  int
	AllowOrigins     string
	AccessLog        bool
}

// StorageConfig describes the S3-compatible object store holding answer images.
type StorageConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	Region          string
	TempBucket      string
	PermanentBucket string
	PresignTTL      time.Duration
}

// HTRConfig points at the handwriting recognition queues.
type HTRConfig struct {
	AMQPURL      string
	RequestQueue string
	ResultQueue  string
	ConsumerTag  string
	// RateLimit caps recognition requests per teacher and minute.
	RateLimit int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Grading API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket_temp", "temp")
	v.SetDefault("storage.bucket_permanent", "permanent")
	v.SetDefault("storage.presign_ttl", "1h")
	v.SetDefault("htr.request_queue", "htr_queue")
	v.SetDefault("htr.result_queue", "htr_results")
	v.SetDefault("htr.consumer_tag", "grading-api")
	v.SetDefault("htr.rate_limit_per_minute", 10)
	v.SetDefault("http.allow_origins", "*")
	v.SetDefault("http.access_log", false)
	v.SetDefault("events.subject", "grading.works")
	v.SetDefault("cache.work_list_ttl", "2m")
	v.SetDefault("grading.strict_references", false)
	v.SetDefault("upload.max_size_mb", 10)
}

func fromViper(v *viper.Viper) (Config, error) {
	presignTTL, err := parseDuration(v.GetString("storage.presign_ttl"), time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid storage presign ttl: %w", err)
	}

	cacheTTL, err := parseDuration(v.GetString("cache.work_list_ttl"), 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid work list cache ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKey:       v.GetString("storage.access_key"),
			SecretKey:       v.GetString("storage.secret_key"),
			UseSSL:          v.GetBool("storage.use_ssl"),
			Region:          v.GetString("storage.region"),
			TempBucket:      v.GetString("storage.bucket_temp"),
			PermanentBucket: v.GetString("storage.bucket_permanent"),
			PresignTTL:      presignTTL,
		},
		HTR: HTRConfig{
			AMQPURL:      v.GetString("htr.amqp_url"),
			RequestQueue: v.GetString("htr.request_queue"),
			ResultQueue:  v.GetString("htr.result_queue"),
			ConsumerTag:  v.GetString("htr.consumer_tag"),
			RateLimit:    v.GetInt("htr.rate_limit_per_minute"),
		},
		NATSURL:          v.GetString("nats.url"),
		EventsSubject:    v.GetString("events.subject"),
		WorkListCacheTTL: cacheTTL,
		StrictReferences: v.GetBool("grading.strict_references"),
		UploadMaxSizeMB:  v.GetInt("upload.max_size_mb"),
		AllowOrigins:     v.GetString("http.allow_origins"),
		AccessLog:        v.GetBool("http.access_log"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.Storage.TempBucket == cfg.Storage.PermanentBucket {
		return Config{}, fmt.Errorf("temp and permanent buckets must differ")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
