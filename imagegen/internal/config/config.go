package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// maxImageCap is the hard upper bound on generated samples per round.
const maxImageCap = 4

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Model       ModelConfig       `mapstructure:"model"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type WorkerConfig struct {
	// Secret is the shared secret callers must present in X-Worker-Secret.
	Secret string `mapstructure:"secret"`
}

type ModelConfig struct {
	// BaseURL is the publisher endpoint prefix, including project and
	// location, e.g.
	// https://us-central1-aiplatform.googleapis.com/v1/projects/p/locations/us-central1/publishers/google
	BaseURL     string        `mapstructure:"base_url"`
	VisionModel string        `mapstructure:"vision_model"`
	ImageModel  string        `mapstructure:"image_model"`
	MaxImages   int           `mapstructure:"max_images"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	UploadBaseURL string `mapstructure:"upload_base_url"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	Bucket        string `mapstructure:"bucket"`
}

type CredentialsConfig struct {
	// JSON is the raw service-account secret, normalized per request.
	JSON  string `mapstructure:"json"`
	Scope string `mapstructure:"scope"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("model.vision_model", "gemini-1.5-flash")
	v.SetDefault("model.image_model", "imagegeneration@006")
	v.SetDefault("model.max_images", maxImageCap)
	v.SetDefault("model.timeout", "30s")
	v.SetDefault("storage.upload_base_url", "https://storage.googleapis.com/upload/storage/v1")
	v.SetDefault("storage.public_base_url", "https://storage.googleapis.com")
	v.SetDefault("credentials.scope", "https://www.googleapis.com/auth/cloud-platform")
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gi-connect/imagegen")
	}

	// Environment variables override
	v.SetEnvPrefix("IMAGEGEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Model.MaxImages < 1 || cfg.Model.MaxImages > maxImageCap {
		cfg.Model.MaxImages = maxImageCap
	}
	if cfg.Model.BaseURL == "" {
		return nil, fmt.Errorf("model.base_url is required")
	}
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage.bucket is required")
	}

	return &cfg, nil
}
