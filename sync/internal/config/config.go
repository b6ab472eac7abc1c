package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// WarehouseConfig identifies the destination warehouse. Project, dataset and
// table names are explicit configuration; nothing is inferred from the
// credential or hardcoded.
type WarehouseConfig struct {
	// CredentialsJSON is the raw service-account secret as delivered by the
	// environment. It is normalized per request, not at load time, so key
	// rotation only requires a config reload.
	CredentialsJSON string `mapstructure:"credentials_json"`

	BaseURL       string        `mapstructure:"base_url"`
	Scope         string        `mapstructure:"scope"`
	ProjectID     string        `mapstructure:"project_id"`
	Dataset       string        `mapstructure:"dataset"`
	EventsTable   string        `mapstructure:"events_table"`
	OrdersTable   string        `mapstructure:"orders_table"`
	ProductsTable string        `mapstructure:"products_table"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AuditConfig struct {
	// NATSURL enables the audit publisher when non-empty.
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("warehouse.base_url", "https://bigquery.googleapis.com/bigquery/v2")
	v.SetDefault("warehouse.scope", "https://www.googleapis.com/auth/bigquery")
	v.SetDefault("warehouse.dataset", "gi_connect")
	v.SetDefault("warehouse.events_table", "raw_events")
	v.SetDefault("warehouse.orders_table", "orders")
	v.SetDefault("warehouse.products_table", "products")
	v.SetDefault("warehouse.timeout", "30s")
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("audit.subject", "gi.sync")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/gi-connect/sync")
	}

	// Environment variables override
	v.SetEnvPrefix("SYNC")
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

	if cfg.Warehouse.ProjectID == "" {
		return nil, fmt.Errorf("warehouse.project_id is required")
	}

	return &cfg, nil
}
