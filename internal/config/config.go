package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Data      DataConfig      `mapstructure:"data"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Rabbit    RabbitConfig    `mapstructure:"rabbitmq"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Hub       HubConfig       `mapstructure:"hub"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DataConfig struct {
	Dir        string `mapstructure:"dir"`
	UploadsDir string `mapstructure:"uploads_dir"`
}

// SnapshotConfig selects the durable-storage sink for the order
// collection: "file" (default) or "postgres".
type SnapshotConfig struct {
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type RabbitConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type DiscoveryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type AuthConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type HubConfig struct {
	Buffer int `mapstructure:"buffer"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Load reads the YAML config at path, or the first config.yaml on the
// search path when path is empty. Every key has a default so the server
// runs with no config file at all.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.name", "Cafe System Server")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.uploads_dir", "uploads")
	v.SetDefault("snapshot.backend", "file")
	v.SetDefault("snapshot.postgres.host", "localhost")
	v.SetDefault("snapshot.postgres.port", 5432)
	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.host", "localhost")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.user", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("discovery.enabled", true)
	v.SetDefault("discovery.port", 5555)
	v.SetDefault("auth.secret", "cafe-system-dev-secret")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("hub.buffer", 64)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("deploy")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Snapshot.Backend != "file" && cfg.Snapshot.Backend != "postgres" {
		return nil, fmt.Errorf("invalid snapshot backend %q", cfg.Snapshot.Backend)
	}
	return &cfg, nil
}
