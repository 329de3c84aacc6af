package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MQTT          MQTTConfig          `mapstructure:"mqtt"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type AppConfig struct {
	Port      int    `mapstructure:"port"`
	LocalName string `mapstructure:"local_name"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// NotificationsConfig selects the outlet used by NotificationEffect and
// whether deliveries go through the task queue.
type NotificationsConfig struct {
	DefaultNotifier string `mapstructure:"default_notifier"`
	DefaultOutlet   string `mapstructure:"default_outlet"`
	Queue           bool   `mapstructure:"queue"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", 5069)
	v.SetDefault("app.local_name", "smarthub.local")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("database.url", "smarthub.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "smarthub-engine")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("notifications.default_notifier", "hub")
	v.SetDefault("notifications.default_outlet", "log")
	v.SetDefault("notifications.queue", false)
}

// LoadConfig reads configuration from file, .env, or env vars.
// An empty path searches for config.yaml in the working directory.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SMARTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
