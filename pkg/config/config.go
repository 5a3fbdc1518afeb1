// Package config loads the TOML configuration of the telescope daemon.
package config

import (
	"errors"
	"os"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data      DataConfig      `toml:"data"      json:"data"`
	Logging   LoggingConfig   `toml:"logging"   json:"logging"`
	Server    ServerConfig    `toml:"server"    json:"server"`
	Scheduler SchedulerConfig `toml:"scheduler" json:"scheduler"`
	MQTT      MQTTConfig      `toml:"mqtt"      json:"mqtt"`
}

type DataConfig struct {
	// Root holds connections.json, the device catalog, settings and logs.
	Root string `toml:"root" json:"root"`
	// ServerDir is searched for telescope server executables.
	ServerDir string `toml:"server_dir" json:"server_dir"`
}

type LoggingConfig struct {
	Level      string `toml:"level"        json:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"  json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"  json:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days"`
}

type ServerConfig struct {
	Port      int  `toml:"port"      json:"port"`
	Discovery bool `toml:"discovery" json:"discovery"`
}

type SchedulerConfig struct {
	TickIntervalMS   int `toml:"tick_interval_ms"   json:"tick_interval_ms"`
	ConnectTimeoutMS int `toml:"connect_timeout_ms" json:"connect_timeout_ms"`
}

type MQTTConfig struct {
	Enabled   bool   `toml:"enabled"    json:"enabled"`
	Host      string `toml:"host"       json:"host"`
	Port      int    `toml:"port"       json:"port"`
	Username  string `toml:"username"   json:"username"`
	Password  string `toml:"password"   json:"-"`
	TopicRoot string `toml:"topic_root" json:"topic_root"`
}

// Default returns a Config populated with defaults. Values here are used
// whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root:      "/var/lib/telescoped",
			ServerDir: "/usr/lib/telescoped",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Port:      8090,
			Discovery: true,
		},
		Scheduler: SchedulerConfig{
			TickIntervalMS:   50,
			ConnectTimeoutMS: 10000,
		},
		MQTT: MQTTConfig{
			Enabled:   false,
			Host:      "localhost",
			Port:      1883,
			TopicRoot: "telescoped",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if _, err := log.ParseLevel(cfg.Logging.Level); err != nil {
		return errors.New("logging.level: " + err.Error())
	}
	if cfg.Logging.MaxSizeMB < 0 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0 {
		return errors.New("logging rotation limits must be >= 0")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if cfg.Scheduler.TickIntervalMS < 1 {
		return errors.New("scheduler.tick_interval_ms must be >= 1")
	}
	if cfg.Scheduler.ConnectTimeoutMS < 1 {
		return errors.New("scheduler.connect_timeout_ms must be >= 1")
	}
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Host == "" {
			return errors.New("mqtt.host must not be empty")
		}
		if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
			return errors.New("mqtt.port must be between 1 and 65535")
		}
		if cfg.MQTT.TopicRoot == "" {
			return errors.New("mqtt.topic_root must not be empty")
		}
	}
	return nil
}
