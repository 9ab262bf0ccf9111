package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config defines the display service configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr            string `yaml:"addr" env:"REDIS_ADDR"`
		Password        string `yaml:"password" env:"REDIS_PASSWORD"`
		StatusTTLSeconds int    `yaml:"statusTtlSeconds" env:"REDIS_STATUS_TTL"`
	} `yaml:"redis"`
	Transport struct {
		TimeoutSeconds int `yaml:"timeoutSeconds" env:"TRANSPORT_TIMEOUT"`
	} `yaml:"transport"`
	Monitor struct {
		PollIntervalSeconds int `yaml:"pollIntervalSeconds" env:"MONITOR_POLL_INTERVAL"`
		DebounceThreshold   int `yaml:"debounceThreshold" env:"MONITOR_DEBOUNCE_THRESHOLD"`
		ProbeTimeoutSeconds int `yaml:"probeTimeoutSeconds" env:"MONITOR_PROBE_TIMEOUT"`
	} `yaml:"monitor"`
	WebSocket struct {
		PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"WS_PING_INTERVAL"`
		WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"WS_WRITE_TIMEOUT"`
	} `yaml:"websocket"`
}

// Load hydrates configuration and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8085"
	cfg.Redis.StatusTTLSeconds = 300
	cfg.Transport.TimeoutSeconds = 5
	cfg.Monitor.PollIntervalSeconds = 30
	cfg.Monitor.DebounceThreshold = 3
	cfg.Monitor.ProbeTimeoutSeconds = 5
	cfg.WebSocket.PingIntervalSeconds = 30
	cfg.WebSocket.WriteTimeoutSeconds = 15

	if err := hydrate(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database DSN is required")
	}

	return cfg, nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// TransportTimeout bounds one frame exchange.
func (c *Config) TransportTimeout() time.Duration {
	return secondsOr(c.Transport.TimeoutSeconds, 5*time.Second)
}

// PollInterval is the default probe cadence per station.
func (c *Config) PollInterval() time.Duration {
	return secondsOr(c.Monitor.PollIntervalSeconds, 30*time.Second)
}

// ProbeTimeout bounds one health probe.
func (c *Config) ProbeTimeout() time.Duration {
	return secondsOr(c.Monitor.ProbeTimeoutSeconds, 5*time.Second)
}

// StatusTTL bounds redis status cache entries.
func (c *Config) StatusTTL() time.Duration {
	return secondsOr(c.Redis.StatusTTLSeconds, 5*time.Minute)
}

// WSPingInterval keeps status subscriptions alive.
func (c *Config) WSPingInterval() time.Duration {
	return secondsOr(c.WebSocket.PingIntervalSeconds, 30*time.Second)
}

// WSWriteTimeout bounds one subscriber write.
func (c *Config) WSWriteTimeout() time.Duration {
	return secondsOr(c.WebSocket.WriteTimeoutSeconds, 15*time.Second)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
