// Package config defines the runtime configuration of the monitor daemon and
// CLI.
package config

import (
	"fmt"
	"time"

	"github.com/ahrav/taskpulse/pkg/common/validate"
)

// Config represents the top-level configuration.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service" yaml:"service"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Stream     StreamConfig     `mapstructure:"stream" yaml:"stream"`
	ControlAPI ControlAPIConfig `mapstructure:"control_api" yaml:"control_api"`
	Auth       AuthConfig       `mapstructure:"auth" yaml:"auth"`
	Commands   CommandsConfig   `mapstructure:"commands" yaml:"commands"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	API        ListenConfig     `mapstructure:"api" yaml:"api"`
	GRPC       ListenConfig     `mapstructure:"grpc" yaml:"grpc"`
	Debug      ListenConfig     `mapstructure:"debug" yaml:"debug"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
}

// ServiceConfig identifies this process in logs and telemetry.
type ServiceConfig struct {
	Name string `mapstructure:"name" yaml:"name" validate:"required"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// StreamConfig controls the event feed connection.
type StreamConfig struct {
	// URL is the ws:// or wss:// address of the event feed.
	URL              string        `mapstructure:"url" yaml:"url" validate:"required,url"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay" validate:"gt=0"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout" validate:"gt=0"`
	MaxMessageBytes  int           `mapstructure:"max_message_bytes" yaml:"max_message_bytes" validate:"gte=0"`
}

// ControlAPIConfig points at the backend's request/response API.
type ControlAPIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// AuthConfig carries the bearer credential used for both channels.
type AuthConfig struct {
	Token string `mapstructure:"token" yaml:"token"`
}

// CommandsConfig throttles control commands. A RateLimit of zero disables
// throttling.
type CommandsConfig struct {
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" yaml:"burst" validate:"gte=1"`
}

// StoreConfig sizes the model store.
type StoreConfig struct {
	TaskCapacity int `mapstructure:"task_capacity" yaml:"task_capacity" validate:"gte=1"`
}

// ListenConfig is a host/port pair for a listener.
type ListenConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port" validate:"required,numeric"`
}

// Addr returns host:port.
func (l ListenConfig) Addr() string { return fmt.Sprintf("%s:%s", l.Host, l.Port) }

// TelemetryConfig controls OTLP export.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Enabled true"`
	Probability float64 `mapstructure:"probability" yaml:"probability" validate:"gte=0,lte=1"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Check(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
