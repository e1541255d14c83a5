package config

import (
	"context"
)

// Loader provides configuration loading capabilities. It abstracts the source
// of configuration to allow for different implementations like files, environment
// variables, or remote configuration services.
type Loader interface {
	// Load retrieves and parses the configuration from the underlying source.
	// It returns the parsed configuration or an error if loading fails.
	Load(ctx context.Context) (*Config, error)
}

// Defaults returns the value of every setting when neither file nor
// environment overrides it.
func Defaults() map[string]any {
	return map[string]any{
		"service.name":             "taskpulse",
		"log.level":                "info",
		"stream.url":               "ws://localhost:5555/api/ws",
		"stream.reconnect_delay":   "3s",
		"stream.handshake_timeout": "10s",
		"stream.max_message_bytes": 0,
		"control_api.base_url":     "http://localhost:5555",
		"control_api.timeout":      "10s",
		"auth.token":               "",
		"commands.rate_limit":      5.0,
		"commands.burst":           5,
		"store.task_capacity":      100,
		"api.host":                 "0.0.0.0",
		"api.port":                 "8080",
		"grpc.host":                "0.0.0.0",
		"grpc.port":                "9090",
		"debug.host":               "0.0.0.0",
		"debug.port":               "8081",
		"telemetry.enabled":        false,
		"telemetry.endpoint":       "",
		"telemetry.probability":    0.05,
		"telemetry.insecure":       true,
	}
}
