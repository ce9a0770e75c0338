package uabridge

import (
	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/adapters/opcua"
	"github.com/ghalamif/uabridge/internal/adapters/thingsboard"
	"github.com/ghalamif/uabridge/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// OPCUAConfig holds the session and history read settings.
	OPCUAConfig = opcua.Config
	// ThingsBoardConfig points the bridge at the device HTTP API.
	ThingsBoardConfig = thingsboard.Config
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures the process logger.
	LogConfig = observability.LogConfig
)

// LoadConfig loads the YAML config and the device file it references.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// LoadDevices reads a device file on its own.
func LoadDevices(path string) ([]Device, error) {
	return config.LoadDevices(path)
}

// LoadEnv loads .env style files into the environment before LoadConfig.
func LoadEnv(files ...string) error {
	return config.LoadEnv(files...)
}
