package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/adapters/opcua"
	"github.com/ghalamif/uabridge/internal/adapters/thingsboard"
	"github.com/ghalamif/uabridge/internal/domain"
)

// Environment variables that override the file configuration.
const (
	EnvOPCUAServerURL       = "UABRIDGE_OPCUA_SERVER_URL"
	EnvThingsBoardServerURL = "UABRIDGE_THINGSBOARD_SERVER_URL"
	EnvDevicesFile          = "UABRIDGE_DEVICES_FILE"
	EnvMetricsAddr          = "UABRIDGE_METRICS_ADDR"
	EnvLogLevel             = "UABRIDGE_LOG_LEVEL"
)

type Config struct {
	OPCUA       opcua.Config            `yaml:"opcua"`
	ThingsBoard thingsboard.Config      `yaml:"thingsboard"`
	DevicesFile string                  `yaml:"devices_file"`
	Timezone    string                  `yaml:"timezone"`
	Metrics     MetricsConfig           `yaml:"metrics"`
	Log         observability.LogConfig `yaml:"log"`

	// Devices is filled from DevicesFile by Load.
	Devices []domain.Device `yaml:"-"`

	location *time.Location
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Location is the zone cron schedules and history windows are evaluated in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// LoadEnv reads KEY=VALUE pairs from files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the application config at path, applies environment overrides,
// defaults and validation, then loads and validates the device file.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	devices, err := LoadDevices(cfg.DevicesFile)
	if err != nil {
		return nil, err
	}
	cfg.Devices = devices
	return cfg, nil
}

// LoadWithoutDevices is Load minus the device file; used by the stats command.
func LoadWithoutDevices(path string) (*Config, error) {
	return loadFile(path)
}

func loadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.OPCUA.ServerURL, EnvOPCUAServerURL)
	set(&c.ThingsBoard.ServerURL, EnvThingsBoardServerURL)
	set(&c.DevicesFile, EnvDevicesFile)
	set(&c.Metrics.Addr, EnvMetricsAddr)
	set(&c.Log.Level, EnvLogLevel)
}

func (c *Config) applyDefaults() {
	if c.DevicesFile == "" {
		c.DevicesFile = "./data/devices.json"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	c.OPCUA.ApplyDefaults()
	c.ThingsBoard.ApplyDefaults()
}

func (c *Config) validate() error {
	if err := c.OPCUA.Validate(); err != nil {
		return fmt.Errorf("opcua config: %w", err)
	}
	if err := c.ThingsBoard.Validate(); err != nil {
		return fmt.Errorf("thingsboard config: %w", err)
	}
	if err := c.SetTimezone(c.Timezone); err != nil {
		return err
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}

// SetTimezone changes the zone used for cron schedules, history windows and
// zone-less command times.
func (c *Config) SetTimezone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", name, err)
	}
	c.Timezone = name
	c.location = loc
	return nil
}
