package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ghalamif/uabridge/internal/domain"
)

const devicesJSON = `[
  {
    "name": "Boiler1",
    "description": "boiler house",
    "token": "boiler-token",
    "subscription": {
      "interval": 5000,
      "tags": [
        {"name": "temp", "nodeId": "ns=2;s=Boiler1.Temp"},
        {"name": "pressure", "nodeId": "ns=2;s=Boiler1.Pressure"}
      ]
    },
    "histories": [
      {"name": "DailyArchive", "nodeId": "ns=2;s=Boiler1.Energy", "checkCron": "0 1 * * *", "historyType": "daily"},
      {"name": "OnDemand", "nodeId": "ns=2;i=1001"}
    ]
  },
  {
    "name": "Pump7",
    "token": "pump-token",
    "subscriptions": {"tags": [{"name": "rpm", "nodeId": "ns=3;s=Pump7.Rpm"}]}
  }
]`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	devices := writeFile(t, dir, "devices.json", devicesJSON)
	path := writeFile(t, dir, "config.yaml", `
opcua:
  server_url: opc.tcp://localhost:4840
thingsboard:
  server_url: http://tb.local:8080
devices_file: `+devices+`
timezone: UTC
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.OPCUA.RetryInterval != 5*time.Second {
		t.Fatalf("expected retry interval 5s, got %s", cfg.OPCUA.RetryInterval)
	}
	if cfg.ThingsBoard.RPCTimeout != 20*time.Second {
		t.Fatalf("expected rpc timeout 20s, got %s", cfg.ThingsBoard.RPCTimeout)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("expected log level info, got %s", cfg.Log.Level)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", cfg.Location())
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(cfg.Devices))
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	devices := writeFile(t, dir, "devices.json", devicesJSON)
	path := writeFile(t, dir, "config.yaml", `
opcua:
  server_url: opc.tcp://from-file:4840
thingsboard:
  server_url: http://from-file
`)
	t.Setenv(EnvOPCUAServerURL, "opc.tcp://from-env:4840")
	t.Setenv(EnvDevicesFile, devices)
	t.Setenv(EnvMetricsAddr, "127.0.0.1:9200")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.OPCUA.ServerURL != "opc.tcp://from-env:4840" {
		t.Fatalf("env override not applied, got %s", cfg.OPCUA.ServerURL)
	}
	if cfg.ThingsBoard.ServerURL != "http://from-file" {
		t.Fatalf("file value lost, got %s", cfg.ThingsBoard.ServerURL)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9200" || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.Metrics, cfg.Log)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	env := writeFile(t, dir, ".env", EnvThingsBoardServerURL+"=http://dotenv:8080\n")
	t.Setenv(EnvThingsBoardServerURL, "")
	os.Unsetenv(EnvThingsBoardServerURL)

	if err := LoadEnv(filepath.Join(dir, "missing.env"), env); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv(EnvThingsBoardServerURL); got != "http://dotenv:8080" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}

func TestLoadRejectsMissingServers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
opcua:
  server_url: opc.tcp://localhost:4840
`)
	if _, err := LoadWithoutDevices(path); err == nil {
		t.Fatalf("expected missing thingsboard.server_url to fail")
	}

	path = writeFile(t, dir, "config2.yaml", `
thingsboard:
  server_url: http://tb
`)
	if _, err := LoadWithoutDevices(path); err == nil {
		t.Fatalf("expected missing opcua.server_url to fail")
	}
}

func TestParseDevices(t *testing.T) {
	devices, err := ParseDevices([]byte(devicesJSON))
	if err != nil {
		t.Fatalf("parse devices: %v", err)
	}

	boiler := devices[0]
	if boiler.Subscription.Interval != 5000 || len(boiler.Subscription.Tags) != 2 {
		t.Fatalf("unexpected subscription: %+v", boiler.Subscription)
	}
	daily, ok := boiler.FindHistory("DailyArchive")
	if !ok || daily.HistoryType != domain.HistoryTypeDaily || !daily.Scheduled() {
		t.Fatalf("unexpected history: %+v", daily)
	}
	if onDemand, _ := boiler.FindHistory("OnDemand"); onDemand.Scheduled() {
		t.Fatalf("OnDemand must not be scheduled")
	}

	pump := devices[1]
	if pump.Subscription == nil {
		t.Fatalf("expected subscriptions alias to populate subscription")
	}
	if pump.Subscription.Interval != domain.DefaultPollInterval {
		t.Fatalf("expected default interval, got %d", pump.Subscription.Interval)
	}
}

func TestParseDevicesRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		json string
		want error
	}{
		{"empty list", `[]`, ErrNoDevices},
		{"missing token", `[{"name":"a"}]`, ErrInvalidDevice},
		{"duplicate token", `[{"name":"a","token":"t"},{"name":"b","token":"t"}]`, ErrDuplicateToken},
		{"duplicate tag", `[{"token":"t","subscription":{"tags":[{"name":"x","nodeId":"ns=2;s=A"},{"name":"x","nodeId":"ns=2;s=B"}]}}]`, ErrDuplicateName},
		{"duplicate history", `[{"token":"t","histories":[{"name":"h","nodeId":"ns=2;s=A"},{"name":"h","nodeId":"ns=2;s=B"}]}]`, ErrDuplicateName},
		{"bare node name", `[{"token":"t","subscription":{"tags":[{"name":"x","nodeId":"garbage"}]}}]`, ErrInvalidDevice},
		{"bad namespace", `[{"token":"t","subscription":{"tags":[{"name":"x","nodeId":"ns=abc;s=A"}]}}]`, ErrInvalidDevice},
		{"bad numeric id", `[{"token":"t","subscription":{"tags":[{"name":"x","nodeId":"i=abc"}]}}]`, ErrInvalidDevice},
		{"unknown id kind", `[{"token":"t","histories":[{"name":"h","nodeId":"ns=2;x=1"}]}]`, ErrInvalidDevice},
		{"empty identifier", `[{"token":"t","histories":[{"name":"h","nodeId":"ns=2;s="}]}]`, ErrInvalidDevice},
		{"bad cron", `[{"token":"t","histories":[{"name":"h","nodeId":"ns=2;s=A","checkCron":"every day","historyType":"daily"}]}]`, ErrInvalidDevice},
		{"cron without type", `[{"token":"t","histories":[{"name":"h","nodeId":"ns=2;s=A","checkCron":"0 * * * *"}]}]`, ErrInvalidDevice},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDevices([]byte(tc.json))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := ParseDevices([]byte(`[{"token":"t","histories":[{"name":"h","nodeId":"ns=2;s=A","checkCron":"0 * * * *","historyType":"weekly"}]}]`)); err == nil {
		t.Fatalf("expected unknown historyType to fail")
	}
}

func TestSetTimezone(t *testing.T) {
	var cfg Config
	if cfg.Location() != time.Local {
		t.Fatalf("expected Local before any timezone is set")
	}
	if err := cfg.SetTimezone("Europe/Berlin"); err != nil {
		t.Fatalf("SetTimezone returned error: %v", err)
	}
	if cfg.Location().String() != "Europe/Berlin" || cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected location %s (%s)", cfg.Location(), cfg.Timezone)
	}
	if err := cfg.SetTimezone("Mars/Olympus"); err == nil {
		t.Fatalf("expected unknown zone to fail")
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Fatalf("failed SetTimezone must keep the previous zone, got %s", cfg.Location())
	}
}
