package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ghalamif/uabridge"
	"github.com/ghalamif/uabridge/internal/adapters/observability"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		logger.Fatal().Err(err).Str("command", cmd).Msg("uabridge failed")
	}
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "./data/config.yaml", "Path to bridge configuration file")
	envFile := fs.String("env-file", ".env", "Optional .env file loaded before the config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := uabridge.LoadEnv(*envFile); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	cfg, err := uabridge.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	obs := observability.NewPromObs(logger)

	bridge, err := uabridge.NewBridge(cfg, uabridge.WithObservability(obs))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("opcua", cfg.OPCUA.ServerURL).
		Str("thingsboard", cfg.ThingsBoard.ServerURL).
		Int("devices", len(cfg.Devices)).
		Msg("uabridge starting")
	return bridge.Run(ctx)
}

func validateCommand(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	cfgPath := fs.StringP("config", "c", "./data/config.yaml", "Path to configuration file to validate")
	envFile := fs.String("env-file", ".env", "Optional .env file loaded before the config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := uabridge.LoadEnv(*envFile); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	cfg, err := uabridge.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}

	fmt.Printf("config %s looks good\n", *cfgPath)
	fmt.Printf("  opcua:       %s\n", cfg.OPCUA.ServerURL)
	fmt.Printf("  thingsboard: %s\n", cfg.ThingsBoard.ServerURL)
	for _, d := range cfg.Devices {
		tags := 0
		if d.Subscription != nil {
			tags = len(d.Subscription.Tags)
		}
		scheduled := 0
		for _, h := range d.Histories {
			if h.Scheduled() {
				scheduled++
			}
		}
		fmt.Printf("  device %-20s tags=%d histories=%d scheduled=%d\n", d.Name, tags, len(d.Histories), scheduled)
	}
	return nil
}

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, client, *url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsTargets = []struct {
	metric string
	label  string
}{
	{observability.SessionConnected, "session"},
	{observability.PollCycles, "polls"},
	{observability.PollCyclesSkipped, "skipped"},
	{observability.HistoryCycles, "history"},
	{observability.HistoryCyclesFailed, "history_failed"},
	{observability.HistoryPointsForwarded, "points"},
	{observability.Commands, "commands"},
	{observability.SessionReconnects, "reconnects"},
}

func printMetricsSnapshot(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values := make(map[string]float64, len(statsTargets))
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, target := range statsTargets {
			if strings.HasPrefix(line, target.metric+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, target.metric+" %g", &value); err == nil {
					values[target.metric] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", time.Now().Format(time.RFC3339))
	for _, target := range statsTargets {
		fmt.Fprintf(&b, " %s=%g", target.label, values[target.metric])
	}
	fmt.Println(b.String())
	return nil
}

func printUsage() {
	fmt.Printf(`uabridge: OPC UA to ThingsBoard bridge

Usage:
  uabridge <command> [flags]

Commands:
  run        Start the bridge using the provided config
  validate   Load the config and device file and print a per-device summary
  stats      Poll the Prometheus metrics endpoint and print live counters

Examples:
  uabridge run --config ./data/config.yaml
  uabridge validate -c ./data/config.yaml
  uabridge stats --url http://localhost:9100/metrics --interval 1s
`)
}
