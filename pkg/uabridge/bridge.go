package uabridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ghalamif/uabridge/internal/adapters/observability"
	"github.com/ghalamif/uabridge/internal/adapters/opcua"
	"github.com/ghalamif/uabridge/internal/adapters/thingsboard"
	"github.com/ghalamif/uabridge/internal/app/pipeline"
	"github.com/ghalamif/uabridge/internal/ports"
)

// Option customizes the dependencies used by Bridge.
type Option func(*overrides)

type overrides struct {
	source        Source
	sink          TelemetrySink
	session       SessionProvider
	sessionSet    bool
	observability Observability
	clock         clock.Clock
	noMetrics     bool
}

// WithSource replaces the OPC UA reader (simulators, other protocols).
// Unless WithSessionProvider is also given, no session supervisor runs.
func WithSource(src Source) Option {
	return func(o *overrides) {
		o.source = src
	}
}

// WithSink sends attributes and telemetry somewhere other than ThingsBoard.
func WithSink(s TelemetrySink) Option {
	return func(o *overrides) {
		o.sink = s
	}
}

// WithSessionProvider sets the connection supervisor run next to the device tasks.
func WithSessionProvider(p SessionProvider) Option {
	return func(o *overrides) {
		o.session = p
		o.sessionSet = true
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) Option {
	return func(o *overrides) {
		o.observability = obs
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *overrides) {
		o.clock = c
	}
}

// WithoutMetricsServer skips the /metrics and /healthz listener.
func WithoutMetricsServer() Option {
	return func(o *overrides) {
		o.noMetrics = true
	}
}

// Bridge wires the OPC UA source, the ThingsBoard sink and the per-device
// tasks, and exposes simple lifecycle hooks for embedding.
type Bridge struct {
	cfg          *Config
	obs          ports.Observability
	source       ports.Source
	sink         ports.TelemetrySink
	session      ports.SessionProvider
	orchestrator *pipeline.Orchestrator
	metricsSrv   *http.Server
	noMetrics    bool
}

// NewBridge bootstraps the default adapters (OPC UA session and reader,
// ThingsBoard HTTP client, zerolog + Prometheus observability). Options
// override any of them.
func NewBridge(cfg *Config, opts ...Option) (*Bridge, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(cfg.Devices) == 0 {
		return nil, fmt.Errorf("config has no devices")
	}

	var o overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	clk := o.clock
	if clk == nil {
		clk = clock.New()
	}

	obs := o.observability
	if obs == nil {
		logger, err := observability.NewLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("log config: %w", err)
		}
		obs = observability.NewPromObs(logger)
	}

	src := o.source
	session := o.session
	if src == nil {
		sm, err := opcua.NewSessionManager(cfg.OPCUA, obs, opcua.WithClock(clk))
		if err != nil {
			return nil, fmt.Errorf("opcua config: %w", err)
		}
		src = opcua.NewReader(sm, obs)
		if !o.sessionSet {
			session = sm
		}
	}

	snk := o.sink
	if snk == nil {
		tb, err := thingsboard.NewClient(cfg.ThingsBoard, obs)
		if err != nil {
			return nil, fmt.Errorf("thingsboard config: %w", err)
		}
		snk = tb
	}

	cfg.ThingsBoard.ApplyDefaults()
	deps := pipeline.Deps{
		Source:   src,
		Sink:     snk,
		Obs:      obs,
		Clock:    clk,
		Location: cfg.Location(),
	}

	return &Bridge{
		cfg:          cfg,
		obs:          obs,
		source:       src,
		sink:         snk,
		session:      session,
		orchestrator: pipeline.NewOrchestrator(cfg.Devices, deps, session, cfg.ThingsBoard.RPCPollInterval),
		noMetrics:    o.noMetrics,
	}, nil
}

// Run starts every device task and blocks until ctx is cancelled, then
// shuts down the metrics server.
func (b *Bridge) Run(ctx context.Context) error {
	if b == nil {
		return fmt.Errorf("bridge is nil")
	}
	if !b.noMetrics {
		b.startMetrics()
	}

	runErr := b.orchestrator.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, b.Shutdown(shutdownCtx))
}

// Shutdown stops the metrics server.
func (b *Bridge) Shutdown(ctx context.Context) error {
	if b.metricsSrv == nil {
		return nil
	}
	if err := b.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Healthy reports whether the source session is up. Without a session
// provider the bridge is always healthy.
func (b *Bridge) Healthy() bool {
	return b.session == nil || b.session.Connected()
}

func (b *Bridge) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", b.healthz)

	b.metricsSrv = &http.Server{
		Addr:              b.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := b.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.obs.LogError("metrics_server_exited", err, ports.F("addr", b.cfg.Metrics.Addr))
		}
	}()
}

func (b *Bridge) healthz(w http.ResponseWriter, _ *http.Request) {
	if !b.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("opc ua session down"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// NopObservability discards logs and metrics.
func NopObservability() Observability {
	return observability.NewPromObsWithRegisterer(zerolog.Nop(), nil)
}
