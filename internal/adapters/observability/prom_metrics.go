package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ghalamif/uabridge/internal/ports"
)

// Metric names shared by the pipelines and the stats command.
const (
	PollCycles             = "uabridge_poll_cycles_total"
	PollCyclesSkipped      = "uabridge_poll_cycles_skipped_total"
	TagReadFailures        = "uabridge_tag_read_failures_total"
	HistoryCycles          = "uabridge_history_cycles_total"
	HistoryCyclesFailed    = "uabridge_history_cycles_failed_total"
	HistoryPointsForwarded = "uabridge_history_points_forwarded_total"
	Commands               = "uabridge_commands_total"
	CommandsFailed         = "uabridge_commands_failed_total"
	SessionReconnects      = "uabridge_session_reconnects_total"
	SessionConnected       = "uabridge_session_connected"
	PollCycleLatency       = "uabridge_poll_cycle_seconds"
	HistoryReadLatency     = "uabridge_history_read_seconds"
)

type PromObs struct {
	log      zerolog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the bridge metrics on the default registry.
func NewPromObs(logger zerolog.Logger) *PromObs {
	return NewPromObsWithRegisterer(logger, prometheus.DefaultRegisterer)
}

// NewPromObsWithRegisterer registers on reg; a nil reg keeps the metrics unregistered.
func NewPromObsWithRegisterer(logger zerolog.Logger, reg prometheus.Registerer) *PromObs {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}

	counters := map[string]prometheus.Counter{
		PollCycles:             counter(PollCycles, "Subscription poll cycles started."),
		PollCyclesSkipped:      counter(PollCyclesSkipped, "Poll cycles that forwarded nothing."),
		TagReadFailures:        counter(TagReadFailures, "Tags omitted from a poll cycle due to a bad status."),
		HistoryCycles:          counter(HistoryCycles, "Scheduled history cycles fired."),
		HistoryCyclesFailed:    counter(HistoryCyclesFailed, "History cycles aborted by a read or sink error."),
		HistoryPointsForwarded: counter(HistoryPointsForwarded, "Archived points forwarded as telemetry."),
		Commands:               counter(Commands, "Remote commands received."),
		CommandsFailed:         counter(CommandsFailed, "Remote commands answered with success=false."),
		SessionReconnects:      counter(SessionReconnects, "OPC UA sessions re-established after a liveness failure."),
	}
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: SessionConnected,
		Help: "1 while the shared OPC UA session is live.",
	})
	pollLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    PollCycleLatency,
		Help:    "Duration of a subscription poll cycle.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	historyLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    HistoryReadLatency,
		Help:    "Duration of a full history window read.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	collectors := []prometheus.Collector{connected, pollLatency, historyLatency}
	for _, c := range counters {
		collectors = append(collectors, c)
	}
	if reg != nil {
		reg.MustRegister(collectors...)
	}

	return &PromObs{
		log:      logger,
		counters: counters,
		gauges: map[string]prometheus.Gauge{
			SessionConnected: connected,
		},
		histos: map[string]prometheus.Observer{
			PollCycleLatency:   pollLatency,
			HistoryReadLatency: historyLatency,
		},
	}
}

func (p *PromObs) LogDebug(msg string, fields ...ports.Field) {
	withFields(p.log.Debug(), fields).Msg(msg)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	withFields(p.log.Info(), fields).Msg(msg)
}

func (p *PromObs) LogWarn(msg string, err error, fields ...ports.Field) {
	withFields(p.log.Warn().Err(err), fields).Msg(msg)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	withFields(p.log.Error().Err(err), fields).Msg(msg)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	withFields(p.log.WithLevel(zerolog.FatalLevel).Err(err), fields).Msg(msg)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func withFields(ev *zerolog.Event, fields []ports.Field) *zerolog.Event {
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	return ev
}

var _ ports.Observability = (*PromObs)(nil)
